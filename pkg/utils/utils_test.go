package utils

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ps4dex/release-scraper/pkg/models"
)

func TestCategorizeError_NilError(t *testing.T) {
	assert.Equal(t, "None", CategorizeError(nil))
}

func TestCategorizeError_SentinelErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"RobotsDisallowed", ErrRobotsDisallowed, "Policy_Robots"},
		{"ContentSelector", ErrContentSelector, "Content_SelectorNotFound"},
		{"Parsing", fmt.Errorf("%w: bad xml", ErrParsing), "Content_Parsing"},
		{"Database", fmt.Errorf("%w: conflict", ErrDatabase), "Database_Other"},
		{"Config", ErrConfigValidation, "Config_Validation"},
		{"ScanInProgress", ErrScanInProgress, "Resource_ScanInProgress"},
		{"NoListings", fmt.Errorf("%w: empty", ErrNoListings), "Content_NoListings"},
		{"UnknownTitle", ErrUnknownTitle, "Content_UnknownTitle"},
		{"Canceled", context.Canceled, "System_ContextCanceled"},
		{"Deadline", context.DeadlineExceeded, "System_ContextDeadlineExceeded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CategorizeError(tt.err))
		})
	}
}

func TestCategorizeError_HTTPStatus(t *testing.T) {
	assert.Equal(t, "HTTP_5xx", CategorizeError(NewHTTPStatusError(503, "Service Unavailable")))
	assert.Equal(t, "HTTP_404", CategorizeError(NewHTTPStatusError(404, "Not Found")))
	assert.Equal(t, "HTTP_OtherStatus", CategorizeError(NewHTTPStatusError(304, "Not Modified")))

	wrapped := fmt.Errorf("%w: %w", ErrRetryFailed, NewHTTPStatusError(502, "Bad Gateway"))
	assert.Equal(t, "RetryFailed_HTTPServer", CategorizeError(wrapped))
}

func TestCategorizeError_Network(t *testing.T) {
	assert.Equal(t, "Network_ConnectionRefused", CategorizeError(errors.New("dial tcp: connection refused")))
	assert.Equal(t, "Network_DNSLookup", CategorizeError(errors.New("lookup x: no such host")))
	assert.Equal(t, "Unknown", CategorizeError(errors.New("weird")))
}

func TestHTTPStatusError_Unwrap(t *testing.T) {
	err := NewHTTPStatusError(429, "Too Many Requests")
	assert.True(t, errors.Is(err, ErrClientHTTPError))
	assert.False(t, errors.Is(err, ErrServerHTTPError))
	assert.Contains(t, err.Error(), "429")
}

func TestNewErrorRecord(t *testing.T) {
	rec := NewErrorRecord("https://x/page/3/", fmt.Errorf("get: %w", context.DeadlineExceeded))
	assert.Equal(t, CodeTimeout, rec.Code)
	assert.Equal(t, "https://x/page/3/", rec.URL)

	rec = NewErrorRecord("u", NewHTTPStatusError(503, "Service Unavailable"))
	assert.Equal(t, 503, rec.Status)
	assert.Empty(t, rec.Code)
}

func TestClassifyErrorRecord(t *testing.T) {
	tests := []struct {
		name string
		rec  models.ErrorRecord
		want models.ErrorCategory
	}{
		{"timeout code", models.ErrorRecord{Code: CodeTimeout, Status: 503}, models.ErrorCategoryTimeout},
		{"timeout message", models.ErrorRecord{Message: "Client.Timeout exceeded"}, models.ErrorCategoryTimeout},
		{"429", models.ErrorRecord{Status: 429}, models.ErrorCategoryRateLimited},
		{"502", models.ErrorRecord{Status: 502}, models.ErrorCategoryServer},
		{"404 end of listing", models.ErrorRecord{Status: 404}, models.ErrorCategoryNone},
		{"404 with timeout code", models.ErrorRecord{Code: CodeTimeout, Status: 404}, models.ErrorCategoryNone},
		{"403", models.ErrorRecord{Status: 403}, models.ErrorCategoryOther},
		{"no status", models.ErrorRecord{Message: "reset"}, models.ErrorCategoryOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyErrorRecord(tt.rec))
		})
	}
}

func TestErrorStats(t *testing.T) {
	var stats ErrorStats
	assert.Empty(t, stats.Summary())

	var wg sync.WaitGroup
	for i := 0; i < 60; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			switch i % 3 {
			case 0:
				stats.Track(models.ErrorRecord{Code: CodeTimeout})
			case 1:
				stats.Track(models.ErrorRecord{Status: 429})
			default:
				stats.Track(models.ErrorRecord{Status: 500})
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 60, stats.Total)
	assert.Len(t, stats.Details, maxErrorDetails)
	assert.Equal(t, "60 failed (20 timeouts, 20 rate-limited, 20 server errors)", stats.Summary())

	assert.Equal(t, models.ErrorCategoryNone, stats.Track(models.ErrorRecord{Status: 404}))
	assert.Equal(t, 60, stats.Total, "end-of-listing 404 is not a failure")
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "a_b", SanitizeFilename(`a:/b`))
	assert.Equal(t, "untitled", SanitizeFilename(`???`))
	assert.Equal(t, "Sheet1", SanitizeSheetName(`[]`))
	assert.Len(t, SanitizeSheetName(strings.Repeat("x", 50)), maxSheetNameLength)
}
