package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/ps4dex/release-scraper/pkg/models"
)

// --- Sentinel Errors for Categorization ---
var (
	ErrRetryFailed      = errors.New("request failed after all retries") // Wraps the last underlying error
	ErrClientHTTPError  = errors.New("client HTTP error (4xx)")          // Wraps original error/status
	ErrServerHTTPError  = errors.New("server HTTP error (5xx)")          // Wraps original error/status
	ErrOtherHTTPError   = errors.New("other HTTP error (non-2xx)")       // Wraps original error/status
	ErrRobotsDisallowed = errors.New("disallowed by robots.txt")
	ErrContentSelector  = errors.New("content selector not found")
	ErrParsing          = errors.New("parsing error")  // Wraps specific parsing error (HTML, URL, XML)
	ErrDatabase         = errors.New("database error") // Wraps badger errors
	ErrConfigValidation = errors.New("configuration validation error")
	ErrNoListings       = errors.New("no listings found")
	ErrScanInProgress   = errors.New("a scan is already running")
	ErrUnknownTitle     = errors.New("unknown title")
)

// HTTPStatusError carries the response status of a failed request.
// It wraps one of the HTTP sentinels so errors.Is keeps working.
type HTTPStatusError struct {
	StatusCode int
	Status     string
	sentinel   error
}

// NewHTTPStatusError picks the sentinel matching the status code
func NewHTTPStatusError(code int, status string) *HTTPStatusError {
	var sentinel error
	switch {
	case code >= 500:
		sentinel = ErrServerHTTPError
	case code >= 400:
		sentinel = ErrClientHTTPError
	default:
		sentinel = ErrOtherHTTPError
	}
	return &HTTPStatusError{StatusCode: code, Status: status, sentinel: sentinel}
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("%v: status %d %s", e.sentinel, e.StatusCode, e.Status)
}

func (e *HTTPStatusError) Unwrap() error { return e.sentinel }

// Transport codes stored in ErrorRecord.Code
const (
	CodeTimeout = "ETIMEDOUT"
	CodeAborted = "ECONNABORTED"
	CodeRefused = "ECONNREFUSED"
	CodeDNS     = "ENOTFOUND"
)

// NewErrorRecord converts a fetch error into an ErrorRecord for reporting
func NewErrorRecord(url string, err error) models.ErrorRecord {
	rec := models.ErrorRecord{URL: url}
	if err == nil {
		return rec
	}
	rec.Message = err.Error()

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		rec.Status = statusErr.StatusCode
	}

	var netErr net.Error
	lower := strings.ToLower(rec.Message)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		rec.Code = CodeTimeout
	case errors.Is(err, context.Canceled):
		rec.Code = CodeAborted
	case errors.As(err, &netErr) && netErr.Timeout():
		rec.Code = CodeTimeout
	case strings.Contains(lower, "connection refused"):
		rec.Code = CodeRefused
	case strings.Contains(lower, "no such host"):
		rec.Code = CodeDNS
	}
	return rec
}

// ClassifyErrorRecord buckets a failed fetch.
// A 404 marks the end of the listing and is not an error. Otherwise timeout
// wins over status, then 429, then any 5xx.
func ClassifyErrorRecord(rec models.ErrorRecord) models.ErrorCategory {
	if rec.Status == 404 {
		return models.ErrorCategoryNone
	}
	if rec.Code == CodeTimeout || rec.Code == CodeAborted || strings.Contains(strings.ToLower(rec.Message), "timeout") {
		return models.ErrorCategoryTimeout
	}
	if rec.Status == 429 {
		return models.ErrorCategoryRateLimited
	}
	if rec.Status >= 500 {
		return models.ErrorCategoryServer
	}
	return models.ErrorCategoryOther
}

// CategorizeError maps an error to a predefined category string for logging
func CategorizeError(err error) string {
	if err == nil {
		return "None"
	}

	var statusErr *HTTPStatusError
	switch {
	case errors.Is(err, ErrRetryFailed):
		underlying := errors.Unwrap(err)
		if underlying == nil {
			return "RetryFailed_Unknown"
		}
		if errors.Is(underlying, ErrServerHTTPError) {
			return "RetryFailed_HTTPServer"
		}
		if errors.Is(underlying, ErrClientHTTPError) {
			return "RetryFailed_HTTPClient"
		}
		return "RetryFailed_" + categorizeNetwork(underlying)
	case errors.As(err, &statusErr):
		if statusErr.StatusCode >= 500 {
			return "HTTP_5xx"
		}
		if statusErr.StatusCode >= 400 {
			return fmt.Sprintf("HTTP_%d", statusErr.StatusCode)
		}
		return "HTTP_OtherStatus"
	case errors.Is(err, ErrServerHTTPError):
		return "HTTP_5xx"
	case errors.Is(err, ErrClientHTTPError):
		return "HTTP_4xx"
	case errors.Is(err, ErrOtherHTTPError):
		return "HTTP_OtherStatus"
	case errors.Is(err, ErrRobotsDisallowed):
		return "Policy_Robots"
	case errors.Is(err, ErrContentSelector):
		return "Content_SelectorNotFound"
	case errors.Is(err, ErrParsing):
		return "Content_Parsing"
	case errors.Is(err, ErrDatabase):
		return "Database_Other"
	case errors.Is(err, ErrConfigValidation):
		return "Config_Validation"
	case errors.Is(err, ErrScanInProgress):
		return "Resource_ScanInProgress"
	case errors.Is(err, ErrNoListings):
		return "Content_NoListings"
	case errors.Is(err, ErrUnknownTitle):
		return "Content_UnknownTitle"
	case errors.Is(err, context.Canceled):
		return "System_ContextCanceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "System_ContextDeadlineExceeded"
	}
	return categorizeNetwork(err)
}

// categorizeNetwork falls back to net.Error and message inspection
func categorizeNetwork(err error) string {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "Network_Timeout"
	}
	lowerErrMsg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lowerErrMsg, "timeout"), strings.Contains(lowerErrMsg, "deadline exceeded"):
		return "Network_Timeout"
	case strings.Contains(lowerErrMsg, "connection refused"):
		return "Network_ConnectionRefused"
	case strings.Contains(lowerErrMsg, "no such host"):
		return "Network_DNSLookup"
	case strings.Contains(lowerErrMsg, "tls"), strings.Contains(lowerErrMsg, "certificate"):
		return "Network_TLS"
	case strings.Contains(lowerErrMsg, "reset by peer"):
		return "Network_ConnectionReset"
	}
	return "Unknown"
}
