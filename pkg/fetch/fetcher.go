package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ps4dex/release-scraper/pkg/config"
	"github.com/ps4dex/release-scraper/pkg/utils"
)

// maxBodyBytes bounds how much of a page is read into memory
const maxBodyBytes = 16 << 20

// Fetcher makes HTTP requests with optional retry and exponential backoff
type Fetcher struct {
	client *http.Client
	cfg    *config.AppConfig // Retry settings
	log    *logrus.Entry
}

// NewFetcher creates a new Fetcher instance
func NewFetcher(client *http.Client, cfg *config.AppConfig, log *logrus.Entry) *Fetcher {
	return &Fetcher{
		client: client,
		cfg:    cfg,
		log:    log,
	}
}

// FetchWithRetry performs req bound to ctx.
// Network errors, 5xx and 429 are retried up to MaxRetries times; with MaxRetries 0 a
// single attempt is made and its error returned unwrapped. Non-2xx results carry an
// *utils.HTTPStatusError. On 4xx/3xx the response is returned too and the caller must close it.
func (f *Fetcher) FetchWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	var lastErr error
	var currentResp *http.Response

	reqLog := f.log.WithField("url", req.URL.String())
	maxRetries := f.cfg.MaxRetries

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return nil, fmt.Errorf("context cancelled (%v) after error: %w", err, lastErr)
			}
			return nil, err
		}

		if attempt > 0 {
			delay := f.backoff(attempt)
			reqLog.WithFields(logrus.Fields{"attempt": attempt, "max_retries": maxRetries, "delay": delay}).Warn("Retrying request...")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, fmt.Errorf("context cancelled (%v) during retry delay after error: %w", ctx.Err(), lastErr)
			}
		}

		currentResp, lastErr = f.client.Do(req.WithContext(ctx))
		if lastErr != nil {
			if currentResp != nil {
				drain(currentResp)
			}
			if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
				reqLog.Debugf("Request aborted: %v", lastErr)
				return nil, lastErr
			}
			reqLog.WithField("attempt", attempt).Warnf("Network error: %v", lastErr)
			continue
		}

		statusCode := currentResp.StatusCode
		resLog := reqLog.WithFields(logrus.Fields{"status_code": statusCode, "attempt": attempt})
		statusErr := utils.NewHTTPStatusError(statusCode, http.StatusText(statusCode))

		switch {
		case statusCode >= 200 && statusCode < 300:
			resLog.Debug("Successfully fetched")
			return currentResp, nil

		case statusCode >= 500, statusCode == http.StatusTooManyRequests:
			resLog.Warn("Transient HTTP error")
			lastErr = statusErr
			drain(currentResp)
			currentResp = nil
			continue

		default:
			// 4xx (404 included) and unexpected codes are final
			resLog.Debug("Non-retryable status")
			return currentResp, statusErr
		}
	}

	if maxRetries == 0 {
		return nil, lastErr
	}
	reqLog.Errorf("All %d fetch attempts failed. Last error: %v", maxRetries+1, lastErr)
	return nil, fmt.Errorf("%w: %w", utils.ErrRetryFailed, lastErr)
}

// Get fetches rawURL and returns the body of a 2xx response.
// Any other outcome is an error; HTTP failures carry *utils.HTTPStatusError.
func (f *Fetcher) Get(ctx context.Context, rawURL, userAgent string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request for %s: %v", utils.ErrParsing, rawURL, err)
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.FetchWithRetry(ctx, req)
	if resp != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body of %s: %w", rawURL, err)
	}
	return body, nil
}

// backoff returns initial * 2^(attempt-1) capped at MaxRetryDelay, with +/-10% jitter
func (f *Fetcher) backoff(attempt int) time.Duration {
	delay := time.Duration(float64(f.cfg.InitialRetryDelay) * math.Pow(2, float64(attempt-1)))
	if delay <= 0 || delay > f.cfg.MaxRetryDelay {
		delay = f.cfg.MaxRetryDelay
	}
	if r := int64(delay) / 5; r > 0 {
		delay += time.Duration(rand.Int63n(r)) - delay/10
	}
	if delay < 0 {
		delay = 0
	}
	return delay
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
