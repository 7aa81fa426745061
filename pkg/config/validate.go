package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ps4dex/release-scraper/pkg/utils"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

// Validate checks AppConfig fields and applies sensible defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place to apply defaults.
func (c *AppConfig) Validate() (warnings []string, err error) {
	if c.DefaultUserAgent == "" {
		c.DefaultUserAgent = defaultUserAgent
	}

	if c.MaxRequestsPerHost <= 0 {
		warnings = append(warnings, "max_requests_per_host should be > 0, defaulting to 15")
		c.MaxRequestsPerHost = 15
	}

	if c.DefaultDelayPerHost < 0 {
		warnings = append(warnings, "default_delay_per_host cannot be negative, setting to 0")
		c.DefaultDelayPerHost = 0
	}

	if c.StateDir == "" {
		warnings = append(warnings, "state_dir is empty, defaulting to './scraper_state'")
		c.StateDir = "./scraper_state"
	}

	// No automatic retry unless asked for
	if c.MaxRetries < 0 {
		warnings = append(warnings, "max_retries cannot be negative, setting to 0")
		c.MaxRetries = 0
	}
	if c.MaxRetries > 0 {
		if c.InitialRetryDelay <= 0 {
			c.InitialRetryDelay = 1 * time.Second
		}
		if c.MaxRetryDelay <= 0 {
			c.MaxRetryDelay = 30 * time.Second
		}
	}
	if c.InitialRetryDelay > c.MaxRetryDelay && c.MaxRetryDelay > 0 {
		warnings = append(warnings, fmt.Sprintf(
			"initial_retry_delay (%v) > max_retry_delay (%v), using max_retry_delay for initial",
			c.InitialRetryDelay, c.MaxRetryDelay))
		c.InitialRetryDelay = c.MaxRetryDelay
	}

	c.validateHTTPClientSettings()

	if c.Server.Listen == "" {
		c.Server.Listen = ":8080"
	}

	siteWarnings, err := c.Site.Validate()
	warnings = append(warnings, siteWarnings...)
	if err != nil {
		return warnings, err
	}
	warnings = append(warnings, c.Crawl.Validate()...)
	extractionWarnings, err := c.Extraction.Validate()
	warnings = append(warnings, extractionWarnings...)
	if err != nil {
		return warnings, err
	}
	return warnings, nil
}

// validateHTTPClientSettings applies defaults to HTTP client settings.
func (c *AppConfig) validateHTTPClientSettings() {
	h := &c.HTTPClientSettings
	if h.Timeout <= 0 {
		h.Timeout = 45 * time.Second
	}
	if h.MaxIdleConns <= 0 {
		h.MaxIdleConns = 100
	}
	if h.MaxIdleConnsPerHost <= 0 {
		h.MaxIdleConnsPerHost = 16
	}
	if h.IdleConnTimeout <= 0 {
		h.IdleConnTimeout = 90 * time.Second
	}
	if h.TLSHandshakeTimeout <= 0 {
		h.TLSHandshakeTimeout = 10 * time.Second
	}
	if h.ExpectContinueTimeout <= 0 {
		h.ExpectContinueTimeout = 1 * time.Second
	}
	if h.DialerTimeout <= 0 {
		h.DialerTimeout = 15 * time.Second
	}
	if h.DialerKeepAlive <= 0 {
		h.DialerKeepAlive = 30 * time.Second
	}
}

// Validate checks SiteConfig fields and applies defaults.
// Paths are normalized to start and end with '/', the base URL loses its trailing slash.
func (c *SiteConfig) Validate() (warnings []string, err error) {
	if c.BaseURL == "" {
		c.BaseURL = "https://dlpsgame.com"
	}
	parsed, err := url.Parse(c.BaseURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("%w: site base_url %q must be an absolute http(s) URL", utils.ErrConfigValidation, c.BaseURL)
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")

	if c.CategoryPath == "" {
		c.CategoryPath = "/category/ps4/"
	}
	c.CategoryPath = normalizePath(c.CategoryPath)

	if c.FeedPath == "" {
		c.FeedPath = c.CategoryPath + "feed/"
	}
	c.FeedPath = normalizePath(c.FeedPath)

	if len(c.ContentSelectors) == 0 {
		c.ContentSelectors = DefaultContentSelectors()
	}
	if c.ListingItemSelector == "" {
		c.ListingItemSelector = "article"
	}
	return warnings, nil
}

// Validate applies crawl defaults; it never fails.
func (c *CrawlConfig) Validate() (warnings []string) {
	if c.BatchSize <= 0 {
		if c.BatchSize < 0 {
			warnings = append(warnings, "crawl.batch_size should be > 0, defaulting to 15")
		}
		c.BatchSize = 15
	}
	if c.ListingTimeout <= 0 {
		c.ListingTimeout = 8 * time.Second
	}
	if c.DetailTimeout <= 0 {
		c.DetailTimeout = 30 * time.Second
	}
	if c.FeedTimeout <= 0 {
		c.FeedTimeout = 30 * time.Second
	}
	if c.RoundDelay < 0 {
		warnings = append(warnings, "crawl.round_delay cannot be negative, setting to 0")
		c.RoundDelay = 0
	} else if c.RoundDelay == 0 {
		c.RoundDelay = 50 * time.Millisecond
	}
	if c.EmptyRoundsLimit <= 0 {
		c.EmptyRoundsLimit = 2
	}
	if c.LockWaitTimeout <= 0 {
		c.LockWaitTimeout = 45 * time.Second
	}
	if c.WatchInterval <= 0 {
		c.WatchInterval = 6 * time.Hour
	} else if c.WatchInterval < time.Minute {
		warnings = append(warnings, "crawl.watch_interval below 1m, raising to 1m")
		c.WatchInterval = time.Minute
	}
	return warnings
}

// Validate checks the host list and applies defaults.
// Host ids must be unique and non-empty, every host needs a domain.
func (c *ExtractionConfig) Validate() (warnings []string, err error) {
	if c.ScreenshotCap <= 0 {
		c.ScreenshotCap = 2
	}
	if len(c.Hosts) == 0 {
		c.Hosts = DefaultHosts()
	}
	seen := make(map[string]bool, len(c.Hosts))
	for i := range c.Hosts {
		h := &c.Hosts[i]
		h.ID = strings.ToLower(strings.TrimSpace(h.ID))
		if h.ID == "" {
			return warnings, fmt.Errorf("%w: extraction.hosts[%d] has no id", utils.ErrConfigValidation, i)
		}
		if seen[h.ID] {
			return warnings, fmt.Errorf("%w: duplicate host id %q", utils.ErrConfigValidation, h.ID)
		}
		seen[h.ID] = true
		if len(h.Domains) == 0 {
			return warnings, fmt.Errorf("%w: host %q has no domains", utils.ErrConfigValidation, h.ID)
		}
		for j, d := range h.Domains {
			h.Domains[j] = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(d)), "www.")
		}
		if h.Label == "" {
			warnings = append(warnings, fmt.Sprintf("host %q has no label, using its id", h.ID))
			h.Label = h.ID
		}
	}
	return warnings, nil
}

func normalizePath(p string) string {
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return p
}

func itoa(n int) string { return strconv.Itoa(n) }
