package config

import "time"

// SiteConfig describes the content site being scraped
type SiteConfig struct {
	BaseURL             string   `yaml:"base_url"`
	CategoryPath        string   `yaml:"category_path"`
	FeedPath            string   `yaml:"feed_path"`
	ContentSelectors    []string `yaml:"content_selectors,omitempty"` // Tried in order to find the article body
	ListingItemSelector string   `yaml:"listing_item_selector,omitempty"`
	UserAgent           string   `yaml:"user_agent,omitempty"`
	RespectRobots       bool     `yaml:"respect_robots,omitempty"`
}

// CrawlConfig tunes the paginated catalog crawl and detail extraction
type CrawlConfig struct {
	BatchSize        int           `yaml:"batch_size"`
	ListingTimeout   time.Duration `yaml:"listing_timeout,omitempty"`
	DetailTimeout    time.Duration `yaml:"detail_timeout,omitempty"`
	FeedTimeout      time.Duration `yaml:"feed_timeout,omitempty"`
	RoundDelay       time.Duration `yaml:"round_delay,omitempty"`
	EmptyRoundsLimit int           `yaml:"empty_rounds_limit,omitempty"`
	LockWaitTimeout  time.Duration `yaml:"lock_wait_timeout,omitempty"`
	WatchInterval    time.Duration `yaml:"watch_interval,omitempty"`
}

// HostConfig is one known file-hosting provider
type HostConfig struct {
	ID      string   `yaml:"id"`
	Label   string   `yaml:"label"`
	Domains []string `yaml:"domains"`
}

// ExtractionConfig controls article parsing
type ExtractionConfig struct {
	ScreenshotCap  int          `yaml:"screenshot_cap,omitempty"`
	Hosts          []HostConfig `yaml:"hosts,omitempty"`
	HostNameTokens []string     `yaml:"host_name_tokens,omitempty"` // Extra tokens stripped from pack labels
}

// ServerConfig holds listen settings for the HTTP API
type ServerConfig struct {
	Listen string `yaml:"listen,omitempty"`
}

// AppConfig holds the global application configuration
type AppConfig struct {
	DefaultUserAgent    string           `yaml:"default_user_agent"`
	DefaultDelayPerHost time.Duration    `yaml:"default_delay_per_host"`
	MaxRequestsPerHost  int              `yaml:"max_requests_per_host"`
	StateDir            string           `yaml:"state_dir"`
	MaxRetries          int              `yaml:"max_retries,omitempty"`
	InitialRetryDelay   time.Duration    `yaml:"initial_retry_delay,omitempty"`
	MaxRetryDelay       time.Duration    `yaml:"max_retry_delay,omitempty"`
	HTTPClientSettings  HTTPClientConfig `yaml:"http_client_settings,omitempty"`
	Site                SiteConfig       `yaml:"site"`
	Crawl               CrawlConfig      `yaml:"crawl"`
	Extraction          ExtractionConfig `yaml:"extraction"`
	Server              ServerConfig     `yaml:"server,omitempty"`
}

// HTTPClientConfig holds settings for the shared HTTP client
type HTTPClientConfig struct {
	Timeout               time.Duration `yaml:"timeout,omitempty"`                 // Overall request timeout
	MaxIdleConns          int           `yaml:"max_idle_conns,omitempty"`          // Max total idle connections
	MaxIdleConnsPerHost   int           `yaml:"max_idle_conns_per_host,omitempty"` // Max idle connections per host
	IdleConnTimeout       time.Duration `yaml:"idle_conn_timeout,omitempty"`       // Timeout for idle connections
	TLSHandshakeTimeout   time.Duration `yaml:"tls_handshake_timeout,omitempty"`   // Timeout for TLS handshake
	ExpectContinueTimeout time.Duration `yaml:"expect_continue_timeout,omitempty"` // Timeout for 100-continue
	ForceAttemptHTTP2     *bool         `yaml:"force_attempt_http2,omitempty"`     // nil=default, true=force, false=disable
	DialerTimeout         time.Duration `yaml:"dialer_timeout,omitempty"`          // Connection dial timeout
	DialerKeepAlive       time.Duration `yaml:"dialer_keep_alive,omitempty"`       // TCP keep-alive interval
}

// DefaultHosts is the provider list used when the config names none
func DefaultHosts() []HostConfig {
	return []HostConfig{
		{ID: "akira", Label: "Akira", Domains: []string{"akirabox.com", "akirabox.to"}},
		{ID: "viking", Label: "Viking", Domains: []string{"vikingfile.com"}},
		{ID: "onefichier", Label: "1Fichier", Domains: []string{"1fichier.com"}},
		{ID: "letsupload", Label: "LetsUpload", Domains: []string{"letsupload.io", "letsupload.org"}},
		{ID: "mediafire", Label: "Mediafire", Domains: []string{"mediafire.com"}},
		{ID: "gofile", Label: "Gofile", Domains: []string{"gofile.io"}},
		{ID: "rootz", Label: "Rootz", Domains: []string{"rootz.so"}},
		{ID: "viki", Label: "Viki", Domains: []string{"viki.to"}},
	}
}

// DefaultContentSelectors locate the article body on WordPress-style pages
func DefaultContentSelectors() []string {
	return []string{".entry-content", ".post-content", "article .content", "article"}
}

// HostIDs returns the configured provider ids in order
func (c ExtractionConfig) HostIDs() []string {
	ids := make([]string, 0, len(c.Hosts))
	for _, h := range c.Hosts {
		ids = append(ids, h.ID)
	}
	return ids
}

// HostLabel returns the display label for a provider id, "Other" when unknown
func (c ExtractionConfig) HostLabel(id string) string {
	for _, h := range c.Hosts {
		if h.ID == id {
			return h.Label
		}
	}
	return "Other"
}

// CategoryURL returns the absolute URL of listing page n (1-based)
func (c SiteConfig) CategoryURL(page int) string {
	if page <= 1 {
		return c.BaseURL + c.CategoryPath
	}
	return c.BaseURL + c.CategoryPath + "page/" + itoa(page) + "/"
}

// FeedURL returns the absolute URL of the RSS feed
func (c SiteConfig) FeedURL() string {
	return c.BaseURL + c.FeedPath
}

// GetEffectiveUserAgent prefers the site user agent over the global default
func GetEffectiveUserAgent(appCfg AppConfig) string {
	if appCfg.Site.UserAgent != "" {
		return appCfg.Site.UserAgent
	}
	return appCfg.DefaultUserAgent
}
