// Package site implements the HTTP collaborators of the catalog: listing pages,
// the RSS feed and article details.
package site

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ps4dex/release-scraper/pkg/config"
	"github.com/ps4dex/release-scraper/pkg/extract"
	"github.com/ps4dex/release-scraper/pkg/fetch"
	"github.com/ps4dex/release-scraper/pkg/hosts"
	"github.com/ps4dex/release-scraper/pkg/models"
	"github.com/ps4dex/release-scraper/pkg/utils"
)

// ListingPage is one fetched catalog page. EndOfList is set when the page
// does not exist (HTTP 404), which is the site's only end-of-catalog signal.
type ListingPage struct {
	Games     []models.ListingStub
	EndOfList bool
}

// Client fetches site pages through the shared fetcher, honouring the per-host
// semaphore, rate limiter and, when enabled, robots.txt.
type Client struct {
	fetcher   *fetch.Fetcher
	limiter   *fetch.RateLimiter
	sem       *fetch.HostSemaphorePool
	robots    *fetch.RobotsHandler // nil when robots.txt is ignored
	extractor *extract.Extractor
	siteCfg   config.SiteConfig
	crawlCfg  config.CrawlConfig
	userAgent string
	log       *logrus.Entry
}

// NewClient wires a Client from validated configuration.
func NewClient(cfg *config.AppConfig, fetcher *fetch.Fetcher, limiter *fetch.RateLimiter, sem *fetch.HostSemaphorePool, extractor *extract.Extractor, log *logrus.Entry) *Client {
	ua := config.GetEffectiveUserAgent(*cfg)
	c := &Client{
		fetcher:   fetcher,
		limiter:   limiter,
		sem:       sem,
		extractor: extractor,
		siteCfg:   cfg.Site,
		crawlCfg:  cfg.Crawl,
		userAgent: ua,
		log:       log.WithField("component", "site_client"),
	}
	if cfg.Site.RespectRobots {
		c.robots = fetch.NewRobotsHandler(fetcher, ua, log)
	}
	return c
}

// FetchListingPage fetches and parses one catalog page within timeout.
func (c *Client) FetchListingPage(ctx context.Context, pageURL string, timeout time.Duration) (ListingPage, error) {
	raw, err := c.get(ctx, pageURL, timeout)
	if err != nil {
		var statusErr *utils.HTTPStatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			c.log.WithField("url", pageURL).Debug("Listing page not found, end of catalog")
			return ListingPage{EndOfList: true}, nil
		}
		return ListingPage{}, err
	}

	games, err := parseListing(raw, pageURL, c.siteCfg.ListingItemSelector)
	if err != nil {
		return ListingPage{}, err
	}
	c.log.WithFields(logrus.Fields{"url": pageURL, "games": len(games)}).Debug("Listing page parsed")
	return ListingPage{Games: games}, nil
}

// FetchFeed fetches the site's RSS feed keyed by item title.
func (c *Client) FetchFeed(ctx context.Context) (map[string]models.FeedEntry, error) {
	raw, err := c.get(ctx, c.siteCfg.FeedURL(), c.crawlCfg.FeedTimeout)
	if err != nil {
		return nil, err
	}
	entries, err := parseFeed(raw)
	if err != nil {
		return nil, err
	}
	c.log.WithField("entries", len(entries)).Debug("Feed parsed")
	return entries, nil
}

// FetchDetail fetches one article and runs full extraction on it.
func (c *Client) FetchDetail(ctx context.Context, pageURL, title string) (*models.PageExtractionResult, error) {
	raw, err := c.get(ctx, pageURL, c.crawlCfg.DetailTimeout)
	if err != nil {
		return nil, err
	}
	res, err := c.extractor.ExtractHTML(raw, pageURL)
	if err != nil {
		return nil, err
	}
	c.log.WithFields(logrus.Fields{"title": title, "links": res.LinkGroups.Len()}).Info("Article details extracted")
	return res, nil
}

// get performs one politeness-gated GET bounded by timeout (0 means no extra bound).
func (c *Client) get(ctx context.Context, rawURL string, timeout time.Duration) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid URL %q", utils.ErrParsing, rawURL)
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if c.robots != nil && !c.robots.Allowed(ctx, u) {
		return nil, fmt.Errorf("%w: %s", utils.ErrRobotsDisallowed, rawURL)
	}

	host := u.Hostname()
	if err := c.sem.Acquire(ctx, host); err != nil {
		return nil, err
	}
	defer c.sem.Release(host)

	if err := c.limiter.Wait(ctx, host); err != nil {
		return nil, err
	}
	body, err := c.fetcher.Get(ctx, rawURL, c.userAgent)
	c.limiter.UpdateLastRequestTime(host)
	return body, err
}

// NewFromConfig builds a Client and its whole fetch stack from validated configuration.
func NewFromConfig(cfg *config.AppConfig, log *logrus.Entry) *Client {
	httpClient := fetch.NewClient(cfg.HTTPClientSettings, log)
	fetcher := fetch.NewFetcher(httpClient, cfg, log)
	limiter := fetch.NewRateLimiter(cfg.DefaultDelayPerHost, log)
	sem := fetch.NewHostSemaphorePool(cfg.MaxRequestsPerHost, log)

	ids := hosts.NewIdentifier(cfg.Extraction.Hosts)
	extractor := extract.NewExtractor(ids, ids.NameTokens(cfg.Extraction.HostNameTokens),
		cfg.Site.ContentSelectors, cfg.Extraction.ScreenshotCap, log.WithField("component", "extractor"))

	return NewClient(cfg, fetcher, limiter, sem, extractor, log)
}
