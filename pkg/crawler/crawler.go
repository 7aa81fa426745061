// Package crawler walks the paginated catalog in concurrent rounds and merges
// the result with the site's feed.
package crawler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ps4dex/release-scraper/pkg/config"
	"github.com/ps4dex/release-scraper/pkg/models"
	"github.com/ps4dex/release-scraper/pkg/site"
	"github.com/ps4dex/release-scraper/pkg/utils"
)

// PageFetcher fetches one catalog listing page
type PageFetcher interface {
	FetchListingPage(ctx context.Context, pageURL string, timeout time.Duration) (site.ListingPage, error)
}

// FeedFetcher fetches the recent-entries feed keyed by title
type FeedFetcher interface {
	FetchFeed(ctx context.Context) (map[string]models.FeedEntry, error)
}

// Progress is a snapshot of a running crawl
type Progress struct {
	PagesScanned int  `json:"pagesScanned"`
	GamesFound   int  `json:"gamesFound"`
	IsRunning    bool `json:"isRunning"`
}

// Crawler runs catalog crawls. A Crawler may be reused but runs one crawl at a time.
type Crawler struct {
	pages    PageFetcher
	feed     FeedFetcher
	siteCfg  config.SiteConfig
	crawlCfg config.CrawlConfig
	log      *logrus.Entry

	pagesScanned atomic.Int64
	gamesFound   atomic.Int64
	running      atomic.Bool
}

// New creates a Crawler. feed may be nil, in which case no feed merge happens.
func New(pages PageFetcher, feed FeedFetcher, siteCfg config.SiteConfig, crawlCfg config.CrawlConfig, log *logrus.Entry) *Crawler {
	return &Crawler{
		pages:    pages,
		feed:     feed,
		siteCfg:  siteCfg,
		crawlCfg: crawlCfg,
		log:      log.WithField("component", "crawler"),
	}
}

// GetProgress returns the counters of the current or last crawl
func (c *Crawler) GetProgress() Progress {
	return Progress{
		PagesScanned: int(c.pagesScanned.Load()),
		GamesFound:   int(c.gamesFound.Load()),
		IsRunning:    c.running.Load(),
	}
}

type pageOutcome struct {
	url  string
	page site.ListingPage
	err  error
}

// Crawl walks listing pages from page 1 in rounds of BatchSize concurrent fetches.
// Every fetch of a round settles before the round is evaluated. The walk stops at
// the first end-of-list page, after EmptyRoundsLimit rounds without new titles,
// or as soon as maxListings titles are known (0 means unbounded).
// The first occurrence of a title wins.
//
// Cancelling ctx stops the walk at the next check; fetches already in flight
// finish on their own timeout and their results are discarded.
func (c *Crawler) Crawl(ctx context.Context, maxListings int) *models.CrawlResult {
	c.running.Store(true)
	defer c.running.Store(false)
	c.pagesScanned.Store(0)
	c.gamesFound.Store(0)

	res := &models.CrawlResult{Games: make(map[string]*models.GameListing), Errors: []models.ErrorRecord{}}
	batch := c.crawlCfg.BatchSize
	emptyRounds := 0
	start := time.Now()

	finish := func(reason string) *models.CrawlResult {
		res.PagesScanned = int(c.pagesScanned.Load())
		res.GamesFound = len(res.Games)
		c.log.WithFields(logrus.Fields{
			"reason":   reason,
			"games":    res.GamesFound,
			"pages":    res.PagesScanned,
			"errors":   len(res.Errors),
			"duration": time.Since(start).Round(time.Millisecond),
		}).Info("Catalog crawl finished")
		return res
	}

	for page := 1; ; page += batch {
		if ctx.Err() != nil {
			res.Cancelled = true
			return finish("cancelled")
		}

		outcomes := c.fetchRound(ctx, page, batch)
		c.pagesScanned.Add(int64(batch))
		if ctx.Err() != nil {
			res.Cancelled = true
			return finish("cancelled")
		}

		added := 0
		hitEnd := false
		for _, o := range outcomes {
			if ctx.Err() != nil {
				res.Cancelled = true
				return finish("cancelled")
			}
			if o.err != nil {
				rec := utils.NewErrorRecord(o.url, o.err)
				res.Errors = append(res.Errors, rec)
				c.log.WithField("url", o.url).Warnf("Listing page failed: %v", o.err)
				continue
			}
			if o.page.EndOfList {
				hitEnd = true
				continue
			}
			for _, stub := range o.page.Games {
				if maxListings > 0 && len(res.Games) >= maxListings {
					return finish("limit reached")
				}
				if _, exists := res.Games[stub.Title]; exists {
					continue
				}
				res.Games[stub.Title] = models.NewStub(stub.Title, stub.URL, stub.Cover, stub.Date)
				res.Order = append(res.Order, stub.Title)
				c.gamesFound.Add(1)
				added++
			}
		}

		roundLog := c.log.WithFields(logrus.Fields{"first_page": page, "new": added, "total": len(res.Games)})
		roundLog.Debug("Round complete")

		if maxListings > 0 && len(res.Games) >= maxListings {
			return finish("limit reached")
		}
		if hitEnd {
			res.HitEnd = true
			return finish("end of list")
		}
		if added == 0 {
			emptyRounds++
			if emptyRounds >= c.crawlCfg.EmptyRoundsLimit {
				return finish("empty rounds")
			}
		} else {
			emptyRounds = 0
		}

		if !sleepCtx(ctx, c.crawlCfg.RoundDelay) {
			res.Cancelled = true
			return finish("cancelled")
		}
	}
}

// fetchRound fetches pages [first, first+n) concurrently and waits for all of them.
// Fetches run detached from ctx's cancellation, bounded by the listing timeout.
func (c *Crawler) fetchRound(ctx context.Context, first, n int) []pageOutcome {
	outcomes := make([]pageOutcome, n)
	fetchCtx := context.WithoutCancel(ctx)

	var g errgroup.Group
	for i := 0; i < n; i++ {
		pageURL := c.siteCfg.CategoryURL(first + i)
		g.Go(func() error {
			page, err := c.pages.FetchListingPage(fetchCtx, pageURL, c.crawlCfg.ListingTimeout)
			outcomes[i] = pageOutcome{url: pageURL, page: page, err: err}
			return nil // one failed page never aborts the round
		})
	}
	_ = g.Wait()
	return outcomes
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
