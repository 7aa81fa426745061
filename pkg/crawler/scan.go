package crawler

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/ps4dex/release-scraper/pkg/models"
	"github.com/ps4dex/release-scraper/pkg/utils"
)

// Scan crawls the catalog and fetches the feed concurrently, then merges them.
// A feed failure is recorded in the result's errors and never fails the scan.
// When neither source yields a listing the scan fails with utils.ErrNoListings,
// unless it was cancelled.
func (c *Crawler) Scan(ctx context.Context, maxListings int) (*models.CrawlResult, error) {
	var (
		res     *models.CrawlResult
		feed    map[string]models.FeedEntry
		feedErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res = c.Crawl(ctx, maxListings)
		return nil
	})
	if c.feed != nil {
		g.Go(func() error {
			feedCtx, cancel := context.WithTimeout(gctx, c.crawlCfg.FeedTimeout)
			defer cancel()
			feed, feedErr = c.feed.FetchFeed(feedCtx)
			return nil
		})
	}
	_ = g.Wait()

	if res.Cancelled {
		return res, nil
	}
	if feedErr != nil {
		c.log.Warnf("Feed fetch failed: %v", feedErr)
		res.Errors = append(res.Errors, utils.NewErrorRecord(c.siteCfg.FeedURL(), feedErr))
	}

	MergeFeed(res, feed)
	if len(res.Games) == 0 {
		return res, fmt.Errorf("%w: crawl and feed returned nothing", utils.ErrNoListings)
	}
	return res, nil
}

// MergeFeed folds feed entries into a crawl result. An empty crawl takes the feed
// as its only source. Otherwise the feed only fills a missing cover or date on
// titles the crawl already found.
func MergeFeed(res *models.CrawlResult, feed map[string]models.FeedEntry) {
	if len(feed) == 0 {
		return
	}
	if len(res.Games) == 0 {
		titles := make([]string, 0, len(feed))
		for title := range feed {
			titles = append(titles, title)
		}
		// newest first, then by title, for a stable order
		sort.Slice(titles, func(i, j int) bool {
			di, dj := feed[titles[i]].Date, feed[titles[j]].Date
			if di != dj {
				return di > dj
			}
			return titles[i] < titles[j]
		})
		for _, title := range titles {
			e := feed[title]
			res.Games[title] = models.NewStub(title, e.URL, e.Cover, e.Date)
		}
		res.Order = titles
		res.GamesFound = len(res.Games)
		return
	}

	for title, e := range feed {
		g, ok := res.Games[title]
		if !ok {
			continue
		}
		if g.Cover == "" && e.Cover != "" {
			g.Cover = e.Cover
		}
		if g.Date == "" && e.Date != "" {
			g.Date = e.Date
		}
	}
}
