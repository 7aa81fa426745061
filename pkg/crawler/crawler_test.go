package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ps4dex/release-scraper/pkg/config"
	"github.com/ps4dex/release-scraper/pkg/models"
	"github.com/ps4dex/release-scraper/pkg/site"
	"github.com/ps4dex/release-scraper/pkg/utils"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

const testBase = "https://site.example"

func testConfigs(batch int) (config.SiteConfig, config.CrawlConfig) {
	siteCfg := config.SiteConfig{BaseURL: testBase}
	_, err := siteCfg.Validate()
	if err != nil {
		panic(err)
	}
	crawlCfg := config.CrawlConfig{BatchSize: batch, RoundDelay: time.Millisecond}
	crawlCfg.Validate()
	return siteCfg, crawlCfg
}

// fakeSite serves lastPage pages of perPage titles each; pages beyond lastPage are 404.
type fakeSite struct {
	lastPage int
	perPage  int
	title    func(page, i int) string
	fail     map[int]error
	fetched  atomic.Int32
	onFetch  func(page int)
	mu       sync.Mutex
	seen     []int
}

func pageNumber(pageURL string) int {
	idx := strings.Index(pageURL, "/page/")
	if idx < 0 {
		return 1
	}
	n, _ := strconv.Atoi(strings.Trim(pageURL[idx+len("/page/"):], "/"))
	return n
}

func (f *fakeSite) FetchListingPage(_ context.Context, pageURL string, _ time.Duration) (site.ListingPage, error) {
	f.fetched.Add(1)
	n := pageNumber(pageURL)
	f.mu.Lock()
	f.seen = append(f.seen, n)
	f.mu.Unlock()
	if f.onFetch != nil {
		f.onFetch(n)
	}
	if err := f.fail[n]; err != nil {
		return site.ListingPage{}, err
	}
	if n > f.lastPage {
		return site.ListingPage{EndOfList: true}, nil
	}
	games := make([]models.ListingStub, f.perPage)
	for i := range games {
		title := fmt.Sprintf("Game %d-%d", n, i)
		if f.title != nil {
			title = f.title(n, i)
		}
		games[i] = models.ListingStub{Title: title, URL: testBase + "/" + strconv.Itoa(n) + "/" + strconv.Itoa(i) + "/"}
	}
	return site.ListingPage{Games: games}, nil
}

type fakeFeed struct {
	entries map[string]models.FeedEntry
	err     error
}

func (f *fakeFeed) FetchFeed(context.Context) (map[string]models.FeedEntry, error) {
	return f.entries, f.err
}

func TestCrawl_StopsAtEndOfList(t *testing.T) {
	siteCfg, crawlCfg := testConfigs(5)
	fs := &fakeSite{lastPage: 7, perPage: 3}
	c := New(fs, nil, siteCfg, crawlCfg, testLogger())

	res := c.Crawl(context.Background(), 0)

	assert.True(t, res.HitEnd)
	assert.False(t, res.Cancelled)
	assert.Len(t, res.Games, 21)
	assert.Equal(t, 21, res.GamesFound)
	assert.Equal(t, 10, res.PagesScanned, "two rounds of five")
	assert.Equal(t, int32(10), fs.fetched.Load(), "no round after the 404")
	assert.Equal(t, "Game 1-0", res.Order[0])
	assert.Empty(t, res.Errors)

	stub := res.Games["Game 1-0"]
	require.NotNil(t, stub)
	assert.NotNil(t, stub.Akira)
	assert.NotNil(t, stub.Screenshots)
	assert.Nil(t, stub.CUSA)
}

func TestCrawl_MaxListingsStopsMidRound(t *testing.T) {
	siteCfg, crawlCfg := testConfigs(15)
	fs := &fakeSite{lastPage: 100, perPage: 10}
	c := New(fs, nil, siteCfg, crawlCfg, testLogger())

	res := c.Crawl(context.Background(), 5)

	assert.Len(t, res.Games, 5)
	assert.Equal(t, []string{"Game 1-0", "Game 1-1", "Game 1-2", "Game 1-3", "Game 1-4"}, res.Order)
	assert.Equal(t, int32(15), fs.fetched.Load(), "only the first round is fetched")
	assert.False(t, res.HitEnd)
}

func TestCrawl_FirstTitleWins(t *testing.T) {
	siteCfg, crawlCfg := testConfigs(3)
	fs := &fakeSite{lastPage: 3, perPage: 2, title: func(page, i int) string {
		if i == 0 {
			return "Shared Title"
		}
		return fmt.Sprintf("Game %d", page)
	}}
	c := New(fs, nil, siteCfg, crawlCfg, testLogger())

	res := c.Crawl(context.Background(), 0)

	assert.Len(t, res.Games, 4)
	assert.Equal(t, testBase+"/1/0/", res.Games["Shared Title"].URL)
}

func TestCrawl_EmptyRoundsStop(t *testing.T) {
	siteCfg, crawlCfg := testConfigs(2)
	fs := &fakeSite{lastPage: 1000, perPage: 1, title: func(int, int) string { return "Same" }}
	c := New(fs, nil, siteCfg, crawlCfg, testLogger())

	res := c.Crawl(context.Background(), 0)

	assert.Len(t, res.Games, 1)
	assert.Equal(t, int32(6), fs.fetched.Load(), "one productive round then two empty ones")
	assert.False(t, res.HitEnd)
}

func TestCrawl_ErrorsRecordedAndRoundContinues(t *testing.T) {
	siteCfg, crawlCfg := testConfigs(3)
	fs := &fakeSite{lastPage: 3, perPage: 1, fail: map[int]error{
		2: utils.NewHTTPStatusError(503, "503 Service Unavailable"),
		3: fmt.Errorf("fetch: %w", context.DeadlineExceeded),
	}}
	c := New(fs, nil, siteCfg, crawlCfg, testLogger())

	res := c.Crawl(context.Background(), 0)

	assert.Len(t, res.Games, 1)
	require.Len(t, res.Errors, 2)
	stats := &utils.ErrorStats{}
	for _, rec := range res.Errors {
		stats.Track(rec)
	}
	assert.Equal(t, 1, stats.ServerErrors)
	assert.Equal(t, 1, stats.Timeouts)
	assert.True(t, res.HitEnd)
}

func TestCrawl_CancellationDiscardsInFlightRound(t *testing.T) {
	siteCfg, crawlCfg := testConfigs(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fs := &fakeSite{lastPage: 100, perPage: 1}
	fs.onFetch = func(page int) {
		if page == 5 {
			cancel()
		}
	}
	c := New(fs, nil, siteCfg, crawlCfg, testLogger())

	res := c.Crawl(ctx, 0)

	assert.True(t, res.Cancelled)
	assert.Len(t, res.Games, 4, "second round results are discarded")
	assert.Equal(t, int32(8), fs.fetched.Load())
	assert.False(t, c.GetProgress().IsRunning)
}

func TestCrawl_AlreadyCancelled(t *testing.T) {
	siteCfg, crawlCfg := testConfigs(4)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fs := &fakeSite{lastPage: 100, perPage: 1}

	res := New(fs, nil, siteCfg, crawlCfg, testLogger()).Crawl(ctx, 0)

	assert.True(t, res.Cancelled)
	assert.Empty(t, res.Games)
	assert.Zero(t, fs.fetched.Load())
}

func TestScan_FeedBackfillsOnly(t *testing.T) {
	siteCfg, crawlCfg := testConfigs(2)
	fs := &fakeSite{lastPage: 1, perPage: 2}
	feed := &fakeFeed{entries: map[string]models.FeedEntry{
		"Game 1-0": {Cover: "https://cdn/1.jpg", Date: "2024-01-01"},
		"New One":  {Cover: "https://cdn/new.jpg", Date: "2024-02-02", URL: testBase + "/new/"},
	}}
	c := New(fs, feed, siteCfg, crawlCfg, testLogger())

	res, err := c.Scan(context.Background(), 0)
	require.NoError(t, err)

	assert.Len(t, res.Games, 2)
	assert.NotContains(t, res.Games, "New One")
	assert.Equal(t, "https://cdn/1.jpg", res.Games["Game 1-0"].Cover)
	assert.Equal(t, "2024-01-01", res.Games["Game 1-0"].Date)
	assert.Empty(t, res.Games["Game 1-1"].Cover)
}

func TestMergeFeed_NeverOverwrites(t *testing.T) {
	res := &models.CrawlResult{Games: map[string]*models.GameListing{
		"A": models.NewStub("A", "u", "https://cdn/a.jpg", "2023-05-05"),
	}}
	MergeFeed(res, map[string]models.FeedEntry{"A": {Cover: "https://cdn/other.jpg", Date: "2024-01-01"}})

	assert.Equal(t, "https://cdn/a.jpg", res.Games["A"].Cover)
	assert.Equal(t, "2023-05-05", res.Games["A"].Date)
}

func TestScan_FeedIsSoleSourceWhenCrawlEmpty(t *testing.T) {
	siteCfg, crawlCfg := testConfigs(2)
	fs := &fakeSite{lastPage: 0}
	feed := &fakeFeed{entries: map[string]models.FeedEntry{
		"Older": {Date: "2024-01-01", URL: testBase + "/older/"},
		"Newer": {Cover: "https://cdn/n.jpg", Date: "2024-03-01", URL: testBase + "/newer/"},
	}}
	c := New(fs, feed, siteCfg, crawlCfg, testLogger())

	res, err := c.Scan(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, []string{"Newer", "Older"}, res.Order)
	assert.Equal(t, testBase+"/newer/", res.Games["Newer"].URL)
	assert.Equal(t, "https://cdn/n.jpg", res.Games["Newer"].Cover)
	assert.Equal(t, 2, res.GamesFound)
}

func TestScan_NoListings(t *testing.T) {
	siteCfg, crawlCfg := testConfigs(2)
	fs := &fakeSite{lastPage: 0}
	feed := &fakeFeed{err: errors.New("feed down")}
	c := New(fs, feed, siteCfg, crawlCfg, testLogger())

	res, err := c.Scan(context.Background(), 0)

	assert.ErrorIs(t, err, utils.ErrNoListings)
	require.NotNil(t, res)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, siteCfg.FeedURL(), res.Errors[0].URL)
}
