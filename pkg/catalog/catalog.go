// Package catalog owns the in-memory listing map and its persistence: loading
// with cache expiry, scans, on-demand detail enrichment, favorites and settings.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ps4dex/release-scraper/pkg/extract"
	"github.com/ps4dex/release-scraper/pkg/keylock"
	"github.com/ps4dex/release-scraper/pkg/models"
	"github.com/ps4dex/release-scraper/pkg/storage"
	"github.com/ps4dex/release-scraper/pkg/utils"
)

// Store keys
const (
	listingPrefix  = "listing:"
	favoritePrefix = "favorite:"
	orderKey       = "catalog:order"
	settingsKey    = "settings"
)

// Scanner runs a full catalog scan
type Scanner interface {
	Scan(ctx context.Context, maxListings int) (*models.CrawlResult, error)
}

// DetailFetcher fetches and extracts one article
type DetailFetcher interface {
	FetchDetail(ctx context.Context, pageURL, title string) (*models.PageExtractionResult, error)
}

// Catalog is safe for concurrent use.
type Catalog struct {
	store      storage.KeyValueStore
	scanner    Scanner
	details    DetailFetcher
	locks      *keylock.Group[models.GameListing]
	knownHosts []string
	log        *logrus.Entry
	now        func() time.Time

	mu        sync.RWMutex
	games     map[string]*models.GameListing
	order     []string
	favorites map[string]bool
	settings  models.Settings

	scanning atomic.Bool
}

// New creates an empty Catalog. Call Load to restore persisted state.
func New(store storage.KeyValueStore, scanner Scanner, details DetailFetcher, knownHosts []string, lockWait time.Duration, log *logrus.Entry) *Catalog {
	return &Catalog{
		store:      store,
		scanner:    scanner,
		details:    details,
		locks:      keylock.New[models.GameListing](lockWait, log.WithField("component", "detail_lock")),
		knownHosts: knownHosts,
		log:        log.WithField("component", "catalog"),
		now:        time.Now,
		games:      make(map[string]*models.GameListing),
		favorites:  make(map[string]bool),
		settings:   models.DefaultSettings(knownHosts),
	}
}

// LoadResult describes what Load restored
type LoadResult struct {
	Listings  int
	Favorites int
	Expired   bool // Cached listings were dropped by the cache TTL
	AgeDays   int  // Age of the newest listing when Expired
}

// Load restores settings, favorites and listings from the store. Listings are
// dropped when the cache TTL is set and the newest listing date is at least
// that many days old.
func (c *Catalog) Load() (LoadResult, error) {
	var res LoadResult

	settings := models.DefaultSettings(c.knownHosts)
	if _, err := c.store.Get(settingsKey, &settings); err != nil {
		c.log.Warnf("Stored settings unreadable, using defaults: %v", err)
		settings = models.DefaultSettings(c.knownHosts)
	}
	settings.Normalize(c.knownHosts)

	favorites := make(map[string]bool)
	err := c.store.ScanPrefix(favoritePrefix, func(key string, _ []byte) error {
		favorites[strings.TrimPrefix(key, favoritePrefix)] = true
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("load favorites: %w", err)
	}

	games := make(map[string]*models.GameListing)
	err = c.store.ScanPrefix(listingPrefix, func(key string, raw []byte) error {
		var g models.GameListing
		if err := json.Unmarshal(raw, &g); err != nil {
			c.log.WithField("key", key).Warnf("Skipping unreadable listing: %v", err)
			return nil
		}
		games[strings.TrimPrefix(key, listingPrefix)] = &g
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("load listings: %w", err)
	}
	var order []string
	if _, err := c.store.Get(orderKey, &order); err != nil {
		c.log.Warnf("Stored order unreadable: %v", err)
	}
	order = reconcileOrder(order, games)

	if age, expired := cacheExpired(games, settings.CacheTTLDays, c.now()); expired {
		c.log.WithFields(logrus.Fields{"age_days": age, "ttl_days": settings.CacheTTLDays}).Info("Cache expired, dropping listings")
		games = make(map[string]*models.GameListing)
		order = nil
		res.Expired = true
		res.AgeDays = age
		if err := c.dropListings(); err != nil {
			return res, err
		}
	}

	c.mu.Lock()
	c.settings = settings
	c.favorites = favorites
	c.games = games
	c.order = order
	c.mu.Unlock()

	res.Listings = len(games)
	res.Favorites = len(favorites)
	c.log.WithFields(logrus.Fields{"listings": res.Listings, "favorites": res.Favorites}).Info("Catalog loaded")
	return res, nil
}

// reconcileOrder keeps stored titles that still exist and appends the rest by title
func reconcileOrder(order []string, games map[string]*models.GameListing) []string {
	seen := make(map[string]bool, len(games))
	out := make([]string, 0, len(games))
	for _, t := range order {
		if _, ok := games[t]; ok && !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	var rest []string
	for t := range games {
		if !seen[t] {
			rest = append(rest, t)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

// cacheExpired reports the age in days of the newest dated listing and whether
// it reaches ttlDays. Undated catalogs never expire.
func cacheExpired(games map[string]*models.GameListing, ttlDays int, now time.Time) (int, bool) {
	if ttlDays <= 0 {
		return 0, false
	}
	newest := ""
	for _, g := range games {
		if g.Date > newest {
			newest = g.Date
		}
	}
	if newest == "" {
		return 0, false
	}
	d, err := time.Parse("2006-01-02", newest)
	if err != nil {
		return 0, false
	}
	age := int(now.Sub(d).Hours() / 24)
	return age, age >= ttlDays
}

// ScanReport is the outcome of Scan
type ScanReport struct {
	Result       *models.CrawlResult
	Duration     time.Duration
	LimitReached bool
	ErrorSummary string // Empty when no fetch failed
}

// Scan runs a full scan and, unless it was cancelled or found nothing, replaces
// the listings with the result. Only one scan runs at a time.
func (c *Catalog) Scan(ctx context.Context) (*ScanReport, error) {
	if !c.scanning.CompareAndSwap(false, true) {
		return nil, utils.ErrScanInProgress
	}
	defer c.scanning.Store(false)

	maxListings := c.Settings().MaxListings
	start := c.now()
	res, err := c.scanner.Scan(ctx, maxListings)
	report := &ScanReport{Result: res, Duration: c.now().Sub(start)}
	if res != nil {
		stats := &utils.ErrorStats{}
		for _, rec := range res.Errors {
			stats.Track(rec)
		}
		report.ErrorSummary = stats.Summary()
	}
	if err != nil {
		c.log.Warnf("Scan failed: %v", err)
		return report, err
	}
	if res.Cancelled {
		c.log.Info("Scan cancelled, keeping previous listings")
		return report, nil
	}
	report.LimitReached = maxListings > 0 && len(res.Games) >= maxListings

	if err := c.persistListings(res.Games, res.Order); err != nil {
		return report, err
	}
	c.mu.Lock()
	c.games = res.Games
	c.order = append([]string(nil), res.Order...)
	c.mu.Unlock()

	logFields := logrus.Fields{"games": len(res.Games), "duration": report.Duration.Round(time.Millisecond)}
	if report.ErrorSummary != "" {
		c.log.WithFields(logFields).Warnf("Scan complete with warnings: %s", report.ErrorSummary)
	} else {
		c.log.WithFields(logFields).Info("Scan complete")
	}
	return report, nil
}

// Scanning reports whether a scan is running
func (c *Catalog) Scanning() bool {
	return c.scanning.Load()
}

func (c *Catalog) persistListings(games map[string]*models.GameListing, order []string) error {
	entries := make(map[string]any, len(games))
	for title, g := range games {
		entries[listingPrefix+title] = g
	}
	if err := c.store.ReplacePrefix(listingPrefix, entries); err != nil {
		return err
	}
	return c.store.Set(orderKey, order)
}

func (c *Catalog) dropListings() error {
	if err := c.store.ReplacePrefix(listingPrefix, nil); err != nil {
		return err
	}
	return c.store.Delete(orderKey)
}

// Get returns a copy of the listing for title
func (c *Catalog) Get(title string) (models.GameListing, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	g, ok := c.games[title]
	if !ok {
		return models.GameListing{}, false
	}
	return *g, true
}

// Details returns the listing for title, fetching and merging its article first
// when it has no links yet or refresh is set. Concurrent requests for the same
// title share one fetch.
func (c *Catalog) Details(ctx context.Context, title string, refresh bool) (models.GameListing, error) {
	g, ok := c.Get(title)
	if !ok {
		return models.GameListing{}, fmt.Errorf("%w: %q", utils.ErrUnknownTitle, title)
	}
	if g.HasLinks() && !refresh {
		return g, nil
	}

	return c.locks.Do(ctx, title, func() (models.GameListing, error) {
		detailLog := c.log.WithField("title", title)
		// Shared by every waiter, so one caller's cancellation must not end it
		data, err := c.details.FetchDetail(context.WithoutCancel(ctx), g.URL, title)
		if err != nil {
			detailLog.Warnf("Detail fetch failed: %v", err)
			return models.GameListing{}, err
		}
		data.Description = extract.CleanDescription(data.Description)

		c.mu.Lock()
		current, ok := c.games[title]
		if !ok {
			// Dropped by a rescan or cache clear while fetching
			c.mu.Unlock()
			return models.GameListing{}, fmt.Errorf("%w: %q", utils.ErrUnknownTitle, title)
		}
		current.Enrich(data)
		snapshot := *current
		c.mu.Unlock()

		if err := c.store.Set(listingPrefix+title, &snapshot); err != nil {
			detailLog.Errorf("Failed to persist enriched listing: %v", err)
		}
		detailLog.WithField("links", snapshot.LinkGroups.Len()).Debug("Listing enriched")
		return snapshot, nil
	})
}

// ListOptions filter and order List results
type ListOptions struct {
	Sort          models.SortOrder // Empty uses the settings default
	FavoritesOnly bool
	Query         string // Case-insensitive substring over title and metadata
	Limit         int    // 0 = all
}

// List returns listing copies filtered and sorted per opts. Date sort is newest
// first with undated listings last; name sort is case-insensitive.
func (c *Catalog) List(opts ListOptions) []models.GameListing {
	c.mu.RLock()
	sortBy := opts.Sort
	if !sortBy.IsValid() {
		sortBy = c.settings.DefaultSort
	}
	query := strings.ToLower(strings.TrimSpace(opts.Query))
	out := make([]models.GameListing, 0, len(c.order))
	for _, title := range c.order {
		g := c.games[title]
		if g == nil {
			continue
		}
		if opts.FavoritesOnly && !c.favorites[title] {
			continue
		}
		if query != "" && !strings.Contains(searchText(g), query) {
			continue
		}
		out = append(out, *g)
	}
	c.mu.RUnlock()

	switch sortBy {
	case models.SortByName:
		sort.SliceStable(out, func(i, j int) bool {
			return strings.ToLower(out[i].Title) < strings.ToLower(out[j].Title)
		})
	default:
		sort.SliceStable(out, func(i, j int) bool {
			return sortDate(out[i].Date) > sortDate(out[j].Date)
		})
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out
}

func sortDate(d string) string {
	if d == "" {
		return "1970-01-01"
	}
	return d
}

func searchText(g *models.GameListing) string {
	return strings.ToLower(strings.Join([]string{
		g.Title, g.Voice, g.Subtitles, g.Notes, g.Size, g.Firmware, g.ScreenLanguages, g.Guide,
	}, " "))
}

// Len returns the number of listings
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.games)
}

// ToggleFavorite flips title's favorite flag and returns the new state.
// Favorites are kept by title and survive rescans.
func (c *Catalog) ToggleFavorite(title string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := favoritePrefix + title
	if c.favorites[title] {
		if err := c.store.Delete(key); err != nil {
			return true, err
		}
		delete(c.favorites, title)
		return false, nil
	}
	if err := c.store.Set(key, true); err != nil {
		return false, err
	}
	c.favorites[title] = true
	return true, nil
}

// IsFavorite reports whether title is a favorite
func (c *Catalog) IsFavorite(title string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.favorites[title]
}

// Favorites returns favorite titles sorted
func (c *Catalog) Favorites() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.favorites))
	for t := range c.favorites {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Settings returns a copy of the current settings
func (c *Catalog) Settings() models.Settings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.settings
	s.HostDisplayOrder = append([]string(nil), c.settings.HostDisplayOrder...)
	return s
}

// UpdateSettings normalizes and persists s, returning the stored value
func (c *Catalog) UpdateSettings(s models.Settings) (models.Settings, error) {
	s.Normalize(c.knownHosts)
	if err := c.store.Set(settingsKey, s); err != nil {
		return c.Settings(), err
	}
	c.mu.Lock()
	c.settings = s
	c.mu.Unlock()
	c.log.WithFields(logrus.Fields{"max_listings": s.MaxListings, "cache_ttl_days": s.CacheTTLDays}).Info("Settings updated")
	return s, nil
}

// ClearCache removes every listing and favorite. Settings are kept.
func (c *Catalog) ClearCache() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.dropListings(); err != nil {
		return err
	}
	if err := c.store.ReplacePrefix(favoritePrefix, nil); err != nil {
		return err
	}
	c.games = make(map[string]*models.GameListing)
	c.order = nil
	c.favorites = make(map[string]bool)
	c.log.Info("Cache cleared")
	return nil
}
