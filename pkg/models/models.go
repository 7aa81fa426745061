package models

import (
	"sort"
	"strconv"
	"strings"
)

// DownloadLink is one classified download found in an article
type DownloadLink struct {
	Link              string   `json:"link"`              // Absolute URL, dedup key within a page
	Host              string   `json:"host"`              // Resolved provider id (e.g. "akira")
	Type              LinkType `json:"type"`              // Never empty, defaults to game
	Version           string   `json:"version"`           // Raw display text around the link
	ExtractedVersion  string   `json:"extractedVersion"`  // Normalized dotted version or empty
	ExtractedFirmware string   `json:"extractedFirmware"` // Normalized firmware or empty
	PackDescription   string   `json:"packDescription"`   // Cleaned pack label or empty
}

// LinkGroups holds download links bucketed by host group, each list in document order
type LinkGroups struct {
	Akira      []DownloadLink `json:"akira"`
	Viking     []DownloadLink `json:"viking"`
	OneFichier []DownloadLink `json:"onefichier"`
	Other      []DownloadLink `json:"other"`
}

// Add appends link to the group named by bucket
func (g *LinkGroups) Add(bucket HostBucket, link DownloadLink) {
	switch bucket {
	case BucketAkira:
		g.Akira = append(g.Akira, link)
	case BucketViking:
		g.Viking = append(g.Viking, link)
	case BucketOneFichier:
		g.OneFichier = append(g.OneFichier, link)
	default:
		g.Other = append(g.Other, link)
	}
}

// All returns every link across groups in bucket order
func (g LinkGroups) All() []DownloadLink {
	all := make([]DownloadLink, 0, g.Len())
	all = append(all, g.Akira...)
	all = append(all, g.Viking...)
	all = append(all, g.OneFichier...)
	all = append(all, g.Other...)
	return all
}

// Len returns the total number of links across groups
func (g LinkGroups) Len() int {
	return len(g.Akira) + len(g.Viking) + len(g.OneFichier) + len(g.Other)
}

// GameListing is a catalog entry keyed by its title.
// Stubs from the catalog crawl have empty link groups and no screenshots.
type GameListing struct {
	Title           string   `json:"title"`
	URL             string   `json:"url"`
	Cover           string   `json:"cover"`
	Date            string   `json:"date"` // ISO date (YYYY-MM-DD) or empty
	Description     string   `json:"description"`
	Size            string   `json:"size"`
	Voice           string   `json:"voice"`
	Subtitles       string   `json:"subtitles"`
	ScreenLanguages string   `json:"screenLanguages"`
	Notes           string   `json:"notes"`
	Firmware        string   `json:"firmware"`
	Password        string   `json:"password"`
	Guide           string   `json:"guide"`
	CUSA            *string  `json:"cusa"`
	Screenshots     []string `json:"screenshots"`
	LinkGroups
}

// NewStub builds an unenriched listing from discovery data
func NewStub(title, url, cover, date string) *GameListing {
	return &GameListing{
		Title:       title,
		URL:         url,
		Cover:       cover,
		Date:        date,
		Screenshots: []string{},
		LinkGroups: LinkGroups{
			Akira:      []DownloadLink{},
			Viking:     []DownloadLink{},
			OneFichier: []DownloadLink{},
			Other:      []DownloadLink{},
		},
	}
}

// HasLinks reports whether detail extraction has produced any download link
func (g *GameListing) HasLinks() bool {
	return g.LinkGroups.Len() > 0
}

// PageExtractionResult is the enrichment data produced for one article page
type PageExtractionResult struct {
	Title           string   `json:"title"`
	Cover           string   `json:"cover"`
	Date            string   `json:"date"`
	Description     string   `json:"description"`
	Size            string   `json:"size"`
	Voice           string   `json:"voice"`
	Subtitles       string   `json:"subtitles"`
	ScreenLanguages string   `json:"screenLanguages"`
	Notes           string   `json:"notes"`
	Firmware        string   `json:"firmware"`
	Password        string   `json:"password"`
	Guide           string   `json:"guide"`
	CUSA            *string  `json:"cusa"`
	Screenshots     []string `json:"screenshots"`
	LinkGroups
}

// Enrich merges an extraction result into the listing in place.
// Cover and date keep their previous value when the page has none; every other field is overwritten.
func (g *GameListing) Enrich(d *PageExtractionResult) {
	g.LinkGroups = LinkGroups{
		Akira:      nonNil(d.Akira),
		Viking:     nonNil(d.Viking),
		OneFichier: nonNil(d.OneFichier),
		Other:      nonNil(d.Other),
	}
	if d.Cover != "" {
		g.Cover = d.Cover
	}
	if d.Date != "" {
		g.Date = d.Date
	}
	g.Voice = d.Voice
	g.Subtitles = d.Subtitles
	g.Notes = d.Notes
	g.Size = d.Size
	g.Firmware = d.Firmware
	g.Description = d.Description
	g.Screenshots = d.Screenshots
	if g.Screenshots == nil {
		g.Screenshots = []string{}
	}
	g.Password = d.Password
	g.ScreenLanguages = d.ScreenLanguages
	g.Guide = d.Guide
	g.CUSA = d.CUSA
}

func nonNil(links []DownloadLink) []DownloadLink {
	if links == nil {
		return []DownloadLink{}
	}
	return links
}

// BackportFirmwares returns the distinct major firmware numbers targeted by backport links, ascending
func BackportFirmwares(g *GameListing) []int {
	seen := make(map[int]bool)
	for _, link := range g.All() {
		if link.Type != LinkTypeBackport {
			continue
		}
		if major, ok := BackportMajor(link); ok {
			seen[major] = true
		}
	}
	out := make([]int, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

// BackportMajor returns the major firmware number of a backport link, if plausible (< 20)
func BackportMajor(link DownloadLink) (int, bool) {
	fw := link.ExtractedFirmware
	if fw == "" {
		fw = link.ExtractedVersion
	}
	if fw == "" {
		return 0, false
	}
	if i := strings.IndexAny(fw, "._"); i >= 0 {
		fw = fw[:i]
	}
	n, err := strconv.Atoi(fw)
	if err != nil || n >= 20 {
		return 0, false
	}
	return n, true
}

// ListingStub is one entry discovered on a catalog listing page
type ListingStub struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Date  string `json:"date"`
	Cover string `json:"cover"`
}

// FeedEntry is one entry of the recent-releases feed
type FeedEntry struct {
	Cover string `json:"cover"`
	Date  string `json:"date"`
	URL   string `json:"url"`
}

// ErrorRecord describes one failed fetch
type ErrorRecord struct {
	URL     string `json:"url"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`   // Transport-level code (e.g. "ETIMEDOUT"), empty if none
	Status  int    `json:"status,omitempty"` // HTTP status, 0 if none
}

// CrawlResult is the outcome of one catalog crawl
type CrawlResult struct {
	Games        map[string]*GameListing `json:"games"`
	Order        []string                `json:"order"` // Titles in discovery order
	PagesScanned int                     `json:"pagesScanned"`
	GamesFound   int                     `json:"gamesFound"`
	Errors       []ErrorRecord           `json:"errors"`
	HitEnd       bool                    `json:"hitEnd"`
	Cancelled    bool                    `json:"cancelled"`
}

// Settings is the user-facing settings record
type Settings struct {
	MaxListings      int       `json:"maxListings"`  // 0 = unbounded
	AutoScan         bool      `json:"autoScan"`     // Scan on start when the cache is empty
	Theme            Theme     `json:"theme"`        // dark or light
	DefaultSort      SortOrder `json:"defaultSort"`  // date or name
	CacheTTLDays     int       `json:"cacheTtlDays"` // 0 = never expire
	HostDisplayOrder []string  `json:"hostDisplayOrder"`
}

// Normalize clamps invalid values to their defaults in place
func (s *Settings) Normalize(knownHosts []string) {
	if s.MaxListings < 0 {
		s.MaxListings = 0
	}
	if s.CacheTTLDays < 0 {
		s.CacheTTLDays = 0
	}
	if !s.Theme.IsValid() {
		s.Theme = ThemeDark
	}
	if !s.DefaultSort.IsValid() {
		s.DefaultSort = SortByDate
	}
	if len(s.HostDisplayOrder) == 0 {
		s.HostDisplayOrder = append([]string(nil), knownHosts...)
	}
}

// DefaultSettings returns the settings used before the user saves any
func DefaultSettings(knownHosts []string) Settings {
	s := Settings{}
	s.Normalize(knownHosts)
	return s
}
