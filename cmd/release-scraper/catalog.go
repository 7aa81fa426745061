package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ps4dex/release-scraper/pkg/catalog"
	"github.com/ps4dex/release-scraper/pkg/export"
	"github.com/ps4dex/release-scraper/pkg/models"
	"github.com/ps4dex/release-scraper/pkg/utils"
)

func runScan(args []string) {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	configFile, logLevel := commonFlags(fs)
	fs.Usage = usageFor(fs, "scan [options]")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	os.Exit(doScan(*configFile, *logLevel, os.Stdout, os.Stderr))
}

// doScan runs one scan in the foreground and prints its outcome.
func doScan(configPath, logLevel string, stdout, stderr io.Writer) int {
	a, err := openApp(configPath, logLevel, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer a.Close()

	ctx, stop := signalContext(a.log)
	defer stop()

	report, err := a.scan(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Scan failed: %v\n", err)
		return 1
	}
	res := report.Result
	if res.Cancelled {
		fmt.Fprintln(stdout, "Scan cancelled, previous catalog kept.")
		return 0
	}

	fmt.Fprintf(stdout, "Scanned %d pages, %d games in %s\n",
		res.PagesScanned, len(res.Games), report.Duration.Round(time.Millisecond))
	if report.LimitReached {
		fmt.Fprintf(stdout, "Stopped at the max listings limit (%d)\n", a.catalog.Settings().MaxListings)
	}
	if report.ErrorSummary != "" {
		fmt.Fprintf(stdout, "Warnings: %s\n", report.ErrorSummary)
	}
	return 0
}

func runList(args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	configFile, logLevel := commonFlags(fs)
	query := fs.String("q", "", "Filter by text in title and metadata")
	sortBy := fs.String("sort", "", "Sort order (date, name); default from settings")
	favorites := fs.Bool("favorites", false, "Only list favorites")
	limit := fs.Int("limit", 0, "Maximum games to print (0 = all)")
	asJSON := fs.Bool("json", false, "Print JSON lines instead of a table")
	fs.Usage = usageFor(fs, "list [options]")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	opts := catalog.ListOptions{
		Sort:          models.SortOrder(*sortBy),
		FavoritesOnly: *favorites,
		Query:         *query,
		Limit:         *limit,
	}
	os.Exit(doList(*configFile, *logLevel, opts, *asJSON, os.Stdout, os.Stderr))
}

func doList(configPath, logLevel string, opts catalog.ListOptions, asJSON bool, stdout, stderr io.Writer) int {
	a, err := openApp(configPath, logLevel, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer a.Close()

	games := a.catalog.List(opts)
	if asJSON {
		if _, err := export.WriteJSONL(stdout, games); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}
	if len(games) == 0 {
		fmt.Fprintln(stdout, "No games cached. Run 'release-scraper scan' first.")
		return 0
	}
	for _, g := range games {
		mark := " "
		if a.catalog.IsFavorite(g.Title) {
			mark = "*"
		}
		date := g.Date
		if date == "" {
			date = "----------"
		}
		fmt.Fprintf(stdout, "%s %s  %s\n", mark, date, g.Title)
	}
	fmt.Fprintf(stdout, "\n%d of %d games\n", len(games), a.catalog.Len())
	return 0
}

func runShow(args []string) {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	configFile, logLevel := commonFlags(fs)
	refresh := fs.Bool("refresh", false, "Fetch the article again even when links are cached")
	asJSON := fs.Bool("json", false, "Print the detail view as JSON")
	fs.Usage = usageFor(fs, "show [options] <title>")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	title := strings.Join(fs.Args(), " ")
	if title == "" {
		fs.Usage()
		os.Exit(1)
	}
	os.Exit(doShow(*configFile, *logLevel, title, *refresh, *asJSON, os.Stdout, os.Stderr))
}

func doShow(configPath, logLevel, title string, refresh, asJSON bool, stdout, stderr io.Writer) int {
	a, err := openApp(configPath, logLevel, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer a.Close()

	ctx, stop := signalContext(a.log)
	defer stop()

	g, err := a.catalog.Details(ctx, title, refresh)
	if err != nil {
		if errors.Is(err, utils.ErrUnknownTitle) {
			fmt.Fprintf(stderr, "Error: no cached game titled %q\n", title)
		} else {
			fmt.Fprintf(stderr, "Error fetching details: %v\n", err)
		}
		return 1
	}
	view := catalog.BuildDetailView(g, a.catalog.IsFavorite(title), a.catalog.Settings().HostDisplayOrder)

	if asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		if err := enc.Encode(view); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}
	printDetail(stdout, view, a.cfg.Extraction.HostLabel)
	return 0
}

// printDetail renders a detail view as plain text
func printDetail(w io.Writer, v catalog.DetailView, hostLabel func(string) string) {
	g := v.Listing
	title := g.Title
	if v.Favorite {
		title += " *"
	}
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, strings.Repeat("=", len([]rune(title))))

	field := func(name, value string) {
		if value != "" {
			fmt.Fprintf(w, "%-11s %s\n", name+":", value)
		}
	}
	if g.CUSA != nil {
		field("CUSA", *g.CUSA)
	}
	field("Date", g.Date)
	field("Firmware", g.Firmware)
	field("Size", g.Size)
	field("Voice", g.Voice)
	field("Subtitles", g.Subtitles)
	field("Languages", g.ScreenLanguages)
	field("Password", g.Password)
	field("Notes", g.Notes)
	field("Guide", g.Guide)
	field("URL", g.URL)
	if g.Description != "" {
		fmt.Fprintf(w, "\n%s\n", g.Description)
	}

	if len(v.Sections) == 0 && len(v.Backports) == 0 {
		fmt.Fprintln(w, "\nNo download links found.")
		return
	}
	for _, sec := range v.Sections {
		fmt.Fprintf(w, "\n[%s]\n", sec.Type)
		for _, hs := range sec.Hosts {
			fmt.Fprintf(w, "  %s\n", hostLabel(hs.Host))
			for _, l := range hs.Links {
				fmt.Fprintf(w, "    %s  %s\n", l.Label, l.Link)
			}
		}
	}
	for _, bp := range v.Backports {
		fmt.Fprintf(w, "\n[backport %d.xx]\n", bp.Firmware)
		for _, l := range bp.Links {
			fmt.Fprintf(w, "  %s  %s  %s\n", hostLabel(l.Host), l.Label, l.Link)
		}
	}
}

func runFavorite(args []string) {
	fs := flag.NewFlagSet("favorite", flag.ExitOnError)
	configFile, logLevel := commonFlags(fs)
	fs.Usage = usageFor(fs, "favorite [options] <title>")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	title := strings.Join(fs.Args(), " ")
	if title == "" {
		fs.Usage()
		os.Exit(1)
	}
	os.Exit(doFavorite(*configFile, *logLevel, title, os.Stdout, os.Stderr))
}

func doFavorite(configPath, logLevel, title string, stdout, stderr io.Writer) int {
	a, err := openApp(configPath, logLevel, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer a.Close()

	on, err := a.catalog.ToggleFavorite(title)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if on {
		fmt.Fprintf(stdout, "Added %q to favorites\n", title)
	} else {
		fmt.Fprintf(stdout, "Removed %q from favorites\n", title)
	}
	return 0
}

// settingFlags collects repeated -set key=value flags
type settingFlags []string

func (s *settingFlags) String() string     { return strings.Join(*s, ",") }
func (s *settingFlags) Set(v string) error { *s = append(*s, v); return nil }

func runSettings(args []string) {
	fs := flag.NewFlagSet("settings", flag.ExitOnError)
	configFile, logLevel := commonFlags(fs)
	var sets settingFlags
	fs.Var(&sets, "set", "Change a setting, key=value (repeatable). Keys: max_listings, auto_scan, theme, default_sort, cache_ttl_days, host_display_order")
	fs.Usage = usageFor(fs, "settings [-set key=value ...]")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	os.Exit(doSettings(*configFile, *logLevel, sets, os.Stdout, os.Stderr))
}

// doSettings prints the settings after applying any key=value changes
func doSettings(configPath, logLevel string, sets []string, stdout, stderr io.Writer) int {
	a, err := openApp(configPath, logLevel, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer a.Close()

	s := a.catalog.Settings()
	if len(sets) > 0 {
		for _, kv := range sets {
			key, value, ok := strings.Cut(kv, "=")
			if !ok {
				fmt.Fprintf(stderr, "Error: -set expects key=value, got %q\n", kv)
				return 1
			}
			if err := applySetting(&s, strings.TrimSpace(key), strings.TrimSpace(value)); err != nil {
				fmt.Fprintf(stderr, "Error: %v\n", err)
				return 1
			}
		}
		if s, err = a.catalog.UpdateSettings(s); err != nil {
			fmt.Fprintf(stderr, "Error saving settings: %v\n", err)
			return 1
		}
	}

	fmt.Fprintf(stdout, "max_listings:       %d\n", s.MaxListings)
	fmt.Fprintf(stdout, "auto_scan:          %t\n", s.AutoScan)
	fmt.Fprintf(stdout, "theme:              %s\n", s.Theme)
	fmt.Fprintf(stdout, "default_sort:       %s\n", s.DefaultSort)
	fmt.Fprintf(stdout, "cache_ttl_days:     %d\n", s.CacheTTLDays)
	fmt.Fprintf(stdout, "host_display_order: %s\n", strings.Join(s.HostDisplayOrder, ","))
	return 0
}

// applySetting parses value into the field named by key. Out-of-range values
// are accepted here and clamped by Settings.Normalize on save.
func applySetting(s *models.Settings, key, value string) error {
	switch key {
	case "max_listings", "cache_ttl_days":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s must be an integer: %w", key, err)
		}
		if key == "max_listings" {
			s.MaxListings = n
		} else {
			s.CacheTTLDays = n
		}
	case "auto_scan":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("auto_scan must be true or false: %w", err)
		}
		s.AutoScan = b
	case "theme":
		s.Theme = models.Theme(value)
	case "default_sort":
		s.DefaultSort = models.SortOrder(value)
	case "host_display_order":
		var order []string
		for _, id := range strings.Split(value, ",") {
			if id = strings.ToLower(strings.TrimSpace(id)); id != "" {
				order = append(order, id)
			}
		}
		s.HostDisplayOrder = order
	default:
		return fmt.Errorf("unknown setting %q", key)
	}
	return nil
}

func runClearCache(args []string) {
	fs := flag.NewFlagSet("clear-cache", flag.ExitOnError)
	configFile, logLevel := commonFlags(fs)
	fs.Usage = usageFor(fs, "clear-cache [options]")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	os.Exit(doClearCache(*configFile, *logLevel, os.Stdout, os.Stderr))
}

func doClearCache(configPath, logLevel string, stdout, stderr io.Writer) int {
	a, err := openApp(configPath, logLevel, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer a.Close()

	n := a.catalog.Len()
	if err := a.catalog.ClearCache(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "Cleared %d cached games and favorites. Settings kept.\n", n)
	return 0
}

func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	configFile, logLevel := commonFlags(fs)
	out := fs.String("out", "catalog.jsonl", "Output file; .xlsx writes a workbook, anything else JSONL")
	favorites := fs.Bool("favorites", false, "Only export favorites")
	fs.Usage = usageFor(fs, "export [options]")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	os.Exit(doExport(*configFile, *logLevel, *out, *favorites, os.Stdout, os.Stderr))
}

func doExport(configPath, logLevel, outPath string, favoritesOnly bool, stdout, stderr io.Writer) int {
	a, err := openApp(configPath, logLevel, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer a.Close()

	games := a.catalog.List(catalog.ListOptions{Sort: models.SortByDate, FavoritesOnly: favoritesOnly})
	favs := make(map[string]bool)
	for _, t := range a.catalog.Favorites() {
		favs[t] = true
	}
	opts := export.Options{Favorites: favs, HostLabel: a.cfg.Extraction.HostLabel}
	if err := export.ToFile(outPath, games, opts, a.log.WithField("component", "export")); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "Exported %d games to %s (%s)\n", len(games), outPath, export.FormatFromPath(outPath))
	return 0
}
