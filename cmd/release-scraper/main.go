package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/ps4dex/release-scraper/pkg/catalog"
	"github.com/ps4dex/release-scraper/pkg/config"
	"github.com/ps4dex/release-scraper/pkg/crawler"
	"github.com/ps4dex/release-scraper/pkg/jobs"
	"github.com/ps4dex/release-scraper/pkg/site"
	"github.com/ps4dex/release-scraper/pkg/storage"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	args := os.Args[2:]
	switch os.Args[1] {
	case "scan":
		runScan(args)
	case "list":
		runList(args)
	case "show":
		runShow(args)
	case "favorite":
		runFavorite(args)
	case "settings":
		runSettings(args)
	case "clear-cache":
		runClearCache(args)
	case "export":
		runExport(args)
	case "serve":
		runServe(args)
	case "watch":
		runWatch(args)
	case "mcp-server":
		runMcpServer(args)
	case "validate":
		runValidate(args)
	case "version":
		fmt.Printf("release-scraper %s\n", version)
	case "-h", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	printUsageTo(os.Stdout)
}

// printUsageTo writes usage information to the provided writer.
func printUsageTo(w io.Writer) {
	fmt.Fprintln(w, `release-scraper - PS4 release catalog scraper

Usage:
  release-scraper <command> [options]

Commands:
  scan         Crawl the category listing and replace the cached catalog
  list         List cached games
  show         Show one game with its download links (fetches details on first view)
  favorite     Toggle a game in the favorites list
  settings     Show or change persisted settings
  clear-cache  Drop cached listings and favorites
  export       Write the catalog to a JSONL or XLSX file
  serve        Start the HTTP API
  watch        Rescan on a schedule
  mcp-server   Start MCP server for AI tool integration
  validate     Validate configuration file
  version      Show version info

Run 'release-scraper <command> -h' for command-specific help.`)
}

// loadConfig loads and parses the config file
func loadConfig(path string) (*config.AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg config.AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

// loadAndValidateConfig loads the config file, applies defaults and logs warnings.
func loadAndValidateConfig(path string, log *logrus.Logger) (*config.AppConfig, error) {
	log.Debugf("Loading configuration from %s", path)
	cfg, err := loadConfig(path)
	if err != nil {
		return nil, err
	}
	warnings, err := cfg.Validate()
	for _, w := range warnings {
		log.Warn(w)
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// setupLogger creates a logrus.Logger writing to out at the given level.
func setupLogger(logLevelStr string, out io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	log.SetLevel(logrus.InfoLevel)

	level, err := logrus.ParseLevel(logLevelStr)
	if err != nil {
		log.Warnf("Invalid log level '%s', using default 'info'. Error: %v", logLevelStr, err)
	} else {
		log.SetLevel(level)
	}
	return log
}

// app bundles the components every command that touches the catalog needs
type app struct {
	cfg     *config.AppConfig
	log     *logrus.Logger
	store   *storage.BadgerStore
	catalog *catalog.Catalog
	scan    jobs.ScanFunc // Catalog scan that also writes the scan report
	jobs    *jobs.Manager
}

// openApp loads config, opens the state store and restores the catalog.
func openApp(configPath, logLevel string, logOut io.Writer) (*app, error) {
	log := setupLogger(logLevel, logOut)
	cfg, err := loadAndValidateConfig(configPath, log)
	if err != nil {
		return nil, err
	}
	entry := logrus.NewEntry(log)

	store, err := storage.NewBadgerStore(cfg.StateDir, entry)
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}

	client := site.NewFromConfig(cfg, entry.WithField("component", "site"))
	crw := crawler.New(client, client, cfg.Site, cfg.Crawl, entry)
	cat := catalog.New(store, crw, client, cfg.Extraction.HostIDs(), cfg.Crawl.LockWaitTimeout, entry)

	loaded, err := cat.Load()
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	if loaded.Expired {
		log.Infof("Cached catalog was %d days old and has been dropped", loaded.AgeDays)
	}
	log.WithFields(logrus.Fields{"listings": loaded.Listings, "favorites": loaded.Favorites}).Debug("Catalog loaded")

	scan := jobs.ReportingScan(cat, cfg, entry)
	return &app{
		cfg:     cfg,
		log:     log,
		store:   store,
		catalog: cat,
		scan:    scan,
		jobs:    jobs.NewManager(scan, crw.GetProgress, entry),
	}, nil
}

// autoScan starts a background scan when the catalog is empty and the setting asks for it
func (a *app) autoScan() {
	if a.catalog.Len() > 0 || !a.catalog.Settings().AutoScan {
		return
	}
	if job, started := a.jobs.StartScan(); started {
		a.log.Infof("Catalog is empty, started scan job %s", job.ID)
	}
}

func (a *app) Close() {
	a.jobs.CancelAll()
	if err := a.store.Close(); err != nil {
		a.log.Errorf("Error closing state store: %v", err)
	}
}

// signalContext returns a context cancelled on SIGINT/SIGTERM. A second signal,
// or a shutdown that takes longer than 30s, forces exit.
func signalContext(log *logrus.Logger) (context.Context, func()) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			log.Warnf("Received signal: %v. Initiating graceful shutdown...", sig)
		case <-ctx.Done():
			return
		}
		cancel()

		select {
		case sig := <-sigChan:
			log.Warnf("Received second signal: %v. Forcing exit.", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			log.Warn("Graceful shutdown period exceeded after signal. Forcing exit.")
			os.Exit(1)
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}

// commonFlags registers the flags every catalog command takes
func commonFlags(fs *flag.FlagSet) (configFile, logLevel *string) {
	configFile = fs.String("config", "config.yaml", "Path to config file")
	logLevel = fs.String("loglevel", "warn", "Log level (debug, info, warn, error)")
	return configFile, logLevel
}

func usageFor(fs *flag.FlagSet, synopsis string) func() {
	return func() {
		fmt.Fprintf(os.Stderr, "Usage: release-scraper %s\n\nOptions:\n", synopsis)
		fs.PrintDefaults()
	}
}

func runValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")
	fs.Usage = usageFor(fs, "validate [options]")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	os.Exit(doValidate(*configFile, os.Stdout, os.Stderr))
}

// doValidate checks the config file and prints warnings plus the effective site.
// Returns exit code (0 = success, 1 = error).
func doValidate(configPath string, stdout, stderr io.Writer) int {
	appCfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	warnings, err := appCfg.Validate()
	for _, w := range warnings {
		fmt.Fprintf(stdout, "WARN: %s\n", w)
	}
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "OK: site %s\n", appCfg.Site.BaseURL)
	fmt.Fprintf(stdout, "    Listing: %s\n", appCfg.Site.CategoryURL(1))
	fmt.Fprintf(stdout, "    Feed: %s\n", appCfg.Site.FeedURL())
	fmt.Fprintf(stdout, "    Hosts: %v\n", appCfg.Extraction.HostIDs())
	fmt.Fprintln(stdout, "\nConfiguration valid.")
	return 0
}
