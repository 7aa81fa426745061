package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ps4dex/release-scraper/pkg/api"
	"github.com/ps4dex/release-scraper/pkg/watch"
)

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")
	logLevel := fs.String("loglevel", "info", "Log level (debug, info, warn, error)")
	listen := fs.String("listen", "", "Listen address; overrides server.listen")
	fs.Usage = usageFor(fs, "serve [options]")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	os.Exit(doServe(*configFile, *logLevel, *listen, os.Stderr))
}

// doServe runs the HTTP API until a signal arrives
func doServe(configPath, logLevel, listen string, stderr io.Writer) int {
	a, err := openApp(configPath, logLevel, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer a.Close()
	if listen != "" {
		a.cfg.Server.Listen = listen
	}

	ctx, stop := signalContext(a.log)
	defer stop()
	go a.store.RunGC(ctx, 10*time.Minute)

	if a.log.GetLevel() < logrus.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	entry := logrus.NewEntry(a.log)
	router := api.NewRouter(api.NewHandler(a.catalog, a.jobs, a.cfg, entry), entry)
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})

	httpSrv := &http.Server{
		Addr:              a.cfg.Server.Listen,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		a.log.Infof("HTTP API listening on %s", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	a.autoScan()

	exitCode := 0
	select {
	case <-ctx.Done():
	case err := <-errCh:
		a.log.Errorf("HTTP server error: %v", err)
		exitCode = 1
	}

	a.log.Info("Shutting down HTTP API")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		a.log.Errorf("HTTP shutdown error: %v", err)
	}
	return exitCode
}

func runWatch(args []string) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")
	logLevel := fs.String("loglevel", "info", "Log level (debug, info, warn, error)")
	interval := fs.String("interval", "", "Scan interval (e.g. 30m, 6h, 1d); overrides crawl.watch_interval")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: release-scraper watch [options]\n\nOptions:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  release-scraper watch\n")
		fmt.Fprintf(os.Stderr, "  release-scraper watch --interval 12h\n")
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	os.Exit(doWatch(*configFile, *logLevel, *interval, os.Stdout, os.Stderr))
}

// doWatch rescans on a schedule until a signal arrives
func doWatch(configPath, logLevel, intervalStr string, stdout, stderr io.Writer) int {
	a, err := openApp(configPath, logLevel, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer a.Close()

	interval := a.cfg.Crawl.WatchInterval
	if intervalStr != "" {
		if interval, err = watch.ParseInterval(intervalStr); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		if interval < time.Minute {
			fmt.Fprintln(stderr, "Error: interval must be at least 1m")
			return 1
		}
	}

	ctx, stop := signalContext(a.log)
	defer stop()
	go a.store.RunGC(ctx, 10*time.Minute)

	state := watch.NewStateManager(a.store)
	if err := state.Load(); err != nil {
		a.log.Warnf("Could not load watch state, starting fresh: %v", err)
	}
	entry := logrus.NewEntry(a.log)
	scheduler := watch.NewScheduler(a.scan, state, interval, entry)

	status := scheduler.GetStatus()
	if status.NeverRun {
		fmt.Fprintf(stdout, "Watching every %s, first scan now\n", watch.FormatInterval(interval))
	} else {
		fmt.Fprintf(stdout, "Watching every %s, last scan %s, next due %s\n",
			watch.FormatInterval(interval),
			status.LastRunTime.Format(time.RFC3339),
			status.NextRunTime.Format(time.RFC3339))
	}

	if err := scheduler.Run(ctx); err != nil {
		fmt.Fprintf(stderr, "Watch stopped: %v\n", err)
		return 1
	}
	return 0
}
