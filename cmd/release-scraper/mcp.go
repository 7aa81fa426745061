package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ps4dex/release-scraper/pkg/mcp"
)

// runMcpServer handles the mcp-server subcommand
func runMcpServer(args []string) {
	fs := flag.NewFlagSet("mcp-server", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")
	transport := fs.String("transport", "stdio", "Transport type (stdio, sse)")
	port := fs.Int("port", 8081, "HTTP port (for sse transport)")
	logLevel := fs.String("loglevel", "info", "Log level (debug, info, warn, error)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: release-scraper mcp-server [options]

Start an MCP (Model Context Protocol) server for AI tool integration.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # Start with stdio transport
  release-scraper mcp-server -config config.yaml

  # Start with SSE transport on port 8081
  release-scraper mcp-server -config config.yaml -transport sse -port 8081

Available MCP Tools:
  catalog_status   Listing count, favorites and scan state
  scan_catalog     Start a background catalog scan
  get_job_status   Progress of a scan job
  cancel_job       Cancel a scan job
  list_games       Search and sort cached games
  get_game         One game with its download links
  toggle_favorite  Add or remove a favorite
  get_settings     Show persisted settings
  update_settings  Change persisted settings
`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	exitCode := doMcpServer(*configFile, *transport, *port, *logLevel, os.Stdout, os.Stderr)
	os.Exit(exitCode)
}

// doMcpServer is the testable implementation of the MCP server.
// The protocol owns stdout, so every log line goes to stderr.
func doMcpServer(configPath, transport string, port int, logLevel string, stdout, stderr io.Writer) int {
	if transport != "stdio" && transport != "sse" {
		fmt.Fprintf(stderr, "Unknown transport: %s (supported: stdio, sse)\n", transport)
		return 1
	}

	a, err := openApp(configPath, logLevel, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading config: %v\n", err)
		return 1
	}
	defer a.Close()

	serverCfg := &mcp.ServerConfig{
		AppConfig:  a.cfg,
		ConfigPath: configPath,
		Transport:  transport,
		Port:       port,
		Logger:     a.log,
		Catalog:    a.catalog,
		Jobs:       a.jobs,
	}

	server, err := mcp.NewServer(serverCfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error creating MCP server: %v\n", err)
		return 1
	}

	a.log.Infof("Starting MCP server (transport: %s)", transport)
	a.autoScan()

	runErr := server.Run()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)

	if runErr != nil {
		fmt.Fprintf(stderr, "MCP server error: %v\n", runErr)
		return 1
	}
	return 0
}
