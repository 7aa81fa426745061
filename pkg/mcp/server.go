package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"github.com/ps4dex/release-scraper/pkg/catalog"
	"github.com/ps4dex/release-scraper/pkg/config"
	"github.com/ps4dex/release-scraper/pkg/jobs"
)

const (
	serverName    = "release-scraper"
	serverVersion = "1.0.0"
)

// ServerConfig holds configuration for the MCP server
type ServerConfig struct {
	AppConfig  *config.AppConfig
	ConfigPath string
	Transport  string // "stdio" or "sse"
	Port       int
	Logger     *logrus.Logger
	Catalog    *catalog.Catalog
	Jobs       *jobs.Manager
}

// Server exposes the catalog as MCP tools
type Server struct {
	mcpServer *server.MCPServer
	cfg       *ServerConfig
	log       *logrus.Entry
	catalog   *catalog.Catalog
	jobs      *jobs.Manager
}

// NewServer creates a new MCP server instance
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg.AppConfig == nil {
		return nil, fmt.Errorf("AppConfig is required")
	}
	if cfg.Catalog == nil || cfg.Jobs == nil {
		return nil, fmt.Errorf("Catalog and Jobs are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	mcpServer := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithLogging(),
	)

	s := &Server{
		mcpServer: mcpServer,
		cfg:       cfg,
		log:       cfg.Logger.WithField("component", "mcp"),
		catalog:   cfg.Catalog,
		jobs:      cfg.Jobs,
	}
	s.registerTools()
	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	tools := []struct {
		tool    mcp.Tool
		handler server.ToolHandlerFunc
	}{
		{mcp.NewTool("catalog_status",
			mcp.WithDescription("Show listing and favorite counts, the running scan and the last scan report"),
		), s.handleCatalogStatus},

		{mcp.NewTool("scan_catalog",
			mcp.WithDescription("Start a background catalog scan. Returns immediately with a job ID."),
		), s.handleScanCatalog},

		{mcp.NewTool("get_job_status",
			mcp.WithDescription("Get the status of a scan job"),
			mcp.WithString("job_id", mcp.Required(), mcp.Description("The job ID returned by scan_catalog")),
		), s.handleGetJobStatus},

		{mcp.NewTool("cancel_job",
			mcp.WithDescription("Cancel a running scan job; the catalog keeps its previous listings"),
			mcp.WithString("job_id", mcp.Required(), mcp.Description("The job ID returned by scan_catalog")),
		), s.handleCancelJob},

		{mcp.NewTool("list_games",
			mcp.WithDescription("List catalog listings, optionally filtered"),
			mcp.WithString("query", mcp.Description("Case-insensitive substring matched against title and metadata")),
			mcp.WithString("sort", mcp.Description("date or name (defaults to the settings default)"), mcp.Enum("date", "name")),
			mcp.WithBoolean("favorites_only", mcp.Description("Only return favorites")),
			mcp.WithNumber("max_results", mcp.Description("Maximum number of results to return (default: 25, max: 500)")),
		), s.handleListGames},

		{mcp.NewTool("get_game",
			mcp.WithDescription("Fetch a listing's article if needed and return its grouped download links"),
			mcp.WithString("title", mcp.Required(), mcp.Description("Exact listing title")),
			mcp.WithBoolean("refresh", mcp.Description("Re-fetch the article even if links are cached")),
		), s.handleGetGame},

		{mcp.NewTool("toggle_favorite",
			mcp.WithDescription("Flip the favorite flag of a title"),
			mcp.WithString("title", mcp.Required(), mcp.Description("Exact listing title")),
		), s.handleToggleFavorite},

		{mcp.NewTool("get_settings",
			mcp.WithDescription("Return the current settings"),
		), s.handleGetSettings},

		{mcp.NewTool("update_settings",
			mcp.WithDescription("Update settings; omitted fields keep their value"),
			mcp.WithNumber("max_listings", mcp.Description("Scan cap, 0 = unbounded")),
			mcp.WithBoolean("auto_scan", mcp.Description("Scan on start when the cache is empty")),
			mcp.WithString("theme", mcp.Enum("dark", "light")),
			mcp.WithString("default_sort", mcp.Enum("date", "name")),
			mcp.WithNumber("cache_ttl_days", mcp.Description("Drop cached listings older than this many days, 0 = never")),
			mcp.WithString("host_display_order", mcp.Description("Comma-separated host ids")),
		), s.handleUpdateSettings},
	}

	for _, t := range tools {
		s.mcpServer.AddTool(t.tool, t.handler)
	}
	s.log.Infof("Registered %d MCP tools", len(tools))
}

// Run starts the MCP server with the configured transport
func (s *Server) Run() error {
	switch s.cfg.Transport {
	case "stdio":
		s.log.Info("Starting MCP server with stdio transport")
		return server.ServeStdio(s.mcpServer)
	case "sse":
		addr := fmt.Sprintf(":%d", s.cfg.Port)
		s.log.Infof("Starting MCP server with SSE transport on %s", addr)
		sseServer := server.NewSSEServer(s.mcpServer)
		return sseServer.Start(addr)
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio, sse)", s.cfg.Transport)
	}
}

// Shutdown cancels running scan jobs
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down MCP server...")
	s.jobs.CancelAll()
	return nil
}
