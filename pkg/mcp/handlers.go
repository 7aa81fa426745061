package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ps4dex/release-scraper/pkg/catalog"
	"github.com/ps4dex/release-scraper/pkg/export"
	"github.com/ps4dex/release-scraper/pkg/jobs"
	"github.com/ps4dex/release-scraper/pkg/models"
	"github.com/ps4dex/release-scraper/pkg/utils"
)

const (
	defaultMaxResults = 25
	maxMaxResults     = 500
)

// handleCatalogStatus handles the catalog_status tool
func (s *Server) handleCatalogStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result := map[string]interface{}{
		"listings":    s.catalog.Len(),
		"favorites":   len(s.catalog.Favorites()),
		"scanning":    s.catalog.Scanning(),
		"config_path": s.cfg.ConfigPath,
		"base_url":    s.cfg.AppConfig.Site.BaseURL,
	}
	if job, ok := s.jobs.Active(); ok {
		result["active_job"] = job
	}
	if path := jobs.ScanReportPath(s.cfg.AppConfig); path != "" {
		if report, err := export.ReadScanReport(path); err == nil {
			result["last_scan"] = map[string]interface{}{
				"finished_at":   report.FinishedAt.Format(time.RFC3339),
				"games_found":   report.GamesFound,
				"pages_scanned": report.PagesScanned,
				"cancelled":     report.Cancelled,
				"error_summary": report.ErrorSummary,
			}
		}
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleScanCatalog handles the scan_catalog tool
func (s *Server) handleScanCatalog(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	job, started := s.jobs.StartScan()
	if !started {
		result := map[string]interface{}{
			"status":  "already_running",
			"message": "A scan is already in progress",
			"job_id":  job.ID,
		}
		return mcp.NewToolResultText(formatJSON(result)), nil
	}
	result := map[string]interface{}{
		"status":  "started",
		"message": "Scan started successfully",
		"job_id":  job.ID,
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleGetJobStatus handles the get_job_status tool
func (s *Server) handleGetJobStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID := request.GetString("job_id", "")
	if jobID == "" {
		return mcp.NewToolResultError("job_id parameter is required"), nil
	}
	job, ok := s.jobs.GetJob(jobID)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("job '%s' not found", jobID)), nil
	}

	result := map[string]interface{}{
		"job_id":        job.ID,
		"status":        job.Status,
		"started_at":    job.StartedAt.Format(time.RFC3339),
		"pages_scanned": job.PagesScanned,
		"games_found":   job.GamesFound,
		"limit_reached": job.LimitReached,
	}
	if !job.CompletedAt.IsZero() {
		result["completed_at"] = job.CompletedAt.Format(time.RFC3339)
		result["duration_seconds"] = job.CompletedAt.Sub(job.StartedAt).Seconds()
	}
	if job.ErrorSummary != "" {
		result["error_summary"] = job.ErrorSummary
	}
	if job.ErrorMessage != "" {
		result["error_message"] = job.ErrorMessage
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleCancelJob handles the cancel_job tool
func (s *Server) handleCancelJob(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID := request.GetString("job_id", "")
	if jobID == "" {
		return mcp.NewToolResultError("job_id parameter is required"), nil
	}
	if _, ok := s.jobs.GetJob(jobID); !ok {
		return mcp.NewToolResultError(fmt.Sprintf("job '%s' not found", jobID)), nil
	}
	result := map[string]interface{}{
		"job_id":    jobID,
		"cancelled": s.jobs.CancelJob(jobID),
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleListGames handles the list_games tool
func (s *Server) handleListGames(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	maxResults := request.GetInt("max_results", defaultMaxResults)
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	if maxResults > maxMaxResults {
		maxResults = maxMaxResults
	}
	sortBy := models.SortOrder(request.GetString("sort", ""))
	if sortBy != "" && !sortBy.IsValid() {
		return mcp.NewToolResultError(fmt.Sprintf("invalid sort %q (supported: date, name)", sortBy)), nil
	}

	query := request.GetString("query", "")
	all := s.catalog.List(catalog.ListOptions{
		Sort:          sortBy,
		FavoritesOnly: request.GetBool("favorites_only", false),
		Query:         query,
	})
	shown := all
	if len(shown) > maxResults {
		shown = shown[:maxResults]
	}

	games := make([]map[string]interface{}, 0, len(shown))
	for _, g := range shown {
		games = append(games, gameSummary(g, s.catalog.IsFavorite(g.Title)))
	}
	result := map[string]interface{}{
		"games":         games,
		"total_matches": len(all),
	}
	if query != "" {
		result["query"] = query
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

func gameSummary(g models.GameListing, favorite bool) map[string]interface{} {
	summary := map[string]interface{}{
		"title":    g.Title,
		"url":      g.URL,
		"date":     g.Date,
		"favorite": favorite,
		"links":    g.LinkGroups.Len(),
	}
	if g.CUSA != nil {
		summary["cusa"] = *g.CUSA
	}
	if g.Firmware != "" {
		summary["firmware"] = g.Firmware
	}
	return summary
}

// handleGetGame handles the get_game tool
func (s *Server) handleGetGame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title := request.GetString("title", "")
	if title == "" {
		return mcp.NewToolResultError("title parameter is required"), nil
	}
	g, err := s.catalog.Details(ctx, title, request.GetBool("refresh", false))
	if err != nil {
		if errors.Is(err, utils.ErrUnknownTitle) {
			return mcp.NewToolResultError(fmt.Sprintf("title '%s' not found in catalog", title)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("failed to load details: %v", err)), nil
	}
	view := catalog.BuildDetailView(g, s.catalog.IsFavorite(title), s.catalog.Settings().HostDisplayOrder)
	return mcp.NewToolResultText(formatJSON(toMap(view))), nil
}

// handleToggleFavorite handles the toggle_favorite tool
func (s *Server) handleToggleFavorite(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title := request.GetString("title", "")
	if title == "" {
		return mcp.NewToolResultError("title parameter is required"), nil
	}
	on, err := s.catalog.ToggleFavorite(title)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to update favorite: %v", err)), nil
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{"title": title, "favorite": on})), nil
}

// handleGetSettings handles the get_settings tool
func (s *Server) handleGetSettings(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(formatJSON(toMap(s.catalog.Settings()))), nil
}

// handleUpdateSettings handles the update_settings tool
func (s *Server) handleUpdateSettings(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	settings := s.catalog.Settings()
	args := request.GetArguments()

	if _, ok := args["max_listings"]; ok {
		settings.MaxListings = request.GetInt("max_listings", settings.MaxListings)
	}
	if _, ok := args["auto_scan"]; ok {
		settings.AutoScan = request.GetBool("auto_scan", settings.AutoScan)
	}
	if v := request.GetString("theme", ""); v != "" {
		settings.Theme = models.Theme(v)
	}
	if v := request.GetString("default_sort", ""); v != "" {
		settings.DefaultSort = models.SortOrder(v)
	}
	if _, ok := args["cache_ttl_days"]; ok {
		settings.CacheTTLDays = request.GetInt("cache_ttl_days", settings.CacheTTLDays)
	}
	if v := request.GetString("host_display_order", ""); v != "" {
		settings.HostDisplayOrder = splitList(v)
	}

	saved, err := s.catalog.UpdateSettings(settings)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to save settings: %v", err)), nil
	}
	return mcp.NewToolResultText(formatJSON(toMap(saved))), nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// toMap converts a JSON-tagged struct into a generic map for formatJSON
func toMap(v interface{}) map[string]interface{} {
	b, err := json.Marshal(v)
	if err != nil {
		return map[string]interface{}{"error": err.Error()}
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return map[string]interface{}{"error": err.Error()}
	}
	return m
}

// formatJSON formats data as an indented JSON string
func formatJSON(data map[string]interface{}) string {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("{\"error\": %q}", err.Error())
	}
	return string(b)
}
