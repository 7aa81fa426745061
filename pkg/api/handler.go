package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ps4dex/release-scraper/pkg/catalog"
	"github.com/ps4dex/release-scraper/pkg/config"
	"github.com/ps4dex/release-scraper/pkg/export"
	"github.com/ps4dex/release-scraper/pkg/jobs"
	"github.com/ps4dex/release-scraper/pkg/models"
	"github.com/ps4dex/release-scraper/pkg/utils"
)

// Handler serves catalog endpoints
type Handler struct {
	Catalog *catalog.Catalog
	Jobs    *jobs.Manager
	Config  *config.AppConfig
	log     *logrus.Entry
}

// NewHandler creates a Handler
func NewHandler(cat *catalog.Catalog, jm *jobs.Manager, cfg *config.AppConfig, log *logrus.Entry) *Handler {
	return &Handler{Catalog: cat, Jobs: jm, Config: cfg, log: log.WithField("component", "api")}
}

// RegisterRoutes mounts the endpoints on rg
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/health", h.health)
	rg.GET("/games", h.listGames)     // GET /games?q=&sort=&favorites=&limit=&offset=
	rg.GET("/game", h.getGame)        // GET /game?title=&refresh=
	rg.GET("/favorites", h.favorites) // titles only
	rg.POST("/favorites", h.toggleFavorite)
	rg.POST("/scan", h.startScan)
	rg.GET("/jobs", h.listJobs)
	rg.GET("/jobs/:id", h.getJob)
	rg.DELETE("/jobs/:id", h.cancelJob)
	rg.GET("/settings", h.getSettings)
	rg.PUT("/settings", h.updateSettings)
	rg.DELETE("/cache", h.clearCache)
	rg.GET("/export", h.exportCatalog) // GET /export?format=xlsx|jsonl
}

func (h *Handler) health(c *gin.Context) {
	resp := gin.H{
		"status":    "ok",
		"listings":  h.Catalog.Len(),
		"favorites": len(h.Catalog.Favorites()),
		"scanning":  h.Catalog.Scanning(),
	}
	if job, ok := h.Jobs.Active(); ok {
		resp["active_job"] = job
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) listGames(c *gin.Context) {
	sortBy := models.SortOrder(c.Query("sort"))
	if sortBy != "" && !sortBy.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sort must be date or name"})
		return
	}
	limit := parseInt(c.Query("limit"), 50)
	offset := parseInt(c.Query("offset"), 0)
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	all := h.Catalog.List(catalog.ListOptions{
		Sort:          sortBy,
		FavoritesOnly: parseBool(c.Query("favorites")),
		Query:         c.Query("q"),
	})
	items := []models.GameListing{}
	if offset < len(all) {
		end := offset + limit
		if end > len(all) {
			end = len(all)
		}
		items = all[offset:end]
	}
	c.JSON(http.StatusOK, gin.H{
		"total":  len(all),
		"limit":  limit,
		"offset": offset,
		"items":  items,
	})
}

func (h *Handler) getGame(c *gin.Context) {
	title := c.Query("title")
	if strings.TrimSpace(title) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
		return
	}
	g, err := h.Catalog.Details(c.Request.Context(), title, parseBool(c.Query("refresh")))
	if err != nil {
		if errors.Is(err, utils.ErrUnknownTitle) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		h.log.WithField("title", title).Warnf("Details failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "category": utils.CategorizeError(err)})
		return
	}
	c.JSON(http.StatusOK, catalog.BuildDetailView(g, h.Catalog.IsFavorite(title), h.Catalog.Settings().HostDisplayOrder))
}

func (h *Handler) favorites(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"titles": h.Catalog.Favorites()})
}

type favoriteRequest struct {
	Title string `json:"title" binding:"required"`
}

func (h *Handler) toggleFavorite(c *gin.Context) {
	var req favoriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	on, err := h.Catalog.ToggleFavorite(req.Title)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "favorite update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"title": req.Title, "favorite": on})
}

func (h *Handler) startScan(c *gin.Context) {
	job, started := h.Jobs.StartScan()
	status := http.StatusAccepted
	if !started {
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{"started": started, "job": job})
}

func (h *Handler) listJobs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"jobs": h.Jobs.ListJobs()})
}

func (h *Handler) getJob(c *gin.Context) {
	job, ok := h.Jobs.GetJob(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, job)
}

func (h *Handler) cancelJob(c *gin.Context) {
	id := c.Param("id")
	if _, ok := h.Jobs.GetJob(id); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "cancelled": h.Jobs.CancelJob(id)})
}

func (h *Handler) getSettings(c *gin.Context) {
	c.JSON(http.StatusOK, h.Catalog.Settings())
}

// updateSettings decodes the body over the current settings, so omitted fields keep their value
func (h *Handler) updateSettings(c *gin.Context) {
	settings := h.Catalog.Settings()
	if err := c.ShouldBindJSON(&settings); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	saved, err := h.Catalog.UpdateSettings(settings)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "settings update failed"})
		return
	}
	c.JSON(http.StatusOK, saved)
}

func (h *Handler) clearCache(c *gin.Context) {
	if err := h.Catalog.ClearCache(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "clear failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) exportCatalog(c *gin.Context) {
	format := export.Format(c.DefaultQuery("format", string(export.FormatJSONL)))
	contentType := "application/x-ndjson"
	switch format {
	case export.FormatJSONL:
	case export.FormatXLSX:
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be jsonl or xlsx"})
		return
	}

	favorites := make(map[string]bool)
	for _, t := range h.Catalog.Favorites() {
		favorites[t] = true
	}
	opts := export.Options{Favorites: favorites, HostLabel: h.Config.Extraction.HostLabel}
	games := h.Catalog.List(catalog.ListOptions{Sort: models.SortByDate})

	filename := fmt.Sprintf("catalog-%s.%s", time.Now().Format("20060102"), format)
	c.Header("Content-Type", contentType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", utils.SanitizeFilename(filename)))
	c.Status(http.StatusOK)
	if err := export.WriteListings(c.Writer, format, games, opts); err != nil {
		h.log.Errorf("Export failed mid-stream: %v", err)
	}
}

func parseInt(s string, def int) int {
	if strings.TrimSpace(s) == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func parseBool(s string) bool {
	b, _ := strconv.ParseBool(s)
	return b
}
