// Package export writes the catalog to files: JSON Lines, Excel workbooks and
// YAML scan reports.
package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ps4dex/release-scraper/pkg/models"
)

// Format is an export file format
type Format string

const (
	FormatJSONL Format = "jsonl"
	FormatXLSX  Format = "xlsx"
)

// FormatFromPath picks the format from the file extension, falling back to JSONL
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return FormatXLSX
	default:
		return FormatJSONL
	}
}

// Options configure a listing export
type Options struct {
	Favorites map[string]bool
	HostLabel func(id string) string // Display label for a host id; nil uses the id
	SheetName string                 // Workbook listing sheet name
}

func (o Options) hostLabel(id string) string {
	if o.HostLabel == nil {
		return id
	}
	return o.HostLabel(id)
}

// WriteListings writes games to w in format
func WriteListings(w io.Writer, format Format, games []models.GameListing, opts Options) error {
	switch format {
	case FormatXLSX:
		return WriteWorkbook(w, games, opts)
	case FormatJSONL:
		_, err := WriteJSONL(w, games)
		return err
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}

// ToFile creates path (truncating it) and writes games in the format implied by its extension.
func ToFile(path string, games []models.GameListing, opts Options, log *logrus.Entry) error {
	format := FormatFromPath(path)
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create export directory %s: %w", dir, err)
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("open export file %s: %w", path, err)
	}
	writeErr := WriteListings(file, format, games, opts)
	if err := file.Sync(); err != nil {
		log.Errorf("Error syncing export file '%s': %v", path, err)
	}
	if err := file.Close(); err != nil && writeErr == nil {
		writeErr = fmt.Errorf("close export file %s: %w", path, err)
	}
	if writeErr != nil {
		return writeErr
	}
	log.WithFields(logrus.Fields{"path": path, "format": format, "games": len(games)}).Info("Export written")
	return nil
}
