package jobs

import (
	"context"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ps4dex/release-scraper/pkg/catalog"
	"github.com/ps4dex/release-scraper/pkg/config"
	"github.com/ps4dex/release-scraper/pkg/export"
)

// ScanReportFile is the name of the last scan report inside the state directory
const ScanReportFile = "last_scan.yaml"

// ScanReportPath returns where the last scan report is kept, "" without a state directory
func ScanReportPath(cfg *config.AppConfig) string {
	if cfg.StateDir == "" {
		return ""
	}
	return filepath.Join(cfg.StateDir, ScanReportFile)
}

// ReportingScan wraps cat.Scan so every finished scan also writes a YAML report
// to the state directory. Report failures are logged, never returned.
func ReportingScan(cat *catalog.Catalog, cfg *config.AppConfig, log *logrus.Entry) ScanFunc {
	return func(ctx context.Context) (*catalog.ScanReport, error) {
		started := time.Now()
		report, err := cat.Scan(ctx)
		path := ScanReportPath(cfg)
		if path == "" || report == nil {
			return report, err
		}
		out := export.NewScanReport(cfg.Site, report.Result, started, time.Now(), report.LimitReached, report.ErrorSummary, log)
		if werr := export.WriteScanReport(path, out, log); werr != nil {
			log.Warnf("Failed to write scan report: %v", werr)
		}
		return report, err
	}
}
