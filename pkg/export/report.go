package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/ps4dex/release-scraper/pkg/config"
	"github.com/ps4dex/release-scraper/pkg/models"
)

// ScanReport summarizes one scan for the state directory
type ScanReport struct {
	BaseURL           string                 `yaml:"base_url"`
	StartedAt         time.Time              `yaml:"started_at"`
	FinishedAt        time.Time              `yaml:"finished_at"`
	PagesScanned      int                    `yaml:"pages_scanned"`
	GamesFound        int                    `yaml:"games_found"`
	HitEnd            bool                   `yaml:"hit_end"`
	Cancelled         bool                   `yaml:"cancelled"`
	LimitReached      bool                   `yaml:"limit_reached"`
	ErrorSummary      string                 `yaml:"error_summary,omitempty"`
	Errors            []models.ErrorRecord   `yaml:"errors,omitempty"`
	SiteConfiguration map[string]interface{} `yaml:"site_configuration,omitempty"`
}

// NewScanReport builds a report from a crawl result. res may be nil when the scan failed outright.
func NewScanReport(siteCfg config.SiteConfig, res *models.CrawlResult, started, finished time.Time, limitReached bool, errorSummary string, log *logrus.Entry) ScanReport {
	report := ScanReport{
		BaseURL:      siteCfg.BaseURL,
		StartedAt:    started,
		FinishedAt:   finished,
		LimitReached: limitReached,
		ErrorSummary: errorSummary,
	}
	if res != nil {
		report.PagesScanned = res.PagesScanned
		report.GamesFound = len(res.Games)
		report.HitEnd = res.HitEnd
		report.Cancelled = res.Cancelled
		report.Errors = res.Errors
	}

	siteConfigBytes, err := yaml.Marshal(siteCfg)
	if err != nil {
		log.Warnf("Could not marshal site configuration for scan report: %v", err)
		return report
	}
	if err := yaml.Unmarshal(siteConfigBytes, &report.SiteConfiguration); err != nil {
		log.Warnf("Could not unmarshal site configuration into map for scan report: %v", err)
		report.SiteConfiguration = nil
	}
	return report
}

// WriteScanReport writes report as YAML to path
func WriteScanReport(path string, report ScanReport, log *logrus.Entry) error {
	data, err := yaml.Marshal(&report)
	if err != nil {
		return fmt.Errorf("marshal scan report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write scan report '%s': %w", path, err)
	}
	log.Infof("Wrote scan report (%d games) to %s", report.GamesFound, path)
	return nil
}

// ReadScanReport loads a report written by WriteScanReport
func ReadScanReport(path string) (ScanReport, error) {
	var report ScanReport
	data, err := os.ReadFile(path)
	if err != nil {
		return report, err
	}
	if err := yaml.Unmarshal(data, &report); err != nil {
		return report, fmt.Errorf("parse scan report '%s': %w", path, err)
	}
	return report, nil
}
