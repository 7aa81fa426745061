package jobs

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ps4dex/release-scraper/pkg/catalog"
	"github.com/ps4dex/release-scraper/pkg/config"
	"github.com/ps4dex/release-scraper/pkg/crawler"
	"github.com/ps4dex/release-scraper/pkg/export"
	"github.com/ps4dex/release-scraper/pkg/models"
	"github.com/ps4dex/release-scraper/pkg/storage"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func waitJob(t *testing.T, m *Manager, id string) Job {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	job, err := m.Wait(ctx, id)
	require.NoError(t, err)
	return job
}

func okReport(games int) *catalog.ScanReport {
	res := &models.CrawlResult{Games: make(map[string]*models.GameListing), PagesScanned: 15}
	for i := 0; i < games; i++ {
		title := string(rune('A' + i))
		res.Games[title] = models.NewStub(title, "https://x/"+title, "", "")
	}
	return &catalog.ScanReport{Result: res}
}

func TestStartScan_Completes(t *testing.T) {
	m := NewManager(func(ctx context.Context) (*catalog.ScanReport, error) {
		return okReport(3), nil
	}, nil, testLogger())

	job, started := m.StartScan()
	require.True(t, started)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, JobStatusPending, job.Status)

	done := waitJob(t, m, job.ID)
	assert.Equal(t, JobStatusCompleted, done.Status)
	assert.Equal(t, 3, done.GamesFound)
	assert.Equal(t, 15, done.PagesScanned)
	assert.False(t, done.CompletedAt.IsZero())

	_, ok := m.Active()
	assert.False(t, ok)
}

func TestStartScan_OneAtATime(t *testing.T) {
	release := make(chan struct{})
	m := NewManager(func(ctx context.Context) (*catalog.ScanReport, error) {
		<-release
		return okReport(1), nil
	}, func() crawler.Progress {
		return crawler.Progress{PagesScanned: 30, GamesFound: 12, IsRunning: true}
	}, testLogger())

	first, started := m.StartScan()
	require.True(t, started)
	second, started := m.StartScan()
	assert.False(t, started)
	assert.Equal(t, first.ID, second.ID)

	require.Eventually(t, func() bool {
		j, _ := m.GetJob(first.ID)
		return j.Status == JobStatusRunning
	}, time.Second, 5*time.Millisecond)
	live, _ := m.GetJob(first.ID)
	assert.Equal(t, 30, live.PagesScanned, "running jobs report live progress")
	assert.Equal(t, 12, live.GamesFound)

	close(release)
	waitJob(t, m, first.ID)
	third, started := m.StartScan()
	assert.True(t, started)
	assert.NotEqual(t, first.ID, third.ID)
	waitJob(t, m, third.ID)
	assert.Len(t, m.ListJobs(), 2)
}

func TestStartScan_Failed(t *testing.T) {
	m := NewManager(func(ctx context.Context) (*catalog.ScanReport, error) {
		return &catalog.ScanReport{Result: &models.CrawlResult{}}, errors.New("no listings found")
	}, nil, testLogger())
	job, _ := m.StartScan()
	done := waitJob(t, m, job.ID)
	assert.Equal(t, JobStatusFailed, done.Status)
	assert.Equal(t, "no listings found", done.ErrorMessage)
}

func TestCancelJob(t *testing.T) {
	m := NewManager(func(ctx context.Context) (*catalog.ScanReport, error) {
		<-ctx.Done()
		return &catalog.ScanReport{Result: &models.CrawlResult{Cancelled: true}}, nil
	}, nil, testLogger())

	job, _ := m.StartScan()
	assert.True(t, m.CancelJob(job.ID))
	assert.False(t, m.CancelJob(job.ID), "already cancelled")
	assert.False(t, m.CancelJob("nope"))

	done := waitJob(t, m, job.ID)
	assert.Equal(t, JobStatusCancelled, done.Status)
}

func TestCancelAll(t *testing.T) {
	m := NewManager(func(ctx context.Context) (*catalog.ScanReport, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}, nil, testLogger())
	job, _ := m.StartScan()
	m.CancelAll()
	done := waitJob(t, m, job.ID)
	assert.Equal(t, JobStatusCancelled, done.Status)
	assert.Empty(t, done.ErrorMessage)
}

func TestWait_UnknownJob(t *testing.T) {
	m := NewManager(func(ctx context.Context) (*catalog.ScanReport, error) { return nil, nil }, nil, testLogger())
	_, err := m.Wait(context.Background(), "ghost")
	assert.Error(t, err)
	_, ok := m.GetJob("ghost")
	assert.False(t, ok)
}

type stubScanner struct{}

func (stubScanner) Scan(ctx context.Context, maxListings int) (*models.CrawlResult, error) {
	return &models.CrawlResult{
		Games:        map[string]*models.GameListing{"A": models.NewStub("A", "https://x/a/", "", "2024-01-01")},
		Order:        []string{"A"},
		PagesScanned: 15,
		HitEnd:       true,
	}, nil
}

func TestReportingScan_WritesReport(t *testing.T) {
	store, err := storage.NewBadgerStore("", testLogger())
	require.NoError(t, err)
	defer store.Close()
	cat := catalog.New(store, stubScanner{}, nil, []string{"akira"}, time.Second, testLogger())
	_, err = cat.Load()
	require.NoError(t, err)

	cfg := &config.AppConfig{StateDir: t.TempDir(), Site: config.SiteConfig{BaseURL: "https://example.com"}}
	report, err := ReportingScan(cat, cfg, testLogger())(context.Background())
	require.NoError(t, err)
	assert.Len(t, report.Result.Games, 1)

	path := ScanReportPath(cfg)
	assert.Equal(t, filepath.Join(cfg.StateDir, ScanReportFile), path)
	written, err := export.ReadScanReport(path)
	require.NoError(t, err)
	assert.Equal(t, 1, written.GamesFound)
	assert.Equal(t, "https://example.com", written.BaseURL)

	cfg.StateDir = ""
	assert.Empty(t, ScanReportPath(cfg))
}
