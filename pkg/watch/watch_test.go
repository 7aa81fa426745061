package watch

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ps4dex/release-scraper/pkg/catalog"
	"github.com/ps4dex/release-scraper/pkg/models"
	"github.com/ps4dex/release-scraper/pkg/storage"
)

func TestParseInterval(t *testing.T) {
	tests := []struct {
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{"30s", 30 * time.Second, false},
		{"5m", 5 * time.Minute, false},
		{"1h", time.Hour, false},
		{"24h", 24 * time.Hour, false},
		{"1d", 24 * time.Hour, false},
		{"7d", 7 * 24 * time.Hour, false},
		{"1d12h", 36 * time.Hour, false},
		{"2d6h", 54 * time.Hour, false},
		{"invalid", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseInterval(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseInterval(%q) expected error, got nil", tt.input)
				}
				return
			}
			if err != nil {
				t.Errorf("ParseInterval(%q) unexpected error: %v", tt.input, err)
				return
			}
			if got != tt.expected {
				t.Errorf("ParseInterval(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestFormatInterval(t *testing.T) {
	tests := []struct {
		input    time.Duration
		expected string
	}{
		{30 * time.Second, "30s"},
		{5 * time.Minute, "5m"},
		{time.Hour, "1h"},
		{90 * time.Minute, "1h30m"},
		{24 * time.Hour, "1d"},
		{36 * time.Hour, "1d12h"},
		{7 * 24 * time.Hour, "7d"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			got := FormatInterval(tt.input)
			if got != tt.expected {
				t.Errorf("FormatInterval(%v) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func newStore(t *testing.T, dir string) *storage.BadgerStore {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	store, err := storage.NewBadgerStore(dir, logrus.NewEntry(log))
	if err != nil {
		t.Fatalf("NewBadgerStore() failed: %v", err)
	}
	return store
}

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func TestStateManager(t *testing.T) {
	dir := t.TempDir()
	store := newStore(t, dir)

	sm := NewStateManager(store)
	if err := sm.Load(); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	now := time.Now()
	if !sm.ShouldRun(now, time.Hour) {
		t.Error("ShouldRun() should return true before any run")
	}
	if _, ok := sm.Last(); ok {
		t.Error("Last() should report no run yet")
	}

	sm.Record(RunState{LastRunTime: now, LastRunSuccess: true, GamesFound: 100})
	if sm.ShouldRun(now.Add(time.Minute), time.Hour) {
		t.Error("ShouldRun() should return false right after a run")
	}
	if !sm.ShouldRun(now.Add(time.Hour), time.Hour) {
		t.Error("ShouldRun() should return true once the interval passed")
	}
	if got := sm.NextRunTime(now, time.Hour); !got.Equal(now.Add(time.Hour)) {
		t.Errorf("NextRunTime() = %v, want %v", got, now.Add(time.Hour))
	}

	if err := sm.Save(); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	reopened := newStore(t, dir)
	defer reopened.Close()
	sm2 := NewStateManager(reopened)
	if err := sm2.Load(); err != nil {
		t.Fatalf("Load() from saved state failed: %v", err)
	}
	last, ok := sm2.Last()
	if !ok {
		t.Fatal("Last() should return the saved run after Load()")
	}
	if last.GamesFound != 100 || !last.LastRunSuccess {
		t.Errorf("Loaded run = %+v, want 100 games and success", last)
	}
}

func TestCalculateTickInterval(t *testing.T) {
	tests := []struct {
		interval time.Duration
		expected time.Duration
	}{
		{5 * time.Minute, time.Minute},
		{time.Hour, 6 * time.Minute},
		{24 * time.Hour, 10 * time.Minute},
	}
	for _, tt := range tests {
		if got := calculateTickInterval(tt.interval); got != tt.expected {
			t.Errorf("calculateTickInterval(%v) = %v, want %v", tt.interval, got, tt.expected)
		}
	}
}

func TestRunIfDue(t *testing.T) {
	store := newStore(t, "")
	defer store.Close()

	calls := 0
	fail := false
	scan := func(ctx context.Context) (*catalog.ScanReport, error) {
		calls++
		if fail {
			return nil, errors.New("no listings found")
		}
		return &catalog.ScanReport{Result: &models.CrawlResult{
			Games:        map[string]*models.GameListing{"A": models.NewStub("A", "https://x/a/", "", "")},
			PagesScanned: 15,
		}}, nil
	}

	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := NewScheduler(scan, NewStateManager(store), time.Hour, testLogger())
	s.now = func() time.Time { return clock }

	if !s.RunIfDue(context.Background()) {
		t.Fatal("first RunIfDue() should scan")
	}
	if s.RunIfDue(context.Background()) {
		t.Error("RunIfDue() should not scan again before the interval")
	}
	if calls != 1 {
		t.Errorf("scan calls = %d, want 1", calls)
	}
	status := s.GetStatus()
	if status.NeverRun || !status.LastRunSuccess || status.GamesFound != 1 {
		t.Errorf("GetStatus() = %+v", status)
	}

	clock = clock.Add(time.Hour)
	fail = true
	if !s.RunIfDue(context.Background()) {
		t.Fatal("RunIfDue() should scan once the interval passed")
	}
	status = s.GetStatus()
	if status.LastRunSuccess || status.ErrorMessage != "no listings found" {
		t.Errorf("failed run not recorded: %+v", status)
	}
	if !status.NextRunTime.Equal(clock.Add(time.Hour)) {
		t.Errorf("NextRunTime = %v, want %v", status.NextRunTime, clock.Add(time.Hour))
	}
}

func TestRunIfDue_Cancelled(t *testing.T) {
	store := newStore(t, "")
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	scan := func(ctx context.Context) (*catalog.ScanReport, error) {
		cancel()
		return &catalog.ScanReport{Result: &models.CrawlResult{Cancelled: true}}, nil
	}
	s := NewScheduler(scan, NewStateManager(store), time.Hour, testLogger())
	s.RunIfDue(ctx)
	if !s.GetStatus().NeverRun {
		t.Error("an interrupted scan should not count as a run")
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	store := newStore(t, "")
	defer store.Close()

	scanned := make(chan struct{}, 1)
	scan := func(ctx context.Context) (*catalog.ScanReport, error) {
		scanned <- struct{}{}
		return &catalog.ScanReport{Result: &models.CrawlResult{}}, nil
	}
	s := NewScheduler(scan, NewStateManager(store), time.Hour, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case <-scanned:
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not scan on start")
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not stop after cancel")
	}
}
