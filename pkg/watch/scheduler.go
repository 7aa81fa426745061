// Package watch rescans the catalog on a fixed interval.
package watch

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ps4dex/release-scraper/pkg/jobs"
)

// Scheduler runs a scan whenever the interval has passed since the last one.
// The last run survives restarts through the StateManager.
type Scheduler struct {
	scan         jobs.ScanFunc
	interval     time.Duration
	tick         time.Duration
	log          *logrus.Entry
	stateManager *StateManager
	now          func() time.Time
}

// NewScheduler creates a new watch scheduler
func NewScheduler(scan jobs.ScanFunc, state *StateManager, interval time.Duration, log *logrus.Entry) *Scheduler {
	return &Scheduler{
		scan:         scan,
		interval:     interval,
		tick:         calculateTickInterval(interval),
		log:          log.WithField("component", "watch"),
		stateManager: state,
		now:          time.Now,
	}
}

// Run blocks until ctx is cancelled, scanning whenever one is due.
// Scans run inline, so they never overlap.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.stateManager.Load(); err != nil {
		s.log.Warnf("Failed to load watch state: %v (starting fresh)", err)
	}
	s.log.Infof("Starting watch mode with interval %s", FormatInterval(s.interval))
	s.logSchedule()

	s.RunIfDue(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Info("Watch scheduler shutting down...")
			return nil
		case <-ticker.C:
			s.RunIfDue(ctx)
		}
	}
}

// RunIfDue scans when due and reports whether it did
func (s *Scheduler) RunIfDue(ctx context.Context) bool {
	if !s.stateManager.ShouldRun(s.now(), s.interval) {
		return false
	}
	if ctx.Err() != nil {
		return false
	}

	s.log.Info("Scan due, starting")
	report, err := s.scan(ctx)
	if ctx.Err() != nil {
		// Shutdown mid-scan; the next start retries
		s.log.Info("Scheduled scan interrupted")
		return true
	}

	run := RunState{LastRunTime: s.now(), LastRunSuccess: err == nil}
	if err != nil {
		run.ErrorMessage = err.Error()
		s.log.Warnf("Scheduled scan failed: %v", err)
	}
	if report != nil && report.Result != nil {
		run.PagesScanned = report.Result.PagesScanned
		run.GamesFound = len(report.Result.Games)
	}
	s.stateManager.Record(run)
	if err := s.stateManager.Save(); err != nil {
		s.log.Errorf("Failed to save watch state: %v", err)
	}
	s.logNextRun()
	return true
}

// calculateTickInterval returns how often to check whether a scan is due
func calculateTickInterval(interval time.Duration) time.Duration {
	checkInterval := interval / 10
	if checkInterval < time.Minute {
		checkInterval = time.Minute
	}
	if checkInterval > 10*time.Minute {
		checkInterval = 10 * time.Minute
	}
	return checkInterval
}

func (s *Scheduler) logSchedule() {
	last, ok := s.stateManager.Last()
	if !ok {
		s.log.Info("Never scanned, will scan immediately")
		return
	}
	status := "success"
	if !last.LastRunSuccess {
		status = "failed"
	}
	s.log.Infof("Last scan %v (%s, %d games), next scan %v",
		last.LastRunTime.Format(time.RFC3339), status, last.GamesFound,
		s.stateManager.NextRunTime(s.now(), s.interval).Format(time.RFC3339))
}

func (s *Scheduler) logNextRun() {
	next := s.stateManager.NextRunTime(s.now(), s.interval)
	until := next.Sub(s.now())
	if until < 0 {
		until = 0
	}
	s.log.Infof("Next scan in %v (at %s)", until.Round(time.Second), next.Format("15:04:05"))
}

// Status describes the scheduler for display
type Status struct {
	LastRunTime    time.Time
	LastRunSuccess bool
	GamesFound     int
	ErrorMessage   string
	NextRunTime    time.Time
	NeverRun       bool
}

// GetStatus returns the last run and the next due time
func (s *Scheduler) GetStatus() Status {
	last, ok := s.stateManager.Last()
	return Status{
		LastRunTime:    last.LastRunTime,
		LastRunSuccess: last.LastRunSuccess,
		GamesFound:     last.GamesFound,
		ErrorMessage:   last.ErrorMessage,
		NextRunTime:    s.stateManager.NextRunTime(s.now(), s.interval),
		NeverRun:       !ok,
	}
}

// FormatInterval formats a duration for display
func FormatInterval(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		hours := int(d.Hours())
		mins := int(d.Minutes()) % 60
		if mins > 0 {
			return fmt.Sprintf("%dh%dm", hours, mins)
		}
		return fmt.Sprintf("%dh", hours)
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	if hours > 0 {
		return fmt.Sprintf("%dd%dh", days, hours)
	}
	return fmt.Sprintf("%dd", days)
}

// ParseInterval parses a duration string with support for days
func ParseInterval(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err == nil {
		return d, nil
	}

	var days int
	var remaining string
	n, _ := fmt.Sscanf(s, "%dd%s", &days, &remaining)
	if n >= 1 {
		d = time.Duration(days) * 24 * time.Hour
		if remaining != "" {
			extra, err := time.ParseDuration(remaining)
			if err != nil {
				return 0, fmt.Errorf("invalid interval format: %s", s)
			}
			d += extra
		}
		return d, nil
	}

	return 0, fmt.Errorf("invalid interval format: %s (examples: 30m, 1h, 24h, 7d)", s)
}
