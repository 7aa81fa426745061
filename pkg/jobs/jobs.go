// Package jobs runs catalog scans in the background and tracks their status.
package jobs

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ps4dex/release-scraper/pkg/catalog"
	"github.com/ps4dex/release-scraper/pkg/crawler"
)

// JobStatus represents the current state of a scan job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Done reports whether the status is terminal
func (s JobStatus) Done() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// Job is a snapshot of one background scan
type Job struct {
	ID           string    `json:"id"`
	Status       JobStatus `json:"status"`
	StartedAt    time.Time `json:"started_at"`
	CompletedAt  time.Time `json:"completed_at,omitempty"`
	PagesScanned int       `json:"pages_scanned"`
	GamesFound   int       `json:"games_found"`
	LimitReached bool      `json:"limit_reached"`
	ErrorSummary string    `json:"error_summary,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// ScanFunc runs one scan to completion
type ScanFunc func(ctx context.Context) (*catalog.ScanReport, error)

// ProgressFunc reports live crawl counters
type ProgressFunc func() crawler.Progress

type entry struct {
	job    Job
	cancel context.CancelFunc
	done   chan struct{}
}

// Manager runs at most one scan job at a time
type Manager struct {
	scan     ScanFunc
	progress ProgressFunc
	log      *logrus.Entry

	mu     sync.RWMutex
	jobs   map[string]*entry
	active string // ID of the job whose scan has not returned yet
}

// NewManager creates a job manager. progress may be nil.
func NewManager(scan ScanFunc, progress ProgressFunc, log *logrus.Entry) *Manager {
	return &Manager{
		scan:     scan,
		progress: progress,
		log:      log.WithField("component", "jobs"),
		jobs:     make(map[string]*entry),
	}
}

// StartScan starts a background scan. If one has not finished yet (including a
// cancelled scan still winding down) it is returned instead and started is false.
func (m *Manager) StartScan() (job Job, started bool) {
	m.mu.Lock()
	if e, ok := m.jobs[m.active]; ok {
		job = e.job
		m.mu.Unlock()
		return job, false
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &entry{
		job: Job{
			ID:        uuid.New().String(),
			Status:    JobStatusPending,
			StartedAt: time.Now(),
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}
	m.jobs[e.job.ID] = e
	m.active = e.job.ID
	job = e.job
	m.mu.Unlock()

	go m.run(ctx, e)
	return job, true
}

func (m *Manager) run(ctx context.Context, e *entry) {
	defer close(e.done)
	defer e.cancel()
	jobLog := m.log.WithField("job_id", e.job.ID)

	m.mu.Lock()
	if e.job.Status == JobStatusPending {
		e.job.Status = JobStatusRunning
	}
	m.mu.Unlock()
	jobLog.Info("Scan job started")

	report, err := m.scan(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	if report != nil {
		if report.Result != nil {
			e.job.PagesScanned = report.Result.PagesScanned
			e.job.GamesFound = len(report.Result.Games)
		}
		e.job.LimitReached = report.LimitReached
		e.job.ErrorSummary = report.ErrorSummary
	}
	cancelled := errors.Is(err, context.Canceled) || (report != nil && report.Result != nil && report.Result.Cancelled)
	switch {
	case e.job.Status == JobStatusCancelled || cancelled:
		e.job.Status = JobStatusCancelled
	case err != nil:
		e.job.Status = JobStatusFailed
		e.job.ErrorMessage = err.Error()
	default:
		e.job.Status = JobStatusCompleted
	}
	if e.job.CompletedAt.IsZero() {
		e.job.CompletedAt = time.Now()
	}
	if m.active == e.job.ID {
		m.active = ""
	}
	jobLog.WithFields(logrus.Fields{"status": e.job.Status, "games": e.job.GamesFound}).Info("Scan job finished")
}

// GetJob returns a snapshot of a job, with live progress while it runs
func (m *Manager) GetJob(jobID string) (Job, bool) {
	m.mu.RLock()
	e, ok := m.jobs[jobID]
	if !ok {
		m.mu.RUnlock()
		return Job{}, false
	}
	job := e.job
	m.mu.RUnlock()

	if job.Status == JobStatusRunning && m.progress != nil {
		p := m.progress()
		job.PagesScanned = p.PagesScanned
		job.GamesFound = p.GamesFound
	}
	return job, true
}

// Active returns the job whose scan has not returned yet, if any
func (m *Manager) Active() (Job, bool) {
	m.mu.RLock()
	id := m.active
	m.mu.RUnlock()
	if id == "" {
		return Job{}, false
	}
	return m.GetJob(id)
}

// CancelJob cancels a pending or running job. The scan stops issuing fetches and
// the catalog keeps its previous listings.
func (m *Manager) CancelJob(jobID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.jobs[jobID]
	if !ok || e.job.Status.Done() {
		return false
	}
	e.cancel()
	e.job.Status = JobStatusCancelled
	e.job.CompletedAt = time.Now()
	return true
}

// CancelAll cancels every unfinished job
func (m *Manager) CancelAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.jobs {
		if !e.job.Status.Done() {
			e.cancel()
			e.job.Status = JobStatusCancelled
			e.job.CompletedAt = time.Now()
		}
	}
}

// Wait blocks until the job finishes or ctx is done
func (m *Manager) Wait(ctx context.Context, jobID string) (Job, error) {
	m.mu.RLock()
	e, ok := m.jobs[jobID]
	m.mu.RUnlock()
	if !ok {
		return Job{}, errors.New("job not found")
	}
	select {
	case <-e.done:
	case <-ctx.Done():
		return Job{}, ctx.Err()
	}
	job, _ := m.GetJob(jobID)
	return job, nil
}

// ListJobs returns all jobs, newest first
func (m *Manager) ListJobs() []Job {
	m.mu.RLock()
	jobs := make([]Job, 0, len(m.jobs))
	for _, e := range m.jobs {
		jobs = append(jobs, e.job)
	}
	m.mu.RUnlock()
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].StartedAt.After(jobs[j].StartedAt) })
	return jobs
}
