package watch

import (
	"fmt"
	"sync"
	"time"

	"github.com/ps4dex/release-scraper/pkg/storage"
)

const stateKey = "watch:state"

// RunState records the outcome of the last scheduled scan
type RunState struct {
	LastRunTime    time.Time `json:"last_run_time"`
	LastRunSuccess bool      `json:"last_run_success"`
	PagesScanned   int       `json:"pages_scanned"`
	GamesFound     int       `json:"games_found"`
	ErrorMessage   string    `json:"error_message,omitempty"`
}

// WatchState contains the persistent state for the watch scheduler
type WatchState struct {
	Last      *RunState `json:"last,omitempty"` // nil until the first run finishes
	UpdatedAt time.Time `json:"updated_at"`
}

// StateManager loads and saves watch state in the catalog store
type StateManager struct {
	store storage.KeyValueStore
	state WatchState
	mu    sync.RWMutex
}

// NewStateManager creates a new state manager
func NewStateManager(store storage.KeyValueStore) *StateManager {
	return &StateManager{store: store}
}

// Load loads the state from the store
func (m *StateManager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var state WatchState
	if _, err := m.store.Get(stateKey, &state); err != nil {
		m.state = WatchState{}
		return fmt.Errorf("failed to read watch state: %w", err)
	}
	m.state = state
	return nil
}

// Save writes the state to the store
func (m *StateManager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.UpdatedAt = time.Now()
	if err := m.store.Set(stateKey, m.state); err != nil {
		return fmt.Errorf("failed to write watch state: %w", err)
	}
	return nil
}

// Last returns the last run, if any
func (m *StateManager) Last() (RunState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state.Last == nil {
		return RunState{}, false
	}
	return *m.state.Last, true
}

// Record replaces the last run
func (m *StateManager) Record(run RunState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Last = &run
}

// ShouldRun reports whether interval has passed since the last run
func (m *StateManager) ShouldRun(now time.Time, interval time.Duration) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state.Last == nil {
		return true
	}
	return now.Sub(m.state.Last.LastRunTime) >= interval
}

// NextRunTime returns when the next scan is due
func (m *StateManager) NextRunTime(now time.Time, interval time.Duration) time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state.Last == nil {
		return now
	}
	return m.state.Last.LastRunTime.Add(interval)
}
