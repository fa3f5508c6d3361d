package pipeline

import (
	"maps"
	"sync"
	"time"

	"github.com/couchcryptid/drought-index-etl/internal/domain"
)

// Run states.
const (
	StateIdle      = "idle"
	StateRunning   = "running"
	StateSucceeded = "succeeded"
	StateFailed    = "failed"
)

// Status is the JSON view of the latest run.
type Status struct {
	RunID      string         `json:"run_id,omitempty"`
	State      string         `json:"state"`
	StartedAt  time.Time      `json:"started_at,omitzero"`
	FinishedAt time.Time      `json:"finished_at,omitzero"`
	Outputs    map[string]int `json:"outputs,omitempty"`
	Skipped    map[string]int `json:"skipped,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// statusTracker records run progress for the /status endpoint.
type statusTracker struct {
	mu     sync.Mutex
	status Status
}

func (t *statusTracker) start(runID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = Status{
		RunID:     runID,
		State:     StateRunning,
		StartedAt: domain.Now(),
		Outputs:   map[string]int{},
		Skipped:   map[string]int{},
	}
}

func (t *statusTracker) record(outputs, skipped map[string]int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for k, v := range outputs {
		t.status.Outputs[k] += v
	}
	for k, v := range skipped {
		t.status.Skipped[k] += v
	}
}

func (t *statusTracker) finish(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.FinishedAt = domain.Now()
	t.status.State = StateSucceeded
	if err != nil {
		t.status.State = StateFailed
		t.status.Error = err.Error()
	}
}

func (t *statusTracker) snapshot() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.status
	if s.State == "" {
		s.State = StateIdle
	}
	s.Outputs = maps.Clone(s.Outputs)
	s.Skipped = maps.Clone(s.Skipped)
	return s
}
