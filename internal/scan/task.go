// Package scan orchestrates a scan run: it walks the target set, bounds
// concurrency, applies per-host timeouts, and pushes each result through
// the store and the event bus exactly once.
package scan

import (
	"net/netip"
	"sync"
	"time"

	"github.com/edgerunner0x01/violette/internal/engine"
)

// TaskState is the lifecycle state of one host scan.
type TaskState string

const (
	StatePending   TaskState = "pending"
	StateScanning  TaskState = "scanning"
	StateCompleted TaskState = "completed"
	StateTimedOut  TaskState = "timed-out"
	StateFailed    TaskState = "failed"
)

// terminal reports whether a state admits no further transitions.
func (s TaskState) terminal() bool {
	switch s {
	case StateCompleted, StateTimedOut, StateFailed:
		return true
	}
	return false
}

// Task tracks one host through the scan lifecycle. All transitions are
// single-shot: once a task is terminal, later transition attempts report
// false and change nothing, which is how late engine results get discarded.
type Task struct {
	Addr netip.Addr

	mu       sync.Mutex
	state    TaskState
	report   *engine.Report
	err      error
	started  time.Time
	finished time.Time
}

// NewTask creates a pending task for one address.
func NewTask(addr netip.Addr) *Task {
	return &Task{Addr: addr, state: StatePending}
}

// State returns the current lifecycle state.
func (t *Task) State() TaskState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Report returns the engine report for a completed task, nil otherwise.
func (t *Task) Report() *engine.Report {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.report
}

// Err returns the failure cause for a failed task, nil otherwise.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Duration returns how long the task was in scanning, zero until terminal.
func (t *Task) Duration() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finished.IsZero() {
		return 0
	}
	return t.finished.Sub(t.started)
}

// markScanning moves pending→scanning. Returns false if the task already
// left pending.
func (t *Task) markScanning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StatePending {
		return false
	}
	t.state = StateScanning
	t.started = time.Now()
	return true
}

// complete moves scanning→completed with the engine's report.
func (t *Task) complete(report *engine.Report) bool {
	return t.finish(StateCompleted, report, nil)
}

// timeout moves scanning→timed-out.
func (t *Task) timeout() bool {
	return t.finish(StateTimedOut, nil, nil)
}

// fail moves scanning→failed with the typed cause.
func (t *Task) fail(err error) bool {
	return t.finish(StateFailed, nil, err)
}

func (t *Task) finish(state TaskState, report *engine.Report, err error) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.terminal() {
		return false
	}
	t.state = state
	t.report = report
	t.err = err
	t.finished = time.Now()
	return true
}
