package scan

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/edgerunner0x01/violette/internal/events"
)

// Run states reported in the summary.
const (
	RunCompleted = "completed"
	RunCancelled = "cancelled"
)

// Tracker owns a run's progress counters and publishes the run-completed
// event exactly once when the run ends.
type Tracker struct {
	runID   string
	bus     *events.Bus
	started time.Time

	mu        sync.Mutex
	targets   int
	completed int
	failed    int
	timedOut  int
	skipped   int
	inFlight  int

	finishOnce sync.Once
	summary    events.RunSummary
}

// NewTracker creates a tracker for a run over the given number of targets.
// bus may be nil.
func NewTracker(targets int, bus *events.Bus) *Tracker {
	return &Tracker{
		runID:   uuid.NewString(),
		bus:     bus,
		started: time.Now(),
		targets: targets,
	}
}

// RunID returns the run's identifier.
func (t *Tracker) RunID() string {
	return t.runID
}

func (t *Tracker) taskStarted() {
	t.mu.Lock()
	t.inFlight++
	t.mu.Unlock()
}

func (t *Tracker) taskFinished(state TaskState) {
	t.mu.Lock()
	t.inFlight--
	switch state {
	case StateCompleted:
		t.completed++
	case StateTimedOut:
		t.timedOut++
	case StateFailed:
		t.failed++
	}
	t.mu.Unlock()
}

func (t *Tracker) taskSkipped() {
	t.mu.Lock()
	t.skipped++
	t.targets--
	t.mu.Unlock()
}

// Summary returns the current counters. Callable at any time during a run.
func (t *Tracker) Summary() events.RunSummary {
	t.mu.Lock()
	defer t.mu.Unlock()
	return events.RunSummary{
		RunID:     t.runID,
		Targets:   t.targets,
		Completed: t.completed,
		Failed:    t.failed,
		TimedOut:  t.timedOut,
		Skipped:   t.skipped,
		Duration:  time.Since(t.started).Seconds(),
	}
}

// Finish freezes the summary with the given run state and publishes the
// run-completed event. Later calls return the frozen summary unchanged.
func (t *Tracker) Finish(state string) events.RunSummary {
	t.finishOnce.Do(func() {
		t.summary = t.Summary()
		t.summary.State = state
		if t.bus != nil {
			t.bus.Publish(events.RunCompleted{Summary: t.summary})
		}
	})
	return t.summary
}
