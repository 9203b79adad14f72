package scan

import (
	"context"
	"sync"
	"time"

	"github.com/edgerunner0x01/violette/internal/engine"
	verrors "github.com/edgerunner0x01/violette/internal/errors"
	"github.com/edgerunner0x01/violette/internal/events"
	"github.com/edgerunner0x01/violette/internal/logging"
	"github.com/edgerunner0x01/violette/internal/metrics"
	"github.com/edgerunner0x01/violette/internal/store"
	"github.com/edgerunner0x01/violette/internal/targets"
)

// Default scheduler settings.
const (
	DefaultWorkers     = 10
	DefaultHostTimeout = 300 * time.Second
	DefaultFreshWindow = 24 * time.Hour
)

// Config controls one scheduler instance.
type Config struct {
	// Workers bounds the number of hosts in scanning at once.
	Workers int
	// HostTimeout is the per-host deadline. A host that exceeds it is
	// marked timed-out and its slot freed, whatever the engine is doing.
	HostTimeout time.Duration
	// Quick passes through to the engine.
	Quick bool
	// Fresh disables the rescan-freshness skip.
	Fresh bool
	// FreshWindow is how recently a host must have been scanned to be
	// skipped when Fresh is false.
	FreshWindow time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.HostTimeout <= 0 {
		c.HostTimeout = DefaultHostTimeout
	}
	if c.FreshWindow <= 0 {
		c.FreshWindow = DefaultFreshWindow
	}
	return c
}

// Scheduler runs host scans over a target set with bounded concurrency.
type Scheduler struct {
	engine  engine.Engine
	store   *store.Store
	bus     *events.Bus
	metrics *metrics.Registry
	cfg     Config
	log     *logging.Logger
}

// NewScheduler creates a scheduler. bus and reg may be nil; store must not.
func NewScheduler(eng engine.Engine, st *store.Store, bus *events.Bus,
	reg *metrics.Registry, cfg Config) *Scheduler {
	return &Scheduler{
		engine:  eng,
		store:   st,
		bus:     bus,
		metrics: reg,
		cfg:     cfg.withDefaults(),
		log:     logging.Default().WithComponent("scheduler"),
	}
}

// Run scans every address of the set in order, admitting at most Workers
// hosts at a time, and returns the run summary. Cancelling ctx stops
// admission; in-flight hosts resolve before Run returns. The summary's
// State is "cancelled" when ctx was cancelled, "completed" otherwise.
func (s *Scheduler) Run(ctx context.Context, set *targets.Set) (*events.RunSummary, error) {
	if set == nil || set.Len() == 0 {
		return nil, verrors.NewScanError(verrors.CodeValidation, "target set is empty")
	}

	tracker := NewTracker(set.Len(), s.bus)
	s.log.Info("run started",
		"run_id", tracker.RunID(),
		"targets", set.Len(),
		"workers", s.cfg.Workers,
		"host_timeout", s.cfg.HostTimeout)

	taskCh := make(chan *Task)
	go func() {
		defer close(taskCh)
		for _, addr := range set.Addrs() {
			select {
			case taskCh <- NewTask(addr):
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range taskCh {
				s.scanHost(ctx, task, tracker)
			}
		}()
	}
	wg.Wait()

	state := RunCompleted
	if ctx.Err() != nil {
		state = RunCancelled
	}
	summary := tracker.Finish(state)
	s.log.Info("run finished",
		"run_id", summary.RunID,
		"state", summary.State,
		"completed", summary.Completed,
		"failed", summary.Failed,
		"timed_out", summary.TimedOut,
		"skipped", summary.Skipped)
	return &summary, nil
}

// scanHost drives one task from admission to a terminal state. The worker
// never waits past the host deadline: the engine call runs in its own
// goroutine and a late result is discarded by the task's single-shot
// transition.
func (s *Scheduler) scanHost(ctx context.Context, task *Task, tracker *Tracker) {
	addr := task.Addr.String()

	// Cancellation stops admission only. A task the dispatcher handed over
	// before the cancel arrived is turned away here, still pending.
	if ctx.Err() != nil {
		return
	}

	if !s.cfg.Fresh {
		recent, err := s.store.RecentlyScanned(ctx, addr, s.cfg.FreshWindow)
		if err != nil {
			s.log.Warn("freshness check failed, scanning anyway", "target", addr, "error", err)
		} else if recent {
			s.log.Debug("skipping recently scanned host", "target", addr)
			tracker.taskSkipped()
			return
		}
	}

	if !task.markScanning() {
		return
	}
	tracker.taskStarted()
	if s.metrics != nil {
		s.metrics.ActiveScans.Inc()
	}

	// Once dispatched, a task is bounded only by its own deadline. The run
	// ctx must not reach the engine call or the terminal writes: cancelling
	// a run lets in-flight hosts finish or time out on their own.
	detached := context.WithoutCancel(ctx)
	hostCtx, cancel := context.WithTimeout(detached, s.cfg.HostTimeout)
	defer cancel()
	persistCtx := detached

	type scanResult struct {
		report *engine.Report
		err    error
	}

	resultCh := make(chan scanResult, 1)
	go func() {
		report, err := s.engine.Scan(hostCtx, addr, engine.Options{
			Quick:   s.cfg.Quick,
			Timeout: s.cfg.HostTimeout,
		})
		resultCh <- scanResult{report, err}
	}()

	select {
	case res := <-resultCh:
		switch {
		case res.err == nil:
			if task.complete(res.report) {
				s.recordCompletion(persistCtx, addr, res.report)
			}
		case verrors.IsCode(res.err, verrors.CodeTimeout):
			if task.timeout() {
				s.recordTimeout(persistCtx, addr)
			}
		default:
			if task.fail(res.err) {
				s.recordFailure(persistCtx, addr, res.err)
			}
		}
	case <-hostCtx.Done():
		// Only the per-host deadline can fire here.
		if task.timeout() {
			s.recordTimeout(persistCtx, addr)
		}
	}

	state := task.State()
	tracker.taskFinished(state)
	if s.metrics != nil {
		s.metrics.ActiveScans.Dec()
		s.metrics.RecordScan(string(state), task.Duration().Seconds())
	}
}

// recordCompletion performs the terminal store write for a completed host
// and publishes its events. A persistence failure is contained: it is
// logged and counted, and the events still go out with the in-memory
// outcome.
func (s *Scheduler) recordCompletion(ctx context.Context, addr string, report *engine.Report) {
	host := store.Host{
		IP:       addr,
		Hostname: report.Hostname,
		LastScan: store.Timestamp(time.Now()),
		OSGuess:  report.OSGuess,
		Status:   report.Status,
	}
	ports := make([]store.Port, 0, len(report.Ports))
	for _, p := range report.Ports {
		ports = append(ports, store.Port{
			PortNumber: int(p.Number),
			Service:    p.Service,
			Version:    p.Version,
			State:      p.State,
		})
	}

	if _, err := s.store.RecordScan(ctx, host, ports); err != nil {
		s.storeFailed(addr, err)
	}

	s.publish(events.HostUpdated{
		IP:       addr,
		Status:   report.Status,
		Hostname: report.Hostname,
		OSGuess:  report.OSGuess,
	})
	for _, p := range report.Ports {
		s.publish(events.PortUpdated{
			IP:      addr,
			Port:    int(p.Number),
			State:   p.State,
			Service: p.Service,
			Version: p.Version,
		})
	}
	s.log.InfoScan("host scan completed", addr,
		"status", report.Status, "ports", len(report.Ports))
}

func (s *Scheduler) recordTimeout(ctx context.Context, addr string) {
	if err := s.store.UpdateHostStatus(ctx, addr, string(StateTimedOut)); err != nil {
		s.storeFailed(addr, err)
	}
	s.publish(events.HostUpdated{IP: addr, Status: string(StateTimedOut)})
	s.log.Warn("host scan timed out", "target", addr, "timeout", s.cfg.HostTimeout)
}

func (s *Scheduler) recordFailure(ctx context.Context, addr string, cause error) {
	if err := s.store.UpdateHostStatus(ctx, addr, "error"); err != nil {
		s.storeFailed(addr, err)
	}
	s.publish(events.HostUpdated{IP: addr, Status: "error"})
	s.log.ErrorScan("host scan failed", addr, cause,
		"code", verrors.GetCode(cause))
}

func (s *Scheduler) storeFailed(addr string, err error) {
	s.log.ErrorScan("failed to persist scan result", addr, err)
	if s.metrics != nil {
		s.metrics.StoreWriteErrors.Inc()
	}
}

func (s *Scheduler) publish(event events.Event) {
	if s.bus != nil {
		s.bus.Publish(event)
	}
}
