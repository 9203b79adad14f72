// Package events provides the in-process publish/subscribe bus that carries
// incremental scan results to live observers.
package events

// Event is anything published on the bus. Type returns a stable name used
// by web transports to tag frames.
type Event interface {
	Type() string
}

// Event type names.
const (
	TypeHostUpdated  = "host-updated"
	TypePortUpdated  = "port-updated"
	TypeRunCompleted = "run-completed"
)

// HostUpdated is published when a host reaches a terminal scan state.
type HostUpdated struct {
	IP       string `json:"ip"`
	Status   string `json:"status"`
	Hostname string `json:"hostname,omitempty"`
	OSGuess  string `json:"os_guess,omitempty"`
}

func (HostUpdated) Type() string { return TypeHostUpdated }

// PortUpdated is published for each port observed on a completed host.
type PortUpdated struct {
	IP      string `json:"ip"`
	Port    int    `json:"port"`
	State   string `json:"state"`
	Service string `json:"service,omitempty"`
	Version string `json:"version,omitempty"`
}

func (PortUpdated) Type() string { return TypePortUpdated }

// RunSummary describes a finished or cancelled run.
type RunSummary struct {
	RunID     string  `json:"run_id"`
	State     string  `json:"state"`
	Targets   int     `json:"targets"`
	Completed int     `json:"completed"`
	Failed    int     `json:"failed"`
	TimedOut  int     `json:"timed_out"`
	Skipped   int     `json:"skipped"`
	Duration  float64 `json:"duration_seconds"`
}

// RunCompleted is published exactly once when a run ends, whether it ran to
// completion or was cancelled.
type RunCompleted struct {
	Summary RunSummary `json:"summary"`
}

func (RunCompleted) Type() string { return TypeRunCompleted }
