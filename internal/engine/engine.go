// Package engine defines the boundary to the external scan engine and its
// nmap-backed implementation. Everything above this package treats the
// engine as a black box that takes one address and returns one report.
package engine

import (
	"context"
	"time"
)

// Engine is the scan boundary. Implementations must honor ctx cancellation
// and deadlines, and must classify failures with the error codes from the
// errors package so callers can distinguish unreachable hosts from
// permission problems and malformed responses.
type Engine interface {
	Scan(ctx context.Context, addr string, opts Options) (*Report, error)
}

// Options controls a single host scan.
type Options struct {
	// Quick restricts the probe to the most common ports and skips OS
	// detection.
	Quick bool
	// Timeout is the per-host budget, passed through to the engine so it
	// can give up on its own before the caller's deadline fires.
	Timeout time.Duration
}

// Report is the engine's view of a single scanned host.
type Report struct {
	Status   string
	Hostname string
	OSGuess  string
	Ports    []PortReport
}

// PortReport describes one observed port.
type PortReport struct {
	Number  uint16
	State   string
	Service string
	Version string
}

// Host status values reported by the engine.
const (
	StatusUp   = "up"
	StatusDown = "down"
)
