package engine

import (
	"context"
	"strings"

	"github.com/Ullaakut/nmap/v3"

	verrors "github.com/edgerunner0x01/violette/internal/errors"
	"github.com/edgerunner0x01/violette/internal/logging"
)

const quickScanPortCount = 100

// NmapEngine implements Engine using the nmap binary through the Ullaakut
// client library. A fresh scanner is built per call because targets and
// options are baked into the nmap invocation.
type NmapEngine struct {
	resolver *Resolver
}

// NewNmapEngine creates an nmap-backed engine. resolver may be nil to
// disable the reverse-DNS hostname fallback.
func NewNmapEngine(resolver *Resolver) *NmapEngine {
	return &NmapEngine{resolver: resolver}
}

// Scan probes a single address and returns its report. The scan uses SYN
// probing with service detection; full scans add OS detection and script
// scanning, quick scans cover only the most common ports.
func (e *NmapEngine) Scan(ctx context.Context, addr string, opts Options) (*Report, error) {
	scanner, err := nmap.NewScanner(ctx, buildOptions(addr, opts)...)
	if err != nil {
		return nil, verrors.WrapScanErrorWithTarget(verrors.CodeScanFailed,
			"failed to create scanner", addr, err)
	}

	result, warnings, err := scanner.Run()
	if err != nil {
		return nil, classifyRunError(ctx, addr, err)
	}
	if warnings != nil && len(*warnings) > 0 {
		logging.Default().Debug("scan completed with warnings",
			"target", addr, "warnings", *warnings)
	}
	if result == nil {
		return nil, verrors.ErrProtocolError(addr, nil)
	}

	report := convertRun(result)
	if report.Status == StatusUp && report.Hostname == "" && e.resolver != nil {
		// Best effort; an empty hostname is fine.
		report.Hostname = e.resolver.ReverseLookup(ctx, addr)
	}
	return report, nil
}

func buildOptions(addr string, opts Options) []nmap.Option {
	options := []nmap.Option{
		nmap.WithTargets(addr),
		nmap.WithSYNScan(),
		nmap.WithServiceInfo(),
		nmap.WithVersionAll(),
	}

	if opts.Quick {
		options = append(options,
			nmap.WithMostCommonPorts(quickScanPortCount),
			nmap.WithTimingTemplate(nmap.TimingAggressive),
		)
	} else {
		options = append(options,
			nmap.WithOSDetection(),
			nmap.WithAggressiveScan(),
			nmap.WithTimingTemplate(nmap.TimingNormal),
		)
	}

	if opts.Timeout > 0 {
		options = append(options, nmap.WithHostTimeout(opts.Timeout))
	}
	return options
}

// classifyRunError maps nmap execution failures to typed scan errors.
func classifyRunError(ctx context.Context, addr string, err error) error {
	if ctx.Err() == context.DeadlineExceeded {
		return verrors.ErrScanTimeout(addr)
	}
	if ctx.Err() == context.Canceled {
		return verrors.WrapScanErrorWithTarget(verrors.CodeCanceled,
			"scan canceled", addr, err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timed out"):
		return verrors.ErrScanTimeout(addr)
	case strings.Contains(msg, "requires root") ||
		strings.Contains(msg, "permission denied") ||
		strings.Contains(msg, "operation not permitted"):
		return verrors.ErrPermissionDenied(addr, err)
	case strings.Contains(msg, "unable to parse") ||
		strings.Contains(msg, "xml"):
		return verrors.ErrProtocolError(addr, err)
	case strings.Contains(msg, "failed to resolve") ||
		strings.Contains(msg, "no route to host") ||
		strings.Contains(msg, "network is unreachable"):
		return verrors.ErrHostUnreachable(addr, err)
	default:
		return verrors.WrapScanErrorWithTarget(verrors.CodeScanFailed,
			"scanner execution failed", addr, err)
	}
}

// convertRun maps an nmap run for a single target into a Report. A run with
// no host entry means nmap saw nothing at the address at all.
func convertRun(result *nmap.Run) *Report {
	report := &Report{Status: StatusDown}

	for i := range result.Hosts {
		h := &result.Hosts[i]
		if len(h.Addresses) == 0 {
			continue
		}

		report.Status = h.Status.State
		if report.Status == "" {
			report.Status = StatusDown
		}

		if len(h.Hostnames) > 0 {
			report.Hostname = h.Hostnames[0].Name
		}
		if len(h.OS.Matches) > 0 {
			report.OSGuess = h.OS.Matches[0].Name
		}

		report.Ports = make([]PortReport, 0, len(h.Ports))
		for j := range h.Ports {
			p := &h.Ports[j]
			version := p.Service.Product
			if p.Service.Version != "" {
				if version != "" {
					version += " " + p.Service.Version
				} else {
					version = p.Service.Version
				}
			}
			report.Ports = append(report.Ports, PortReport{
				Number:  p.ID,
				State:   p.State.State,
				Service: p.Service.Name,
				Version: version,
			})
		}
		break
	}
	return report
}
