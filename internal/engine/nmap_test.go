package engine

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/Ullaakut/nmap/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	verrors "github.com/edgerunner0x01/violette/internal/errors"
)

func TestClassifyRunError(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		err  error
		want verrors.ErrorCode
	}{
		{"engine timeout message", stderrors.New("nmap scan timed out"), verrors.CodeTimeout},
		{"raw socket without privileges", stderrors.New("you requested a scan type which requires root privileges"), verrors.CodePermissionDenied},
		{"permission denied from the OS", stderrors.New("socket: permission denied"), verrors.CodePermissionDenied},
		{"malformed engine output", stderrors.New("unable to parse nmap output"), verrors.CodeProtocolError},
		{"no route to host", stderrors.New("connect: no route to host"), verrors.CodeHostUnreachable},
		{"anything else", stderrors.New("exit status 1"), verrors.CodeScanFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyRunError(ctx, "10.0.0.1", tt.err)
			assert.Equal(t, tt.want, verrors.GetCode(err))
		})
	}

	t.Run("cancelled context wins over the message", func(t *testing.T) {
		expired, cancel := context.WithCancel(context.Background())
		cancel()
		err := classifyRunError(expired, "10.0.0.1", stderrors.New("exit status 1"))
		assert.Equal(t, verrors.CodeCanceled, verrors.GetCode(err))
	})
}

func TestConvertRun(t *testing.T) {
	t.Run("no host entry means down", func(t *testing.T) {
		report := convertRun(&nmap.Run{})
		assert.Equal(t, StatusDown, report.Status)
		assert.Empty(t, report.Ports)
	})

	t.Run("maps host status, names and ports", func(t *testing.T) {
		run := &nmap.Run{
			Hosts: []nmap.Host{{
				Addresses: []nmap.Address{{Addr: "10.0.0.2"}},
				Status:    nmap.Status{State: "up"},
				Hostnames: []nmap.Hostname{{Name: "web01.lan"}},
				OS: nmap.OS{
					Matches: []nmap.OSMatch{{Name: "Linux 5.X", Accuracy: 95}},
				},
				Ports: []nmap.Port{
					{
						ID:      22,
						State:   nmap.State{State: "open"},
						Service: nmap.Service{Name: "ssh", Product: "OpenSSH", Version: "9.6"},
					},
					{
						ID:      80,
						State:   nmap.State{State: "open"},
						Service: nmap.Service{Name: "http"},
					},
				},
			}},
		}

		report := convertRun(run)
		assert.Equal(t, "up", report.Status)
		assert.Equal(t, "web01.lan", report.Hostname)
		assert.Equal(t, "Linux 5.X", report.OSGuess)
		require.Len(t, report.Ports, 2)
		assert.Equal(t, PortReport{Number: 22, State: "open", Service: "ssh", Version: "OpenSSH 9.6"}, report.Ports[0])
		assert.Equal(t, PortReport{Number: 80, State: "open", Service: "http"}, report.Ports[1])
	})

	t.Run("host entry without addresses is skipped", func(t *testing.T) {
		run := &nmap.Run{Hosts: []nmap.Host{{Status: nmap.Status{State: "up"}}}}
		report := convertRun(run)
		assert.Equal(t, StatusDown, report.Status)
	})
}

func TestTrimTrailingDot(t *testing.T) {
	assert.Equal(t, "web01.lan", trimTrailingDot("web01.lan."))
	assert.Equal(t, "web01.lan", trimTrailingDot("web01.lan"))
	assert.Equal(t, "", trimTrailingDot(""))
}
