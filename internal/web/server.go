// Package web serves live scan results over HTTP: a snapshot API, an SSE
// stream, a websocket feed, and a minimal page that ties them together.
package web

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/edgerunner0x01/violette/internal/events"
	"github.com/edgerunner0x01/violette/internal/logging"
	"github.com/edgerunner0x01/violette/internal/metrics"
	"github.com/edgerunner0x01/violette/internal/store"
)

const (
	shutdownGrace      = 10 * time.Second
	defaultReadTimeout = 30 * time.Second
)

// Options configures the HTTP server. A zero ReadTimeout falls back to
// defaultReadTimeout. A zero WriteTimeout means no write deadline, which
// /stream and /api/ws need to hold their connections open.
type Options struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server is the live-results HTTP server.
type Server struct {
	store   *store.Store
	bus     *events.Bus
	metrics *metrics.Registry
	log     *logging.Logger
	http    *http.Server
}

// NewServer wires the router and returns a server listening on opts.Addr
// once Start is called.
func NewServer(opts Options, st *store.Store, bus *events.Bus, reg *metrics.Registry) *Server {
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = defaultReadTimeout
	}
	s := &Server{
		store:   st,
		bus:     bus,
		metrics: reg,
		log:     logging.Default().WithComponent("web"),
	}

	r := mux.NewRouter()
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/api/snapshot", s.handleSnapshot).Methods(http.MethodGet)
	r.HandleFunc("/stream", s.handleStream).Methods(http.MethodGet)
	r.HandleFunc("/api/ws", s.handleWebSocket).Methods(http.MethodGet)
	if reg != nil {
		r.Handle("/metrics", reg.Handler()).Methods(http.MethodGet)
	}

	handler := handlers.RecoveryHandler()(r)
	handler = handlers.LoggingHandler(os.Stdout, handler)

	s.http = &http.Server{
		Addr:         opts.Addr,
		Handler:      handler,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	}
	return s
}

// Handler exposes the configured handler for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.InfoWeb("server listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		s.log.InfoWeb("server shutting down")
		return s.http.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.Snapshot(r.Context())
	if err != nil {
		s.log.Error("snapshot query failed", "error", err)
		http.Error(w, "snapshot unavailable", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []store.HostRecord{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{
		"generated_at": store.Timestamp(time.Now()),
		"total_hosts":  len(records),
		"hosts":        records,
	}); err != nil {
		s.log.Error("snapshot encode failed", "error", err)
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(indexPage))
}

const indexPage = `<!DOCTYPE html>
<html>
<head>
<title>violette - live scan results</title>
<style>
body { font-family: monospace; background: #111; color: #ddd; margin: 2em; }
table { border-collapse: collapse; }
td, th { border: 1px solid #444; padding: 4px 10px; text-align: left; }
th { background: #222; }
.up { color: #7c7; } .down { color: #777; }
.timed-out, .error { color: #c77; }
</style>
</head>
<body>
<h1>violette</h1>
<table id="hosts">
<tr><th>IP</th><th>Hostname</th><th>Status</th><th>OS</th><th>Ports</th><th>Last scan</th></tr>
</table>
<script>
const rows = new Map();
function render(h) {
  let tr = rows.get(h.ip);
  if (!tr) {
    tr = document.createElement('tr');
    rows.set(h.ip, tr);
    document.getElementById('hosts').appendChild(tr);
  }
  const ports = (h.ports || []).map(p => p.port_number + '/' + (p.service || '?')).join(' ');
  tr.className = h.status;
  tr.innerHTML = '<td>' + h.ip + '</td><td>' + (h.hostname || '') + '</td><td>' +
    h.status + '</td><td>' + (h.os_guess || '') + '</td><td>' + ports +
    '</td><td>' + (h.last_scan || '') + '</td>';
}
async function resync() {
  const res = await fetch('/api/snapshot');
  const snap = await res.json();
  for (const h of snap.hosts) render(h);
}
function attach() {
  const es = new EventSource('/stream');
  es.addEventListener('host-updated', e => {
    const h = JSON.parse(e.data);
    const cur = rows.get(h.ip);
    render({ip: h.ip, hostname: h.hostname, status: h.status, os_guess: h.os_guess,
            ports: cur ? undefined : []});
    resync();
  });
  es.addEventListener('run-completed', () => resync());
  es.onerror = () => { es.close(); setTimeout(() => { resync(); attach(); }, 2000); };
}
resync().then(attach);
</script>
</body>
</html>
`
