package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const heartbeatPeriod = 15 * time.Second

// handleStream serves the event bus as a text/event-stream. Each event goes
// out as an SSE frame named after the event type with a JSON data line.
// When the bus drops this subscriber the stream ends; clients reconnect and
// resynchronize from /api/snapshot.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := s.bus.Subscribe()
	defer sub.Close()
	s.log.InfoWeb("stream client connected", "remote_addr", r.RemoteAddr)

	heartbeat := time.NewTicker(heartbeatPeriod)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case event, open := <-sub.Events():
			if !open {
				// Dropped by the bus for falling behind.
				s.log.Warn("stream client dropped", "remote_addr", r.RemoteAddr)
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				s.log.Error("event encode failed", "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type(), data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
