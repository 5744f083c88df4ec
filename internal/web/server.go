// Package web provides an HTTP status server for the DCF77 receiver.
package web

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/sweeney/dcf77-receiver/internal/status"
)

// Server serves the status page, its JSON form, the current broadcast time and
// the metrics endpoint.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
}

// New creates a Server that reads state from the given tracker. A nil
// metrics handler leaves /metrics unrouted.
func New(addr string, tracker *status.Tracker, metrics http.Handler) *Server {
	s := &Server{tracker: tracker}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	mux.HandleFunc("/time", s.handleTime)
	if metrics != nil {
		mux.Handle("/metrics", metrics)
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on ln.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, s.tracker.Snapshot())
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(s.tracker.Snapshot()))
}

// TimeJSON is served on /time.
type TimeJSON struct {
	Time       string `json:"time"`
	Decoded    string `json:"decoded"`
	AgeSeconds int64  `json:"age_seconds"`
}

// handleTime extrapolates the last valid minute by the host time elapsed since
// it was received. Until one has been decoded it answers 503.
func (s *Server) handleTime(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	m := snap.LastMinute
	if m == nil || !m.Valid {
		http.Error(w, "no valid minute decoded yet", http.StatusServiceUnavailable)
		return
	}

	age := snap.Now.Sub(snap.LastMinuteAt)
	out := TimeJSON{
		Time:       m.Time.Add(age).Format(time.RFC3339),
		Decoded:    m.Time.Format(time.RFC3339),
		AgeSeconds: int64(age / time.Second),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}
