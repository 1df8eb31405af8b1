package devtools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/synapse-dev/synapse/pkg/synapse"
)

// Server is the inspector HTTP server. It implements synapse.Sink and is
// meant to be installed with synapse.SetSink (or composed into one via
// synapse.NewMultiSink).
type Server struct {
	config   Config
	logger   *slog.Logger
	hub      *Hub
	recorder *Recorder

	httpServer *http.Server
	listener   net.Listener
}

// NewServer creates an inspector server. The flight recorder is opened
// only when config.RecordPath is set. A nil logger means slog.Default().
func NewServer(config Config, logger *slog.Logger) (*Server, error) {
	config = config.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "devtools")

	s := &Server{
		config: config,
		logger: logger,
		hub:    NewHub(config, logger),
	}

	if config.RecordPath != "" {
		rec, err := OpenRecorder(config.RecordPath, logger)
		if err != nil {
			return nil, err
		}
		s.recorder = rec
	}

	return s, nil
}

// Emit implements synapse.Sink, fanning the record out to stream clients
// and, when recording is enabled, to the flight recorder.
func (s *Server) Emit(r synapse.Record) {
	s.hub.Emit(r)
	if s.recorder != nil {
		s.recorder.Emit(r)
	}
}

// Recorder returns the flight recorder, or nil when recording is
// disabled.
func (s *Server) Recorder() *Recorder {
	return s.recorder
}

// Handler returns the inspector's HTTP handler, for mounting in an
// external router or a test server.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Get("/api/stream", s.hub.HandleStream)
	r.Get("/api/records", s.handleRecords)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// Start binds the configured address and serves in the background. Bind
// errors are returned synchronously; use Addr for the bound address when
// configured with port 0.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("devtools listen: %w", err)
	}
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		s.logger.Info("devtools listening", "address", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("devtools server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listen address, or the configured address if
// Start has not run yet.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.config.Addr
}

// Shutdown stops the HTTP server, disconnects stream clients, and closes
// the recorder. Detach the sink (synapse.SetSink(nil)) before calling it
// if the graph keeps running.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	var firstErr error
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			firstErr = err
		}
	}

	s.hub.Close()

	if s.recorder != nil {
		if err := s.recorder.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	s.logger.Info("devtools shutdown complete")
	return firstErr
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	if s.recorder == nil {
		http.Error(w, "recording disabled", http.StatusNotFound)
		return
	}

	from := uint64(1)
	if v := r.URL.Query().Get("from"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			http.Error(w, "invalid from parameter", http.StatusBadRequest)
			return
		}
		from = n
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit parameter", http.StatusBadRequest)
			return
		}
		limit = n
	}

	recs, err := s.recorder.Records(from, limit)
	if err != nil {
		s.logger.Error("read records", "error", err)
		http.Error(w, "read records failed", http.StatusInternalServerError)
		return
	}
	if recs == nil {
		recs = []synapse.Record{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(recs); err != nil {
		s.logger.Error("encode records", "error", err)
	}
}
