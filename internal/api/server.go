package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"stream-anomaly-alerts/internal/config"
	"stream-anomaly-alerts/internal/storage"
)

const defaultListLimit = 50

// SampleProvider exposes the in-memory view of the running stream.
type SampleProvider interface {
	RecentSamples(limit int) []storage.StreamSample
	RecentAnomalies(limit int) []storage.StreamSample
}

// Server exposes the live monitoring surface: recent samples, recent
// anomalies, a WebSocket feed, and Prometheus metrics.
type Server struct {
	cfg      config.APIConfig
	provider SampleProvider
	hub      *Hub
	registry *prometheus.Registry
	logger   zerolog.Logger
	version  string
	started  time.Time

	upgrader websocket.Upgrader
}

// NewServer wires the handler dependencies.
func NewServer(cfg config.APIConfig, provider SampleProvider, hub *Hub, registry *prometheus.Registry, logger zerolog.Logger, version string) *Server {
	return &Server{
		cfg:      cfg,
		provider: provider,
		hub:      hub,
		registry: registry,
		logger:   logger.With().Str("component", "api").Logger(),
		version:  version,
		started:  time.Now().UTC(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/samples", s.handleSamples).Methods(http.MethodGet)
	r.HandleFunc("/api/anomalies", s.handleAnomalies).Methods(http.MethodGet)
	r.HandleFunc("/api/live", s.handleLive).Methods(http.MethodGet)
	if s.registry != nil {
		r.Path("/metrics").Handler(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}
	return r
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) *http.Server {
	httpServer := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.Router(),
		ReadTimeout:  30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	go func() {
		s.logger.Info().Str("addr", s.cfg.Addr).Msg("api server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("api server error")
		}
	}()

	return httpServer
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":      "ok",
		"version":     s.version,
		"time":        time.Now().UTC().Format(time.RFC3339Nano),
		"started":     s.started.Format(time.RFC3339Nano),
		"subscribers": s.hub.SubscriberCount(),
		"dropped":     s.hub.DropCount(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSamples(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r)
	samples := s.provider.RecentSamples(limit)
	writeJSON(w, http.StatusOK, map[string]any{
		"samples": samples,
		"count":   len(samples),
	})
}

func (s *Server) handleAnomalies(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r)
	anomalies := s.provider.RecentAnomalies(limit)
	writeJSON(w, http.StatusOK, map[string]any{
		"anomalies": anomalies,
		"count":     len(anomalies),
	})
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	id, ch := s.hub.Subscribe()
	defer s.hub.Unsubscribe(id)

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	pingInterval := s.cfg.PingInterval
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case sample, ok := <-ch:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(sample); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func queryLimit(r *http.Request) int {
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	return limit
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
