package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chrisrobison/ouija/internal/config"
	"github.com/chrisrobison/ouija/internal/inference"
	"github.com/chrisrobison/ouija/internal/metrics"
)

// Server represents the HTTP server
type Server struct {
	cfg        *config.Config
	dispatcher *Dispatcher
	client     inference.Client
	handler    http.Handler
	httpServer *http.Server
	startTime  time.Time
	logger     *slog.Logger
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string                   `json:"status"`
	Version   string                   `json:"version"`
	Uptime    string                   `json:"uptime"`
	Services  map[string]ServiceHealth `json:"services"`
	Timestamp string                   `json:"timestamp"`
}

// ServiceHealth represents a service health status
type ServiceHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// Version is reported by /health.
var Version = "dev"

// New creates a new HTTP server
func New(cfg *config.Config, d *Dispatcher, client inference.Client, logger *slog.Logger) *Server {
	s := &Server{
		cfg:        cfg,
		dispatcher: d,
		client:     client,
		logger:     logger,
		startTime:  time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ouija.php", s.actionHandler)
	mux.HandleFunc("/", s.actionHandler)
	s.handler = s.withCORS(mux)

	// model calls run long; the write timeout must outlive them
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      s.handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2*cfg.Inference.GetTimeout() + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("HTTP server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// withCORS adds the CORS headers to every response and answers preflight
// requests before any routing happens.
func (s *Server) withCORS(next http.Handler) http.Handler {
	origin := s.cfg.Server.AllowOrigin
	if origin == "" {
		origin = "*"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// actionHandler serves the single action endpoint. The action and its
// parameters come from the query string or a form body; any method works.
func (s *Server) actionHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/ouija.php" {
		http.NotFound(w, r)
		return
	}

	start := time.Now()
	requestID := uuid.NewString()
	action := strings.ToLower(strings.TrimSpace(r.FormValue("action")))
	if action == "" {
		action = ActionAsk
	}
	logger := s.logger.With("request_id", requestID, "action", action)

	params := Params{
		Q:    r.FormValue("q"),
		Name: r.FormValue("name"),
	}
	if action == ActionHistory {
		params.N = ParseHistoryN(r.FormValue("n"))
	}

	// a client hanging up must not abandon a half-finished turn
	ctx := context.WithoutCancel(r.Context())
	res := s.dispatcher.Do(ctx, action, params)

	w.Header().Set("X-Request-ID", requestID)
	w.Header().Set("Content-Type", res.ContentType)
	w.WriteHeader(res.Status)
	if res.Body != "" {
		w.Write([]byte(res.Body))
	}

	label := metricLabel(action)
	metrics.RequestCount.WithLabelValues(label, fmt.Sprintf("%d", res.Status)).Inc()
	metrics.RequestDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
	logger.Info("action handled", "status", res.Status, "duration", time.Since(start))
}

// metricLabel keeps arbitrary action strings out of metric labels.
func metricLabel(action string) string {
	switch action {
	case ActionAsk, ActionReset, ActionList, ActionSwitch, ActionSearch, ActionProfile, ActionHistory:
		return action
	default:
		return "unknown"
	}
}

// healthHandler handles health check requests
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	services := map[string]ServiceHealth{
		"http": {Healthy: true, Message: "HTTP server running"},
	}
	if s.client != nil {
		if err := s.client.Health(); err != nil {
			services["inference"] = ServiceHealth{Healthy: false, Message: err.Error()}
		} else {
			services["inference"] = ServiceHealth{Healthy: true, Message: s.cfg.Inference.Provider}
		}
	}

	status := "healthy"
	for _, svc := range services {
		if !svc.Healthy {
			status = "degraded"
		}
	}

	response := HealthResponse{
		Status:    status,
		Version:   Version,
		Uptime:    time.Since(s.startTime).String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services:  services,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}
