package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"careassist/internal/config"
	"careassist/internal/observability"
	"careassist/pkg/answer"
	"careassist/pkg/knowledge"
	"careassist/pkg/session"
)

// Server is the question answering HTTP server.
type Server struct {
	cfg      config.ServerConfig
	sessions *session.Manager
	builder  *knowledge.Builder
	pipeline *answer.Pipeline
	info     InfoResponse
	logger   zerolog.Logger

	server      *http.Server
	rateLimiter *RateLimiter
	startTime   time.Time

	isShuttingDown bool
	shutdownMu     sync.RWMutex
	inFlightReqs   sync.WaitGroup
}

// NewServer creates the HTTP server. All collaborators are required
// except the parts the pipeline itself treats as optional.
func NewServer(cfg config.ServerConfig, sessions *session.Manager, builder *knowledge.Builder, pipeline *answer.Pipeline, info InfoResponse, logger zerolog.Logger) (*Server, error) {
	if sessions == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	if builder == nil {
		return nil, fmt.Errorf("context builder is required")
	}
	if pipeline == nil {
		return nil, fmt.Errorf("answer pipeline is required")
	}

	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.Host == "" {
		cfg.Host = "0.0.0.0"
	}
	if cfg.RateLimitPerMinute == 0 {
		cfg.RateLimitPerMinute = 100
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 60
	}

	observability.EnsureRegistered()

	return &Server{
		cfg:         cfg,
		sessions:    sessions,
		builder:     builder,
		pipeline:    pipeline,
		info:        info,
		logger:      logger,
		rateLimiter: NewRateLimiter(cfg.RateLimitPerMinute),
		startTime:   time.Now(),
	}, nil
}

// Handler builds the routing table. Exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/info", s.wrap("/info", s.handleInfo))
	mux.Handle("/metrics", observability.MetricsHandler())
	mux.HandleFunc("/v1/ask", s.wrap("/v1/ask", s.handleAsk))
	mux.HandleFunc("/v1/chat", s.wrap("/v1/chat", s.handleChat))
	mux.HandleFunc("/v1/translate", s.wrap("/v1/translate", s.handleTranslate))
	mux.HandleFunc("/v1/speech", s.wrap("/v1/speech", s.handleSpeech))

	return mux
}

// Start runs the server until Stop is called.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:        fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:     s.Handler(),
		ReadTimeout: time.Duration(s.cfg.RequestTimeout) * time.Second,
	}

	s.logger.Info().
		Str("host", s.cfg.Host).
		Int("port", s.cfg.Port).
		Msg("Starting HTTP server")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	return nil
}

// Stop gracefully stops the server, waiting for in-flight requests.
func (s *Server) Stop() error {
	s.shutdownMu.Lock()
	s.isShuttingDown = true
	s.shutdownMu.Unlock()

	s.logger.Info().Msg("Shutting down HTTP server")

	done := make(chan struct{})
	go func() {
		s.inFlightReqs.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("All in-flight requests completed")
	case <-time.After(30 * time.Second):
		s.logger.Warn().Msg("Shutdown timeout reached, forcing close")
	}

	s.rateLimiter.Stop()

	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown HTTP server: %w", err)
		}
	}

	s.logger.Info().Msg("HTTP server stopped")
	return nil
}

// wrap applies the shared request plumbing: shutdown refusal, in-flight
// tracking, CORS, the optional API key gate, rate limiting, and metrics.
func (s *Server) wrap(path string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.shutdownMu.RLock()
		if s.isShuttingDown {
			s.shutdownMu.RUnlock()
			s.writeError(w, path, http.StatusServiceUnavailable, "server is shutting down")
			return
		}
		s.shutdownMu.RUnlock()

		s.inFlightReqs.Add(1)
		defer s.inFlightReqs.Done()

		s.applyCORS(w, r)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		if s.cfg.APIKey != "" && r.Header.Get("x-api-key") != s.cfg.APIKey {
			s.writeError(w, path, http.StatusUnauthorized, "invalid or missing api key")
			return
		}

		ip := clientIP(r)
		if !s.rateLimiter.Allow(ip) {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", s.rateLimiter.RetryAfter(ip)))
			s.writeError(w, path, http.StatusTooManyRequests, "too many requests")
			return
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		handler(rec, r)

		observability.RecordHTTPRequest(path, rec.status)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("ip", ip).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("Request completed")
	}
}

func (s *Server) applyCORS(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}

	for _, allowed := range s.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, x-api-key")
			return
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func (s *Server) writeError(w http.ResponseWriter, path string, status int, msg string) {
	s.writeJSON(w, status, ErrorResponse{Error: msg})
	if status >= http.StatusInternalServerError {
		s.logger.Error().Str("path", path).Int("status", status).Str("error", msg).Msg("Request failed")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, "/health", http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:         "ok",
		Uptime:         time.Since(s.startTime).Seconds(),
		ActiveSessions: s.sessions.Len(),
		Timestamp:      time.Now().UnixMilli(),
	})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, "/info", http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	s.writeJSON(w, http.StatusOK, s.info)
}
