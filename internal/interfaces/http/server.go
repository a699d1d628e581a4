// Package http serves the monitor surface: run history, health, prometheus
// metrics, asynchronous backtest launches and a websocket progress stream.
// The server binds localhost by default and is read-mostly; the single
// mutating endpoint only schedules work.
package http

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/lodestar-quant/lodestar/internal/metrics"
	"github.com/lodestar-quant/lodestar/internal/persistence"
)

// ServerConfig holds the listener and timeout settings.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// DefaultServerConfig binds localhost only. HTTP_PORT overrides the port.
func DefaultServerConfig() ServerConfig {
	port := 8080
	if portStr := os.Getenv("HTTP_PORT"); portStr != "" {
		if p, err := strconv.Atoi(portStr); err == nil {
			port = p
		}
	}
	return ServerConfig{
		Host:           "127.0.0.1",
		Port:           port,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    60 * time.Second,
		RequestTimeout: 10 * time.Second,
	}
}

// HealthCheck probes one dependency. A nil error reports it healthy.
type HealthCheck func(context.Context) error

// Options carries the server's collaborators. Every field is optional:
// endpoints missing their dependency answer 503.
type Options struct {
	Repo    *persistence.Repository
	Metrics *metrics.Metrics
	Runner  Runner
	Checks  map[string]HealthCheck
}

// Server is the monitor HTTP server.
type Server struct {
	router   *mux.Router
	server   *http.Server
	handlers *handlers
	hub      *Hub
	config   ServerConfig
}

// NewServer verifies the port is free and assembles routes and middleware.
func NewServer(config ServerConfig, opts Options) (*Server, error) {
	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("port %d is busy or unavailable: %w", config.Port, err)
	}
	listener.Close()

	hub := NewHub()
	s := &Server{
		router:   mux.NewRouter(),
		handlers: newHandlers(opts, hub),
		hub:      hub,
		config:   config,
	}
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}
	return s, nil
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.corsMiddleware)

	// The websocket stream lives outside the API subrouter: no JSON content
	// type and no request timeout on a long-lived connection.
	s.router.HandleFunc("/ws/progress", s.handlers.serveWS).Methods("GET")

	api := s.router.PathPrefix("/").Subrouter()
	api.Use(s.timeoutMiddleware)
	api.Use(s.jsonContentTypeMiddleware)

	// OPTIONS is listed so preflights reach the CORS middleware; it answers
	// them before any handler runs.
	api.HandleFunc("/health", s.handlers.health).Methods("GET", "OPTIONS")
	api.Handle("/metrics", s.handlers.metricsHandler()).Methods("GET", "OPTIONS")
	api.HandleFunc("/v1/runs", s.handlers.listRuns).Methods("GET", "OPTIONS")
	api.HandleFunc("/v1/runs/{id}", s.handlers.getRun).Methods("GET", "OPTIONS")
	api.HandleFunc("/v1/runs/{id}/trades", s.handlers.listTrades).Methods("GET", "OPTIONS")
	api.HandleFunc("/v1/runs/{id}/equity", s.handlers.listEquity).Methods("GET", "OPTIONS")
	api.HandleFunc("/v1/backtest", s.handlers.launchBacktest).Methods("POST", "OPTIONS")

	s.router.NotFoundHandler = s.withRequestID(http.HandlerFunc(s.handlers.notFound))
}

type ctxKey int

const requestIDKey ctxKey = 0

func requestIDFrom(r *http.Request) string {
	if id, ok := r.Context().Value(requestIDKey).(string); ok {
		return id
	}
	return "unknown"
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return s.withRequestID(next)
}

func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()[:8]
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)
		duration := time.Since(start)

		path := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if template, err := route.GetPathTemplate(); err == nil {
				path = template
			}
		}
		if s.handlers.metrics != nil {
			s.handlers.metrics.ObserveHTTP(r.Method, path, wrapper.statusCode, duration)
		}
		log.Info().
			Str("request_id", requestIDFrom(r)).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapper.statusCode).
			Dur("duration", duration).
			Str("remote", r.RemoteAddr).
			Msg("HTTP request")
	})
}

func (s *Server) timeoutMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.config.RequestTimeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// corsMiddleware admits localhost origins only; the monitor is a local tool.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if strings.Contains(origin, "localhost") || strings.Contains(origin, "127.0.0.1") {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) jsonContentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// Start blocks serving requests until Shutdown or a listener error.
func (s *Server) Start() error {
	log.Info().
		Str("addr", s.Address()).
		Msg("Monitor server starting")
	return s.server.ListenAndServe()
}

// Shutdown stops accepting requests, drains in-flight ones and closes every
// websocket client.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Monitor server shutting down")
	s.hub.Close()
	return s.server.Shutdown(ctx)
}

// Address returns the configured host:port.
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}

// responseWrapper captures the status code for logging and metrics.
type responseWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWrapper) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack keeps websocket upgrades working behind the logging wrapper.
func (rw *responseWrapper) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hijacker.Hijack()
}
