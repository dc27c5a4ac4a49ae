// Package api is the thin HTTP transport over the booking service: routing,
// API-key auth, rate limiting and error-to-status mapping live here, the
// booking rules do not.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"fieldbook/internal/config"
	"fieldbook/internal/domain"
	"fieldbook/internal/export"
	"fieldbook/internal/metrics"
	"fieldbook/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type HTTPServer struct {
	cfg      config.APIConfig
	bookings domain.BookingService
	users    *service.UserService
	exporter *export.Exporter
	server   *http.Server
	auth     *HTTPAuth
	log      zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, bookings domain.BookingService, users *service.UserService, exporter *export.Exporter, logger *zerolog.Logger) *HTTPServer {
	var log zerolog.Logger
	if logger != nil {
		log = logger.With().Str("component", "http").Logger()
	}

	srv := &HTTPServer{cfg: cfg, bookings: bookings, users: users, exporter: exporter, log: log}
	srv.auth = NewHTTPAuth(cfg)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/bookings", srv.handleCreateBooking)
	mux.HandleFunc("GET /api/v1/bookings", srv.handleListBookings)
	mux.HandleFunc("GET /api/v1/bookings/{id}", srv.handleGetBooking)
	mux.HandleFunc("PATCH /api/v1/bookings/{id}", srv.handleUpdateBooking)
	mux.HandleFunc("DELETE /api/v1/bookings/{id}", srv.handleDeleteBooking)
	mux.HandleFunc("POST /api/v1/bookings/{id}/cancel", srv.handleAdminCancel)
	mux.HandleFunc("POST /api/v1/bookings/{id}/status", srv.handleChangeStatus)
	mux.HandleFunc("GET /api/v1/schedule/{date}", srv.handleDaySchedule)
	mux.HandleFunc("GET /api/v1/users/{id}", srv.handleGetUser)
	mux.HandleFunc("GET /api/v1/users/{id}/bookings", srv.handleUserBookings)
	mux.HandleFunc("GET /api/v1/export", srv.handleExport)
	mux.HandleFunc("GET /healthz", srv.handleHealthz)

	writeTimeout := time.Duration(cfg.RequestTimeoutSeconds) * time.Second
	if writeTimeout <= 0 {
		writeTimeout = 15 * time.Second
	}

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           srv.loggingMiddleware(srv.auth.Wrap(mux)),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      writeTimeout,
	}
	return srv
}

// Handler exposes the full middleware chain for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("http api listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

const requestIDHeader = "X-Request-Id"

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		endpoint := r.Pattern
		if endpoint == "" {
			endpoint = r.URL.Path
		}
		metrics.IncHTTP(endpoint)

		s.log.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}
