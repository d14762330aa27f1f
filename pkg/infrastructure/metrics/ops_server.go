package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// ReadyFunc reports whether the process is ready to serve. A nil error means
// ready.
type ReadyFunc func(ctx context.Context) error

// OpsServer exposes Prometheus metrics and health endpoints over HTTP,
// separate from the tool transport.
type OpsServer struct {
	address string
	ready   ReadyFunc
	logger  zerolog.Logger
	server  *http.Server
}

// NewOpsServer creates a new operations server. ready may be nil, in which
// case /readyz always reports ready.
func NewOpsServer(address string, ready ReadyFunc, logger zerolog.Logger) *OpsServer {
	return &OpsServer{
		address: address,
		ready:   ready,
		logger:  logger.With().Str("component", "ops_server").Logger(),
	}
}

// Start starts the operations server. It blocks until the server stops.
func (s *OpsServer) Start() error {
	s.server = &http.Server{
		Addr:              s.address,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.logger.Info().Str("address", s.address).Msg("Starting operations server")
	return s.server.ListenAndServe()
}

// Stop stops the operations server.
func (s *OpsServer) Stop() error {
	if s.server != nil {
		return s.server.Close()
	}
	return nil
}

func (s *OpsServer) routes() http.Handler {
	r := mux.NewRouter()
	r.Use(s.logRequests)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReadyz).Methods(http.MethodGet)
	return r
}

func (s *OpsServer) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *OpsServer) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// logRequests logs every request with method, path, status, and duration.
func (s *OpsServer) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("Ops request")
	})
}

// statusRecorder captures the status code written to a ResponseWriter.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
