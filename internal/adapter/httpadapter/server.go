package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/flood-detection-service/internal/domain"
)

const maxRequestBody = 1 << 20

// Analyzer runs one flood analysis. It is implemented by *pipeline.Pipeline.
type Analyzer interface {
	Run(ctx context.Context, a domain.Analysis) (domain.Result, error)
}

// Server exposes the analysis API alongside health, readiness, and metrics
// endpoints.
type Server struct {
	httpServer *http.Server
	analyzer   Analyzer
	timeout    time.Duration
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /v1/analyses, /healthz, /readyz, and
// /metrics routes. analysisTimeout bounds every analysis request.
func NewServer(addr string, analyzer Analyzer, ready sharedobs.ReadinessChecker, analysisTimeout time.Duration, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:        addr,
			Handler:     mux,
			ReadTimeout: 10 * time.Second,
			// Analyses block on the raster backend; leave room to write the
			// error after a timeout.
			WriteTimeout: analysisTimeout + 10*time.Second,
			IdleTimeout:  60 * time.Second,
		},
		analyzer: analyzer,
		timeout:  analysisTimeout,
		logger:   logger,
	}

	mux.HandleFunc("POST /v1/analyses", s.handleAnalysis)
	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	var req domain.AnalysisRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body: " + err.Error(), Kind: "invalid_input"})
		return
	}

	analysis, err := domain.ParseRequest(req)
	if err != nil {
		s.writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	result, err := s.analyzer.Run(ctx, analysis)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result.Summary())
}

// writeError maps the error taxonomy onto HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, kind := http.StatusInternalServerError, "internal_error"
	switch {
	case errors.Is(err, domain.ErrDegenerateInput):
		status, kind = http.StatusBadRequest, "invalid_input"
	case errors.Is(err, domain.ErrDataAvailability):
		status, kind = http.StatusUnprocessableEntity, "data_unavailable"
	case errors.Is(err, domain.ErrExternalService):
		status, kind = http.StatusBadGateway, "external_error"
	case errors.Is(err, context.DeadlineExceeded):
		status, kind = http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, context.Canceled):
		status, kind = http.StatusServiceUnavailable, "cancelled"
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("analysis request failed", "error", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Kind: kind})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client may have gone away
}
