package http

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/c360/lvmgate/config"
	"github.com/c360/lvmgate/errors"
	"github.com/c360/lvmgate/health"
	"github.com/c360/lvmgate/lvm2"
	"github.com/c360/lvmgate/metric"
)

// CommandRunner executes one gateway command and returns its parsed report
type CommandRunner interface {
	Run(command string) (lvm2.Document, error)
}

// HealthFunc supplies the aggregate health reported by the health endpoint
type HealthFunc func() health.Status

// commandRequest is the POST /command body
type commandRequest struct {
	Command string `json:"command"`
}

// commandResponse is the response body. Exactly one of Report and Error is set.
type commandResponse struct {
	Report lvm2.Document `json:"report,omitempty"`
	Error  *apiError     `json:"error,omitempty"`
}

// apiError mirrors the structured error shape used on the NATS side
type apiError struct {
	Code    string `json:"code"`
	Native  int32  `json:"native,omitempty"`
	Raw     string `json:"raw,omitempty"`
	Message string `json:"message,omitempty"`
}

// Option is a functional option for configuring the Server
type Option func(*Server)

// WithLogger sets a custom logger for the server
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger.With("component", "http-gateway")
		}
	}
}

// WithMetrics records request counts on the shared metrics set
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(s *Server) {
		if registry != nil {
			s.metrics = registry.CoreMetrics()
		}
	}
}

// WithHealthFunc sets the aggregate health provider for the health endpoint
func WithHealthFunc(fn HealthFunc) Option {
	return func(s *Server) {
		s.healthFn = fn
	}
}

// Server is the HTTP API server
type Server struct {
	cfg      *config.SafeConfig
	runner   CommandRunner
	healthFn HealthFunc
	logger   *slog.Logger
	metrics  *metric.Metrics

	hub *logHub
	srv *http.Server

	running atomic.Bool
}

// NewServer creates the HTTP API server
func NewServer(cfg *config.SafeConfig, runner CommandRunner, opts ...Option) (*Server, error) {
	if cfg == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Server", "NewServer", "nil config")
	}
	if runner == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("command runner is required"),
			"Server", "NewServer", "nil runner")
	}

	s := &Server{
		cfg:    cfg,
		runner: runner,
		logger: slog.Default().With("component", "http-gateway"),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.hub = newLogHub(s.logger)
	return s, nil
}

// RegisterHTTPHandlers registers API routes with the HTTP mux
func (s *Server) RegisterHTTPHandlers(prefix string, mux *http.ServeMux) {
	if !strings.HasSuffix(prefix, "/") {
		prefix = prefix + "/"
	}

	mux.HandleFunc(prefix+"command", s.handleCommand)
	mux.HandleFunc(prefix+"health", s.handleHealth)
	mux.HandleFunc(prefix+"logs/stream", s.handleLogStream)
}

// Start begins serving. The engine's log tap feeds the WebSocket hub for
// the lifetime of the server.
func (s *Server) Start(_ context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Server", "Start", "server already running")
	}

	cfg := s.cfg.Get()

	mux := http.NewServeMux()
	s.RegisterHTTPHandlers("/api/v1", mux)

	s.srv = &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.hub.run()
	lvm2.SetLogTap(s.hub.publish)

	go func() {
		s.logger.Info("HTTP API listening", "addr", cfg.HTTP.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server failed", "error", err)
		}
	}()

	return nil
}

// Stop shuts the server down gracefully
func (s *Server) Stop(timeout time.Duration) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	lvm2.SetLogTap(nil)
	s.hub.close()

	if timeout == 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.srv.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "Server", "Stop", "shutdown")
	}
	return nil
}

// handleCommand runs one command and writes the report or a structured error
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, &apiError{
			Code:    "method_not_allowed",
			Message: fmt.Sprintf("method %s not allowed", r.Method),
		})
		return
	}

	if s.metrics != nil {
		s.metrics.RecordRequest("http-gateway", "http")
	}

	cfg := s.cfg.Get()
	defer r.Body.Close()

	bodyReader := io.LimitReader(r.Body, cfg.HTTP.MaxRequestSize+1)
	body, err := io.ReadAll(bodyReader)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, &apiError{
			Code:    "bad_request",
			Message: "failed to read request body",
		})
		return
	}
	if int64(len(body)) > cfg.HTTP.MaxRequestSize {
		s.writeError(w, http.StatusRequestEntityTooLarge, &apiError{
			Code:    "bad_request",
			Message: fmt.Sprintf("request body exceeds maximum size of %d bytes", cfg.HTTP.MaxRequestSize),
		})
		return
	}

	var req commandRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, &apiError{
			Code:    "bad_request",
			Message: "request body must be JSON with a command field",
		})
		return
	}
	if strings.TrimSpace(req.Command) == "" {
		s.writeError(w, http.StatusBadRequest, &apiError{
			Code:    "bad_request",
			Message: "command must not be empty",
		})
		return
	}

	verb := commandVerb(req.Command)
	if !cfg.CommandAllowed(verb) {
		s.logger.Warn("command rejected by allowlist", "verb", verb)
		s.writeError(w, http.StatusForbidden, &apiError{
			Code:    "command_rejected",
			Message: fmt.Sprintf("command %q is not allowed", verb),
		})
		return
	}

	report, err := s.runner.Run(req.Command)
	if err != nil {
		status, apiErr := mapCommandError(err)
		s.writeError(w, status, apiErr)
		return
	}

	s.writeJSON(w, http.StatusOK, commandResponse{Report: report})
}

// handleHealth reports aggregate daemon health. Degraded maps to 200 so
// that a freshly started daemon with a lazily initialized engine is not
// flagged down by load balancers.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, &apiError{
			Code:    "method_not_allowed",
			Message: fmt.Sprintf("method %s not allowed", r.Method),
		})
		return
	}

	var st health.Status
	if s.healthFn != nil {
		st = s.healthFn()
	} else {
		st = health.NewHealthy("lvmgate", "No health providers configured")
	}

	code := http.StatusOK
	if st.IsUnhealthy() {
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, st)
}

// mapCommandError converts a gateway error to an HTTP status and body
func mapCommandError(err error) (int, *apiError) {
	var cmdErr *lvm2.CommandError
	if !stderrors.As(err, &cmdErr) {
		return http.StatusInternalServerError, &apiError{Code: "internal", Message: "internal server error"}
	}

	ae := &apiError{
		Code:   cmdErr.Code.String(),
		Native: cmdErr.Native,
		Raw:    cmdErr.Raw,
	}
	if cmdErr.Err != nil {
		ae.Message = cmdErr.Err.Error()
	}

	switch cmdErr.Code {
	case lvm2.RetInvalidCommandLine, lvm2.RetInvalidParameters:
		return http.StatusBadRequest, ae
	case lvm2.RetNoSuchCommand:
		return http.StatusNotFound, ae
	case lvm2.RetJSONDeserializationFailed:
		return http.StatusBadGateway, ae
	case lvm2.RetInitFailed, lvm2.RetGlobalStatePoisoned, lvm2.RetDataChannelPoisoned:
		return http.StatusServiceUnavailable, ae
	default:
		return http.StatusInternalServerError, ae
	}
}

func (s *Server) writeError(w http.ResponseWriter, statusCode int, apiErr *apiError) {
	if s.metrics != nil {
		s.metrics.RecordError("http-gateway", apiErr.Code)
	}
	s.writeJSON(w, statusCode, commandResponse{Error: apiErr})
}

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to write response", "error", err)
	}
}

// commandVerb extracts the first whitespace-separated field of a command
func commandVerb(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
