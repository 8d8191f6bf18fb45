package service

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/c360/lvmgate/config"
	"github.com/c360/lvmgate/errors"
	"github.com/c360/lvmgate/health"
	"github.com/c360/lvmgate/lvm2"
	"github.com/c360/lvmgate/metric"
	"github.com/c360/lvmgate/natsclient"
)

// Status represents the current lifecycle status of the service
type Status int

// Possible service statuses
const (
	StatusStopped Status = iota
	StatusStarting
	StatusRunning
	StatusStopping
)

// String returns the string representation of Status
func (s Status) String() string {
	switch s {
	case StatusStopped:
		return "stopped"
	case StatusStarting:
		return "starting"
	case StatusRunning:
		return "running"
	case StatusStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// CommandRunner executes one gateway command and returns its parsed report
type CommandRunner interface {
	Run(command string) (lvm2.Document, error)
}

// CommandRequest is the NATS request payload
type CommandRequest struct {
	Command string `json:"command"`
}

// CommandReply is the NATS reply payload. Exactly one of Report and Error
// is set.
type CommandReply struct {
	Report lvm2.Document `json:"report,omitempty"`
	Error  *ReplyError   `json:"error,omitempty"`
}

// ReplyError carries a structured command failure across the wire
type ReplyError struct {
	Code    string `json:"code"`
	Native  int32  `json:"native,omitempty"`
	Raw     string `json:"raw,omitempty"`
	Message string `json:"message,omitempty"`
}

// Option is a functional option for configuring CommandService
type Option func(*CommandService)

// WithLogger sets a custom logger for the service
func WithLogger(logger *slog.Logger) Option {
	return func(s *CommandService) {
		if logger != nil {
			s.logger = logger.With("service", s.name)
		}
	}
}

// WithMetrics sets the metrics registry for the service
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(s *CommandService) {
		s.metricsRegistry = registry
	}
}

// CommandService serves gateway commands over NATS request/reply
type CommandService struct {
	name            string
	cfg             *config.SafeConfig
	nats            *natsclient.Client
	runner          CommandRunner
	logger          *slog.Logger
	metricsRegistry *metric.MetricsRegistry

	status            atomic.Value // Status
	startTime         atomic.Value // time.Time
	commandsProcessed atomic.Int64

	sub *nats.Subscription
	mu  sync.Mutex
}

// NewCommandService creates the NATS command service
func NewCommandService(
	cfg *config.SafeConfig,
	nc *natsclient.Client,
	runner CommandRunner,
	opts ...Option,
) (*CommandService, error) {
	if cfg == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "CommandService", "NewCommandService", "nil config")
	}
	if runner == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("command runner is required"),
			"CommandService", "NewCommandService", "nil runner")
	}

	s := &CommandService{
		name:   "command-service",
		cfg:    cfg,
		nats:   nc,
		runner: runner,
	}
	s.logger = slog.Default().With("service", s.name)

	for _, opt := range opts {
		opt(s)
	}

	s.status.Store(StatusStopped)
	s.startTime.Store(time.Time{})

	return s, nil
}

// Name returns the service name
func (s *CommandService) Name() string {
	return s.name
}

// Status returns the current lifecycle status
func (s *CommandService) Status() Status {
	return s.status.Load().(Status)
}

// CommandsProcessed returns the number of commands handled since start
func (s *CommandService) CommandsProcessed() int64 {
	return s.commandsProcessed.Load()
}

func (s *CommandService) setStatus(status Status) {
	s.status.Store(status)
	if s.metricsRegistry != nil {
		s.metricsRegistry.CoreMetrics().RecordServiceStatus(s.name, int(status))
	}
}

// Start subscribes to the command subject. Requires a connected NATS client.
func (s *CommandService) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.Status() {
	case StatusRunning, StatusStarting:
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "CommandService", "Start", "already running")
	}
	s.setStatus(StatusStarting)

	if s.nats == nil || !s.nats.IsHealthy() {
		s.setStatus(StatusStopped)
		return errors.WrapTransient(natsclient.ErrNotConnected, "CommandService", "Start", "NATS unavailable")
	}

	cfg := s.cfg.Get()
	conn := s.nats.GetConnection()

	sub, err := conn.QueueSubscribe(cfg.NATS.Subject, cfg.NATS.Queue, s.handleRequest)
	if err != nil {
		s.setStatus(StatusStopped)
		return errors.WrapTransient(err, "CommandService", "Start", "subscribe to command subject")
	}

	s.sub = sub
	s.startTime.Store(time.Now())
	s.setStatus(StatusRunning)
	s.logger.Info("command service started", "subject", cfg.NATS.Subject, "queue", cfg.NATS.Queue)
	return nil
}

// Stop unsubscribes from the command subject. In-flight handlers finish;
// the gateway lock already guarantees at most one is executing.
func (s *CommandService) Stop(_ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.Status() {
	case StatusStopped, StatusStopping:
		return nil
	}
	s.setStatus(StatusStopping)

	var err error
	if s.sub != nil {
		if uerr := s.sub.Unsubscribe(); uerr != nil && !stderrors.Is(uerr, nats.ErrConnectionClosed) {
			err = errors.Wrap(uerr, "CommandService", "Stop", "unsubscribe")
		}
		s.sub = nil
	}

	s.setStatus(StatusStopped)
	s.logger.Info("command service stopped")
	return err
}

// handleRequest processes one NATS command request
func (s *CommandService) handleRequest(msg *nats.Msg) {
	if s.metricsRegistry != nil {
		s.metricsRegistry.CoreMetrics().RecordRequest(s.name, "nats")
	}

	var req CommandRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.recordError("bad_request")
		s.reply(msg, CommandReply{Error: &ReplyError{
			Code:    "bad_request",
			Message: "request body must be JSON with a command field",
		}})
		return
	}

	if strings.TrimSpace(req.Command) == "" {
		s.recordError("bad_request")
		s.reply(msg, CommandReply{Error: &ReplyError{
			Code:    "bad_request",
			Message: "command must not be empty",
		}})
		return
	}

	verb := commandVerb(req.Command)
	if !s.cfg.Get().CommandAllowed(verb) {
		s.recordError("command_rejected")
		s.logger.Warn("command rejected by allowlist", "verb", verb)
		s.reply(msg, CommandReply{Error: &ReplyError{
			Code:    "command_rejected",
			Message: fmt.Sprintf("command %q is not allowed", verb),
		}})
		return
	}

	report, err := s.runner.Run(req.Command)
	if err != nil {
		s.reply(msg, CommandReply{Error: replyError(err)})
		return
	}

	s.commandsProcessed.Add(1)
	s.reply(msg, CommandReply{Report: report})
}

func (s *CommandService) reply(msg *nats.Msg, reply CommandReply) {
	data, err := json.Marshal(reply)
	if err != nil {
		s.logger.Error("failed to marshal reply", "error", err)
		return
	}
	if err := msg.Respond(data); err != nil {
		s.logger.Error("failed to send reply", "error", err)
	}
}

func (s *CommandService) recordError(errType string) {
	if s.metricsRegistry != nil {
		s.metricsRegistry.CoreMetrics().RecordError(s.name, errType)
	}
}

// replyError converts a gateway error to the wire representation
func replyError(err error) *ReplyError {
	var cmdErr *lvm2.CommandError
	if stderrors.As(err, &cmdErr) {
		re := &ReplyError{
			Code:   cmdErr.Code.String(),
			Native: cmdErr.Native,
			Raw:    cmdErr.Raw,
		}
		if cmdErr.Err != nil {
			re.Message = cmdErr.Err.Error()
		}
		return re
	}
	return &ReplyError{Code: "internal", Message: err.Error()}
}

// commandVerb extracts the first whitespace-separated field of a command
func commandVerb(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// Health reports the service's own lifecycle health
func (s *CommandService) Health() health.Status {
	status := s.Status()

	var st health.Status
	switch status {
	case StatusRunning:
		if s.nats != nil && !s.nats.IsHealthy() {
			st = health.NewDegraded(s.name, "NATS connection lost, awaiting reconnect")
		} else {
			st = health.NewHealthy(s.name, "Serving command requests")
		}
	case StatusStarting:
		st = health.NewDegraded(s.name, "Service is starting")
	case StatusStopping:
		st = health.NewDegraded(s.name, "Service is stopping")
	default:
		st = health.NewUnhealthy(s.name, "Service is stopped")
	}

	st = st.WithMetrics(&health.Metrics{CommandsProcessed: s.commandsProcessed.Load()})
	if s.metricsRegistry != nil {
		s.metricsRegistry.CoreMetrics().RecordHealthCheck(s.name, st.Healthy)
	}
	return st
}

// EngineHealth maps the engine session state to a health status
func EngineHealth() health.Status {
	const component = "lvm2-engine"

	switch state := lvm2.SessionState(); state {
	case lvm2.StateReady:
		return health.NewHealthy(component, "Engine initialized and ready")
	case lvm2.StateUninitialized:
		return health.NewDegraded(component, "Engine not yet initialized; first command will initialize it")
	case lvm2.StateInitFailed:
		return health.NewUnhealthy(component, "Engine initialization failed permanently")
	case lvm2.StatePoisoned:
		return health.NewUnhealthy(component, "Engine poisoned by a previous fault; restart required")
	default:
		return health.NewUnhealthy(component, fmt.Sprintf("Unknown engine state: %v", state))
	}
}
