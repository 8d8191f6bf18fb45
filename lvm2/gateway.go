package lvm2

import (
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/c360/lvmgate/metric"
)

// Document is a command's captured report, decoded from the JSON the
// engine printed. Its shape is defined and versioned by the engine.
type Document map[string]any

// defaultReportFlags is appended to every submitted command to request
// machine-readable output. The caller's text is never submitted verbatim.
const defaultReportFlags = "--reportformat json"

var (
	errNullHandle    = errors.New("engine returned a null handle")
	errSessionClosed = errors.New("engine session closed")
	errEmbeddedNull  = errors.New("command line contains an embedded null byte")
)

// Gateway runs LVM commands through the process-wide engine session and
// hands back the report the engine logs instead of returning. Multiple
// Gateways may exist; they all serialize on the same session.
type Gateway struct {
	session     *session
	logger      *slog.Logger
	metrics     *gatewayMetrics
	reportFlags string
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger sets a custom logger for the gateway
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithMetrics registers gateway metrics with the provided registry
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(g *Gateway) {
		m, err := newGatewayMetrics(registry)
		if err != nil {
			g.logger.Error("Failed to initialize gateway metrics", "error", err)
			return // continue without metrics
		}
		g.metrics = m
	}
}

// WithReportFlags overrides the report-format suffix appended to commands
func WithReportFlags(flags string) Option {
	return func(g *Gateway) {
		if flags != "" {
			g.reportFlags = flags
		}
	}
}

// NewGateway creates a gateway over the shared engine session.
func NewGateway(opts ...Option) *Gateway {
	g := &Gateway{
		session:     shared,
		logger:      slog.Default().With("component", "lvm2-gateway"),
		reportFlags: defaultReportFlags,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Run executes one command line (see man 8 lvm for the available commands)
// and returns its decoded report. Calls are fully serialized process-wide:
// Run blocks while another command is in flight and has no timeout escape.
// Failures are never retried; a *CommandError whose Permanent method
// reports true means no command in this process will succeed again.
func (g *Gateway) Run(command string) (Document, error) {
	start := time.Now()
	verb := commandVerb(command)

	doc, err := g.run(command)
	g.metrics.recordCommand(verb, time.Since(start).Seconds(), err)
	if err != nil {
		g.logger.Debug("Command failed", "verb", verb, "error", err)
		return nil, err
	}
	g.logger.Debug("Command completed", "verb", verb, "duration", time.Since(start))
	return doc, nil
}

func (g *Gateway) run(command string) (Document, error) {
	if strings.IndexByte(command, 0) >= 0 {
		return nil, &CommandError{Code: RetInvalidCommandLine, Err: errEmbeddedNull}
	}

	composed := command + " " + g.reportFlags
	var raw string
	err := g.session.acquireAnd(func(handle uintptr) error {
		rc := g.session.lib.Run(handle, composed)
		if code := RetCodeFromNative(rc); code != RetSucceeded {
			return &CommandError{Code: code, Native: rc}
		}
		// The callback fires inside Run, so the report is normally queued
		// before control comes back; receive only waits when the marker is
		// still in flight. Retrieval stays under the session lock to keep
		// report order equal to lock-acquisition order.
		out, err := g.session.capture.receive()
		if err != nil {
			return err
		}
		raw = out
		return nil
	})
	if err != nil {
		return nil, err
	}

	var doc Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		// Keep the raw text, malformed output is still worth inspecting.
		return nil, &CommandError{Code: RetJSONDeserializationFailed, Raw: raw, Err: err}
	}
	return doc, nil
}

// commandVerb extracts the command's first token for logs and metric labels.
func commandVerb(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return "(empty)"
	}
	return fields[0]
}

// Run executes a command through a default gateway. See Gateway.Run.
func Run(command string) (Document, error) {
	return NewGateway().Run(command)
}

// Teardown releases the engine handle. Call once at process shutdown; the
// session refuses further commands afterwards.
func Teardown() { shared.teardown() }

// SetLogTap registers fn to receive every log line the engine emits,
// including severities the capture logic ignores. fn runs inside the
// engine's callback while the capture lock is held: it must be fast and
// must not call back into this package. Pass nil to remove the tap.
func SetLogTap(fn func(Line)) { shared.capture.setTap(fn) }
