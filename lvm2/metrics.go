package lvm2

import (
	stderrors "errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/lvmgate/metric"
)

// gatewayMetrics holds Prometheus metrics for command execution.
type gatewayMetrics struct {
	commands        *prometheus.CounterVec   // by verb and outcome
	commandDuration *prometheus.HistogramVec // by verb, lock wait included

	// State metrics
	permanentFailure prometheus.Gauge // 1 once the session can no longer run commands
}

// newGatewayMetrics creates and registers gateway metrics with the provided registry.
func newGatewayMetrics(registry *metric.MetricsRegistry) (*gatewayMetrics, error) {
	if registry == nil {
		return nil, nil // Metrics disabled
	}

	m := &gatewayMetrics{
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lvmgate",
			Subsystem: "gateway",
			Name:      "commands_total",
			Help:      "Total number of LVM commands submitted",
		}, []string{"verb", "outcome"}),

		commandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "lvmgate",
			Subsystem: "gateway",
			Name:      "command_duration_seconds",
			Help:      "LVM command duration in seconds, including lock wait",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 15.0, 60.0},
		}, []string{"verb"}),

		permanentFailure: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lvmgate",
			Subsystem: "gateway",
			Name:      "permanently_failed",
			Help:      "1 when the engine session is poisoned or failed to initialize",
		}),
	}

	if err := registry.RegisterCounterVec("gateway", "commands", m.commands); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogramVec("gateway", "command_duration", m.commandDuration); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge("gateway", "permanently_failed", m.permanentFailure); err != nil {
		return nil, err
	}

	return m, nil
}

// recordCommand records one command invocation.
func (m *gatewayMetrics) recordCommand(verb string, duration float64, err error) {
	if m == nil {
		return
	}

	outcome := RetSucceeded.String()
	var cmdErr *CommandError
	switch {
	case stderrors.As(err, &cmdErr):
		outcome = cmdErr.Code.String()
		if cmdErr.Permanent() {
			m.permanentFailure.Set(1)
		}
	case err != nil:
		outcome = "error"
	}

	m.commands.WithLabelValues(verb, outcome).Inc()
	m.commandDuration.WithLabelValues(verb).Observe(duration)
}
