package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains all platform-level metrics (not command-specific)
type Metrics struct {
	// Service metrics
	ServiceStatus     *prometheus.GaugeVec
	RequestsReceived  *prometheus.CounterVec
	ErrorsTotal       *prometheus.CounterVec
	HealthCheckStatus *prometheus.GaugeVec

	// NATS metrics
	NATSConnected  prometheus.Gauge
	NATSReconnects prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all platform metrics
func NewMetrics() *Metrics {
	return &Metrics{
		ServiceStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "lvmgate",
				Subsystem: "service",
				Name:      "status",
				Help:      "Service status (0=stopped, 1=starting, 2=running, 3=stopping)",
			},
			[]string{"service"},
		),

		RequestsReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "lvmgate",
				Subsystem: "requests",
				Name:      "received_total",
				Help:      "Total number of command requests received",
			},
			[]string{"service", "transport"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "lvmgate",
				Subsystem: "errors",
				Name:      "total",
				Help:      "Total number of errors",
			},
			[]string{"service", "type"},
		),

		HealthCheckStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "lvmgate",
				Subsystem: "health",
				Name:      "status",
				Help:      "Health check status (0=unhealthy, 1=healthy)",
			},
			[]string{"service"},
		),

		NATSConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "lvmgate",
				Subsystem: "nats",
				Name:      "connected",
				Help:      "NATS connection status (0=disconnected, 1=connected)",
			},
		),

		NATSReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "lvmgate",
				Subsystem: "nats",
				Name:      "reconnects_total",
				Help:      "Total number of NATS reconnections",
			},
		),
	}
}

// RecordServiceStatus records the lifecycle status of a service
func (m *Metrics) RecordServiceStatus(service string, status int) {
	m.ServiceStatus.WithLabelValues(service).Set(float64(status))
}

// RecordRequest records one received command request
func (m *Metrics) RecordRequest(service, transport string) {
	m.RequestsReceived.WithLabelValues(service, transport).Inc()
}

// RecordError records an error by type
func (m *Metrics) RecordError(service, errType string) {
	m.ErrorsTotal.WithLabelValues(service, errType).Inc()
}

// RecordNATSConnected records the NATS connection state
func (m *Metrics) RecordNATSConnected(connected bool) {
	v := 0.0
	if connected {
		v = 1.0
	}
	m.NATSConnected.Set(v)
}

// RecordNATSReconnect counts one NATS reconnection
func (m *Metrics) RecordNATSReconnect() {
	m.NATSReconnects.Inc()
}

// RecordHealthCheck records a health check result
func (m *Metrics) RecordHealthCheck(service string, healthy bool) {
	v := 0.0
	if healthy {
		v = 1.0
	}
	m.HealthCheckStatus.WithLabelValues(service).Set(v)
}
