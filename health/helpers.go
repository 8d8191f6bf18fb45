package health

import (
	"fmt"
	"strings"
	"time"
)

// Canonical status strings reported by the daemon's health surfaces.
// Degraded covers components that still accept work but are not at full
// capability, e.g. an engine session awaiting its lazy first init or a
// NATS link mid-reconnect. Unhealthy covers components that cannot serve
// commands at all, e.g. a poisoned engine session.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

func newStatus(component, status, message string) Status {
	return Status{
		Component: component,
		Healthy:   status == StatusHealthy,
		Status:    status,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewHealthy reports a component operating normally
func NewHealthy(component, message string) Status {
	return newStatus(component, StatusHealthy, message)
}

// NewDegraded reports a component that still serves but at reduced capability
func NewDegraded(component, message string) Status {
	return newStatus(component, StatusDegraded, message)
}

// NewUnhealthy reports a component that cannot serve commands
func NewUnhealthy(component, message string) Status {
	return newStatus(component, StatusUnhealthy, message)
}

// Aggregate rolls component statuses up into a single daemon-level status:
// any unhealthy component makes the daemon unhealthy, otherwise any
// degraded component makes it degraded. The offending components are named
// in the message so the health endpoint is readable without walking the
// sub-statuses.
func Aggregate(component string, subStatuses []Status) Status {
	if len(subStatuses) == 0 {
		return NewHealthy(component, "No components registered")
	}

	var unhealthy, degraded []string
	for _, sub := range subStatuses {
		switch {
		case sub.IsUnhealthy():
			unhealthy = append(unhealthy, sub.Component)
		case sub.IsDegraded():
			degraded = append(degraded, sub.Component)
		}
	}

	var agg Status
	switch {
	case len(unhealthy) > 0:
		agg = NewUnhealthy(component, fmt.Sprintf("Unhealthy: %s", strings.Join(unhealthy, ", ")))
	case len(degraded) > 0:
		agg = NewDegraded(component, fmt.Sprintf("Degraded: %s", strings.Join(degraded, ", ")))
	default:
		agg = NewHealthy(component, "All components healthy")
	}

	agg.SubStatuses = make([]Status, len(subStatuses))
	copy(agg.SubStatuses, subStatuses)
	return agg
}
