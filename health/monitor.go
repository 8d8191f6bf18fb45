package health

import (
	"sort"
	"sync"
	"time"
)

// Monitor tracks the live health of the daemon's components (engine
// session, command service, NATS link). Updates overwrite by component
// name; aggregation works on a name-sorted snapshot so the health endpoint
// payload is stable across calls.
type Monitor struct {
	mu       sync.RWMutex
	statuses map[string]Status
}

// NewMonitor creates an empty monitor
func NewMonitor() *Monitor {
	return &Monitor{statuses: make(map[string]Status)}
}

// Update records the latest status for a component. The component name is
// normalized to the registration name and a missing timestamp is stamped.
func (m *Monitor) Update(name string, status Status) {
	status.Component = name
	if status.Timestamp.IsZero() {
		status.Timestamp = time.Now()
	}

	m.mu.Lock()
	m.statuses[name] = status
	m.mu.Unlock()
}

// UpdateHealthy marks a component healthy
func (m *Monitor) UpdateHealthy(name, message string) {
	m.Update(name, NewHealthy(name, message))
}

// UpdateUnhealthy marks a component unhealthy
func (m *Monitor) UpdateUnhealthy(name, message string) {
	m.Update(name, NewUnhealthy(name, message))
}

// UpdateDegraded marks a component degraded
func (m *Monitor) UpdateDegraded(name, message string) {
	m.Update(name, NewDegraded(name, message))
}

// Get retrieves the last recorded status for a component
func (m *Monitor) Get(name string) (Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status, ok := m.statuses[name]
	return status, ok
}

// Remove forgets a component, e.g. a surface disabled by configuration
func (m *Monitor) Remove(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.statuses, name)
}

// snapshot returns all tracked statuses sorted by component name
func (m *Monitor) snapshot() []Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	subs := make([]Status, 0, len(m.statuses))
	for _, status := range m.statuses {
		subs = append(subs, status)
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].Component < subs[j].Component })
	return subs
}

// AggregateHealth rolls every tracked component into one daemon status
func (m *Monitor) AggregateHealth(systemName string) Status {
	return Aggregate(systemName, m.snapshot())
}

// ListComponents returns the tracked component names, sorted
func (m *Monitor) ListComponents() []string {
	names := make([]string, 0)
	for _, status := range m.snapshot() {
		names = append(names, status.Component)
	}
	return names
}

// Count returns the number of tracked components
func (m *Monitor) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.statuses)
}
