// Package metric provides Prometheus metrics registration and serving for
// lvmgate. A single MetricsRegistry owns the Prometheus registry, exposes
// core platform metrics and lets components register their own collectors
// under a namespaced key; Server serves the registry over HTTP.
package metric
