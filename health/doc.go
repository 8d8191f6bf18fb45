// Package health provides health status reporting for lvmgate services.
// A Status is a point-in-time health snapshot; Monitor aggregates statuses
// from multiple components into one system view.
//
// The engine session maps onto three states: ready is healthy, not yet
// initialized is degraded, and init-failed or poisoned is unhealthy.
// Poisoned never recovers, so an unhealthy engine status is final.
package health
