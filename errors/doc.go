// Package errors provides standardized error handling patterns for lvmgate
// components. It includes error classification, standard error variables
// and helper functions for consistent error wrapping across the system.
//
// Unlike most service stacks there is no retry integration here: the
// command gateway never retries anything. Engine failures are surfaced
// verbatim, and poisoned-state failures are permanent for the process.
package errors
