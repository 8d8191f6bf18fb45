package lvm2

import (
	"sync"
	"sync/atomic"
)

// State is the engine session's lifecycle state. StatePoisoned is
// absorbing: once entered it is never left.
type State int32

// Session states
const (
	StateUninitialized State = iota
	StateReady
	StateInitFailed
	StatePoisoned
)

// String returns the string representation of State
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateInitFailed:
		return "init_failed"
	case StatePoisoned:
		return "poisoned"
	default:
		return "unknown"
	}
}

// session guards the single engine handle. The mutex is the sole source of
// the at-most-one-command-in-flight guarantee: it is held from engine
// invocation through report retrieval. The state is mirrored in an atomic,
// written only under the mutex, so observers never queue behind an
// in-flight command.
type session struct {
	mu      sync.Mutex
	state   atomic.Int32 // holds a State
	lib     CommandLib
	handle  uintptr
	initErr error
	capture *capture
}

func newSession(lib CommandLib) *session {
	return &session{lib: lib, capture: newCapture()}
}

// shared is the process-wide session. There is no second construction path
// to an engine handle.
var shared = newSession(defaultLib())

// SessionState reports the shared session's current state without waiting
// for an in-flight command. While the very first command is still inside
// engine initialization this reads uninitialized, because the init outcome
// is genuinely not known yet.
func SessionState() State {
	return shared.currentState()
}

func (s *session) currentState() State {
	return State(s.state.Load())
}

func (s *session) setState(st State) {
	s.state.Store(int32(st))
}

// acquireAnd runs f with exclusive access to the initialized engine
// handle. Initialization happens on the first acquisition and its outcome
// is memoized: a failed init is never retried. The poisoning guard is
// installed before anything touches the library, so a panic anywhere in
// the exclusive section, initialization included, marks the session
// poisoned and releases the lock before propagating. No later caller can
// observe a half-mutated handle or block on a stranded lock.
func (s *session) acquireAnd(f func(handle uintptr) error) error {
	s.mu.Lock()
	defer func() {
		if r := recover(); r != nil {
			s.setState(StatePoisoned)
			s.mu.Unlock()
			panic(r)
		}
		s.mu.Unlock()
	}()

	if s.currentState() == StateUninitialized {
		s.initLocked()
	}

	switch s.currentState() {
	case StatePoisoned:
		return &CommandError{Code: RetGlobalStatePoisoned}
	case StateInitFailed:
		return &CommandError{Code: RetInitFailed, Err: s.initErr}
	}

	return f(s.handle)
}

// initLocked initializes the engine exactly once. The library has been
// seen returning the same internal context to independent init calls,
// which later turns into a double release; the handle obtained here is the
// only one this process will ever hold.
func (s *session) initLocked() {
	handle := s.lib.Init()
	s.lib.SetLogFn(s.capture.logLine)
	if handle == 0 {
		s.setState(StateInitFailed)
		s.initErr = errNullHandle
		return
	}
	s.handle = handle
	s.setState(StateReady)
}

// teardown releases the engine handle. Safe to call more than once; only
// the first call on a ready session reaches the library. A panic inside
// the library's release path poisons the session like any other fault in
// the exclusive section.
func (s *session) teardown() {
	s.mu.Lock()
	defer func() {
		if r := recover(); r != nil {
			s.setState(StatePoisoned)
			s.mu.Unlock()
			panic(r)
		}
		s.mu.Unlock()
	}()

	if s.currentState() != StateReady {
		return
	}
	s.lib.Exit(s.handle)
	s.handle = 0
	s.setState(StateInitFailed)
	s.initErr = errSessionClosed
}
