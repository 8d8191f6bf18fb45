package testutil

import (
	"sync"

	"github.com/c360/lvmgate/lvm2"
)

// StubRunner is a scripted CommandRunner for transport-level tests. Each
// call to Run consumes the next scripted result; when the script is
// exhausted the last result repeats.
type StubRunner struct {
	mu     sync.Mutex
	script []StubResult
	pos    int
	Calls  []string
}

// StubResult is one scripted Run outcome
type StubResult struct {
	Report lvm2.Document
	Err    error
}

// NewStubRunner creates a runner that replays the given results in order
func NewStubRunner(results ...StubResult) *StubRunner {
	return &StubRunner{script: results}
}

// Run records the command and returns the next scripted result
func (r *StubRunner) Run(command string) (lvm2.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Calls = append(r.Calls, command)

	if len(r.script) == 0 {
		return lvm2.Document{}, nil
	}
	res := r.script[r.pos]
	if r.pos < len(r.script)-1 {
		r.pos++
	}
	return res.Report, res.Err
}

// CallCount returns how many commands were run
func (r *StubRunner) CallCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Calls)
}
