package lvm2

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGatewayRunDecodesReport(t *testing.T) {
	f := newFakeLib(reportingRun(`{"report":[{"pv":`, `[]}]}`))
	g := newTestGateway(f)

	doc, err := g.Run("pvs")
	require.NoError(t, err)
	assert.Equal(t, Document{"report": []any{map[string]any{"pv": []any{}}}}, doc)
}

func TestGatewayAppendsReportFlags(t *testing.T) {
	f := newFakeLib(reportingRun(`{}`))
	g := newTestGateway(f)

	_, err := g.Run("lvs -o name")
	require.NoError(t, err)
	assert.Equal(t, "lvs -o name --reportformat json", f.lastCommand())
}

func TestGatewayCustomReportFlags(t *testing.T) {
	f := newFakeLib(reportingRun(`{}`))
	g := newTestGateway(f)
	g.reportFlags = "--reportformat json_std"

	_, err := g.Run("lvs")
	require.NoError(t, err)
	assert.Equal(t, "lvs --reportformat json_std", f.lastCommand())
}

func TestGatewaySilentCommandYieldsPlaceholderDoc(t *testing.T) {
	f := newFakeLib(reportingRun())
	g := newTestGateway(f)

	doc, err := g.Run("vgchange -ay")
	require.NoError(t, err)
	assert.Equal(t, Document{"lvmgate": "no messages from command"}, doc)
}

func TestGatewayMalformedOutput(t *testing.T) {
	f := newFakeLib(reportingRun("not json"))
	g := newTestGateway(f)

	_, err := g.Run("pvs")
	var cmdErr *CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, RetJSONDeserializationFailed, cmdErr.Code)
	assert.Equal(t, "not json", cmdErr.Raw)
	assert.False(t, cmdErr.Permanent())
}

func TestGatewayRejectsEmbeddedNull(t *testing.T) {
	f := newFakeLib(nil)
	g := newTestGateway(f)

	_, err := g.Run("pvs\x00 --force")
	var cmdErr *CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, RetInvalidCommandLine, cmdErr.Code)

	// Rejected before any engine interaction, even initialization.
	assert.Zero(t, f.initCalls.Load())
	assert.Zero(t, f.runCalls.Load())
}

func TestGatewayNativeFailureCodes(t *testing.T) {
	tests := []struct {
		name   string
		native int32
		want   RetCode
	}{
		{"no such command", 2, RetNoSuchCommand},
		{"invalid parameters", 3, RetInvalidParameters},
		{"init failed", 4, RetInitFailed},
		{"processing failed", 5, RetProcessingFailed},
		{"unrecognized", 42, RetUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeLib(func(_ *fakeLib, _ string) int32 { return tt.native })
			g := newTestGateway(f)

			_, err := g.Run("frobnicate")
			var cmdErr *CommandError
			require.ErrorAs(t, err, &cmdErr)
			assert.Equal(t, tt.want, cmdErr.Code)
			assert.Equal(t, tt.native, cmdErr.Native)
		})
	}
}

func TestGatewayInitializesOnce(t *testing.T) {
	f := newFakeLib(reportingRun(`{}`))
	g := newTestGateway(f)

	for i := 0; i < 5; i++ {
		_, err := g.Run("pvs")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), f.initCalls.Load())
	assert.Equal(t, int32(5), f.runCalls.Load())
}

func TestGatewayInitFailureIsMemoized(t *testing.T) {
	f := newFakeLib(nil)
	f.initHandle = 0
	g := newTestGateway(f)

	for i := 0; i < 3; i++ {
		_, err := g.Run("pvs")
		var cmdErr *CommandError
		require.ErrorAs(t, err, &cmdErr)
		assert.Equal(t, RetInitFailed, cmdErr.Code)
		assert.True(t, cmdErr.Permanent())
	}

	// A failed init is never retried.
	assert.Equal(t, int32(1), f.initCalls.Load())
	assert.Zero(t, f.runCalls.Load())
	assert.Equal(t, StateInitFailed, g.session.currentState())
}

func TestGatewaySerializesCommands(t *testing.T) {
	f := newFakeLib(reportingRun(`{}`))
	g := newTestGateway(f)

	const workers = 16
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				_, err := g.Run("pvs")
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), f.maxInFlight.Load(),
		"at most one command may be inside the engine at a time")
	assert.Equal(t, int32(workers*10), f.runCalls.Load())
}

func TestGatewayPanicPoisonsSession(t *testing.T) {
	f := newFakeLib(func(_ *fakeLib, _ string) int32 { panic("engine fault") })
	g := newTestGateway(f)

	require.Panics(t, func() { _, _ = g.Run("pvs") })

	assert.Equal(t, StatePoisoned, g.session.currentState())

	// Every later command fails the same way, without touching the engine.
	runsBefore := f.runCalls.Load()
	for i := 0; i < 3; i++ {
		_, err := g.Run("lvs")
		var cmdErr *CommandError
		require.ErrorAs(t, err, &cmdErr)
		assert.Equal(t, RetGlobalStatePoisoned, cmdErr.Code)
		assert.True(t, cmdErr.Permanent())
	}
	assert.Equal(t, runsBefore, f.runCalls.Load())
}

func TestGatewayPanicDuringInitPoisonsSession(t *testing.T) {
	f := newFakeLib(nil)
	f.onInit = func() uintptr { panic("engine fault during init") }
	g := newTestGateway(f)

	// The first command trips the fault inside lazy initialization.
	require.Panics(t, func() { _, _ = g.Run("pvs") })
	assert.Equal(t, StatePoisoned, g.session.currentState())

	// Later commands must get the poisoned error back, not park forever on
	// a lock the faulting command never released.
	done := make(chan error, 1)
	go func() {
		_, err := g.Run("lvs")
		done <- err
	}()
	select {
	case err := <-done:
		var cmdErr *CommandError
		require.ErrorAs(t, err, &cmdErr)
		assert.Equal(t, RetGlobalStatePoisoned, cmdErr.Code)
	case <-time.After(2 * time.Second):
		t.Fatal("command after init fault never returned")
	}

	assert.Equal(t, int32(1), f.initCalls.Load())
	assert.Zero(t, f.runCalls.Load())
}

func TestTeardownPanicPoisonsSession(t *testing.T) {
	f := newFakeLib(reportingRun(`{}`))
	f.onExit = func() { panic("engine fault during exit") }
	g := newTestGateway(f)

	_, err := g.Run("pvs")
	require.NoError(t, err)

	require.Panics(t, func() { g.session.teardown() })
	assert.Equal(t, StatePoisoned, g.session.currentState())

	_, err = g.Run("pvs")
	var cmdErr *CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, RetGlobalStatePoisoned, cmdErr.Code)
}

func TestSessionStateDuringInitialization(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	f := newFakeLib(reportingRun(`{}`))
	f.onInit = func() uintptr {
		close(started)
		<-release
		return 0xbeef
	}
	g := newTestGateway(f)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := g.Run("pvs")
		assert.NoError(t, err)
	}()

	<-started
	// The init outcome is unknown while the first command is still inside
	// it, so the state must not report ready yet.
	assert.Equal(t, StateUninitialized, g.session.currentState())

	close(release)
	<-done
	assert.Equal(t, StateReady, g.session.currentState())
}

func TestGatewayTeardown(t *testing.T) {
	f := newFakeLib(reportingRun(`{}`))
	g := newTestGateway(f)

	_, err := g.Run("pvs")
	require.NoError(t, err)

	g.session.teardown()
	g.session.teardown() // second call is a no-op
	assert.Equal(t, int32(1), f.exitCalls.Load())

	_, err = g.Run("pvs")
	var cmdErr *CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, RetInitFailed, cmdErr.Code)
	assert.ErrorIs(t, err, errSessionClosed)
}

func TestGatewayTeardownBeforeInitSkipsEngine(t *testing.T) {
	f := newFakeLib(nil)
	g := newTestGateway(f)

	g.session.teardown()
	assert.Zero(t, f.exitCalls.Load(), "nothing to release before initialization")
}

func TestCommandVerb(t *testing.T) {
	tests := []struct {
		command string
		want    string
	}{
		{"pvs", "pvs"},
		{"lvs -o name --units b", "lvs"},
		{"  vgs  ", "vgs"},
		{"", "(empty)"},
		{"   ", "(empty)"},
	}

	for _, tt := range tests {
		if got := commandVerb(tt.command); got != tt.want {
			t.Errorf("commandVerb(%q) = %q, want %q", tt.command, got, tt.want)
		}
	}
}

func TestSessionStateDuringCommand(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	f := newFakeLib(func(f *fakeLib, commandLine string) int32 {
		close(started)
		<-release
		f.emitMarker(commandLine)
		return int32(RetSucceeded)
	})
	g := newTestGateway(f)

	assert.Equal(t, StateUninitialized, g.session.currentState())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := g.Run("pvs")
		assert.NoError(t, err)
	}()

	<-started
	// Lock held by the in-flight command; state reads as ready without blocking.
	assert.Equal(t, StateReady, g.session.currentState())

	close(release)
	<-done
	assert.Equal(t, StateReady, g.session.currentState())
}

func TestGatewayOutputStaysRawOnDecodeFailure(t *testing.T) {
	// Split output must be concatenated with no injected separators before
	// the decode attempt; a failed decode preserves the joined text.
	f := newFakeLib(reportingRun("abc", "def"))
	g := newTestGateway(f)

	_, err := g.Run("pvs")
	var cmdErr *CommandError
	require.ErrorAs(t, err, &cmdErr)
	require.Equal(t, RetJSONDeserializationFailed, cmdErr.Code)
	assert.Equal(t, "abcdef", cmdErr.Raw)
	assert.False(t, strings.Contains(cmdErr.Raw, "\n"))
}
