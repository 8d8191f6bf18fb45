package lvm2

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// fakeLib is a scripted stand-in for the native command library. Its Run
// drives the registered log callback synchronously on the calling
// goroutine, the way the real library does, and records how the session
// uses it.
type fakeLib struct {
	mu    sync.Mutex
	logFn LogFn

	initHandle uintptr
	onInit     func() uintptr
	onRun      func(f *fakeLib, commandLine string) int32
	onExit     func()

	initCalls atomic.Int32
	runCalls  atomic.Int32
	exitCalls atomic.Int32

	inFlight    atomic.Int32
	maxInFlight atomic.Int32

	commands   []string
	commandsMu sync.Mutex
}

func newFakeLib(onRun func(f *fakeLib, commandLine string) int32) *fakeLib {
	return &fakeLib{initHandle: 0xbeef, onRun: onRun}
}

func (f *fakeLib) Init() uintptr {
	f.initCalls.Add(1)
	if f.onInit != nil {
		return f.onInit()
	}
	return f.initHandle
}

func (f *fakeLib) SetLogFn(fn LogFn) {
	f.mu.Lock()
	f.logFn = fn
	f.mu.Unlock()
}

func (f *fakeLib) Run(_ uintptr, commandLine string) int32 {
	f.runCalls.Add(1)
	f.commandsMu.Lock()
	f.commands = append(f.commands, commandLine)
	f.commandsMu.Unlock()

	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		cur := f.maxInFlight.Load()
		if n <= cur || f.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}

	if f.onRun != nil {
		return f.onRun(f, commandLine)
	}
	return int32(RetSucceeded)
}

func (f *fakeLib) Exit(_ uintptr) {
	f.exitCalls.Add(1)
	if f.onExit != nil {
		f.onExit()
	}
}

func (f *fakeLib) emit(level int, file string, line, dmErrno int, message string) {
	f.mu.Lock()
	fn := f.logFn
	f.mu.Unlock()
	if fn != nil {
		fn(level, file, line, dmErrno, message)
	}
}

// emitPrint emits one print-severity output line
func (f *fakeLib) emitPrint(message string) {
	f.emit(4, "report.c", 100, 0, message)
}

// emitMarker emits the end-of-command marker
func (f *fakeLib) emitMarker(commandLine string) {
	f.emit(7, "lvmcmdline.c", 3325, 0, "Completed: "+commandLine)
}

func (f *fakeLib) lastCommand() string {
	f.commandsMu.Lock()
	defer f.commandsMu.Unlock()
	if len(f.commands) == 0 {
		return ""
	}
	return f.commands[len(f.commands)-1]
}

// reportingRun scripts a successful command that prints the given lines
// and then completes.
func reportingRun(lines ...string) func(f *fakeLib, commandLine string) int32 {
	return func(f *fakeLib, commandLine string) int32 {
		for _, line := range lines {
			f.emitPrint(line)
		}
		f.emitMarker(commandLine)
		return int32(RetSucceeded)
	}
}

// newTestGateway wires a gateway to a private session over the fake, so
// tests never touch the shared process-wide session.
func newTestGateway(f *fakeLib) *Gateway {
	return &Gateway{
		session:     newSession(f),
		logger:      slog.Default(),
		reportFlags: defaultReportFlags,
	}
}
