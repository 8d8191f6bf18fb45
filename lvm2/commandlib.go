package lvm2

// LogFn matches the fixed signature of the engine's logging callback.
type LogFn func(level int, file string, line, dmErrno int, message string)

// CommandLib is the call surface of the native LVM2 command library
// (lvm2cmd.h). The library is stateful, not reentrant and not thread-safe:
// a process gets exactly one handle and every call through it must be
// serialized by the caller. The logging callback is the only way the
// library reports command output; per the library's contract it fires
// synchronously inside Run, on the calling thread, in emission order, with
// the completion marker as the final line of a command. Init may succeed at
// most once per process and Exit must be called exactly once per handle.
type CommandLib interface {
	// Init allocates the library context. A zero handle means failure.
	Init() uintptr

	// SetLogFn registers the process-wide logging callback. It must be
	// registered before the first Run.
	SetLogFn(fn LogFn)

	// Run executes one command line against the handle and returns the
	// library's native return code.
	Run(handle uintptr, commandLine string) int32

	// Exit releases the handle.
	Exit(handle uintptr)
}
