//go:build lvm2cmd

package lvm2

/*
#cgo LDFLAGS: -llvm2cmd
#include <stdlib.h>
#include <lvm2cmd.h>

extern void lvmgateLogLine(int level, char *file, int line, int dm_errno, char *message);

static void lvmgate_log_bridge(int level, const char *file, int line,
                               int dm_errno, const char *message) {
	lvmgateLogLine(level, (char *)file, line, dm_errno, (char *)message);
}

static void lvmgate_register_log_bridge(void) {
	lvm2_log_fn(lvmgate_log_bridge);
}
*/
import "C"

import (
	"sync"
	"unsafe"
)

// The library's callback registration is process-global, so the Go-side
// target has to be too.
var (
	nativeLogMu sync.RWMutex
	nativeLogFn LogFn
)

// nativeLib binds CommandLib to liblvm2cmd.
type nativeLib struct{}

// NativeLib returns the CommandLib backed by the real liblvm2cmd.
func NativeLib() CommandLib { return nativeLib{} }

func defaultLib() CommandLib { return NativeLib() }

func (nativeLib) Init() uintptr {
	return uintptr(C.lvm2_init())
}

func (nativeLib) SetLogFn(fn LogFn) {
	nativeLogMu.Lock()
	nativeLogFn = fn
	nativeLogMu.Unlock()
	C.lvmgate_register_log_bridge()
}

func (nativeLib) Run(handle uintptr, commandLine string) int32 {
	// CString truncates at an embedded null byte; the gateway rejects
	// those before they get here.
	cmd := C.CString(commandLine)
	defer C.free(unsafe.Pointer(cmd))
	return int32(C.lvm2_run(unsafe.Pointer(handle), cmd))
}

func (nativeLib) Exit(handle uintptr) {
	C.lvm2_exit(unsafe.Pointer(handle))
}
