//go:build lvm2cmd

package lvm2

import "C"

//export lvmgateLogLine
func lvmgateLogLine(level C.int, file *C.char, line C.int, dmErrno C.int, message *C.char) {
	nativeLogMu.RLock()
	fn := nativeLogFn
	nativeLogMu.RUnlock()
	if fn == nil {
		return
	}
	fn(int(level), C.GoString(file), int(line), int(dmErrno), C.GoString(message))
}
