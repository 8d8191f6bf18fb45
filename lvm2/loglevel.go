package lvm2

import "strings"

// LogLevel classifies an engine log line by severity.
type LogLevel int

// Severities as reported by liblvm2cmd. LevelUnknown covers any native
// value outside the documented range.
const (
	LevelUnknown LogLevel = iota
	LevelFatal
	LevelError
	LevelPrint
	LevelVerbose
	LevelVeryVerbose
	LevelDebug
)

// String returns the string representation of LogLevel
func (l LogLevel) String() string {
	switch l {
	case LevelFatal:
		return "fatal"
	case LevelError:
		return "error"
	case LevelPrint:
		return "print"
	case LevelVerbose:
		return "verbose"
	case LevelVeryVerbose:
		return "very_verbose"
	case LevelDebug:
		return "debug"
	default:
		return "unknown"
	}
}

// LevelFromNative maps a native severity value from lvm2cmd.h to LogLevel.
func LevelFromNative(v int) LogLevel {
	switch v {
	case 2:
		return LevelFatal
	case 3:
		return LevelError
	case 4:
		return LevelPrint
	case 5:
		return LevelVerbose
	case 6:
		return LevelVeryVerbose
	case 7:
		return LevelDebug
	default:
		return LevelUnknown
	}
}

// The engine announces the end of a command with a debug line from its
// command-line layer:
//
//	DEBUG "lvmcmdline.c" 3325 0 "Completed: pvs --reportformat json"
const (
	completionOrigin = "lvmcmdline.c"
	completionPrefix = "Completed:"
)

// IsCompletionMarker reports whether a log line is the engine's
// end-of-command marker.
func IsCompletionMarker(level LogLevel, file, message string) bool {
	return level == LevelDebug &&
		file == completionOrigin &&
		strings.HasPrefix(message, completionPrefix)
}
