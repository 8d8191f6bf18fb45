package lvm2

import "fmt"

// RetCode identifies the outcome of one gateway command.
type RetCode int

// Engine-native outcomes. The values match what lvm2_run returns, so the
// mapping below only has to catch the out-of-range cases.
const (
	RetSucceeded RetCode = iota + 1
	RetNoSuchCommand
	RetInvalidParameters
	RetInitFailed
	RetProcessingFailed
)

// Gateway-introduced outcomes with no native counterpart.
const (
	// RetUnknown carries an engine return value outside the documented set.
	RetUnknown RetCode = iota + 100
	// RetInvalidCommandLine means the command text contains an embedded
	// null byte and was rejected before any engine interaction.
	RetInvalidCommandLine
	// RetGlobalStatePoisoned means a prior fault occurred while the engine
	// lock was held. Permanent for the remainder of the process.
	RetGlobalStatePoisoned
	// RetDataChannelPoisoned means a prior fault occurred inside the log
	// capture path. Permanent for the remainder of the process.
	RetDataChannelPoisoned
	// RetJSONDeserializationFailed means the captured output was not a
	// well-formed document. The raw text is preserved on the error.
	RetJSONDeserializationFailed
)

// String returns the string representation of RetCode
func (c RetCode) String() string {
	switch c {
	case RetSucceeded:
		return "succeeded"
	case RetNoSuchCommand:
		return "no_such_command"
	case RetInvalidParameters:
		return "invalid_parameters"
	case RetInitFailed:
		return "init_failed"
	case RetProcessingFailed:
		return "processing_failed"
	case RetUnknown:
		return "unrecognized"
	case RetInvalidCommandLine:
		return "invalid_command_line"
	case RetGlobalStatePoisoned:
		return "global_state_poisoned"
	case RetDataChannelPoisoned:
		return "data_channel_poisoned"
	case RetJSONDeserializationFailed:
		return "json_deserialization_failed"
	default:
		return "unknown"
	}
}

// RetCodeFromNative maps an engine return value to RetCode.
func RetCodeFromNative(v int32) RetCode {
	if v >= int32(RetSucceeded) && v <= int32(RetProcessingFailed) {
		return RetCode(v)
	}
	return RetUnknown
}

// CommandError is the typed failure of one gateway command.
type CommandError struct {
	Code   RetCode
	Native int32  // raw engine return value, meaningful for RetUnknown
	Raw    string // captured output text, set for RetJSONDeserializationFailed
	Err    error  // underlying cause, if any
}

// Error implements the error interface
func (e *CommandError) Error() string {
	switch {
	case e.Code == RetUnknown:
		return fmt.Sprintf("lvm2: unrecognized engine return code %d", e.Native)
	case e.Err != nil:
		return fmt.Sprintf("lvm2: %s: %v", e.Code, e.Err)
	default:
		return fmt.Sprintf("lvm2: %s", e.Code)
	}
}

// Unwrap returns the underlying error
func (e *CommandError) Unwrap() error { return e.Err }

// Permanent reports whether the failure outlives this call. Once the
// session or the capture path is poisoned, or initialization has failed,
// no command in this process will ever succeed again.
func (e *CommandError) Permanent() bool {
	switch e.Code {
	case RetInitFailed, RetGlobalStatePoisoned, RetDataChannelPoisoned:
		return true
	default:
		return false
	}
}
