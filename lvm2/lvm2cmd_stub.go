//go:build !lvm2cmd

package lvm2

// unavailableLib stands in when the binary is built without the lvm2cmd
// tag. Init always fails, so the session memoizes init_failed instead of
// tripping over an unresolved symbol.
type unavailableLib struct{}

func (unavailableLib) Init() uintptr             { return 0 }
func (unavailableLib) SetLogFn(LogFn)            {}
func (unavailableLib) Run(uintptr, string) int32 { return int32(RetInitFailed) }
func (unavailableLib) Exit(uintptr)              {}

func defaultLib() CommandLib { return unavailableLib{} }
