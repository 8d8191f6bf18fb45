// Package lvm2 is a serialized gateway over the native LVM2 command
// library. liblvm2cmd keeps global state, has been seen handing the same
// context to independent init calls and reports command output only through
// its logging callback, so this package owns a single lazily-initialized
// handle behind a process-wide lock, reconstructs each command's report
// from intercepted print lines and returns it to the caller as a decoded
// JSON document.
//
// Commands are fully serialized: one engine invocation at a time, results
// delivered in lock-acquisition order, no cancellation and no timeouts. A
// fault while the lock is held poisons the session permanently; from then
// on every call fails with RetGlobalStatePoisoned, because the handle's
// internal state can no longer be trusted.
//
// Build with the lvm2cmd tag to link against the real library; without the
// tag initialization fails cleanly and the package remains fully testable
// against fake engines.
package lvm2
