// Package lvmgate is a serialized gateway to the embedded LVM2 command
// engine.
//
// The lvm2 package holds the core: a process-wide session that lazily
// initializes the native library, runs one command at a time and turns
// the engine's logged output back into a structured report. The service
// and gateway/http packages expose that core over NATS request/reply and
// HTTP, and cmd/lvmgated ties everything together as a daemon.
package lvmgate
