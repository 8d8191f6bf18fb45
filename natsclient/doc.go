// Package natsclient manages the NATS connection for the lvmgate daemon.
//
// The client wraps a single *nats.Conn with reconnect handling, structured
// logging and connection metrics. Command traffic itself lives in the
// service package; this package only owns the connection lifecycle.
package natsclient
