// Package http provides the HTTP API for the lvmgate daemon.
//
// The server exposes command execution, health reporting and a WebSocket
// stream of engine log lines. Commands run synchronously; the response is
// only written after the engine has produced its report.
package http
