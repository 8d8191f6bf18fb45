// Package service exposes the command gateway over NATS request/reply.
//
// CommandService subscribes to a configurable subject as part of a queue
// group, runs each requested command through the gateway and replies with
// either the parsed report or a structured error. Commands run one at a
// time; the gateway serializes them, so a burst of requests simply queues.
package service
