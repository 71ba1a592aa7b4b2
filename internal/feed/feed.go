// Package feed maintains push-stream subscriptions to the monitoring
// backend: one connection manager per named stream, with reconnection,
// backoff, a heartbeat watchdog, and a debounced batching queue between
// the transport and the reconciliation engine.
package feed

import (
	"context"
	"errors"
	"time"
)

// ErrStreamUnavailable is reported when the reconnect retry budget is
// exhausted. It is terminal for the manager that raises it.
var ErrStreamUnavailable = errors.New("stream unavailable: retry budget exhausted")

// RawEvent is one frame delivered by a stream transport, still encoded.
// A frame with no Data is a heartbeat: it counts as traffic for the idle
// watchdog but is never forwarded downstream.
type RawEvent struct {
	Stream string // Name of the stream that delivered the frame.
	Event  string // Transport-level event name (SSE event field, NATS subject).
	Data   []byte
}

// Stream is a transport that can establish one logical subscription.
type Stream interface {
	// Name identifies the stream in logs and status changes.
	Name() string

	// Connect establishes the subscription. The returned Conn stays bound
	// to ctx: cancelling ctx tears the connection down.
	Connect(ctx context.Context) (Conn, error)
}

// Conn is an established subscription.
type Conn interface {
	// Receive blocks until the next frame arrives. Heartbeat frames are
	// returned too so the caller can track liveness.
	Receive(ctx context.Context) (RawEvent, error)

	// Close tears the connection down. Safe to call concurrently with
	// Receive; a blocked Receive returns with an error.
	Close() error
}

// Status is the connection manager's state.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
	StatusStopped
)

func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// StatusChange records one observable manager transition.
type StatusChange struct {
	Stream string
	From   Status
	To     Status
	Err    error // Cause, when the transition was error-driven.
	At     time.Time
}
