package ssetransport

import (
	"context"
	"errors"

	"github.com/ggoodman/jsonrpc-sse-go/jsonrpc"
)

var (
	// ErrAlreadyStarted indicates Start was called on a transport that is
	// no longer idle. Starting twice is a programmer error, not a no-op.
	ErrAlreadyStarted = errors.New("transport already started")
	// ErrNotConnected indicates Send (or a push) was attempted outside the
	// open state.
	ErrNotConnected = errors.New("transport not connected")
	// ErrStreamNotEstablished indicates an inbound POST arrived before the
	// SSE stream reached the open state.
	ErrStreamNotEstablished = errors.New("sse stream not established")
	// ErrOriginMismatch indicates the handshake endpoint resolved to a
	// different origin than the connection URL. The client treats this as
	// fatal and tears the stream down before surfacing it.
	ErrOriginMismatch = errors.New("endpoint origin mismatch")
)

// Event kinds on the wire. The handshake frame names the POST-back address;
// every subsequent frame carries one JSON-RPC envelope.
const (
	endpointEventName = "endpoint"
	messageEventName  = "message"
)

const sessionIDParam = "sessionId"

// MessageHandler observes every validated inbound envelope. Malformed
// input never reaches it.
type MessageHandler func(ctx context.Context, msg *jsonrpc.AnyMessage)

// ErrorHandler observes transport and validation errors that have no
// direct caller to return to.
type ErrorHandler func(err error)

// CloseHandler observes the transport reaching its closed state.
type CloseHandler func()

// Transport is the contract shared by both halves of the connection:
// a lifecycle (Start, Close) and an ordered outbound message path (Send).
// Inbound traffic flows through the MessageHandler registered at
// construction.
type Transport interface {
	Start(ctx context.Context) error
	Send(ctx context.Context, msg *jsonrpc.AnyMessage) error
	Close() error
}

type connState int

const (
	stateIdle connState = iota
	stateConnecting
	stateOpen
	stateClosed
)

func (s connState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateConnecting:
		return "connecting"
	case stateOpen:
		return "open"
	case stateClosed:
		return "closed"
	}
	return "unknown"
}
