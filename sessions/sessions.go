package sessions

import (
	"context"
	"errors"
	"net/http"
)

var (
	// ErrSessionNotFound indicates the session identifier is not known to
	// the directory (any node).
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionElsewhere indicates the session exists but its stream is
	// owned by another node, so this process cannot route to it.
	ErrSessionElsewhere = errors.New("session owned by another node")
)

// PostHandler is the inbound half of a server-side transport: it accepts
// one framed JSON-RPC message per HTTP POST. The directory stores these so
// the routing layer can forward POSTs to the transport owning the stream.
type PostHandler interface {
	// SessionID is the opaque routing key minted at stream-open time.
	SessionID() string
	// HandlePostMessage consumes one request body, answers the HTTP
	// exchange, and dispatches the message. The returned error mirrors
	// what was already reported on the wire; callers log it, they do not
	// re-answer the request.
	HandlePostMessage(w http.ResponseWriter, r *http.Request) error
}

// Directory maps session identifiers to transport ownership. Entries are
// inserted on successful handshake and removed on close; only the
// collaborating request router reads it.
type Directory interface {
	// Add registers a live transport under its session ID.
	Add(ctx context.Context, t PostHandler) error
	// Resolve returns the transport for a session ID. It returns
	// ErrSessionNotFound for unknown sessions and ErrSessionElsewhere for
	// sessions whose stream lives on another node.
	Resolve(ctx context.Context, sessionID string) (PostHandler, error)
	// Remove drops the session. Removing an absent session is a no-op.
	Remove(ctx context.Context, sessionID string) error
	// Close releases directory resources. Registered transports are not
	// closed; their streams own their own lifecycle.
	Close() error
}

// Refresher is an optional Directory capability. Directories that track
// liveness with expiring entries implement it so the router can extend a
// session's lease on inbound activity.
type Refresher interface {
	Refresh(ctx context.Context, sessionID string) error
}
