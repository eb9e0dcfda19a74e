package ssetransport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/elnormous/contenttype"
	"github.com/google/uuid"

	"github.com/ggoodman/jsonrpc-sse-go/internal/eventstream"
	"github.com/ggoodman/jsonrpc-sse-go/internal/logctx"
	"github.com/ggoodman/jsonrpc-sse-go/jsonrpc"
)

var (
	jsonMediaType         = contenttype.NewMediaType("application/json")
	eventStreamMediaType  = contenttype.NewMediaType("text/event-stream")
	eventStreamMediaTypes = []contenttype.MediaType{eventStreamMediaType}
)

// maxMessageSize bounds a single inbound POST body.
const maxMessageSize = 4 * 1024 * 1024

// ServerOption configures a ServerTransport.
type ServerOption func(*serverConfig)

type serverConfig struct {
	logger    *slog.Logger
	onMessage MessageHandler
	onError   ErrorHandler
	onClose   CloseHandler
	keepAlive time.Duration
}

// WithServerLogger sets the slog logger used by the transport. If not
// provided, logs are discarded.
func WithServerLogger(l *slog.Logger) ServerOption {
	return func(c *serverConfig) { c.logger = l }
}

// WithServerMessageHandler registers the callback invoked for every
// validated inbound message.
func WithServerMessageHandler(h MessageHandler) ServerOption {
	return func(c *serverConfig) { c.onMessage = h }
}

// WithServerErrorHandler registers the callback invoked for protocol and
// stream errors.
func WithServerErrorHandler(h ErrorHandler) ServerOption {
	return func(c *serverConfig) { c.onError = h }
}

// WithServerCloseHandler registers the callback invoked once when the
// transport reaches its closed state.
func WithServerCloseHandler(h CloseHandler) ServerOption {
	return func(c *serverConfig) { c.onClose = h }
}

// WithServerKeepAlive enables periodic SSE comment frames on the stream so
// idle connections survive intermediaries that reap quiet sockets. Zero
// disables keep-alives.
func WithServerKeepAlive(interval time.Duration) ServerOption {
	return func(c *serverConfig) { c.keepAlive = interval }
}

// ServerTransport owns one SSE stream to a single peer. It mints the
// session identifier at construction, advertises the POST-back address in
// the handshake frame, accepts one framed message per inbound HTTP POST,
// and pushes outbound messages as discrete framed events.
//
// The transport does not map session IDs to instances; that belongs to the
// collaborating router (see Handler and the sessions package).
type ServerTransport struct {
	log         *slog.Logger
	messagePath string
	sessionID   string

	onMessage MessageHandler
	onError   ErrorHandler
	onClose   CloseHandler
	keepAlive time.Duration

	rw      http.ResponseWriter
	flusher http.Flusher

	mu     sync.Mutex
	state  connState
	writer *eventstream.Writer
	done   chan struct{}
}

var _ Transport = (*ServerTransport)(nil)

// NewServerTransport creates a server-side transport that will stream onto
// w. messagePath is the path clients POST replies to; it is advertised in
// the handshake event together with the freshly minted session ID.
func NewServerTransport(messagePath string, w http.ResponseWriter, opts ...ServerOption) (*ServerTransport, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support streaming")
	}

	cfg := &serverConfig{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(cfg)
	}

	return &ServerTransport{
		log:         cfg.logger,
		messagePath: messagePath,
		sessionID:   uuid.NewString(),
		onMessage:   cfg.onMessage,
		onError:     cfg.onError,
		onClose:     cfg.onClose,
		keepAlive:   cfg.keepAlive,
		rw:          w,
		flusher:     flusher,
		done:        make(chan struct{}),
	}, nil
}

// SessionID returns the opaque routing key for this stream. It is fixed
// for the transport's lifetime.
func (t *ServerTransport) SessionID() string {
	return t.sessionID
}

// Done is closed when the transport reaches its closed state. The owning
// HTTP handler selects on it to end the streaming response.
func (t *ServerTransport) Done() <-chan struct{} {
	return t.done
}

// Start writes the SSE response headers and pushes the handshake frame. It
// also registers a disconnect observer on ctx (the request context) so a
// peer disconnect transitions the transport to closed exactly once.
//
// Start can succeed at most once; a second call fails with
// ErrAlreadyStarted.
func (t *ServerTransport) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.state != stateIdle {
		t.mu.Unlock()
		return ErrAlreadyStarted
	}

	h := t.rw.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	t.rw.WriteHeader(http.StatusOK)

	t.writer = eventstream.NewWriter(ctx, t.rw, t.flusher)

	endpoint := &url.URL{Path: t.messagePath, RawQuery: sessionIDParam + "=" + t.sessionID}
	if err := t.writer.WriteEvent(endpointEventName, []byte(endpoint.String())); err != nil {
		t.mu.Unlock()
		return fmt.Errorf("failed to write handshake event: %w", err)
	}

	t.state = stateOpen
	t.mu.Unlock()

	go t.watch(ctx)

	t.log.InfoContext(ctx, "sse.stream.start", slog.String("session_id", t.sessionID))
	return nil
}

// watch observes the stream context for peer disconnects and drives the
// keep-alive ticker while the stream is open.
func (t *ServerTransport) watch(ctx context.Context) {
	var tick <-chan time.Time
	if t.keepAlive > 0 {
		ticker := time.NewTicker(t.keepAlive)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			t.log.InfoContext(ctx, "sse.stream.disconnect", slog.String("session_id", t.sessionID))
			_ = t.Close()
			return
		case <-t.done:
			return
		case <-tick:
			t.mu.Lock()
			w := t.writer
			t.mu.Unlock()
			if w == nil {
				continue
			}
			if err := w.WriteComment("keep-alive"); err != nil {
				t.log.WarnContext(ctx, "sse.keepalive.fail", slog.String("err", err.Error()))
			}
		}
	}
}

// HandlePostMessage consumes one inbound HTTP request carrying a single
// JSON-RPC envelope. It requires the stream to be open, enforces a JSON
// content type, validates the body against the envelope schema, and only
// then acknowledges with 202. The message callback runs after the
// acknowledgement is written; callback failures cannot change the HTTP
// status already returned to the sender.
func (t *ServerTransport) HandlePostMessage(w http.ResponseWriter, r *http.Request) error {
	ctx := logctx.WithSessionData(r.Context(), &logctx.SessionData{SessionID: t.sessionID})

	t.mu.Lock()
	state := t.state
	t.mu.Unlock()
	if state != stateOpen {
		http.Error(w, "SSE connection not established", http.StatusInternalServerError)
		t.log.WarnContext(ctx, "post.reject.stream_state", slog.String("state", state.String()))
		return ErrStreamNotEstablished
	}

	ctype, err := contenttype.GetMediaType(r)
	if err != nil || !ctype.Matches(jsonMediaType) {
		err := fmt.Errorf("unsupported content-type: %s", r.Header.Get("Content-Type"))
		http.Error(w, err.Error(), http.StatusBadRequest)
		t.log.WarnContext(ctx, "post.reject.content_type")
		t.emitError(err)
		return err
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxMessageSize))
	if err != nil {
		err := fmt.Errorf("failed to read request body: %w", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		t.log.WarnContext(ctx, "post.reject.body", slog.String("err", err.Error()))
		t.emitError(err)
		return err
	}

	msg, err := jsonrpc.Parse(body)
	if err != nil {
		err := fmt.Errorf("invalid message: %w", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		t.log.WarnContext(ctx, "post.reject.invalid", slog.String("err", err.Error()))
		t.emitError(err)
		return err
	}

	ctx = logctx.WithRPCMessage(ctx, &logctx.RPCMessage{
		Method: msg.Method,
		ID:     msg.ID.String(),
		Kind:   msg.Kind().String(),
	})

	// Acknowledge before dispatch: business handling is decoupled from the
	// HTTP exchange.
	w.WriteHeader(http.StatusAccepted)
	_, _ = io.WriteString(w, "Accepted")

	t.log.InfoContext(ctx, "post.accept")
	if t.onMessage != nil {
		t.onMessage(ctx, msg)
	}
	return nil
}

// Send serializes msg and writes it as one framed event on the stream.
// There is no acknowledgement, retry, or queueing; a write failure
// surfaces synchronously and is also reported to the error handler.
func (t *ServerTransport) Send(ctx context.Context, msg *jsonrpc.AnyMessage) error {
	t.mu.Lock()
	if t.state != stateOpen {
		t.mu.Unlock()
		return ErrNotConnected
	}
	w := t.writer
	t.mu.Unlock()

	b, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if err := w.WriteEvent(messageEventName, b); err != nil {
		err = fmt.Errorf("failed to push message: %w", err)
		t.log.WarnContext(ctx, "send.fail", slog.String("err", err.Error()))
		t.emitError(err)
		return err
	}

	t.log.DebugContext(ctx, "send.ok", slog.String("session_id", t.sessionID))
	return nil
}

// Close transitions the transport to closed and fires the close handler at
// most once. A later disconnect notification from the stream itself is a
// no-op, as is calling Close again.
func (t *ServerTransport) Close() error {
	t.mu.Lock()
	if t.state == stateClosed {
		t.mu.Unlock()
		return nil
	}
	t.state = stateClosed
	t.writer = nil
	close(t.done)
	t.mu.Unlock()

	if t.onClose != nil {
		t.onClose()
	}
	return nil
}

func (t *ServerTransport) emitError(err error) {
	if t.onError != nil {
		t.onError(err)
	}
}
