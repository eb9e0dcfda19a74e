package ssetransport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"github.com/elnormous/contenttype"

	"github.com/ggoodman/jsonrpc-sse-go/internal/eventstream"
	"github.com/ggoodman/jsonrpc-sse-go/jsonrpc"
)

// ClientOption configures a ClientTransport.
type ClientOption func(*clientConfig)

type clientConfig struct {
	logger     *slog.Logger
	httpClient *http.Client
	onMessage  MessageHandler
	onError    ErrorHandler
	onClose    CloseHandler
}

// WithClientLogger sets the slog logger used by the transport. If not
// provided, logs are discarded.
func WithClientLogger(l *slog.Logger) ClientOption {
	return func(c *clientConfig) { c.logger = l }
}

// WithHTTPClient sets the HTTP client used for both the stream GET and
// outbound POSTs. Defaults to http.DefaultClient.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *clientConfig) { c.httpClient = hc }
}

// WithClientMessageHandler registers the callback invoked for every
// validated inbound message event.
func WithClientMessageHandler(h MessageHandler) ClientOption {
	return func(c *clientConfig) { c.onMessage = h }
}

// WithClientErrorHandler registers the callback invoked for stream and
// validation errors.
func WithClientErrorHandler(h ErrorHandler) ClientOption {
	return func(c *clientConfig) { c.onError = h }
}

// WithClientCloseHandler registers the callback invoked once when the
// transport reaches its closed state.
func WithClientCloseHandler(h CloseHandler) ClientOption {
	return func(c *clientConfig) { c.onClose = h }
}

// ClientTransport opens the SSE stream, completes the handshake that
// yields the POST-back address, relays inbound pushed events, and performs
// outbound sends as discrete POST requests against that address.
//
// All in-flight sends share one cancellation handle: closing the transport
// aborts them.
type ClientTransport struct {
	log      *slog.Logger
	endpoint *url.URL
	hc       *http.Client

	onMessage MessageHandler
	onError   ErrorHandler
	onClose   CloseHandler

	mu         sync.Mutex
	state      connState
	postURL    *url.URL
	body       io.ReadCloser
	connCtx    context.Context
	connCancel context.CancelFunc
}

var _ Transport = (*ClientTransport)(nil)

// NewClientTransport creates a client-side transport that will connect to
// the SSE endpoint at rawURL.
func NewClientTransport(rawURL string, opts ...ClientOption) (*ClientTransport, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint URL %q: %w", rawURL, err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return nil, fmt.Errorf("endpoint URL must use HTTP or HTTPS scheme, got %q", u.Scheme)
	}

	cfg := &clientConfig{logger: slog.New(slog.DiscardHandler), httpClient: http.DefaultClient}
	for _, opt := range opts {
		opt(cfg)
	}

	return &ClientTransport{
		log:       cfg.logger,
		endpoint:  u,
		hc:        cfg.httpClient,
		onMessage: cfg.onMessage,
		onError:   cfg.onError,
		onClose:   cfg.onClose,
		state:     stateIdle,
	}, nil
}

// Start opens the stream and blocks until the handshake event has been
// received and validated, the stream fails, or ctx expires. ctx bounds
// only the connection attempt; the stream itself lives until Close.
//
// An endpoint resolving to a different origin than the connection URL is
// fatal: the transport closes itself and returns ErrOriginMismatch.
func (t *ClientTransport) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.state != stateIdle {
		t.mu.Unlock()
		return ErrAlreadyStarted
	}
	t.state = stateConnecting
	t.connCtx, t.connCancel = context.WithCancel(context.Background())
	connCtx := t.connCtx
	t.mu.Unlock()

	req, err := http.NewRequestWithContext(connCtx, http.MethodGet, t.endpoint.String(), nil)
	if err != nil {
		t.teardown()
		return fmt.Errorf("failed to build stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := t.hc.Do(req)
	if err != nil {
		t.teardown()
		return fmt.Errorf("failed to open SSE stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		t.teardown()
		return fmt.Errorf("failed to open SSE stream: unexpected status %d", resp.StatusCode)
	}
	if mt := contenttype.NewMediaType(resp.Header.Get("Content-Type")); !mt.Matches(eventStreamMediaType) {
		resp.Body.Close()
		t.teardown()
		return fmt.Errorf("failed to open SSE stream: unexpected content-type %q", resp.Header.Get("Content-Type"))
	}

	t.mu.Lock()
	t.body = resp.Body
	t.mu.Unlock()

	ready := make(chan error, 1)
	go t.readLoop(connCtx, resp.Body, ready)

	select {
	case err := <-ready:
		if err != nil {
			_ = t.Close()
			return err
		}
		t.log.InfoContext(ctx, "sse.handshake.ok", slog.String("endpoint", t.replyAddress()))
		return nil
	case <-ctx.Done():
		_ = t.Close()
		return fmt.Errorf("handshake aborted: %w", ctx.Err())
	}
}

// replyAddress returns the resolved POST-back address, or "" before the
// handshake completes.
func (t *ClientTransport) replyAddress() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.postURL == nil {
		return ""
	}
	return t.postURL.String()
}

// readLoop owns the stream. Before the handshake it reports the outcome on
// ready; afterwards it dispatches message events until the stream ends.
func (t *ClientTransport) readLoop(ctx context.Context, body io.ReadCloser, ready chan<- error) {
	r := eventstream.NewReader(body)
	handshaken := false

	for {
		ev, err := r.Next()
		if err != nil {
			if ctx.Err() != nil {
				// Local close; Close already handles the observer.
				return
			}
			if !handshaken {
				ready <- fmt.Errorf("stream ended before handshake: %w", err)
				return
			}
			if !errors.Is(err, io.EOF) {
				t.emitError(fmt.Errorf("stream read failed: %w", err))
			}
			t.log.Info("sse.stream.end")
			_ = t.Close()
			return
		}

		switch ev.Name {
		case endpointEventName:
			if handshaken {
				continue
			}
			if err := t.completeHandshake(ev.Data); err != nil {
				ready <- err
				return
			}
			handshaken = true
			ready <- nil

		case messageEventName:
			msg, err := jsonrpc.Parse([]byte(ev.Data))
			if err != nil {
				// Validation failures are reported and swallowed; they
				// never close the connection.
				t.emitError(fmt.Errorf("invalid message event: %w", err))
				continue
			}
			if t.onMessage != nil {
				t.onMessage(ctx, msg)
			}
		}
	}
}

// completeHandshake resolves the advertised endpoint against the
// connection URL and rejects any origin change.
func (t *ClientTransport) completeHandshake(payload string) error {
	ref, err := url.Parse(payload)
	if err != nil {
		return fmt.Errorf("malformed endpoint event payload %q: %w", payload, err)
	}
	resolved := t.endpoint.ResolveReference(ref)

	if resolved.Scheme != t.endpoint.Scheme || resolved.Host != t.endpoint.Host {
		return fmt.Errorf("%w: endpoint %q does not match connection origin %s://%s",
			ErrOriginMismatch, resolved.String(), t.endpoint.Scheme, t.endpoint.Host)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != stateConnecting {
		return fmt.Errorf("transport closed during handshake")
	}
	t.postURL = resolved
	t.state = stateOpen
	return nil
}

// Send serializes msg and POSTs it to the handshake-provided address. It
// fails with ErrNotConnected before the handshake completes. A non-2xx
// response is a send failure: it is reported to the error handler and
// returned to the caller, with a best-effort excerpt of the response body.
func (t *ClientTransport) Send(ctx context.Context, msg *jsonrpc.AnyMessage) error {
	t.mu.Lock()
	if t.state != stateOpen || t.postURL == nil {
		t.mu.Unlock()
		return ErrNotConnected
	}
	postURL := t.postURL
	connCtx := t.connCtx
	t.mu.Unlock()

	b, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	// The request observes both the caller's context and the transport's
	// shared cancellation handle so Close aborts in-flight sends.
	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(connCtx, cancel)
	defer stop()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, postURL.String(), bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("failed to build POST request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.hc.Do(req)
	if err != nil {
		err = fmt.Errorf("failed to post message: %w", err)
		t.emitError(err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		err = fmt.Errorf("error posting message: status %d: %s", resp.StatusCode, bytes.TrimSpace(excerpt))
		t.emitError(err)
		return err
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	t.log.DebugContext(ctx, "send.ok")
	return nil
}

// Close cancels the shared send context (aborting in-flight POSTs), closes
// the stream, and fires the close handler. Close is idempotent; repeated
// calls do not re-fire the handler.
func (t *ClientTransport) Close() error {
	t.mu.Lock()
	if t.state == stateClosed {
		t.mu.Unlock()
		return nil
	}
	t.state = stateClosed
	if t.connCancel != nil {
		t.connCancel()
	}
	body := t.body
	t.body = nil
	t.postURL = nil
	t.mu.Unlock()

	if body != nil {
		_ = body.Close()
	}
	if t.onClose != nil {
		t.onClose()
	}
	return nil
}

func (t *ClientTransport) emitError(err error) {
	t.log.Warn("transport.error", slog.String("err", err.Error()))
	if t.onError != nil {
		t.onError(err)
	}
}

// teardown reverts a failed connection attempt to the closed state without
// firing the close handler (the connection never opened).
func (t *ClientTransport) teardown() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = stateClosed
	if t.connCancel != nil {
		t.connCancel()
	}
}
