package ssetransport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/elnormous/contenttype"
	"github.com/google/uuid"

	"github.com/ggoodman/jsonrpc-sse-go/internal/logctx"
	"github.com/ggoodman/jsonrpc-sse-go/jsonrpc"
	"github.com/ggoodman/jsonrpc-sse-go/sessions"
)

var _ http.Handler = (*Handler)(nil)

// SessionMessageHandler observes every validated inbound message together
// with the transport that received it, so applications can push replies
// down the same stream.
type SessionMessageHandler func(ctx context.Context, sess *ServerTransport, msg *jsonrpc.AnyMessage)

// SessionErrorHandler observes per-session transport and protocol errors.
type SessionErrorHandler func(sessionID string, err error)

// SessionConnectHandler observes a session reaching the open state, after
// its handshake frame has been pushed and it has been registered in the
// directory.
type SessionConnectHandler func(sess *ServerTransport)

// HandlerOption configures the Handler.
type HandlerOption func(*handlerConfig)

type handlerConfig struct {
	logger    *slog.Logger
	onMessage SessionMessageHandler
	onError   SessionErrorHandler
	onConnect SessionConnectHandler
	keepAlive time.Duration
}

// WithLogger sets the slog logger used by the handler and every transport
// it creates. If not provided, logs are discarded.
func WithLogger(l *slog.Logger) HandlerOption {
	return func(c *handlerConfig) { c.logger = l }
}

// WithMessageHandler registers the application callback for inbound
// messages on any session.
func WithMessageHandler(h SessionMessageHandler) HandlerOption {
	return func(c *handlerConfig) { c.onMessage = h }
}

// WithErrorHandler registers the application callback for per-session
// errors.
func WithErrorHandler(h SessionErrorHandler) HandlerOption {
	return func(c *handlerConfig) { c.onError = h }
}

// WithConnectHandler registers the application callback invoked once per
// session when its stream opens.
func WithConnectHandler(h SessionConnectHandler) HandlerOption {
	return func(c *handlerConfig) { c.onConnect = h }
}

// WithKeepAlive enables periodic SSE keep-alive comments on every stream.
func WithKeepAlive(interval time.Duration) HandlerOption {
	return func(c *handlerConfig) { c.keepAlive = interval }
}

// Handler is the collaborating HTTP layer for the server-side transport:
// it mounts the SSE endpoint and the message endpoint on a ServeMux, owns
// the session table, and routes inbound POSTs by their sessionId query
// parameter.
//
// A GET to the SSE path creates one ServerTransport, registers it in the
// directory on handshake, and streams until the peer disconnects. A POST
// to the message path is forwarded to the transport owning the session:
// 404 for unknown sessions, 421 when the session's stream is held by
// another node.
type Handler struct {
	mux         *http.ServeMux
	log         *slog.Logger
	dir         sessions.Directory
	ssePath     string
	messagePath string

	onMessage SessionMessageHandler
	onError   SessionErrorHandler
	onConnect SessionConnectHandler
	keepAlive time.Duration
}

// NewHandler constructs a Handler serving the SSE stream at ssePath and
// accepting message POSTs at messagePath, with dir as the session table.
func NewHandler(ssePath, messagePath string, dir sessions.Directory, opts ...HandlerOption) (*Handler, error) {
	if dir == nil {
		return nil, fmt.Errorf("session directory is required")
	}
	if !strings.HasPrefix(ssePath, "/") || !strings.HasPrefix(messagePath, "/") {
		return nil, fmt.Errorf("ssePath and messagePath must be absolute paths")
	}

	cfg := &handlerConfig{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(cfg)
	}

	h := &Handler{
		log:         slog.New(logctx.Handler{Handler: cfg.logger.Handler()}),
		dir:         dir,
		ssePath:     ssePath,
		messagePath: messagePath,
		onMessage:   cfg.onMessage,
		onError:     cfg.onError,
		onConnect:   cfg.onConnect,
		keepAlive:   cfg.keepAlive,
	}

	mux := http.NewServeMux()
	mux.HandleFunc(fmt.Sprintf("GET %s", ssePath), h.handleSSE)
	mux.HandleFunc(fmt.Sprintf("POST %s", messagePath), h.handleMessage)
	h.mux = mux
	return h, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r.WithContext(logctx.WithRequestData(r.Context(), &logctx.RequestData{
		RequestID:  uuid.NewString(),
		Method:     r.Method,
		RemoteAddr: r.RemoteAddr,
		Path:       r.URL.Path,
	})))
}

// writeJSONError emits a minimal JSON body for HTTP-layer rejections that
// happen before a message reaches a transport. This is transport-level,
// not JSON-RPC framing. Shape: {"error":{"code":<httpStatus>,"message":"<reason>"}}
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", jsonMediaType.String())
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"code": status, "message": msg}})
}

func (h *Handler) handleSSE(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	h.log.InfoContext(ctx, "http.sse.start")

	if _, _, err := contenttype.GetAcceptableMediaType(r, eventStreamMediaTypes); err != nil {
		w.WriteHeader(http.StatusUnsupportedMediaType)
		h.log.WarnContext(ctx, "http.sse.unsupported_media_type")
		return
	}

	var t *ServerTransport
	t, err := NewServerTransport(h.messagePath, w,
		WithServerLogger(h.log),
		WithServerKeepAlive(h.keepAlive),
		WithServerMessageHandler(func(mctx context.Context, msg *jsonrpc.AnyMessage) {
			if h.onMessage != nil {
				h.onMessage(mctx, t, msg)
			}
		}),
		WithServerErrorHandler(func(err error) {
			if h.onError != nil {
				h.onError(t.SessionID(), err)
			}
		}),
		WithServerCloseHandler(func() {
			if err := h.dir.Remove(context.Background(), t.SessionID()); err != nil {
				h.log.WarnContext(ctx, "session.remove.fail", slog.String("err", err.Error()))
			}
		}),
	)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		h.log.ErrorContext(ctx, "sse.transport.fail", slog.String("err", err.Error()))
		return
	}

	ctx = logctx.WithSessionData(ctx, &logctx.SessionData{SessionID: t.SessionID()})

	// Register before pushing the handshake so a peer that POSTs the
	// instant it sees the endpoint event cannot race the session table.
	if err := h.dir.Add(ctx, t); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		h.log.ErrorContext(ctx, "session.add.fail", slog.String("err", err.Error()))
		return
	}

	if err := t.Start(ctx); err != nil {
		h.log.ErrorContext(ctx, "sse.start.fail", slog.String("err", err.Error()))
		_ = h.dir.Remove(ctx, t.SessionID())
		return
	}

	if h.onConnect != nil {
		h.onConnect(t)
	}

	// Hold the response open until the peer disconnects or the transport
	// is closed from elsewhere.
	select {
	case <-ctx.Done():
	case <-t.Done():
	}
	_ = t.Close()

	h.log.InfoContext(ctx, "http.sse.end", slog.Duration("dur", time.Since(start)))
}

func (h *Handler) handleMessage(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	sessID := r.URL.Query().Get(sessionIDParam)
	if sessID == "" {
		writeJSONError(w, http.StatusBadRequest, "missing sessionId query parameter")
		h.log.WarnContext(ctx, "http.post.missing_session_id")
		return
	}

	ctx = logctx.WithSessionData(ctx, &logctx.SessionData{SessionID: sessID})

	t, err := h.dir.Resolve(ctx, sessID)
	if err != nil {
		switch {
		case errors.Is(err, sessions.ErrSessionNotFound):
			writeJSONError(w, http.StatusNotFound, "session not found")
			h.log.InfoContext(ctx, "session.resolve.miss")
		case errors.Is(err, sessions.ErrSessionElsewhere):
			writeJSONError(w, http.StatusMisdirectedRequest, "session stream is owned by another node")
			h.log.InfoContext(ctx, "session.resolve.elsewhere")
		default:
			writeJSONError(w, http.StatusInternalServerError, "failed to resolve session")
			h.log.ErrorContext(ctx, "session.resolve.fail", slog.String("err", err.Error()))
		}
		return
	}

	if ref, ok := h.dir.(sessions.Refresher); ok {
		if err := ref.Refresh(ctx, sessID); err != nil {
			h.log.WarnContext(ctx, "session.refresh.fail", slog.String("err", err.Error()))
		}
	}

	if err := t.HandlePostMessage(w, r.WithContext(ctx)); err != nil {
		// The transport already answered the request; this is telemetry.
		h.log.WarnContext(ctx, "http.post.fail", slog.String("err", err.Error()))
		return
	}

	h.log.InfoContext(ctx, "http.post.ok", slog.Duration("dur", time.Since(start)))
}
