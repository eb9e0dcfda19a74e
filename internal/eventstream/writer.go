package eventstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// lockedWriteFlusher wraps an io.Writer + http.Flusher with a mutex and an
// optional context. It serializes concurrent writes/flushes and avoids
// writing after ctx is canceled.
type lockedWriteFlusher struct {
	io.Writer
	http.Flusher
	mu  sync.Mutex
	ctx context.Context
}

func (l *lockedWriteFlusher) Write(p []byte) (int, error) {
	if l.ctx != nil && l.ctx.Err() != nil {
		return 0, l.ctx.Err()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	// Re-check after acquiring the lock to minimize races with cancellation
	if l.ctx != nil && l.ctx.Err() != nil {
		return 0, l.ctx.Err()
	}
	return l.Writer.Write(p)
}

func (l *lockedWriteFlusher) Flush() {
	if l.ctx != nil && l.ctx.Err() != nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ctx != nil && l.ctx.Err() != nil {
		return
	}
	l.Flusher.Flush()
}

// Writer frames server-sent events onto an HTTP response. Each event is
// flushed as one discrete frame; events written from a single goroutine are
// delivered in call order.
type Writer struct {
	wf *lockedWriteFlusher
}

// NewWriter wraps a response writer for SSE framing. The writer must
// implement http.Flusher; callers check that before constructing. ctx, when
// non-nil, suppresses writes after cancellation.
func NewWriter(ctx context.Context, w io.Writer, f http.Flusher) *Writer {
	return &Writer{wf: &lockedWriteFlusher{Writer: w, Flusher: f, ctx: ctx}}
}

// WriteEvent writes a single named event with the given payload and flushes
// it. The payload must not contain newlines; callers frame one JSON document
// per event.
func (w *Writer) WriteEvent(name string, data []byte) error {
	if _, err := fmt.Fprintf(w.wf, "event: %s\n", name); err != nil {
		return fmt.Errorf("failed to write SSE event name: %w", err)
	}
	if _, err := w.wf.Write([]byte("data: ")); err != nil {
		return fmt.Errorf("failed to write SSE data prefix: %w", err)
	}
	if _, err := w.wf.Write(data); err != nil {
		return fmt.Errorf("failed to write SSE payload: %w", err)
	}
	if _, err := w.wf.Write([]byte("\n\n")); err != nil {
		return fmt.Errorf("failed to write SSE frame terminator: %w", err)
	}
	w.wf.Flush()
	return nil
}

// WriteComment writes an SSE comment frame. Receivers ignore comment lines,
// which makes them usable as keep-alive probes on idle streams.
func (w *Writer) WriteComment(text string) error {
	if _, err := fmt.Fprintf(w.wf, ": %s\n\n", text); err != nil {
		return fmt.Errorf("failed to write SSE comment: %w", err)
	}
	w.wf.Flush()
	return nil
}
