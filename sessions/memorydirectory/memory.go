package memorydirectory

import (
	"context"
	"sync"

	"github.com/ggoodman/jsonrpc-sse-go/sessions"
)

// Directory is an in-memory implementation of sessions.Directory. All
// state is ephemeral and discarded on process exit.
type Directory struct {
	mu       sync.RWMutex
	handlers map[string]sessions.PostHandler
}

var _ sessions.Directory = (*Directory)(nil)

func New() *Directory {
	return &Directory{handlers: make(map[string]sessions.PostHandler)}
}

func (d *Directory) Add(ctx context.Context, t sessions.PostHandler) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[t.SessionID()] = t
	return nil
}

func (d *Directory) Resolve(ctx context.Context, sessionID string) (sessions.PostHandler, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	t, ok := d.handlers[sessionID]
	if !ok {
		return nil, sessions.ErrSessionNotFound
	}
	return t, nil
}

func (d *Directory) Remove(ctx context.Context, sessionID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.handlers, sessionID)
	return nil
}

func (d *Directory) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers = make(map[string]sessions.PostHandler)
	return nil
}

// Len reports the number of live sessions. Useful for tests and metrics.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.handlers)
}
