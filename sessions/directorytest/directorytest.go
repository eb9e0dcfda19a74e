// Package directorytest provides a reusable conformance suite for
// sessions.Directory implementations.
package directorytest

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/ggoodman/jsonrpc-sse-go/sessions"
)

// FakeTransport is a minimal sessions.PostHandler for directory tests.
type FakeTransport struct {
	ID    string
	Posts int
}

func (f *FakeTransport) SessionID() string { return f.ID }

func (f *FakeTransport) HandlePostMessage(w http.ResponseWriter, r *http.Request) error {
	f.Posts++
	w.WriteHeader(http.StatusAccepted)
	return nil
}

// RunDirectoryTests exercises the Directory contract against a fresh
// instance produced by mk for each subtest.
func RunDirectoryTests(t *testing.T, mk func(t *testing.T) sessions.Directory) {
	t.Helper()
	ctx := context.Background()

	t.Run("resolve unknown session", func(t *testing.T) {
		d := mk(t)
		defer d.Close()

		if _, err := d.Resolve(ctx, "nope"); !errors.Is(err, sessions.ErrSessionNotFound) {
			t.Fatalf("expected ErrSessionNotFound, got %v", err)
		}
	})

	t.Run("add then resolve", func(t *testing.T) {
		d := mk(t)
		defer d.Close()

		ft := &FakeTransport{ID: "sess-1"}
		if err := d.Add(ctx, ft); err != nil {
			t.Fatalf("Add: %v", err)
		}
		got, err := d.Resolve(ctx, "sess-1")
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if got.SessionID() != "sess-1" {
			t.Fatalf("resolved wrong transport: %s", got.SessionID())
		}
	})

	t.Run("remove makes session unknown", func(t *testing.T) {
		d := mk(t)
		defer d.Close()

		ft := &FakeTransport{ID: "sess-2"}
		if err := d.Add(ctx, ft); err != nil {
			t.Fatalf("Add: %v", err)
		}
		if err := d.Remove(ctx, "sess-2"); err != nil {
			t.Fatalf("Remove: %v", err)
		}
		if _, err := d.Resolve(ctx, "sess-2"); !errors.Is(err, sessions.ErrSessionNotFound) {
			t.Fatalf("expected ErrSessionNotFound after remove, got %v", err)
		}
	})

	t.Run("remove absent session is a no-op", func(t *testing.T) {
		d := mk(t)
		defer d.Close()

		if err := d.Remove(ctx, "never-added"); err != nil {
			t.Fatalf("Remove of absent session: %v", err)
		}
	})
}
