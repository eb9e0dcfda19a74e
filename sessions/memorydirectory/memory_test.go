package memorydirectory

import (
	"context"
	"testing"

	"github.com/ggoodman/jsonrpc-sse-go/sessions"
	"github.com/ggoodman/jsonrpc-sse-go/sessions/directorytest"
)

func TestMemoryDirectory(t *testing.T) {
	directorytest.RunDirectoryTests(t, func(t *testing.T) sessions.Directory {
		return New()
	})
}

func TestLen(t *testing.T) {
	d := New()
	defer d.Close()

	if d.Len() != 0 {
		t.Fatalf("expected empty directory, got %d", d.Len())
	}
	if err := d.Add(context.Background(), &directorytest.FakeTransport{ID: "a"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if d.Len() != 1 {
		t.Fatalf("expected one session, got %d", d.Len())
	}
}
