package ssetransport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ggoodman/jsonrpc-sse-go/sessions"
)

// elsewhereDirectory reports every session as living on another node.
type elsewhereDirectory struct{}

func (elsewhereDirectory) Add(ctx context.Context, t sessions.PostHandler) error { return nil }
func (elsewhereDirectory) Resolve(ctx context.Context, sessionID string) (sessions.PostHandler, error) {
	return nil, sessions.ErrSessionElsewhere
}
func (elsewhereDirectory) Remove(ctx context.Context, sessionID string) error { return nil }
func (elsewhereDirectory) Close() error                                       { return nil }

func TestHandlerRejectsMisdirectedSession(t *testing.T) {
	h, err := NewHandler("/sse", "/message", elsewhereDirectory{})
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/message?sessionId=abc", "application/json",
		strings.NewReader(`{"jsonrpc":"2.0","method":"m"}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusMisdirectedRequest {
		t.Fatalf("expected 421, got %d", resp.StatusCode)
	}
}

func TestHandlerNegotiatesAccept(t *testing.T) {
	h, err := NewHandler("/sse", "/message", elsewhereDirectory{})
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	srv := httptest.NewServer(h)
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/sse", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d", resp.StatusCode)
	}
}

func TestHandlerRequiresAbsolutePaths(t *testing.T) {
	if _, err := NewHandler("sse", "/message", elsewhereDirectory{}); err == nil {
		t.Fatal("expected error for relative ssePath")
	}
	if _, err := NewHandler("/sse", "message", elsewhereDirectory{}); err == nil {
		t.Fatal("expected error for relative messagePath")
	}
	if _, err := NewHandler("/sse", "/message", nil); err == nil {
		t.Fatal("expected error for nil directory")
	}
}
