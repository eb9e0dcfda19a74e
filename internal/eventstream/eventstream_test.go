package eventstream

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
)

type nopFlusher struct{}

func (nopFlusher) Flush() {}

func TestWriterFramesEvents(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(context.Background(), &buf, nopFlusher{})

	if err := w.WriteEvent("endpoint", []byte("/message?sessionId=abc")); err != nil {
		t.Fatalf("WriteEvent: %v", err)
	}
	if err := w.WriteEvent("message", []byte(`{"jsonrpc":"2.0","method":"m"}`)); err != nil {
		t.Fatalf("WriteEvent: %v", err)
	}
	if err := w.WriteComment("ping"); err != nil {
		t.Fatalf("WriteComment: %v", err)
	}

	want := "event: endpoint\ndata: /message?sessionId=abc\n\n" +
		"event: message\ndata: {\"jsonrpc\":\"2.0\",\"method\":\"m\"}\n\n" +
		": ping\n\n"
	if got := buf.String(); got != want {
		t.Fatalf("frame mismatch:\nwant %q\ngot  %q", want, got)
	}
}

func TestWriterRefusesAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var buf bytes.Buffer
	w := NewWriter(ctx, &buf, nopFlusher{})
	cancel()

	if err := w.WriteEvent("message", []byte("x")); err == nil {
		t.Fatal("expected write error after cancellation")
	}
	if buf.Len() != 0 {
		t.Fatalf("expected no bytes written, got %q", buf.String())
	}
}

func TestReaderDecodesFrames(t *testing.T) {
	stream := "event: endpoint\ndata: /message?sessionId=s1\n\n" +
		": keep-alive\n\n" +
		"retry: 1000\n\n" +
		"id: 42\nevent: message\ndata: {\"a\":1}\n\n" +
		"data: no explicit name\n\n"

	r := NewReader(strings.NewReader(stream))

	ev, err := r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if ev.Name != "endpoint" || ev.Data != "/message?sessionId=s1" {
		t.Fatalf("unexpected first event: %+v", ev)
	}

	// The comment frame and the data-less retry frame are skipped.
	ev, err = r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if ev.Name != "message" || ev.Data != `{"a":1}` || ev.ID != "42" {
		t.Fatalf("unexpected second event: %+v", ev)
	}

	ev, err = r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if ev.Name != "message" || ev.Data != "no explicit name" {
		t.Fatalf("default event name not applied: %+v", ev)
	}

	if _, err := r.Next(); err != io.EOF {
		t.Fatalf("expected io.EOF at end of stream, got %v", err)
	}
}

func TestReaderJoinsMultilineData(t *testing.T) {
	r := NewReader(strings.NewReader("event: message\ndata: line one\ndata: line two\n\n"))
	ev, err := r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if ev.Data != "line one\nline two" {
		t.Fatalf("unexpected joined data: %q", ev.Data)
	}
}
