package jsonrpc

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestParseValidEnvelopes(t *testing.T) {
	cases := []struct {
		name string
		in   string
		kind Kind
	}{
		{"request with number id", `{"jsonrpc":"2.0","id":1,"method":"example.method","params":{"data":"x"}}`, KindRequest},
		{"request with string id", `{"jsonrpc":"2.0","id":"abc","method":"ping"}`, KindRequest},
		{"notification", `{"jsonrpc":"2.0","method":"notify.update","params":[1,2,3]}`, KindNotification},
		{"success response", `{"jsonrpc":"2.0","id":7,"result":{"ok":true}}`, KindResponse},
		{"error response", `{"jsonrpc":"2.0","id":7,"error":{"code":-32601,"message":"method not found"}}`, KindErrorResponse},
		{"error response with data", `{"jsonrpc":"2.0","id":"x","error":{"code":1,"message":"boom","data":{"detail":"d"}}}`, KindErrorResponse},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg, err := Parse([]byte(tc.in))
			if err != nil {
				t.Fatalf("unexpected parse error: %v", err)
			}
			if got := msg.Kind(); got != tc.kind {
				t.Fatalf("kind mismatch: want %v got %v", tc.kind, got)
			}
		})
	}
}

func TestParseInvalidEnvelopes(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		wantSub string
	}{
		{"not json", `{`, "unexpected end"},
		{"missing version", `{"id":1,"method":"m"}`, "invalid JSON-RPC version"},
		{"wrong version", `{"jsonrpc":"1.0","id":1,"method":"m"}`, "invalid JSON-RPC version"},
		{"request with result", `{"jsonrpc":"2.0","id":1,"method":"m","result":{}}`, "cannot have result or error"},
		{"request with error", `{"jsonrpc":"2.0","id":1,"method":"m","error":{"code":1,"message":"x"}}`, "cannot have result or error"},
		{"response with both", `{"jsonrpc":"2.0","id":1,"result":{},"error":{"code":1,"message":"x"}}`, "cannot have both"},
		{"response with neither", `{"jsonrpc":"2.0","id":1}`, "must have either result or error"},
		{"boolean id", `{"jsonrpc":"2.0","id":true,"method":"m"}`, "must be a string or number"},
		{"object id", `{"jsonrpc":"2.0","id":{"a":1},"method":"m"}`, "must be a string or number"},
		{"error without code", `{"jsonrpc":"2.0","id":1,"error":{"message":"x"}}`, "numeric code"},
		{"error without message", `{"jsonrpc":"2.0","id":1,"error":{"code":1}}`, "string message"},
		{"error with string code", `{"jsonrpc":"2.0","id":1,"error":{"code":"bad","message":"x"}}`, "invalid error object"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg, err := Parse([]byte(tc.in))
			if err == nil {
				t.Fatalf("expected parse failure, got %+v", msg)
			}
			if tc.wantSub != "" && !strings.Contains(err.Error(), tc.wantSub) {
				t.Fatalf("error %q does not mention %q", err.Error(), tc.wantSub)
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	inputs := []string{
		`{"jsonrpc":"2.0","id":1,"method":"example.method","params":{"data":"x"}}`,
		`{"jsonrpc":"2.0","method":"notify"}`,
		`{"jsonrpc":"2.0","id":"req-1","result":[1,"two",null]}`,
		`{"jsonrpc":"2.0","id":2,"error":{"code":-32700,"message":"parse error"}}`,
	}

	for _, in := range inputs {
		msg, err := Parse([]byte(in))
		if err != nil {
			t.Fatalf("parse %s: %v", in, err)
		}
		b, err := json.Marshal(msg)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		again, err := Parse(b)
		if err != nil {
			t.Fatalf("reparse %s: %v", b, err)
		}
		if msg.Kind() != again.Kind() {
			t.Fatalf("kind changed across round trip: %v vs %v", msg.Kind(), again.Kind())
		}
		if msg.Method != again.Method {
			t.Fatalf("method changed across round trip")
		}
		if msg.ID.String() != again.ID.String() {
			t.Fatalf("id changed across round trip: %q vs %q", msg.ID.String(), again.ID.String())
		}
	}
}

func TestRequestIDPreservesIntegerIdentity(t *testing.T) {
	var id RequestID
	if err := json.Unmarshal([]byte("42"), &id); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	b, err := json.Marshal(&id)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != "42" {
		t.Fatalf("expected 42, got %s", b)
	}
	if id.String() != "42" {
		t.Fatalf("expected string form 42, got %q", id.String())
	}
}

func TestResponseConstructors(t *testing.T) {
	res, err := NewResultResponse(NewRequestID(5), map[string]string{"ok": "yes"})
	if err != nil {
		t.Fatalf("NewResultResponse: %v", err)
	}
	if res.Kind() != KindResponse {
		t.Fatalf("expected response kind, got %v", res.Kind())
	}

	errRes := NewErrorResponse(NewRequestID("x"), ErrorCodeInvalidParams, "bad params", nil)
	if errRes.Kind() != KindErrorResponse {
		t.Fatalf("expected error response kind, got %v", errRes.Kind())
	}

	b, err := json.Marshal(errRes)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if _, err := Parse(b); err != nil {
		t.Fatalf("constructed error response does not validate: %v", err)
	}
}
