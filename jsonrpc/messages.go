package jsonrpc

import (
	"encoding/json"
	"fmt"
)

// ProtocolVersion is the supported JSON-RPC protocol version.
const ProtocolVersion = "2.0"

// Kind identifies which of the four envelope shapes a message has.
type Kind int

const (
	KindRequest Kind = iota
	KindNotification
	KindResponse
	KindErrorResponse
)

func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindNotification:
		return "notification"
	case KindResponse:
		return "response"
	case KindErrorResponse:
		return "error_response"
	}
	return "unknown"
}

// AnyMessage is a validated JSON-RPC envelope. Unmarshaling enforces the
// structural rules of the protocol; an AnyMessage that came out of Parse or
// json.Unmarshal is always one of the four Kind shapes.
type AnyMessage struct {
	JSONRPCVersion string          `json:"jsonrpc"`
	Method         string          `json:"method,omitempty"`
	Params         json.RawMessage `json:"params,omitempty"`
	Result         json.RawMessage `json:"result,omitempty"`
	Error          *Error          `json:"error,omitempty"`
	ID             *RequestID      `json:"id,omitempty"`
}

// Request represents a JSON-RPC request (with an ID) or notification (without ID).
type Request struct {
	JSONRPCVersion string          `json:"jsonrpc"`
	Method         string          `json:"method"`
	Params         json.RawMessage `json:"params,omitempty"`
	ID             *RequestID      `json:"id,omitempty"`
}

// Response represents a JSON-RPC response.
type Response struct {
	JSONRPCVersion string          `json:"jsonrpc"`
	Result         json.RawMessage `json:"result,omitempty"`
	Error          *Error          `json:"error,omitempty"`
	ID             *RequestID      `json:"id,omitempty"`
}

// Error is a JSON-RPC error object. Code and Message are mandatory on the
// wire; unmarshaling rejects error objects that omit either.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Data    any       `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// UnmarshalJSON enforces that an error object carries a numeric code and a
// string message. Anything else is a structural violation.
func (e *Error) UnmarshalJSON(data []byte) error {
	type rawError struct {
		Code    *ErrorCode      `json:"code"`
		Message *string         `json:"message"`
		Data    json.RawMessage `json:"data"`
	}

	var raw rawError
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("invalid error object: %w", err)
	}
	if raw.Code == nil {
		return fmt.Errorf("error object must have a numeric code field")
	}
	if raw.Message == nil {
		return fmt.Errorf("error object must have a string message field")
	}

	e.Code = *raw.Code
	e.Message = *raw.Message
	if len(raw.Data) > 0 {
		var d any
		if err := json.Unmarshal(raw.Data, &d); err != nil {
			return fmt.Errorf("invalid error data: %w", err)
		}
		e.Data = d
	}
	return nil
}

// Parse validates raw bytes against the envelope schema and returns the
// typed message. Malformed input never produces a message; it produces an
// error describing the first structural violation found.
func Parse(data []byte) (*AnyMessage, error) {
	var msg AnyMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// UnmarshalJSON implements custom JSON unmarshaling for AnyMessage. It
// enforces JSON-RPC 2.0 semantics: the version literal, exactly one of
// {method, result, error}, and ID/error field types (via RequestID and
// Error unmarshalers).
func (m *AnyMessage) UnmarshalJSON(data []byte) error {
	type rawMessage struct {
		JSONRPCVersion string          `json:"jsonrpc"`
		Method         string          `json:"method,omitempty"`
		Params         json.RawMessage `json:"params,omitempty"`
		Result         json.RawMessage `json:"result,omitempty"`
		Error          *Error          `json:"error,omitempty"`
		ID             *RequestID      `json:"id,omitempty"`
	}

	var raw rawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	if raw.JSONRPCVersion != ProtocolVersion {
		return fmt.Errorf("invalid JSON-RPC version: expected %q, got %q", ProtocolVersion, raw.JSONRPCVersion)
	}

	hasMethod := raw.Method != ""
	hasResult := len(raw.Result) > 0
	hasError := raw.Error != nil

	if hasMethod {
		if hasResult || hasError {
			return fmt.Errorf("request message cannot have result or error fields")
		}
	} else {
		if hasResult && hasError {
			return fmt.Errorf("response message cannot have both result and error fields")
		}
		if !hasResult && !hasError {
			return fmt.Errorf("response message must have either result or error field")
		}
	}

	m.JSONRPCVersion = raw.JSONRPCVersion
	m.Method = raw.Method
	m.Params = raw.Params
	m.Result = raw.Result
	m.Error = raw.Error
	m.ID = raw.ID

	return nil
}

// Kind returns the shape of the message. The discrimination happens once,
// here; downstream code switches on the result instead of re-inspecting
// field presence.
func (m *AnyMessage) Kind() Kind {
	if m.Method != "" {
		if m.ID.IsNil() {
			return KindNotification
		}
		return KindRequest
	}
	if m.Error != nil {
		return KindErrorResponse
	}
	return KindResponse
}

// AsRequest returns the message as a Request if it is a request or
// notification, otherwise nil.
func (m *AnyMessage) AsRequest() *Request {
	if m.Method == "" {
		return nil
	}

	return &Request{
		JSONRPCVersion: m.JSONRPCVersion,
		Method:         m.Method,
		Params:         m.Params,
		ID:             m.ID,
	}
}

// AsResponse returns the message as a Response if it is a response message,
// otherwise nil.
func (m *AnyMessage) AsResponse() *Response {
	if m.Method != "" {
		return nil
	}

	return &Response{
		JSONRPCVersion: m.JSONRPCVersion,
		Result:         m.Result,
		Error:          m.Error,
		ID:             m.ID,
	}
}

// NewRequest builds a request envelope with marshaled params.
func NewRequest(id *RequestID, method string, params any) (*AnyMessage, error) {
	var raw json.RawMessage
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal params: %w", err)
		}
		raw = b
	}
	return &AnyMessage{
		JSONRPCVersion: ProtocolVersion,
		Method:         method,
		Params:         raw,
		ID:             id,
	}, nil
}

// NewNotification builds a notification envelope (a request with no ID).
func NewNotification(method string, params any) (*AnyMessage, error) {
	return NewRequest(nil, method, params)
}

// NewResultResponse builds a successful JSON-RPC response envelope.
func NewResultResponse(id *RequestID, result any) (*AnyMessage, error) {
	resultBytes, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	return &AnyMessage{
		JSONRPCVersion: ProtocolVersion,
		Result:         resultBytes,
		ID:             id,
	}, nil
}

// NewErrorResponse builds an error JSON-RPC response envelope with the given code.
func NewErrorResponse(id *RequestID, code ErrorCode, message string, data any) *AnyMessage {
	return &AnyMessage{
		JSONRPCVersion: ProtocolVersion,
		Error: &Error{
			Code:    code,
			Message: message,
			Data:    data,
		},
		ID: id,
	}
}
