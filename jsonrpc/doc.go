// Package jsonrpc implements the JSON-RPC 2.0 envelope shared by both
// halves of the SSE transport. The envelope is a discriminated union of
// four shapes (request, notification, success response, error response)
// and validation happens at unmarshal time: an AnyMessage obtained from
// Parse is structurally sound, so callbacks downstream never see a
// malformed message.
//
// The validator never repairs input. A missing or wrong "jsonrpc" version,
// a message carrying both result and error, a non-string/non-number id, or
// an error object without a numeric code and string message are all
// rejected outright.
package jsonrpc
