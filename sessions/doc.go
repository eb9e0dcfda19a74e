// Package sessions defines the contract between the SSE transport and the
// session table that routes inbound POSTs back to the stream that minted
// the session identifier.
//
// The table holds one entry per open server-side transport, keyed by the
// opaque session ID advertised in the handshake event. Insertion happens
// on handshake, removal on close. The directory is the only shared
// resource between connections; each transport instance otherwise owns
// its stream exclusively.
//
// Two implementations ship with the module:
//
//   - memorydirectory: process-local map, suitable for single-node
//     deployments and tests.
//   - redisdirectory: process-local handles plus Redis presence keys so a
//     multi-node deployment can distinguish "unknown session" (404) from
//     "session lives on another node" (misdirected request).
package sessions
