// Package ssetransport implements a bidirectional JSON-RPC 2.0 transport
// over a one-way server-push channel (Server-Sent Events) paired with
// client-initiated HTTP POSTs for the reverse direction.
//
// Both halves share one contract (Transport: Start, Send, Close, plus
// message/error/close observers registered at construction) but differ in
// mechanics:
//
//   - ServerTransport owns one long-lived SSE stream per client, mints a
//     session identifier at handshake time, and accepts inbound JSON
//     bodies via HandlePostMessage, which the owning HTTP layer routes to
//     it by session ID.
//   - ClientTransport opens the stream, waits for the handshake event
//     carrying the reply address, then sends outbound messages as
//     discrete POST requests to that address.
//
// Control flow: client opens stream, server assigns a session and pushes
// the "endpoint" handshake event, client POSTs messages to the advertised
// address, the router forwards each body to the session's transport, the
// transport validates it and invokes the message callback, optionally
// pushing a response back down the same stream as a "message" event.
//
// # Wire format
//
// Two event kinds flow server-to-client:
//
//	event: endpoint
//	data: <postPath>?sessionId=<opaque-token>
//
//	event: message
//	data: <JSON-RPC 2.0 envelope>
//
// One message per event, no batching. Inbound POSTs carry one JSON
// envelope each with a JSON content type and are answered 202 on
// acceptance, 400 on malformed content-type/body/schema, 500 if the
// session's stream is not open, and (by the Handler) 404 for unknown
// sessions.
//
// # Concurrency
//
// Each transport instance is driven by its own connection; outbound pushes
// are written in Send call order and flushed one event at a time.
// Concurrent POSTs for the same session are processed independently: the
// transport neither serializes nor deduplicates them. Only the client
// defines a cancellation primitive: Close aborts all in-flight sends
// sharing the transport's handle.
//
// # Handler
//
// Handler is a drop-in http.Handler wiring a session directory (see the
// sessions package) to per-connection transports:
//
//	dir := memorydirectory.New()
//	h, err := ssetransport.NewHandler("/sse", "/message", dir,
//	    ssetransport.WithLogger(logger),
//	    ssetransport.WithMessageHandler(func(ctx context.Context, sess *ssetransport.ServerTransport, msg *jsonrpc.AnyMessage) {
//	        // echo requests back as results
//	    }),
//	)
//
// Persistence/replay after disconnect, multi-hop routing, backpressure,
// compression, authentication, and automatic reconnection are explicitly
// out of scope.
package ssetransport
