// Package redisdirectory provides a sessions.Directory for multi-node
// deployments. Live transports stay process-local; Redis carries one
// presence key per session with a refreshing TTL lease.
//
// Characteristics
//
//	Durability        : lease-based (entries expire without refresh)
//	Horizontal scale  : yes (shared presence view)
//	Concurrency       : safe (RWMutex + Redis)
//
// A Resolve miss against the local map falls through to Redis: a live
// presence key means the session's stream is held by a peer node and the
// router should answer 421 Misdirected Request rather than 404.
package redisdirectory
