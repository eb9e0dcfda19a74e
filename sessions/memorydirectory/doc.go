// Package memorydirectory provides an in-memory sessions.Directory
// implementation suitable for tests, development, and single-process
// servers.
//
// Characteristics
//
//	Durability        : none (RAM only)
//	Horizontal scale  : no (process local)
//	Concurrency       : safe (RWMutex)
//
// For multi-node deployments prefer redisdirectory, which layers a shared
// presence view over the same process-local handle map.
package memorydirectory
