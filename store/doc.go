// Package store provides persistence backends for the runtime's storage
// contract: namespaced memories with embedding search, the relationship
// graph of accounts, rooms and participants, and goal tracking.
//
// InMemory implements the full core.Store contract as a process-local map
// store, suitable for tests, examples and single-process deployments. The
// chromem and postgres subpackages back the memory namespaces with a vector
// database and with PostgreSQL respectively.
package store
