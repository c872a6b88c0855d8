// Package memory provides the in-memory reference implementation of
// core.MemoryGateway: a TTL-aware, session-scoped active-state store plus an
// append-only, searchable session history. Suitable for tests, demos and
// single-process deployments; swap for Redis / a vector store in production.
package memory
