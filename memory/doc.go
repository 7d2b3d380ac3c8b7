// Package memory provides the namespace-scoped memory managers the runtime
// hands to capabilities. A Manager binds one namespace ("messages", "facts",
// "fragments", ...) of a core.MemoryStore together with the embedding path:
// before asking the remote embedder for a vector it consults the store's
// embedding cache, and byte-identical texts embedded concurrently are
// collapsed into a single remote call.
package memory
