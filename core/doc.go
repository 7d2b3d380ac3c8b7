// Package core provides the foundational domain types, interfaces and
// contracts used by Famulus. It defines the core abstractions for:
//
//   - Memories (timestamped, namespaced records with optional embeddings)
//   - Rooms, accounts and participants (the relationship graph)
//   - Goals (objective tracking mutated by evaluators)
//   - State snapshots (the ephemeral merged context built per request)
//   - Capabilities (the closed set of actions, evaluators and providers)
//   - Pluggable stores for memories, relationships and goals
//
// The package intentionally keeps implementation concerns (persistence,
// completion transports, state composition, dispatch) out of scope, exposing
// small interfaces to enable custom backends and extensions.
package core
