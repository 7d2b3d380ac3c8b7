// Package state builds the ephemeral context snapshot a completion prompt is
// rendered from. The Composer fans out the independent reads of one request
// concurrently (actors, recent messages, recent facts, goals, capability
// validation, provider context), joins them all-or-nothing and folds the
// results plus sampled persona fields into one immutable core.State.
//
// Composition trades freshness against prompt size: stale attachments are
// redacted down to a hidden marker, facts surfaced by similarity are
// deduplicated against facts already shown for recency, and persona fields
// are sampled with bounded counts from an injectable random source so
// repeated prompts stay varied without growing.
package state
