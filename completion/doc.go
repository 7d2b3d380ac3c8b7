// Package completion turns a raw model completer into the typed completion
// surface agents consume. It provides:
//   - Client: bounded transport retries with exponential backoff, failing
//     with core.CompletionExhaustedError once the bound is hit
//   - Typed wrappers (boolean, string array, object array, structured
//     message) that re-issue the entire remote call on a parse failure and
//     keep retrying until the context is cancelled
//   - Hooks: lifecycle callbacks around every attempt and parse failure, so
//     callers can observe, rate-limit or abort completions without touching
//     client internals
//
// The asymmetry between the two retry regimes is deliberate. Transport
// failures are rare and bounded; a model answering in the wrong shape is
// recoverable noise in a long-running agent process, so the wrappers ask
// again rather than give up.
package completion
