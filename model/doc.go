// Package model defines the provider-agnostic abstractions and concrete
// helpers for interacting with completion and embedding services inside
// Famulus.
//
// Core goals:
//   - Keep request/response shapes minimal and transport independent
//   - Mirror the completion wire contract (model, messages, stop,
//     temperature, max_tokens) without committing to a vendor SDK
//   - Facilitate lightweight mocking for tests (MockCompleter, MockEmbedder)
//
// Providers (e.g. OpenAI, Anthropic) implement the Completer and Embedder
// interfaces from this package so higher layers (completion client, memory
// managers) remain decoupled from vendor SDKs.
package model
