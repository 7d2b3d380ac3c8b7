// Package agent implements the runtime façade for one agent: the long-lived
// object owning the character, the namespace memory managers, the completion
// client, the capability registry and the state composer.
//
// A Runtime processes inbound messages end to end: it lazily ensures the
// identities, room and participant edges exist, persists the message
// (duplicate deliveries are a no-op), composes the bounded prompt context,
// requests a structured completion, persists and delivers the response, runs
// the chosen action and any triggered evaluators. It also offers document
// ingestion into the knowledge namespaces and similarity search over them.
//
// Platform connectors own their wire protocol and talk to the runtime
// exclusively through EnsureConnection, ProcessMessage and the capability
// registration methods.
package agent
