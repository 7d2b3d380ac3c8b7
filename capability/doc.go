// Package capability implements the registry and dispatcher for the three
// capability kinds the runtime knows: actions the model can choose in a
// response, evaluators that run after a response to extract or update derived
// data, and providers that contribute contextual text to every state
// snapshot.
//
// Action resolution is fuzzy: the model-chosen name and every registered name
// (and alias) are normalized and matched by bidirectional substring
// containment, so "follow_room" resolves the action registered as
// "FOLLOW_ROOM". A response naming no resolvable action is logged and
// ignored, never an error.
//
// The package also ships the builtin capability set: the NONE, IGNORE,
// CONTINUE and room follow/mute actions, the FACT and GOAL evaluators and the
// TIME provider. Register them with RegisterBuiltins.
package capability
