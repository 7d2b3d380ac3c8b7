package core

import (
	"strings"

	"github.com/google/uuid"
)

// NewID generates a new unique identifier.
//
// This function creates a UUID-based unique identifier that can be used
// for memories, rooms, accounts and goals throughout the runtime.
//
// Returns a string representation of a new UUID.
func NewID() string { return uuid.NewString() }

// DeterministicID derives a stable identifier from the given parts. Identical
// parts always yield the same id, so a connector that replays a platform
// message produces the same memory id and the store rejects the duplicate
// instead of recording the message twice.
func DeterministicID(parts ...string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(strings.Join(parts, "\x00"))).String()
}
