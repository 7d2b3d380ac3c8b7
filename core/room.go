package core

import "time"

// Room is an opaque conversational scope grouping participants and memories.
// Rooms are created lazily on first reference.
type Room struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}

// Account identifies a distinct user or agent. Accounts are created lazily
// the first time an identity is referenced.
type Account struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Username string         `json:"username,omitempty"`
	Email    string         `json:"email,omitempty"`
	Details  map[string]any `json:"details,omitempty"`
}

// Participant user states within a room. The empty string means neither
// followed nor muted.
const (
	UserStateFollowed = "FOLLOWED"
	UserStateMuted    = "MUTED"
)

// Participant is a membership edge between an account and a room. Insertion
// is idempotent: adding an existing participant is a no-op.
type Participant struct {
	UserID   string    `json:"userId"`
	RoomID   string    `json:"roomId"`
	State    string    `json:"state,omitempty"` // UserStateFollowed, UserStateMuted or empty
	JoinedAt time.Time `json:"joinedAt"`
}

// Actor is an account viewed through a room: the identity details the
// composer formats into the actor block of a state snapshot.
type Actor struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Username string         `json:"username,omitempty"`
	Details  map[string]any `json:"details,omitempty"`
}
