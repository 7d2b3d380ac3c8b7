package core

import (
	"context"
	"time"
)

// MemoryQuery selects recent memories from one namespace.
type MemoryQuery struct {
	RoomID string
	Count  int       // 0 means no limit
	Unique bool      // collapse exact-duplicate text to one instance
	Before time.Time // zero means no upper bound
}

// SearchQuery parameterizes a similarity search within one namespace.
type SearchQuery struct {
	RoomID    string
	Count     int
	Threshold float32 // minimum cosine similarity; 0 means no floor
	Unique    bool
}

// GoalQuery selects goals for a room, optionally narrowed to a user or to
// in-progress goals only.
type GoalQuery struct {
	RoomID         string
	UserID         string
	OnlyInProgress bool
	Count          int // 0 means no limit
}

// MemoryStore defines namespaced persistence and retrieval for memories.
// Implementations must resolve concurrent creates for the same id within a
// room deterministically: at most one logical record survives and a failed
// create never leaves a partial record.
type MemoryStore interface {
	// CreateMemory persists a memory into the given table. It returns a
	// DuplicateIDError when the id already exists in the table and room.
	// When m.Unique is set, a record with byte-identical text in the same
	// table and room makes the create a silent no-op.
	CreateMemory(ctx context.Context, table string, m Memory) error

	// GetMemoryByID returns the memory with the given id, or nil when absent.
	GetMemoryByID(ctx context.Context, table string, id string) (*Memory, error)

	// GetMemories returns up to q.Count memories for q.RoomID, newest first.
	GetMemories(ctx context.Context, table string, q MemoryQuery) ([]Memory, error)

	// GetMemoriesByRoomIDs merges memories across the given rooms. No
	// per-room ordering is guaranteed; callers re-sort.
	GetMemoriesByRoomIDs(ctx context.Context, table string, roomIDs []string) ([]Memory, error)

	// SearchMemories ranks stored memories by descending cosine similarity
	// to the query embedding, breaking ties by recency.
	SearchMemories(ctx context.Context, table string, embedding []float32, q SearchQuery) ([]Memory, error)

	// GetCachedEmbedding returns the embedding of a stored message whose text
	// matches the input exactly, or nil when no such record exists. The
	// messages namespace is the canonical cache source.
	GetCachedEmbedding(ctx context.Context, text string) ([]float32, error)

	// RemoveMemory deletes one memory by id.
	RemoveMemory(ctx context.Context, table string, id string) error

	// RemoveAllMemories deletes every memory in the table for a room.
	RemoveAllMemories(ctx context.Context, table string, roomID string) error

	// CountMemories reports the number of memories a room holds in the
	// table, optionally collapsing exact-duplicate text.
	CountMemories(ctx context.Context, table string, roomID string, unique bool) (int, error)
}

// RelationStore defines the relationship graph: accounts, rooms and the
// participant edges between them.
type RelationStore interface {
	// GetAccountByID returns an account, or nil when absent.
	GetAccountByID(ctx context.Context, id string) (*Account, error)

	// CreateAccount persists a new account. Creating an existing id is a
	// no-op so identities can be ensured lazily.
	CreateAccount(ctx context.Context, account Account) error

	// GetRoom returns a room, or nil when absent.
	GetRoom(ctx context.Context, id string) (*Room, error)

	// CreateRoom persists a room, generating an id when none is supplied,
	// and returns the effective id. Creating an existing room is a no-op.
	CreateRoom(ctx context.Context, id string) (string, error)

	// RemoveRoom deletes a room and its participant edges.
	RemoveRoom(ctx context.Context, id string) error

	// AddParticipant inserts a membership edge; idempotent.
	AddParticipant(ctx context.Context, userID, roomID string) error

	// RemoveParticipant deletes a membership edge.
	RemoveParticipant(ctx context.Context, userID, roomID string) error

	// GetParticipantsForAccount lists every room membership of an account.
	GetParticipantsForAccount(ctx context.Context, userID string) ([]Participant, error)

	// GetParticipantsForRoom lists the user ids present in a room.
	GetParticipantsForRoom(ctx context.Context, roomID string) ([]string, error)

	// GetParticipantUserState returns the follow/mute state for a user in a
	// room; empty when unset.
	GetParticipantUserState(ctx context.Context, roomID, userID string) (string, error)

	// SetParticipantUserState updates the follow/mute state for a user in a
	// room. An empty state clears it.
	SetParticipantUserState(ctx context.Context, roomID, userID, state string) error

	// GetRoomsForParticipant lists the rooms an account belongs to.
	GetRoomsForParticipant(ctx context.Context, userID string) ([]string, error)

	// GetRoomsForParticipants lists the union of rooms any of the given
	// accounts belong to.
	GetRoomsForParticipants(ctx context.Context, userIDs []string) ([]string, error)
}

// GoalStore defines goal persistence.
type GoalStore interface {
	GetGoals(ctx context.Context, q GoalQuery) ([]Goal, error)
	CreateGoal(ctx context.Context, goal Goal) error
	UpdateGoal(ctx context.Context, goal Goal) error
	UpdateGoalStatus(ctx context.Context, id string, status GoalStatus) error
	RemoveGoal(ctx context.Context, id string) error
	RemoveAllGoals(ctx context.Context, roomID string) error
}

// Store is the full storage contract the runtime consumes. The core depends
// only on this contract, never on a specific persistence technology.
type Store interface {
	MemoryStore
	RelationStore
	GoalStore
}
