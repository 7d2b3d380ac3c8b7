package testutil

import (
	"time"

	"github.com/famulus-ai/famulus/core"
)

// MemoryBuilder constructs memories with fluent chaining for tests.
// Example:
//
//	m := NewMemoryBuilder("m1").Room("room-1").Text("hello").Age(time.Minute).Build()
type MemoryBuilder struct {
	memory core.Memory
	base   time.Time
}

// NewMemoryBuilder creates a builder for a memory with the given id,
// defaulting to room "room-1", user "user-1", agent "agent-1" and a fixed
// base timestamp.
func NewMemoryBuilder(id string) *MemoryBuilder {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return &MemoryBuilder{
		memory: core.Memory{
			ID:        id,
			RoomID:    "room-1",
			UserID:    "user-1",
			AgentID:   "agent-1",
			CreatedAt: base,
		},
		base: base,
	}
}

// Room sets the room id (chainable).
func (b *MemoryBuilder) Room(roomID string) *MemoryBuilder {
	b.memory.RoomID = roomID
	return b
}

// User sets the user id (chainable).
func (b *MemoryBuilder) User(userID string) *MemoryBuilder {
	b.memory.UserID = userID
	return b
}

// Text sets the content text (chainable).
func (b *MemoryBuilder) Text(text string) *MemoryBuilder {
	b.memory.Content.Text = text
	return b
}

// Action sets the content action (chainable).
func (b *MemoryBuilder) Action(action string) *MemoryBuilder {
	b.memory.Content.Action = action
	return b
}

// Source sets the content source reference (chainable).
func (b *MemoryBuilder) Source(source string) *MemoryBuilder {
	b.memory.Content.Source = source
	return b
}

// Attachment appends an attachment (chainable).
func (b *MemoryBuilder) Attachment(id, title, text string) *MemoryBuilder {
	b.memory.Content.Attachments = append(b.memory.Content.Attachments, core.Media{
		ID: id, Title: title, Text: text,
	})
	return b
}

// Embedding sets the embedding vector (chainable).
func (b *MemoryBuilder) Embedding(v ...float32) *MemoryBuilder {
	b.memory.Embedding = v
	return b
}

// Unique marks the memory for duplicate-text collapse (chainable).
func (b *MemoryBuilder) Unique() *MemoryBuilder {
	b.memory.Unique = true
	return b
}

// Age moves the timestamp the given duration into the past relative to the
// builder's base time (chainable).
func (b *MemoryBuilder) Age(d time.Duration) *MemoryBuilder {
	b.memory.CreatedAt = b.base.Add(-d)
	return b
}

// At sets an absolute timestamp (chainable).
func (b *MemoryBuilder) At(t time.Time) *MemoryBuilder {
	b.memory.CreatedAt = t
	return b
}

// Build returns the constructed memory.
func (b *MemoryBuilder) Build() core.Memory {
	return b.memory
}
