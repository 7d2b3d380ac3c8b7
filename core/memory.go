package core

import "time"

// Built-in memory namespaces ("tables"). Every memory belongs to exactly one.
const (
	TableMessages     = "messages"     // conversational turns
	TableDescriptions = "descriptions" // accumulated user descriptions
	TableFacts        = "facts"        // claims extracted by evaluators
	TableLore         = "lore"         // ingested background knowledge
	TableDocuments    = "documents"    // whole ingested documents
	TableFragments    = "fragments"    // chunked document slices
)

// Tables lists the built-in namespaces in a stable order.
func Tables() []string {
	return []string{
		TableMessages,
		TableDescriptions,
		TableFacts,
		TableLore,
		TableDocuments,
		TableFragments,
	}
}

// Media is an attachment carried by message content. Text holds the
// plain-text rendering used when the attachment is folded into a prompt; the
// composer replaces it with a hidden marker once the attachment goes stale.
type Media struct {
	ID          string `json:"id"`
	URL         string `json:"url,omitempty"`
	Title       string `json:"title,omitempty"`
	Source      string `json:"source,omitempty"`
	Description string `json:"description,omitempty"`
	Text        string `json:"text"`
}

// Content is the payload of a memory.
//
// Action names the capability a response asked to execute. Source carries
// provenance: for fragments it references the parent document's memory id and
// documents are never removed while fragments still point at them.
type Content struct {
	Text        string  `json:"text"`
	Action      string  `json:"action,omitempty"`
	Source      string  `json:"source,omitempty"`
	URL         string  `json:"url,omitempty"`
	InReplyTo   string  `json:"inReplyTo,omitempty"`
	Attachments []Media `json:"attachments,omitempty"`
}

// Memory is a single namespaced record of content plus an optional embedding.
// After creation it should be treated as immutable; the id is unique within
// its namespace and room and duplicate creation is rejected, never silently
// overwritten.
type Memory struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"roomId"`
	UserID    string    `json:"userId"`
	AgentID   string    `json:"agentId"`
	Content   Content   `json:"content"`
	Embedding []float32 `json:"embedding,omitempty"`
	Unique    bool      `json:"unique,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewMemory creates a memory with a generated id and current UTC timestamp.
func NewMemory(roomID, userID, agentID string, content Content) Memory {
	return Memory{
		ID:        NewID(),
		RoomID:    roomID,
		UserID:    userID,
		AgentID:   agentID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}

// Clone returns a deep copy safe for independent mutation.
func (m Memory) Clone() Memory {
	cp := m
	if m.Embedding != nil {
		cp.Embedding = append([]float32(nil), m.Embedding...)
	}
	if m.Content.Attachments != nil {
		cp.Content.Attachments = append([]Media(nil), m.Content.Attachments...)
	}
	return cp
}
