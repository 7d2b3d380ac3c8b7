package agent

import (
	"context"
	"fmt"

	"github.com/famulus-ai/famulus/core"
	"github.com/famulus-ai/famulus/token"
)

// Fragment chunking parameters. A fragment is one retrieval unit; the bleed
// carries a little of each neighbour so sentences cut at a boundary still
// retrieve.
const (
	fragmentTokens = 512
	fragmentBleed  = 20
)

// IngestDocument stores a document and its embedded fragments for later
// similarity search. The document id is derived from the room and content,
// so re-ingesting the same document is a no-op. Returns the document id.
func (r *Runtime) IngestDocument(ctx context.Context, roomID, title, text string) (string, error) {
	if text == "" {
		return "", fmt.Errorf("ingest document: empty text")
	}

	docID := core.DeterministicID("document", roomID, title, text)
	doc := core.Memory{
		ID:      docID,
		RoomID:  roomID,
		UserID:  r.agentID,
		AgentID: r.agentID,
		Content: core.Content{
			Text:   text,
			Source: title,
		},
	}
	if err := r.Documents().CreateMemory(ctx, doc); err != nil && !core.IsDuplicateID(err) {
		return "", fmt.Errorf("store document: %w", err)
	}

	chunks, err := token.Chunks(r.codec, text, fragmentTokens, fragmentBleed)
	if err != nil {
		return "", fmt.Errorf("chunk document: %w", err)
	}

	i := 0
	for chunk := range chunks {
		fragment := core.Memory{
			ID:      core.DeterministicID(docID, "fragment", fmt.Sprint(i)),
			RoomID:  roomID,
			UserID:  r.agentID,
			AgentID: r.agentID,
			Content: core.Content{
				Text:   chunk.Text,
				Source: docID, // provenance back to the whole document
			},
		}
		if err := r.Fragments().AddEmbedding(ctx, &fragment); err != nil {
			return "", fmt.Errorf("embed fragment %d: %w", i, err)
		}
		if err := r.Fragments().CreateMemory(ctx, fragment); err != nil && !core.IsDuplicateID(err) {
			return "", fmt.Errorf("store fragment %d: %w", i, err)
		}
		i++
	}

	r.logger.Info("Ingested document", "document_id", docID, "title", title, "fragments", i)
	return docID, nil
}

// SearchKnowledge embeds the query and returns the closest document
// fragments in the room, best first.
func (r *Runtime) SearchKnowledge(ctx context.Context, roomID, query string, count int) ([]core.Memory, error) {
	fragments := r.managers[core.TableFragments]
	embedding, err := fragments.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return fragments.SearchByEmbedding(ctx, embedding, core.SearchQuery{
		RoomID: roomID,
		Count:  count,
	})
}
