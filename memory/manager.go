package memory

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/famulus-ai/famulus/core"
	"github.com/famulus-ai/famulus/logging"
	"github.com/famulus-ai/famulus/model"
)

// Options holds dependency + configuration overrides passed to NewManager().
type Options struct {
	// Logger receives structured diagnostics.
	Logger logging.Logger
}

// Manager exposes one memory namespace of a core.MemoryStore and owns the
// embed-with-cache path for it. Public methods are safe for concurrent use.
type Manager struct {
	store    core.MemoryStore
	embedder model.Embedder
	table    string
	logger   logging.Logger

	// group collapses concurrent embedding requests for the same text, so
	// no two distinct vectors are ever produced for byte-identical input.
	group singleflight.Group
}

var _ core.MemoryManager = (*Manager)(nil)

// NewManager constructs a Manager for the given namespace with optional
// overrides. The embedder may be nil, in which case AddEmbedding only serves
// cache hits.
func NewManager(store core.MemoryStore, embedder model.Embedder, table string, optFns ...func(o *Options)) *Manager {
	opts := Options{
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Manager{
		store:    store,
		embedder: embedder,
		table:    table,
		logger:   opts.Logger,
	}
}

// Table returns the namespace this manager operates on.
func (m *Manager) Table() string { return m.table }

// CreateMemory persists a memory into the namespace, filling in a generated
// id and the current UTC timestamp when absent. An id collision surfaces as a
// core.DuplicateIDError; a Unique memory whose text already exists in the
// room is silently skipped by the store.
func (m *Manager) CreateMemory(ctx context.Context, memory core.Memory) error {
	if memory.ID == "" {
		memory.ID = core.NewID()
	}
	if memory.CreatedAt.IsZero() {
		memory.CreatedAt = time.Now().UTC()
	}
	return m.store.CreateMemory(ctx, m.table, memory)
}

// GetMemoryByID implements core.MemoryManager.
func (m *Manager) GetMemoryByID(ctx context.Context, id string) (*core.Memory, error) {
	return m.store.GetMemoryByID(ctx, m.table, id)
}

// GetMemories implements core.MemoryManager.
func (m *Manager) GetMemories(ctx context.Context, q core.MemoryQuery) ([]core.Memory, error) {
	return m.store.GetMemories(ctx, m.table, q)
}

// GetMemoriesByRoomIDs implements core.MemoryManager.
func (m *Manager) GetMemoriesByRoomIDs(ctx context.Context, roomIDs []string) ([]core.Memory, error) {
	return m.store.GetMemoriesByRoomIDs(ctx, m.table, roomIDs)
}

// SearchByEmbedding implements core.MemoryManager.
func (m *Manager) SearchByEmbedding(ctx context.Context, embedding []float32, q core.SearchQuery) ([]core.Memory, error) {
	return m.store.SearchMemories(ctx, m.table, embedding, q)
}

// AddEmbedding fills in the memory's embedding. A memory that already
// carries a vector, or has no text, is left untouched. Otherwise the stored
// embedding cache is consulted first and the remote embedder is only called
// on a miss. Without an embedder the memory stays unembedded; similarity
// search just won't surface it.
func (m *Manager) AddEmbedding(ctx context.Context, memory *core.Memory) error {
	if memory == nil || memory.Embedding != nil || memory.Content.Text == "" {
		return nil
	}

	cached, err := m.store.GetCachedEmbedding(ctx, memory.Content.Text)
	if err != nil {
		return fmt.Errorf("embedding cache lookup: %w", err)
	}
	if cached != nil {
		memory.Embedding = cached
		return nil
	}
	if m.embedder == nil {
		return nil
	}

	vector, err := m.Embed(ctx, memory.Content.Text)
	if err != nil {
		return err
	}
	memory.Embedding = vector
	return nil
}

// Embed resolves an embedding for the text, preferring a cached vector from
// a stored record with byte-identical text. Concurrent calls for the same
// text share one remote request.
func (m *Manager) Embed(ctx context.Context, text string) ([]float32, error) {
	cached, err := m.store.GetCachedEmbedding(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding cache lookup: %w", err)
	}
	if cached != nil {
		m.logger.Debug("Embedding cache hit", "table", m.table, "text_len", len(text))
		return cached, nil
	}

	if m.embedder == nil {
		return nil, fmt.Errorf("memory manager %s: no embedder configured", m.table)
	}

	v, err, _ := m.group.Do(text, func() (any, error) {
		return m.embedder.Embed(ctx, text)
	})
	if err != nil {
		return nil, fmt.Errorf("embed text: %w", err)
	}
	return v.([]float32), nil
}

// RemoveMemory implements core.MemoryManager. In the documents namespace the
// removal is rejected while fragments still reference the document, so a
// fragment surfaced by similarity search can always resolve its parent.
// Remove the fragments first.
func (m *Manager) RemoveMemory(ctx context.Context, id string) error {
	if m.table == core.TableDocuments {
		refs, err := m.fragmentRefs(ctx, id)
		if err != nil {
			return err
		}
		if refs > 0 {
			return fmt.Errorf("remove document %s: %d fragments still reference it", id, refs)
		}
	}
	return m.store.RemoveMemory(ctx, m.table, id)
}

// RemoveAllMemories implements core.MemoryManager. The documents namespace
// carries the same referential guard as RemoveMemory: the room's fragments
// must be removed before its documents.
func (m *Manager) RemoveAllMemories(ctx context.Context, roomID string) error {
	if m.table == core.TableDocuments {
		fragments, err := m.store.GetMemories(ctx, core.TableFragments, core.MemoryQuery{RoomID: roomID})
		if err != nil {
			return err
		}
		if len(fragments) > 0 {
			return fmt.Errorf("remove documents in room %s: %d fragments still reference them", roomID, len(fragments))
		}
	}
	return m.store.RemoveAllMemories(ctx, m.table, roomID)
}

// fragmentRefs counts fragments whose source points at the document. The
// fragments live in the document's room, so the scan is room-scoped.
func (m *Manager) fragmentRefs(ctx context.Context, id string) (int, error) {
	doc, err := m.store.GetMemoryByID(ctx, m.table, id)
	if err != nil {
		return 0, err
	}
	if doc == nil {
		return 0, nil
	}

	fragments, err := m.store.GetMemories(ctx, core.TableFragments, core.MemoryQuery{RoomID: doc.RoomID})
	if err != nil {
		return 0, err
	}
	refs := 0
	for _, f := range fragments {
		if f.Content.Source == id {
			refs++
		}
	}
	return refs, nil
}

// CountMemories implements core.MemoryManager.
func (m *Manager) CountMemories(ctx context.Context, roomID string, unique bool) (int, error) {
	return m.store.CountMemories(ctx, m.table, roomID, unique)
}
