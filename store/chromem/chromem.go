// Package chromem backs similarity search with chromem-go, an embedded pure
// Go vector database. The Store mirrors embedded memories into per-namespace
// chromem collections and serves SearchMemories from the index; every other
// operation delegates to a canonical core.Store, which remains the source of
// truth for listings, counts and the relationship graph.
package chromem

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/famulus-ai/famulus/core"
	"github.com/famulus-ai/famulus/logging"
	"github.com/famulus-ai/famulus/store"
)

// Options holds dependency + configuration overrides passed to New().
type Options struct {
	// Path enables on-disk persistence of the vector index. Empty keeps
	// the index in memory.
	Path string
	// Canonical is the authoritative store behind the index. Defaults to
	// an in-memory store.
	Canonical core.Store
	// Logger receives structured diagnostics.
	Logger logging.Logger
}

// Store augments a canonical store with a chromem-go vector index.
type Store struct {
	core.Store // canonical store; non-search operations promote to it

	db          *chromem.DB
	collections map[string]*chromem.Collection // table -> collection
	logger      logging.Logger
	mu          sync.RWMutex
}

var _ core.Store = (*Store)(nil)

// New constructs a Store with optional overrides.
func New(optFns ...func(o *Options)) (*Store, error) {
	opts := Options{
		Canonical: store.NewInMemory(),
		Logger:    logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	db := chromem.NewDB()
	if opts.Path != "" {
		var err error
		db, err = chromem.NewPersistentDB(opts.Path, false)
		if err != nil {
			return nil, fmt.Errorf("chromem store: open %s: %w", opts.Path, err)
		}
	}

	return &Store{
		Store:       opts.Canonical,
		db:          db,
		collections: make(map[string]*chromem.Collection),
		logger:      opts.Logger,
	}, nil
}

// CreateMemory persists through the canonical store and mirrors the record
// into the vector index when it carries an embedding. Records the canonical
// store collapsed (duplicate text under the unique flag) are not indexed.
func (s *Store) CreateMemory(ctx context.Context, table string, m core.Memory) error {
	if err := s.Store.CreateMemory(ctx, table, m); err != nil {
		return err
	}
	if len(m.Embedding) == 0 {
		return nil
	}

	stored, err := s.Store.GetMemoryByID(ctx, table, m.ID)
	if err != nil {
		return err
	}
	if stored == nil {
		return nil // collapsed as a duplicate-text no-op
	}

	col, err := s.collection(table)
	if err != nil {
		return err
	}

	doc, err := toDocument(*stored)
	if err != nil {
		return err
	}
	if err := col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("chromem store: index %s/%s: %w", table, m.ID, err)
	}
	return nil
}

// SearchMemories serves similarity search from the vector index. Results are
// ordered by descending similarity with recency breaking ties, matching the
// canonical store's contract.
func (s *Store) SearchMemories(ctx context.Context, table string, embedding []float32, q core.SearchQuery) ([]core.Memory, error) {
	col, err := s.collection(table)
	if err != nil {
		return nil, err
	}

	where := map[string]string{}
	if q.RoomID != "" {
		where["roomId"] = q.RoomID
	}
	if q.Unique {
		where["unique"] = "true"
	}

	want := q.Count
	if total := col.Count(); want <= 0 || want > total {
		want = total
	}
	if want == 0 {
		return nil, nil
	}

	// chromem requires nResults <= matching documents; the matching count
	// under a where filter is unknown up front, so shrink until it fits.
	var results []chromem.Result
	for limit := want; limit >= 1; limit-- {
		results, err = col.QueryEmbedding(ctx, embedding, limit, where, nil)
		if err == nil {
			break
		}
		if isInsufficientDocsError(err) {
			if limit == 1 {
				return nil, nil // nothing matches the filter
			}
			continue
		}
		return nil, fmt.Errorf("chromem store: query %s: %w", table, err)
	}

	type scored struct {
		memory core.Memory
		sim    float32
	}
	hits := make([]scored, 0, len(results))
	for _, r := range results {
		if q.Threshold > 0 && r.Similarity < q.Threshold {
			continue
		}
		m, err := fromDocumentContent(r.Content)
		if err != nil {
			s.logger.Warn("Skipping unreadable index entry", "table", table, "id", r.ID, "error", err)
			continue
		}
		hits = append(hits, scored{memory: m, sim: r.Similarity})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].sim != hits[j].sim {
			return hits[i].sim > hits[j].sim
		}
		return hits[i].memory.CreatedAt.After(hits[j].memory.CreatedAt)
	})

	out := make([]core.Memory, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.memory)
	}
	if q.Count > 0 && len(out) > q.Count {
		out = out[:q.Count]
	}
	return out, nil
}

// RemoveMemory deletes from both the canonical store and the index.
func (s *Store) RemoveMemory(ctx context.Context, table string, id string) error {
	if err := s.Store.RemoveMemory(ctx, table, id); err != nil {
		return err
	}
	col, err := s.collection(table)
	if err != nil {
		return err
	}
	if err := col.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("chromem store: unindex %s/%s: %w", table, id, err)
	}
	return nil
}

// RemoveAllMemories deletes a room's records from both the canonical store
// and the index.
func (s *Store) RemoveAllMemories(ctx context.Context, table string, roomID string) error {
	if err := s.Store.RemoveAllMemories(ctx, table, roomID); err != nil {
		return err
	}
	col, err := s.collection(table)
	if err != nil {
		return err
	}
	if col.Count() == 0 {
		return nil
	}
	if err := col.Delete(ctx, map[string]string{"roomId": roomID}, nil); err != nil {
		return fmt.Errorf("chromem store: unindex room %s: %w", roomID, err)
	}
	return nil
}

// collection returns the chromem collection for a table, creating it on
// first use.
func (s *Store) collection(table string) (*chromem.Collection, error) {
	s.mu.RLock()
	col, exists := s.collections[table]
	s.mu.RUnlock()
	if exists {
		return col, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if col, exists := s.collections[table]; exists {
		return col, nil
	}

	// nil embedding func: callers always supply vectors.
	col, err := s.db.GetOrCreateCollection("memories_"+table, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem store: collection %s: %w", table, err)
	}
	s.collections[table] = col
	return col, nil
}

func toDocument(m core.Memory) (chromem.Document, error) {
	payload, err := json.Marshal(m)
	if err != nil {
		return chromem.Document{}, fmt.Errorf("chromem store: marshal memory %s: %w", m.ID, err)
	}
	return chromem.Document{
		ID:        m.ID,
		Content:   string(payload),
		Embedding: m.Embedding,
		Metadata: map[string]string{
			"roomId": m.RoomID,
			"unique": fmt.Sprintf("%t", m.Unique),
		},
	}, nil
}

func fromDocumentContent(content string) (core.Memory, error) {
	var m core.Memory
	if err := json.Unmarshal([]byte(content), &m); err != nil {
		return core.Memory{}, fmt.Errorf("chromem store: unmarshal memory: %w", err)
	}
	return m, nil
}

func isInsufficientDocsError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "nResults must be")
}
