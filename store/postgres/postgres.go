// Package postgres implements the full storage contract on PostgreSQL with
// the pgvector extension. Memories live in a single table partitioned by
// namespace column, embeddings are ranked with the cosine distance operator,
// and the schema is bootstrapped on construction so a fresh database works
// out of the box.
//
// The embedding column is declared without a fixed dimension and queried
// with a sequential scan. Deployments with large memory counts should add an
// ANN index matched to their embedding dimension.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/famulus-ai/famulus/core"
	"github.com/famulus-ai/famulus/logging"
)

// Options holds dependency + configuration overrides passed to New().
type Options struct {
	// Pool reuses an existing connection pool instead of dialing.
	Pool *pgxpool.Pool
	// Logger receives structured diagnostics.
	Logger logging.Logger
}

// Store is a PostgreSQL-backed core.Store. Public methods are safe for
// concurrent use; the underlying pool handles connection management.
type Store struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

var _ core.Store = (*Store)(nil)

const schema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS memories (
	id         TEXT        NOT NULL,
	table_name TEXT        NOT NULL,
	room_id    TEXT        NOT NULL,
	user_id    TEXT        NOT NULL DEFAULT '',
	agent_id   TEXT        NOT NULL DEFAULT '',
	content    JSONB       NOT NULL,
	embedding  vector,
	is_unique  BOOLEAN     NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (table_name, id)
);
CREATE INDEX IF NOT EXISTS memories_room_idx
	ON memories (table_name, room_id, created_at DESC);
CREATE INDEX IF NOT EXISTS memories_text_idx
	ON memories (table_name, (content->>'text'));

CREATE TABLE IF NOT EXISTS accounts (
	id       TEXT PRIMARY KEY,
	name     TEXT  NOT NULL DEFAULT '',
	username TEXT  NOT NULL DEFAULT '',
	email    TEXT  NOT NULL DEFAULT '',
	details  JSONB NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS rooms (
	id         TEXT        PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS participants (
	user_id   TEXT        NOT NULL,
	room_id   TEXT        NOT NULL,
	state     TEXT        NOT NULL DEFAULT '',
	joined_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (room_id, user_id)
);

CREATE TABLE IF NOT EXISTS goals (
	id         TEXT        PRIMARY KEY,
	room_id    TEXT        NOT NULL,
	user_id    TEXT        NOT NULL DEFAULT '',
	name       TEXT        NOT NULL,
	status     TEXT        NOT NULL,
	objectives JSONB       NOT NULL DEFAULT '[]',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// New connects to connString, bootstraps the schema and returns the store.
// Pass Options.Pool to reuse an existing pool; connString is ignored then.
func New(ctx context.Context, connString string, optFns ...func(o *Options)) (*Store, error) {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	pool := opts.Pool
	if pool == nil {
		var err error
		pool, err = pgxpool.New(ctx, connString)
		if err != nil {
			return nil, fmt.Errorf("postgres store: connect: %w", err)
		}
	}

	s := &Store{pool: pool, logger: opts.Logger}
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("postgres store: bootstrap schema: %w", err)
	}
	return s, nil
}

// Close releases the connection pool.
func (s *Store) Close() { s.pool.Close() }

// -------------------- MemoryStore --------------------

// CreateMemory implements core.MemoryStore.
func (s *Store) CreateMemory(ctx context.Context, table string, m core.Memory) error {
	if table == "" {
		return fmt.Errorf("postgres store: table is required")
	}
	if m.ID == "" {
		return fmt.Errorf("postgres store: memory id is required")
	}

	content, err := json.Marshal(m.Content)
	if err != nil {
		return fmt.Errorf("postgres store: marshal content: %w", err)
	}
	createdAt := m.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `
		INSERT INTO memories (id, table_name, room_id, user_id, agent_id, content, embedding, is_unique, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::vector, $8, $9)`
	if m.Unique {
		// Atomic duplicate-text collapse: nothing is inserted when the
		// room already holds a record with byte-identical text.
		query = `
		INSERT INTO memories (id, table_name, room_id, user_id, agent_id, content, embedding, is_unique, created_at)
		SELECT $1, $2, $3, $4, $5, $6, $7::vector, $8, $9
		WHERE NOT EXISTS (
			SELECT 1 FROM memories
			WHERE table_name = $2 AND room_id = $3 AND content->>'text' = $10
		)`
	}

	args := []any{m.ID, table, m.RoomID, m.UserID, m.AgentID, content, vectorOrNil(m.Embedding), m.Unique, createdAt}
	if m.Unique {
		args = append(args, m.Content.Text)
	}

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return core.NewDuplicateIDError(table, m.ID)
		}
		return fmt.Errorf("postgres store: create memory: %w", err)
	}
	return nil
}

// GetMemoryByID implements core.MemoryStore.
func (s *Store) GetMemoryByID(ctx context.Context, table string, id string) (*core.Memory, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, room_id, user_id, agent_id, content, embedding::text, is_unique, created_at
		FROM memories WHERE table_name = $1 AND id = $2`, table, id)

	m, err := scanMemory(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres store: get memory: %w", err)
	}
	return &m, nil
}

// GetMemories implements core.MemoryStore.
func (s *Store) GetMemories(ctx context.Context, table string, q core.MemoryQuery) ([]core.Memory, error) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT id, room_id, user_id, agent_id, content, embedding::text, is_unique, created_at
		FROM memories WHERE table_name = $1`)
	args := []any{table}

	if q.RoomID != "" {
		args = append(args, q.RoomID)
		fmt.Fprintf(&sb, " AND room_id = $%d", len(args))
	}
	if !q.Before.IsZero() {
		args = append(args, q.Before)
		fmt.Fprintf(&sb, " AND created_at < $%d", len(args))
	}
	if q.Unique {
		// One row per distinct text, keeping the newest instance.
		sb.WriteString(" AND id IN (SELECT DISTINCT ON (content->>'text') id FROM memories WHERE table_name = $1")
		if q.RoomID != "" {
			sb.WriteString(" AND room_id = $2")
		}
		sb.WriteString(" ORDER BY content->>'text', created_at DESC)")
	}
	sb.WriteString(" ORDER BY created_at DESC")
	if q.Count > 0 {
		args = append(args, q.Count)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}

	return s.queryMemories(ctx, sb.String(), args...)
}

// GetMemoriesByRoomIDs implements core.MemoryStore.
func (s *Store) GetMemoriesByRoomIDs(ctx context.Context, table string, roomIDs []string) ([]core.Memory, error) {
	return s.queryMemories(ctx, `
		SELECT id, room_id, user_id, agent_id, content, embedding::text, is_unique, created_at
		FROM memories WHERE table_name = $1 AND room_id = ANY($2)
		ORDER BY created_at DESC`, table, roomIDs)
}

// SearchMemories implements core.MemoryStore using pgvector's cosine
// distance operator. Ties fall back to recency.
func (s *Store) SearchMemories(ctx context.Context, table string, embedding []float32, q core.SearchQuery) ([]core.Memory, error) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT id, room_id, user_id, agent_id, content, embedding::text, is_unique, created_at
		FROM memories WHERE table_name = $1 AND embedding IS NOT NULL`)
	args := []any{table, formatVector(embedding)}

	if q.RoomID != "" {
		args = append(args, q.RoomID)
		fmt.Fprintf(&sb, " AND room_id = $%d", len(args))
	}
	if q.Unique {
		sb.WriteString(" AND is_unique")
	}
	if q.Threshold > 0 {
		args = append(args, float64(q.Threshold))
		fmt.Fprintf(&sb, " AND 1 - (embedding <=> $2::vector) >= $%d", len(args))
	}
	sb.WriteString(" ORDER BY embedding <=> $2::vector ASC, created_at DESC")
	if q.Count > 0 {
		args = append(args, q.Count)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}

	return s.queryMemories(ctx, sb.String(), args...)
}

// GetCachedEmbedding implements core.MemoryStore. The newest message with
// byte-identical text supplies the vector.
func (s *Store) GetCachedEmbedding(ctx context.Context, text string) ([]float32, error) {
	var raw string
	err := s.pool.QueryRow(ctx, `
		SELECT embedding::text FROM memories
		WHERE table_name = $1 AND content->>'text' = $2 AND embedding IS NOT NULL
		ORDER BY created_at DESC LIMIT 1`, core.TableMessages, text).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres store: cached embedding: %w", err)
	}
	return parseVector(raw)
}

// RemoveMemory implements core.MemoryStore.
func (s *Store) RemoveMemory(ctx context.Context, table string, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM memories WHERE table_name = $1 AND id = $2`, table, id)
	if err != nil {
		return fmt.Errorf("postgres store: remove memory: %w", err)
	}
	return nil
}

// RemoveAllMemories implements core.MemoryStore.
func (s *Store) RemoveAllMemories(ctx context.Context, table string, roomID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM memories WHERE table_name = $1 AND room_id = $2`, table, roomID)
	if err != nil {
		return fmt.Errorf("postgres store: remove all memories: %w", err)
	}
	return nil
}

// CountMemories implements core.MemoryStore.
func (s *Store) CountMemories(ctx context.Context, table string, roomID string, unique bool) (int, error) {
	query := `SELECT COUNT(*) FROM memories WHERE table_name = $1 AND room_id = $2`
	if unique {
		query = `SELECT COUNT(DISTINCT content->>'text') FROM memories WHERE table_name = $1 AND room_id = $2`
	}
	var n int
	if err := s.pool.QueryRow(ctx, query, table, roomID).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres store: count memories: %w", err)
	}
	return n, nil
}

func (s *Store) queryMemories(ctx context.Context, query string, args ...any) ([]core.Memory, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres store: query memories: %w", err)
	}
	defer rows.Close()

	var out []core.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres store: scan memory: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres store: query memories: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMemory(row rowScanner) (core.Memory, error) {
	var (
		m          core.Memory
		contentRaw []byte
		vectorRaw  *string
	)
	if err := row.Scan(&m.ID, &m.RoomID, &m.UserID, &m.AgentID, &contentRaw, &vectorRaw, &m.Unique, &m.CreatedAt); err != nil {
		return core.Memory{}, err
	}
	if err := json.Unmarshal(contentRaw, &m.Content); err != nil {
		return core.Memory{}, fmt.Errorf("unmarshal content: %w", err)
	}
	if vectorRaw != nil {
		vec, err := parseVector(*vectorRaw)
		if err != nil {
			return core.Memory{}, err
		}
		m.Embedding = vec
	}
	return m, nil
}

// vectorOrNil renders an embedding as pgvector text, or nil for a NULL
// column value.
func vectorOrNil(embedding []float32) any {
	if len(embedding) == 0 {
		return nil
	}
	return formatVector(embedding)
}

func formatVector(embedding []float32) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, v := range embedding {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 32))
	}
	sb.WriteByte(']')
	return sb.String()
}

func parseVector(raw string) ([]float32, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "[")
	raw = strings.TrimSuffix(raw, "]")
	if raw == "" {
		return nil, nil
	}

	parts := strings.Split(raw, ",")
	out := make([]float32, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("parse vector component %d: %w", i, err)
		}
		out[i] = float32(f)
	}
	return out, nil
}
