package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/famulus-ai/famulus/core"
)

// memoryRecord wraps a stored memory with an insertion sequence so ordering
// stays stable when timestamps collide.
type memoryRecord struct {
	core.Memory
	seq int64
}

// InMemory is a process-local implementation of the full core.Store
// contract. It offers:
//  1. Namespaced memories with recency listing and cosine similarity search
//  2. The relationship graph: accounts, rooms, participant edges
//  3. Goal tracking
//
// Concurrency: protected by an RWMutex, so concurrent creates for the same
// id resolve deterministically (the first one wins, later ones get a
// DuplicateIDError). All reads return copies; stored records are never
// aliased by callers.
type InMemory struct {
	mu           sync.RWMutex
	memories     map[string]map[string]memoryRecord     // table -> memory id -> record
	accounts     map[string]core.Account                // account id -> account
	rooms        map[string]core.Room                   // room id -> room
	participants map[string]map[string]core.Participant // room id -> user id -> edge
	goals        map[string]core.Goal                   // goal id -> goal
	nextSeq      int64
}

var _ core.Store = (*InMemory)(nil)

// NewInMemory creates an empty store.
func NewInMemory() *InMemory {
	return &InMemory{
		memories:     make(map[string]map[string]memoryRecord),
		accounts:     make(map[string]core.Account),
		rooms:        make(map[string]core.Room),
		participants: make(map[string]map[string]core.Participant),
		goals:        make(map[string]core.Goal),
	}
}

// -------------------- MemoryStore --------------------

// CreateMemory implements core.MemoryStore.
func (s *InMemory) CreateMemory(_ context.Context, table string, m core.Memory) error {
	if table == "" {
		return fmt.Errorf("store: table is required")
	}
	if m.ID == "" {
		return fmt.Errorf("store: memory id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, ok := s.memories[table]
	if !ok {
		records = make(map[string]memoryRecord)
		s.memories[table] = records
	}

	if _, exists := records[m.ID]; exists {
		return core.NewDuplicateIDError(table, m.ID)
	}

	if m.Unique {
		for _, r := range records {
			if r.RoomID == m.RoomID && r.Content.Text == m.Content.Text {
				return nil // identical text already known, keep the original
			}
		}
	}

	stored := m.Clone()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}

	s.nextSeq++
	records[m.ID] = memoryRecord{Memory: stored, seq: s.nextSeq}
	return nil
}

// GetMemoryByID implements core.MemoryStore.
func (s *InMemory) GetMemoryByID(_ context.Context, table string, id string) (*core.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.memories[table][id]
	if !ok {
		return nil, nil
	}
	m := r.Memory.Clone()
	return &m, nil
}

// GetMemories implements core.MemoryStore.
func (s *InMemory) GetMemories(_ context.Context, table string, q core.MemoryQuery) ([]core.Memory, error) {
	s.mu.RLock()
	records := s.collect(table, func(r memoryRecord) bool {
		if q.RoomID != "" && r.RoomID != q.RoomID {
			return false
		}
		if !q.Before.IsZero() && !r.CreatedAt.Before(q.Before) {
			return false
		}
		return true
	})
	s.mu.RUnlock()

	sortByRecency(records)
	if q.Unique {
		records = collapseDuplicateText(records)
	}
	return clip(records, q.Count), nil
}

// GetMemoriesByRoomIDs implements core.MemoryStore.
func (s *InMemory) GetMemoriesByRoomIDs(_ context.Context, table string, roomIDs []string) ([]core.Memory, error) {
	wanted := make(map[string]bool, len(roomIDs))
	for _, id := range roomIDs {
		wanted[id] = true
	}

	s.mu.RLock()
	records := s.collect(table, func(r memoryRecord) bool { return wanted[r.RoomID] })
	s.mu.RUnlock()

	sortByRecency(records)
	return clip(records, 0), nil
}

// SearchMemories implements core.MemoryStore. Results are ordered by
// descending cosine similarity to the query embedding; equal scores fall
// back to recency.
func (s *InMemory) SearchMemories(_ context.Context, table string, embedding []float32, q core.SearchQuery) ([]core.Memory, error) {
	type scored struct {
		rec memoryRecord
		sim float32
	}

	s.mu.RLock()
	var candidates []scored
	for _, r := range s.memories[table] {
		if q.RoomID != "" && r.RoomID != q.RoomID {
			continue
		}
		if q.Unique && !r.Unique {
			continue
		}
		if len(r.Embedding) == 0 {
			continue
		}
		sim := CosineSimilarity(embedding, r.Embedding)
		if q.Threshold > 0 && sim < q.Threshold {
			continue
		}
		candidates = append(candidates, scored{
			rec: memoryRecord{Memory: r.Memory.Clone(), seq: r.seq},
			sim: sim,
		})
	}
	s.mu.RUnlock()

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].sim != candidates[j].sim {
			return candidates[i].sim > candidates[j].sim
		}
		return moreRecent(candidates[i].rec, candidates[j].rec)
	})

	records := make([]memoryRecord, len(candidates))
	for i, c := range candidates {
		records[i] = c.rec
	}
	return clip(records, q.Count), nil
}

// GetCachedEmbedding implements core.MemoryStore. The messages namespace is
// the canonical cache source: the newest message whose text matches exactly
// supplies the vector.
func (s *InMemory) GetCachedEmbedding(_ context.Context, text string) ([]float32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *memoryRecord
	for _, r := range s.memories[core.TableMessages] {
		if r.Content.Text != text || len(r.Embedding) == 0 {
			continue
		}
		if best == nil || moreRecent(r, *best) {
			cp := r
			best = &cp
		}
	}
	if best == nil {
		return nil, nil
	}
	return append([]float32(nil), best.Embedding...), nil
}

// RemoveMemory implements core.MemoryStore. Removing an absent id is a
// no-op.
func (s *InMemory) RemoveMemory(_ context.Context, table string, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.memories[table], id)
	return nil
}

// RemoveAllMemories implements core.MemoryStore.
func (s *InMemory) RemoveAllMemories(_ context.Context, table string, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range s.memories[table] {
		if r.RoomID == roomID {
			delete(s.memories[table], id)
		}
	}
	return nil
}

// CountMemories implements core.MemoryStore.
func (s *InMemory) CountMemories(_ context.Context, table string, roomID string, unique bool) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !unique {
		n := 0
		for _, r := range s.memories[table] {
			if r.RoomID == roomID {
				n++
			}
		}
		return n, nil
	}

	texts := make(map[string]bool)
	for _, r := range s.memories[table] {
		if r.RoomID == roomID {
			texts[r.Content.Text] = true
		}
	}
	return len(texts), nil
}

// collect returns clones of the table's records matching keep. Callers hold
// at least a read lock.
func (s *InMemory) collect(table string, keep func(memoryRecord) bool) []memoryRecord {
	var out []memoryRecord
	for _, r := range s.memories[table] {
		if keep(r) {
			out = append(out, memoryRecord{Memory: r.Memory.Clone(), seq: r.seq})
		}
	}
	return out
}

// -------------------- RelationStore --------------------

// GetAccountByID implements core.RelationStore.
func (s *InMemory) GetAccountByID(_ context.Context, id string) (*core.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, nil
	}
	cp := a
	cp.Details = cloneDetails(a.Details)
	return &cp, nil
}

// CreateAccount implements core.RelationStore. Creating an existing id is a
// no-op so identities can be ensured lazily.
func (s *InMemory) CreateAccount(_ context.Context, account core.Account) error {
	if account.ID == "" {
		return fmt.Errorf("store: account id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[account.ID]; exists {
		return nil
	}
	account.Details = cloneDetails(account.Details)
	s.accounts[account.ID] = account
	return nil
}

// GetRoom implements core.RelationStore.
func (s *InMemory) GetRoom(_ context.Context, id string) (*core.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[id]
	if !ok {
		return nil, nil
	}
	return &room, nil
}

// CreateRoom implements core.RelationStore.
func (s *InMemory) CreateRoom(_ context.Context, id string) (string, error) {
	if id == "" {
		id = core.NewID()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rooms[id]; !exists {
		s.rooms[id] = core.Room{ID: id, CreatedAt: time.Now().UTC()}
	}
	return id, nil
}

// RemoveRoom implements core.RelationStore. Participant edges are removed
// with the room; memories are left to RemoveAllMemories.
func (s *InMemory) RemoveRoom(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, id)
	delete(s.participants, id)
	return nil
}

// AddParticipant implements core.RelationStore.
func (s *InMemory) AddParticipant(_ context.Context, userID, roomID string) error {
	if userID == "" || roomID == "" {
		return fmt.Errorf("store: participant requires user and room ids")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	edges, ok := s.participants[roomID]
	if !ok {
		edges = make(map[string]core.Participant)
		s.participants[roomID] = edges
	}
	if _, exists := edges[userID]; exists {
		return nil
	}
	edges[userID] = core.Participant{
		UserID:   userID,
		RoomID:   roomID,
		JoinedAt: time.Now().UTC(),
	}
	return nil
}

// RemoveParticipant implements core.RelationStore.
func (s *InMemory) RemoveParticipant(_ context.Context, userID, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.participants[roomID], userID)
	return nil
}

// GetParticipantsForAccount implements core.RelationStore.
func (s *InMemory) GetParticipantsForAccount(_ context.Context, userID string) ([]core.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []core.Participant
	for _, edges := range s.participants {
		if p, ok := edges[userID]; ok {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoomID < out[j].RoomID })
	return out, nil
}

// GetParticipantsForRoom implements core.RelationStore.
func (s *InMemory) GetParticipantsForRoom(_ context.Context, roomID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.participants[roomID]))
	for userID := range s.participants[roomID] {
		out = append(out, userID)
	}
	sort.Strings(out)
	return out, nil
}

// GetParticipantUserState implements core.RelationStore.
func (s *InMemory) GetParticipantUserState(_ context.Context, roomID, userID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.participants[roomID][userID]
	if !ok {
		return "", fmt.Errorf("store: no participant %s in room %s", userID, roomID)
	}
	return p.State, nil
}

// SetParticipantUserState implements core.RelationStore.
func (s *InMemory) SetParticipantUserState(_ context.Context, roomID, userID, state string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.participants[roomID][userID]
	if !ok {
		return fmt.Errorf("store: no participant %s in room %s", userID, roomID)
	}
	p.State = state
	s.participants[roomID][userID] = p
	return nil
}

// GetRoomsForParticipant implements core.RelationStore.
func (s *InMemory) GetRoomsForParticipant(_ context.Context, userID string) ([]string, error) {
	return s.roomsFor(map[string]bool{userID: true}), nil
}

// GetRoomsForParticipants implements core.RelationStore.
func (s *InMemory) GetRoomsForParticipants(_ context.Context, userIDs []string) ([]string, error) {
	wanted := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		wanted[id] = true
	}
	return s.roomsFor(wanted), nil
}

func (s *InMemory) roomsFor(userIDs map[string]bool) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []string
	for roomID, edges := range s.participants {
		for userID := range edges {
			if userIDs[userID] {
				out = append(out, roomID)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

// -------------------- GoalStore --------------------

// GetGoals implements core.GoalStore. Goals are returned newest first.
func (s *InMemory) GetGoals(_ context.Context, q core.GoalQuery) ([]core.Goal, error) {
	s.mu.RLock()
	var out []core.Goal
	for _, g := range s.goals {
		if q.RoomID != "" && g.RoomID != q.RoomID {
			continue
		}
		if q.UserID != "" && g.UserID != q.UserID {
			continue
		}
		if q.OnlyInProgress && g.Status != core.GoalInProgress {
			continue
		}
		out = append(out, cloneGoal(g))
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if q.Count > 0 && len(out) > q.Count {
		out = out[:q.Count]
	}
	return out, nil
}

// CreateGoal implements core.GoalStore.
func (s *InMemory) CreateGoal(_ context.Context, goal core.Goal) error {
	if goal.ID == "" {
		return fmt.Errorf("store: goal id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.goals[goal.ID]; exists {
		return fmt.Errorf("store: goal %s already exists", goal.ID)
	}
	if goal.CreatedAt.IsZero() {
		goal.CreatedAt = time.Now().UTC()
	}
	s.goals[goal.ID] = cloneGoal(goal)
	return nil
}

// UpdateGoal implements core.GoalStore.
func (s *InMemory) UpdateGoal(_ context.Context, goal core.Goal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.goals[goal.ID]; !exists {
		return fmt.Errorf("store: goal %s not found", goal.ID)
	}
	s.goals[goal.ID] = cloneGoal(goal)
	return nil
}

// UpdateGoalStatus implements core.GoalStore.
func (s *InMemory) UpdateGoalStatus(_ context.Context, id string, status core.GoalStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, exists := s.goals[id]
	if !exists {
		return fmt.Errorf("store: goal %s not found", id)
	}
	g.Status = status
	s.goals[id] = g
	return nil
}

// RemoveGoal implements core.GoalStore.
func (s *InMemory) RemoveGoal(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.goals, id)
	return nil
}

// RemoveAllGoals implements core.GoalStore.
func (s *InMemory) RemoveAllGoals(_ context.Context, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, g := range s.goals {
		if g.RoomID == roomID {
			delete(s.goals, id)
		}
	}
	return nil
}

// -------------------- helpers --------------------

// CosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched lengths or zero vectors score 0.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

func sortByRecency(records []memoryRecord) {
	sort.SliceStable(records, func(i, j int) bool { return moreRecent(records[i], records[j]) })
}

func moreRecent(a, b memoryRecord) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.seq > b.seq
}

// collapseDuplicateText keeps the most recent instance of each distinct
// text. Records must already be sorted newest first.
func collapseDuplicateText(records []memoryRecord) []memoryRecord {
	seen := make(map[string]bool, len(records))
	out := records[:0]
	for _, r := range records {
		if seen[r.Content.Text] {
			continue
		}
		seen[r.Content.Text] = true
		out = append(out, r)
	}
	return out
}

func clip(records []memoryRecord, count int) []core.Memory {
	if count > 0 && len(records) > count {
		records = records[:count]
	}
	out := make([]core.Memory, len(records))
	for i, r := range records {
		out[i] = r.Memory
	}
	return out
}

func cloneDetails(details map[string]any) map[string]any {
	if details == nil {
		return nil
	}
	cp := make(map[string]any, len(details))
	for k, v := range details {
		cp[k] = v
	}
	return cp
}

func cloneGoal(g core.Goal) core.Goal {
	cp := g
	if g.Objectives != nil {
		cp.Objectives = append([]core.Objective(nil), g.Objectives...)
	}
	return cp
}
