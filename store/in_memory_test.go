package store

import (
	"context"
	"testing"
	"time"

	"github.com/famulus-ai/famulus/core"
)

var baseTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func testMemory(id, roomID, text string, age time.Duration, embedding ...float32) core.Memory {
	return core.Memory{
		ID:        id,
		RoomID:    roomID,
		UserID:    "user-1",
		AgentID:   "agent-1",
		Content:   core.Content{Text: text},
		Embedding: embedding,
		CreatedAt: baseTime.Add(-age),
	}
}

func mustCreate(t *testing.T, s *InMemory, table string, m core.Memory) {
	t.Helper()
	if err := s.CreateMemory(context.Background(), table, m); err != nil {
		t.Fatalf("CreateMemory(%s) failed: %v", m.ID, err)
	}
}

func TestCreateAndGetMemory(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	m := testMemory("m1", "room-1", "hello", 0, 0.1, 0.2)
	mustCreate(t, s, core.TableMessages, m)

	got, err := s.GetMemoryByID(ctx, core.TableMessages, "m1")
	if err != nil {
		t.Fatalf("GetMemoryByID failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected memory, got nil")
	}
	if got.Content.Text != "hello" {
		t.Errorf("expected text %q, got %q", "hello", got.Content.Text)
	}

	// Returned memories are copies: mutating one must not affect the store.
	got.Embedding[0] = 99
	again, _ := s.GetMemoryByID(ctx, core.TableMessages, "m1")
	if again.Embedding[0] == 99 {
		t.Error("stored embedding was mutated through a returned copy")
	}

	missing, err := s.GetMemoryByID(ctx, core.TableMessages, "nope")
	if err != nil {
		t.Fatalf("GetMemoryByID failed: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for unknown id, got %+v", missing)
	}
}

func TestCreateMemoryDuplicateID(t *testing.T) {
	s := NewInMemory()

	mustCreate(t, s, core.TableMessages, testMemory("m1", "room-1", "first", 0))

	err := s.CreateMemory(context.Background(), core.TableMessages, testMemory("m1", "room-1", "second", 0))
	if !core.IsDuplicateID(err) {
		t.Fatalf("expected DuplicateIDError, got %v", err)
	}

	// The original record survives untouched.
	got, _ := s.GetMemoryByID(context.Background(), core.TableMessages, "m1")
	if got.Content.Text != "first" {
		t.Errorf("duplicate create overwrote the original: %q", got.Content.Text)
	}
}

func TestCreateMemoryUniqueCollapsesIdenticalText(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	first := testMemory("f1", "room-1", "the sky is blue", 0)
	first.Unique = true
	mustCreate(t, s, core.TableFacts, first)

	second := testMemory("f2", "room-1", "the sky is blue", 0)
	second.Unique = true
	mustCreate(t, s, core.TableFacts, second) // silent no-op

	n, err := s.CountMemories(ctx, core.TableFacts, "room-1", false)
	if err != nil {
		t.Fatalf("CountMemories failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 fact after duplicate-text create, got %d", n)
	}

	// Same text in another room is a different record.
	third := testMemory("f3", "room-2", "the sky is blue", 0)
	third.Unique = true
	mustCreate(t, s, core.TableFacts, third)

	n, _ = s.CountMemories(ctx, core.TableFacts, "room-2", false)
	if n != 1 {
		t.Errorf("expected 1 fact in second room, got %d", n)
	}
}

func TestGetMemoriesNewestFirst(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	mustCreate(t, s, core.TableMessages, testMemory("old", "room-1", "old", 3*time.Hour))
	mustCreate(t, s, core.TableMessages, testMemory("new", "room-1", "new", 0))
	mustCreate(t, s, core.TableMessages, testMemory("mid", "room-1", "mid", time.Hour))
	mustCreate(t, s, core.TableMessages, testMemory("other", "room-2", "other room", 0))

	got, err := s.GetMemories(ctx, core.TableMessages, core.MemoryQuery{RoomID: "room-1"})
	if err != nil {
		t.Fatalf("GetMemories failed: %v", err)
	}
	wantOrder := []string{"new", "mid", "old"}
	if len(got) != len(wantOrder) {
		t.Fatalf("expected %d memories, got %d", len(wantOrder), len(got))
	}
	for i, want := range wantOrder {
		if got[i].ID != want {
			t.Errorf("position %d: expected %s, got %s", i, want, got[i].ID)
		}
	}

	// Count clips from the newest end.
	got, _ = s.GetMemories(ctx, core.TableMessages, core.MemoryQuery{RoomID: "room-1", Count: 2})
	if len(got) != 2 || got[0].ID != "new" || got[1].ID != "mid" {
		t.Errorf("Count=2 returned wrong window: %v", ids(got))
	}

	// Before excludes anything at or after the bound.
	got, _ = s.GetMemories(ctx, core.TableMessages, core.MemoryQuery{
		RoomID: "room-1",
		Before: baseTime.Add(-time.Hour),
	})
	if len(got) != 1 || got[0].ID != "old" {
		t.Errorf("Before filter returned %v", ids(got))
	}
}

func TestGetMemoriesUniqueCollapsesListing(t *testing.T) {
	s := NewInMemory()

	mustCreate(t, s, core.TableMessages, testMemory("a", "room-1", "hello", 2*time.Hour))
	mustCreate(t, s, core.TableMessages, testMemory("b", "room-1", "hello", time.Hour))
	mustCreate(t, s, core.TableMessages, testMemory("c", "room-1", "bye", 0))

	got, err := s.GetMemories(context.Background(), core.TableMessages, core.MemoryQuery{RoomID: "room-1", Unique: true})
	if err != nil {
		t.Fatalf("GetMemories failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 distinct texts, got %d: %v", len(got), ids(got))
	}
	// The newest instance of each text survives.
	if got[0].ID != "c" || got[1].ID != "b" {
		t.Errorf("unexpected order: %v", ids(got))
	}
}

func TestGetMemoriesByRoomIDs(t *testing.T) {
	s := NewInMemory()

	mustCreate(t, s, core.TableMessages, testMemory("a", "room-1", "one", time.Hour))
	mustCreate(t, s, core.TableMessages, testMemory("b", "room-2", "two", 0))
	mustCreate(t, s, core.TableMessages, testMemory("c", "room-3", "three", 0))

	got, err := s.GetMemoriesByRoomIDs(context.Background(), core.TableMessages, []string{"room-1", "room-2"})
	if err != nil {
		t.Fatalf("GetMemoriesByRoomIDs failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 memories, got %d", len(got))
	}
	for _, m := range got {
		if m.RoomID == "room-3" {
			t.Errorf("room-3 memory leaked into result")
		}
	}
}

func TestSearchMemoriesRanksBySimilarity(t *testing.T) {
	s := NewInMemory()

	mustCreate(t, s, core.TableFacts, testMemory("exact", "room-1", "exact match", time.Hour, 1, 0, 0))
	mustCreate(t, s, core.TableFacts, testMemory("close", "room-1", "close match", time.Hour, 0.9, 0.1, 0))
	mustCreate(t, s, core.TableFacts, testMemory("far", "room-1", "far away", time.Hour, 0, 1, 0))
	mustCreate(t, s, core.TableFacts, testMemory("blind", "room-1", "no embedding", time.Hour))

	got, err := s.SearchMemories(context.Background(), core.TableFacts, []float32{1, 0, 0}, core.SearchQuery{RoomID: "room-1"})
	if err != nil {
		t.Fatalf("SearchMemories failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 scored memories, got %d: %v", len(got), ids(got))
	}
	if got[0].ID != "exact" || got[1].ID != "close" || got[2].ID != "far" {
		t.Errorf("wrong ranking: %v", ids(got))
	}

	// A threshold drops weak matches.
	got, _ = s.SearchMemories(context.Background(), core.TableFacts, []float32{1, 0, 0}, core.SearchQuery{
		RoomID:    "room-1",
		Threshold: 0.5,
	})
	if len(got) != 2 {
		t.Errorf("threshold should keep 2 memories, got %v", ids(got))
	}
}

func TestSearchMemoriesRecencyBreaksTies(t *testing.T) {
	s := NewInMemory()

	mustCreate(t, s, core.TableFacts, testMemory("older", "room-1", "same", 2*time.Hour, 1, 0))
	mustCreate(t, s, core.TableFacts, testMemory("newer", "room-1", "same vector", time.Hour, 1, 0))

	got, err := s.SearchMemories(context.Background(), core.TableFacts, []float32{1, 0}, core.SearchQuery{RoomID: "room-1"})
	if err != nil {
		t.Fatalf("SearchMemories failed: %v", err)
	}
	if len(got) != 2 || got[0].ID != "newer" {
		t.Errorf("expected newer memory to win the tie, got %v", ids(got))
	}
}

func TestSearchMemoriesUniqueOnly(t *testing.T) {
	s := NewInMemory()

	unique := testMemory("u", "room-1", "unique fact", 0, 1, 0)
	unique.Unique = true
	mustCreate(t, s, core.TableFacts, unique)
	mustCreate(t, s, core.TableFacts, testMemory("dup", "room-1", "derived claim", 0, 1, 0))

	got, err := s.SearchMemories(context.Background(), core.TableFacts, []float32{1, 0}, core.SearchQuery{
		RoomID: "room-1",
		Unique: true,
	})
	if err != nil {
		t.Fatalf("SearchMemories failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != "u" {
		t.Errorf("expected only the unique record, got %v", ids(got))
	}
}

func TestGetCachedEmbedding(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	mustCreate(t, s, core.TableMessages, testMemory("m1", "room-1", "what is the weather", time.Hour, 0.5, 0.5))
	mustCreate(t, s, core.TableMessages, testMemory("m2", "room-2", "what is the weather", 0, 0.7, 0.3))
	mustCreate(t, s, core.TableMessages, testMemory("m3", "room-1", "unrelated", 0, 0.1, 0.9))

	vec, err := s.GetCachedEmbedding(ctx, "what is the weather")
	if err != nil {
		t.Fatalf("GetCachedEmbedding failed: %v", err)
	}
	if vec == nil {
		t.Fatal("expected cached embedding, got nil")
	}
	// The newest record with identical text supplies the vector.
	if vec[0] != 0.7 {
		t.Errorf("expected newest vector, got %v", vec)
	}

	vec, err = s.GetCachedEmbedding(ctx, "never said")
	if err != nil {
		t.Fatalf("GetCachedEmbedding failed: %v", err)
	}
	if vec != nil {
		t.Errorf("expected nil for unknown text, got %v", vec)
	}
}

func TestRemoveAndCountMemories(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	mustCreate(t, s, core.TableMessages, testMemory("a", "room-1", "same", time.Hour))
	mustCreate(t, s, core.TableMessages, testMemory("b", "room-1", "same", 0))
	mustCreate(t, s, core.TableMessages, testMemory("c", "room-1", "other", 0))

	n, _ := s.CountMemories(ctx, core.TableMessages, "room-1", false)
	if n != 3 {
		t.Errorf("expected 3 memories, got %d", n)
	}
	n, _ = s.CountMemories(ctx, core.TableMessages, "room-1", true)
	if n != 2 {
		t.Errorf("expected 2 distinct texts, got %d", n)
	}

	if err := s.RemoveMemory(ctx, core.TableMessages, "a"); err != nil {
		t.Fatalf("RemoveMemory failed: %v", err)
	}
	if err := s.RemoveMemory(ctx, core.TableMessages, "a"); err != nil {
		t.Fatalf("removing an absent id should be a no-op, got %v", err)
	}

	if err := s.RemoveAllMemories(ctx, core.TableMessages, "room-1"); err != nil {
		t.Fatalf("RemoveAllMemories failed: %v", err)
	}
	n, _ = s.CountMemories(ctx, core.TableMessages, "room-1", false)
	if n != 0 {
		t.Errorf("expected empty room, got %d memories", n)
	}
}

func TestAccountsAndRooms(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	missing, err := s.GetAccountByID(ctx, "nobody")
	if err != nil {
		t.Fatalf("GetAccountByID failed: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for unknown account, got %+v", missing)
	}

	acct := core.Account{ID: "user-1", Name: "Ada", Details: map[string]any{"title": "engineer"}}
	if err := s.CreateAccount(ctx, acct); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	// Re-creating the same id keeps the original.
	if err := s.CreateAccount(ctx, core.Account{ID: "user-1", Name: "Imposter"}); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	got, _ := s.GetAccountByID(ctx, "user-1")
	if got.Name != "Ada" {
		t.Errorf("existing account was overwritten: %q", got.Name)
	}

	roomID, err := s.CreateRoom(ctx, "")
	if err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}
	if roomID == "" {
		t.Fatal("expected a generated room id")
	}
	room, _ := s.GetRoom(ctx, roomID)
	if room == nil {
		t.Fatal("created room not found")
	}

	sameID, _ := s.CreateRoom(ctx, roomID)
	if sameID != roomID {
		t.Errorf("re-creating a room changed its id: %s vs %s", sameID, roomID)
	}

	if err := s.RemoveRoom(ctx, roomID); err != nil {
		t.Fatalf("RemoveRoom failed: %v", err)
	}
	room, _ = s.GetRoom(ctx, roomID)
	if room != nil {
		t.Error("room survived removal")
	}
}

func TestParticipants(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	if _, err := s.CreateRoom(ctx, "room-1"); err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}
	if err := s.AddParticipant(ctx, "user-1", "room-1"); err != nil {
		t.Fatalf("AddParticipant failed: %v", err)
	}
	if err := s.AddParticipant(ctx, "user-1", "room-1"); err != nil {
		t.Fatalf("idempotent AddParticipant failed: %v", err)
	}
	if err := s.AddParticipant(ctx, "agent-1", "room-1"); err != nil {
		t.Fatalf("AddParticipant failed: %v", err)
	}

	users, err := s.GetParticipantsForRoom(ctx, "room-1")
	if err != nil {
		t.Fatalf("GetParticipantsForRoom failed: %v", err)
	}
	if len(users) != 2 || users[0] != "agent-1" || users[1] != "user-1" {
		t.Errorf("unexpected participants: %v", users)
	}

	state, err := s.GetParticipantUserState(ctx, "room-1", "user-1")
	if err != nil {
		t.Fatalf("GetParticipantUserState failed: %v", err)
	}
	if state != "" {
		t.Errorf("expected empty initial state, got %q", state)
	}

	if err := s.SetParticipantUserState(ctx, "room-1", "user-1", core.UserStateFollowed); err != nil {
		t.Fatalf("SetParticipantUserState failed: %v", err)
	}
	state, _ = s.GetParticipantUserState(ctx, "room-1", "user-1")
	if state != core.UserStateFollowed {
		t.Errorf("expected %q, got %q", core.UserStateFollowed, state)
	}

	if err := s.SetParticipantUserState(ctx, "room-1", "ghost", core.UserStateMuted); err == nil {
		t.Error("expected error setting state for a non-participant")
	}

	edges, err := s.GetParticipantsForAccount(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetParticipantsForAccount failed: %v", err)
	}
	if len(edges) != 1 || edges[0].RoomID != "room-1" {
		t.Errorf("unexpected account edges: %+v", edges)
	}

	if _, err := s.CreateRoom(ctx, "room-2"); err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}
	if err := s.AddParticipant(ctx, "user-2", "room-2"); err != nil {
		t.Fatalf("AddParticipant failed: %v", err)
	}

	rooms, err := s.GetRoomsForParticipant(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetRoomsForParticipant failed: %v", err)
	}
	if len(rooms) != 1 || rooms[0] != "room-1" {
		t.Errorf("unexpected rooms: %v", rooms)
	}

	rooms, err = s.GetRoomsForParticipants(ctx, []string{"user-1", "user-2"})
	if err != nil {
		t.Fatalf("GetRoomsForParticipants failed: %v", err)
	}
	if len(rooms) != 2 {
		t.Errorf("expected union of 2 rooms, got %v", rooms)
	}

	if err := s.RemoveParticipant(ctx, "user-1", "room-1"); err != nil {
		t.Fatalf("RemoveParticipant failed: %v", err)
	}
	users, _ = s.GetParticipantsForRoom(ctx, "room-1")
	if len(users) != 1 {
		t.Errorf("expected 1 participant after removal, got %v", users)
	}
}

func TestGoals(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	g1 := core.NewGoal("room-1", "user-1", "learn go", []core.Objective{
		{ID: "o1", Description: "read the tour"},
	})
	g1.CreatedAt = baseTime.Add(-time.Hour)
	g2 := core.NewGoal("room-1", "", "ship feature", nil)
	g2.CreatedAt = baseTime
	g3 := core.NewGoal("room-2", "user-1", "elsewhere", nil)

	for _, g := range []core.Goal{g1, g2, g3} {
		if err := s.CreateGoal(ctx, g); err != nil {
			t.Fatalf("CreateGoal failed: %v", err)
		}
	}

	if err := s.CreateGoal(ctx, g1); err == nil {
		t.Error("expected error creating a goal with an existing id")
	}

	goals, err := s.GetGoals(ctx, core.GoalQuery{RoomID: "room-1"})
	if err != nil {
		t.Fatalf("GetGoals failed: %v", err)
	}
	if len(goals) != 2 || goals[0].Name != "ship feature" {
		t.Errorf("unexpected goals: %+v", goals)
	}

	goals, _ = s.GetGoals(ctx, core.GoalQuery{RoomID: "room-1", UserID: "user-1"})
	if len(goals) != 1 || goals[0].Name != "learn go" {
		t.Errorf("user filter failed: %+v", goals)
	}

	if err := s.UpdateGoalStatus(ctx, g1.ID, core.GoalDone); err != nil {
		t.Fatalf("UpdateGoalStatus failed: %v", err)
	}
	goals, _ = s.GetGoals(ctx, core.GoalQuery{RoomID: "room-1", OnlyInProgress: true})
	if len(goals) != 1 || goals[0].Name != "ship feature" {
		t.Errorf("OnlyInProgress filter failed: %+v", goals)
	}

	g1.Objectives[0].Completed = true
	g1.Status = core.GoalDone
	if err := s.UpdateGoal(ctx, g1); err != nil {
		t.Fatalf("UpdateGoal failed: %v", err)
	}
	goals, _ = s.GetGoals(ctx, core.GoalQuery{RoomID: "room-1", UserID: "user-1"})
	if !goals[0].Objectives[0].Completed {
		t.Error("objective completion not persisted")
	}

	if err := s.UpdateGoalStatus(ctx, "missing", core.GoalFailed); err == nil {
		t.Error("expected error updating an unknown goal")
	}

	if err := s.RemoveAllGoals(ctx, "room-1"); err != nil {
		t.Fatalf("RemoveAllGoals failed: %v", err)
	}
	goals, _ = s.GetGoals(ctx, core.GoalQuery{RoomID: "room-1"})
	if len(goals) != 0 {
		t.Errorf("expected no goals after RemoveAllGoals, got %+v", goals)
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float32
	}{
		{name: "identical", a: []float32{1, 2, 3}, b: []float32{1, 2, 3}, want: 1},
		{name: "orthogonal", a: []float32{1, 0}, b: []float32{0, 1}, want: 0},
		{name: "opposite", a: []float32{1, 0}, b: []float32{-1, 0}, want: -1},
		{name: "mismatched lengths", a: []float32{1, 0}, b: []float32{1}, want: 0},
		{name: "zero vector", a: []float32{0, 0}, b: []float32{1, 1}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if diff := got - tt.want; diff > 1e-6 || diff < -1e-6 {
				t.Errorf("CosineSimilarity(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func ids(memories []core.Memory) []string {
	out := make([]string, len(memories))
	for i, m := range memories {
		out[i] = m.ID
	}
	return out
}
