package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/famulus-ai/famulus/core"
)

func TestVectorRoundTrip(t *testing.T) {
	tests := [][]float32{
		{1, 0, 0},
		{0.25, -0.5, 0.125},
		{},
	}
	for _, vec := range tests {
		got, err := parseVector(formatVector(vec))
		if err != nil {
			t.Fatalf("parseVector failed for %v: %v", vec, err)
		}
		if len(got) != len(vec) {
			t.Fatalf("round trip changed length: %v -> %v", vec, got)
		}
		for i := range vec {
			if got[i] != vec[i] {
				t.Errorf("component %d changed: %v -> %v", i, vec[i], got[i])
			}
		}
	}
}

func TestParseVectorRejectsGarbage(t *testing.T) {
	if _, err := parseVector("[1,oops,3]"); err == nil {
		t.Error("expected error for a malformed vector")
	}
}

// newIntegrationStore connects to the database named by FAMULUS_POSTGRES_DSN
// and skips the test when the variable is unset.
func newIntegrationStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("FAMULUS_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("FAMULUS_POSTGRES_DSN not set; skipping postgres integration test")
	}
	s, err := New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestIntegrationMemoryLifecycle(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	roomID := core.NewID()

	m := core.Memory{
		ID:        core.NewID(),
		RoomID:    roomID,
		UserID:    "user-1",
		AgentID:   "agent-1",
		Content:   core.Content{Text: "integration check"},
		Embedding: []float32{1, 0, 0},
		CreatedAt: time.Now().UTC(),
	}
	if err := s.CreateMemory(ctx, core.TableMessages, m); err != nil {
		t.Fatalf("CreateMemory failed: %v", err)
	}
	t.Cleanup(func() { _ = s.RemoveAllMemories(ctx, core.TableMessages, roomID) })

	if err := s.CreateMemory(ctx, core.TableMessages, m); !core.IsDuplicateID(err) {
		t.Fatalf("expected DuplicateIDError, got %v", err)
	}

	got, err := s.GetMemoryByID(ctx, core.TableMessages, m.ID)
	if err != nil {
		t.Fatalf("GetMemoryByID failed: %v", err)
	}
	if got == nil || got.Content.Text != "integration check" {
		t.Fatalf("unexpected memory: %+v", got)
	}
	if len(got.Embedding) != 3 {
		t.Errorf("embedding did not round trip: %v", got.Embedding)
	}

	vec, err := s.GetCachedEmbedding(ctx, "integration check")
	if err != nil {
		t.Fatalf("GetCachedEmbedding failed: %v", err)
	}
	if vec == nil {
		t.Error("expected cached embedding")
	}

	results, err := s.SearchMemories(ctx, core.TableMessages, []float32{1, 0, 0}, core.SearchQuery{RoomID: roomID})
	if err != nil {
		t.Fatalf("SearchMemories failed: %v", err)
	}
	if len(results) != 1 || results[0].ID != m.ID {
		t.Errorf("unexpected search results: %+v", results)
	}
}

func TestIntegrationRelationsAndGoals(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()

	roomID, err := s.CreateRoom(ctx, "")
	if err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}
	t.Cleanup(func() { _ = s.RemoveRoom(ctx, roomID) })

	userID := core.NewID()
	if err := s.CreateAccount(ctx, core.Account{ID: userID, Name: "Ada"}); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	if err := s.AddParticipant(ctx, userID, roomID); err != nil {
		t.Fatalf("AddParticipant failed: %v", err)
	}
	if err := s.SetParticipantUserState(ctx, roomID, userID, core.UserStateFollowed); err != nil {
		t.Fatalf("SetParticipantUserState failed: %v", err)
	}
	state, err := s.GetParticipantUserState(ctx, roomID, userID)
	if err != nil {
		t.Fatalf("GetParticipantUserState failed: %v", err)
	}
	if state != core.UserStateFollowed {
		t.Errorf("expected %q, got %q", core.UserStateFollowed, state)
	}

	goal := core.NewGoal(roomID, userID, "integration goal", []core.Objective{{ID: "o1", Description: "step"}})
	if err := s.CreateGoal(ctx, goal); err != nil {
		t.Fatalf("CreateGoal failed: %v", err)
	}
	t.Cleanup(func() { _ = s.RemoveAllGoals(ctx, roomID) })

	goals, err := s.GetGoals(ctx, core.GoalQuery{RoomID: roomID, OnlyInProgress: true})
	if err != nil {
		t.Fatalf("GetGoals failed: %v", err)
	}
	if len(goals) != 1 || goals[0].Name != "integration goal" {
		t.Errorf("unexpected goals: %+v", goals)
	}
}
