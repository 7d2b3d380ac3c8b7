package state

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/famulus-ai/famulus/capability"
	"github.com/famulus-ai/famulus/core"
	"github.com/famulus-ai/famulus/internal/testutil"
)

// firstIntn is a deterministic random source that always picks the first
// candidate, making every sample the slice prefix.
func firstIntn(int) int { return 0 }

func newTestComposer(reg *capability.Registry) *Composer {
	return New(capability.NewDispatcher(reg), func(o *Options) {
		o.Intn = firstIntn
	})
}

func seedRoom(t *testing.T, rt *testutil.FakeRuntime, roomID string) {
	t.Helper()
	ctx := context.Background()
	if _, err := rt.Relations().CreateRoom(ctx, roomID); err != nil {
		t.Fatal(err)
	}
	for _, account := range []core.Account{
		{ID: "user-1", Name: "Alice", Username: "alice"},
		{ID: rt.AgentID(), Name: rt.Character().Name},
	} {
		if err := rt.Relations().CreateAccount(ctx, account); err != nil {
			t.Fatal(err)
		}
		if err := rt.Relations().AddParticipant(ctx, account.ID, roomID); err != nil {
			t.Fatal(err)
		}
	}
}

func seedMessages(t *testing.T, rt *testutil.FakeRuntime, roomID string, count int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < count; i++ {
		m := testutil.NewMemoryBuilder(fmt.Sprintf("m%03d", i)).
			Room(roomID).
			Text(fmt.Sprintf("message %d", i)).
			Age(time.Duration(count-i) * time.Minute).
			Build()
		if err := rt.Store.CreateMemory(ctx, core.TableMessages, m); err != nil {
			t.Fatal(err)
		}
	}
}

func TestComposeRecentMessageWindow(t *testing.T) {
	rt := testutil.NewFakeRuntime()
	rt.ConvLen = 32
	seedRoom(t, rt, "room-1")
	seedMessages(t, rt, "room-1", 40)

	c := newTestComposer(capability.NewRegistry())
	message := &core.Memory{ID: "inbound", RoomID: "room-1", UserID: "user-1"}

	snapshot, err := c.Compose(context.Background(), rt, message, nil)
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}

	if len(snapshot.RecentMessagesData) != 32 {
		t.Fatalf("expected exactly 32 recent messages, got %d", len(snapshot.RecentMessagesData))
	}
	// Newest first: the most recent of the 40 seeded messages leads.
	if snapshot.RecentMessagesData[0].ID != "m039" {
		t.Errorf("expected m039 first, got %s", snapshot.RecentMessagesData[0].ID)
	}
	if snapshot.RecentMessagesData[31].ID != "m008" {
		t.Errorf("expected m008 last, got %s", snapshot.RecentMessagesData[31].ID)
	}
}

func TestComposeIdentityAndActors(t *testing.T) {
	rt := testutil.NewFakeRuntime()
	rt.Char = testutil.TestCharacter()
	seedRoom(t, rt, "room-1")
	seedMessages(t, rt, "room-1", 3)

	c := newTestComposer(capability.NewRegistry())
	message := &core.Memory{ID: "inbound", RoomID: "room-1", UserID: "user-1"}

	snapshot, err := c.Compose(context.Background(), rt, message, nil)
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}

	if snapshot.AgentName != "Testa" {
		t.Errorf("agent name: got %q", snapshot.AgentName)
	}
	if snapshot.SenderName != "Alice" {
		t.Errorf("sender name: got %q", snapshot.SenderName)
	}
	if !strings.Contains(snapshot.Actors, "Alice (@alice)") {
		t.Errorf("actors block missing Alice: %q", snapshot.Actors)
	}
	if !strings.Contains(snapshot.RecentMessages, "Alice: message 2") {
		t.Errorf("recent messages missing transcript line: %q", snapshot.RecentMessages)
	}
}

func TestComposeSamplingIsDeterministic(t *testing.T) {
	rt := testutil.NewFakeRuntime()
	rt.Char = testutil.TestCharacter()
	seedRoom(t, rt, "room-1")

	c := newTestComposer(capability.NewRegistry())
	message := &core.Memory{ID: "inbound", RoomID: "room-1", UserID: "user-1"}

	snapshot, err := c.Compose(context.Background(), rt, message, nil)
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}

	// firstIntn always samples the prefix, so the selections are exact.
	if want := "A test persona. Keeps answers short. Likes deterministic behavior."; snapshot.Bio != want {
		t.Errorf("bio:\n got %q\nwant %q", snapshot.Bio, want)
	}
	if snapshot.Adjective != "precise" {
		t.Errorf("adjective: got %q", snapshot.Adjective)
	}
	if want := "testing, determinism, memory"; snapshot.Topics != want {
		t.Errorf("topics: got %q", snapshot.Topics)
	}
	if !strings.Contains(snapshot.MessageExamples, "Alice: How are you?") {
		t.Errorf("message examples lack placeholder substitution: %q", snapshot.MessageExamples)
	}
	if want := "be concise\nanswer directly"; snapshot.MessageDirections != want {
		t.Errorf("message directions: got %q", snapshot.MessageDirections)
	}
}

func TestComposeExtraOverridesComputed(t *testing.T) {
	rt := testutil.NewFakeRuntime()
	rt.Char = testutil.TestCharacter()
	seedRoom(t, rt, "room-1")

	c := newTestComposer(capability.NewRegistry())
	message := &core.Memory{ID: "inbound", RoomID: "room-1", UserID: "user-1"}

	snapshot, err := c.Compose(context.Background(), rt, message, map[string]any{
		"bio":    "overridden bio",
		"custom": 42,
	})
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}

	values := snapshot.Values()
	if values["bio"] != "overridden bio" {
		t.Errorf("extra must win on collision, got %v", values["bio"])
	}
	if values["custom"] != 42 {
		t.Errorf("extra key missing: %v", values["custom"])
	}
	if values["topics"] != "testing, determinism, memory" {
		t.Errorf("computed fields without collisions stay intact: %v", values["topics"])
	}
}

func TestComposeCapabilityCatalogs(t *testing.T) {
	rt := testutil.NewFakeRuntime()
	seedRoom(t, rt, "room-1")

	reg := capability.NewRegistry()
	reg.RegisterAction(core.Action{
		Name:        "VALID",
		Description: "always applicable",
		Validate: func(context.Context, core.Runtime, *core.Memory, *core.State) (bool, error) {
			return true, nil
		},
	})
	reg.RegisterAction(core.Action{
		Name:        "INVALID",
		Description: "never applicable",
		Validate: func(context.Context, core.Runtime, *core.Memory, *core.State) (bool, error) {
			return false, nil
		},
	})
	reg.RegisterProvider(core.Provider{Name: "STATIC", Get: func(context.Context, core.Runtime, *core.Memory, *core.State) (string, error) {
		return "provider context line", nil
	}})

	c := newTestComposer(reg)
	message := &core.Memory{ID: "inbound", RoomID: "room-1", UserID: "user-1"}

	snapshot, err := c.Compose(context.Background(), rt, message, nil)
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}

	if snapshot.ActionNames != "VALID" {
		t.Errorf("only validated actions are cataloged, got %q", snapshot.ActionNames)
	}
	if len(snapshot.ActionsData) != 1 || snapshot.ActionsData[0].Name != "VALID" {
		t.Errorf("actions data: %+v", snapshot.ActionsData)
	}
	if snapshot.Providers != "provider context line" {
		t.Errorf("provider text: %q", snapshot.Providers)
	}
}

func TestComposeBranchFailureAborts(t *testing.T) {
	rt := testutil.NewFakeRuntime()
	seedRoom(t, rt, "room-1")

	reg := capability.NewRegistry()
	reg.RegisterProvider(core.Provider{Name: "BROKEN", Get: func(context.Context, core.Runtime, *core.Memory, *core.State) (string, error) {
		return "", errors.New("provider backend down")
	}})

	c := newTestComposer(reg)
	message := &core.Memory{ID: "inbound", RoomID: "room-1", UserID: "user-1"}

	snapshot, err := c.Compose(context.Background(), rt, message, nil)
	if err == nil {
		t.Fatal("expected composition to abort on branch failure")
	}
	if snapshot != nil {
		t.Error("no partial state may be returned")
	}
}

func TestComposeRelevantFactsExcludeRecent(t *testing.T) {
	rt := testutil.NewFakeRuntime()
	rt.ConvLen = 4 // recent facts page = 2
	seedRoom(t, rt, "room-1")
	ctx := context.Background()

	// Two recent facts (full page) plus two older facts reachable only by
	// similarity. Embeddings are hand-picked so the similarity ranking is
	// exact.
	facts := []core.Memory{
		testutil.NewMemoryBuilder("f-new").Text("newest fact").Embedding(1, 0, 0).Build(),
		testutil.NewMemoryBuilder("f-mid").Text("second fact").Age(time.Minute).Embedding(0.9, 0.1, 0).Build(),
		testutil.NewMemoryBuilder("f-old1").Text("older related fact").Age(time.Hour).Embedding(0.95, 0.05, 0).Build(),
		testutil.NewMemoryBuilder("f-old2").Text("older unrelated fact").Age(2 * time.Hour).Embedding(0, 0, 1).Build(),
	}
	for _, f := range facts {
		if err := rt.Store.CreateMemory(ctx, core.TableFacts, f); err != nil {
			t.Fatal(err)
		}
	}

	c := newTestComposer(capability.NewRegistry())
	message := &core.Memory{ID: "inbound", RoomID: "room-1", UserID: "user-1"}

	snapshot, err := c.Compose(ctx, rt, message, nil)
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}

	if len(snapshot.RecentFactsData) != 2 {
		t.Fatalf("expected a full recent-facts page of 2, got %d", len(snapshot.RecentFactsData))
	}
	for _, f := range snapshot.RelevantFactsData {
		if f.ID == "f-new" || f.ID == "f-mid" {
			t.Errorf("fact %s appears under both headings", f.ID)
		}
	}
	ids := make(map[string]bool)
	for _, f := range snapshot.RelevantFactsData {
		ids[f.ID] = true
	}
	if !ids["f-old1"] {
		t.Errorf("expected the similar older fact to surface, got %v", snapshot.RelevantFactsData)
	}
}

func TestComposeAttachmentRedaction(t *testing.T) {
	rt := testutil.NewFakeRuntime()
	seedRoom(t, rt, "room-1")
	ctx := context.Background()

	fresh := testutil.NewMemoryBuilder("fresh").
		Attachment("a-fresh", "Fresh", "fresh text").
		Build()
	stale := testutil.NewMemoryBuilder("stale").
		Age(2 * time.Hour).
		Attachment("a-stale", "Stale", "stale text").
		Build()
	for _, m := range []core.Memory{fresh, stale} {
		if err := rt.Store.CreateMemory(ctx, core.TableMessages, m); err != nil {
			t.Fatal(err)
		}
	}

	c := newTestComposer(capability.NewRegistry())
	snapshot, err := c.Compose(ctx, rt, &core.Memory{ID: "inbound", RoomID: "room-1", UserID: "user-1"}, nil)
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}

	if !strings.Contains(snapshot.Attachments, "fresh text") {
		t.Errorf("fresh attachment lost: %q", snapshot.Attachments)
	}
	if strings.Contains(snapshot.Attachments, "stale text") {
		t.Errorf("stale attachment not redacted: %q", snapshot.Attachments)
	}
	if !strings.Contains(snapshot.Attachments, HiddenAttachmentText) {
		t.Errorf("hidden marker missing: %q", snapshot.Attachments)
	}
}

func TestUpdateRecentMessagesRefreshesOnlyThatSlice(t *testing.T) {
	rt := testutil.NewFakeRuntime()
	rt.Char = testutil.TestCharacter()
	seedRoom(t, rt, "room-1")
	seedMessages(t, rt, "room-1", 2)
	ctx := context.Background()

	c := newTestComposer(capability.NewRegistry())
	snapshot, err := c.Compose(ctx, rt, &core.Memory{ID: "inbound", RoomID: "room-1", UserID: "user-1"}, nil)
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}

	// A new message lands after composition.
	late := testutil.NewMemoryBuilder("late").Text("late arrival").At(time.Date(2025, 3, 1, 13, 0, 0, 0, time.UTC)).Build()
	if err := rt.Store.CreateMemory(ctx, core.TableMessages, late); err != nil {
		t.Fatal(err)
	}

	refreshed, err := c.UpdateRecentMessages(ctx, rt, snapshot)
	if err != nil {
		t.Fatalf("UpdateRecentMessages failed: %v", err)
	}

	if len(refreshed.RecentMessagesData) != 3 {
		t.Errorf("expected 3 messages after refresh, got %d", len(refreshed.RecentMessagesData))
	}
	if refreshed.RecentMessagesData[0].ID != "late" {
		t.Errorf("expected the late message first, got %s", refreshed.RecentMessagesData[0].ID)
	}
	if len(snapshot.RecentMessagesData) != 2 {
		t.Error("original snapshot was mutated")
	}
	if refreshed.Bio != snapshot.Bio || refreshed.Topics != snapshot.Topics {
		t.Error("persona fields must survive the refresh unchanged")
	}
}
