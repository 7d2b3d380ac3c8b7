package core

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestDeterministicIDStable(t *testing.T) {
	a := DeterministicID("discord", "msg-123")
	b := DeterministicID("discord", "msg-123")
	if a != b {
		t.Fatalf("expected stable id, got %s and %s", a, b)
	}
	if a == DeterministicID("discord", "msg-124") {
		t.Fatalf("distinct parts must yield distinct ids")
	}
	if a == DeterministicID("discord:msg", "-123") {
		t.Fatalf("part boundaries must affect the id")
	}
}

func TestStateValuesExtraWins(t *testing.T) {
	st := &State{
		AgentName:      "Famulus",
		RecentMessages: "computed block",
		Extra: map[string]any{
			"recentMessages": "override block",
			"customKey":      42,
		},
	}

	v := st.Values()
	if v["recentMessages"] != "override block" {
		t.Fatalf("extra must win on collision, got %v", v["recentMessages"])
	}
	if v["agentName"] != "Famulus" {
		t.Fatalf("computed fields must survive, got %v", v["agentName"])
	}
	if v["customKey"] != 42 {
		t.Fatalf("extra-only keys must appear, got %v", v["customKey"])
	}

	if got, ok := st.Value("recentMessages"); !ok || got != "override block" {
		t.Fatalf("Value must apply the same override, got %v %v", got, ok)
	}
}

func TestStateCloneIndependentExtra(t *testing.T) {
	st := &State{Extra: map[string]any{"k": "v"}}
	cp := st.Clone()
	cp.Extra["k"] = "changed"
	if st.Extra["k"] != "v" {
		t.Fatalf("clone must not share the extra map")
	}
}

func TestMemoryCloneIndependence(t *testing.T) {
	m := Memory{
		ID:        NewID(),
		Embedding: []float32{1, 2, 3},
		Content:   Content{Text: "hi", Attachments: []Media{{ID: "a", Text: "photo"}}},
	}
	cp := m.Clone()
	cp.Embedding[0] = 9
	cp.Content.Attachments[0].Text = "edited"
	if m.Embedding[0] != 1 {
		t.Fatalf("embedding must be deep-copied")
	}
	if m.Content.Attachments[0].Text != "photo" {
		t.Fatalf("attachments must be deep-copied")
	}
}

func TestErrorHelpers(t *testing.T) {
	dup := fmt.Errorf("create: %w", NewDuplicateIDError(TableMessages, "id-1"))
	if !IsDuplicateID(dup) {
		t.Fatalf("wrapped DuplicateIDError not detected")
	}
	if IsDuplicateID(errors.New("other")) {
		t.Fatalf("unrelated error misdetected as duplicate id")
	}

	ex := &CompletionExhaustedError{Attempts: 5, Err: errors.New("status 500")}
	if !IsCompletionExhausted(fmt.Errorf("wrap: %w", ex)) {
		t.Fatalf("wrapped CompletionExhaustedError not detected")
	}
	if !errors.Is(errors.Unwrap(ex), ex.Err) {
		t.Fatalf("exhausted error must unwrap to the transport error")
	}

	pe := NewParseError("boolean", "definitely maybe")
	if !IsParseError(fmt.Errorf("wrap: %w", pe)) {
		t.Fatalf("wrapped ParseError not detected")
	}

	if !IsMissingCredential(&MissingCredentialError{Key: "OPENAI_API_KEY"}) {
		t.Fatalf("MissingCredentialError not detected")
	}
}

func TestParseErrorTruncatesOnRuneBoundary(t *testing.T) {
	// Place a multi-byte rune so that the truncation point lands inside it.
	raw := strings.Repeat("x", 119) + "é" + strings.Repeat("more output", 10)
	msg := NewParseError("json", raw).Error()
	if !strings.Contains(msg, "...") {
		t.Fatalf("long raw output was not truncated: %q", msg)
	}
	if !utf8.ValidString(msg) {
		t.Fatalf("truncated message is not valid UTF-8: %q", msg)
	}
	// The quoting verb escapes a severed byte as \xNN; a clean cut leaves none.
	if strings.Contains(msg, `\x`) {
		t.Fatalf("truncation severed a multi-byte rune: %q", msg)
	}

	short := NewParseError("json", "short").Error()
	if strings.Contains(short, "...") {
		t.Fatalf("short raw output must not be truncated: %q", short)
	}
}
