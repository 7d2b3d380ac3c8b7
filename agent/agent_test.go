package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/famulus-ai/famulus/completion"
	"github.com/famulus-ai/famulus/core"
	"github.com/famulus-ai/famulus/internal/testutil"
	"github.com/famulus-ai/famulus/model"
)

func newTestRuntime(t *testing.T) (*Runtime, *model.MockCompleter) {
	t.Helper()

	completer := model.NewMockCompleter()
	rt, err := New(testutil.TestCharacter(), func(o *Options) {
		o.Completer = completer
		o.Embedder = model.NewMockEmbedder(3)
		o.Completion = completion.New(completer, func(co *completion.Options) {
			co.Backoff = completion.Backoff{MaxAttempts: 1}
		})
	})
	require.NoError(t, err)
	return rt, completer
}

func structuredReply(text, action string) string {
	return `{"user": "Testa", "text": "` + text + `", "action": "` + action + `"}`
}

func TestNewRequiresCompleter(t *testing.T) {
	_, err := New(testutil.TestCharacter())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "completer")
}

func TestNewRejectsInvalidCharacter(t *testing.T) {
	_, err := New(core.Character{}, func(o *Options) {
		o.Completer = model.NewMockCompleter()
	})
	require.Error(t, err)
}

func TestNewDerivesAgentID(t *testing.T) {
	char := testutil.TestCharacter()
	char.ID = ""

	first, err := New(char, func(o *Options) { o.Completer = model.NewMockCompleter() })
	require.NoError(t, err)
	second, err := New(char, func(o *Options) { o.Completer = model.NewMockCompleter() })
	require.NoError(t, err)

	assert.NotEmpty(t, first.AgentID())
	assert.Equal(t, first.AgentID(), second.AgentID())
	assert.Equal(t, DefaultConversationLength, first.ConversationLength())
}

func TestSettingPrecedence(t *testing.T) {
	char := testutil.TestCharacter()
	char.Settings = map[string]string{"API_KEY": "from-settings", "MODEL": "from-settings"}
	char.Secrets = map[string]string{"API_KEY": "from-secrets"}

	rt, err := New(char, func(o *Options) {
		o.Completer = model.NewMockCompleter()
		o.LookupEnv = func(key string) (string, bool) {
			if key == "ENV_ONLY" {
				return "from-env", true
			}
			return "", false
		}
	})
	require.NoError(t, err)

	assert.Equal(t, "from-secrets", rt.Setting("API_KEY"))
	assert.Equal(t, "from-settings", rt.Setting("MODEL"))
	assert.Equal(t, "from-env", rt.Setting("ENV_ONLY"))
	assert.Equal(t, "", rt.Setting("MISSING"))

	_, err = rt.RequireSetting("MISSING")
	assert.True(t, core.IsMissingCredential(err))
}

func TestEnsureConnection(t *testing.T) {
	rt, _ := newTestRuntime(t)
	ctx := context.Background()

	require.NoError(t, rt.EnsureConnection(ctx, "user-1", "room-1", "Ada", "ada"))

	account, err := rt.Relations().GetAccountByID(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, account)
	assert.Equal(t, "Ada", account.Name)

	agent, err := rt.Relations().GetAccountByID(ctx, rt.AgentID())
	require.NoError(t, err)
	require.NotNil(t, agent)
	assert.Equal(t, "Testa", agent.Name)

	participants, err := rt.Relations().GetParticipantsForRoom(ctx, "room-1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"user-1", rt.AgentID()}, participants)

	// Repeating the bootstrap is a no-op.
	require.NoError(t, rt.EnsureConnection(ctx, "user-1", "room-1", "Ada", "ada"))
}

func TestProcessMessage(t *testing.T) {
	rt, completer := newTestRuntime(t)
	ctx := context.Background()
	completer.QueueResponse(structuredReply("Operational, as always.", "NONE"))

	require.NoError(t, rt.EnsureConnection(ctx, "user-1", "room-1", "Ada", "ada"))

	var delivered []core.Content
	callback := func(_ context.Context, content core.Content) error {
		delivered = append(delivered, content)
		return nil
	}

	message := core.Memory{
		RoomID:  "room-1",
		UserID:  "user-1",
		Content: core.Content{Text: "How are you?"},
	}
	response, err := rt.ProcessMessage(ctx, message, callback)
	require.NoError(t, err)
	require.NotNil(t, response)

	assert.Equal(t, "Operational, as always.", response.Content.Text)
	assert.Equal(t, "NONE", response.Content.Action)
	assert.Equal(t, rt.AgentID(), response.UserID)
	assert.NotEmpty(t, response.Content.InReplyTo)

	stored, err := rt.Messages().GetMemoryByID(ctx, response.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, response.Content.Text, stored.Content.Text)

	require.Len(t, delivered, 1)
	assert.Equal(t, "Operational, as always.", delivered[0].Text)

	// Both the inbound message and the reply landed in the room.
	n, err := rt.Messages().CountMemories(ctx, "room-1", false)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestProcessMessageTrimsPromptToBudget(t *testing.T) {
	completer := model.NewMockCompleter()
	rt, err := New(testutil.TestCharacter(), func(o *Options) {
		o.Completer = completer
		o.Embedder = model.NewMockEmbedder(3)
		o.Completion = completion.New(completer, func(co *completion.Options) {
			co.Backoff = completion.Backoff{MaxAttempts: 1}
		})
		o.MaxInputTokens = 40
	})
	require.NoError(t, err)
	defer rt.Close()

	ctx := context.Background()
	completer.QueueResponse(structuredReply("Noted.", "NONE"))
	require.NoError(t, rt.EnsureConnection(ctx, "user-1", "room-1", "Ada", "ada"))

	_, err = rt.ProcessMessage(ctx, core.Memory{
		RoomID:  "room-1",
		UserID:  "user-1",
		Content: core.Content{Text: strings.Repeat("the quarterly report grows longer ", 60)},
	}, nil)
	require.NoError(t, err)

	// Whatever the template rendered to, the request on the wire fits the
	// configured input budget.
	sent := completer.LastRequest().Prompt()
	n, err := rt.counts.Count(sent)
	require.NoError(t, err)
	assert.LessOrEqual(t, n, 40)
	assert.Positive(t, n)
}

func TestProcessMessageDuplicateDelivery(t *testing.T) {
	rt, completer := newTestRuntime(t)
	ctx := context.Background()
	completer.QueueResponse(structuredReply("Hello.", "NONE"))

	require.NoError(t, rt.EnsureConnection(ctx, "user-1", "room-1", "Ada", "ada"))

	message := core.Memory{
		ID:      "msg-1",
		RoomID:  "room-1",
		UserID:  "user-1",
		Content: core.Content{Text: "First delivery."},
	}
	first, err := rt.ProcessMessage(ctx, message, nil)
	require.NoError(t, err)
	require.NotNil(t, first)
	callsAfterFirst := completer.Calls()

	second, err := rt.ProcessMessage(ctx, message, nil)
	require.NoError(t, err)
	assert.Nil(t, second)
	assert.Equal(t, callsAfterFirst, completer.Calls())
}

func TestProcessMessageMutedRoom(t *testing.T) {
	rt, completer := newTestRuntime(t)
	ctx := context.Background()

	require.NoError(t, rt.EnsureConnection(ctx, "user-1", "room-1", "Ada", "ada"))
	require.NoError(t, rt.Relations().SetParticipantUserState(ctx, "room-1", rt.AgentID(), core.UserStateMuted))

	response, err := rt.ProcessMessage(ctx, core.Memory{
		RoomID:  "room-1",
		UserID:  "user-1",
		Content: core.Content{Text: "anyone here?"},
	}, nil)
	require.NoError(t, err)
	assert.Nil(t, response)
	assert.Zero(t, completer.Calls())

	// Addressing the agent by name gets through even while muted.
	completer.QueueResponse(structuredReply("Unmuting now.", "UNMUTE_ROOM"))
	response, err = rt.ProcessMessage(ctx, core.Memory{
		RoomID:  "room-1",
		UserID:  "user-1",
		Content: core.Content{Text: "testa, please unmute yourself"},
	}, nil)
	require.NoError(t, err)
	require.NotNil(t, response)

	state, err := rt.Relations().GetParticipantUserState(ctx, "room-1", rt.AgentID())
	require.NoError(t, err)
	assert.NotEqual(t, core.UserStateMuted, state)
}

func TestIngestDocument(t *testing.T) {
	rt, _ := newTestRuntime(t)
	ctx := context.Background()

	text := "The reactor runs on deuterium. Refuel every third cycle. " +
		"Coolant pressure must stay below forty bar during refueling."
	docID, err := rt.IngestDocument(ctx, "room-1", "Reactor Manual", text)
	require.NoError(t, err)
	require.NotEmpty(t, docID)

	doc, err := rt.Documents().GetMemoryByID(ctx, docID)
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "Reactor Manual", doc.Content.Source)
	assert.Equal(t, text, doc.Content.Text)

	fragments, err := rt.Fragments().GetMemories(ctx, core.MemoryQuery{RoomID: "room-1"})
	require.NoError(t, err)
	require.NotEmpty(t, fragments)
	for _, f := range fragments {
		assert.Equal(t, docID, f.Content.Source)
		assert.NotEmpty(t, f.Embedding)
	}

	// Re-ingesting the same document adds nothing.
	again, err := rt.IngestDocument(ctx, "room-1", "Reactor Manual", text)
	require.NoError(t, err)
	assert.Equal(t, docID, again)
	after, err := rt.Fragments().GetMemories(ctx, core.MemoryQuery{RoomID: "room-1"})
	require.NoError(t, err)
	assert.Len(t, after, len(fragments))
}

func TestSearchKnowledge(t *testing.T) {
	rt, _ := newTestRuntime(t)
	ctx := context.Background()

	_, err := rt.IngestDocument(ctx, "room-1", "Notes", "The launch code rotates weekly.")
	require.NoError(t, err)

	results, err := rt.SearchKnowledge(ctx, "room-1", "The launch code rotates weekly.", 3)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Contains(t, results[0].Content.Text, "launch code")
}
