package testutil

import (
	"context"

	"github.com/famulus-ai/famulus/completion"
	"github.com/famulus-ai/famulus/core"
	"github.com/famulus-ai/famulus/logging"
	"github.com/famulus-ai/famulus/memory"
	"github.com/famulus-ai/famulus/model"
	"github.com/famulus-ai/famulus/store"
)

// FakeRuntime is a core.Runtime for tests: in-memory store, deterministic
// mock embedder, scripted mock completer and no backoff delays. Fields are
// exported so tests can script responses and inspect stored data directly.
type FakeRuntime struct {
	ID        string
	Char      core.Character
	Store     *store.InMemory
	Embedder  *model.MockEmbedder
	Completer *model.MockCompleter
	Client    *completion.Client
	ConvLen   int

	// ComposeFn overrides ComposeState when set; the default returns a
	// persona-only snapshot.
	ComposeFn func(ctx context.Context, message *core.Memory, extra map[string]any) (*core.State, error)

	managers map[string]*memory.Manager
}

var _ core.Runtime = (*FakeRuntime)(nil)

// NewFakeRuntime constructs a FakeRuntime with sensible defaults: agent id
// "agent-1", character "Testa", conversation length 8.
func NewFakeRuntime() *FakeRuntime {
	s := store.NewInMemory()
	e := model.NewMockEmbedder(8)
	c := model.NewMockCompleter()

	rt := &FakeRuntime{
		ID:        "agent-1",
		Char:      core.Character{ID: "agent-1", Name: "Testa"},
		Store:     s,
		Embedder:  e,
		Completer: c,
		Client: completion.New(c, func(o *completion.Options) {
			o.Backoff = completion.Backoff{MaxAttempts: 1}
		}),
		ConvLen:  8,
		managers: make(map[string]*memory.Manager),
	}
	for _, table := range core.Tables() {
		rt.managers[table] = memory.NewManager(s, e, table)
	}
	return rt
}

func (r *FakeRuntime) AgentID() string           { return r.ID }
func (r *FakeRuntime) Character() core.Character { return r.Char }
func (r *FakeRuntime) Logger() logging.Logger    { return logging.NoOpLogger{} }
func (r *FakeRuntime) ConversationLength() int   { return r.ConvLen }

// Setting resolves from character secrets, then settings; the process
// environment is deliberately not consulted so tests stay hermetic.
func (r *FakeRuntime) Setting(key string) string {
	if v, ok := r.Char.Secrets[key]; ok {
		return v
	}
	return r.Char.Settings[key]
}

func (r *FakeRuntime) Messages() core.MemoryManager     { return r.managers[core.TableMessages] }
func (r *FakeRuntime) Descriptions() core.MemoryManager { return r.managers[core.TableDescriptions] }
func (r *FakeRuntime) Facts() core.MemoryManager        { return r.managers[core.TableFacts] }
func (r *FakeRuntime) Lore() core.MemoryManager         { return r.managers[core.TableLore] }
func (r *FakeRuntime) Documents() core.MemoryManager    { return r.managers[core.TableDocuments] }
func (r *FakeRuntime) Fragments() core.MemoryManager    { return r.managers[core.TableFragments] }

func (r *FakeRuntime) Relations() core.RelationStore { return r.Store }
func (r *FakeRuntime) Goals() core.GoalStore         { return r.Store }

func (r *FakeRuntime) Completion() core.CompletionService { return r.Client }

func (r *FakeRuntime) ComposeState(ctx context.Context, message *core.Memory, extra map[string]any) (*core.State, error) {
	if r.ComposeFn != nil {
		return r.ComposeFn(ctx, message, extra)
	}
	return &core.State{
		AgentID:   r.ID,
		AgentName: r.Char.Name,
		RoomID:    message.RoomID,
		Extra:     extra,
	}, nil
}

func (r *FakeRuntime) UpdateRecentMessageState(_ context.Context, state *core.State) (*core.State, error) {
	return state, nil
}
