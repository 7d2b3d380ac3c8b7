package core

import (
	"context"

	"github.com/famulus-ai/famulus/logging"
)

// Capability represents a registrable behaviour. Concrete capability kinds
// implement the unexported isCapability marker enabling a closed set: the
// runtime holds exactly three ordered collections (actions, evaluators,
// providers) rather than one polymorphic bag.
type Capability interface {
	// CapabilityName returns the registered name used for lookup and logging.
	CapabilityName() string

	isCapability()
}

// Validator decides whether a capability applies to a message/state pair.
// Validators run concurrently during state composition and must be safe for
// concurrent use.
type Validator func(ctx context.Context, rt Runtime, message *Memory, state *State) (bool, error)

// Handler performs a capability's side effects. The callback, when non-nil,
// lets the handler emit response content back to the originating connector.
type Handler func(ctx context.Context, rt Runtime, message *Memory, state *State, options map[string]any, callback HandlerCallback) error

// HandlerCallback delivers handler-produced content to the caller, typically
// a platform connector that relays it to the conversation.
type HandlerCallback func(ctx context.Context, content Content) error

// ProviderFunc supplies dynamic contextual text folded into every composed
// state snapshot.
type ProviderFunc func(ctx context.Context, rt Runtime, message *Memory, state *State) (string, error)

// Action is a capability the model can choose to execute in its response.
// Similes are alternative names accepted during fuzzy resolution. Validate
// gates whether the action is offered to the model at all; Handler runs when
// the model picks it.
type Action struct {
	Name        string
	Similes     []string
	Description string
	Examples    [][]MessageExample
	Validate    Validator
	Handler     Handler
}

// CapabilityName implements the Capability interface for Action.
func (a Action) CapabilityName() string { return a.Name }

func (Action) isCapability() {}

// EvaluationExample documents one evaluator run for prompt construction.
type EvaluationExample struct {
	Context  string
	Messages []MessageExample
	Outcome  string
}

// Evaluator is a capability that runs after a response to extract or update
// derived data (facts, goal progress). Validation gates eligibility and the
// model's ranking gates execution: both must agree before the handler runs.
// AlwaysRun skips the model ranking and executes whenever validation passes.
type Evaluator struct {
	Name        string
	Similes     []string
	Description string
	Examples    []EvaluationExample
	AlwaysRun   bool
	Validate    Validator
	Handler     Handler
}

// CapabilityName implements the Capability interface for Evaluator.
func (e Evaluator) CapabilityName() string { return e.Name }

func (Evaluator) isCapability() {}

// Provider contributes contextual text to every state snapshot. Providers
// have no validation gate; a provider that has nothing to add returns an
// empty string.
type Provider struct {
	Name string
	Get  ProviderFunc
}

// CapabilityName implements the Capability interface for Provider.
func (p Provider) CapabilityName() string { return p.Name }

func (Provider) isCapability() {}

// MemoryManager exposes one memory namespace. Implementations wrap a
// MemoryStore with the namespace's table name and the embedding cache path.
type MemoryManager interface {
	// Table returns the namespace this manager operates on.
	Table() string

	// CreateMemory persists a memory. When the memory is marked Unique,
	// creation is skipped if a record with identical text already exists in
	// the namespace and room. An id collision returns a DuplicateIDError.
	CreateMemory(ctx context.Context, memory Memory) error

	// GetMemoryByID returns the memory with the given id, or nil when absent.
	GetMemoryByID(ctx context.Context, id string) (*Memory, error)

	// GetMemories returns the most recent memories for a room, newest first.
	GetMemories(ctx context.Context, q MemoryQuery) ([]Memory, error)

	// GetMemoriesByRoomIDs merges memories across rooms with no per-room
	// ordering guarantee; callers re-sort as needed.
	GetMemoriesByRoomIDs(ctx context.Context, roomIDs []string) ([]Memory, error)

	// SearchByEmbedding returns memories ranked by descending cosine
	// similarity to the query vector, ties broken by recency.
	SearchByEmbedding(ctx context.Context, embedding []float32, q SearchQuery) ([]Memory, error)

	// AddEmbedding fills in the memory's embedding, reusing a cached vector
	// when a stored record's text matches exactly and calling the remote
	// embedder otherwise.
	AddEmbedding(ctx context.Context, memory *Memory) error

	// RemoveMemory deletes a single memory by id.
	RemoveMemory(ctx context.Context, id string) error

	// RemoveAllMemories deletes every memory in the namespace for a room.
	RemoveAllMemories(ctx context.Context, roomID string) error

	// CountMemories reports how many memories a room holds, optionally
	// collapsing exact-duplicate text.
	CountMemories(ctx context.Context, roomID string, unique bool) (int, error)
}

// Runtime is the surface capabilities and composers see. The concrete
// implementation lives in the agent package; handlers and providers receive
// this interface so they stay decoupled from runtime wiring.
type Runtime interface {
	// AgentID returns the identity of the agent account.
	AgentID() string

	// Character returns the persona definition this runtime embodies.
	Character() Character

	// Logger returns the runtime's logger, never nil.
	Logger() logging.Logger

	// Setting resolves a configuration key with precedence character secrets,
	// then character settings, then the process environment. Missing keys
	// resolve to the empty string.
	Setting(key string) string

	// ConversationLength is the fixed per-agent recent-message window.
	ConversationLength() int

	// Namespace managers.
	Messages() MemoryManager
	Descriptions() MemoryManager
	Facts() MemoryManager
	Lore() MemoryManager
	Documents() MemoryManager
	Fragments() MemoryManager

	// Relations exposes the room/account/participant graph.
	Relations() RelationStore

	// Goals exposes goal tracking.
	Goals() GoalStore

	// Completion returns the typed completion surface.
	Completion() CompletionService

	// ComposeState builds the request-scoped context snapshot for a message.
	// Entries in extra override any computed field of the same name.
	ComposeState(ctx context.Context, message *Memory, extra map[string]any) (*State, error)

	// UpdateRecentMessageState refreshes only the recent-message slice of an
	// existing snapshot, leaving every other block untouched.
	UpdateRecentMessageState(ctx context.Context, state *State) (*State, error)
}
