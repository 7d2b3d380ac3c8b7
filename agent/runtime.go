package agent

import (
	"context"
	"fmt"
	"os"

	"github.com/famulus-ai/famulus/capability"
	"github.com/famulus-ai/famulus/character"
	"github.com/famulus-ai/famulus/completion"
	"github.com/famulus-ai/famulus/core"
	"github.com/famulus-ai/famulus/logging"
	"github.com/famulus-ai/famulus/memory"
	"github.com/famulus-ai/famulus/model"
	"github.com/famulus-ai/famulus/state"
	"github.com/famulus-ai/famulus/store"
	"github.com/famulus-ai/famulus/token"
)

// Defaults applied by New when the corresponding option is zero.
const (
	// DefaultConversationLength is the fixed per-agent recent-message
	// window.
	DefaultConversationLength = 32
	// DefaultMaxInputTokens bounds the rendered prompt before completion.
	DefaultMaxInputTokens = 8000
)

// Options holds dependency + configuration overrides passed to New().
type Options struct {
	// Store backs memories, relations and goals. Defaults to an in-memory
	// store.
	Store core.Store
	// Completer is the completion transport. Required unless Completion is
	// supplied directly.
	Completer model.Completer
	// Embedder produces vectors for similarity search. Optional; without
	// it only cached embeddings are served.
	Embedder model.Embedder
	// Completion overrides the completion client built from Completer.
	Completion core.CompletionService
	// Codec counts and trims prompt tokens. Defaults to a SimpleCodec.
	Codec token.Codec
	// Registry supplies the capability collections. Defaults to a fresh
	// registry with the builtins registered.
	Registry *capability.Registry
	// Logger receives structured diagnostics.
	Logger logging.Logger
	// ConversationLength overrides DefaultConversationLength.
	ConversationLength int
	// MaxInputTokens overrides DefaultMaxInputTokens.
	MaxInputTokens int
	// MessageTemplate overrides the builtin response prompt.
	MessageTemplate string
	// Intn is the random source for persona sampling. Defaults to the
	// shared math/rand source; tests inject a deterministic one.
	Intn func(n int) int
	// LookupEnv resolves process environment settings. Defaults to
	// os.LookupEnv.
	LookupEnv func(key string) (string, bool)
}

// Runtime is the concrete core.Runtime for one agent. Public methods are
// safe for concurrent use once startup registration is finished.
type Runtime struct {
	agentID   string
	char      core.Character
	resolver  *character.Resolver
	store     core.Store
	managers  map[string]*memory.Manager
	client    core.CompletionService
	codec     token.Codec
	counts    *token.CountCache
	registry  *capability.Registry
	dispatch  *capability.Dispatcher
	composer  *state.Composer
	logger    logging.Logger
	convLen   int
	maxInput  int
	msgPrompt string
}

var _ core.Runtime = (*Runtime)(nil)

// New constructs a Runtime for the character with optional overrides. The
// character must be valid; a completion transport is required.
func New(char core.Character, optFns ...func(o *Options)) (*Runtime, error) {
	if err := character.Validate(char); err != nil {
		return nil, err
	}

	opts := Options{
		Store:              store.NewInMemory(),
		Logger:             logging.NoOpLogger{},
		ConversationLength: DefaultConversationLength,
		MaxInputTokens:     DefaultMaxInputTokens,
		MessageTemplate:    messageHandlerTemplate,
		LookupEnv:          os.LookupEnv,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Completion == nil {
		if opts.Completer == nil {
			return nil, fmt.Errorf("agent: a completer is required")
		}
		opts.Completion = completion.New(opts.Completer, func(o *completion.Options) {
			o.Logger = opts.Logger
		})
	}
	if opts.Codec == nil {
		opts.Codec = token.NewSimpleCodec()
	}
	counts, err := token.NewCountCache(opts.Codec)
	if err != nil {
		return nil, err
	}
	if opts.Registry == nil {
		opts.Registry = capability.NewRegistry()
		capability.RegisterBuiltins(opts.Registry)
	}

	agentID := char.ID
	if agentID == "" {
		agentID = core.DeterministicID("character", char.Name)
	}

	r := &Runtime{
		agentID: agentID,
		char:    char,
		resolver: character.NewResolver(char, func(o *character.ResolverOptions) {
			o.LookupEnv = opts.LookupEnv
		}),
		store:     opts.Store,
		managers:  make(map[string]*memory.Manager, len(core.Tables())),
		client:    opts.Completion,
		codec:     opts.Codec,
		counts:    counts,
		registry:  opts.Registry,
		logger:    opts.Logger,
		convLen:   opts.ConversationLength,
		maxInput:  opts.MaxInputTokens,
		msgPrompt: opts.MessageTemplate,
	}
	for _, table := range core.Tables() {
		r.managers[table] = memory.NewManager(opts.Store, opts.Embedder, table, func(o *memory.Options) {
			o.Logger = opts.Logger
		})
	}

	r.dispatch = capability.NewDispatcher(opts.Registry, func(o *capability.Options) {
		o.Logger = opts.Logger
	})
	caps := opts.Registry.Capabilities()
	names := make([]string, len(caps))
	for i, c := range caps {
		names[i] = c.CapabilityName()
	}
	r.logger.Debug("Runtime capabilities", "agent_id", agentID, "capabilities", names)
	r.composer = state.New(r.dispatch, func(o *state.Options) {
		if opts.Intn != nil {
			o.Intn = opts.Intn
		}
		o.Logger = opts.Logger
	})

	return r, nil
}

// Close releases resources held by the runtime, currently the token count
// cache. The runtime must not be used afterwards.
func (r *Runtime) Close() { r.counts.Close() }

// AgentID implements core.Runtime.
func (r *Runtime) AgentID() string { return r.agentID }

// Character implements core.Runtime.
func (r *Runtime) Character() core.Character { return r.char }

// Logger implements core.Runtime.
func (r *Runtime) Logger() logging.Logger { return r.logger }

// Setting implements core.Runtime: character secrets beat character settings
// beat the process environment.
func (r *Runtime) Setting(key string) string { return r.resolver.Get(key) }

// RequireSetting resolves a key that must be present and non-empty, failing
// with a core.MissingCredentialError otherwise.
func (r *Runtime) RequireSetting(key string) (string, error) { return r.resolver.Require(key) }

// ConversationLength implements core.Runtime.
func (r *Runtime) ConversationLength() int { return r.convLen }

// Messages implements core.Runtime.
func (r *Runtime) Messages() core.MemoryManager { return r.managers[core.TableMessages] }

// Descriptions implements core.Runtime.
func (r *Runtime) Descriptions() core.MemoryManager { return r.managers[core.TableDescriptions] }

// Facts implements core.Runtime.
func (r *Runtime) Facts() core.MemoryManager { return r.managers[core.TableFacts] }

// Lore implements core.Runtime.
func (r *Runtime) Lore() core.MemoryManager { return r.managers[core.TableLore] }

// Documents implements core.Runtime.
func (r *Runtime) Documents() core.MemoryManager { return r.managers[core.TableDocuments] }

// Fragments implements core.Runtime.
func (r *Runtime) Fragments() core.MemoryManager { return r.managers[core.TableFragments] }

// Relations implements core.Runtime.
func (r *Runtime) Relations() core.RelationStore { return r.store }

// Goals implements core.Runtime.
func (r *Runtime) Goals() core.GoalStore { return r.store }

// Completion implements core.Runtime.
func (r *Runtime) Completion() core.CompletionService { return r.client }

// Registry returns the capability registry for startup registration.
func (r *Runtime) Registry() *capability.Registry { return r.registry }

// RegisterAction registers an action. Call during startup only.
func (r *Runtime) RegisterAction(a core.Action) { r.registry.RegisterAction(a) }

// RegisterEvaluator registers an evaluator. Call during startup only.
func (r *Runtime) RegisterEvaluator(e core.Evaluator) { r.registry.RegisterEvaluator(e) }

// RegisterContextProvider registers a provider. Call during startup only.
func (r *Runtime) RegisterContextProvider(p core.Provider) { r.registry.RegisterProvider(p) }

// ComposeState implements core.Runtime.
func (r *Runtime) ComposeState(ctx context.Context, message *core.Memory, extra map[string]any) (*core.State, error) {
	return r.composer.Compose(ctx, r, message, extra)
}

// UpdateRecentMessageState implements core.Runtime.
func (r *Runtime) UpdateRecentMessageState(ctx context.Context, snapshot *core.State) (*core.State, error) {
	return r.composer.UpdateRecentMessages(ctx, r, snapshot)
}

// EnsureUserExists lazily creates the account for an identity on first
// reference.
func (r *Runtime) EnsureUserExists(ctx context.Context, userID, name, username string) error {
	account, err := r.store.GetAccountByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("ensure user %s: %w", userID, err)
	}
	if account != nil {
		return nil
	}

	if name == "" {
		name = "Unknown User"
	}
	if err := r.store.CreateAccount(ctx, core.Account{
		ID:       userID,
		Name:     name,
		Username: username,
	}); err != nil {
		return fmt.Errorf("ensure user %s: %w", userID, err)
	}
	r.logger.Debug("Created account on first reference", "user_id", userID, "name", name)
	return nil
}

// EnsureRoomExists lazily creates a room on first reference.
func (r *Runtime) EnsureRoomExists(ctx context.Context, roomID string) error {
	room, err := r.store.GetRoom(ctx, roomID)
	if err != nil {
		return fmt.Errorf("ensure room %s: %w", roomID, err)
	}
	if room != nil {
		return nil
	}

	if _, err := r.store.CreateRoom(ctx, roomID); err != nil {
		return fmt.Errorf("ensure room %s: %w", roomID, err)
	}
	r.logger.Debug("Created room on first reference", "room_id", roomID)
	return nil
}

// EnsureParticipantInRoom idempotently inserts the membership edge.
func (r *Runtime) EnsureParticipantInRoom(ctx context.Context, userID, roomID string) error {
	if err := r.store.AddParticipant(ctx, userID, roomID); err != nil {
		return fmt.Errorf("ensure participant %s in room %s: %w", userID, roomID, err)
	}
	return nil
}

// EnsureConnection makes sure the user, the agent, the room and both
// participant edges exist. Connectors call this once per inbound event
// before ProcessMessage.
func (r *Runtime) EnsureConnection(ctx context.Context, userID, roomID, name, username string) error {
	if err := r.EnsureUserExists(ctx, userID, name, username); err != nil {
		return err
	}
	if err := r.EnsureUserExists(ctx, r.agentID, r.char.Name, r.char.Name); err != nil {
		return err
	}
	if err := r.EnsureRoomExists(ctx, roomID); err != nil {
		return err
	}
	if err := r.EnsureParticipantInRoom(ctx, userID, roomID); err != nil {
		return err
	}
	return r.EnsureParticipantInRoom(ctx, r.agentID, roomID)
}
