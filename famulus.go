// Package famulus provides a high-level façade over the agent runtime and
// service abstractions (stores, models, capabilities & logging) enabling rapid
// construction of conversational agents. Most applications interact with this
// package by:
//  1. Creating a Famulus via New() (optionally overriding default in-memory services)
//  2. Registering one or more agents from character definitions
//  3. Routing inbound messages to an agent via ProcessMessage
//
// The façade delegates per-agent work to agent.Runtime while keeping setup and
// usage ergonomics concise. All defaults are safe for local development and
// testing; production deployments typically supply a durable store, real model
// adapters and a structured logger.
package famulus

import (
	"context"
	"fmt"
	"sync"

	"github.com/famulus-ai/famulus/agent"
	"github.com/famulus-ai/famulus/core"
	"github.com/famulus-ai/famulus/logging"
	"github.com/famulus-ai/famulus/model"
	"github.com/famulus-ai/famulus/store"
)

// Options configures the Famulus instance. The store, completer and embedder
// are shared by every registered agent; per-agent overrides go through the
// optFns of RegisterAgent.
type Options struct {
	// Store backs memories, relations and goals for all agents. Defaults to
	// an in-memory store.
	Store core.Store

	// Completer is the shared completion transport.
	Completer model.Completer

	// Embedder is the shared embedding transport. Optional; without it
	// similarity search is served from cached embeddings only.
	Embedder model.Embedder

	// Logger (defaults to NoOp logger if nil).
	Logger logging.Logger
}

// Famulus is the high-level façade hosting one runtime per registered agent.
type Famulus struct {
	opts Options

	mu     sync.RWMutex
	agents map[string]*agent.Runtime
}

// New creates a new Famulus instance with optional overrides. Any unset
// service is initialized with an in-memory implementation.
func New(optFns ...func(o *Options)) *Famulus {
	opts := Options{
		Store:  store.NewInMemory(),
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Famulus{
		opts:   opts,
		agents: make(map[string]*agent.Runtime),
	}
}

// RegisterAgent builds a runtime for the character on the shared services and
// registers it under its agent id. Per-agent overrides (registry, templates,
// conversation length) are applied through optFns.
func (f *Famulus) RegisterAgent(char core.Character, optFns ...func(o *agent.Options)) (*agent.Runtime, error) {
	rt, err := agent.New(char, func(o *agent.Options) {
		o.Store = f.opts.Store
		o.Completer = f.opts.Completer
		o.Embedder = f.opts.Embedder
		o.Logger = f.opts.Logger
		for _, fn := range optFns {
			fn(o)
		}
	})
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.agents[rt.AgentID()]; exists {
		return nil, fmt.Errorf("agent %s is already registered", rt.AgentID())
	}
	f.agents[rt.AgentID()] = rt
	return rt, nil
}

// Agent returns the runtime registered under the agent id, or nil.
func (f *Famulus) Agent(agentID string) *agent.Runtime {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.agents[agentID]
}

// Agents returns every registered runtime.
func (f *Famulus) Agents() []*agent.Runtime {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]*agent.Runtime, 0, len(f.agents))
	for _, rt := range f.agents {
		out = append(out, rt)
	}
	return out
}

// ProcessMessage routes an inbound message to the agent's runtime and runs the
// full pipeline. The callback, when non-nil, receives the response content.
func (f *Famulus) ProcessMessage(ctx context.Context, agentID string, message core.Memory, callback core.HandlerCallback) (*core.Memory, error) {
	rt := f.Agent(agentID)
	if rt == nil {
		return nil, fmt.Errorf("no agent registered under id %s", agentID)
	}
	return rt.ProcessMessage(ctx, message, callback)
}
