package capability

import (
	"strings"

	"github.com/famulus-ai/famulus/core"
)

// Registry holds the capability collections of one runtime instance: three
// ordered slices, one per kind, rather than a single polymorphic bag.
// Registration is not safe for concurrent use; once startup registration is
// complete, lookups are.
type Registry struct {
	actions    []core.Action
	evaluators []core.Evaluator
	providers  []core.Provider
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// RegisterAction appends an action. Actions are offered to the model in
// registration order and the first fuzzy match wins, so register more
// specific actions first.
func (r *Registry) RegisterAction(a core.Action) {
	r.actions = append(r.actions, a)
}

// RegisterEvaluator appends an evaluator.
func (r *Registry) RegisterEvaluator(e core.Evaluator) {
	r.evaluators = append(r.evaluators, e)
}

// RegisterProvider appends a context provider.
func (r *Registry) RegisterProvider(p core.Provider) {
	r.providers = append(r.providers, p)
}

// Actions returns a copy of the registered actions in registration order.
func (r *Registry) Actions() []core.Action {
	return append([]core.Action(nil), r.actions...)
}

// Evaluators returns a copy of the registered evaluators in registration
// order.
func (r *Registry) Evaluators() []core.Evaluator {
	return append([]core.Evaluator(nil), r.evaluators...)
}

// Providers returns a copy of the registered providers in registration order.
func (r *Registry) Providers() []core.Provider {
	return append([]core.Provider(nil), r.providers...)
}

// Capabilities returns every registered capability as the common
// core.Capability view: actions, then evaluators, then providers, each in
// registration order. Callers use it for catalog logging and introspection
// without caring about the concrete kind.
func (r *Registry) Capabilities() []core.Capability {
	out := make([]core.Capability, 0, len(r.actions)+len(r.evaluators)+len(r.providers))
	for _, a := range r.actions {
		out = append(out, a)
	}
	for _, e := range r.evaluators {
		out = append(out, e)
	}
	for _, p := range r.providers {
		out = append(out, p)
	}
	return out
}

// Action returns the action with the exact registered name.
func (r *Registry) Action(name string) (core.Action, bool) {
	for _, a := range r.actions {
		if a.Name == name {
			return a, true
		}
	}
	return core.Action{}, false
}

// Evaluator returns the evaluator with the exact registered name.
func (r *Registry) Evaluator(name string) (core.Evaluator, bool) {
	for _, e := range r.evaluators {
		if e.Name == name {
			return e, true
		}
	}
	return core.Evaluator{}, false
}

// ResolveAction finds the action matching a model-chosen name. Names are
// normalized (lowercased, underscores stripped); an exact normalized match
// wins outright, otherwise a name is accepted when either normalized form
// contains the other. When no registered name matches, the same tests run
// against every alias. Within each pass the first match in registration
// order wins.
func (r *Registry) ResolveAction(name string) (core.Action, bool) {
	chosen := normalizeName(name)
	if chosen == "" {
		return core.Action{}, false
	}

	// Exact matches first: names that contain one another (MUTE_ROOM vs
	// UNMUTE_ROOM) would otherwise resolve by registration order.
	for _, a := range r.actions {
		if normalizeName(a.Name) == chosen {
			return a, true
		}
	}
	for _, a := range r.actions {
		if namesMatch(normalizeName(a.Name), chosen) {
			return a, true
		}
	}
	for _, a := range r.actions {
		for _, simile := range a.Similes {
			if namesMatch(normalizeName(simile), chosen) {
				return a, true
			}
		}
	}
	return core.Action{}, false
}

// normalizeName lowercases and strips the internal separator so that
// "FOLLOW_ROOM", "follow_room" and "followroom" all compare equal.
func normalizeName(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "")
}

// namesMatch reports bidirectional substring containment of two normalized,
// non-empty names.
func namesMatch(registered, chosen string) bool {
	if registered == "" {
		return false
	}
	return strings.Contains(registered, chosen) || strings.Contains(chosen, registered)
}
