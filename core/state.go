package core

// State is the ephemeral context snapshot composed for a single request. It
// holds formatted text blocks next to the raw data arrays backing them, plus
// caller-supplied extra values. A snapshot is never persisted and should be
// treated as immutable once composed; the composer returns a fresh snapshot
// (or a refreshed copy) rather than mutating one in place.
type State struct {
	AgentID    string
	AgentName  string
	SenderName string
	RoomID     string

	// Persona blocks sampled from the character definition.
	Bio               string
	Lore              string
	Topics            string
	Adjective         string
	MessageDirections string
	PostDirections    string
	MessageExamples   string
	PostExamples      string

	// Formatted blocks and their backing data.
	Actors             string
	ActorsData         []Actor
	RecentMessages     string
	RecentMessagesData []Memory
	RecentFacts        string
	RecentFactsData    []Memory
	RelevantFacts      string
	RelevantFactsData  []Memory
	RelevantLore       string
	RelevantLoreData   []Memory
	Goals              string
	GoalsData          []Goal
	Attachments        string

	// Capability catalogs exposed to the model.
	ActionNames       string
	Actions           string
	ActionExamples    string
	ActionsData       []Action
	EvaluatorNames    string
	Evaluators        string
	EvaluatorExamples string
	EvaluatorsData    []Evaluator
	Providers         string

	// Extra carries caller-supplied overrides. On name collision an extra
	// value always wins over the computed field in Values and Value lookups.
	Extra map[string]any
}

// Values flattens the snapshot into the template value map. Keys mirror the
// prompt placeholder names; Extra entries override computed fields.
func (s *State) Values() map[string]any {
	v := map[string]any{
		"agentId":            s.AgentID,
		"agentName":          s.AgentName,
		"senderName":         s.SenderName,
		"roomId":             s.RoomID,
		"bio":                s.Bio,
		"lore":               s.Lore,
		"topics":             s.Topics,
		"adjective":          s.Adjective,
		"messageDirections":  s.MessageDirections,
		"postDirections":     s.PostDirections,
		"messageExamples":    s.MessageExamples,
		"postExamples":       s.PostExamples,
		"actors":             s.Actors,
		"recentMessages":     s.RecentMessages,
		"recentFacts":        s.RecentFacts,
		"relevantFacts":      s.RelevantFacts,
		"relevantLore":       s.RelevantLore,
		"goals":              s.Goals,
		"attachments":        s.Attachments,
		"actionNames":        s.ActionNames,
		"actions":            s.Actions,
		"actionExamples":     s.ActionExamples,
		"evaluatorNames":     s.EvaluatorNames,
		"evaluators":         s.Evaluators,
		"evaluatorExamples":  s.EvaluatorExamples,
		"providers":          s.Providers,
	}
	for k, val := range s.Extra {
		v[k] = val
	}
	return v
}

// Value looks up a single key with the same override semantics as Values.
func (s *State) Value(key string) (any, bool) {
	if val, ok := s.Extra[key]; ok {
		return val, true
	}
	val, ok := s.Values()[key]
	return val, ok
}

// Clone returns a shallow copy with an independent Extra map, used by the
// incremental recent-message refresh so the original snapshot stays intact.
func (s *State) Clone() *State {
	cp := *s
	if s.Extra != nil {
		cp.Extra = make(map[string]any, len(s.Extra))
		for k, v := range s.Extra {
			cp.Extra[k] = v
		}
	}
	return &cp
}
