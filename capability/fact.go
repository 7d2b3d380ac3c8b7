package capability

import (
	"context"
	"fmt"
	"strings"

	"github.com/famulus-ai/famulus/core"
	"github.com/famulus-ai/famulus/internal/util"
)

// factsTemplate asks the model to extract durable claims from the recent
// conversation, excluding anything already known.
const factsTemplate = `TASK: Extract claims about the participants from the conversation as an array of JSON objects.

Known facts:
{{.recentFacts}}
{{.relevantFacts}}

Recent conversation:
{{.recentMessages}}

Extract durable facts (permanent traits, preferences, circumstances) stated in the conversation. Ignore greetings, opinions about the current exchange and anything already listed above.

Respond with a JSON array of objects of the shape:
[{"claim": "<statement>", "type": "fact" | "opinion" | "status", "in_bio": false, "already_known": false}]

Respond with [] if there is nothing to extract.`

// NewFactEvaluator returns the evaluator that distills durable claims from
// the conversation into the facts namespace. It runs once per half
// conversation window and stores each new claim as a unique memory, so
// repeated claims collapse to one record.
func NewFactEvaluator() core.Evaluator {
	return core.Evaluator{
		Name:        "FACT",
		Similes:     []string{"GET_FACTS", "EXTRACT_FACTS", "REMEMBER_FACTS"},
		Description: "Extract durable facts about the participants from the conversation and store them for later retrieval.",
		Examples: []core.EvaluationExample{
			{
				Context: "Alice and the agent are getting to know each other.",
				Messages: []core.MessageExample{
					{User: "Alice", Content: core.Content{Text: "I moved to Lisbon last spring and started teaching piano."}},
				},
				Outcome: `[{"claim": "Alice lives in Lisbon", "type": "fact", "in_bio": false, "already_known": false}, {"claim": "Alice teaches piano", "type": "fact", "in_bio": false, "already_known": false}]`,
			},
		},
		Validate: func(ctx context.Context, rt core.Runtime, message *core.Memory, _ *core.State) (bool, error) {
			count, err := rt.Messages().CountMemories(ctx, message.RoomID, false)
			if err != nil {
				return false, err
			}
			interval := rt.ConversationLength() / 2
			if interval < 1 {
				interval = 1
			}
			return count%interval == 0, nil
		},
		Handler: func(ctx context.Context, rt core.Runtime, message *core.Memory, state *core.State, _ map[string]any, _ core.HandlerCallback) error {
			if state == nil {
				return nil
			}
			prompt, err := util.RenderTemplate(factsTemplate, state.Values())
			if err != nil {
				return fmt.Errorf("render facts prompt: %w", err)
			}

			claims, err := rt.Completion().CompleteObjectArray(ctx, prompt)
			if err != nil {
				return fmt.Errorf("extract facts: %w", err)
			}

			for _, claim := range claims {
				text, _ := claim["claim"].(string)
				text = strings.TrimSpace(text)
				if text == "" {
					continue
				}
				if kind, _ := claim["type"].(string); kind != "fact" {
					continue
				}
				if known, _ := claim["already_known"].(bool); known {
					continue
				}
				if inBio, _ := claim["in_bio"].(bool); inBio {
					continue
				}

				fact := core.Memory{
					ID:      core.DeterministicID("fact", message.RoomID, text),
					RoomID:  message.RoomID,
					UserID:  message.UserID,
					AgentID: rt.AgentID(),
					Content: core.Content{Text: text},
					Unique:  true,
				}
				if err := rt.Facts().AddEmbedding(ctx, &fact); err != nil {
					return err
				}
				if err := rt.Facts().CreateMemory(ctx, fact); err != nil {
					if core.IsDuplicateID(err) {
						continue // the claim resurfaced, keep the original
					}
					return err
				}
				rt.Logger().Debug("Stored extracted fact", "room_id", message.RoomID, "fact", text)
			}
			return nil
		},
	}
}
