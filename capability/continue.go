package capability

import (
	"context"
	"fmt"

	"github.com/famulus-ai/famulus/core"
	"github.com/famulus-ai/famulus/internal/util"
)

// maxContinuesInARow bounds chained continuations so the agent cannot talk
// to itself indefinitely.
const maxContinuesInARow = 3

// continueDecisionTemplate gates the continuation on a boolean completion:
// the model judges whether the last response left a thought unfinished.
const continueDecisionTemplate = `{{.agentName}} has just responded in the conversation below.

{{.recentMessages}}

Should {{.agentName}} keep talking to finish an incomplete thought? Answer YES only if the last response clearly trails off or promised more. Answer NO if the response stands on its own or it is the user's turn. Respond with YES or NO.`

// continueMessageTemplate produces the continuation itself.
const continueMessageTemplate = `# Task: Continue the previous response as {{.agentName}}.

About {{.agentName}}:
{{.bio}}

{{.recentMessages}}

Write the next part of {{.agentName}}'s unfinished thought. Respond with a JSON object of the shape {"user": "{{.agentName}}", "text": "<continuation>", "action": "NONE"}.`

// NewContinueAction returns the action that lets the agent keep talking when
// its previous response trailed off. The handler is gated by a boolean
// completion and the continuation is persisted like any other agent message.
func NewContinueAction() core.Action {
	return core.Action{
		Name:        "CONTINUE",
		Similes:     []string{"ELABORATE", "KEEP_TALKING", "GO_ON"},
		Description: "Continue the previous message when a thought is unfinished. Never use more than twice in a row.",
		Examples: [][]core.MessageExample{
			{
				{User: "{{user1}}", Content: core.Content{Text: "Tell me about the expedition."}},
				{User: "{{user2}}", Content: core.Content{Text: "We set out at dawn with three sleds.", Action: "CONTINUE"}},
				{User: "{{user2}}", Content: core.Content{Text: "By noon the ice had turned against us.", Action: "NONE"}},
			},
		},
		Validate: func(ctx context.Context, rt core.Runtime, message *core.Memory, _ *core.State) (bool, error) {
			recent, err := rt.Messages().GetMemories(ctx, core.MemoryQuery{
				RoomID: message.RoomID,
				Count:  maxContinuesInARow,
			})
			if err != nil {
				return false, err
			}
			// Invalid once the newest messages are an unbroken run of agent
			// continuations.
			continues := 0
			for _, m := range recent {
				if m.UserID != rt.AgentID() || m.Content.Action != "CONTINUE" {
					break
				}
				continues++
			}
			return continues < maxContinuesInARow, nil
		},
		Handler: func(ctx context.Context, rt core.Runtime, message *core.Memory, state *core.State, _ map[string]any, callback core.HandlerCallback) error {
			if state == nil {
				return nil
			}
			values := state.Values()

			decisionPrompt, err := util.RenderTemplate(continueDecisionTemplate, values)
			if err != nil {
				return fmt.Errorf("render continue decision prompt: %w", err)
			}
			proceed, err := rt.Completion().CompleteBoolean(ctx, decisionPrompt)
			if err != nil {
				return fmt.Errorf("continue decision: %w", err)
			}
			if !proceed {
				return nil
			}

			prompt, err := util.RenderTemplate(continueMessageTemplate, values)
			if err != nil {
				return fmt.Errorf("render continue prompt: %w", err)
			}
			response, err := rt.Completion().CompleteStructuredMessage(ctx, prompt)
			if err != nil {
				return fmt.Errorf("continue completion: %w", err)
			}

			continuation := core.NewMemory(message.RoomID, rt.AgentID(), rt.AgentID(), core.Content{
				Text:      response.Text,
				Action:    "CONTINUE",
				InReplyTo: message.ID,
			})
			if err := rt.Messages().AddEmbedding(ctx, &continuation); err != nil {
				return err
			}
			if err := rt.Messages().CreateMemory(ctx, continuation); err != nil {
				return err
			}
			if callback != nil {
				return callback(ctx, continuation.Content)
			}
			return nil
		},
	}
}
