package capability

import (
	"context"

	"github.com/famulus-ai/famulus/core"
)

// NewNoneAction returns the default action: respond in text and do nothing
// else. It is always valid so the model always has a safe choice.
func NewNoneAction() core.Action {
	return core.Action{
		Name:        "NONE",
		Similes:     []string{"NO_ACTION", "NO_RESPONSE", "NOTHING"},
		Description: "Respond with the message text only and take no additional action. Use when no other action applies.",
		Examples: [][]core.MessageExample{
			{
				{User: "{{user1}}", Content: core.Content{Text: "What do you think about the weather today?"}},
				{User: "{{user2}}", Content: core.Content{Text: "Crisp and clear, perfect for a walk.", Action: "NONE"}},
			},
		},
		Validate: func(context.Context, core.Runtime, *core.Memory, *core.State) (bool, error) {
			return true, nil
		},
		Handler: func(context.Context, core.Runtime, *core.Memory, *core.State, map[string]any, core.HandlerCallback) error {
			return nil
		},
	}
}

// NewIgnoreAction returns the action for deliberately ending or ignoring a
// conversation: the response is recorded but nothing is sent onward.
func NewIgnoreAction() core.Action {
	return core.Action{
		Name:        "IGNORE",
		Similes:     []string{"STOP_TALKING", "STOP_CHATTING", "STOP_CONVERSATION"},
		Description: "Ignore the user and end the exchange. Use when the user is aggressive or the conversation has naturally concluded.",
		Examples: [][]core.MessageExample{
			{
				{User: "{{user1}}", Content: core.Content{Text: "Go away, bot."}},
				{User: "{{user2}}", Content: core.Content{Text: "", Action: "IGNORE"}},
			},
		},
		Validate: func(context.Context, core.Runtime, *core.Memory, *core.State) (bool, error) {
			return true, nil
		},
		Handler: func(context.Context, core.Runtime, *core.Memory, *core.State, map[string]any, core.HandlerCallback) error {
			return nil
		},
	}
}
