package capability

import (
	"context"
	"fmt"

	"github.com/famulus-ai/famulus/core"
)

// NewMuteRoomAction returns the action that mutes a room: inbound messages
// there are ignored until the room is unmuted. Valid only while the room is
// not already muted.
func NewMuteRoomAction() core.Action {
	return core.Action{
		Name:        "MUTE_ROOM",
		Similes:     []string{"MUTE_CHAT", "MUTE_CHANNEL", "MUTE_CONVERSATION", "mute"},
		Description: "Mute this room and stop responding entirely until unmuted. Use when asked to be quiet or when responses are unwanted.",
		Examples: [][]core.MessageExample{
			{
				{User: "{{user1}}", Content: core.Content{Text: "Please stay quiet in this channel."}},
				{User: "{{user2}}", Content: core.Content{Text: "", Action: "MUTE_ROOM"}},
			},
		},
		Validate: func(ctx context.Context, rt core.Runtime, message *core.Memory, _ *core.State) (bool, error) {
			state, err := rt.Relations().GetParticipantUserState(ctx, message.RoomID, rt.AgentID())
			if err != nil {
				return false, err
			}
			return state != core.UserStateMuted, nil
		},
		Handler: func(ctx context.Context, rt core.Runtime, message *core.Memory, _ *core.State, _ map[string]any, _ core.HandlerCallback) error {
			if err := rt.Relations().SetParticipantUserState(ctx, message.RoomID, rt.AgentID(), core.UserStateMuted); err != nil {
				return fmt.Errorf("mute room %s: %w", message.RoomID, err)
			}
			return nil
		},
	}
}

// NewUnmuteRoomAction returns the inverse of MUTE_ROOM. Valid only while the
// room is muted.
func NewUnmuteRoomAction() core.Action {
	return core.Action{
		Name:        "UNMUTE_ROOM",
		Similes:     []string{"UNMUTE_CHAT", "UNMUTE_CHANNEL", "UNMUTE_CONVERSATION", "unmute"},
		Description: "Unmute this room and start responding again. Use when asked to resume participation.",
		Examples: [][]core.MessageExample{
			{
				{User: "{{user1}}", Content: core.Content{Text: "You can talk again, we need your input."}},
				{User: "{{user2}}", Content: core.Content{Text: "Glad to be back.", Action: "UNMUTE_ROOM"}},
			},
		},
		Validate: func(ctx context.Context, rt core.Runtime, message *core.Memory, _ *core.State) (bool, error) {
			state, err := rt.Relations().GetParticipantUserState(ctx, message.RoomID, rt.AgentID())
			if err != nil {
				return false, err
			}
			return state == core.UserStateMuted, nil
		},
		Handler: func(ctx context.Context, rt core.Runtime, message *core.Memory, _ *core.State, _ map[string]any, _ core.HandlerCallback) error {
			if err := rt.Relations().SetParticipantUserState(ctx, message.RoomID, rt.AgentID(), ""); err != nil {
				return fmt.Errorf("unmute room %s: %w", message.RoomID, err)
			}
			return nil
		},
	}
}
