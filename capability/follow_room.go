package capability

import (
	"context"
	"fmt"

	"github.com/famulus-ai/famulus/core"
)

// NewFollowRoomAction returns the action that marks a room as followed: the
// agent will participate eagerly without waiting to be addressed. Valid only
// while the room is not already followed.
func NewFollowRoomAction() core.Action {
	return core.Action{
		Name:        "FOLLOW_ROOM",
		Similes:     []string{"FOLLOW_CHAT", "FOLLOW_CHANNEL", "FOLLOW_CONVERSATION", "follow"},
		Description: "Start following this room and participate without being directly addressed. Use when explicitly asked to pay attention to the conversation.",
		Examples: [][]core.MessageExample{
			{
				{User: "{{user1}}", Content: core.Content{Text: "Stick around for this discussion, we'll need you."}},
				{User: "{{user2}}", Content: core.Content{Text: "I'm following along.", Action: "FOLLOW_ROOM"}},
			},
		},
		Validate: func(ctx context.Context, rt core.Runtime, message *core.Memory, _ *core.State) (bool, error) {
			state, err := rt.Relations().GetParticipantUserState(ctx, message.RoomID, rt.AgentID())
			if err != nil {
				return false, err
			}
			return state != core.UserStateFollowed, nil
		},
		Handler: func(ctx context.Context, rt core.Runtime, message *core.Memory, _ *core.State, _ map[string]any, _ core.HandlerCallback) error {
			if err := rt.Relations().SetParticipantUserState(ctx, message.RoomID, rt.AgentID(), core.UserStateFollowed); err != nil {
				return fmt.Errorf("follow room %s: %w", message.RoomID, err)
			}
			return nil
		},
	}
}

// NewUnfollowRoomAction returns the inverse of FOLLOW_ROOM. Valid only while
// the room is followed.
func NewUnfollowRoomAction() core.Action {
	return core.Action{
		Name:        "UNFOLLOW_ROOM",
		Similes:     []string{"UNFOLLOW_CHAT", "UNFOLLOW_CHANNEL", "UNFOLLOW_CONVERSATION", "unfollow"},
		Description: "Stop following this room; respond only when directly addressed again. Use when asked to step back or when participation is unwelcome.",
		Examples: [][]core.MessageExample{
			{
				{User: "{{user1}}", Content: core.Content{Text: "You can stand down now, thanks."}},
				{User: "{{user2}}", Content: core.Content{Text: "Standing down.", Action: "UNFOLLOW_ROOM"}},
			},
		},
		Validate: func(ctx context.Context, rt core.Runtime, message *core.Memory, _ *core.State) (bool, error) {
			state, err := rt.Relations().GetParticipantUserState(ctx, message.RoomID, rt.AgentID())
			if err != nil {
				return false, err
			}
			return state == core.UserStateFollowed, nil
		},
		Handler: func(ctx context.Context, rt core.Runtime, message *core.Memory, _ *core.State, _ map[string]any, _ core.HandlerCallback) error {
			if err := rt.Relations().SetParticipantUserState(ctx, message.RoomID, rt.AgentID(), ""); err != nil {
				return fmt.Errorf("unfollow room %s: %w", message.RoomID, err)
			}
			return nil
		},
	}
}
