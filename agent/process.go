package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/famulus-ai/famulus/core"
	"github.com/famulus-ai/famulus/internal/util"
	"github.com/famulus-ai/famulus/token"
)

// messageHandlerTemplate is the default response prompt. Every placeholder
// resolves against the composed state snapshot; callers can swap the whole
// template via Options.MessageTemplate.
const messageHandlerTemplate = `# Task: Generate a reply in the voice and style of {{.agentName}}.

About {{.agentName}}:
{{.bio}}

{{.lore}}

{{.providers}}

{{.attachments}}

# Goals for {{.agentName}}:
{{.goals}}

# Known facts:
{{.recentFacts}}
{{.relevantFacts}}

# Actors in the conversation:
{{.actors}}

{{.messageDirections}}

{{.messageExamples}}

# Available actions: {{.actionNames}}
{{.actions}}

{{.recentMessages}}

# Instructions: Write the next message for {{.agentName}}. Include the name of an available action if one applies, or "NONE" otherwise. Respond with a JSON object of the shape {"user": "{{.agentName}}", "text": "<reply>", "action": "<action name>"}.`

// ProcessMessage runs the full inbound pipeline for one user message:
// identity and room bootstrap, persistence, state composition, completion,
// response persistence, action dispatch and evaluation. Returns the persisted
// response memory, or nil when the message was skipped (duplicate delivery or
// a muted room).
//
// The callback, when non-nil, receives the response content and anything
// actions emit afterwards; connectors use it to deliver text to their
// transport.
func (r *Runtime) ProcessMessage(ctx context.Context, message core.Memory, callback core.HandlerCallback) (*core.Memory, error) {
	if message.RoomID == "" || message.UserID == "" {
		return nil, fmt.Errorf("process message: room and user ids are required")
	}

	if err := r.EnsureConnection(ctx, message.UserID, message.RoomID, "", ""); err != nil {
		return nil, err
	}

	muted, err := r.mutedAndUnaddressed(ctx, message)
	if err != nil {
		return nil, err
	}
	if muted {
		r.logger.Debug("Ignoring message in muted room", "room_id", message.RoomID)
		return nil, nil
	}

	if message.ID == "" {
		message.ID = core.DeterministicID("message", message.RoomID, message.UserID, message.Content.Text)
	}
	message.AgentID = r.agentID
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}

	if err := r.Messages().AddEmbedding(ctx, &message); err != nil {
		return nil, fmt.Errorf("embed message: %w", err)
	}
	if err := r.Messages().CreateMemory(ctx, message); err != nil {
		if core.IsDuplicateID(err) {
			// Redelivery of an already processed message is a no-op.
			r.logger.Debug("Skipping duplicate message", "message_id", message.ID)
			return nil, nil
		}
		return nil, fmt.Errorf("store message: %w", err)
	}

	snapshot, err := r.ComposeState(ctx, &message, nil)
	if err != nil {
		return nil, err
	}

	prompt, err := util.RenderTemplate(r.msgPrompt, snapshot.Values())
	if err != nil {
		return nil, fmt.Errorf("render prompt: %w", err)
	}
	// The cached count decides whether trimming is needed at all; repeated
	// prompts over the same context skip the encode entirely.
	promptTokens, err := r.counts.Count(prompt)
	if err != nil {
		return nil, err
	}
	if promptTokens > r.maxInput {
		prompt, err = token.TruncateToBudget(r.codec, prompt, r.maxInput)
		if err != nil {
			return nil, err
		}
	}

	reply, err := r.client.CompleteStructuredMessage(ctx, prompt)
	if err != nil {
		return nil, err
	}

	response := core.Memory{
		ID:      core.DeterministicID(message.ID, "response"),
		RoomID:  message.RoomID,
		UserID:  r.agentID,
		AgentID: r.agentID,
		Content: core.Content{
			Text:      reply.Text,
			Action:    reply.Action,
			InReplyTo: message.ID,
		},
	}
	if err := r.Messages().AddEmbedding(ctx, &response); err != nil {
		return nil, fmt.Errorf("embed response: %w", err)
	}
	if err := r.Messages().CreateMemory(ctx, response); err != nil && !core.IsDuplicateID(err) {
		return nil, fmt.Errorf("store response: %w", err)
	}

	snapshot, err = r.UpdateRecentMessageState(ctx, snapshot)
	if err != nil {
		return nil, err
	}

	if callback != nil {
		if err := callback(ctx, response.Content); err != nil {
			return nil, fmt.Errorf("response callback: %w", err)
		}
	}

	if err := r.dispatch.ProcessAction(ctx, r, &message, &response, snapshot, callback); err != nil {
		return nil, err
	}
	if _, err := r.dispatch.Evaluate(ctx, r, &message, snapshot, callback); err != nil {
		return nil, err
	}

	return &response, nil
}

// mutedAndUnaddressed reports whether the agent is muted in the message's
// room and the message does not address it by name. Addressed messages get
// through so an unmute request still reaches the model.
func (r *Runtime) mutedAndUnaddressed(ctx context.Context, message core.Memory) (bool, error) {
	userState, err := r.store.GetParticipantUserState(ctx, message.RoomID, r.agentID)
	if err != nil {
		return false, fmt.Errorf("participant state for room %s: %w", message.RoomID, err)
	}
	if userState != core.UserStateMuted {
		return false, nil
	}
	return !strings.Contains(
		strings.ToLower(message.Content.Text),
		strings.ToLower(r.char.Name),
	), nil
}
