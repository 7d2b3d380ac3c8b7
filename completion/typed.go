package completion

import (
	"context"

	"github.com/famulus-ai/famulus/core"
)

// CompleteBoolean asks for a verdict and scans the response for an
// affirmative or negative token. Responses without a verdict are treated as
// parse failures and the remote call is re-issued.
func (c *Client) CompleteBoolean(ctx context.Context, prompt string) (bool, error) {
	var out bool
	err := c.completeTyped(ctx, prompt, "boolean", func(text string) error {
		v, perr := ParseBoolean(text)
		if perr != nil {
			return perr
		}
		out = v
		return nil
	})
	return out, err
}

// CompleteStringArray asks for a JSON array of strings.
func (c *Client) CompleteStringArray(ctx context.Context, prompt string) ([]string, error) {
	var out []string
	err := c.completeTyped(ctx, prompt, "string array", func(text string) error {
		v, perr := ParseStringArray(text)
		if perr != nil {
			return perr
		}
		out = v
		return nil
	})
	return out, err
}

// CompleteObjectArray asks for a JSON array of objects.
func (c *Client) CompleteObjectArray(ctx context.Context, prompt string) ([]map[string]any, error) {
	var out []map[string]any
	err := c.completeTyped(ctx, prompt, "object array", func(text string) error {
		v, perr := ParseObjectArray(text)
		if perr != nil {
			return perr
		}
		out = v
		return nil
	})
	return out, err
}

// CompleteStructuredMessage asks for a message-shaped JSON object carrying
// the speaking user, the response text and an optional action.
func (c *Client) CompleteStructuredMessage(ctx context.Context, prompt string) (*core.StructuredMessage, error) {
	var out *core.StructuredMessage
	err := c.completeTyped(ctx, prompt, "message", func(text string) error {
		v, perr := ParseStructuredMessage(text)
		if perr != nil {
			return perr
		}
		out = v
		return nil
	})
	return out, err
}

// completeTyped re-issues the entire remote call until parse accepts a
// response. The loop has no attempt ceiling of its own: it ends on context
// cancellation, on transport exhaustion inside Complete, or when a
// parse-failure hook aborts. The model may phrase differently on each retry,
// which is the point of re-asking instead of re-parsing.
func (c *Client) completeTyped(ctx context.Context, prompt, kind string, parse func(string) error) error {
	for {
		text, err := c.Complete(ctx, prompt)
		if err != nil {
			return err
		}

		parseErr := parse(text)
		if parseErr == nil {
			return nil
		}

		if err := c.hooks.ExecuteHooks(ctx, HookParseFailure, &HookContext{
			Prompt:   prompt,
			Response: text,
			Kind:     kind,
			Err:      parseErr,
		}); err != nil {
			return err
		}
		c.logger.Warn("Completion response failed to parse, re-asking",
			"kind", kind, "error", parseErr)

		if err := sleep(ctx, c.backoff.Base); err != nil {
			return err
		}
	}
}
