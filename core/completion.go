package core

import "context"

// StructuredMessage is the parsed shape of a message-format completion: the
// speaking user, the response text and the action the model selected.
type StructuredMessage struct {
	User   string `json:"user"`
	Text   string `json:"text"`
	Action string `json:"action,omitempty"`
}

// CompletionService is the typed completion surface exposed to capabilities.
//
// Complete performs a single logical completion with bounded transport
// retries and fails with a CompletionExhaustedError once the bound is hit.
// The typed variants call Complete and re-issue the entire remote call on a
// parse failure, retrying until the context is cancelled: a model answering
// in the wrong shape is recoverable noise, not an error.
type CompletionService interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteBoolean(ctx context.Context, prompt string) (bool, error)
	CompleteStringArray(ctx context.Context, prompt string) ([]string, error)
	CompleteObjectArray(ctx context.Context, prompt string) ([]map[string]any, error)
	CompleteStructuredMessage(ctx context.Context, prompt string) (*StructuredMessage, error)
}
