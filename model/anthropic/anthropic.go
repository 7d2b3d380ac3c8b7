// Package anthropic provides a model.Completer implementation for the
// Anthropic Claude Messages API. Anthropic exposes no embedding endpoint, so
// deployments pair this completer with a separate model.Embedder.
package anthropic

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/famulus-ai/famulus/model"
)

// Options configures the Anthropic adapter (model id, temperature, max
// tokens, API key). Request fields, when set, take precedence over these
// defaults.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Model wraps the Anthropic Messages API behind the generic model.Completer
// interface.
type Model struct {
	client *anthropic.Client
	opts   Options
}

// NewModel creates a new Anthropic model using the official client.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	client := anthropic.NewClient(clientOpts...)
	return &Model{client: &client, opts: opts}
}

// NewModelFromClient creates a new Anthropic model from an existing client.
func NewModelFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

func defaultOptions() Options {
	return Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
}

// Complete implements model.Completer via a non-streaming Messages call.
func (m *Model) Complete(ctx context.Context, req model.Request) (string, error) {
	resp, err := m.client.Messages.New(ctx, m.buildParams(req))
	if err != nil {
		return "", fmt.Errorf("anthropic api error: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.AsText().Text
		}
	}
	if text == "" {
		return "", fmt.Errorf("no text content returned")
	}
	return text, nil
}

// buildParams converts the normalized request into Messages API parameters.
// System messages map onto the dedicated system field; stop sequences map
// onto StopSequences.
func (m *Model) buildParams(req model.Request) anthropic.MessageNewParams {
	modelID := m.opts.Model
	if req.Model != "" {
		modelID = anthropic.Model(req.Model)
	}
	maxTokens := m.opts.MaxTokens
	if req.MaxTokens > 0 {
		maxTokens = int64(req.MaxTokens)
	}
	temperature := m.opts.Temperature
	if req.Temperature > 0 {
		temperature = req.Temperature
	}

	var system []anthropic.TextBlockParam
	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, msg := range req.Messages {
		switch msg.Role {
		case model.RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: msg.Content})
		case model.RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	params := anthropic.MessageNewParams{
		Model:       modelID,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(temperature),
	}
	if len(system) > 0 {
		params.System = system
	}
	if len(req.Stop) > 0 {
		params.StopSequences = req.Stop
	}
	return params
}

// Info returns metadata describing this Anthropic implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:              string(m.opts.Model),
		Provider:          "anthropic",
		SupportsEmbedding: false,
	}
}

// Interface compliance check.
var _ model.Completer = (*Model)(nil)
