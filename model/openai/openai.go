// Package openai provides implementations of model.Completer and
// model.Embedder using the OpenAI Chat Completions and Embeddings APIs. It
// adapts Famulus' normalized request structure into the SDK's message format
// and back.
package openai

import (
	"context"
	"fmt"

	"github.com/famulus-ai/famulus/model"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Options configure the OpenAI adapter. Fields mirror a subset of Chat
// Completion parameters intentionally kept minimal; extend via functional
// options without breaking callers. Request fields, when set, take precedence
// over these defaults.
type Options struct {
	Model          string
	EmbeddingModel string
	Temperature    float64
	MaxTokens      int64
	APIKey         string
	BaseURL        string
}

// Model wraps the OpenAI API behind the generic model.Completer and
// model.Embedder interfaces.
type Model struct {
	client *openai.Client
	opts   Options
}

// NewModel creates a new OpenAI model using the official client.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}

	client := openai.NewClient(clientOpts...)
	return &Model{client: &client, opts: opts}
}

// NewModelFromClient creates a new OpenAI model from an existing client.
func NewModelFromClient(client *openai.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

func defaultOptions() Options {
	return Options{
		Model:          openai.ChatModelGPT4oMini,
		EmbeddingModel: openai.EmbeddingModelTextEmbedding3Small,
		Temperature:    0.7,
		MaxTokens:      4096,
	}
}

// Complete implements model.Completer via a non-streaming chat completion.
func (m *Model) Complete(ctx context.Context, req model.Request) (string, error) {
	resp, err := m.client.Chat.Completions.New(ctx, m.buildParams(req))
	if err != nil {
		return "", fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// Embed implements model.Embedder via the Embeddings API.
func (m *Model) Embed(ctx context.Context, text string) ([]float32, error) {
	params := openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(m.opts.EmbeddingModel),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: []string{text},
		},
	}

	resp, err := m.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}

	raw := resp.Data[0].Embedding
	vec := make([]float32, len(raw))
	for i, v := range raw {
		vec[i] = float32(v)
	}
	return vec, nil
}

// buildParams converts the normalized request into SDK parameters. Request
// fields win over adapter defaults so the completion client stays the single
// source of per-call policy.
func (m *Model) buildParams(req model.Request) openai.ChatCompletionNewParams {
	modelID := m.opts.Model
	if req.Model != "" {
		modelID = req.Model
	}
	maxTokens := m.opts.MaxTokens
	if req.MaxTokens > 0 {
		maxTokens = int64(req.MaxTokens)
	}
	temperature := m.opts.Temperature
	if req.Temperature > 0 {
		temperature = req.Temperature
	}

	params := openai.ChatCompletionNewParams{
		Model:       modelID,
		Messages:    buildMessages(req.Messages),
		Temperature: openai.Float(temperature),
		MaxTokens:   openai.Int(maxTokens),
	}
	if len(req.Stop) > 0 {
		params.Stop = openai.ChatCompletionNewParamsStopUnion{
			OfStringArray: req.Stop,
		}
	}
	return params
}

// buildMessages converts normalized messages into OpenAI chat messages.
func buildMessages(messages []model.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			out = append(out, openai.SystemMessage(msg.Content))
		case model.RoleAssistant:
			out = append(out, openai.AssistantMessage(msg.Content))
		default:
			out = append(out, openai.UserMessage(msg.Content))
		}
	}
	return out
}

// Info returns metadata describing this OpenAI implementation.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:              m.opts.Model,
		Provider:          "openai",
		SupportsEmbedding: true,
	}
}

// Interface compliance checks.
var (
	_ model.Completer = (*Model)(nil)
	_ model.Embedder  = (*Model)(nil)
)
