package model

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"sync"
)

// Conversation roles used in completion requests.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one role-tagged entry of a completion request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request captures one completion call in the shape of the remote service:
// model identifier, ordered messages, stop sequences, temperature and the
// completion token ceiling.
type Request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Stop        []string  `json:"stop,omitempty"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

// Prompt returns the content of the last user message, which mock
// implementations use as the scripting key.
func (r Request) Prompt() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == RoleUser {
			return r.Messages[i].Content
		}
	}
	return ""
}

// Info contains metadata about a provider implementation.
type Info struct {
	Name              string `json:"name"`
	Provider          string `json:"provider"` // "openai", "anthropic", "mock", etc.
	SupportsEmbedding bool   `json:"supports_embedding"`
}

// Completer is the minimal interface the completion client drives. A single
// call maps to one remote request; retry policy lives a layer above.
type Completer interface {
	// Complete performs one completion call and returns the assistant text.
	Complete(ctx context.Context, req Request) (string, error)

	// Info returns information about the provider implementation.
	Info() Info
}

// Embedder turns text into a vector for similarity search.
type Embedder interface {
	// Embed performs one embedding call for the given input text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Info returns information about the provider implementation.
	Info() Info
}

// MockCompleter is a lightweight in-memory Completer useful for tests and
// examples. Responses are scripted either per prompt or as a FIFO queue;
// queued errors are returned before any scripted response.
type MockCompleter struct {
	mu        sync.Mutex
	info      Info
	responses map[string]string
	queue     []string
	errs      []error
	calls     int
	requests  []Request
}

// NewMockCompleter constructs an empty MockCompleter.
func NewMockCompleter() *MockCompleter {
	return &MockCompleter{
		info:      Info{Name: "mock-completer", Provider: "mock"},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockCompleter) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// QueueResponse appends a completion returned in FIFO order regardless of prompt.
func (m *MockCompleter) QueueResponse(response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, response)
}

// QueueError appends a transport error returned before any scripted response.
func (m *MockCompleter) QueueError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs = append(m.errs, err)
}

// Calls reports how many Complete invocations were made.
func (m *MockCompleter) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastRequest returns the most recent request, or a zero Request.
func (m *MockCompleter) LastRequest() Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return Request{}
	}
	return m.requests[len(m.requests)-1]
}

// Complete implements Completer against the scripted responses.
func (m *MockCompleter) Complete(_ context.Context, req Request) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	m.requests = append(m.requests, req)

	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		return "", err
	}
	if resp, ok := m.responses[req.Prompt()]; ok {
		return resp, nil
	}
	if len(m.queue) > 0 {
		resp := m.queue[0]
		m.queue = m.queue[1:]
		return resp, nil
	}
	return "", fmt.Errorf("mock completer: no scripted response for prompt %q", req.Prompt())
}

// Info implements Completer.
func (m *MockCompleter) Info() Info { return m.info }

// MockEmbedder derives a deterministic unit vector from the input text, so
// identical texts embed identically and tests can count remote calls.
type MockEmbedder struct {
	mu    sync.Mutex
	info  Info
	dim   int
	calls int
}

// NewMockEmbedder constructs a MockEmbedder producing vectors of the given
// dimension (minimum 2).
func NewMockEmbedder(dim int) *MockEmbedder {
	if dim < 2 {
		dim = 2
	}
	return &MockEmbedder{
		info: Info{Name: "mock-embedder", Provider: "mock", SupportsEmbedding: true},
		dim:  dim,
	}
}

// Calls reports how many Embed invocations were made.
func (m *MockEmbedder) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Embed implements Embedder with a hash-seeded deterministic vector.
func (m *MockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, m.dim)
	var norm float64
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		v := float64(int64(seed>>11)) / float64(1<<52)
		vec[i] = float32(v)
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		vec[0] = 1
		return vec, nil
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec, nil
}

// Info implements Embedder.
func (m *MockEmbedder) Info() Info { return m.info }

// Interface compliance checks.
var (
	_ Completer = (*MockCompleter)(nil)
	_ Embedder  = (*MockEmbedder)(nil)
)
