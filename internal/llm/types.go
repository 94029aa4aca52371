package llm

import "context"

// Message roles used across the engine.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a role-tagged conversation message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest contains the parameters for one completion call.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Stream      bool      `json:"stream,omitempty"`
}

// TokenUsage tracks token consumption reported by the provider.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResponse is the provider's complete answer.
type ChatResponse struct {
	Content      string     `json:"content"`
	Model        string     `json:"model"`
	FinishReason string     `json:"finish_reason"`
	Usage        TokenUsage `json:"usage"`
}

// StreamDelta is one incremental fragment of a streamed response. The
// channel is closed after the final delta; Err is set on the last delta
// when the stream failed mid-flight.
type StreamDelta struct {
	Content string
	Done    bool
	Err     error
}

// Client represents any LLM text-generation provider. Implementations
// must fail with an error rather than hang silently; callers own the
// context deadline.
type Client interface {
	// Chat sends messages and returns the full response.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// ChatStream sends messages and returns a channel of incremental
	// fragments that the caller concatenates into one final string.
	ChatStream(ctx context.Context, req *ChatRequest) (<-chan StreamDelta, error)

	// Model returns the model identifier
	Model() string
}

// CollectStream drains a delta channel into one string. It returns the
// first error observed on the stream.
func CollectStream(ch <-chan StreamDelta) (string, error) {
	var out []byte
	for delta := range ch {
		if delta.Err != nil {
			return string(out), delta.Err
		}
		out = append(out, delta.Content...)
		if delta.Done {
			break
		}
	}
	return string(out), nil
}
