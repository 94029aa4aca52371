package llm

import (
	"context"
	"fmt"
	"sync"
)

// MockClient implements the Client interface for tests and the demo CLI.
// Responses are consumed in order; the last one repeats. FailFirst makes
// the first N calls fail before responses start flowing, which exercises
// the fallback paths.
type MockClient struct {
	mu        sync.Mutex
	model     string
	Responses []string
	FailFirst int
	calls     int
	requests  []*ChatRequest
}

// NewMockClient builds a mock that cycles through the given responses.
func NewMockClient(model string, responses ...string) *MockClient {
	return &MockClient{model: model, Responses: responses}
}

// Calls reports how many completion calls the mock has served (including
// failed ones).
func (m *MockClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastRequest returns the most recent request, or nil.
func (m *MockClient) LastRequest() *ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return nil
	}
	return m.requests[len(m.requests)-1]
}

func (m *MockClient) next(req *ChatRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.requests = append(m.requests, req)
	if m.calls <= m.FailFirst {
		return "", fmt.Errorf("mock failure %d", m.calls)
	}
	if len(m.Responses) == 0 {
		return "This is a mock response. No actual API calls were made.", nil
	}
	idx := m.calls - m.FailFirst - 1
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	}
	return m.Responses[idx], nil
}

// Chat returns the next scripted response.
func (m *MockClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("request cannot be nil")
	}
	content, err := m.next(req)
	if err != nil {
		return nil, err
	}
	return &ChatResponse{
		Content:      content,
		Model:        m.model,
		FinishReason: "stop",
		Usage: TokenUsage{
			PromptTokens:     100,
			CompletionTokens: 50,
			TotalTokens:      150,
		},
	}, nil
}

// ChatStream returns the next scripted response split into fragments.
func (m *MockClient) ChatStream(ctx context.Context, req *ChatRequest) (<-chan StreamDelta, error) {
	if req == nil {
		return nil, fmt.Errorf("request cannot be nil")
	}
	content, err := m.next(req)
	if err != nil {
		return nil, err
	}

	ch := make(chan StreamDelta, 8)
	go func() {
		defer close(ch)
		runes := []rune(content)
		step := len(runes)/3 + 1
		for start := 0; start < len(runes); start += step {
			end := start + step
			if end > len(runes) {
				end = len(runes)
			}
			select {
			case ch <- StreamDelta{Content: string(runes[start:end])}:
			case <-ctx.Done():
				ch <- StreamDelta{Err: ctx.Err()}
				return
			}
		}
		ch <- StreamDelta{Done: true}
	}()
	return ch, nil
}

// Model returns the mock's model identifier.
func (m *MockClient) Model() string {
	return m.model
}
