package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"sage/internal/errors"
	"sage/internal/utils"
)

// Config holds the connection settings for an OpenAI-compatible endpoint.
type Config struct {
	BaseURL string            // e.g. https://api.openai.com/v1
	APIKey  string
	Model   string
	Timeout int               // seconds, 0 = 120s default
	Headers map[string]string // extra headers, e.g. for gateways
}

// OpenAIClient talks to any OpenAI-compatible chat completion endpoint
// over plain HTTP, including local inference servers.
type OpenAIClient struct {
	model      string
	apiKey     string
	baseURL    string
	headers    map[string]string
	httpClient *http.Client
	logger     *utils.Logger
}

// NewOpenAIClient constructs a client for the configured endpoint.
func NewOpenAIClient(cfg Config) *OpenAIClient {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	timeout := 120 * time.Second
	if cfg.Timeout > 0 {
		timeout = time.Duration(cfg.Timeout) * time.Second
	}
	return &OpenAIClient{
		model:      cfg.Model,
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		headers:    cfg.Headers,
		httpClient: &http.Client{Timeout: timeout},
		logger:     utils.NewComponentLogger("OpenAIClient"),
	}
}

// Model returns the model identifier used by this client.
func (c *OpenAIClient) Model() string {
	return c.model
}

type wireRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Stream      bool      `json:"stream,omitempty"`
}

type wireResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Usage TokenUsage `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

type wireChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// Chat sends a non-streaming completion request.
func (c *OpenAIClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("request cannot be nil")
	}
	resp, err := c.post(ctx, c.buildWireRequest(req, false))
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, c.statusError(resp)
	}

	var decoded wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if decoded.Error != nil {
		return nil, fmt.Errorf("provider error: %s", decoded.Error.Message)
	}
	if len(decoded.Choices) == 0 {
		return nil, fmt.Errorf("provider returned no choices")
	}
	return &ChatResponse{
		Content:      decoded.Choices[0].Message.Content,
		Model:        decoded.Model,
		FinishReason: decoded.Choices[0].FinishReason,
		Usage:        decoded.Usage,
	}, nil
}

// ChatStream sends a streaming completion request and forwards the SSE
// fragments on the returned channel. The channel is always closed.
func (c *OpenAIClient) ChatStream(ctx context.Context, req *ChatRequest) (<-chan StreamDelta, error) {
	if req == nil {
		return nil, fmt.Errorf("request cannot be nil")
	}
	resp, err := c.post(ctx, c.buildWireRequest(req, true))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		err := c.statusError(resp)
		_ = resp.Body.Close()
		return nil, err
	}

	ch := make(chan StreamDelta, 16)
	go func() {
		defer close(ch)
		defer func() { _ = resp.Body.Close() }()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if payload == "[DONE]" {
				ch <- StreamDelta{Done: true}
				return
			}
			var chunk wireChunk
			if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
				c.logger.Warn("Skipping malformed stream chunk: %v", err)
				continue
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			if content := chunk.Choices[0].Delta.Content; content != "" {
				select {
				case ch <- StreamDelta{Content: content}:
				case <-ctx.Done():
					ch <- StreamDelta{Err: ctx.Err()}
					return
				}
			}
			if chunk.Choices[0].FinishReason != "" {
				ch <- StreamDelta{Done: true}
				return
			}
		}
		if err := scanner.Err(); err != nil {
			ch <- StreamDelta{Err: fmt.Errorf("stream read: %w", err)}
			return
		}
		ch <- StreamDelta{Done: true}
	}()
	return ch, nil
}

func (c *OpenAIClient) buildWireRequest(req *ChatRequest, stream bool) wireRequest {
	model := req.Model
	if model == "" {
		model = c.model
	}
	return wireRequest{
		Model:       model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      stream,
	}
}

func (c *OpenAIClient) post(ctx context.Context, body wireRequest) (*http.Response, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	for k, v := range c.headers {
		httpReq.Header.Set(k, v)
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http post: %w", err)
	}
	return resp, nil
}

func (c *OpenAIClient) statusError(resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	err := fmt.Errorf("provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	return errors.ClassifyHTTPStatus(resp.StatusCode, err)
}
