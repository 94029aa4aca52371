package llm

import (
	"context"

	"sage/internal/errors"
	"sage/internal/utils"
)

// retryClient wraps an LLM client with exponential-backoff retries.
// Streams are retried only up to the point of connection; once fragments
// are flowing the caller sees mid-stream errors directly.
type retryClient struct {
	underlying Client
	config     errors.RetryConfig
	logger     *utils.Logger
}

// NewRetryClient decorates client with retry logic for transient failures.
func NewRetryClient(client Client, config errors.RetryConfig) Client {
	return &retryClient{
		underlying: client,
		config:     config,
		logger:     utils.NewComponentLogger("llm-retry"),
	}
}

func (c *retryClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	var resp *ChatResponse
	err := errors.RetryWithLog(ctx, c.config, func(ctx context.Context) error {
		var callErr error
		resp, callErr = c.underlying.Chat(ctx, req)
		return callErr
	}, c.logger)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *retryClient) ChatStream(ctx context.Context, req *ChatRequest) (<-chan StreamDelta, error) {
	var ch <-chan StreamDelta
	err := errors.RetryWithLog(ctx, c.config, func(ctx context.Context) error {
		var callErr error
		ch, callErr = c.underlying.ChatStream(ctx, req)
		return callErr
	}, c.logger)
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func (c *retryClient) Model() string {
	return c.underlying.Model()
}
