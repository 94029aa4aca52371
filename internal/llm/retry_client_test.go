package llm

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"sage/internal/errors"
)

// flakyClient fails with the scripted errors in order, then succeeds.
type flakyClient struct {
	mu    sync.Mutex
	errs  []error
	calls int
}

func (c *flakyClient) next() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if len(c.errs) == 0 {
		return nil
	}
	err := c.errs[0]
	c.errs = c.errs[1:]
	return err
}

func (c *flakyClient) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func (c *flakyClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if err := c.next(); err != nil {
		return nil, err
	}
	return &ChatResponse{Content: "recovered", FinishReason: "stop"}, nil
}

func (c *flakyClient) ChatStream(ctx context.Context, req *ChatRequest) (<-chan StreamDelta, error) {
	if err := c.next(); err != nil {
		return nil, err
	}
	ch := make(chan StreamDelta, 2)
	ch <- StreamDelta{Content: "recovered"}
	ch <- StreamDelta{Done: true}
	close(ch)
	return ch, nil
}

func (c *flakyClient) Model() string { return "flaky-model" }

func fastRetryConfig() errors.RetryConfig {
	return errors.RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    2 * time.Millisecond,
	}
}

func TestRetryClientRetriesTransientToSuccess(t *testing.T) {
	underlying := &flakyClient{errs: []error{
		errors.NewTransient(fmt.Errorf("upstream hiccup"), 503),
		errors.NewTransient(fmt.Errorf("rate limited"), 429),
	}}
	client := NewRetryClient(underlying, fastRetryConfig())

	resp, err := client.Chat(context.Background(), &ChatRequest{Model: client.Model()})
	if err != nil {
		t.Fatalf("expected recovery after transient failures: %v", err)
	}
	if resp.Content != "recovered" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if underlying.Calls() != 3 {
		t.Fatalf("expected 3 attempts (2 failures + success), got %d", underlying.Calls())
	}
}

func TestRetryClientStopsOnPermanentError(t *testing.T) {
	underlying := &flakyClient{errs: []error{
		errors.NewPermanent(fmt.Errorf("bad request"), 400),
	}}
	client := NewRetryClient(underlying, fastRetryConfig())

	if _, err := client.Chat(context.Background(), &ChatRequest{}); err == nil {
		t.Fatal("expected the permanent error to surface")
	}
	if underlying.Calls() != 1 {
		t.Fatalf("permanent errors must not be retried, got %d attempts", underlying.Calls())
	}
}

func TestRetryClientExhaustsTransientAttempts(t *testing.T) {
	transient := errors.NewTransient(fmt.Errorf("still down"), 503)
	underlying := &flakyClient{errs: []error{transient, transient, transient, transient, transient}}
	client := NewRetryClient(underlying, fastRetryConfig())

	if _, err := client.Chat(context.Background(), &ChatRequest{}); err == nil {
		t.Fatal("expected failure after exhausting retries")
	}
	if underlying.Calls() != 4 {
		t.Fatalf("expected initial attempt + 3 retries, got %d", underlying.Calls())
	}
}

func TestRetryClientRetriesStreamConnection(t *testing.T) {
	underlying := &flakyClient{errs: []error{
		errors.NewTransient(fmt.Errorf("connect reset"), 502),
	}}
	client := NewRetryClient(underlying, fastRetryConfig())

	stream, err := client.ChatStream(context.Background(), &ChatRequest{Stream: true})
	if err != nil {
		t.Fatalf("expected stream to connect on retry: %v", err)
	}
	out, err := CollectStream(stream)
	if err != nil || out != "recovered" {
		t.Fatalf("unexpected stream result %q (%v)", out, err)
	}
	if underlying.Calls() != 2 {
		t.Fatalf("expected 2 connection attempts, got %d", underlying.Calls())
	}
}
