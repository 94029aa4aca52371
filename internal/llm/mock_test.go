package llm

import (
	"context"
	"testing"
)

func TestMockClientStreamConcatenates(t *testing.T) {
	mock := NewMockClient("test-model", "the cell divides during mitosis")
	ch, err := mock.ChatStream(context.Background(), &ChatRequest{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	if err != nil {
		t.Fatalf("ChatStream returned error: %v", err)
	}
	content, err := CollectStream(ch)
	if err != nil {
		t.Fatalf("CollectStream returned error: %v", err)
	}
	if content != "the cell divides during mitosis" {
		t.Fatalf("unexpected concatenated content: %q", content)
	}
	if mock.Calls() != 1 {
		t.Fatalf("expected 1 call, got %d", mock.Calls())
	}
}

func TestMockClientFailFirst(t *testing.T) {
	mock := NewMockClient("test-model", "ok")
	mock.FailFirst = 1

	if _, err := mock.Chat(context.Background(), &ChatRequest{}); err == nil {
		t.Fatal("expected first call to fail")
	}
	resp, err := mock.Chat(context.Background(), &ChatRequest{})
	if err != nil {
		t.Fatalf("second call failed: %v", err)
	}
	if resp.Content != "ok" {
		t.Fatalf("unexpected content: %q", resp.Content)
	}
}

func TestMockClientRepeatsLastResponse(t *testing.T) {
	mock := NewMockClient("test-model", "first", "second")
	ctx := context.Background()
	for _, want := range []string{"first", "second", "second"} {
		resp, err := mock.Chat(ctx, &ChatRequest{})
		if err != nil {
			t.Fatalf("Chat failed: %v", err)
		}
		if resp.Content != want {
			t.Fatalf("expected %q, got %q", want, resp.Content)
		}
	}
}
