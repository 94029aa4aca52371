package llm

import "testing"

func TestContextWindowForExactMatch(t *testing.T) {
	if got := ContextWindowFor("gpt-4o"); got != 128000 {
		t.Fatalf("expected 128000 for gpt-4o, got %d", got)
	}
}

func TestContextWindowForLongestPrefixWins(t *testing.T) {
	// gpt-4o-mini-2024-07-18 matches both gpt-4 and gpt-4o-mini; the
	// longer prefix must win.
	if got := ContextWindowFor("gpt-4o-mini-2024-07-18"); got != 128000 {
		t.Fatalf("expected 128000 via gpt-4o-mini prefix, got %d", got)
	}
	if got := ContextWindowFor("gpt-4-0613"); got != 8192 {
		t.Fatalf("expected 8192 via gpt-4 prefix, got %d", got)
	}
}

func TestContextWindowForUnknownModelFallsBack(t *testing.T) {
	if got := ContextWindowFor("totally-unknown-model"); got != DefaultContextWindow {
		t.Fatalf("expected conservative default %d, got %d", DefaultContextWindow, got)
	}
	if got := ContextWindowFor(""); got != DefaultContextWindow {
		t.Fatalf("expected default for empty model, got %d", got)
	}
}

func TestWindowRegistryOverrides(t *testing.T) {
	reg := NewWindowRegistry(map[string]int{"tutor-local": 4096}, 2048)
	if got := reg.ContextWindowFor("tutor-local"); got != 4096 {
		t.Fatalf("expected override 4096, got %d", got)
	}
	if got := reg.ContextWindowFor("mystery"); got != 2048 {
		t.Fatalf("expected fallback 2048, got %d", got)
	}
}
