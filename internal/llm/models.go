package llm

import "strings"

// DefaultContextWindow is the conservative fallback for model
// identifiers the registry does not know. Small enough to be safe on
// every hosted and local model the tutor is deployed against.
const DefaultContextWindow = 16384

// defaultContextWindows maps model identifier prefixes to context-window
// sizes in tokens. Longest prefix wins.
var defaultContextWindows = map[string]int{
	"gpt-4o":            128000,
	"gpt-4o-mini":       128000,
	"gpt-4-turbo":       128000,
	"gpt-4":             8192,
	"gpt-3.5-turbo":     16385,
	"o1":                200000,
	"o3":                200000,
	"claude-3-5-sonnet": 200000,
	"claude-3-5-haiku":  200000,
	"claude-3-opus":     200000,
	"claude-sonnet-4":   200000,
	"deepseek-chat":     64000,
	"deepseek-reasoner": 64000,
	"qwen2.5":           32768,
	"qwen3":             32768,
	"llama-3.1":         128000,
	"llama3.1":          128000,
	"llama3":            8192,
	"gemma2":            8192,
	"mistral":           32768,
	"phi-3":             4096,
}

// WindowRegistry resolves a model identifier to its context-window size.
type WindowRegistry struct {
	windows  map[string]int
	fallback int
}

// NewWindowRegistry builds a registry from the defaults plus the given
// overrides (override entries win on exact key collisions).
func NewWindowRegistry(overrides map[string]int, fallback int) *WindowRegistry {
	if fallback <= 0 {
		fallback = DefaultContextWindow
	}
	windows := make(map[string]int, len(defaultContextWindows)+len(overrides))
	for k, v := range defaultContextWindows {
		windows[k] = v
	}
	for k, v := range overrides {
		if v > 0 {
			windows[strings.ToLower(k)] = v
		}
	}
	return &WindowRegistry{windows: windows, fallback: fallback}
}

// ContextWindowFor resolves model to a window size: exact match first,
// then the longest matching prefix, then the fallback. Never errors —
// an unknown model must degrade, not abort a session.
func (r *WindowRegistry) ContextWindowFor(model string) int {
	normalized := strings.ToLower(strings.TrimSpace(model))
	if normalized == "" {
		return r.fallback
	}
	if window, ok := r.windows[normalized]; ok {
		return window
	}
	bestLen, bestWindow := 0, 0
	for prefix, window := range r.windows {
		if strings.HasPrefix(normalized, prefix) && len(prefix) > bestLen {
			bestLen, bestWindow = len(prefix), window
		}
	}
	if bestLen > 0 {
		return bestWindow
	}
	return r.fallback
}

var defaultRegistry = NewWindowRegistry(nil, DefaultContextWindow)

// ContextWindowFor resolves model against the built-in registry.
func ContextWindowFor(model string) int {
	return defaultRegistry.ContextWindowFor(model)
}
