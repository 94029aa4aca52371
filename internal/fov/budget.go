// Package fov implements the four-tier foveated context strategy for
// the tutoring agent: an Immediate / Working / Episodic / Semantic
// buffer hierarchy, a token budget planner that partitions a model's
// context window across the tiers, and the assembler that composes the
// per-turn context payload under a single lock.
package fov

// Tier is a coarse classification of a model's context-window size used
// to pick budget ratios.
type Tier int

const (
	TierSmall Tier = iota
	TierMedium
	TierLarge
	TierXLarge
)

func (t Tier) String() string {
	switch t {
	case TierSmall:
		return "small"
	case TierMedium:
		return "medium"
	case TierLarge:
		return "large"
	case TierXLarge:
		return "xlarge"
	default:
		return "unknown"
	}
}

// Tier thresholds in tokens. 128k-class models land in xlarge.
const (
	tierMediumFloor = 8_000
	tierLargeFloor  = 32_000
	tierXLargeFloor = 100_000
)

// Share of the window reserved for the response; the rest is usable
// context.
const usablePercent = 75

// Section shares of the usable window, in percent. They sum to 100 and
// integer division guarantees the four sub-budgets never exceed the
// usable window.
const (
	immediatePercent = 35
	workingPercent   = 30
	episodicPercent  = 20
	semanticPercent  = 15
)

// Turn retention derivation: one verbatim turn is worth roughly
// turnCostTokens of the immediate budget, clamped to a sane range.
const (
	turnCostTokens   = 150
	minTurnRetention = 2
	maxTurnRetention = 24
)

// TokenBudget is the per-tier capacity split for one context window.
// Immutable value; recomputed and replaced wholesale when the active
// model changes.
type TokenBudget struct {
	Tier          Tier
	ContextWindow int
	Immediate     int
	Working       int
	Episodic      int
	Semantic      int
	TurnRetention int
}

// Total returns the sum of the four sub-budgets.
func (b TokenBudget) Total() int {
	return b.Immediate + b.Working + b.Episodic + b.Semantic
}

// ClassifyWindow maps a context-window size onto a tier.
func ClassifyWindow(contextWindow int) Tier {
	switch {
	case contextWindow >= tierXLargeFloor:
		return TierXLarge
	case contextWindow >= tierLargeFloor:
		return TierLarge
	case contextWindow >= tierMediumFloor:
		return TierMedium
	default:
		return TierSmall
	}
}

// PlanBudget derives a TokenBudget from a model's context-window size.
// Non-positive windows are treated as the conservative small-tier
// minimum rather than erroring; a tutoring session must always get a
// workable budget.
func PlanBudget(contextWindow int) TokenBudget {
	if contextWindow <= 0 {
		contextWindow = 4096
	}
	usable := contextWindow * usablePercent / 100

	budget := TokenBudget{
		Tier:          ClassifyWindow(contextWindow),
		ContextWindow: contextWindow,
		Immediate:     usable * immediatePercent / 100,
		Working:       usable * workingPercent / 100,
		Episodic:      usable * episodicPercent / 100,
		Semantic:      usable * semanticPercent / 100,
	}

	retention := budget.Immediate / turnCostTokens
	if retention < minTurnRetention {
		retention = minTurnRetention
	}
	if retention > maxTurnRetention {
		retention = maxTurnRetention
	}
	budget.TurnRetention = retention
	return budget
}
