// Package token centralizes token estimation for the FOV pipeline. The
// default estimator is the deliberately coarse runes/4 heuristic every
// budget in this module is calibrated against; it is exposed as a
// swappable function value so a real tokenizer can replace it without
// touching budgeting logic. An optional tiktoken-backed estimator is
// provided for callers that want accurate counts and can afford the
// encoding cost.
package token

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Estimator maps text to an estimated token count. Implementations must
// be deterministic and side-effect free.
type Estimator func(text string) int

// Estimate is the default heuristic: runes divided by four, with a floor
// of one token for non-empty text.
func Estimate(text string) int {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0
	}
	estimate := len([]rune(trimmed)) / 4
	if estimate == 0 {
		estimate = 1
	}
	return estimate
}

// Or returns the provided estimator, or the default heuristic when nil.
func Or(est Estimator) Estimator {
	if est != nil {
		return est
	}
	return Estimate
}

var (
	tiktokenOnce sync.Once
	tiktokenEnc  *tiktoken.Tiktoken
)

// NewTiktokenEstimator returns an estimator backed by the cl100k_base
// encoding. When the encoding cannot be initialized (e.g. the embedded
// vocabulary is unavailable) it silently falls back to Estimate, keeping
// the contract that estimation never fails.
func NewTiktokenEstimator() Estimator {
	tiktokenOnce.Do(func() {
		if enc, err := tiktoken.GetEncoding("cl100k_base"); err == nil {
			tiktokenEnc = enc
		}
	})
	if tiktokenEnc == nil {
		return Estimate
	}
	enc := tiktokenEnc
	return func(text string) int {
		return len(enc.Encode(text, nil, nil))
	}
}

// TruncateHead trims text so the estimator stays within maxTokens,
// keeping the beginning. Returns text unchanged when it already fits.
func TruncateHead(text string, maxTokens int, est Estimator) string {
	if maxTokens <= 0 {
		return ""
	}
	est = Or(est)
	if est(text) <= maxTokens {
		return text
	}
	runes := []rune(text)
	// Binary search the longest prefix that still fits.
	lo, hi := 0, len(runes)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if est(string(runes[:mid])) <= maxTokens {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return string(runes[:lo])
}

// TruncateTail trims text so the estimator stays within maxTokens,
// keeping the end (the most recent material).
func TruncateTail(text string, maxTokens int, est Estimator) string {
	if maxTokens <= 0 {
		return ""
	}
	est = Or(est)
	if est(text) <= maxTokens {
		return text
	}
	runes := []rune(text)
	lo, hi := 0, len(runes)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if est(string(runes[len(runes)-mid:])) <= maxTokens {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return string(runes[len(runes)-lo:])
}

// TruncateChars keeps at most limit characters of text, appending an
// ellipsis marker when anything was dropped.
func TruncateChars(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return strings.TrimSpace(string(runes[:limit])) + "…"
}
