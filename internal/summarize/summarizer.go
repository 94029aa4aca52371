// Package summarize wraps an LLM client with the summarization tasks
// the tutoring engine needs: topic recaps for the episodic buffer,
// conversation digests, compress-to-fit for oversized material, and key
// concept extraction. Every task degrades to plain truncation when the
// provider fails, so callers never see an error become fatal.
package summarize

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/sync/singleflight"

	"sage/internal/llm"
	"sage/internal/observability"
	"sage/internal/token"
	"sage/internal/utils"
)

const (
	// maxInputChars bounds what we send to the provider per request.
	maxInputChars = 6000
	// fallbackChars is how much source text survives when the provider
	// fails and we fall back to truncation.
	fallbackChars = 1000
	// maxKeyConcepts caps concept extraction output.
	maxKeyConcepts = 8

	summaryTemperature = 0.3
	summaryMaxTokens   = 400
)

// Summarizer executes summarization tasks against an LLM client, with a
// fingerprint-keyed cache in front and singleflight collapsing of
// concurrent identical requests.
type Summarizer struct {
	client  llm.Client
	cache   *SummaryCache
	group   singleflight.Group
	est     token.Estimator
	logger  *utils.Logger
	metrics *observability.FOVMetrics
}

// Option configures a Summarizer.
type Option func(*Summarizer)

// WithCache swaps the summary cache (used by tests for clock control).
func WithCache(cache *SummaryCache) Option {
	return func(s *Summarizer) {
		if cache != nil {
			s.cache = cache
		}
	}
}

// WithEstimator swaps the token estimation heuristic.
func WithEstimator(est token.Estimator) Option {
	return func(s *Summarizer) {
		if est != nil {
			s.est = est
		}
	}
}

// WithLogger injects a custom logger.
func WithLogger(logger *utils.Logger) Option {
	return func(s *Summarizer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics allows overriding the metrics recorder.
func WithMetrics(metrics *observability.FOVMetrics) Option {
	return func(s *Summarizer) {
		if metrics != nil {
			s.metrics = metrics
		}
	}
}

// NewSummarizer builds a summarizer over the given client.
func NewSummarizer(client llm.Client, opts ...Option) *Summarizer {
	s := &Summarizer{
		client:  client,
		cache:   NewSummaryCache(),
		est:     token.Estimate,
		logger:  utils.NewComponentLogger("Summarizer"),
		metrics: observability.NewFOVMetrics(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// SummarizeTopicContent produces a short recap of one topic's material,
// suitable for the episodic buffer's "Topics Covered" list.
func (s *Summarizer) SummarizeTopicContent(ctx context.Context, title, content string) string {
	prompt := fmt.Sprintf("Summarize the key points of the lesson topic %q in 2-3 sentences, "+
		"focusing on what a student should remember:\n\n%s", title, clip(content))
	return s.summarize(ctx, "topic", title+"\n"+content, prompt, content)
}

// SummarizeTurns digests a stretch of conversation into a few sentences
// covering what was discussed and where the student struggled.
func (s *Summarizer) SummarizeTurns(ctx context.Context, turns []llm.Message) string {
	if len(turns) == 0 {
		return ""
	}
	var b strings.Builder
	for _, turn := range turns {
		label := "Tutor"
		if turn.Role == llm.RoleUser {
			label = "Student"
		}
		fmt.Fprintf(&b, "%s: %s\n", label, turn.Content)
	}
	transcript := b.String()
	prompt := "Summarize this tutoring exchange in 2-3 sentences. Note what was discussed " +
		"and anything the student found difficult:\n\n" + clip(transcript)
	return s.summarize(ctx, "turns", transcript, prompt, transcript)
}

// CompressToFit rewrites text to fit within targetTokens. Text that
// already fits is returned unchanged without touching the provider.
// Mild overruns get a light condensation prompt; anything needing more
// than a 2x reduction gets an aggressive one. The result is clamped to
// the target regardless of what the provider returns.
func (s *Summarizer) CompressToFit(ctx context.Context, text string, targetTokens int) string {
	if targetTokens <= 0 {
		return ""
	}
	current := s.est(text)
	if current <= targetTokens {
		return text
	}

	var prompt string
	if ratio := float64(targetTokens) / float64(current); ratio > 0.5 {
		prompt = fmt.Sprintf("Condense the following text to roughly %d words, keeping all "+
			"key facts and terminology:\n\n%s", targetTokens*3/4, clip(text))
	} else {
		prompt = fmt.Sprintf("Aggressively compress the following text to at most %d words. "+
			"Keep only the essential concepts, drop examples and asides:\n\n%s", targetTokens/2, clip(text))
	}
	out := s.summarize(ctx, "compress", fmt.Sprintf("%d\n%s", targetTokens, text), prompt, text)
	return token.TruncateHead(out, targetTokens, s.est)
}

// ExtractKeyConcepts pulls the main terms out of topic content, capped
// at eight. Provider failure yields an empty slice rather than a
// truncated blob.
func (s *Summarizer) ExtractKeyConcepts(ctx context.Context, content string) []string {
	prompt := "List the key concepts in the following material, one per line, " +
		"most important first. No numbering, no commentary:\n\n" + clip(content)
	raw, err := s.complete(ctx, prompt)
	if err != nil {
		s.logger.Warn("Key concept extraction failed: %v", err)
		return nil
	}
	var concepts []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "-*• \t"))
		if line == "" {
			continue
		}
		concepts = append(concepts, line)
		if len(concepts) == maxKeyConcepts {
			break
		}
	}
	return concepts
}

// Condense merges several already-short topic summaries into one
// paragraph. This is the capability cascade compression consumes; it
// reports an error only when even the truncation fallback has nothing
// to offer.
func (s *Summarizer) Condense(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("nothing to condense")
	}
	prompt := "Merge these topic recaps into one short paragraph covering what was " +
		"learned across all of them:\n\n" + clip(text)
	return s.summarize(ctx, "condense", text, prompt, text), nil
}

// summarize runs one cached summarization task. Concurrent callers with
// the same fingerprint share a single provider round-trip. On provider
// failure the source text is truncated in place of a summary; input is
// used for the cache key only and may carry task parameters.
func (s *Summarizer) summarize(ctx context.Context, task, input, prompt, source string) string {
	key := fingerprint(task, input)
	if cached, ok := s.cache.Get(key); ok {
		s.metrics.RecordCacheHit()
		return cached
	}
	s.metrics.RecordCacheMiss()

	out, err, _ := s.group.Do(key, func() (interface{}, error) {
		if cached, ok := s.cache.Get(key); ok {
			return cached, nil
		}
		result, err := s.complete(ctx, prompt)
		if err != nil {
			return nil, err
		}
		s.cache.Put(key, result)
		return result, nil
	})
	if err != nil {
		s.metrics.RecordSummaryFallback()
		s.logger.Warn("Summarization task %q failed, falling back to truncation: %v", task, err)
		return token.TruncateChars(strings.TrimSpace(source), fallbackChars)
	}
	return out.(string)
}

func (s *Summarizer) complete(ctx context.Context, prompt string) (string, error) {
	if s.client == nil {
		return "", fmt.Errorf("no llm client configured")
	}
	stream, err := s.client.ChatStream(ctx, &llm.ChatRequest{
		Model: s.client.Model(),
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: "You are a concise summarizer for an educational tutoring system."},
			{Role: llm.RoleUser, Content: prompt},
		},
		Temperature: summaryTemperature,
		MaxTokens:   summaryMaxTokens,
		Stream:      true,
	})
	if err != nil {
		return "", err
	}
	result, err := llm.CollectStream(stream)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(result), nil
}

func clip(text string) string {
	return token.TruncateChars(strings.TrimSpace(text), maxInputChars)
}

// fingerprint derives the cache key from the task name and the
// whitespace-normalized input, so formatting-only differences still hit.
func fingerprint(task, input string) string {
	normalized := strings.Join(strings.Fields(input), " ")
	sum := sha256.Sum256([]byte(task + "\x00" + normalized))
	return task + ":" + hex.EncodeToString(sum[:16])
}
