// Package expansion widens the tutor's context on demand. When a
// generated answer sounds unsure, the coordinator searches the
// curriculum — current topic first, then neighboring topics, then the
// whole course — and feeds the best matches back into the working
// buffer as retrieval snippets for the next turn.
package expansion

import (
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"sage/internal/confidence"
	"sage/internal/curriculum"
	"sage/internal/fov"
	"sage/internal/llm"
	"sage/internal/observability"
	"sage/internal/utils"
)

const (
	expansionCacheSize = 64
	expansionCacheTTL  = 5 * time.Minute

	// topicSegmentLimit caps how many transcript segments a
	// current-topic search concatenates into its single result.
	topicSegmentLimit = 3
	// curriculumScanLimit bounds how many topics a full-curriculum
	// search scans; curriculumKeepLimit caps its results.
	curriculumScanLimit = 10
	curriculumKeepLimit = 5

	prevTopicRelevance  = 0.8
	nextTopicRelevance  = 0.7
	curriculumRelevance = 0.6
)

// Result is one retrieved piece of curriculum content.
type Result struct {
	Title     string
	Content   string
	Relevance float64
}

// Coordinator ties the assembler, the confidence analyzer, and the
// curriculum together into the per-turn foveation loop.
type Coordinator struct {
	assembler *fov.Assembler
	provider  curriculum.Provider
	analyzer  confidence.Analyzer
	enabled   atomic.Bool
	cache     *expirable.LRU[string, string]
	logger    *utils.Logger
	metrics   *observability.FOVMetrics
}

// Option configures the coordinator.
type Option func(*Coordinator)

// WithAnalyzer swaps the confidence analyzer.
func WithAnalyzer(analyzer confidence.Analyzer) Option {
	return func(c *Coordinator) {
		if analyzer != nil {
			c.analyzer = analyzer
		}
	}
}

// WithLogger injects a custom logger.
func WithLogger(logger *utils.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics allows overriding the metrics recorder.
func WithMetrics(metrics *observability.FOVMetrics) Option {
	return func(c *Coordinator) {
		if metrics != nil {
			c.metrics = metrics
		}
	}
}

// Disabled starts the coordinator in passthrough mode.
func Disabled() Option {
	return func(c *Coordinator) {
		c.enabled.Store(false)
	}
}

// NewCoordinator builds a coordinator over an assembler and a
// curriculum provider.
func NewCoordinator(assembler *fov.Assembler, provider curriculum.Provider, opts ...Option) *Coordinator {
	c := &Coordinator{
		assembler: assembler,
		provider:  provider,
		analyzer:  confidence.NewLexicalAnalyzer(),
		cache:     expirable.NewLRU[string, string](expansionCacheSize, nil, expansionCacheTTL),
		logger:    utils.NewComponentLogger("ExpansionCoordinator"),
		metrics:   observability.NewFOVMetrics(),
	}
	c.enabled.Store(true)
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// SetEnabled toggles foveation. Disabled, every call degrades to a
// passthrough of the raw history. Safe to flip while pipeline callers
// are mid-flight.
func (c *Coordinator) SetEnabled(enabled bool) {
	c.enabled.Store(enabled)
}

// BuildFoveatedMessages converts a raw conversation history into the
// provider payload: one composed system message followed by the trimmed
// verbatim turns. With foveation disabled the history passes through
// untouched.
func (c *Coordinator) BuildFoveatedMessages(history []llm.Message, bargeIn string) []llm.Message {
	if !c.enabled.Load() {
		return append([]llm.Message(nil), history...)
	}

	turns := make([]fov.Turn, 0, len(history))
	for _, msg := range history {
		if msg.Role == llm.RoleSystem {
			continue
		}
		turns = append(turns, fov.Turn{Role: msg.Role, Content: msg.Content})
	}

	fc := c.assembler.BuildContext(turns, bargeIn)
	messages := make([]llm.Message, 0, fc.TurnCount+1)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: fc.ComposeSystemMessage()})
	for _, turn := range turns[len(turns)-fc.TurnCount:] {
		messages = append(messages, llm.Message{Role: turn.Role, Content: turn.Content})
	}
	return messages
}

// AnalyzeResponseConfidence scores a generated answer and recommends
// whether the next turn needs wider context.
func (c *Coordinator) AnalyzeResponseConfidence(response string) confidence.Recommendation {
	analysis := c.analyzer.Analyze(response)
	rec := confidence.Recommend(analysis)
	if rec.ShouldExpand {
		c.logger.Info("Low-confidence answer (%.2f): expanding scope=%s signals=%s",
			analysis.Score, rec.Scope, rec.Reason)
	}
	return rec
}

// ExpandContext searches the curriculum at the given scope and appends
// the formatted matches to the working buffer. Reports whether anything
// was added. Identical query/scope pairs within the cache TTL reuse the
// previous search.
func (c *Coordinator) ExpandContext(query string, scope confidence.Scope) bool {
	if !c.enabled.Load() || scope == confidence.ScopeNone || strings.TrimSpace(query) == "" {
		return false
	}
	if c.provider == nil {
		c.logger.Debug("Expansion requested without a curriculum; skipping")
		return false
	}

	key := string(scope) + "\x00" + strings.ToLower(strings.Join(strings.Fields(query), " "))
	if snippet, ok := c.cache.Get(key); ok {
		c.assembler.ExpandWorkingBuffer(snippet)
		c.metrics.RecordExpansion(string(scope))
		return true
	}

	results := c.search(query, scope)
	if len(results) == 0 {
		c.logger.Debug("Expansion found nothing for %q at scope %s", query, scope)
		return false
	}

	snippet := formatResults(results)
	c.cache.Add(key, snippet)
	c.assembler.ExpandWorkingBuffer(snippet)
	c.metrics.RecordExpansion(string(scope))
	c.logger.Info("Expanded context with %d result(s) for %q at scope %s", len(results), query, scope)
	return true
}

// HandleBargeIn records an interruption: the segment being spoken is
// pinned first so the next build can quote what the learner cut off,
// then the payload is rebuilt around the barge-in utterance.
func (c *Coordinator) HandleBargeIn(utterance string, segment fov.Segment, history []llm.Message) []llm.Message {
	c.assembler.SetCurrentSegment(segment)
	c.assembler.RecordBargeIn()
	return c.BuildFoveatedMessages(history, utterance)
}

func (c *Coordinator) search(query string, scope confidence.Scope) []Result {
	terms := queryTerms(query)
	if len(terms) == 0 {
		return nil
	}
	switch scope {
	case confidence.ScopeCurrentTopic, confidence.ScopeRelated:
		return c.searchCurrentTopic(terms)
	case confidence.ScopeCurrentUnit:
		return c.searchCurrentUnit(terms)
	case confidence.ScopeFullCurriculum:
		return c.searchCurriculum(terms)
	default:
		return nil
	}
}

// searchCurrentTopic returns at most one result: the top-scoring
// transcript segments of the active topic, concatenated in transcript
// order.
func (c *Coordinator) searchCurrentTopic(terms []string) []Result {
	topic, _, ok := c.provider.CurrentTopic()
	if !ok || topic == nil {
		return nil
	}

	type scored struct {
		index int
		score int
	}
	var hits []scored
	for i, seg := range topic.Transcript {
		if score := overlap(terms, seg.Text); score > 0 {
			hits = append(hits, scored{index: i, score: score})
		}
	}
	if len(hits) == 0 {
		return nil
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > topicSegmentLimit {
		hits = hits[:topicSegmentLimit]
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].index < hits[j].index })

	parts := make([]string, 0, len(hits))
	for _, hit := range hits {
		parts = append(parts, strings.TrimSpace(topic.Transcript[hit.index].Text))
	}
	return []Result{{Title: topic.Title, Content: strings.Join(parts, "\n"), Relevance: 1.0}}
}

// searchCurrentUnit widens to the neighboring topics: the previous one
// is usually prerequisite material, the next one a preview.
func (c *Coordinator) searchCurrentUnit(terms []string) []Result {
	results := c.searchCurrentTopic(terms)
	course := c.provider.Curriculum()
	_, index, ok := c.provider.CurrentTopic()
	if !ok || course == nil {
		return results
	}
	if prev := course.TopicAt(index - 1); prev != nil {
		results = append(results, Result{Title: prev.Title, Content: topicDigest(prev), Relevance: prevTopicRelevance})
	}
	if next := course.TopicAt(index + 1); next != nil {
		results = append(results, Result{Title: next.Title, Content: topicDigest(next), Relevance: nextTopicRelevance})
	}
	return results
}

// searchCurriculum scans the leading topics of the whole course and
// keeps the best keyword matches.
func (c *Coordinator) searchCurriculum(terms []string) []Result {
	course := c.provider.Curriculum()
	if course == nil {
		return nil
	}

	type scored struct {
		topic *curriculum.Topic
		score int
	}
	var hits []scored
	for i := range course.Topics {
		if i == curriculumScanLimit {
			break
		}
		topic := &course.Topics[i]
		haystack := topic.Title + "\n" + topic.Summary + "\n" + topic.TranscriptText()
		if score := overlap(terms, haystack); score > 0 {
			hits = append(hits, scored{topic: topic, score: score})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > curriculumKeepLimit {
		hits = hits[:curriculumKeepLimit]
	}

	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		results = append(results, Result{Title: hit.topic.Title, Content: topicDigest(hit.topic), Relevance: curriculumRelevance})
	}
	return results
}

// topicDigest is what a non-current topic contributes: its authored
// summary when present, otherwise the opening of its transcript.
func topicDigest(topic *curriculum.Topic) string {
	if strings.TrimSpace(topic.Summary) != "" {
		return strings.TrimSpace(topic.Summary)
	}
	if len(topic.Transcript) > 0 {
		return strings.TrimSpace(topic.Transcript[0].Text)
	}
	return ""
}

// queryTerms lowercases the query and keeps words longer than two
// runes, dropping punctuation noise.
func queryTerms(query string) []string {
	var terms []string
	for _, field := range strings.Fields(strings.ToLower(query)) {
		field = strings.Trim(field, ".,;:!?\"'()[]")
		if len([]rune(field)) > 2 {
			terms = append(terms, field)
		}
	}
	return terms
}

// overlap counts how many distinct terms appear in text.
func overlap(terms []string, text string) int {
	lowered := strings.ToLower(text)
	count := 0
	for _, term := range terms {
		if strings.Contains(lowered, term) {
			count++
		}
	}
	return count
}

// formatResults renders the matches highest-relevance first, each under
// a bolded title and separated by rule lines.
func formatResults(results []Result) string {
	sorted := append([]Result(nil), results...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Relevance > sorted[j].Relevance })

	blocks := make([]string, 0, len(sorted))
	for _, r := range sorted {
		if strings.TrimSpace(r.Content) == "" {
			continue
		}
		blocks = append(blocks, "**["+r.Title+"]**\n"+strings.TrimSpace(r.Content))
	}
	return strings.Join(blocks, "\n---\n")
}
