package fov

import (
	"context"
	"strings"
	"sync"
	"time"

	"sage/internal/llm"
	"sage/internal/observability"
	"sage/internal/token"
	"sage/internal/utils"
)

// Bounds on the episodic record lists. Exceeding a bound drops the
// oldest entry (FIFO).
const (
	maxTopicSummaries           = 12
	maxUserQuestions            = 10
	maxAddressedMisconceptions  = 15
	episodicCompressionTrigger  = 8
	episodicCascadeWidth        = 4
	syntheticEarlierTopicsTitle = "Earlier topics"
)

const defaultSystemPrompt = "You are a patient, encouraging voice tutor. " +
	"Teach from the provided material, keep answers short enough to speak aloud, " +
	"and check understanding before moving on."

// Condenser is the summarization capability the assembler needs for
// cascade compression. Implementations must recover from provider
// failures internally; a returned error aborts the compression pass but
// must never represent a crashed session.
type Condenser interface {
	Condense(ctx context.Context, text string) (string, error)
}

// Assembler owns the four buffers and the active token budget. Every
// mutating operation and the read-composing BuildContext acquire the
// same exclusive lock for their full duration; buffer state is never
// reachable from outside.
type Assembler struct {
	mu sync.Mutex

	budget    TokenBudget
	immediate *ImmediateBuffer
	working   *WorkingBuffer
	episodic  *EpisodicBuffer
	semantic  *SemanticBuffer

	basePrompt string
	condenser  Condenser
	windowFor  func(model string) int
	est        token.Estimator
	logger     *utils.Logger
	metrics    *observability.FOVMetrics
}

// Option configures the assembler.
type Option func(*Assembler)

// WithSystemPrompt overrides the base tutor persona prompt.
func WithSystemPrompt(prompt string) Option {
	return func(a *Assembler) {
		if strings.TrimSpace(prompt) != "" {
			a.basePrompt = prompt
		}
	}
}

// WithCondenser attaches the summarizer used for cascade compression.
func WithCondenser(c Condenser) Option {
	return func(a *Assembler) {
		a.condenser = c
	}
}

// WithEstimator swaps the token estimation heuristic.
func WithEstimator(est token.Estimator) Option {
	return func(a *Assembler) {
		if est != nil {
			a.est = est
		}
	}
}

// WithWindowLookup overrides how model identifiers resolve to context
// windows (used by tests and by deployments with a custom registry).
func WithWindowLookup(lookup func(model string) int) Option {
	return func(a *Assembler) {
		if lookup != nil {
			a.windowFor = lookup
		}
	}
}

// WithLogger injects a custom logger (used by tests).
func WithLogger(logger *utils.Logger) Option {
	return func(a *Assembler) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithMetrics allows overriding the metrics recorder.
func WithMetrics(metrics *observability.FOVMetrics) Option {
	return func(a *Assembler) {
		if metrics != nil {
			a.metrics = metrics
		}
	}
}

// NewAssembler constructs an assembler budgeted for the given context
// window.
func NewAssembler(contextWindow int, opts ...Option) *Assembler {
	a := &Assembler{
		budget:     PlanBudget(contextWindow),
		basePrompt: defaultSystemPrompt,
		windowFor:  llm.ContextWindowFor,
		est:        token.Estimate,
		logger:     utils.NewComponentLogger("ContextAssembler"),
		metrics:    observability.NewFOVMetrics(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	a.immediate = NewImmediateBuffer(a.est)
	a.working = NewWorkingBuffer(a.est)
	a.episodic = NewEpisodicBuffer(a.est)
	a.semantic = NewSemanticBuffer(a.est)
	return a
}

// BuildContext assembles the per-turn payload: the last TurnRetention
// turns of history verbatim, the four rendered sections, and the token
// accounting.
func (a *Assembler) BuildContext(history []Turn, bargeIn string) FOVContext {
	a.mu.Lock()
	defer a.mu.Unlock()

	retain := a.budget.TurnRetention
	if retain > len(history) {
		retain = len(history)
	}
	a.immediate.Turns = append(a.immediate.Turns[:0], history[len(history)-retain:]...)
	a.immediate.BargeIn = bargeIn

	fc := FOVContext{
		SystemPrompt: a.basePrompt,
		Immediate:    a.immediate.Render(a.budget.Immediate),
		Working:      a.working.Render(a.budget.Working),
		Episodic:     a.episodic.Render(a.budget.Episodic),
		Semantic:     a.semantic.Render(a.budget.Semantic),
		TurnCount:    retain,
		Budget:       a.budget,
	}
	fc.EstimatedTokens = a.est(fc.SystemPrompt) + a.est(fc.Immediate) +
		a.est(fc.Working) + a.est(fc.Episodic) + a.est(fc.Semantic)

	a.metrics.RecordSectionTokens("immediate", a.est(fc.Immediate))
	a.metrics.RecordSectionTokens("working", a.est(fc.Working))
	a.metrics.RecordSectionTokens("episodic", a.est(fc.Episodic))
	a.metrics.RecordSectionTokens("semantic", a.est(fc.Semantic))

	return fc
}

// UpdateWorkingBuffer replaces the active topic material. Retrieval
// snippets from the previous topic are discarded.
func (a *Assembler) UpdateWorkingBuffer(content WorkingContent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.working.Content = content
	a.working.Additional = nil
}

// ExpandWorkingBuffer appends a retrieved snippet under the Additional
// Context heading. Empty input is a no-op.
func (a *Assembler) ExpandWorkingBuffer(snippet string) {
	if strings.TrimSpace(snippet) == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.working.Additional = append(a.working.Additional, strings.TrimSpace(snippet))
}

// UpdateSemanticBuffer replaces the curriculum orientation.
func (a *Assembler) UpdateSemanticBuffer(outline string, position Position, dependencies []string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.semantic.Outline = outline
	a.semantic.Position = position
	a.semantic.Dependencies = append([]string(nil), dependencies...)
}

// RecordTopicCompletion appends a topic summary, dropping the oldest
// once the bound is reached.
func (a *Assembler) RecordTopicCompletion(summary TopicSummary) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if summary.CompletedAt.IsZero() {
		summary.CompletedAt = time.Now()
	}
	a.episodic.TopicSummaries = append(a.episodic.TopicSummaries, summary)
	if overflow := len(a.episodic.TopicSummaries) - maxTopicSummaries; overflow > 0 {
		a.episodic.TopicSummaries = append(a.episodic.TopicSummaries[:0], a.episodic.TopicSummaries[overflow:]...)
	}
}

// RecordUserQuestion appends a learner question, dropping the oldest
// once the bound is reached.
func (a *Assembler) RecordUserQuestion(question UserQuestion) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if question.At.IsZero() {
		question.At = time.Now()
	}
	a.episodic.Questions = append(a.episodic.Questions, question)
	if overflow := len(a.episodic.Questions) - maxUserQuestions; overflow > 0 {
		a.episodic.Questions = append(a.episodic.Questions[:0], a.episodic.Questions[overflow:]...)
	}
}

// RecordAddressedMisconception notes a misconception the tutor has
// already corrected this session.
func (a *Assembler) RecordAddressedMisconception(misconception string) {
	trimmed := strings.TrimSpace(misconception)
	if trimmed == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.episodic.AddressedMisconceptions = append(a.episodic.AddressedMisconceptions, trimmed)
	if overflow := len(a.episodic.AddressedMisconceptions) - maxAddressedMisconceptions; overflow > 0 {
		a.episodic.AddressedMisconceptions = a.episodic.AddressedMisconceptions[overflow:]
	}
}

// UpdateLearnerSignals replaces the running signal counters.
func (a *Assembler) UpdateLearnerSignals(signals LearnerSignals) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.episodic.Signals = signals
}

// RecordHesitation increments the hesitation counter.
func (a *Assembler) RecordHesitation() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.episodic.Signals.Hesitations++
}

// RecordBargeIn increments the interruption counter.
func (a *Assembler) RecordBargeIn() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.episodic.Signals.BargeIns++
}

// RecordRepeatedQuestion increments the repeated-question counter.
func (a *Assembler) RecordRepeatedQuestion() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.episodic.Signals.RepeatedQuestions++
}

// SetCurrentSegment records the transcript segment currently being
// played to the learner.
func (a *Assembler) SetCurrentSegment(segment Segment) {
	a.mu.Lock()
	defer a.mu.Unlock()
	seg := segment
	a.immediate.CurrentSegment = &seg
}

// SetAdjacentSegments records the segments neighboring the current one.
func (a *Assembler) SetAdjacentSegments(segments []Segment) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.immediate.AdjacentSegments = append([]Segment(nil), segments...)
}

// UpdateModelConfig recomputes the budget for a new model identifier.
// Unknown identifiers resolve to the conservative default window.
func (a *Assembler) UpdateModelConfig(model string) {
	window := a.windowFor(model)
	a.mu.Lock()
	defer a.mu.Unlock()
	a.budget = PlanBudget(window)
	a.logger.Info("Budget replanned for model %q: tier=%s window=%d", model, a.budget.Tier, window)
}

// UpdateContextWindow recomputes the budget for an explicit window size.
func (a *Assembler) UpdateContextWindow(contextWindow int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.budget = PlanBudget(contextWindow)
}

// BudgetConfig returns the current budget snapshot.
func (a *Assembler) BudgetConfig() TokenBudget {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.budget
}

// EpisodicState returns copies of the episodic record lists.
func (a *Assembler) EpisodicState() ([]TopicSummary, []UserQuestion) {
	a.mu.Lock()
	defer a.mu.Unlock()
	summaries := append([]TopicSummary(nil), a.episodic.TopicSummaries...)
	questions := append([]UserQuestion(nil), a.episodic.Questions...)
	return summaries, questions
}

// Reset replaces all four buffers with empty instances; the budget and
// configuration survive.
func (a *Assembler) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.immediate = NewImmediateBuffer(a.est)
	a.working = NewWorkingBuffer(a.est)
	a.episodic = NewEpisodicBuffer(a.est)
	a.semantic = NewSemanticBuffer(a.est)
}

// ResetImmediateBuffer clears only the immediate buffer, for topic and
// segment boundaries within one session.
func (a *Assembler) ResetImmediateBuffer() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.immediate = NewImmediateBuffer(a.est)
}
