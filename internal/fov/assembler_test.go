package fov

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"sage/internal/observability"
	"sage/internal/utils"
)

func newTestAssembler(contextWindow int, opts ...Option) *Assembler {
	base := []Option{
		WithLogger(utils.NewNopLogger()),
		WithMetrics(observability.NewFOVMetricsWithRegisterer(prometheus.NewRegistry())),
	}
	return NewAssembler(contextWindow, append(base, opts...)...)
}

type stubCondenser struct {
	mu     sync.Mutex
	calls  int
	reply  string
	err    error
	before func(a *Assembler) // runs between snapshot and apply
	target *Assembler
}

func (s *stubCondenser) Condense(_ context.Context, text string) (string, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.before != nil && s.target != nil {
		s.before(s.target)
	}
	if s.err != nil {
		return "", s.err
	}
	if s.reply != "" {
		return s.reply, nil
	}
	return "condensed: " + text[:min(40, len(text))], nil
}

func TestBuildContextRetainsBudgetedTurns(t *testing.T) {
	asm := newTestAssembler(128000)
	if got := asm.BudgetConfig().Tier; got != TierXLarge {
		t.Fatalf("expected xlarge tier, got %s", got)
	}

	history := make([]Turn, 50)
	for i := range history {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		history[i] = Turn{Role: role, Content: fmt.Sprintf("turn %d", i)}
	}

	fc := asm.BuildContext(history, "")
	want := asm.BudgetConfig().TurnRetention
	if fc.TurnCount != want {
		t.Fatalf("expected %d retained turns, got %d", want, fc.TurnCount)
	}
	if !strings.Contains(fc.Immediate, "turn 49") {
		t.Fatal("most recent turn missing from immediate section")
	}
	if strings.Contains(fc.Immediate, "turn 0") {
		t.Fatal("oldest turn should have been trimmed")
	}
	if fc.EstimatedTokens <= 0 {
		t.Fatal("expected a positive token estimate")
	}
}

func TestBuildContextShortHistory(t *testing.T) {
	asm := newTestAssembler(128000)
	fc := asm.BuildContext([]Turn{{Role: "user", Content: "hello"}}, "")
	if fc.TurnCount != 1 {
		t.Fatalf("expected 1 retained turn, got %d", fc.TurnCount)
	}
	if fc2 := asm.BuildContext(nil, ""); fc2.TurnCount != 0 {
		t.Fatalf("expected 0 retained turns for empty history, got %d", fc2.TurnCount)
	}
}

func TestBuildContextCarriesBargeIn(t *testing.T) {
	asm := newTestAssembler(32000)
	asm.SetCurrentSegment(Segment{ID: "s3", Index: 3, Text: "The mitochondria produce ATP."})

	fc := asm.BuildContext(nil, "hold on, what is ATP?")
	if !strings.Contains(fc.Immediate, "hold on, what is ATP?") {
		t.Fatalf("barge-in utterance missing: %q", fc.Immediate)
	}
	if !strings.Contains(fc.Immediate, "mitochondria produce ATP") {
		t.Fatalf("interrupted segment missing: %q", fc.Immediate)
	}

	// The next build without a barge-in must not carry the old one.
	fc = asm.BuildContext(nil, "")
	if strings.Contains(fc.Immediate, "hold on") {
		t.Fatal("stale barge-in leaked into the next build")
	}
}

func TestSectionsStayWithinSubBudgets(t *testing.T) {
	asm := newTestAssembler(4096)
	asm.UpdateWorkingBuffer(WorkingContent{Title: "Big Topic", Body: strings.Repeat("lots of material ", 500)})
	asm.UpdateSemanticBuffer(strings.Repeat("- topic\n", 200), Position{Title: "Big Topic", Index: 0, Total: 1}, nil)
	for i := 0; i < 12; i++ {
		asm.RecordTopicCompletion(TopicSummary{Title: fmt.Sprintf("T%d", i), Summary: strings.Repeat("summary ", 30), Mastery: 0.5})
	}
	history := make([]Turn, 30)
	for i := range history {
		history[i] = Turn{Role: "user", Content: strings.Repeat("blah ", 50)}
	}

	fc := asm.BuildContext(history, "")
	budget := fc.Budget
	for name, pair := range map[string][2]int{
		"immediate": {asm.est(fc.Immediate), budget.Immediate},
		"working":   {asm.est(fc.Working), budget.Working},
		"episodic":  {asm.est(fc.Episodic), budget.Episodic},
		"semantic":  {asm.est(fc.Semantic), budget.Semantic},
	} {
		if pair[0] > pair[1] {
			t.Fatalf("%s section %d tokens exceeds budget %d", name, pair[0], pair[1])
		}
	}
}

func TestRecordUserQuestionTrimsFIFO(t *testing.T) {
	asm := newTestAssembler(32000)
	for i := 0; i < maxUserQuestions+5; i++ {
		asm.RecordUserQuestion(UserQuestion{Question: fmt.Sprintf("question %d", i)})
	}
	_, questions := asm.EpisodicState()
	if len(questions) != maxUserQuestions {
		t.Fatalf("expected %d questions, got %d", maxUserQuestions, len(questions))
	}
	if questions[0].Question != "question 5" {
		t.Fatalf("expected oldest retained question 5, got %q", questions[0].Question)
	}
	if questions[len(questions)-1].Question != fmt.Sprintf("question %d", maxUserQuestions+4) {
		t.Fatalf("newest question missing: %q", questions[len(questions)-1].Question)
	}
}

func TestRecordTopicCompletionTrimsFIFO(t *testing.T) {
	asm := newTestAssembler(32000)
	for i := 0; i < maxTopicSummaries+3; i++ {
		asm.RecordTopicCompletion(TopicSummary{Title: fmt.Sprintf("topic %d", i)})
	}
	summaries, _ := asm.EpisodicState()
	if len(summaries) != maxTopicSummaries {
		t.Fatalf("expected %d summaries, got %d", maxTopicSummaries, len(summaries))
	}
	if summaries[0].Title != "topic 3" {
		t.Fatalf("expected oldest retained topic 3, got %q", summaries[0].Title)
	}
}

func TestCompressEpisodicCascade(t *testing.T) {
	condenser := &stubCondenser{reply: "They covered early material thoroughly."}
	asm := newTestAssembler(32000, WithCondenser(condenser))

	masteries := []float64{0.2, 0.4, 0.6, 0.8, 0.9, 0.9, 0.9, 0.9, 0.9}
	for i, m := range masteries {
		asm.RecordTopicCompletion(TopicSummary{Title: fmt.Sprintf("topic %d", i), Summary: "details", Mastery: m})
	}

	if !asm.CompressEpisodic(context.Background()) {
		t.Fatal("expected compression to apply above the trigger count")
	}

	summaries, _ := asm.EpisodicState()
	wantLen := len(masteries) - (episodicCascadeWidth - 1)
	if len(summaries) != wantLen {
		t.Fatalf("expected list length %d after cascade, got %d", wantLen, len(summaries))
	}

	synthetic := summaries[0]
	if !synthetic.Synthetic || synthetic.Title != syntheticEarlierTopicsTitle {
		t.Fatalf("expected synthetic head entry, got %+v", synthetic)
	}
	wantMastery := (0.2 + 0.4 + 0.6 + 0.8) / 4
	if diff := synthetic.Mastery - wantMastery; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected mean mastery %.3f, got %.3f", wantMastery, synthetic.Mastery)
	}
	if synthetic.Summary != "They covered early material thoroughly." {
		t.Fatalf("unexpected condensed summary: %q", synthetic.Summary)
	}

	for i, ts := range summaries[1:] {
		want := fmt.Sprintf("topic %d", i+episodicCascadeWidth)
		if ts.Title != want {
			t.Fatalf("remaining entries reordered: index %d is %q, want %q", i+1, ts.Title, want)
		}
	}
}

func TestCompressEpisodicBelowTriggerIsNoop(t *testing.T) {
	condenser := &stubCondenser{}
	asm := newTestAssembler(32000, WithCondenser(condenser))
	for i := 0; i < episodicCompressionTrigger; i++ {
		asm.RecordTopicCompletion(TopicSummary{Title: fmt.Sprintf("topic %d", i)})
	}
	if asm.CompressEpisodic(context.Background()) {
		t.Fatal("compression must not trigger at the threshold")
	}
	if condenser.calls != 0 {
		t.Fatalf("condenser called %d times below trigger", condenser.calls)
	}
}

func TestCompressEpisodicWithoutCondenserIsNoop(t *testing.T) {
	asm := newTestAssembler(32000)
	for i := 0; i < episodicCompressionTrigger+2; i++ {
		asm.RecordTopicCompletion(TopicSummary{Title: fmt.Sprintf("topic %d", i)})
	}
	if asm.CompressEpisodic(context.Background()) {
		t.Fatal("compression without a summarizer must be a no-op")
	}
	summaries, _ := asm.EpisodicState()
	if len(summaries) != episodicCompressionTrigger+2 {
		t.Fatalf("list mutated without a summarizer: %d entries", len(summaries))
	}
}

func TestCompressEpisodicAbortsOnConcurrentHeadMutation(t *testing.T) {
	condenser := &stubCondenser{reply: "condensed"}
	asm := newTestAssembler(32000, WithCondenser(condenser))
	condenser.target = asm
	condenser.before = func(a *Assembler) {
		// Overflow the list while the LLM call is in flight so the
		// snapshotted head is no longer the list head.
		for i := 0; i < maxTopicSummaries; i++ {
			a.RecordTopicCompletion(TopicSummary{Title: fmt.Sprintf("new topic %d", i)})
		}
	}

	for i := 0; i < episodicCompressionTrigger+1; i++ {
		asm.RecordTopicCompletion(TopicSummary{Title: fmt.Sprintf("topic %d", i)})
	}
	if asm.CompressEpisodic(context.Background()) {
		t.Fatal("compression must abort when the head changed mid-flight")
	}
	summaries, _ := asm.EpisodicState()
	for _, ts := range summaries {
		if ts.Synthetic {
			t.Fatal("aborted pass must not leave a synthetic entry")
		}
	}
}

func TestResetClearsAllBuffers(t *testing.T) {
	asm := newTestAssembler(32000)
	asm.UpdateWorkingBuffer(WorkingContent{Title: "Mitosis", Body: "Cells divide."})
	asm.RecordTopicCompletion(TopicSummary{Title: "Cells"})
	asm.SetCurrentSegment(Segment{Text: "segment text"})
	asm.UpdateSemanticBuffer("outline", Position{Title: "Mitosis", Total: 2}, nil)

	asm.Reset()
	fc := asm.BuildContext(nil, "")
	if fc.Working != "" || fc.Episodic != "" || fc.Semantic != "" || fc.Immediate != "" {
		t.Fatalf("expected empty sections after reset: %+v", fc)
	}
}

func TestResetImmediateKeepsOtherBuffers(t *testing.T) {
	asm := newTestAssembler(32000)
	asm.UpdateWorkingBuffer(WorkingContent{Title: "Mitosis", Body: "Cells divide."})
	asm.SetCurrentSegment(Segment{Text: "segment text"})

	asm.ResetImmediateBuffer()
	fc := asm.BuildContext(nil, "")
	if fc.Immediate != "" {
		t.Fatalf("expected empty immediate section, got %q", fc.Immediate)
	}
	if !strings.Contains(fc.Working, "Mitosis") {
		t.Fatal("working buffer should survive an immediate reset")
	}
}

func TestUpdateModelConfigReplacesBudget(t *testing.T) {
	asm := newTestAssembler(8000, WithWindowLookup(func(model string) int {
		if model == "big-model" {
			return 128000
		}
		return 4096
	}))
	if asm.BudgetConfig().Tier != TierMedium {
		t.Fatalf("unexpected starting tier %s", asm.BudgetConfig().Tier)
	}

	asm.UpdateModelConfig("big-model")
	if asm.BudgetConfig().Tier != TierXLarge {
		t.Fatalf("expected xlarge after model switch, got %s", asm.BudgetConfig().Tier)
	}

	asm.UpdateModelConfig("unknown-model")
	if asm.BudgetConfig().ContextWindow != 4096 {
		t.Fatalf("expected lookup fallback window, got %d", asm.BudgetConfig().ContextWindow)
	}

	asm.UpdateContextWindow(64000)
	if asm.BudgetConfig().Tier != TierLarge {
		t.Fatalf("expected large after explicit window, got %s", asm.BudgetConfig().Tier)
	}
}

func TestExpandWorkingBufferEmptyIsNoop(t *testing.T) {
	asm := newTestAssembler(32000)
	asm.UpdateWorkingBuffer(WorkingContent{Title: "Mitosis", Body: "Cells divide."})
	asm.ExpandWorkingBuffer("   ")
	fc := asm.BuildContext(nil, "")
	if strings.Contains(fc.Working, "Additional Context") {
		t.Fatal("empty expansion must not add a section")
	}

	asm.ExpandWorkingBuffer("**[The Cell]**\nrelevant snippet")
	fc = asm.BuildContext(nil, "")
	if !strings.Contains(fc.Working, "Additional Context") || !strings.Contains(fc.Working, "relevant snippet") {
		t.Fatalf("expansion missing from working section: %q", fc.Working)
	}
}

func TestUpdateWorkingBufferDiscardsExpansions(t *testing.T) {
	asm := newTestAssembler(32000)
	asm.UpdateWorkingBuffer(WorkingContent{Title: "Mitosis", Body: "Cells divide."})
	asm.ExpandWorkingBuffer("old snippet")
	asm.UpdateWorkingBuffer(WorkingContent{Title: "Meiosis", Body: "Gametes form."})

	fc := asm.BuildContext(nil, "")
	if strings.Contains(fc.Working, "old snippet") {
		t.Fatal("topic change must discard previous expansions")
	}
}
