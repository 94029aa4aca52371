package fov

import (
	"fmt"
	"strings"
	"time"

	"sage/internal/token"
)

// TopicSummary is one compressed record of a completed topic.
type TopicSummary struct {
	Title       string
	Summary     string
	Mastery     float64 // 0..1
	CompletedAt time.Time
	Synthetic   bool // true for cascade-compressed "Earlier topics" entries
}

// UserQuestion records one question the learner asked.
type UserQuestion struct {
	Question string
	Topic    string
	At       time.Time
}

// LearnerSignals are running counters of behavioral signals observed
// during the session.
type LearnerSignals struct {
	Hesitations       int
	BargeIns          int
	RepeatedQuestions int
}

func (s LearnerSignals) empty() bool {
	return s.Hesitations == 0 && s.BargeIns == 0 && s.RepeatedQuestions == 0
}

// EpisodicBuffer is the compressed session history: bounded FIFO lists
// of topic summaries and learner questions, addressed misconceptions,
// and learner-signal counters. Grows through assembler record calls and
// shrinks through cascade compression.
type EpisodicBuffer struct {
	TopicSummaries          []TopicSummary
	Questions               []UserQuestion
	AddressedMisconceptions []string
	Signals                 LearnerSignals
	Est                     token.Estimator
}

// NewEpisodicBuffer returns an empty buffer using the given estimator.
func NewEpisodicBuffer(est token.Estimator) *EpisodicBuffer {
	return &EpisodicBuffer{Est: est}
}

// Render produces the episodic section, never exceeding budget tokens.
// Overflow drops the least-recent topic summaries first, then the
// oldest questions, then the misconception list, then the signals line.
func (b *EpisodicBuffer) Render(budget int) string {
	if budget <= 0 {
		return ""
	}
	est := token.Or(b.Est)

	summaries := len(b.TopicSummaries)
	questions := len(b.Questions)
	withMisconceptions := len(b.AddressedMisconceptions) > 0
	withSignals := !b.Signals.empty()
	for {
		out := b.compose(summaries, questions, withMisconceptions, withSignals)
		if est(out) <= budget {
			return out
		}
		if summaries > 0 {
			summaries--
			continue
		}
		if questions > 0 {
			questions--
			continue
		}
		if withMisconceptions {
			withMisconceptions = false
			continue
		}
		if withSignals {
			withSignals = false
			continue
		}
		return token.TruncateHead(out, budget, est)
	}
}

func (b *EpisodicBuffer) compose(summaries, questions int, withMisconceptions, withSignals bool) string {
	var blocks []string

	if summaries > 0 {
		var sb strings.Builder
		sb.WriteString("## Topics Covered")
		for _, ts := range b.TopicSummaries[len(b.TopicSummaries)-summaries:] {
			sb.WriteString(fmt.Sprintf("\n- %s (mastery %.2f): %s", ts.Title, ts.Mastery, strings.TrimSpace(ts.Summary)))
		}
		blocks = append(blocks, sb.String())
	}
	if questions > 0 {
		var sb strings.Builder
		sb.WriteString("## Questions the Student Asked")
		for _, q := range b.Questions[len(b.Questions)-questions:] {
			sb.WriteString("\n- ")
			sb.WriteString(strings.TrimSpace(q.Question))
			if q.Topic != "" {
				sb.WriteString(" (during ")
				sb.WriteString(q.Topic)
				sb.WriteString(")")
			}
		}
		blocks = append(blocks, sb.String())
	}
	if withMisconceptions {
		if block := bulletBlock("## Misconceptions Already Addressed", b.AddressedMisconceptions); block != "" {
			blocks = append(blocks, block)
		}
	}
	if withSignals {
		blocks = append(blocks, fmt.Sprintf(
			"## Learner Signals\nhesitations=%d interruptions=%d repeated-questions=%d",
			b.Signals.Hesitations, b.Signals.BargeIns, b.Signals.RepeatedQuestions))
	}

	return strings.Join(blocks, "\n\n")
}
