package fov

import (
	"fmt"
	"strings"
	"time"

	"sage/internal/token"
)

// Turn is one verbatim conversational exchange unit.
type Turn struct {
	Role    string
	Content string
	At      time.Time
}

// Segment is a playback unit of the topic transcript currently being
// spoken to the learner.
type Segment struct {
	ID    string
	Index int
	Text  string
}

// ImmediateBuffer holds the highest-priority context: verbatim recent
// turns, the transcript segment being played, its neighbors, and the
// utterance that interrupted playback, if any. Rebuilt on every context
// build from the live conversation history.
type ImmediateBuffer struct {
	Turns            []Turn
	CurrentSegment   *Segment
	AdjacentSegments []Segment
	BargeIn          string
	Est              token.Estimator
}

// NewImmediateBuffer returns an empty buffer using the given estimator.
func NewImmediateBuffer(est token.Estimator) *ImmediateBuffer {
	return &ImmediateBuffer{Est: est}
}

// Render produces the immediate section, never exceeding budget tokens.
// Overflow drops the adjacent segments first, then the oldest turns;
// the barge-in utterance and current segment are pinned and only
// truncated as a last resort.
func (b *ImmediateBuffer) Render(budget int) string {
	if budget <= 0 {
		return ""
	}
	est := token.Or(b.Est)

	withAdjacent := len(b.AdjacentSegments) > 0
	turns := len(b.Turns)
	for {
		out := b.compose(turns, withAdjacent)
		if est(out) <= budget {
			return out
		}
		if withAdjacent {
			withAdjacent = false
			continue
		}
		if turns > 0 {
			turns--
			continue
		}
		return token.TruncateHead(out, budget, est)
	}
}

func (b *ImmediateBuffer) compose(turns int, withAdjacent bool) string {
	var blocks []string

	if strings.TrimSpace(b.BargeIn) != "" {
		blocks = append(blocks, "## Interruption\nThe learner interrupted the explanation to say: \""+strings.TrimSpace(b.BargeIn)+"\"")
	}
	if b.CurrentSegment != nil && strings.TrimSpace(b.CurrentSegment.Text) != "" {
		blocks = append(blocks, "## Now Being Said\n"+strings.TrimSpace(b.CurrentSegment.Text))
	}
	if turns > 0 {
		var sb strings.Builder
		sb.WriteString("## Recent Conversation")
		for _, turn := range b.Turns[len(b.Turns)-turns:] {
			sb.WriteString("\n")
			sb.WriteString(speakerLabel(turn.Role))
			sb.WriteString(": ")
			sb.WriteString(strings.TrimSpace(turn.Content))
		}
		blocks = append(blocks, sb.String())
	}
	if withAdjacent {
		var sb strings.Builder
		sb.WriteString("## Nearby Transcript")
		for _, seg := range b.AdjacentSegments {
			sb.WriteString(fmt.Sprintf("\n[%d] %s", seg.Index, strings.TrimSpace(seg.Text)))
		}
		blocks = append(blocks, sb.String())
	}

	return strings.Join(blocks, "\n\n")
}

func speakerLabel(role string) string {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "assistant":
		return "Tutor"
	case "user", "":
		return "Student"
	default:
		return strings.TrimSpace(role)
	}
}
