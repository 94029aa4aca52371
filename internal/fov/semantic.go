package fov

import (
	"fmt"
	"strings"

	"sage/internal/token"
)

// Position locates the active topic within the curriculum.
type Position struct {
	Title string
	Index int // zero-based topic index
	Total int
	Unit  string
}

// SemanticBuffer carries curriculum-level orientation: the course
// outline, where the learner currently is, and what the active topic
// depends on. Replaced when the curriculum position changes.
type SemanticBuffer struct {
	Outline      string
	Position     Position
	Dependencies []string
	Est          token.Estimator
}

// NewSemanticBuffer returns an empty buffer using the given estimator.
func NewSemanticBuffer(est token.Estimator) *SemanticBuffer {
	return &SemanticBuffer{Est: est}
}

// Render produces the semantic section, never exceeding budget tokens.
// Overflow drops the dependency list first, then truncates the outline;
// the position line is pinned.
func (b *SemanticBuffer) Render(budget int) string {
	if budget <= 0 {
		return ""
	}
	est := token.Or(b.Est)

	withDependencies := len(b.Dependencies) > 0
	withOutline := strings.TrimSpace(b.Outline) != ""
	for {
		out := b.compose(withOutline, withDependencies)
		if est(out) <= budget {
			return out
		}
		if withDependencies {
			withDependencies = false
			continue
		}
		if withOutline {
			withOutline = false
			continue
		}
		return token.TruncateHead(out, budget, est)
	}
}

func (b *SemanticBuffer) compose(withOutline, withDependencies bool) string {
	var blocks []string

	if b.Position.Title != "" {
		position := fmt.Sprintf("## Where We Are\nTopic %d of %d: %s", b.Position.Index+1, b.Position.Total, b.Position.Title)
		if b.Position.Unit != "" {
			position += " (" + b.Position.Unit + ")"
		}
		blocks = append(blocks, position)
	}
	if withOutline {
		blocks = append(blocks, "## Course Outline\n"+strings.TrimSpace(b.Outline))
	}
	if withDependencies {
		if block := bulletBlock("## Builds On", b.Dependencies); block != "" {
			blocks = append(blocks, block)
		}
	}

	return strings.Join(blocks, "\n\n")
}
