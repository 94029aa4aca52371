package fov

import (
	"strings"

	"sage/internal/token"
)

// WorkingContent is the teaching material of the active topic, supplied
// when the learner moves to a new topic.
type WorkingContent struct {
	Title          string
	Body           string
	Objectives     []string
	Glossary       []string // preformatted "term — definition" lines
	Misconceptions []string
	Alternatives   []string
}

// WorkingBuffer holds the active topic's teaching content plus any
// snippets pulled in by retrieval expansion. Replaced wholesale on topic
// change; appended to on expansion.
type WorkingBuffer struct {
	Content    WorkingContent
	Additional []string
	Est        token.Estimator
}

// NewWorkingBuffer returns an empty buffer using the given estimator.
func NewWorkingBuffer(est token.Estimator) *WorkingBuffer {
	return &WorkingBuffer{Est: est}
}

// Render produces the working section, never exceeding budget tokens.
// Overflow drops the lowest-priority material first: retrieved snippets
// (newest first), then alternative explanations, glossary,
// misconception triggers, and objectives; the topic body is pinned and
// truncated only when nothing else is left to drop.
func (b *WorkingBuffer) Render(budget int) string {
	if budget <= 0 {
		return ""
	}
	est := token.Or(b.Est)

	blocks := b.blocks()
	for len(blocks) > 0 {
		if blocks[len(blocks)-1] == additionalHeading {
			blocks = blocks[:len(blocks)-1]
			continue
		}
		out := strings.Join(blocks, "\n\n")
		if est(out) <= budget {
			return out
		}
		if len(blocks) == 1 {
			return token.TruncateHead(out, budget, est)
		}
		blocks = blocks[:len(blocks)-1]
	}
	return ""
}

// blocks returns the section blocks in keep-priority order: index 0 is
// pinned, the last entry is the first to be dropped.
func (b *WorkingBuffer) blocks() []string {
	var blocks []string

	body := strings.TrimSpace(b.Content.Body)
	title := strings.TrimSpace(b.Content.Title)
	switch {
	case title != "" && body != "":
		blocks = append(blocks, "## Topic: "+title+"\n"+body)
	case title != "":
		blocks = append(blocks, "## Topic: "+title)
	case body != "":
		blocks = append(blocks, body)
	}

	if block := bulletBlock("## Learning Objectives", b.Content.Objectives); block != "" {
		blocks = append(blocks, block)
	}
	if block := bulletBlock("## Watch For These Misconceptions", b.Content.Misconceptions); block != "" {
		blocks = append(blocks, block)
	}
	if block := bulletBlock("## Key Terms", b.Content.Glossary); block != "" {
		blocks = append(blocks, block)
	}
	if block := bulletBlock("## Alternative Explanations", b.Content.Alternatives); block != "" {
		blocks = append(blocks, block)
	}

	// Retrieved snippets are appended newest-last so dropping from the
	// tail sheds the most recent expansion first.
	if len(b.Additional) > 0 {
		blocks = append(blocks, additionalHeading)
		blocks = append(blocks, b.Additional...)
	}

	return blocks
}

const additionalHeading = "## Additional Context"

func bulletBlock(heading string, items []string) string {
	var lines []string
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			lines = append(lines, "- "+trimmed)
		}
	}
	if len(lines) == 0 {
		return ""
	}
	return heading + "\n" + strings.Join(lines, "\n")
}
