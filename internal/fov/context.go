package fov

import (
	"strings"
)

// FOVContext is the assembled payload for one LLM call: the base system
// prompt, the four rendered buffer sections, how many verbatim turns
// made it in, and the budget snapshot used. Created fresh per build and
// never retained.
type FOVContext struct {
	SystemPrompt    string
	Immediate       string
	Working         string
	Episodic        string
	Semantic        string
	TurnCount       int
	Budget          TokenBudget
	EstimatedTokens int
}

// Section headings for the composed system message, ordered broad to
// narrow so the model reads orientation before the live conversation.
var sectionOrder = []struct {
	heading string
	pick    func(*FOVContext) string
}{
	{"# Course Orientation", func(c *FOVContext) string { return c.Semantic }},
	{"# Session So Far", func(c *FOVContext) string { return c.Episodic }},
	{"# Current Topic Material", func(c *FOVContext) string { return c.Working }},
	{"# Right Now", func(c *FOVContext) string { return c.Immediate }},
}

// ComposeSystemMessage flattens the context into the single system
// message sent ahead of the trimmed conversation history. Empty
// sections are omitted.
func (c *FOVContext) ComposeSystemMessage() string {
	parts := make([]string, 0, len(sectionOrder)+1)
	if strings.TrimSpace(c.SystemPrompt) != "" {
		parts = append(parts, strings.TrimSpace(c.SystemPrompt))
	}
	for _, section := range sectionOrder {
		if body := strings.TrimSpace(section.pick(c)); body != "" {
			parts = append(parts, section.heading+"\n\n"+body)
		}
	}
	return strings.Join(parts, "\n\n")
}
