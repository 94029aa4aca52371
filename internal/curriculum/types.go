// Package curriculum holds the course content the tutoring engine
// teaches from: an ordered list of topics, each with a transcript of
// text segments, learning objectives, and remediation material. Content
// is loaded from a YAML directory and exposed through an observable
// store so the assembler and the expansion coordinator always see a
// consistent current topic.
package curriculum

import "strings"

// Segment is one chunk of a topic's spoken transcript.
type Segment struct {
	ID    string `yaml:"id"`
	Index int    `yaml:"index"`
	Text  string `yaml:"text"`
}

// GlossaryTerm pairs a term with its short definition.
type GlossaryTerm struct {
	Term       string `yaml:"term"`
	Definition string `yaml:"definition"`
}

// Topic is one teachable unit of the curriculum.
type Topic struct {
	ID             string         `yaml:"id"`
	Title          string         `yaml:"title"`
	Unit           string         `yaml:"unit"`
	Summary        string         `yaml:"summary"`
	Objectives     []string       `yaml:"objectives"`
	Transcript     []Segment      `yaml:"transcript"`
	Glossary       []GlossaryTerm `yaml:"glossary"`
	Misconceptions []string       `yaml:"misconceptions"`
	Alternatives   []string       `yaml:"alternatives"`
	Dependencies   []string       `yaml:"dependencies"`
}

// TranscriptText joins the topic's segments into one block.
func (t *Topic) TranscriptText() string {
	if t == nil || len(t.Transcript) == 0 {
		return ""
	}
	parts := make([]string, 0, len(t.Transcript))
	for _, seg := range t.Transcript {
		if trimmed := strings.TrimSpace(seg.Text); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return strings.Join(parts, "\n\n")
}

// Curriculum is an ordered course of topics.
type Curriculum struct {
	ID      string  `yaml:"id"`
	Title   string  `yaml:"title"`
	Outline string  `yaml:"outline"`
	Topics  []Topic `yaml:"topics"`
}

// TopicAt returns the topic at index, or nil when out of range.
func (c *Curriculum) TopicAt(index int) *Topic {
	if c == nil || index < 0 || index >= len(c.Topics) {
		return nil
	}
	return &c.Topics[index]
}

// OutlineText returns the explicit outline, or a generated one listing
// topic titles in curriculum order.
func (c *Curriculum) OutlineText() string {
	if c == nil {
		return ""
	}
	if strings.TrimSpace(c.Outline) != "" {
		return c.Outline
	}
	var sb strings.Builder
	for i, topic := range c.Topics {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString("- ")
		sb.WriteString(topic.Title)
	}
	return sb.String()
}

// Provider exposes the currently selected curriculum and topic as
// current-value reads. The expansion coordinator depends on this
// interface only, never on the concrete store.
type Provider interface {
	// Curriculum returns the selected curriculum, or nil.
	Curriculum() *Curriculum

	// CurrentTopic returns the active topic, its index in curriculum
	// order, and whether a topic is selected.
	CurrentTopic() (*Topic, int, bool)
}
