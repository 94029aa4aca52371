// Package reading builds the context for document-playback Q&A: a
// sliding window of chunks around the listener's position, plus the
// message list for answering questions about what was just read. Unlike
// the tutoring assembler it is stateless per call.
package reading

import (
	"fmt"
	"strings"

	"sage/internal/llm"
	"sage/internal/token"
)

// Config bounds the window. Zero values fall back to the defaults.
type Config struct {
	// PrecedingChunks and FollowingChunks count whole chunks on either
	// side of the current one.
	PrecedingChunks int
	FollowingChunks int
	// MaxSectionChars caps the preceding and following sections after
	// joining; the current chunk is always carried verbatim.
	MaxSectionChars int
}

// DefaultConfig matches a few minutes of listening on either side.
func DefaultConfig() Config {
	return Config{PrecedingChunks: 2, FollowingChunks: 1, MaxSectionChars: 1200}
}

func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.PrecedingChunks <= 0 {
		c.PrecedingChunks = def.PrecedingChunks
	}
	if c.FollowingChunks <= 0 {
		c.FollowingChunks = def.FollowingChunks
	}
	if c.MaxSectionChars <= 0 {
		c.MaxSectionChars = def.MaxSectionChars
	}
	return c
}

// Window is the assembled reading context around one position.
type Window struct {
	Preceding       string
	Current         string
	Following       string
	Position        int
	Total           int
	EstimatedTokens int
}

// QA is one prior exchange in the same reading session.
type QA struct {
	Question string
	Answer   string
}

// maxQAPairs bounds how much session history rides along with each
// question.
const maxQAPairs = 6

const readingPersona = "You are a reading companion. The listener is playing a document aloud " +
	"and has paused to ask a question. Answer from the document sections provided, " +
	"favor what is currently being read, and keep answers brief and spoken-friendly."

// Builder assembles reading windows under one configuration.
type Builder struct {
	cfg Config
	est token.Estimator
}

// NewBuilder returns a builder with the given configuration and the
// default token estimator.
func NewBuilder(cfg Config) *Builder {
	return &Builder{cfg: cfg.normalized(), est: token.Estimate}
}

// BuildWindow slices the chunk list around index. The preceding section
// keeps its suffix when over the character cap (the most recently heard
// material), the following section keeps its prefix, and the current
// chunk is never cut. An out-of-range index is clamped.
func (b *Builder) BuildWindow(chunks []string, index int) Window {
	if len(chunks) == 0 {
		return Window{}
	}
	if index < 0 {
		index = 0
	}
	if index >= len(chunks) {
		index = len(chunks) - 1
	}

	start := index - b.cfg.PrecedingChunks
	if start < 0 {
		start = 0
	}
	end := index + b.cfg.FollowingChunks
	if end > len(chunks)-1 {
		end = len(chunks) - 1
	}

	w := Window{
		Preceding: clipSuffix(joinChunks(chunks[start:index]), b.cfg.MaxSectionChars),
		Current:   strings.TrimSpace(chunks[index]),
		Following: clipPrefix(joinChunks(chunks[index+1:end+1]), b.cfg.MaxSectionChars),
		Position:  index,
		Total:     len(chunks),
	}
	w.EstimatedTokens = b.est(b.layout("", w))
	return w
}

// BuildMessages folds a window, the session's recent Q&A, and the new
// question into the ordered message list for the provider.
func (b *Builder) BuildMessages(title string, chunks []string, index int, history []QA, question string) []llm.Message {
	w := b.BuildWindow(chunks, index)

	if len(history) > maxQAPairs {
		history = history[len(history)-maxQAPairs:]
	}
	messages := make([]llm.Message, 0, 2*len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: b.SystemMessage(title, w)})
	for _, qa := range history {
		messages = append(messages,
			llm.Message{Role: llm.RoleUser, Content: qa.Question},
			llm.Message{Role: llm.RoleAssistant, Content: qa.Answer})
	}
	return append(messages, llm.Message{Role: llm.RoleUser, Content: question})
}

// SystemMessage renders the persona instruction plus the document
// layout for one window.
func (b *Builder) SystemMessage(title string, w Window) string {
	return readingPersona + "\n\n" + b.layout(title, w)
}

func (b *Builder) layout(title string, w Window) string {
	var sb strings.Builder
	heading := "# Document"
	if strings.TrimSpace(title) != "" {
		heading += ": " + strings.TrimSpace(title)
	}
	sb.WriteString(heading)
	if w.Total > 0 {
		fmt.Fprintf(&sb, " (section %d of %d)", w.Position+1, w.Total)
	}
	if w.Preceding != "" {
		sb.WriteString("\n\n## Previously Read\n")
		sb.WriteString(w.Preceding)
	}
	if w.Current != "" {
		sb.WriteString("\n\n## Currently Reading\n")
		sb.WriteString(w.Current)
	}
	if w.Following != "" {
		sb.WriteString("\n\n## Coming Up Next\n")
		sb.WriteString(w.Following)
	}
	return sb.String()
}

func joinChunks(chunks []string) string {
	parts := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if trimmed := strings.TrimSpace(chunk); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return strings.Join(parts, "\n\n")
}

// clipSuffix keeps exactly the last limit runes when text is over the
// cap. No marker is added: the cut always lands mid-flow and the
// section heading already signals partial content.
func clipSuffix(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[len(runes)-limit:])
}

func clipPrefix(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
