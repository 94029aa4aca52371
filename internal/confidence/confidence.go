// Package confidence scores how sure the tutor's generated answer
// sounds and maps low scores to a context-expansion scope. The scoring
// is lexical on purpose: it runs on every response, so it has to be
// cheap, deterministic, and independent of any provider.
package confidence

import "strings"

// Scope names how far afield an expansion search should look.
type Scope string

const (
	ScopeNone           Scope = "none"
	ScopeCurrentTopic   Scope = "current_topic"
	ScopeCurrentUnit    Scope = "current_unit"
	ScopeFullCurriculum Scope = "full_curriculum"
	ScopeRelated        Scope = "related"
)

// Score bands. Below each threshold the recommended search widens.
const (
	fullCurriculumThreshold = 0.35
	currentUnitThreshold    = 0.55
	currentTopicThreshold   = 0.70
)

// Analysis is the outcome of scoring one response.
type Analysis struct {
	// Score is in [0, 1]; 1 means fully confident.
	Score float64
	// Signals lists the hedge phrases that lowered the score.
	Signals []string
}

// Recommendation tells the coordinator whether and where to expand.
type Recommendation struct {
	ShouldExpand bool
	Scope        Scope
	Reason       string
}

// Analyzer scores a generated tutor response.
type Analyzer interface {
	Analyze(response string) Analysis
}

// Deflections are phrases that signal the tutor effectively has no
// answer in its context; hedges merely weaken one.
var (
	deflectionPhrases = []string{
		"i don't know",
		"i do not know",
		"i'm not sure",
		"i am not sure",
		"i'm unsure",
		"not covered in",
		"doesn't cover",
		"does not cover",
		"outside the material",
		"beyond the material",
		"don't have information",
		"do not have information",
		"can't answer that",
		"cannot answer that",
	}
	hedgePhrases = []string{
		"it might be",
		"might be related",
		"maybe",
		"possibly",
		"perhaps",
		"i think",
		"i believe",
		"it could be",
		"if i recall",
		"as far as i know",
	}
)

// One deflection lands in the unit band, one hedge in the topic band;
// any combination widens further.
const (
	deflectionPenalty  = 0.5
	hedgePenalty       = 0.35
	shortAnswerPenalty = 0.2
	shortAnswerRunes   = 20
)

// LexicalAnalyzer scores responses by scanning for hedging and
// deflection language.
type LexicalAnalyzer struct{}

// NewLexicalAnalyzer returns the default analyzer.
func NewLexicalAnalyzer() *LexicalAnalyzer {
	return &LexicalAnalyzer{}
}

// Analyze starts from full confidence and subtracts a penalty per
// matched phrase. Each phrase counts once no matter how often it
// repeats. Very short responses carry an extra penalty since a tutor
// with material to teach rarely answers in a few words.
func (LexicalAnalyzer) Analyze(response string) Analysis {
	lowered := strings.ToLower(response)
	analysis := Analysis{Score: 1.0}

	for _, phrase := range deflectionPhrases {
		if strings.Contains(lowered, phrase) {
			analysis.Score -= deflectionPenalty
			analysis.Signals = append(analysis.Signals, phrase)
		}
	}
	for _, phrase := range hedgePhrases {
		if strings.Contains(lowered, phrase) {
			analysis.Score -= hedgePenalty
			analysis.Signals = append(analysis.Signals, phrase)
		}
	}
	if len([]rune(strings.TrimSpace(response))) < shortAnswerRunes {
		analysis.Score -= shortAnswerPenalty
		analysis.Signals = append(analysis.Signals, "short answer")
	}

	if analysis.Score < 0 {
		analysis.Score = 0
	}
	return analysis
}

// Recommend maps a score to an expansion scope: the less confident the
// answer, the wider the search.
func Recommend(analysis Analysis) Recommendation {
	reason := "confident answer"
	if len(analysis.Signals) > 0 {
		reason = strings.Join(analysis.Signals, ", ")
	}
	switch {
	case analysis.Score < fullCurriculumThreshold:
		return Recommendation{ShouldExpand: true, Scope: ScopeFullCurriculum, Reason: reason}
	case analysis.Score < currentUnitThreshold:
		return Recommendation{ShouldExpand: true, Scope: ScopeCurrentUnit, Reason: reason}
	case analysis.Score < currentTopicThreshold:
		return Recommendation{ShouldExpand: true, Scope: ScopeCurrentTopic, Reason: reason}
	default:
		return Recommendation{ShouldExpand: false, Scope: ScopeNone, Reason: reason}
	}
}
