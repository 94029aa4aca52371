package confidence

import "testing"

func TestConfidentAnswerScoresHigh(t *testing.T) {
	analyzer := NewLexicalAnalyzer()
	analysis := analyzer.Analyze("Mitosis is the process where one cell divides into two " +
		"genetically identical daughter cells. It has four phases: prophase, metaphase, " +
		"anaphase, and telophase.")
	if analysis.Score < currentTopicThreshold {
		t.Fatalf("confident answer scored %.2f", analysis.Score)
	}
	rec := Recommend(analysis)
	if rec.ShouldExpand {
		t.Fatalf("confident answer should not trigger expansion: %+v", rec)
	}
	if rec.Scope != ScopeNone {
		t.Fatalf("expected scope none, got %s", rec.Scope)
	}
}

func TestHedgedAnswerWidensToTopic(t *testing.T) {
	analyzer := NewLexicalAnalyzer()
	analysis := analyzer.Analyze("I think the spindle fibers attach to the centromere " +
		"during metaphase, and they pull the chromatids apart in the next phase.")
	rec := Recommend(analysis)
	if !rec.ShouldExpand || rec.Scope != ScopeCurrentTopic {
		t.Fatalf("single hedge should widen to the current topic, got %+v (score %.2f)", rec, analysis.Score)
	}
}

func TestDeflectedAnswerWidensToUnit(t *testing.T) {
	analyzer := NewLexicalAnalyzer()
	analysis := analyzer.Analyze("I'm not sure about that part, we haven't reached it in this lesson yet.")
	rec := Recommend(analysis)
	if !rec.ShouldExpand || rec.Scope != ScopeCurrentUnit {
		t.Fatalf("deflection should widen to the unit, got %+v (score %.2f)", rec, analysis.Score)
	}
}

func TestHeavyDeflectionWidensToCurriculum(t *testing.T) {
	analyzer := NewLexicalAnalyzer()
	analysis := analyzer.Analyze("I don't know, that's outside the material we have. " +
		"Maybe it could be related to something we haven't reached.")
	rec := Recommend(analysis)
	if !rec.ShouldExpand || rec.Scope != ScopeFullCurriculum {
		t.Fatalf("heavy deflection should widen to the full curriculum, got %+v (score %.2f)", rec, analysis.Score)
	}
	if len(analysis.Signals) < 3 {
		t.Fatalf("expected multiple recorded signals, got %v", analysis.Signals)
	}
}

func TestScoreNeverGoesNegative(t *testing.T) {
	analyzer := NewLexicalAnalyzer()
	analysis := analyzer.Analyze("I don't know. I'm not sure. Maybe. Possibly. Perhaps. " +
		"I think it could be outside the material and I cannot answer that.")
	if analysis.Score < 0 {
		t.Fatalf("score went negative: %.2f", analysis.Score)
	}
}

func TestShortAnswerIsPenalized(t *testing.T) {
	analyzer := NewLexicalAnalyzer()
	long := analyzer.Analyze("The Calvin cycle fixes carbon dioxide into sugar in the stroma.")
	short := analyzer.Analyze("In the stroma.")
	if short.Score >= long.Score {
		t.Fatalf("short answer %.2f should score below a full one %.2f", short.Score, long.Score)
	}
}
