package fov

import (
	"context"
	"fmt"
	"strings"
)

// CompressEpisodic applies cascade compression to the topic-summary
// list: once the list exceeds the trigger count, the oldest K entries
// are condensed into one synthetic "Earlier topics" entry carrying
// their averaged mastery, preserving the remaining entries unchanged
// and in order. Returns true when a compression pass was applied.
//
// The LLM round-trip runs outside the assembler lock: the oldest K
// entries are snapshotted under the lock, condensed without it, and the
// result is spliced back in under the lock only if those entries are
// still the list head. A concurrent mutation of the head aborts the
// apply; the next trigger simply retries.
func (a *Assembler) CompressEpisodic(ctx context.Context) bool {
	if a.condenser == nil {
		a.logger.Warn("Episodic compression requested without a summarizer; skipping")
		return false
	}

	a.mu.Lock()
	if len(a.episodic.TopicSummaries) <= episodicCompressionTrigger {
		a.mu.Unlock()
		return false
	}
	head := append([]TopicSummary(nil), a.episodic.TopicSummaries[:episodicCascadeWidth]...)
	a.mu.Unlock()

	var lines []string
	var masterySum float64
	for _, ts := range head {
		lines = append(lines, fmt.Sprintf("%s: %s", ts.Title, strings.TrimSpace(ts.Summary)))
		masterySum += ts.Mastery
	}
	condensed, err := a.condenser.Condense(ctx, strings.Join(lines, "\n"))
	if err != nil {
		a.logger.Warn("Episodic compression condensation failed: %v", err)
		return false
	}

	synthetic := TopicSummary{
		Title:     syntheticEarlierTopicsTitle,
		Summary:   strings.TrimSpace(condensed),
		Mastery:   masterySum / float64(len(head)),
		Synthetic: true,
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if !headUnchanged(a.episodic.TopicSummaries, head) {
		a.logger.Warn("Episodic buffer changed during condensation; compression pass discarded")
		return false
	}
	synthetic.CompletedAt = head[len(head)-1].CompletedAt
	remaining := a.episodic.TopicSummaries[episodicCascadeWidth:]
	a.episodic.TopicSummaries = append([]TopicSummary{synthetic}, remaining...)
	a.metrics.RecordCompression()
	a.logger.Info("Episodic cascade compressed %d summaries into one (mean mastery %.2f)",
		len(head), synthetic.Mastery)
	return true
}

func headUnchanged(current, snapshot []TopicSummary) bool {
	if len(current) < len(snapshot) {
		return false
	}
	for i, ts := range snapshot {
		if current[i] != ts {
			return false
		}
	}
	return true
}
