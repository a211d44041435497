package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/lamim/storyforge/internal/writer"
	"github.com/lamim/storyforge/pkg/models"
)

// Refine runs up to rounds critique/rewrite cycles on the run's working draft.
// A pending critique left by an earlier failed rewrite is applied before a new
// one is requested.
func (o *Orchestrator) Refine(ctx context.Context, run *models.PipelineRun, rounds int) error {
	genres := run.Request.GenreMix()

	for round := 1; round <= rounds; round++ {
		draft := run.WorkingDraft()
		if draft.IsEmpty() {
			return fmt.Errorf("no draft to refine")
		}

		critique := run.PendingCritique()
		if critique == nil || critique.DraftVersion != draft.Version || critique.Language != draft.Language {
			start := time.Now()
			c, err := o.editor.Critique(ctx, *draft, genres)
			o.metrics.RecordStage("critique", time.Since(start))
			if err != nil {
				o.metrics.RecordOutcome("critique", "error")
				return fmt.Errorf("critique round %d: %w", round, err)
			}
			outcome := models.OutcomeOK
			if c.Fallback {
				outcome = models.OutcomeFallback
			}
			o.metrics.RecordOutcome("critique", string(outcome))

			run.Critiques = append(run.Critiques, *c)
			run.State = models.StateCritiqued
			n := len(run.Critiques)
			o.writeArtifact("critique", func(a writer.Artifacts) error { return a.WriteCritique(n, run.Critiques[n-1]) })
			critique = &run.Critiques[n-1]
		}

		start := time.Now()
		next, err := o.editor.Rewrite(ctx, *draft, critique, genres)
		o.metrics.RecordStage("rewrite", time.Since(start))
		if err != nil {
			o.metrics.RecordOutcome("rewrite", "error")
			return fmt.Errorf("rewrite round %d: %w", round, err)
		}
		o.metrics.RecordOutcome("rewrite", string(models.OutcomeOK))

		*draft = next
		run.State = models.StateRewritten
		run.Stats.CritiqueRounds++
		o.writeArtifact("rewritten draft", func(a writer.Artifacts) error { return a.WriteDraft(next) })

		o.logger.Info("Editing round complete",
			"round", round,
			"draft_version", next.Version,
			"language", next.Language)
	}

	return nil
}
