package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/lamim/storyforge/internal/config"
	"github.com/lamim/storyforge/internal/story"
	"github.com/lamim/storyforge/internal/writer"
	"github.com/lamim/storyforge/pkg/models"
)

// writeChapters writes every chapter not yet in run, strictly in plan order.
// Each chapter sees the synopsis, its own planned events and the tail of the
// summaries of the chapters before it.
func (o *Orchestrator) writeChapters(ctx context.Context, run *models.PipelineRun) error {
	if len(run.Chapters) >= len(run.Plan) {
		o.logger.Info("Resuming from checkpoint: chapters complete", "count", len(run.Chapters))
		return nil
	}

	gen := o.cfg.Generation
	pending := run.Plan[len(run.Chapters):]
	if len(run.Chapters) > 0 {
		o.logger.Info("Resuming from checkpoint: chapter phase",
			"written", len(run.Chapters),
			"pending", len(pending))
	}

	bar := o.newBar(len(pending), "Writing chapters")
	defer func() { _ = bar.Finish() }()

	for _, entry := range pending {
		if len(run.Chapters) > 0 {
			if err := o.sleep(ctx, gen.ChapterDelay()); err != nil {
				return err
			}
		}

		start := time.Now()
		chapter, outcome, err := o.writer.WriteChapter(ctx, story.ChapterInput{
			Entry:        entry,
			ChapterCount: len(run.Plan),
			Synopsis:     run.Synopsis,
			Context:      run.Context.Tail(gen.ContextWindowChars),
			Genres:       run.Request.GenreMix(),
		})
		if err == nil {
			if reason, bad := rejectChapter(chapter.Body); bad {
				err = fmt.Errorf("chapter %d rejected: %s", entry.Index, reason)
				chapter, outcome = story.PlaceholderChapter(entry), models.OutcomeFallback
			} else if incomplete, why := isIncompleteOutput(chapter.Body); incomplete {
				o.logger.Warn("Chapter may be cut off", "chapter", entry.Index, "reason", why)
			}
		}
		o.metrics.RecordStage("chapter", time.Since(start))
		o.metrics.RecordOutcome("chapter", string(outcome))

		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if gen.ChapterFailure == config.FailureAbort {
				return fmt.Errorf("chapter %d of %d: %w", entry.Index, len(run.Plan), err)
			}
			o.logger.Warn("Chapter generation failed, using placeholder", "chapter", entry.Index, "error", err)
			run.Stats.FallbackChapters++
		}

		summary, summaryOutcome := o.writer.Summarize(ctx, chapter, entry)
		o.metrics.RecordOutcome("summary", string(summaryOutcome))
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		chapter.Summary = summary
		run.Context.Append(summary)
		run.Chapters = append(run.Chapters, chapter)
		run.Stats.Chapters = len(run.Chapters)

		if o.checkpointMgr != nil {
			if err := o.checkpointMgr.MarkChapterComplete(chapter, run.Context, &run.Stats); err != nil {
				o.logger.Warn("Failed to checkpoint chapter", "chapter", entry.Index, "error", err)
			}
		}

		o.logger.Info("Chapter complete",
			"chapter", entry.Index,
			"of", len(run.Plan),
			"outcome", outcome,
			"duration_ms", time.Since(start).Milliseconds())
		_ = bar.Add(1)
	}

	return nil
}

// extractVisuals assembles the source draft and derives K prompts per chapter
func (o *Orchestrator) extractVisuals(ctx context.Context, run *models.PipelineRun) error {
	run.Source = models.Draft{
		Language: o.cfg.Generation.SourceLanguage,
		Version:  1,
		Text:     story.AssembleDraft(run.Chapters),
	}
	run.State = models.StateDrafted
	o.writeArtifact("source draft", func(a writer.Artifacts) error { return a.WriteDraft(run.Source) })

	concurrency := o.cfg.Generation.Concurrency
	bar := o.newBar(len(run.Chapters), "Extracting visual prompts")
	defer func() { _ = bar.Finish() }()

	o.metrics.SetActiveWorkers("visuals", min(concurrency, len(run.Chapters)))
	defer o.metrics.SetActiveWorkers("visuals", 0)

	start := time.Now()
	prompts, degraded, err := o.visuals.ExtractAll(ctx, run.Chapters, run.Request.Niche, concurrency, func() { _ = bar.Add(1) })
	o.metrics.RecordStage("visuals", time.Since(start))
	if err != nil {
		return fmt.Errorf("failed to extract visual prompts: %w", err)
	}
	for range degraded {
		o.metrics.RecordOutcome("visuals", string(models.OutcomeNormalized))
	}

	run.Prompts = prompts
	run.Stats.FallbackPrompts = degraded
	o.logger.Info("Visual prompts ready",
		"chapters", len(prompts),
		"prompts", len(prompts.Flatten()),
		"degraded_chapters", degraded)

	if o.checkpointMgr != nil {
		if err := o.checkpointMgr.MarkVisualsComplete(run.Prompts, run.Source); err != nil {
			o.logger.Warn("Failed to save visuals checkpoint", "error", err)
		}
	}
	o.writeArtifact("prompts", func(a writer.Artifacts) error { return a.WritePrompts(run.Prompts) })
	return nil
}

// translate produces the target-language draft the editing loop works on
func (o *Orchestrator) translate(ctx context.Context, run *models.PipelineRun) error {
	_, sections := story.SplitSections(run.Source.Text)
	bar := o.newBar(len(sections), "Translating")
	defer func() { _ = bar.Finish() }()

	o.metrics.SetActiveWorkers("translation", min(o.cfg.Generation.Concurrency, len(sections)))
	defer o.metrics.SetActiveWorkers("translation", 0)

	start := time.Now()
	result, err := o.translator.Translate(ctx, run.Source, o.cfg.Generation.TargetLanguage, func() { _ = bar.Add(1) })
	o.metrics.RecordStage("translation", time.Since(start))
	if err != nil {
		return fmt.Errorf("failed to translate draft: %w", err)
	}
	o.metrics.RecordOutcome("translation", string(result.Outcome))

	if result.Outcome == models.OutcomeFallback {
		o.logger.Warn("Translation failed for every section, target draft equals the source text")
	}

	run.Target = result.Draft
	run.Stats.FallbackSections = result.FallbackSections
	run.State = models.StateDrafted

	if o.checkpointMgr != nil {
		if err := o.checkpointMgr.MarkTranslationComplete(run.Target); err != nil {
			o.logger.Warn("Failed to save translation checkpoint", "error", err)
		}
	}
	o.writeArtifact("target draft", func(a writer.Artifacts) error { return a.WriteDraft(run.Target) })
	return nil
}
