package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"

	"github.com/lamim/storyforge/internal/checkpoint"
	"github.com/lamim/storyforge/internal/config"
	"github.com/lamim/storyforge/internal/editor"
	"github.com/lamim/storyforge/internal/metrics"
	"github.com/lamim/storyforge/internal/story"
	"github.com/lamim/storyforge/internal/writer"
	"github.com/lamim/storyforge/pkg/models"
)

// StoryStore persists finished stories in the library
type StoryStore interface {
	Create(ctx context.Context, rec models.StoryRecord) (string, error)
	UpdateDrafts(ctx context.Context, id, source, target string) error
}

// Orchestrator drives a story through every pipeline stage
type Orchestrator struct {
	cfg        *config.Config
	planner    *story.Planner
	writer     *story.Writer
	visuals    *story.VisualExtractor
	translator *story.Translator
	editor     *editor.Editor

	store         StoryStore
	artifacts     writer.Artifacts
	checkpointMgr *checkpoint.Manager
	resumeMode    bool
	metrics       *metrics.Collector
	logger        *slog.Logger
	showProgress  bool

	sleep func(ctx context.Context, d time.Duration) error
}

// New creates an orchestrator. mainGen serves the writing stages and editorGen
// the critique/rewrite loop; they may be the same generator.
func New(cfg *config.Config, mainGen, editorGen story.Generator, logger *slog.Logger) *Orchestrator {
	gen := cfg.Generation
	prompts := story.NewPrompts(cfg.PromptTemplates)

	return &Orchestrator{
		cfg:        cfg,
		planner:    story.NewPlanner(mainGen, prompts, gen.ChapterCount, gen.SourceLanguage, logger),
		writer:     story.NewWriter(mainGen, prompts, gen.SourceLanguage, gen.ChapterWordsMin, gen.ChapterWordsMax, logger),
		visuals:    story.NewVisualExtractor(mainGen, prompts, gen.PromptsPerChapter, logger),
		translator: story.NewTranslator(mainGen, prompts, gen.Concurrency, logger),
		editor:     editor.New(editorGen, cfg.PromptTemplates, logger),
		logger:     logger.With("component", "orchestrator"),
		sleep:      sleepContext,
	}
}

// SetStore enables the persistence stage
func (o *Orchestrator) SetStore(s StoryStore) { o.store = s }

// SetArtifacts enables writing intermediate products to the session directory
func (o *Orchestrator) SetArtifacts(a writer.Artifacts) { o.artifacts = a }

// SetCheckpoint enables checkpointing; with resume set, Resume continues the saved run
func (o *Orchestrator) SetCheckpoint(mgr *checkpoint.Manager, resume bool) {
	o.checkpointMgr = mgr
	o.resumeMode = resume
}

func (o *Orchestrator) SetMetrics(m *metrics.Collector) { o.metrics = m }

// SetProgress toggles terminal progress bars
func (o *Orchestrator) SetProgress(show bool) { o.showProgress = show }

// Run executes the complete pipeline for req
func (o *Orchestrator) Run(ctx context.Context, req models.StoryRequest) (*models.PipelineRun, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	id := uuid.New().String()
	if o.checkpointMgr != nil {
		id = o.checkpointMgr.GetCheckpoint().SessionID
	}
	return o.execute(ctx, models.NewPipelineRun(id, req))
}

// Resume continues the run saved in the checkpoint
func (o *Orchestrator) Resume(ctx context.Context) (*models.PipelineRun, error) {
	if o.checkpointMgr == nil || !o.resumeMode {
		return nil, errors.New("resume requires a checkpoint manager in resume mode")
	}

	cp := o.checkpointMgr.GetCheckpoint()
	if err := checkpoint.ValidateCheckpoint(cp, o.cfg); err != nil {
		return nil, err
	}

	run := checkpoint.RestoreRun(cp)
	run.Stats.StartTime = time.Now()
	o.logger.Info("Resuming run from checkpoint",
		"session_id", cp.SessionID,
		"phase", cp.CurrentPhase,
		"progress", fmt.Sprintf("%.1f%%", checkpoint.GetProgressPercentage(cp)))
	return o.execute(ctx, run)
}

func (o *Orchestrator) execute(ctx context.Context, run *models.PipelineRun) (result *models.PipelineRun, err error) {
	defer func() {
		if o.checkpointMgr == nil {
			return
		}
		if saveErr := o.checkpointMgr.SaveSync(); saveErr != nil {
			o.logger.Error("Failed to save final checkpoint", "error", saveErr)
			if err == nil {
				err = fmt.Errorf("checkpoint save failed during shutdown: %w", saveErr)
			}
		}
		if closeErr := o.checkpointMgr.Close(); closeErr != nil {
			o.logger.Error("Failed to close checkpoint manager", "error", closeErr)
			if err == nil {
				err = fmt.Errorf("checkpoint save failed during shutdown: %w", closeErr)
			}
		}
	}()

	gen := o.cfg.Generation
	o.logger.Info("Starting story pipeline",
		"run_id", run.ID,
		"theme", run.Request.Theme,
		"niche", run.Request.Niche,
		"genres", run.Request.GenreMix(),
		"chapters", gen.ChapterCount,
		"prompts_per_chapter", gen.PromptsPerChapter,
		"resume_mode", o.resumeMode)

	if err := o.planStory(ctx, run); err != nil {
		return run, err
	}

	if err := o.writeChapters(ctx, run); err != nil {
		return run, fmt.Errorf("failed to write chapters: %w", err)
	}

	if run.Prompts == nil {
		if err := o.extractVisuals(ctx, run); err != nil {
			return run, err
		}
	}

	if run.Target.IsEmpty() && gen.TargetLanguage != "" && gen.TargetLanguage != gen.SourceLanguage {
		if err := o.translate(ctx, run); err != nil {
			return run, err
		}
	}

	if gen.CritiqueRounds > 0 {
		if err := o.Refine(ctx, run, gen.CritiqueRounds); err != nil {
			if ctx.Err() != nil {
				return run, ctx.Err()
			}
			o.logger.Warn("Editing loop stopped early", "error", err, "rounds_completed", run.Stats.CritiqueRounds)
		}
	}

	o.verifyRun(run)

	run.Stats.EndTime = time.Now()
	run.Stats.TotalDuration = run.Stats.EndTime.Sub(run.Stats.StartTime)
	run.Stats.PlanOutcome = run.PlanOutcome

	if err := o.Persist(ctx, run); err != nil {
		o.writeRunArtifact(run)
		return run, err
	}

	if o.checkpointMgr != nil {
		if err := o.checkpointMgr.MarkComplete(&run.Stats); err != nil {
			o.logger.Warn("Failed to save final checkpoint", "error", err)
		}
	}
	o.writeRunArtifact(run)

	o.logger.Info("Story pipeline completed",
		"run_id", run.ID,
		"story_id", run.StoryID,
		"chapters", run.Stats.Chapters,
		"fallback_chapters", run.Stats.FallbackChapters,
		"fallback_prompts", run.Stats.FallbackPrompts,
		"fallback_sections", run.Stats.FallbackSections,
		"critique_rounds", run.Stats.CritiqueRounds,
		"duration", run.Stats.TotalDuration)

	if run.Stats.FallbackChapters > 0 {
		o.logger.Warn("Story completed with placeholder chapters",
			"placeholders", run.Stats.FallbackChapters,
			"total", run.Stats.Chapters)
	}

	return run, nil
}

// planStory produces the synopsis and the chapter plan, skipping what the run already has
func (o *Orchestrator) planStory(ctx context.Context, run *models.PipelineRun) error {
	if run.Synopsis == "" {
		start := time.Now()
		synopsis, err := o.planner.Synopsis(ctx, run.Request)
		o.metrics.RecordStage("synopsis", time.Since(start))
		if err != nil {
			o.metrics.RecordOutcome("synopsis", "error")
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("failed to generate synopsis: %w", err)
		}
		o.metrics.RecordOutcome("synopsis", string(models.OutcomeOK))
		run.Synopsis = synopsis

		if o.checkpointMgr != nil {
			if err := o.checkpointMgr.MarkSynopsisComplete(synopsis); err != nil {
				o.logger.Warn("Failed to save synopsis checkpoint", "error", err)
			}
		}
		o.writeArtifact("synopsis", func(a writer.Artifacts) error { return a.WriteSynopsis(synopsis) })
	} else {
		o.logger.Info("Resuming from checkpoint: synopsis complete")
	}

	if len(run.Plan) == 0 {
		start := time.Now()
		result := o.planner.Chapters(ctx, run.Synopsis, run.Request)
		o.metrics.RecordStage("plan", time.Since(start))
		o.metrics.RecordOutcome("plan", string(result.Outcome))
		if err := ctx.Err(); err != nil {
			return err
		}
		run.Plan = result.Plan
		run.PlanOutcome = result.Outcome

		if o.checkpointMgr != nil {
			if err := o.checkpointMgr.MarkPlanComplete(run.Plan, run.PlanOutcome); err != nil {
				o.logger.Warn("Failed to save plan checkpoint", "error", err)
			}
		}
		o.writeArtifact("plan", func(a writer.Artifacts) error { return a.WritePlan(run.Plan) })
	} else {
		o.logger.Info("Resuming from checkpoint: plan complete", "chapters", len(run.Plan))
	}

	for _, overlap := range story.FindBeatOverlaps(run.Plan, o.cfg.Generation.OverlapThreshold) {
		o.metrics.IncrementOverlapWarnings()
		o.logger.Warn("Chapter beats look repetitive",
			"chapter", overlap.First,
			"similar_to", overlap.Second,
			"similarity", fmt.Sprintf("%.2f", overlap.Similarity))
	}

	return nil
}

// Persist saves the run to the story library. A run that was persisted before
// gets its drafts updated instead of a second record.
func (o *Orchestrator) Persist(ctx context.Context, run *models.PipelineRun) error {
	if o.store == nil {
		return nil
	}

	if run.StoryID != "" {
		err := o.store.UpdateDrafts(ctx, run.StoryID, run.Source.Text, run.Target.Text)
		o.metrics.RecordPersisted(err == nil)
		if err != nil {
			return fmt.Errorf("failed to update story %s: %w", run.StoryID, err)
		}
		o.logger.Info("Story drafts updated", "story_id", run.StoryID)
		return nil
	}

	id, err := o.store.Create(ctx, run.Record())
	o.metrics.RecordPersisted(err == nil)
	if err != nil {
		return fmt.Errorf("failed to persist story: %w", err)
	}
	run.StoryID = id
	o.logger.Info("Story persisted", "story_id", id)

	if o.checkpointMgr != nil {
		if err := o.checkpointMgr.MarkPersisted(id); err != nil {
			o.logger.Warn("Failed to record story id in checkpoint", "story_id", id, "error", err)
		}
	}
	return nil
}

// verifyRun logs any structural mismatch in the finished run
func (o *Orchestrator) verifyRun(run *models.PipelineRun) {
	gen := o.cfg.Generation
	if len(run.Chapters) != gen.ChapterCount {
		o.logger.Warn("Chapter count mismatch", "expected", gen.ChapterCount, "actual", len(run.Chapters))
	}
	if got, want := len(run.Prompts.Flatten()), len(run.Chapters)*gen.PromptsPerChapter; got != want {
		o.logger.Warn("Visual prompt count mismatch", "expected", want, "actual", got)
	}
	if !run.Target.IsEmpty() {
		if src, dst := story.CountMarkers(run.Source.Text), story.CountMarkers(run.Target.Text); src != dst {
			o.logger.Warn("Chapter marker mismatch between drafts", "source", src, "target", dst)
		}
	}
}

func (o *Orchestrator) writeArtifact(name string, fn func(writer.Artifacts) error) {
	if o.artifacts == nil {
		return
	}
	if err := fn(o.artifacts); err != nil {
		o.logger.Warn("Failed to write artifact", "artifact", name, "error", err)
	}
}

func (o *Orchestrator) writeRunArtifact(run *models.PipelineRun) {
	o.writeArtifact("run", func(a writer.Artifacts) error { return a.WriteRun(run) })
}

func (o *Orchestrator) newBar(total int, description string) *progressbar.ProgressBar {
	if o.showProgress {
		return progressbar.Default(int64(total), description)
	}
	return progressbar.DefaultSilent(int64(total), description)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
