package checkpoint

import (
	"fmt"

	"github.com/lamim/storyforge/internal/config"
	"github.com/lamim/storyforge/pkg/models"
)

// ValidateCheckpoint verifies checkpoint is compatible with current config
func ValidateCheckpoint(cp *models.Checkpoint, cfg *config.Config) error {
	expectedHash := ComputeConfigHash(cfg, cp.Request)
	if cp.ConfigHash != expectedHash {
		return fmt.Errorf("checkpoint config mismatch: checkpoint was created with different chapter/prompt counts (hash: %s vs %s)", cp.ConfigHash, expectedHash)
	}

	if cp.CurrentPhase == models.PhaseComplete {
		return fmt.Errorf("checkpoint is already complete, nothing to resume")
	}

	if cp.PlanComplete && len(cp.Chapters) > len(cp.Plan) {
		return fmt.Errorf("checkpoint has %d chapters for a %d-chapter plan", len(cp.Chapters), len(cp.Plan))
	}

	return nil
}

// GetPendingChapters returns the plan entries that still need to be written
func GetPendingChapters(cp *models.Checkpoint) []models.ChapterPlanEntry {
	if !cp.PlanComplete {
		return nil
	}
	if len(cp.Chapters) >= len(cp.Plan) {
		return nil
	}
	return append([]models.ChapterPlanEntry{}, cp.Plan[len(cp.Chapters):]...)
}

// GetProgressPercentage returns completed chapters as a percentage of the plan
func GetProgressPercentage(cp *models.Checkpoint) float64 {
	total := len(cp.Plan)
	if total == 0 {
		return 0.0
	}
	return float64(len(cp.Chapters)) / float64(total) * 100.0
}

// RestoreRun rebuilds a pipeline run from a checkpoint
func RestoreRun(cp *models.Checkpoint) *models.PipelineRun {
	run := models.NewPipelineRun(cp.SessionID, cp.Request)
	run.CreatedAt = cp.CreatedAt
	run.Synopsis = cp.Synopsis
	run.Plan = append(models.ChapterPlan{}, cp.Plan...)
	run.PlanOutcome = cp.PlanOutcome
	run.Chapters = append([]models.ChapterText{}, cp.Chapters...)
	run.Context = models.RollingContext{Fragments: append([]string{}, cp.Context.Fragments...)}
	run.Stats = cp.Stats
	run.StoryID = cp.StoryID
	if cp.VisualsComplete {
		run.Prompts = cp.Prompts
		run.Source = cp.Source
	}
	if cp.TranslationComplete {
		run.Target = cp.Target
	}
	return run
}
