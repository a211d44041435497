package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lamim/storyforge/internal/checkpoint"
	"github.com/lamim/storyforge/internal/writer"
	"github.com/lamim/storyforge/pkg/models"
)

func newCheckpointCmd() *cobra.Command {
	checkpointCmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Manage checkpoints",
		Long:  "Manage pipeline checkpoints for resuming interrupted sessions",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List all available checkpoint sessions",
		Long:  "List all session directories in the output folder that contain checkpoints",
		RunE:  listCheckpoints,
	}

	inspectCmd := &cobra.Command{
		Use:   "inspect <session-dir>",
		Short: "Inspect a checkpoint",
		Long:  "Display detailed information about a checkpoint from a specific session",
		Args:  cobra.ExactArgs(1),
		RunE:  inspectCheckpoint,
	}

	checkpointCmd.AddCommand(listCmd, inspectCmd)
	return checkpointCmd
}

// listCheckpoints lists all available checkpoint sessions
func listCheckpoints(cmd *cobra.Command, args []string) error {
	sessions, err := writer.ListSessions(outputDir)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("No session directories found.")
		return nil
	}

	quiet := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	fmt.Println("Available sessions:")
	fmt.Println()
	fmt.Printf("%-35s %-12s %-12s %s\n", "SESSION", "CHECKPOINT", "PHASE", "PROGRESS")
	fmt.Println(strings.Repeat("-", 80))

	for _, name := range sessions {
		sessionPath := filepath.Join(outputDir, name)
		hasCheckpoint := "No"
		phase := "N/A"
		progress := 0.0

		if _, err := os.Stat(filepath.Join(sessionPath, checkpoint.CheckpointFilename)); err == nil {
			hasCheckpoint = "Yes"
			if cp, err := checkpoint.Load(sessionPath, quiet); err == nil {
				phase = string(cp.CurrentPhase)
				progress = checkpoint.GetProgressPercentage(cp)
			}
		}
		fmt.Printf("%-35s %-12s %-12s %.1f%%\n", name, hasCheckpoint, phase, progress)
	}

	return nil
}

// inspectCheckpoint displays detailed information about a checkpoint
func inspectCheckpoint(cmd *cobra.Command, args []string) error {
	sessionDir := args[0]

	if err := writer.ValidateSessionPath(outputDir, sessionDir); err != nil {
		return fmt.Errorf("invalid session directory: %w", err)
	}

	fullPath := filepath.Join(outputDir, sessionDir)
	if _, err := os.Stat(fullPath); os.IsNotExist(err) {
		return fmt.Errorf("session directory not found: %s", sessionDir)
	}

	quiet := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	cp, err := checkpoint.Load(fullPath, quiet)
	if err != nil {
		return fmt.Errorf("failed to load checkpoint: %w", err)
	}

	fmt.Printf("Checkpoint Information for: %s\n", sessionDir)
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Session ID:          %s\n", cp.SessionID)
	fmt.Printf("Created At:          %s\n", cp.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Last Saved At:       %s\n", cp.LastSavedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Current Phase:       %s\n", cp.CurrentPhase)
	fmt.Printf("Config Hash:         %s\n", cp.ConfigHash)
	fmt.Printf("Theme:               %s\n", cp.Request.Theme)
	fmt.Printf("Niche / Genres:      %s / %s\n", cp.Request.Niche, cp.Request.GenreMix())
	fmt.Println()

	fmt.Println("Phase Progress:")
	fmt.Printf("  Synopsis:          %s\n", statusStr(cp.Synopsis != ""))
	fmt.Printf("  Chapter Plan:      %s (%d chapters, %s)\n", statusStr(cp.PlanComplete), len(cp.Plan), outcomeStr(cp.PlanOutcome))
	fmt.Printf("  Chapters:          %d / %d written (%.1f%%)\n",
		len(cp.Chapters), len(cp.Plan), checkpoint.GetProgressPercentage(cp))
	fmt.Printf("  Visual Prompts:    %s (%d prompts)\n", statusStr(cp.VisualsComplete), len(cp.Prompts.Flatten()))
	fmt.Printf("  Translation:       %s\n", statusStr(cp.TranslationComplete))
	if pending := checkpoint.GetPendingChapters(cp); len(pending) > 0 {
		titles := make([]string, len(pending))
		for i, entry := range pending {
			titles[i] = fmt.Sprintf("%d. %s", entry.Index, entry.Title)
		}
		fmt.Printf("  Pending:           %s\n", strings.Join(titles, "; "))
	}
	fmt.Println()

	fmt.Println("Statistics:")
	fmt.Printf("  Fallback Chapters: %d\n", cp.Stats.FallbackChapters)
	fmt.Printf("  Fallback Prompts:  %d\n", cp.Stats.FallbackPrompts)
	fmt.Printf("  Critique Rounds:   %d\n", cp.Stats.CritiqueRounds)
	if cp.Stats.TotalDuration > 0 {
		fmt.Printf("  Total Duration:    %s\n", cp.Stats.TotalDuration)
	}
	fmt.Println()

	if cp.CurrentPhase != models.PhaseComplete {
		fmt.Println("To resume this session, run:")
		fmt.Printf("  storyforge run --resume %s\n", sessionDir)
	} else {
		fmt.Println("This session is complete.")
	}

	return nil
}

func statusStr(complete bool) string {
	if complete {
		return "Complete"
	}
	return "Pending"
}

func outcomeStr(o models.Outcome) string {
	if o == "" {
		return "n/a"
	}
	return string(o)
}
