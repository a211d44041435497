package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lamim/storyforge/internal/checkpoint"
	"github.com/lamim/storyforge/internal/config"
	"github.com/lamim/storyforge/internal/metrics"
	"github.com/lamim/storyforge/internal/orchestrator"
	"github.com/lamim/storyforge/internal/story"
	"github.com/lamim/storyforge/internal/writer"
	"github.com/lamim/storyforge/pkg/models"
)

type runOptions struct {
	theme          string
	niche          string
	genres         []string
	critiqueRounds int
	resume         string
	noStore        bool
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Generate a new story",
		Long: `Run the complete story pipeline:
1. Write a synopsis for the theme
2. Plan the chapters
3. Write every chapter with a rolling summary of the story so far
4. Extract image prompts for each chapter
5. Translate the story
6. Optional: critique and rewrite rounds
7. Save the story to the library`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("critique-rounds") {
				opts.critiqueRounds = -1
			}
			return runPipeline(opts)
		},
	}

	cmd.Flags().StringVar(&opts.theme, "theme", "", "Story theme")
	cmd.Flags().StringVar(&opts.niche, "niche", "", "Audience niche (e.g. \"Bible stories\", horror)")
	cmd.Flags().StringSliceVar(&opts.genres, "genres", nil, "Comma separated genre mix")
	cmd.Flags().IntVar(&opts.critiqueRounds, "critique-rounds", 0, "Critique/rewrite rounds (overrides config)")
	cmd.Flags().StringVar(&opts.resume, "resume", "", "Session directory name to resume")
	cmd.Flags().BoolVar(&opts.noStore, "no-store", false, "Do not save the finished story to the library")
	return cmd
}

// pipeline bundles what run and refine share
type pipeline struct {
	cfg        *config.Config
	session    *writer.SessionManager
	logger     *slog.Logger
	orch       *orchestrator.Orchestrator
	closeFuncs []func()
}

func (p *pipeline) Close() {
	for i := len(p.closeFuncs) - 1; i >= 0; i-- {
		p.closeFuncs[i]()
	}
}

// newPipeline loads config, opens the session and wires the orchestrator
func newPipeline(resumeSession string, useStore bool) (*pipeline, *config.Secrets, error) {
	cfg, secrets, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if resumeSession == "" {
		resumeSession = cfg.Generation.ResumeFromSession
	}

	if verbose {
		for provider, key := range secrets.APIKeys {
			if key != "" {
				fmt.Fprintf(os.Stderr, "Loaded API key for: %s (length: %d)\n", provider, len(key))
			}
		}
	}

	session, err := writer.NewSessionManager(outputDir, slog.Default(), resumeSession)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}

	logger, logFile, err := writer.SetupLogger(session, os.Stdout, consoleLevel())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to setup logger: %w", err)
	}
	p := &pipeline{cfg: cfg, session: session, logger: logger}
	p.closeFuncs = append(p.closeFuncs, func() {
		_ = logFile.Sync()
		_ = logFile.Close()
	})

	collector := metrics.NewCollector(logger)
	client := newAPIClient(cfg, logger, collector)

	mainModel := cfg.Models["main"]
	editorModel := cfg.EditorModel()
	mainGen := story.NewLLMGenerator(client, mainModel, secrets.GetAPIKey(mainModel.BaseURL))
	editorGen := story.NewLLMGenerator(client, editorModel, secrets.GetAPIKey(editorModel.BaseURL))

	p.orch = orchestrator.New(cfg, mainGen, editorGen, logger)
	p.orch.SetMetrics(collector)
	p.orch.SetArtifacts(writer.NewArtifactWriter(session, logger))
	p.orch.SetProgress(true)

	if useStore {
		st, err := openStore(cfg)
		if err != nil {
			p.Close()
			return nil, nil, err
		}
		p.orch.SetStore(st)
		p.closeFuncs = append(p.closeFuncs, func() {
			if err := st.Close(); err != nil {
				logger.Error("failed to close story library", "error", err)
			}
		})
	}

	return p, secrets, nil
}

func runPipeline(opts *runOptions) error {
	p, _, err := newPipeline(opts.resume, !opts.noStore)
	if err != nil {
		return err
	}
	defer p.Close()

	cfg, logger := p.cfg, p.logger
	if opts.critiqueRounds >= 0 {
		cfg.Generation.CritiqueRounds = opts.critiqueRounds
	}
	resumeMode := opts.resume != "" || cfg.Generation.ResumeFromSession != ""

	logger.Info("StoryForge starting",
		"version", Version,
		"config", configPath,
		"session_dir", p.session.GetSessionDir(),
		"resume_mode", resumeMode)

	if !resumeMode {
		if err := p.session.BackupConfig(configPath); err != nil {
			return fmt.Errorf("failed to backup config: %w", err)
		}
	}

	req := models.StoryRequest{Theme: opts.theme, Niche: opts.niche, Genres: opts.genres}

	var mgr *checkpoint.Manager
	if resumeMode {
		cp, err := checkpoint.Load(p.session.GetSessionDir(), logger)
		if err != nil {
			return fmt.Errorf("failed to load checkpoint: %w", err)
		}
		if err := checkpoint.ValidateCheckpoint(cp, cfg); err != nil {
			return fmt.Errorf("checkpoint validation failed: %w", err)
		}
		mgr = checkpoint.NewManagerFromCheckpoint(p.session.GetSessionDir(), cp, cfg, logger)
		logger.Info("Loaded checkpoint",
			"phase", cp.CurrentPhase,
			"chapters", len(cp.Chapters),
			"progress", fmt.Sprintf("%.1f%%", checkpoint.GetProgressPercentage(cp)))
	} else {
		if err := config.ValidateTheme(req.Theme); err != nil {
			return fmt.Errorf("invalid theme: %w", err)
		}
		if err := req.Validate(); err != nil {
			return fmt.Errorf("invalid story request: %w", err)
		}
		mgr = checkpoint.NewManager(p.session.GetSessionDir(), cfg, req, logger)
	}
	p.orch.SetCheckpoint(mgr, resumeMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var run *models.PipelineRun
	if resumeMode {
		run, err = p.orch.Resume(ctx)
	} else {
		run, err = p.orch.Run(ctx, req)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			sessionDir := filepath.Base(p.session.GetSessionDir())
			logger.Warn("Generation interrupted - resume from checkpoint",
				"session_dir", sessionDir,
				"resume_command", fmt.Sprintf("storyforge run --resume %s", sessionDir))
			return fmt.Errorf("generation interrupted (resume with --resume %s)", sessionDir)
		}
		return fmt.Errorf("generation failed: %w", err)
	}

	logger.Info("Generation complete",
		"story_id", run.StoryID,
		"chapters", run.Stats.Chapters,
		"fallback_chapters", run.Stats.FallbackChapters,
		"fallback_prompts", run.Stats.FallbackPrompts,
		"critique_rounds", run.Stats.CritiqueRounds,
		"duration", run.Stats.TotalDuration,
		"session_dir", p.session.GetSessionDir())
	logger.Info("All done! 🎉")
	return nil
}

func newRefineCmd() *cobra.Command {
	var rounds int
	var noStore bool
	cmd := &cobra.Command{
		Use:   "refine <session-dir>",
		Short: "Run more critique/rewrite rounds on a finished session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return refineSession(args[0], rounds, !noStore)
		},
	}
	cmd.Flags().IntVar(&rounds, "rounds", 1, "Critique/rewrite rounds to run")
	cmd.Flags().BoolVar(&noStore, "no-store", false, "Do not update the library record")
	return cmd
}

func refineSession(sessionName string, rounds int, useStore bool) error {
	if rounds < 1 {
		return fmt.Errorf("--rounds must be at least 1")
	}
	if err := writer.ValidateSessionPath(outputDir, sessionName); err != nil {
		return fmt.Errorf("invalid session directory: %w", err)
	}

	run, err := writer.LoadRun(filepath.Join(outputDir, sessionName))
	if err != nil {
		return err
	}

	p, _, err := newPipeline(sessionName, useStore)
	if err != nil {
		return err
	}
	defer p.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p.logger.Info("Refining session", "session_dir", p.session.GetSessionDir(), "rounds", rounds)
	before := run.Stats.CritiqueRounds
	refineErr := p.orch.Refine(ctx, run, rounds)
	if refineErr != nil && run.Stats.CritiqueRounds == before {
		// Keep a critique whose rewrite failed so the next refine applies it
		_ = writer.NewArtifactWriter(p.session, p.logger).WriteRun(run)
		return fmt.Errorf("refine failed: %w", refineErr)
	}
	if refineErr != nil {
		p.logger.Warn("Refine stopped early", "error", refineErr, "completed_rounds", run.Stats.CritiqueRounds-before)
	}

	if err := p.orch.Persist(ctx, run); err != nil {
		return err
	}
	if err := writer.NewArtifactWriter(p.session, p.logger).WriteRun(run); err != nil {
		return fmt.Errorf("failed to write run: %w", err)
	}

	p.logger.Info("Refine complete", "story_id", run.StoryID, "critique_rounds", run.Stats.CritiqueRounds)
	return nil
}
