package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lamim/storyforge/internal/config"
	"github.com/lamim/storyforge/internal/media"
	"github.com/lamim/storyforge/internal/metrics"
	"github.com/lamim/storyforge/pkg/models"
)

func newProduceCmd() *cobra.Command {
	var opts media.Options
	var noImages, markDownloaded bool
	cmd := &cobra.Command{
		Use:   "produce <story-id>",
		Short: "Narrate a saved story and render its video",
		Long: `Produce media for a story in the library:
1. Synthesize the narration (title first, markup removed)
2. Generate one still per visual prompt (cached on disk, placeholder on failure)
3. Render the stills with a slow zoom over the narration`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Images = !noImages
			return produceStory(args[0], opts, markDownloaded)
		},
	}
	cmd.Flags().StringVar(&opts.Language, "lang", "", "Draft language to narrate (default: translated draft)")
	cmd.Flags().BoolVar(&opts.Preview, "preview", false, "Render only the first minute")
	cmd.Flags().BoolVar(&noImages, "no-images", false, "Use a flat cover card instead of generated stills")
	cmd.Flags().BoolVar(&markDownloaded, "mark-downloaded", false, "Move the story to awaiting_publish after a full render")
	return cmd
}

func produceStory(id string, opts media.Options, markDownloaded bool) error {
	cfg, secrets, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := consoleLogger()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rec, err := st.Get(ctx, id)
	if err != nil {
		return err
	}

	collector := metrics.NewCollector(logger)
	client := newAPIClient(cfg, logger, collector)
	producer := media.NewProducer(cfg.Media, cfg.ImageSize(), client, secrets.GetAPIKey(cfg.Media.BaseURL), logger)
	producer.SetMetrics(collector)
	producer.SetConcurrency(cfg.Generation.Concurrency)

	res, err := producer.Produce(ctx, rec, opts)
	if err != nil {
		return fmt.Errorf("media production failed: %w", err)
	}

	fmt.Printf("Audio:  %s\n", res.Audio)
	fmt.Printf("Images: %d (%d placeholders)\n", len(res.Images), res.Placeholders)
	fmt.Printf("Video:  %s (%s)\n", res.Video, res.Duration.Round(time.Second))

	if markDownloaded && !opts.Preview && rec.Status == models.StatusReady {
		if err := st.UpdateStatus(ctx, rec.ID, models.StatusAwaitingPublish); err != nil {
			return err
		}
		fmt.Printf("Story %s is now %s\n", rec.ID, models.StatusAwaitingPublish)
	}
	return nil
}
