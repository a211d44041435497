// Package media turns a saved story into narration, stills and a rendered video.
package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/lamim/storyforge/internal/config"
	"github.com/lamim/storyforge/internal/metrics"
	"github.com/lamim/storyforge/pkg/models"
)

var (
	// ErrNoImages is returned when a render has no stills to show
	ErrNoImages = errors.New("no images to render")
	// ErrNoAudio is returned when no narration could be produced
	ErrNoAudio = errors.New("no narration audio")
)

// Backend is the image and speech API the producer calls. *api.Client implements it.
type Backend interface {
	GenerateImage(ctx context.Context, modelCfg config.ModelConfig, apiKey, prompt, size string) ([]byte, error)
	Synthesize(ctx context.Context, modelCfg config.ModelConfig, apiKey, text, voice string) ([]byte, error)
}

// Runner executes an external tool and returns its combined output
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs tools with os/exec
type ExecRunner struct{}

// Run implements Runner
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("%s failed: %w: %s", filepath.Base(name), err, tail(out, 400))
	}
	return out, nil
}

// Options selects what Produce builds
type Options struct {
	Language string // Draft to narrate; empty means the story's target language, else its source
	Preview  bool   // Render only the first preview_seconds
	Images   bool   // Generate stills from the visual prompts; false uses a single cover card
}

// Result lists the files Produce wrote
type Result struct {
	Dir          string        `json:"dir"`
	Audio        string        `json:"audio"`
	Images       []string      `json:"images"`
	Video        string        `json:"video"`
	Duration     time.Duration `json:"duration"`
	Placeholders int           `json:"placeholders"`
}

// Producer builds media for stories
type Producer struct {
	cfg     config.MediaConfig
	size    string
	backend Backend
	apiKey  string
	runner  Runner
	metrics *metrics.Collector
	logger  *slog.Logger
	workers int
}

// NewProducer creates a producer. imageSize is the images API size string for the configured aspect ratio.
func NewProducer(cfg config.MediaConfig, imageSize string, backend Backend, apiKey string, logger *slog.Logger) *Producer {
	return &Producer{
		cfg:     cfg,
		size:    imageSize,
		backend: backend,
		apiKey:  apiKey,
		runner:  ExecRunner{},
		logger:  logger.With("component", "media"),
		workers: 2,
	}
}

// SetRunner replaces the external tool runner
func (p *Producer) SetRunner(r Runner) {
	p.runner = r
}

// SetMetrics enables media metrics
func (p *Producer) SetMetrics(m *metrics.Collector) {
	p.metrics = m
}

// SetConcurrency sets how many images are requested at once
func (p *Producer) SetConcurrency(n int) {
	if n > 0 {
		p.workers = n
	}
}

// Produce narrates one draft of rec, prepares its stills and renders the video
func (p *Producer) Produce(ctx context.Context, rec *models.StoryRecord, opts Options) (*Result, error) {
	lang, draft := pickDraft(rec, opts.Language)
	if draft == "" {
		return nil, fmt.Errorf("story %s has no %s draft", rec.ID, lang)
	}

	dir := filepath.Join(p.cfg.OutputDir, rec.ID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}
	res := &Result{Dir: dir}

	audio, err := p.Narrate(ctx, dir, lang, rec.Theme, draft)
	if err != nil {
		return nil, err
	}
	res.Audio = audio

	if opts.Images && len(rec.VisualPrompts) > 0 {
		images, placeholders, err := p.Images(ctx, dir, rec.VisualPrompts)
		if err != nil {
			return nil, err
		}
		res.Images, res.Placeholders = images, placeholders
	} else {
		cover := filepath.Join(dir, "cover.png")
		w, h := p.Resolution()
		if err := writeCoverPNG(cover, w, h, rec.Niche, rec.Theme); err != nil {
			return nil, fmt.Errorf("failed to write cover: %w", err)
		}
		p.metrics.RecordMediaAsset("image", "cover")
		res.Images = []string{cover}
	}

	total, err := p.Duration(ctx, audio)
	if err != nil {
		return nil, err
	}
	if opts.Preview {
		if limit := time.Duration(p.cfg.PreviewSeconds) * time.Second; total > limit {
			total = limit
		}
	}
	res.Duration = total

	name := fmt.Sprintf("video_%s.mp4", lang)
	if opts.Preview {
		name = fmt.Sprintf("preview_%s.mp4", lang)
	}
	res.Video = filepath.Join(dir, name)
	if err := p.Render(ctx, audio, res.Images, total, res.Video); err != nil {
		return nil, err
	}
	p.metrics.RecordMediaAsset("video", "rendered")

	p.logger.Info("Media produced",
		"story", rec.ID,
		"language", lang,
		"images", len(res.Images),
		"placeholders", res.Placeholders,
		"duration", total.Round(time.Second),
		"video", res.Video)
	return res, nil
}

func pickDraft(rec *models.StoryRecord, lang string) (string, string) {
	switch {
	case lang == "" && rec.DraftTarget != "":
		return rec.TargetLang, rec.DraftTarget
	case lang == "":
		return rec.SourceLang, rec.DraftSource
	case lang == rec.TargetLang:
		return lang, rec.DraftTarget
	case lang == rec.SourceLang:
		return lang, rec.DraftSource
	}
	return lang, ""
}

func tail(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return "..." + string(b[len(b)-n:])
}
