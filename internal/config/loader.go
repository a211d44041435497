package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Load reads and parses the configuration file and environment variables
func Load(configPath string) (*Config, *Secrets, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, nil, err
	}

	secrets, err := LoadSecrets()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load secrets: %w", err)
	}

	return cfg, secrets, nil
}

// Parse decodes TOML, applies defaults and validates the result
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.ValidateInputs(); err != nil {
		return nil, fmt.Errorf("input validation failed: %w", err)
	}
	return &cfg, nil
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	g := &cfg.Generation
	if g.ChapterCount == 0 {
		g.ChapterCount = 8
	}
	if g.PromptsPerChapter == 0 {
		g.PromptsPerChapter = 5
	}
	if g.ChapterWordsMin == 0 {
		g.ChapterWordsMin = 400
	}
	if g.ChapterWordsMax == 0 {
		g.ChapterWordsMax = 500
	}
	// 0 cannot be told apart from unset in TOML, so -1 means unbounded / no delay
	if g.ContextWindowChars == 0 {
		g.ContextWindowChars = 2000
	}
	if g.ChapterDelayMillis == 0 {
		g.ChapterDelayMillis = 1000
	}
	if g.ChapterFailure == "" {
		g.ChapterFailure = FailurePlaceholder
	}
	if g.SourceLanguage == "" {
		g.SourceLanguage = "en"
	}
	if g.TargetLanguage == "" {
		g.TargetLanguage = "pt"
	}
	if g.Concurrency == 0 {
		g.Concurrency = 4
	}
	if g.OverlapThreshold == 0 {
		g.OverlapThreshold = 0.6
	}

	for name, model := range cfg.Models {
		if model.Temperature == 0 {
			model.Temperature = 0.8
		}
		if model.TopP == 0 {
			model.TopP = 1.0
		}
		if model.MaxOutputTokens == 0 {
			model.MaxOutputTokens = 4096
		}
		if model.ContextSize == 0 {
			model.ContextSize = 32768
		}
		if model.RateLimitPerMinute == 0 {
			model.RateLimitPerMinute = 30
		}
		if model.MaxBackoffSeconds == 0 {
			model.MaxBackoffSeconds = 120
		}
		// Unset (0) means 3; -1 means unlimited
		if model.MaxRetries == 0 {
			model.MaxRetries = 3
		}
		if model.HTTPTimeoutSeconds == 0 {
			model.HTTPTimeoutSeconds = 120
		}
		cfg.Models[name] = model
	}

	m := &cfg.Media
	if m.AspectRatio == "" {
		m.AspectRatio = "16:9"
	}
	if m.Voices == nil {
		m.Voices = map[string]string{}
	}
	if _, ok := m.Voices["en"]; !ok {
		m.Voices["en"] = "en-US-ChristopherNeural"
	}
	if _, ok := m.Voices["pt"]; !ok {
		m.Voices["pt"] = "pt-BR-AntonioNeural"
	}
	if m.FFmpegPath == "" {
		m.FFmpegPath = "ffmpeg"
	}
	if m.FFprobePath == "" {
		m.FFprobePath = "ffprobe"
	}
	if m.FPS == 0 {
		m.FPS = 24
	}
	if m.ZoomPerSecond == 0 {
		m.ZoomPerSecond = 0.04
	}
	if m.PreviewSeconds == 0 {
		m.PreviewSeconds = 60
	}
	if m.OutputDir == "" {
		m.OutputDir = "media"
	}
	if m.HTTPTimeoutSeconds == 0 {
		m.HTTPTimeoutSeconds = 180
	}
	if m.RateLimitPerMinute == 0 {
		m.RateLimitPerMinute = 10
	}

	if cfg.Storage.DBPath == "" {
		cfg.Storage.DBPath = "storyforge.db"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}

	t := &cfg.PromptTemplates
	setDefault(&t.Synopsis, DefaultSynopsisTemplate)
	setDefault(&t.ChapterPlan, DefaultChapterPlanTemplate)
	setDefault(&t.Chapter, DefaultChapterTemplate)
	setDefault(&t.Summary, DefaultSummaryTemplate)
	setDefault(&t.VisualPrompts, DefaultVisualPromptsTemplate)
	setDefault(&t.Translation, DefaultTranslationTemplate)
	setDefault(&t.Critique, DefaultCritiqueTemplate)
	setDefault(&t.Rewrite, DefaultRewriteTemplate)
	setDefault(&t.WriterSystemPrompt, DefaultWriterSystemPrompt)
	setDefault(&t.EditorSystemPrompt, DefaultEditorSystemPrompt)
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}
