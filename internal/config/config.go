package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Chapter failure policies
const (
	FailurePlaceholder = "placeholder"
	FailureAbort       = "abort"
)

// Config represents the complete application configuration
type Config struct {
	Generation           GenerationConfig       `toml:"generation"`
	Models               map[string]ModelConfig `toml:"models"`
	Media                MediaConfig            `toml:"media"`
	Storage              StorageConfig          `toml:"storage"`
	Server               ServerConfig           `toml:"server"`
	PromptTemplates      PromptTemplates        `toml:"prompt_templates"`
	ProviderRateLimits   map[string]int         `toml:"provider_rate_limits"`   // Global rate limits per provider (requests per minute)
	ProviderBurstPercent int                    `toml:"provider_burst_percent"` // Burst capacity as percentage (1-50, default: 15)
}

// GenerationConfig holds story pipeline settings
type GenerationConfig struct {
	ChapterCount       int     `toml:"chapter_count"`        // Chapters per story (default 8)
	PromptsPerChapter  int     `toml:"prompts_per_chapter"`  // Image prompts per chapter (default 5)
	ChapterWordsMin    int     `toml:"chapter_words_min"`    // Lower word target given to the writer (default 400)
	ChapterWordsMax    int     `toml:"chapter_words_max"`    // Upper word target given to the writer (default 500)
	ContextWindowChars int     `toml:"context_window_chars"` // Rolling summary tail passed to the writer (default 2000, -1 = unbounded)
	ChapterDelayMillis int     `toml:"chapter_delay_ms"`     // Pause between chapter calls (default 1000, -1 = none)
	ChapterFailure     string  `toml:"chapter_failure"`      // placeholder | abort
	SourceLanguage     string  `toml:"source_language"`      // Language the story is written in (default en)
	TargetLanguage     string  `toml:"target_language"`      // Translation target (default pt)
	Concurrency        int     `toml:"concurrency"`          // Parallel visual extraction workers
	CritiqueRounds     int     `toml:"critique_rounds"`      // Critique/rewrite rounds run after translation (default 0)
	OverlapThreshold   float64 `toml:"overlap_threshold"`    // Plan beat similarity that triggers a repetition warning (0-1)

	EnableCheckpointing bool   `toml:"enable_checkpointing"` // Enable checkpoint/resume support
	ResumeFromSession   string `toml:"resume_from_session"`  // Session directory to resume from
}

// ChapterDelay returns the pause between chapter generation calls
func (g GenerationConfig) ChapterDelay() time.Duration {
	if g.ChapterDelayMillis <= 0 {
		return 0
	}
	return time.Duration(g.ChapterDelayMillis) * time.Millisecond
}

// ModelConfig represents configuration for a single model endpoint
type ModelConfig struct {
	BaseURL              string  `toml:"base_url"`
	ModelName            string  `toml:"model_name"`
	Temperature          float64 `toml:"temperature"`
	StructureTemperature float64 `toml:"structure_temperature"` // Temperature for JSON generation (optional, defaults to temperature)
	TopP                 float64 `toml:"top_p"`
	MaxOutputTokens      int     `toml:"max_output_tokens"`
	ContextSize          int     `toml:"context_size"`
	RateLimitPerMinute   int     `toml:"rate_limit_per_minute"`
	MaxBackoffSeconds    int     `toml:"max_backoff_seconds"`  // Optional: max backoff duration (default 120)
	MaxRetries           int     `toml:"max_retries"`          // Optional: max retry attempts (default 3, -1 = unlimited)
	HTTPTimeoutSeconds   int     `toml:"http_timeout_seconds"` // Optional: HTTP request timeout (default 120)
	UseJSONMode          bool    `toml:"use_json_mode"`        // Send a json_schema response_format for structured stages
	Enabled              bool    `toml:"enabled"`              // Only used for the editor model
}

// MediaConfig holds speech, image and video settings
type MediaConfig struct {
	BaseURL            string            `toml:"base_url"`     // OpenAI-compatible endpoint for images and speech
	ImageModel         string            `toml:"image_model"`  // Empty disables image generation
	SpeechModel        string            `toml:"speech_model"` // Empty disables narration
	AspectRatio        string            `toml:"aspect_ratio"` // 16:9, 9:16 or 1:1
	Voices             map[string]string `toml:"voices"`       // Language code to voice id
	FFmpegPath         string            `toml:"ffmpeg_path"`
	FFprobePath        string            `toml:"ffprobe_path"`
	FPS                int               `toml:"fps"`
	ZoomPerSecond      float64           `toml:"zoom_per_second"` // Slow zoom applied to each still
	PreviewSeconds     int               `toml:"preview_seconds"`
	OutputDir          string            `toml:"output_dir"`
	HTTPTimeoutSeconds int               `toml:"http_timeout_seconds"`
	RateLimitPerMinute int               `toml:"rate_limit_per_minute"`
}

// Voice returns the configured voice for a language code
func (m MediaConfig) Voice(lang string) string {
	if v, ok := m.Voices[lang]; ok {
		return v
	}
	return m.Voices["default"]
}

// Endpoint describes a media model as a ModelConfig so it shares the API client's retry and rate limiting
func (m MediaConfig) Endpoint(model string) ModelConfig {
	return ModelConfig{
		BaseURL:            m.BaseURL,
		ModelName:          model,
		RateLimitPerMinute: m.RateLimitPerMinute,
		HTTPTimeoutSeconds: m.HTTPTimeoutSeconds,
		MaxRetries:         2,
		MaxBackoffSeconds:  60,
	}
}

// StorageConfig holds the story library location
type StorageConfig struct {
	DBPath string `toml:"db_path"`
}

// ServerConfig holds the library API settings
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// PromptTemplates holds all customizable prompt templates
type PromptTemplates struct {
	Synopsis           string `toml:"synopsis"`
	ChapterPlan        string `toml:"chapter_plan"`
	Chapter            string `toml:"chapter"`
	Summary            string `toml:"summary"`
	VisualPrompts      string `toml:"visual_prompts"`
	Translation        string `toml:"translation"`
	Critique           string `toml:"critique"`
	Rewrite            string `toml:"rewrite"`
	WriterSystemPrompt string `toml:"writer_system_prompt"` // Optional system prompt for synopsis, plan and chapters
	EditorSystemPrompt string `toml:"editor_system_prompt"` // Optional system prompt for critique and rewrite
}

// Secrets holds sensitive credentials loaded from environment variables
type Secrets struct {
	APIKeys  map[string]string
	APIToken string // Bearer token required by the library API when set
}

const (
	// MaxConcurrency is the maximum allowed concurrency
	MaxConcurrency = 64
	// MaxChapterCount is the maximum chapters per story
	MaxChapterCount = 50
	// MaxPromptsPerChapter is the maximum image prompts per chapter
	MaxPromptsPerChapter = 20
)

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.ProviderBurstPercent == 0 {
		c.ProviderBurstPercent = 15
	}
	if c.ProviderBurstPercent < 1 || c.ProviderBurstPercent > 50 {
		return fmt.Errorf("provider_burst_percent must be between 1 and 50 (got %d)", c.ProviderBurstPercent)
	}

	g := c.Generation
	if g.ChapterCount < 2 || g.ChapterCount > MaxChapterCount {
		return fmt.Errorf("generation.chapter_count must be between 2 and %d (got %d)", MaxChapterCount, g.ChapterCount)
	}
	if g.PromptsPerChapter < 1 || g.PromptsPerChapter > MaxPromptsPerChapter {
		return fmt.Errorf("generation.prompts_per_chapter must be between 1 and %d (got %d)", MaxPromptsPerChapter, g.PromptsPerChapter)
	}
	if g.ChapterWordsMin < 1 || g.ChapterWordsMax < g.ChapterWordsMin {
		return fmt.Errorf("generation.chapter_words_min/max must satisfy 1 <= min <= max (got %d-%d)", g.ChapterWordsMin, g.ChapterWordsMax)
	}
	if g.ChapterFailure != FailurePlaceholder && g.ChapterFailure != FailureAbort {
		return fmt.Errorf("generation.chapter_failure must be %q or %q (got %q)", FailurePlaceholder, FailureAbort, g.ChapterFailure)
	}
	if g.SourceLanguage == "" || g.TargetLanguage == "" {
		return fmt.Errorf("generation.source_language and generation.target_language are required")
	}
	if g.Concurrency < 1 || g.Concurrency > MaxConcurrency {
		return fmt.Errorf("generation.concurrency must be between 1 and %d (got %d)", MaxConcurrency, g.Concurrency)
	}
	if g.CritiqueRounds < 0 || g.CritiqueRounds > 10 {
		return fmt.Errorf("generation.critique_rounds must be between 0 and 10 (got %d)", g.CritiqueRounds)
	}
	if g.OverlapThreshold < 0 || g.OverlapThreshold > 1 {
		return fmt.Errorf("generation.overlap_threshold must be between 0.0 and 1.0 (got %.2f)", g.OverlapThreshold)
	}

	mainModel, ok := c.Models["main"]
	if !ok {
		return fmt.Errorf("models.main is required")
	}
	if err := validateModelConfig("main", mainModel); err != nil {
		return err
	}
	if editor, ok := c.Models["editor"]; ok && editor.Enabled {
		if err := validateModelConfig("editor", editor); err != nil {
			return err
		}
	}
	if c.Generation.CritiqueRounds > 0 && c.PromptTemplates.Critique == "" {
		return fmt.Errorf("prompt_templates.critique is required when critique_rounds > 0")
	}

	if c.Media.ImageModel != "" || c.Media.SpeechModel != "" {
		if c.Media.BaseURL == "" {
			return fmt.Errorf("media.base_url is required when image_model or speech_model is set")
		}
	}
	if _, ok := aspectSizes[c.Media.AspectRatio]; !ok {
		return fmt.Errorf("media.aspect_ratio must be one of 16:9, 9:16, 1:1 (got %q)", c.Media.AspectRatio)
	}
	if c.Media.FPS < 1 || c.Media.FPS > 60 {
		return fmt.Errorf("media.fps must be between 1 and 60 (got %d)", c.Media.FPS)
	}

	templates := map[string]string{
		"synopsis":       c.PromptTemplates.Synopsis,
		"chapter_plan":   c.PromptTemplates.ChapterPlan,
		"chapter":        c.PromptTemplates.Chapter,
		"summary":        c.PromptTemplates.Summary,
		"visual_prompts": c.PromptTemplates.VisualPrompts,
		"translation":    c.PromptTemplates.Translation,
	}
	for name, tmpl := range templates {
		if strings.TrimSpace(tmpl) == "" {
			return fmt.Errorf("prompt_templates.%s is required", name)
		}
	}

	return nil
}

func validateModelConfig(name string, mc ModelConfig) error {
	if mc.BaseURL == "" {
		return fmt.Errorf("models.%s.base_url is required", name)
	}
	if mc.ModelName == "" {
		return fmt.Errorf("models.%s.model_name is required", name)
	}
	if mc.Temperature < 0 || mc.Temperature > 2 {
		return fmt.Errorf("models.%s.temperature must be between 0 and 2", name)
	}
	if mc.StructureTemperature < 0 || mc.StructureTemperature > 2 {
		return fmt.Errorf("models.%s.structure_temperature must be between 0 and 2", name)
	}
	if mc.TopP < 0 || mc.TopP > 1 {
		return fmt.Errorf("models.%s.top_p must be between 0 and 1", name)
	}
	if mc.MaxOutputTokens < 1 {
		return fmt.Errorf("models.%s.max_output_tokens must be at least 1", name)
	}
	if mc.ContextSize < 1 {
		return fmt.Errorf("models.%s.context_size must be at least 1", name)
	}
	if mc.RateLimitPerMinute < 1 {
		return fmt.Errorf("models.%s.rate_limit_per_minute must be at least 1", name)
	}
	if mc.MaxOutputTokens > mc.ContextSize {
		return fmt.Errorf("models.%s.max_output_tokens (%d) must not exceed context_size (%d)", name, mc.MaxOutputTokens, mc.ContextSize)
	}
	return nil
}

// EditorModel returns the editor model config, falling back to main when none is enabled
func (c *Config) EditorModel() ModelConfig {
	if editor, ok := c.Models["editor"]; ok && editor.Enabled {
		return editor
	}
	return c.Models["main"]
}

// ImageSize maps the configured aspect ratio to an images API size string
func (c *Config) ImageSize() string {
	return aspectSizes[c.Media.AspectRatio]
}

var aspectSizes = map[string]string{
	"16:9": "1792x1024",
	"9:16": "1024x1792",
	"1:1":  "1024x1024",
}

// LoadSecrets loads sensitive credentials from environment variables
func LoadSecrets() (*Secrets, error) {
	secrets := &Secrets{
		APIKeys: make(map[string]string),
	}

	if key := os.Getenv("API_KEY"); key != "" {
		secrets.APIKeys["generic"] = key
	}
	for provider, env := range providerEnv {
		if key := os.Getenv(env); key != "" {
			secrets.APIKeys[provider] = key
		}
	}
	secrets.APIToken = os.Getenv("STORYFORGE_API_TOKEN")

	return secrets, nil
}

var providerEnv = map[string]string{
	"openai":     "OPENAI_API_KEY",
	"openrouter": "OPENROUTER_API_KEY",
	"together":   "TOGETHER_API_KEY",
	"gemini":     "GEMINI_API_KEY",
}

// GetAPIKey returns the API key for a given base URL
func (s *Secrets) GetAPIKey(baseURL string) string {
	if provider := GetProviderName(baseURL); provider != baseURL {
		if key := s.APIKeys[provider]; key != "" {
			return key
		}
	}
	// Any OpenAI-compatible provider accepts the generic key; local servers need none
	return s.APIKeys["generic"]
}

// GetProviderName extracts a provider name from a base URL for rate limiting
func GetProviderName(baseURL string) string {
	switch {
	case strings.Contains(baseURL, "openai.com"):
		return "openai"
	case strings.Contains(baseURL, "openrouter.ai"):
		return "openrouter"
	case strings.Contains(baseURL, "together.xyz"), strings.Contains(baseURL, "together.ai"):
		return "together"
	case strings.Contains(baseURL, "generativelanguage.googleapis.com"):
		return "gemini"
	}
	return baseURL
}
