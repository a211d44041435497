package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const minimalTOML = `
[models.main]
base_url = "https://api.example.com/v1"
model_name = "story-model"
`

func validConfig(t *testing.T) Config {
	t.Helper()
	cfg := Config{
		Models: map[string]ModelConfig{
			"main": {BaseURL: "https://api.example.com/v1", ModelName: "story-model"},
		},
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	return cfg
}

func TestApplyDefaults(t *testing.T) {
	cfg := validConfig(t)

	if cfg.Generation.ChapterCount != 8 {
		t.Errorf("ChapterCount = %d, want 8", cfg.Generation.ChapterCount)
	}
	if cfg.Generation.PromptsPerChapter != 5 {
		t.Errorf("PromptsPerChapter = %d, want 5", cfg.Generation.PromptsPerChapter)
	}
	if cfg.Generation.ChapterFailure != FailurePlaceholder {
		t.Errorf("ChapterFailure = %q", cfg.Generation.ChapterFailure)
	}
	if cfg.Generation.ChapterDelay() != time.Second {
		t.Errorf("ChapterDelay = %v, want 1s", cfg.Generation.ChapterDelay())
	}
	if cfg.Media.Voice("pt") != "pt-BR-AntonioNeural" {
		t.Errorf("pt voice = %q", cfg.Media.Voice("pt"))
	}
	if cfg.ImageSize() != "1792x1024" {
		t.Errorf("ImageSize = %q", cfg.ImageSize())
	}
	if cfg.PromptTemplates.Chapter != DefaultChapterTemplate {
		t.Error("chapter template should default")
	}
	if cfg.Models["main"].MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.Models["main"].MaxRetries)
	}
}

func TestChapterDelayDisabled(t *testing.T) {
	g := GenerationConfig{ChapterDelayMillis: -1}
	if g.ChapterDelay() != 0 {
		t.Errorf("ChapterDelay = %v, want 0", g.ChapterDelay())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{
			name:    "missing main model",
			mutate:  func(c *Config) { delete(c.Models, "main") },
			wantErr: "models.main is required",
		},
		{
			name:    "one chapter",
			mutate:  func(c *Config) { c.Generation.ChapterCount = 1 },
			wantErr: "chapter_count",
		},
		{
			name:    "zero prompts",
			mutate:  func(c *Config) { c.Generation.PromptsPerChapter = 0 },
			wantErr: "prompts_per_chapter",
		},
		{
			name:    "unknown failure policy",
			mutate:  func(c *Config) { c.Generation.ChapterFailure = "retry" },
			wantErr: "chapter_failure",
		},
		{
			name:    "inverted word target",
			mutate:  func(c *Config) { c.Generation.ChapterWordsMax = 100 },
			wantErr: "chapter_words",
		},
		{
			name: "enabled editor without model name",
			mutate: func(c *Config) {
				c.Models["editor"] = ModelConfig{BaseURL: "https://x.example", Enabled: true, MaxOutputTokens: 1, ContextSize: 1, RateLimitPerMinute: 1}
			},
			wantErr: "models.editor.model_name",
		},
		{
			name:    "images without media endpoint",
			mutate:  func(c *Config) { c.Media.ImageModel = "img-1" },
			wantErr: "media.base_url",
		},
		{
			name:    "bad aspect ratio",
			mutate:  func(c *Config) { c.Media.AspectRatio = "4:3" },
			wantErr: "aspect_ratio",
		},
		{
			name:    "burst out of range",
			mutate:  func(c *Config) { c.ProviderBurstPercent = 80 },
			wantErr: "provider_burst_percent",
		},
		{
			name:    "blank chapter template",
			mutate:  func(c *Config) { c.PromptTemplates.Chapter = "  " },
			wantErr: "prompt_templates.chapter",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestEditorModelFallback(t *testing.T) {
	cfg := validConfig(t)
	if got := cfg.EditorModel().ModelName; got != "story-model" {
		t.Errorf("EditorModel without editor = %q, want main", got)
	}

	editor := cfg.Models["main"]
	editor.ModelName = "editor-model"
	editor.Enabled = true
	cfg.Models["editor"] = editor
	if got := cfg.EditorModel().ModelName; got != "editor-model" {
		t.Errorf("EditorModel = %q, want editor-model", got)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := minimalTOML + `
[generation]
chapter_count = 6
target_language = "es"

[media.voices]
es = "es-MX-JorgeNeural"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, secrets, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if secrets == nil {
		t.Fatal("secrets should not be nil")
	}
	if cfg.Generation.ChapterCount != 6 {
		t.Errorf("ChapterCount = %d, want 6", cfg.Generation.ChapterCount)
	}
	if cfg.Media.Voice("es") != "es-MX-JorgeNeural" {
		t.Errorf("es voice = %q", cfg.Media.Voice("es"))
	}
	if cfg.Media.Voice("en") == "" {
		t.Error("default en voice should be kept alongside custom voices")
	}
}

func TestLoadErrors(t *testing.T) {
	if _, _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := Parse([]byte("[models.main\n")); err == nil {
		t.Error("expected parse error")
	}
	if _, err := Parse([]byte("[generation]\nchapter_count = 3\n")); err == nil {
		t.Error("expected validation error without models.main")
	}
}

func TestLoadSecrets(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key-123")
	t.Setenv("API_KEY", "generic-key")
	t.Setenv("STORYFORGE_API_TOKEN", "token")

	secrets, err := LoadSecrets()
	if err != nil {
		t.Fatalf("LoadSecrets() error = %v", err)
	}
	if secrets.APIKeys["openai"] != "test-key-123" {
		t.Errorf("openai key = %q", secrets.APIKeys["openai"])
	}
	if secrets.APIToken != "token" {
		t.Errorf("APIToken = %q", secrets.APIToken)
	}
}

func TestGetAPIKey(t *testing.T) {
	secrets := &Secrets{
		APIKeys: map[string]string{
			"openai":  "openai-key",
			"generic": "generic-key",
		},
	}

	tests := []struct {
		name    string
		baseURL string
		want    string
	}{
		{"OpenAI URL", "https://api.openai.com/v1", "openai-key"},
		{"provider without own key", "https://openrouter.ai/api/v1", "generic-key"},
		{"local server", "http://localhost:8080/v1", "generic-key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := secrets.GetAPIKey(tt.baseURL); got != tt.want {
				t.Errorf("GetAPIKey() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetProviderName(t *testing.T) {
	if got := GetProviderName("https://api.together.xyz/v1"); got != "together" {
		t.Errorf("GetProviderName = %q", got)
	}
	if got := GetProviderName("http://127.0.0.1:1234/v1"); got != "http://127.0.0.1:1234/v1" {
		t.Errorf("unknown providers should map to their base URL, got %q", got)
	}
}
