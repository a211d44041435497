package config

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"
)

const (
	// MaxThemeLength is the maximum allowed length for a story theme
	MaxThemeLength = 500

	// MaxModelNameLength is the maximum allowed length for model names
	MaxModelNameLength = 100

	// MaxTemplateSize is the maximum allowed size for template content
	MaxTemplateSize = 50 * 1024 // 50KB
)

// ValidateInputs performs security validation on user-controllable fields
func (c *Config) ValidateInputs() error {
	for name, mc := range c.Models {
		if err := validateModelName(mc.ModelName, name); err != nil {
			return err
		}
		if err := validateBaseURL(mc.BaseURL, "models."+name); err != nil {
			return err
		}
	}

	if c.Media.BaseURL != "" {
		if err := validateBaseURL(c.Media.BaseURL, "media"); err != nil {
			return err
		}
	}
	for lang, voice := range c.Media.Voices {
		if voice == "" || containsControlChars(voice) || strings.ContainsAny(voice, " /") {
			return fmt.Errorf("media.voices.%s must be a plain voice id (got %q)", lang, voice)
		}
	}

	paths := map[string]string{
		"media.ffmpeg_path":  c.Media.FFmpegPath,
		"media.ffprobe_path": c.Media.FFprobePath,
		"media.output_dir":   c.Media.OutputDir,
		"storage.db_path":    c.Storage.DBPath,
	}
	for key, path := range paths {
		if strings.ContainsAny(path, "\x00\n\r") {
			return fmt.Errorf("%s contains invalid characters", key)
		}
	}

	return c.validateTemplateSizes()
}

// ValidateTheme checks a story theme supplied on the command line or over the API
func ValidateTheme(theme string) error {
	if len(theme) > MaxThemeLength {
		return fmt.Errorf("exceeds maximum length of %d characters (got %d)", MaxThemeLength, len(theme))
	}
	if containsControlChars(theme) {
		return fmt.Errorf("contains invalid control characters")
	}
	return nil
}

func validateModelName(modelName, configKey string) error {
	if len(modelName) > MaxModelNameLength {
		return fmt.Errorf("model '%s' name exceeds maximum length of %d (got %d)",
			configKey, MaxModelNameLength, len(modelName))
	}
	if containsControlChars(modelName) {
		return fmt.Errorf("model '%s' name contains invalid control characters", configKey)
	}
	return nil
}

// validateBaseURL checks that the base URL is properly formatted and safe
func validateBaseURL(baseURL, configKey string) error {
	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("%s has invalid base_url: %w", configKey, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s base_url must use http or https scheme (got %s)", configKey, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%s base_url must have a host", configKey)
	}
	return nil
}

func (c *Config) validateTemplateSizes() error {
	templates := []struct {
		name  string
		value string
	}{
		{"synopsis", c.PromptTemplates.Synopsis},
		{"chapter_plan", c.PromptTemplates.ChapterPlan},
		{"chapter", c.PromptTemplates.Chapter},
		{"summary", c.PromptTemplates.Summary},
		{"visual_prompts", c.PromptTemplates.VisualPrompts},
		{"translation", c.PromptTemplates.Translation},
		{"critique", c.PromptTemplates.Critique},
		{"rewrite", c.PromptTemplates.Rewrite},
		{"writer_system_prompt", c.PromptTemplates.WriterSystemPrompt},
		{"editor_system_prompt", c.PromptTemplates.EditorSystemPrompt},
	}

	for _, tmpl := range templates {
		if len(tmpl.value) > MaxTemplateSize {
			return fmt.Errorf("template '%s' exceeds maximum size of %d bytes (got %d)",
				tmpl.name, MaxTemplateSize, len(tmpl.value))
		}
	}
	return nil
}

// containsControlChars reports control characters other than newline, tab and carriage return
func containsControlChars(s string) bool {
	for _, r := range s {
		if unicode.IsControl(r) && r != '\n' && r != '\t' && r != '\r' {
			return true
		}
	}
	return false
}
