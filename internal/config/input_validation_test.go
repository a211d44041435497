package config

import (
	"strings"
	"testing"
)

func TestValidateTheme(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{name: "plain", input: "A lighthouse keeper hears a voice under the sea"},
		{name: "accents", input: "O segredo do farol"},
		{name: "newline ok", input: "Two lines\nof theme"},
		{name: "too long", input: strings.Repeat("a", MaxThemeLength+1), wantErr: "exceeds maximum length"},
		{name: "null byte", input: "Test\x00Theme", wantErr: "invalid control characters"},
		{name: "bell", input: "Test\x07Theme", wantErr: "invalid control characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTheme(tt.input)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("ValidateTheme(%q) unexpected error: %v", tt.input, err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("ValidateTheme(%q) error = %v, want substring %q", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateBaseURL(t *testing.T) {
	tests := []struct {
		url     string
		wantErr bool
	}{
		{"https://api.openai.com/v1", false},
		{"http://localhost:11434/v1", false},
		{"ftp://example.com", true},
		{"https://", true},
		{"://bad", true},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			err := validateBaseURL(tt.url, "models.main")
			if (err != nil) != tt.wantErr {
				t.Errorf("validateBaseURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestValidateInputs(t *testing.T) {
	cfg := validConfig(t)
	if err := cfg.ValidateInputs(); err != nil {
		t.Fatalf("ValidateInputs() unexpected error: %v", err)
	}

	cfg.PromptTemplates.Rewrite = strings.Repeat("x", MaxTemplateSize+1)
	if err := cfg.ValidateInputs(); err == nil || !strings.Contains(err.Error(), "rewrite") {
		t.Errorf("expected oversized rewrite template error, got %v", err)
	}

	cfg = validConfig(t)
	cfg.Media.BaseURL = "file:///tmp"
	if err := cfg.ValidateInputs(); err == nil {
		t.Error("expected media base_url scheme error")
	}

	cfg = validConfig(t)
	main := cfg.Models["main"]
	main.ModelName = "model\x01name"
	cfg.Models["main"] = main
	if err := cfg.ValidateInputs(); err == nil {
		t.Error("expected control character error in model name")
	}

	cfg = validConfig(t)
	cfg.Media.Voices["pt"] = "pt BR"
	if err := cfg.ValidateInputs(); err == nil || !strings.Contains(err.Error(), "voices.pt") {
		t.Errorf("expected voice id error, got %v", err)
	}

	cfg = validConfig(t)
	cfg.Storage.DBPath = "lib\n.db"
	if err := cfg.ValidateInputs(); err == nil || !strings.Contains(err.Error(), "storage.db_path") {
		t.Errorf("expected db path error, got %v", err)
	}
}
