package story

import (
	"context"
	"fmt"
	"strings"

	"github.com/lamim/storyforge/internal/api"
	"github.com/lamim/storyforge/internal/config"
	"github.com/lamim/storyforge/internal/util"
)

// Generator is the text generation capability every stage depends on
type Generator interface {
	// Generate returns free text for a prompt
	Generate(ctx context.Context, system, prompt string) (string, error)
	// GenerateStructured returns text expected to be JSON matching schema
	GenerateStructured(ctx context.Context, system, prompt string, schema *api.JSONSchema) (string, error)
}

// LLMGenerator implements Generator against an OpenAI-compatible chat endpoint
type LLMGenerator struct {
	client *api.Client
	model  config.ModelConfig
	apiKey string
}

// NewLLMGenerator binds a client to one model
func NewLLMGenerator(client *api.Client, model config.ModelConfig, apiKey string) *LLMGenerator {
	return &LLMGenerator{client: client, model: model, apiKey: apiKey}
}

// Generate implements Generator
func (g *LLMGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	resp, err := g.client.ChatCompletion(ctx, g.model, g.apiKey, buildMessages(system, prompt))
	if err != nil {
		return "", err
	}
	return nonEmpty(resp.Content())
}

// GenerateStructured implements Generator
func (g *LLMGenerator) GenerateStructured(ctx context.Context, system, prompt string, schema *api.JSONSchema) (string, error) {
	resp, err := g.client.ChatCompletionStructured(ctx, g.model, g.apiKey, buildMessages(system, prompt), schema)
	if err != nil {
		return "", err
	}
	return nonEmpty(resp.Content())
}

func buildMessages(system, prompt string) []api.Message {
	messages := make([]api.Message, 0, 2)
	if system != "" {
		messages = append(messages, api.Message{Role: "system", Content: system})
	}
	return append(messages, api.Message{Role: "user", Content: prompt})
}

func nonEmpty(content string) (string, error) {
	content = util.StripThinkTags(content)
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("empty response from model")
	}
	return content, nil
}

var languageNames = map[string]string{
	"en": "English",
	"pt": "Brazilian Portuguese",
	"es": "Spanish",
	"fr": "French",
	"de": "German",
	"it": "Italian",
}

// LanguageName returns the display name used in prompts for a language code
func LanguageName(code string) string {
	if name, ok := languageNames[strings.ToLower(code)]; ok {
		return name
	}
	return code
}
