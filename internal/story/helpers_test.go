package story

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/lamim/storyforge/internal/api"
	"github.com/lamim/storyforge/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testPrompts() *Prompts {
	return NewPrompts(config.PromptTemplates{
		Synopsis:           config.DefaultSynopsisTemplate,
		ChapterPlan:        config.DefaultChapterPlanTemplate,
		Chapter:            config.DefaultChapterTemplate,
		Summary:            config.DefaultSummaryTemplate,
		VisualPrompts:      config.DefaultVisualPromptsTemplate,
		Translation:        config.DefaultTranslationTemplate,
		Critique:           config.DefaultCritiqueTemplate,
		Rewrite:            config.DefaultRewriteTemplate,
		WriterSystemPrompt: config.DefaultWriterSystemPrompt,
	})
}

type fakeCall struct {
	System     string
	Prompt     string
	Structured bool
}

// scriptedGenerator answers each prompt through respond and records every call
type scriptedGenerator struct {
	mu      sync.Mutex
	calls   []fakeCall
	respond func(prompt string, structured bool) (string, error)
}

func (g *scriptedGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	return g.do(ctx, system, prompt, false)
}

func (g *scriptedGenerator) GenerateStructured(ctx context.Context, system, prompt string, _ *api.JSONSchema) (string, error) {
	return g.do(ctx, system, prompt, true)
}

func (g *scriptedGenerator) do(ctx context.Context, system, prompt string, structured bool) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	g.mu.Lock()
	g.calls = append(g.calls, fakeCall{System: system, Prompt: prompt, Structured: structured})
	g.mu.Unlock()
	return g.respond(prompt, structured)
}

func (g *scriptedGenerator) callsWithPrefix(prefix string) []fakeCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []fakeCall
	for _, c := range g.calls {
		if strings.HasPrefix(c.Prompt, prefix) {
			out = append(out, c)
		}
	}
	return out
}

// translationInput extracts the text a default translation prompt asks to translate
func translationInput(prompt string) string {
	_, text, _ := strings.Cut(prompt, "Output only the translation.\n\n")
	return text
}
