package story

import (
	"fmt"

	"github.com/lamim/storyforge/internal/config"
	"github.com/lamim/storyforge/internal/util"
)

// Template data for each stage. Field names are the keys available to [prompt_templates].

type SynopsisData struct {
	Theme    string
	Niche    string
	Genres   string
	Language string
}

type PlanData struct {
	Synopsis      string
	Genres        string
	ChapterCount  int
	ClimaxChapter int
}

type ChapterData struct {
	Synopsis     string
	Index        int
	ChapterCount int
	Title        string
	Events       string
	Context      string
	Genres       string
	WordsMin     int
	WordsMax     int
	Language     string
}

type SummaryData struct {
	Title string
	Body  string
}

type VisualData struct {
	Title       string
	Body        string
	PromptCount int
	Niche       string
}

type TranslationData struct {
	Text           string
	SourceLanguage string
	TargetLanguage string
}

// Prompts renders stage prompts from the configured templates
type Prompts struct {
	templates config.PromptTemplates
}

// NewPrompts creates a renderer over the given templates
func NewPrompts(templates config.PromptTemplates) *Prompts {
	return &Prompts{templates: templates}
}

func (p *Prompts) WriterSystem() string { return p.templates.WriterSystemPrompt }

func (p *Prompts) Synopsis(d SynopsisData) (string, error) {
	return render("synopsis", p.templates.Synopsis, d)
}

func (p *Prompts) Plan(d PlanData) (string, error) {
	return render("chapter_plan", p.templates.ChapterPlan, d)
}

func (p *Prompts) Chapter(d ChapterData) (string, error) {
	return render("chapter", p.templates.Chapter, d)
}

func (p *Prompts) Summary(d SummaryData) (string, error) {
	return render("summary", p.templates.Summary, d)
}

func (p *Prompts) Visual(d VisualData) (string, error) {
	return render("visual_prompts", p.templates.VisualPrompts, d)
}

func (p *Prompts) Translation(d TranslationData) (string, error) {
	return render("translation", p.templates.Translation, d)
}

func render(name, tmpl string, data any) (string, error) {
	out, err := util.RenderTemplate(tmpl, data)
	if err != nil {
		return "", fmt.Errorf("%s template: %w", name, err)
	}
	return out, nil
}
