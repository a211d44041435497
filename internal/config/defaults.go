package config

// Default prompt templates. Every template can be overridden in [prompt_templates].

// DefaultWriterSystemPrompt is sent with synopsis, plan and chapter requests
const DefaultWriterSystemPrompt = `You are a professional author of serialized audio-book fiction. You write vivid, concrete prose meant to be read aloud, and you follow the structure you are given exactly.`

// DefaultEditorSystemPrompt is sent with critique and rewrite requests
const DefaultEditorSystemPrompt = `You are a demanding fiction editor. You judge stories on craft and you revise only what you were asked to revise.`

// DefaultSynopsisTemplate produces the story synopsis from the request
const DefaultSynopsisTemplate = `Create a story synopsis in {{.Language}} for the theme: "{{.Theme}}".
Channel niche: {{.Niche}}.
Tone and genres: {{.Genres}}.

The synopsis must have a clear beginning, middle, a twist and an end. Name the protagonist and the antagonist and state what the antagonist wants.
Write plain prose, no headings, no lists.`

// DefaultChapterPlanTemplate splits the synopsis into a chapter plan
const DefaultChapterPlanTemplate = `Based on this synopsis:
{{.Synopsis}}

Tone: {{.Genres}}.

Create a detailed plan of exactly {{.ChapterCount}} chapters.
RULES:
1. Do not repeat revelations, discoveries or twists across chapters. Each beat happens exactly once.
2. Each chapter must advance the story with new events.
3. The climax happens in chapter {{.ClimaxChapter}}; the last chapter resolves it.

Return ONLY a JSON array, no markdown, no commentary:
[{"chapter_num": 1, "title": "Catchy title", "events": "What exactly happens in this chapter: key events, clues found, actions"}]`

// DefaultChapterTemplate writes the prose for one planned chapter
const DefaultChapterTemplate = `Write chapter {{.Index}} of {{.ChapterCount}}: "{{.Title}}".

SYNOPSIS OF THE WHOLE STORY:
{{.Synopsis}}

WHAT MUST HAPPEN IN THIS CHAPTER:
{{.Events}}
{{if .Context}}
SUMMARY OF THE PREVIOUS CHAPTERS:
{{.Context}}
{{else}}
This is the first chapter.
{{end}}
Tone: {{.Genres}}.
Write {{.WordsMin}}-{{.WordsMax}} words in {{.Language}}, audio-book style: immersive, sensory, easy to follow when heard.
STICK TO THE PLAN. Do not resolve events that belong to later chapters. Do not write a title or a heading, only the chapter prose.`

// DefaultSummaryTemplate condenses a chapter for the rolling context
const DefaultSummaryTemplate = `Summarize what happened in this chapter in exactly 3 sentences. Mention who did what and what changed. Output only the summary.

CHAPTER "{{.Title}}":
{{.Body}}`

// DefaultVisualPromptsTemplate extracts image prompts for one chapter
const DefaultVisualPromptsTemplate = `Read this chapter and create {{.PromptCount}} image generation prompts in English that illustrate its key moments, in order.
Niche: {{.Niche}}.
Each prompt is cinematic, 16:9, detailed lighting, realistic, no text in the image.
Return the {{.PromptCount}} prompts on a single line separated by '|', nothing else.

CHAPTER "{{.Title}}":
{{.Body}}`

// DefaultTranslationTemplate translates one section of a draft
const DefaultTranslationTemplate = `Translate the following text from {{.SourceLanguage}} to {{.TargetLanguage}}.
Keep the Markdown formatting exactly as it is: headings, **bold** and *italic* stay where they are.
Output only the translation.

{{.Text}}`

// DefaultCritiqueTemplate asks for structured editorial feedback
const DefaultCritiqueTemplate = `Act as a harsh literary critic. Analyze this {{.Genres}} story written in {{.Language}}.

Focus on three points:
1. antagonist_motivation: is the villain's motivation clear and believable?
2. ending_impact: does the ending land with emotional impact?
3. cliches: which clichés weaken the story?

Score each point from 1 (poor) to 5 (excellent) and explain briefly. Then give concrete revision notes.

Return ONLY JSON:
{"antagonist_motivation": {"score": 1, "reasoning": "..."}, "ending_impact": {"score": 1, "reasoning": "..."}, "cliches": {"score": 1, "reasoning": "..."}, "notes": "..."}

STORY:
{{.Draft}}`

// DefaultRewriteTemplate applies a critique to the draft
const DefaultRewriteTemplate = `Rewrite the story below fixing ONLY the problems pointed out by the critic.
Keep the same chapter structure: every chapter keeps its "## " heading, in the same order.
Write in {{.Language}}, Markdown. Tone: {{.Genres}}.

CRITIQUE:
{{.Critique}}

STORY:
{{.Draft}}`
