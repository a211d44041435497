package story

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/lamim/storyforge/pkg/models"
)

func sampleDraft(n int) models.Draft {
	chapters := make([]models.ChapterText, n)
	for i := range chapters {
		chapters[i] = models.ChapterText{
			Index: i + 1,
			Title: fmt.Sprintf("Chapter Title %d", i+1),
			Body:  fmt.Sprintf("The **keeper** climbed step %d.\n\nThe *light* flickered.", i+1),
		}
	}
	return models.Draft{Language: "en", Version: 1, Text: AssembleDraft(chapters)}
}

func TestTranslate_PreservesMarkerCount(t *testing.T) {
	tests := []struct {
		name        string
		translate   func(text string) string
		wantOutcome models.Outcome
	}{
		{
			name:      "faithful",
			translate: func(text string) string { return strings.ReplaceAll(text, "keeper", "faroleiro") },
		},
		{
			name: "drops heading marker",
			translate: func(text string) string {
				return strings.TrimPrefix(strings.ReplaceAll(text, "keeper", "faroleiro"), ChapterMarker)
			},
			wantOutcome: models.OutcomeFallback,
		},
		{
			name: "adds a stray heading inside the body",
			translate: func(text string) string {
				return text + "\n\n## Nota do tradutor\nfim"
			},
		},
		{
			name: "wraps in chatter",
			translate: func(text string) string {
				return "Aqui está a tradução:\n" + text + "\n\nEspero que goste!"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &scriptedGenerator{respond: func(prompt string, _ bool) (string, error) {
				return tt.translate(translationInput(prompt)), nil
			}}
			tr := NewTranslator(gen, testPrompts(), 3, testLogger())
			draft := sampleDraft(8)

			result, err := tr.Translate(context.Background(), draft, "pt", nil)
			if err != nil {
				t.Fatalf("Translate() error = %v", err)
			}
			if got, want := CountMarkers(result.Draft.Text), CountMarkers(draft.Text); got != want {
				t.Errorf("marker count = %d, want %d\n%s", got, want, result.Draft.Text)
			}
			if result.Draft.Language != "pt" {
				t.Errorf("language = %q", result.Draft.Language)
			}
			want := tt.wantOutcome
			if want == "" {
				want = models.OutcomeOK
			}
			if result.Outcome != want {
				t.Errorf("outcome = %s, want %s", result.Outcome, want)
			}
		})
	}
}

func TestTranslate_DropsAnnouncementBeforeHeading(t *testing.T) {
	gen := &scriptedGenerator{respond: func(string, bool) (string, error) {
		return "Tradução:\n## O Elevador\n\nDois estranhos presos.", nil
	}}
	tr := NewTranslator(gen, testPrompts(), 1, testLogger())
	draft := models.Draft{Language: "en", Version: 1, Text: "## The Elevator\n\nTwo strangers stuck."}

	result, err := tr.Translate(context.Background(), draft, "pt", nil)
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if result.Outcome != models.OutcomeOK {
		t.Errorf("outcome = %s", result.Outcome)
	}
	if want := "## O Elevador\n\nDois estranhos presos."; result.Draft.Text != want {
		t.Errorf("text = %q, want %q", result.Draft.Text, want)
	}
}

func TestTranslate_NoHeadingFallsBackToSource(t *testing.T) {
	gen := &scriptedGenerator{respond: func(string, bool) (string, error) {
		return "Tradução:\nDois estranhos presos.", nil
	}}
	tr := NewTranslator(gen, testPrompts(), 1, testLogger())
	draft := models.Draft{Language: "en", Version: 1, Text: "## The Elevator\n\nTwo strangers stuck."}

	result, err := tr.Translate(context.Background(), draft, "pt", nil)
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if result.Outcome != models.OutcomeFallback || result.Draft.Text != draft.Text {
		t.Errorf("outcome=%s text=%q", result.Outcome, result.Draft.Text)
	}
}

func TestTranslate_SectionFailureKeepsSource(t *testing.T) {
	gen := &scriptedGenerator{respond: func(prompt string, _ bool) (string, error) {
		text := translationInput(prompt)
		if strings.Contains(text, "Chapter Title 2") {
			return "", errors.New("content filter")
		}
		return strings.ReplaceAll(text, "Chapter Title", "Capítulo"), nil
	}}
	tr := NewTranslator(gen, testPrompts(), 1, testLogger())
	draft := sampleDraft(4)

	sections := 0
	result, err := tr.Translate(context.Background(), draft, "pt", func() { sections++ })
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if sections != 4 {
		t.Errorf("progress callback ran %d times, want 4", sections)
	}
	if result.Outcome != models.OutcomeNormalized || result.FallbackSections != 1 {
		t.Errorf("outcome=%s fallback=%d", result.Outcome, result.FallbackSections)
	}
	if CountMarkers(result.Draft.Text) != 4 {
		t.Errorf("marker count = %d", CountMarkers(result.Draft.Text))
	}
	if !strings.Contains(result.Draft.Text, "## Chapter Title 2") || !strings.Contains(result.Draft.Text, "## Capítulo 3") {
		t.Errorf("unexpected text:\n%s", result.Draft.Text)
	}
}

func TestTranslate_AllSectionsFail(t *testing.T) {
	gen := &scriptedGenerator{respond: func(string, bool) (string, error) { return "", errors.New("down") }}
	tr := NewTranslator(gen, testPrompts(), 2, testLogger())
	draft := sampleDraft(3)

	result, err := tr.Translate(context.Background(), draft, "pt", nil)
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if result.Outcome != models.OutcomeFallback {
		t.Errorf("outcome = %s, want fallback", result.Outcome)
	}
	if result.Draft.Text != draft.Text {
		t.Error("fully failed translation should equal the source text")
	}
}

func TestTranslate_KeepsEmphasisMarkup(t *testing.T) {
	gen := &scriptedGenerator{respond: func(prompt string, _ bool) (string, error) {
		return translationInput(prompt), nil
	}}
	tr := NewTranslator(gen, testPrompts(), 2, testLogger())

	result, err := tr.Translate(context.Background(), sampleDraft(2), "pt", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(result.Draft.Text, "**keeper**") || !strings.Contains(result.Draft.Text, "*light*") {
		t.Errorf("emphasis lost:\n%s", result.Draft.Text)
	}
}
