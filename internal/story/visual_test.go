package story

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/lamim/storyforge/pkg/models"
)

func TestParseVisualPrompts_ExactlyK(t *testing.T) {
	const k = 5
	mk := func(delims int) string {
		parts := make([]string, delims+1)
		for i := range parts {
			parts[i] = fmt.Sprintf("shot %d of the harbor", i+1)
		}
		return strings.Join(parts, " | ")
	}

	tests := []struct {
		name      string
		raw       string
		wantParse int
		wantErr   bool
	}{
		{name: "0 delimiters", raw: mk(0), wantParse: 1, wantErr: true},
		{name: "K-2 delimiters", raw: mk(k - 2), wantParse: k - 1, wantErr: true},
		{name: "K delimiters", raw: mk(k), wantParse: k},
		{name: "K+3 delimiters", raw: mk(k + 3), wantParse: k},
		{name: "empty segments dropped", raw: "a | | b |  | c | d | e", wantParse: k},
		{name: "blank response", raw: "  ", wantParse: 0, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prompts, err := ParseVisualPrompts(tt.raw, k)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseVisualPrompts() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !IsMalformed(err) {
				t.Errorf("expected *MalformedError, got %T", err)
			}
			if len(prompts) != tt.wantParse {
				t.Errorf("parsed %d prompts, want %d", len(prompts), tt.wantParse)
			}

			padded := PadPrompts(prompts, k)
			if len(padded) != k {
				t.Fatalf("padded to %d, want %d", len(padded), k)
			}
			for i, p := range padded {
				if strings.TrimSpace(p) == "" {
					t.Errorf("prompt %d is empty", i)
				}
			}
		})
	}
}

func TestExtract_Outcomes(t *testing.T) {
	chapter := models.ChapterText{Index: 1, Title: "T", Body: "B"}
	tests := []struct {
		name    string
		respond func(string, bool) (string, error)
		want    models.Outcome
	}{
		{"ok", func(string, bool) (string, error) { return "a|b|c|d|e", nil }, models.OutcomeOK},
		{"short", func(string, bool) (string, error) { return "a|b", nil }, models.OutcomeNormalized},
		{"error", func(string, bool) (string, error) { return "", errors.New("x") }, models.OutcomeFallback},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewVisualExtractor(&scriptedGenerator{respond: tt.respond}, testPrompts(), 5, testLogger())
			prompts, outcome := v.Extract(context.Background(), chapter, "mystery")
			if outcome != tt.want {
				t.Errorf("outcome = %s, want %s", outcome, tt.want)
			}
			if len(prompts) != 5 {
				t.Errorf("got %d prompts, want 5", len(prompts))
			}
			if tt.want == models.OutcomeFallback && prompts[0] != FallbackVisualPrompt {
				t.Errorf("fallback prompt = %q", prompts[0])
			}
		})
	}
}

func TestExtractAll_PreservesChapterOrder(t *testing.T) {
	chapters := make([]models.ChapterText, 8)
	for i := range chapters {
		chapters[i] = models.ChapterText{Index: i + 1, Title: fmt.Sprintf("CH%d", i+1), Body: "body"}
	}

	gen := &scriptedGenerator{respond: func(prompt string, _ bool) (string, error) {
		for i := len(chapters); i >= 1; i-- {
			if strings.Contains(prompt, fmt.Sprintf(`CHAPTER "CH%d"`, i)) {
				if i == 3 {
					return "", errors.New("flaky")
				}
				return strings.TrimSuffix(strings.Repeat(fmt.Sprintf("ch%d|", i), 5), "|"), nil
			}
		}
		return "", errors.New("unknown chapter")
	}}
	v := NewVisualExtractor(gen, testPrompts(), 5, testLogger())

	var done atomic.Int32
	set, degraded, err := v.ExtractAll(context.Background(), chapters, "mystery", 3, func() { done.Add(1) })
	if err != nil {
		t.Fatalf("ExtractAll() error = %v", err)
	}
	if len(set) != 8 || len(set.Flatten()) != 40 {
		t.Fatalf("got %d chapters / %d prompts", len(set), len(set.Flatten()))
	}
	if done.Load() != 8 {
		t.Errorf("progress callback ran %d times, want 8", done.Load())
	}
	if degraded != 1 {
		t.Errorf("degraded = %d, want 1", degraded)
	}
	for i, prompts := range set {
		want := fmt.Sprintf("ch%d", i+1)
		if i == 2 {
			want = FallbackVisualPrompt
		}
		if prompts[0] != want {
			t.Errorf("chapter %d first prompt = %q, want %q", i+1, prompts[0], want)
		}
	}
}

func TestExtractAll_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	v := NewVisualExtractor(&scriptedGenerator{respond: func(string, bool) (string, error) { return "a", nil }}, testPrompts(), 5, testLogger())
	if _, _, err := v.ExtractAll(ctx, []models.ChapterText{{Index: 1}}, "n", 2, nil); err == nil {
		t.Error("expected error for canceled context")
	}
}
