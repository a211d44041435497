package story

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/lamim/storyforge/pkg/models"
)

var testRequest = models.StoryRequest{
	Theme:  "A lighthouse keeper hears a voice under the sea",
	Niche:  "mystery",
	Genres: []string{"suspense", "drama"},
}

func planJSON(n int) string {
	entries := make([]string, n)
	for i := range entries {
		entries[i] = fmt.Sprintf(`{"chapter_num": %d, "title": "Title %d", "events": "Beat %d happens"}`, i+1, i+1, i+1)
	}
	return "[" + strings.Join(entries, ",") + "]"
}

func TestParsePlan(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    int
		wantErr bool
	}{
		{name: "array", raw: planJSON(8), want: 8},
		{name: "envelope", raw: `{"chapters": ` + planJSON(3) + `}`, want: 3},
		{name: "fenced with chatter", raw: "Sure, here is the plan:\n```json\n" + planJSON(2) + "\n```", want: 2},
		{name: "think block", raw: "<think>8 chapters</think>" + planJSON(8), want: 8},
		{name: "prose", raw: "Chapter one: the keeper hears the voice.", wantErr: true},
		{name: "empty array", raw: "[]", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
		{name: "entry without content", raw: `[{"chapter_num": 1, "title": "", "events": ""}]`, wantErr: true},
		{name: "wrong types", raw: `[{"chapter_num": "one", "title": 5}]`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := ParsePlan(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParsePlan() expected error, got %d entries", len(entries))
				}
				if !IsMalformed(err) {
					t.Errorf("expected *MalformedError, got %T", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePlan() error = %v", err)
			}
			if len(entries) != tt.want {
				t.Errorf("got %d entries, want %d", len(entries), tt.want)
			}
		})
	}
}

func TestNormalizePlan(t *testing.T) {
	three, _ := ParsePlan(planJSON(3))
	plan, outcome := NormalizePlan(three, 8)
	if outcome != models.OutcomeNormalized {
		t.Errorf("outcome = %s, want normalized", outcome)
	}
	if len(plan) != 8 {
		t.Fatalf("len = %d, want 8", len(plan))
	}
	if plan[2].Title != "Title 3" || plan[3].Title != "Chapter 4" || plan[3].Events != FallbackEvents {
		t.Errorf("unexpected padding: %+v", plan[2:4])
	}

	ten, _ := ParsePlan(planJSON(10))
	plan, outcome = NormalizePlan(ten, 8)
	if outcome != models.OutcomeNormalized || len(plan) != 8 || plan[7].Title != "Title 8" {
		t.Errorf("truncation failed: outcome=%s len=%d", outcome, len(plan))
	}

	// Indexes are rewritten regardless of what the model returned
	odd := []models.ChapterPlanEntry{{Index: 7, Title: "A", Events: "a"}, {Index: 7, Title: "B", Events: "b"}}
	plan, outcome = NormalizePlan(odd, 2)
	if outcome != models.OutcomeOK || plan[0].Index != 1 || plan[1].Index != 2 {
		t.Errorf("reindex failed: %+v (%s)", plan, outcome)
	}
}

func TestPlannerChapters_CardinalityUnderFailure(t *testing.T) {
	tests := []struct {
		name        string
		respond     func(string, bool) (string, error)
		wantOutcome models.Outcome
	}{
		{
			name:        "valid plan",
			respond:     func(string, bool) (string, error) { return planJSON(8), nil },
			wantOutcome: models.OutcomeOK,
		},
		{
			name:        "unparseable",
			respond:     func(string, bool) (string, error) { return "I cannot produce JSON today.", nil },
			wantOutcome: models.OutcomeFallback,
		},
		{
			name:        "generation error",
			respond:     func(string, bool) (string, error) { return "", errors.New("upstream 503") },
			wantOutcome: models.OutcomeFallback,
		},
		{
			name:        "too few",
			respond:     func(string, bool) (string, error) { return planJSON(5), nil },
			wantOutcome: models.OutcomeNormalized,
		},
		{
			name:        "too many",
			respond:     func(string, bool) (string, error) { return planJSON(12), nil },
			wantOutcome: models.OutcomeNormalized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &scriptedGenerator{respond: tt.respond}
			planner := NewPlanner(gen, testPrompts(), 8, "en", testLogger())

			result := planner.Chapters(context.Background(), "A synopsis.", testRequest)
			if len(result.Plan) != 8 {
				t.Fatalf("plan has %d entries, want 8", len(result.Plan))
			}
			if result.Outcome != tt.wantOutcome {
				t.Errorf("outcome = %s, want %s", result.Outcome, tt.wantOutcome)
			}
			if tt.wantOutcome != models.OutcomeOK && result.Err == nil {
				t.Error("degraded plan should carry the underlying error")
			}
			for i, e := range result.Plan {
				if e.Index != i+1 {
					t.Errorf("entry %d has index %d", i, e.Index)
				}
				if e.Title == "" || e.Events == "" {
					t.Errorf("entry %d is empty: %+v", i, e)
				}
			}
			if tt.wantOutcome == models.OutcomeFallback && result.Plan[0].Title != "Chapter 1" {
				t.Errorf("fallback title = %q", result.Plan[0].Title)
			}

			calls := gen.callsWithPrefix("Based on this synopsis")
			if len(calls) != 1 || !calls[0].Structured {
				t.Errorf("expected one structured plan request, got %+v", calls)
			}
			if !strings.Contains(calls[0].Prompt, "climax happens in chapter 7") {
				t.Error("plan prompt should place the climax in the penultimate chapter")
			}
		})
	}
}

func TestPlannerSynopsis(t *testing.T) {
	gen := &scriptedGenerator{respond: func(prompt string, _ bool) (string, error) {
		if !strings.Contains(prompt, testRequest.Theme) || !strings.Contains(prompt, "suspense, drama") {
			t.Errorf("synopsis prompt missing request fields: %s", prompt)
		}
		return "<think>hmm</think>The keeper follows the voice.", nil
	}}
	planner := NewPlanner(gen, testPrompts(), 8, "en", testLogger())

	synopsis, err := planner.Synopsis(context.Background(), testRequest)
	if err != nil {
		t.Fatalf("Synopsis() error = %v", err)
	}
	if synopsis != "The keeper follows the voice." {
		t.Errorf("synopsis = %q", synopsis)
	}
}

func TestPlannerPlan_EmptySynopsisIsFatal(t *testing.T) {
	for name, respond := range map[string]func(string, bool) (string, error){
		"blank":  func(string, bool) (string, error) { return "   ", nil },
		"failed": func(string, bool) (string, error) { return "", errors.New("timeout") },
	} {
		t.Run(name, func(t *testing.T) {
			gen := &scriptedGenerator{respond: respond}
			planner := NewPlanner(gen, testPrompts(), 8, "en", testLogger())

			_, _, err := planner.Plan(context.Background(), testRequest)
			if !errors.Is(err, ErrEmptySynopsis) {
				t.Fatalf("Plan() error = %v, want ErrEmptySynopsis", err)
			}
			if len(gen.callsWithPrefix("Based on this synopsis")) != 0 {
				t.Error("planning must not run without a synopsis")
			}
		})
	}
}
