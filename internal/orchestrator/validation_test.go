package orchestrator

import (
	"strings"
	"testing"
)

func TestRejectChapter(t *testing.T) {
	tests := []struct {
		name string
		body string
		want bool
	}{
		{"prose", "The keeper climbed the stairs and lit the lamp.", false},
		{"refusal", "I'm sorry, but I can't continue this story.", true},
		{"portuguese refusal", "Desculpe, mas não posso escrever isso.", true},
		{"as an ai", "As an AI language model, I cannot write violent scenes.", true},
		{"dialogue late in the chapter", strings.Repeat("The sea roared. ", 20) + `"I'm sorry, but I can't," she said.`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, got := rejectChapter(tt.body); got != tt.want {
				t.Errorf("rejectChapter() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsIncompleteOutput(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"full stop", "He closed the door.", false},
		{"closing quote", `"Run," she whispered. "Now!"`, false},
		{"ellipsis", "And then the light went out…", false},
		{"emphasis at end", "It was *gone.*", false},
		{"cut mid sentence", "The keeper reached for the", true},
		{"trailing comma", "He ran, he fell,", true},
		{"empty", "  ", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason := isIncompleteOutput(tt.text)
			if got != tt.want {
				t.Errorf("isIncompleteOutput(%q) = %v (%s), want %v", tt.text, got, reason, tt.want)
			}
		})
	}
}
