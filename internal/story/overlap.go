package story

import (
	"strings"
	"unicode"

	"github.com/lamim/storyforge/pkg/models"
)

// BeatOverlap flags two plan entries whose events read alike
type BeatOverlap struct {
	First      int
	Second     int
	Similarity float64
}

// FindBeatOverlaps compares the events of every pair of chapters by word-set
// Jaccard similarity and reports pairs at or above threshold. It only reports;
// the plan is never changed.
func FindBeatOverlaps(plan models.ChapterPlan, threshold float64) []BeatOverlap {
	sets := make([]map[string]struct{}, len(plan))
	for i, e := range plan {
		sets[i] = contentWords(e.Events)
	}

	var overlaps []BeatOverlap
	for i := 0; i < len(plan); i++ {
		for j := i + 1; j < len(plan); j++ {
			if len(sets[i]) == 0 || len(sets[j]) == 0 {
				continue
			}
			if plan[i].Events == FallbackEvents || plan[j].Events == FallbackEvents {
				continue
			}
			if s := jaccard(sets[i], sets[j]); s >= threshold {
				overlaps = append(overlaps, BeatOverlap{First: plan[i].Index, Second: plan[j].Index, Similarity: s})
			}
		}
	}
	return overlaps
}

func contentWords(s string) map[string]struct{} {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		if len([]rune(w)) > 3 {
			set[w] = struct{}{}
		}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	inter := 0
	for w := range a {
		if _, ok := b[w]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
