package story

import (
	"testing"

	"github.com/lamim/storyforge/pkg/models"
)

func TestFindBeatOverlaps(t *testing.T) {
	plan := models.ChapterPlan{
		{Index: 1, Title: "A", Events: "Marina finds the hidden letter inside the lighthouse wall"},
		{Index: 2, Title: "B", Events: "The storm cuts the village off from the mainland"},
		{Index: 3, Title: "C", Events: "Marina finds the hidden letter inside the lighthouse cellar"},
		{Index: 4, Title: "D", Events: FallbackEvents},
		{Index: 5, Title: "E", Events: FallbackEvents},
	}

	overlaps := FindBeatOverlaps(plan, 0.6)
	if len(overlaps) != 1 {
		t.Fatalf("got %d overlaps, want 1: %+v", len(overlaps), overlaps)
	}
	if overlaps[0].First != 1 || overlaps[0].Second != 3 {
		t.Errorf("unexpected pair %+v", overlaps[0])
	}

	before := plan[2].Events
	_ = FindBeatOverlaps(plan, 0.1)
	if plan[2].Events != before {
		t.Error("overlap check must not modify the plan")
	}
}
