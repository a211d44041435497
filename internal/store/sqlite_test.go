package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/lamim/storyforge/pkg/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testRecord(theme, niche string, created time.Time) models.StoryRecord {
	return models.StoryRecord{
		Niche:         niche,
		Genres:        []string{"terror", "mystery"},
		Theme:         theme,
		Synopsis:      "A synopsis about " + theme,
		DraftSource:   "## Chapter 1: Start\n\nbody",
		DraftTarget:   "## Capítulo 1: Início\n\ncorpo",
		SourceLang:    "en",
		TargetLang:    "pt",
		VisualPrompts: []string{"a dark pier", "a lantern"},
		CreatedAt:     created,
	}
}

func TestCreateAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.Create(ctx, testRecord("lighthouse", "horror", time.Time{}))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(id) != 26 {
		t.Errorf("expected ULID, got %q", id)
	}

	got, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Theme != "lighthouse" || got.Status != models.StatusReady {
		t.Errorf("unexpected record %+v", got)
	}
	if len(got.Genres) != 2 || len(got.VisualPrompts) != 2 {
		t.Errorf("lists not round-tripped: %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Error("created_at should be set")
	}
}

func TestCreate_RejectsEmpty(t *testing.T) {
	s := newTestStore(t)
	rec := testRecord("x", "horror", time.Time{})
	rec.DraftSource = "  "
	if _, err := s.Create(context.Background(), rec); err == nil {
		t.Error("expected error for empty draft")
	}
}

func TestGet_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestList_NewestFirstAndFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	oldID, _ := s.Create(ctx, testRecord("The Flood", "Bible stories", base))
	midID, _ := s.Create(ctx, testRecord("Haunted pier", "horror", base.Add(time.Hour)))
	newID, _ := s.Create(ctx, testRecord("Davi e Golias", "Histórias da Bíblia", base.Add(2*time.Hour)))

	all, err := s.List(ctx, ListParams{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 || all[0].ID != newID || all[2].ID != oldID {
		t.Fatalf("expected newest first, got %v", ids(all))
	}

	bible, err := s.List(ctx, ListParams{Group: GroupBible})
	if err != nil {
		t.Fatal(err)
	}
	if len(bible) != 2 {
		t.Errorf("bible group = %v", ids(bible))
	}

	general, err := s.List(ctx, ListParams{Group: GroupGeneral})
	if err != nil {
		t.Fatal(err)
	}
	if len(general) != 1 || general[0].ID != midID {
		t.Errorf("general group = %v", ids(general))
	}

	found, err := s.List(ctx, ListParams{Search: "PIER"})
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 1 || found[0].ID != midID {
		t.Errorf("search = %v", ids(found))
	}

	limited, _ := s.List(ctx, ListParams{Limit: 1})
	if len(limited) != 1 {
		t.Errorf("limit ignored: %d", len(limited))
	}

	if _, err := s.List(ctx, ListParams{Group: "other"}); err == nil {
		t.Error("expected error for unknown group")
	}
}

func TestList_SearchFoldsAccentsAndEscapesWildcards(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	waterID, _ := s.Create(ctx, testRecord("ÁGUA ESCURA no ÉDEN", "HISTÓRIAS DA BÍBLIA", time.Time{}))
	_, _ = s.Create(ctx, testRecord("Haunted pier", "horror", time.Time{}))

	for _, term := range []string{"água", "ÁGUA", "éden", "Água Escura"} {
		found, err := s.List(ctx, ListParams{Search: term})
		if err != nil {
			t.Fatalf("List(%q): %v", term, err)
		}
		if len(found) != 1 || found[0].ID != waterID {
			t.Errorf("search %q = %v", term, ids(found))
		}
	}

	for _, term := range []string{"%", "_"} {
		found, err := s.List(ctx, ListParams{Search: term})
		if err != nil {
			t.Fatal(err)
		}
		if len(found) != 0 {
			t.Errorf("search %q matched %v", term, ids(found))
		}
	}

	bible, err := s.List(ctx, ListParams{Group: GroupBible})
	if err != nil {
		t.Fatal(err)
	}
	if len(bible) != 1 || bible[0].ID != waterID {
		t.Errorf("bible group = %v", ids(bible))
	}
}

func TestUpdateStatus_ForwardOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id, _ := s.Create(ctx, testRecord("x", "horror", time.Time{}))

	if err := s.UpdateStatus(ctx, id, models.StatusPublished); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("skipping a step should fail, got %v", err)
	}
	if err := s.UpdateStatus(ctx, id, models.StatusAwaitingPublish); err != nil {
		t.Fatalf("ready -> awaiting_publish: %v", err)
	}
	if err := s.UpdateStatus(ctx, id, models.StatusReady); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("moving backwards should fail, got %v", err)
	}
	if err := s.UpdateStatus(ctx, id, models.StatusPublished); err != nil {
		t.Fatalf("awaiting_publish -> published: %v", err)
	}

	got, _ := s.Get(ctx, id)
	if got.Status != models.StatusPublished {
		t.Errorf("status = %s", got.Status)
	}

	filtered, _ := s.List(ctx, ListParams{Status: models.StatusPublished})
	if len(filtered) != 1 {
		t.Errorf("status filter = %v", ids(filtered))
	}

	if err := s.UpdateStatus(ctx, "missing", models.StatusAwaitingPublish); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateDrafts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id, _ := s.Create(ctx, testRecord("x", "horror", time.Time{}))

	if err := s.UpdateDrafts(ctx, id, "new source", "new target"); err != nil {
		t.Fatalf("UpdateDrafts: %v", err)
	}
	got, _ := s.Get(ctx, id)
	if got.DraftSource != "new source" || got.DraftTarget != "new target" {
		t.Errorf("drafts not updated: %+v", got)
	}

	if err := s.UpdateDrafts(ctx, "missing", "a", "b"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestNicheGroup(t *testing.T) {
	tests := map[string]string{
		"Bible stories":       GroupBible,
		"Histórias da Bíblia": GroupBible,
		"horror":              GroupGeneral,
		"":                    GroupGeneral,
	}
	for niche, want := range tests {
		if got := NicheGroup(niche); got != want {
			t.Errorf("NicheGroup(%q) = %s, want %s", niche, got, want)
		}
	}
}

func ids(recs []models.StoryRecord) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.ID
	}
	return out
}
