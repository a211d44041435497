// Package store provides the story library and its SQLite implementation.
package store

import (
	"context"
	"errors"
	"strings"

	"github.com/lamim/storyforge/pkg/models"
)

var (
	// ErrNotFound is returned when no story has the requested id
	ErrNotFound = errors.New("story not found")
	// ErrInvalidTransition is returned when a status change is not a single forward step
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Niche groups used by the library listing
const (
	GroupBible   = "bible"
	GroupGeneral = "general"
)

// ListParams filters a library listing. Zero values match everything.
type ListParams struct {
	Status models.WorkflowStatus
	Niche  string
	Group  string // GroupBible or GroupGeneral
	Search string // case-insensitive match on theme or synopsis
	Limit  int
}

// Store defines the story library
type Store interface {
	// Create persists a new record and returns its id. New records start as ready.
	Create(ctx context.Context, rec models.StoryRecord) (string, error)

	// Get returns the record with the given id.
	Get(ctx context.Context, id string) (*models.StoryRecord, error)

	// List returns records matching p, newest first.
	List(ctx context.Context, p ListParams) ([]models.StoryRecord, error)

	// UpdateStatus moves a record one step forward in its workflow.
	UpdateStatus(ctx context.Context, id string, next models.WorkflowStatus) error

	// UpdateDrafts replaces both drafts of a record after a refinement.
	UpdateDrafts(ctx context.Context, id, source, target string) error

	Close() error
}

// NicheGroup maps a niche to its library group
func NicheGroup(niche string) string {
	lower := strings.ToLower(niche)
	if strings.Contains(lower, "bible") || strings.Contains(lower, "bíblia") {
		return GroupBible
	}
	return GroupGeneral
}
