package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/lamim/storyforge/pkg/models"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB

	mu      sync.Mutex // guards entropy
	entropy *rand.Rand
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{
		db:      db,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) newID(t time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), s.entropy).String()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS stories (
		id             TEXT PRIMARY KEY,
		niche          TEXT NOT NULL,
		genres         TEXT NOT NULL,
		theme          TEXT NOT NULL,
		synopsis       TEXT NOT NULL,
		draft_source   TEXT NOT NULL,
		draft_target   TEXT NOT NULL DEFAULT '',
		source_lang    TEXT NOT NULL,
		target_lang    TEXT NOT NULL DEFAULT '',
		visual_prompts TEXT NOT NULL,
		status         TEXT NOT NULL DEFAULT 'ready',
		niche_group    TEXT NOT NULL DEFAULT '',
		search_text    TEXT NOT NULL DEFAULT '',
		created_at     TEXT NOT NULL,
		updated_at     TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_stories_created ON stories(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_stories_status ON stories(status);
	CREATE INDEX IF NOT EXISTS idx_stories_niche ON stories(niche);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return s.migrateSearchColumns()
}

// migrateSearchColumns adds the Go-folded lookup columns to databases created
// before they existed and fills them for rows that have none yet.
func (s *SQLiteStore) migrateSearchColumns() error {
	cols := map[string]bool{}
	rows, err := s.db.Query(`PRAGMA table_info(stories)`)
	if err != nil {
		return err
	}
	for rows.Next() {
		var (
			cid          int
			name, typ    string
			notNull, pk  int
			defaultValue sql.NullString
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &defaultValue, &pk); err != nil {
			rows.Close()
			return err
		}
		cols[name] = true
	}
	rows.Close()
	for _, col := range []string{"niche_group", "search_text"} {
		if cols[col] {
			continue
		}
		if _, err := s.db.Exec(`ALTER TABLE stories ADD COLUMN ` + col + ` TEXT NOT NULL DEFAULT ''`); err != nil {
			return fmt.Errorf("add column %s: %w", col, err)
		}
	}

	type pending struct{ id, niche, theme, synopsis string }
	var todo []pending
	rows, err = s.db.Query(`SELECT id, niche, theme, synopsis FROM stories WHERE search_text = '' OR niche_group = ''`)
	if err != nil {
		return err
	}
	for rows.Next() {
		var p pending
		if err := rows.Scan(&p.id, &p.niche, &p.theme, &p.synopsis); err != nil {
			rows.Close()
			return err
		}
		todo = append(todo, p)
	}
	rows.Close()
	for _, p := range todo {
		if _, err := s.db.Exec(`UPDATE stories SET niche_group = ?, search_text = ? WHERE id = ?`,
			NicheGroup(p.niche), searchText(p.theme, p.synopsis), p.id); err != nil {
			return fmt.Errorf("backfill %s: %w", p.id, err)
		}
	}
	return nil
}

// searchText folds theme and synopsis with Unicode case rules. SQLite's LOWER
// only folds ASCII, so matching is done against this column instead.
func searchText(theme, synopsis string) string {
	return strings.ToLower(theme + "\n" + synopsis)
}

// likePattern builds a substring pattern for LIKE ... ESCAPE '\'.
func likePattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(term)) + "%"
}

func (s *SQLiteStore) Create(ctx context.Context, rec models.StoryRecord) (string, error) {
	if strings.TrimSpace(rec.Theme) == "" {
		return "", errors.New("story theme is required")
	}
	if strings.TrimSpace(rec.DraftSource) == "" {
		return "", errors.New("story has no draft")
	}

	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	id := s.newID(created)

	genres, err := json.Marshal(nonNil(rec.Genres))
	if err != nil {
		return "", fmt.Errorf("encode genres: %w", err)
	}
	prompts, err := json.Marshal(nonNil(rec.VisualPrompts))
	if err != nil {
		return "", fmt.Errorf("encode visual prompts: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO stories (id, niche, genres, theme, synopsis, draft_source, draft_target,
		                     source_lang, target_lang, visual_prompts, status, niche_group, search_text,
		                     created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, rec.Niche, string(genres), rec.Theme, rec.Synopsis, rec.DraftSource, rec.DraftTarget,
		rec.SourceLang, rec.TargetLang, string(prompts), string(models.StatusReady),
		NicheGroup(rec.Niche), searchText(rec.Theme, rec.Synopsis),
		created.UTC().Format(time.RFC3339Nano), now)
	if err != nil {
		return "", fmt.Errorf("insert story: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*models.StoryRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+storyColumns+` FROM stories WHERE id = ?`, id)
	rec, err := scanStory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *SQLiteStore) List(ctx context.Context, p ListParams) ([]models.StoryRecord, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 50
	}

	var where []string
	var args []any

	if p.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(p.Status))
	}
	if p.Niche != "" {
		where = append(where, "niche = ?")
		args = append(args, p.Niche)
	}
	switch p.Group {
	case "":
	case GroupBible, GroupGeneral:
		where = append(where, "niche_group = ?")
		args = append(args, p.Group)
	default:
		return nil, fmt.Errorf("unknown niche group %q", p.Group)
	}
	if term := strings.TrimSpace(p.Search); term != "" {
		where = append(where, `search_text LIKE ? ESCAPE '\'`)
		args = append(args, likePattern(term))
	}

	query := `SELECT ` + storyColumns + ` FROM stories`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stories []models.StoryRecord
	for rows.Next() {
		rec, err := scanStory(rows)
		if err != nil {
			return nil, err
		}
		stories = append(stories, rec)
	}
	return stories, rows.Err()
}

func (s *SQLiteStore) UpdateStatus(ctx context.Context, id string, next models.WorkflowStatus) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx, `SELECT status FROM stories WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return err
	}

	from := models.WorkflowStatus(current)
	if !from.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, next)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE stories SET status = ?, updated_at = ? WHERE id = ?`,
		string(next), time.Now().UTC().Format(time.RFC3339Nano), id); err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) UpdateDrafts(ctx context.Context, id, source, target string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE stories SET draft_source = ?, draft_target = ?, updated_at = ? WHERE id = ?`,
		source, target, time.Now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("update drafts: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const storyColumns = `id, niche, genres, theme, synopsis, draft_source, draft_target,
	source_lang, target_lang, visual_prompts, status, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanStory(row scanner) (models.StoryRecord, error) {
	var rec models.StoryRecord
	var genres, prompts, status, created string
	err := row.Scan(&rec.ID, &rec.Niche, &genres, &rec.Theme, &rec.Synopsis,
		&rec.DraftSource, &rec.DraftTarget, &rec.SourceLang, &rec.TargetLang,
		&prompts, &status, &created)
	if err != nil {
		return rec, err
	}

	if err := json.Unmarshal([]byte(genres), &rec.Genres); err != nil {
		return rec, fmt.Errorf("decode genres of %s: %w", rec.ID, err)
	}
	if err := json.Unmarshal([]byte(prompts), &rec.VisualPrompts); err != nil {
		return rec, fmt.Errorf("decode visual prompts of %s: %w", rec.ID, err)
	}
	rec.Status = models.WorkflowStatus(status)
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	return rec, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
