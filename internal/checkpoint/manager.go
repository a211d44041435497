package checkpoint

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lamim/storyforge/internal/config"
	"github.com/lamim/storyforge/pkg/models"
)

const CheckpointFilename = "checkpoint.json"

// Manager handles checkpoint operations with async write support
type Manager struct {
	sessionDir string
	checkpoint *models.Checkpoint
	mu         sync.RWMutex
	logger     *slog.Logger
	enabled    bool

	// Async write support
	writeChan   chan *models.Checkpoint
	writeWg     sync.WaitGroup
	stopWriter  chan struct{}
	writerError error
	errorMu     sync.Mutex
	writeMu     sync.Mutex // Protects concurrent disk writes
	lastWritten time.Time  // LastSavedAt of the newest snapshot on disk, guarded by writeMu
}

// NewManager creates a new checkpoint manager for a fresh run of req
func NewManager(sessionDir string, cfg *config.Config, req models.StoryRequest, logger *slog.Logger) *Manager {
	cp := &models.Checkpoint{
		SessionID:    uuid.New().String(),
		CreatedAt:    time.Now(),
		CurrentPhase: models.PhaseSynopsis,
		Request:      req,
		ConfigHash:   ComputeConfigHash(cfg, req),
	}
	return newManager(sessionDir, cp, cfg, logger)
}

// NewManagerFromCheckpoint creates a manager from existing checkpoint
func NewManagerFromCheckpoint(sessionDir string, cp *models.Checkpoint, cfg *config.Config, logger *slog.Logger) *Manager {
	return newManager(sessionDir, cp, cfg, logger)
}

func newManager(sessionDir string, cp *models.Checkpoint, cfg *config.Config, logger *slog.Logger) *Manager {
	m := &Manager{
		sessionDir: sessionDir,
		checkpoint: cp,
		logger:     logger.With("component", "checkpoint"),
		enabled:    cfg.Generation.EnableCheckpointing,
		writeChan:  make(chan *models.Checkpoint, 10), // Buffer up to 10 pending writes
		stopWriter: make(chan struct{}),
	}

	if m.enabled {
		m.startAsyncWriter()
	}

	return m
}

// startAsyncWriter starts the background writer goroutine
func (m *Manager) startAsyncWriter() {
	m.writeWg.Add(1)
	go func() {
		defer m.writeWg.Done()
		for {
			select {
			case cp := <-m.writeChan:
				if err := m.writeCheckpointToDisk(cp); err != nil {
					m.errorMu.Lock()
					m.writerError = err
					m.errorMu.Unlock()
					m.logger.Error("Failed to write checkpoint", "error", err)
				}
			case <-m.stopWriter:
				// Drain remaining writes before stopping
				for len(m.writeChan) > 0 {
					cp := <-m.writeChan
					if err := m.writeCheckpointToDisk(cp); err != nil {
						m.logger.Error("Failed to write checkpoint during shutdown", "error", err)
					}
				}
				return
			}
		}
	}()
}

func (m *Manager) writeCheckpointToDisk(cp *models.Checkpoint) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	// A queued async snapshot must not overwrite a newer synchronous one
	if cp.LastSavedAt.Before(m.lastWritten) {
		return nil
	}

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	// Atomic write: write to temp file, then rename
	checkpointPath := filepath.Join(m.sessionDir, CheckpointFilename)
	tempPath := checkpointPath + ".tmp"

	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp checkpoint: %w", err)
	}

	if err := os.Rename(tempPath, checkpointPath); err != nil {
		return fmt.Errorf("failed to rename checkpoint: %w", err)
	}

	m.lastWritten = cp.LastSavedAt
	m.logger.Debug("Checkpoint saved", "path", checkpointPath, "phase", cp.CurrentPhase)
	return nil
}

// Save queues checkpoint for async write
func (m *Manager) Save() error {
	if !m.enabled {
		return nil
	}

	m.mu.Lock()
	m.checkpoint.LastSavedAt = time.Now()
	cpCopy := m.copyCheckpoint()
	m.mu.Unlock()

	select {
	case m.writeChan <- cpCopy:
		return nil
	default:
		m.logger.Warn("Checkpoint write buffer full, writing synchronously")
		return m.writeCheckpointToDisk(cpCopy)
	}
}

// SaveSync performs synchronous checkpoint write
func (m *Manager) SaveSync() error {
	if !m.enabled {
		return nil
	}

	m.mu.Lock()
	m.checkpoint.LastSavedAt = time.Now()
	cpCopy := m.copyCheckpoint()
	m.mu.Unlock()

	return m.writeCheckpointToDisk(cpCopy)
}

// copyCheckpoint creates a deep copy of the checkpoint. Caller holds mu.
func (m *Manager) copyCheckpoint() *models.Checkpoint {
	src := m.checkpoint
	cp := *src
	cp.Request.Genres = append([]string{}, src.Request.Genres...)
	cp.Plan = append(models.ChapterPlan{}, src.Plan...)
	cp.Chapters = append([]models.ChapterText{}, src.Chapters...)
	cp.Context = models.RollingContext{Fragments: append([]string{}, src.Context.Fragments...)}
	cp.Prompts = make(models.VisualPromptSet, len(src.Prompts))
	for i, p := range src.Prompts {
		cp.Prompts[i] = append([]string{}, p...)
	}
	return &cp
}

// Load reads checkpoint from disk
func Load(sessionDir string, logger *slog.Logger) (*models.Checkpoint, error) {
	checkpointPath := filepath.Join(sessionDir, CheckpointFilename)

	data, err := os.ReadFile(checkpointPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	var cp models.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}

	logger.Info("Checkpoint loaded",
		"session_id", cp.SessionID,
		"phase", cp.CurrentPhase,
		"chapters", len(cp.Chapters))

	return &cp, nil
}

// MarkSynopsisComplete records the synopsis
func (m *Manager) MarkSynopsisComplete(synopsis string) error {
	m.mu.Lock()
	m.checkpoint.Synopsis = synopsis
	m.checkpoint.CurrentPhase = models.PhasePlan
	m.mu.Unlock()

	return m.SaveSync()
}

// MarkPlanComplete records the normalized chapter plan
func (m *Manager) MarkPlanComplete(plan models.ChapterPlan, outcome models.Outcome) error {
	m.mu.Lock()
	m.checkpoint.PlanComplete = true
	m.checkpoint.Plan = plan
	m.checkpoint.PlanOutcome = outcome
	m.checkpoint.CurrentPhase = models.PhaseChapters
	m.mu.Unlock()

	return m.SaveSync()
}

// MarkChapterComplete appends a written chapter together with the rolling context it produced
func (m *Manager) MarkChapterComplete(chapter models.ChapterText, ctx models.RollingContext, stats *models.RunStats) error {
	if !m.enabled {
		return nil
	}

	m.mu.Lock()
	m.checkpoint.Chapters = append(m.checkpoint.Chapters, chapter)
	m.checkpoint.Context = ctx
	m.checkpoint.Stats = *stats
	if len(m.checkpoint.Chapters) >= len(m.checkpoint.Plan) {
		m.checkpoint.CurrentPhase = models.PhaseVisuals
	}
	m.mu.Unlock()

	return m.Save()
}

// MarkVisualsComplete records the visual prompts and the assembled source draft
func (m *Manager) MarkVisualsComplete(prompts models.VisualPromptSet, source models.Draft) error {
	m.mu.Lock()
	m.checkpoint.VisualsComplete = true
	m.checkpoint.Prompts = prompts
	m.checkpoint.Source = source
	m.checkpoint.CurrentPhase = models.PhaseTranslation
	m.mu.Unlock()

	return m.SaveSync()
}

// MarkTranslationComplete records the translated draft
func (m *Manager) MarkTranslationComplete(target models.Draft) error {
	m.mu.Lock()
	m.checkpoint.TranslationComplete = true
	m.checkpoint.Target = target
	m.mu.Unlock()

	return m.SaveSync()
}

// MarkPersisted records the library id so a resumed run updates that story
// instead of creating another one
func (m *Manager) MarkPersisted(storyID string) error {
	m.mu.Lock()
	m.checkpoint.StoryID = storyID
	m.mu.Unlock()

	return m.SaveSync()
}

// MarkComplete marks the run as finished
func (m *Manager) MarkComplete(stats *models.RunStats) error {
	m.mu.Lock()
	m.checkpoint.CurrentPhase = models.PhaseComplete
	m.checkpoint.Stats = *stats
	m.mu.Unlock()

	return m.SaveSync()
}

// GetCheckpoint returns a read-only copy of the current checkpoint
func (m *Manager) GetCheckpoint() *models.Checkpoint {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.copyCheckpoint()
}

// Close stops the async writer and waits for pending writes
func (m *Manager) Close() error {
	if !m.enabled {
		return nil
	}

	close(m.stopWriter)
	m.writeWg.Wait()

	m.errorMu.Lock()
	defer m.errorMu.Unlock()
	return m.writerError
}

// ComputeConfigHash hashes the inputs that shape a run's output
func ComputeConfigHash(cfg *config.Config, req models.StoryRequest) string {
	data := fmt.Sprintf("%s:%s:%s:%d:%d:%s",
		req.Theme,
		req.Niche,
		strings.Join(req.Genres, ","),
		cfg.Generation.ChapterCount,
		cfg.Generation.PromptsPerChapter,
		cfg.Generation.SourceLanguage)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash[:8])
}
