package writer

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/lamim/storyforge/pkg/models"
)

// RunFilename holds the serialized PipelineRun of a session
const RunFilename = "run.json"

// Artifacts receives the intermediate products of a pipeline run
type Artifacts interface {
	WriteSynopsis(synopsis string) error
	WritePlan(plan models.ChapterPlan) error
	WriteDraft(draft models.Draft) error
	WritePrompts(prompts models.VisualPromptSet) error
	WriteCritique(round int, critique models.Critique) error
	WriteRun(run *models.PipelineRun) error
}

// ArtifactWriter writes run artifacts into a session directory
type ArtifactWriter struct {
	dir    string
	mu     sync.Mutex
	logger *slog.Logger
}

// NewArtifactWriter creates a writer for the session's directory
func NewArtifactWriter(sessionMgr *SessionManager, logger *slog.Logger) *ArtifactWriter {
	return &ArtifactWriter{
		dir:    sessionMgr.GetSessionDir(),
		logger: logger.With("component", "artifacts"),
	}
}

func (w *ArtifactWriter) WriteSynopsis(synopsis string) error {
	return w.write("synopsis.md", []byte(synopsis+"\n"))
}

func (w *ArtifactWriter) WritePlan(plan models.ChapterPlan) error {
	return w.writeJSON("plan.json", plan)
}

// WriteDraft writes draft_<lang>_v<version>.md
func (w *ArtifactWriter) WriteDraft(draft models.Draft) error {
	name := fmt.Sprintf("draft_%s_v%d.md", draft.Language, draft.Version)
	return w.write(name, []byte(draft.Text+"\n"))
}

func (w *ArtifactWriter) WritePrompts(prompts models.VisualPromptSet) error {
	return w.writeJSON("prompts.json", prompts)
}

func (w *ArtifactWriter) WriteCritique(round int, critique models.Critique) error {
	return w.writeJSON(fmt.Sprintf("critique_%d.json", round), critique)
}

// WriteRun writes the full run state as run.json
func (w *ArtifactWriter) WriteRun(run *models.PipelineRun) error {
	return w.writeJSON(RunFilename, run)
}

// LoadRun reads the run.json written into sessionDir
func LoadRun(sessionDir string) (*models.PipelineRun, error) {
	data, err := os.ReadFile(filepath.Join(sessionDir, RunFilename))
	if err != nil {
		return nil, fmt.Errorf("failed to read run state: %w", err)
	}
	var run models.PipelineRun
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to parse run state: %w", err)
	}
	return &run, nil
}

func (w *ArtifactWriter) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", name, err)
	}
	return w.write(name, data)
}

// write replaces name atomically via a temp file
func (w *ArtifactWriter) write(name string, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	path := filepath.Join(w.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to rename %s: %w", name, err)
	}

	w.logger.Debug("Wrote artifact", "path", path, "bytes", len(data))
	return nil
}
