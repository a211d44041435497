package writer

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// DefaultOutputDir is where session directories are created
const DefaultOutputDir = "output"

// SessionManager manages session directories and files
type SessionManager struct {
	outputDir  string
	sessionDir string
	logger     *slog.Logger
}

// NewSessionManager creates a new session directory under outputDir, or reopens
// resumeFromSession when it is set
func NewSessionManager(outputDir string, logger *slog.Logger, resumeFromSession string) (*SessionManager, error) {
	if outputDir == "" {
		outputDir = DefaultOutputDir
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var sessionDir string
	if resumeFromSession != "" {
		if err := ValidateSessionPath(outputDir, resumeFromSession); err != nil {
			return nil, err
		}
		sessionDir = filepath.Join(outputDir, resumeFromSession)
		if _, err := os.Stat(sessionDir); os.IsNotExist(err) {
			return nil, fmt.Errorf("session directory not found: %s", sessionDir)
		}
		logger.Info("Resuming from existing session", "path", sessionDir)
	} else {
		sessionDir = filepath.Join(outputDir, SessionName(time.Now()))
		if err := os.MkdirAll(sessionDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create session directory: %w", err)
		}
		logger.Info("Created new session directory", "path", sessionDir)
	}

	return &SessionManager{
		outputDir:  outputDir,
		sessionDir: sessionDir,
		logger:     logger,
	}, nil
}

// SessionName formats the directory name of a session started at t
func SessionName(t time.Time) string {
	return sessionPrefix + t.Format(sessionTimeLayout)
}

// ListSessions returns the session directory names under outputDir, newest first
func ListSessions(outputDir string) ([]string, error) {
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read output directory: %w", err)
	}

	type dated struct {
		name    string
		started time.Time
	}
	var found []dated
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if t, err := ParseSessionName(e.Name()); err == nil {
			found = append(found, dated{e.Name(), t})
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].started.After(found[j].started) })

	sessions := make([]string, len(found))
	for i, d := range found {
		sessions[i] = d.name
	}
	return sessions, nil
}

// GetSessionDir returns the session directory path
func (sm *SessionManager) GetSessionDir() string {
	return sm.sessionDir
}

// GetLogPath returns the full path to the session log file
func (sm *SessionManager) GetLogPath() string {
	return filepath.Join(sm.sessionDir, "session.log")
}

// GetConfigBackupPath returns the full path to the config backup
func (sm *SessionManager) GetConfigBackupPath() string {
	return filepath.Join(sm.sessionDir, "config.toml.bak")
}

// GetArtifactPath returns the path of a named artifact inside the session
func (sm *SessionManager) GetArtifactPath(name string) string {
	return filepath.Join(sm.sessionDir, name)
}

// BackupConfig copies the config file to the session directory
func (sm *SessionManager) BackupConfig(configPath string) error {
	source, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	backupPath := sm.GetConfigBackupPath()
	if err := os.WriteFile(backupPath, source, 0644); err != nil {
		return fmt.Errorf("failed to write config backup: %w", err)
	}

	sm.logger.Info("Backed up config file", "path", backupPath)
	return nil
}
