package writer

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

const (
	sessionPrefix     = "session_"
	sessionTimeLayout = "2006-01-02T15-04-05"
)

// ErrInvalidSession is returned for session names that are not a plain session directory
var ErrInvalidSession = errors.New("invalid session directory")

// ParseSessionName returns the start time encoded in a session directory name
func ParseSessionName(name string) (time.Time, error) {
	stamp, ok := strings.CutPrefix(name, sessionPrefix)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %q lacks the %q prefix", ErrInvalidSession, name, sessionPrefix)
	}
	t, err := time.ParseInLocation(sessionTimeLayout, stamp, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q is not session_YYYY-MM-DDTHH-MM-SS", ErrInvalidSession, name)
	}
	return t, nil
}

// ValidateSessionPath checks that sessionName names a session directory directly inside outputDir
func ValidateSessionPath(outputDir, sessionName string) error {
	switch {
	case sessionName == "":
		return fmt.Errorf("%w: name is empty", ErrInvalidSession)
	case strings.Contains(sessionName, ".."):
		return fmt.Errorf("%w: %q contains a parent reference", ErrInvalidSession, sessionName)
	case strings.ContainsAny(sessionName, `/\:`):
		return fmt.Errorf("%w: %q must be a bare directory name", ErrInvalidSession, sessionName)
	}

	if _, err := ParseSessionName(sessionName); err != nil {
		return err
	}

	if outputDir == "" {
		outputDir = DefaultOutputDir
	}
	base, err := filepath.Abs(outputDir)
	if err != nil {
		return fmt.Errorf("failed to resolve output directory: %w", err)
	}
	rel, err := filepath.Rel(base, filepath.Join(base, sessionName))
	if err != nil || rel != sessionName {
		return fmt.Errorf("%w: %q resolves outside %s", ErrInvalidSession, sessionName, outputDir)
	}
	return nil
}
