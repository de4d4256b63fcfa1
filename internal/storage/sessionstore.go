// Package storage persists client state: the login session as a YAML file in
// the data directory and snapshot data in an optional Redis cache.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/valter-silva-au/commission-desk/pkg/models"
	"gopkg.in/yaml.v3"
)

// SessionFileName is the session file inside the data directory.
const SessionFileName = "session.yaml"

// FileSessionStore keeps the session in <basePath>/session.yaml. The file
// holds a bearer token, so it is written with 0600 permissions.
type FileSessionStore struct {
	basePath string
}

// NewFileSessionStore creates a session store rooted at basePath.
func NewFileSessionStore(basePath string) *FileSessionStore {
	return &FileSessionStore{basePath: basePath}
}

// Path returns the session file path.
func (s *FileSessionStore) Path() string {
	return filepath.Join(s.basePath, SessionFileName)
}

func (s *FileSessionStore) lockPath() string {
	return filepath.Join(s.basePath, ".session.lock")
}

// Load returns the stored session, or nil, nil if there is none.
func (s *FileSessionStore) Load() (*models.Session, error) {
	data, err := os.ReadFile(s.Path())
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading session: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var session models.Session
	if err := yaml.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("parsing session: %w", err)
	}
	return &session, nil
}

// Save writes session, replacing any previous one.
func (s *FileSessionStore) Save(session *models.Session) error {
	if session == nil {
		return fmt.Errorf("saving session: session is nil")
	}
	if err := os.MkdirAll(s.basePath, 0o700); err != nil {
		return fmt.Errorf("saving session: creating directory: %w", err)
	}

	unlock, err := lockFile(s.lockPath())
	if err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	defer unlock()

	data, err := yaml.Marshal(session)
	if err != nil {
		return fmt.Errorf("saving session: marshalling: %w", err)
	}

	// Write to a temp file and rename so readers never see a partial file.
	tmp := s.Path() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("saving session: writing: %w", err)
	}
	if err := os.Rename(tmp, s.Path()); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("saving session: renaming: %w", err)
	}
	return nil
}

// Clear removes the stored session. Clearing an empty store is not an error.
func (s *FileSessionStore) Clear() error {
	if err := os.MkdirAll(s.basePath, 0o700); err != nil {
		return fmt.Errorf("clearing session: creating directory: %w", err)
	}
	unlock, err := lockFile(s.lockPath())
	if err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	defer unlock()

	if err := os.Remove(s.Path()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clearing session: %w", err)
	}
	return nil
}
