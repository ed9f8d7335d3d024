package prefs

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Store saves player preferences under XDG_STATE_HOME or ~/.local/state.
type Store struct {
	path string
	mu   sync.Mutex
}

type prefsFile struct {
	CurrentBookID string `json:"currentBookId,omitempty"`
}

// NewStore creates a preference store at the default location.
func NewStore() (*Store, error) {
	path, err := prefsPath()
	if err != nil {
		return nil, err
	}
	return &Store{path: path}, nil
}

// NewStoreAt creates a preference store at an explicit path.
func NewStoreAt(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("prefs path required")
	}
	return &Store{path: path}, nil
}

// CurrentBookID returns the persisted current book selection.
func (s *Store) CurrentBookID() (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.read()
	if err != nil {
		return "", false, err
	}
	return data.CurrentBookID, data.CurrentBookID != "", nil
}

// SetCurrentBookID persists the current book selection.
func (s *Store) SetCurrentBookID(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.read()
	if err != nil {
		return err
	}
	data.CurrentBookID = id
	return s.write(data)
}

func (s *Store) read() (prefsFile, error) {
	var data prefsFile
	file, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return data, nil
		}
		return data, err
	}
	if len(file) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(file, &data); err != nil {
		return prefsFile{}, err
	}
	return data, nil
}

func (s *Store) write(data prefsFile) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	payload, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, payload, 0o600)
}

func prefsPath() (string, error) {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "tome", "prefs.json"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "state", "tome", "prefs.json"), nil
}
