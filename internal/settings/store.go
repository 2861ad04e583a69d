package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const fileName = "settings.json"

// Store persists string preferences as a JSON object in one file.
type Store struct {
	path string

	mu     sync.Mutex
	values map[string]string
}

// DefaultDir returns the per-user settings directory.
func DefaultDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("unable to determine user config directory: %w", err)
	}
	return filepath.Join(configDir, "camclinic"), nil
}

// Open loads the store in dir, creating the directory if needed. A missing
// settings file yields an empty store.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("error creating settings directory: %w", err)
	}

	store := &Store{path: filepath.Join(dir, fileName), values: map[string]string{}}
	data, err := os.ReadFile(store.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return store, nil
		}
		return nil, fmt.Errorf("error reading settings file: %w", err)
	}
	if err := json.Unmarshal(data, &store.values); err != nil {
		return nil, fmt.Errorf("error unmarshalling settings file: %w", err)
	}
	if store.values == nil {
		store.values = map[string]string{}
	}
	return store, nil
}

func (s *Store) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.values[key]
	return value, ok
}

// Set stores value and writes the file.
func (s *Store) Set(key string, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = value
	data, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshalling settings: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("error writing settings file: %w", err)
	}
	return nil
}

// Path returns the backing file.
func (s *Store) Path() string {
	return s.path
}
