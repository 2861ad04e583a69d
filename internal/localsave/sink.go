package localsave

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"camclinic/internal/domain"
)

var (
	ErrNoDirectoryGrant = domain.ErrNoDirectoryGrant
	ErrInvalidPath      = errors.New("invalid file path")
)

// Sink writes artifacts under one user-selected directory. All file access
// goes through an *os.Root so nothing escapes the granted tree.
type Sink struct {
	mu   sync.Mutex
	dir  string
	root *os.Root
}

func NewSink() *Sink {
	return &Sink{}
}

// Grant replaces the granted directory.
func (s *Sink) Grant(dir string) error {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return fmt.Errorf("%w: empty directory", ErrNoDirectoryGrant)
	}
	root, err := os.OpenRoot(dir)
	if err != nil {
		return fmt.Errorf("open directory %q: %w", dir, err)
	}

	s.mu.Lock()
	previous := s.root
	s.root = root
	s.dir = dir
	s.mu.Unlock()

	if previous != nil {
		_ = previous.Close()
	}
	return nil
}

func (s *Sink) Granted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.root != nil
}

// Dir returns the granted directory or "".
func (s *Sink) Dir() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dir
}

// Save writes content to path, creating each directory component in order.
// It returns the absolute path of the written file.
func (s *Sink) Save(path string, content []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.root == nil {
		return "", ErrNoDirectoryGrant
	}

	dirs, name, err := splitPath(path)
	if err != nil {
		return "", err
	}

	current := "."
	for _, dir := range dirs {
		current = filepath.Join(current, dir)
		if err := s.root.Mkdir(current, 0o755); err != nil && !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("create directory %q: %w", current, err)
		}
	}

	target := filepath.Join(current, name)
	if err := writeFile(s.root, target, content); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, target), nil
}

// Close releases the directory handle.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.root == nil {
		return nil
	}
	err := s.root.Close()
	s.root = nil
	s.dir = ""
	return err
}

func writeFile(root *os.Root, name string, content []byte) (err error) {
	file, err := root.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create file %q: %w", name, err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close file %q: %w", name, closeErr)
		}
	}()

	if _, err := file.Write(content); err != nil {
		return fmt.Errorf("write file %q: %w", name, err)
	}
	return nil
}

// splitPath separates a slash-separated path into directory components and
// the final file name.
func splitPath(path string) ([]string, string, error) {
	path = strings.ReplaceAll(strings.TrimSpace(path), "\\", "/")
	var parts []string
	for _, part := range strings.Split(path, "/") {
		switch part {
		case "", ".":
			continue
		case "..":
			return nil, "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
		parts = append(parts, part)
	}
	if len(parts) == 0 {
		return nil, "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	return parts[:len(parts)-1], parts[len(parts)-1], nil
}
