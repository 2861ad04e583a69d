package sink

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
)

var (
	ErrInvalidName     = errors.New("invalid file name")
	ErrExtensionDenied = errors.New("file extension not allowed")
)

var allowedExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webm": true, ".mp4": true}

// Store appends uploaded chunks to named files in one directory.
type Store struct {
	dir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore creates dir if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	return &Store{dir: dir, locks: map[string]*sync.Mutex{}}, nil
}

func (s *Store) Dir() string {
	return s.dir
}

// SanitizeName strips any path components from name and checks the
// extension against the allowed media types.
func SanitizeName(name string) (string, error) {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	base := path.Base(name)
	if base == "" || base == "." || base == ".." || base == "/" {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if !allowedExtensions[strings.ToLower(path.Ext(base))] {
		return "", fmt.Errorf("%w: %q", ErrExtensionDenied, base)
	}
	return base, nil
}

// Append writes r to the end of the named file, creating it if absent.
// Appends to the same file are serialized.
func (s *Store) Append(name string, r io.Reader) (int64, error) {
	clean, err := SanitizeName(name)
	if err != nil {
		return 0, err
	}

	lock := s.lockFor(clean)
	lock.Lock()
	defer lock.Unlock()

	file, err := os.OpenFile(filepath.Join(s.dir, clean), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return 0, fmt.Errorf("open %q for append: %w", clean, err)
	}
	n, copyErr := io.Copy(file, r)
	closeErr := file.Close()
	if copyErr != nil {
		return n, fmt.Errorf("append to %q: %w", clean, copyErr)
	}
	if closeErr != nil {
		return n, fmt.Errorf("close %q: %w", clean, closeErr)
	}
	return n, nil
}

func (s *Store) lockFor(name string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[name]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[name] = lock
	}
	return lock
}
