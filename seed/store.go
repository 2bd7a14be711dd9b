package seed

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrMalformedSeed indicates persisted seed content is not a decimal integer.
var ErrMalformedSeed = errors.New("malformed seed")

// Store persists the seed of the last failing run.
type Store interface {
	// Load returns the persisted seed. ok is false when nothing is stored.
	Load() (seed int64, ok bool, err error)
	// Save overwrites the persisted seed.
	Save(seed int64) error
	// Clear removes the persisted seed. Clearing an empty store is not an error.
	Clear() error
	// Location names the store in console output.
	Location() string
}

// FileStore keeps the seed as decimal text in a single file.
type FileStore struct {
	path string
}

// NewFileStore returns a FileStore for path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Location returns the seed file path.
func (s *FileStore) Location() string {
	return s.path
}

// Load reads the seed file. A missing file reports ok=false with no error.
func (s *FileStore) Load() (int64, bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("read seed file: %w", err)
	}
	seed, ok := ParseSeed(string(data))
	if !ok {
		return 0, false, fmt.Errorf("%w in %s: %q", ErrMalformedSeed, s.path, strings.TrimSpace(string(data)))
	}
	return seed, true, nil
}

// Save writes seed through a temp file and rename so a crash never leaves a
// truncated seed behind.
func (s *FileStore) Save(seed int64) error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create seed file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.WriteString(strconv.FormatInt(seed, 10)); err != nil {
		return fmt.Errorf("write seed file: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		return fmt.Errorf("chmod seed file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close seed file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("rename seed file: %w", err)
	}
	return nil
}

// Clear removes the seed file if present.
func (s *FileStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove seed file: %w", err)
	}
	return nil
}

// ParseSeed parses decimal seed text, ignoring surrounding whitespace.
func ParseSeed(text string) (int64, bool) {
	v, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

var _ Store = (*FileStore)(nil)
