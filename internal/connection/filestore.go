package connection

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// FileKV is the session KV scope: a single JSON object persisted to disk.
// Writes go through a temp file rename so a crash never leaves a torn file.
type FileKV struct {
	path string
	mu   sync.Mutex
}

// NewFileKV builds a file-backed store at the given path.
func NewFileKV(path string) *FileKV {
	return &FileKV{path: path}
}

func (s *FileKV) read() ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []byte("{}"), nil
		}
		return nil, fmt.Errorf("file store: read failed: %w", err)
	}
	if len(data) == 0 {
		return []byte("{}"), nil
	}
	return data, nil
}

func (s *FileKV) write(data []byte) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("file store: create dir failed: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("file store: write temp failed: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("file store: rename failed: %w", err)
	}
	return nil
}

// Get returns the raw JSON value stored under key.
func (s *FileKV) Get(key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.read()
	if err != nil {
		return nil, false, err
	}
	result := gjson.GetBytes(data, key)
	if !result.Exists() {
		return nil, false, nil
	}
	return []byte(result.Raw), true, nil
}

// Set stores the raw JSON value under key.
func (s *FileKV) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.read()
	if err != nil {
		return err
	}
	updated, err := sjson.SetRawBytes(data, key, value)
	if err != nil {
		return fmt.Errorf("file store: set %s failed: %w", key, err)
	}
	return s.write(updated)
}

// Unset removes key from the backing object.
func (s *FileKV) Unset(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.read()
	if err != nil {
		return err
	}
	if !gjson.GetBytes(data, key).Exists() {
		return nil
	}
	updated, err := sjson.DeleteBytes(data, key)
	if err != nil {
		return fmt.Errorf("file store: unset %s failed: %w", key, err)
	}
	return s.write(updated)
}
