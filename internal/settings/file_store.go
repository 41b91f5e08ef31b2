package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileStore persists the record to a single JSON file with restricted
// permissions (owner read/write only).
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a file store at path, creating the parent directory
// with owner-only permissions.
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create settings directory: %w", err)
	}
	return &FileStore{path: path}, nil
}

// Load reads the persisted record. A missing file yields an empty record.
func (s *FileStore) Load(ctx context.Context) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// #nosec G304 -- path is fixed at construction, not user input
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Record{}, nil
		}
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings file: %w", err)
	}
	return &record, nil
}

// Save writes the record durably before returning.
func (s *FileStore) Save(ctx context.Context, record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}
	return nil
}
