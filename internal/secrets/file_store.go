package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore is a Store backed by a single JSON file with restricted
// permissions. It is the default store for desktop use; tokens themselves are
// kept in the settings store, this file holds client credentials and the
// captured realm id.
//
// TODO: encrypt values at rest once a cross-platform keyring dependency is
// settled; plaintext-with-0600 matches the current release.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a file store at path, creating the parent directory
// with owner-only permissions.
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create secret storage directory: %w", err)
	}
	return &FileStore{path: path}, nil
}

// Get returns the stored value for name, or "" when absent.
func (s *FileStore) Get(ctx context.Context, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.read()
	if err != nil {
		return "", err
	}
	return values[name], nil
}

// Set stores a value under name, durably, before returning.
func (s *FileStore) Set(ctx context.Context, name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.read()
	if err != nil {
		return err
	}
	values[name] = value

	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal secrets: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write secrets file: %w", err)
	}
	return nil
}

func (s *FileStore) read() (map[string]string, error) {
	// #nosec G304 -- path is fixed at construction, not user input
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, err
	}

	values := map[string]string{}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to unmarshal secrets file: %w", err)
	}
	return values, nil
}
