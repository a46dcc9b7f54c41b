package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/layer-3/walletsso/core"
	"github.com/layer-3/walletsso/ports"
)

type fileEntry struct {
	Value  []byte    `json:"value"`
	Expiry time.Time `json:"expiry,omitempty"`
}

// FileStore persists values in a JSON file, the durable backing of a CLI or desktop host
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a store backed by the file at path
func NewFileStore(path string) ports.KVStore {
	return &FileStore{path: path}
}

// Set writes value under key and rewrites the file
func (s *FileStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load()
	if err != nil {
		return err
	}

	e := fileEntry{Value: value}
	if ttl > 0 {
		e.Expiry = time.Now().Add(ttl)
	}
	items[key] = e

	return s.save(items)
}

// Get reads key, treating expired entries as absent
func (s *FileStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load()
	if err != nil {
		return nil, err
	}

	e, ok := items[key]
	if !ok || (!e.Expiry.IsZero() && time.Now().After(e.Expiry)) {
		return nil, core.ErrNotFound
	}
	return e.Value, nil
}

// Delete removes keys and rewrites the file
func (s *FileStore) Delete(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load()
	if err != nil {
		return err
	}
	for _, key := range keys {
		delete(items, key)
	}
	return s.save(items)
}

func (s *FileStore) load() (map[string]fileEntry, error) {
	items := make(map[string]fileEntry)

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return items, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read store file: %w", err)
	}
	if len(data) == 0 {
		return items, nil
	}

	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to decode store file: %w", err)
	}
	return items, nil
}

func (s *FileStore) save(items map[string]fileEntry) error {
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to encode store file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	// Replace atomically
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write store file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace store file: %w", err)
	}
	return nil
}
