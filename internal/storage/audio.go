package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

var ErrAudioNotFound = errors.New("audio file not found")

// AudioStore persists raw recording bytes write-once, keyed by
// conversation id. The returned reference is what gets stored on the
// conversation row and later resolves back to a readable stream.
type AudioStore interface {
	Save(ctx context.Context, conversationID, format string, data []byte) (string, error)
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
}

// FSAudioStore writes audio files under a base directory using the
// `{conversationId}.{format}` key convention.
type FSAudioStore struct {
	baseDir string
}

func NewFSAudioStore(baseDir string) (*FSAudioStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create audio storage dir: %w", err)
	}
	return &FSAudioStore{baseDir: baseDir}, nil
}

func (s *FSAudioStore) Save(_ context.Context, conversationID, format string, data []byte) (string, error) {
	ref := conversationID + "." + format
	path := filepath.Join(s.baseDir, ref)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write audio file: %w", err)
	}
	return ref, nil
}

func (s *FSAudioStore) Open(_ context.Context, ref string) (io.ReadCloser, error) {
	file, err := os.Open(filepath.Join(s.baseDir, filepath.Base(ref)))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrAudioNotFound
		}
		return nil, fmt.Errorf("open audio file: %w", err)
	}
	return file, nil
}

// MemoryAudioStore keeps audio bytes in memory for tests and local runs
// without a writable disk.
type MemoryAudioStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte

	// FailSaves forces Save to fail, for exercising atomic-ingest paths.
	FailSaves bool
}

func NewMemoryAudioStore() *MemoryAudioStore {
	return &MemoryAudioStore{blobs: make(map[string][]byte)}
}

func (s *MemoryAudioStore) Save(_ context.Context, conversationID, format string, data []byte) (string, error) {
	if s.FailSaves {
		return "", errors.New("audio store unavailable")
	}
	ref := conversationID + "." + format
	s.mu.Lock()
	s.blobs[ref] = append([]byte(nil), data...)
	s.mu.Unlock()
	return ref, nil
}

func (s *MemoryAudioStore) Open(_ context.Context, ref string) (io.ReadCloser, error) {
	s.mu.RLock()
	blob, ok := s.blobs[ref]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrAudioNotFound
	}
	return io.NopCloser(bytes.NewReader(blob)), nil
}
