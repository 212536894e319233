package storage

import (
	"context"
	"io"
	"testing"
)

func TestFSAudioStoreRoundTrip(t *testing.T) {
	store, err := NewFSAudioStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	ref, err := store.Save(context.Background(), "conv-1", "webm", []byte("audio-bytes"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if ref != "conv-1.webm" {
		t.Fatalf("expected key convention {id}.{format}, got %s", ref)
	}

	reader, err := store.Open(context.Background(), ref)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "audio-bytes" {
		t.Fatalf("unexpected content: %q", data)
	}
}

func TestFSAudioStoreOpenMissing(t *testing.T) {
	store, err := NewFSAudioStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if _, err := store.Open(context.Background(), "nope.webm"); err != ErrAudioNotFound {
		t.Fatalf("expected ErrAudioNotFound, got %v", err)
	}
}

func TestMemoryAudioStoreFailSaves(t *testing.T) {
	store := NewMemoryAudioStore()
	store.FailSaves = true
	if _, err := store.Save(context.Background(), "conv-1", "webm", []byte("x")); err == nil {
		t.Fatalf("expected forced save failure")
	}
}
