package storage

import (
	"context"
	"errors"
	"sync"
)

// ArtifactStore persists named text artifacts such as the shopping list.
// Saving an existing name overwrites it.
type ArtifactStore interface {
	Save(ctx context.Context, name string, content []byte) error
}

// TestArtifactStore is a simple in-memory implementation for testing
type TestArtifactStore struct {
	mu    sync.Mutex
	saved map[string][]byte
	err   error
}

func NewTestArtifactStore() *TestArtifactStore {
	return &TestArtifactStore{saved: map[string][]byte{}}
}

func NewTestArtifactStoreWithError() *TestArtifactStore {
	return &TestArtifactStore{saved: map[string][]byte{}, err: errors.New("disk full")}
}

func (t *TestArtifactStore) Save(ctx context.Context, name string, content []byte) error {
	if t.err != nil {
		return t.err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.saved[name] = append([]byte(nil), content...)
	return nil
}

// Get returns what was last saved under name.
func (t *TestArtifactStore) Get(name string) ([]byte, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	b, ok := t.saved[name]
	return b, ok
}
