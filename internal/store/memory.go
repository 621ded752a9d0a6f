package store

import (
	"context"
	"sync"

	"github.com/jbt95/trenes/internal/history"
)

// Memory keeps the history in process memory. Used for tests and
// STORAGE_DRIVER=memory.
type Memory struct {
	mu    sync.Mutex
	index []history.IndexEntry
	blobs map[string][]byte
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{blobs: make(map[string][]byte)}
}

func (m *Memory) ListIndex(ctx context.Context) ([]history.IndexEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]history.IndexEntry, len(m.index))
	copy(out, m.index)
	return out, nil
}

func (m *Memory) AppendIndexEntry(ctx context.Context, entry history.IndexEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.index = append(m.index, entry)
	return nil
}

func (m *Memory) RewriteIndex(ctx context.Context, entries []history.IndexEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.index = make([]history.IndexEntry, len(entries))
	copy(m.index, entries)
	return nil
}

func (m *Memory) ReadEntry(ctx context.Context, id string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	payload, ok := m.blobs[id]
	if !ok {
		return nil, history.ErrNotFound
	}
	return append([]byte(nil), payload...), nil
}

func (m *Memory) WriteEntry(ctx context.Context, id string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.blobs[id] = append([]byte(nil), payload...)
	return nil
}

func (m *Memory) DeleteEntry(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.blobs, id)
	return nil
}

func (m *Memory) Close() error {
	return nil
}
