package store

import (
	"context"
	"sort"
	"sync"
)

type memDoc struct {
	parentID string
	body     []byte
	seq      uint64
}

// MemoryBackend keeps documents in process. It is the default when no
// database is configured and the backend tests use.
type MemoryBackend struct {
	mu   sync.RWMutex
	seq  uint64
	docs map[string]map[string]memDoc
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{docs: make(map[string]map[string]memDoc)}
}

func (m *MemoryBackend) Put(_ context.Context, kind, id, parentID string, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byID, ok := m.docs[kind]
	if !ok {
		byID = make(map[string]memDoc)
		m.docs[kind] = byID
	}
	seq := byID[id].seq
	if seq == 0 {
		m.seq++
		seq = m.seq
	}
	byID[id] = memDoc{parentID: parentID, body: append([]byte(nil), body...), seq: seq}
	return nil
}

func (m *MemoryBackend) Get(_ context.Context, kind, id string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.docs[kind][id]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), d.body...), nil
}

func (m *MemoryBackend) Delete(_ context.Context, kind, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[kind][id]; !ok {
		return ErrNotFound
	}
	delete(m.docs[kind], id)
	return nil
}

func (m *MemoryBackend) List(_ context.Context, kind, parentID string) ([][]byte, error) {
	m.mu.RLock()
	var found []memDoc
	for _, d := range m.docs[kind] {
		if parentID == "" || d.parentID == parentID {
			found = append(found, d)
		}
	}
	m.mu.RUnlock()

	sort.Slice(found, func(i, j int) bool { return found[i].seq < found[j].seq })
	out := make([][]byte, len(found))
	for i, d := range found {
		out[i] = append([]byte(nil), d.body...)
	}
	return out, nil
}
