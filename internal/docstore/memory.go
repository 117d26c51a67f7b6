package docstore

import (
	"context"
	"sync"
)

// MemoryBackend keeps documents in process memory.
type MemoryBackend struct {
	mu   sync.RWMutex
	cols map[Path]map[Path]Doc
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{cols: make(map[Path]map[Path]Doc)}
}

func (m *MemoryBackend) Load(_ context.Context, p Path) (Doc, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.cols[p.Parent()][p]
	if !ok {
		return Doc{}, false, nil
	}
	d.Fields = d.Fields.clone()
	return d, true, nil
}

func (m *MemoryBackend) List(_ context.Context, collection Path) ([]Doc, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	col := m.cols[collection]
	out := make([]Doc, 0, len(col))
	for _, d := range col {
		d.Fields = d.Fields.clone()
		out = append(out, d)
	}
	return out, nil
}

func (m *MemoryBackend) Apply(_ context.Context, batch []Mutation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mut := range batch {
		parent := mut.Path.Parent()
		if mut.Doc == nil {
			if col, ok := m.cols[parent]; ok {
				delete(col, mut.Path)
				if len(col) == 0 {
					delete(m.cols, parent)
				}
			}
			continue
		}
		col, ok := m.cols[parent]
		if !ok {
			col = make(map[Path]Doc)
			m.cols[parent] = col
		}
		d := *mut.Doc
		d.Fields = d.Fields.clone()
		col[mut.Path] = d
	}
	return nil
}

func (m *MemoryBackend) Close() error { return nil }
