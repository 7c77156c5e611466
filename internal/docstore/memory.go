// File path: internal/docstore/memory.go
package docstore

import (
	"context"
	"sync"
)

// MemoryStore is a process-local store. Documents are deep-copied on the way
// in and out.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]Document
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]Document)}
}

func (s *MemoryStore) Mode() Mode { return ModeMemory }

func (s *MemoryStore) Load(ctx context.Context, key Key) (Document, error) {
	if err := key.validate(); err != nil {
		return nil, wrapErr("load", ModeMemory, key, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, wrapErr("load", ModeMemory, key, err)
	}
	s.mu.RLock()
	doc, ok := s.docs[key.String()]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	out, err := Clone(doc)
	return out, wrapErr("load", ModeMemory, key, err)
}

func (s *MemoryStore) Save(ctx context.Context, key Key, doc Document) (SaveResult, error) {
	if err := key.validate(); err != nil {
		return SaveResult{}, wrapErr("save", ModeMemory, key, err)
	}
	if err := ctx.Err(); err != nil {
		return SaveResult{}, wrapErr("save", ModeMemory, key, err)
	}
	if doc == nil {
		doc = Document{}
	}
	stored, err := Clone(doc)
	if err != nil {
		return SaveResult{}, wrapErr("save", ModeMemory, key, err)
	}
	s.mu.Lock()
	s.docs[key.String()] = stored
	s.mu.Unlock()
	return SaveResult{OK: true, Mode: ModeMemory}, nil
}

var _ Store = (*MemoryStore)(nil)
