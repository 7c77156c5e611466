// File path: internal/docstore/local.go
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/common/telemetry"
)

// LocalStore keeps one JSON file per (owner, doc key) below a root directory:
// <root>/<owner>/<doc_key>.json.
type LocalStore struct {
	root string
	mu   sync.RWMutex
}

func NewLocalStore(root string) (*LocalStore, error) {
	trimmed := strings.TrimSpace(root)
	if trimmed == "" {
		return nil, errors.New("local store root required")
	}
	if err := os.MkdirAll(trimmed, 0o755); err != nil {
		return nil, fmt.Errorf("create local store dir: %w", err)
	}
	return &LocalStore{root: trimmed}, nil
}

func (s *LocalStore) Mode() Mode { return ModeLocal }

// Root returns the directory used for persistence.
func (s *LocalStore) Root() string {
	if s == nil {
		return ""
	}
	return s.root
}

// Path returns the file that backs key.
func (s *LocalStore) Path(key Key) string {
	return filepath.Join(s.root, key.OwnerKey(), key.DocKey()+".json")
}

// resolve returns the backing file of key and refuses paths that leave root.
func (s *LocalStore) resolve(key Key) (string, error) {
	if err := key.validate(); err != nil {
		return "", err
	}
	path := s.Path(key)
	rel, err := filepath.Rel(s.root, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q escapes store root", ErrInvalidKey, key.String())
	}
	return path, nil
}

func (s *LocalStore) Load(ctx context.Context, key Key) (Document, error) {
	start := time.Now()
	doc, err := s.load(ctx, key)
	telemetry.RecordStoreOp("load", string(ModeLocal), time.Since(start), err)
	return doc, wrapErr("load", ModeLocal, key, err)
}

func (s *LocalStore) load(ctx context.Context, key Key) (Document, error) {
	if s == nil {
		return nil, errors.New("local store not initialized")
	}
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read document: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}

func (s *LocalStore) Save(ctx context.Context, key Key, doc Document) (SaveResult, error) {
	start := time.Now()
	res, err := s.save(ctx, key, doc)
	telemetry.RecordStoreOp("save", string(ModeLocal), time.Since(start), err)
	return res, wrapErr("save", ModeLocal, key, err)
}

func (s *LocalStore) save(ctx context.Context, key Key, doc Document) (SaveResult, error) {
	if s == nil {
		return SaveResult{}, errors.New("local store not initialized")
	}
	path, err := s.resolve(key)
	if err != nil {
		return SaveResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return SaveResult{}, err
	}
	if doc == nil {
		doc = Document{}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return SaveResult{}, fmt.Errorf("encode document: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return SaveResult{}, fmt.Errorf("create owner dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".doc-*.tmp")
	if err != nil {
		return SaveResult{}, fmt.Errorf("create temp document: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return SaveResult{}, fmt.Errorf("write document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return SaveResult{}, fmt.Errorf("close document: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return SaveResult{}, fmt.Errorf("replace document: %w", err)
	}
	return SaveResult{OK: true, Mode: ModeLocal, Path: path}, nil
}

// Keys lists the document keys stored for an owner, sorted.
func (s *LocalStore) Keys(ctx context.Context, owner string) ([]string, error) {
	if s == nil {
		return nil, errors.New("local store not initialized")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ownerKey := SafeName(strings.TrimSpace(owner))
	if ownerKey == "" || isDotName(ownerKey) {
		return nil, fmt.Errorf("%w: owner %q", ErrInvalidKey, owner)
	}
	dir := filepath.Join(s.root, ownerKey)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read owner dir: %w", err)
	}
	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".json") {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(keys)
	return keys, nil
}

// LocalOf returns the LocalStore behind store, looking through a
// FallbackStore.
func LocalOf(store Store) (*LocalStore, bool) {
	switch s := store.(type) {
	case *LocalStore:
		return s, true
	case *FallbackStore:
		if local, ok := LocalOf(s.Primary()); ok {
			return local, true
		}
		return LocalOf(s.Secondary())
	default:
		return nil, false
	}
}

var _ Store = (*LocalStore)(nil)
