// File path: internal/docstore/fallback.go
package docstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/common"
	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/common/telemetry"
)

// Policy selects the backends a Store is built from.
type Policy string

const (
	// PolicyLocal writes JSON files only.
	PolicyLocal Policy = "local"
	// PolicyRemote talks to the remote service only; failures surface as errors.
	PolicyRemote Policy = "remote"
	// PolicyRemoteFallback prefers the remote service and falls back to local
	// files when a remote call fails.
	PolicyRemoteFallback Policy = "remote-fallback"
	// PolicyMemory keeps documents in process memory.
	PolicyMemory Policy = "memory"
)

// ParsePolicy accepts the policy names case-insensitively, plus "fallback" and
// "auto" as aliases for remote-fallback.
func ParsePolicy(value string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", string(PolicyLocal):
		return PolicyLocal, nil
	case string(PolicyRemote):
		return PolicyRemote, nil
	case string(PolicyRemoteFallback), "fallback", "auto":
		return PolicyRemoteFallback, nil
	case string(PolicyMemory):
		return PolicyMemory, nil
	default:
		return "", fmt.Errorf("unknown store policy %q", value)
	}
}

// FallbackStore routes every call to primary and retries on secondary when
// primary returns an error. A "not found" answer from primary is final.
type FallbackStore struct {
	primary   Store
	secondary Store
	logger    *slog.Logger
}

func NewFallbackStore(primary, secondary Store) (*FallbackStore, error) {
	if primary == nil || secondary == nil {
		return nil, errors.New("fallback store requires primary and secondary stores")
	}
	return &FallbackStore{primary: primary, secondary: secondary, logger: common.Logger()}, nil
}

func (s *FallbackStore) Mode() Mode { return s.primary.Mode() }

func (s *FallbackStore) Load(ctx context.Context, key Key) (Document, error) {
	doc, err := s.primary.Load(ctx, key)
	if err == nil {
		return doc, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}
	s.logger.Warn("docstore: load fell back", "key", key.String(), "from", s.primary.Mode(), "to", s.secondary.Mode(), "error", err)
	telemetry.RecordStoreFallback()
	doc, serr := s.secondary.Load(ctx, key)
	if serr != nil {
		return nil, errors.Join(err, serr)
	}
	return doc, nil
}

func (s *FallbackStore) Save(ctx context.Context, key Key, doc Document) (SaveResult, error) {
	res, err := s.primary.Save(ctx, key, doc)
	if err == nil {
		return res, nil
	}
	if ctx.Err() != nil {
		return SaveResult{}, err
	}
	s.logger.Warn("docstore: save fell back", "key", key.String(), "from", s.primary.Mode(), "to", s.secondary.Mode(), "error", err)
	telemetry.RecordStoreFallback()
	res, serr := s.secondary.Save(ctx, key, doc)
	if serr != nil {
		return SaveResult{}, errors.Join(err, serr)
	}
	res.FellBack = true
	return res, nil
}

// Primary exposes the preferred backend.
func (s *FallbackStore) Primary() Store { return s.primary }

// Secondary exposes the backend used after a primary failure.
func (s *FallbackStore) Secondary() Store { return s.secondary }

var _ Store = (*FallbackStore)(nil)

// Open builds the Store selected by cfg.Policy. A remote policy without a
// remote URL degrades to PolicyLocal, matching a deployment with no secrets.
func Open(ctx context.Context, cfg Config) (Store, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	logger := common.Logger()
	policy := cfg.Policy
	if (policy == PolicyRemote || policy == PolicyRemoteFallback) && strings.TrimSpace(cfg.RemoteURL) == "" {
		logger.Info("docstore: remote url not configured, using local files", "requested_policy", policy)
		policy = PolicyLocal
	}
	switch policy {
	case PolicyMemory:
		logger.Info("docstore: using in-memory store")
		return NewMemoryStore(), nil
	case PolicyLocal:
		logger.Info("docstore: using local store", "root", cfg.DataDir)
		return NewLocalStore(cfg.DataDir)
	case PolicyRemote:
		return NewRemoteStore(ctx, cfg)
	case PolicyRemoteFallback:
		remote, err := NewRemoteStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
		local, err := NewLocalStore(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		logger.Info("docstore: using remote store with local fallback", "url", cfg.RemoteURL, "root", cfg.DataDir)
		return NewFallbackStore(remote, local)
	default:
		return nil, fmt.Errorf("unknown store policy %q", policy)
	}
}
