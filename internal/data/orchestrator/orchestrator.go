// File path: internal/data/orchestrator/orchestrator.go
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/artifact"
	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/common"
	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/docstore"
	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/gate"
	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/project"
	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/sqlite"
	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/stage"
	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/tools"
)

// ErrNoCatalog is returned by operations that need the SQLite catalog when
// the artifact backend is the document store.
var ErrNoCatalog = errors.New("orchestrator: sqlite catalog not configured")

type closer interface {
	Close() error
}

// Workspace bundles the services of one owner.
type Workspace struct {
	Owner      string
	Artifacts  *artifact.Service
	Projects   *project.Service
	Tracker    *stage.Tracker
	Controller *stage.Controller
	Tools      *tools.Runner
	// Catalog is the owner's slice of the SQLite catalog, nil on the document
	// backend.
	Catalog *sqlite.Catalog
}

// Orchestrator wires together the stores that back the DecisionMate server
// and hands out per-owner workspaces to the API layer.
type Orchestrator struct {
	cfg Config

	store    docstore.Store
	catalog  *sqlite.Store
	gates    *gate.Resolver
	registry *tools.Registry
	now      func() time.Time

	mu         sync.Mutex
	workspaces map[string]*Workspace

	closers []closer
}

// New constructs an orchestrator from the provided configuration and optional
// overrides.
func New(ctx context.Context, cfg Config, opts ...Option) (*Orchestrator, error) {
	cfg = applyDefaults(cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	settings := options{}
	for _, opt := range opts {
		if opt != nil {
			opt(&settings)
		}
	}
	logger := common.Logger()

	gates := settings.gates
	if gates == nil {
		var err error
		if strings.TrimSpace(cfg.GatesFile) != "" {
			gates, err = gate.LoadFile(cfg.GatesFile)
		} else {
			gates, err = gate.Default()
		}
		if err != nil {
			return nil, fmt.Errorf("init gate tables: %w", err)
		}
	}

	orch := &Orchestrator{
		cfg:        cfg,
		gates:      gates,
		registry:   settings.registry,
		now:        settings.now,
		workspaces: map[string]*Workspace{},
	}
	if orch.registry == nil {
		orch.registry = tools.Default()
	}
	if orch.now == nil {
		orch.now = time.Now
	}

	store := settings.store
	if store == nil {
		opened, err := docstore.Open(ctx, cfg.Docstore)
		if err != nil {
			return nil, fmt.Errorf("init document store: %w", err)
		}
		store = opened
		orch.closers = append(orch.closers, storeClosers(opened)...)
	}
	orch.store = store

	if cfg.ArtifactBackend == BackendSQLite {
		catalog, err := sqlite.OpenWithConfig(cfg.SQLite)
		if err != nil {
			orch.Close()
			return nil, fmt.Errorf("init sqlite store: %w", err)
		}
		orch.catalog = catalog
		orch.closers = append(orch.closers, catalog)
	}
	logger.Info("orchestrator: ready", "owner", cfg.Owner, "store_mode", store.Mode(), "artifact_backend", cfg.ArtifactBackend)
	return orch, nil
}

func storeClosers(store docstore.Store) []closer {
	var out []closer
	if c, ok := store.(closer); ok {
		out = append(out, c)
	}
	if fb, ok := store.(*docstore.FallbackStore); ok {
		out = append(out, storeClosers(fb.Primary())...)
		out = append(out, storeClosers(fb.Secondary())...)
	}
	return out
}

// Config returns the effective configuration.
func (o *Orchestrator) Config() Config {
	if o == nil {
		return Config{}
	}
	return o.cfg
}

// Store exposes the document store.
func (o *Orchestrator) Store() docstore.Store {
	if o == nil {
		return nil
	}
	return o.store
}

// Catalog exposes the optional SQLite artifact catalog.
func (o *Orchestrator) Catalog() *sqlite.Store {
	if o == nil {
		return nil
	}
	return o.catalog
}

// Gates exposes the gate requirement tables.
func (o *Orchestrator) Gates() *gate.Resolver {
	if o == nil {
		return nil
	}
	return o.gates
}

// Tools exposes the tool registry.
func (o *Orchestrator) Tools() *tools.Registry {
	if o == nil {
		return nil
	}
	return o.registry
}

// Workspace returns the services of owner, building them on first use. An
// empty owner selects the configured default owner.
func (o *Orchestrator) Workspace(owner string) (*Workspace, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		owner = o.cfg.Owner
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if ws, ok := o.workspaces[owner]; ok {
		return ws, nil
	}
	ws, err := o.buildWorkspace(owner)
	if err != nil {
		return nil, err
	}
	o.workspaces[owner] = ws
	return ws, nil
}

func (o *Orchestrator) buildWorkspace(owner string) (*Workspace, error) {
	var (
		repo    artifact.Repository
		catalog *sqlite.Catalog
	)
	if o.catalog != nil {
		catalog = o.catalog.ForOwner(owner)
		repo = catalog
	} else {
		docRepo, err := artifact.NewDocumentRepository(o.store, owner)
		if err != nil {
			return nil, err
		}
		repo = docRepo
	}
	artifacts, err := artifact.NewService(repo, artifact.WithClock(o.now))
	if err != nil {
		return nil, fmt.Errorf("init artifact service: %w", err)
	}
	projects, err := project.NewService(o.store, owner, o.gates, project.WithClock(o.now), project.WithDefaultMode(o.cfg.Mode))
	if err != nil {
		return nil, fmt.Errorf("init project service: %w", err)
	}
	tracker, err := stage.NewTracker(o.gates, artifacts)
	if err != nil {
		return nil, err
	}
	controllerOpts := []stage.ControllerOption{stage.WithClock(o.now)}
	if catalog != nil {
		controllerOpts = append(controllerOpts, stage.WithAudit(catalog))
	}
	controller, err := stage.NewController(tracker, projects, o.gates, controllerOpts...)
	if err != nil {
		return nil, err
	}
	runner, err := tools.NewRunner(tools.RunnerConfig{
		Registry:  o.registry,
		Store:     o.store,
		Owner:     owner,
		Projects:  projects,
		Artifacts: artifacts,
		Gates:     o.gates,
		Now:       o.now,
	})
	if err != nil {
		return nil, err
	}
	common.Logger().Debug("orchestrator: workspace built", "owner", owner)
	return &Workspace{
		Owner:      owner,
		Artifacts:  artifacts,
		Projects:   projects,
		Tracker:    tracker,
		Controller: controller,
		Tools:      runner,
		Catalog:    catalog,
	}, nil
}

// Owners lists the owners with a cached workspace.
func (o *Orchestrator) Owners() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, 0, len(o.workspaces))
	for owner := range o.workspaces {
		out = append(out, owner)
	}
	sort.Strings(out)
	return out
}

// SyncArtifacts copies the artifacts an owner kept in the document store into
// the SQLite catalog. Records already in the catalog are left untouched.
func (o *Orchestrator) SyncArtifacts(ctx context.Context, owner, projectID string) (int, error) {
	if o.catalog == nil {
		return 0, ErrNoCatalog
	}
	owner = strings.TrimSpace(owner)
	if owner == "" {
		owner = o.cfg.Owner
	}
	src, err := artifact.NewDocumentRepository(o.store, owner)
	if err != nil {
		return 0, err
	}
	imported, err := o.catalog.ForOwner(owner).Import(ctx, projectID, src)
	if err != nil {
		return 0, fmt.Errorf("sync artifacts of %s: %w", projectID, err)
	}
	common.Logger().Info("orchestrator: artifacts synced", "owner", owner, "project", projectID, "imported", imported)
	return imported, nil
}

// Close releases any resources associated with the orchestrator.
func (o *Orchestrator) Close() error {
	if o == nil {
		return nil
	}
	var errs []error
	for i := len(o.closers) - 1; i >= 0; i-- {
		if err := o.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	o.closers = nil
	return errors.Join(errs...)
}
