// File path: internal/tools/runner.go
package tools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/common"
	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/common/telemetry"
	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/docstore"
	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/gate"
	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/project"
	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/session"
)

// ProjectGetter loads projects for the runner.
type ProjectGetter interface {
	Get(ctx context.Context, id string) (project.Project, error)
}

// Runner executes tools for one owner: it loads the session state, runs the
// tool, then saves the state and the snapshot.
type Runner struct {
	registry  *Registry
	store     docstore.Store
	owner     string
	projects  ProjectGetter
	artifacts Artifacts
	gates     *gate.Resolver
	now       func() time.Time
}

// RunnerConfig wires a Runner.
type RunnerConfig struct {
	Registry  *Registry
	Store     docstore.Store
	Owner     string
	Projects  ProjectGetter
	Artifacts Artifacts
	Gates     *gate.Resolver
	Now       func() time.Time
}

func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if cfg.Store == nil || cfg.Projects == nil || cfg.Artifacts == nil || cfg.Gates == nil {
		return nil, errors.New("tools: runner needs store, projects, artifacts and gates")
	}
	if cfg.Owner == "" {
		return nil, errors.New("tools: owner required")
	}
	if cfg.Registry == nil {
		cfg.Registry = Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Runner{
		registry:  cfg.Registry,
		store:     cfg.Store,
		owner:     cfg.Owner,
		projects:  cfg.Projects,
		artifacts: cfg.Artifacts,
		gates:     cfg.Gates,
		now:       cfg.Now,
	}, nil
}

func (r *Runner) Registry() *Registry { return r.registry }

// SnapshotKey is where the latest snapshot of a tool is stored.
func SnapshotKey(owner string, p project.Project, toolID string) docstore.Key {
	return docstore.Key{Owner: owner, Namespace: p.Namespace(), Project: p.ID, Name: toolID}
}

// Run executes toolID against a project.
func (r *Runner) Run(ctx context.Context, projectID, toolID string, input map[string]interface{}) (Snapshot, error) {
	tool, ok := r.registry.Get(toolID)
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrUnknownTool, toolID)
	}
	p, err := r.projects.Get(ctx, projectID)
	if err != nil {
		return Snapshot{}, err
	}
	if !r.gates.ToolEnabled(string(p.Industry), tool.ID()) {
		return Snapshot{}, fmt.Errorf("%w: %s for %s", ErrToolDisabled, tool.ID(), p.Industry)
	}
	state, err := session.Load(ctx, r.store, r.owner, p.Namespace(), p.ID)
	if err != nil {
		return Snapshot{}, err
	}
	now := r.now().UTC()
	tc := &Context{
		Context:   ctx,
		Owner:     r.owner,
		Project:   p,
		Session:   state,
		Input:     input,
		Artifacts: r.artifacts,
		Gates:     r.gates,
		Now:       now,
	}
	snap, err := tool.Execute(tc)
	if err != nil {
		return Snapshot{}, err
	}
	if _, err := state.Save(ctx, r.store, now); err != nil {
		return Snapshot{}, err
	}
	doc, err := docstore.Encode(snap)
	if err != nil {
		return Snapshot{}, err
	}
	res, err := r.store.Save(ctx, SnapshotKey(r.owner, p, tool.ID()), doc)
	if err != nil {
		return Snapshot{}, fmt.Errorf("save snapshot: %w", err)
	}
	if res.FellBack {
		snap.Warnings = append(snap.Warnings, "saved to local storage; remote store unavailable")
	}
	telemetry.RecordToolRun(tool.ID())
	common.Logger().Info("tools: executed", "tool", tool.ID(), "project", p.ID, "warnings", len(snap.Warnings))
	return snap, nil
}

// LastSnapshot returns the stored snapshot of a tool, or nil.
func (r *Runner) LastSnapshot(ctx context.Context, projectID, toolID string) (*Snapshot, error) {
	p, err := r.projects.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	doc, err := r.store.Load(ctx, SnapshotKey(r.owner, p, toolID))
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}
	var snap Snapshot
	if err := docstore.Decode(doc, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}
