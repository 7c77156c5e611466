// File path: internal/stage/tracker.go
package stage

import (
	"context"
	"errors"
	"fmt"

	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/artifact"
	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/gate"
	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/project"
)

// ArtifactLookup is the read side of the artifact service.
type ArtifactLookup interface {
	GetLatest(ctx context.Context, projectID, artifactType, phaseID string) (*artifact.Artifact, error)
}

const (
	StateDone    = "done"
	StatePending = "pending"
	StateMissing = "missing"

	BadgeGreen  = "green"
	BadgeYellow = "yellow"
	BadgeRed    = "red"
)

// Item is the evaluation of one required artifact type.
type Item struct {
	Workstream string          `json:"workstream"`
	Type       string          `json:"type"`
	State      string          `json:"state"`
	Badge      string          `json:"badge"`
	Status     artifact.Status `json:"status,omitempty"`
	ArtifactID string          `json:"artifact_id,omitempty"`
}

// Summary is the gate status of one project phase.
type Summary struct {
	ProjectID string     `json:"project_id"`
	Phase     gate.Phase `json:"phase"`
	PhaseName string     `json:"phase_name"`
	Lookup    string     `json:"lookup"`
	Percent   int        `json:"percent"`
	Done      []string   `json:"done"`
	Pending   []string   `json:"pending"`
	Missing   []string   `json:"missing"`
	Items     []Item     `json:"items"`
}

// Checklist is the completion state of a phase checklist.
type Checklist struct {
	Phase   gate.Phase `json:"phase"`
	Labels  []string   `json:"labels"`
	Checked []string   `json:"checked"`
	Percent int        `json:"percent"`
}

// Tracker evaluates required artifacts against their latest records.
type Tracker struct {
	gates     *gate.Resolver
	artifacts ArtifactLookup
}

func NewTracker(gates *gate.Resolver, artifacts ArtifactLookup) (*Tracker, error) {
	if gates == nil {
		return nil, errors.New("gate resolver required")
	}
	if artifacts == nil {
		return nil, errors.New("artifact lookup required")
	}
	return &Tracker{gates: gates, artifacts: artifacts}, nil
}

// StatusSummary classifies every required type of the phase as done, pending
// or missing. Percent is floor(100*done/max(1,total)); a phase with no
// requirements reports 100.
func (t *Tracker) StatusSummary(ctx context.Context, p project.Project, phaseCode string) (Summary, error) {
	phase, err := gate.ParsePhase(phaseCode)
	if err != nil {
		return Summary{}, fmt.Errorf("%w: %v", project.ErrInvalidInput, err)
	}
	reqs, lookup := t.gates.Lookup(string(phase), string(p.Industry))
	summary := Summary{
		ProjectID: p.ID,
		Phase:     phase,
		PhaseName: t.gates.PhaseName(string(phase), string(p.Industry)),
		Lookup:    lookup.String(),
		Done:      []string{},
		Pending:   []string{},
		Missing:   []string{},
		Items:     make([]Item, 0, len(reqs)),
	}
	for _, req := range reqs {
		latest, err := t.artifacts.GetLatest(ctx, p.ID, req.Type, string(phase))
		if err != nil {
			return Summary{}, fmt.Errorf("latest %s: %w", req.Type, err)
		}
		item := Item{Workstream: req.Workstream, Type: req.Type}
		switch {
		case latest == nil:
			item.State, item.Badge = StateMissing, BadgeRed
			summary.Missing = append(summary.Missing, req.Type)
		case latest.Status.Approved():
			item.State, item.Badge = StateDone, BadgeGreen
			summary.Done = append(summary.Done, req.Type)
		default:
			item.State, item.Badge = StatePending, BadgeYellow
			summary.Pending = append(summary.Pending, req.Type)
		}
		if latest != nil {
			item.Status = latest.Status
			item.ArtifactID = latest.ID
		}
		summary.Items = append(summary.Items, item)
	}
	summary.Percent = percent(len(summary.Done), len(reqs))
	return summary, nil
}

// ChecklistProgress reports how many of the phase's offered labels are
// checked. Labels checked outside the offered set are listed but not counted.
func (t *Tracker) ChecklistProgress(p project.Project, phaseCode string) (Checklist, error) {
	phase, err := gate.ParsePhase(phaseCode)
	if err != nil {
		return Checklist{}, fmt.Errorf("%w: %v", project.ErrInvalidInput, err)
	}
	labels := t.gates.Checklist(string(phase), string(p.Industry))
	checked := p.Checked(phase)
	set := make(map[string]struct{}, len(checked))
	for _, label := range checked {
		set[label] = struct{}{}
	}
	hits := 0
	for _, label := range labels {
		if _, ok := set[label]; ok {
			hits++
		}
	}
	return Checklist{Phase: phase, Labels: labels, Checked: checked, Percent: percent(hits, len(labels))}, nil
}

func percent(done, total int) int {
	if total == 0 {
		return 100
	}
	return 100 * done / total
}
