// File path: internal/stage/stage_test.go
package stage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/artifact"
	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/docstore"
	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/gate"
	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/project"
)

type auditCall struct {
	projectID, action, actor, detail string
}

type recordingAudit struct {
	mu    sync.Mutex
	calls []auditCall
}

func (r *recordingAudit) RecordAudit(ctx context.Context, projectID, action, actor, detail string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, auditCall{projectID, action, actor, detail})
	return nil
}

type fixture struct {
	artifacts  *artifact.Service
	projects   *project.Service
	tracker    *Tracker
	controller *Controller
	audit      *recordingAudit
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := docstore.NewMemoryStore()
	gates := gate.MustDefault()
	repo, err := artifact.NewDocumentRepository(store, "guest")
	require.NoError(t, err)
	artifacts, err := artifact.NewService(repo)
	require.NoError(t, err)
	projects, err := project.NewService(store, "guest", gates)
	require.NoError(t, err)
	tracker, err := NewTracker(gates, artifacts)
	require.NoError(t, err)
	audit := &recordingAudit{}
	controller, err := NewController(tracker, projects, gates,
		WithAudit(audit),
		WithClock(func() time.Time { return time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC) }))
	require.NoError(t, err)
	return &fixture{artifacts: artifacts, projects: projects, tracker: tracker, controller: controller, audit: audit}
}

// ready creates an IT project whose FEL1 gate is fully satisfied.
func (f *fixture) ready(t *testing.T, ctx context.Context) project.Project {
	t.Helper()
	p, err := f.projects.Create(ctx, project.CreateInput{
		Name:      "ERP Rollout",
		Industry:  "it",
		Reviewers: []string{"rev@example.com"},
		Approvers: []string{"Boss@Example.com"},
	})
	require.NoError(t, err)
	saved, err := f.artifacts.Save(ctx, artifact.SaveInput{ProjectID: p.ID, PhaseID: "FEL1", Workstream: "Business", Type: "it_business_case"})
	require.NoError(t, err)
	ok, err := f.artifacts.Approve(ctx, p.ID, saved.ID)
	require.NoError(t, err)
	require.True(t, ok)
	done := map[string]project.DeliverableStatus{}
	for label := range p.PhaseDeliverables(gate.PhaseFEL1) {
		done[label] = project.DeliverableDone
	}
	p, err = f.projects.UpdateDeliverables(ctx, p.ID, "FEL1", done)
	require.NoError(t, err)
	return p
}

func TestStatusSummaryClassifiesRequirements(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, err := f.projects.Create(ctx, project.CreateInput{Name: "Portal", Industry: "it"})
	require.NoError(t, err)

	design, err := f.artifacts.Save(ctx, artifact.SaveInput{ProjectID: p.ID, PhaseID: "FEL3", Type: "it_detailed_design"})
	require.NoError(t, err)
	_, err = f.artifacts.Approve(ctx, p.ID, design.ID)
	require.NoError(t, err)
	_, err = f.artifacts.Save(ctx, artifact.SaveInput{ProjectID: p.ID, PhaseID: "FEL3", Type: "it_schedule", Status: artifact.StatusInProgress})
	require.NoError(t, err)

	summary, err := f.tracker.StatusSummary(ctx, p, "fel3")
	require.NoError(t, err)
	require.Equal(t, gate.PhaseFEL3, summary.Phase)
	require.Equal(t, "Detailed Design", summary.PhaseName)
	require.Equal(t, []string{"it_detailed_design"}, summary.Done)
	require.Equal(t, []string{"it_schedule"}, summary.Pending)
	require.Equal(t, []string{"it_cost_model"}, summary.Missing)
	require.Equal(t, 33, summary.Percent)
	require.Len(t, summary.Items, 3)
	require.Equal(t, BadgeGreen, summary.Items[0].Badge)
	require.Equal(t, BadgeYellow, summary.Items[1].Badge)
	require.Equal(t, BadgeRed, summary.Items[2].Badge)
}

func TestStatusSummaryZeroRequirementsIsComplete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, err := f.projects.Create(ctx, project.CreateInput{Name: "Portal", Industry: "it"})
	require.NoError(t, err)

	summary, err := f.tracker.StatusSummary(ctx, p, "FEL4")
	require.NoError(t, err)
	require.Equal(t, 100, summary.Percent)
	require.Empty(t, summary.Done)
	require.Empty(t, summary.Pending)
	require.Empty(t, summary.Missing)
	require.Equal(t, "found", summary.Lookup)
}

func TestChecklistProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, err := f.projects.Create(ctx, project.CreateInput{Name: "Portal", Industry: "it"})
	require.NoError(t, err)
	p, err = f.projects.SetChecklistItem(ctx, p.ID, "FEL1", "Sponsor identified", true)
	require.NoError(t, err)
	p, err = f.projects.SetChecklistItem(ctx, p.ID, "FEL1", "Coffee ordered", true)
	require.NoError(t, err)

	progress, err := f.tracker.ChecklistProgress(p, "FEL1")
	require.NoError(t, err)
	require.Equal(t, 33, progress.Percent)
	require.Equal(t, []string{"Coffee ordered", "Sponsor identified"}, progress.Checked)
}

func TestCanAdvanceRequiresApprovers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.ready(t, ctx)

	ok, err := f.controller.CanAdvance(ctx, p)
	require.NoError(t, err)
	require.True(t, ok)

	p, err = f.projects.SetTeam(ctx, p.ID, project.TeamInput{Approvers: []string{}})
	require.NoError(t, err)
	ok, err = f.controller.CanAdvance(ctx, p)
	require.NoError(t, err)
	require.False(t, ok)

	readiness, err := f.controller.Readiness(ctx, p)
	require.NoError(t, err)
	require.True(t, readiness.NeedsApprover)
	require.Contains(t, readiness.Reasons, "no approver assigned")
}

func TestCanAdvanceRequiresDoneDeliverables(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.ready(t, ctx)
	p, err := f.projects.UpdateDeliverables(ctx, p.ID, "FEL1", map[string]project.DeliverableStatus{"Stakeholder Map": project.DeliverableInProgress})
	require.NoError(t, err)

	readiness, err := f.controller.Readiness(ctx, p)
	require.NoError(t, err)
	require.False(t, readiness.Ready)
	require.Equal(t, []string{"Stakeholder Map"}, readiness.PendingDeliverables)
}

func TestAdvanceUnauthorizedLeavesStage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.ready(t, ctx)

	_, err := f.controller.Advance(ctx, p.ID, "intruder@example.com")
	require.ErrorIs(t, err, ErrUnauthorized)

	stored, err := f.projects.Get(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, gate.PhaseFEL1, stored.FELStage)
	require.Empty(t, stored.History)
	require.Empty(t, f.audit.calls)
}

func TestAdvanceNotReadyReportsReasons(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, err := f.projects.Create(ctx, project.CreateInput{Name: "Portal", Industry: "it", Approvers: []string{"boss@example.com"}})
	require.NoError(t, err)

	_, err = f.controller.Advance(ctx, p.ID, "boss@example.com")
	require.ErrorIs(t, err, ErrGateNotReady)
	var notReady *NotReadyError
	require.True(t, errors.As(err, &notReady))
	require.Equal(t, []string{"it_business_case"}, notReady.Readiness.MissingArtifacts)
	require.True(t, notReady.Readiness.NeedsReviewer)
}

func TestAdvanceMovesOnePhaseAndSeedsNext(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.ready(t, ctx)

	result, err := f.controller.Advance(ctx, p.ID, " boss@example.com ")
	require.NoError(t, err)
	require.False(t, result.Terminal)
	require.Equal(t, gate.PhaseFEL1, result.From)
	require.Equal(t, gate.PhaseFEL2, result.To)

	stored, err := f.projects.Get(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, gate.PhaseFEL2, stored.FELStage)
	require.Len(t, stored.History, 1)
	require.Equal(t, "boss@example.com", stored.History[0].Approver)
	require.Equal(t, project.DeliverableNotStarted, stored.PhaseDeliverables(gate.PhaseFEL2)["Architecture Blueprint"])
	require.Equal(t, []auditCall{{p.ID, "stage_advanced", "boss@example.com", "FEL1 -> FEL2"}}, f.audit.calls)

	_, err = f.controller.Advance(ctx, p.ID, "boss@example.com")
	require.ErrorIs(t, err, ErrGateNotReady)
}

func TestAdvanceAtFEL4IsTerminalNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.ready(t, ctx)
	p, err := f.projects.Update(ctx, p.ID, func(current *project.Project) error {
		current.FELStage = gate.PhaseFEL4
		return nil
	})
	require.NoError(t, err)

	result, err := f.controller.Advance(ctx, p.ID, "boss@example.com")
	require.NoError(t, err)
	require.True(t, result.Terminal)
	require.Equal(t, gate.PhaseFEL4, result.To)

	stored, err := f.projects.Get(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, gate.PhaseFEL4, stored.FELStage)
	require.Empty(t, stored.History)
}
