// File path: internal/stage/controller.go
package stage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/common"
	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/common/telemetry"
	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/gate"
	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/project"
)

var (
	ErrUnauthorized = errors.New("stage: approver not authorised")
	ErrGateNotReady = errors.New("stage: gate not ready")
)

// ProjectStore loads and atomically updates projects.
type ProjectStore interface {
	Get(ctx context.Context, id string) (project.Project, error)
	Update(ctx context.Context, id string, fn func(*project.Project) error) (project.Project, error)
}

// AuditRecorder receives stage transitions. The SQLite catalog implements it.
type AuditRecorder interface {
	RecordAudit(ctx context.Context, projectID, action, actor, detail string) error
}

// Readiness lists what blocks the current phase gate.
type Readiness struct {
	Ready               bool       `json:"ready"`
	Phase               gate.Phase `json:"phase"`
	Percent             int        `json:"percent"`
	MissingArtifacts    []string   `json:"missing_artifacts"`
	PendingArtifacts    []string   `json:"pending_artifacts"`
	PendingDeliverables []string   `json:"pending_deliverables"`
	NeedsReviewer       bool       `json:"needs_reviewer"`
	NeedsApprover       bool       `json:"needs_approver"`
	Reasons             []string   `json:"reasons"`
}

// NotReadyError carries the blocking reasons of a refused advance.
type NotReadyError struct {
	Readiness Readiness
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("%s: %s", ErrGateNotReady, strings.Join(e.Readiness.Reasons, "; "))
}

func (e *NotReadyError) Unwrap() error { return ErrGateNotReady }

// Result describes the outcome of Advance.
type Result struct {
	ProjectID string          `json:"project_id"`
	From      gate.Phase      `json:"from"`
	To        gate.Phase      `json:"to"`
	Terminal  bool            `json:"terminal"`
	Project   project.Project `json:"project"`
}

// Controller moves projects forward through the FEL sequence.
type Controller struct {
	tracker  *Tracker
	projects ProjectStore
	gates    *gate.Resolver
	audit    AuditRecorder
	now      func() time.Time
}

// ControllerOption customizes a Controller.
type ControllerOption func(*Controller)

func WithAudit(recorder AuditRecorder) ControllerOption {
	return func(c *Controller) {
		c.audit = recorder
	}
}

func WithClock(clock func() time.Time) ControllerOption {
	return func(c *Controller) {
		c.now = clock
	}
}

func NewController(tracker *Tracker, projects ProjectStore, gates *gate.Resolver, opts ...ControllerOption) (*Controller, error) {
	if tracker == nil {
		return nil, errors.New("tracker required")
	}
	if projects == nil {
		return nil, errors.New("project store required")
	}
	if gates == nil {
		return nil, errors.New("gate resolver required")
	}
	c := &Controller{tracker: tracker, projects: projects, gates: gates, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Readiness evaluates the four gate conditions for the current phase.
func (c *Controller) Readiness(ctx context.Context, p project.Project) (Readiness, error) {
	phase := p.FELStage
	if !phase.Valid() {
		phase = gate.PhaseFEL1
	}
	summary, err := c.tracker.StatusSummary(ctx, p, string(phase))
	if err != nil {
		return Readiness{}, err
	}
	r := Readiness{
		Phase:               phase,
		Percent:             summary.Percent,
		MissingArtifacts:    summary.Missing,
		PendingArtifacts:    summary.Pending,
		PendingDeliverables: p.PendingDeliverables(phase),
		NeedsReviewer:       len(p.Reviewers) == 0,
		NeedsApprover:       len(p.Approvers) == 0,
		Reasons:             []string{},
	}
	if r.PendingDeliverables == nil {
		r.PendingDeliverables = []string{}
	}
	if len(r.MissingArtifacts) > 0 {
		r.Reasons = append(r.Reasons, "missing artifacts: "+strings.Join(r.MissingArtifacts, ", "))
	}
	if len(r.PendingArtifacts) > 0 {
		r.Reasons = append(r.Reasons, "artifacts not approved: "+strings.Join(r.PendingArtifacts, ", "))
	}
	if len(r.PendingDeliverables) > 0 {
		r.Reasons = append(r.Reasons, "deliverables not done: "+strings.Join(r.PendingDeliverables, ", "))
	}
	if r.NeedsReviewer {
		r.Reasons = append(r.Reasons, "no reviewer assigned")
	}
	if r.NeedsApprover {
		r.Reasons = append(r.Reasons, "no approver assigned")
	}
	r.Ready = len(r.Reasons) == 0
	return r, nil
}

// CanAdvance is true when every required artifact is approved, every
// deliverable is done, and at least one reviewer and one approver exist.
func (c *Controller) CanAdvance(ctx context.Context, p project.Project) (bool, error) {
	r, err := c.Readiness(ctx, p)
	if err != nil {
		return false, err
	}
	return r.Ready, nil
}

// Advance moves the project one phase forward on behalf of approverEmail.
// At the last phase it succeeds without changing anything.
func (c *Controller) Advance(ctx context.Context, projectID, approverEmail string) (Result, error) {
	logger := common.Logger()
	p, err := c.projects.Get(ctx, projectID)
	if err != nil {
		return Result{}, err
	}
	if !p.IsApprover(approverEmail) {
		telemetry.RecordStageRejection("unauthorized")
		logger.Warn("stage: advance refused", "project", p.ID, "approver", approverEmail, "reason", "unauthorized")
		return Result{}, fmt.Errorf("%w: %s", ErrUnauthorized, strings.TrimSpace(approverEmail))
	}
	from := p.FELStage
	next, ok := from.Next()
	if !ok {
		return Result{ProjectID: p.ID, From: from, To: from, Terminal: true, Project: p}, nil
	}
	readiness, err := c.Readiness(ctx, p)
	if err != nil {
		return Result{}, err
	}
	if !readiness.Ready {
		telemetry.RecordStageRejection("not_ready")
		logger.Info("stage: gate not ready", "project", p.ID, "phase", from, "reasons", strings.Join(readiness.Reasons, "; "))
		return Result{}, &NotReadyError{Readiness: readiness}
	}
	at := c.now().UTC()
	updated, err := c.projects.Update(ctx, p.ID, func(current *project.Project) error {
		if current.FELStage != from {
			return fmt.Errorf("stage: project %s moved from %s to %s concurrently", current.ID, from, current.FELStage)
		}
		current.FELStage = next
		current.SeedPhase(next, c.gates.Deliverables(string(next), string(current.Industry)))
		current.History = append(current.History, project.Transition{
			From:     from,
			To:       next,
			Approver: strings.TrimSpace(approverEmail),
			At:       at,
		})
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	telemetry.RecordStageAdvance(string(next))
	logger.Info("stage: advanced", "project", p.ID, "from", from, "to", next, "approver", approverEmail)
	if c.audit != nil {
		if err := c.audit.RecordAudit(ctx, p.ID, "stage_advanced", strings.TrimSpace(approverEmail), fmt.Sprintf("%s -> %s", from, next)); err != nil {
			logger.Warn("stage: audit failed", "project", p.ID, "error", err)
		}
	}
	return Result{ProjectID: p.ID, From: from, To: next, Project: updated}, nil
}
