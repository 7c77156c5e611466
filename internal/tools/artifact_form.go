// File path: internal/tools/artifact_form.go
package tools

import (
	"fmt"
	"strings"

	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/artifact"
	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/gate"
)

// ArtifactForm saves a free-form artifact once its upstream artifacts are
// approved. Missing upstream approvals produce warnings and nothing is saved.
type ArtifactForm struct{}

type artifactFormInput struct {
	Phase      string                 `json:"phase"`
	Type       string                 `json:"type"`
	Workstream string                 `json:"workstream"`
	Status     string                 `json:"status"`
	Data       map[string]interface{} `json:"data"`
}

func (ArtifactForm) ID() string { return "artifact_form" }

func (t ArtifactForm) Execute(c *Context) (Snapshot, error) {
	snap := newSnapshot(t.ID(), c)
	var in artifactFormInput
	if err := c.Decode(&in); err != nil {
		return Snapshot{}, err
	}
	in.Type = strings.TrimSpace(in.Type)
	if in.Type == "" {
		return Snapshot{}, fmt.Errorf("%w: type required", ErrInvalidInput)
	}
	phase := c.Project.FELStage
	if strings.TrimSpace(in.Phase) != "" {
		parsed, err := gate.ParsePhase(in.Phase)
		if err != nil {
			return Snapshot{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		phase = parsed
	}
	status, err := artifact.ParseStatus(in.Status)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	workstream := strings.TrimSpace(in.Workstream)
	if workstream == "" {
		workstream = workstreamFor(c.Gates, string(phase), string(c.Project.Industry), in.Type)
	}
	snap.Data["phase"] = string(phase)
	snap.Data["type"] = in.Type
	snap.Data["workstream"] = workstream

	saved, ok, err := saveWithUpstream(c, &snap, artifact.SaveInput{
		ProjectID:  c.Project.ID,
		PhaseID:    string(phase),
		Workstream: workstream,
		Type:       in.Type,
		Data:       in.Data,
		Status:     status,
	})
	if err != nil {
		return Snapshot{}, err
	}
	snap.Data["saved"] = ok
	if ok {
		snap.ArtifactID = saved.ID
		snap.Data["status"] = string(saved.Status)
	}
	return snap, nil
}

// saveWithUpstream checks the upstream approvals of in.Type and saves the
// artifact only when all are approved.
func saveWithUpstream(c *Context, snap *Snapshot, in artifact.SaveInput) (artifact.Artifact, bool, error) {
	var sources []string
	missing := false
	for _, dep := range c.Gates.Upstream(string(c.Project.Industry), in.Type) {
		ok, err := c.Artifacts.HasApproved(c, c.Project.ID, dep.Type, string(dep.Phase))
		if err != nil {
			return artifact.Artifact{}, false, err
		}
		if !ok {
			snap.warn("upstream %s (%s) is not approved", dep.Type, dep.Phase)
			missing = true
			continue
		}
		sources = append(sources, dep.Type)
	}
	if missing {
		return artifact.Artifact{}, false, nil
	}
	in.Sources = sources
	saved, err := c.Artifacts.Save(c, in)
	if err != nil {
		return artifact.Artifact{}, false, err
	}
	c.Session.AddArtifact(saved.ID)
	return saved, true, nil
}

func workstreamFor(gates *gate.Resolver, phase, industry, artifactType string) string {
	for _, req := range gates.RequiredArtifacts(phase, industry) {
		if req.Type == artifactType {
			return req.Workstream
		}
	}
	return "General"
}
