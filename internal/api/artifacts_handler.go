// File path: internal/api/artifacts_handler.go
package api

import (
	"fmt"
	"net/http"
	"strings"

	chi "github.com/go-chi/chi/v5"

	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/artifact"
	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/data/orchestrator"
	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/gate"
	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/project"
)

// projectFor loads the path project so artifact routes 404 on unknown ids.
func (s *Server) projectFor(w http.ResponseWriter, r *http.Request) (*orchestrator.Workspace, project.Project, bool) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return nil, project.Project{}, false
	}
	p, err := ws.Projects.Get(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		writeDomainError(w, err)
		return nil, project.Project{}, false
	}
	return ws, p, true
}

func (s *Server) handleListArtifacts(w http.ResponseWriter, r *http.Request) {
	ws, p, ok := s.projectFor(w, r)
	if !ok {
		return
	}
	q := artifact.Query{
		ProjectID:  p.ID,
		Type:       strings.TrimSpace(r.URL.Query().Get("type")),
		Workstream: strings.TrimSpace(r.URL.Query().Get("workstream")),
	}
	if phase := strings.TrimSpace(r.URL.Query().Get("phase")); phase != "" {
		parsed, err := gate.ParsePhase(phase)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		q.PhaseID = string(parsed)
	}
	if status := strings.TrimSpace(r.URL.Query().Get("status")); status != "" {
		parsed, err := artifact.ParseStatus(status)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		q.Status = parsed
	}
	records, err := ws.Artifacts.List(r.Context(), q)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"artifacts": records})
}

func (s *Server) handleSaveArtifact(w http.ResponseWriter, r *http.Request) {
	ws, p, ok := s.projectFor(w, r)
	if !ok {
		return
	}
	var req artifact.SaveInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	req.ProjectID = p.ID
	if strings.TrimSpace(req.PhaseID) == "" {
		req.PhaseID = string(p.FELStage)
	} else {
		parsed, err := gate.ParsePhase(req.PhaseID)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		req.PhaseID = string(parsed)
	}
	saved, err := ws.Artifacts.Save(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (s *Server) handleLatestArtifact(w http.ResponseWriter, r *http.Request) {
	ws, p, ok := s.projectFor(w, r)
	if !ok {
		return
	}
	artifactType := strings.TrimSpace(r.URL.Query().Get("type"))
	if artifactType == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("type query parameter required"))
		return
	}
	phase := p.FELStage
	if value := strings.TrimSpace(r.URL.Query().Get("phase")); value != "" {
		parsed, err := gate.ParsePhase(value)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		phase = parsed
	}
	latest, err := ws.Artifacts.GetLatest(r.Context(), p.ID, artifactType, string(phase))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if latest == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("%w: no %s in %s", artifact.ErrNotFound, artifactType, phase))
		return
	}
	writeJSON(w, http.StatusOK, latest)
}

func (s *Server) handleApproveArtifact(w http.ResponseWriter, r *http.Request) {
	s.changeArtifactStatus(w, r, artifact.StatusApproved)
}

func (s *Server) handleSubmitArtifact(w http.ResponseWriter, r *http.Request) {
	s.changeArtifactStatus(w, r, artifact.StatusPending)
}

func (s *Server) changeArtifactStatus(w http.ResponseWriter, r *http.Request, to artifact.Status) {
	ws, p, ok := s.projectFor(w, r)
	if !ok {
		return
	}
	artifactID := chi.URLParam(r, "artifactID")
	var (
		changed bool
		err     error
	)
	if to == artifact.StatusApproved {
		changed, err = ws.Artifacts.Approve(r.Context(), p.ID, artifactID)
	} else {
		changed, err = ws.Artifacts.Submit(r.Context(), p.ID, artifactID)
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !changed {
		writeError(w, http.StatusNotFound, fmt.Errorf("%w: %s", artifact.ErrNotFound, artifactID))
		return
	}
	current, err := ws.Artifacts.Get(r.Context(), p.ID, artifactID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, current)
}
