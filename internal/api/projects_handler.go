// File path: internal/api/projects_handler.go
package api

import (
	"fmt"
	"net/http"
	"strings"

	chi "github.com/go-chi/chi/v5"

	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/common"
	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/project"
)

type deliverablesRequest struct {
	Items map[string]project.DeliverableStatus `json:"items"`
}

type checklistRequest struct {
	Label string `json:"label"`
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	summaries, err := ws.Projects.List(r.Context())
	if err != nil {
		writeDomainError(w, fmt.Errorf("list projects: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"owner": ws.Owner, "projects": summaries})
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	var req project.CreateInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	p, err := ws.Projects.Create(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	common.Logger().Info("api: project created", "owner", ws.Owner, "project", p.ID)
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	p, err := ws.Projects.Get(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleSetTeam(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	var req project.TeamInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	p, err := ws.Projects.SetTeam(r.Context(), chi.URLParam(r, "projectID"), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleUpdateDeliverables(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	var req deliverablesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	p, err := ws.Projects.UpdateDeliverables(r.Context(), chi.URLParam(r, "projectID"), chi.URLParam(r, "phase"), req.Items)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleChecklist checks (POST) or unchecks (DELETE) one label and returns the
// phase checklist progress.
func (s *Server) handleChecklist(checked bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, ok := s.workspace(w, r)
		if !ok {
			return
		}
		label := strings.TrimSpace(r.URL.Query().Get("label"))
		if label == "" {
			var req checklistRequest
			if err := decodeJSON(r, &req); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			label = req.Label
		}
		phase := chi.URLParam(r, "phase")
		p, err := ws.Projects.SetChecklistItem(r.Context(), chi.URLParam(r, "projectID"), phase, label, checked)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		progress, err := ws.Tracker.ChecklistProgress(p, phase)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, progress)
	}
}
