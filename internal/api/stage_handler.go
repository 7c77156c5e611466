// File path: internal/api/stage_handler.go
package api

import (
	"fmt"
	"net/http"
	"strings"

	chi "github.com/go-chi/chi/v5"

	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/data/orchestrator"
	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/stage"
)

type stageResponse struct {
	ProjectID string          `json:"project_id"`
	Phase     string          `json:"phase"`
	Readiness stage.Readiness `json:"readiness"`
	Checklist stage.Checklist `json:"checklist"`
	Summary   stage.Summary   `json:"summary"`
}

type advanceRequest struct {
	Approver string `json:"approver"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	ws, p, ok := s.projectFor(w, r)
	if !ok {
		return
	}
	summary, err := ws.Tracker.StatusSummary(r.Context(), p, chi.URLParam(r, "phase"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleStage(w http.ResponseWriter, r *http.Request) {
	ws, p, ok := s.projectFor(w, r)
	if !ok {
		return
	}
	readiness, err := ws.Controller.Readiness(r.Context(), p)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	phase := string(readiness.Phase)
	checklist, err := ws.Tracker.ChecklistProgress(p, phase)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	summary, err := ws.Tracker.StatusSummary(r.Context(), p, phase)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stageResponse{
		ProjectID: p.ID,
		Phase:     phase,
		Readiness: readiness,
		Checklist: checklist,
		Summary:   summary,
	})
}

// handleAdvance takes the approver from the body, falling back to the owner
// header so a signed-in approver can advance without a body.
func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	var req advanceRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	approver := strings.TrimSpace(req.Approver)
	if approver == "" {
		approver = ws.Owner
	}
	result, err := ws.Controller.Advance(r.Context(), chi.URLParam(r, "projectID"), approver)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	ws, p, ok := s.projectFor(w, r)
	if !ok {
		return
	}
	catalog := ws.Catalog
	if catalog == nil {
		writeDomainError(w, orchestrator.ErrNoCatalog)
		return
	}
	var actions []string
	if action := strings.TrimSpace(r.URL.Query().Get("action")); action != "" {
		actions = strings.Split(action, ",")
	}
	entries, err := catalog.AuditLog(r.Context(), p.ID, actions...)
	if err != nil {
		writeDomainError(w, fmt.Errorf("audit log: %w", err))
		return
	}
	counts, err := catalog.StatusCounts(r.Context(), p.ID)
	if err != nil {
		writeDomainError(w, fmt.Errorf("status counts: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": entries, "status_counts": counts})
}
