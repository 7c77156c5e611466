// File path: internal/api/tools_handler.go
package api

import (
	"fmt"
	"net/http"

	chi "github.com/go-chi/chi/v5"

	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/tools"
)

func (s *Server) handleRunTool(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	input := map[string]interface{}{}
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &input); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	snap, err := ws.Tools.Run(r.Context(), chi.URLParam(r, "projectID"), chi.URLParam(r, "toolID"), input)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleLastSnapshot(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	toolID := chi.URLParam(r, "toolID")
	if _, known := ws.Tools.Registry().Get(toolID); !known {
		writeDomainError(w, fmt.Errorf("%w: %s", tools.ErrUnknownTool, toolID))
		return
	}
	snap, err := ws.Tools.LastSnapshot(r.Context(), chi.URLParam(r, "projectID"), toolID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if snap == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("no %s snapshot yet", toolID))
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
