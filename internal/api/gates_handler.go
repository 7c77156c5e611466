// File path: internal/api/gates_handler.go
package api

import (
	"fmt"
	"net/http"
	"strings"

	chi "github.com/go-chi/chi/v5"

	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/common"
	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/gate"
)

type industrySummary struct {
	ID      gate.Industry `json:"id"`
	Name    string        `json:"name"`
	Aliases []string      `json:"aliases,omitempty"`
	Tools   []string      `json:"tools"`
}

type requirementsResponse struct {
	Industry     string             `json:"industry"`
	Phase        string             `json:"phase"`
	PhaseName    string             `json:"phase_name,omitempty"`
	Lookup       string             `json:"lookup"`
	Requirements []gate.Requirement `json:"requirements"`
	Deliverables []string           `json:"deliverables"`
	Checklist    []string           `json:"checklist"`
}

func (s *Server) handleIndustries(w http.ResponseWriter, r *http.Request) {
	configs := s.orchestrator.Gates().Industries()
	out := make([]industrySummary, 0, len(configs))
	for _, cfg := range configs {
		toolIDs := cfg.Tools
		if toolIDs == nil {
			toolIDs = []string{}
		}
		out = append(out, industrySummary{ID: cfg.ID, Name: cfg.Name, Aliases: cfg.Aliases, Tools: toolIDs})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"industries": out})
}

// handleRequirements answers unknown pairs with 200 and an empty list; the
// lookup field tells which part was not recognised.
func (s *Server) handleRequirements(w http.ResponseWriter, r *http.Request) {
	gates := s.orchestrator.Gates()
	industry := chi.URLParam(r, "industry")
	phase := chi.URLParam(r, "phase")
	reqs, status := gates.Lookup(phase, industry)
	resp := requirementsResponse{
		Industry:     industry,
		Phase:        phase,
		Lookup:       status.String(),
		Requirements: reqs,
		Deliverables: []string{},
		Checklist:    []string{},
	}
	if status == gate.Found {
		if id, ok := gates.ParseIndustry(industry); ok {
			resp.Industry = string(id)
		}
		if parsed, err := gate.ParsePhase(phase); err == nil {
			resp.Phase = string(parsed)
		}
		resp.PhaseName = gates.PhaseName(phase, industry)
		resp.Deliverables = gates.Deliverables(phase, industry)
		resp.Checklist = gates.Checklist(phase, industry)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	ids := s.orchestrator.Tools().IDs()
	industry := strings.TrimSpace(r.URL.Query().Get("industry"))
	if industry == "" {
		writeJSON(w, http.StatusOK, map[string]interface{}{"tools": ids})
		return
	}
	gates := s.orchestrator.Gates()
	if _, ok := gates.ParseIndustry(industry); !ok {
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown industry %q", industry))
		return
	}
	enabled := make([]string, 0, len(ids))
	for _, id := range ids {
		if gates.ToolEnabled(industry, id) {
			enabled = append(enabled, id)
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tools": enabled, "industry": industry})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	level := strings.TrimSpace(r.URL.Query().Get("level"))
	component := strings.TrimSpace(r.URL.Query().Get("component"))
	entries := common.LogEntriesAtLeast(level)
	if component != "" {
		filtered := make([]common.LogEntry, 0, len(entries))
		for _, entry := range entries {
			if strings.EqualFold(entry.Component, component) {
				filtered = append(filtered, entry)
			}
		}
		entries = filtered
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"logs": entries})
}
