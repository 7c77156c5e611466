// File path: internal/api/server.go
package api

import (
	"encoding/json"
	"errors"
	"expvar"
	"fmt"
	"io"
	"net/http"
	"strings"

	chi "github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/artifact"
	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/common"
	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/common/telemetry"
	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/data/orchestrator"
	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/docstore"
	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/project"
	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/stage"
	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/tools"
)

// OwnerHeader carries the identity whose documents a request works on.
const OwnerHeader = "X-DecisionMate-Owner"

const maxBodyBytes = 1 << 20

type Server struct {
	router       chi.Router
	orchestrator *orchestrator.Orchestrator
	cfg          Config
}

// Config controls request handling.
type Config struct {
	// DefaultOwner is used when a request carries no owner header.
	DefaultOwner string
	// DocumentAPIKey, when set, is required as a bearer token on the
	// /v1/documents routes.
	DocumentAPIKey string
}

// DefaultConfig returns the standard configuration used when no overrides are
// provided.
func DefaultConfig() Config {
	return Config{DefaultOwner: "guest"}
}

// Merge overlays non-empty fields from the override onto the base
// configuration.
func (c Config) Merge(override Config) Config {
	result := c
	if strings.TrimSpace(override.DefaultOwner) != "" {
		result.DefaultOwner = strings.TrimSpace(override.DefaultOwner)
	}
	if strings.TrimSpace(override.DocumentAPIKey) != "" {
		result.DocumentAPIKey = strings.TrimSpace(override.DocumentAPIKey)
	}
	return result
}

func NewServer(orch *orchestrator.Orchestrator, cfg *Config) (*Server, error) {
	logger := common.Logger()
	if orch == nil {
		return nil, fmt.Errorf("orchestrator required")
	}
	configuration := DefaultConfig()
	if cfg != nil {
		configuration = configuration.Merge(*cfg)
	}
	srv := &Server{
		router:       chi.NewRouter(),
		orchestrator: orch,
		cfg:          configuration,
	}
	srv.routes()
	logger.Info("api: server ready", "default_owner", configuration.DefaultOwner, "document_auth", configuration.DocumentAPIKey != "")
	return srv, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	logger := common.Logger()
	logger.Info("api: configuring routes")
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(traceRequests)

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	s.router.Method(http.MethodGet, "/debug/vars", expvar.Handler())
	s.router.Get("/v1/logs", s.handleLogs)

	s.router.Get("/v1/industries", s.handleIndustries)
	s.router.Get("/v1/industries/{industry}/phases/{phase}/requirements", s.handleRequirements)
	s.router.Get("/v1/tools", s.handleTools)

	s.router.Route("/v1/projects", func(r chi.Router) {
		r.Get("/", s.handleListProjects)
		r.Post("/", s.handleCreateProject)
		r.Route("/{projectID}", func(r chi.Router) {
			r.Get("/", s.handleGetProject)
			r.Put("/team", s.handleSetTeam)
			r.Put("/phases/{phase}/deliverables", s.handleUpdateDeliverables)
			r.Post("/phases/{phase}/checklist", s.handleChecklist(true))
			r.Delete("/phases/{phase}/checklist", s.handleChecklist(false))
			r.Get("/phases/{phase}/summary", s.handleSummary)

			r.Get("/artifacts", s.handleListArtifacts)
			r.Post("/artifacts", s.handleSaveArtifact)
			r.Get("/artifacts/latest", s.handleLatestArtifact)
			r.Post("/artifacts/{artifactID}/approve", s.handleApproveArtifact)
			r.Post("/artifacts/{artifactID}/submit", s.handleSubmitArtifact)

			r.Get("/stage", s.handleStage)
			r.Post("/stage/advance", s.handleAdvance)
			r.Get("/audit", s.handleAudit)

			r.Post("/tools/{toolID}", s.handleRunTool)
			r.Get("/tools/{toolID}", s.handleLastSnapshot)
		})
	})

	s.router.Get("/v1/documents/{owner}/{docKey}", s.handleGetDocument)
	s.router.Put("/v1/documents/{owner}/{docKey}", s.handlePutDocument)
}

// traceRequests wraps each request in a telemetry span and counts it by route.
func traceRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		end := telemetry.StartSpan("http " + r.Method)
		next.ServeHTTP(ww, r)
		route := ""
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		telemetry.RecordRequest(r.Method, route, status)
		end("path", r.URL.Path, "route", route, "status", status, "request_id", middleware.GetReqID(r.Context()))
	})
}

// workspace resolves the services of the request owner.
func (s *Server) workspace(w http.ResponseWriter, r *http.Request) (*orchestrator.Workspace, bool) {
	owner := strings.TrimSpace(r.Header.Get(OwnerHeader))
	if owner == "" {
		owner = s.cfg.DefaultOwner
	}
	ws, err := s.orchestrator.Workspace(owner)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("open workspace: %w", err))
		return nil, false
	}
	return ws, true
}

func decodeJSON(r *http.Request, out interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("request body required")
		}
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, stage.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, stage.ErrGateNotReady), errors.Is(err, artifact.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, project.ErrNotFound), errors.Is(err, artifact.ErrNotFound), errors.Is(err, tools.ErrUnknownTool):
		return http.StatusNotFound
	case errors.Is(err, project.ErrInvalidInput),
		errors.Is(err, artifact.ErrInvalidStatus),
		errors.Is(err, artifact.ErrMissingKey),
		errors.Is(err, tools.ErrInvalidInput),
		errors.Is(err, tools.ErrToolDisabled),
		errors.Is(err, docstore.ErrInvalidKey):
		return http.StatusBadRequest
	case errors.Is(err, docstore.ErrRemoteUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, orchestrator.ErrNoCatalog):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	logger := common.Logger()
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "error", err)
	} else {
		logger.Warn("request failed", "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// writeDomainError picks the status from the error. A refused advance carries
// its readiness report.
func writeDomainError(w http.ResponseWriter, err error) {
	var notReady *stage.NotReadyError
	if errors.As(err, &notReady) {
		common.Logger().Warn("request failed", "status", http.StatusConflict, "error", err)
		writeJSON(w, http.StatusConflict, map[string]interface{}{
			"error":     err.Error(),
			"readiness": notReady.Readiness,
		})
		return
	}
	writeError(w, statusFor(err), err)
}
