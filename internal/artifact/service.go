// File path: internal/artifact/service.go
package artifact

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/common"
	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/common/telemetry"
	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/docstore"
)

// SaveInput describes a new artifact version. Status defaults to Draft.
type SaveInput struct {
	ProjectID  string                 `json:"project_id"`
	PhaseID    string                 `json:"phase_id"`
	Workstream string                 `json:"workstream"`
	Type       string                 `json:"type"`
	Data       map[string]interface{} `json:"data"`
	Status     Status                 `json:"status,omitempty"`
	Sources    []string               `json:"sources,omitempty"`
}

// Service is the artifact API consumed by tools, the gate tracker and the HTTP
// layer. Every Save appends a new version; status changes mutate in place.
type Service struct {
	repo  Repository
	now   func() time.Time
	newID func() string
	mu    sync.Mutex
}

// ServiceOption customizes a Service during construction.
type ServiceOption func(*Service)

// WithClock overrides the clock used for creation and update timestamps.
func WithClock(clock func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = clock
	}
}

// WithIDGenerator overrides artifact id generation.
func WithIDGenerator(gen func() string) ServiceOption {
	return func(s *Service) {
		s.newID = gen
	}
}

func NewService(repo Repository, opts ...ServiceOption) (*Service, error) {
	if repo == nil {
		return nil, errors.New("artifact repository required")
	}
	svc := &Service{
		repo:  repo,
		now:   time.Now,
		newID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc, nil
}

// Save always creates a new record. Data is stored as given after a JSON
// round trip, so nested values come back as JSON types.
func (s *Service) Save(ctx context.Context, in SaveInput) (Artifact, error) {
	in.ProjectID = strings.TrimSpace(in.ProjectID)
	in.PhaseID = strings.TrimSpace(in.PhaseID)
	in.Type = strings.TrimSpace(in.Type)
	if in.ProjectID == "" || in.PhaseID == "" || in.Type == "" {
		return Artifact{}, ErrMissingKey
	}
	status := in.Status
	if status == "" {
		status = StatusDraft
	}
	if !status.Valid() {
		return Artifact{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	data, err := docstore.Clone(in.Data)
	if err != nil {
		return Artifact{}, fmt.Errorf("artifact data: %w", err)
	}
	if data == nil {
		data = map[string]interface{}{}
	}
	now := s.now().UTC()
	record := Artifact{
		ID:         s.newID(),
		ProjectID:  in.ProjectID,
		PhaseID:    in.PhaseID,
		Workstream: strings.TrimSpace(in.Workstream),
		Type:       in.Type,
		Data:       data,
		Status:     status,
		Sources:    append([]string(nil), in.Sources...),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	saved, err := s.repo.Insert(ctx, record)
	if err != nil {
		return Artifact{}, err
	}
	telemetry.RecordArtifactSave()
	common.Logger().Info("artifact: saved", "project", saved.ProjectID, "phase", saved.PhaseID, "type", saved.Type, "id", saved.ID, "status", saved.Status)
	return saved, nil
}

// GetLatest returns the most recently created record for the triple, or nil.
func (s *Service) GetLatest(ctx context.Context, projectID, artifactType, phaseID string) (*Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo.Latest(ctx, strings.TrimSpace(projectID), strings.TrimSpace(artifactType), strings.TrimSpace(phaseID))
}

// Get returns one record of a project, or nil.
func (s *Service) Get(ctx context.Context, projectID, artifactID string) (*Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo.Get(ctx, projectID, artifactID)
}

// History returns every version of a type within a phase, oldest first.
func (s *Service) History(ctx context.Context, projectID, artifactType, phaseID string) ([]Artifact, error) {
	return s.List(ctx, Query{ProjectID: projectID, Type: artifactType, PhaseID: phaseID})
}

// List returns the records matching q, oldest first.
func (s *Service) List(ctx context.Context, q Query) ([]Artifact, error) {
	if strings.TrimSpace(q.ProjectID) == "" {
		return nil, errors.New("artifact: project id required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo.List(ctx, q)
}

// Approve marks a record Approved. It returns false without error when the
// project/id pair is unknown and is idempotent for approved records.
func (s *Service) Approve(ctx context.Context, projectID, artifactID string) (bool, error) {
	ok, err := s.Transition(ctx, projectID, artifactID, StatusApproved)
	if err != nil || !ok {
		return ok, err
	}
	telemetry.RecordArtifactApproval()
	return true, nil
}

// Submit moves a Draft record to Pending review.
func (s *Service) Submit(ctx context.Context, projectID, artifactID string) (bool, error) {
	return s.Transition(ctx, projectID, artifactID, StatusPending)
}

// Transition sets the status of a record in place. Moving backwards returns
// ErrInvalidTransition; an unknown record returns false.
func (s *Service) Transition(ctx context.Context, projectID, artifactID string, to Status) (bool, error) {
	if !to.Valid() {
		return false, fmt.Errorf("%w: %q", ErrInvalidStatus, to)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current, err := s.repo.Get(ctx, projectID, artifactID)
	if err != nil {
		return false, err
	}
	if current == nil {
		return false, nil
	}
	if current.Status == to {
		return true, nil
	}
	if !CanTransition(current.Status, to) {
		return false, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, to)
	}
	ok, err := s.repo.UpdateStatus(ctx, projectID, artifactID, to, s.now().UTC())
	if err != nil {
		return false, err
	}
	if ok {
		common.Logger().Info("artifact: status changed", "project", projectID, "id", artifactID, "from", current.Status, "to", to)
	}
	return ok, nil
}

// HasApproved reports whether the latest record for the triple is Approved.
func (s *Service) HasApproved(ctx context.Context, projectID, artifactType, phaseID string) (bool, error) {
	latest, err := s.GetLatest(ctx, projectID, artifactType, phaseID)
	if err != nil {
		return false, err
	}
	return latest != nil && latest.Status.Approved(), nil
}
