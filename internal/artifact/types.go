// File path: internal/artifact/types.go
package artifact

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound          = errors.New("artifact: not found")
	ErrInvalidTransition = errors.New("artifact: invalid status transition")
	ErrInvalidStatus     = errors.New("artifact: unknown status")
	ErrMissingKey        = errors.New("artifact: project, phase and type are required")
)

// Status is the lifecycle state of an artifact version.
type Status string

const (
	StatusDraft      Status = "Draft"
	StatusPending    Status = "Pending"
	StatusInProgress Status = "In Progress"
	StatusApproved   Status = "Approved"
)

// rank orders statuses; transitions may never lower it.
func (s Status) rank() int {
	switch s {
	case StatusDraft:
		return 0
	case StatusPending, StatusInProgress:
		return 1
	case StatusApproved:
		return 2
	default:
		return -1
	}
}

func (s Status) Valid() bool { return s.rank() >= 0 }

func (s Status) Approved() bool { return s == StatusApproved }

// ParseStatus accepts any casing plus "in_progress"/"inprogress". An empty
// value means Draft.
func ParseStatus(value string) (Status, error) {
	normalised := strings.ToLower(strings.TrimSpace(value))
	normalised = strings.NewReplacer("_", " ", "-", " ").Replace(normalised)
	switch normalised {
	case "", "draft":
		return StatusDraft, nil
	case "pending":
		return StatusPending, nil
	case "in progress", "inprogress":
		return StatusInProgress, nil
	case "approved":
		return StatusApproved, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, value)
	}
}

// CanTransition reports whether from -> to keeps the status moving forward.
// Staying at the same rank is allowed.
func CanTransition(from, to Status) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	return to.rank() >= from.rank()
}

// Artifact is one saved version of a unit of project work product.
type Artifact struct {
	ID         string                 `json:"id" db:"id"`
	ProjectID  string                 `json:"project_id" db:"project_id"`
	PhaseID    string                 `json:"phase_id" db:"phase_id"`
	Workstream string                 `json:"workstream" db:"workstream"`
	Type       string                 `json:"type" db:"type"`
	Data       map[string]interface{} `json:"data" db:"-"`
	Status     Status                 `json:"status" db:"status"`
	Sources    []string               `json:"sources,omitempty" db:"-"`
	Seq        int64                  `json:"seq" db:"seq"`
	CreatedAt  time.Time              `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time              `json:"updated_at" db:"updated_at"`
}

// newer reports whether a was created after b. Equal timestamps fall back to
// the insertion sequence.
func (a Artifact) newer(b Artifact) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.Seq > b.Seq
}

// Query filters artifacts of one project. Empty fields match everything.
type Query struct {
	ProjectID  string
	PhaseID    string
	Type       string
	Workstream string
	Status     Status
}

func (q Query) matches(a Artifact) bool {
	if a.ProjectID != q.ProjectID {
		return false
	}
	if q.PhaseID != "" && a.PhaseID != q.PhaseID {
		return false
	}
	if q.Type != "" && a.Type != q.Type {
		return false
	}
	if q.Workstream != "" && a.Workstream != q.Workstream {
		return false
	}
	if q.Status != "" && a.Status != q.Status {
		return false
	}
	return true
}

// Repository persists artifact versions. Insert assigns Seq. List returns
// records oldest first. UpdateStatus reports false when the project/id pair is
// unknown.
type Repository interface {
	Insert(ctx context.Context, a Artifact) (Artifact, error)
	Get(ctx context.Context, projectID, artifactID string) (*Artifact, error)
	Latest(ctx context.Context, projectID, artifactType, phaseID string) (*Artifact, error)
	List(ctx context.Context, q Query) ([]Artifact, error)
	UpdateStatus(ctx context.Context, projectID, artifactID string, status Status, at time.Time) (bool, error)
}
