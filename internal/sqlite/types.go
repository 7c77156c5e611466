// File path: internal/sqlite/types.go
package sqlite

import (
	"database/sql"
	"time"
)

// artifactRow mirrors the artifacts table; JSON columns stay encoded.
type artifactRow struct {
	Seq        int64  `db:"seq"`
	ID         string `db:"id"`
	Owner      string `db:"owner"`
	ProjectID  string `db:"project_id"`
	PhaseID    string `db:"phase_id"`
	Workstream string `db:"workstream"`
	Type       string `db:"type"`
	Status     string `db:"status"`
	Data       string `db:"data"`
	Sources    string `db:"sources"`
	CreatedAt  string `db:"created_at"`
	UpdatedAt  string `db:"updated_at"`
}

type auditRow struct {
	ID         int64          `db:"id"`
	Owner      string         `db:"owner"`
	ProjectID  string         `db:"project_id"`
	ArtifactID sql.NullString `db:"artifact_id"`
	Action     string         `db:"action"`
	Actor      string         `db:"actor"`
	Detail     sql.NullString `db:"detail"`
	CreatedAt  string         `db:"created_at"`
}

// AuditEntry is one row of the audit log.
type AuditEntry struct {
	ID         int64     `json:"id"`
	Owner      string    `json:"owner"`
	ProjectID  string    `json:"project_id"`
	ArtifactID string    `json:"artifact_id,omitempty"`
	Action     string    `json:"action"`
	Actor      string    `json:"actor,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// StatusCount is one row of the artifact_status_counts view.
type StatusCount struct {
	ProjectID string `db:"project_id" json:"project_id"`
	PhaseID   string `db:"phase_id" json:"phase_id"`
	Status    string `db:"status" json:"status"`
	Total     int    `db:"total" json:"total"`
}
