// File path: internal/sqlite/artifacts.go
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/artifact"
)

const artifactColumns = `seq, id, owner, project_id, phase_id, workstream, type, status, data, sources, created_at, updated_at`

// Catalog is the view of the Store that one owner sees. Every query filters
// on the owner, so equal project ids of different owners never meet.
type Catalog struct {
	store *Store
	owner string
}

// ForOwner returns the catalog rows of owner.
func (s *Store) ForOwner(owner string) *Catalog {
	return &Catalog{store: s, owner: strings.TrimSpace(owner)}
}

// Owner returns the owner the catalog is scoped to.
func (c *Catalog) Owner() string { return c.owner }

func (c *Catalog) ready() error {
	if c == nil {
		return errors.New("sqlite catalog not initialised")
	}
	return c.store.ready()
}

// Insert stores a new artifact version and returns it with Seq assigned.
func (c *Catalog) Insert(ctx context.Context, a artifact.Artifact) (artifact.Artifact, error) {
	if err := c.ready(); err != nil {
		return artifact.Artifact{}, err
	}
	row, err := toRow(c.owner, a)
	if err != nil {
		return artifact.Artifact{}, err
	}
	err = withTx(ctx, c.store.db, func(tx *sqlx.Tx) error {
		res, err := tx.NamedExecContext(ctx, `INSERT INTO artifacts(id, owner, project_id, phase_id, workstream, type, status, data, sources, created_at, updated_at)
                VALUES(:id, :owner, :project_id, :phase_id, :workstream, :type, :status, :data, :sources, :created_at, :updated_at)`, row)
		if err != nil {
			return fmt.Errorf("insert artifact: %w", err)
		}
		seq, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("artifact seq: %w", err)
		}
		a.Seq = seq
		return recordAudit(ctx, tx, c.store.now(), c.owner, AuditEntry{
			ProjectID:  a.ProjectID,
			ArtifactID: a.ID,
			Action:     "artifact_saved",
			Detail:     fmt.Sprintf("%s/%s %s", a.PhaseID, a.Type, a.Status),
		})
	})
	if err != nil {
		return artifact.Artifact{}, err
	}
	return a, nil
}

// Get returns the artifact with the given project and id, or nil.
func (c *Catalog) Get(ctx context.Context, projectID, artifactID string) (*artifact.Artifact, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	var row artifactRow
	err := c.store.db.GetContext(ctx, &row, `SELECT `+artifactColumns+` FROM artifacts WHERE owner = ? AND project_id = ? AND id = ?`, c.owner, projectID, artifactID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select artifact: %w", err)
	}
	return fromRow(row)
}

// Latest returns the most recently created artifact for the triple, or nil.
func (c *Catalog) Latest(ctx context.Context, projectID, artifactType, phaseID string) (*artifact.Artifact, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	var row artifactRow
	err := c.store.db.GetContext(ctx, &row, `SELECT `+artifactColumns+` FROM artifacts
                WHERE owner = ? AND project_id = ? AND type = ? AND phase_id = ?
                ORDER BY created_at DESC, seq DESC LIMIT 1`, c.owner, projectID, artifactType, phaseID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select latest artifact: %w", err)
	}
	return fromRow(row)
}

// List returns the artifacts matching q, oldest first.
func (c *Catalog) List(ctx context.Context, q artifact.Query) ([]artifact.Artifact, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	clauses := []string{"owner = ?", "project_id = ?"}
	args := []interface{}{c.owner, q.ProjectID}
	if q.PhaseID != "" {
		clauses = append(clauses, "phase_id = ?")
		args = append(args, q.PhaseID)
	}
	if q.Type != "" {
		clauses = append(clauses, "type = ?")
		args = append(args, q.Type)
	}
	if q.Workstream != "" {
		clauses = append(clauses, "workstream = ?")
		args = append(args, q.Workstream)
	}
	if q.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(q.Status))
	}
	rows := []artifactRow{}
	query := `SELECT ` + artifactColumns + ` FROM artifacts WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY created_at, seq`
	if err := c.store.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select artifacts: %w", err)
	}
	return fromRows(rows)
}

// UpdateStatus sets the status in place. It reports false when nothing matched.
func (c *Catalog) UpdateStatus(ctx context.Context, projectID, artifactID string, status artifact.Status, at time.Time) (bool, error) {
	if err := c.ready(); err != nil {
		return false, err
	}
	updated := false
	err := withTx(ctx, c.store.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE artifacts SET status = ?, updated_at = ? WHERE owner = ? AND project_id = ? AND id = ?`,
			string(status), formatTime(at), c.owner, projectID, artifactID)
		if err != nil {
			return fmt.Errorf("update artifact status: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("update artifact status: %w", err)
		}
		if n == 0 {
			return nil
		}
		updated = true
		return recordAudit(ctx, tx, c.store.now(), c.owner, AuditEntry{
			ProjectID:  projectID,
			ArtifactID: artifactID,
			Action:     "artifact_status",
			Detail:     string(status),
		})
	})
	if err != nil {
		return false, err
	}
	return updated, nil
}

// StatusCounts reads the artifact_status_counts view for a project.
func (c *Catalog) StatusCounts(ctx context.Context, projectID string) ([]StatusCount, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	counts := []StatusCount{}
	if err := c.store.db.SelectContext(ctx, &counts, `SELECT project_id, phase_id, status, total FROM artifact_status_counts
                WHERE owner = ? AND project_id = ? ORDER BY phase_id, status`, c.owner, projectID); err != nil {
		return nil, fmt.Errorf("select status counts: %w", err)
	}
	return counts, nil
}

// Import copies artifacts from another repository, skipping ids already
// present. It returns the number of rows written.
func (c *Catalog) Import(ctx context.Context, projectID string, src artifact.Repository) (int, error) {
	if err := c.ready(); err != nil {
		return 0, err
	}
	if src == nil {
		return 0, errors.New("source repository not provided")
	}
	records, err := src.List(ctx, artifact.Query{ProjectID: projectID})
	if err != nil {
		return 0, fmt.Errorf("list source artifacts: %w", err)
	}
	written := 0
	err = withTx(ctx, c.store.db, func(tx *sqlx.Tx) error {
		for _, record := range records {
			row, err := toRow(c.owner, record)
			if err != nil {
				return err
			}
			res, err := tx.NamedExecContext(ctx, `INSERT OR IGNORE INTO artifacts(id, owner, project_id, phase_id, workstream, type, status, data, sources, created_at, updated_at)
                        VALUES(:id, :owner, :project_id, :phase_id, :workstream, :type, :status, :data, :sources, :created_at, :updated_at)`, row)
			if err != nil {
				return fmt.Errorf("import artifact %s: %w", record.ID, err)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				written++
			}
		}
		return recordAudit(ctx, tx, c.store.now(), c.owner, AuditEntry{
			ProjectID: projectID,
			Action:    "artifact_import",
			Detail:    fmt.Sprintf("imported %d of %d artifacts", written, len(records)),
		})
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}

func toRow(owner string, a artifact.Artifact) (artifactRow, error) {
	data := a.Data
	if data == nil {
		data = map[string]interface{}{}
	}
	encodedData, err := json.Marshal(data)
	if err != nil {
		return artifactRow{}, fmt.Errorf("encode artifact data: %w", err)
	}
	sources := a.Sources
	if sources == nil {
		sources = []string{}
	}
	encodedSources, err := json.Marshal(sources)
	if err != nil {
		return artifactRow{}, fmt.Errorf("encode artifact sources: %w", err)
	}
	return artifactRow{
		Seq:        a.Seq,
		ID:         a.ID,
		Owner:      owner,
		ProjectID:  a.ProjectID,
		PhaseID:    a.PhaseID,
		Workstream: a.Workstream,
		Type:       a.Type,
		Status:     string(a.Status),
		Data:       string(encodedData),
		Sources:    string(encodedSources),
		CreatedAt:  formatTime(a.CreatedAt),
		UpdatedAt:  formatTime(a.UpdatedAt),
	}, nil
}

func fromRow(row artifactRow) (*artifact.Artifact, error) {
	out := &artifact.Artifact{
		ID:         row.ID,
		ProjectID:  row.ProjectID,
		PhaseID:    row.PhaseID,
		Workstream: row.Workstream,
		Type:       row.Type,
		Status:     artifact.Status(row.Status),
		Seq:        row.Seq,
		CreatedAt:  parseTime(row.CreatedAt),
		UpdatedAt:  parseTime(row.UpdatedAt),
	}
	if err := json.Unmarshal([]byte(row.Data), &out.Data); err != nil {
		return nil, fmt.Errorf("decode artifact %s data: %w", row.ID, err)
	}
	if row.Sources != "" {
		if err := json.Unmarshal([]byte(row.Sources), &out.Sources); err != nil {
			return nil, fmt.Errorf("decode artifact %s sources: %w", row.ID, err)
		}
	}
	if len(out.Sources) == 0 {
		out.Sources = nil
	}
	return out, nil
}

func fromRows(rows []artifactRow) ([]artifact.Artifact, error) {
	out := make([]artifact.Artifact, 0, len(rows))
	for _, row := range rows {
		record, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, *record)
	}
	return out, nil
}

var _ artifact.Repository = (*Catalog)(nil)
