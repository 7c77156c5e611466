// File path: internal/sqlite/audit.go
package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// RecordAudit appends an entry to the audit log.
func (c *Catalog) RecordAudit(ctx context.Context, projectID, action, actor, detail string) error {
	if err := c.ready(); err != nil {
		return err
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return fmt.Errorf("audit action required")
	}
	return withTx(ctx, c.store.db, func(tx *sqlx.Tx) error {
		return recordAudit(ctx, tx, c.store.now(), c.owner, AuditEntry{
			ProjectID: projectID,
			Action:    action,
			Actor:     actor,
			Detail:    detail,
		})
	})
}

// AuditLog returns a project's audit entries oldest first, optionally limited
// to the given actions.
func (c *Catalog) AuditLog(ctx context.Context, projectID string, actions ...string) ([]AuditEntry, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	rows := []auditRow{}
	if len(actions) == 0 {
		if err := c.store.db.SelectContext(ctx, &rows, `SELECT id, owner, project_id, artifact_id, action, actor, detail, created_at
                        FROM audit WHERE owner = ? AND project_id = ? ORDER BY created_at, id`, c.owner, projectID); err != nil {
			return nil, fmt.Errorf("select audit: %w", err)
		}
	} else {
		query, args, err := sqlx.In(`SELECT id, owner, project_id, artifact_id, action, actor, detail, created_at
                        FROM audit WHERE owner = ? AND project_id = ? AND action IN (?) ORDER BY created_at, id`, c.owner, projectID, actions)
		if err != nil {
			return nil, fmt.Errorf("build audit query: %w", err)
		}
		if err := c.store.db.SelectContext(ctx, &rows, c.store.db.Rebind(query), args...); err != nil {
			return nil, fmt.Errorf("select audit: %w", err)
		}
	}
	out := make([]AuditEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, AuditEntry{
			ID:         row.ID,
			Owner:      row.Owner,
			ProjectID:  row.ProjectID,
			ArtifactID: row.ArtifactID.String,
			Action:     row.Action,
			Actor:      row.Actor,
			Detail:     row.Detail.String,
			CreatedAt:  parseTime(row.CreatedAt),
		})
	}
	return out, nil
}

func recordAudit(ctx context.Context, tx *sqlx.Tx, at time.Time, owner string, entry AuditEntry) error {
	if _, err := tx.ExecContext(ctx, `INSERT INTO audit(owner, project_id, artifact_id, action, actor, detail, created_at) VALUES(?, ?, ?, ?, ?, ?, ?)`,
		owner, entry.ProjectID, nullIfEmpty(entry.ArtifactID), entry.Action, entry.Actor, nullIfEmpty(entry.Detail), formatTime(at)); err != nil {
		return fmt.Errorf("insert audit: %w", err)
	}
	return nil
}

func nullIfEmpty(value string) interface{} {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
