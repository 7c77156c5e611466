// File path: internal/sqlite/store.go
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/common"
)

// timeLayout is fixed width so TEXT timestamps sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store wraps a pooled sqlx.DB connection to the artifact catalog. Rows
// belong to owners; callers work through ForOwner.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

// Open constructs a Store backed by the SQLite database at the provided path.
// The schema is migrated on first use.
func Open(path string) (*Store, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	if trimmed := strings.TrimSpace(path); trimmed != "" {
		cfg.Path = trimmed
	}
	return OpenWithConfig(cfg)
}

// OpenWithConfig constructs a Store using the provided configuration.
func OpenWithConfig(cfg Config) (*Store, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("resolve sqlite path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sqlx.Open("sqlite", cfg.dsn(abs))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.BusyTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	store := &Store{db: db, now: time.Now}
	if err := store.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	common.Logger().Info("sqlite: catalog ready", "path", abs, "journal_mode", cfg.JournalMode, "synchronous", cfg.Synchronous)
	return store, nil
}

// Close releases the underlying database resources.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// JournalMode reports the journal mode the database is running in.
func (s *Store) JournalMode(ctx context.Context) (string, error) {
	if err := s.ready(); err != nil {
		return "", err
	}
	var mode string
	if err := s.db.GetContext(ctx, &mode, `PRAGMA journal_mode;`); err != nil {
		return "", fmt.Errorf("read journal mode: %w", err)
	}
	return strings.ToUpper(mode), nil
}

func (s *Store) ready() error {
	if s == nil || s.db == nil {
		return errors.New("sqlite store not initialised")
	}
	return nil
}

func (s *Store) migrate(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	return withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		for i, stmt := range tableStatements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("execute schema statement %d: %w", i+1, err)
			}
		}
		// Catalogs created before rows were owner scoped lack the column.
		for _, table := range []string{"artifacts", "audit"} {
			if err := ensureOwnerColumn(ctx, tx, table); err != nil {
				return err
			}
		}
		for i, stmt := range indexStatements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("execute index statement %d: %w", i+1, err)
			}
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO audit(owner, project_id, action, actor, detail, created_at)
        SELECT '', '', 'schema_created', '', 'initial schema loaded', ?
        WHERE NOT EXISTS (SELECT 1 FROM audit WHERE action = 'schema_created');`, formatTime(s.now()))
		if err != nil {
			return fmt.Errorf("seed audit: %w", err)
		}
		return nil
	})
}

func ensureOwnerColumn(ctx context.Context, tx *sqlx.Tx, table string) error {
	var present int
	if err := tx.GetContext(ctx, &present, `SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = 'owner'`, table); err != nil {
		return fmt.Errorf("inspect %s columns: %w", table, err)
	}
	if present > 0 {
		return nil
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`ALTER TABLE %s ADD COLUMN owner TEXT NOT NULL DEFAULT ''`, table)); err != nil {
		return fmt.Errorf("add owner column to %s: %w", table, err)
	}
	return nil
}

func withTx(ctx context.Context, db *sqlx.DB, fn func(*sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if parsed, err := time.Parse(timeLayout, value); err == nil {
		return parsed
	}
	if parsed, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return parsed.UTC()
	}
	return time.Time{}
}

var tableStatements = []string{
	`CREATE TABLE IF NOT EXISTS artifacts (
                seq INTEGER PRIMARY KEY AUTOINCREMENT,
                id TEXT NOT NULL UNIQUE,
                owner TEXT NOT NULL DEFAULT '',
                project_id TEXT NOT NULL,
                phase_id TEXT NOT NULL,
                workstream TEXT NOT NULL DEFAULT '',
                type TEXT NOT NULL,
                status TEXT NOT NULL,
                data TEXT NOT NULL DEFAULT '{}',
                sources TEXT NOT NULL DEFAULT '[]',
                created_at TEXT NOT NULL,
                updated_at TEXT NOT NULL
        );`,
	`CREATE TABLE IF NOT EXISTS audit (
                id INTEGER PRIMARY KEY AUTOINCREMENT,
                owner TEXT NOT NULL DEFAULT '',
                project_id TEXT NOT NULL DEFAULT '',
                artifact_id TEXT,
                action TEXT NOT NULL,
                actor TEXT NOT NULL DEFAULT '',
                detail TEXT,
                created_at TEXT NOT NULL
        );`,
}

var indexStatements = []string{
	`DROP INDEX IF EXISTS idx_artifacts_latest;`,
	`DROP INDEX IF EXISTS idx_artifacts_project_phase;`,
	`DROP INDEX IF EXISTS idx_audit_project_created;`,
	`CREATE INDEX IF NOT EXISTS idx_artifacts_owner_latest ON artifacts(owner, project_id, type, phase_id, created_at, seq);`,
	`CREATE INDEX IF NOT EXISTS idx_artifacts_owner_phase ON artifacts(owner, project_id, phase_id);`,
	`CREATE INDEX IF NOT EXISTS idx_audit_owner_project ON audit(owner, project_id, created_at);`,
	`DROP VIEW IF EXISTS artifact_status_counts;`,
	`CREATE VIEW artifact_status_counts AS
                SELECT owner, project_id, phase_id, status, COUNT(*) AS total
                FROM artifacts
                GROUP BY owner, project_id, phase_id, status;`,
}
