// File path: internal/data/orchestrator/config.go
package orchestrator

import (
	"fmt"
	"os"
	"strings"

	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/docstore"
	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/project"
	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/sqlite"
)

// Artifact backends.
const (
	BackendDocument = "document"
	BackendSQLite   = "sqlite"
)

// Config controls which stores back the services handed to the API layer.
type Config struct {
	Owner           string
	Mode            string
	ArtifactBackend string
	GatesFile       string

	Docstore docstore.Config
	SQLite   sqlite.Config
}

// DefaultConfig returns the baseline configuration used when no overrides are
// supplied.
func DefaultConfig() Config {
	return Config{
		Owner:           "guest",
		Mode:            project.DefaultMode,
		ArtifactBackend: BackendDocument,
		Docstore:        docstore.DefaultConfig(),
		SQLite:          sqlite.DefaultConfig(),
	}
}

// LoadConfig builds a Config from defaults and environment variables.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	if value := strings.TrimSpace(os.Getenv("DECISIONMATE_OWNER")); value != "" {
		cfg.Owner = value
	}
	if value := strings.TrimSpace(os.Getenv("DECISIONMATE_MODE")); value != "" {
		cfg.Mode = value
	}
	if value := strings.TrimSpace(os.Getenv("DECISIONMATE_ARTIFACT_BACKEND")); value != "" {
		cfg.ArtifactBackend = strings.ToLower(value)
	}
	if value := strings.TrimSpace(os.Getenv("DECISIONMATE_GATES_FILE")); value != "" {
		cfg.GatesFile = value
	}
	storeCfg, err := docstore.LoadConfig()
	if err != nil {
		return Config{}, fmt.Errorf("load docstore config: %w", err)
	}
	cfg.Docstore = storeCfg
	sqliteCfg, err := sqlite.LoadConfig()
	if err != nil {
		return Config{}, fmt.Errorf("load sqlite config: %w", err)
	}
	cfg.SQLite = sqliteCfg
	cfg = applyDefaults(cfg)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if strings.TrimSpace(cfg.Owner) == "" {
		cfg.Owner = defaults.Owner
	}
	if strings.TrimSpace(cfg.Mode) == "" {
		cfg.Mode = defaults.Mode
	}
	if strings.TrimSpace(cfg.ArtifactBackend) == "" {
		cfg.ArtifactBackend = defaults.ArtifactBackend
	}
	return cfg
}

func (c Config) validate() error {
	if strings.TrimSpace(c.Owner) == "" {
		return fmt.Errorf("owner required")
	}
	switch c.ArtifactBackend {
	case BackendDocument, BackendSQLite:
	default:
		return fmt.Errorf("unknown artifact backend %q", c.ArtifactBackend)
	}
	return nil
}
