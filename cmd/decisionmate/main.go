// File path: cmd/decisionmate/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/common"
	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/data/orchestrator"
	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/docstore"
)

// storeFlags are shared by every command that opens the stores.
type storeFlags struct {
	owner   string
	dataDir string
	policy  string
	sqlite  string
}

func (f *storeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.owner, "owner", "", "owner whose documents are used (default from DECISIONMATE_OWNER or guest)")
	cmd.Flags().StringVar(&f.dataDir, "data-dir", "", "directory for local JSON documents")
	cmd.Flags().StringVar(&f.policy, "policy", "", "document store policy: local, remote, remote-fallback or memory")
	cmd.Flags().StringVar(&f.sqlite, "sqlite", "", "path to the SQLite artifact catalog; enables the sqlite artifact backend")
}

// config loads the environment configuration and overlays the flags.
func (f *storeFlags) config() (orchestrator.Config, error) {
	cfg, err := orchestrator.LoadConfig()
	if err != nil {
		return orchestrator.Config{}, err
	}
	if trimmed := strings.TrimSpace(f.owner); trimmed != "" {
		cfg.Owner = trimmed
	}
	if trimmed := strings.TrimSpace(f.dataDir); trimmed != "" {
		cfg.Docstore.DataDir = trimmed
	}
	if trimmed := strings.TrimSpace(f.policy); trimmed != "" {
		policy, err := docstore.ParsePolicy(trimmed)
		if err != nil {
			return orchestrator.Config{}, err
		}
		cfg.Docstore.Policy = policy
	}
	if trimmed := strings.TrimSpace(f.sqlite); trimmed != "" {
		cfg.SQLite.Path = trimmed
		cfg.ArtifactBackend = orchestrator.BackendSQLite
	}
	return cfg, nil
}

func (f *storeFlags) open(ctx context.Context) (*orchestrator.Orchestrator, error) {
	cfg, err := f.config()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return orchestrator.New(ctx, cfg)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "decisionmate",
		Short: "Track FEL gate artifacts and stage transitions",
		Long: `decisionmate serves the gate tracker API and inspects the gate tables.

Available subcommands:
  serve          - Run the HTTP API
  gates          - Print the required artifacts of an industry phase
  advance-check  - Report whether a project may leave its current phase
  sync-artifacts - Copy document-store artifacts into the SQLite catalog
  documents      - List the local JSON documents of an owner`,
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newGatesCmd(), newAdvanceCheckCmd(), newSyncArtifactsCmd(), newDocumentsCmd())
	return root
}

func main() {
	logger := common.Logger()
	if err := godotenv.Load(); err != nil {
		logger.Debug("decisionmate: .env file not loaded", "error", err)
	} else {
		logger.Info("decisionmate: environment loaded from .env")
	}
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
