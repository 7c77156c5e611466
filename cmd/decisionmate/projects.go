// File path: cmd/decisionmate/projects.go
package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/stage"
)

func newAdvanceCheckCmd() *cobra.Command {
	var (
		stores    storeFlags
		projectID string
	)
	cmd := &cobra.Command{
		Use:   "advance-check",
		Short: "Report whether a project may leave its current phase",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			orch, err := stores.open(ctx)
			if err != nil {
				return err
			}
			defer orch.Close()
			ws, err := orch.Workspace(stores.owner)
			if err != nil {
				return err
			}
			p, err := ws.Projects.Get(ctx, projectID)
			if err != nil {
				return err
			}
			readiness, err := ws.Controller.Readiness(ctx, p)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s) at %s: %d%% of required artifacts approved\n", p.Name, p.ID, readiness.Phase, readiness.Percent)
			if _, ok := p.FELStage.Next(); !ok {
				fmt.Fprintln(out, "final phase reached")
				return nil
			}
			if readiness.Ready {
				fmt.Fprintln(out, "ready to advance")
				return nil
			}
			for _, reason := range readiness.Reasons {
				fmt.Fprintf(out, "- %s\n", reason)
			}
			return stage.ErrGateNotReady
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	_ = cmd.MarkFlagRequired("project")
	stores.register(cmd)
	return cmd
}

func newSyncArtifactsCmd() *cobra.Command {
	var (
		stores     storeFlags
		projectIDs []string
	)
	cmd := &cobra.Command{
		Use:   "sync-artifacts",
		Short: "Copy document-store artifacts into the SQLite catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if strings.TrimSpace(stores.sqlite) == "" {
				return errors.New("--sqlite is required")
			}
			orch, err := stores.open(ctx)
			if err != nil {
				return err
			}
			defer orch.Close()
			ws, err := orch.Workspace(stores.owner)
			if err != nil {
				return err
			}
			if len(projectIDs) == 0 {
				summaries, err := ws.Projects.List(ctx)
				if err != nil {
					return err
				}
				for _, s := range summaries {
					projectIDs = append(projectIDs, s.ID)
				}
			}
			total := 0
			for _, id := range projectIDs {
				n, err := orch.SyncArtifacts(ctx, ws.Owner, id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d imported\n", id, n)
				total += n
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d artifacts imported from %d projects\n", total, len(projectIDs))
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&projectIDs, "project", nil, "project ids to sync (default all projects of the owner)")
	stores.register(cmd)
	return cmd
}
