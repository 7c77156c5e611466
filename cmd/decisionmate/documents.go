// File path: cmd/decisionmate/documents.go
package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/docstore"
)

func newDocumentsCmd() *cobra.Command {
	var stores storeFlags
	cmd := &cobra.Command{
		Use:   "documents",
		Short: "List the local JSON documents of an owner",
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
			local, ok := docstore.LocalOf(orch.Store())
			if !ok {
				return errors.New("documents can only be listed for the local or remote-fallback policy")
			}
			owner := orch.Config().Owner
			keys, err := local.Keys(ctx, owner)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, key := range keys {
				fmt.Fprintln(out, key)
			}
			fmt.Fprintf(out, "%d documents for %s in %s\n", len(keys), owner, local.Root())
			return nil
		},
	}
	stores.register(cmd)
	return cmd
}
