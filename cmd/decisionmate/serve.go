// File path: cmd/decisionmate/serve.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/api"
	"github.com/Nidjnidj/DecisionMate3-Revision4-sub001/internal/common"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var (
		stores      storeFlags
		addr        string
		documentKey string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), &stores, addr, documentKey)
		},
	}
	defaultAddr := ":8080"
	if env := strings.TrimSpace(os.Getenv("DECISIONMATE_ADDR")); env != "" {
		defaultAddr = env
	}
	cmd.Flags().StringVar(&addr, "addr", defaultAddr, "listen address")
	cmd.Flags().StringVar(&documentKey, "document-api-key", os.Getenv("DECISIONMATE_DOCUMENT_API_KEY"), "bearer token required on /v1/documents")
	stores.register(cmd)
	return cmd
}

func runServe(parent context.Context, stores *storeFlags, addr, documentKey string) error {
	if parent == nil {
		parent = context.Background()
	}
	logger := common.Logger()
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	orch, err := stores.open(ctx)
	if err != nil {
		logger.Error("decisionmate: orchestrator initialization failed", "error", err)
		return err
	}
	defer orch.Close()

	cfg := orch.Config()
	handler, err := api.NewServer(orch, &api.Config{DefaultOwner: cfg.Owner, DocumentAPIKey: documentKey})
	if err != nil {
		logger.Error("decisionmate: server construction failed", "error", err)
		return err
	}
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		reachable := addr
		if strings.HasPrefix(reachable, ":") {
			reachable = "localhost" + reachable
		}
		logger.Info("decisionmate: server listening", "addr", addr, "health", fmt.Sprintf("http://%s/healthz", reachable), "store_mode", orch.Store().Mode(), "artifact_backend", cfg.ArtifactBackend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("decisionmate: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if err := group.Wait(); err != nil {
		logger.Error("decisionmate: server stopped", "error", err)
		return err
	}
	logger.Info("decisionmate: server stopped")
	return nil
}
