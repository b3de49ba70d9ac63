package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"policy-rag/internal/http"
	"policy-rag/internal/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the question answering API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := openApp(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		if err := a.checkEmbedder(ctx); err != nil {
			return err
		}
		if err := a.checkIndex(ctx); err != nil {
			return err
		}
		// Fail fast when the stored collection was built with another dimension.
		if err := a.store.EnsureCollection(ctx, cfg.QdrantCollection, cfg.EmbeddingDim); err != nil {
			return fmt.Errorf("failed to ensure collection: %w", err)
		}
		slog.Info("Vector store ready", "backend", cfg.VectorBackend, "collection", cfg.QdrantCollection, "vector_size", cfg.EmbeddingDim)

		router := http.NewRouter(&http.Deps{
			QueryService:   service.NewQueryService(a.engine()),
			StatusService:  a.statusService(),
			AllowedOrigins: cfg.AllowedOrigins,
			Version:        version,
			Environment:    "local",
		})

		server := &nethttp.Server{
			Addr:              ":" + cfg.Port,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			slog.Info("Starting API server", "addr", server.Addr)
			slog.Debug("LLM configuration", "base_url", cfg.LLMBaseURL, "model", cfg.LLMModelName)
			errCh <- server.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if errors.Is(err, nethttp.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("API server failed: %w", err)
		case <-ctx.Done():
		}

		slog.Info("Shutting down API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down API server: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
