package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"lawgpt/internal/lifecycle"
	"lawgpt/internal/metrics"
	"lawgpt/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP chat service",
	Long:  "Start the HTTP service immediately and load the index and models in the background",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	metrics.Register()

	loader := lifecycle.NewLoader[server.Querier]()
	loader.Start(ctx, func(ctx context.Context) (server.Querier, error) {
		return buildApp(ctx, cfg)
	})

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      server.New(loader, cfg.HTTP).Router(),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTP.Addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		log.Info().Msg("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during shutdown")
	}

	if snap := loader.Snapshot(); snap.State == lifecycle.Ready {
		if a, ok := snap.Value.(*app); ok {
			a.Close()
		}
	}
	log.Info().Msg("Server stopped gracefully")
	return nil
}
