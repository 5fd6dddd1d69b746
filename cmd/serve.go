package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/namelink/internal/api"
	"github.com/sells-group/namelink/internal/normalize"
	"github.com/sells-group/namelink/internal/similarity"
)

var serveCmd = &cobra.Command{
	Use:         "serve",
	Short:       "Start the HTTP API for normalization, matching and deduplication",
	Annotations: map[string]string{modeAnnotation: "serve"},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		origins, _ := cmd.Flags().GetStringSlice("allowed-origin")
		return runServe(ctx, origins)
	},
}

func runServe(ctx context.Context, origins []string) error {
	namer, err := newNamer()
	if err != nil {
		return eris.Wrap(err, "serve: create normalizer")
	}
	scorer, err := similarity.ByName(cfg.Match.Scorer)
	if err != nil {
		return err
	}

	st, err := initStore(ctx)
	if err != nil {
		return eris.Wrap(err, "serve: open store")
	}
	defer st.Close() //nolint:errcheck

	srv := api.NewServer(api.Options{
		Normalizer:     normalize.Default(),
		Namer:          namer,
		Scorer:         scorer,
		Cutoff:         cfg.Match.ScoreCutoff,
		Concurrency:    cfg.Match.Concurrency,
		Store:          st,
		AllowedOrigins: origins,
	})

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("starting api server", zap.Int("port", cfg.Server.Port))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		zap.L().Info("shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil {
			return eris.Wrap(err, "serve: listen")
		}
		return nil
	}
}

func init() {
	serveCmd.Flags().Int("port", 8080, "HTTP server port")
	serveCmd.Flags().StringSlice("allowed-origin", nil, "CORS allowed origin (repeatable, default any)")
	rootCmd.AddCommand(serveCmd)
}
