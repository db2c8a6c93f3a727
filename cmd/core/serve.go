package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sceneforge/core/internal/httpapi"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the operational HTTP control surface (submit/query/cancel Job, health, history browse)",
	RunE:  runServe,
}

func runServe(_ *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.logger.Sync()

	server := httpapi.NewServer(&httpapi.Config{
		Port:        a.cfg.Port,
		Environment: a.cfg.Environment,
		Logger:      a.logger,
		Jobs:        a.jobs,
		Tasks:       a.tasks,
		VideoJobs:   a.videos,
		Artifacts:   a.artifacts,
		Projects:    a.projects,
		Executor:    a.exec,
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%s", a.cfg.Port),
		Handler:      server.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("starting http server", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return newExitError(exitFailure, fmt.Errorf("http server: %w", err))
		}
	}

	a.logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return newExitError(exitFailure, fmt.Errorf("graceful shutdown: %w", err))
	}
	a.logger.Info("http server exited cleanly")
	return nil
}
