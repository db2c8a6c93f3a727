package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sceneforge/core/internal/domain"
	"github.com/sceneforge/core/internal/worker"
)

func init() {
	workerCmd.Flags().StringSlice("kinds", nil, "capacity kinds to drain (text,image,tts,video_submit,assembly); default is every kind with a non-zero cap")
	workerCmd.Flags().Int("concurrency", 0, "override the concurrency cap applied to every --kinds entry (0 keeps each kind's configured cap)")
	rootCmd.AddCommand(workerCmd)
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Drain one or more CapacityKind queues and dispatch tasks to their handlers",
	RunE:  runWorker,
}

func runWorker(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.logger.Sync()

	kindsFlag, _ := cmd.Flags().GetStringSlice("kinds")
	concurrencyOverride, _ := cmd.Flags().GetInt("concurrency")

	caps := a.cfg.ConcurrencyCaps()
	if len(kindsFlag) > 0 {
		selected := make(map[domain.CapacityKind]int, len(kindsFlag))
		for _, k := range kindsFlag {
			kind := domain.CapacityKind(strings.TrimSpace(k))
			limit, ok := caps[kind]
			if !ok {
				return newExitError(exitConfigError, fmt.Errorf("unknown capacity kind %q", kind))
			}
			selected[kind] = limit
		}
		caps = selected
	}
	if concurrencyOverride > 0 {
		for kind := range caps {
			caps[kind] = concurrencyOverride
		}
	}

	distributed, err := a.distributedSemaphores(ctx, caps)
	if err != nil {
		return newExitError(exitDependencyDown, err)
	}

	pool := worker.NewPool(a.dispatcher(), a.tasks, a.broker, a.cfg.QueueURLs(), caps, distributed, a.logger)
	kindNames := make([]string, 0, len(caps))
	for kind := range caps {
		kindNames = append(kindNames, string(kind))
	}
	a.logger.Info("worker pool starting", zap.Strings("capacity_kinds", kindNames))
	pool.Run(ctx)
	a.logger.Info("worker pool exited cleanly")
	return nil
}
