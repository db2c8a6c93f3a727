package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func init() {
	sweeperCmd.Flags().String("ttl-schedule", "", "cron expression for the Job/Task retention sweep (default: hourly)")
	rootCmd.AddCommand(sweeperCmd)
}

var sweeperCmd = &cobra.Command{
	Use:   "sweeper",
	Short: "Poll in-flight Transitions for completion and run the Job/Task retention cycle",
	RunE:  runSweeper,
}

func runSweeper(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.logger.Sync()

	ttlSchedule, _ := cmd.Flags().GetString("ttl-schedule")
	ttl := a.ttlSweeper()
	if err := ttl.Start(ctx, ttlSchedule); err != nil {
		return newExitError(exitFailure, err)
	}
	defer ttl.Stop()

	a.logger.Info("sweeper starting")
	s := a.sweeper()
	s.Run(ctx)
	a.logger.Info("sweeper exited cleanly")
	return nil
}
