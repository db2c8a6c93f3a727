package main

import (
	"fmt"

	"github.com/spf13/cobra"
	gormlogger "gorm.io/gorm/logger"

	"github.com/sceneforge/core/internal/config"
	"github.com/sceneforge/core/internal/repository"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the Artifact Repository's relational schema (AutoMigrate)",
	RunE:  runMigrate,
}

// runMigrate deliberately does not call the shared bootstrap: it skips
// the AWS client construction and ffmpeg check those other subcommands
// need, since a migration run touches only the relational store.
func runMigrate(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return newExitError(exitConfigError, fmt.Errorf("load config: %w", err))
	}

	logLevel := gormlogger.Warn
	if cfg.Environment != "production" {
		logLevel = gormlogger.Info
	}
	db, err := repository.Open(cfg.DatabaseURL, logLevel)
	if err != nil {
		return newExitError(exitDependencyDown, fmt.Errorf("open database: %w", err))
	}

	if err := repository.Migrate(db); err != nil {
		return newExitError(exitFailure, fmt.Errorf("apply migrations: %w", err))
	}
	fmt.Println("migrations applied")
	return nil
}
