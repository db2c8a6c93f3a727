package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sceneforge/core/internal/domain"
	"github.com/sceneforge/core/internal/taskstore"
)

func init() {
	composeCmd.Flags().String("chapter", "", "chapter ID to assemble")
	composeCmd.Flags().String("resolution", "1920x1080", "output resolution")
	composeCmd.Flags().Int("fps", 24, "output frame rate")
	composeCmd.Flags().String("bgm-ref", "", "background music artifact reference")
	composeCmd.Flags().Float64("bgm-volume", 0, fmt.Sprintf("background music volume, 0 to %v", domain.MaxBGMVolume))
	_ = composeCmd.MarkFlagRequired("chapter")
	rootCmd.AddCommand(composeCmd)
}

var composeCmd = &cobra.Command{
	Use:   "compose",
	Short: "One-shot video assembly for a chapter, bypassing the task queue (debugging)",
	RunE:  runCompose,
}

func runCompose(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.logger.Sync()

	chapterID, _ := cmd.Flags().GetString("chapter")
	resolution, _ := cmd.Flags().GetString("resolution")
	fps, _ := cmd.Flags().GetInt("fps")
	bgmRef, _ := cmd.Flags().GetString("bgm-ref")
	bgmVolume, _ := cmd.Flags().GetFloat64("bgm-volume")

	chapter, err := a.projects.GetChapter(ctx, chapterID)
	if err != nil {
		return newExitError(exitFailure, fmt.Errorf("load chapter %s: %w", chapterID, err))
	}
	project, err := a.projects.GetProject(ctx, chapter.ProjectID)
	if err != nil {
		return newExitError(exitFailure, fmt.Errorf("load project %s: %w", chapter.ProjectID, err))
	}

	vt, err := a.videos.Get(ctx, chapterID)
	if err != nil {
		if !errors.Is(err, taskstore.ErrVideoTaskNotFound) {
			return newExitError(exitFailure, fmt.Errorf("load video task for chapter %s: %w", chapterID, err))
		}
		now := time.Now().Unix()
		vt = &domain.VideoTask{
			ChapterID:  chapterID,
			Resolution: resolution,
			FPS:        fps,
			BGMRef:     bgmRef,
			BGMVolume:  bgmVolume,
			Status:     domain.VideoValidating,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := vt.Validate(); err != nil {
			return newExitError(exitConfigError, err)
		}
		if err := a.videos.Create(ctx, vt); err != nil {
			return newExitError(exitFailure, fmt.Errorf("create video task: %w", err))
		}
	}

	switch project.Type {
	case domain.ProjectMovie:
		err = a.movie.Assemble(ctx, vt)
	case domain.ProjectNarrative:
		err = a.narrative.Assemble(ctx, vt)
	default:
		return newExitError(exitConfigError, fmt.Errorf("project %s has unknown type %q", project.ID, project.Type))
	}
	if err != nil {
		return newExitError(exitFailure, fmt.Errorf("assemble chapter %s: %w", chapterID, err))
	}

	fmt.Printf("chapter %s composed\n", chapterID)
	return nil
}
