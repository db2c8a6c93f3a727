package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/sceneforge/core/internal/domain"
)

// ProjectRepository covers Project, Chapter and APIKey CRUD — the
// entities that don't carry the history-append contract (§4.2 only
// applies to artifacts with a `*_url` field).
type ProjectRepository struct {
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

func (r *ProjectRepository) CreateProject(ctx context.Context, project *domain.Project) error {
	if err := r.db.WithContext(ctx).Create(project).Error; err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}

func (r *ProjectRepository) GetProject(ctx context.Context, projectID string) (*domain.Project, error) {
	var project domain.Project
	if err := r.db.WithContext(ctx).Preload("Chapters").Preload("Characters").First(&project, "id = ?", projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("project %s not found", projectID)
		}
		return nil, fmt.Errorf("get project %s: %w", projectID, err)
	}
	return &project, nil
}

func (r *ProjectRepository) CreateChapter(ctx context.Context, chapter *domain.Chapter) error {
	if err := r.db.WithContext(ctx).Create(chapter).Error; err != nil {
		return fmt.Errorf("create chapter: %w", err)
	}
	return nil
}

func (r *ProjectRepository) GetChapter(ctx context.Context, chapterID string) (*domain.Chapter, error) {
	var chapter domain.Chapter
	if err := r.db.WithContext(ctx).Preload("Script").First(&chapter, "id = ?", chapterID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("chapter %s not found", chapterID)
		}
		return nil, fmt.Errorf("get chapter %s: %w", chapterID, err)
	}
	return &chapter, nil
}

// AdvanceChapterStatus enforces the monotonic pipeline_status invariant
// (§3: "draft -> parsed -> script_generated -> materials_prepared ->
// completed, with failed reachable from any state"). Callers pass the
// target status; CanAdvance validates the transition before the write.
func (r *ProjectRepository) AdvanceChapterStatus(ctx context.Context, chapterID string, to domain.PipelineStatus) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var chapter domain.Chapter
		if err := tx.First(&chapter, "id = ?", chapterID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.NewNotFoundError("chapter %s not found", chapterID)
			}
			return fmt.Errorf("get chapter %s: %w", chapterID, err)
		}

		if !domain.CanAdvance(chapter.Status, to) {
			return domain.NewValidationError("cannot advance chapter %s from %s to %s", chapterID, chapter.Status, to)
		}

		if err := tx.Model(&domain.Chapter{}).Where("id = ?", chapterID).Update("status", to).Error; err != nil {
			return fmt.Errorf("advance chapter %s: %w", chapterID, err)
		}
		return nil
	})
}

// DeleteChapter cascades into Script (and, transitively, Scenes/Shots/
// Transitions via DeleteScript) and Sentences, per §4.2's "deleting a
// Chapter purges downstream artifacts" rule.
func (r *ProjectRepository) DeleteChapter(ctx context.Context, chapterID string, artifacts *ArtifactRepository) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var script domain.Script
		err := tx.Where("chapter_id = ?", chapterID).First(&script).Error
		switch {
		case err == nil:
			if delErr := artifacts.DeleteScript(ctx, script.ID); delErr != nil {
				return delErr
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			// narrative-pipeline chapters have no Script row
		default:
			return fmt.Errorf("lookup script for chapter %s: %w", chapterID, err)
		}

		var sentences []domain.Sentence
		if err := tx.Where("chapter_id = ?", chapterID).Find(&sentences).Error; err != nil {
			return fmt.Errorf("list sentences for delete: %w", err)
		}
		sentenceIDs := make([]string, len(sentences))
		for i, s := range sentences {
			sentenceIDs[i] = s.ID
		}
		if err := orphanHistory(tx, domain.ResourceSentence, sentenceIDs); err != nil {
			return err
		}
		if err := tx.Where("chapter_id = ?", chapterID).Delete(&domain.Sentence{}).Error; err != nil {
			return fmt.Errorf("delete sentences: %w", err)
		}
		if err := tx.Where("id = ?", chapterID).Delete(&domain.Chapter{}).Error; err != nil {
			return fmt.Errorf("delete chapter %s: %w", chapterID, err)
		}
		return nil
	})
}

func (r *ProjectRepository) CreateAPIKey(ctx context.Context, key *domain.APIKey) error {
	if err := r.db.WithContext(ctx).Create(key).Error; err != nil {
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

func (r *ProjectRepository) GetActiveAPIKey(ctx context.Context, ownerID, provider string) (*domain.APIKey, error) {
	var key domain.APIKey
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND provider = ? AND status = ?", ownerID, provider, domain.APIKeyActive).
		First(&key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("no active api key for owner %s provider %s", ownerID, provider)
		}
		return nil, fmt.Errorf("get active api key: %w", err)
	}
	return &key, nil
}

func (r *ProjectRepository) GetAPIKeyByID(ctx context.Context, apiKeyID string) (*domain.APIKey, error) {
	var key domain.APIKey
	if err := r.db.WithContext(ctx).First(&key, "id = ?", apiKeyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("api key %s not found", apiKeyID)
		}
		return nil, fmt.Errorf("get api key %s: %w", apiKeyID, err)
	}
	return &key, nil
}

func (r *ProjectRepository) HealthCheck(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("underlying sql.DB: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping: %w", err)
	}
	return nil
}
