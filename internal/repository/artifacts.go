package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sceneforge/core/internal/domain"
)

// ArtifactRepository implements §4.2's typed CRUD plus the
// transactional history-append contract every `*_url` mutation must go
// through.
type ArtifactRepository struct {
	db *gorm.DB
}

func NewArtifactRepository(db *gorm.DB) *ArtifactRepository {
	return &ArtifactRepository{db: db}
}

// UpdateShotKeyframe implements §4.2's core contract: the caller uploads
// first and passes the new URL, then this transactionally updates the
// artifact row AND appends a GenerationHistory entry recording that new
// URL, so the live URL and every earlier one each have a history row
// (the prior URL is not written again). The optimistic-concurrency
// Version column resolves the "concurrent updates... last-writer-wins"
// edge case from §8: a stale Version means someone else won the race,
// and the loser's attempt is still recorded to history before returning
// the conflict.
func (r *ArtifactRepository) UpdateShotKeyframe(ctx context.Context, shotID, newURL, model, prompt string) error {
	var conflicted bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var shot domain.Shot
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&shot, "id = ?", shotID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.NewNotFoundError("shot %s not found", shotID)
			}
			return fmt.Errorf("lock shot %s: %w", shotID, err)
		}

		priorURL := shot.KeyframeURL
		result := tx.Model(&domain.Shot{}).
			Where("id = ? AND version = ?", shotID, shot.Version).
			Updates(map[string]interface{}{
				"keyframe_url": newURL,
				"has_history":  priorURL != "",
				"version":      shot.Version + 1,
			})
		if result.Error != nil {
			return fmt.Errorf("update shot %s: %w", shotID, result.Error)
		}
		conflicted = result.RowsAffected == 0

		history := domain.GenerationHistory{
			ID:           uuid.NewString(),
			ResourceType: domain.ResourceShot,
			ResourceID:   shotID,
			URL:          newURL,
			Prompt:       prompt,
			Model:        model,
		}
		if err := tx.Create(&history).Error; err != nil {
			return fmt.Errorf("append shot history: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if conflicted {
		return domain.NewConflictError("shot %s was modified concurrently", shotID)
	}
	return nil
}

// UpdateSceneImage mirrors UpdateShotKeyframe for Scene.SceneImageURL.
func (r *ArtifactRepository) UpdateSceneImage(ctx context.Context, sceneID, newURL, model, prompt string) error {
	var conflicted bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var scene domain.Scene
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&scene, "id = ?", sceneID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.NewNotFoundError("scene %s not found", sceneID)
			}
			return fmt.Errorf("lock scene %s: %w", sceneID, err)
		}

		priorURL := scene.SceneImageURL
		result := tx.Model(&domain.Scene{}).
			Where("id = ? AND version = ?", sceneID, scene.Version).
			Updates(map[string]interface{}{
				"scene_image_url": newURL,
				"has_history":     priorURL != "",
				"version":         scene.Version + 1,
			})
		if result.Error != nil {
			return fmt.Errorf("update scene %s: %w", sceneID, result.Error)
		}
		conflicted = result.RowsAffected == 0

		history := domain.GenerationHistory{
			ID:           uuid.NewString(),
			ResourceType: domain.ResourceScene,
			ResourceID:   sceneID,
			URL:          newURL,
			Prompt:       prompt,
			Model:        model,
		}
		if err := tx.Create(&history).Error; err != nil {
			return fmt.Errorf("append scene history: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if conflicted {
		return domain.NewConflictError("scene %s was modified concurrently", sceneID)
	}
	return nil
}

// UpdateCharacterAvatar mirrors UpdateShotKeyframe for Character.AvatarURL.
func (r *ArtifactRepository) UpdateCharacterAvatar(ctx context.Context, characterID, newURL, model, prompt string) error {
	var conflicted bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var character domain.Character
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&character, "id = ?", characterID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.NewNotFoundError("character %s not found", characterID)
			}
			return fmt.Errorf("lock character %s: %w", characterID, err)
		}

		priorURL := character.AvatarURL
		result := tx.Model(&domain.Character{}).
			Where("id = ? AND version = ?", characterID, character.Version).
			Updates(map[string]interface{}{
				"avatar_url":  newURL,
				"has_history": priorURL != "",
				"version":     character.Version + 1,
			})
		if result.Error != nil {
			return fmt.Errorf("update character %s: %w", characterID, result.Error)
		}
		conflicted = result.RowsAffected == 0

		history := domain.GenerationHistory{
			ID:           uuid.NewString(),
			ResourceType: domain.ResourceCharacter,
			ResourceID:   characterID,
			URL:          newURL,
			Prompt:       prompt,
			Model:        model,
		}
		if err := tx.Create(&history).Error; err != nil {
			return fmt.Errorf("append character history: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if conflicted {
		return domain.NewConflictError("character %s was modified concurrently", characterID)
	}
	return nil
}

// UpdateTransitionVideo mirrors UpdateShotKeyframe for Transition.VideoURL.
func (r *ArtifactRepository) UpdateTransitionVideo(ctx context.Context, transitionID, newURL, model string) error {
	var conflicted bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var transition domain.Transition
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&transition, "id = ?", transitionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.NewNotFoundError("transition %s not found", transitionID)
			}
			return fmt.Errorf("lock transition %s: %w", transitionID, err)
		}

		priorURL := transition.VideoURL
		result := tx.Model(&domain.Transition{}).
			Where("id = ? AND version = ?", transitionID, transition.Version).
			Updates(map[string]interface{}{
				"video_url":   newURL,
				"status":      domain.TransitionStatusCompleted,
				"has_history": priorURL != "",
				"version":     transition.Version + 1,
			})
		if result.Error != nil {
			return fmt.Errorf("update transition %s: %w", transitionID, result.Error)
		}
		conflicted = result.RowsAffected == 0

		history := domain.GenerationHistory{
			ID:           uuid.NewString(),
			ResourceType: domain.ResourceTransition,
			ResourceID:   transitionID,
			URL:          newURL,
			Model:        model,
		}
		if err := tx.Create(&history).Error; err != nil {
			return fmt.Errorf("append transition history: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if conflicted {
		return domain.NewConflictError("transition %s was modified concurrently", transitionID)
	}
	return nil
}

// CreateCharacter enforces §4.2's exact-match case-sensitive name
// uniqueness: "on conflict, create fails," backed by the
// idx_project_character_name unique index on domain.Character.
func (r *ArtifactRepository) CreateCharacter(ctx context.Context, character *domain.Character) error {
	if err := r.db.WithContext(ctx).Create(character).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.NewConflictError("character %q already exists in project %s", character.Name, character.ProjectID)
		}
		return fmt.Errorf("create character: %w", err)
	}
	return nil
}

// CreateScript, CreateScene, CreateShot and CreateTransition persist the
// structures the text stages (S1/S2/S6) extract. They carry no history
// contract of their own — GenerationHistory only tracks `*_url` fields,
// and these rows start out without one.
func (r *ArtifactRepository) CreateScript(ctx context.Context, script *domain.Script) error {
	if err := r.db.WithContext(ctx).Create(script).Error; err != nil {
		return fmt.Errorf("create script: %w", err)
	}
	return nil
}

func (r *ArtifactRepository) GetScriptByChapter(ctx context.Context, chapterID string) (*domain.Script, error) {
	var script domain.Script
	if err := r.db.WithContext(ctx).Where("chapter_id = ?", chapterID).First(&script).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("script for chapter %s not found", chapterID)
		}
		return nil, fmt.Errorf("get script for chapter %s: %w", chapterID, err)
	}
	return &script, nil
}

func (r *ArtifactRepository) GetScriptByID(ctx context.Context, scriptID string) (*domain.Script, error) {
	var script domain.Script
	if err := r.db.WithContext(ctx).First(&script, "id = ?", scriptID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("script %s not found", scriptID)
		}
		return nil, fmt.Errorf("get script %s: %w", scriptID, err)
	}
	return &script, nil
}

func (r *ArtifactRepository) CreateScene(ctx context.Context, scene *domain.Scene) error {
	if err := r.db.WithContext(ctx).Create(scene).Error; err != nil {
		return fmt.Errorf("create scene: %w", err)
	}
	return nil
}

func (r *ArtifactRepository) CreateShot(ctx context.Context, shot *domain.Shot) error {
	if err := r.db.WithContext(ctx).Create(shot).Error; err != nil {
		return fmt.Errorf("create shot: %w", err)
	}
	return nil
}

func (r *ArtifactRepository) ListShotsByScene(ctx context.Context, sceneID string) ([]domain.Shot, error) {
	var shots []domain.Shot
	if err := r.db.WithContext(ctx).Where("scene_id = ?", sceneID).Order("number").Find(&shots).Error; err != nil {
		return nil, fmt.Errorf("list shots for scene %s: %w", sceneID, err)
	}
	return shots, nil
}

// ListShotsByScript returns every Shot in a Script's Scenes, in overall
// screening order (scene number, then shot number within the scene) —
// the order §4.5's S6 "one per adjacent-shot-pair" fan-out walks.
func (r *ArtifactRepository) ListShotsByScript(ctx context.Context, scriptID string) ([]domain.Shot, error) {
	var shots []domain.Shot
	err := r.db.WithContext(ctx).
		Joins("JOIN scenes ON scenes.id = shots.scene_id").
		Where("scenes.script_id = ?", scriptID).
		Order("scenes.number, shots.number").
		Find(&shots).Error
	if err != nil {
		return nil, fmt.Errorf("list shots for script %s: %w", scriptID, err)
	}
	return shots, nil
}

func (r *ArtifactRepository) CreateTransition(ctx context.Context, transition *domain.Transition) error {
	if err := r.db.WithContext(ctx).Create(transition).Error; err != nil {
		return fmt.Errorf("create transition: %w", err)
	}
	return nil
}

func (r *ArtifactRepository) GetTransition(ctx context.Context, transitionID string) (*domain.Transition, error) {
	var transition domain.Transition
	if err := r.db.WithContext(ctx).First(&transition, "id = ?", transitionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("transition %s not found", transitionID)
		}
		return nil, fmt.Errorf("get transition %s: %w", transitionID, err)
	}
	return &transition, nil
}

// SetTransitionProcessing records the external video-generation task
// handle once S7's submit half succeeds, so the Sweeper (§4.7) knows
// what to poll.
func (r *ArtifactRepository) SetTransitionProcessing(ctx context.Context, transitionID, externalTaskID, apiKeyID, model string) error {
	result := r.db.WithContext(ctx).Model(&domain.Transition{}).
		Where("id = ?", transitionID).
		Updates(map[string]interface{}{
			"status":           domain.TransitionStatusProcessing,
			"external_task_id": externalTaskID,
			"api_key_id":       apiKeyID,
			"model":            model,
		})
	if result.Error != nil {
		return fmt.Errorf("mark transition %s processing: %w", transitionID, result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewNotFoundError("transition %s not found", transitionID)
	}
	return nil
}

// SetTransitionFailed records a terminal video-generation failure (§4.7
// "on terminal failure it writes failed with the normalized error
// message").
func (r *ArtifactRepository) SetTransitionFailed(ctx context.Context, transitionID, errMsg string) error {
	result := r.db.WithContext(ctx).Model(&domain.Transition{}).
		Where("id = ?", transitionID).
		Updates(map[string]interface{}{
			"status":        domain.TransitionStatusFailed,
			"error_message": errMsg,
		})
	if result.Error != nil {
		return fmt.Errorf("mark transition %s failed: %w", transitionID, result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewNotFoundError("transition %s not found", transitionID)
	}
	return nil
}

// ListProcessingTransitions backs the Sweeper's poll loop (§4.7: "polls
// every Transition whose status is processing and whose external_task_id
// is set").
func (r *ArtifactRepository) ListProcessingTransitions(ctx context.Context) ([]domain.Transition, error) {
	var transitions []domain.Transition
	err := r.db.WithContext(ctx).
		Where("status = ? AND external_task_id <> ''", domain.TransitionStatusProcessing).
		Find(&transitions).Error
	if err != nil {
		return nil, fmt.Errorf("list processing transitions: %w", err)
	}
	return transitions, nil
}

func (r *ArtifactRepository) GetCharacter(ctx context.Context, characterID string) (*domain.Character, error) {
	var character domain.Character
	if err := r.db.WithContext(ctx).First(&character, "id = ?", characterID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("character %s not found", characterID)
		}
		return nil, fmt.Errorf("get character %s: %w", characterID, err)
	}
	return &character, nil
}

// GetCharacterByName resolves a Shot.CharacterRefs entry (an exact-match
// name, §3) to its Character row within a Project.
func (r *ArtifactRepository) GetCharacterByName(ctx context.Context, projectID, name string) (*domain.Character, error) {
	var character domain.Character
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND name = ?", projectID, name).
		First(&character).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("character %q not found in project %s", name, projectID)
		}
		return nil, fmt.Errorf("get character %q: %w", name, err)
	}
	return &character, nil
}

func (r *ArtifactRepository) GetShot(ctx context.Context, shotID string) (*domain.Shot, error) {
	var shot domain.Shot
	if err := r.db.WithContext(ctx).First(&shot, "id = ?", shotID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("shot %s not found", shotID)
		}
		return nil, fmt.Errorf("get shot %s: %w", shotID, err)
	}
	return &shot, nil
}

func (r *ArtifactRepository) GetScene(ctx context.Context, sceneID string) (*domain.Scene, error) {
	var scene domain.Scene
	if err := r.db.WithContext(ctx).Preload("Shots").First(&scene, "id = ?", sceneID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("scene %s not found", sceneID)
		}
		return nil, fmt.Errorf("get scene %s: %w", sceneID, err)
	}
	return &scene, nil
}

func (r *ArtifactRepository) ListScenesByScript(ctx context.Context, scriptID string) ([]domain.Scene, error) {
	var scenes []domain.Scene
	if err := r.db.WithContext(ctx).Preload("Shots").Where("script_id = ?", scriptID).Order("number").Find(&scenes).Error; err != nil {
		return nil, fmt.Errorf("list scenes for script %s: %w", scriptID, err)
	}
	return scenes, nil
}

func (r *ArtifactRepository) ListTransitionsByScript(ctx context.Context, scriptID string) ([]domain.Transition, error) {
	var transitions []domain.Transition
	if err := r.db.WithContext(ctx).Where("script_id = ?", scriptID).Order("ordinal").Find(&transitions).Error; err != nil {
		return nil, fmt.Errorf("list transitions for script %s: %w", scriptID, err)
	}
	return transitions, nil
}

func (r *ArtifactRepository) ListCharactersByProject(ctx context.Context, projectID string) ([]domain.Character, error) {
	var characters []domain.Character
	if err := r.db.WithContext(ctx).Where("project_id = ?", projectID).Find(&characters).Error; err != nil {
		return nil, fmt.Errorf("list characters for project %s: %w", projectID, err)
	}
	return characters, nil
}

func (r *ArtifactRepository) ListSentencesByChapter(ctx context.Context, chapterID string) ([]domain.Sentence, error) {
	var sentences []domain.Sentence
	if err := r.db.WithContext(ctx).Where("chapter_id = ?", chapterID).Order("index").Find(&sentences).Error; err != nil {
		return nil, fmt.Errorf("list sentences for chapter %s: %w", chapterID, err)
	}
	return sentences, nil
}

func (r *ArtifactRepository) GetSentence(ctx context.Context, sentenceID string) (*domain.Sentence, error) {
	var sentence domain.Sentence
	if err := r.db.WithContext(ctx).First(&sentence, "id = ?", sentenceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("sentence %s not found", sentenceID)
		}
		return nil, fmt.Errorf("get sentence %s: %w", sentenceID, err)
	}
	return &sentence, nil
}

// UpdateSentenceImage mirrors UpdateShotKeyframe for Sentence.ImageURL.
func (r *ArtifactRepository) UpdateSentenceImage(ctx context.Context, sentenceID, newURL, model, prompt string) error {
	var conflicted bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sentence domain.Sentence
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&sentence, "id = ?", sentenceID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.NewNotFoundError("sentence %s not found", sentenceID)
			}
			return fmt.Errorf("lock sentence %s: %w", sentenceID, err)
		}

		priorURL := sentence.ImageURL
		result := tx.Model(&domain.Sentence{}).
			Where("id = ? AND version = ?", sentenceID, sentence.Version).
			Updates(map[string]interface{}{
				"image_url":   newURL,
				"has_history": priorURL != "",
				"version":     sentence.Version + 1,
			})
		if result.Error != nil {
			return fmt.Errorf("update sentence %s: %w", sentenceID, result.Error)
		}
		conflicted = result.RowsAffected == 0

		history := domain.GenerationHistory{
			ID:           uuid.NewString(),
			ResourceType: domain.ResourceSentence,
			ResourceID:   sentenceID,
			URL:          newURL,
			Prompt:       prompt,
			Model:        model,
		}
		if err := tx.Create(&history).Error; err != nil {
			return fmt.Errorf("append sentence history: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if conflicted {
		return domain.NewConflictError("sentence %s was modified concurrently", sentenceID)
	}
	return nil
}

// UpdateSentenceAudio mirrors UpdateSentenceImage for Sentence.AudioURL,
// additionally recording the true measured duration (§3 invariant: a
// Sentence's DurationMs always reflects its current AudioURL, never a
// stale estimate from a prior generation).
func (r *ArtifactRepository) UpdateSentenceAudio(ctx context.Context, sentenceID, newURL string, durationMs int64, model string) error {
	var conflicted bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sentence domain.Sentence
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&sentence, "id = ?", sentenceID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.NewNotFoundError("sentence %s not found", sentenceID)
			}
			return fmt.Errorf("lock sentence %s: %w", sentenceID, err)
		}

		priorURL := sentence.AudioURL
		result := tx.Model(&domain.Sentence{}).
			Where("id = ? AND version = ?", sentenceID, sentence.Version).
			Updates(map[string]interface{}{
				"audio_url":   newURL,
				"duration_ms": durationMs,
				"has_history": priorURL != "",
				"version":     sentence.Version + 1,
			})
		if result.Error != nil {
			return fmt.Errorf("update sentence %s: %w", sentenceID, result.Error)
		}
		conflicted = result.RowsAffected == 0

		history := domain.GenerationHistory{
			ID:           uuid.NewString(),
			ResourceType: domain.ResourceSentence,
			ResourceID:   sentenceID,
			URL:          newURL,
			Model:        model,
		}
		if err := tx.Create(&history).Error; err != nil {
			return fmt.Errorf("append sentence history: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if conflicted {
		return domain.NewConflictError("sentence %s was modified concurrently", sentenceID)
	}
	return nil
}

// DeleteScript cascades Scenes -> Shots and Transitions per §4.2, then
// marks their GenerationHistory orphaned rather than deleting it.
func (r *ArtifactRepository) DeleteScript(ctx context.Context, scriptID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var scenes []domain.Scene
		if err := tx.Where("script_id = ?", scriptID).Find(&scenes).Error; err != nil {
			return fmt.Errorf("list scenes for delete: %w", err)
		}
		sceneIDs := make([]string, len(scenes))
		for i, s := range scenes {
			sceneIDs[i] = s.ID
		}

		var shots []domain.Shot
		if len(sceneIDs) > 0 {
			if err := tx.Where("scene_id IN ?", sceneIDs).Find(&shots).Error; err != nil {
				return fmt.Errorf("list shots for delete: %w", err)
			}
		}
		shotIDs := make([]string, len(shots))
		for i, sh := range shots {
			shotIDs[i] = sh.ID
		}

		var transitions []domain.Transition
		if err := tx.Where("script_id = ?", scriptID).Find(&transitions).Error; err != nil {
			return fmt.Errorf("list transitions for delete: %w", err)
		}
		transitionIDs := make([]string, len(transitions))
		for i, t := range transitions {
			transitionIDs[i] = t.ID
		}

		if err := orphanHistory(tx, domain.ResourceShot, shotIDs); err != nil {
			return err
		}
		if err := orphanHistory(tx, domain.ResourceScene, sceneIDs); err != nil {
			return err
		}
		if err := orphanHistory(tx, domain.ResourceTransition, transitionIDs); err != nil {
			return err
		}

		if len(shotIDs) > 0 {
			if err := tx.Where("id IN ?", shotIDs).Delete(&domain.Shot{}).Error; err != nil {
				return fmt.Errorf("delete shots: %w", err)
			}
		}
		if len(transitionIDs) > 0 {
			if err := tx.Where("id IN ?", transitionIDs).Delete(&domain.Transition{}).Error; err != nil {
				return fmt.Errorf("delete transitions: %w", err)
			}
		}
		if len(sceneIDs) > 0 {
			if err := tx.Where("id IN ?", sceneIDs).Delete(&domain.Scene{}).Error; err != nil {
				return fmt.Errorf("delete scenes: %w", err)
			}
		}
		if err := tx.Where("id = ?", scriptID).Delete(&domain.Script{}).Error; err != nil {
			return fmt.Errorf("delete script %s: %w", scriptID, err)
		}
		return nil
	})
}

// ListHistory returns every GenerationHistory row for a resource, newest
// first, supporting §8 Scenario F's "browse prior generations" step.
func (r *ArtifactRepository) ListHistory(ctx context.Context, resourceType domain.ResourceType, resourceID string) ([]domain.GenerationHistory, error) {
	var rows []domain.GenerationHistory
	err := r.db.WithContext(ctx).
		Where("resource_type = ? AND resource_id = ?", resourceType, resourceID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list history for %s %s: %w", resourceType, resourceID, err)
	}
	return rows, nil
}

// SelectHistoryEntry restores a GenerationHistory row as the resource's
// live `*_url`, routing through the same transactional Update* method
// every fresh generation uses so the restore itself is recorded as a new
// history entry rather than rewriting the past (§3, §8 Scenario F:
// "selecting an older entry promotes it to current; the previously
// current entry becomes history").
func (r *ArtifactRepository) SelectHistoryEntry(ctx context.Context, resourceType domain.ResourceType, resourceID, historyID string) error {
	var entry domain.GenerationHistory
	err := r.db.WithContext(ctx).
		Where("id = ? AND resource_type = ? AND resource_id = ?", historyID, resourceType, resourceID).
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.NewNotFoundError("history entry %s not found for %s %s", historyID, resourceType, resourceID)
		}
		return fmt.Errorf("load history entry %s: %w", historyID, err)
	}

	switch resourceType {
	case domain.ResourceCharacter:
		return r.UpdateCharacterAvatar(ctx, resourceID, entry.URL, entry.Model, entry.Prompt)
	case domain.ResourceScene:
		return r.UpdateSceneImage(ctx, resourceID, entry.URL, entry.Model, entry.Prompt)
	case domain.ResourceShot:
		return r.UpdateShotKeyframe(ctx, resourceID, entry.URL, entry.Model, entry.Prompt)
	case domain.ResourceTransition:
		return r.UpdateTransitionVideo(ctx, resourceID, entry.URL, entry.Model)
	case domain.ResourceSentence:
		return r.UpdateSentenceImage(ctx, resourceID, entry.URL, entry.Model, entry.Prompt)
	default:
		return domain.NewValidationError("unsupported resource type %q for history select", resourceType)
	}
}

func (r *ArtifactRepository) HealthCheck(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("underlying sql.DB: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping: %w", err)
	}
	return nil
}

func orphanHistory(tx *gorm.DB, resourceType domain.ResourceType, resourceIDs []string) error {
	if len(resourceIDs) == 0 {
		return nil
	}
	err := tx.Model(&domain.GenerationHistory{}).
		Where("resource_type = ? AND resource_id IN ?", resourceType, resourceIDs).
		Update("orphaned", true).Error
	if err != nil {
		return fmt.Errorf("orphan history for %s: %w", resourceType, err)
	}
	return nil
}

// isUniqueViolation matches both Postgres (23505) and MySQL (1062)
// unique-constraint error codes, since the Artifact Repository runs
// against either per §6's DATABASE_URL scheme switch.
func isUniqueViolation(err error) bool {
	msg := err.Error()
	for _, marker := range []string{"23505", "1062", "duplicate key", "Duplicate entry", "UNIQUE constraint"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
