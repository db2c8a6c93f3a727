package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/sceneforge/core/internal/adapters"
	"github.com/sceneforge/core/internal/blobstore"
	"github.com/sceneforge/core/internal/domain"
	"github.com/sceneforge/core/internal/taskstore"
)

// --- S0: extract_characters ---

type extractedCharacter struct {
	Name            string   `json:"name"`
	VisualTraits    string   `json:"visual_traits"`
	KeyVisualTraits []string `json:"key_visual_traits"`
}

type characterExtractionResponse struct {
	Characters []extractedCharacter `json:"characters"`
}

func (d *Dispatcher) handleExtractCharacters(ctx context.Context, task *domain.Task) error {
	p := task.Payload.ExtractCharacters
	chapter, err := d.projects.GetChapter(ctx, p.ChapterID)
	if err != nil {
		return err
	}
	token, err := d.apiKey(ctx, p.APIKeyID)
	if err != nil {
		return err
	}
	model, err := d.registry.TextModel(nonEmpty(p.Model, adapters.DefaultTextModel))
	if err != nil {
		return domain.NewValidationError("%v", err)
	}

	result, err := model.GenerateText(ctx, token, adapters.TextRequest{
		Model:        model.ModelName(),
		SystemPrompt: adapters.CharacterExtractionSystemPrompt,
		UserPrompt:   chapter.Text,
	})
	if err != nil {
		return domain.NewProviderError(err, "extract characters for chapter %s", p.ChapterID)
	}

	var parsed characterExtractionResponse
	if err := json.Unmarshal([]byte(result.Text), &parsed); err != nil {
		return domain.NewMalformedResponseError(err, "character extraction response for chapter %s", p.ChapterID)
	}

	for _, c := range parsed.Characters {
		character := &domain.Character{
			ID:              uuid.NewString(),
			ProjectID:       chapter.ProjectID,
			Name:            c.Name,
			VisualTraits:    c.VisualTraits,
			KeyVisualTraits: c.KeyVisualTraits,
		}
		if err := d.artifacts.CreateCharacter(ctx, character); err != nil {
			return err
		}
	}

	return d.projects.AdvanceChapterStatus(ctx, p.ChapterID, domain.StatusParsed)
}

// --- S1: extract_scenes ---

type extractedScene struct {
	Number   int    `json:"number"`
	Location string `json:"location"`
	Action   string `json:"action"`
}

type sceneExtractionResponse struct {
	Scenes []extractedScene `json:"scenes"`
}

func (d *Dispatcher) handleExtractScenes(ctx context.Context, task *domain.Task) error {
	p := task.Payload.ExtractScenes
	chapter, err := d.projects.GetChapter(ctx, p.ChapterID)
	if err != nil {
		return err
	}
	token, err := d.apiKey(ctx, p.APIKeyID)
	if err != nil {
		return err
	}
	model, err := d.registry.TextModel(nonEmpty(p.Model, adapters.DefaultTextModel))
	if err != nil {
		return domain.NewValidationError("%v", err)
	}

	result, err := model.GenerateText(ctx, token, adapters.TextRequest{
		Model:        model.ModelName(),
		SystemPrompt: adapters.SceneExtractionSystemPrompt,
		UserPrompt:   chapter.Text,
	})
	if err != nil {
		return domain.NewProviderError(err, "extract scenes for chapter %s", p.ChapterID)
	}

	var parsed sceneExtractionResponse
	if err := json.Unmarshal([]byte(result.Text), &parsed); err != nil {
		return domain.NewMalformedResponseError(err, "scene extraction response for chapter %s", p.ChapterID)
	}

	title := chapter.Text
	if len(title) > 64 {
		title = title[:64]
	}
	script := &domain.Script{ID: uuid.NewString(), ChapterID: p.ChapterID, Title: title}
	if err := d.artifacts.CreateScript(ctx, script); err != nil {
		return err
	}
	for _, s := range parsed.Scenes {
		scene := &domain.Scene{
			ID: uuid.NewString(), ScriptID: script.ID, Number: s.Number,
			Location: s.Location, Action: s.Action,
		}
		if err := d.artifacts.CreateScene(ctx, scene); err != nil {
			return err
		}
	}

	return d.projects.AdvanceChapterStatus(ctx, p.ChapterID, domain.StatusScriptGenerated)
}

// --- S2: extract_shots ---

type extractedShot struct {
	Number        int      `json:"number"`
	Dialogue      string   `json:"dialogue"`
	CharacterRefs []string `json:"character_refs"`
	ShotType      string   `json:"shot_type"`
	CameraAngle   string   `json:"camera_angle"`
	CameraMove    string   `json:"camera_move"`
	Lighting      string   `json:"lighting"`
	ColorGrade    string   `json:"color_grade"`
	Mood          string   `json:"mood"`
	VisualStyle   string   `json:"visual_style"`
}

type shotExtractionResponse struct {
	Shots []extractedShot `json:"shots"`
}

func (d *Dispatcher) handleExtractShots(ctx context.Context, task *domain.Task) error {
	p := task.Payload.ExtractShots
	scene, err := d.artifacts.GetScene(ctx, p.SceneID)
	if err != nil {
		return err
	}
	token, err := d.apiKey(ctx, p.APIKeyID)
	if err != nil {
		return err
	}
	model, err := d.registry.TextModel(nonEmpty(p.Model, adapters.DefaultTextModel))
	if err != nil {
		return domain.NewValidationError("%v", err)
	}

	result, err := model.GenerateText(ctx, token, adapters.TextRequest{
		Model:        model.ModelName(),
		SystemPrompt: adapters.ShotExtractionSystemPrompt,
		UserPrompt:   fmt.Sprintf("%s\n\n%s", scene.Location, scene.Action),
	})
	if err != nil {
		return domain.NewProviderError(err, "extract shots for scene %s", p.SceneID)
	}

	var parsed shotExtractionResponse
	if err := json.Unmarshal([]byte(result.Text), &parsed); err != nil {
		return domain.NewMalformedResponseError(err, "shot extraction response for scene %s", p.SceneID)
	}

	for _, s := range parsed.Shots {
		shot := &domain.Shot{
			ID: uuid.NewString(), SceneID: p.SceneID, Number: s.Number,
			Dialogue: s.Dialogue, CharacterRefs: s.CharacterRefs,
			ShotType: domain.ShotType(s.ShotType), CameraAngle: domain.CameraAngle(s.CameraAngle),
			CameraMove: domain.CameraMove(s.CameraMove), Lighting: domain.Lighting(s.Lighting),
			ColorGrade: domain.ColorGrade(s.ColorGrade), Mood: domain.Mood(s.Mood),
			VisualStyle: domain.VisualStyle(s.VisualStyle), Status: "pending",
		}
		if err := d.artifacts.CreateShot(ctx, shot); err != nil {
			return err
		}
	}
	return nil
}

// --- S3: generate_scene_image ---

func (d *Dispatcher) handleGenerateSceneImage(ctx context.Context, task *domain.Task) (string, error) {
	p := task.Payload.GenerateSceneImage
	scene, err := d.artifacts.GetScene(ctx, p.SceneID)
	if err != nil {
		return "", err
	}
	projectID, err := d.projectIDForScript(ctx, scene.ScriptID)
	if err != nil {
		return "", err
	}

	token, err := d.apiKey(ctx, p.APIKeyID)
	if err != nil {
		return "", err
	}
	model, err := d.registry.ImageModel(nonEmpty(p.Model, adapters.DefaultImageModel))
	if err != nil {
		return "", domain.NewValidationError("%v", err)
	}
	result, err := model.GenerateImage(ctx, token, adapters.ImageRequest{Model: model.ModelName(), Prompt: p.Prompt})
	if err != nil {
		return "", domain.NewProviderError(err, "generate scene image for scene %s", p.SceneID)
	}

	url, err := d.rehost(ctx, projectID, "scene-image", result.ImageURL)
	if err != nil {
		return "", err
	}
	if err := d.artifacts.UpdateSceneImage(ctx, p.SceneID, url, model.ModelName(), p.Prompt); err != nil {
		return "", err
	}
	return url, nil
}

// --- S4: generate_character_avatar ---

func (d *Dispatcher) handleGenerateCharacterAvatar(ctx context.Context, task *domain.Task) (string, error) {
	p := task.Payload.GenerateCharacterAvatar
	character, err := d.artifacts.GetCharacter(ctx, p.CharacterID)
	if err != nil {
		return "", err
	}
	token, err := d.apiKey(ctx, p.APIKeyID)
	if err != nil {
		return "", err
	}
	model, err := d.registry.ImageModel(nonEmpty(p.Model, adapters.DefaultImageModel))
	if err != nil {
		return "", domain.NewValidationError("%v", err)
	}
	prompt := character.VisualTraits
	result, err := model.GenerateImage(ctx, token, adapters.ImageRequest{Model: model.ModelName(), Prompt: prompt})
	if err != nil {
		return "", domain.NewProviderError(err, "generate avatar for character %s", p.CharacterID)
	}

	url, err := d.rehost(ctx, character.ProjectID, "character-avatar", result.ImageURL)
	if err != nil {
		return "", err
	}
	if err := d.artifacts.UpdateCharacterAvatar(ctx, p.CharacterID, url, model.ModelName(), prompt); err != nil {
		return "", err
	}
	return url, nil
}

// --- S5: generate_keyframe ---

func (d *Dispatcher) handleGenerateKeyframe(ctx context.Context, task *domain.Task) (string, error) {
	p := task.Payload.GenerateKeyframe
	shot, err := d.artifacts.GetShot(ctx, p.ShotID)
	if err != nil {
		return "", err
	}
	scene, err := d.artifacts.GetScene(ctx, shot.SceneID)
	if err != nil {
		return "", err
	}
	projectID, err := d.projectIDForScript(ctx, scene.ScriptID)
	if err != nil {
		return "", err
	}

	var refs []string
	var traits []string
	for _, name := range p.CharacterRefs {
		character, err := d.artifacts.GetCharacterByName(ctx, projectID, name)
		if err == nil {
			if character.AvatarURL != "" {
				refs = append(refs, character.AvatarURL)
			}
			traits = append(traits, character.VisualTraits)
		}
	}

	token, err := d.apiKey(ctx, p.APIKeyID)
	if err != nil {
		return "", err
	}
	model, err := d.registry.ImageModel(nonEmpty(p.Model, adapters.DefaultImageModel))
	if err != nil {
		return "", domain.NewValidationError("%v", err)
	}
	prompt := adapters.BuildKeyframePrompt(scene.Location, scene.Action, shot.Dialogue, traits)
	result, err := model.GenerateImage(ctx, token, adapters.ImageRequest{
		Model: model.ModelName(), Prompt: prompt, ReferenceURLs: refs,
	})
	if err != nil {
		return "", domain.NewProviderError(err, "generate keyframe for shot %s", p.ShotID)
	}

	url, err := d.rehost(ctx, projectID, "shot-keyframe", result.ImageURL)
	if err != nil {
		return "", err
	}
	if err := d.artifacts.UpdateShotKeyframe(ctx, p.ShotID, url, model.ModelName(), prompt); err != nil {
		return "", err
	}
	return url, nil
}

// --- S6: create_transition ---

func (d *Dispatcher) handleCreateTransition(ctx context.Context, task *domain.Task) error {
	p := task.Payload.CreateTransition
	from, err := d.artifacts.GetShot(ctx, p.FromShotID)
	if err != nil {
		return err
	}
	to, err := d.artifacts.GetShot(ctx, p.ToShotID)
	if err != nil {
		return err
	}
	fromScene, err := d.artifacts.GetScene(ctx, from.SceneID)
	if err != nil {
		return err
	}

	transition := &domain.Transition{
		ID: uuid.NewString(), ScriptID: fromScene.ScriptID, JobID: task.JobID,
		FromShotID: p.FromShotID, ToShotID: p.ToShotID,
		VideoPrompt: adapters.BuildTransitionVideoPrompt(from.Dialogue, to.Dialogue),
		Status:      domain.TransitionStatusPending,
	}
	return d.artifacts.CreateTransition(ctx, transition)
}

// --- S7 submit half: submit_transition_video ---

func (d *Dispatcher) handleSubmitTransitionVideo(ctx context.Context, task *domain.Task) error {
	p := task.Payload.SubmitTransitionVideo
	transition, err := d.artifacts.GetTransition(ctx, p.TransitionID)
	if err != nil {
		return err
	}
	from, err := d.artifacts.GetShot(ctx, transition.FromShotID)
	if err != nil {
		return err
	}
	token, err := d.apiKey(ctx, p.APIKeyID)
	if err != nil {
		return err
	}
	model, err := d.registry.VideoModel(nonEmpty(p.Model, adapters.DefaultVideoModel))
	if err != nil {
		return domain.NewValidationError("%v", err)
	}

	result, err := model.SubmitVideo(ctx, token, adapters.VideoRequest{
		Model: model.ModelName(), Prompt: transition.VideoPrompt,
		StartImageURL: from.KeyframeURL, DurationSeconds: int(domain.TransitionDurationSeconds),
	})
	if err != nil {
		return domain.NewProviderError(err, "submit transition video for transition %s", p.TransitionID)
	}

	return d.artifacts.SetTransitionProcessing(ctx, p.TransitionID, result.ExternalTaskID, p.APIKeyID, model.ModelName())
}

// --- narrative pipeline: generate_sentence_image / generate_sentence_audio ---

func (d *Dispatcher) handleGenerateSentenceImage(ctx context.Context, task *domain.Task) (string, error) {
	p := task.Payload.GenerateSentenceImage
	sentence, err := d.artifacts.GetSentence(ctx, p.SentenceID)
	if err != nil {
		return "", err
	}
	chapter, err := d.projects.GetChapter(ctx, sentence.ChapterID)
	if err != nil {
		return "", err
	}

	token, err := d.apiKey(ctx, p.APIKeyID)
	if err != nil {
		return "", err
	}
	model, err := d.registry.ImageModel(nonEmpty(p.Model, adapters.DefaultImageModel))
	if err != nil {
		return "", domain.NewValidationError("%v", err)
	}
	result, err := model.GenerateImage(ctx, token, adapters.ImageRequest{Model: model.ModelName(), Prompt: p.Prompt})
	if err != nil {
		return "", domain.NewProviderError(err, "generate sentence image for sentence %s", p.SentenceID)
	}

	url, err := d.rehost(ctx, chapter.ProjectID, "sentence-image", result.ImageURL)
	if err != nil {
		return "", err
	}
	if err := d.artifacts.UpdateSentenceImage(ctx, p.SentenceID, url, model.ModelName(), p.Prompt); err != nil {
		return "", err
	}
	return url, nil
}

func (d *Dispatcher) handleGenerateSentenceAudio(ctx context.Context, task *domain.Task) (string, error) {
	p := task.Payload.GenerateSentenceAudio
	sentence, err := d.artifacts.GetSentence(ctx, p.SentenceID)
	if err != nil {
		return "", err
	}
	chapter, err := d.projects.GetChapter(ctx, sentence.ChapterID)
	if err != nil {
		return "", err
	}

	token, err := d.apiKey(ctx, p.APIKeyID)
	if err != nil {
		return "", err
	}
	model, err := d.registry.TTSModel(adapters.DefaultTTSModel)
	if err != nil {
		return "", domain.NewValidationError("%v", err)
	}
	result, err := model.GenerateSpeech(ctx, token, adapters.TTSRequest{VoiceID: p.VoiceID, Text: p.Text})
	if err != nil {
		return "", domain.NewProviderError(err, "generate sentence audio for sentence %s", p.SentenceID)
	}

	key := blobstore.Key(chapter.ProjectID, "sentence-audio", "mp3")
	if err := d.blobs.Put(ctx, key, result.AudioData, "audio/mpeg"); err != nil {
		return "", fmt.Errorf("upload sentence audio %s: %w", p.SentenceID, err)
	}
	if err := d.artifacts.UpdateSentenceAudio(ctx, p.SentenceID, key, result.DurationMs, model.ModelName()); err != nil {
		return "", err
	}
	return key, nil
}

// --- S8 / N1: compose_video / compose_narrative ---

// getOrCreateVideoTask materializes the per-chapter VideoTask record the
// first time a compose task runs for that chapter, so the assembler has
// somewhere to record its stage transitions (§3: "VideoTask — the
// terminal assembly record per chapter").
func (d *Dispatcher) getOrCreateVideoTask(ctx context.Context, chapterID, resolution string, fps int, bgmRef string, bgmVolume float64) (*domain.VideoTask, error) {
	vt, err := d.videos.Get(ctx, chapterID)
	if err == nil {
		return vt, nil
	}
	if !errors.Is(err, taskstore.ErrVideoTaskNotFound) {
		return nil, err
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
		return nil, err
	}
	if err := d.videos.Create(ctx, vt); err != nil {
		return nil, err
	}
	return vt, nil
}

func (d *Dispatcher) handleComposeVideo(ctx context.Context, task *domain.Task) error {
	p := task.Payload.ComposeVideo
	vt, err := d.getOrCreateVideoTask(ctx, p.ChapterID, p.Resolution, p.FPS, p.BGMRef, p.BGMVolume)
	if err != nil {
		return err
	}
	if err := d.movie.Assemble(ctx, vt); err != nil {
		return err
	}
	return nil
}

func (d *Dispatcher) handleComposeNarrative(ctx context.Context, task *domain.Task) error {
	p := task.Payload.ComposeNarrative
	vt, err := d.getOrCreateVideoTask(ctx, p.ChapterID, p.Resolution, p.FPS, p.BGMRef, p.BGMVolume)
	if err != nil {
		return err
	}
	if err := d.narrative.Assemble(ctx, vt); err != nil {
		return err
	}
	return nil
}

// projectIDForScript walks Script -> Chapter -> Project, the chain every
// scene/shot-scoped handler needs to resolve a Blob Store key and a
// Character name lookup, both of which are scoped by project_id rather
// than by script_id (§4.2: Character uniqueness is per-Project, not
// per-Script, since a Project's Characters are shared across Chapters).
func (d *Dispatcher) projectIDForScript(ctx context.Context, scriptID string) (string, error) {
	script, err := d.artifacts.GetScriptByID(ctx, scriptID)
	if err != nil {
		return "", err
	}
	chapter, err := d.projects.GetChapter(ctx, script.ChapterID)
	if err != nil {
		return "", err
	}
	return chapter.ProjectID, nil
}

// rehost re-uploads a provider-hosted image into the Blob Store Gateway
// under the project's key convention, since a generated image's provider
// URL is only guaranteed reachable for a limited window and every other
// artifact is addressed by blob key rather than a third-party URL that
// can expire (§4.3).
func (d *Dispatcher) rehost(ctx context.Context, projectID, artifactType, providerURL string) (string, error) {
	data, err := fetchURL(ctx, providerURL)
	if err != nil {
		return "", domain.NewProviderError(err, "download %s from provider", artifactType)
	}
	key := blobstore.Key(projectID, artifactType, "png")
	if err := d.blobs.Put(ctx, key, data, "image/png"); err != nil {
		return "", fmt.Errorf("upload %s: %w", artifactType, err)
	}
	return key, nil
}

func fetchURL(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %s", url, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

func nonEmpty(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
