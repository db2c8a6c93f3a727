package domain

// TaskPayload is the tagged union described in spec §9: "model tasks as a
// tagged union... A task dispatcher pattern-matches to the handler. Avoids
// reflection entirely." Kind selects which of the pointer fields is
// populated; exactly one is non-nil for any given Task. DynamoDB persists
// this as a nested map (attributevalue marshals the non-nil branch); the
// dispatcher switches on Kind, never on a Go type assertion across an
// interface{}.
type TaskPayload struct {
	Kind TaskKind `dynamodbav:"kind" json:"kind"`

	ExtractCharacters      *ExtractCharactersPayload      `dynamodbav:"extract_characters,omitempty" json:"extract_characters,omitempty"`
	ExtractScenes          *ExtractScenesPayload          `dynamodbav:"extract_scenes,omitempty" json:"extract_scenes,omitempty"`
	ExtractShots           *ExtractShotsPayload           `dynamodbav:"extract_shots,omitempty" json:"extract_shots,omitempty"`
	GenerateSceneImage     *GenerateSceneImagePayload     `dynamodbav:"generate_scene_image,omitempty" json:"generate_scene_image,omitempty"`
	GenerateCharacterAvatar *GenerateCharacterAvatarPayload `dynamodbav:"generate_character_avatar,omitempty" json:"generate_character_avatar,omitempty"`
	GenerateKeyframe       *GenerateKeyframePayload       `dynamodbav:"generate_keyframe,omitempty" json:"generate_keyframe,omitempty"`
	CreateTransition       *CreateTransitionPayload       `dynamodbav:"create_transition,omitempty" json:"create_transition,omitempty"`
	SubmitTransitionVideo  *SubmitTransitionVideoPayload  `dynamodbav:"submit_transition_video,omitempty" json:"submit_transition_video,omitempty"`
	PollTransitionVideo    *PollTransitionVideoPayload    `dynamodbav:"poll_transition_video,omitempty" json:"poll_transition_video,omitempty"`
	ComposeVideo           *ComposeVideoPayload           `dynamodbav:"compose_video,omitempty" json:"compose_video,omitempty"`
	GenerateSentenceImage  *GenerateSentenceImagePayload  `dynamodbav:"generate_sentence_image,omitempty" json:"generate_sentence_image,omitempty"`
	GenerateSentenceAudio  *GenerateSentenceAudioPayload  `dynamodbav:"generate_sentence_audio,omitempty" json:"generate_sentence_audio,omitempty"`
	ComposeNarrative       *ComposeNarrativePayload       `dynamodbav:"compose_narrative,omitempty" json:"compose_narrative,omitempty"`
}

type ExtractCharactersPayload struct {
	ChapterID string `dynamodbav:"chapter_id" json:"chapter_id"`
	APIKeyID  string `dynamodbav:"api_key_id" json:"api_key_id"`
	Model     string `dynamodbav:"model" json:"model"`
}

type ExtractScenesPayload struct {
	ChapterID string `dynamodbav:"chapter_id" json:"chapter_id"`
	APIKeyID  string `dynamodbav:"api_key_id" json:"api_key_id"`
	Model     string `dynamodbav:"model" json:"model"`
}

type ExtractShotsPayload struct {
	SceneID  string `dynamodbav:"scene_id" json:"scene_id"`
	APIKeyID string `dynamodbav:"api_key_id" json:"api_key_id"`
	Model    string `dynamodbav:"model" json:"model"`
}

type GenerateSceneImagePayload struct {
	SceneID  string `dynamodbav:"scene_id" json:"scene_id"`
	APIKeyID string `dynamodbav:"api_key_id" json:"api_key_id"`
	Model    string `dynamodbav:"model" json:"model"`
	Prompt   string `dynamodbav:"prompt" json:"prompt"`
}

type GenerateCharacterAvatarPayload struct {
	CharacterID string `dynamodbav:"character_id" json:"character_id"`
	APIKeyID    string `dynamodbav:"api_key_id" json:"api_key_id"`
	Model       string `dynamodbav:"model" json:"model"`
}

type GenerateKeyframePayload struct {
	ShotID        string   `dynamodbav:"shot_id" json:"shot_id"`
	APIKeyID      string   `dynamodbav:"api_key_id" json:"api_key_id"`
	Model         string   `dynamodbav:"model" json:"model"`
	Prompt        string   `dynamodbav:"prompt" json:"prompt"`
	CharacterRefs []string `dynamodbav:"character_refs,omitempty" json:"character_refs,omitempty"`
}

type CreateTransitionPayload struct {
	FromShotID string `dynamodbav:"from_shot_id" json:"from_shot_id"`
	ToShotID   string `dynamodbav:"to_shot_id" json:"to_shot_id"`
	APIKeyID   string `dynamodbav:"api_key_id" json:"api_key_id"`
	Model      string `dynamodbav:"model" json:"model"`
}

type SubmitTransitionVideoPayload struct {
	TransitionID string `dynamodbav:"transition_id" json:"transition_id"`
	APIKeyID     string `dynamodbav:"api_key_id" json:"api_key_id"`
	Model        string `dynamodbav:"model" json:"model"`
}

type PollTransitionVideoPayload struct {
	TransitionID   string `dynamodbav:"transition_id" json:"transition_id"`
	APIKeyID       string `dynamodbav:"api_key_id" json:"api_key_id"`
	Model          string `dynamodbav:"model" json:"model"`
	ExternalTaskID string `dynamodbav:"external_task_id" json:"external_task_id"`
}

type ComposeVideoPayload struct {
	ChapterID   string  `dynamodbav:"chapter_id" json:"chapter_id"`
	Resolution  string  `dynamodbav:"resolution" json:"resolution"`
	FPS         int     `dynamodbav:"fps" json:"fps"`
	BGMRef      string  `dynamodbav:"bgm_ref,omitempty" json:"bgm_ref,omitempty"`
	BGMVolume   float64 `dynamodbav:"bgm_volume" json:"bgm_volume"`
}

type GenerateSentenceImagePayload struct {
	SentenceID string `dynamodbav:"sentence_id" json:"sentence_id"`
	APIKeyID   string `dynamodbav:"api_key_id" json:"api_key_id"`
	Model      string `dynamodbav:"model" json:"model"`
	Prompt     string `dynamodbav:"prompt" json:"prompt"`
}

type GenerateSentenceAudioPayload struct {
	SentenceID string `dynamodbav:"sentence_id" json:"sentence_id"`
	APIKeyID   string `dynamodbav:"api_key_id" json:"api_key_id"`
	VoiceID    string `dynamodbav:"voice_id" json:"voice_id"`
	Text       string `dynamodbav:"text" json:"text"`
}

type ComposeNarrativePayload struct {
	ChapterID  string  `dynamodbav:"chapter_id" json:"chapter_id"`
	Resolution string  `dynamodbav:"resolution" json:"resolution"`
	FPS        int     `dynamodbav:"fps" json:"fps"`
	BGMRef     string  `dynamodbav:"bgm_ref,omitempty" json:"bgm_ref,omitempty"`
	BGMVolume  float64 `dynamodbav:"bgm_volume" json:"bgm_volume"`
}
