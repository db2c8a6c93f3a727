package adapters

import "fmt"

// System prompts for the S0-S2 extraction stages, adapted from the
// teacher's ad_script_prompt.go: same "respond with ONLY valid JSON"
// discipline and enum-constrained schema, retargeted from ad scenes to
// chapter characters/scenes/shots.

const CharacterExtractionSystemPrompt = `You are a script analyst extracting recurring characters from narrative text for a video production pipeline.

Respond with ONLY valid JSON matching this schema, no explanatory text:

{
  "characters": [
    {
      "name": "string - character's name as it appears in the text",
      "visual_traits": "string - 1-2 sentence physical description usable for image generation",
      "key_visual_traits": ["string", "string"]
    }
  ]
}

Rules:
- Only include characters who appear in more than one scene or who are named explicitly.
- Do not invent physical details the text does not imply or strongly suggest.
- Keep visual_traits consistent across every occurrence of the same character.`

const SceneExtractionSystemPrompt = `You are a script supervisor breaking a chapter's prose into discrete visual scenes.

Respond with ONLY valid JSON matching this schema:

{
  "scenes": [
    {
      "number": number - 1-indexed scene order,
      "location": "string - e.g. 'INT. KITCHEN - NIGHT'",
      "action": "string - 2-4 sentences describing what happens in the scene"
    }
  ]
}

Rules:
- A scene boundary is a change in location or a significant time jump.
- Preserve narrative order.
- Do not summarize across scene boundaries.`

const ShotExtractionSystemPrompt = `You are a cinematographer breaking a scene's action into individual shots.

Respond with ONLY valid JSON matching this schema:

{
  "shots": [
    {
      "number": number - 1-indexed shot order within the scene,
      "dialogue": "string - spoken line, empty if none",
      "character_refs": ["string - character name"],
      "shot_type": "enum - one of: extreme_wide_shot, wide_shot, full_shot, medium_shot, medium_close_up, close_up, extreme_close_up, over_shoulder_shot, two_shot, insert_shot",
      "camera_angle": "enum - one of: eye_level, high_angle, low_angle, dutch_angle, birds_eye, worms_eye",
      "camera_move": "enum - one of: static, pan_left, pan_right, tilt_up, tilt_down, dolly_in, dolly_out, handheld, tracking, crane_up, crane_down",
      "lighting": "enum - one of: natural_light, golden_hour, blue_hour, studio_lighting, dramatic_lighting, soft_lighting, low_key, high_key, silhouette",
      "color_grade": "enum - one of: natural, warm_tones, cool_tones, teal_orange, desaturated, vibrant, monochrome, cinematic",
      "mood": "enum - one of: energetic, calm, dramatic, inspiring, mysterious, playful, sophisticated, nostalgic, urgent, intimate, epic",
      "visual_style": "enum - one of: cinematic, documentary, minimalist, commercial, editorial, lifestyle, gritty, dreamy"
    }
  ]
}

Rules:
- Every line of dialogue gets its own shot.
- Vary shot type and camera move across consecutive shots unless the scene calls for repetition.
- character_refs must only name characters already established for this chapter.`

// BuildKeyframePrompt composes an image-generation prompt for a shot's
// keyframe, folding in character visual traits the way the teacher's
// buildUserPrompt folds in style/brand context.
func BuildKeyframePrompt(sceneLocation, sceneAction, shotDialogue string, characterTraits []string) string {
	prompt := fmt.Sprintf("%s. %s.", sceneLocation, sceneAction)
	if shotDialogue != "" {
		prompt += fmt.Sprintf(" Dialogue: %q.", shotDialogue)
	}
	for _, t := range characterTraits {
		prompt += " " + t
	}
	return prompt
}

// BuildTransitionVideoPrompt composes the prompt for the shot-to-shot
// transition clip (§4.5 S6), describing the motion between two
// keyframes rather than a single static image.
func BuildTransitionVideoPrompt(fromAction, toAction string) string {
	return fmt.Sprintf("Smooth cinematic transition: %s, moving into %s.", fromAction, toAction)
}
