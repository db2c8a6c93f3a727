package domain

import "time"

// Script is the movie-pipeline production plan for a Chapter: one per
// Chapter, owning an ordered set of Scenes (§3).
type Script struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	ChapterID string    `gorm:"uniqueIndex;size:36" json:"chapter_id"`
	Title     string    `gorm:"size:255" json:"title"`
	Version   int       `gorm:"default:1" json:"version"` // optimistic-concurrency column, §5
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Scenes []Scene `gorm:"constraint:OnDelete:CASCADE" json:"scenes,omitempty"`
}

// Scene is ordered within a Script; has an environment-only image and owns
// ordered Shots (§3).
type Scene struct {
	ID            string    `gorm:"primaryKey;size:36" json:"id"`
	ScriptID      string    `gorm:"index;size:36" json:"script_id"`
	Number        int       `json:"number"`
	Location      string    `gorm:"size:255" json:"location"`
	Action        string    `gorm:"type:text" json:"action"`
	SceneImageURL string    `gorm:"size:1024" json:"scene_image_url,omitempty"`
	HasHistory    bool      `json:"has_history"`
	Version       int       `gorm:"default:1" json:"version"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	Shots []Shot `gorm:"constraint:OnDelete:CASCADE" json:"shots,omitempty"`
}

// Shot is ordered within a Scene; the smallest filmable unit. Its keyframe
// must be generatable independently of its dialogue (§3 invariant).
type Shot struct {
	ID            string      `gorm:"primaryKey;size:36" json:"id"`
	SceneID       string      `gorm:"index;size:36" json:"scene_id"`
	Number        int         `json:"number"`
	KeyframeURL   string      `gorm:"size:1024" json:"keyframe_url,omitempty"`
	Dialogue      string      `gorm:"type:text" json:"dialogue,omitempty"`
	CharacterRefs StringSlice `gorm:"type:text" json:"character_refs,omitempty"` // exact-match names, §3
	ShotType      ShotType    `gorm:"size:32" json:"shot_type"`
	CameraAngle   CameraAngle `gorm:"size:32" json:"camera_angle"`
	CameraMove    CameraMove  `gorm:"size:32" json:"camera_move"`
	Lighting      Lighting    `gorm:"size:32" json:"lighting"`
	ColorGrade    ColorGrade  `gorm:"size:32" json:"color_grade"`
	Mood          Mood        `gorm:"size:32" json:"mood"`
	VisualStyle   VisualStyle `gorm:"size:32" json:"visual_style"`
	Status        string      `gorm:"size:32" json:"status"` // pending, processing, completed, failed
	HasHistory    bool        `json:"has_history"`
	Version       int         `gorm:"default:1" json:"version"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// Transition is a directed edge between two consecutive Shots within a
// Script; exactly one exists per consecutive ordered Shot pair (§3).
type Transition struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	ScriptID       string    `gorm:"index;size:36" json:"script_id"`
	JobID          string    `gorm:"index;size:36" json:"job_id"` // the Job whose task tree owns this Transition's poll task
	FromShotID     string    `gorm:"index;size:36" json:"from_shot_id"`
	ToShotID       string    `gorm:"index;size:36" json:"to_shot_id"`
	Ordinal        int       `json:"ordinal"` // position among the Script's transitions, ordered
	VideoPrompt    string    `gorm:"type:text" json:"video_prompt"`
	VideoURL       string    `gorm:"size:1024" json:"video_url,omitempty"`
	Status         string    `gorm:"size:32" json:"status"` // pending, processing, completed, failed
	APIKeyID       string    `gorm:"size:36" json:"api_key_id,omitempty"`       // carried from submit, reused by the Sweeper's poll call
	Model          string    `gorm:"size:64" json:"model,omitempty"`            // video model the submit call used, reused by the Sweeper
	ExternalTaskID string    `gorm:"size:128" json:"external_task_id,omitempty"`
	ErrorMessage   string    `gorm:"type:text" json:"error_message,omitempty"`
	HasHistory     bool      `json:"has_history"`
	Version        int       `gorm:"default:1" json:"version"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

const (
	TransitionStatusPending    = "pending"
	TransitionStatusProcessing = "processing"
	TransitionStatusCompleted  = "completed"
	TransitionStatusFailed     = "failed"
)

// TransitionDurationSeconds is the generated length of every Transition
// video (§3 glossary: "an 8-second interpolated video").
const TransitionDurationSeconds = 8.0

// --- CINEMATOGRAPHY ENUMS (industry-standard terminology) ---
// Kept from the teacher's scene-description vocabulary; Shots here draw
// from the identical taxonomy.

type ShotType string

const (
	ShotExtremeWide  ShotType = "extreme_wide_shot"
	ShotWide         ShotType = "wide_shot"
	ShotFull         ShotType = "full_shot"
	ShotCowboy       ShotType = "cowboy_shot"
	ShotMedium       ShotType = "medium_shot"
	ShotMediumClose  ShotType = "medium_close_up"
	ShotCloseUp      ShotType = "close_up"
	ShotExtremeClose ShotType = "extreme_close_up"
	ShotOverShoulder ShotType = "over_shoulder_shot"
	ShotTwoShot      ShotType = "two_shot"
	ShotInsert       ShotType = "insert_shot"
)

type CameraAngle string

const (
	AngleEyeLevel CameraAngle = "eye_level"
	AngleHigh     CameraAngle = "high_angle"
	AngleLow      CameraAngle = "low_angle"
	AngleDutch    CameraAngle = "dutch_angle"
	AngleBirdsEye CameraAngle = "birds_eye"
	AngleWorms    CameraAngle = "worms_eye"
	AngleShoulder CameraAngle = "shoulder_level"
)

type CameraMove string

const (
	MoveStatic    CameraMove = "static"
	MovePanLeft   CameraMove = "pan_left"
	MovePanRight  CameraMove = "pan_right"
	MoveTiltUp    CameraMove = "tilt_up"
	MoveTiltDown  CameraMove = "tilt_down"
	MoveDollyIn   CameraMove = "dolly_in"
	MoveDollyOut  CameraMove = "dolly_out"
	MoveHandheld  CameraMove = "handheld"
	MoveSteadycam CameraMove = "steadycam"
	MoveTracking  CameraMove = "tracking"
	MoveDrone     CameraMove = "drone_aerial"
)

type Lighting string

const (
	LightNatural    Lighting = "natural_light"
	LightGoldenHour Lighting = "golden_hour"
	LightStudio     Lighting = "studio_lighting"
	LightDramatic   Lighting = "dramatic_lighting"
	LightSoft       Lighting = "soft_lighting"
	LightBacklit    Lighting = "backlit"
	LightLowKey     Lighting = "low_key"
	LightHighKey    Lighting = "high_key"
	LightPractical  Lighting = "practical_lighting"
	LightSilhouette Lighting = "silhouette"
)

type ColorGrade string

const (
	GradeNatural     ColorGrade = "natural"
	GradeWarm        ColorGrade = "warm_tones"
	GradeCool        ColorGrade = "cool_tones"
	GradeTealOrange  ColorGrade = "teal_orange"
	GradeDesaturated ColorGrade = "desaturated"
	GradeVibrant     ColorGrade = "vibrant"
	GradeMonochrome  ColorGrade = "monochrome"
	GradeCinematic   ColorGrade = "cinematic"
)

type Mood string

const (
	MoodEnergetic  Mood = "energetic"
	MoodCalm       Mood = "calm"
	MoodDramatic   Mood = "dramatic"
	MoodMysterious Mood = "mysterious"
	MoodPlayful    Mood = "playful"
	MoodIntimate   Mood = "intimate"
	MoodEpic       Mood = "epic"
)

type VisualStyle string

const (
	StyleCinematic   VisualStyle = "cinematic"
	StyleDocumentary VisualStyle = "documentary"
	StyleMinimalist  VisualStyle = "minimalist"
	StyleLifestyle   VisualStyle = "lifestyle"
	StyleGritty      VisualStyle = "gritty"
	StyleDreamy      VisualStyle = "dreamy"
)
