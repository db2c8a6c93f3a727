package domain

import "time"

// Sentence is an ordered leaf of a Chapter's text in the narrative
// pipeline; it owns at most one SentenceAsset (§3).
type Sentence struct {
	ID        string `gorm:"primaryKey;size:36" json:"id"`
	ChapterID string `gorm:"index;size:36" json:"chapter_id"`
	Index     int    `json:"index"`
	Text      string `gorm:"type:text" json:"text"`

	ImagePrompt  string `gorm:"type:text" json:"image_prompt,omitempty"`
	VoicePrompt  string `gorm:"type:text" json:"voice_prompt,omitempty"`
	ImageURL     string `gorm:"size:1024" json:"image_url,omitempty"`
	AudioURL     string `gorm:"size:1024" json:"audio_url,omitempty"`
	DurationMs   int64  `json:"duration_ms,omitempty"` // true measured length of AudioURL, §3 invariant
	SubtitleText string `gorm:"type:text" json:"subtitle_text,omitempty"`

	Status     string    `gorm:"size:32" json:"status"`
	HasHistory bool      `json:"has_history"`
	Version    int       `gorm:"default:1" json:"version"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
