package domain

import "time"

// Character is project-scoped; its Name is unique within a Project and is
// referenced from Shots by exact-string match (§3, no fuzzy resolution).
type Character struct {
	ID              string      `gorm:"primaryKey;size:36" json:"id"`
	ProjectID       string      `gorm:"uniqueIndex:idx_project_character_name;size:36" json:"project_id"`
	Name            string      `gorm:"uniqueIndex:idx_project_character_name;size:255" json:"name"`
	VisualTraits    string      `gorm:"type:text" json:"visual_traits"`
	KeyVisualTraits StringSlice `gorm:"type:text" json:"key_visual_traits,omitempty"`
	AvatarURL       string      `gorm:"size:1024" json:"avatar_url,omitempty"`
	GeneratedPrompt string      `gorm:"type:text" json:"generated_prompt,omitempty"` // three-view reference prompt
	HasHistory      bool        `json:"has_history"`
	Version         int         `gorm:"default:1" json:"version"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}
