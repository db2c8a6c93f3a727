package domain

import "time"

// ProjectType selects which stage graph a Project's Chapters run through.
type ProjectType string

const (
	ProjectNarrative ProjectType = "narrative" // image + voiceover explanation video
	ProjectMovie      ProjectType = "movie"     // multi-shot stylized film
)

// Project is a user-owned container that exclusively owns a set of Chapters.
type Project struct {
	ID        string      `gorm:"primaryKey;size:36" json:"id"`
	OwnerID   string      `gorm:"index;size:64" json:"owner_id"`
	Name      string      `gorm:"size:255" json:"name"`
	Type      ProjectType `gorm:"size:32" json:"type"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`

	Chapters   []Chapter   `gorm:"constraint:OnDelete:CASCADE" json:"chapters,omitempty"`
	Characters []Character `gorm:"constraint:OnDelete:CASCADE" json:"characters,omitempty"`
}
