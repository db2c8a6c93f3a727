package domain

import "time"

// GenerationHistory is an append-only per-artifact log keyed by
// (ResourceType, ResourceID). Selecting an entry mutates the live artifact
// to point at the historical URL; the current live entry becomes one more
// history row (§3, §8 scenario F). History rows never point upward — they
// are identified by ID only, never by pointer, per the spec's design note
// on avoiding cyclic references (§9).
// ResourceType names the artifact kind a GenerationHistory row belongs to.
type ResourceType string

type GenerationHistory struct {
	ID           string       `gorm:"primaryKey;size:36" json:"id"`
	ResourceType ResourceType `gorm:"index:idx_history_resource;size:32" json:"resource_type"`
	ResourceID   string       `gorm:"index:idx_history_resource;size:36" json:"resource_id"`
	URL          string       `gorm:"size:1024" json:"url"`
	Prompt       string       `gorm:"type:text" json:"prompt,omitempty"`
	Model        string       `gorm:"size:128" json:"model,omitempty"`
	Orphaned     bool         `json:"orphaned"` // set when the parent artifact is deleted; row is preserved
	CreatedAt    time.Time    `json:"created_at"`
}

// ResourceType constants match the Artifact Repository's typed CRUD
// surface (§4.2).
const (
	ResourceCharacter  ResourceType = "character"
	ResourceScene      ResourceType = "scene"
	ResourceShot       ResourceType = "shot"
	ResourceTransition ResourceType = "transition"
	ResourceSentence   ResourceType = "sentence"
)
