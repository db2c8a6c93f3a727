package domain

import "time"

// PipelineStatus is the monotonic state a Chapter's production progresses
// through (§3, §8 invariant 3). Backward transitions are rejected:
// CanAdvance never allows a lower ordinal, and no reset operation exists.
type PipelineStatus string

const (
	StatusDraft               PipelineStatus = "draft"
	StatusParsed              PipelineStatus = "parsed"
	StatusScriptGenerated     PipelineStatus = "script_generated"
	StatusMaterialsPrepared   PipelineStatus = "materials_prepared"
	StatusCompleted           PipelineStatus = "completed"
	StatusFailed              PipelineStatus = "failed" // terminal sink, reachable from any state
)

// statusOrder gives the ordinal of every non-sink status; StatusFailed has
// no ordinal because it is reachable from anywhere and is not part of the
// monotonic chain.
var statusOrder = map[PipelineStatus]int{
	StatusDraft:             0,
	StatusParsed:            1,
	StatusScriptGenerated:   2,
	StatusMaterialsPrepared: 3,
	StatusCompleted:         4,
}

// CanAdvance reports whether moving from `from` to `to` is a legal forward
// transition (or a move into the failed sink, which is always legal).
func CanAdvance(from, to PipelineStatus) bool {
	if to == StatusFailed {
		return true
	}
	fromOrd, fromOK := statusOrder[from]
	toOrd, toOK := statusOrder[to]
	if !fromOK || !toOK {
		return false
	}
	return toOrd > fromOrd
}

// Chapter is an ordered slice of text belonging to a Project; it is the
// unit of production (§3).
type Chapter struct {
	ID        string         `gorm:"primaryKey;size:36" json:"id"`
	ProjectID string         `gorm:"index;size:36" json:"project_id"`
	Index     int            `json:"index"` // ordering within the Project
	Text      string         `gorm:"type:text" json:"text"`
	Status    PipelineStatus `gorm:"size:32" json:"status"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`

	Script    *Script    `gorm:"constraint:OnDelete:CASCADE" json:"script,omitempty"`
	Sentences []Sentence `gorm:"constraint:OnDelete:CASCADE" json:"sentences,omitempty"`
}
