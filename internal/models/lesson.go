package models

import "time"

const (
	LessonStatusActive   = "active"
	LessonStatusArchived = "archived"
)

// LessonModel is one synthesized lesson in the append-only learning log.
// LessonID is a monotonically increasing integer allocated from a persisted
// counter; ids are never reused, even after a lesson is archived.
type LessonModel struct {
	Base
	LessonID           int         `json:"lesson_id"            gorm:"uniqueIndex;not null"`
	OriginCritiqueIDs  StringArray `json:"origin_critique_ids"  gorm:"type:longtext"`
	Insight            string      `json:"insight"              gorm:"type:text"`
	Category           string      `json:"category"             gorm:"index;default:'general'"`
	Priority           string      `json:"priority"             gorm:"default:'medium'"`
	ActionableGuidance string      `json:"actionable_guidance"  gorm:"type:text"`
	SupportingEvidence string      `json:"supporting_evidence"  gorm:"type:text"`
	AppliedCount       int         `json:"applied_count"        gorm:"default:0"`
	EffectivenessScore *float64    `json:"effectiveness_score"`
	Status             string      `json:"status"               gorm:"default:'active';index"`
	SynthesizedAt      time.Time   `json:"synthesized_at"`
}

func (LessonModel) TableName() string { return "lessons" }
