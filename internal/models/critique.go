package models

// CritiqueModel is an append-only evaluation of one story.
// CritiqueText carries the full structured provider payload as JSON; Score is the
// model-supplied overall score (1-10), an independent field, not derivable from
// the sub-scores.
type CritiqueModel struct {
	Base
	StoryID      string  `json:"story_id"      gorm:"type:char(36);index;not null"`
	CritiqueText string  `json:"critique_text" gorm:"type:longtext;not null"`
	Score        float64 `json:"score"`
}

func (CritiqueModel) TableName() string { return "critiques" }
