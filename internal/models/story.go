package models

// StoryModel is a generated or seed children's story.
// Content is immutable once a critique references it; critiques point at the id.
type StoryModel struct {
	Base
	Title   string `json:"title"`
	Content string `json:"content" gorm:"type:longtext;not null"`
	Version int    `json:"version" gorm:"default:1"`
	IsSeed  bool   `json:"is_seed" gorm:"default:false;index"`

	// Embedding is NULL until the story has been through the embedding stage.
	Embedding            FloatVector `json:"-"                               gorm:"type:longtext"`
	IllustrationTemplate JSONMap     `json:"illustration_template,omitempty" gorm:"type:longtext"`
}

func (StoryModel) TableName() string { return "stories" }

// HasEmbedding reports whether the story went through the embedding stage.
func (s StoryModel) HasEmbedding() bool { return len(s.Embedding) > 0 }
