package story

import (
	"time"

	"github.com/cuentacuentos/core/internal/modules/prompt"
)

// GenerateInput is the modern generation brief.
type GenerateInput struct {
	Theme           string   `json:"theme" binding:"required"`
	CharacterNames  []string `json:"character_names,omitempty"`
	MoralLesson     string   `json:"moral_lesson,omitempty"`
	SpecialElements string   `json:"special_elements,omitempty"`
	TargetAge       int      `json:"target_age,omitempty"`
}

// CreateInput creates a story directly, e.g. when importing seed stories.
type CreateInput struct {
	Title        string         `json:"title" binding:"required"`
	Content      string         `json:"content" binding:"required"`
	IsSeed       bool           `json:"is_seed"`
	PromptInputs *prompt.Inputs `json:"prompt_inputs,omitempty"`
}

// CritiqueInput records a manual critique for a story.
type CritiqueInput struct {
	StoryID      string  `json:"story_id" binding:"required"`
	CritiqueText string  `json:"critique_text" binding:"required"`
	Score        float64 `json:"score" binding:"required,gte=1,lte=10"`
}

// Response is the story payload returned by the API. PromptUsed is only set
// on the generation and creation paths.
type Response struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	Version    int       `json:"version"`
	IsSeed     bool      `json:"is_seed"`
	CreatedAt  time.Time `json:"created_at"`
	PromptUsed string    `json:"prompt_used,omitempty"`
}
