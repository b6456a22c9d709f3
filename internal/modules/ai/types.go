package ai

import "errors"

var (
	// ErrUnconfigured means no enabled provider can serve the requested task.
	ErrUnconfigured = errors.New("no enabled AI provider")

	// ErrMalformedResult means the provider answered but not with the JSON
	// shape the task demands.
	ErrMalformedResult = errors.New("malformed AI result")
)

// GeneratedStory is the strict JSON shape the generation task must return.
type GeneratedStory struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// CritiqueEvaluation carries the per-dimension scores of a critique, each on
// a 1-10 scale. Overall is the model's own judgment of the whole story, not
// necessarily the mean of the sub-scores.
type CritiqueEvaluation struct {
	Coherence          float64 `json:"score_coherence"`
	Pacing             float64 `json:"score_pacing"`
	AgeAppropriateness float64 `json:"score_age_appropriateness"`
	Overall            float64 `json:"overall_score"`
}

// CritiqueFeedback is the structured feedback block inside a critique.
type CritiqueFeedback struct {
	Strengths   []string `json:"strengths"`
	Weaknesses  []string `json:"weaknesses"`
	Suggestions []string `json:"suggestions"`
}

// CritiqueResult is the parsed critique payload. Raw preserves the exact
// provider JSON, which is what gets persisted.
type CritiqueResult struct {
	Evaluation CritiqueEvaluation `json:"evaluation"`
	Feedback   CritiqueFeedback   `json:"feedback"`
	Summary    string             `json:"summary,omitempty"`

	Raw string `json:"-"`
}

// CritiqueInput is one critique handed to the synthesis task.
type CritiqueInput struct {
	ID         string  `json:"id"`
	StoryTitle string  `json:"story_title"`
	Score      float64 `json:"score"`
	Text       string  `json:"text"`
}

// SynthesizedLesson is one transferable writing lesson from a critique batch.
type SynthesizedLesson struct {
	Insight            string `json:"insight"`
	Category           string `json:"category"`
	Priority           string `json:"priority"`
	ActionableGuidance string `json:"actionable_guidance"`
	SupportingEvidence string `json:"supporting_evidence"`
}

// StyleAdjustments feeds the style profile after a synthesis.
type StyleAdjustments struct {
	// SuggestedFocus, when present, is pushed onto the style profile's
	// active learning focus list.
	SuggestedFocus string `json:"suggested_focus,omitempty"`

	// AreasToImprove replaces the style profile's current improvement areas.
	AreasToImprove []string `json:"areas_to_improve,omitempty"`
}

// SynthesisResult is the material distilled from a critique batch. A single
// batch may yield several lessons; every entry is stored.
type SynthesisResult struct {
	LessonsLearned   []SynthesizedLesson    `json:"lessons_learned"`
	StyleAdjustments StyleAdjustments       `json:"style_adjustments"`
	SynthesisSummary string                 `json:"synthesis_summary,omitempty"`
	MetaInsights     map[string]interface{} `json:"meta_insights,omitempty"`
}
