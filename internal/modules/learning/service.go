// Package learning closes the evolution loop: accumulate critiques, distill
// lessons at the configured cadence, keep the style profile current.
package learning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/cuentacuentos/core/internal/config"
	"github.com/cuentacuentos/core/internal/models"
	"github.com/cuentacuentos/core/internal/modules/ai"
	"github.com/cuentacuentos/core/internal/pkg/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrNoCritiques means there is nothing to synthesize from.
	ErrNoCritiques = errors.New("no critiques available")

	// ErrTooFewCritiques means the manual synthesis batch is below minimum.
	ErrTooFewCritiques = errors.New("not enough critiques for synthesis")
)

const manualMinBatch = 3

// configSource yields the current runtime configuration.
type configSource interface {
	Get() (*config.FullConfig, error)
}

// Synthesizer distills lessons from a critique batch.
type Synthesizer interface {
	SynthesizeLessons(ctx context.Context, critiques []ai.CritiqueInput, currentFocus []string) (*ai.SynthesisResult, error)
}

// EvolutionMetrics are the aggregate counters of the style profile.
type EvolutionMetrics struct {
	LastSynthesis       string `json:"last_synthesis,omitempty"`
	LessonsActive       int    `json:"lessons_active"`
	TotalLessonsLearned int    `json:"total_lessons_learned"`
	TotalSyntheses      int    `json:"total_syntheses"`
}

// StyleProfile is the singleton document describing what the system is
// currently working on. Written only under the synthesis mutex.
type StyleProfile struct {
	EvolutionMetrics        EvolutionMetrics `json:"evolution_metrics"`
	ActiveLearningFocus     []string         `json:"active_learning_focus,omitempty"`
	CurrentImprovementAreas []string         `json:"current_improvement_areas,omitempty"`
}

const maxFocusAreas = 3

// SynthesisSummary is what a completed synthesis reports back.
type SynthesisSummary struct {
	CritiquesAnalyzed int                    `json:"critiques_analyzed"`
	Lessons           []*models.LessonModel  `json:"lessons"`
	SynthesisSummary  string                 `json:"synthesis_summary,omitempty"`
	MetaInsights      map[string]interface{} `json:"meta_insights,omitempty"`
	ProfileUpdated    bool                   `json:"profile_updated"`
}

// Service owns lessons and the style profile.
type Service struct {
	st     store
	synth  Synthesizer
	cfgSvc configSource
	met    *metrics.Registry
	log    *zap.Logger

	// mu serializes count, decide and write so concurrent critique storage
	// cannot double-fire or skip a synthesis.
	mu sync.Mutex
}

func NewService(db *gorm.DB, synth Synthesizer, cfgSvc configSource, met *metrics.Registry, log *zap.Logger) *Service {
	return &Service{st: newGormStore(db), synth: synth, cfgSvc: cfgSvc, met: met, log: log}
}

func (s *Service) thresholds() (threshold, minBatch int) {
	threshold, minBatch = 2, 2
	cfg, err := s.cfgSvc.Get()
	if err != nil {
		return threshold, minBatch
	}
	if cfg.Learning.SynthesisThreshold != 0 {
		threshold = cfg.Learning.SynthesisThreshold
	}
	if cfg.Learning.MinSynthesisBatch > 0 {
		minBatch = cfg.Learning.MinSynthesisBatch
	}
	return threshold, minBatch
}

// OnCritiqueStored runs the automatic synthesis check after a critique was
// appended. It fires when the critique count is a positive multiple of the
// threshold. Synthesizer failure leaves the store untouched.
func (s *Service) OnCritiqueStored(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	threshold, _ := s.thresholds()
	if threshold < 1 {
		return nil
	}

	count, err := s.st.CountCritiques()
	if err != nil {
		return err
	}
	if count == 0 || count%int64(threshold) != 0 {
		return nil
	}

	s.log.Info("synthesis threshold reached", zap.Int64("critiques", count), zap.Int("threshold", threshold))

	recent, err := s.st.RecentCritiques(threshold)
	if err != nil {
		return err
	}
	_, err = s.synthesizeLocked(ctx, recent)
	return err
}

// SynthesizeNow runs a manual synthesis over the last N critiques. It demands
// a minimum of three critiques so the lesson generalizes over more than a
// single data point.
func (s *Service) SynthesizeNow(ctx context.Context, lastN int) (*SynthesisSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if lastN < 1 {
		lastN = 5
	}

	critiques, err := s.st.RecentCritiques(lastN)
	if err != nil {
		return nil, err
	}
	if len(critiques) == 0 {
		return nil, ErrNoCritiques
	}
	if len(critiques) < manualMinBatch {
		return nil, fmt.Errorf("%w: need %d, have %d", ErrTooFewCritiques, manualMinBatch, len(critiques))
	}

	return s.synthesizeLocked(ctx, critiques)
}

// synthesizeLocked runs one synthesis. Caller holds s.mu. The batch arrives
// newest-first from the store; provenance and the synthesis prompt read
// oldest-to-newest, matching insertion order.
func (s *Service) synthesizeLocked(ctx context.Context, critiques []models.CritiqueModel) (*SynthesisSummary, error) {
	inputs := make([]ai.CritiqueInput, 0, len(critiques))
	ids := make([]string, 0, len(critiques))
	for i := len(critiques) - 1; i >= 0; i-- {
		cr := critiques[i]
		inputs = append(inputs, ai.CritiqueInput{
			ID:         cr.ID,
			StoryTitle: s.st.StoryTitle(cr.StoryID),
			Score:      cr.Score,
			Text:       cr.CritiqueText,
		})
		ids = append(ids, cr.ID)
	}

	profile, err := s.loadProfile()
	if err != nil {
		return nil, err
	}

	result, err := s.synth.SynthesizeLessons(ctx, inputs, profile.ActiveLearningFocus)
	if err != nil {
		s.met.Syntheses.WithLabelValues("error").Inc()
		s.log.Warn("synthesis failed", zap.Error(err))
		return nil, err
	}

	// Every lesson of the batch shares the same provenance and date.
	synthesizedAt := time.Now().UTC()
	lessons := make([]*models.LessonModel, 0, len(result.LessonsLearned))
	for _, learned := range result.LessonsLearned {
		lesson := &models.LessonModel{
			OriginCritiqueIDs:  models.StringArray(ids),
			Insight:            strings.TrimSpace(learned.Insight),
			Category:           normalizeCategory(learned.Category),
			Priority:           normalizePriority(learned.Priority),
			ActionableGuidance: strings.TrimSpace(learned.ActionableGuidance),
			SupportingEvidence: strings.TrimSpace(learned.SupportingEvidence),
			Status:             models.LessonStatusActive,
			SynthesizedAt:      synthesizedAt,
		}
		if err := s.st.InsertLesson(lesson); err != nil {
			s.met.Syntheses.WithLabelValues("error").Inc()
			return nil, err
		}
		lessons = append(lessons, lesson)
	}

	profileUpdated := true
	if err := s.updateProfileLocked(profile, result); err != nil {
		// The lessons are in; a stale profile is tolerable and self-heals on
		// the next synthesis.
		s.log.Warn("style profile update failed", zap.Error(err))
		profileUpdated = false
	}

	s.met.Syntheses.WithLabelValues("ok").Inc()
	s.log.Info("lessons synthesized",
		zap.Int("lessons", len(lessons)),
		zap.Int("critiques", len(critiques)),
	)

	return &SynthesisSummary{
		CritiquesAnalyzed: len(critiques),
		Lessons:           lessons,
		SynthesisSummary:  strings.TrimSpace(result.SynthesisSummary),
		MetaInsights:      result.MetaInsights,
		ProfileUpdated:    profileUpdated,
	}, nil
}

func (s *Service) loadProfile() (*StyleProfile, error) {
	raw, err := s.st.LoadProfileJSON()
	if err != nil {
		return nil, err
	}
	profile := &StyleProfile{}
	if strings.TrimSpace(raw) == "" {
		return profile, nil
	}
	if err := json.Unmarshal([]byte(raw), profile); err != nil {
		return nil, err
	}
	return profile, nil
}

func (s *Service) updateProfileLocked(profile *StyleProfile, result *ai.SynthesisResult) error {
	activeCount, err := s.st.CountLessons(models.LessonStatusActive)
	if err != nil {
		return err
	}
	totalCount, err := s.st.CountLessons("all")
	if err != nil {
		return err
	}

	profile.EvolutionMetrics.LastSynthesis = time.Now().UTC().Format("2006-01-02")
	profile.EvolutionMetrics.LessonsActive = int(activeCount)
	profile.EvolutionMetrics.TotalLessonsLearned = int(totalCount)
	profile.EvolutionMetrics.TotalSyntheses++

	if focus := strings.TrimSpace(result.StyleAdjustments.SuggestedFocus); focus != "" {
		profile.ActiveLearningFocus = pushFocus(profile.ActiveLearningFocus, focus)
	}
	if len(result.StyleAdjustments.AreasToImprove) > 0 {
		areas := result.StyleAdjustments.AreasToImprove
		if len(areas) > maxFocusAreas {
			areas = areas[:maxFocusAreas]
		}
		profile.CurrentImprovementAreas = areas
	}

	data, err := json.Marshal(profile)
	if err != nil {
		return err
	}
	return s.st.SaveProfileJSON(string(data))
}

// pushFocus prepends a new focus, deduplicates and keeps the newest three.
func pushFocus(current []string, focus string) []string {
	out := []string{focus}
	for _, f := range current {
		if strings.EqualFold(f, focus) {
			continue
		}
		out = append(out, f)
	}
	if len(out) > maxFocusAreas {
		out = out[:maxFocusAreas]
	}
	return out
}

func normalizeCategory(raw string) string {
	c := strings.ToLower(strings.TrimSpace(raw))
	switch c {
	case "structure", "language", "emotion", "pacing", "character":
		return c
	default:
		return "general"
	}
}

func normalizePriority(raw string) string {
	p := strings.ToLower(strings.TrimSpace(raw))
	switch p {
	case "high", "low":
		return p
	default:
		return "medium"
	}
}

// Profile returns the current style profile.
func (s *Service) Profile() (*StyleProfile, error) {
	return s.loadProfile()
}

// ActiveLessons lists active lessons, optionally filtered by category.
func (s *Service) ActiveLessons(category string) ([]models.LessonModel, error) {
	return s.st.Lessons(category, models.LessonStatusActive)
}

// Lessons lists lessons filtered by category and status ("all" for every one).
func (s *Service) Lessons(category, status string) ([]models.LessonModel, error) {
	return s.st.Lessons(category, status)
}

// MarkApplied bumps applied_count for the lessons woven into a prompt.
func (s *Service) MarkApplied(lessonIDs []int) error {
	return s.st.IncrementApplied(lessonIDs)
}

// ArchiveLesson retires a lesson. Its number is never reused.
func (s *Service) ArchiveLesson(lessonID int) error {
	lesson, err := s.st.LessonByNumber(lessonID)
	if err != nil {
		return err
	}
	if lesson == nil {
		return gorm.ErrRecordNotFound
	}
	return s.st.SetLessonStatus(lessonID, models.LessonStatusArchived)
}

// Statistics reports the learning system state.
func (s *Service) Statistics() (map[string]interface{}, error) {
	profile, err := s.loadProfile()
	if err != nil {
		return nil, err
	}

	allLessons, err := s.st.Lessons("", "all")
	if err != nil {
		return nil, err
	}

	byCategory := map[string]int{}
	active := 0
	for _, lesson := range allLessons {
		if lesson.Status != models.LessonStatusActive {
			continue
		}
		active++
		byCategory[lesson.Category]++
	}

	totalCritiques, err := s.st.CountCritiques()
	if err != nil {
		return nil, err
	}
	totalStories, err := s.st.CountStories()
	if err != nil {
		return nil, err
	}

	threshold, _ := s.thresholds()
	untilNext := 0
	if threshold > 0 {
		untilNext = threshold - int(totalCritiques%int64(threshold))
		if untilNext == threshold {
			untilNext = 0
		}
	}

	var avgScore interface{}
	recent, err := s.st.RecentCritiques(10)
	if err == nil && len(recent) > 0 {
		sum := 0.0
		for _, cr := range recent {
			sum += cr.Score
		}
		avgScore = math.Round(sum/float64(len(recent))*100) / 100
	}

	lastSynthesis := profile.EvolutionMetrics.LastSynthesis
	if lastSynthesis == "" {
		lastSynthesis = "never"
	}

	return map[string]interface{}{
		"total_lessons":                  len(allLessons),
		"active_lessons":                 active,
		"lessons_by_category":            byCategory,
		"last_synthesis":                 lastSynthesis,
		"current_focus_areas":            profile.ActiveLearningFocus,
		"total_syntheses":                profile.EvolutionMetrics.TotalSyntheses,
		"total_critiques_analyzed":       totalCritiques,
		"critiques_until_next_synthesis": untilNext,
		"database_stats": map[string]interface{}{
			"total_stories":     totalStories,
			"total_critiques":   totalCritiques,
			"avg_score_last_10": avgScore,
		},
	}, nil
}
