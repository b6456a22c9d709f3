// Package story orchestrates the generation pipeline: compose, generate,
// embed, persist, critique in the background.
package story

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cuentacuentos/core/internal/config"
	"github.com/cuentacuentos/core/internal/models"
	"github.com/cuentacuentos/core/internal/modules/ai"
	"github.com/cuentacuentos/core/internal/modules/prompt"
	"github.com/cuentacuentos/core/internal/modules/rag"
	"github.com/cuentacuentos/core/internal/pkg/metrics"
	"github.com/cuentacuentos/core/internal/pkg/taskqueue"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const TaskTypeCritique = "story:critique"

var (
	// ErrProviderUnconfigured maps to 503: nothing can be generated.
	ErrProviderUnconfigured = errors.New("AI provider not configured")

	// ErrGenerationFailed maps to 502: the provider call itself failed.
	ErrGenerationFailed = errors.New("story generation failed")
)

// configSource yields the current runtime configuration.
type configSource interface {
	Get() (*config.FullConfig, error)
}

// Generator is the slice of the AI service the pipeline consumes.
type Generator interface {
	IsConfigured() bool
	GenerateStory(ctx context.Context, prompt string) (*ai.GeneratedStory, error)
	GenerateCritique(ctx context.Context, title, content string) (*ai.CritiqueResult, error)
	GenerateEmbedding(ctx context.Context, text string) ([]float64, error)
	GenerateIllustrationTemplate(ctx context.Context, title, content string) (map[string]interface{}, error)
}

// Retriever finds similar stories for the prompt examples section.
type Retriever interface {
	SearchSimilar(ctx context.Context, theme string, opts rag.SearchOptions) ([]rag.SimilarStory, error)
	DefaultOptions() rag.SearchOptions
}

// Composer assembles the final generation prompt.
type Composer interface {
	Compose(inputs prompt.Inputs, applyLessons bool, similar []rag.SimilarStory) string
}

// Learner receives the signal that a critique landed.
type Learner interface {
	OnCritiqueStored(ctx context.Context) error
}

type storyStore interface {
	CreateStory(story *models.StoryModel) error
	StoryByID(id string) (*models.StoryModel, error)
	ListStories(isSeed *bool, limit int) ([]models.StoryModel, error)
	CreateCritique(critique *models.CritiqueModel) error
	CritiquesForStory(storyID string) ([]models.CritiqueModel, error)
}

type gormStoryStore struct{ db *gorm.DB }

func (g gormStoryStore) CreateStory(story *models.StoryModel) error {
	return g.db.Create(story).Error
}

func (g gormStoryStore) StoryByID(id string) (*models.StoryModel, error) {
	var story models.StoryModel
	err := g.db.First(&story, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &story, nil
}

func (g gormStoryStore) ListStories(isSeed *bool, limit int) ([]models.StoryModel, error) {
	tx := g.db.Order("created_at DESC").Limit(limit)
	if isSeed != nil {
		tx = tx.Where("is_seed = ?", *isSeed)
	}
	var stories []models.StoryModel
	err := tx.Find(&stories).Error
	return stories, err
}

func (g gormStoryStore) CreateCritique(critique *models.CritiqueModel) error {
	return g.db.Create(critique).Error
}

func (g gormStoryStore) CritiquesForStory(storyID string) ([]models.CritiqueModel, error) {
	var critiques []models.CritiqueModel
	err := g.db.Where("story_id = ?", storyID).Order("created_at DESC").Find(&critiques).Error
	return critiques, err
}

// Service runs the pipeline and the story/critique CRUD.
type Service struct {
	st       storyStore
	gen      Generator
	ret      Retriever
	composer Composer
	learner  Learner
	taskSvc  *taskqueue.Service
	cfgSvc   configSource
	met      *metrics.Registry
	log      *zap.Logger
}

func NewService(db *gorm.DB, gen Generator, ret Retriever, composer Composer, learner Learner, taskSvc *taskqueue.Service, cfgSvc configSource, met *metrics.Registry, log *zap.Logger) *Service {
	return &Service{
		st:       gormStoryStore{db: db},
		gen:      gen,
		ret:      ret,
		composer: composer,
		learner:  learner,
		taskSvc:  taskSvc,
		cfgSvc:   cfgSvc,
		met:      met,
		log:      log,
	}
}

// IsConfigured reports whether generation can run at all.
func (s *Service) IsConfigured() bool { return s.gen.IsConfigured() }

// buildContext renders the brief as the " | "-joined context line.
func buildContext(input GenerateInput) string {
	parts := []string{"Tema: " + input.Theme}
	if len(input.CharacterNames) > 0 {
		parts = append(parts, "Personajes: "+strings.Join(input.CharacterNames, ", "))
	}
	if input.MoralLesson != "" {
		parts = append(parts, "Lección moral: "+input.MoralLesson)
	}
	if input.SpecialElements != "" {
		parts = append(parts, "Elementos especiales: "+input.SpecialElements)
	}
	return strings.Join(parts, " | ")
}

func promptInputsFromBrief(input GenerateInput) prompt.Inputs {
	main := "un personaje"
	var secondary []string
	if len(input.CharacterNames) > 0 {
		main = input.CharacterNames[0]
		if len(input.CharacterNames) > 1 {
			secondary = input.CharacterNames[1:]
		}
	}
	return prompt.Inputs{
		Character:           main,
		SecondaryCharacters: secondary,
		OptionalContext:     buildContext(input),
		TargetEmotion:       input.MoralLesson,
	}
}

// Generate runs one end-to-end generation. The response returns as soon as
// the story is persisted; critique and synthesis continue in the background.
func (s *Service) Generate(ctx context.Context, input GenerateInput) (*Response, error) {
	if !s.gen.IsConfigured() {
		return nil, ErrProviderUnconfigured
	}

	// Retrieval is best-effort: a failed search degrades to no examples.
	opts := s.ret.DefaultOptions()
	if input.TargetAge > 0 {
		opts.TargetAge = input.TargetAge
	}
	similar, err := s.ret.SearchSimilar(ctx, input.Theme, opts)
	if err != nil {
		s.log.Warn("similar story retrieval failed", zap.Error(err))
		similar = nil
	}

	promptText := s.composer.Compose(promptInputsFromBrief(input), true, similar)

	generated, err := s.gen.GenerateStory(ctx, promptText)
	if err != nil {
		if errors.Is(err, ai.ErrMalformedResult) || errors.Is(err, ai.ErrUnconfigured) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	title := deriveTitle(generated.Title, generated.Content, input.Theme)

	story := &models.StoryModel{
		Title:   title,
		Content: generated.Content,
		Version: 1,
		IsSeed:  false,
	}

	// Embedding and illustration plan are best-effort; both store as NULL
	// on failure.
	if vec, err := s.gen.GenerateEmbedding(ctx, generated.Content); err != nil {
		s.log.Warn("story embedding failed", zap.Error(err))
	} else {
		story.Embedding = vec
	}
	if tmpl, err := s.gen.GenerateIllustrationTemplate(ctx, title, generated.Content); err != nil {
		s.log.Warn("illustration template failed", zap.Error(err))
	} else {
		story.IllustrationTemplate = tmpl
	}

	if err := s.st.CreateStory(story); err != nil {
		return nil, err
	}
	s.met.StoriesGenerated.Inc()

	s.scheduleCritique(story)

	return &Response{
		ID:         story.ID,
		Title:      story.Title,
		Content:    story.Content,
		Version:    story.Version,
		IsSeed:     story.IsSeed,
		CreatedAt:  story.CreatedAt,
		PromptUsed: promptText,
	}, nil
}

// scheduleCritique enqueues the background critique unless auto-critique is
// disabled. Fire-and-forget relative to the HTTP response.
func (s *Service) scheduleCritique(story *models.StoryModel) {
	cfg, err := s.cfgSvc.Get()
	if err == nil && !cfg.AI.EnableAutoCritique {
		return
	}

	ctx := context.Background()
	task, err := s.taskSvc.Enqueue(ctx, TaskTypeCritique, map[string]string{"story_id": story.ID}, story.ID)
	if err != nil {
		s.log.Warn("critique enqueue failed", zap.String("story_id", story.ID), zap.Error(err))
		return
	}
	if task.Status == taskqueue.TaskPending {
		go s.executeCritique(ctx, task.ID, story.ID, story.Title, story.Content)
	}
}

// executeCritique runs the critique task: generate, persist, then notify the
// learning loop. Every failure is logged and swallowed; background work never
// surfaces to a request.
func (s *Service) executeCritique(ctx context.Context, taskID, storyID, title, content string) {
	_ = s.taskSvc.UpdateStatus(ctx, taskID, taskqueue.TaskRunning, nil, "")

	result, err := s.gen.GenerateCritique(ctx, title, content)
	if err != nil {
		s.log.Warn("critique generation failed", zap.String("story_id", storyID), zap.Error(err))
		_ = s.taskSvc.UpdateStatus(ctx, taskID, taskqueue.TaskFailed, nil, err.Error())
		return
	}

	critique := &models.CritiqueModel{
		StoryID:      storyID,
		CritiqueText: result.Raw,
		Score:        result.Evaluation.Overall,
	}
	if err := s.st.CreateCritique(critique); err != nil {
		s.log.Warn("critique store failed", zap.String("story_id", storyID), zap.Error(err))
		_ = s.taskSvc.UpdateStatus(ctx, taskID, taskqueue.TaskFailed, nil, err.Error())
		return
	}
	s.met.CritiquesStored.Inc()

	_ = s.taskSvc.UpdateStatus(ctx, taskID, taskqueue.TaskCompleted, map[string]interface{}{
		"critique_id": critique.ID,
		"score":       critique.Score,
	}, "")

	if err := s.learner.OnCritiqueStored(ctx); err != nil {
		s.log.Warn("learning loop failed", zap.Error(err))
	}
}

// deriveTitle picks a display title: the generator's title, else the first
// non-empty content line, else a theme fallback. Markdown emphasis characters
// are stripped and long titles truncated to 100 runes with an ellipsis.
func deriveTitle(title, content, theme string) string {
	candidate := strings.TrimSpace(title)
	if candidate == "" {
		for _, line := range strings.Split(content, "\n") {
			if t := strings.TrimSpace(line); t != "" {
				candidate = t
				break
			}
		}
	}
	if candidate == "" {
		candidate = "Cuento sobre " + theme
	}

	candidate = strings.ReplaceAll(candidate, "#", "")
	candidate = strings.ReplaceAll(candidate, "*", "")
	candidate = strings.TrimSpace(candidate)

	runes := []rune(candidate)
	if len(runes) > 100 {
		candidate = string(runes[:97]) + "..."
	}
	return candidate
}

// Create stores a story directly, optionally composing the prompt that would
// have produced it.
func (s *Service) Create(input CreateInput) (*Response, error) {
	promptUsed := ""
	if input.PromptInputs != nil {
		promptUsed = s.composer.Compose(*input.PromptInputs, false, nil)
	}

	story := &models.StoryModel{
		Title:   input.Title,
		Content: input.Content,
		Version: 1,
		IsSeed:  input.IsSeed,
	}
	if err := s.st.CreateStory(story); err != nil {
		return nil, err
	}

	return &Response{
		ID:         story.ID,
		Title:      story.Title,
		Content:    story.Content,
		Version:    story.Version,
		IsSeed:     story.IsSeed,
		CreatedAt:  story.CreatedAt,
		PromptUsed: promptUsed,
	}, nil
}

// List returns stories, optionally filtered by the seed flag.
func (s *Service) List(isSeed *bool, limit int) ([]models.StoryModel, error) {
	if limit < 1 || limit > 500 {
		limit = 100
	}
	return s.st.ListStories(isSeed, limit)
}

// ByID returns one story or nil.
func (s *Service) ByID(id string) (*models.StoryModel, error) {
	return s.st.StoryByID(id)
}

// Critiques returns every critique of a story, newest first.
// gorm.ErrRecordNotFound signals an unknown story.
func (s *Service) Critiques(storyID string) ([]models.CritiqueModel, error) {
	story, err := s.st.StoryByID(storyID)
	if err != nil {
		return nil, err
	}
	if story == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.st.CritiquesForStory(storyID)
}

// AddCritique stores a manual critique and feeds the learning loop.
func (s *Service) AddCritique(ctx context.Context, input CritiqueInput) (*models.CritiqueModel, error) {
	story, err := s.st.StoryByID(input.StoryID)
	if err != nil {
		return nil, err
	}
	if story == nil {
		return nil, gorm.ErrRecordNotFound
	}

	critique := &models.CritiqueModel{
		StoryID:      input.StoryID,
		CritiqueText: input.CritiqueText,
		Score:        input.Score,
	}
	if err := s.st.CreateCritique(critique); err != nil {
		return nil, err
	}
	s.met.CritiquesStored.Inc()

	if err := s.learner.OnCritiqueStored(ctx); err != nil {
		s.log.Warn("learning loop failed", zap.Error(err))
	}
	return critique, nil
}

// ComposePrompt exposes prompt composition without generating.
func (s *Service) ComposePrompt(inputs prompt.Inputs) string {
	return s.composer.Compose(inputs, false, nil)
}
