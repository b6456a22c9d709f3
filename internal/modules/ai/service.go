package ai

import (
	"context"
	"strings"
	"time"

	appcfg "github.com/cuentacuentos/core/internal/config"
	"github.com/cuentacuentos/core/internal/pkg/metrics"
)

// configSource yields the current runtime configuration.
type configSource interface {
	Get() (*appcfg.FullConfig, error)
}

// Service fronts the configured AI providers for every model task: story
// generation, critique, synthesis, illustration plans, and embeddings.
type Service struct {
	cfgSvc configSource
	met    *metrics.Registry
}

func NewService(cfgSvc configSource, met *metrics.Registry) *Service {
	return &Service{cfgSvc: cfgSvc, met: met}
}

// IsConfigured reports whether at least one enabled provider exists.
func (s *Service) IsConfigured() bool {
	cfg, err := s.cfgSvc.Get()
	if err != nil {
		return false
	}
	return selectProvider(cfg.AI, nil) != nil
}

func (s *Service) taskContext(ctx context.Context, cfg *appcfg.FullConfig) (context.Context, context.CancelFunc) {
	timeout := time.Duration(cfg.AI.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

func (s *Service) observe(task string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	s.met.ProviderRequests.WithLabelValues(task, outcome).Inc()
}

// GenerateStory runs the generation task with the composed prompt and parses
// the strict {"title","content"} answer.
func (s *Service) GenerateStory(ctx context.Context, prompt string) (*GeneratedStory, error) {
	cfg, err := s.cfgSvc.Get()
	if err != nil {
		return nil, err
	}
	provider := selectProvider(cfg.AI, cfg.AI.GenerationModel)
	if provider == nil {
		return nil, ErrUnconfigured
	}

	ctx, cancel := s.taskContext(ctx, cfg)
	defer cancel()

	raw, err := callProvider(ctx, provider, storySystemPrompt, prompt, 4000)
	s.observe("generation", err)
	if err != nil {
		return nil, err
	}

	var story GeneratedStory
	if err := unmarshalAIJSON(raw, &story); err != nil {
		return nil, err
	}
	if strings.TrimSpace(story.Content) == "" {
		return nil, ErrMalformedResult
	}
	return &story, nil
}

// GenerateCritique evaluates a story and returns the parsed critique along
// with the raw provider JSON.
func (s *Service) GenerateCritique(ctx context.Context, title, content string) (*CritiqueResult, error) {
	cfg, err := s.cfgSvc.Get()
	if err != nil {
		return nil, err
	}
	provider := selectProvider(cfg.AI, cfg.AI.CritiqueModel)
	if provider == nil {
		return nil, ErrUnconfigured
	}

	ctx, cancel := s.taskContext(ctx, cfg)
	defer cancel()

	raw, err := callProvider(ctx, provider, critiqueSystemPrompt, buildCritiquePrompt(title, content), 2000)
	s.observe("critique", err)
	if err != nil {
		return nil, err
	}

	var result CritiqueResult
	if err := unmarshalAIJSON(raw, &result); err != nil {
		return nil, err
	}
	if result.Evaluation.Overall < 1 || result.Evaluation.Overall > 10 {
		return nil, ErrMalformedResult
	}
	result.Raw = raw
	return &result, nil
}

// SynthesizeLessons distills transferable lessons from a batch of critiques.
// Entries without an insight are dropped; an empty list is malformed.
func (s *Service) SynthesizeLessons(ctx context.Context, critiques []CritiqueInput, currentFocus []string) (*SynthesisResult, error) {
	cfg, err := s.cfgSvc.Get()
	if err != nil {
		return nil, err
	}
	provider := selectProvider(cfg.AI, cfg.AI.SynthesisModel)
	if provider == nil {
		return nil, ErrUnconfigured
	}

	ctx, cancel := s.taskContext(ctx, cfg)
	defer cancel()

	raw, err := callProvider(ctx, provider, synthesisSystemPrompt, buildSynthesisPrompt(critiques, currentFocus), 2000)
	s.observe("synthesis", err)
	if err != nil {
		return nil, err
	}

	var result SynthesisResult
	if err := unmarshalAIJSON(raw, &result); err != nil {
		return nil, err
	}
	lessons := result.LessonsLearned[:0]
	for _, lesson := range result.LessonsLearned {
		if strings.TrimSpace(lesson.Insight) == "" {
			continue
		}
		lessons = append(lessons, lesson)
	}
	if len(lessons) == 0 {
		return nil, ErrMalformedResult
	}
	result.LessonsLearned = lessons
	return &result, nil
}

// GenerateIllustrationTemplate proposes an illustration plan for a story.
func (s *Service) GenerateIllustrationTemplate(ctx context.Context, title, content string) (map[string]interface{}, error) {
	cfg, err := s.cfgSvc.Get()
	if err != nil {
		return nil, err
	}
	provider := selectProvider(cfg.AI, cfg.AI.GenerationModel)
	if provider == nil {
		return nil, ErrUnconfigured
	}

	ctx, cancel := s.taskContext(ctx, cfg)
	defer cancel()

	raw, err := callProvider(ctx, provider, illustrationSystemPrompt, buildIllustrationPrompt(title, content), 1500)
	s.observe("illustration", err)
	if err != nil {
		return nil, err
	}

	var template map[string]interface{}
	if err := unmarshalAIJSON(raw, &template); err != nil {
		return nil, err
	}
	return template, nil
}

// GenerateEmbedding produces a vector for the given text.
func (s *Service) GenerateEmbedding(ctx context.Context, text string) ([]float64, error) {
	cfg, err := s.cfgSvc.Get()
	if err != nil {
		return nil, err
	}
	provider := selectProvider(cfg.AI, cfg.AI.EmbeddingModel)
	if provider == nil {
		return nil, ErrUnconfigured
	}

	ctx, cancel := s.taskContext(ctx, cfg)
	defer cancel()

	vec, err := callEmbeddings(ctx, provider, text)
	s.observe("embedding", err)
	return vec, err
}
