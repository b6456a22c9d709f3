// Package rag retrieves high-scoring similar stories so generation prompts
// can learn technique from past successes.
package rag

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sort"
	"strings"

	"github.com/cuentacuentos/core/internal/config"
	"github.com/cuentacuentos/core/internal/models"
	"github.com/cuentacuentos/core/internal/pkg/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	fragmentMaxRunes = 250
	maxTechniques    = 3
)

// configSource yields the current runtime configuration.
type configSource interface {
	Get() (*config.FullConfig, error)
}

// Embedder turns text into a vector.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float64, error)
}

// corpus is the slice of storage the search needs. Kept narrow so tests can
// fake it without a database.
type corpus interface {
	EmbeddedStories() ([]models.StoryModel, error)
	LatestCritique(storyID string) (*models.CritiqueModel, error)
	StoryCounts() (total int64, embedded int64, err error)
}

type gormCorpus struct{ db *gorm.DB }

func (g gormCorpus) EmbeddedStories() ([]models.StoryModel, error) {
	var stories []models.StoryModel
	err := g.db.
		Where("embedding IS NOT NULL").
		Where("content IS NOT NULL AND content != ''").
		Find(&stories).Error
	return stories, err
}

func (g gormCorpus) LatestCritique(storyID string) (*models.CritiqueModel, error) {
	var critique models.CritiqueModel
	err := g.db.Where("story_id = ?", storyID).Order("created_at DESC").First(&critique).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &critique, nil
}

func (g gormCorpus) StoryCounts() (int64, int64, error) {
	var total, embedded int64
	if err := g.db.Model(&models.StoryModel{}).Count(&total).Error; err != nil {
		return 0, 0, err
	}
	if err := g.db.Model(&models.StoryModel{}).Where("embedding IS NOT NULL").Count(&embedded).Error; err != nil {
		return 0, 0, err
	}
	return total, embedded, nil
}

// SimilarStory is one retrieved example, ready for prompt assembly.
type SimilarStory struct {
	StoryID    string   `json:"story_id"`
	Title      string   `json:"title"`
	Fragment   string   `json:"fragment"`
	Similarity float64  `json:"similarity"`
	Score      float64  `json:"score"`
	Techniques []string `json:"techniques"`
	Rank       int      `json:"rank"`
}

// SearchOptions tune one search; zero values fall back to configured defaults.
type SearchOptions struct {
	TopK          int
	MinSimilarity float64
	MinScore      float64
	TargetAge     int
}

// Service runs the similarity search over the story corpus.
type Service struct {
	corpus   corpus
	embedder Embedder
	cache    *EmbeddingCache
	cfgSvc   configSource
	met      *metrics.Registry
	log      *zap.Logger
}

func NewService(db *gorm.DB, embedder Embedder, cfgSvc configSource, met *metrics.Registry, log *zap.Logger) *Service {
	return &Service{
		corpus:   gormCorpus{db: db},
		embedder: embedder,
		cache:    NewEmbeddingCache(),
		cfgSvc:   cfgSvc,
		met:      met,
		log:      log,
	}
}

// Cache exposes the theme embedding cache for introspection endpoints.
func (s *Service) Cache() *EmbeddingCache { return s.cache }

// DefaultOptions returns the configured retrieval defaults.
func (s *Service) DefaultOptions() SearchOptions {
	opts := SearchOptions{TopK: 2, MinSimilarity: 0.5, MinScore: 7.0}
	cfg, err := s.cfgSvc.Get()
	if err != nil {
		return opts
	}
	if cfg.RAG.TopK > 0 {
		opts.TopK = cfg.RAG.TopK
	}
	opts.MinSimilarity = cfg.RAG.MinSimilarity
	opts.MinScore = cfg.RAG.MinScore
	return opts
}

// themeEmbedding returns the vector for a theme, consulting the cache first.
func (s *Service) themeEmbedding(ctx context.Context, theme string) []float64 {
	if vec, ok := s.cache.Get(theme); ok {
		s.met.EmbeddingCacheHits.Inc()
		return vec
	}
	s.met.EmbeddingCacheMisses.Inc()

	vec, err := s.embedder.GenerateEmbedding(ctx, theme)
	if err != nil {
		s.log.Warn("theme embedding failed", zap.String("theme", theme), zap.Error(err))
		return nil
	}
	s.cache.Put(theme, vec)
	return vec
}

// SearchSimilar finds stories similar to the theme whose latest critique
// scores well. An embedding failure degrades to an empty result, never an
// error: retrieval is best-effort by contract.
//
// TargetAge is validated upstream but not yet applied to the candidate
// query; the story table carries no age column.
func (s *Service) SearchSimilar(ctx context.Context, theme string, opts SearchOptions) ([]SimilarStory, error) {
	if opts.TopK <= 0 {
		opts = s.fillDefaults(opts)
	}

	themeVec := s.themeEmbedding(ctx, theme)
	if len(themeVec) == 0 {
		return []SimilarStory{}, nil
	}

	candidates, err := s.corpus.EmbeddedStories()
	if err != nil {
		return nil, err
	}

	type scored struct {
		story      models.StoryModel
		similarity float64
		score      float64
		critique   *models.CritiqueModel
	}

	matches := make([]scored, 0, len(candidates))
	for _, story := range candidates {
		similarity := Cosine(themeVec, story.Embedding)

		critique, err := s.corpus.LatestCritique(story.ID)
		if err != nil {
			s.log.Warn("critique lookup failed", zap.String("story_id", story.ID), zap.Error(err))
			continue
		}
		var score float64
		if critique != nil {
			score = critique.Score
		}

		if similarity >= opts.MinSimilarity && score >= opts.MinScore {
			matches = append(matches, scored{story: story, similarity: similarity, score: score, critique: critique})
		}
	}

	// Stable: equal similarities keep corpus order.
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].similarity > matches[j].similarity
	})
	if len(matches) > opts.TopK {
		matches = matches[:opts.TopK]
	}

	results := make([]SimilarStory, 0, len(matches))
	for idx, m := range matches {
		title := m.story.Title
		if strings.TrimSpace(title) == "" {
			title = "Sin título"
		}
		results = append(results, SimilarStory{
			StoryID:    m.story.ID,
			Title:      title,
			Fragment:   makeFragment(m.story.Content),
			Similarity: round(m.similarity, 3),
			Score:      round(m.score, 1),
			Techniques: extractTechniques(m.critique),
			Rank:       idx + 1,
		})
	}
	return results, nil
}

func (s *Service) fillDefaults(opts SearchOptions) SearchOptions {
	defaults := s.DefaultOptions()
	if opts.TopK <= 0 {
		opts.TopK = defaults.TopK
	}
	if opts.MinSimilarity == 0 {
		opts.MinSimilarity = defaults.MinSimilarity
	}
	if opts.MinScore == 0 {
		opts.MinScore = defaults.MinScore
	}
	return opts
}

// Stats summarizes corpus readiness for retrieval.
func (s *Service) Stats() (map[string]interface{}, error) {
	total, embedded, err := s.corpus.StoryCounts()
	if err != nil {
		return nil, err
	}
	coverage := 0.0
	if total > 0 {
		coverage = round(float64(embedded)/float64(total)*100, 1)
	}
	return map[string]interface{}{
		"total_stories":           total,
		"stories_with_embeddings": embedded,
		"coverage_percentage":     coverage,
		"cache_size":              s.cache.Size(),
		"ready_for_rag":           embedded >= 2,
	}, nil
}

// makeFragment truncates content to the example length used in prompts.
func makeFragment(content string) string {
	runes := []rune(content)
	if len(runes) <= fragmentMaxRunes {
		return content
	}
	return string(runes[:fragmentMaxRunes]) + "..."
}

// extractTechniques pulls up to three strengths out of the critique payload.
// A malformed payload yields no techniques, never an error.
func extractTechniques(critique *models.CritiqueModel) []string {
	if critique == nil || strings.TrimSpace(critique.CritiqueText) == "" {
		return []string{}
	}

	var payload struct {
		Feedback struct {
			Strengths []string `json:"strengths"`
		} `json:"feedback"`
	}
	if err := json.Unmarshal([]byte(critique.CritiqueText), &payload); err != nil {
		return []string{}
	}
	strengths := payload.Feedback.Strengths
	if len(strengths) > maxTechniques {
		strengths = strengths[:maxTechniques]
	}
	if strengths == nil {
		return []string{}
	}
	return strengths
}

func round(v float64, decimals int) float64 {
	factor := math.Pow(10, float64(decimals))
	return math.Round(v*factor) / factor
}
