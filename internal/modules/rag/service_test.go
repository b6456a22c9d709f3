package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cuentacuentos/core/internal/models"
	"github.com/cuentacuentos/core/internal/pkg/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeEmbedder struct {
	vec   []float64
	err   error
	calls int
}

func (f *fakeEmbedder) GenerateEmbedding(_ context.Context, _ string) ([]float64, error) {
	f.calls++
	return f.vec, f.err
}

type fakeCorpus struct {
	stories   []models.StoryModel
	critiques map[string]*models.CritiqueModel
	total     int64
	embedded  int64
	err       error
}

func (f *fakeCorpus) EmbeddedStories() ([]models.StoryModel, error) {
	return f.stories, f.err
}

func (f *fakeCorpus) LatestCritique(storyID string) (*models.CritiqueModel, error) {
	return f.critiques[storyID], nil
}

func (f *fakeCorpus) StoryCounts() (int64, int64, error) {
	return f.total, f.embedded, nil
}

func newTestService(corpus *fakeCorpus, embedder *fakeEmbedder) *Service {
	return &Service{
		corpus:   corpus,
		embedder: embedder,
		cache:    NewEmbeddingCache(),
		met:      metrics.New(),
		log:      zap.NewNop(),
	}
}

func story(id, title, content string, vec []float64) models.StoryModel {
	s := models.StoryModel{Title: title, Content: content, Embedding: vec}
	s.ID = id
	return s
}

func critiqueWithScore(storyID string, score float64, strengths ...string) *models.CritiqueModel {
	text := `{"score": 8, "feedback": {"strengths": [`
	for i, s := range strengths {
		if i > 0 {
			text += ","
		}
		text += `"` + s + `"`
	}
	text += `]}}`
	cr := &models.CritiqueModel{StoryID: storyID, CritiqueText: text, Score: score}
	cr.ID = "critique-" + storyID
	return cr
}

func TestSearchSimilar_FiltersAndRanks(t *testing.T) {
	corpus := &fakeCorpus{
		stories: []models.StoryModel{
			story("s1", "El río", "contenido uno", []float64{1, 0}),
			story("s2", "La luna", "contenido dos", []float64{0.9, 0.1}),
			story("s3", "Bajo puntaje", "contenido tres", []float64{1, 0}),
			story("s4", "Poca similitud", "contenido cuatro", []float64{0, 1}),
		},
		critiques: map[string]*models.CritiqueModel{
			"s1": critiqueWithScore("s1", 8.0, "ritmo", "humor"),
			"s2": critiqueWithScore("s2", 9.0, "onomatopeyas"),
			"s3": critiqueWithScore("s3", 5.0),
			"s4": critiqueWithScore("s4", 10.0),
		},
	}
	embedder := &fakeEmbedder{vec: []float64{1, 0}}
	svc := newTestService(corpus, embedder)

	results, err := svc.SearchSimilar(context.Background(), "aventura en el río", SearchOptions{
		TopK: 5, MinSimilarity: 0.5, MinScore: 7.0,
	})
	require.NoError(t, err)

	// s3 fails the score filter, s4 the similarity filter.
	require.Len(t, results, 2)
	assert.Equal(t, "s1", results[0].StoryID)
	assert.Equal(t, 1, results[0].Rank)
	assert.Equal(t, "s2", results[1].StoryID)
	assert.Equal(t, 2, results[1].Rank)
	assert.Greater(t, results[0].Similarity, results[1].Similarity)
	assert.Equal(t, []string{"ritmo", "humor"}, results[0].Techniques)
}

func TestSearchSimilar_TopKTruncation(t *testing.T) {
	corpus := &fakeCorpus{
		stories: []models.StoryModel{
			story("s1", "Uno", "a", []float64{1, 0}),
			story("s2", "Dos", "b", []float64{1, 0}),
			story("s3", "Tres", "c", []float64{1, 0}),
		},
		critiques: map[string]*models.CritiqueModel{
			"s1": critiqueWithScore("s1", 8),
			"s2": critiqueWithScore("s2", 8),
			"s3": critiqueWithScore("s3", 8),
		},
	}
	svc := newTestService(corpus, &fakeEmbedder{vec: []float64{1, 0}})

	results, err := svc.SearchSimilar(context.Background(), "tema", SearchOptions{TopK: 2, MinSimilarity: 0.5, MinScore: 7})
	require.NoError(t, err)
	assert.Len(t, results, 2)

	// Equal similarity keeps corpus order.
	assert.Equal(t, "s1", results[0].StoryID)
	assert.Equal(t, "s2", results[1].StoryID)
}

func TestSearchSimilar_EmbeddingFailureDegradesToEmpty(t *testing.T) {
	corpus := &fakeCorpus{stories: []models.StoryModel{story("s1", "Uno", "a", []float64{1})}}
	svc := newTestService(corpus, &fakeEmbedder{err: errors.New("provider down")})

	results, err := svc.SearchSimilar(context.Background(), "tema", SearchOptions{TopK: 2, MinSimilarity: 0.5, MinScore: 7})
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.False(t, svc.Cache().Has("tema"))
}

func TestSearchSimilar_ThemeEmbeddingCached(t *testing.T) {
	corpus := &fakeCorpus{}
	embedder := &fakeEmbedder{vec: []float64{1, 0}}
	svc := newTestService(corpus, embedder)

	opts := SearchOptions{TopK: 2, MinSimilarity: 0.5, MinScore: 7}
	_, err := svc.SearchSimilar(context.Background(), "El Mar", opts)
	require.NoError(t, err)
	_, err = svc.SearchSimilar(context.Background(), "  el mar ", opts)
	require.NoError(t, err)

	assert.Equal(t, 1, embedder.calls)
	assert.Equal(t, 1, svc.Cache().Size())
}

func TestSearchSimilar_FragmentAndTitleFallback(t *testing.T) {
	long := strings.Repeat("a", 300)
	corpus := &fakeCorpus{
		stories: []models.StoryModel{story("s1", "  ", long, []float64{1})},
		critiques: map[string]*models.CritiqueModel{
			"s1": critiqueWithScore("s1", 9),
		},
	}
	svc := newTestService(corpus, &fakeEmbedder{vec: []float64{1}})

	results, err := svc.SearchSimilar(context.Background(), "tema", SearchOptions{TopK: 1, MinSimilarity: 0.5, MinScore: 7})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Sin título", results[0].Title)
	assert.Equal(t, strings.Repeat("a", 250)+"...", results[0].Fragment)
}

func TestExtractTechniques(t *testing.T) {
	t.Run("caps at three", func(t *testing.T) {
		cr := critiqueWithScore("s1", 8, "uno", "dos", "tres", "cuatro", "cinco")
		assert.Equal(t, []string{"uno", "dos", "tres"}, extractTechniques(cr))
	})

	t.Run("malformed payload yields empty", func(t *testing.T) {
		cr := &models.CritiqueModel{CritiqueText: "texto libre, no JSON"}
		assert.Equal(t, []string{}, extractTechniques(cr))
	})

	t.Run("nil critique", func(t *testing.T) {
		assert.Equal(t, []string{}, extractTechniques(nil))
	})

	t.Run("missing strengths", func(t *testing.T) {
		cr := &models.CritiqueModel{CritiqueText: `{"feedback": {}}`}
		assert.Equal(t, []string{}, extractTechniques(cr))
	})
}

func TestStats(t *testing.T) {
	corpus := &fakeCorpus{total: 10, embedded: 4}
	svc := newTestService(corpus, &fakeEmbedder{})
	svc.cache.Put("tema", []float64{1})

	stats, err := svc.Stats()
	require.NoError(t, err)
	assert.Equal(t, int64(10), stats["total_stories"])
	assert.Equal(t, int64(4), stats["stories_with_embeddings"])
	assert.Equal(t, 40.0, stats["coverage_percentage"])
	assert.Equal(t, 1, stats["cache_size"])
	assert.Equal(t, true, stats["ready_for_rag"])
}

func TestStats_EmptyCorpus(t *testing.T) {
	svc := newTestService(&fakeCorpus{}, &fakeEmbedder{})
	stats, err := svc.Stats()
	require.NoError(t, err)
	assert.Equal(t, 0.0, stats["coverage_percentage"])
	assert.Equal(t, false, stats["ready_for_rag"])
}

func TestMakeFragment_ShortContentUntouched(t *testing.T) {
	assert.Equal(t, "corto", makeFragment("corto"))
}
