package story

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cuentacuentos/core/internal/config"
	"github.com/cuentacuentos/core/internal/models"
	"github.com/cuentacuentos/core/internal/modules/ai"
	"github.com/cuentacuentos/core/internal/modules/prompt"
	"github.com/cuentacuentos/core/internal/modules/rag"
	"github.com/cuentacuentos/core/internal/pkg/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeConfig struct{}

func (fakeConfig) Get() (*config.FullConfig, error) {
	cfg := config.DefaultFullConfig()
	// Background critique is driven through the task queue; unit tests cover
	// the synchronous pipeline only.
	cfg.AI.EnableAutoCritique = false
	return &cfg, nil
}

type fakeGenerator struct {
	configured bool
	story      *ai.GeneratedStory
	storyErr   error
	embedding  []float64
	embedErr   error
	illustErr  error
}

func (f *fakeGenerator) IsConfigured() bool { return f.configured }

func (f *fakeGenerator) GenerateStory(_ context.Context, _ string) (*ai.GeneratedStory, error) {
	return f.story, f.storyErr
}

func (f *fakeGenerator) GenerateCritique(_ context.Context, _, _ string) (*ai.CritiqueResult, error) {
	return nil, errors.New("not used")
}

func (f *fakeGenerator) GenerateEmbedding(_ context.Context, _ string) ([]float64, error) {
	return f.embedding, f.embedErr
}

func (f *fakeGenerator) GenerateIllustrationTemplate(_ context.Context, _, _ string) (map[string]interface{}, error) {
	if f.illustErr != nil {
		return nil, f.illustErr
	}
	return map[string]interface{}{"escena": "bosque"}, nil
}

type fakeRetriever struct {
	similar []rag.SimilarStory
	err     error
	gotOpts rag.SearchOptions
}

func (f *fakeRetriever) SearchSimilar(_ context.Context, _ string, opts rag.SearchOptions) ([]rag.SimilarStory, error) {
	f.gotOpts = opts
	return f.similar, f.err
}

func (f *fakeRetriever) DefaultOptions() rag.SearchOptions {
	return rag.SearchOptions{TopK: 2, MinSimilarity: 0.5, MinScore: 7}
}

type fakeComposer struct {
	gotSimilar []rag.SimilarStory
	gotApply   bool
}

func (f *fakeComposer) Compose(_ prompt.Inputs, applyLessons bool, similar []rag.SimilarStory) string {
	f.gotApply = applyLessons
	f.gotSimilar = similar
	return "PROMPT COMPUESTO"
}

type fakeLearner struct{ calls int }

func (f *fakeLearner) OnCritiqueStored(_ context.Context) error {
	f.calls++
	return nil
}

type memStore struct {
	stories   []*models.StoryModel
	critiques []*models.CritiqueModel
}

func (m *memStore) CreateStory(story *models.StoryModel) error {
	if story.ID == "" {
		story.ID = "story-1"
	}
	m.stories = append(m.stories, story)
	return nil
}

func (m *memStore) StoryByID(id string) (*models.StoryModel, error) {
	for _, s := range m.stories {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, nil
}

func (m *memStore) ListStories(_ *bool, limit int) ([]models.StoryModel, error) {
	out := make([]models.StoryModel, 0, len(m.stories))
	for _, s := range m.stories {
		if len(out) == limit {
			break
		}
		out = append(out, *s)
	}
	return out, nil
}

func (m *memStore) CreateCritique(critique *models.CritiqueModel) error {
	if critique.ID == "" {
		critique.ID = "critique-1"
	}
	m.critiques = append(m.critiques, critique)
	return nil
}

func (m *memStore) CritiquesForStory(storyID string) ([]models.CritiqueModel, error) {
	var out []models.CritiqueModel
	for _, c := range m.critiques {
		if c.StoryID == storyID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func newTestStoryService(st *memStore, gen *fakeGenerator, ret *fakeRetriever, comp *fakeComposer, learner *fakeLearner) *Service {
	return &Service{
		st:       st,
		gen:      gen,
		ret:      ret,
		composer: comp,
		learner:  learner,
		cfgSvc:   fakeConfig{},
		met:      metrics.New(),
		log:      zap.NewNop(),
	}
}

func TestGenerate_HappyPath(t *testing.T) {
	st := &memStore{}
	gen := &fakeGenerator{
		configured: true,
		story:      &ai.GeneratedStory{Title: "La bellota viajera", Content: "Había una vez..."},
		embedding:  []float64{0.1, 0.2},
	}
	ret := &fakeRetriever{similar: []rag.SimilarStory{{Rank: 1, Title: "El río"}}}
	comp := &fakeComposer{}
	svc := newTestStoryService(st, gen, ret, comp, &fakeLearner{})

	resp, err := svc.Generate(context.Background(), GenerateInput{Theme: "el otoño", TargetAge: 5})
	require.NoError(t, err)

	assert.Equal(t, "La bellota viajera", resp.Title)
	assert.Equal(t, "PROMPT COMPUESTO", resp.PromptUsed)
	assert.Equal(t, 1, resp.Version)
	assert.False(t, resp.IsSeed)

	// The retrieved examples reach the composer, with lessons applied.
	assert.True(t, comp.gotApply)
	assert.Len(t, comp.gotSimilar, 1)
	assert.Equal(t, 5, ret.gotOpts.TargetAge)

	require.Len(t, st.stories, 1)
	assert.Equal(t, []float64{0.1, 0.2}, []float64(st.stories[0].Embedding))
	assert.NotNil(t, st.stories[0].IllustrationTemplate)
}

func TestGenerate_Unconfigured(t *testing.T) {
	svc := newTestStoryService(&memStore{}, &fakeGenerator{configured: false}, &fakeRetriever{}, &fakeComposer{}, &fakeLearner{})

	_, err := svc.Generate(context.Background(), GenerateInput{Theme: "x"})
	assert.ErrorIs(t, err, ErrProviderUnconfigured)
}

func TestGenerate_MalformedResultPassthrough(t *testing.T) {
	gen := &fakeGenerator{configured: true, storyErr: ai.ErrMalformedResult}
	svc := newTestStoryService(&memStore{}, gen, &fakeRetriever{}, &fakeComposer{}, &fakeLearner{})

	_, err := svc.Generate(context.Background(), GenerateInput{Theme: "x"})
	assert.ErrorIs(t, err, ai.ErrMalformedResult)
}

func TestGenerate_ProviderFailureWrapped(t *testing.T) {
	gen := &fakeGenerator{configured: true, storyErr: errors.New("upstream 500")}
	svc := newTestStoryService(&memStore{}, gen, &fakeRetriever{}, &fakeComposer{}, &fakeLearner{})

	_, err := svc.Generate(context.Background(), GenerateInput{Theme: "x"})
	assert.ErrorIs(t, err, ErrGenerationFailed)
	assert.Contains(t, err.Error(), "upstream 500")
}

func TestGenerate_RetrievalFailureDegrades(t *testing.T) {
	st := &memStore{}
	gen := &fakeGenerator{configured: true, story: &ai.GeneratedStory{Title: "T", Content: "C"}}
	ret := &fakeRetriever{err: errors.New("search down")}
	comp := &fakeComposer{}
	svc := newTestStoryService(st, gen, ret, comp, &fakeLearner{})

	_, err := svc.Generate(context.Background(), GenerateInput{Theme: "x"})
	require.NoError(t, err)
	assert.Nil(t, comp.gotSimilar)
	assert.Len(t, st.stories, 1)
}

func TestGenerate_EmbeddingFailureStoresNull(t *testing.T) {
	st := &memStore{}
	gen := &fakeGenerator{
		configured: true,
		story:      &ai.GeneratedStory{Title: "T", Content: "C"},
		embedErr:   errors.New("embeddings down"),
		illustErr:  errors.New("illustration down"),
	}
	svc := newTestStoryService(st, gen, &fakeRetriever{}, &fakeComposer{}, &fakeLearner{})

	_, err := svc.Generate(context.Background(), GenerateInput{Theme: "x"})
	require.NoError(t, err)
	require.Len(t, st.stories, 1)
	assert.False(t, st.stories[0].HasEmbedding())
	assert.Nil(t, st.stories[0].IllustrationTemplate)
}

func TestDeriveTitle(t *testing.T) {
	tests := []struct {
		name    string
		title   string
		content string
		theme   string
		want    string
	}{
		{"explicit title wins", "Mi título", "otro texto", "tema", "Mi título"},
		{"first content line", "", "\n\n# La gran aventura\nhabía una vez", "tema", "La gran aventura"},
		{"theme fallback", "", "", "los dragones", "Cuento sobre los dragones"},
		{"markdown stripped", "**El bosque**", "", "tema", "El bosque"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, deriveTitle(tt.title, tt.content, tt.theme))
		})
	}

	t.Run("long titles truncated", func(t *testing.T) {
		long := strings.Repeat("á", 150)
		got := deriveTitle(long, "", "tema")
		assert.Equal(t, strings.Repeat("á", 97)+"...", got)
		assert.Len(t, []rune(got), 100)
	})
}

func TestBuildContext(t *testing.T) {
	input := GenerateInput{
		Theme:           "la amistad",
		CharacterNames:  []string{"Luna", "Bruno"},
		MoralLesson:     "compartir",
		SpecialElements: "un mapa",
	}
	assert.Equal(t,
		"Tema: la amistad | Personajes: Luna, Bruno | Lección moral: compartir | Elementos especiales: un mapa",
		buildContext(input))

	assert.Equal(t, "Tema: solo", buildContext(GenerateInput{Theme: "solo"}))
}

func TestAddCritique(t *testing.T) {
	st := &memStore{}
	learner := &fakeLearner{}
	svc := newTestStoryService(st, &fakeGenerator{}, &fakeRetriever{}, &fakeComposer{}, learner)

	existing := &models.StoryModel{Title: "T", Content: "C"}
	existing.ID = "story-9"
	require.NoError(t, st.CreateStory(existing))

	critique, err := svc.AddCritique(context.Background(), CritiqueInput{
		StoryID:      "story-9",
		CritiqueText: "muy buen ritmo",
		Score:        8.5,
	})
	require.NoError(t, err)
	assert.Equal(t, 8.5, critique.Score)
	assert.Equal(t, 1, learner.calls)
}

func TestAddCritique_UnknownStory(t *testing.T) {
	svc := newTestStoryService(&memStore{}, &fakeGenerator{}, &fakeRetriever{}, &fakeComposer{}, &fakeLearner{})

	_, err := svc.AddCritique(context.Background(), CritiqueInput{StoryID: "nope", CritiqueText: "x", Score: 5})
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestCritiques_UnknownStory(t *testing.T) {
	svc := newTestStoryService(&memStore{}, &fakeGenerator{}, &fakeRetriever{}, &fakeComposer{}, &fakeLearner{})

	_, err := svc.Critiques("nope")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestCreate_WithPromptInputs(t *testing.T) {
	st := &memStore{}
	comp := &fakeComposer{}
	svc := newTestStoryService(st, &fakeGenerator{}, &fakeRetriever{}, comp, &fakeLearner{})

	resp, err := svc.Create(CreateInput{
		Title:        "Semilla",
		Content:      "contenido",
		IsSeed:       true,
		PromptInputs: &prompt.Inputs{Character: "Luna"},
	})
	require.NoError(t, err)
	assert.True(t, resp.IsSeed)
	assert.Equal(t, "PROMPT COMPUESTO", resp.PromptUsed)
	assert.False(t, comp.gotApply)
}

func TestRenderHTML(t *testing.T) {
	out, err := RenderHTML("El bosque <script>", "Había una vez **un oso**.")
	require.NoError(t, err)
	assert.Contains(t, out, "<h1>El bosque &lt;script&gt;</h1>")
	assert.Contains(t, out, "<strong>un oso</strong>")
}
