package prompt

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cuentacuentos/core/internal/modules/character"
	"github.com/cuentacuentos/core/internal/modules/rag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeLessons struct {
	lessons []Lesson
	err     error
	applied []int
}

func (f *fakeLessons) ActiveLessons() ([]Lesson, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.lessons, nil
}

func (f *fakeLessons) MarkApplied(lessonIDs []int) error {
	f.applied = append(f.applied, lessonIDs...)
	return nil
}

func newTestComposer(t *testing.T, lessons LessonSource) *Composer {
	t.Helper()
	missing := filepath.Join(t.TempDir(), "missing.json")
	return NewComposer(NewStyleService(missing), character.NewService(missing), lessons, zap.NewNop())
}

func TestCompose_EmptyInputsNeverPanics(t *testing.T) {
	c := newTestComposer(t, &fakeLessons{})

	out := c.Compose(Inputs{}, true, nil)

	assert.Contains(t, out, "Sin especificar")
	assert.Contains(t, out, "- (sin especificar)")
	assert.Contains(t, out, "VARIACIÓN ESTRUCTURAL OBLIGATORIA")
	assert.Contains(t, out, "FORMATO DE SALIDA")
	assert.NotContains(t, out, "EJEMPLOS DE CUENTOS EXITOSOS")
	assert.NotContains(t, out, "LECCIONES APRENDIDAS")
}

func TestCompose_SectionOrder(t *testing.T) {
	c := newTestComposer(t, &fakeLessons{lessons: []Lesson{{LessonID: 1, Insight: "insight", Category: "language"}}})

	similar := []rag.SimilarStory{{Rank: 1, Title: "El río", Fragment: "había una vez", Similarity: 0.91, Score: 8.5}}
	out := c.Compose(Inputs{Character: "Luna"}, true, similar)

	styleIdx := strings.Index(out, "Escribe un cuento infantil")
	variationIdx := strings.Index(out, "VARIACIÓN ESTRUCTURAL OBLIGATORIA")
	examplesIdx := strings.Index(out, "EJEMPLOS DE CUENTOS EXITOSOS")
	lessonsIdx := strings.Index(out, "LECCIONES APRENDIDAS")
	formatIdx := strings.Index(out, "FORMATO DE SALIDA")

	require.True(t, styleIdx >= 0 && variationIdx > styleIdx)
	require.True(t, examplesIdx > variationIdx)
	require.True(t, lessonsIdx > examplesIdx)
	require.True(t, formatIdx > lessonsIdx)
}

func TestCompose_ExamplesSection(t *testing.T) {
	c := newTestComposer(t, &fakeLessons{})

	similar := []rag.SimilarStory{
		{Rank: 1, Title: "El río", Fragment: "fragmento uno", Similarity: 0.913, Score: 8.5, Techniques: []string{"ritmo"}},
		{Rank: 2, Title: "La luna", Fragment: "fragmento dos", Similarity: 0.72, Score: 9.0},
	}
	out := c.Compose(Inputs{Character: "Luna"}, false, similar)

	assert.Contains(t, out, "NO copies el contenido: aprende la técnica")
	assert.Contains(t, out, `Ejemplo #1: "El río" (similitud 0.913, puntuación 8.5/10)`)
	assert.Contains(t, out, "Técnicas destacadas:")
	assert.Contains(t, out, "- ritmo")
	assert.Contains(t, out, "fragmento dos")
}

func TestCompose_LessonsAppliedAndGrouped(t *testing.T) {
	lessons := &fakeLessons{lessons: []Lesson{
		{LessonID: 2, Insight: "cerrar con sonido", Category: "structure", ActionableGuidance: "usa onomatopeya final"},
		{LessonID: 5, Insight: "frases más cortas", Category: "language"},
	}}
	c := newTestComposer(t, lessons)

	out := c.Compose(Inputs{Character: "Luna"}, true, nil)

	assert.Contains(t, out, "LECCIONES APRENDIDAS DE CUENTOS ANTERIORES (aplícalas):")
	assert.Contains(t, out, "[language]")
	assert.Contains(t, out, "[structure]")
	assert.Contains(t, out, "usa onomatopeya final")
	assert.ElementsMatch(t, []int{2, 5}, lessons.applied)

	// Categories render sorted.
	assert.Less(t, strings.Index(out, "[language]"), strings.Index(out, "[structure]"))
}

func TestCompose_LessonsSkippedWhenNotRequested(t *testing.T) {
	lessons := &fakeLessons{lessons: []Lesson{{LessonID: 1, Insight: "x", Category: "general"}}}
	c := newTestComposer(t, lessons)

	out := c.Compose(Inputs{Character: "Luna"}, false, nil)

	assert.NotContains(t, out, "LECCIONES APRENDIDAS")
	assert.Empty(t, lessons.applied)
}

func TestCompose_LessonSourceFailureOmitsSection(t *testing.T) {
	c := newTestComposer(t, &fakeLessons{err: errors.New("db down")})

	out := c.Compose(Inputs{Character: "Luna"}, true, nil)
	assert.NotContains(t, out, "LECCIONES APRENDIDAS")
	assert.Contains(t, out, "FORMATO DE SALIDA")
}

func TestCompose_ResolvesRegisteredCharacter(t *testing.T) {
	dir := t.TempDir()
	charsPath := filepath.Join(dir, "characters.json")
	doc := `[{
		"id": "luna-luciernaga",
		"nombre": "Luna",
		"estado": "activo",
		"rasgos_distintivos": {"cabello": "luz dorada", "ojos": "negros", "edad_aparente": "5 años"},
		"personalidad_narrativa": {"arquetipos": ["exploradora"], "motivaciones": ["descubrir"]}
	}]`
	require.NoError(t, os.WriteFile(charsPath, []byte(doc), 0o644))

	c := NewComposer(
		NewStyleService(filepath.Join(dir, "missing.json")),
		character.NewService(charsPath),
		&fakeLessons{},
		zap.NewNop(),
	)

	out := c.Compose(Inputs{Character: "luna"}, false, nil)
	assert.Contains(t, out, "Descripción visual: luz dorada, negros, 5 años")
	assert.Contains(t, out, "Arquetipos: exploradora")
	assert.Contains(t, out, "Motivaciones: descubrir")
}

func TestCompose_UserBriefLines(t *testing.T) {
	c := newTestComposer(t, &fakeLessons{})

	out := c.Compose(Inputs{
		Character:           "Bruno",
		CharacterRole:       "protagonista",
		SecondaryCharacters: []string{"Luna", "Pip"},
		OptionalContext:     "Tema: el otoño",
		TargetEmotion:       "calma",
		Place:               "el bosque",
		SignificantObject:   "una bellota",
	}, false, nil)

	assert.Contains(t, out, "Personaje principal: Bruno")
	assert.Contains(t, out, "Rol: protagonista")
	assert.Contains(t, out, "Personajes secundarios: Luna, Pip")
	assert.Contains(t, out, "Contexto opcional: Tema: el otoño")
	assert.Contains(t, out, "Emoción objetivo: calma")
	assert.Contains(t, out, "Lugar: el bosque")
	assert.Contains(t, out, "Objeto significativo: una bellota")
}

func TestStyleGuide_LoadedFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "style_guide.json")
	doc := `{"guia_estilo_cuento": {"coleccion": "Cuentos de prueba", "tono": ["cálido"]}}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	svc := NewStyleService(path)
	guide, err := svc.Guide()
	require.NoError(t, err)
	assert.Equal(t, "Cuentos de prueba", guide.Guide.Collection)
	assert.True(t, svc.Loaded())
}

func TestStyleGuide_MissingFileIsEmpty(t *testing.T) {
	svc := NewStyleService(filepath.Join(t.TempDir(), "missing.json"))
	guide, err := svc.Guide()
	require.NoError(t, err)
	assert.Empty(t, guide.Guide.Collection)
	assert.False(t, svc.Loaded())
}

func TestStyleGuide_Refresh(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "style_guide.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"guia_estilo_cuento": {"coleccion": "v1"}}`), 0o644))

	svc := NewStyleService(path)
	guide, err := svc.Guide()
	require.NoError(t, err)
	assert.Equal(t, "v1", guide.Guide.Collection)

	require.NoError(t, os.WriteFile(path, []byte(`{"guia_estilo_cuento": {"coleccion": "v2"}}`), 0o644))
	svc.Refresh()

	guide, err = svc.Guide()
	require.NoError(t, err)
	assert.Equal(t, "v2", guide.Guide.Collection)
}
