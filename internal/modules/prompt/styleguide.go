// Package prompt assembles generation prompts from the style guide, the
// character registry, learned lessons and retrieved examples.
package prompt

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// Structure describes the narrative skeleton section of the style guide.
// Every field is optional; lookups fall back to "Sin especificar".
type Structure struct {
	Title           string `json:"titulo,omitempty"`
	Opening         string `json:"inicio,omitempty"`
	Development     string `json:"desarrollo,omitempty"`
	Climax          string `json:"climax,omitempty"`
	Resolution      string `json:"resolucion,omitempty"`
	OptionalClosing string `json:"cierre_opcional,omitempty"`
}

type Requirements struct {
	Onomatopoeia  string `json:"onomatopeya,omitempty"`
	NoVillains    string `json:"ausencia_de_villanos,omitempty"`
	ClearLanguage string `json:"lenguaje_claro,omitempty"`
}

type Recommendations struct {
	TextLength      string `json:"longitud_texto,omitempty"`
	Paragraphs      string `json:"parrafos,omitempty"`
	SensoryLanguage string `json:"lenguaje_sensorial,omitempty"`
	Dialogues       string `json:"dialogos,omitempty"`
	Rhythm          string `json:"ritmo,omitempty"`
}

type Flexibility struct {
	ThematicVariation []string `json:"variacion_tematica,omitempty"`
	ScenarioVariation []string `json:"variacion_escenarios,omitempty"`
	OptionalElements  []string `json:"elementos_opcionales,omitempty"`
}

type Guide struct {
	Collection      string          `json:"coleccion,omitempty"`
	TargetAudience  string          `json:"audiencia_objetivo,omitempty"`
	Tone            []string        `json:"tono,omitempty"`
	KeyValues       []string        `json:"valores_clave,omitempty"`
	Structure       Structure       `json:"estructura_narrativa,omitempty"`
	Requirements    Requirements    `json:"requisitos_minimos,omitempty"`
	Recommendations Recommendations `json:"recomendaciones,omitempty"`
	Flexibility     Flexibility     `json:"flexibilidad,omitempty"`
}

// StyleGuide mirrors the hand-authored style_guide.json document.
type StyleGuide struct {
	Guide Guide `json:"guia_estilo_cuento"`
}

// StyleService loads and caches the style guide. A missing file is an empty
// guide, not an error.
type StyleService struct {
	path string

	mu     sync.RWMutex
	loaded bool
	guide  StyleGuide
}

func NewStyleService(path string) *StyleService {
	return &StyleService{path: path}
}

// Guide returns the cached style guide, loading it on first use.
func (s *StyleService) Guide() (StyleGuide, error) {
	s.mu.RLock()
	if s.loaded {
		defer s.mu.RUnlock()
		return s.guide, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return s.guide, nil
	}

	content, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.loaded = true
			return s.guide, nil
		}
		return StyleGuide{}, fmt.Errorf("read style guide %q: %w", s.path, err)
	}

	var guide StyleGuide
	if err := json.Unmarshal(content, &guide); err != nil {
		return StyleGuide{}, fmt.Errorf("parse style guide %q: %w", s.path, err)
	}
	s.guide = guide
	s.loaded = true
	return s.guide, nil
}

// Loaded reports whether the guide file parsed with any content.
func (s *StyleService) Loaded() bool {
	guide, err := s.Guide()
	return err == nil && guide.Guide.Collection != ""
}

// Refresh drops the cache so the next read hits the file again.
func (s *StyleService) Refresh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = false
	s.guide = StyleGuide{}
}
