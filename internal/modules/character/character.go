// Package character serves the character registry: a JSON document describing
// the recurring protagonists so stories and illustrations stay visually and
// narratively coherent across generations.
package character

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
)

// Traits are the visual traits the composer weaves into prompts.
type Traits struct {
	Hair        string `json:"cabello,omitempty"`
	Eyes        string `json:"ojos,omitempty"`
	ApparentAge string `json:"edad_aparente,omitempty"`
	Height      string `json:"altura,omitempty"`
	Skin        string `json:"piel,omitempty"`
}

// Personality drives narrative consistency.
type Personality struct {
	Archetypes  []string `json:"arquetipos,omitempty"`
	Motivations []string `json:"motivaciones,omitempty"`
	Fears       []string `json:"miedos,omitempty"`
	Strengths   []string `json:"fortalezas,omitempty"`
}

// IllustrationRules constrain image prompts derived from the character.
type IllustrationRules struct {
	BasePrompt    string   `json:"prompt_base_ia,omitempty"`
	ForbiddenUses []string `json:"usos_prohibidos,omitempty"`
}

type Metadata struct {
	TotalAppearances int    `json:"total_apariciones,omitempty"`
	FirstAppearance  string `json:"primera_aparicion,omitempty"`
	LastUpdated      string `json:"ultima_actualizacion,omitempty"`
}

// Character is one entry of the registry document. The JSON keys are Spanish
// because the document is authored by hand in Spanish.
type Character struct {
	ID          string            `json:"id"`
	Name        string            `json:"nombre"`
	Status      string            `json:"estado"`
	Traits      Traits            `json:"rasgos_distintivos,omitempty"`
	Wardrobe    json.RawMessage   `json:"armario_coherente,omitempty"`
	Personality Personality       `json:"personalidad_narrativa,omitempty"`
	Rules       IllustrationRules `json:"reglas_ilustracion,omitempty"`
	Accessories json.RawMessage   `json:"accesorios_frecuentes,omitempty"`
	History     json.RawMessage   `json:"historico_apariciones,omitempty"`
	Metadata    Metadata          `json:"metadata,omitempty"`
}

// Summary is the list-view projection of a character.
type Summary struct {
	ID               string `json:"id"`
	Name             string `json:"nombre"`
	Status           string `json:"estado"`
	ApparentAge      string `json:"edad_aparente,omitempty"`
	BasePrompt       string `json:"prompt_base_ia,omitempty"`
	TotalAppearances int    `json:"total_apariciones"`
}

// Service loads and caches the registry. A missing file is an empty registry,
// not an error.
type Service struct {
	path string

	mu     sync.RWMutex
	loaded bool
	chars  []Character
}

func NewService(path string) *Service {
	return &Service{path: path}
}

// All returns every registered character.
func (s *Service) All() ([]Character, error) {
	s.mu.RLock()
	if s.loaded {
		defer s.mu.RUnlock()
		return s.chars, nil
	}
	s.mu.RUnlock()

	return s.load()
}

func (s *Service) load() ([]Character, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return s.chars, nil
	}

	content, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.chars = []Character{}
			s.loaded = true
			return s.chars, nil
		}
		return nil, fmt.Errorf("read characters file %q: %w", s.path, err)
	}

	var chars []Character
	if err := json.Unmarshal(content, &chars); err != nil {
		return nil, fmt.Errorf("parse characters file %q: %w", s.path, err)
	}
	s.chars = chars
	s.loaded = true
	return s.chars, nil
}

// ByID returns the character with the exact id, or nil.
func (s *Service) ByID(id string) (*Character, error) {
	chars, err := s.All()
	if err != nil {
		return nil, err
	}
	for i := range chars {
		if chars[i].ID == id {
			return &chars[i], nil
		}
	}
	return nil, nil
}

// ByName returns the character whose name matches case-insensitively, or nil.
func (s *Service) ByName(name string) (*Character, error) {
	chars, err := s.All()
	if err != nil {
		return nil, err
	}
	for i := range chars {
		if strings.EqualFold(chars[i].Name, name) {
			return &chars[i], nil
		}
	}
	return nil, nil
}

// Loaded reports whether the registry file parsed and holds any characters.
func (s *Service) Loaded() bool {
	chars, err := s.All()
	return err == nil && len(chars) > 0
}

// Refresh drops the cache so the next read hits the file again.
func (s *Service) Refresh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = false
	s.chars = nil
}
