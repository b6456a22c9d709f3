package prompt

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cuentacuentos/core/internal/modules/character"
	"github.com/cuentacuentos/core/internal/modules/rag"
	"go.uber.org/zap"
)

const notSpecified = "Sin especificar"

// Inputs are the user-facing creative brief. JSON keys are Spanish to match
// the product's API.
type Inputs struct {
	Character           string   `json:"personaje"`
	CharacterID         string   `json:"personaje_id,omitempty"`
	CharacterRole       string   `json:"rol_personaje,omitempty"`
	SecondaryCharacters []string `json:"personajes_secundarios,omitempty"`
	OptionalContext     string   `json:"contexto_opcional,omitempty"`
	TargetEmotion       string   `json:"emocion_objetivo,omitempty"`
	Place               string   `json:"lugar,omitempty"`
	SignificantObject   string   `json:"objeto_significativo,omitempty"`
}

// Lesson is the slice of a learned lesson the composer weaves into prompts.
type Lesson struct {
	LessonID           int
	Insight            string
	Category           string
	ActionableGuidance string
}

// LessonSource supplies active lessons and records their application.
type LessonSource interface {
	ActiveLessons() ([]Lesson, error)
	MarkApplied(lessonIDs []int) error
}

// Composer builds generation prompts. It never fails: missing style guide,
// unknown characters, empty lesson or example sets all degrade to omitting
// the section or printing a fallback placeholder.
type Composer struct {
	styles  *StyleService
	chars   *character.Service
	lessons LessonSource
	log     *zap.Logger
}

func NewComposer(styles *StyleService, chars *character.Service, lessons LessonSource, log *zap.Logger) *Composer {
	return &Composer{styles: styles, chars: chars, lessons: lessons, log: log}
}

// Compose assembles the final prompt in a fixed order: style-guide rules with
// the resolved character block, structural-variation guidance, retrieved
// examples, active lessons (when requested), and the output-format contract.
func (c *Composer) Compose(inputs Inputs, applyLessons bool, similar []rag.SimilarStory) string {
	var parts []string

	parts = append(parts, c.styleSection(inputs))
	parts = append(parts, structuralVariationSection)
	if section := examplesSection(similar); section != "" {
		parts = append(parts, section)
	}
	if applyLessons {
		if section := c.lessonsSection(); section != "" {
			parts = append(parts, section)
		}
	}
	parts = append(parts, outputFormatSection)

	return strings.Join(parts, "\n\n")
}

func (c *Composer) styleSection(inputs Inputs) string {
	var guide Guide
	if c.styles != nil {
		sg, err := c.styles.Guide()
		if err != nil {
			c.log.Warn("style guide unavailable", zap.Error(err))
		} else {
			guide = sg.Guide
		}
	}

	lines := []string{
		"Escribe un cuento infantil siguiendo esta guía:",
		"Colección: " + orNotSpecified(guide.Collection),
		"Audiencia objetivo: " + orNotSpecified(guide.TargetAudience),
		"Tono:",
		formatList(guide.Tone),
		"Valores clave:",
		formatList(guide.KeyValues),
		"Estructura narrativa:",
		"- Título: " + orNotSpecified(guide.Structure.Title),
		"- Inicio: " + orNotSpecified(guide.Structure.Opening),
		"- Desarrollo: " + orNotSpecified(guide.Structure.Development),
		"- Clímax: " + orNotSpecified(guide.Structure.Climax),
		"- Resolución: " + orNotSpecified(guide.Structure.Resolution),
		"- Cierre opcional: " + orNotSpecified(guide.Structure.OptionalClosing),
		"Requisitos mínimos:",
		"- Onomatopeya: " + orNotSpecified(guide.Requirements.Onomatopoeia),
		"- Ausencia de villanos: " + orNotSpecified(guide.Requirements.NoVillains),
		"- Lenguaje claro: " + orNotSpecified(guide.Requirements.ClearLanguage),
		"Recomendaciones:",
		"- Longitud: " + orNotSpecified(guide.Recommendations.TextLength),
		"- Párrafos: " + orNotSpecified(guide.Recommendations.Paragraphs),
		"- Lenguaje sensorial: " + orNotSpecified(guide.Recommendations.SensoryLanguage),
		"- Diálogos: " + orNotSpecified(guide.Recommendations.Dialogues),
		"- Ritmo: " + orNotSpecified(guide.Recommendations.Rhythm),
		"Flexibilidad sugerida:",
		"- Variación temática: " + joinOrNotSpecified(guide.Flexibility.ThematicVariation),
		"- Variación de escenarios: " + joinOrNotSpecified(guide.Flexibility.ScenarioVariation),
		"- Elementos opcionales: " + joinOrNotSpecified(guide.Flexibility.OptionalElements),
		"Inputs del usuario:",
		formatList(c.userLines(inputs)),
		"IMPORTANTE: Mantén la coherencia visual y narrativa del personaje a lo largo del cuento.",
		"Entrega un texto único, cálido y coherente, evitando clichés explícitos.",
	}
	return strings.Join(lines, "\n")
}

// userLines renders the user brief, resolving a registered character by id
// first, then by case-insensitive name.
func (c *Composer) userLines(inputs Inputs) []string {
	lines := []string{"Personaje principal: " + inputs.Character}

	var resolved *character.Character
	if c.chars != nil {
		var err error
		if inputs.CharacterID != "" {
			resolved, err = c.chars.ByID(inputs.CharacterID)
		} else if inputs.Character != "" {
			resolved, err = c.chars.ByName(inputs.Character)
		}
		if err != nil {
			c.log.Warn("character lookup failed", zap.Error(err))
		}
	}

	if resolved != nil {
		lines = append(lines, fmt.Sprintf("  Descripción visual: %s, %s, %s",
			resolved.Traits.Hair, resolved.Traits.Eyes, resolved.Traits.ApparentAge))
		if len(resolved.Personality.Archetypes) > 0 {
			lines = append(lines, "  Arquetipos: "+strings.Join(resolved.Personality.Archetypes, ", "))
		}
		if len(resolved.Personality.Motivations) > 0 {
			lines = append(lines, "  Motivaciones: "+strings.Join(resolved.Personality.Motivations, ", "))
		}
	}

	if inputs.CharacterRole != "" {
		lines = append(lines, "Rol: "+inputs.CharacterRole)
	}
	if len(inputs.SecondaryCharacters) > 0 {
		lines = append(lines, "Personajes secundarios: "+strings.Join(inputs.SecondaryCharacters, ", "))
	}
	if inputs.OptionalContext != "" {
		lines = append(lines, "Contexto opcional: "+inputs.OptionalContext)
	}
	if inputs.TargetEmotion != "" {
		lines = append(lines, "Emoción objetivo: "+inputs.TargetEmotion)
	}
	if inputs.Place != "" {
		lines = append(lines, "Lugar: "+inputs.Place)
	}
	if inputs.SignificantObject != "" {
		lines = append(lines, "Objeto significativo: "+inputs.SignificantObject)
	}
	return lines
}

// Repeated generation collapses to one template unless the prompt forces the
// generator to choose among alternatives each time. The composer only
// enumerates; the generator selects.
const structuralVariationSection = `VARIACIÓN ESTRUCTURAL OBLIGATORIA:
No uses siempre la misma estructura ni el mismo tipo de cierre. Elige TÚ una
opción distinta en cada cuento, entre otras:
Estructuras narrativas posibles:
- Lineal clásica (inicio, nudo, desenlace)
- In medias res (empezar en mitad de la acción)
- Circular (el final vuelve al punto de partida)
- Acumulativa (elementos que se suman con repetición rítmica)
Estilos de cierre posibles:
- Cierre con onomatopeya o sonido
- Final abierto que invita a imaginar
- Pregunta directa al lector
- Vuelta a casa con un pequeño cambio
PROHIBIDO: repetir por defecto un único patrón fijo de estructura o de cierre.`

func examplesSection(similar []rag.SimilarStory) string {
	if len(similar) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("EJEMPLOS DE CUENTOS EXITOSOS (NO copies el contenido: aprende la técnica):")
	for _, ex := range similar {
		fmt.Fprintf(&b, "\n\nEjemplo #%d: %q (similitud %.3f, puntuación %.1f/10)", ex.Rank, ex.Title, ex.Similarity, ex.Score)
		if len(ex.Techniques) > 0 {
			b.WriteString("\nTécnicas destacadas:")
			for _, t := range ex.Techniques {
				b.WriteString("\n- " + t)
			}
		}
		b.WriteString("\nFragmento:\n" + ex.Fragment)
	}
	return b.String()
}

func (c *Composer) lessonsSection() string {
	if c.lessons == nil {
		return ""
	}
	lessons, err := c.lessons.ActiveLessons()
	if err != nil {
		c.log.Warn("active lessons unavailable", zap.Error(err))
		return ""
	}
	if len(lessons) == 0 {
		return ""
	}

	byCategory := map[string][]Lesson{}
	for _, lesson := range lessons {
		byCategory[lesson.Category] = append(byCategory[lesson.Category], lesson)
	}
	categories := make([]string, 0, len(byCategory))
	for cat := range byCategory {
		categories = append(categories, cat)
	}
	sort.Strings(categories)

	var b strings.Builder
	b.WriteString("LECCIONES APRENDIDAS DE CUENTOS ANTERIORES (aplícalas):")
	applied := make([]int, 0, len(lessons))
	for _, cat := range categories {
		fmt.Fprintf(&b, "\n[%s]", cat)
		for _, lesson := range byCategory[cat] {
			fmt.Fprintf(&b, "\n- %s", lesson.Insight)
			if lesson.ActionableGuidance != "" {
				fmt.Fprintf(&b, " → %s", lesson.ActionableGuidance)
			}
			applied = append(applied, lesson.LessonID)
		}
	}

	if err := c.lessons.MarkApplied(applied); err != nil {
		c.log.Warn("mark lessons applied failed", zap.Error(err))
	}
	return b.String()
}

const outputFormatSection = `FORMATO DE SALIDA:
Devuelve EXCLUSIVAMENTE un JSON válido con exactamente dos campos:
{"title": "...", "content": "..."}
Nada de texto adicional, comentarios ni marcas de markdown.`

func orNotSpecified(s string) string {
	if strings.TrimSpace(s) == "" {
		return notSpecified
	}
	return s
}

func joinOrNotSpecified(items []string) string {
	if len(items) == 0 {
		return notSpecified
	}
	return strings.Join(items, ", ")
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "- (sin especificar)"
	}
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = "- " + item
	}
	return strings.Join(out, "\n")
}
