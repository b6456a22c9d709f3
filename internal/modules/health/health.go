// Package health exposes the liveness and readiness surface.
package health

import (
	"net/http"

	"github.com/cuentacuentos/core/internal/modules/character"
	"github.com/cuentacuentos/core/internal/modules/prompt"
	"github.com/gin-gonic/gin"
)

const serviceName = "CuentaCuentos API"

// provider is the slice of the AI service the health check inspects.
type provider interface {
	IsConfigured() bool
}

type Handler struct {
	chars   *character.Service
	styles  *prompt.StyleService
	gen     provider
	version string
}

func NewHandler(chars *character.Service, styles *prompt.StyleService, gen provider, version string) *Handler {
	return &Handler{chars: chars, styles: styles, gen: gen, version: version}
}

// RegisterRoutes mounts the health endpoints on the engine root so probes
// don't need the API prefix.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/", h.root)
	r.GET("/health", h.health)
}

func (h *Handler) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": serviceName,
		"version": h.version,
		"status":  "ok",
	})
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":              "healthy",
		"version":             h.version,
		"characters_loaded":   h.chars.Loaded(),
		"style_guide_loaded":  h.styles.Loaded(),
		"provider_configured": h.gen.IsConfigured(),
	})
}
