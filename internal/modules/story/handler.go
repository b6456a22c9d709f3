package story

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/cuentacuentos/core/internal/modules/ai"
	"github.com/cuentacuentos/core/internal/modules/prompt"
	"github.com/cuentacuentos/core/internal/pkg/response"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type Handler struct{ svc *Service }

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/stories")
	g.POST("/generate", h.generate)
	g.POST("/prompt", h.composePrompt)
	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.GET("/:id/html", h.getHTML)
	g.GET("/:id/critiques", h.critiques)

	rg.POST("/critiques", h.addCritique)
}

// POST /stories/generate
func (h *Handler) generate(c *gin.Context) {
	var input GenerateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.svc.Generate(c.Request.Context(), input)
	if err != nil {
		switch {
		case errors.Is(err, ErrProviderUnconfigured), errors.Is(err, ai.ErrUnconfigured):
			response.ServiceUnavailable(c, "Servicio de IA no configurado. Revisa la configuración de proveedores.")
		case errors.Is(err, ai.ErrMalformedResult):
			c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{
				"ok": 0, "code": http.StatusBadGateway,
				"message": "El generador devolvió un resultado sin título o contenido",
			})
		case errors.Is(err, ErrGenerationFailed):
			c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{
				"ok": 0, "code": http.StatusBadGateway,
				"message": err.Error(),
			})
		default:
			response.InternalError(c, err)
		}
		return
	}
	response.Created(c, result)
}

// POST /stories/prompt
func (h *Handler) composePrompt(c *gin.Context) {
	var inputs prompt.Inputs
	if err := c.ShouldBindJSON(&inputs); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	response.OK(c, gin.H{"prompt": h.svc.ComposePrompt(inputs)})
}

// POST /stories
func (h *Handler) create(c *gin.Context) {
	var input CreateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	result, err := h.svc.Create(input)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Created(c, result)
}

// GET /stories?is_seed=...&limit=...
func (h *Handler) list(c *gin.Context) {
	var isSeed *bool
	if raw := c.Query("is_seed"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			response.BadRequest(c, "is_seed must be a boolean")
			return
		}
		isSeed = &v
	}
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			response.BadRequest(c, "limit must be a positive integer")
			return
		}
		limit = v
	}

	stories, err := h.svc.List(isSeed, limit)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, stories)
}

func (h *Handler) get(c *gin.Context) {
	story, err := h.svc.ByID(c.Param("id"))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if story == nil {
		response.NotFound(c)
		return
	}
	response.OK(c, story)
}

// GET /stories/:id/html
func (h *Handler) getHTML(c *gin.Context) {
	story, err := h.svc.ByID(c.Param("id"))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if story == nil {
		response.NotFound(c)
		return
	}

	rendered, err := RenderHTML(story.Title, story.Content)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(rendered))
}

// GET /stories/:id/critiques
func (h *Handler) critiques(c *gin.Context) {
	storyID := c.Param("id")
	critiques, err := h.svc.Critiques(storyID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c)
			return
		}
		response.InternalError(c, err)
		return
	}
	response.OK(c, gin.H{
		"story_id":  storyID,
		"total":     len(critiques),
		"critiques": critiques,
	})
}

// POST /critiques
func (h *Handler) addCritique(c *gin.Context) {
	var input CritiqueInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	critique, err := h.svc.AddCritique(c.Request.Context(), input)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFoundMsg(c, "Story with id "+input.StoryID+" not found")
			return
		}
		response.InternalError(c, err)
		return
	}
	response.Created(c, critique)
}
