package learning

import (
	"errors"
	"strconv"

	"github.com/cuentacuentos/core/internal/models"
	"github.com/cuentacuentos/core/internal/pkg/response"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type Handler struct{ svc *Service }

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/learning")
	g.POST("/synthesize", h.synthesize)
	g.GET("/statistics", h.statistics)
	g.GET("/lessons", h.listLessons)
	g.GET("/history", h.history)
	g.GET("/style-profile", h.styleProfile)
	g.POST("/lessons/:id/archive", h.archiveLesson)
}

// POST /learning/synthesize?last_n=5
func (h *Handler) synthesize(c *gin.Context) {
	lastN := 5
	if raw := c.Query("last_n"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 50 {
			response.BadRequest(c, "last_n must be between 1 and 50")
			return
		}
		lastN = n
	}

	summary, err := h.svc.SynthesizeNow(c.Request.Context(), lastN)
	if err != nil {
		switch {
		case errors.Is(err, ErrNoCritiques):
			response.NotFoundMsg(c, "No hay críticas disponibles para sintetizar")
		case errors.Is(err, ErrTooFewCritiques):
			response.BadRequest(c, err.Error())
		default:
			response.InternalError(c, err)
		}
		return
	}

	response.OK(c, gin.H{
		"status":             "success",
		"critiques_analyzed": summary.CritiquesAnalyzed,
		"lessons_extracted":  len(summary.Lessons),
		"lessons":            summary.Lessons,
		"synthesis_summary":  summary.SynthesisSummary,
		"meta_insights":      summary.MetaInsights,
		"profile_updated":    summary.ProfileUpdated,
	})
}

func (h *Handler) statistics(c *gin.Context) {
	stats, err := h.svc.Statistics()
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, stats)
}

// GET /learning/lessons?category=...&status=active|archived|all
func (h *Handler) listLessons(c *gin.Context) {
	category := c.Query("category")
	status := c.DefaultQuery("status", models.LessonStatusActive)
	if status != models.LessonStatusActive && status != models.LessonStatusArchived && status != "all" {
		response.BadRequest(c, "status must be active, archived or all")
		return
	}

	lessons, err := h.svc.Lessons(category, status)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	total, err := h.svc.Lessons("", "all")
	if err != nil {
		response.InternalError(c, err)
		return
	}

	response.OK(c, gin.H{
		"lessons":   lessons,
		"total":     len(lessons),
		"total_all": len(total),
	})
}

// GET /learning/history — the full append-only lesson log.
func (h *Handler) history(c *gin.Context) {
	lessons, err := h.svc.Lessons("", "all")
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, lessons)
}

func (h *Handler) styleProfile(c *gin.Context) {
	profile, err := h.svc.Profile()
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, profile)
}

// POST /learning/lessons/:id/archive
func (h *Handler) archiveLesson(c *gin.Context) {
	lessonID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "lesson id must be an integer")
		return
	}

	if err := h.svc.ArchiveLesson(lessonID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c)
			return
		}
		response.InternalError(c, err)
		return
	}
	response.OK(c, gin.H{"message": "Lección archivada", "lesson_id": lessonID})
}
