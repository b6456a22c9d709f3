package rag

import (
	"strconv"
	"strings"

	"github.com/cuentacuentos/core/internal/pkg/response"
	"github.com/gin-gonic/gin"
)

type Handler struct{ svc *Service }

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/rag")
	g.GET("/search", h.search)
	g.GET("/cache/status", h.cacheStatus)
	g.DELETE("/cache/clear", h.cacheClear)
	g.GET("/stats", h.stats)
}

// GET /rag/search?theme=...&target_age=...&top_k=...&min_similarity=...&min_score=...
func (h *Handler) search(c *gin.Context) {
	theme := strings.TrimSpace(c.Query("theme"))
	if theme == "" {
		response.BadRequest(c, "theme is required")
		return
	}

	opts := h.svc.DefaultOptions()

	if raw := c.Query("target_age"); raw != "" {
		age, err := strconv.Atoi(raw)
		if err != nil || age < 2 || age > 10 {
			response.BadRequest(c, "target_age must be between 2 and 10")
			return
		}
		opts.TargetAge = age
	}
	if raw := c.Query("top_k"); raw != "" {
		k, err := strconv.Atoi(raw)
		if err != nil || k < 1 || k > 5 {
			response.BadRequest(c, "top_k must be between 1 and 5")
			return
		}
		opts.TopK = k
	}
	if raw := c.Query("min_similarity"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 || v > 1 {
			response.BadRequest(c, "min_similarity must be between 0 and 1")
			return
		}
		opts.MinSimilarity = v
	}
	if raw := c.Query("min_score"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 || v > 10 {
			response.BadRequest(c, "min_score must be between 0 and 10")
			return
		}
		opts.MinScore = v
	}

	cacheHit := h.svc.Cache().Has(theme)

	examples, err := h.svc.SearchSimilar(c.Request.Context(), theme, opts)
	if err != nil {
		response.InternalError(c, err)
		return
	}

	response.OK(c, gin.H{
		"query_theme": theme,
		"total_found": len(examples),
		"examples":    examples,
		"cache_hit":   cacheHit,
	})
}

func (h *Handler) cacheStatus(c *gin.Context) {
	cache := h.svc.Cache()
	response.OK(c, gin.H{
		"cache_size":    cache.Size(),
		"cached_themes": cache.Keys(),
	})
}

func (h *Handler) cacheClear(c *gin.Context) {
	removed := h.svc.Cache().Clear()
	response.OK(c, gin.H{
		"message":            "Cache limpiado",
		"embeddings_removed": removed,
	})
}

func (h *Handler) stats(c *gin.Context) {
	stats, err := h.svc.Stats()
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, stats)
}
