package character

import (
	"github.com/cuentacuentos/core/internal/pkg/response"
	"github.com/gin-gonic/gin"
)

type Handler struct{ svc *Service }

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/characters")
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.POST("/refresh", h.refresh)
}

func (h *Handler) list(c *gin.Context) {
	chars, err := h.svc.All()
	if err != nil {
		response.InternalError(c, err)
		return
	}

	out := make([]Summary, 0, len(chars))
	for _, ch := range chars {
		status := ch.Status
		if status == "" {
			status = "activo"
		}
		out = append(out, Summary{
			ID:               ch.ID,
			Name:             ch.Name,
			Status:           status,
			ApparentAge:      ch.Traits.ApparentAge,
			BasePrompt:       ch.Rules.BasePrompt,
			TotalAppearances: ch.Metadata.TotalAppearances,
		})
	}
	response.OK(c, out)
}

func (h *Handler) get(c *gin.Context) {
	id := c.Param("id")
	ch, err := h.svc.ByID(id)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if ch == nil {
		response.NotFoundMsg(c, "Personaje con id '"+id+"' no encontrado.")
		return
	}
	response.OK(c, ch)
}

func (h *Handler) refresh(c *gin.Context) {
	h.svc.Refresh()
	chars, err := h.svc.All()
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, gin.H{"message": "Personajes recargados", "total": len(chars)})
}
