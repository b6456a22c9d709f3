package backup

import (
	"errors"

	"github.com/cuentacuentos/core/internal/pkg/response"
	"github.com/gin-gonic/gin"
)

type Handler struct{ svc *Service }

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/backup", h.run)
}

// POST /backup
func (h *Handler) run(c *gin.Context) {
	task, err := h.svc.Schedule(c.Request.Context())
	if err != nil {
		if errors.Is(err, ErrDisabled) {
			response.Conflict(c, "Backups deshabilitados en la configuración")
			return
		}
		response.InternalError(c, err)
		return
	}
	response.Accepted(c, gin.H{
		"task_id": task.ID,
		"status":  task.Status,
	})
}
