package taskqueue

import (
	"github.com/cuentacuentos/core/internal/pkg/pagination"
	"github.com/cuentacuentos/core/internal/pkg/response"
	"github.com/gin-gonic/gin"
)

type Handler struct{ svc *Service }

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/tasks")
	g.GET("", h.list)
	g.GET("/:id", h.get)
}

// GET /tasks?page=&size=&type=&status=
func (h *Handler) list(c *gin.Context) {
	q := pagination.FromContext(c)

	var taskType *string
	if raw := c.Query("type"); raw != "" {
		taskType = &raw
	}
	var status *TaskStatus
	if raw := c.Query("status"); raw != "" {
		switch TaskStatus(raw) {
		case TaskPending, TaskRunning, TaskCompleted, TaskFailed:
			st := TaskStatus(raw)
			status = &st
		default:
			response.BadRequest(c, "invalid status filter")
			return
		}
	}

	tasks, total, err := h.svc.List(c.Request.Context(), q.Page, q.Size, taskType, status)
	if err != nil {
		response.InternalError(c, err)
		return
	}

	response.Paged(c, tasks, q.Meta(total))
}

// GET /tasks/:id
func (h *Handler) get(c *gin.Context) {
	task, err := h.svc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if task == nil {
		response.NotFound(c)
		return
	}
	response.OK(c, task)
}
