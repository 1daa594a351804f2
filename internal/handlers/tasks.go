package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/veeky/veeky-backend/internal/indexing"
	apperrors "github.com/veeky/veeky-backend/internal/pkg/errors"
	"github.com/veeky/veeky-backend/internal/platform/logger"
)

type TaskHandler struct {
	log   *logger.Logger
	queue *indexing.Queue
}

func NewTaskHandler(log *logger.Logger, queue *indexing.Queue) *TaskHandler {
	return &TaskHandler{
		log:   log.With("handler", "TaskHandler"),
		queue: queue,
	}
}

func (h *TaskHandler) List(c *gin.Context) {
	tasks, err := h.queue.ListTasks()
	if err != nil {
		h.log.Error("task listing failed", "error", err)
		RespondError(c, http.StatusInternalServerError, "internal_error", err)
		return
	}
	if tasks == nil {
		tasks = []indexing.TaskInfo{}
	}
	RespondOK(c, gin.H{"tasks": tasks})
}

// Cancel removes a still-queued task. Running tasks cannot be cancelled.
func (h *TaskHandler) Cancel(c *gin.Context) {
	taskID := c.Param("id")
	if taskID == "" {
		RespondError(c, http.StatusBadRequest, "invalid_id", errors.New("task id required"))
		return
	}
	err := h.queue.CancelQueued(taskID)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrNotFound):
			RespondError(c, http.StatusNotFound, "task_not_found", err)
		case errors.Is(err, apperrors.ErrInvalidArgument):
			RespondError(c, http.StatusConflict, "task_not_cancellable", err)
		default:
			h.log.Error("task cancel failed", "task_id", taskID, "error", err)
			RespondError(c, http.StatusInternalServerError, "internal_error", err)
		}
		return
	}
	RespondOK(c, gin.H{"cancelled": taskID})
}
