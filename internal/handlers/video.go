package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/veeky/veeky-backend/internal/indexing"
	apperrors "github.com/veeky/veeky-backend/internal/pkg/errors"
	"github.com/veeky/veeky-backend/internal/platform/logger"
	"github.com/veeky/veeky-backend/internal/repos"
)

type VideoHandler struct {
	log    *logger.Logger
	videos repos.VideoRepo
	queue  *indexing.Queue
}

func NewVideoHandler(log *logger.Logger, videos repos.VideoRepo, queue *indexing.Queue) *VideoHandler {
	return &VideoHandler{
		log:    log.With("handler", "VideoHandler"),
		videos: videos,
		queue:  queue,
	}
}

// Index enqueues asynchronous processing for a video and returns the task
// id without waiting for the pipeline.
func (h *VideoHandler) Index(c *gin.Context) {
	videoID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	video, err := h.videos.GetWithRelations(c.Request.Context(), nil, videoID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			RespondError(c, http.StatusNotFound, "video_not_found", err)
			return
		}
		h.log.Error("video lookup failed", "video_id", videoID, "error", err)
		RespondError(c, http.StatusInternalServerError, "internal_error", err)
		return
	}

	taskID, err := h.queue.EnqueueVideo(c.Request.Context(), video.ID)
	if err != nil {
		h.log.Error("enqueue failed", "video_id", videoID, "error", err)
		RespondError(c, http.StatusInternalServerError, "enqueue_failed", err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"video_id": video.ID,
		"task_id":  taskID,
		"status":   video.Status,
	})
}

// Get returns the video with its category and manual intervals.
func (h *VideoHandler) Get(c *gin.Context) {
	videoID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	video, err := h.videos.GetWithRelations(c.Request.Context(), nil, videoID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			RespondError(c, http.StatusNotFound, "video_not_found", err)
			return
		}
		h.log.Error("video lookup failed", "video_id", videoID, "error", err)
		RespondError(c, http.StatusInternalServerError, "internal_error", err)
		return
	}
	RespondOK(c, video)
}
