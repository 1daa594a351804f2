package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "github.com/veeky/veeky-backend/internal/pkg/errors"
	"github.com/veeky/veeky-backend/internal/platform/logger"
	"github.com/veeky/veeky-backend/internal/platform/opensearch"
	"github.com/veeky/veeky-backend/internal/search"
)

type SearchHandler struct {
	log     *logger.Logger
	service *search.Service
}

func NewSearchHandler(log *logger.Logger, service *search.Service) *SearchHandler {
	return &SearchHandler{
		log:     log.With("handler", "SearchHandler"),
		service: service,
	}
}

type searchRequestBody struct {
	Text string `json:"text"`
	// ImagePath references an image already on server storage; upload
	// transport is handled by the surrounding application.
	ImagePath string `json:"image_path"`
	// AnalyzeImage asks the vision model to describe the query image and
	// fold the description into the lexical query.
	AnalyzeImage bool `json:"analyze_image"`
	// PermittedCategories omitted means unrestricted access; an empty list
	// means zero access.
	PermittedCategories *[]uint `json:"permitted_categories"`
	Category            *uint   `json:"category"`
}

// Search runs one hybrid search. Degraded search-engine states map to 503
// (unreachable) or 502 (engine error) so callers can tell untrustworthy
// results from genuinely empty ones.
func (h *SearchHandler) Search(c *gin.Context) {
	var body searchRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	req := search.Request{
		Text:              strings.TrimSpace(body.Text),
		ImagePath:         strings.TrimSpace(body.ImagePath),
		AnalyzeImage:      body.AnalyzeImage,
		RequestedCategory: body.Category,
	}
	if body.PermittedCategories != nil {
		req.PermittedCategories = *body.PermittedCategories
		if req.PermittedCategories == nil {
			req.PermittedCategories = []uint{}
		}
	}

	results, err := h.service.Search(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrInvalidArgument):
			RespondError(c, http.StatusBadRequest, "invalid_request", err)
		case errors.Is(err, apperrors.ErrForbidden):
			RespondError(c, http.StatusForbidden, "category_forbidden", err)
		default:
			var opError *opensearch.OperationError
			if errors.As(err, &opError) && opError.Unreachable() {
				RespondError(c, http.StatusServiceUnavailable, "search_unavailable", err)
				return
			}
			if errors.As(err, &opError) {
				RespondError(c, http.StatusBadGateway, "search_failed", err)
				return
			}
			h.log.Error("search failed", "error", err)
			RespondError(c, http.StatusInternalServerError, "internal_error", err)
		}
		return
	}
	RespondOK(c, gin.H{"results": results, "count": len(results)})
}

func parseUintParam(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || value == 0 {
		RespondError(c, http.StatusBadRequest, "invalid_id", errors.New("invalid "+name))
		return 0, false
	}
	return uint(value), true
}
