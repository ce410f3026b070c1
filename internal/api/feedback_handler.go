package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/menuboard/internal/core"
	"github.com/example/menuboard/internal/middleware"
	"github.com/example/menuboard/pkg/apitypes"
)

// FeedbackHandler handles customer feedback for owners, admins and the
// public menu page.
type FeedbackHandler struct {
	feedbackService core.FeedbackService
	logger          *zap.Logger
}

// NewFeedbackHandler creates a new FeedbackHandler.
func NewFeedbackHandler(fs core.FeedbackService, logger *zap.Logger) *FeedbackHandler {
	return &FeedbackHandler{feedbackService: fs, logger: logger}
}

// pageParams reads ?page= and ?limit=. Invalid values fall back to defaults.
func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	return core.NormalizePage(page, limit)
}

// List handles GET /feedback for the caller's restaurant.
func (h *FeedbackHandler) List(c *gin.Context) {
	page, limit := pageParams(c)
	fp, err := h.feedbackService.List(c.Request.Context(), middleware.RestaurantID(c), page, limit)
	if err != nil {
		mapFeedbackErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, fp)
}

// AdminList handles GET /admin/feedback, optionally narrowed by ?restaurantId=.
func (h *FeedbackHandler) AdminList(c *gin.Context) {
	page, limit := pageParams(c)
	fp, err := h.feedbackService.List(c.Request.Context(), c.Query("restaurantId"), page, limit)
	if err != nil {
		mapFeedbackErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, fp)
}

// Submit handles POST /public/menu/:slug/feedback. No authentication.
func (h *FeedbackHandler) Submit(c *gin.Context) {
	var req apitypes.SubmitFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}
	fb, err := h.feedbackService.Submit(c.Request.Context(), c.Param("slug"), req)
	if err != nil {
		mapFeedbackErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, fb.ToAPI())
}
