package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/menuboard/internal/core"
	"github.com/example/menuboard/pkg/apitypes"
)

// ErrorResponse is the standard error body.
type ErrorResponse = apitypes.ErrorResponse

// SuccessResponse is a generic structure for simple success messages.
type SuccessResponse = apitypes.SuccessResponse

func internalError(c *gin.Context, logger *zap.Logger, err error) {
	logger.Error("Internal Server Error",
		zap.String("path", c.Request.URL.Path),
		zap.String("request_id", c.GetString("requestID")),
		zap.Error(err))
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "An unexpected internal server error occurred."})
}

// mapUserErrorToStatus maps errors from core.UserService to HTTP responses.
func mapUserErrorToStatus(c *gin.Context, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, core.ErrUserNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: core.ErrUserNotFound.Error()})
	case errors.Is(err, core.ErrCannotModifySelf):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: core.ErrCannotModifySelf.Error()})
	case errors.Is(err, core.ErrInvalidRole):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: core.ErrInvalidRole.Error(), Details: err.Error()})
	default:
		internalError(c, logger, err)
	}
}

// mapRestaurantErrorToStatus maps errors from core.RestaurantService to HTTP responses.
func mapRestaurantErrorToStatus(c *gin.Context, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, core.ErrRestaurantNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: core.ErrRestaurantNotFound.Error()})
	case errors.Is(err, core.ErrRestaurantExists):
		c.JSON(http.StatusConflict, ErrorResponse{Error: core.ErrRestaurantExists.Error()})
	case errors.Is(err, core.ErrSlugTaken):
		c.JSON(http.StatusConflict, ErrorResponse{Error: core.ErrSlugTaken.Error(), Details: err.Error()})
	case errors.Is(err, core.ErrInvalidRestaurant):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: core.ErrInvalidRestaurant.Error(), Details: err.Error()})
	case errors.Is(err, core.ErrQRCodeNotGenerated):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: core.ErrQRCodeNotGenerated.Error()})
	default:
		internalError(c, logger, err)
	}
}

// mapMenuErrorToStatus maps errors from core.MenuService to HTTP responses.
func mapMenuErrorToStatus(c *gin.Context, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, core.ErrCategoryNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: core.ErrCategoryNotFound.Error()})
	case errors.Is(err, core.ErrMenuItemNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: core.ErrMenuItemNotFound.Error()})
	case errors.Is(err, core.ErrRestaurantNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: core.ErrRestaurantNotFound.Error()})
	case errors.Is(err, core.ErrMenuUnavailable):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: core.ErrMenuUnavailable.Error()})
	case errors.Is(err, core.ErrCategoryNotEmpty):
		c.JSON(http.StatusConflict, ErrorResponse{Error: core.ErrCategoryNotEmpty.Error(), Details: err.Error()})
	case errors.Is(err, core.ErrPlanLimitReached):
		// 402 tells the dashboard to offer an upgrade.
		c.JSON(http.StatusPaymentRequired, ErrorResponse{Error: core.ErrPlanLimitReached.Error(), Details: err.Error()})
	case errors.Is(err, core.ErrSubscriptionInactive):
		c.JSON(http.StatusPaymentRequired, ErrorResponse{Error: core.ErrSubscriptionInactive.Error()})
	case errors.Is(err, core.ErrInvalidMenuData):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: core.ErrInvalidMenuData.Error(), Details: err.Error()})
	default:
		internalError(c, logger, err)
	}
}

// mapFeedbackErrorToStatus maps errors from core.FeedbackService to HTTP responses.
func mapFeedbackErrorToStatus(c *gin.Context, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, core.ErrInvalidFeedback):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: core.ErrInvalidFeedback.Error(), Details: err.Error()})
	case errors.Is(err, core.ErrRestaurantNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: core.ErrRestaurantNotFound.Error()})
	default:
		internalError(c, logger, err)
	}
}

// mapBillingErrorToStatus maps errors from core.BillingService to HTTP responses.
func mapBillingErrorToStatus(c *gin.Context, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, core.ErrSubscriptionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: core.ErrSubscriptionNotFound.Error()})
	case errors.Is(err, core.ErrInvalidBillingEvent):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: core.ErrInvalidBillingEvent.Error(), Details: err.Error()})
	case errors.Is(err, errWebhookSignature):
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Webhook signature verification failed"})
	default:
		internalError(c, logger, err)
	}
}
