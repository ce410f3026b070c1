package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/menuboard/internal/core"
	"github.com/example/menuboard/internal/middleware"
	"github.com/example/menuboard/internal/models"
	"github.com/example/menuboard/pkg/apitypes"
)

// RestaurantHandler handles the owner's restaurant and its QR code.
type RestaurantHandler struct {
	restaurantService core.RestaurantService
	logger            *zap.Logger
}

// NewRestaurantHandler creates a new RestaurantHandler.
func NewRestaurantHandler(rs core.RestaurantService, logger *zap.Logger) *RestaurantHandler {
	return &RestaurantHandler{restaurantService: rs, logger: logger}
}

// Setup handles POST /restaurants, the last step of the setup wizard.
func (h *RestaurantHandler) Setup(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Authentication required"})
		return
	}

	var req apitypes.SetupRestaurantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}

	r, err := h.restaurantService.Create(c.Request.Context(), user.ID, req)
	if err != nil {
		mapRestaurantErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, r.ToAPI())
}

// Get handles GET /restaurants/me.
func (h *RestaurantHandler) Get(c *gin.Context) {
	r, err := h.restaurantService.GetByID(c.Request.Context(), middleware.RestaurantID(c))
	if err != nil {
		mapRestaurantErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, r.ToAPI())
}

// Update handles PUT /restaurants/me.
func (h *RestaurantHandler) Update(c *gin.Context) {
	var req models.RestaurantUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}

	r, err := h.restaurantService.Update(c.Request.Context(), middleware.RestaurantID(c), req)
	if err != nil {
		mapRestaurantErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, r.ToAPI())
}

// RegenerateQRCode handles POST /restaurants/me/qrcode.
func (h *RestaurantHandler) RegenerateQRCode(c *gin.Context) {
	r, err := h.restaurantService.RegenerateQRCode(c.Request.Context(), middleware.RestaurantID(c))
	if err != nil {
		mapRestaurantErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, apitypes.QRCodeResponse{QRCode: r.QRCode, QRTarget: r.QRTarget})
}

// QRCodePNG handles GET /restaurants/me/qrcode.png, the printable image.
func (h *RestaurantHandler) QRCodePNG(c *gin.Context) {
	png, err := h.restaurantService.QRCodePNG(c.Request.Context(), middleware.RestaurantID(c))
	if err != nil {
		mapRestaurantErrorToStatus(c, h.logger, err)
		return
	}
	c.Header("Content-Disposition", `inline; filename="menu-qrcode.png"`)
	c.Data(http.StatusOK, "image/png", png)
}
