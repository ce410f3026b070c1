package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/menuboard/internal/core"
	"github.com/example/menuboard/internal/db"
	"github.com/example/menuboard/internal/middleware"
	"github.com/example/menuboard/pkg/apitypes"
)

// AdminHandler serves the admin console. Every route runs behind RequireAdmin.
type AdminHandler struct {
	userService       core.UserService
	restaurantService core.RestaurantService
	logger            *zap.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(us core.UserService, rs core.RestaurantService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{userService: us, restaurantService: rs, logger: logger}
}

func listPage(c *gin.Context) db.Page {
	page, limit := pageParams(c)
	return core.StorePage(page, limit)
}

// ListUsers handles GET /admin/users
func (h *AdminHandler) ListUsers(c *gin.Context) {
	users, err := h.userService.List(c.Request.Context(), listPage(c))
	if err != nil {
		mapUserErrorToStatus(c, h.logger, err)
		return
	}
	out := make([]apitypes.User, 0, len(users))
	for _, u := range users {
		out = append(out, u.ToAPI())
	}
	c.JSON(http.StatusOK, out)
}

// UpdateUserRole handles PUT /admin/users/:userId/role
func (h *AdminHandler) UpdateUserRole(c *gin.Context) {
	var req apitypes.UpdateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}
	actor := middleware.CurrentUser(c)
	user, err := h.userService.ChangeRole(c.Request.Context(), actor.ID, c.Param("userId"), req.Role)
	if err != nil {
		mapUserErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, user.ToAPI())
}

// RemoveUser handles DELETE /admin/users/:userId
func (h *AdminHandler) RemoveUser(c *gin.Context) {
	actor := middleware.CurrentUser(c)
	if err := h.userService.Remove(c.Request.Context(), actor.ID, c.Param("userId")); err != nil {
		mapUserErrorToStatus(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListRestaurants handles GET /admin/restaurants
func (h *AdminHandler) ListRestaurants(c *gin.Context) {
	restaurants, err := h.restaurantService.List(c.Request.Context(), listPage(c))
	if err != nil {
		mapRestaurantErrorToStatus(c, h.logger, err)
		return
	}
	out := make([]apitypes.Restaurant, 0, len(restaurants))
	for _, r := range restaurants {
		out = append(out, r.ToAPI())
	}
	c.JSON(http.StatusOK, out)
}

// SetRestaurantStatus handles PUT /admin/restaurants/:restaurantId/status
func (h *AdminHandler) SetRestaurantStatus(c *gin.Context) {
	var req apitypes.UpdateRestaurantStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}
	actor := middleware.CurrentUser(c)
	r, err := h.restaurantService.SetDisabled(c.Request.Context(), actor.ID, c.Param("restaurantId"), req.Disabled)
	if err != nil {
		mapRestaurantErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, r.ToAPI())
}
