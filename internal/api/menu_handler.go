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

// MenuHandler handles categories, menu items and the public menu page.
type MenuHandler struct {
	menuService core.MenuService
	logger      *zap.Logger
}

// NewMenuHandler creates a new MenuHandler.
func NewMenuHandler(ms core.MenuService, logger *zap.Logger) *MenuHandler {
	return &MenuHandler{menuService: ms, logger: logger}
}

// ListCategories handles GET /categories
func (h *MenuHandler) ListCategories(c *gin.Context) {
	categories, err := h.menuService.ListCategories(c.Request.Context(), middleware.RestaurantID(c))
	if err != nil {
		mapMenuErrorToStatus(c, h.logger, err)
		return
	}
	out := make([]apitypes.Category, 0, len(categories))
	for _, cat := range categories {
		out = append(out, cat.ToAPI())
	}
	c.JSON(http.StatusOK, out)
}

// CreateCategory handles POST /categories
func (h *MenuHandler) CreateCategory(c *gin.Context) {
	var req models.CreateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}
	cat, err := h.menuService.CreateCategory(c.Request.Context(), middleware.RestaurantID(c), req)
	if err != nil {
		mapMenuErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, cat.ToAPI())
}

// UpdateCategory handles PUT /categories/:categoryId
func (h *MenuHandler) UpdateCategory(c *gin.Context) {
	var req models.UpdateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}
	cat, err := h.menuService.UpdateCategory(c.Request.Context(), middleware.RestaurantID(c), c.Param("categoryId"), req)
	if err != nil {
		mapMenuErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, cat.ToAPI())
}

// DeleteCategory handles DELETE /categories/:categoryId
func (h *MenuHandler) DeleteCategory(c *gin.Context) {
	if err := h.menuService.DeleteCategory(c.Request.Context(), middleware.RestaurantID(c), c.Param("categoryId")); err != nil {
		mapMenuErrorToStatus(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListItems handles GET /menu-items
func (h *MenuHandler) ListItems(c *gin.Context) {
	items, err := h.menuService.ListItems(c.Request.Context(), middleware.RestaurantID(c))
	if err != nil {
		mapMenuErrorToStatus(c, h.logger, err)
		return
	}
	categoryID := c.Query("categoryId")
	out := make([]apitypes.MenuItem, 0, len(items))
	for _, it := range items {
		if categoryID != "" && it.CategoryID != categoryID {
			continue
		}
		out = append(out, it.ToAPI())
	}
	c.JSON(http.StatusOK, out)
}

// CreateItem handles POST /menu-items
func (h *MenuHandler) CreateItem(c *gin.Context) {
	var req models.CreateMenuItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}
	item, err := h.menuService.CreateItem(c.Request.Context(), middleware.RestaurantID(c), req)
	if err != nil {
		mapMenuErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, item.ToAPI())
}

// UpdateItem handles PUT /menu-items/:itemId
func (h *MenuHandler) UpdateItem(c *gin.Context) {
	var req models.UpdateMenuItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}
	item, err := h.menuService.UpdateItem(c.Request.Context(), middleware.RestaurantID(c), c.Param("itemId"), req)
	if err != nil {
		mapMenuErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, item.ToAPI())
}

// DeleteItem handles DELETE /menu-items/:itemId
func (h *MenuHandler) DeleteItem(c *gin.Context) {
	if err := h.menuService.DeleteItem(c.Request.Context(), middleware.RestaurantID(c), c.Param("itemId")); err != nil {
		mapMenuErrorToStatus(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// PublicMenu handles GET /public/menu/:slug. No authentication.
func (h *MenuHandler) PublicMenu(c *gin.Context) {
	menu, err := h.menuService.PublicMenu(c.Request.Context(), c.Param("slug"))
	if err != nil {
		mapMenuErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, menu)
}
