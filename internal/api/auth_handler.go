package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/menuboard/internal/core"
	"github.com/example/menuboard/internal/middleware"
)

// AuthHandler serves the who-am-I endpoint and profile initialization.
type AuthHandler struct {
	userService     core.UserService
	snapshotService core.SnapshotService
	logger          *zap.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(us core.UserService, ss core.SnapshotService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{userService: us, snapshotService: ss, logger: logger}
}

// Me handles GET /auth/me. RequireUser has already provisioned the account.
func (h *AuthHandler) Me(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Authentication error: user not found in context"})
		return
	}

	snap, err := h.snapshotService.Snapshot(c.Request.Context(), user)
	if err != nil {
		internalError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// InitializeUserProfile handles POST /users/initialize, called by clients
// right after a sign-in to make sure the account record exists.
func (h *AuthHandler) InitializeUserProfile(c *gin.Context) {
	uid := c.GetString(middleware.ContextUserID)
	if uid == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Authentication error: User ID not found in context"})
		return
	}

	user, created, err := h.userService.GetOrCreate(c.Request.Context(), uid,
		c.GetString(middleware.ContextUserEmail),
		c.GetString(middleware.ContextUserDisplayName),
		c.GetString(middleware.ContextUserPhotoURL))
	if err != nil {
		mapUserErrorToStatus(c, h.logger, err)
		return
	}
	if user.Disabled {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "Account disabled"})
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, user.ToAPI())
}
