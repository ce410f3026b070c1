package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/menuboard/internal/core"
	"github.com/example/menuboard/internal/models"
	"github.com/example/menuboard/pkg/apitypes"
)

// Gin context keys set by the auth chain.
const (
	ContextUserID          = "userID"
	ContextUserEmail       = "userEmail"
	ContextUserDisplayName = "userDisplayName"
	ContextUserPhotoURL    = "userPhotoURL"
	ContextUser            = "user"
	ContextRestaurantID    = "restaurantID"
)

// AuthMiddleware provides Gin middleware for bearer token authentication.
type AuthMiddleware struct {
	verifier TokenVerifier
	logger   *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware instance.
func NewAuthMiddleware(verifier TokenVerifier, logger *zap.Logger) *AuthMiddleware {
	if verifier == nil {
		panic("token verifier is not initialized for AuthMiddleware")
	}
	return &AuthMiddleware{verifier: verifier, logger: logger}
}

// VerifyToken verifies the ID token in the Authorization header and stores
// the caller's identity claims in the Gin context.
func (m *AuthMiddleware) VerifyToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apitypes.ErrorResponse{Error: "Authorization header is required"})
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apitypes.ErrorResponse{Error: "Authorization header format must be 'Bearer {token}'"})
			return
		}

		id, err := m.verifier.Verify(c.Request.Context(), parts[1])
		if err != nil {
			m.logger.Debug("Rejected ID token", zap.Error(err))
			msg := "Invalid or expired authentication token"
			if errors.Is(err, ErrExpiredToken) {
				msg = "Authentication token expired"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, apitypes.ErrorResponse{Error: msg})
			return
		}

		c.Set(ContextUserID, id.UID)
		c.Set(ContextUserEmail, id.Email)
		c.Set(ContextUserDisplayName, id.DisplayName)
		c.Set(ContextUserPhotoURL, id.PhotoURL)
		c.Next()
	}
}

// RequireUser loads the caller's account, creating it on first sign-in, and
// rejects soft-removed accounts.
func RequireUser(users core.UserService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := c.GetString(ContextUserID)
		if uid == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apitypes.ErrorResponse{Error: "Authentication required"})
			return
		}

		user, created, err := users.GetOrCreate(c.Request.Context(), uid,
			c.GetString(ContextUserEmail), c.GetString(ContextUserDisplayName), c.GetString(ContextUserPhotoURL))
		if err != nil {
			logger.Error("Failed to load user", zap.String("userID", uid), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, apitypes.ErrorResponse{Error: "Failed to load user account"})
			return
		}
		if created {
			logger.Info("Provisioned user account", zap.String("userID", uid))
		}
		if user.Disabled {
			c.AbortWithStatusJSON(http.StatusForbidden, apitypes.ErrorResponse{Error: "Account disabled"})
			return
		}

		c.Set(ContextUser, user)
		c.Next()
	}
}

// RequireAdmin only lets admins through. It must run after RequireUser.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apitypes.ErrorResponse{Error: "Authentication required"})
			return
		}
		switch user.Role {
		case apitypes.RoleAdmin:
			c.Next()
		case apitypes.RoleUser:
			c.AbortWithStatusJSON(http.StatusForbidden, apitypes.ErrorResponse{Error: "Admin access required"})
		default:
			c.AbortWithStatusJSON(http.StatusForbidden, apitypes.ErrorResponse{Error: "Admin access required", Details: "unknown role"})
		}
	}
}

// RequireRestaurant resolves the restaurant the request operates on: the
// caller's own, or for admins the one named by ?restaurantId=.
func RequireRestaurant(restaurants core.RestaurantService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apitypes.ErrorResponse{Error: "Authentication required"})
			return
		}

		restaurantID := user.ID
		switch user.Role {
		case apitypes.RoleAdmin:
			if target := c.Query("restaurantId"); target != "" {
				restaurantID = target
			}
		case apitypes.RoleUser:
		default:
			c.AbortWithStatusJSON(http.StatusForbidden, apitypes.ErrorResponse{Error: "Access denied"})
			return
		}

		if _, err := restaurants.GetByID(c.Request.Context(), restaurantID); err != nil {
			if errors.Is(err, core.ErrRestaurantNotFound) {
				c.AbortWithStatusJSON(http.StatusNotFound, apitypes.ErrorResponse{Error: "Restaurant not set up", Details: "complete the setup wizard first"})
				return
			}
			logger.Error("Failed to load restaurant", zap.String("restaurantID", restaurantID), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, apitypes.ErrorResponse{Error: "Failed to load restaurant"})
			return
		}

		c.Set(ContextRestaurantID, restaurantID)
		c.Next()
	}
}

// CurrentUser returns the account stored by RequireUser, or nil.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(ContextUser)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}

// RestaurantID returns the restaurant resolved by RequireRestaurant.
func RestaurantID(c *gin.Context) string {
	return c.GetString(ContextRestaurantID)
}
