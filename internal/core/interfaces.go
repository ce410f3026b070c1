package core

import (
	"context"

	"github.com/example/menuboard/internal/db"
	"github.com/example/menuboard/internal/models"
	"github.com/example/menuboard/pkg/apitypes"
)

// UserService defines the interface for user-related operations.
type UserService interface {
	// GetOrCreate retrieves a user by ID. If the user doesn't exist, it creates a new one with role user.
	GetOrCreate(ctx context.Context, userID, email, displayName, photoURL string) (*models.User, bool, error)
	GetByID(ctx context.Context, userID string) (*models.User, error)
	List(ctx context.Context, page db.Page) ([]*models.User, error)
	ChangeRole(ctx context.Context, actorID, userID string, role apitypes.Role) (*models.User, error)
	// Remove soft-disables the account. The identity-provider account is kept.
	Remove(ctx context.Context, actorID, userID string) error
}

// RestaurantService defines the interface for restaurant operations.
type RestaurantService interface {
	Create(ctx context.Context, ownerID string, req apitypes.SetupRestaurantRequest) (*models.Restaurant, error)
	GetByID(ctx context.Context, restaurantID string) (*models.Restaurant, error)
	Update(ctx context.Context, restaurantID string, req models.RestaurantUpdate) (*models.Restaurant, error)
	RegenerateQRCode(ctx context.Context, restaurantID string) (*models.Restaurant, error)
	QRCodePNG(ctx context.Context, restaurantID string) ([]byte, error)
	List(ctx context.Context, page db.Page) ([]*models.Restaurant, error)
	SetDisabled(ctx context.Context, actorID, restaurantID string, disabled bool) (*models.Restaurant, error)
}

// BillingService defines the interface for subscription state.
type BillingService interface {
	GetSubscription(ctx context.Context, restaurantID string) (*models.Subscription, error)
	// RequireActive returns ErrSubscriptionInactive unless the restaurant's
	// subscription currently grants access.
	RequireActive(ctx context.Context, restaurantID string) error
	// ApplyEvent transitions a subscription. The bool is false for ignored
	// duplicate deliveries.
	ApplyEvent(ctx context.Context, event apitypes.BillingEvent) (*models.Subscription, bool, error)
}

// MenuService defines the interface for menu management and the public menu.
type MenuService interface {
	ListCategories(ctx context.Context, restaurantID string) ([]*models.Category, error)
	CreateCategory(ctx context.Context, restaurantID string, req models.CreateCategoryRequest) (*models.Category, error)
	UpdateCategory(ctx context.Context, restaurantID, categoryID string, req models.UpdateCategoryRequest) (*models.Category, error)
	DeleteCategory(ctx context.Context, restaurantID, categoryID string) error

	ListItems(ctx context.Context, restaurantID string) ([]*models.MenuItem, error)
	CreateItem(ctx context.Context, restaurantID string, req models.CreateMenuItemRequest) (*models.MenuItem, error)
	UpdateItem(ctx context.Context, restaurantID, itemID string, req models.UpdateMenuItemRequest) (*models.MenuItem, error)
	DeleteItem(ctx context.Context, restaurantID, itemID string) error

	// PublicMenu returns the customer-facing menu and counts the view.
	PublicMenu(ctx context.Context, slug string) (*apitypes.PublicMenu, error)
	// Invalidate drops any cached public menu of the restaurant.
	Invalidate(ctx context.Context, restaurantID string)
}

// FeedbackService defines the interface for customer feedback.
type FeedbackService interface {
	Submit(ctx context.Context, slug string, req apitypes.SubmitFeedbackRequest) (*models.Feedback, error)
	// List pages through feedback; an empty restaurantID lists every restaurant.
	List(ctx context.Context, restaurantID string, page, limit int) (*apitypes.FeedbackPage, error)
}

// SnapshotService builds the who-am-I snapshot.
type SnapshotService interface {
	Snapshot(ctx context.Context, user *models.User) (*apitypes.Snapshot, error)
}

// AuditService defines the interface for audit logging operations.
type AuditService interface {
	CreateAuditLog(ctx context.Context, logEntry models.AuditLog) error
}

// FeedbackNotifier is told about new feedback, e.g. to notify the owner.
type FeedbackNotifier interface {
	FeedbackCreated(ctx context.Context, feedback *models.Feedback) error
}
