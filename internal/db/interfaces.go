package db

import (
	"context"

	"github.com/example/menuboard/internal/models"
)

// Page selects a window of a listing.
type Page struct {
	Offset int
	Limit  int
}

// UserRepository defines the interface for user data storage operations.
type UserRepository interface {
	GetByID(ctx context.Context, userID string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	List(ctx context.Context, page Page) ([]*models.User, error)
}

// RestaurantRepository defines the interface for restaurant storage operations.
type RestaurantRepository interface {
	// Create stores the restaurant, reserves its slug and stores its initial
	// subscription atomically. The restaurant ID must be set by the caller.
	Create(ctx context.Context, restaurant *models.Restaurant, sub *models.Subscription) error
	GetByID(ctx context.Context, restaurantID string) (*models.Restaurant, error)
	GetBySlug(ctx context.Context, slug string) (*models.Restaurant, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	Update(ctx context.Context, restaurant *models.Restaurant) error
	IncrementViews(ctx context.Context, restaurantID string) error
	List(ctx context.Context, page Page) ([]*models.Restaurant, error)
}

// SubscriptionRepository defines the interface for subscription storage.
type SubscriptionRepository interface {
	GetByRestaurantID(ctx context.Context, restaurantID string) (*models.Subscription, error)
	// Mutate loads the subscription, applies fn and saves the result in one
	// transaction. When fn returns false nothing is written.
	Mutate(ctx context.Context, restaurantID string, fn func(*models.Subscription) (bool, error)) (*models.Subscription, error)
}

// CategoryRepository defines the interface for menu category storage.
type CategoryRepository interface {
	Create(ctx context.Context, category *models.Category) (string, error)
	GetByID(ctx context.Context, categoryID string) (*models.Category, error)
	ListByRestaurant(ctx context.Context, restaurantID string) ([]*models.Category, error)
	Update(ctx context.Context, category *models.Category) error
	Delete(ctx context.Context, categoryID string) error
	CountByRestaurant(ctx context.Context, restaurantID string) (int, error)
}

// MenuItemRepository defines the interface for menu item storage.
type MenuItemRepository interface {
	Create(ctx context.Context, item *models.MenuItem) (string, error)
	GetByID(ctx context.Context, itemID string) (*models.MenuItem, error)
	ListByRestaurant(ctx context.Context, restaurantID string) ([]*models.MenuItem, error)
	Update(ctx context.Context, item *models.MenuItem) error
	Delete(ctx context.Context, itemID string) error
	CountByRestaurant(ctx context.Context, restaurantID string) (int, error)
	CountByCategory(ctx context.Context, categoryID string) (int, error)
}

// FeedbackRepository defines the interface for customer feedback storage.
// An empty restaurantID means all restaurants.
type FeedbackRepository interface {
	Create(ctx context.Context, feedback *models.Feedback) (string, error)
	List(ctx context.Context, restaurantID string, page Page) ([]*models.Feedback, error)
	Stats(ctx context.Context, restaurantID string) (models.FeedbackStats, error)
}

// AuditRepository defines the interface for audit log data storage operations.
type AuditRepository interface {
	Create(ctx context.Context, logEntry models.AuditLog) error
}

// Store bundles every repository of one backend.
type Store struct {
	Users         UserRepository
	Restaurants   RestaurantRepository
	Subscriptions SubscriptionRepository
	Categories    CategoryRepository
	MenuItems     MenuItemRepository
	Feedback      FeedbackRepository
	Audit         AuditRepository
}
