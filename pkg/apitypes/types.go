// Package apitypes holds the JSON shapes exchanged between the menuboard
// backend and its clients.
package apitypes

import "time"

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// SuccessResponse is a generic structure for simple success messages.
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName,omitempty"`
	PhotoURL    string    `json:"photoURL,omitempty"`
	Role        Role      `json:"role"`
	Disabled    bool      `json:"disabled,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Restaurant struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"ownerId"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description,omitempty"`
	LogoURL     string    `json:"logoURL,omitempty"`
	Address     string    `json:"address,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	QRCode      string    `json:"qrCode,omitempty"`
	QRTarget    string    `json:"qrTarget,omitempty"`
	Views       int64     `json:"views"`
	Disabled    bool      `json:"disabled,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type Subscription struct {
	RestaurantID  string     `json:"restaurantId"`
	Plan          Plan       `json:"plan"`
	Active        bool       `json:"active"`
	DaysRemaining int        `json:"daysRemaining"`
	StartedAt     time.Time  `json:"startedAt"`
	ExpiresAt     time.Time  `json:"expiresAt"`
	CanceledAt    *time.Time `json:"canceledAt,omitempty"`
}

// Snapshot is the combined identity state returned by GET /api/v1/auth/me.
type Snapshot struct {
	User         User          `json:"user"`
	Restaurant   *Restaurant   `json:"restaurant,omitempty"`
	Subscription *Subscription `json:"subscription,omitempty"`
}

// Onboarded reports whether the user owns a restaurant.
func (s *Snapshot) Onboarded() bool {
	return s != nil && s.Restaurant != nil
}

type SetupRestaurantRequest struct {
	Name        string `json:"name" binding:"required"`
	Slug        string `json:"slug,omitempty"`
	Description string `json:"description,omitempty"`
	LogoURL     string `json:"logoURL,omitempty"`
	Address     string `json:"address,omitempty"`
	Phone       string `json:"phone,omitempty"`
}

type Feedback struct {
	ID           string    `json:"id"`
	RestaurantID string    `json:"restaurantId"`
	Rating       int       `json:"rating"`
	Comment      string    `json:"comment,omitempty"`
	CustomerName string    `json:"customerName,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// FeedbackPage is one page of feedback plus aggregates over the whole set.
type FeedbackPage struct {
	Items         []Feedback `json:"items"`
	Page          int        `json:"page"`
	Limit         int        `json:"limit"`
	Total         int64      `json:"total"`
	TotalPages    int        `json:"totalPages"`
	AverageRating float64    `json:"averageRating"`
}

type Category struct {
	ID           string    `json:"id"`
	RestaurantID string    `json:"restaurantId"`
	Name         string    `json:"name"`
	Position     int       `json:"position"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type MenuItem struct {
	ID           string    `json:"id"`
	RestaurantID string    `json:"restaurantId"`
	CategoryID   string    `json:"categoryId"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	PriceCents   int64     `json:"priceCents"`
	ImageURL     string    `json:"imageURL,omitempty"`
	Available    bool      `json:"available"`
	Position     int       `json:"position"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// PublicMenu is what the customer-facing menu page renders.
type PublicMenu struct {
	Restaurant Restaurant     `json:"restaurant"`
	Categories []MenuCategory `json:"categories"`
}

// MenuCategory is a category with its available items, in display order.
type MenuCategory struct {
	Category
	Items []MenuItem `json:"items"`
}

// QRCodeResponse is returned after (re)generating a restaurant QR code.
type QRCodeResponse struct {
	QRCode   string `json:"qrCode"`
	QRTarget string `json:"qrTarget"`
}

type UpdateRoleRequest struct {
	Role Role `json:"role" binding:"required"`
}

type UpdateRestaurantStatusRequest struct {
	Disabled bool `json:"disabled"`
}

type SubmitFeedbackRequest struct {
	Rating       int    `json:"rating" binding:"required,min=1,max=5"`
	Comment      string `json:"comment,omitempty" binding:"max=2000"`
	CustomerName string `json:"customerName,omitempty" binding:"max=120"`
}

// BillingEvent is a payment-provider notification, received on the webhook
// or the billing queue.
type BillingEvent struct {
	ID           string    `json:"id" binding:"required"`
	Type         string    `json:"type" binding:"required"`
	RestaurantID string    `json:"restaurantId" binding:"required"`
	Plan         Plan      `json:"plan,omitempty"`
	OccurredAt   time.Time `json:"occurredAt"`
}

const (
	BillingCheckoutCompleted    = "checkout.completed"
	BillingSubscriptionCanceled = "subscription.canceled"
)
