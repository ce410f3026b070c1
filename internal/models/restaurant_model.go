package models

import "time"

// Restaurant is an owner's tenant. Its document ID is the owner's UID.
type Restaurant struct {
	ID          string    `json:"id" firestore:"-"`
	OwnerID     string    `json:"ownerId" firestore:"ownerId"`
	Name        string    `json:"name" firestore:"name"`
	Slug        string    `json:"slug" firestore:"slug"`
	Description string    `json:"description,omitempty" firestore:"description,omitempty"`
	LogoURL     string    `json:"logoURL,omitempty" firestore:"logoURL,omitempty"`
	Address     string    `json:"address,omitempty" firestore:"address,omitempty"`
	Phone       string    `json:"phone,omitempty" firestore:"phone,omitempty"`
	QRCode      string    `json:"qrCode,omitempty" firestore:"qrCode,omitempty"`     // data:image/png;base64,...
	QRTarget    string    `json:"qrTarget,omitempty" firestore:"qrTarget,omitempty"` // URL encoded in QRCode
	Views       int64     `json:"views" firestore:"views"`
	Disabled    bool      `json:"disabled" firestore:"disabled"`
	CreatedAt   time.Time `json:"createdAt" firestore:"createdAt,serverTimestamp"`
	UpdatedAt   time.Time `json:"updatedAt" firestore:"updatedAt,serverTimestamp"`
}

// RestaurantUpdate carries owner edits. Nil fields are left unchanged.
type RestaurantUpdate struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	LogoURL     *string `json:"logoURL,omitempty"`
	Address     *string `json:"address,omitempty"`
	Phone       *string `json:"phone,omitempty"`
}
