package models

import "time"

type Category struct {
	ID           string    `json:"id" firestore:"-"`
	RestaurantID string    `json:"restaurantId" firestore:"restaurantId"`
	Name         string    `json:"name" firestore:"name"`
	Position     int       `json:"position" firestore:"position"`
	CreatedAt    time.Time `json:"createdAt" firestore:"createdAt,serverTimestamp"`
	UpdatedAt    time.Time `json:"updatedAt" firestore:"updatedAt,serverTimestamp"`
}

type MenuItem struct {
	ID           string    `json:"id" firestore:"-"`
	RestaurantID string    `json:"restaurantId" firestore:"restaurantId"`
	CategoryID   string    `json:"categoryId" firestore:"categoryId"`
	Name         string    `json:"name" firestore:"name"`
	Description  string    `json:"description,omitempty" firestore:"description,omitempty"`
	PriceCents   int64     `json:"priceCents" firestore:"priceCents"`
	ImageURL     string    `json:"imageURL,omitempty" firestore:"imageURL,omitempty"` // hosted image; uploads happen client side
	Available    bool      `json:"available" firestore:"available"`
	Position     int       `json:"position" firestore:"position"`
	CreatedAt    time.Time `json:"createdAt" firestore:"createdAt,serverTimestamp"`
	UpdatedAt    time.Time `json:"updatedAt" firestore:"updatedAt,serverTimestamp"`
}
