package models

import "time"

// Feedback is a customer rating left on the public menu page.
type Feedback struct {
	ID           string    `json:"id" firestore:"-"`
	RestaurantID string    `json:"restaurantId" firestore:"restaurantId"`
	Rating       int       `json:"rating" firestore:"rating"` // 1..5
	Comment      string    `json:"comment,omitempty" firestore:"comment,omitempty"`
	CustomerName string    `json:"customerName,omitempty" firestore:"customerName,omitempty"`
	CreatedAt    time.Time `json:"createdAt" firestore:"createdAt,serverTimestamp"`
}

// FeedbackStats aggregates every feedback entry of a restaurant.
type FeedbackStats struct {
	Count         int64
	AverageRating float64
}
