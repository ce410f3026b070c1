package models

import (
	"math"
	"time"

	"github.com/example/menuboard/pkg/apitypes"
)

// Subscription is the billing state of a restaurant, keyed by restaurant ID.
type Subscription struct {
	RestaurantID string        `json:"restaurantId" firestore:"-"`
	Plan         apitypes.Plan `json:"plan" firestore:"plan"`
	Active       bool          `json:"active" firestore:"active"`
	StartedAt    time.Time     `json:"startedAt" firestore:"startedAt"`
	ExpiresAt    time.Time     `json:"expiresAt" firestore:"expiresAt"`
	CanceledAt   *time.Time    `json:"canceledAt,omitempty" firestore:"canceledAt,omitempty"`
	LastEventID  string        `json:"-" firestore:"lastEventId,omitempty"`
	// RecentEventIDs holds the newest applied billing event IDs, oldest first.
	RecentEventIDs []string  `json:"-" firestore:"recentEventIds,omitempty"`
	LastEventAt    time.Time `json:"-" firestore:"lastEventAt,omitempty"`
	UpdatedAt      time.Time `json:"updatedAt" firestore:"updatedAt,serverTimestamp"`
}

// MaxRecentEvents bounds RecentEventIDs.
const MaxRecentEvents = 32

// SeenEvent reports whether the billing event id was applied recently.
func (s *Subscription) SeenEvent(id string) bool {
	if s.LastEventID == id {
		return true
	}
	for _, seen := range s.RecentEventIDs {
		if seen == id {
			return true
		}
	}
	return false
}

// RecordEvent remembers id as applied. LastEventAt only moves forward.
func (s *Subscription) RecordEvent(id string, occurredAt time.Time) {
	ids := s.RecentEventIDs
	if len(ids) >= MaxRecentEvents {
		ids = ids[len(ids)-MaxRecentEvents+1:]
	}
	s.RecentEventIDs = append(append(make([]string, 0, len(ids)+1), ids...), id)
	s.LastEventID = id
	if occurredAt.After(s.LastEventAt) {
		s.LastEventAt = occurredAt
	}
}

// IsActive reports whether the subscription currently grants access.
func (s *Subscription) IsActive(now time.Time) bool {
	return s != nil && s.Active && now.Before(s.ExpiresAt)
}

// DaysRemaining is 0 for inactive or expired subscriptions, otherwise the
// number of started days until expiry.
func (s *Subscription) DaysRemaining(now time.Time) int {
	if !s.IsActive(now) {
		return 0
	}
	return int(math.Ceil(s.ExpiresAt.Sub(now).Hours() / 24))
}
