package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/menuboard/internal/db"
	"github.com/example/menuboard/internal/models"
	"github.com/example/menuboard/pkg/apitypes"
)

// snapshotService implements the SnapshotService interface.
type snapshotService struct {
	restaurantRepo db.RestaurantRepository
	billing        BillingService
	now            func() time.Time
}

// NewSnapshotService creates a new SnapshotService instance.
func NewSnapshotService(rr db.RestaurantRepository, billing BillingService) SnapshotService {
	return &snapshotService{restaurantRepo: rr, billing: billing, now: time.Now}
}

// Snapshot assembles user, restaurant and subscription. A missing restaurant
// is not an error: the user simply has not onboarded yet.
func (s *snapshotService) Snapshot(ctx context.Context, user *models.User) (*apitypes.Snapshot, error) {
	snap := &apitypes.Snapshot{User: user.ToAPI()}

	restaurant, err := s.restaurantRepo.GetByID(ctx, user.ID)
	switch {
	case err == nil:
	case errors.Is(err, db.ErrNotFound):
		return snap, nil
	default:
		return nil, fmt.Errorf("failed to load restaurant for user '%s': %w", user.ID, err)
	}
	r := restaurant.ToAPI()
	snap.Restaurant = &r

	sub, err := s.billing.GetSubscription(ctx, restaurant.ID)
	switch {
	case err == nil:
		apiSub := sub.ToAPI(s.now())
		snap.Subscription = &apiSub
	case errors.Is(err, ErrSubscriptionNotFound):
	default:
		return nil, fmt.Errorf("failed to load subscription for restaurant '%s': %w", restaurant.ID, err)
	}
	return snap, nil
}
