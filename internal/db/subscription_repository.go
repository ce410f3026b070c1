package db

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/example/menuboard/internal/models"
)

const subscriptionsCollection = "subscriptions"

// firestoreSubscriptionRepository implements SubscriptionRepository using Firestore.
type firestoreSubscriptionRepository struct {
	client *firestore.Client
}

// NewFirestoreSubscriptionRepository creates a new instance of firestoreSubscriptionRepository.
func NewFirestoreSubscriptionRepository(client *firestore.Client) SubscriptionRepository {
	if client == nil {
		panic("db: Firestore client is not initialized for SubscriptionRepository")
	}
	return &firestoreSubscriptionRepository{client: client}
}

func (r *firestoreSubscriptionRepository) GetByRestaurantID(ctx context.Context, restaurantID string) (*models.Subscription, error) {
	docSnap, err := r.client.Collection(subscriptionsCollection).Doc(restaurantID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("subscription for restaurant '%s' not found: %w", restaurantID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get subscription for restaurant '%s': %w", restaurantID, err)
	}

	var sub models.Subscription
	if err := docSnap.DataTo(&sub); err != nil {
		return nil, fmt.Errorf("failed to decode subscription for restaurant '%s': %w", restaurantID, err)
	}
	sub.RestaurantID = docSnap.Ref.ID
	return &sub, nil
}

func (r *firestoreSubscriptionRepository) Mutate(ctx context.Context, restaurantID string, fn func(*models.Subscription) (bool, error)) (*models.Subscription, error) {
	ref := r.client.Collection(subscriptionsCollection).Doc(restaurantID)

	var result *models.Subscription
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docSnap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return fmt.Errorf("subscription for restaurant '%s' not found: %w", restaurantID, ErrNotFound)
			}
			return err
		}

		var sub models.Subscription
		if err := docSnap.DataTo(&sub); err != nil {
			return fmt.Errorf("failed to decode subscription: %w", err)
		}
		sub.RestaurantID = restaurantID

		changed, err := fn(&sub)
		if err != nil {
			return err
		}
		result = &sub
		if !changed {
			return nil
		}
		return tx.Set(ref, &sub)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update subscription for restaurant '%s': %w", restaurantID, err)
	}
	return result, nil
}
