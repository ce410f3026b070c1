package db

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/example/menuboard/internal/models"
)

const (
	restaurantsCollection = "restaurants"
	// slugsCollection holds one document per reserved slug, keyed by the slug.
	slugsCollection = "slugs"
)

type slugReservation struct {
	RestaurantID string `firestore:"restaurantId"`
}

// firestoreRestaurantRepository implements RestaurantRepository using Firestore.
type firestoreRestaurantRepository struct {
	client *firestore.Client
}

// NewFirestoreRestaurantRepository creates a new instance of firestoreRestaurantRepository.
func NewFirestoreRestaurantRepository(client *firestore.Client) RestaurantRepository {
	if client == nil {
		panic("db: Firestore client is not initialized for RestaurantRepository")
	}
	return &firestoreRestaurantRepository{client: client}
}

func (r *firestoreRestaurantRepository) Create(ctx context.Context, restaurant *models.Restaurant, sub *models.Subscription) error {
	if restaurant.ID == "" {
		return errors.New("restaurant ID cannot be empty for Create operation")
	}
	restaurantRef := r.client.Collection(restaurantsCollection).Doc(restaurant.ID)
	slugRef := r.client.Collection(slugsCollection).Doc(restaurant.Slug)
	subRef := r.client.Collection(subscriptionsCollection).Doc(restaurant.ID)

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if exists, err := txExists(tx, restaurantRef); err != nil {
			return err
		} else if exists {
			return fmt.Errorf("restaurant for owner '%s': %w", restaurant.ID, ErrAlreadyExists)
		}
		if exists, err := txExists(tx, slugRef); err != nil {
			return err
		} else if exists {
			return fmt.Errorf("slug '%s': %w", restaurant.Slug, ErrSlugTaken)
		}

		if err := tx.Create(restaurantRef, restaurant); err != nil {
			return err
		}
		if err := tx.Create(slugRef, slugReservation{RestaurantID: restaurant.ID}); err != nil {
			return err
		}
		if sub != nil {
			return tx.Set(subRef, sub)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyExists) || errors.Is(err, ErrSlugTaken) {
			return err
		}
		if status.Code(err) == codes.AlreadyExists {
			return fmt.Errorf("restaurant '%s': %w", restaurant.ID, ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create restaurant '%s': %w", restaurant.ID, err)
	}
	return nil
}

func txExists(tx *firestore.Transaction, ref *firestore.DocumentRef) (bool, error) {
	snap, err := tx.Get(ref)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return false, nil
		}
		return false, fmt.Errorf("failed to read %s: %w", ref.Path, err)
	}
	return snap.Exists(), nil
}

func (r *firestoreRestaurantRepository) GetByID(ctx context.Context, restaurantID string) (*models.Restaurant, error) {
	if restaurantID == "" {
		return nil, errors.New("restaurantID cannot be empty for GetByID operation")
	}
	docSnap, err := r.client.Collection(restaurantsCollection).Doc(restaurantID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("restaurant with ID '%s' not found: %w", restaurantID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get restaurant with ID '%s': %w", restaurantID, err)
	}
	return decodeRestaurant(docSnap)
}

func (r *firestoreRestaurantRepository) GetBySlug(ctx context.Context, slug string) (*models.Restaurant, error) {
	iter := r.client.Collection(restaurantsCollection).Where("slug", "==", slug).Limit(1).Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if err == iterator.Done {
		return nil, fmt.Errorf("restaurant with slug '%s' not found: %w", slug, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query restaurant by slug '%s': %w", slug, err)
	}
	return decodeRestaurant(doc)
}

func (r *firestoreRestaurantRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	_, err := r.client.Collection(slugsCollection).Doc(slug).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return false, nil
		}
		return false, fmt.Errorf("failed to check slug '%s': %w", slug, err)
	}
	return true, nil
}

// Update overwrites the restaurant document. Views are incremented separately
// and are not touched here.
func (r *firestoreRestaurantRepository) Update(ctx context.Context, restaurant *models.Restaurant) error {
	if restaurant.ID == "" {
		return errors.New("restaurant ID cannot be empty for Update operation")
	}
	_, err := r.client.Collection(restaurantsCollection).Doc(restaurant.ID).Update(ctx, []firestore.Update{
		{Path: "name", Value: restaurant.Name},
		{Path: "description", Value: restaurant.Description},
		{Path: "logoURL", Value: restaurant.LogoURL},
		{Path: "address", Value: restaurant.Address},
		{Path: "phone", Value: restaurant.Phone},
		{Path: "qrCode", Value: restaurant.QRCode},
		{Path: "qrTarget", Value: restaurant.QRTarget},
		{Path: "disabled", Value: restaurant.Disabled},
		{Path: "updatedAt", Value: restaurant.UpdatedAt},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("restaurant with ID '%s' not found for update: %w", restaurant.ID, ErrNotFound)
		}
		return fmt.Errorf("failed to update restaurant with ID '%s': %w", restaurant.ID, err)
	}
	return nil
}

func (r *firestoreRestaurantRepository) IncrementViews(ctx context.Context, restaurantID string) error {
	_, err := r.client.Collection(restaurantsCollection).Doc(restaurantID).Update(ctx, []firestore.Update{
		{Path: "views", Value: firestore.Increment(1)},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("restaurant with ID '%s' not found: %w", restaurantID, ErrNotFound)
		}
		return fmt.Errorf("failed to increment views for '%s': %w", restaurantID, err)
	}
	return nil
}

func (r *firestoreRestaurantRepository) List(ctx context.Context, page Page) ([]*models.Restaurant, error) {
	query := paginate(r.client.Collection(restaurantsCollection).OrderBy("createdAt", firestore.Desc), page)

	iter := query.Documents(ctx)
	defer iter.Stop()

	var restaurants []*models.Restaurant
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate restaurants: %w", err)
		}
		restaurant, err := decodeRestaurant(doc)
		if err != nil {
			return nil, err
		}
		restaurants = append(restaurants, restaurant)
	}
	return restaurants, nil
}

func decodeRestaurant(doc *firestore.DocumentSnapshot) (*models.Restaurant, error) {
	var restaurant models.Restaurant
	if err := doc.DataTo(&restaurant); err != nil {
		return nil, fmt.Errorf("failed to decode restaurant %s: %w", doc.Ref.ID, err)
	}
	restaurant.ID = doc.Ref.ID
	return &restaurant, nil
}
