package db

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/example/menuboard/internal/models"
)

const (
	categoriesCollection = "categories"
	menuItemsCollection  = "menuItems"
)

// firestoreCategoryRepository implements CategoryRepository using Firestore.
type firestoreCategoryRepository struct {
	client *firestore.Client
}

// NewFirestoreCategoryRepository creates a new instance of firestoreCategoryRepository.
func NewFirestoreCategoryRepository(client *firestore.Client) CategoryRepository {
	if client == nil {
		panic("db: Firestore client is not initialized for CategoryRepository")
	}
	return &firestoreCategoryRepository{client: client}
}

func (r *firestoreCategoryRepository) Create(ctx context.Context, category *models.Category) (string, error) {
	docRef := r.client.Collection(categoriesCollection).NewDoc()
	category.ID = docRef.ID
	if _, err := docRef.Create(ctx, category); err != nil {
		return "", fmt.Errorf("failed to create category: %w", err)
	}
	return docRef.ID, nil
}

func (r *firestoreCategoryRepository) GetByID(ctx context.Context, categoryID string) (*models.Category, error) {
	if categoryID == "" {
		return nil, errors.New("categoryID cannot be empty for GetByID operation")
	}
	docSnap, err := r.client.Collection(categoriesCollection).Doc(categoryID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("category with ID '%s' not found: %w", categoryID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get category with ID '%s': %w", categoryID, err)
	}
	var category models.Category
	if err := docSnap.DataTo(&category); err != nil {
		return nil, fmt.Errorf("failed to decode category %s: %w", categoryID, err)
	}
	category.ID = docSnap.Ref.ID
	return &category, nil
}

func (r *firestoreCategoryRepository) ListByRestaurant(ctx context.Context, restaurantID string) ([]*models.Category, error) {
	iter := r.client.Collection(categoriesCollection).
		Where("restaurantId", "==", restaurantID).
		OrderBy("position", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var categories []*models.Category
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate categories for restaurant '%s': %w", restaurantID, err)
		}
		var category models.Category
		if err := doc.DataTo(&category); err != nil {
			return nil, fmt.Errorf("failed to decode category %s: %w", doc.Ref.ID, err)
		}
		category.ID = doc.Ref.ID
		categories = append(categories, &category)
	}
	return categories, nil
}

func (r *firestoreCategoryRepository) Update(ctx context.Context, category *models.Category) error {
	if category.ID == "" {
		return errors.New("category ID cannot be empty for Update operation")
	}
	if _, err := r.client.Collection(categoriesCollection).Doc(category.ID).Set(ctx, category); err != nil {
		return fmt.Errorf("failed to update category with ID '%s': %w", category.ID, err)
	}
	return nil
}

func (r *firestoreCategoryRepository) Delete(ctx context.Context, categoryID string) error {
	_, err := r.client.Collection(categoriesCollection).Doc(categoryID).Delete(ctx, firestore.Exists)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("category with ID '%s' not found for deletion: %w", categoryID, ErrNotFound)
		}
		return fmt.Errorf("failed to delete category with ID '%s': %w", categoryID, err)
	}
	return nil
}

func (r *firestoreCategoryRepository) CountByRestaurant(ctx context.Context, restaurantID string) (int, error) {
	q := r.client.Collection(categoriesCollection).Where("restaurantId", "==", restaurantID)
	return count(ctx, q)
}

// firestoreMenuItemRepository implements MenuItemRepository using Firestore.
type firestoreMenuItemRepository struct {
	client *firestore.Client
}

// NewFirestoreMenuItemRepository creates a new instance of firestoreMenuItemRepository.
func NewFirestoreMenuItemRepository(client *firestore.Client) MenuItemRepository {
	if client == nil {
		panic("db: Firestore client is not initialized for MenuItemRepository")
	}
	return &firestoreMenuItemRepository{client: client}
}

func (r *firestoreMenuItemRepository) Create(ctx context.Context, item *models.MenuItem) (string, error) {
	docRef := r.client.Collection(menuItemsCollection).NewDoc()
	item.ID = docRef.ID
	if _, err := docRef.Create(ctx, item); err != nil {
		return "", fmt.Errorf("failed to create menu item: %w", err)
	}
	return docRef.ID, nil
}

func (r *firestoreMenuItemRepository) GetByID(ctx context.Context, itemID string) (*models.MenuItem, error) {
	if itemID == "" {
		return nil, errors.New("itemID cannot be empty for GetByID operation")
	}
	docSnap, err := r.client.Collection(menuItemsCollection).Doc(itemID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("menu item with ID '%s' not found: %w", itemID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get menu item with ID '%s': %w", itemID, err)
	}
	var item models.MenuItem
	if err := docSnap.DataTo(&item); err != nil {
		return nil, fmt.Errorf("failed to decode menu item %s: %w", itemID, err)
	}
	item.ID = docSnap.Ref.ID
	return &item, nil
}

func (r *firestoreMenuItemRepository) ListByRestaurant(ctx context.Context, restaurantID string) ([]*models.MenuItem, error) {
	iter := r.client.Collection(menuItemsCollection).
		Where("restaurantId", "==", restaurantID).
		OrderBy("position", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var items []*models.MenuItem
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate menu items for restaurant '%s': %w", restaurantID, err)
		}
		var item models.MenuItem
		if err := doc.DataTo(&item); err != nil {
			return nil, fmt.Errorf("failed to decode menu item %s: %w", doc.Ref.ID, err)
		}
		item.ID = doc.Ref.ID
		items = append(items, &item)
	}
	return items, nil
}

func (r *firestoreMenuItemRepository) Update(ctx context.Context, item *models.MenuItem) error {
	if item.ID == "" {
		return errors.New("menu item ID cannot be empty for Update operation")
	}
	if _, err := r.client.Collection(menuItemsCollection).Doc(item.ID).Set(ctx, item); err != nil {
		return fmt.Errorf("failed to update menu item with ID '%s': %w", item.ID, err)
	}
	return nil
}

func (r *firestoreMenuItemRepository) Delete(ctx context.Context, itemID string) error {
	_, err := r.client.Collection(menuItemsCollection).Doc(itemID).Delete(ctx, firestore.Exists)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("menu item with ID '%s' not found for deletion: %w", itemID, ErrNotFound)
		}
		return fmt.Errorf("failed to delete menu item with ID '%s': %w", itemID, err)
	}
	return nil
}

func (r *firestoreMenuItemRepository) CountByRestaurant(ctx context.Context, restaurantID string) (int, error) {
	q := r.client.Collection(menuItemsCollection).Where("restaurantId", "==", restaurantID)
	return count(ctx, q)
}

func (r *firestoreMenuItemRepository) CountByCategory(ctx context.Context, categoryID string) (int, error) {
	q := r.client.Collection(menuItemsCollection).Where("categoryId", "==", categoryID)
	return count(ctx, q)
}

// count runs a server-side COUNT aggregation over q.
func count(ctx context.Context, q firestore.Query) (int, error) {
	results, err := q.NewAggregationQuery().WithCount("all").Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to run count aggregation: %w", err)
	}
	n, err := aggregateInt(results, "all")
	return int(n), err
}

func aggregateInt(results firestore.AggregationResult, alias string) (int64, error) {
	v, ok := results[alias]
	if !ok {
		return 0, fmt.Errorf("aggregation %q missing from results", alias)
	}
	pv, ok := v.(*firestorepb.Value)
	if !ok {
		return 0, fmt.Errorf("unexpected type %T for aggregation %q", v, alias)
	}
	return pv.GetIntegerValue(), nil
}

func aggregateFloat(results firestore.AggregationResult, alias string) (float64, error) {
	v, ok := results[alias]
	if !ok {
		return 0, fmt.Errorf("aggregation %q missing from results", alias)
	}
	pv, ok := v.(*firestorepb.Value)
	if !ok {
		return 0, fmt.Errorf("unexpected type %T for aggregation %q", v, alias)
	}
	switch val := pv.GetValueType().(type) {
	case *firestorepb.Value_DoubleValue:
		return val.DoubleValue, nil
	case *firestorepb.Value_IntegerValue:
		return float64(val.IntegerValue), nil
	default:
		// AVG over an empty set is null.
		return 0, nil
	}
}
