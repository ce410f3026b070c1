package db

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/example/menuboard/internal/models"
)

// memoryDB is a process-local backend used for development and tests. It
// mirrors the Firestore repositories' error semantics.
type memoryDB struct {
	mu            sync.RWMutex
	users         map[string]models.User
	restaurants   map[string]models.Restaurant
	slugs         map[string]string
	subscriptions map[string]models.Subscription
	categories    map[string]models.Category
	menuItems     map[string]models.MenuItem
	feedback      map[string]models.Feedback
	audit         []models.AuditLog
}

// NewMemoryStore returns a Store whose repositories share one in-memory database.
func NewMemoryStore() *Store {
	m := &memoryDB{
		users:         make(map[string]models.User),
		restaurants:   make(map[string]models.Restaurant),
		slugs:         make(map[string]string),
		subscriptions: make(map[string]models.Subscription),
		categories:    make(map[string]models.Category),
		menuItems:     make(map[string]models.MenuItem),
		feedback:      make(map[string]models.Feedback),
	}
	return &Store{
		Users:         memoryUsers{m},
		Restaurants:   memoryRestaurants{m},
		Subscriptions: memorySubscriptions{m},
		Categories:    memoryCategories{m},
		MenuItems:     memoryMenuItems{m},
		Feedback:      memoryFeedback{m},
		Audit:         memoryAudit{m},
	}
}

func window[T any](all []T, page Page) []T {
	if page.Offset < 0 {
		page.Offset = 0
	}
	if page.Offset >= len(all) {
		return nil
	}
	all = all[page.Offset:]
	if page.Limit > 0 && page.Limit < len(all) {
		all = all[:page.Limit]
	}
	return all
}

type memoryUsers struct{ m *memoryDB }

func (r memoryUsers) GetByID(_ context.Context, userID string) (*models.User, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	u, ok := r.m.users[userID]
	if !ok {
		return nil, fmt.Errorf("user with ID '%s' not found: %w", userID, ErrNotFound)
	}
	return &u, nil
}

func (r memoryUsers) Create(_ context.Context, user *models.User) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.users[user.ID]; ok {
		return fmt.Errorf("user with ID '%s': %w", user.ID, ErrAlreadyExists)
	}
	r.m.users[user.ID] = *user
	return nil
}

func (r memoryUsers) Update(_ context.Context, user *models.User) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.users[user.ID]; !ok {
		return fmt.Errorf("user with ID '%s' not found for update: %w", user.ID, ErrNotFound)
	}
	r.m.users[user.ID] = *user
	return nil
}

func (r memoryUsers) List(_ context.Context, page Page) ([]*models.User, error) {
	r.m.mu.RLock()
	all := make([]*models.User, 0, len(r.m.users))
	for _, u := range r.m.users {
		u := u
		all = append(all, &u)
	}
	r.m.mu.RUnlock()
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	return window(all, page), nil
}

type memoryRestaurants struct{ m *memoryDB }

func (r memoryRestaurants) Create(_ context.Context, restaurant *models.Restaurant, sub *models.Subscription) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.restaurants[restaurant.ID]; ok {
		return fmt.Errorf("restaurant for owner '%s': %w", restaurant.ID, ErrAlreadyExists)
	}
	if _, ok := r.m.slugs[restaurant.Slug]; ok {
		return fmt.Errorf("slug '%s': %w", restaurant.Slug, ErrSlugTaken)
	}
	r.m.restaurants[restaurant.ID] = *restaurant
	r.m.slugs[restaurant.Slug] = restaurant.ID
	if sub != nil {
		r.m.subscriptions[restaurant.ID] = *sub
	}
	return nil
}

func (r memoryRestaurants) GetByID(_ context.Context, restaurantID string) (*models.Restaurant, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	rest, ok := r.m.restaurants[restaurantID]
	if !ok {
		return nil, fmt.Errorf("restaurant with ID '%s' not found: %w", restaurantID, ErrNotFound)
	}
	return &rest, nil
}

func (r memoryRestaurants) GetBySlug(ctx context.Context, slug string) (*models.Restaurant, error) {
	r.m.mu.RLock()
	id, ok := r.m.slugs[slug]
	r.m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("restaurant with slug '%s' not found: %w", slug, ErrNotFound)
	}
	return r.GetByID(ctx, id)
}

func (r memoryRestaurants) SlugExists(_ context.Context, slug string) (bool, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	_, ok := r.m.slugs[slug]
	return ok, nil
}

func (r memoryRestaurants) Update(_ context.Context, restaurant *models.Restaurant) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	existing, ok := r.m.restaurants[restaurant.ID]
	if !ok {
		return fmt.Errorf("restaurant with ID '%s' not found for update: %w", restaurant.ID, ErrNotFound)
	}
	updated := *restaurant
	updated.Views = existing.Views
	updated.Slug = existing.Slug
	r.m.restaurants[restaurant.ID] = updated
	return nil
}

func (r memoryRestaurants) IncrementViews(_ context.Context, restaurantID string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	rest, ok := r.m.restaurants[restaurantID]
	if !ok {
		return fmt.Errorf("restaurant with ID '%s' not found: %w", restaurantID, ErrNotFound)
	}
	rest.Views++
	r.m.restaurants[restaurantID] = rest
	return nil
}

func (r memoryRestaurants) List(_ context.Context, page Page) ([]*models.Restaurant, error) {
	r.m.mu.RLock()
	all := make([]*models.Restaurant, 0, len(r.m.restaurants))
	for _, rest := range r.m.restaurants {
		rest := rest
		all = append(all, &rest)
	}
	r.m.mu.RUnlock()
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	return window(all, page), nil
}

type memorySubscriptions struct{ m *memoryDB }

func (r memorySubscriptions) GetByRestaurantID(_ context.Context, restaurantID string) (*models.Subscription, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	sub, ok := r.m.subscriptions[restaurantID]
	if !ok {
		return nil, fmt.Errorf("subscription for restaurant '%s' not found: %w", restaurantID, ErrNotFound)
	}
	sub.RestaurantID = restaurantID
	return &sub, nil
}

func (r memorySubscriptions) Mutate(_ context.Context, restaurantID string, fn func(*models.Subscription) (bool, error)) (*models.Subscription, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	sub, ok := r.m.subscriptions[restaurantID]
	if !ok {
		return nil, fmt.Errorf("subscription for restaurant '%s' not found: %w", restaurantID, ErrNotFound)
	}
	sub.RestaurantID = restaurantID
	changed, err := fn(&sub)
	if err != nil {
		return nil, fmt.Errorf("failed to update subscription for restaurant '%s': %w", restaurantID, err)
	}
	if changed {
		r.m.subscriptions[restaurantID] = sub
	}
	return &sub, nil
}

type memoryCategories struct{ m *memoryDB }

func (r memoryCategories) Create(_ context.Context, category *models.Category) (string, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	category.ID = uuid.NewString()
	r.m.categories[category.ID] = *category
	return category.ID, nil
}

func (r memoryCategories) GetByID(_ context.Context, categoryID string) (*models.Category, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	c, ok := r.m.categories[categoryID]
	if !ok {
		return nil, fmt.Errorf("category with ID '%s' not found: %w", categoryID, ErrNotFound)
	}
	return &c, nil
}

func (r memoryCategories) ListByRestaurant(_ context.Context, restaurantID string) ([]*models.Category, error) {
	r.m.mu.RLock()
	var out []*models.Category
	for _, c := range r.m.categories {
		if c.RestaurantID == restaurantID {
			c := c
			out = append(out, &c)
		}
	}
	r.m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position == out[j].Position {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Position < out[j].Position
	})
	return out, nil
}

func (r memoryCategories) Update(_ context.Context, category *models.Category) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.categories[category.ID] = *category
	return nil
}

func (r memoryCategories) Delete(_ context.Context, categoryID string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.categories[categoryID]; !ok {
		return fmt.Errorf("category with ID '%s' not found for deletion: %w", categoryID, ErrNotFound)
	}
	delete(r.m.categories, categoryID)
	return nil
}

func (r memoryCategories) CountByRestaurant(_ context.Context, restaurantID string) (int, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	n := 0
	for _, c := range r.m.categories {
		if c.RestaurantID == restaurantID {
			n++
		}
	}
	return n, nil
}

type memoryMenuItems struct{ m *memoryDB }

func (r memoryMenuItems) Create(_ context.Context, item *models.MenuItem) (string, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	item.ID = uuid.NewString()
	r.m.menuItems[item.ID] = *item
	return item.ID, nil
}

func (r memoryMenuItems) GetByID(_ context.Context, itemID string) (*models.MenuItem, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	it, ok := r.m.menuItems[itemID]
	if !ok {
		return nil, fmt.Errorf("menu item with ID '%s' not found: %w", itemID, ErrNotFound)
	}
	return &it, nil
}

func (r memoryMenuItems) ListByRestaurant(_ context.Context, restaurantID string) ([]*models.MenuItem, error) {
	r.m.mu.RLock()
	var out []*models.MenuItem
	for _, it := range r.m.menuItems {
		if it.RestaurantID == restaurantID {
			it := it
			out = append(out, &it)
		}
	}
	r.m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position == out[j].Position {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Position < out[j].Position
	})
	return out, nil
}

func (r memoryMenuItems) Update(_ context.Context, item *models.MenuItem) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.menuItems[item.ID] = *item
	return nil
}

func (r memoryMenuItems) Delete(_ context.Context, itemID string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.menuItems[itemID]; !ok {
		return fmt.Errorf("menu item with ID '%s' not found for deletion: %w", itemID, ErrNotFound)
	}
	delete(r.m.menuItems, itemID)
	return nil
}

func (r memoryMenuItems) CountByRestaurant(_ context.Context, restaurantID string) (int, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	n := 0
	for _, it := range r.m.menuItems {
		if it.RestaurantID == restaurantID {
			n++
		}
	}
	return n, nil
}

func (r memoryMenuItems) CountByCategory(_ context.Context, categoryID string) (int, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	n := 0
	for _, it := range r.m.menuItems {
		if it.CategoryID == categoryID {
			n++
		}
	}
	return n, nil
}

type memoryFeedback struct{ m *memoryDB }

func (r memoryFeedback) Create(_ context.Context, feedback *models.Feedback) (string, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	feedback.ID = uuid.NewString()
	r.m.feedback[feedback.ID] = *feedback
	return feedback.ID, nil
}

func (r memoryFeedback) scoped(restaurantID string) []*models.Feedback {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	var out []*models.Feedback
	for _, fb := range r.m.feedback {
		if restaurantID == "" || fb.RestaurantID == restaurantID {
			fb := fb
			out = append(out, &fb)
		}
	}
	return out
}

func (r memoryFeedback) List(_ context.Context, restaurantID string, page Page) ([]*models.Feedback, error) {
	all := r.scoped(restaurantID)
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	return window(all, page), nil
}

func (r memoryFeedback) Stats(_ context.Context, restaurantID string) (models.FeedbackStats, error) {
	all := r.scoped(restaurantID)
	if len(all) == 0 {
		return models.FeedbackStats{}, nil
	}
	sum := 0
	for _, fb := range all {
		sum += fb.Rating
	}
	return models.FeedbackStats{
		Count:         int64(len(all)),
		AverageRating: float64(sum) / float64(len(all)),
	}, nil
}

type memoryAudit struct{ m *memoryDB }

func (r memoryAudit) Create(_ context.Context, logEntry models.AuditLog) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if logEntry.ID == "" {
		logEntry.ID = uuid.NewString()
	}
	r.m.audit = append(r.m.audit, logEntry)
	return nil
}

// AuditEntries returns the audit trail recorded by a memory store, oldest
// first. It returns nil for other backends.
func AuditEntries(s *Store) []models.AuditLog {
	a, ok := s.Audit.(memoryAudit)
	if !ok {
		return nil
	}
	a.m.mu.RLock()
	defer a.m.mu.RUnlock()
	return append([]models.AuditLog(nil), a.m.audit...)
}
