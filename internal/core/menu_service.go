package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/menuboard/internal/config"
	"github.com/example/menuboard/internal/db"
	"github.com/example/menuboard/internal/models"
	"github.com/example/menuboard/pkg/apitypes"
)

var (
	ErrCategoryNotFound = errors.New("category not found")
	ErrMenuItemNotFound = errors.New("menu item not found")
	// ErrCategoryNotEmpty is returned when deleting a category that still has items.
	ErrCategoryNotEmpty = errors.New("category still has menu items")
	ErrPlanLimitReached = errors.New("plan limit reached")
	ErrInvalidMenuData  = errors.New("invalid menu data")
	// ErrMenuUnavailable is returned for public menus of restaurants without
	// an active subscription.
	ErrMenuUnavailable = errors.New("menu unavailable")
)

// menuService implements the MenuService interface.
type menuService struct {
	restaurantRepo db.RestaurantRepository
	categoryRepo   db.CategoryRepository
	itemRepo       db.MenuItemRepository
	billing        BillingService
	plans          *config.PlanCatalog
	menuCache      *MenuCache
	logger         *zap.Logger
	now            func() time.Time
}

// NewMenuService creates a new MenuService instance.
func NewMenuService(store *db.Store, billing BillingService, plans *config.PlanCatalog, mc *MenuCache, logger *zap.Logger) MenuService {
	return &menuService{
		restaurantRepo: store.Restaurants,
		categoryRepo:   store.Categories,
		itemRepo:       store.MenuItems,
		billing:        billing,
		plans:          plans,
		menuCache:      mc,
		logger:         logger,
		now:            time.Now,
	}
}

// checkLimit mirrors checkVaultLimit: it counts existing resources and
// compares against the current plan's cap.
func (s *menuService) checkLimit(ctx context.Context, restaurantID, resource string, max int, count func(context.Context, string) (int, error)) error {
	if max <= 0 {
		return nil
	}
	n, err := count(ctx, restaurantID)
	if err != nil {
		return fmt.Errorf("failed to count %s for restaurant '%s': %w", resource, restaurantID, err)
	}
	if n >= max {
		return fmt.Errorf("%w: %d %s allowed on the current plan", ErrPlanLimitReached, max, resource)
	}
	return nil
}

func (s *menuService) planLimits(ctx context.Context, restaurantID string) (config.PlanLimits, error) {
	sub, err := s.billing.GetSubscription(ctx, restaurantID)
	if err != nil {
		return config.PlanLimits{}, err
	}
	return s.plans.Limits(sub.Plan), nil
}

func (s *menuService) getCategory(ctx context.Context, restaurantID, categoryID string) (*models.Category, error) {
	c, err := s.categoryRepo.GetByID(ctx, categoryID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: '%s'", ErrCategoryNotFound, categoryID)
		}
		return nil, fmt.Errorf("failed to get category '%s': %w", categoryID, err)
	}
	// Another tenant's category is indistinguishable from a missing one.
	if c.RestaurantID != restaurantID {
		return nil, fmt.Errorf("%w: '%s'", ErrCategoryNotFound, categoryID)
	}
	return c, nil
}

func (s *menuService) getItem(ctx context.Context, restaurantID, itemID string) (*models.MenuItem, error) {
	it, err := s.itemRepo.GetByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: '%s'", ErrMenuItemNotFound, itemID)
		}
		return nil, fmt.Errorf("failed to get menu item '%s': %w", itemID, err)
	}
	if it.RestaurantID != restaurantID {
		return nil, fmt.Errorf("%w: '%s'", ErrMenuItemNotFound, itemID)
	}
	return it, nil
}

func (s *menuService) ListCategories(ctx context.Context, restaurantID string) ([]*models.Category, error) {
	categories, err := s.categoryRepo.ListByRestaurant(ctx, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories for restaurant '%s': %w", restaurantID, err)
	}
	return categories, nil
}

func (s *menuService) CreateCategory(ctx context.Context, restaurantID string, req models.CreateCategoryRequest) (*models.Category, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: category name is required", ErrInvalidMenuData)
	}
	if err := s.billing.RequireActive(ctx, restaurantID); err != nil {
		return nil, err
	}
	limits, err := s.planLimits(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	if err := s.checkLimit(ctx, restaurantID, "categories", limits.MaxCategories, s.categoryRepo.CountByRestaurant); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	category := &models.Category{
		RestaurantID: restaurantID,
		Name:         name,
		Position:     req.Position,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	id, err := s.categoryRepo.Create(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}
	category.ID = id
	s.menuCache.Invalidate(ctx, restaurantID)
	return category, nil
}

func (s *menuService) UpdateCategory(ctx context.Context, restaurantID, categoryID string, req models.UpdateCategoryRequest) (*models.Category, error) {
	if err := s.billing.RequireActive(ctx, restaurantID); err != nil {
		return nil, err
	}
	category, err := s.getCategory(ctx, restaurantID, categoryID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: category name cannot be empty", ErrInvalidMenuData)
		}
		category.Name = name
	}
	if req.Position != nil {
		category.Position = *req.Position
	}
	category.UpdatedAt = s.now().UTC()

	if err := s.categoryRepo.Update(ctx, category); err != nil {
		return nil, fmt.Errorf("failed to update category '%s': %w", categoryID, err)
	}
	s.menuCache.Invalidate(ctx, restaurantID)
	return category, nil
}

func (s *menuService) DeleteCategory(ctx context.Context, restaurantID, categoryID string) error {
	if err := s.billing.RequireActive(ctx, restaurantID); err != nil {
		return err
	}
	if _, err := s.getCategory(ctx, restaurantID, categoryID); err != nil {
		return err
	}
	n, err := s.itemRepo.CountByCategory(ctx, categoryID)
	if err != nil {
		return fmt.Errorf("failed to count items of category '%s': %w", categoryID, err)
	}
	if n > 0 {
		return fmt.Errorf("%w: %d items", ErrCategoryNotEmpty, n)
	}
	if err := s.categoryRepo.Delete(ctx, categoryID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return fmt.Errorf("%w: '%s'", ErrCategoryNotFound, categoryID)
		}
		return fmt.Errorf("failed to delete category '%s': %w", categoryID, err)
	}
	s.menuCache.Invalidate(ctx, restaurantID)
	return nil
}

func (s *menuService) ListItems(ctx context.Context, restaurantID string) ([]*models.MenuItem, error) {
	items, err := s.itemRepo.ListByRestaurant(ctx, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list menu items for restaurant '%s': %w", restaurantID, err)
	}
	return items, nil
}

func (s *menuService) CreateItem(ctx context.Context, restaurantID string, req models.CreateMenuItemRequest) (*models.MenuItem, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: item name is required", ErrInvalidMenuData)
	}
	if req.PriceCents < 0 {
		return nil, fmt.Errorf("%w: price cannot be negative", ErrInvalidMenuData)
	}
	if err := s.billing.RequireActive(ctx, restaurantID); err != nil {
		return nil, err
	}
	if _, err := s.getCategory(ctx, restaurantID, req.CategoryID); err != nil {
		return nil, err
	}
	limits, err := s.planLimits(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	if err := s.checkLimit(ctx, restaurantID, "menu items", limits.MaxMenuItems, s.itemRepo.CountByRestaurant); err != nil {
		return nil, err
	}

	available := true
	if req.Available != nil {
		available = *req.Available
	}
	now := s.now().UTC()
	item := &models.MenuItem{
		RestaurantID: restaurantID,
		CategoryID:   req.CategoryID,
		Name:         name,
		Description:  strings.TrimSpace(req.Description),
		PriceCents:   req.PriceCents,
		ImageURL:     strings.TrimSpace(req.ImageURL),
		Available:    available,
		Position:     req.Position,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	id, err := s.itemRepo.Create(ctx, item)
	if err != nil {
		return nil, fmt.Errorf("failed to create menu item: %w", err)
	}
	item.ID = id
	s.menuCache.Invalidate(ctx, restaurantID)
	return item, nil
}

func (s *menuService) UpdateItem(ctx context.Context, restaurantID, itemID string, req models.UpdateMenuItemRequest) (*models.MenuItem, error) {
	if err := s.billing.RequireActive(ctx, restaurantID); err != nil {
		return nil, err
	}
	item, err := s.getItem(ctx, restaurantID, itemID)
	if err != nil {
		return nil, err
	}

	if req.CategoryID != nil && *req.CategoryID != item.CategoryID {
		if _, err := s.getCategory(ctx, restaurantID, *req.CategoryID); err != nil {
			return nil, err
		}
		item.CategoryID = *req.CategoryID
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: item name cannot be empty", ErrInvalidMenuData)
		}
		item.Name = name
	}
	if req.Description != nil {
		item.Description = strings.TrimSpace(*req.Description)
	}
	if req.PriceCents != nil {
		if *req.PriceCents < 0 {
			return nil, fmt.Errorf("%w: price cannot be negative", ErrInvalidMenuData)
		}
		item.PriceCents = *req.PriceCents
	}
	if req.ImageURL != nil {
		item.ImageURL = strings.TrimSpace(*req.ImageURL)
	}
	if req.Available != nil {
		item.Available = *req.Available
	}
	if req.Position != nil {
		item.Position = *req.Position
	}
	item.UpdatedAt = s.now().UTC()

	if err := s.itemRepo.Update(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to update menu item '%s': %w", itemID, err)
	}
	s.menuCache.Invalidate(ctx, restaurantID)
	return item, nil
}

func (s *menuService) DeleteItem(ctx context.Context, restaurantID, itemID string) error {
	if err := s.billing.RequireActive(ctx, restaurantID); err != nil {
		return err
	}
	if _, err := s.getItem(ctx, restaurantID, itemID); err != nil {
		return err
	}
	if err := s.itemRepo.Delete(ctx, itemID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return fmt.Errorf("%w: '%s'", ErrMenuItemNotFound, itemID)
		}
		return fmt.Errorf("failed to delete menu item '%s': %w", itemID, err)
	}
	s.menuCache.Invalidate(ctx, restaurantID)
	return nil
}

// PublicMenu serves the customer-facing menu. Views are counted on every
// request, cached or not.
func (s *menuService) PublicMenu(ctx context.Context, slug string) (*apitypes.PublicMenu, error) {
	if menu, ok := s.menuCache.get(ctx, slug); ok {
		s.countView(ctx, menu.Restaurant.ID)
		return menu, nil
	}

	restaurant, err := s.restaurantRepo.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: slug '%s'", ErrRestaurantNotFound, slug)
		}
		return nil, fmt.Errorf("failed to get restaurant by slug '%s': %w", slug, err)
	}
	if restaurant.Disabled {
		return nil, fmt.Errorf("%w: slug '%s'", ErrRestaurantNotFound, slug)
	}
	if err := s.billing.RequireActive(ctx, restaurant.ID); err != nil {
		if errors.Is(err, ErrSubscriptionInactive) {
			return nil, fmt.Errorf("%w: %s", ErrMenuUnavailable, slug)
		}
		return nil, err
	}

	categories, err := s.ListCategories(ctx, restaurant.ID)
	if err != nil {
		return nil, err
	}
	items, err := s.ListItems(ctx, restaurant.ID)
	if err != nil {
		return nil, err
	}

	byCategory := make(map[string][]apitypes.MenuItem, len(categories))
	for _, it := range items {
		if !it.Available {
			continue
		}
		byCategory[it.CategoryID] = append(byCategory[it.CategoryID], it.ToAPI())
	}
	menu := &apitypes.PublicMenu{
		Restaurant: restaurant.ToAPI(),
		Categories: make([]apitypes.MenuCategory, 0, len(categories)),
	}
	for _, c := range categories {
		list := byCategory[c.ID]
		if list == nil {
			list = []apitypes.MenuItem{}
		}
		menu.Categories = append(menu.Categories, apitypes.MenuCategory{Category: c.ToAPI(), Items: list})
	}
	// Owner-only fields stay off the public page.
	menu.Restaurant.QRCode = ""

	s.menuCache.put(ctx, slug, menu)
	s.countView(ctx, restaurant.ID)
	return menu, nil
}

func (s *menuService) countView(ctx context.Context, restaurantID string) {
	if err := s.restaurantRepo.IncrementViews(ctx, restaurantID); err != nil {
		s.logger.Warn("Failed to count menu view", zap.String("restaurantID", restaurantID), zap.Error(err))
	}
}

func (s *menuService) Invalidate(ctx context.Context, restaurantID string) {
	s.menuCache.Invalidate(ctx, restaurantID)
}
