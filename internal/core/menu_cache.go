package core

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/example/menuboard/internal/db"
	"github.com/example/menuboard/pkg/apitypes"
	"github.com/example/menuboard/pkg/cache"
)

const menuCachePrefix = "menu:"

// MenuCache stores rendered public menus by slug. Every write that changes
// what customers see must invalidate the restaurant's entry.
type MenuCache struct {
	cache       cache.Cache
	ttl         time.Duration
	restaurants db.RestaurantRepository
	logger      *zap.Logger
}

// NewMenuCache wraps c. A zero ttl disables caching.
func NewMenuCache(c cache.Cache, ttl time.Duration, restaurants db.RestaurantRepository, logger *zap.Logger) *MenuCache {
	if c == nil || ttl <= 0 {
		c = cache.Nop{}
	}
	return &MenuCache{cache: c, ttl: ttl, restaurants: restaurants, logger: logger}
}

func (m *MenuCache) get(ctx context.Context, slug string) (*apitypes.PublicMenu, bool) {
	raw, err := m.cache.Get(ctx, menuCachePrefix+slug)
	if err != nil || raw == "" {
		return nil, false
	}
	var menu apitypes.PublicMenu
	if err := json.Unmarshal([]byte(raw), &menu); err != nil {
		m.logger.Warn("Dropping undecodable cached menu", zap.String("slug", slug), zap.Error(err))
		_ = m.cache.Delete(ctx, menuCachePrefix+slug)
		return nil, false
	}
	return &menu, true
}

func (m *MenuCache) put(ctx context.Context, slug string, menu *apitypes.PublicMenu) {
	raw, err := json.Marshal(menu)
	if err != nil {
		return
	}
	if err := m.cache.Set(ctx, menuCachePrefix+slug, string(raw), m.ttl); err != nil {
		m.logger.Warn("Failed to cache public menu", zap.String("slug", slug), zap.Error(err))
	}
}

// Invalidate drops the cached menu of restaurantID.
func (m *MenuCache) Invalidate(ctx context.Context, restaurantID string) {
	r, err := m.restaurants.GetByID(ctx, restaurantID)
	if err != nil {
		return
	}
	m.invalidateSlug(ctx, r.Slug)
}

func (m *MenuCache) invalidateSlug(ctx context.Context, slug string) {
	if err := m.cache.Delete(ctx, menuCachePrefix+slug); err != nil {
		m.logger.Warn("Failed to invalidate cached menu", zap.String("slug", slug), zap.Error(err))
	}
}
