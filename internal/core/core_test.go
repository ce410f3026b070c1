package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/example/menuboard/internal/config"
	"github.com/example/menuboard/internal/db"
	"github.com/example/menuboard/internal/models"
	"github.com/example/menuboard/internal/qrcode"
	"github.com/example/menuboard/pkg/apitypes"
	"github.com/example/menuboard/pkg/cache"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	mu   sync.Mutex
	seen []*models.Feedback
	err  error
}

func (n *recordingNotifier) FeedbackCreated(_ context.Context, fb *models.Feedback) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.seen = append(n.seen, fb)
	return n.err
}

type harness struct {
	store       *db.Store
	cache       *cache.Memory
	plans       *config.PlanCatalog
	notifier    *recordingNotifier
	users       UserService
	restaurants RestaurantService
	billing     BillingService
	menu        MenuService
	feedback    FeedbackService
	snapshots   SnapshotService
	now         time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:    db.NewMemoryStore(),
		cache:    cache.NewMemory(),
		plans:    config.DefaultPlans(),
		notifier: &recordingNotifier{},
		now:      testNow,
	}
	logger := zap.NewNop()
	clock := func() time.Time { return h.now }

	as := NewAuditService(h.store.Audit)
	mc := NewMenuCache(h.cache, time.Minute, h.store.Restaurants, logger)

	users := NewUserService(h.store.Users, as, logger).(*userService)
	users.now = clock
	billing := NewBillingService(h.store.Subscriptions, h.plans, mc, as, logger).(*billingService)
	billing.now = clock
	restaurants := NewRestaurantService(h.store.Restaurants, qrcode.NewGenerator(), mc, as,
		RestaurantSettings{TrialDays: 14, PublicMenuBaseURL: "https://menu.example.com/"}, logger).(*restaurantService)
	restaurants.now = clock
	menu := NewMenuService(h.store, billing, h.plans, mc, logger).(*menuService)
	menu.now = clock
	feedback := NewFeedbackService(h.store.Restaurants, h.store.Feedback, h.notifier, logger).(*feedbackService)
	feedback.now = clock
	snapshots := NewSnapshotService(h.store.Restaurants, billing).(*snapshotService)
	snapshots.now = clock

	h.users, h.billing, h.restaurants, h.menu, h.feedback, h.snapshots = users, billing, restaurants, menu, feedback, snapshots
	return h
}

// onboard creates an owner with a restaurant on a fresh trial.
func (h *harness) onboard(t *testing.T, ownerID, name string) *models.Restaurant {
	t.Helper()
	ctx := context.Background()
	if _, _, err := h.users.GetOrCreate(ctx, ownerID, ownerID+"@example.com", "", ""); err != nil {
		t.Fatalf("create user: %v", err)
	}
	r, err := h.restaurants.Create(ctx, ownerID, apitypes.SetupRestaurantRequest{Name: name})
	if err != nil {
		t.Fatalf("create restaurant: %v", err)
	}
	return r
}

func (h *harness) hasAudit(action, target string) bool {
	for _, e := range db.AuditEntries(h.store) {
		if e.Action == action && e.TargetID == target {
			return true
		}
	}
	return false
}

type failingAuditRepo struct{}

func (failingAuditRepo) Create(context.Context, models.AuditLog) error {
	return errors.New("audit store down")
}
