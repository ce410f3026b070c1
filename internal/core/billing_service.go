package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/example/menuboard/internal/config"
	"github.com/example/menuboard/internal/db"
	"github.com/example/menuboard/internal/models"
	"github.com/example/menuboard/pkg/apitypes"
)

var (
	ErrSubscriptionNotFound = errors.New("subscription not found")
	// ErrSubscriptionInactive is returned for writes by restaurants without an
	// active subscription.
	ErrSubscriptionInactive = errors.New("subscription inactive or expired")
	ErrInvalidBillingEvent  = errors.New("invalid billing event")
)

// billingService implements the BillingService interface.
type billingService struct {
	subRepo      db.SubscriptionRepository
	plans        *config.PlanCatalog
	menuCache    *MenuCache
	auditService AuditService
	logger       *zap.Logger
	now          func() time.Time
}

// NewBillingService creates a new BillingService instance.
func NewBillingService(subRepo db.SubscriptionRepository, plans *config.PlanCatalog, mc *MenuCache, as AuditService, logger *zap.Logger) BillingService {
	return &billingService{
		subRepo:      subRepo,
		plans:        plans,
		menuCache:    mc,
		auditService: as,
		logger:       logger,
		now:          time.Now,
	}
}

func (s *billingService) GetSubscription(ctx context.Context, restaurantID string) (*models.Subscription, error) {
	sub, err := s.subRepo.GetByRestaurantID(ctx, restaurantID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: restaurant '%s'", ErrSubscriptionNotFound, restaurantID)
		}
		return nil, fmt.Errorf("failed to get subscription for restaurant '%s': %w", restaurantID, err)
	}
	return sub, nil
}

func (s *billingService) RequireActive(ctx context.Context, restaurantID string) error {
	sub, err := s.GetSubscription(ctx, restaurantID)
	if err != nil {
		if errors.Is(err, ErrSubscriptionNotFound) {
			return fmt.Errorf("%w: no subscription for restaurant '%s'", ErrSubscriptionInactive, restaurantID)
		}
		return err
	}
	if !sub.IsActive(s.now()) {
		return fmt.Errorf("%w: restaurant '%s' plan '%s'", ErrSubscriptionInactive, restaurantID, sub.Plan)
	}
	return nil
}

func (s *billingService) validate(event apitypes.BillingEvent) error {
	if event.ID == "" || event.RestaurantID == "" {
		return fmt.Errorf("%w: id and restaurantId are required", ErrInvalidBillingEvent)
	}
	switch event.Type {
	case apitypes.BillingCheckoutCompleted:
		if !event.Plan.Paid() {
			return fmt.Errorf("%w: checkout for non-paid plan %q", ErrInvalidBillingEvent, event.Plan)
		}
	case apitypes.BillingSubscriptionCanceled:
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidBillingEvent, event.Type)
	}
	return nil
}

// ApplyEvent transitions the subscription named by the event. Re-delivery of
// a recently applied event is a no-op, as is an event that occurred before
// the newest one already applied.
func (s *billingService) ApplyEvent(ctx context.Context, event apitypes.BillingEvent) (*models.Subscription, bool, error) {
	if err := s.validate(event); err != nil {
		return nil, false, err
	}

	applied, stale := false, false
	sub, err := s.subRepo.Mutate(ctx, event.RestaurantID, func(sub *models.Subscription) (bool, error) {
		if sub.SeenEvent(event.ID) {
			return false, nil
		}
		if !event.OccurredAt.IsZero() && event.OccurredAt.Before(sub.LastEventAt) {
			stale = true
			return false, nil
		}
		now := s.now().UTC()

		switch event.Type {
		case apitypes.BillingCheckoutCompleted:
			if !sub.IsActive(now) || sub.Plan != event.Plan {
				sub.StartedAt = now
			}
			base := now
			if sub.ExpiresAt.After(now) {
				base = sub.ExpiresAt
			}
			period := s.plans.Limits(event.Plan).PeriodDays
			sub.Plan = event.Plan
			sub.Active = true
			sub.CanceledAt = nil
			sub.ExpiresAt = base.AddDate(0, 0, period)
		case apitypes.BillingSubscriptionCanceled:
			sub.Active = false
			sub.CanceledAt = &now
		}

		sub.RecordEvent(event.ID, event.OccurredAt)
		sub.UpdatedAt = now
		applied = true
		return true, nil
	})
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, false, fmt.Errorf("%w: restaurant '%s'", ErrSubscriptionNotFound, event.RestaurantID)
		}
		return nil, false, err
	}

	if stale {
		s.logger.Warn("Ignoring out-of-order billing event",
			zap.String("eventID", event.ID),
			zap.String("restaurantID", event.RestaurantID),
			zap.Time("occurredAt", event.OccurredAt),
			zap.Time("lastEventAt", sub.LastEventAt))
		return sub, false, nil
	}
	if !applied {
		s.logger.Info("Ignoring duplicate billing event",
			zap.String("eventID", event.ID),
			zap.String("restaurantID", event.RestaurantID))
		return sub, false, nil
	}

	s.logger.Info("Applied billing event",
		zap.String("eventID", event.ID),
		zap.String("type", event.Type),
		zap.String("restaurantID", event.RestaurantID),
		zap.String("plan", string(sub.Plan)),
		zap.Time("expiresAt", sub.ExpiresAt))

	s.menuCache.Invalidate(ctx, event.RestaurantID)
	audit(ctx, s.auditService, s.logger, models.AuditLog{
		UserID:     "billing",
		Action:     ActionSubscriptionUpdated,
		TargetType: models.AuditTargetSubscription,
		TargetID:   event.RestaurantID,
		Details: map[string]interface{}{
			"eventId": event.ID,
			"type":    event.Type,
			"plan":    string(sub.Plan),
		},
	})
	return sub, true, nil
}
