package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"github.com/example/menuboard/internal/db"
	"github.com/example/menuboard/internal/models"
	"github.com/example/menuboard/internal/qrcode"
	"github.com/example/menuboard/pkg/apitypes"
)

var (
	ErrRestaurantNotFound = errors.New("restaurant not found")
	// ErrRestaurantExists is returned when the owner already has a restaurant.
	ErrRestaurantExists   = errors.New("restaurant already exists for this account")
	ErrSlugTaken          = errors.New("slug already taken")
	ErrInvalidRestaurant  = errors.New("invalid restaurant data")
	ErrQRCodeNotGenerated = errors.New("qr code has not been generated")
)

const maxSlugAttempts = 20

// RestaurantSettings are the deployment-specific inputs of restaurant setup.
type RestaurantSettings struct {
	TrialDays         int
	PublicMenuBaseURL string
}

// restaurantService implements the RestaurantService interface.
type restaurantService struct {
	restaurantRepo db.RestaurantRepository
	qr             *qrcode.Generator
	menuCache      *MenuCache
	auditService   AuditService
	settings       RestaurantSettings
	logger         *zap.Logger
	now            func() time.Time
}

// NewRestaurantService creates a new RestaurantService instance.
func NewRestaurantService(
	rr db.RestaurantRepository,
	qr *qrcode.Generator,
	mc *MenuCache,
	as AuditService,
	settings RestaurantSettings,
	logger *zap.Logger,
) RestaurantService {
	return &restaurantService{
		restaurantRepo: rr,
		qr:             qr,
		menuCache:      mc,
		auditService:   as,
		settings:       settings,
		logger:         logger,
		now:            time.Now,
	}
}

func (s *restaurantService) menuURL(restaurantSlug string) string {
	return strings.TrimRight(s.settings.PublicMenuBaseURL, "/") + "/menu/" + restaurantSlug
}

// Create runs the setup wizard: it picks a unique slug, stores the restaurant
// with its QR code and starts the trial subscription.
func (s *restaurantService) Create(ctx context.Context, ownerID string, req apitypes.SetupRestaurantRequest) (*models.Restaurant, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidRestaurant)
	}

	if _, err := s.restaurantRepo.GetByID(ctx, ownerID); err == nil {
		return nil, ErrRestaurantExists
	} else if !errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("failed to check existing restaurant for '%s': %w", ownerID, err)
	}

	restaurantSlug, err := s.pickSlug(ctx, name, req.Slug)
	if err != nil {
		return nil, err
	}

	target := s.menuURL(restaurantSlug)
	qrURI, err := s.qr.DataURI(target)
	if err != nil {
		return nil, fmt.Errorf("failed to generate QR code: %w", err)
	}

	now := s.now().UTC()
	restaurant := &models.Restaurant{
		ID:          ownerID,
		OwnerID:     ownerID,
		Name:        name,
		Slug:        restaurantSlug,
		Description: strings.TrimSpace(req.Description),
		LogoURL:     strings.TrimSpace(req.LogoURL),
		Address:     strings.TrimSpace(req.Address),
		Phone:       strings.TrimSpace(req.Phone),
		QRCode:      qrURI,
		QRTarget:    target,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	trial := &models.Subscription{
		RestaurantID: ownerID,
		Plan:         apitypes.PlanTrial,
		Active:       true,
		StartedAt:    now,
		ExpiresAt:    now.AddDate(0, 0, s.settings.TrialDays),
		UpdatedAt:    now,
	}

	if err := s.restaurantRepo.Create(ctx, restaurant, trial); err != nil {
		switch {
		case errors.Is(err, db.ErrAlreadyExists):
			return nil, ErrRestaurantExists
		case errors.Is(err, db.ErrSlugTaken):
			return nil, fmt.Errorf("%w: %s", ErrSlugTaken, restaurantSlug)
		default:
			return nil, fmt.Errorf("failed to create restaurant: %w", err)
		}
	}

	s.logger.Info("Restaurant created",
		zap.String("restaurantID", restaurant.ID),
		zap.String("slug", restaurant.Slug),
		zap.Time("trialEndsAt", trial.ExpiresAt))
	audit(ctx, s.auditService, s.logger, models.AuditLog{
		UserID:     ownerID,
		Action:     ActionRestaurantCreate,
		TargetType: models.AuditTargetRestaurant,
		TargetID:   restaurant.ID,
		Details:    map[string]interface{}{"name": name, "slug": restaurantSlug},
	})
	return restaurant, nil
}

// pickSlug honours an explicit slug exactly, and otherwise derives one from
// the name with a numeric suffix on collision.
func (s *restaurantService) pickSlug(ctx context.Context, name, requested string) (string, error) {
	if requested != "" {
		candidate := slug.Make(requested)
		if candidate == "" {
			return "", fmt.Errorf("%w: slug %q has no usable characters", ErrInvalidRestaurant, requested)
		}
		taken, err := s.restaurantRepo.SlugExists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("failed to check slug: %w", err)
		}
		if taken {
			return "", fmt.Errorf("%w: %s", ErrSlugTaken, candidate)
		}
		return candidate, nil
	}

	base := slug.Make(name)
	if base == "" {
		base = "restaurant"
	}
	for i := 1; i <= maxSlugAttempts; i++ {
		candidate := base
		if i > 1 {
			candidate = fmt.Sprintf("%s-%d", base, i)
		}
		taken, err := s.restaurantRepo.SlugExists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("failed to check slug: %w", err)
		}
		if !taken {
			return candidate, nil
		}
	}
	return fmt.Sprintf("%s-%s", base, uuid.NewString()[:8]), nil
}

func (s *restaurantService) GetByID(ctx context.Context, restaurantID string) (*models.Restaurant, error) {
	r, err := s.restaurantRepo.GetByID(ctx, restaurantID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: '%s'", ErrRestaurantNotFound, restaurantID)
		}
		return nil, fmt.Errorf("failed to get restaurant '%s': %w", restaurantID, err)
	}
	return r, nil
}

func (s *restaurantService) Update(ctx context.Context, restaurantID string, req models.RestaurantUpdate) (*models.Restaurant, error) {
	r, err := s.GetByID(ctx, restaurantID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name cannot be empty", ErrInvalidRestaurant)
		}
		r.Name = name
	}
	if req.Description != nil {
		r.Description = strings.TrimSpace(*req.Description)
	}
	if req.LogoURL != nil {
		r.LogoURL = strings.TrimSpace(*req.LogoURL)
	}
	if req.Address != nil {
		r.Address = strings.TrimSpace(*req.Address)
	}
	if req.Phone != nil {
		r.Phone = strings.TrimSpace(*req.Phone)
	}
	r.UpdatedAt = s.now().UTC()

	if err := s.restaurantRepo.Update(ctx, r); err != nil {
		return nil, fmt.Errorf("failed to update restaurant '%s': %w", restaurantID, err)
	}
	s.menuCache.invalidateSlug(ctx, r.Slug)
	return r, nil
}

// RegenerateQRCode re-encodes the public menu URL, picking up a changed
// public base URL.
func (s *restaurantService) RegenerateQRCode(ctx context.Context, restaurantID string) (*models.Restaurant, error) {
	r, err := s.GetByID(ctx, restaurantID)
	if err != nil {
		return nil, err
	}

	target := s.menuURL(r.Slug)
	uri, err := s.qr.DataURI(target)
	if err != nil {
		return nil, fmt.Errorf("failed to generate QR code: %w", err)
	}
	r.QRCode = uri
	r.QRTarget = target
	r.UpdatedAt = s.now().UTC()

	if err := s.restaurantRepo.Update(ctx, r); err != nil {
		return nil, fmt.Errorf("failed to store QR code for '%s': %w", restaurantID, err)
	}
	s.logger.Info("QR code regenerated", zap.String("restaurantID", restaurantID), zap.String("target", target))
	return r, nil
}

func (s *restaurantService) QRCodePNG(ctx context.Context, restaurantID string) ([]byte, error) {
	r, err := s.GetByID(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	if r.QRCode == "" {
		return nil, ErrQRCodeNotGenerated
	}
	png, err := qrcode.DecodeDataURI(r.QRCode)
	if err != nil {
		return nil, fmt.Errorf("stored QR code for '%s' is corrupt: %w", restaurantID, err)
	}
	return png, nil
}

func (s *restaurantService) List(ctx context.Context, page db.Page) ([]*models.Restaurant, error) {
	restaurants, err := s.restaurantRepo.List(ctx, page)
	if err != nil {
		return nil, fmt.Errorf("failed to list restaurants: %w", err)
	}
	return restaurants, nil
}

func (s *restaurantService) SetDisabled(ctx context.Context, actorID, restaurantID string, disabled bool) (*models.Restaurant, error) {
	r, err := s.GetByID(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	if r.Disabled == disabled {
		return r, nil
	}

	r.Disabled = disabled
	r.UpdatedAt = s.now().UTC()
	if err := s.restaurantRepo.Update(ctx, r); err != nil {
		return nil, fmt.Errorf("failed to update restaurant status '%s': %w", restaurantID, err)
	}
	s.menuCache.invalidateSlug(ctx, r.Slug)

	action := ActionRestaurantEnable
	if disabled {
		action = ActionRestaurantDisable
	}
	audit(ctx, s.auditService, s.logger, models.AuditLog{
		UserID:     actorID,
		Action:     action,
		TargetType: models.AuditTargetRestaurant,
		TargetID:   restaurantID,
	})
	return r, nil
}
