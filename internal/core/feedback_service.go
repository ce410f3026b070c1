package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/menuboard/internal/db"
	"github.com/example/menuboard/internal/models"
	"github.com/example/menuboard/pkg/apitypes"
)

// Feedback paging bounds.
const (
	DefaultFeedbackLimit = 10
	MaxFeedbackLimit     = 100
	// MaxPage keeps (page-1)*limit inside int for every allowed limit.
	MaxPage = math.MaxInt / MaxFeedbackLimit
)

var ErrInvalidFeedback = errors.New("invalid feedback")

// feedbackService implements the FeedbackService interface.
type feedbackService struct {
	restaurantRepo db.RestaurantRepository
	feedbackRepo   db.FeedbackRepository
	notifier       FeedbackNotifier
	logger         *zap.Logger
	now            func() time.Time
}

// NewFeedbackService creates a new FeedbackService instance. notifier may be nil.
func NewFeedbackService(rr db.RestaurantRepository, fr db.FeedbackRepository, notifier FeedbackNotifier, logger *zap.Logger) FeedbackService {
	return &feedbackService{
		restaurantRepo: rr,
		feedbackRepo:   fr,
		notifier:       notifier,
		logger:         logger,
		now:            time.Now,
	}
}

func (s *feedbackService) Submit(ctx context.Context, slug string, req apitypes.SubmitFeedbackRequest) (*models.Feedback, error) {
	if req.Rating < 1 || req.Rating > 5 {
		return nil, fmt.Errorf("%w: rating must be between 1 and 5", ErrInvalidFeedback)
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

	feedback := &models.Feedback{
		RestaurantID: restaurant.ID,
		Rating:       req.Rating,
		Comment:      strings.TrimSpace(req.Comment),
		CustomerName: strings.TrimSpace(req.CustomerName),
		CreatedAt:    s.now().UTC(),
	}
	id, err := s.feedbackRepo.Create(ctx, feedback)
	if err != nil {
		return nil, fmt.Errorf("failed to store feedback: %w", err)
	}
	feedback.ID = id

	if s.notifier != nil {
		if err := s.notifier.FeedbackCreated(ctx, feedback); err != nil {
			s.logger.Warn("Failed to publish feedback event",
				zap.String("feedbackID", id),
				zap.String("restaurantID", restaurant.ID),
				zap.Error(err))
		}
	}
	return feedback, nil
}

// NormalizePage clamps page and limit query values.
func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	if limit < 1 {
		limit = DefaultFeedbackLimit
	}
	if limit > MaxFeedbackLimit {
		limit = MaxFeedbackLimit
	}
	return page, limit
}

// StorePage converts a 1-based page into a store window after normalizing.
func StorePage(page, limit int) db.Page {
	page, limit = NormalizePage(page, limit)
	return db.Page{Offset: (page - 1) * limit, Limit: limit}
}

func (s *feedbackService) List(ctx context.Context, restaurantID string, page, limit int) (*apitypes.FeedbackPage, error) {
	page, limit = NormalizePage(page, limit)

	stats, err := s.feedbackRepo.Stats(ctx, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate feedback: %w", err)
	}
	entries, err := s.feedbackRepo.List(ctx, restaurantID, StorePage(page, limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
	}

	items := make([]apitypes.Feedback, 0, len(entries))
	for _, fb := range entries {
		items = append(items, fb.ToAPI())
	}
	return &apitypes.FeedbackPage{
		Items:         items,
		Page:          page,
		Limit:         limit,
		Total:         stats.Count,
		TotalPages:    int((stats.Count + int64(limit) - 1) / int64(limit)),
		AverageRating: stats.AverageRating,
	}, nil
}
