package db

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/example/menuboard/internal/models"
)

const feedbackCollection = "feedback"

// firestoreFeedbackRepository implements FeedbackRepository using Firestore.
type firestoreFeedbackRepository struct {
	client *firestore.Client
}

// NewFirestoreFeedbackRepository creates a new instance of firestoreFeedbackRepository.
func NewFirestoreFeedbackRepository(client *firestore.Client) FeedbackRepository {
	if client == nil {
		panic("db: Firestore client is not initialized for FeedbackRepository")
	}
	return &firestoreFeedbackRepository{client: client}
}

func (r *firestoreFeedbackRepository) Create(ctx context.Context, feedback *models.Feedback) (string, error) {
	docRef := r.client.Collection(feedbackCollection).NewDoc()
	feedback.ID = docRef.ID
	if _, err := docRef.Create(ctx, feedback); err != nil {
		return "", fmt.Errorf("failed to create feedback: %w", err)
	}
	return docRef.ID, nil
}

func (r *firestoreFeedbackRepository) scope(restaurantID string) firestore.Query {
	q := r.client.Collection(feedbackCollection).Query
	if restaurantID != "" {
		q = q.Where("restaurantId", "==", restaurantID)
	}
	return q
}

// List returns feedback newest first.
func (r *firestoreFeedbackRepository) List(ctx context.Context, restaurantID string, page Page) ([]*models.Feedback, error) {
	query := paginate(r.scope(restaurantID).OrderBy("createdAt", firestore.Desc), page)

	iter := query.Documents(ctx)
	defer iter.Stop()

	var entries []*models.Feedback
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate feedback: %w", err)
		}
		var fb models.Feedback
		if err := doc.DataTo(&fb); err != nil {
			return nil, fmt.Errorf("failed to decode feedback %s: %w", doc.Ref.ID, err)
		}
		fb.ID = doc.Ref.ID
		entries = append(entries, &fb)
	}
	return entries, nil
}

// Stats computes count and average rating with a single aggregation query.
func (r *firestoreFeedbackRepository) Stats(ctx context.Context, restaurantID string) (models.FeedbackStats, error) {
	q := r.scope(restaurantID)
	results, err := q.NewAggregationQuery().
		WithCount("count").
		WithAvg("rating", "avgRating").
		Get(ctx)
	if err != nil {
		return models.FeedbackStats{}, fmt.Errorf("failed to aggregate feedback: %w", err)
	}

	n, err := aggregateInt(results, "count")
	if err != nil {
		return models.FeedbackStats{}, err
	}
	avg, err := aggregateFloat(results, "avgRating")
	if err != nil {
		return models.FeedbackStats{}, err
	}
	return models.FeedbackStats{Count: n, AverageRating: avg}, nil
}
