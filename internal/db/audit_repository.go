package db

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"

	"github.com/example/menuboard/internal/models"
)

const auditLogsCollection = "auditLogs"

type firestoreAuditRepository struct {
	client *firestore.Client
}

// NewFirestoreAuditRepository creates a new instance of firestoreAuditRepository.
func NewFirestoreAuditRepository(client *firestore.Client) AuditRepository {
	if client == nil {
		panic("db: Firestore client is not initialized for AuditRepository")
	}
	return &firestoreAuditRepository{client: client}
}

func (r *firestoreAuditRepository) Create(ctx context.Context, logEntry models.AuditLog) error {
	if _, _, err := r.client.Collection(auditLogsCollection).Add(ctx, logEntry); err != nil {
		return fmt.Errorf("failed to write audit log %s: %w", logEntry.Action, err)
	}
	return nil
}

// NewFirestoreStore wires every Firestore repository onto client.
func NewFirestoreStore(client *firestore.Client) *Store {
	return &Store{
		Users:         NewFirestoreUserRepository(client),
		Restaurants:   NewFirestoreRestaurantRepository(client),
		Subscriptions: NewFirestoreSubscriptionRepository(client),
		Categories:    NewFirestoreCategoryRepository(client),
		MenuItems:     NewFirestoreMenuItemRepository(client),
		Feedback:      NewFirestoreFeedbackRepository(client),
		Audit:         NewFirestoreAuditRepository(client),
	}
}
