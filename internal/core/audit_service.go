package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/example/menuboard/internal/db"
	"github.com/example/menuboard/internal/models"
)

// Audit actions.
const (
	ActionUserRoleChange      = "USER_ROLE_CHANGE"
	ActionUserRemove          = "USER_REMOVE"
	ActionRestaurantCreate    = "RESTAURANT_CREATE"
	ActionRestaurantDisable   = "RESTAURANT_DISABLE"
	ActionRestaurantEnable    = "RESTAURANT_ENABLE"
	ActionSubscriptionUpdated = "SUBSCRIPTION_UPDATED"
)

// auditService implements the AuditService interface.
type auditService struct {
	auditRepo db.AuditRepository
}

// NewAuditService creates a new AuditService instance.
func NewAuditService(auditRepo db.AuditRepository) AuditService {
	return &auditService{auditRepo: auditRepo}
}

// CreateAuditLog stores a new audit log entry.
func (s *auditService) CreateAuditLog(ctx context.Context, logEntry models.AuditLog) error {
	if s.auditRepo == nil {
		return errors.New("AuditRepository not initialized in AuditService")
	}
	if logEntry.Timestamp.IsZero() {
		logEntry.Timestamp = time.Now().UTC()
	}
	if err := s.auditRepo.Create(ctx, logEntry); err != nil {
		return fmt.Errorf("failed to create audit log via repository: %w", err)
	}
	return nil
}

// audit writes an entry and only logs failures; audit problems never fail
// the audited operation.
func audit(ctx context.Context, svc AuditService, logger *zap.Logger, entry models.AuditLog) {
	if svc == nil {
		return
	}
	if err := svc.CreateAuditLog(ctx, entry); err != nil {
		logger.Warn("Failed to create audit log",
			zap.String("action", entry.Action),
			zap.String("targetId", entry.TargetID),
			zap.Error(err))
	}
}
