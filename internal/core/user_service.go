package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/example/menuboard/internal/db"
	"github.com/example/menuboard/internal/models"
	"github.com/example/menuboard/pkg/apitypes"
)

var (
	// ErrUserNotFound is returned when a user is not found.
	ErrUserNotFound = errors.New("user not found")
	// ErrCannotModifySelf is returned when an admin targets their own account.
	ErrCannotModifySelf = errors.New("admins cannot change or remove their own account")
	ErrInvalidRole      = errors.New("invalid role")
)

// userService implements the UserService interface.
type userService struct {
	userRepo     db.UserRepository
	auditService AuditService
	logger       *zap.Logger
	now          func() time.Time
}

// NewUserService creates a new UserService instance.
func NewUserService(userRepo db.UserRepository, as AuditService, logger *zap.Logger) UserService {
	return &userService{
		userRepo:     userRepo,
		auditService: as,
		logger:       logger,
		now:          time.Now,
	}
}

// GetOrCreate retrieves a user by ID, creating it on first sign-in.
// Returns the user, a boolean indicating if the user was created, and an error if any.
func (s *userService) GetOrCreate(ctx context.Context, userID, email, displayName, photoURL string) (*models.User, bool, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err == nil {
		return s.syncProfile(ctx, user, email, displayName, photoURL), false, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return nil, false, fmt.Errorf("failed to get user by ID '%s' from repository: %w", userID, err)
	}

	now := s.now().UTC()
	newUser := &models.User{
		ID:          userID,
		Email:       email,
		DisplayName: displayName,
		PhotoURL:    photoURL,
		Role:        apitypes.RoleUser,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.userRepo.Create(ctx, newUser); err != nil {
		if errors.Is(err, db.ErrAlreadyExists) {
			// Concurrent first requests for the same identity.
			existing, getErr := s.userRepo.GetByID(ctx, userID)
			if getErr != nil {
				return nil, false, fmt.Errorf("failed to reload user '%s' after create race: %w", userID, getErr)
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("failed to create user (id: %s) after not found: %w", userID, err)
	}
	s.logger.Info("Created user on first sign-in", zap.String("userID", userID))
	return newUser, true, nil
}

// syncProfile copies changed identity-provider profile fields onto the record.
// A failed write is logged and the stale record is still returned.
func (s *userService) syncProfile(ctx context.Context, user *models.User, email, displayName, photoURL string) *models.User {
	changed := false
	if email != "" && email != user.Email {
		user.Email = email
		changed = true
	}
	if displayName != "" && displayName != user.DisplayName {
		user.DisplayName = displayName
		changed = true
	}
	if photoURL != "" && photoURL != user.PhotoURL {
		user.PhotoURL = photoURL
		changed = true
	}
	if !changed {
		return user
	}
	user.UpdatedAt = s.now().UTC()
	if err := s.userRepo.Update(ctx, user); err != nil {
		s.logger.Warn("Failed to sync user profile", zap.String("userID", user.ID), zap.Error(err))
	}
	return user
}

// GetByID retrieves a user by their ID.
func (s *userService) GetByID(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: user with ID '%s'", ErrUserNotFound, userID)
		}
		return nil, fmt.Errorf("failed to get user by ID '%s' from repository: %w", userID, err)
	}
	return user, nil
}

func (s *userService) List(ctx context.Context, page db.Page) ([]*models.User, error) {
	users, err := s.userRepo.List(ctx, page)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func (s *userService) ChangeRole(ctx context.Context, actorID, userID string, role apitypes.Role) (*models.User, error) {
	if _, err := apitypes.ParseRole(string(role)); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	if actorID == userID {
		return nil, ErrCannotModifySelf
	}

	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	previous := user.Role
	if previous == role {
		return user, nil
	}

	user.Role = role
	user.UpdatedAt = s.now().UTC()
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update role for user '%s': %w", userID, err)
	}

	audit(ctx, s.auditService, s.logger, models.AuditLog{
		UserID:     actorID,
		Action:     ActionUserRoleChange,
		TargetType: models.AuditTargetUser,
		TargetID:   userID,
		Details:    map[string]interface{}{"from": string(previous), "to": string(role)},
	})
	return user, nil
}

func (s *userService) Remove(ctx context.Context, actorID, userID string) error {
	if actorID == userID {
		return ErrCannotModifySelf
	}
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.Disabled {
		return nil
	}

	user.Disabled = true
	user.UpdatedAt = s.now().UTC()
	if err := s.userRepo.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to disable user '%s': %w", userID, err)
	}

	audit(ctx, s.auditService, s.logger, models.AuditLog{
		UserID:     actorID,
		Action:     ActionUserRemove,
		TargetType: models.AuditTargetUser,
		TargetID:   userID,
		Details:    map[string]interface{}{"email": user.Email},
	})
	return nil
}
