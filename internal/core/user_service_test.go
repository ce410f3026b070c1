package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/menuboard/pkg/apitypes"
)

func TestUserService_GetOrCreate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	u, created, err := h.users.GetOrCreate(ctx, "uid-1", "ana@example.com", "Ana", "")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, apitypes.RoleUser, u.Role)
	assert.Equal(t, testNow, u.CreatedAt)

	u, created, err = h.users.GetOrCreate(ctx, "uid-1", "ana@new.example.com", "", "")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "ana@new.example.com", u.Email)
	assert.Equal(t, "Ana", u.DisplayName, "empty profile fields do not overwrite")

	stored, err := h.users.GetByID(ctx, "uid-1")
	require.NoError(t, err)
	assert.Equal(t, "ana@new.example.com", stored.Email)
}

func TestUserService_GetByIDNotFound(t *testing.T) {
	h := newHarness(t)
	_, err := h.users.GetByID(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserService_ChangeRole(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, _, err := h.users.GetOrCreate(ctx, "admin", "admin@example.com", "", "")
	require.NoError(t, err)
	_, _, err = h.users.GetOrCreate(ctx, "owner", "owner@example.com", "", "")
	require.NoError(t, err)

	t.Run("promotes and audits", func(t *testing.T) {
		u, err := h.users.ChangeRole(ctx, "admin", "owner", apitypes.RoleAdmin)
		require.NoError(t, err)
		assert.Equal(t, apitypes.RoleAdmin, u.Role)
		assert.True(t, h.hasAudit(ActionUserRoleChange, "owner"))
	})

	t.Run("rejects self", func(t *testing.T) {
		_, err := h.users.ChangeRole(ctx, "admin", "admin", apitypes.RoleUser)
		assert.ErrorIs(t, err, ErrCannotModifySelf)
	})

	t.Run("rejects unknown role", func(t *testing.T) {
		_, err := h.users.ChangeRole(ctx, "admin", "owner", apitypes.Role("superuser"))
		assert.ErrorIs(t, err, ErrInvalidRole)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := h.users.ChangeRole(ctx, "admin", "ghost", apitypes.RoleUser)
		assert.ErrorIs(t, err, ErrUserNotFound)
	})
}

func TestUserService_Remove(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, _, err := h.users.GetOrCreate(ctx, "owner", "owner@example.com", "", "")
	require.NoError(t, err)

	assert.ErrorIs(t, h.users.Remove(ctx, "owner", "owner"), ErrCannotModifySelf)

	require.NoError(t, h.users.Remove(ctx, "admin", "owner"))
	u, err := h.users.GetByID(ctx, "owner")
	require.NoError(t, err)
	assert.True(t, u.Disabled)
	assert.True(t, h.hasAudit(ActionUserRemove, "owner"))

	require.NoError(t, h.users.Remove(ctx, "admin", "owner"), "removing twice is a no-op")
}

func TestUserService_AuditFailureDoesNotFailOperation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	svc := NewUserService(h.store.Users, NewAuditService(failingAuditRepo{}), zap.NewNop())
	_, _, err := svc.GetOrCreate(ctx, "owner", "owner@example.com", "", "")
	require.NoError(t, err)

	u, err := svc.ChangeRole(ctx, "admin", "owner", apitypes.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, apitypes.RoleAdmin, u.Role)
}
