package session

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/example/menuboard/pkg/apitypes"
)

// ErrAccessDenied is returned when a non-admin account uses the admin login.
var ErrAccessDenied = errors.New("session: access denied")

// AdminLogin signs in and verifies the account is an admin. Non-admins are
// signed out again before ErrAccessDenied is returned.
func (c *Context) AdminLogin(ctx context.Context, email, password string) (*apitypes.Snapshot, error) {
	user, err := c.provider.SignIn(ctx, email, password)
	if err != nil {
		c.notify(Notification{Level: LevelError, Message: "Sign-in failed.", Err: err})
		return nil, fmt.Errorf("admin login: %w", err)
	}

	snap, err := c.fetcher.Me(ctx)
	if err != nil {
		c.logger.Warn("Admin login snapshot fetch failed", zap.String("uid", user.UID), zap.Error(err))
		c.signOutQuietly(ctx)
		c.notify(Notification{Level: LevelError, Message: "Could not verify your account.", Err: err})
		return nil, fmt.Errorf("admin login: fetch snapshot: %w", err)
	}

	switch snap.User.Role {
	case apitypes.RoleAdmin:
		c.logger.Info("Admin signed in", zap.String("uid", user.UID))
		return snap, nil
	case apitypes.RoleUser:
		c.logger.Warn("Non-admin attempted admin login", zap.String("uid", user.UID))
	default:
		c.logger.Warn("Unknown role on admin login",
			zap.String("uid", user.UID),
			zap.String("role", string(snap.User.Role)))
	}

	c.signOutQuietly(ctx)
	c.notify(Notification{Level: LevelError, Message: "Access denied: this account is not an administrator."})
	return nil, ErrAccessDenied
}

func (c *Context) signOutQuietly(ctx context.Context) {
	if err := c.provider.SignOut(ctx); err != nil {
		c.logger.Error("Sign-out failed", zap.Error(err))
	}
}
