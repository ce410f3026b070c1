package session

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/example/menuboard/pkg/guard"
)

// DefaultResolveTimeout bounds how long navigation waits for the auth state.
const DefaultResolveTimeout = 10 * time.Second

// ErrResolveTimeout means the auth state never left loading. The caller
// should show a "try again" prompt.
var ErrResolveTimeout = errors.New("session: timed out resolving auth state, try again")

// Navigator applies route guards to the live session state.
type Navigator struct {
	session *Context
	timeout time.Duration
	logger  *zap.Logger
}

type NavigatorOption func(*Navigator)

func WithResolveTimeout(d time.Duration) NavigatorOption {
	return func(n *Navigator) { n.timeout = d }
}

func WithNavigatorLogger(l *zap.Logger) NavigatorOption {
	return func(n *Navigator) { n.logger = l }
}

func NewNavigator(s *Context, opts ...NavigatorOption) *Navigator {
	n := &Navigator{session: s, timeout: DefaultResolveTimeout, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Resolve waits until the session is no longer loading and returns the
// guard decision for target.
func (n *Navigator) Resolve(ctx context.Context, target string) (guard.Decision, error) {
	changed := make(chan struct{}, 1)
	unsubscribe := n.session.Subscribe(func(State) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	timer := time.NewTimer(n.timeout)
	defer timer.Stop()

	for {
		st := n.session.State()
		if !st.Loading {
			return guard.Decide(st.GuardInput(), target), nil
		}

		select {
		case <-changed:
		case <-timer.C:
			uid := ""
			if st.User != nil {
				uid = st.User.UID
			}
			n.logger.Warn("Auth state still loading, giving up",
				zap.String("target", target),
				zap.String("uid", uid),
				zap.Duration("timeout", n.timeout))
			return guard.Decision{
				Action: guard.Redirect,
				Target: guard.PathLogin,
				State:  guard.StateUnauthorized,
			}, ErrResolveTimeout
		case <-ctx.Done():
			return guard.Decision{}, ctx.Err()
		}
	}
}
