// Package session holds the client-side auth state: who is signed in, the
// backend snapshot for that identity, and whether it is still being resolved.
//
// Every provider notification is numbered. A snapshot fetch only lands if it
// belongs to the newest notification and nothing newer has been applied, so
// a slow response for an old identity can never overwrite a newer one.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/menuboard/pkg/apitypes"
	"github.com/example/menuboard/pkg/client"
	"github.com/example/menuboard/pkg/guard"
	"github.com/example/menuboard/pkg/identity"
)

const defaultFetchTimeout = 30 * time.Second

// Fetcher loads the backend snapshot for the signed-in identity.
// *client.Client satisfies it.
type Fetcher interface {
	Me(ctx context.Context) (*apitypes.Snapshot, error)
}

// State is an immutable copy of the auth state.
type State struct {
	User     *identity.User
	Snapshot *apitypes.Snapshot
	// Loading is true while the signed-in identity has no snapshot yet.
	Loading bool
}

func (s State) Authenticated() bool {
	return s.User != nil
}

// GuardInput converts the state into route-guard input.
func (s State) GuardInput() guard.Input {
	return guard.FromSnapshot(s.Authenticated(), s.Snapshot, s.Loading)
}

// Role returns the snapshot role, or RoleUser when unknown.
func (s State) Role() apitypes.Role {
	if s.Snapshot == nil {
		return apitypes.RoleUser
	}
	return s.Snapshot.User.Role
}

type Context struct {
	provider     identity.Provider
	fetcher      Fetcher
	logger       *zap.Logger
	notify       func(Notification)
	fetchTimeout time.Duration

	mu        sync.Mutex
	state     State
	issued    uint64
	applied   uint64
	nextSubID int
	subs      map[int]func(State)

	runCtx      context.Context
	cancel      context.CancelFunc
	unsubscribe func()
	wg          sync.WaitGroup
}

type Option func(*Context)

func WithLogger(l *zap.Logger) Option {
	return func(c *Context) { c.logger = l }
}

// WithNotifier sets the sink for user-facing notifications.
func WithNotifier(fn func(Notification)) Option {
	return func(c *Context) { c.notify = fn }
}

func WithFetchTimeout(d time.Duration) Option {
	return func(c *Context) { c.fetchTimeout = d }
}

func New(provider identity.Provider, fetcher Fetcher, opts ...Option) *Context {
	c := &Context{
		provider:     provider,
		fetcher:      fetcher,
		logger:       zap.NewNop(),
		notify:       func(Notification) {},
		fetchTimeout: defaultFetchTimeout,
		subs:         make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start subscribes to provider session changes. The provider's initial
// event is handled before Start returns.
func (c *Context) Start(ctx context.Context) {
	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return
	}
	c.runCtx, c.cancel = context.WithCancel(ctx)
	c.mu.Unlock()

	unsubscribe := c.provider.Subscribe(c.handleEvent)

	c.mu.Lock()
	c.unsubscribe = unsubscribe
	c.mu.Unlock()
}

// Close unsubscribes from the provider, cancels in-flight fetches and waits
// for them to return.
func (c *Context) Close() {
	c.mu.Lock()
	cancel, unsubscribe := c.cancel, c.unsubscribe
	c.unsubscribe = nil
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if cancel != nil {
		cancel()
	}
	c.wg.Wait()
}

// State returns a copy of the current state.
func (c *Context) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.copyStateLocked()
}

// Subscribe registers fn for state changes.
func (c *Context) Subscribe(fn func(State)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// HandleUnauthorized forces a provider sign-out after the API rejected the
// caller's token. Wire it into client.WithUnauthorizedHandler.
func (c *Context) HandleUnauthorized() {
	c.mu.Lock()
	signedIn := c.state.User != nil
	c.mu.Unlock()
	if !signedIn {
		return
	}

	c.logger.Warn("API rejected session token, signing out")
	c.notify(Notification{Level: LevelWarning, Message: "Your session has expired. Please sign in again."})
	if err := c.provider.SignOut(context.Background()); err != nil {
		c.logger.Error("Forced sign-out failed", zap.Error(err))
	}
}

func (c *Context) handleEvent(ev identity.Event) {
	c.mu.Lock()
	c.issued++
	seq := c.issued

	if ev.User == nil || ev.Kind == identity.EventSignedOut {
		c.state = State{}
		c.applied = seq
		st := c.copyStateLocked()
		c.mu.Unlock()

		c.logger.Debug("Session cleared", zap.Uint64("seq", seq), zap.Stringer("event", ev.Kind))
		c.publish(st)
		return
	}

	user := *ev.User
	snap := c.state.Snapshot
	if snap != nil && snap.User.ID != user.UID {
		snap = nil
	}
	c.state = State{User: &user, Snapshot: snap, Loading: snap == nil}
	st := c.copyStateLocked()
	runCtx := c.runCtx
	c.wg.Add(1)
	c.mu.Unlock()

	c.logger.Debug("Resolving snapshot",
		zap.Uint64("seq", seq),
		zap.Stringer("event", ev.Kind),
		zap.String("uid", user.UID))
	c.publish(st)

	go c.fetch(runCtx, seq, user.UID)
}

func (c *Context) fetch(ctx context.Context, seq uint64, uid string) {
	defer c.wg.Done()

	fctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()
	snap, err := c.fetcher.Me(fctx)

	c.mu.Lock()
	if seq != c.issued || seq <= c.applied {
		issued := c.issued
		c.mu.Unlock()
		c.logger.Debug("Discarding superseded snapshot",
			zap.Uint64("seq", seq),
			zap.Uint64("issued", issued))
		return
	}
	if ctx.Err() != nil {
		c.mu.Unlock()
		return
	}
	c.applied = seq

	if err != nil {
		// Without a snapshot for this identity the guards cannot decide
		// onboarding, so stay loading and let the navigator time out.
		c.state.Loading = c.state.Snapshot == nil
		st := c.copyStateLocked()
		c.mu.Unlock()
		c.publish(st)

		if errors.Is(err, client.ErrUnauthorized) {
			c.HandleUnauthorized()
			return
		}
		c.logger.Warn("Snapshot fetch failed, keeping last known state",
			zap.String("uid", uid),
			zap.Error(err))
		c.notify(Notification{
			Level:   LevelWarning,
			Message: "Could not refresh your account details.",
			Err:     err,
		})
		return
	}

	c.state.Snapshot = cloneSnapshot(snap)
	c.state.Loading = false
	st := c.copyStateLocked()
	c.mu.Unlock()

	c.logger.Debug("Snapshot applied",
		zap.Uint64("seq", seq),
		zap.String("uid", uid),
		zap.Bool("onboarded", snap.Onboarded()))
	c.publish(st)
}

func (c *Context) publish(st State) {
	c.mu.Lock()
	fns := make([]func(State), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(st)
	}
}

func (c *Context) copyStateLocked() State {
	st := State{Loading: c.state.Loading}
	if c.state.User != nil {
		u := *c.state.User
		st.User = &u
	}
	st.Snapshot = cloneSnapshot(c.state.Snapshot)
	return st
}

func cloneSnapshot(s *apitypes.Snapshot) *apitypes.Snapshot {
	if s == nil {
		return nil
	}
	out := *s
	if s.Restaurant != nil {
		r := *s.Restaurant
		out.Restaurant = &r
	}
	if s.Subscription != nil {
		sub := *s.Subscription
		if s.Subscription.CanceledAt != nil {
			t := *s.Subscription.CanceledAt
			sub.CanceledAt = &t
		}
		out.Subscription = &sub
	}
	return &out
}
