package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/example/menuboard/pkg/apitypes"
	"github.com/example/menuboard/pkg/client"
	"github.com/example/menuboard/pkg/guard"
	"github.com/example/menuboard/pkg/identity"
)

// fakeProvider is an identity.Provider driven directly by tests.
type fakeProvider struct {
	mu       sync.Mutex
	user     *identity.User
	subs     map[int]func(identity.Event)
	next     int
	signOuts int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{subs: make(map[int]func(identity.Event))}
}

func (p *fakeProvider) SignIn(_ context.Context, email, _ string) (*identity.User, error) {
	u := &identity.User{UID: "uid-" + email, Email: email}
	p.mu.Lock()
	p.user = u
	p.mu.Unlock()
	p.emit(identity.EventSignedIn, u)
	return u, nil
}

func (p *fakeProvider) SignOut(context.Context) error {
	p.mu.Lock()
	was := p.user != nil
	p.user = nil
	p.signOuts++
	p.mu.Unlock()
	if was {
		p.emit(identity.EventSignedOut, nil)
	}
	return nil
}

func (p *fakeProvider) Token(context.Context) (string, error) { return "tok", nil }

func (p *fakeProvider) CurrentUser() *identity.User {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.user
}

func (p *fakeProvider) Subscribe(fn func(identity.Event)) func() {
	p.mu.Lock()
	id := p.next
	p.next++
	p.subs[id] = fn
	u := p.user
	p.mu.Unlock()
	fn(identity.Event{Kind: identity.EventInitial, User: u})
	return func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
	}
}

func (p *fakeProvider) refresh() {
	p.mu.Lock()
	u := p.user
	p.mu.Unlock()
	p.emit(identity.EventTokenRefreshed, u)
}

func (p *fakeProvider) emit(kind identity.EventKind, u *identity.User) {
	p.mu.Lock()
	fns := make([]func(identity.Event), 0, len(p.subs))
	for _, fn := range p.subs {
		fns = append(fns, fn)
	}
	p.mu.Unlock()
	for _, fn := range fns {
		fn(identity.Event{Kind: kind, User: u})
	}
}

func (p *fakeProvider) signOutCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.signOuts
}

type fetchResult struct {
	snap *apitypes.Snapshot
	err  error
}

type pendingFetch struct {
	reply chan fetchResult
}

// scriptedFetcher hands every Me call to the test, which answers it.
type scriptedFetcher struct {
	calls chan pendingFetch
}

func newScriptedFetcher() *scriptedFetcher {
	return &scriptedFetcher{calls: make(chan pendingFetch, 8)}
}

func (f *scriptedFetcher) Me(ctx context.Context) (*apitypes.Snapshot, error) {
	p := pendingFetch{reply: make(chan fetchResult, 1)}
	f.calls <- p
	select {
	case r := <-p.reply:
		return r.snap, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *scriptedFetcher) next(t *testing.T) pendingFetch {
	t.Helper()
	select {
	case p := <-f.calls:
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("expected a snapshot fetch")
		return pendingFetch{}
	}
}

type staticFetcher struct {
	snap *apitypes.Snapshot
	err  error
}

func (f staticFetcher) Me(context.Context) (*apitypes.Snapshot, error) { return f.snap, f.err }

type notificationLog struct {
	mu    sync.Mutex
	items []Notification
}

func (l *notificationLog) add(n Notification) {
	l.mu.Lock()
	l.items = append(l.items, n)
	l.mu.Unlock()
}

func (l *notificationLog) all() []Notification {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Notification(nil), l.items...)
}

func snapshotFor(uid string, role apitypes.Role, restaurantName string) *apitypes.Snapshot {
	s := &apitypes.Snapshot{User: apitypes.User{ID: uid, Role: role}}
	if restaurantName != "" {
		s.Restaurant = &apitypes.Restaurant{ID: uid, OwnerID: uid, Name: restaurantName}
	}
	return s
}

func waitForState(t *testing.T, c *Context, cond func(State) bool) {
	t.Helper()
	require.Eventually(t, func() bool { return cond(c.State()) }, 2*time.Second, 5*time.Millisecond)
}

func TestContext_SignedOutAtStart(t *testing.T) {
	c := New(newFakeProvider(), staticFetcher{})
	c.Start(context.Background())
	defer c.Close()

	st := c.State()
	assert.False(t, st.Authenticated())
	assert.Nil(t, st.Snapshot)
	assert.False(t, st.Loading)
}

func TestContext_SignInLoadsSnapshot(t *testing.T) {
	p := newFakeProvider()
	f := newScriptedFetcher()
	c := New(p, f)
	c.Start(context.Background())
	defer c.Close()

	_, err := p.SignIn(context.Background(), "a@x.io", "pw")
	require.NoError(t, err)

	st := c.State()
	assert.True(t, st.Authenticated())
	assert.True(t, st.Loading)
	assert.Equal(t, guard.StateResolving, guard.Decide(st.GuardInput(), "/dashboard").State)

	f.next(t).reply <- fetchResult{snap: snapshotFor("uid-a@x.io", apitypes.RoleUser, "Cafe")}
	waitForState(t, c, func(s State) bool { return !s.Loading })

	st = c.State()
	require.NotNil(t, st.Snapshot)
	assert.Equal(t, "Cafe", st.Snapshot.Restaurant.Name)
	assert.Equal(t, guard.Allow, guard.Decide(st.GuardInput(), "/dashboard").Action)
}

func TestContext_OlderFetchCompletingLateIsDiscarded(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	p := newFakeProvider()
	f := newScriptedFetcher()
	c := New(p, f, WithLogger(zap.New(core)))
	c.Start(context.Background())
	defer c.Close()

	_, err := p.SignIn(context.Background(), "a@x.io", "pw")
	require.NoError(t, err)
	first := f.next(t)

	p.refresh()
	second := f.next(t)

	second.reply <- fetchResult{snap: snapshotFor("uid-a@x.io", apitypes.RoleUser, "Newer")}
	waitForState(t, c, func(s State) bool { return s.Snapshot != nil })

	first.reply <- fetchResult{snap: snapshotFor("uid-a@x.io", apitypes.RoleUser, "Older")}
	require.Eventually(t, func() bool {
		return logs.FilterMessage("Discarding superseded snapshot").Len() == 1
	}, 2*time.Second, 5*time.Millisecond)

	st := c.State()
	require.NotNil(t, st.Snapshot)
	assert.Equal(t, "Newer", st.Snapshot.Restaurant.Name)
}

func TestContext_OlderFetchCompletingFirstIsDiscarded(t *testing.T) {
	p := newFakeProvider()
	f := newScriptedFetcher()
	c := New(p, f)
	c.Start(context.Background())
	defer c.Close()

	_, err := p.SignIn(context.Background(), "a@x.io", "pw")
	require.NoError(t, err)
	first := f.next(t)
	p.refresh()
	second := f.next(t)

	first.reply <- fetchResult{snap: snapshotFor("uid-a@x.io", apitypes.RoleUser, "Older")}
	second.reply <- fetchResult{snap: snapshotFor("uid-a@x.io", apitypes.RoleUser, "Newer")}

	waitForState(t, c, func(s State) bool { return s.Snapshot != nil })
	assert.Equal(t, "Newer", c.State().Snapshot.Restaurant.Name)
}

func TestContext_SignOutClearsImmediatelyAndDropsInFlightFetch(t *testing.T) {
	p := newFakeProvider()
	f := newScriptedFetcher()
	c := New(p, f)
	c.Start(context.Background())
	defer c.Close()

	_, err := p.SignIn(context.Background(), "a@x.io", "pw")
	require.NoError(t, err)
	pending := f.next(t)

	require.NoError(t, p.SignOut(context.Background()))
	st := c.State()
	assert.False(t, st.Authenticated())
	assert.False(t, st.Loading)
	assert.Nil(t, st.Snapshot)

	pending.reply <- fetchResult{snap: snapshotFor("uid-a@x.io", apitypes.RoleAdmin, "Cafe")}
	assert.Never(t, func() bool { return c.State().Snapshot != nil }, 100*time.Millisecond, 5*time.Millisecond)
}

func TestContext_FetchFailureKeepsLastKnownGood(t *testing.T) {
	p := newFakeProvider()
	f := newScriptedFetcher()
	notes := &notificationLog{}
	c := New(p, f, WithNotifier(notes.add))
	c.Start(context.Background())
	defer c.Close()

	_, err := p.SignIn(context.Background(), "a@x.io", "pw")
	require.NoError(t, err)
	f.next(t).reply <- fetchResult{snap: snapshotFor("uid-a@x.io", apitypes.RoleUser, "Cafe")}
	waitForState(t, c, func(s State) bool { return s.Snapshot != nil })

	p.refresh()
	assert.False(t, c.State().Loading, "token refresh keeps the existing snapshot visible")
	f.next(t).reply <- fetchResult{err: errors.New("connection reset")}

	require.Eventually(t, func() bool { return len(notes.all()) == 1 }, 2*time.Second, 5*time.Millisecond)
	n := notes.all()[0]
	assert.Equal(t, LevelWarning, n.Level)
	assert.EqualError(t, n.Err, "connection reset")

	st := c.State()
	assert.True(t, st.Authenticated())
	assert.False(t, st.Loading)
	require.NotNil(t, st.Snapshot)
	assert.Equal(t, "Cafe", st.Snapshot.Restaurant.Name)
}

func TestContext_FirstFetchFailureStaysLoading(t *testing.T) {
	p := newFakeProvider()
	f := newScriptedFetcher()
	notes := &notificationLog{}
	c := New(p, f, WithNotifier(notes.add))
	c.Start(context.Background())
	defer c.Close()

	_, err := p.SignIn(context.Background(), "a@x.io", "pw")
	require.NoError(t, err)
	f.next(t).reply <- fetchResult{err: errors.New("connection refused")}

	require.Eventually(t, func() bool { return len(notes.all()) == 1 }, 2*time.Second, 5*time.Millisecond)
	st := c.State()
	assert.True(t, st.Authenticated())
	assert.True(t, st.Loading)
	assert.Nil(t, st.Snapshot)

	nav := NewNavigator(c, WithResolveTimeout(50*time.Millisecond))
	d, err := nav.Resolve(context.Background(), "/dashboard")
	require.ErrorIs(t, err, ErrResolveTimeout)
	assert.Equal(t, guard.PathLogin, d.Target)
	assert.NotEqual(t, guard.PathSetup, d.Target)

	p.refresh()
	f.next(t).reply <- fetchResult{snap: snapshotFor("uid-a@x.io", apitypes.RoleUser, "Cafe")}
	waitForState(t, c, func(s State) bool { return s.Snapshot != nil && !s.Loading })
}

func TestContext_UnauthorizedForcesSignOut(t *testing.T) {
	p := newFakeProvider()
	f := newScriptedFetcher()
	notes := &notificationLog{}
	c := New(p, f, WithNotifier(notes.add))
	c.Start(context.Background())
	defer c.Close()

	_, err := p.SignIn(context.Background(), "a@x.io", "pw")
	require.NoError(t, err)
	f.next(t).reply <- fetchResult{err: client.ErrUnauthorized}

	waitForState(t, c, func(s State) bool { return !s.Authenticated() })
	assert.Equal(t, 1, p.signOutCount())
	require.Len(t, notes.all(), 1)
	assert.Equal(t, LevelWarning, notes.all()[0].Level)
}

func TestContext_NewIdentityDropsPreviousSnapshot(t *testing.T) {
	p := newFakeProvider()
	f := newScriptedFetcher()
	c := New(p, f)
	c.Start(context.Background())
	defer c.Close()

	_, err := p.SignIn(context.Background(), "a@x.io", "pw")
	require.NoError(t, err)
	f.next(t).reply <- fetchResult{snap: snapshotFor("uid-a@x.io", apitypes.RoleAdmin, "")}
	waitForState(t, c, func(s State) bool { return s.Snapshot != nil })

	_, err = p.SignIn(context.Background(), "b@x.io", "pw")
	require.NoError(t, err)
	st := c.State()
	assert.Equal(t, "uid-b@x.io", st.User.UID)
	assert.Nil(t, st.Snapshot)
	assert.True(t, st.Loading)
	assert.Equal(t, apitypes.RoleUser, st.Role())
	_ = f.next(t)
}

func TestContext_SubscribeObservesChanges(t *testing.T) {
	p := newFakeProvider()
	c := New(p, staticFetcher{snap: snapshotFor("uid-a@x.io", apitypes.RoleUser, "Cafe")})
	c.Start(context.Background())
	defer c.Close()

	var mu sync.Mutex
	var seen []State
	unsubscribe := c.Subscribe(func(s State) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	_, err := p.SignIn(context.Background(), "a@x.io", "pw")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 2
	}, 2*time.Second, 5*time.Millisecond)

	unsubscribe()
	require.NoError(t, p.SignOut(context.Background()))
	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, seen, 2)
}

func TestAdminLogin_DeniesNonAdmin(t *testing.T) {
	p := newFakeProvider()
	notes := &notificationLog{}
	c := New(p, staticFetcher{snap: snapshotFor("uid-owner@x.io", apitypes.RoleUser, "Cafe")}, WithNotifier(notes.add))
	c.Start(context.Background())
	defer c.Close()

	snap, err := c.AdminLogin(context.Background(), "owner@x.io", "pw")
	require.ErrorIs(t, err, ErrAccessDenied)
	assert.Nil(t, snap)
	assert.Nil(t, p.CurrentUser())

	st := c.State()
	assert.False(t, st.Authenticated())
	assert.Nil(t, st.Snapshot)
	assert.Equal(t, guard.Redirect, guard.Decide(st.GuardInput(), "/admin").Action)

	var denied bool
	for _, n := range notes.all() {
		if n.Level == LevelError {
			denied = true
		}
	}
	assert.True(t, denied)
}

func TestAdminLogin_AllowsAdmin(t *testing.T) {
	p := newFakeProvider()
	c := New(p, staticFetcher{snap: snapshotFor("uid-root@x.io", apitypes.RoleAdmin, "")})
	c.Start(context.Background())
	defer c.Close()

	snap, err := c.AdminLogin(context.Background(), "root@x.io", "pw")
	require.NoError(t, err)
	assert.Equal(t, apitypes.RoleAdmin, snap.User.Role)

	waitForState(t, c, func(s State) bool { return !s.Loading })
	assert.Equal(t, guard.Allow, guard.Decide(c.State().GuardInput(), "/admin/users").Action)
}

func TestCloseCancelsInFlightFetch(t *testing.T) {
	p := newFakeProvider()
	f := newScriptedFetcher()
	c := New(p, f)
	c.Start(context.Background())

	_, err := p.SignIn(context.Background(), "a@x.io", "pw")
	require.NoError(t, err)
	_ = f.next(t)

	done := make(chan struct{})
	go func() {
		c.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return")
	}
}
