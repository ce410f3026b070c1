package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/menuboard/internal/core"
	"github.com/example/menuboard/internal/db"
	"github.com/example/menuboard/internal/models"
	"github.com/example/menuboard/pkg/apitypes"
	"github.com/example/menuboard/pkg/mailer"
	"github.com/example/menuboard/pkg/messagequeue"
)

type recordingBilling struct {
	core.BillingService

	mu     sync.Mutex
	events []apitypes.BillingEvent
	err    error
}

func (b *recordingBilling) ApplyEvent(_ context.Context, event apitypes.BillingEvent) (*models.Subscription, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return nil, false, b.err
	}
	b.events = append(b.events, event)
	return &models.Subscription{RestaurantID: event.RestaurantID, Plan: event.Plan, Active: true}, true, nil
}

func (b *recordingBilling) received() []apitypes.BillingEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]apitypes.BillingEvent(nil), b.events...)
}

func TestFeedbackPublisher(t *testing.T) {
	mq := messagequeue.NewMemory(4)
	pub := NewFeedbackPublisher(mq, "feedback.events", zap.NewNop())
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	err := pub.FeedbackCreated(context.Background(), &models.Feedback{
		ID: "fb-1", RestaurantID: "r-1", Rating: 4, Comment: "nice", CreatedAt: created,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got := make(chan FeedbackEvent, 1)
	go func() {
		_ = mq.Consume(ctx, "feedback.events", func(_ context.Context, body []byte) error {
			var ev FeedbackEvent
			if err := json.Unmarshal(body, &ev); err != nil {
				return err
			}
			got <- ev
			return nil
		})
	}()

	select {
	case ev := <-got:
		assert.Equal(t, FeedbackCreatedType, ev.Type)
		assert.Equal(t, "fb-1", ev.FeedbackID)
		assert.Equal(t, "r-1", ev.RestaurantID)
		assert.Equal(t, 4, ev.Rating)
		assert.True(t, created.Equal(ev.CreatedAt))
	case <-ctx.Done():
		t.Fatal("feedback event was not published")
	}
}

func TestFeedbackPublisher_ClosedQueue(t *testing.T) {
	mq := messagequeue.NewMemory(1)
	require.NoError(t, mq.Close())
	pub := NewFeedbackPublisher(mq, "feedback.events", zap.NewNop())

	err := pub.FeedbackCreated(context.Background(), &models.Feedback{ID: "fb-1"})
	assert.ErrorIs(t, err, messagequeue.ErrClosed)
}

func TestBillingConsumer_Run(t *testing.T) {
	mq := messagequeue.NewMemory(4)
	billing := &recordingBilling{}
	consumer := NewBillingConsumer(mq, "billing.events", billing, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- consumer.Run(ctx) }()

	body, err := json.Marshal(apitypes.BillingEvent{
		ID: "evt-1", Type: apitypes.BillingCheckoutCompleted, RestaurantID: "r-1", Plan: apitypes.PlanBasic,
	})
	require.NoError(t, err)
	require.NoError(t, mq.Publish(context.Background(), "billing.events", []byte("{not json")))
	require.NoError(t, mq.Publish(context.Background(), "billing.events", body))

	require.Eventually(t, func() bool { return len(billing.received()) == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, "evt-1", billing.received()[0].ID)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestBillingConsumer_HandleErrors(t *testing.T) {
	billing := &recordingBilling{err: core.ErrInvalidBillingEvent}
	consumer := NewBillingConsumer(messagequeue.NewMemory(1), "billing.events", billing, zap.NewNop())

	err := consumer.Handle(context.Background(), []byte("[]"))
	assert.ErrorIs(t, err, messagequeue.ErrPermanent)
	err = consumer.Handle(context.Background(), []byte(`{"id":"evt","type":"bogus","restaurantId":"r"}`))
	assert.ErrorIs(t, err, core.ErrInvalidBillingEvent)
	assert.ErrorIs(t, err, messagequeue.ErrPermanent)

	billing.err = fmt.Errorf("failed to update subscription: %w", errors.New("deadline exceeded"))
	err = consumer.Handle(context.Background(), []byte(`{"id":"evt","type":"checkout.completed","restaurantId":"r","plan":"basic"}`))
	require.Error(t, err)
	assert.NotErrorIs(t, err, messagequeue.ErrPermanent)
}

func TestBillingConsumer_RetriesTransientFailure(t *testing.T) {
	mq := messagequeue.NewMemory(4)
	billing := &flakyBilling{failures: 1}
	consumer := NewBillingConsumer(mq, "billing.events", billing, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = consumer.Run(ctx) }()

	body, err := json.Marshal(apitypes.BillingEvent{
		ID: "evt-1", Type: apitypes.BillingCheckoutCompleted, RestaurantID: "r-1", Plan: apitypes.PlanBasic,
	})
	require.NoError(t, err)
	require.NoError(t, mq.Publish(context.Background(), "billing.events", body))

	require.Eventually(t, func() bool { return len(billing.received()) == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, "evt-1", billing.received()[0].ID)
	assert.Equal(t, 2, billing.attempts())
}

// flakyBilling fails the first failures calls to ApplyEvent.
type flakyBilling struct {
	recordingBilling
	failures int
	calls    int
}

func (b *flakyBilling) ApplyEvent(ctx context.Context, event apitypes.BillingEvent) (*models.Subscription, bool, error) {
	b.mu.Lock()
	b.calls++
	fail := b.calls <= b.failures
	b.mu.Unlock()
	if fail {
		return nil, false, errors.New("firestore: unavailable")
	}
	return b.recordingBilling.ApplyEvent(ctx, event)
}

func (b *flakyBilling) attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

type recordingSender struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (s *recordingSender) Send(_ context.Context, msg mailer.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *recordingSender) messages() []mailer.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]mailer.Message(nil), s.sent...)
}

func seedOwner(t *testing.T, store *db.Store, uid, email string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.Users.Create(ctx, &models.User{ID: uid, Email: email, Role: apitypes.RoleUser}))
	require.NoError(t, store.Restaurants.Create(ctx,
		&models.Restaurant{ID: uid, OwnerID: uid, Name: "Cafe Luna", Slug: "cafe-luna"},
		&models.Subscription{RestaurantID: uid, Plan: apitypes.PlanTrial, Active: true}))
}

func feedbackBody(t *testing.T, ev FeedbackEvent) []byte {
	t.Helper()
	body, err := json.Marshal(ev)
	require.NoError(t, err)
	return body
}

func TestFeedbackMailer_Handle(t *testing.T) {
	store := db.NewMemoryStore()
	seedOwner(t, store, "owner-1", "owner@example.com")
	sender := &recordingSender{}
	m := NewFeedbackMailer(messagequeue.NewMemory(1), "feedback.events", store.Restaurants, store.Users, sender, "https://app.example.com/", zap.NewNop())

	err := m.Handle(context.Background(), feedbackBody(t, FeedbackEvent{
		Type: FeedbackCreatedType, FeedbackID: "fb-1", RestaurantID: "owner-1", Rating: 5, Comment: "Great soup",
	}))
	require.NoError(t, err)

	sent := sender.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, "owner@example.com", sent[0].To)
	assert.Equal(t, "New 5-star feedback for Cafe Luna", sent[0].Subject)
	assert.Contains(t, sent[0].Body, "Great soup")
	assert.Contains(t, sent[0].Body, "https://app.example.com/dashboard?tab=feedback")
}

func TestFeedbackMailer_DropsAndRejects(t *testing.T) {
	store := db.NewMemoryStore()
	seedOwner(t, store, "owner-1", "owner@example.com")
	sender := &recordingSender{}
	m := NewFeedbackMailer(messagequeue.NewMemory(1), "feedback.events", store.Restaurants, store.Users, sender, "", zap.NewNop())
	ctx := context.Background()

	assert.ErrorIs(t, m.Handle(ctx, []byte("{")), messagequeue.ErrPermanent)
	assert.NoError(t, m.Handle(ctx, feedbackBody(t, FeedbackEvent{Type: "feedback.deleted", RestaurantID: "owner-1"})))
	assert.NoError(t, m.Handle(ctx, feedbackBody(t, FeedbackEvent{Type: FeedbackCreatedType, RestaurantID: "missing", Rating: 3})))
	assert.Empty(t, sender.messages())

	sender.err = errors.New("smtp down")
	err := m.Handle(ctx, feedbackBody(t, FeedbackEvent{Type: FeedbackCreatedType, RestaurantID: "owner-1", Rating: 2}))
	assert.EqualError(t, err, "smtp down")
	assert.NotErrorIs(t, err, messagequeue.ErrPermanent)
}

func TestFeedbackMailer_RunConsumesPublishedEvents(t *testing.T) {
	store := db.NewMemoryStore()
	seedOwner(t, store, "owner-1", "owner@example.com")
	mq := messagequeue.NewMemory(4)
	sender := &recordingSender{}
	m := NewFeedbackMailer(mq, "feedback.events", store.Restaurants, store.Users, sender, "", zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = m.Run(ctx) }()

	pub := NewFeedbackPublisher(mq, "feedback.events", zap.NewNop())
	require.NoError(t, pub.FeedbackCreated(context.Background(), &models.Feedback{ID: "fb-9", RestaurantID: "owner-1", Rating: 4}))

	require.Eventually(t, func() bool { return len(sender.messages()) == 1 }, time.Second, 10*time.Millisecond)
}
