// Package events connects the core services to the message queue. Billing
// events flow in; feedback events flow out and on to owner email.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/menuboard/internal/core"
	"github.com/example/menuboard/internal/db"
	"github.com/example/menuboard/internal/models"
	"github.com/example/menuboard/pkg/apitypes"
	"github.com/example/menuboard/pkg/mailer"
	"github.com/example/menuboard/pkg/messagequeue"
)

// FeedbackCreatedType is the type tag of FeedbackEvent messages.
const FeedbackCreatedType = "feedback.created"

// FeedbackEvent is published when a customer leaves feedback.
type FeedbackEvent struct {
	Type         string    `json:"type"`
	FeedbackID   string    `json:"feedbackId"`
	RestaurantID string    `json:"restaurantId"`
	Rating       int       `json:"rating"`
	Comment      string    `json:"comment,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// FeedbackPublisher implements core.FeedbackNotifier over a message queue.
type FeedbackPublisher struct {
	mq     messagequeue.MessageQueue
	queue  string
	logger *zap.Logger
}

var _ core.FeedbackNotifier = (*FeedbackPublisher)(nil)

func NewFeedbackPublisher(mq messagequeue.MessageQueue, queue string, logger *zap.Logger) *FeedbackPublisher {
	return &FeedbackPublisher{mq: mq, queue: queue, logger: logger}
}

func (p *FeedbackPublisher) FeedbackCreated(ctx context.Context, fb *models.Feedback) error {
	body, err := json.Marshal(FeedbackEvent{
		Type:         FeedbackCreatedType,
		FeedbackID:   fb.ID,
		RestaurantID: fb.RestaurantID,
		Rating:       fb.Rating,
		Comment:      fb.Comment,
		CreatedAt:    fb.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to encode feedback event: %w", err)
	}
	if err := p.mq.Publish(ctx, p.queue, body); err != nil {
		return fmt.Errorf("failed to publish feedback event to '%s': %w", p.queue, err)
	}
	p.logger.Debug("Published feedback event", zap.String("feedbackID", fb.ID), zap.String("queue", p.queue))
	return nil
}

// BillingConsumer applies billing events read from a queue.
type BillingConsumer struct {
	mq      messagequeue.MessageQueue
	queue   string
	billing core.BillingService
	logger  *zap.Logger
}

func NewBillingConsumer(mq messagequeue.MessageQueue, queue string, billing core.BillingService, logger *zap.Logger) *BillingConsumer {
	return &BillingConsumer{mq: mq, queue: queue, billing: billing, logger: logger}
}

// Run consumes until ctx is canceled.
func (c *BillingConsumer) Run(ctx context.Context) error {
	c.logger.Info("Consuming billing events", zap.String("queue", c.queue))
	return c.mq.Consume(ctx, c.queue, c.Handle)
}

// Handle decodes and applies one message. Undecodable and invalid events
// are rejected; duplicates are acknowledged; any other failure is
// redelivered by the queue.
func (c *BillingConsumer) Handle(ctx context.Context, body []byte) error {
	var event apitypes.BillingEvent
	if err := json.Unmarshal(body, &event); err != nil {
		c.logger.Error("Rejecting undecodable billing message", zap.Error(err))
		return messagequeue.Permanent(fmt.Errorf("decode billing event: %w", err))
	}

	_, applied, err := c.billing.ApplyEvent(ctx, event)
	if err != nil {
		if errors.Is(err, core.ErrInvalidBillingEvent) {
			c.logger.Warn("Rejecting invalid billing event",
				zap.String("eventID", event.ID),
				zap.Error(err))
			return messagequeue.Permanent(err)
		}
		level := c.logger.Error
		if errors.Is(err, core.ErrSubscriptionNotFound) {
			level = c.logger.Warn
		}
		level("Failed to apply billing event",
			zap.String("eventID", event.ID),
			zap.String("restaurantID", event.RestaurantID),
			zap.Error(err))
		return err
	}
	if !applied {
		c.logger.Debug("Billing event already applied", zap.String("eventID", event.ID))
	}
	return nil
}

// FeedbackMailer emails restaurant owners when feedback events arrive.
type FeedbackMailer struct {
	mq           messagequeue.MessageQueue
	queue        string
	restaurants  db.RestaurantRepository
	users        db.UserRepository
	sender       mailer.Sender
	dashboardURL string
	logger       *zap.Logger
}

// NewFeedbackMailer builds a consumer for queue. dashboardURL is the web
// client's base URL and is linked from the email.
func NewFeedbackMailer(mq messagequeue.MessageQueue, queue string, rr db.RestaurantRepository, ur db.UserRepository, sender mailer.Sender, dashboardURL string, logger *zap.Logger) *FeedbackMailer {
	return &FeedbackMailer{
		mq:           mq,
		queue:        queue,
		restaurants:  rr,
		users:        ur,
		sender:       sender,
		dashboardURL: strings.TrimRight(dashboardURL, "/"),
		logger:       logger,
	}
}

// Run consumes until ctx is canceled.
func (m *FeedbackMailer) Run(ctx context.Context) error {
	m.logger.Info("Consuming feedback events", zap.String("queue", m.queue))
	return m.mq.Consume(ctx, m.queue, m.Handle)
}

// Handle sends one owner notification. Events for restaurants or owners
// that no longer exist are acknowledged and dropped; delivery failures are
// redelivered.
func (m *FeedbackMailer) Handle(ctx context.Context, body []byte) error {
	var event FeedbackEvent
	if err := json.Unmarshal(body, &event); err != nil {
		m.logger.Error("Rejecting undecodable feedback message", zap.Error(err))
		return messagequeue.Permanent(fmt.Errorf("decode feedback event: %w", err))
	}
	if event.Type != FeedbackCreatedType {
		m.logger.Debug("Ignoring feedback message", zap.String("type", event.Type))
		return nil
	}

	restaurant, err := m.restaurants.GetByID(ctx, event.RestaurantID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			m.logger.Warn("Feedback for unknown restaurant", zap.String("restaurantID", event.RestaurantID))
			return nil
		}
		return fmt.Errorf("load restaurant %s: %w", event.RestaurantID, err)
	}
	owner, err := m.users.GetByID(ctx, restaurant.OwnerID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			m.logger.Warn("Restaurant owner not found", zap.String("ownerID", restaurant.OwnerID))
			return nil
		}
		return fmt.Errorf("load owner %s: %w", restaurant.OwnerID, err)
	}
	if owner.Email == "" || owner.Disabled {
		return nil
	}

	msg := mailer.Message{
		To:      owner.Email,
		Subject: fmt.Sprintf("New %d-star feedback for %s", event.Rating, restaurant.Name),
		Body:    m.feedbackBody(restaurant, event),
	}
	if err := m.sender.Send(ctx, msg); err != nil {
		m.logger.Error("Failed to email feedback notification",
			zap.String("feedbackID", event.FeedbackID),
			zap.String("ownerID", owner.ID),
			zap.Error(err))
		return err
	}
	m.logger.Info("Feedback notification sent", zap.String("feedbackID", event.FeedbackID), zap.String("ownerID", owner.ID))
	return nil
}

func (m *FeedbackMailer) feedbackBody(restaurant *models.Restaurant, event FeedbackEvent) string {
	stars := event.Rating
	if stars < 0 || stars > 5 {
		stars = 0
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s received a new rating: %s (%d/5).\n", restaurant.Name, strings.Repeat("*", stars), event.Rating)
	if event.Comment != "" {
		fmt.Fprintf(&b, "\n\"%s\"\n", event.Comment)
	}
	if m.dashboardURL != "" {
		fmt.Fprintf(&b, "\nSee all feedback: %s/dashboard?tab=feedback\n", m.dashboardURL)
	}
	return b.String()
}
