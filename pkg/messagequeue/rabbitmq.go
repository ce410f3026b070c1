package messagequeue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

// attemptsHeader counts failed deliveries of a republished message.
const attemptsHeader = "x-attempts"

// RabbitMQService implements the MessageQueue interface using RabbitMQ.
type RabbitMQService struct {
	conn   *amqp.Connection
	logger *zap.Logger

	mu       sync.Mutex // guards channel and declared
	channel  *amqp.Channel
	declared map[string]bool

	retryDelay time.Duration
}

// NewRabbitMQServiceConfig contains options for creating a new RabbitMQService.
type NewRabbitMQServiceConfig struct {
	URL string
	// RetryDelay is the base pause before a failed message is redelivered;
	// it grows linearly with the attempt count. Defaults to one second.
	RetryDelay time.Duration
}

// NewRabbitMQService connects to RabbitMQ and opens the publishing channel.
func NewRabbitMQService(cfg NewRabbitMQServiceConfig, logger *zap.Logger) (*RabbitMQService, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}

	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = time.Second
	}

	logger.Info("Connected to RabbitMQ")
	return &RabbitMQService{
		conn:       conn,
		channel:    ch,
		logger:     logger,
		declared:   make(map[string]bool),
		retryDelay: retryDelay,
	}, nil
}

func declare(ch *amqp.Channel, queueName string) (amqp.Queue, error) {
	return ch.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
}

// Publish sends a persistent JSON message to a queue.
func (s *RabbitMQService) Publish(ctx context.Context, queueName string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.publish(queueName, body, nil); err != nil {
		return err
	}
	s.logger.Debug("Published message", zap.String("queue", queueName), zap.Int("bytes", len(body)))
	return nil
}

func (s *RabbitMQService) publish(queueName string, body []byte, headers amqp.Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.declared[queueName] {
		if _, err := declare(s.channel, queueName); err != nil {
			return fmt.Errorf("declare queue %s: %w", queueName, err)
		}
		s.declared[queueName] = true
	}

	err := s.channel.Publish(
		"",        // exchange
		queueName, // routing key (queue name)
		false,     // mandatory
		false,     // immediate
		amqp.Publishing{
			Headers:      headers,
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		})
	if err != nil {
		return fmt.Errorf("publish to queue %s: %w", queueName, err)
	}
	return nil
}

// Consume reads from queueName on a dedicated channel with manual acks until
// ctx is done or the delivery channel closes.
func (s *RabbitMQService) Consume(ctx context.Context, queueName string, handler Handler) error {
	ch, err := s.conn.Channel()
	if err != nil {
		return fmt.Errorf("open consumer channel: %w", err)
	}
	defer ch.Close()

	q, err := declare(ch, queueName)
	if err != nil {
		return fmt.Errorf("declare queue %s for consuming: %w", queueName, err)
	}
	if err := ch.Qos(10, 0, false); err != nil {
		return fmt.Errorf("set qos on %s: %w", queueName, err)
	}

	msgs, err := ch.Consume(
		q.Name, // queue
		"",     // consumer
		false,  // auto-ack
		false,  // exclusive
		false,  // no-local
		false,  // no-wait
		nil,    // args
	)
	if err != nil {
		return fmt.Errorf("register consumer for queue %s: %w", queueName, err)
	}

	s.logger.Info("Consuming queue", zap.String("queue", q.Name))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Stopped consuming queue", zap.String("queue", q.Name))
			return nil
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("delivery channel for %s closed", queueName)
			}
			s.settle(ctx, q.Name, d, handler(ctx, d.Body))
		}
	}
}

// settle acks, retries, dead-letters or rejects d. Retries and dead letters
// are republished before the original is acked, so a failed republish
// leaves the message on the broker.
func (s *RabbitMQService) settle(ctx context.Context, queueName string, d amqp.Delivery, err error) {
	attempt := attemptsOf(d.Headers) + 1
	disposition := Dispose(err, attempt)
	if disposition != Ack {
		s.logger.Warn("Message handler failed",
			zap.String("queue", queueName),
			zap.Int("attempt", attempt),
			zap.Stringer("disposition", disposition),
			zap.Error(err))
	}

	switch disposition {
	case Ack:
		_ = d.Ack(false)
	case Reject:
		_ = d.Nack(false, false)
	case Retry:
		select {
		case <-time.After(time.Duration(attempt) * s.retryDelay):
		case <-ctx.Done():
			_ = d.Nack(false, true)
			return
		}
		s.republish(queueName, d, amqp.Table{attemptsHeader: int32(attempt)})
	case DeadLetter:
		s.republish(DeadLetterQueue(queueName), d, amqp.Table{attemptsHeader: int32(attempt)})
	}
}

func (s *RabbitMQService) republish(queueName string, d amqp.Delivery, headers amqp.Table) {
	if err := s.publish(queueName, d.Body, headers); err != nil {
		s.logger.Error("Republish failed, requeueing original", zap.String("queue", queueName), zap.Error(err))
		_ = d.Nack(false, true)
		return
	}
	_ = d.Ack(false)
}

// attemptsOf reads the failed-delivery count stamped by republish.
func attemptsOf(headers amqp.Table) int {
	switch v := headers[attemptsHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	case int16:
		return int(v)
	case int8:
		return int(v)
	}
	return 0
}

// Close closes the RabbitMQ channel and connection.
func (s *RabbitMQService) Close() error {
	var lastErr error
	s.mu.Lock()
	if s.channel != nil {
		if err := s.channel.Close(); err != nil {
			s.logger.Warn("Error closing RabbitMQ channel", zap.Error(err))
			lastErr = err
		}
	}
	s.mu.Unlock()
	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			s.logger.Warn("Error closing RabbitMQ connection", zap.Error(err))
			lastErr = err
		}
	}
	return lastErr
}
