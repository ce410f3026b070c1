// Package messagequeue publishes and consumes durable work queues.
package messagequeue

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Handler processes one message. A nil error acknowledges it. An error
// wrapped with Permanent rejects it; any other error redelivers it until
// MaxAttempts deliveries have failed, after which it moves to the queue's
// dead-letter queue.
type Handler func(ctx context.Context, body []byte) error

// MaxAttempts is how many times a message is delivered before it is
// dead-lettered.
const MaxAttempts = 5

// ErrPermanent marks handler errors that redelivery cannot fix.
var ErrPermanent = errors.New("messagequeue: permanent failure")

// Permanent wraps err so the message is rejected instead of redelivered.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// DeadLetterQueue names the queue that receives messages from queueName
// whose deliveries kept failing.
func DeadLetterQueue(queueName string) string {
	return queueName + ".dead"
}

// Disposition is what a consumer does with a message after handling it.
type Disposition int

const (
	Ack Disposition = iota
	Retry
	DeadLetter
	Reject
)

func (d Disposition) String() string {
	switch d {
	case Ack:
		return "ack"
	case Retry:
		return "retry"
	case DeadLetter:
		return "dead-letter"
	case Reject:
		return "reject"
	}
	return fmt.Sprintf("Disposition(%d)", int(d))
}

// Dispose decides the fate of a message whose attempt-th delivery (1-based)
// ended with err.
func Dispose(err error, attempt int) Disposition {
	switch {
	case err == nil:
		return Ack
	case errors.Is(err, ErrPermanent):
		return Reject
	case attempt >= MaxAttempts:
		return DeadLetter
	default:
		return Retry
	}
}

// MessageQueue defines the interface for message queue services.
type MessageQueue interface {
	Publish(ctx context.Context, queueName string, body []byte) error
	// Consume blocks, dispatching messages to handler until ctx is done.
	Consume(ctx context.Context, queueName string, handler Handler) error
	Close() error
}

// ErrClosed is returned by operations on a closed queue.
var ErrClosed = errors.New("messagequeue: closed")

// Memory is an in-process MessageQueue. Messages published before a
// consumer attaches are buffered.
type Memory struct {
	mu     sync.Mutex
	queues map[string]chan memoryMessage
	closed bool
	size   int
}

type memoryMessage struct {
	body     []byte
	attempts int
}

// NewMemory creates a Memory queue buffering up to size messages per queue.
func NewMemory(size int) *Memory {
	if size <= 0 {
		size = 64
	}
	return &Memory{queues: make(map[string]chan memoryMessage), size: size}
}

func (m *Memory) queue(name string) (chan memoryMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	q, ok := m.queues[name]
	if !ok {
		q = make(chan memoryMessage, m.size)
		m.queues[name] = q
	}
	return q, nil
}

func (m *Memory) Publish(ctx context.Context, queueName string, body []byte) error {
	q, err := m.queue(queueName)
	if err != nil {
		return err
	}
	msg := memoryMessage{body: append([]byte(nil), body...)}
	select {
	case q <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume dispatches to handler until ctx is done. Retried messages go to
// the back of the queue.
func (m *Memory) Consume(ctx context.Context, queueName string, handler Handler) error {
	q, err := m.queue(queueName)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-q:
			msg.attempts++
			switch Dispose(handler(ctx, msg.body), msg.attempts) {
			case Retry:
				m.requeue(ctx, q, msg)
			case DeadLetter:
				if dead, err := m.queue(DeadLetterQueue(queueName)); err == nil {
					m.requeue(ctx, dead, memoryMessage{body: msg.body})
				}
			}
		}
	}
}

// requeue must not block the consumer, which is the only reader of q.
func (m *Memory) requeue(ctx context.Context, q chan memoryMessage, msg memoryMessage) {
	select {
	case q <- msg:
	default:
		go func() {
			select {
			case q <- msg:
			case <-ctx.Done():
			}
		}()
	}
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
