package queue

import (
	"context"
	"errors"
)

// Queue defines the interface for message queue operations
type Queue interface {
	// Publish publishes a message to the specified topic
	Publish(ctx context.Context, topic string, message []byte) error

	// Subscribe registers a handler for a topic. Handlers on the same topic compete for messages.
	Subscribe(topic string, handler MessageHandler) (Subscription, error)

	// Unsubscribe stops one subscription after its in-flight message finishes
	Unsubscribe(sub Subscription) error

	// Shutdown stops accepting messages and waits for running handlers, bounded by ctx
	Shutdown(ctx context.Context) error

	// Health checks the health of the queue
	Health() error
}

// MessageHandler handles incoming messages
type MessageHandler func(ctx context.Context, topic string, message []byte) error

// ErrorHandler receives handler failures
type ErrorHandler func(topic string, message []byte, err error)

// Subscription identifies one registered handler
type Subscription struct {
	ID    uint64 `json:"id"`
	Topic string `json:"topic"`
}

// Stats represents queue statistics
type Stats struct {
	Subscriptions int   `json:"subscriptions"`
	Published     int64 `json:"published"`
	Delivered     int64 `json:"delivered"`
	Failed        int64 `json:"failed"`
	Pending       int   `json:"pending"`
}

// Common errors
var (
	ErrQueueClosed          = errors.New("queue is closed")
	ErrPublishTimeout       = errors.New("publish timeout")
	ErrUnknownSubscription  = errors.New("unknown subscription")
	ErrInvalidConfiguration = errors.New("invalid configuration")
)
