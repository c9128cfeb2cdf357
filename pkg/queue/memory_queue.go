package queue

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// MemoryQueueConfig memory queue configuration
type MemoryQueueConfig struct {
	BufferSize int           `json:"buffer_size"`
	Timeout    time.Duration `json:"timeout"`
	OnError    ErrorHandler  `json:"-"`
}

// MemoryQueue in-process queue with an explicit subscription registry
type MemoryQueue struct {
	config *MemoryQueueConfig

	mu     sync.RWMutex
	topics map[string]chan []byte
	subs   map[uint64]*subscriber
	nextID uint64
	closed bool
	done   chan struct{}
	wg     sync.WaitGroup

	published int64
	delivered int64
	failed    int64
}

type subscriber struct {
	sub     Subscription
	handler MessageHandler
	stop    chan struct{}
	exited  chan struct{}
}

// NewMemoryQueue creates a new memory queue instance
func NewMemoryQueue(config *MemoryQueueConfig) (*MemoryQueue, error) {
	if config == nil {
		config = &MemoryQueueConfig{}
	}
	if config.BufferSize < 0 || config.Timeout < 0 {
		return nil, ErrInvalidConfiguration
	}
	if config.BufferSize == 0 {
		config.BufferSize = 1000
	}
	if config.Timeout == 0 {
		config.Timeout = 5 * time.Second
	}

	return &MemoryQueue{
		config: config,
		topics: make(map[string]chan []byte),
		subs:   make(map[uint64]*subscriber),
		done:   make(chan struct{}),
	}, nil
}

// topicLocked must be called with mu held for writing
func (mq *MemoryQueue) topicLocked(name string) chan []byte {
	ch, ok := mq.topics[name]
	if !ok {
		ch = make(chan []byte, mq.config.BufferSize)
		mq.topics[name] = ch
	}
	return ch
}

// Publish publishes a message to the queue
func (mq *MemoryQueue) Publish(ctx context.Context, topic string, message []byte) error {
	mq.mu.Lock()
	if mq.closed {
		mq.mu.Unlock()
		return ErrQueueClosed
	}
	ch := mq.topicLocked(topic)
	mq.mu.Unlock()

	timer := time.NewTimer(mq.config.Timeout)
	defer timer.Stop()

	select {
	case ch <- message:
		atomic.AddInt64(&mq.published, 1)
		return nil
	case <-mq.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrPublishTimeout
	}
}

// Subscribe starts a consumer goroutine for topic
func (mq *MemoryQueue) Subscribe(topic string, handler MessageHandler) (Subscription, error) {
	mq.mu.Lock()
	defer mq.mu.Unlock()

	if mq.closed {
		return Subscription{}, ErrQueueClosed
	}

	mq.nextID++
	s := &subscriber{
		sub:     Subscription{ID: mq.nextID, Topic: topic},
		handler: handler,
		stop:    make(chan struct{}),
		exited:  make(chan struct{}),
	}
	mq.subs[s.sub.ID] = s

	ch := mq.topicLocked(topic)
	mq.wg.Add(1)
	go mq.consume(s, ch)

	return s.sub, nil
}

func (mq *MemoryQueue) consume(s *subscriber, ch chan []byte) {
	defer mq.wg.Done()
	defer close(s.exited)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for {
		// stop wins over pending messages
		select {
		case <-s.stop:
			return
		default:
		}

		select {
		case <-s.stop:
			return
		case message := <-ch:
			mq.handle(ctx, s, message)
		}
	}
}

func (mq *MemoryQueue) handle(ctx context.Context, s *subscriber, message []byte) {
	defer func() {
		if r := recover(); r != nil {
			atomic.AddInt64(&mq.failed, 1)
			if mq.config.OnError != nil {
				mq.config.OnError(s.sub.Topic, message, fmt.Errorf("handler panic: %v", r))
			}
		}
	}()

	if err := s.handler(ctx, s.sub.Topic, message); err != nil {
		atomic.AddInt64(&mq.failed, 1)
		if mq.config.OnError != nil {
			mq.config.OnError(s.sub.Topic, message, err)
		}
		return
	}
	atomic.AddInt64(&mq.delivered, 1)
}

// Unsubscribe stops one subscription and waits for its goroutine to exit
func (mq *MemoryQueue) Unsubscribe(sub Subscription) error {
	mq.mu.Lock()
	s, ok := mq.subs[sub.ID]
	if !ok {
		mq.mu.Unlock()
		return ErrUnknownSubscription
	}
	delete(mq.subs, sub.ID)
	mq.mu.Unlock()

	close(s.stop)
	<-s.exited
	return nil
}

// Shutdown stops every subscription. Messages still buffered are dropped.
func (mq *MemoryQueue) Shutdown(ctx context.Context) error {
	mq.mu.Lock()
	if mq.closed {
		mq.mu.Unlock()
		return nil
	}
	mq.closed = true
	close(mq.done)
	for id, s := range mq.subs {
		close(s.stop)
		delete(mq.subs, id)
	}
	mq.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		mq.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Health checks the health of the queue
func (mq *MemoryQueue) Health() error {
	mq.mu.RLock()
	defer mq.mu.RUnlock()

	if mq.closed {
		return ErrQueueClosed
	}
	return nil
}

// Stats returns queue statistics
func (mq *MemoryQueue) Stats() Stats {
	mq.mu.RLock()
	defer mq.mu.RUnlock()

	pending := 0
	for _, ch := range mq.topics {
		pending += len(ch)
	}

	return Stats{
		Subscriptions: len(mq.subs),
		Published:     atomic.LoadInt64(&mq.published),
		Delivered:     atomic.LoadInt64(&mq.delivered),
		Failed:        atomic.LoadInt64(&mq.failed),
		Pending:       pending,
	}
}
