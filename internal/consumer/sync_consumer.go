package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"socialsync/internal/model"
	"socialsync/internal/monitor"
	"socialsync/internal/service/catalogsync"
	"socialsync/pkg/log"
	"socialsync/pkg/queue"
)

// SyncConsumer runs queued catalog sync jobs. Workers compete for messages on one topic.
type SyncConsumer struct {
	queue      queue.Queue
	store      catalogsync.JobStore
	syncer     catalogsync.Syncer
	metrics    *monitor.MetricsCollector
	jobTimeout time.Duration

	mu   sync.Mutex
	subs []queue.Subscription
}

// NewSyncConsumer creates a sync job consumer
func NewSyncConsumer(q queue.Queue, store catalogsync.JobStore, syncer catalogsync.Syncer, metrics *monitor.MetricsCollector, jobTimeout time.Duration) *SyncConsumer {
	if jobTimeout <= 0 {
		jobTimeout = time.Minute
	}
	return &SyncConsumer{
		queue:      q,
		store:      store,
		syncer:     syncer,
		metrics:    metrics,
		jobTimeout: jobTimeout,
	}
}

// Start subscribes workers handlers to the job topic
func (c *SyncConsumer) Start(workers int) error {
	if workers <= 0 {
		workers = 1
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i := 0; i < workers; i++ {
		sub, err := c.queue.Subscribe(catalogsync.JobTopic, c.handle)
		if err != nil {
			return fmt.Errorf("subscribe worker %d: %w", i, err)
		}
		c.subs = append(c.subs, sub)
	}

	log.WithFields(log.Fields{
		"topic":   catalogsync.JobTopic,
		"workers": workers,
	}).Info("Starting sync consumer")
	return nil
}

// Stop unsubscribes every worker. In-flight jobs finish first.
func (c *SyncConsumer) Stop() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	for _, sub := range subs {
		if err := c.queue.Unsubscribe(sub); err != nil {
			log.WithFields(log.Fields{
				"subscription": sub.ID,
				"error":        err.Error(),
			}).Warn("Failed to unsubscribe sync worker")
		}
	}
	log.Info("Sync consumer stopped")
}

// Workers number of subscribed workers
func (c *SyncConsumer) Workers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

func (c *SyncConsumer) handle(ctx context.Context, topic string, message []byte) error {
	var job model.SyncJob
	if err := json.Unmarshal(message, &job); err != nil {
		c.record("malformed")
		log.WithFields(log.Fields{
			"topic": topic,
			"error": err.Error(),
		}).Error("Failed to decode sync job")
		return fmt.Errorf("decode sync job: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.jobTimeout)
	defer cancel()

	logger := log.WithFields(log.Fields{
		"job_id":    job.ID,
		"operation": job.Operation,
		"sku":       job.SKU,
		"trace_id":  job.TraceID,
	})
	logger.Info("Processing sync job")

	status, err := catalogsync.Run(ctx, c.store, c.syncer, &job)
	if err != nil {
		c.record("failed")
		logger.WithError(err).Error("Sync job failed")
		return err
	}

	c.record("processed")
	fields := log.Fields{"state": status.State}
	if status.Report != nil {
		fields["status"] = status.Report.Status
	}
	logger.WithFields(fields).Info("Sync job finished")
	return nil
}

func (c *SyncConsumer) record(status string) {
	if c.metrics != nil {
		c.metrics.RecordQueueMessage(catalogsync.JobTopic, status)
	}
}
