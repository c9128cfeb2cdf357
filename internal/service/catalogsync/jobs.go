package catalogsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"socialsync/internal/apperr"
	"socialsync/internal/model"
	"socialsync/internal/monitor"
	"socialsync/pkg/log"
	"socialsync/pkg/queue"
)

// JobTopic queue topic carrying sync jobs
const JobTopic = "sync.jobs"

// ErrJobNotFound unknown or expired job ID
var ErrJobNotFound = errors.New("sync job not found")

// JobStatus last known state of a queued job
type JobStatus struct {
	ID        string         `json:"id"`
	State     model.JobState `json:"state"`
	Job       *model.SyncJob `json:"job"`
	Report    *SyncReport    `json:"report,omitempty"`
	Error     string         `json:"error,omitempty"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// JobStore keeps job statuses for a bounded time
type JobStore interface {
	Save(ctx context.Context, status *JobStatus) error
	Get(ctx context.Context, id string) (*JobStatus, error)
}

// RedisJobStore job statuses as JSON strings with a TTL
type RedisJobStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisJobStore creates a Redis job store
func NewRedisJobStore(client redis.UniversalClient, ttl time.Duration) *RedisJobStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisJobStore{client: client, prefix: "sync:job:", ttl: ttl}
}

// Save stores status, resetting its TTL
func (s *RedisJobStore) Save(ctx context.Context, status *JobStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("encode job status: %w", err)
	}
	return s.client.Set(ctx, s.prefix+status.ID, data, s.ttl).Err()
}

// Get loads a status
func (s *RedisJobStore) Get(ctx context.Context, id string) (*JobStatus, error) {
	data, err := s.client.Get(ctx, s.prefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	var status JobStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("decode job status: %w", err)
	}
	return &status, nil
}

// Syncer runs publishes and deletes; *Coordinator implements it
type Syncer interface {
	Publish(ctx context.Context, product *model.Product, platforms []model.Platform) (*SyncReport, error)
	Delete(ctx context.Context, sku string, platforms []model.Platform) (*SyncReport, error)
}

// JobQueue accepts sync jobs for asynchronous execution and reports their state
type JobQueue struct {
	queue   queue.Queue
	store   JobStore
	metrics *monitor.MetricsCollector
	now     func() time.Time
}

// NewJobQueue creates a job queue publishing to q
func NewJobQueue(q queue.Queue, store JobStore, metrics *monitor.MetricsCollector) *JobQueue {
	return &JobQueue{queue: q, store: store, metrics: metrics, now: time.Now}
}

// ValidateJob checks a job before it is accepted
func ValidateJob(job *model.SyncJob) error {
	switch job.Operation {
	case model.SyncOperationPublish:
		if job.Product == nil {
			return apperr.NewValidationError("product is required for publish")
		}
		if err := job.Product.Validate(); err != nil {
			return &apperr.ValidationError{Message: "invalid product", Cause: err}
		}
		job.SKU = job.Product.SKU
	case model.SyncOperationDelete:
		if job.SKU == "" {
			return apperr.NewValidationError("sku is required for delete")
		}
	default:
		return apperr.NewValidationError(fmt.Sprintf("unknown operation %q", job.Operation))
	}
	if len(dedupe(job.Platforms)) == 0 {
		return apperr.NewValidationError("at least one platform is required")
	}
	return nil
}

// Enqueue assigns an ID, stores the queued status and publishes the job
func (q *JobQueue) Enqueue(ctx context.Context, job *model.SyncJob) (*JobStatus, error) {
	if err := ValidateJob(job); err != nil {
		return nil, err
	}

	job.ID = uuid.NewString()
	job.EnqueuedAt = q.now()
	job.TraceID = monitor.TraceID(ctx)

	status := &JobStatus{ID: job.ID, State: model.JobStateQueued, Job: job, UpdatedAt: job.EnqueuedAt}
	if err := q.store.Save(ctx, status); err != nil {
		return nil, fmt.Errorf("store job: %w", err)
	}

	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("encode job: %w", err)
	}
	if err := q.queue.Publish(ctx, JobTopic, data); err != nil {
		status.State = model.JobStateFailed
		status.Error = err.Error()
		status.UpdatedAt = q.now()
		if saveErr := q.store.Save(context.WithoutCancel(ctx), status); saveErr != nil {
			log.WithContext(ctx).WithError(saveErr).Warn("Failed to store job status")
		}
		q.record("publish_failed")
		return nil, fmt.Errorf("publish job: %w", err)
	}
	q.record("published")

	log.WithContext(ctx).WithFields(log.Fields{
		"job_id":    job.ID,
		"operation": job.Operation,
		"sku":       job.SKU,
	}).Info("Sync job queued")
	return status, nil
}

// Status returns the stored status of id
func (q *JobQueue) Status(ctx context.Context, id string) (*JobStatus, error) {
	return q.store.Get(ctx, id)
}

const finalSaveTimeout = 5 * time.Second

// Run executes one job through syncer and stores each state transition
func Run(ctx context.Context, store JobStore, syncer Syncer, job *model.SyncJob) (*JobStatus, error) {
	status := &JobStatus{ID: job.ID, State: model.JobStateRunning, Job: job, UpdatedAt: time.Now()}
	if err := store.Save(ctx, status); err != nil {
		return nil, fmt.Errorf("store job: %w", err)
	}

	var (
		report *SyncReport
		err    error
	)
	switch job.Operation {
	case model.SyncOperationPublish:
		report, err = syncer.Publish(ctx, job.Product, job.Platforms)
	case model.SyncOperationDelete:
		report, err = syncer.Delete(ctx, job.SKU, job.Platforms)
	default:
		err = apperr.NewValidationError(fmt.Sprintf("unknown operation %q", job.Operation))
	}

	status.UpdatedAt = time.Now()
	if err != nil {
		status.State = model.JobStateFailed
		status.Error = err.Error()
	} else {
		status.State = model.JobStateDone
		status.Report = report
	}

	// the job deadline may have passed; the outcome is stored regardless
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalSaveTimeout)
	defer cancel()
	if saveErr := store.Save(saveCtx, status); saveErr != nil {
		return status, fmt.Errorf("store job: %w", saveErr)
	}
	return status, err
}

func (q *JobQueue) record(status string) {
	if q.metrics != nil {
		q.metrics.RecordQueueMessage(JobTopic, status)
	}
}
