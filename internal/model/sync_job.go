package model

import "time"

// SyncOperation kind of queued sync
type SyncOperation string

const (
	SyncOperationPublish SyncOperation = "publish"
	SyncOperationDelete  SyncOperation = "delete"
)

// SyncJob queued sync request carried over the job queue
type SyncJob struct {
	ID          string        `json:"id"`
	Operation   SyncOperation `json:"operation"`
	Product     *Product      `json:"product,omitempty"` // publish only
	SKU         string        `json:"sku"`
	Platforms   []Platform    `json:"platforms"`
	RequestedBy string        `json:"requested_by,omitempty"`
	EnqueuedAt  time.Time     `json:"enqueued_at"`
	TraceID     string        `json:"trace_id,omitempty"`
}

// JobState lifecycle of a queued job
type JobState string

const (
	JobStateQueued  JobState = "queued"
	JobStateRunning JobState = "running"
	JobStateDone    JobState = "done"
	JobStateFailed  JobState = "failed"
)
