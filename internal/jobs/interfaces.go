package jobs

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	// ErrJobNotFound is returned by JobStore lookups for unknown IDs.
	ErrJobNotFound = errors.New("job not found")
	// ErrQueueClosed is returned by Queue operations after shutdown.
	ErrQueueClosed = errors.New("queue closed")
	// ErrStatusConflict is returned by TransitionJobStatus when the job is not
	// in the expected state.
	ErrStatusConflict = errors.New("job status changed")
)

// JobStore persists job metadata and outputs.
type JobStore interface {
	CreateJob(ctx context.Context, job Job) error
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errText string, counters JobCounters) error
	// TransitionJobStatus moves a job from one status to another as a single
	// step and leaves its counters alone.
	TransitionJobStatus(ctx context.Context, jobID string, from, to JobStatus, errText string) error
	RecordOutput(ctx context.Context, output Output) error
	GetJob(ctx context.Context, jobID string) (Job, error)
	GetOutput(ctx context.Context, jobID string) (Output, error)
}

// BlobStore writes result artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// RunStore appends finished runs to a durable log.
type RunStore interface {
	RecordRun(ctx context.Context, record RunRecord) error
}

// Publisher pushes completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Queue provides enqueue/dequeue semantics for sort jobs.
type Queue interface {
	Enqueue(ctx context.Context, job QueueItem) error
	Dequeue(ctx context.Context) (QueueItem, error)
}

// Hasher computes digests for deduplication/integrity.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces job IDs.
type IDGenerator interface {
	NewID() (string, error)
}
