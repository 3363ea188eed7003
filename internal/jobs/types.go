// Package jobs defines the sort job model shared across the service subsystems.
package jobs

import "time"

// JobStatus represents the lifecycle state of a sort job.
type JobStatus string

// Job status values persisted in the job store.
const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCanceled  JobStatus = "canceled"
)

// Terminal reports whether no further transitions are expected.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusSucceeded, JobStatusFailed, JobStatusCanceled:
		return true
	default:
		return false
	}
}

// JobParameters is the sequence a client asked to sort plus free-form tags.
type JobParameters struct {
	Values []int64           `json:"values"`
	Tags   map[string]string `json:"tags,omitempty"`
}

// JobCounters summarizes one sort run.
type JobCounters struct {
	Elements       int   `json:"elements"`
	MaxValue       int64 `json:"max_value"`
	DurationMicros int64 `json:"duration_micros"`
}

// Job is the metadata persisted for each submitted sort request.
type Job struct {
	ID         string        `json:"id"`
	Status     JobStatus     `json:"status"`
	Submitted  time.Time     `json:"submitted_at"`
	Started    *time.Time    `json:"started_at,omitempty"`
	Finished   *time.Time    `json:"finished_at,omitempty"`
	ErrorText  string        `json:"error_text,omitempty"`
	Parameters JobParameters `json:"parameters"`
	Counters   JobCounters   `json:"counters"`
}

// Output is what a successful run produced.
type Output struct {
	JobID       string  `json:"job_id"`
	Sorted      []int64 `json:"sorted"`
	ContentHash string  `json:"content_hash"`
	BlobURI     string  `json:"blob_uri"`
}

// Result is returned by the API result endpoint.
type Result struct {
	Job    Job     `json:"job"`
	Output *Output `json:"output,omitempty"`
}

// RunRecord is the row appended to the run log for every finished job.
type RunRecord struct {
	JobID       string
	Status      JobStatus
	Elements    int
	MaxValue    int64
	Duration    time.Duration
	ContentHash string
	BlobURI     string
	FinishedAt  time.Time
}

// QueueItem wraps a job ready to run.
type QueueItem struct {
	JobID     string
	Params    JobParameters
	Attempt   int
	Submitted int64
}
