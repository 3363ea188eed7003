// Package memory provides in-memory stores for development and tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/JakeFAU/countsort/internal/jobs"
)

// JobStore keeps jobs and their outputs in process memory.
type JobStore struct {
	mu      sync.RWMutex
	jobs    map[string]jobs.Job
	outputs map[string]jobs.Output
	now     func() time.Time
}

// NewJobStore constructs a JobStore.
func NewJobStore() *JobStore {
	return &JobStore{
		jobs:    make(map[string]jobs.Job),
		outputs: make(map[string]jobs.Output),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// CreateJob stores a new job.
func (s *JobStore) CreateJob(_ context.Context, job jobs.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return errors.New("job already exists")
	}
	job.Parameters.Values = slices.Clone(job.Parameters.Values)
	s.jobs[job.ID] = job
	return nil
}

// UpdateJobStatus updates the status and counters for a job.
func (s *JobStore) UpdateJobStatus(
	_ context.Context,
	jobID string,
	status jobs.JobStatus,
	errText string,
	counters jobs.JobCounters,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return fmt.Errorf("update %s: %w", jobID, jobs.ErrJobNotFound)
	}
	job.Counters = counters
	s.setStatus(job, status, errText)
	return nil
}

// TransitionJobStatus sets status to `to` only while the job is in `from`.
func (s *JobStore) TransitionJobStatus(
	_ context.Context,
	jobID string,
	from, to jobs.JobStatus,
	errText string,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return fmt.Errorf("transition %s: %w", jobID, jobs.ErrJobNotFound)
	}
	if job.Status != from {
		return fmt.Errorf("transition %s to %s: %w (status %s)", jobID, to, jobs.ErrStatusConflict, job.Status)
	}
	s.setStatus(job, to, errText)
	return nil
}

// setStatus stamps timestamps and stores job. Callers hold s.mu.
func (s *JobStore) setStatus(job jobs.Job, status jobs.JobStatus, errText string) {
	job.Status = status
	job.ErrorText = errText
	now := s.now()
	if status == jobs.JobStatusRunning && job.Started == nil {
		job.Started = &now
	}
	if status.Terminal() {
		job.Finished = &now
	}
	s.jobs[job.ID] = job
}

// RecordOutput stores the sorted sequence for a job.
func (s *JobStore) RecordOutput(_ context.Context, output jobs.Output) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[output.JobID]; !ok {
		return fmt.Errorf("record output %s: %w", output.JobID, jobs.ErrJobNotFound)
	}
	output.Sorted = slices.Clone(output.Sorted)
	s.outputs[output.JobID] = output
	return nil
}

// GetJob fetches a job by ID.
func (s *JobStore) GetJob(_ context.Context, jobID string) (jobs.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return jobs.Job{}, fmt.Errorf("get %s: %w", jobID, jobs.ErrJobNotFound)
	}
	job.Parameters.Values = slices.Clone(job.Parameters.Values)
	return job, nil
}

// GetOutput returns the recorded output for a job.
func (s *JobStore) GetOutput(_ context.Context, jobID string) (jobs.Output, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	output, ok := s.outputs[jobID]
	if !ok {
		return jobs.Output{}, fmt.Errorf("output %s: %w", jobID, jobs.ErrJobNotFound)
	}
	output.Sorted = slices.Clone(output.Sorted)
	return output, nil
}
