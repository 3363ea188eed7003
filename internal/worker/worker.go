// Package worker implements the sort job execution loop.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/countsort/internal/countsort"
	"github.com/JakeFAU/countsort/internal/hash/sha256"
	"github.com/JakeFAU/countsort/internal/jobs"
	"github.com/JakeFAU/countsort/internal/metrics"
)

const tracerName = "github.com/JakeFAU/countsort/internal/worker"

// Config controls Worker behavior.
type Config struct {
	ContentType string
	BlobPrefix  string
	Topic       string
	// MaxValue rejects jobs holding a larger element. Zero disables the check.
	MaxValue int64
}

// Worker consumes queue items and executes the sort pipeline.
type Worker struct {
	queue     jobs.Queue
	jobStore  jobs.JobStore
	blobStore jobs.BlobStore
	runStore  jobs.RunStore
	publisher jobs.Publisher
	hasher    jobs.Hasher
	clock     jobs.Clock
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Worker. runStore and publisher may be nil.
func New(
	queue jobs.Queue,
	jobStore jobs.JobStore,
	blobStore jobs.BlobStore,
	runStore jobs.RunStore,
	publisher jobs.Publisher,
	hasher jobs.Hasher,
	clock jobs.Clock,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ContentType == "" {
		cfg.ContentType = "application/json"
	}
	return &Worker{
		queue:     queue,
		jobStore:  jobStore,
		blobStore: blobStore,
		runStore:  runStore,
		publisher: publisher,
		hasher:    hasher,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run blocks, consuming queue items until the context finishes.
func (w *Worker) Run(ctx context.Context) {
	for {
		item, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, jobs.ErrQueueClosed) {
				w.logger.Debug("queue closed and drained")
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		if q, ok := w.queue.(interface{ Len() int }); ok {
			metrics.SetQueueDepth(q.Len())
		}
		w.logger.Debug("dequeued job", zap.String("job_id", item.JobID))
		w.processJob(ctx, item)
	}
}

func (w *Worker) processJob(ctx context.Context, item jobs.QueueItem) {
	if !w.claim(ctx, item.JobID) {
		return
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "sort.job",
		trace.WithAttributes(
			attribute.String("job.id", item.JobID),
			attribute.Int("job.elements", len(item.Params.Values)),
		),
	)
	defer span.End()

	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	counters := jobs.JobCounters{Elements: len(item.Params.Values)}
	output, err := w.sortAndPersist(ctx, item, &counters)
	status, errText := deriveFinalStatus(ctx, err)
	span.SetAttributes(attribute.String("job.status", string(status)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, errText)
		w.logger.Warn("sort job failed", zap.String("job_id", item.JobID), zap.Error(err))
	}

	w.recordRun(ctx, item.JobID, status, counters, output)

	if err := w.jobStore.UpdateJobStatus(ctx, item.JobID, status, errText, counters); err != nil {
		w.logger.Error("final job status update failed", zap.String("job_id", item.JobID), zap.Error(err))
	}
	metrics.ObserveJob(string(status))
	w.logger.Info("job finished",
		zap.String("job_id", item.JobID),
		zap.String("status", string(status)),
		zap.Int("elements", counters.Elements),
	)
}

// claim moves the job from queued to running. It fails when the job left
// the queued state first, for example through a cancel.
func (w *Worker) claim(ctx context.Context, jobID string) bool {
	err := w.jobStore.TransitionJobStatus(ctx, jobID, jobs.JobStatusQueued, jobs.JobStatusRunning, "")
	switch {
	case err == nil:
		return true
	case errors.Is(err, jobs.ErrStatusConflict):
		w.logger.Info("skipping job that is no longer queued", zap.String("job_id", jobID), zap.Error(err))
	default:
		w.logger.Error("claim job failed", zap.String("job_id", jobID), zap.Error(err))
	}
	return false
}

func (w *Worker) sortAndPersist(
	ctx context.Context,
	item jobs.QueueItem,
	counters *jobs.JobCounters,
) (jobs.Output, error) {
	values := item.Params.Values
	if err := countsort.Validate(values, w.cfg.MaxValue); err != nil {
		return jobs.Output{}, fmt.Errorf("validate input: %w", err)
	}

	start := w.clock.Now()
	sorted, err := countsort.Sorted(values)
	elapsed := w.clock.Now().Sub(start)
	metrics.ObserveSort(metrics.SourceJob, len(values), elapsed, err)
	if err != nil {
		return jobs.Output{}, fmt.Errorf("sort: %w", err)
	}
	counters.DurationMicros = elapsed.Microseconds()
	if len(sorted) > 0 {
		counters.MaxValue = sorted[len(sorted)-1]
	}

	hash, err := w.hasher.Hash(sha256.EncodeValues(values))
	if err != nil {
		return jobs.Output{}, fmt.Errorf("hash input: %w", err)
	}

	output := jobs.Output{JobID: item.JobID, Sorted: sorted, ContentHash: hash}
	body, err := json.Marshal(output)
	if err != nil {
		return jobs.Output{}, fmt.Errorf("encode output: %w", err)
	}

	uri, err := w.blobStore.PutObject(ctx, w.buildBlobPath(item.JobID, hash), w.cfg.ContentType, bytes.NewReader(body))
	if err != nil {
		return jobs.Output{}, fmt.Errorf("put object: %w", err)
	}
	output.BlobURI = uri

	if err := w.jobStore.RecordOutput(ctx, output); err != nil {
		return output, fmt.Errorf("record output: %w", err)
	}

	if err := w.publishResult(ctx, output, *counters); err != nil {
		return output, err
	}
	return output, nil
}

func (w *Worker) buildBlobPath(jobID, hash string) string {
	prefix := strings.Trim(w.cfg.BlobPrefix, "/")
	if prefix == "" {
		return fmt.Sprintf("%s/%s.json", jobID, hash)
	}
	return fmt.Sprintf("%s/%s/%s.json", prefix, jobID, hash)
}

func (w *Worker) publishResult(ctx context.Context, output jobs.Output, counters jobs.JobCounters) error {
	if w.cfg.Topic == "" || w.publisher == nil {
		return nil
	}
	payload := map[string]any{
		"job_id":    output.JobID,
		"blob_uri":  output.BlobURI,
		"hash":      output.ContentHash,
		"elements":  counters.Elements,
		"max_value": counters.MaxValue,
		"timestamp": w.clock.Now().Format(time.RFC3339),
	}
	if _, err := w.publisher.Publish(ctx, w.cfg.Topic, payload); err != nil {
		return fmt.Errorf("publish payload: %w", err)
	}
	w.logger.Info("result published",
		zap.String("job_id", output.JobID),
		zap.String("blob_uri", output.BlobURI),
		zap.String("hash", output.ContentHash),
	)
	return nil
}

func (w *Worker) recordRun(
	ctx context.Context,
	jobID string,
	status jobs.JobStatus,
	counters jobs.JobCounters,
	output jobs.Output,
) {
	if w.runStore == nil {
		return
	}
	record := jobs.RunRecord{
		JobID:       jobID,
		Status:      status,
		Elements:    counters.Elements,
		MaxValue:    counters.MaxValue,
		Duration:    time.Duration(counters.DurationMicros) * time.Microsecond,
		ContentHash: output.ContentHash,
		BlobURI:     output.BlobURI,
		FinishedAt:  w.clock.Now(),
	}
	if err := w.runStore.RecordRun(ctx, record); err != nil {
		w.logger.Error("record run failed", zap.String("job_id", jobID), zap.Error(err))
	}
}

func deriveFinalStatus(ctx context.Context, err error) (jobs.JobStatus, string) {
	switch {
	case ctx.Err() != nil:
		return jobs.JobStatusCanceled, "worker shutting down"
	case err != nil:
		return jobs.JobStatusFailed, err.Error()
	default:
		return jobs.JobStatusSucceeded, ""
	}
}
