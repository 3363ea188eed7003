package worker

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/countsort/internal/jobs"
	"github.com/JakeFAU/countsort/internal/metrics"
	queueMemory "github.com/JakeFAU/countsort/internal/queue/memory"
)

// Not parallel: reads the process-wide queue depth gauge.
func TestWorker_DrainingQueueResetsDepthGauge(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	queue := queueMemory.NewQueue(4)
	for _, id := range []string{"job-a", "job-b"} {
		require.NoError(t, queue.Enqueue(ctx, jobs.QueueItem{JobID: id, Params: jobs.JobParameters{Values: []int64{2, 1}}}))
	}
	metrics.SetQueueDepth(queue.Len())

	jobStore := newFakeJobStore()
	w := New(queue, jobStore, newFakeBlobStore(), nil, nil, &fakeHasher{hash: "h"}, &fakeClock{now: time.Unix(1, 0)}, Config{}, zap.NewNop())
	go w.Run(ctx)

	require.Eventually(t, func() bool {
		succeeded := 0
		for _, update := range jobStore.snapshot() {
			if update.status == jobs.JobStatusSucceeded {
				succeeded++
			}
		}
		return succeeded == 2
	}, time.Second, 10*time.Millisecond)

	expected := `
# HELP countsort_queue_depth Number of jobs waiting in the queue.
# TYPE countsort_queue_depth gauge
countsort_queue_depth 0
`
	require.NoError(t, testutil.GatherAndCompare(prometheus.DefaultGatherer, strings.NewReader(expected), "countsort_queue_depth"))
}
