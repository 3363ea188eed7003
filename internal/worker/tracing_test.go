package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"

	"github.com/JakeFAU/countsort/internal/jobs"
)

type mockRunStore struct {
	mock.Mock
}

func (m *mockRunStore) RecordRun(ctx context.Context, record jobs.RunRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func TestWorker_RunStoreFailureDoesNotFailJob(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runStore := &mockRunStore{}
	runStore.On("RecordRun", mock.Anything, mock.MatchedBy(func(r jobs.RunRecord) bool {
		return r.JobID == "job-runlog" && r.Status == jobs.JobStatusSucceeded
	})).Return(errors.New("connection refused")).Once()

	queue := &fakeQueue{items: []jobs.QueueItem{{
		JobID:  "job-runlog",
		Params: jobs.JobParameters{Values: []int64{4, 1}},
	}}}
	jobStore := newFakeJobStore()

	w := New(queue, jobStore, newFakeBlobStore(), runStore, nil, &fakeHasher{hash: "h"},
		&fakeClock{now: time.Unix(1, 0)}, Config{}, zap.NewNop())
	go w.Run(ctx)

	require.Eventually(t, func() bool {
		return jobStore.lastStatus() == jobs.JobStatusSucceeded
	}, time.Second, 10*time.Millisecond)
	runStore.AssertExpectations(t)
}

// Not parallel: swaps the global tracer provider.
func TestWorker_ProcessJobRecordsSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	queue := &fakeQueue{items: []jobs.QueueItem{
		{JobID: "job-span-ok", Params: jobs.JobParameters{Values: []int64{1, 0}}},
		{JobID: "job-span-bad", Params: jobs.JobParameters{Values: []int64{-1}}},
	}}
	jobStore := newFakeJobStore()
	w := New(queue, jobStore, newFakeBlobStore(), nil, nil, &fakeHasher{hash: "h"},
		&fakeClock{now: time.Unix(1, 0)}, Config{}, zap.NewNop())
	go w.Run(ctx)

	require.Eventually(t, func() bool {
		return len(recorder.Ended()) == 2
	}, time.Second, 10*time.Millisecond)

	spans := make(map[string]sdktrace.ReadOnlySpan)
	for _, span := range recorder.Ended() {
		require.Equal(t, "sort.job", span.Name())
		spans[attrValue(span, "job.id")] = span
	}

	ok := spans["job-span-ok"]
	require.NotNil(t, ok)
	assert.Equal(t, string(jobs.JobStatusSucceeded), attrValue(ok, "job.status"))
	assert.Equal(t, codes.Unset, ok.Status().Code)

	bad := spans["job-span-bad"]
	require.NotNil(t, bad)
	assert.Equal(t, string(jobs.JobStatusFailed), attrValue(bad, "job.status"))
	assert.Equal(t, codes.Error, bad.Status().Code)
}

func attrValue(span sdktrace.ReadOnlySpan, key attribute.Key) string {
	for _, kv := range span.Attributes() {
		if kv.Key == key {
			return kv.Value.Emit()
		}
	}
	return ""
}
