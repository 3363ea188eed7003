package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/countsort/internal/config"
	"github.com/JakeFAU/countsort/internal/jobs"
	memorypublisher "github.com/JakeFAU/countsort/internal/publisher/memory"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadFrom(config.New(), "")
	require.NoError(t, err)
	cfg.Worker.Concurrency = 2
	cfg.Worker.QueueDepth = 4
	return &cfg
}

func TestBuild_EndToEndJob(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Storage.Backend = config.BackendLocal
	cfg.Storage.LocalDir = t.TempDir()
	cfg.PubSub.TopicName = "sort-results"

	app, err := Build(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		app.dispatch.Run(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
		require.NoError(t, app.Close())
	}()

	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/jobs", strings.NewReader(`{"values":[9,4,4,1]}`)))
	require.Equal(t, http.StatusAccepted, rec.Code)

	var submitted map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &submitted))
	jobID := submitted["job_id"]
	require.NotEmpty(t, jobID)

	var result jobs.Result
	require.Eventually(t, func() bool {
		rec := httptest.NewRecorder()
		app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/jobs/"+jobID+"/result", nil))
		if rec.Code != http.StatusOK {
			return false
		}
		result = jobs.Result{}
		if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
			return false
		}
		return result.Job.Status == jobs.JobStatusSucceeded
	}, 2*time.Second, 10*time.Millisecond)

	require.NotNil(t, result.Output)
	require.Equal(t, []int64{1, 4, 4, 9}, result.Output.Sorted)
	require.True(t, strings.HasPrefix(result.Output.BlobURI, "file://"))

	blobPath := filepath.Join(cfg.Storage.LocalDir, cfg.Storage.Prefix, jobID, result.Output.ContentHash+".json")
	_, err = os.Stat(blobPath)
	require.NoError(t, err)

	publisher, ok := app.events.(*memorypublisher.Publisher)
	require.True(t, ok)
	require.Len(t, publisher.Messages("sort-results"), 1)
}

func TestBuild_LocalBackendRequiresDirectory(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Storage.Backend = config.BackendLocal
	cfg.Storage.LocalDir = " "

	_, err := Build(context.Background(), cfg, zap.NewNop())
	require.ErrorContains(t, err, "local blob store init failed")
}

func TestBuild_BadDSN(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.DB.DSN = "postgres://%zz"

	_, err := Build(context.Background(), cfg, zap.NewNop())
	require.ErrorContains(t, err, "run store init failed")
}

func TestApp_ReadyWithoutDatabase(t *testing.T) {
	t.Parallel()

	app, err := Build(context.Background(), testConfig(t), zap.NewNop())
	require.NoError(t, err)
	defer func() { require.NoError(t, app.Close()) }()

	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func submitJob(t *testing.T, app *App, body string) string {
	t.Helper()
	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/jobs", strings.NewReader(body)))
	require.Equal(t, http.StatusAccepted, rec.Code)
	var submitted map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &submitted))
	return submitted["job_id"]
}

func TestApp_DrainFinishesAcceptedJobs(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Worker.Concurrency = 1
	app, err := Build(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer func() { require.NoError(t, app.Close()) }()

	// runCtx stands in for the signal context; cancelling it must not stop the workers.
	runCtx, cancelRun := context.WithCancel(context.Background())
	done, stopDispatch := app.startDispatcher(runCtx)
	defer stopDispatch()

	var ids []string
	for range 3 {
		ids = append(ids, submitJob(t, app, `{"values":[3,1,2]}`))
	}
	cancelRun()

	drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	app.drain(drainCtx, done, stopDispatch)

	for _, id := range ids {
		job, err := app.jobStore.GetJob(context.Background(), id)
		require.NoError(t, err)
		require.Equal(t, jobs.JobStatusSucceeded, job.Status, id)
	}
}

func TestApp_DrainCancelsJobsLeftAtDeadline(t *testing.T) {
	t.Parallel()

	app, err := Build(context.Background(), testConfig(t), zap.NewNop())
	require.NoError(t, err)
	defer func() { require.NoError(t, app.Close()) }()

	// No workers were started; the deadline has already passed.
	id := submitJob(t, app, `{"values":[5,4]}`)
	workersDone := make(chan struct{})
	close(workersDone)
	expired, cancel := context.WithCancel(context.Background())
	cancel()

	app.drain(expired, workersDone, func() {})

	job, err := app.jobStore.GetJob(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, jobs.JobStatusCanceled, job.Status)
	require.Equal(t, "service shutting down", job.ErrorText)
}
