// Package server assembles the sort service from configuration and runs it.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/countsort/internal/api"
	"github.com/JakeFAU/countsort/internal/clock/system"
	"github.com/JakeFAU/countsort/internal/config"
	"github.com/JakeFAU/countsort/internal/dispatcher"
	"github.com/JakeFAU/countsort/internal/hash/sha256"
	"github.com/JakeFAU/countsort/internal/id/uuid"
	"github.com/JakeFAU/countsort/internal/jobs"
	memorypublisher "github.com/JakeFAU/countsort/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/countsort/internal/publisher/pubsub"
	queueMemory "github.com/JakeFAU/countsort/internal/queue/memory"
	gcsstorage "github.com/JakeFAU/countsort/internal/storage/gcs"
	localstorage "github.com/JakeFAU/countsort/internal/storage/local"
	memoryStorage "github.com/JakeFAU/countsort/internal/storage/memory"
	pgstore "github.com/JakeFAU/countsort/internal/storage/postgres"
	"github.com/JakeFAU/countsort/internal/telemetry"
	"github.com/JakeFAU/countsort/internal/worker"
)

const shutdownTimeout = 10 * time.Second

// App contains the application's dependencies.
type App struct {
	cfg          *config.Config
	logger       *zap.Logger
	apiServer    *api.Server
	dispatch     *dispatcher.Dispatcher
	queue        *queueMemory.Queue
	pubsubClient *pubsub.Client
	publisher    *gcppublisher.Publisher
	storage      *storage.Client
	runStore     *pgstore.RunStore
	events       jobs.Publisher
	jobStore     jobs.JobStore
	tracer       *sdktrace.TracerProvider
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	app := &App{cfg: cfg, logger: logger}
	logger.Info("building application dependencies",
		zap.Int("port", cfg.Server.Port),
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.Int("workers", cfg.Worker.Concurrency),
	)

	if err := setupTracing(ctx, app); err != nil {
		return nil, err
	}

	jobStore := memoryStorage.NewJobStore()
	app.jobStore = jobStore

	blobStore, err := setupStorage(ctx, app)
	if err != nil {
		app.closeInfrastructure()
		return nil, err
	}

	if err := setupDatabase(ctx, app); err != nil {
		app.closeInfrastructure()
		return nil, err
	}

	publisher, err := setupPublisher(ctx, app)
	if err != nil {
		app.closeInfrastructure()
		return nil, err
	}

	app.events = publisher
	app.queue = queueMemory.NewQueue(cfg.Worker.QueueDepth)
	app.dispatch = setupDispatcher(app, jobStore, blobStore, publisher)

	app.apiServer = api.NewServer(
		jobStore,
		app.dispatch,
		uuid.New(),
		system.New(),
		*cfg,
		logger.Named("api"),
		api.WithReadinessCheck(app.ready),
	)
	return app, nil
}

// Handler exposes the HTTP handler, mostly for tests.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Run starts the application and blocks until the context is canceled or a
// termination signal arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dispatchDone, stopDispatch := a.startDispatcher(ctx)
	defer stopDispatch()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("http server: %w", err)
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	a.drain(shutdownCtx, dispatchDone, stopDispatch)

	closeErr := a.Close()
	select {
	case err := <-serveErr:
		return err
	default:
		return closeErr
	}
}

// startDispatcher runs the workers on a context that survives ctx, so jobs
// accepted before the HTTP server stops still finish.
func (a *App) startDispatcher(ctx context.Context) (<-chan struct{}, context.CancelFunc) {
	dispatchCtx, stopDispatch := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	go func() {
		defer close(done)
		a.logger.Info("dispatcher started", zap.Int("workers", a.cfg.Worker.Concurrency))
		a.dispatch.Run(dispatchCtx)
	}()
	return done, stopDispatch
}

// drain closes the queue and waits for the workers to finish what it holds.
// At the deadline the workers are stopped and jobs left in the queue are
// canceled. Call it only after the HTTP server has stopped accepting jobs.
func (a *App) drain(ctx context.Context, done <-chan struct{}, stopDispatch context.CancelFunc) {
	a.queue.Close()
	select {
	case <-done:
	case <-ctx.Done():
		a.logger.Warn("workers did not drain before the shutdown deadline")
		stopDispatch()
		<-done
	}
	a.cancelQueued()
}

func (a *App) cancelQueued() {
	ctx := context.Background()
	for {
		item, err := a.queue.Dequeue(ctx)
		if err != nil {
			return
		}
		if err := a.jobStore.TransitionJobStatus(
			ctx,
			item.JobID,
			jobs.JobStatusQueued,
			jobs.JobStatusCanceled,
			"service shutting down",
		); err != nil {
			a.logger.Warn("cancel queued job failed", zap.String("job_id", item.JobID), zap.Error(err))
			continue
		}
		a.logger.Info("canceled queued job at shutdown", zap.String("job_id", item.JobID))
	}
}

// Close releases queues and client connections.
func (a *App) Close() error {
	if a.queue != nil {
		a.queue.Close()
	}
	a.closeInfrastructure()
	if err := a.logger.Sync(); err != nil {
		a.logger.Debug("logger sync failed", zap.Error(err))
	}
	a.logger.Info("shutdown complete")
	return nil
}

func (a *App) closeInfrastructure() {
	if a.publisher != nil {
		a.publisher.Stop()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.runStore != nil {
		a.runStore.Close()
	}
	if a.tracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}
}

func (a *App) ready(ctx context.Context) error {
	if a.runStore == nil {
		return nil
	}
	return a.runStore.Ping(ctx)
}

func setupTracing(ctx context.Context, app *App) error {
	if !app.cfg.Tracing.Enabled {
		return nil
	}
	tp, err := telemetry.InitTracerProvider(ctx, telemetry.Config{
		ServiceName: app.cfg.Tracing.ServiceName,
		Version:     app.cfg.Tracing.Version,
		SampleRatio: app.cfg.Tracing.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("tracing init failed: %w", err)
	}
	app.tracer = tp
	return nil
}

func setupStorage(ctx context.Context, app *App) (jobs.BlobStore, error) {
	switch app.cfg.Storage.Backend {
	case config.BackendGCS:
		app.logger.Info("using GCS storage backend", zap.String("bucket", app.cfg.Storage.GCSBucket))
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		app.storage = client
		blobStore, err := gcsstorage.New(client, gcsstorage.Config{Bucket: app.cfg.Storage.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		return blobStore, nil
	case config.BackendLocal:
		app.logger.Info("using local storage backend", zap.String("path", app.cfg.Storage.LocalDir))
		blobStore, err := localstorage.New(localstorage.Config{BaseDir: app.cfg.Storage.LocalDir})
		if err != nil {
			return nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		return blobStore, nil
	default:
		app.logger.Info("using in-memory storage backend")
		return memoryStorage.NewBlobStore(), nil
	}
}

func setupDatabase(ctx context.Context, app *App) error {
	if app.cfg.DB.DSN == "" {
		app.logger.Warn("no DSN specified for database, run log disabled")
		return nil
	}
	runStore, err := pgstore.NewRunStore(ctx, pgstore.RunStoreConfig{
		DSN:      app.cfg.DB.DSN,
		Table:    app.cfg.DB.Table,
		MaxConns: app.cfg.DB.MaxConns,
	})
	if err != nil {
		return fmt.Errorf("run store init failed: %w", err)
	}
	app.runStore = runStore
	if err := runStore.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("run store schema: %w", err)
	}
	app.logger.Info("run store initialized", zap.String("table", app.cfg.DB.Table))
	return nil
}

func setupPublisher(ctx context.Context, app *App) (jobs.Publisher, error) {
	if app.cfg.PubSub.TopicName == "" || app.cfg.PubSub.ProjectID == "" {
		app.logger.Warn("no Pub/Sub topic configured, using in-memory publisher")
		return memorypublisher.New(), nil
	}
	client, err := pubsub.NewClient(ctx, app.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client init failed: %w", err)
	}
	app.pubsubClient = client
	app.publisher = gcppublisher.New(client.Topic(app.cfg.PubSub.TopicName))
	app.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", app.cfg.PubSub.ProjectID),
		zap.String("topic", app.cfg.PubSub.TopicName),
	)
	return app.publisher, nil
}

func setupDispatcher(
	app *App,
	jobStore jobs.JobStore,
	blobStore jobs.BlobStore,
	publisher jobs.Publisher,
) *dispatcher.Dispatcher {
	hasher := sha256.New()
	clock := system.New()

	workerCfg := worker.Config{
		ContentType: app.cfg.Storage.ContentType,
		BlobPrefix:  app.cfg.Storage.Prefix,
		Topic:       app.cfg.PubSub.TopicName,
		MaxValue:    app.cfg.Sort.MaxValue,
	}
	app.logger.Info("worker config",
		zap.String("content_type", workerCfg.ContentType),
		zap.String("blob_prefix", workerCfg.BlobPrefix),
		zap.String("topic", workerCfg.Topic),
		zap.Int64("max_value", workerCfg.MaxValue),
	)

	var runStore jobs.RunStore
	if app.runStore != nil {
		runStore = app.runStore
	}

	workers := make([]*worker.Worker, 0, app.cfg.Worker.Concurrency)
	for i := 0; i < app.cfg.Worker.Concurrency; i++ {
		workers = append(workers, worker.New(
			app.queue,
			jobStore,
			blobStore,
			runStore,
			publisher,
			hasher,
			clock,
			workerCfg,
			app.logger.Named("worker").With(zap.Int("index", i)),
		))
	}
	return dispatcher.New(app.queue, workers)
}
