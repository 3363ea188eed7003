package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/countsort/internal/config"
	"github.com/JakeFAU/countsort/internal/countsort"
	"github.com/JakeFAU/countsort/internal/dispatcher"
	"github.com/JakeFAU/countsort/internal/jobs"
	"github.com/JakeFAU/countsort/internal/metrics"
	"github.com/JakeFAU/countsort/internal/policy/ratelimit"
)

const (
	requestTimeout = 60 * time.Second
	enqueueTimeout = 5 * time.Second
	maxBodyBytes   = 64 << 20
)

var (
	errInvalidRequest = errors.New("invalid request")
	errNotCancelable  = errors.New("job is no longer queued")
)

// ReadinessCheck reports whether downstream dependencies can serve traffic.
type ReadinessCheck func(ctx context.Context) error

// Server wires HTTP handlers to the dispatcher and stores.
type Server struct {
	router     chi.Router
	jobStore   jobs.JobStore
	dispatcher *dispatcher.Dispatcher
	idGen      jobs.IDGenerator
	clock      jobs.Clock
	cfg        config.Config
	logger     *zap.Logger
	ready      ReadinessCheck
}

// Option customizes a Server.
type Option func(*Server)

// WithReadinessCheck makes /readyz consult check.
func WithReadinessCheck(check ReadinessCheck) Option {
	return func(s *Server) {
		s.ready = check
	}
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	jobStore jobs.JobStore,
	dispatcher *dispatcher.Dispatcher,
	idGen jobs.IDGenerator,
	clock jobs.Clock,
	cfg config.Config,
	logger *zap.Logger,
	opts ...Option,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	s := &Server{
		jobStore:   jobStore,
		dispatcher: dispatcher,
		idGen:      idGen,
		clock:      clock,
		cfg:        cfg,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(requestTimeout))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		if cfg.RateLimit.RPS > 0 {
			limiter := ratelimit.New(ratelimit.Config{
				DefaultRPS:   cfg.RateLimit.RPS,
				DefaultBurst: cfg.RateLimit.Burst,
			})
			r.Use(rateLimitMiddleware(limiter))
		}
		r.Post("/sort", s.sortSync)
		r.Route("/jobs", func(r chi.Router) {
			r.Post("/", s.submitJob)
			r.Route("/{job_id}", func(r chi.Router) {
				r.Get("/status", s.getJobStatus)
				r.Get("/result", s.getJobResult)
				r.Post("/cancel", s.cancelJob)
			})
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			s.logger.Warn("readiness check failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "not ready")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type sortRequest struct {
	Values []int64           `json:"values"`
	Tags   map[string]string `json:"tags,omitempty"`
}

type sortResponse struct {
	Unsorted []int64 `json:"unsorted"`
	Sorted   []int64 `json:"sorted"`
}

func (s *Server) sortSync(w http.ResponseWriter, r *http.Request) {
	req, err := s.decodeSortRequest(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	start := time.Now()
	sorted, err := countsort.Sorted(req.Values)
	metrics.ObserveSort(metrics.SourceHTTP, len(req.Values), time.Since(start), err)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sortResponse{Unsorted: req.Values, Sorted: sorted})
}

func (s *Server) submitJob(w http.ResponseWriter, r *http.Request) {
	req, err := s.decodeSortRequest(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	params := jobs.JobParameters{Values: req.Values, Tags: req.Tags}
	if params.Tags == nil {
		params.Tags = map[string]string{}
	}
	jobID, err := s.enqueueJob(r.Context(), params)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
}

// decodeSortRequest parses the body and applies the configured input bounds.
func (s *Server) decodeSortRequest(w http.ResponseWriter, r *http.Request) (sortRequest, error) {
	var req sortRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return sortRequest{}, fmt.Errorf("%w: invalid JSON", errInvalidRequest)
	}
	if limit := s.cfg.Sort.MaxElements; limit > 0 && len(req.Values) > limit {
		return sortRequest{}, fmt.Errorf("%w: %d values exceeds the limit of %d", errInvalidRequest, len(req.Values), limit)
	}
	if err := countsort.Validate(req.Values, s.cfg.Sort.MaxValue); err != nil {
		return sortRequest{}, fmt.Errorf("validate input: %w", err)
	}
	return req, nil
}

func (s *Server) getJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := s.jobStore.GetJob(r.Context(), jobID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"job": job})
}

func (s *Server) getJobResult(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := s.jobStore.GetJob(r.Context(), jobID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	result := jobs.Result{Job: job}
	if job.Status == jobs.JobStatusSucceeded {
		output, err := s.jobStore.GetOutput(r.Context(), jobID)
		if err != nil {
			s.logger.Error("fetch job output failed", zap.String("job_id", jobID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to fetch job output")
			return
		}
		result.Output = &output
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) cancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	err := s.jobStore.TransitionJobStatus(
		r.Context(),
		jobID,
		jobs.JobStatusQueued,
		jobs.JobStatusCanceled,
		"canceled via API",
	)
	if errors.Is(err, jobs.ErrStatusConflict) {
		err = fmt.Errorf("%w: %w", errNotCancelable, err)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	metrics.ObserveJob(string(jobs.JobStatusCanceled))
	writeJSON(w, http.StatusOK, map[string]string{"job_id": jobID, "status": string(jobs.JobStatusCanceled)})
}

func (s *Server) enqueueJob(ctx context.Context, params jobs.JobParameters) (string, error) {
	jobID, err := s.idGen.NewID()
	if err != nil {
		return "", fmt.Errorf("generate job id: %w", err)
	}
	now := s.clock.Now()
	job := jobs.Job{
		ID:         jobID,
		Status:     jobs.JobStatusQueued,
		Submitted:  now,
		Parameters: params,
		Counters:   jobs.JobCounters{Elements: len(params.Values)},
	}
	if err := s.jobStore.CreateJob(ctx, job); err != nil {
		return "", fmt.Errorf("create job: %w", err)
	}
	queueCtx, cancel := context.WithTimeout(ctx, enqueueTimeout)
	defer cancel()
	item := jobs.QueueItem{
		JobID:     jobID,
		Params:    params,
		Attempt:   1,
		Submitted: now.Unix(),
	}
	if err := s.dispatcher.Enqueue(queueCtx, item); err != nil {
		if updateErr := s.jobStore.UpdateJobStatus(
			context.WithoutCancel(ctx),
			jobID,
			jobs.JobStatusFailed,
			err.Error(),
			job.Counters,
		); updateErr != nil {
			s.logger.Error("mark unqueued job failed", zap.String("job_id", jobID), zap.Error(updateErr))
		}
		return "", fmt.Errorf("enqueue job: %w", err)
	}
	s.logger.Info("job enqueued", zap.String("job_id", jobID), zap.Int("elements", len(params.Values)))
	return jobID, nil
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errInvalidRequest),
		errors.Is(err, countsort.ErrInvalidSize),
		errors.Is(err, countsort.ErrInvalidValue),
		errors.Is(err, countsort.ErrValueTooLarge):
		return http.StatusBadRequest
	case errors.Is(err, jobs.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, errNotCancelable):
		return http.StatusConflict
	case errors.Is(err, jobs.ErrQueueClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	switch status {
	case http.StatusNotFound:
		msg = "job not found"
	case http.StatusInternalServerError:
		s.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", requestIDFrom(r.Context())),
			zap.Error(err),
		)
		msg = "internal server error"
	}
	writeError(w, status, msg)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
