// Package api hosts the HTTP server, middleware, and REST handlers of the
// sort service. Notable routes:
//   - GET /healthz / readyz for Kubernetes liveness and readiness checks.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/sort for a synchronous counting sort.
//   - POST /v1/jobs and /v1/jobs/{job_id}/... for asynchronous jobs.
package api
