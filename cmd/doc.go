// Package cmd defines the countsort command line.
//
// Architecture overview:
//   - Interactive session: the root command (and its "sort" alias) runs
//     internal/console, which prompts for a size and that many integers on
//     stdin, then prints the sequence before and after a counting sort.
//     Logs go to stderr so stdout carries nothing but the session.
//   - Service: "serve" builds internal/server.App. The HTTP API sorts small
//     sequences inline and hands larger ones to a bounded in-memory queue
//     drained by a fixed worker pool. Workers persist the result to the
//     configured BlobStore (memory/local/GCS), append a row to the Postgres
//     run log when a DSN is configured, and publish a Pub/Sub notification
//     when a topic is configured. Each job runs in an OpenTelemetry span
//     whose context travels in the Pub/Sub message attributes.
//   - Benchmark: "bench" times counting sort against slices.Sort and can
//     export the hyperfine JSON layout consumed by the plotting script.
//
// Configuration is loaded by internal/config (Viper) from an optional file
// and COUNTSORT_* environment variables; --log-level and --max-value
// override the file and environment.
package cmd
