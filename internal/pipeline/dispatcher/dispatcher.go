// Package dispatcher turns merged chunks into completed Q/A pairs using a
// parallel worker pool. Grounded directly on
// internal/orchestrator/kafka.go's worker-pool/backoff/DLQ loop and
// internal/orchestrator/dedupe.go's store abstraction. The backends
// (Local, Broker, and Kafka in builds with the "enterprise" tag) satisfy
// the same Dispatcher interface and the same
// two-phase collector protocol, so a simple in-process worker pool is a
// drop-in alternative to a broker-backed one.
package dispatcher

import (
	"context"
	"time"

	"github.com/nakashima2toshio/qagen/internal/pipeline"
	"github.com/nakashima2toshio/qagen/internal/pipeline/llmprovider"
)

// Dispatcher submits one task per chunk and collects terminal results.
// Retries happen only at the worker level: the dispatcher/collector never
// retries, it only aggregates, so there is exactly one place retry policy
// lives.
type Dispatcher interface {
	// Submit enqueues one task per request, never grouping unrelated chunks
	// into a single task (batching, if any, happens per-call inside a
	// worker).
	Submit(ctx context.Context, reqs []llmprovider.ChunkRequest, provider llmprovider.Provider, providerTag string) (Handle, error)
	// Collect waits for terminal state on every task in h, then returns the
	// aggregated pairs and a diagnostic record.
	Collect(ctx context.Context, h Handle, timeout time.Duration) (CollectResult, error)
	// Close releases any resources (connections, goroutines) held by the
	// dispatcher.
	Close() error
}

// Handle identifies the set of tasks submitted by one Submit call.
type Handle struct {
	TaskIDs []string
}

// Diagnostics reports the terminal breakdown of a collect call:
// Success + Failure + Error always equals Submitted.
type Diagnostics struct {
	Submitted       int      `json:"submitted"`
	Success         int      `json:"success"`
	Failure         int      `json:"failure"`
	Error           int      `json:"error"`
	FailedChunkIDs  []string `json:"failed_chunk_ids,omitempty"`
	ErroredTaskIDs  []string `json:"errored_task_ids,omitempty"`
}

// CollectResult is the output of a Collect call.
type CollectResult struct {
	Pairs       []pipeline.QAPair
	Diagnostics Diagnostics
}

// TaskRecord is the durable, authoritative record of one task's outcome,
// keyed by TaskID in the result store. The drain phase re-reads these
// directly rather than trusting broker-library task handles.
type TaskRecord struct {
	TaskID       string
	ChunkID      string
	DocID        string
	ChunkIndex   int
	Status       pipeline.TaskStatus
	AttemptCount int
	Pairs        []pipeline.QAPair
	Error        string
}

// ResultStore is the durable key-value store of task results, queried by
// task id. A Redis-backed implementation serves the broker dispatcher; an
// in-memory implementation backs the local dispatcher used by default and
// in tests.
type ResultStore interface {
	Put(ctx context.Context, rec TaskRecord) error
	Get(ctx context.Context, taskID string) (TaskRecord, bool, error)
}
