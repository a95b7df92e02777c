package dispatcher

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nakashima2toshio/qagen/internal/pipeline"
	"github.com/nakashima2toshio/qagen/internal/pipeline/llmprovider"
)

const maxAttempts = 3

// Local is an in-process, channel-based worker pool satisfying the
// Dispatcher interface without any external broker. Grounded on the
// worker-pool/backoff shape of internal/orchestrator/kafka.go, with the
// Kafka reader/committer replaced by a buffered Go channel.
type Local struct {
	store       ResultStore
	workerCount int
	log         zerolog.Logger
	// BatchSize is how many pending jobs a worker groups into one
	// llmprovider call (§4.5/§4.6: "batching is per-call within a worker").
	// Submit still enqueues one task per chunk; grouping happens only here.
	BatchSize int
	// Jitter bounds the pre-call randomized sleep applied before every
	// provider call. Zero values disable jitter, used by tests to run fast
	// and deterministically.
	JitterMin time.Duration
	JitterMax time.Duration

	jobs   chan job
	wg     sync.WaitGroup
	once   sync.Once
	ctx    context.Context
	cancel context.CancelFunc
}

type job struct {
	task      pipeline.Task
	provider  llmprovider.Provider
	tag       string
	modelHint string
}

// NewLocal builds a Local dispatcher with workerCount goroutines draining a
// shared job channel, backed by an in-memory result store.
func NewLocal(workerCount int, store ResultStore, log zerolog.Logger) *Local {
	if workerCount <= 0 {
		workerCount = 4
	}
	if store == nil {
		store = NewMemoryResultStore()
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Local{
		store:       store,
		workerCount: workerCount,
		log:         log,
		BatchSize:   1,
		JitterMin:   500 * time.Millisecond,
		JitterMax:   1500 * time.Millisecond,
		jobs:        make(chan job, workerCount*4),
		ctx:         ctx,
		cancel:      cancel,
	}
	for i := 0; i < workerCount; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
	return d
}

// WithBatchSize sets how many pending chunks a worker groups into one
// llmprovider call; n is clamped to at least 1.
func (d *Local) WithBatchSize(n int) *Local {
	if n < 1 {
		n = 1
	}
	d.BatchSize = n
	return d
}

func (d *Local) Submit(ctx context.Context, reqs []llmprovider.ChunkRequest, provider llmprovider.Provider, providerTag string) (Handle, error) {
	ids := make([]string, 0, len(reqs))
	for _, r := range reqs {
		taskID := uuid.NewString()
		task := pipeline.Task{
			TaskID:      taskID,
			ChunkRef:    r.Chunk,
			RequestedQA: r.RequestedQA,
			Status:      pipeline.TaskPending,
		}
		if err := d.store.Put(ctx, TaskRecord{TaskID: taskID, ChunkID: r.Chunk.ChunkID, DocID: r.Chunk.DocID, ChunkIndex: r.Chunk.ChunkIndex, Status: pipeline.TaskPending}); err != nil {
			return Handle{}, fmt.Errorf("dispatcher: write initial task record: %w", err)
		}
		ids = append(ids, taskID)
		select {
		case d.jobs <- job{task: task, provider: provider, tag: providerTag, modelHint: r.ModelHint}:
		case <-ctx.Done():
			return Handle{}, ctx.Err()
		}
	}
	return Handle{TaskIDs: ids}, nil
}

func (d *Local) Collect(ctx context.Context, h Handle, timeout time.Duration) (CollectResult, error) {
	return collect(ctx, d.store, h, timeout, d.log)
}

func (d *Local) Close() error {
	d.once.Do(func() {
		close(d.jobs)
		d.cancel()
	})
	d.wg.Wait()
	return nil
}

func (d *Local) worker(id int) {
	defer d.wg.Done()
	for j := range d.jobs {
		d.runBatch(d.fillBatch(j))
	}
}

// fillBatch collects up to BatchSize jobs starting with first, draining
// only what is immediately available so a worker never blocks waiting for
// more work to arrive once it already has at least one job in hand.
func (d *Local) fillBatch(first job) []job {
	batch := []job{first}
	for len(batch) < d.BatchSize {
		select {
		case j, ok := <-d.jobs:
			if !ok {
				return batch
			}
			batch = append(batch, j)
		default:
			return batch
		}
	}
	return batch
}

// runBatch executes one LLM call for every job in the batch together
// (§4.5's batched multi-chunk prompt shape), distributing the returned
// pairs back to each job's own task per §4.5's batching distribution rule.
// It retries the whole batch, not per-chunk, up to three times with
// exponential back-off on provider errors, schema errors, or transient
// network failures; a batch that exhausts attempts terminates every task
// in it as failure without aborting the run.
func (d *Local) runBatch(jobs []job) {
	ctx := d.ctx

	d.jitter(ctx)
	if ctx.Err() != nil {
		return
	}

	reqs := make([]llmprovider.ChunkRequest, len(jobs))
	requested := make([]int, len(jobs))
	for i, j := range jobs {
		reqs[i] = llmprovider.ChunkRequest{Chunk: j.task.ChunkRef, RequestedQA: j.task.RequestedQA, ModelHint: j.modelHint}
		requested[i] = j.task.RequestedQA
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		for _, j := range jobs {
			t := j.task
			_ = d.store.Put(ctx, TaskRecord{TaskID: t.TaskID, ChunkID: t.ChunkRef.ChunkID, DocID: t.ChunkRef.DocID, ChunkIndex: t.ChunkRef.ChunkIndex, Status: pipeline.TaskRunning, AttemptCount: attempt})
		}

		prompt := llmprovider.BuildPrompt(reqs)
		res, err := llmprovider.GenerateWithFallback(ctx, jobs[0].provider, prompt, jobs[0].modelHint)
		if err == nil {
			grouped := llmprovider.DistributeBatch(res.QAPairs, requested)
			for i, j := range jobs {
				t := j.task
				pairs := toQAPairs(llmprovider.QAResult{QAPairs: grouped[i]}, t.ChunkRef, j.tag)
				_ = d.store.Put(ctx, TaskRecord{
					TaskID: t.TaskID, ChunkID: t.ChunkRef.ChunkID, DocID: t.ChunkRef.DocID,
					ChunkIndex: t.ChunkRef.ChunkIndex, Status: pipeline.TaskSuccess, AttemptCount: attempt, Pairs: pairs,
				})
			}
			return
		}
		lastErr = err
		if ctx.Err() != nil {
			// Dispatcher is shutting down: leave the records at their last
			// written running state rather than forcing a failure verdict.
			return
		}
		if attempt < maxAttempts {
			backoff := time.Duration(200*(1<<uint(attempt-1))) * time.Millisecond
			d.log.Warn().Int("batch_size", len(jobs)).Int("attempt", attempt).Dur("backoff", backoff).Err(err).Msg("retrying batch after transient failure")
			timer := time.NewTimer(backoff)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return
			}
		}
	}

	for _, j := range jobs {
		t := j.task
		_ = d.store.Put(ctx, TaskRecord{
			TaskID: t.TaskID, ChunkID: t.ChunkRef.ChunkID, DocID: t.ChunkRef.DocID,
			ChunkIndex: t.ChunkRef.ChunkIndex, Status: pipeline.TaskFailure, AttemptCount: maxAttempts, Error: lastErr.Error(),
		})
	}
}

// jitter sleeps for a small uniform-random interval before the LLM call,
// a cost/rate-limit mitigation rather than a correctness guarantee (see
// DESIGN.md for the open question on how load-bearing this is).
func (d *Local) jitter(ctx context.Context) {
	if d.JitterMax <= 0 {
		return
	}
	span := d.JitterMax - d.JitterMin
	wait := d.JitterMin
	if span > 0 {
		wait += time.Duration(rand.Int63n(int64(span)))
	}
	timer := time.NewTimer(wait)
	select {
	case <-timer.C:
	case <-ctx.Done():
		timer.Stop()
	}
}

func toQAPairs(res llmprovider.QAResult, chunk pipeline.Chunk, providerTag string) []pipeline.QAPair {
	pairs := make([]pipeline.QAPair, 0, len(res.QAPairs))
	for _, raw := range res.QAPairs {
		qt := pipeline.QuestionType(raw.QuestionType)
		if !qt.Valid() {
			qt = pipeline.QuestionFact
		}
		pairs = append(pairs, pipeline.QAPair{
			Question:      raw.Question,
			Answer:        raw.Answer,
			QuestionType:  qt,
			SourceChunkID: chunk.ChunkID,
			DocID:         chunk.DocID,
			ChunkIndex:    chunk.ChunkIndex,
			ProviderTag:   providerTag,
		})
	}
	return pairs
}
