package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/nakashima2toshio/qagen/internal/pipeline"
	"github.com/nakashima2toshio/qagen/internal/pipeline/llmprovider"
)

// RedisResultStore is a Redis-backed result store keyed by task id.
// Grounded on orchestrator/dedupe.go's RedisDedupeStore client-construction
// pattern, storing a full TaskRecord as one JSON blob per key.
type RedisResultStore struct {
	client *redis.Client
	prefix string
}

func NewRedisResultStore(addr, prefix string) (*RedisResultStore, error) {
	c := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("dispatcher: redis ping failed: %w", err)
	}
	if prefix == "" {
		prefix = "qagen:task:"
	}
	return &RedisResultStore{client: c, prefix: prefix}, nil
}

func (s *RedisResultStore) key(taskID string) string {
	return s.prefix + taskID
}

func (s *RedisResultStore) Put(ctx context.Context, rec TaskRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("dispatcher: marshal task record: %w", err)
	}
	return s.client.Set(ctx, s.key(rec.TaskID), b, 24*time.Hour).Err()
}

func (s *RedisResultStore) Get(ctx context.Context, taskID string) (TaskRecord, bool, error) {
	val, err := s.client.Get(ctx, s.key(taskID)).Result()
	if err == redis.Nil {
		return TaskRecord{}, false, nil
	}
	if err != nil {
		return TaskRecord{}, false, err
	}
	var rec TaskRecord
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return TaskRecord{}, false, fmt.Errorf("dispatcher: unmarshal task record: %w", err)
	}
	return rec, true, nil
}

func (s *RedisResultStore) Close() error {
	return s.client.Close()
}

// brokerJob is the wire shape enqueued onto the Redis list; it carries the
// provider kind rather than a live Provider value, since a worker process
// consuming the queue need not be the same process that submitted the task.
type brokerJob struct {
	TaskID      string         `json:"task_id"`
	Chunk       pipeline.Chunk `json:"chunk"`
	RequestedQA int            `json:"requested_qa"`
	ProviderTag string         `json:"provider_tag"`
	ModelHint   string         `json:"model_hint,omitempty"`
}

// defaultLeaseTTL bounds how long a worker may hold a claimed job before
// reclaimExpired treats it as abandoned (worker crashed mid-task) and
// returns it to the main queue for another worker to pick up.
const defaultLeaseTTL = 2 * time.Minute

// Broker is a Redis-backed Dispatcher: a reliable-queue pattern (BRPopLPush
// into a processing list, with a per-task lease key) as the task queue,
// RedisResultStore as the durable result store. Grounded on
// orchestrator/kafka.go's worker-pool/backoff loop, with the Kafka reader
// swapped for a Redis list; the claim/lease/reclaim shape is grounded on
// Redis's own documented "reliable queue" recipe (BRPOPLPUSH plus a
// processing list), generalized with a lease key per task so a crashed
// worker's claim is detected and requeued rather than left stuck at
// "running" forever (§4.6: "on worker loss, a running task is reclaimable
// by another worker... no task is lost silently").
type Broker struct {
	client        *redis.Client
	store         *RedisResultStore
	queueKey      string
	processingKey string
	workerCount   int
	log           zerolog.Logger
	provider      llmprovider.Provider
	dedupe        *ChunkDedupe

	// BatchSize is how many pending jobs a worker groups into one
	// llmprovider call (§4.5/§4.6's "batching is per-call within a worker").
	BatchSize int
	LeaseTTL  time.Duration

	JitterMin time.Duration
	JitterMax time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// WithDedupe attaches a ChunkDedupe so Submit skips re-enqueueing a chunk
// that is already in flight for the same provider, returning the in-flight
// task id instead. Optional; a Broker with no dedupe attached enqueues every
// submitted chunk unconditionally.
func (b *Broker) WithDedupe(d *ChunkDedupe) *Broker {
	b.dedupe = d
	return b
}

// WithBatchSize sets how many pending jobs a worker groups into one
// llmprovider call; n is clamped to at least 1.
func (b *Broker) WithBatchSize(n int) *Broker {
	if n < 1 {
		n = 1
	}
	b.BatchSize = n
	return b
}

// NewBroker starts workerCount consumer goroutines that claim brokerJob
// payloads from queueKey with BRPOPLPUSH into the processing list, plus
// the reclaimLoop goroutine, and resolves jobs against the single provider
// supplied here (a real deployment with per-call provider choice would
// encode the kind in the job and hold a registry instead).
func NewBroker(addr, queueKey string, workerCount int, store *RedisResultStore, provider llmprovider.Provider, log zerolog.Logger) *Broker {
	if workerCount <= 0 {
		workerCount = 4
	}
	if queueKey == "" {
		queueKey = "qagen:queue"
	}
	ctx, cancel := context.WithCancel(context.Background())
	b := &Broker{
		client:        redis.NewClient(&redis.Options{Addr: addr}),
		store:         store,
		queueKey:      queueKey,
		processingKey: queueKey + ":processing",
		workerCount:   workerCount,
		log:           log,
		provider:      provider,
		BatchSize:     1,
		LeaseTTL:      defaultLeaseTTL,
		JitterMin:     500 * time.Millisecond,
		JitterMax:     1500 * time.Millisecond,
		cancel:        cancel,
	}
	for i := 0; i < workerCount; i++ {
		b.wg.Add(1)
		go b.worker(ctx, i)
	}
	b.wg.Add(1)
	go b.reclaimLoop(ctx)
	return b
}

func (b *Broker) Submit(ctx context.Context, reqs []llmprovider.ChunkRequest, provider llmprovider.Provider, providerTag string) (Handle, error) {
	ids := make([]string, 0, len(reqs))
	for _, r := range reqs {
		taskID := uuid.NewString()
		if b.dedupe != nil {
			if existing, inFlight, err := b.dedupe.Reserve(ctx, r.Chunk.ChunkID, providerTag, taskID); err != nil {
				return Handle{}, fmt.Errorf("dispatcher: dedupe reserve: %w", err)
			} else if inFlight {
				ids = append(ids, existing)
				continue
			}
		}
		if err := b.store.Put(ctx, TaskRecord{TaskID: taskID, ChunkID: r.Chunk.ChunkID, DocID: r.Chunk.DocID, ChunkIndex: r.Chunk.ChunkIndex, Status: pipeline.TaskPending}); err != nil {
			return Handle{}, fmt.Errorf("dispatcher: write initial task record: %w", err)
		}
		job := brokerJob{TaskID: taskID, Chunk: r.Chunk, RequestedQA: r.RequestedQA, ProviderTag: providerTag, ModelHint: r.ModelHint}
		payload, err := json.Marshal(job)
		if err != nil {
			return Handle{}, fmt.Errorf("dispatcher: marshal broker job: %w", err)
		}
		if err := b.client.LPush(ctx, b.queueKey, payload).Err(); err != nil {
			return Handle{}, fmt.Errorf("dispatcher: enqueue job: %w", err)
		}
		ids = append(ids, taskID)
	}
	return Handle{TaskIDs: ids}, nil
}

func (b *Broker) Collect(ctx context.Context, h Handle, timeout time.Duration) (CollectResult, error) {
	return collect(ctx, b.store, h, timeout, b.log)
}

func (b *Broker) Close() error {
	b.cancel()
	b.wg.Wait()
	return b.client.Close()
}

func (b *Broker) leaseKey(taskID string) string {
	return b.queueKey + ":lease:" + taskID
}

// worker claims one job (and, batching, whatever else is immediately
// available) by moving it from the main queue to the processing list and
// setting a lease key, so a crash between claim and terminal write leaves a
// trace reclaimExpired can find; successfully processed jobs are removed
// from the processing list and their lease released.
func (b *Broker) worker(ctx context.Context, id int) {
	defer b.wg.Done()
	for {
		payload, err := b.client.BRPopLPush(ctx, b.queueKey, b.processingKey, time.Second).Result()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if err == redis.Nil {
				continue
			}
			b.log.Warn().Int("worker", id).Err(err).Msg("broker pop failed")
			continue
		}
		var first brokerJob
		if err := json.Unmarshal([]byte(payload), &first); err != nil {
			b.log.Error().Err(err).Msg("broker job decode failed, dropping")
			_ = b.client.LRem(ctx, b.processingKey, 1, payload).Err()
			continue
		}
		_ = b.client.Set(ctx, b.leaseKey(first.TaskID), id, b.LeaseTTL).Err()

		payloads := []string{payload}
		jobs := []brokerJob{first}
		for len(jobs) < b.BatchSize {
			p2, err := b.client.RPopLPush(ctx, b.queueKey, b.processingKey).Result()
			if err != nil {
				break
			}
			var j2 brokerJob
			if err := json.Unmarshal([]byte(p2), &j2); err != nil {
				b.log.Error().Err(err).Msg("broker job decode failed, dropping")
				_ = b.client.LRem(ctx, b.processingKey, 1, p2).Err()
				continue
			}
			_ = b.client.Set(ctx, b.leaseKey(j2.TaskID), id, b.LeaseTTL).Err()
			payloads = append(payloads, p2)
			jobs = append(jobs, j2)
		}

		b.runBatch(ctx, jobs)

		for _, p := range payloads {
			_ = b.client.LRem(ctx, b.processingKey, 1, p).Err()
		}
		for _, j := range jobs {
			_ = b.client.Del(ctx, b.leaseKey(j.TaskID)).Err()
		}
	}
}

// runBatch executes one LLM call for every job in the batch together,
// distributing the returned pairs back to each job's own task per §4.5's
// batching distribution rule. It retries the whole batch, not per-chunk,
// up to three times with exponential back-off.
func (b *Broker) runBatch(ctx context.Context, jobs []brokerJob) {
	b.jitter(ctx)

	reqs := make([]llmprovider.ChunkRequest, len(jobs))
	requested := make([]int, len(jobs))
	for i, j := range jobs {
		reqs[i] = llmprovider.ChunkRequest{Chunk: j.Chunk, RequestedQA: j.RequestedQA, ModelHint: j.ModelHint}
		requested[i] = j.RequestedQA
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		for _, j := range jobs {
			_ = b.store.Put(ctx, TaskRecord{TaskID: j.TaskID, ChunkID: j.Chunk.ChunkID, DocID: j.Chunk.DocID, ChunkIndex: j.Chunk.ChunkIndex, Status: pipeline.TaskRunning, AttemptCount: attempt})
		}

		prompt := llmprovider.BuildPrompt(reqs)
		res, err := llmprovider.GenerateWithFallback(ctx, b.provider, prompt, jobs[0].ModelHint)
		if err == nil {
			grouped := llmprovider.DistributeBatch(res.QAPairs, requested)
			for i, j := range jobs {
				pairs := toQAPairs(llmprovider.QAResult{QAPairs: grouped[i]}, j.Chunk, j.ProviderTag)
				_ = b.store.Put(ctx, TaskRecord{
					TaskID: j.TaskID, ChunkID: j.Chunk.ChunkID, DocID: j.Chunk.DocID,
					ChunkIndex: j.Chunk.ChunkIndex, Status: pipeline.TaskSuccess, AttemptCount: attempt, Pairs: pairs,
				})
			}
			return
		}
		lastErr = err
		if attempt < maxAttempts {
			backoff := time.Duration(200*(1<<uint(attempt-1))) * time.Millisecond
			b.log.Warn().Int("batch_size", len(jobs)).Int("attempt", attempt).Dur("backoff", backoff).Err(err).Msg("retrying batch after transient failure")
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
		_ = b.store.Put(ctx, TaskRecord{
			TaskID: j.TaskID, ChunkID: j.Chunk.ChunkID, DocID: j.Chunk.DocID,
			ChunkIndex: j.Chunk.ChunkIndex, Status: pipeline.TaskFailure, AttemptCount: maxAttempts, Error: lastErr.Error(),
		})
	}
}

// reclaimLoop periodically scans the processing list for jobs whose lease
// has expired (the worker that claimed them died before finishing) and
// moves them back onto the main queue for another worker to pick up.
func (b *Broker) reclaimLoop(ctx context.Context) {
	defer b.wg.Done()
	ticker := time.NewTicker(b.LeaseTTL / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.reclaimExpired(ctx)
		}
	}
}

func (b *Broker) reclaimExpired(ctx context.Context) {
	items, err := b.client.LRange(ctx, b.processingKey, 0, -1).Result()
	if err != nil {
		return
	}
	for _, item := range items {
		var job brokerJob
		if err := json.Unmarshal([]byte(item), &job); err != nil {
			_ = b.client.LRem(ctx, b.processingKey, 1, item).Err()
			continue
		}
		exists, err := b.client.Exists(ctx, b.leaseKey(job.TaskID)).Result()
		if err != nil || exists > 0 {
			continue
		}
		if n, err := b.client.LRem(ctx, b.processingKey, 1, item).Result(); err == nil && n > 0 {
			b.log.Warn().Str("task_id", job.TaskID).Msg("reclaiming task with expired lease")
			_ = b.client.LPush(ctx, b.queueKey, item).Err()
		}
	}
}

func (b *Broker) jitter(ctx context.Context) {
	if b.JitterMax <= 0 {
		return
	}
	span := b.JitterMax - b.JitterMin
	wait := b.JitterMin
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
