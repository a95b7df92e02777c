//go:build enterprise
// +build enterprise

package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	kafka "github.com/segmentio/kafka-go"
	"github.com/rs/zerolog"

	"github.com/nakashima2toshio/qagen/internal/orchestrator"
	"github.com/nakashima2toshio/qagen/internal/pipeline"
	"github.com/nakashima2toshio/qagen/internal/pipeline/llmprovider"
)

// Kafka is a Kafka-backed Dispatcher: one topic carries job messages, a
// consumer group of workerCount readers drains it, and a ResultStore holds
// terminal records exactly as the Local and Broker backends do. Grounded
// on internal/orchestrator/kafka.go's StartKafkaConsumer loop (reader
// fetch -> worker channel -> commit-after-handle), generalized from
// command/response envelopes to brokerJob/TaskRecord. Gated behind the same
// "enterprise" build tag as internal/orchestrator/kafka_admin.go since it is an
// optional, heavier dependency than the default local/broker dispatchers.
type Kafka struct {
	writer      *kafka.Writer
	topic       string
	groupID     string
	brokers     []string
	store       ResultStore
	workerCount int
	log         zerolog.Logger
	provider    llmprovider.Provider

	// BatchSize is how many fetched messages a worker groups into one
	// llmprovider call (§4.5/§4.6's "batching is per-call within a worker").
	BatchSize int

	JitterMin time.Duration
	JitterMax time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// WithBatchSize sets how many fetched messages a worker groups into one
// llmprovider call; n is clamped to at least 1.
func (k *Kafka) WithBatchSize(n int) *Kafka {
	if n < 1 {
		n = 1
	}
	k.BatchSize = n
	return k
}

// NewKafka verifies the brokers are reachable and the job topic exists
// (creating it with one partition per worker if not), using
// internal/orchestrator/kafka_admin.go's CheckBrokers/EnsureTopics helpers,
// then starts workerCount readers in the same consumer group so each job
// message is delivered to exactly one worker.
func NewKafka(ctx context.Context, brokers []string, topic, groupID string, workerCount int, store ResultStore, provider llmprovider.Provider, log zerolog.Logger) (*Kafka, error) {
	if err := orchestrator.CheckBrokers(ctx, brokers, 10*time.Second); err != nil {
		return nil, fmt.Errorf("dispatcher: kafka brokers unreachable: %w", err)
	}
	if err := orchestrator.EnsureTopics(ctx, brokers, []kafka.TopicConfig{
		{Topic: topic, NumPartitions: workerCount, ReplicationFactor: 1},
	}); err != nil {
		return nil, fmt.Errorf("dispatcher: kafka ensure topic: %w", err)
	}

	k := &Kafka{
		writer:      &kafka.Writer{Addr: kafka.TCP(brokers...), Topic: topic, Balancer: &kafka.LeastBytes{}},
		topic:       topic,
		groupID:     groupID,
		brokers:     brokers,
		store:       store,
		workerCount: workerCount,
		log:         log,
		provider:    provider,
		BatchSize:   1,
		JitterMin:   0,
		JitterMax:   300 * time.Millisecond,
	}
	workerCtx, cancel := context.WithCancel(context.Background())
	k.cancel = cancel
	k.wg.Add(workerCount)
	for i := 0; i < workerCount; i++ {
		go func(id int) {
			defer k.wg.Done()
			k.worker(workerCtx, id)
		}(i)
	}
	return k, nil
}

func (k *Kafka) Submit(ctx context.Context, reqs []llmprovider.ChunkRequest, provider llmprovider.Provider, providerTag string) (Handle, error) {
	ids := make([]string, 0, len(reqs))
	for _, req := range reqs {
		taskID := uuid.NewString()
		if err := k.store.Put(ctx, TaskRecord{
			TaskID: taskID, ChunkID: req.Chunk.ChunkID, DocID: req.Chunk.DocID,
			ChunkIndex: req.Chunk.ChunkIndex, Status: pipeline.TaskPending,
		}); err != nil {
			return Handle{}, fmt.Errorf("dispatcher: kafka put initial record: %w", err)
		}
		payload, err := json.Marshal(brokerJob{TaskID: taskID, Chunk: req.Chunk, RequestedQA: req.RequestedQA, ProviderTag: providerTag, ModelHint: req.ModelHint})
		if err != nil {
			return Handle{}, fmt.Errorf("dispatcher: kafka marshal job: %w", err)
		}
		if err := k.writer.WriteMessages(ctx, kafka.Message{Key: []byte(taskID), Value: payload}); err != nil {
			return Handle{}, fmt.Errorf("dispatcher: kafka write message: %w", err)
		}
		ids = append(ids, taskID)
	}
	return Handle{TaskIDs: ids}, nil
}

func (k *Kafka) Collect(ctx context.Context, h Handle, timeout time.Duration) (CollectResult, error) {
	return collect(ctx, k.store, h, timeout, k.log)
}

func (k *Kafka) Close() error {
	k.cancel()
	k.wg.Wait()
	return k.writer.Close()
}

// worker reads messages from the partition(s) assigned to it by the
// consumer group and groups up to BatchSize of them into one llmprovider
// call. After the first (blocking) fetch, it drains up to BatchSize-1 more
// messages with a short bounded wait so a worker never stalls the whole
// batch waiting for more to arrive; it commits every fetched message only
// after the whole batch's terminal records are written, so an uncommitted
// batch is redelivered to another consumer in the group on worker loss.
func (k *Kafka) worker(ctx context.Context, id int) {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  k.brokers,
		GroupID:  k.groupID,
		Topic:    k.topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	defer reader.Close()

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			k.log.Warn().Err(err).Int("worker", id).Msg("kafka fetch error")
			continue
		}
		var first brokerJob
		if err := json.Unmarshal(msg.Value, &first); err != nil {
			k.log.Error().Err(err).Msg("kafka job decode failed, dropping message")
			_ = reader.CommitMessages(ctx, msg)
			continue
		}

		msgs := []kafka.Message{msg}
		jobs := []brokerJob{first}
		for len(jobs) < k.BatchSize {
			fetchCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
			m2, err := reader.FetchMessage(fetchCtx)
			cancel()
			if err != nil {
				break
			}
			var j2 brokerJob
			if err := json.Unmarshal(m2.Value, &j2); err != nil {
				k.log.Error().Err(err).Msg("kafka job decode failed, dropping message")
				_ = reader.CommitMessages(ctx, m2)
				continue
			}
			msgs = append(msgs, m2)
			jobs = append(jobs, j2)
		}

		k.runBatch(ctx, jobs)
		if err := reader.CommitMessages(ctx, msgs...); err != nil {
			k.log.Warn().Err(err).Msg("kafka commit failed")
		}
	}
}

// runBatch executes one LLM call for every job in the batch together,
// distributing the returned pairs back to each job's own task per §4.5's
// batching distribution rule. It retries the whole batch, not per-chunk,
// up to three times with exponential back-off.
func (k *Kafka) runBatch(ctx context.Context, jobs []brokerJob) {
	k.jitter(ctx)
	if ctx.Err() != nil {
		return
	}

	reqs := make([]llmprovider.ChunkRequest, len(jobs))
	requested := make([]int, len(jobs))
	for i, j := range jobs {
		reqs[i] = llmprovider.ChunkRequest{Chunk: j.Chunk, RequestedQA: j.RequestedQA, ModelHint: j.ModelHint}
		requested[i] = j.RequestedQA
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		for _, j := range jobs {
			_ = k.store.Put(ctx, TaskRecord{
				TaskID: j.TaskID, ChunkID: j.Chunk.ChunkID, DocID: j.Chunk.DocID,
				ChunkIndex: j.Chunk.ChunkIndex, Status: pipeline.TaskRunning, AttemptCount: attempt,
			})
		}

		prompt := llmprovider.BuildPrompt(reqs)
		res, err := llmprovider.GenerateWithFallback(ctx, k.provider, prompt, jobs[0].ModelHint)
		if err == nil {
			grouped := llmprovider.DistributeBatch(res.QAPairs, requested)
			for i, j := range jobs {
				pairs := toQAPairs(llmprovider.QAResult{QAPairs: grouped[i]}, j.Chunk, j.ProviderTag)
				_ = k.store.Put(ctx, TaskRecord{
					TaskID: j.TaskID, ChunkID: j.Chunk.ChunkID, DocID: j.Chunk.DocID,
					ChunkIndex: j.Chunk.ChunkIndex, Status: pipeline.TaskSuccess, AttemptCount: attempt, Pairs: pairs,
				})
			}
			return
		}
		lastErr = err
		if ctx.Err() != nil {
			return
		}
		if attempt < maxAttempts {
			backoff := time.Duration(200*(1<<uint(attempt-1))) * time.Millisecond
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
		_ = k.store.Put(ctx, TaskRecord{
			TaskID: j.TaskID, ChunkID: j.Chunk.ChunkID, DocID: j.Chunk.DocID,
			ChunkIndex: j.Chunk.ChunkIndex, Status: pipeline.TaskFailure, AttemptCount: maxAttempts, Error: lastErr.Error(),
		})
	}
}

func (k *Kafka) jitter(ctx context.Context) {
	if k.JitterMax <= 0 {
		return
	}
	span := k.JitterMax - k.JitterMin
	wait := k.JitterMin
	if span > 0 {
		wait += time.Duration(rand.Int63n(int64(span)))
	}
	if wait <= 0 {
		return
	}
	timer := time.NewTimer(wait)
	select {
	case <-timer.C:
	case <-ctx.Done():
		timer.Stop()
	}
}
