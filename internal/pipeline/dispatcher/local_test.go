package dispatcher

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/nakashima2toshio/qagen/internal/pipeline"
	"github.com/nakashima2toshio/qagen/internal/pipeline/llmprovider"
)

func noJitter(d *Local) *Local {
	d.JitterMin = 0
	d.JitterMax = 0
	return d
}

func chunkRequests(n int) []llmprovider.ChunkRequest {
	reqs := make([]llmprovider.ChunkRequest, 0, n)
	for i := 0; i < n; i++ {
		c := pipeline.Chunk{
			ChunkID:    pipeline.DeriveChunkID("doc-1", i),
			DocID:      "doc-1",
			ChunkIndex: i,
			Text:       "distinct chunk text number " + string(rune('a'+i)),
		}
		reqs = append(reqs, llmprovider.ChunkRequest{Chunk: c, RequestedQA: 2})
	}
	return reqs
}

// TestLocal_WorkerFailureTolerance covers a task that fails transiently
// and then succeeds within the retry budget: it must still land as success
// with attempt_count <= 3.
func TestLocal_WorkerFailureTolerance(t *testing.T) {
	d := noJitter(NewLocal(2, NewMemoryResultStore(), zerolog.Nop()))
	defer d.Close()

	fake := llmprovider.NewFake(pipeline.ProviderGemini)
	fake.FailFirstN = 1

	reqs := chunkRequests(5)
	h, err := d.Submit(context.Background(), reqs, fake, "gemini")
	require.NoError(t, err)

	res, err := d.Collect(context.Background(), h, 5*time.Second)
	require.NoError(t, err)
	require.Equal(t, 5, res.Diagnostics.Submitted)
	require.Equal(t, 5, res.Diagnostics.Success)
	require.Equal(t, 0, res.Diagnostics.Failure)
	require.Equal(t, 0, res.Diagnostics.Error)
	require.Len(t, res.Pairs, 5*2)
}

// TestLocal_WorkerExhaustsRetries covers the complementary case: a task
// whose provider never succeeds terminates as failure, not as a hang, and
// never exceeds the retry budget.
func TestLocal_WorkerExhaustsRetries(t *testing.T) {
	d := noJitter(NewLocal(2, NewMemoryResultStore(), zerolog.Nop()))
	defer d.Close()

	fake := llmprovider.NewFake(pipeline.ProviderGemini)
	fake.FailFirstN = 99

	reqs := chunkRequests(3)
	h, err := d.Submit(context.Background(), reqs, fake, "gemini")
	require.NoError(t, err)

	res, err := d.Collect(context.Background(), h, 5*time.Second)
	require.NoError(t, err)
	require.Equal(t, 3, res.Diagnostics.Submitted)
	require.Equal(t, 0, res.Diagnostics.Success)
	require.Equal(t, 3, res.Diagnostics.Failure)
	require.Len(t, res.Diagnostics.FailedChunkIDs, 3)
}

// TestLocal_CollectorTimeout covers a task whose provider call hangs past
// the collector's timeout: it is reported as an error, not silently
// dropped, and submitted = success+failure+error.
func TestLocal_CollectorTimeout(t *testing.T) {
	d := noJitter(NewLocal(2, NewMemoryResultStore(), zerolog.Nop()))
	defer d.Close()

	fake := llmprovider.NewFake(pipeline.ProviderGemini)
	fake.Hang = true

	reqs := chunkRequests(2)
	h, err := d.Submit(context.Background(), reqs, fake, "gemini")
	require.NoError(t, err)

	res, err := d.Collect(context.Background(), h, 200*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, 2, res.Diagnostics.Submitted)
	require.Equal(t, 0, res.Diagnostics.Success)
	require.Equal(t, 0, res.Diagnostics.Failure)
	require.Equal(t, 2, res.Diagnostics.Error)
	require.Equal(t, res.Diagnostics.Submitted, res.Diagnostics.Success+res.Diagnostics.Failure+res.Diagnostics.Error)
}

func TestLocal_SubmittedEqualsSuccessPlusFailurePlusError(t *testing.T) {
	d := noJitter(NewLocal(3, NewMemoryResultStore(), zerolog.Nop()))
	defer d.Close()

	fake := llmprovider.NewFake(pipeline.ProviderGemini)
	fake.FailFirstN = 2 // first two structured calls per chunk fail, within the 3-attempt budget

	reqs := chunkRequests(4)
	h, err := d.Submit(context.Background(), reqs, fake, "gemini")
	require.NoError(t, err)

	res, err := d.Collect(context.Background(), h, 5*time.Second)
	require.NoError(t, err)
	require.Equal(t, res.Diagnostics.Submitted, res.Diagnostics.Success+res.Diagnostics.Failure+res.Diagnostics.Error)
}
