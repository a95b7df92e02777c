package dispatcher

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/nakashima2toshio/qagen/internal/pipeline"
)

// progressInterval is the maximum gap between progress lines while the
// collector is active: at least one line is emitted every 5 seconds.
const progressInterval = 5 * time.Second

// pollInterval is the collector's polling cadence against the result
// store during the wait phase.
const pollInterval = 50 * time.Millisecond

// collect implements the two-phase collector protocol shared by every
// Dispatcher backend: a wait phase that polls the store until every task is
// terminal or timeout, followed by a drain phase that re-reads every
// terminal record directly from the store by id (authoritative, independent
// of whatever in-memory task objects the backend also holds).
func collect(ctx context.Context, store ResultStore, handle Handle, timeout time.Duration, log zerolog.Logger) (CollectResult, error) {
	timeout = clampTimeout(timeout)
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	n := len(handle.TaskIDs)
	lastProgress := time.Now()
	printProgress := func(completed int) {
		line := fmt.Sprintf("progress: completed=%d/%d", completed, n)
		fmt.Fprintln(os.Stdout, line)
		log.Info().Int("completed", completed).Int("total", n).Msg("collector progress")
		lastProgress = time.Now()
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

waitLoop:
	for {
		completed := countTerminal(ctx, store, handle.TaskIDs)
		if completed >= n {
			printProgress(completed)
			break waitLoop
		}
		if time.Since(lastProgress) >= progressInterval {
			printProgress(completed)
		}
		select {
		case <-waitCtx.Done():
			printProgress(completed)
			break waitLoop
		case <-ticker.C:
		}
	}

	// Drain phase: read every terminal record directly from the store by
	// id, independent of whatever the wait phase observed.
	var pairs []pipeline.QAPair
	diag := Diagnostics{Submitted: n}
	for _, id := range handle.TaskIDs {
		rec, ok, err := store.Get(ctx, id)
		if err != nil || !ok {
			diag.Error++
			diag.ErroredTaskIDs = append(diag.ErroredTaskIDs, id)
			continue
		}
		switch rec.Status {
		case pipeline.TaskSuccess:
			diag.Success++
			pairs = append(pairs, rec.Pairs...)
		case pipeline.TaskFailure:
			diag.Failure++
			diag.FailedChunkIDs = append(diag.FailedChunkIDs, rec.ChunkID)
		default:
			// Pending or running at drain time: never reached a terminal
			// state within the collector timeout.
			diag.Error++
			diag.ErroredTaskIDs = append(diag.ErroredTaskIDs, id)
		}
	}

	return CollectResult{Pairs: pairs, Diagnostics: diag}, nil
}

func countTerminal(ctx context.Context, store ResultStore, taskIDs []string) int {
	completed := 0
	for _, id := range taskIDs {
		rec, ok, err := store.Get(ctx, id)
		if err == nil && ok && rec.Status.Terminal() {
			completed++
		}
	}
	return completed
}

// clampTimeout keeps the collect timeout within a sensible interval (up to
// 30 minutes for large runs) while still allowing short timeouts for tests
// and small runs; only non-positive or absurdly long caller timeouts are
// clamped.
func clampTimeout(d time.Duration) time.Duration {
	const maxTimeout = 30 * time.Minute
	if d <= 0 {
		return 10 * time.Minute
	}
	if d > maxTimeout {
		return maxTimeout
	}
	return d
}
