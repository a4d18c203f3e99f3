package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat/internal/ingest"
)

// flakyProcessor fails a configurable number of times per document before
// succeeding, recording every attempt.
type flakyProcessor struct {
	mu           sync.Mutex
	failuresLeft map[string]int
	attempts     map[string]int
	block        time.Duration
}

func newFlakyProcessor() *flakyProcessor {
	return &flakyProcessor{
		failuresLeft: make(map[string]int),
		attempts:     make(map[string]int),
	}
}

func (f *flakyProcessor) Process(ctx context.Context, documentID string) ingest.Result {
	if f.block > 0 {
		select {
		case <-time.After(f.block):
		case <-ctx.Done():
			return ingest.Result{DocumentID: documentID, Status: ingest.StatusFailed, Err: ctx.Err()}
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts[documentID]++
	if f.failuresLeft[documentID] > 0 {
		f.failuresLeft[documentID]--
		return ingest.Result{DocumentID: documentID, Status: ingest.StatusFailed, Err: errors.New("transient failure")}
	}
	return ingest.Result{DocumentID: documentID, Status: ingest.StatusProcessed}
}

func (f *flakyProcessor) attemptCount(documentID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts[documentID]
}

func TestSubmitProcessesDocument(t *testing.T) {
	proc := newFlakyProcessor()
	pool, err := NewPool(proc, Options{PoolSize: 2, MaxRetries: 3, RetryBackoff: time.Millisecond})
	require.NoError(t, err)
	defer pool.Release()

	require.NoError(t, pool.Submit(context.Background(), "doc-1"))
	pool.Wait()
	assert.Equal(t, 1, proc.attemptCount("doc-1"))
}

func TestRetryUntilSuccess(t *testing.T) {
	proc := newFlakyProcessor()
	proc.failuresLeft["doc-1"] = 2
	pool, err := NewPool(proc, Options{PoolSize: 1, MaxRetries: 3, RetryBackoff: time.Millisecond})
	require.NoError(t, err)
	defer pool.Release()

	require.NoError(t, pool.Submit(context.Background(), "doc-1"))
	pool.Wait()
	// two failures, one success
	assert.Equal(t, 3, proc.attemptCount("doc-1"))
}

func TestRetriesExhausted(t *testing.T) {
	proc := newFlakyProcessor()
	proc.failuresLeft["doc-1"] = 100
	pool, err := NewPool(proc, Options{PoolSize: 1, MaxRetries: 2, RetryBackoff: time.Millisecond})
	require.NoError(t, err)
	defer pool.Release()

	require.NoError(t, pool.Submit(context.Background(), "doc-1"))
	pool.Wait()
	// MaxRetries + 1 attempts, then give up
	assert.Equal(t, 3, proc.attemptCount("doc-1"))
}

func TestFailuresAreIsolatedPerDocument(t *testing.T) {
	proc := newFlakyProcessor()
	proc.failuresLeft["bad"] = 100
	pool, err := NewPool(proc, Options{PoolSize: 2, MaxRetries: 1, RetryBackoff: time.Millisecond})
	require.NoError(t, err)
	defer pool.Release()

	ctx := context.Background()
	require.NoError(t, pool.Submit(ctx, "bad"))
	require.NoError(t, pool.Submit(ctx, "good"))
	pool.Wait()

	assert.Equal(t, 2, proc.attemptCount("bad"))
	assert.Equal(t, 1, proc.attemptCount("good"))
}

func TestCancelledContextStopsRetries(t *testing.T) {
	proc := newFlakyProcessor()
	proc.failuresLeft["doc-1"] = 100
	pool, err := NewPool(proc, Options{PoolSize: 1, MaxRetries: 10, RetryBackoff: time.Hour})
	require.NoError(t, err)
	defer pool.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, pool.Submit(ctx, "doc-1"))

	done := make(chan struct{})
	go func() {
		pool.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not drain after context cancellation")
	}
	assert.Equal(t, 1, proc.attemptCount("doc-1"))
}

func TestHardTimeLimitCancelsJob(t *testing.T) {
	proc := newFlakyProcessor()
	proc.block = time.Hour
	pool, err := NewPool(proc, Options{PoolSize: 1, MaxRetries: 0, HardTimeLimit: 10 * time.Millisecond})
	require.NoError(t, err)
	defer pool.Release()

	require.NoError(t, pool.Submit(context.Background(), "slow"))

	done := make(chan struct{})
	go func() {
		pool.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("hard time limit did not cancel the job")
	}
}
