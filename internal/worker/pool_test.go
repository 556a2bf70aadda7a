package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imagehub/internal/models"
	"imagehub/internal/queue"
)

type recordingProcessor struct {
	mu        sync.Mutex
	processed []int64
	failed    map[int64]string
	panicOn   int64
}

func newRecordingProcessor() *recordingProcessor {
	return &recordingProcessor{failed: make(map[int64]string)}
}

func (r *recordingProcessor) Process(_ context.Context, job models.Job) {
	if r.panicOn != 0 && job.ImageID == r.panicOn {
		panic("kaboom")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.processed = append(r.processed, job.ImageID)
}

func (r *recordingProcessor) Fail(_ context.Context, imageID int64, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed[imageID] = message
}

func (r *recordingProcessor) processedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.processed)
}

func (r *recordingProcessor) failedMessage(id int64) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failed[id]
}

func TestPoolProcessesAllJobs(t *testing.T) {
	q := queue.New(10)
	proc := newRecordingProcessor()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := NewPool(q, proc, 3)
	pool.Start(ctx)

	for i := int64(1); i <= 5; i++ {
		require.NoError(t, q.Submit(models.Job{ImageID: i}))
	}

	assert.Eventually(t, func() bool {
		return proc.processedCount() == 5
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	pool.Wait()
}

func TestPoolSurvivesPanic(t *testing.T) {
	q := queue.New(10)
	proc := newRecordingProcessor()
	proc.panicOn = 1

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// One worker, so the panicking job and the good one share a goroutine.
	pool := NewPool(q, proc, 1)
	pool.Start(ctx)

	require.NoError(t, q.Submit(models.Job{ImageID: 1}))
	require.NoError(t, q.Submit(models.Job{ImageID: 2}))

	assert.Eventually(t, func() bool {
		return proc.processedCount() == 1 && proc.failedMessage(1) != ""
	}, 2*time.Second, 10*time.Millisecond)

	assert.Contains(t, proc.failedMessage(1), "internal error")

	cancel()
	pool.Wait()
}

func TestPoolStopsOnCancel(t *testing.T) {
	q := queue.New(1)
	proc := newRecordingProcessor()

	ctx, cancel := context.WithCancel(context.Background())
	pool := NewPool(q, proc, 2)
	pool.Start(ctx)

	cancel()

	done := make(chan struct{})
	go func() {
		pool.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pool did not stop after context cancellation")
	}
}
