// Package queue is the in-process hand-off between upload handlers and the
// worker pool: bounded, FIFO, single-delivery.
package queue

import (
	"context"
	"errors"

	"imagehub/internal/metrics"
	"imagehub/internal/models"
)

// ErrQueueFull is returned by Submit when the queue is at capacity. The
// caller surfaces it as a retryable error instead of blocking the upload.
var ErrQueueFull = errors.New("job queue is full")

type Queue struct {
	jobs chan models.Job
}

func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 64
	}
	return &Queue{jobs: make(chan models.Job, capacity)}
}

// Submit enqueues a job without blocking the caller.
func (q *Queue) Submit(job models.Job) error {
	select {
	case q.jobs <- job:
		metrics.QueueDepth.Inc()
		return nil
	default:
		return ErrQueueFull
	}
}

// Take blocks until a job is available or ctx is done. Each job is
// delivered to exactly one caller.
func (q *Queue) Take(ctx context.Context) (models.Job, error) {
	select {
	case job := <-q.jobs:
		metrics.QueueDepth.Dec()
		return job, nil
	case <-ctx.Done():
		return models.Job{}, ctx.Err()
	}
}

func (q *Queue) Len() int {
	return len(q.jobs)
}
