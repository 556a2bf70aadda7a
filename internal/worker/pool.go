package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"imagehub/internal/models"
	"imagehub/internal/queue"
)

// Processor runs the pipeline for one dequeued job. Fail exists so the pool
// can record a terminal failure when processing panics.
type Processor interface {
	Process(ctx context.Context, job models.Job)
	Fail(ctx context.Context, imageID int64, message string)
}

// Pool is a fixed set of workers draining a single shared queue.
type Pool struct {
	queue *queue.Queue
	proc  Processor
	size  int
	wg    sync.WaitGroup
}

func NewPool(q *queue.Queue, proc Processor, size int) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{queue: q, proc: proc, size: size}
}

func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
	slog.Info("worker pool started", "workers", p.size)
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		job, err := p.queue.Take(ctx)
		if err != nil {
			slog.Info("worker stopping", "worker", id)
			return
		}
		p.run(ctx, id, job)
	}
}

// run isolates one job so a panic cannot take the worker down; the record
// still reaches a terminal status.
func (p *Pool) run(ctx context.Context, id int, job models.Job) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic while processing image",
				"worker", id, "image_id", job.ImageID, "panic", r)
			p.proc.Fail(ctx, job.ImageID, fmt.Sprintf("internal error: %v", r))
		}
	}()
	p.proc.Process(ctx, job)
}

// Wait blocks until all workers have exited after their context ends.
func (p *Pool) Wait() {
	p.wg.Wait()
}
