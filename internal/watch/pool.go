package watch

import (
	"context"
	"sync"

	"grievedesk/internal/logging"

	"go.uber.org/zap"
)

// ProcessFunc turns a job into a result. It runs on a worker goroutine.
type ProcessFunc func(ctx context.Context, job Job) Result

// Worker represents a single worker in the notification pool.
//
// Lifecycle:
//  1. Start: Begin listening on jobs channel
//  2. Process: Run the pool's ProcessFunc
//  3. Result: Send result to results channel
//  4. Stop: Exit when jobs channel is closed
type Worker struct {
	id      int
	jobs    <-chan Job
	results chan<- Result
	process ProcessFunc
	ctx     context.Context
	logger  *zap.SugaredLogger
	wg      *sync.WaitGroup
}

// WorkerPool runs a fixed number of workers over a shared job queue.
//
// Configuration:
//   - Worker count: WORKER_POOL_SIZE (default: 4)
//   - Job buffer: 100
//   - Result buffer: 100
type WorkerPool struct {
	workers     []*Worker
	jobs        chan Job
	results     chan Result
	wg          sync.WaitGroup
	workerCount int
}

// NewWorkerPool starts workerCount workers. A count below one is raised to one.
//
// Parameters:
//   - ctx: Context handed to every ProcessFunc call
//   - workerCount: Number of concurrent workers
//   - process: What each worker does with a job
//   - logger: Worker lifecycle logging
func NewWorkerPool(ctx context.Context, workerCount int, process ProcessFunc, logger *zap.SugaredLogger) *WorkerPool {
	if workerCount < 1 {
		workerCount = 1
	}
	logger = logging.OrNop(logger)
	logger.Debugw("  → Creating worker pool", "workers", workerCount)

	pool := &WorkerPool{
		workers:     make([]*Worker, workerCount),
		jobs:        make(chan Job, 100),
		results:     make(chan Result, 100),
		workerCount: workerCount,
	}

	for i := 0; i < workerCount; i++ {
		worker := &Worker{
			id:      i + 1,
			jobs:    pool.jobs,
			results: pool.results,
			process: process,
			ctx:     ctx,
			logger:  logger,
			wg:      &pool.wg,
		}
		pool.workers[i] = worker
		pool.wg.Add(1)
		go worker.start()
	}

	return pool
}

// start processes jobs until the jobs channel closes. A failing job is
// reported in its result and the worker moves on.
func (w *Worker) start() {
	defer w.wg.Done()

	for job := range w.jobs {
		w.logger.Debugw("  Processing complaint", "worker", w.id, "ticket", job.Ticket)

		result := w.process(w.ctx, job)
		w.results <- result

		if result.Err != nil {
			w.logger.Warnw("  ✗ Failed to process complaint", "worker", w.id, "ticket", job.Ticket, "error", result.Err)
		} else {
			w.logger.Debugw("  ✓ Processed complaint", "worker", w.id, "ticket", job.Ticket)
		}
	}
}

// Submit queues a job, blocking while the buffer is full.
func (p *WorkerPool) Submit(job Job) {
	p.jobs <- job
}

// Close stops accepting jobs, waits for the workers and closes Results.
func (p *WorkerPool) Close() {
	close(p.jobs)
	p.wg.Wait()
	close(p.results)
}

// Results returns the results channel. It is closed by Close.
func (p *WorkerPool) Results() <-chan Result {
	return p.results
}

// Size is the number of workers.
func (p *WorkerPool) Size() int {
	return p.workerCount
}
