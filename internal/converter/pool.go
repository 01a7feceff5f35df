package converter

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/harliandi/go-img2jpeg/pkg/metrics"
)

var (
	// ErrPoolBusy is returned when the worker pool is at capacity
	ErrPoolBusy = errors.New("worker pool is busy, please retry later")
)

// Job represents a conversion job. A Quality of 0 selects adaptive quality
// aiming at TargetSizeKB, or the converter's target when that is 0.
type Job struct {
	Data         []byte
	Scale        float64
	Quality      int
	TargetSizeKB int
	Result       chan<- Result
}

// Result represents the outcome of a conversion job
type Result struct {
	Data []byte
	Err  error
}

// WorkerPool runs conversion jobs on a fixed set of goroutines
type WorkerPool struct {
	converter *Converter
	jobs      chan Job
	workers   int
	wg        sync.WaitGroup
	once      sync.Once

	mu     sync.Mutex
	active int
}

// NewWorkerPool creates a new worker pool with the specified number of workers
func NewWorkerPool(workers int, c *Converter) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	return &WorkerPool{
		converter: c,
		jobs:      make(chan Job, workers*2), // Buffered channel
		workers:   workers,
	}
}

// Start starts the worker pool goroutines
func (p *WorkerPool) Start() {
	p.once.Do(func() {
		log.Printf("Starting worker pool with %d workers", p.workers)
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go p.worker(i)
		}
	})
}

// worker processes jobs from the job channel
func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()
	for job := range p.jobs {
		p.track(1)

		c := p.converter
		if job.TargetSizeKB > 0 {
			c = c.WithTargetSize(job.TargetSizeKB)
		}
		var result Result
		result.Data, result.Err = c.ConvertBytesScaled(job.Data, job.Scale, job.Quality)

		p.track(-1)

		// Send result (non-blocking in case receiver is gone)
		select {
		case job.Result <- result:
		default:
			log.Printf("Worker %d: result channel full or closed", id)
		}
	}
}

func (p *WorkerPool) track(delta int) {
	p.mu.Lock()
	p.active += delta
	active := p.active
	p.mu.Unlock()
	metrics.UpdateWorkerPoolMetrics(len(p.jobs), active)
}

// Submit submits a job to the worker pool with context cancellation support
// Returns ErrPoolBusy if the worker pool queue is full
func (p *WorkerPool) Submit(ctx context.Context, job Job) ([]byte, error) {
	// Start the pool if not already started
	p.Start()

	resultChan := make(chan Result, 1)
	job.Result = resultChan

	// If the queue is full, return ErrPoolBusy immediately
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case p.jobs <- job:
		// Job submitted, wait for result
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case result := <-resultChan:
			return result.Data, result.Err
		}
	default:
		// Queue is full, return busy error
		return nil, ErrPoolBusy
	}
}

// SubmitWithRetry submits a job to the worker pool with retry on busy
func (p *WorkerPool) SubmitWithRetry(ctx context.Context, job Job, maxRetries int) ([]byte, error) {
	lastErr := ErrPoolBusy
	for i := 0; i < maxRetries; i++ {
		result, err := p.Submit(ctx, job)
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, ErrPoolBusy) {
			return nil, err
		}
		lastErr = err

		// Wait a bit before retry (linear backoff)
		waitTime := time.Duration(i+1) * 10 * time.Millisecond
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(waitTime):
		}
	}
	return nil, lastErr
}

// Stop gracefully shuts down the worker pool
func (p *WorkerPool) Stop() {
	close(p.jobs)
	p.wg.Wait()
	log.Printf("Worker pool stopped")
}

// Stats returns current pool statistics
func (p *WorkerPool) Stats() (active, queued int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active, len(p.jobs)
}
