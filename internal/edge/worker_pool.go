package edge

import (
	"runtime"
	"sync"
)

// WorkerPool runs row-strip jobs for the detector on a fixed set of goroutines
type WorkerPool struct {
	workers  int
	jobQueue chan func()
	once     sync.Once
	mu       sync.RWMutex
	closed   bool
}

// NewWorkerPool creates a new worker pool with the specified number of workers
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	return &WorkerPool{
		workers:  workers,
		jobQueue: make(chan func(), workers*2),
	}
}

// Size returns the number of workers
func (wp *WorkerPool) Size() int {
	return wp.workers
}

// Start initializes and starts all workers in the pool
func (wp *WorkerPool) Start() {
	wp.once.Do(func() {
		for i := 0; i < wp.workers; i++ {
			go wp.worker()
		}
	})
}

// worker processes jobs from the job queue
func (wp *WorkerPool) worker() {
	for job := range wp.jobQueue {
		job()
	}
}

// Submit adds a job to the worker pool queue. After Close the job runs
// on the caller's goroutine.
func (wp *WorkerPool) Submit(job func()) {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	if wp.closed {
		job()
		return
	}
	wp.jobQueue <- job
}

// Run submits jobs and blocks until all of them have finished. Concurrent
// callers share the workers but only wait for their own jobs.
func (wp *WorkerPool) Run(jobs ...func()) {
	var wg sync.WaitGroup
	wg.Add(len(jobs))
	for _, job := range jobs {
		job := job
		wp.Submit(func() {
			defer wg.Done()
			job()
		})
	}
	wg.Wait()
}

// Close shuts down the worker pool. Jobs already queued still run.
func (wp *WorkerPool) Close() {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	if !wp.closed {
		wp.closed = true
		close(wp.jobQueue)
	}
}

// strips splits [0, height) into at most n contiguous row ranges
func strips(height, n int) [][2]int {
	if height <= 0 {
		return nil
	}
	if n <= 0 || n > height {
		n = height
	}
	rowsPer := (height + n - 1) / n // ceil division
	out := make([][2]int, 0, n)
	for start := 0; start < height; start += rowsPer {
		end := start + rowsPer
		if end > height {
			end = height
		}
		out = append(out, [2]int{start, end})
	}
	return out
}
