package downloader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"igarchive/pkg/logger"
	"igarchive/pkg/ratelimit"
)

// MediaJob is one media file to download
type MediaJob struct {
	URL      string
	Filename string
	PostID   string
}

// MediaResult is the outcome of one download job
type MediaResult struct {
	Job      MediaJob
	Success  bool
	Skipped  bool
	Path     string
	Error    error
	Duration time.Duration
	Size     int
}

// MediaFetcher retrieves media bytes from a URL
type MediaFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// MediaStorage persists media files
type MediaStorage interface {
	IsDownloaded(filename string) bool
	Save(r io.Reader, filename string) (string, error)
}

// WorkerPool downloads media concurrently. A failed download surfaces
// in its result and never stops the other workers.
type WorkerPool struct {
	numWorkers  int
	jobQueue    chan MediaJob
	resultQueue chan MediaResult
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	fetcher     MediaFetcher
	storage     MediaStorage
	rateLimiter ratelimit.Limiter
	logger      logger.Logger
}

// NewWorkerPool creates a download pool with the given concurrency
func NewWorkerPool(
	numWorkers int,
	fetcher MediaFetcher,
	storage MediaStorage,
	rateLimiter ratelimit.Limiter,
	log logger.Logger,
) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())

	if log == nil {
		log = logger.GetLogger()
	}

	return &WorkerPool{
		numWorkers:  numWorkers,
		jobQueue:    make(chan MediaJob, numWorkers*2),
		resultQueue: make(chan MediaResult, numWorkers),
		ctx:         ctx,
		cancel:      cancel,
		fetcher:     fetcher,
		storage:     storage,
		rateLimiter: rateLimiter,
		logger:      log,
	}
}

// Start launches the workers
func (wp *WorkerPool) Start() {
	wp.logger.DebugWithFields("starting download pool", map[string]interface{}{
		"workers": wp.numWorkers,
	})

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop drains remaining jobs and shuts the pool down
func (wp *WorkerPool) Stop() {
	close(wp.jobQueue)
	wp.wg.Wait()
	close(wp.resultQueue)
	wp.cancel()
}

// Submit queues a download job
func (wp *WorkerPool) Submit(job MediaJob) error {
	select {
	case wp.jobQueue <- job:
		return nil
	case <-wp.ctx.Done():
		return fmt.Errorf("download pool is shutting down")
	}
}

// Results returns the channel download outcomes arrive on
func (wp *WorkerPool) Results() <-chan MediaResult {
	return wp.resultQueue
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for job := range wp.jobQueue {
		select {
		case <-wp.ctx.Done():
			return
		default:
		}

		result := wp.processJob(job, id)

		select {
		case wp.resultQueue <- result:
		case <-wp.ctx.Done():
			return
		}
	}
}

func (wp *WorkerPool) processJob(job MediaJob, workerID int) MediaResult {
	start := time.Now()
	result := MediaResult{Job: job}

	if wp.storage.IsDownloaded(job.Filename) {
		result.Success = true
		result.Skipped = true
		result.Duration = time.Since(start)
		return result
	}

	if wp.rateLimiter != nil && !wp.rateLimiter.Allow() {
		wp.rateLimiter.Wait()
	}

	data, err := wp.fetcher.Fetch(wp.ctx, job.URL)
	if err != nil {
		result.Error = fmt.Errorf("download failed: %w", err)
		result.Duration = time.Since(start)

		wp.logger.ErrorWithFields("media download failed", map[string]interface{}{
			"worker_id": workerID,
			"post_id":   job.PostID,
			"file":      job.Filename,
			"error":     err.Error(),
		})
		return result
	}

	result.Size = len(data)

	path, err := wp.storage.Save(bytes.NewReader(data), job.Filename)
	if err != nil {
		result.Error = fmt.Errorf("save failed: %w", err)
		result.Duration = time.Since(start)

		wp.logger.ErrorWithFields("media save failed", map[string]interface{}{
			"worker_id": workerID,
			"post_id":   job.PostID,
			"file":      job.Filename,
			"error":     err.Error(),
		})
		return result
	}

	result.Success = true
	result.Path = path
	result.Duration = time.Since(start)

	wp.logger.DebugWithFields("media downloaded", map[string]interface{}{
		"worker_id": workerID,
		"post_id":   job.PostID,
		"file":      job.Filename,
		"size":      result.Size,
	})

	return result
}
