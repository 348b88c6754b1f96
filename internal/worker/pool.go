package worker

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"sql-console/internal/exporter"
	"sql-console/internal/storage"
)

// Pool archives exports in the background so downloads never wait on the
// archive provider. A separate semaphore bounds concurrent uploads.
type Pool struct {
	// jobQueue buffers archive requests before workers pick them up.
	jobQueue chan *ArchiveJob
	workers  int
	// uploadSem restricts the number of concurrent uploads.
	uploadSem *semaphore.Weighted
	wg        sync.WaitGroup
	quit      chan struct{}
	stopOnce  sync.Once

	storage storage.Provider
	// done, when set, observes every finished job. Tests use it.
	done func(*ArchiveJob)
}

// NewPool initializes a worker pool. Call Start to begin processing.
func NewPool(workers int, maxUploads int64, store storage.Provider) *Pool {
	return &Pool{
		jobQueue:  make(chan *ArchiveJob, 100), // Bounded buffer
		workers:   workers,
		uploadSem: semaphore.NewWeighted(maxUploads),
		quit:      make(chan struct{}),
		storage:   store,
	}
}

func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.workerLoop(i)
	}
	slog.Info("Archive pool started", "workers", p.workers)
}

// Submit queues a job. It returns false when the queue is full or the pool
// is stopping; the job is then dropped and its context released.
func (p *Pool) Submit(job *ArchiveJob) bool {
	select {
	case <-p.quit:
		job.Cancel()
		return false
	default:
	}
	select {
	case p.jobQueue <- job:
		return true
	default:
		// Queue full
		job.Cancel()
		return false
	}
}

// Stop initiates graceful shutdown. Queued jobs not yet picked up are dropped.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		close(p.quit)
		p.wg.Wait()
		slog.Info("Archive pool stopped")
	})
}

func (p *Pool) workerLoop(id int) {
	defer p.wg.Done()
	slog.Debug("Worker started", "worker_id", id)

	for {
		select {
		case job := <-p.jobQueue:
			p.processJob(id, job)
		case <-p.quit:
			return
		}
	}
}

func (p *Pool) processJob(workerID int, job *ArchiveJob) {
	defer job.Cancel()
	slog.Debug("Processing archive job", "worker_id", workerID, "job_id", job.ID, "key", job.Key)

	job.Started = time.Now()
	job.Status = StatusProcessing

	if err := p.uploadSem.Acquire(job.Ctx, 1); err != nil {
		p.finish(job, fmt.Errorf("failed to acquire upload slot: %w", err))
		return
	}
	err := p.executeArchive(job)
	p.uploadSem.Release(1)
	p.finish(job, err)
}

func (p *Pool) finish(job *ArchiveJob, err error) {
	job.Finished = time.Now()
	if err != nil {
		job.Status = StatusFailed
		job.Error = err
		slog.Error("Archive job failed", "job_id", job.ID, "key", job.Key, "error", err)
	} else {
		job.Status = StatusCompleted
		slog.Info("Export archived", "job_id", job.ID, "key", job.Key,
			"rows", job.Stats.RowsProcessed, "wait", job.Started.Sub(job.Submitted),
			"duration", job.Finished.Sub(job.Started))
	}
	if p.done != nil {
		p.done(job)
	}
}

func (p *Pool) executeArchive(job *ArchiveJob) error {
	// The provider reads from its end while the encoder writes.
	w, errChan := p.storage.StreamToFile(job.Ctx, job.Key)
	if w == nil {
		return <-errChan
	}

	enc, err := exporter.NewEncoder(job.Format, w, job.Options)
	if err != nil {
		_ = w.Close()
		<-errChan
		return err
	}

	stats, streamErr := exporter.StreamResult(job.Ctx, job.Handle, enc)
	closeErr := enc.Close()
	if err := w.Close(); err != nil && streamErr == nil {
		streamErr = err
	}
	uploadErr := <-errChan

	switch {
	case streamErr != nil:
		return fmt.Errorf("encode: %w", streamErr)
	case closeErr != nil:
		return fmt.Errorf("close encoder: %w", closeErr)
	case uploadErr != nil:
		return uploadErr
	}
	job.Stats = stats
	return nil
}
