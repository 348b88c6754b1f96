package worker

import (
	"context"
	"time"

	"github.com/google/uuid"

	"sql-console/internal/exporter"
	"sql-console/internal/resultstore"
	"sql-console/internal/storage"
)

type JobStatus string

const (
	StatusPending    JobStatus = "PENDING"
	StatusProcessing JobStatus = "PROCESSING"
	StatusCompleted  JobStatus = "COMPLETED"
	StatusFailed     JobStatus = "FAILED"
)

// ArchiveJob re-encodes a stored result into the export archive.
type ArchiveJob struct {
	ID string
	// Key is where the file lands in the archive provider.
	Key     string
	Format  exporter.Format
	Options exporter.Options
	// Handle is read-only and shared with the request that queued the job.
	Handle *resultstore.Handle

	Submitted time.Time
	Started   time.Time
	Finished  time.Time
	Status    JobStatus
	Error     error
	Stats     *exporter.ExportResult

	// Context manages the lifecycle/cancellation of the job.
	Ctx    context.Context
	Cancel context.CancelFunc
}

func NewArchiveJob(h *resultstore.Handle, format exporter.Format, opts exporter.Options, filename string, timeout time.Duration) *ArchiveJob {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	return &ArchiveJob{
		ID:        uuid.NewString(),
		Key:       storage.ExportKey(h.ID, filename),
		Format:    format,
		Options:   opts,
		Handle:    h,
		Submitted: time.Now(),
		Status:    StatusPending,
		Ctx:       ctx,
		Cancel:    cancel,
	}
}
