package analysis

import (
	"sync"

	"github.com/google/uuid"

	"clara-backend/internal/llm"
)

// SourceKind says where a job's items come from.
type SourceKind string

const (
	SourceBibliographic SourceKind = "bibliographic"
	SourceDocument      SourceKind = "document"
)

// Job statuses. Transitions are monotonic:
// pending -> running -> completed | failed.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// FileRef points at an uploaded document on disk.
type FileRef struct {
	Name string
	Path string
}

// Job describes one batch analysis request. It is immutable once started.
type Job struct {
	ID          string
	Kind        SourceKind
	Query       string
	MaxResults  int
	UseFullText bool
	Files       []FileRef
	UseOCR      bool
	Language    string
	Provider    llm.Provider
	Model       string
}

// NewJob fills in an ID if the caller did not set one.
func NewJob(job Job) Job {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	return job
}

// SourceItem is one unit of work: an identifier plus normalized plain
// text ready for the model. Never mutated after creation.
type SourceItem struct {
	Identifier string
	Content    string
	Kind       SourceKind
}

// Progress is an atomic snapshot of a job's state.
type Progress struct {
	Status         string `json:"status"`
	CompletedCount int    `json:"completedCount"`
	TotalCount     int    `json:"totalCount"`
}

// JobHandle is the observable side of a running job. A single writer
// (the orchestration loop) updates it; any number of pollers may read
// snapshots without blocking the writer for long.
type JobHandle struct {
	ID string

	mu       sync.RWMutex
	progress Progress
	records  []Record
	err      error
	finished bool
	done     chan struct{}
}

func newJobHandle(jobID string) *JobHandle {
	return &JobHandle{
		ID:       jobID,
		progress: Progress{Status: StatusPending},
		done:     make(chan struct{}),
	}
}

// Poll returns the current progress snapshot.
func (h *JobHandle) Poll() Progress {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.progress
}

// Done is closed when the job reaches a terminal status.
func (h *JobHandle) Done() <-chan struct{} {
	return h.done
}

// Collect blocks until the job finishes and returns its records in item
// order, or the job-level error if the run failed before any item.
func (h *JobHandle) Collect() ([]Record, error) {
	<-h.done
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.err != nil {
		return nil, h.err
	}
	out := make([]Record, len(h.records))
	copy(out, h.records)
	return out, nil
}

func (h *JobHandle) setRunning(total int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.progress.Status = StatusRunning
	h.progress.TotalCount = total
}

func (h *JobHandle) setTotal(total int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.progress.TotalCount = total
}

func (h *JobHandle) appendRecord(rec Record) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, rec)
	h.progress.CompletedCount++
}

// complete and fail are idempotent; only the first terminal transition
// takes effect.
func (h *JobHandle) complete() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.finished {
		return
	}
	h.finished = true
	h.progress.Status = StatusCompleted
	close(h.done)
}

func (h *JobHandle) fail(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.finished {
		return
	}
	h.finished = true
	h.progress.Status = StatusFailed
	h.err = err
	close(h.done)
}
