package work

import (
	"sync"
	"time"

	"github.com/aristath/lottoscan/internal/scan"
)

// Status is the lifecycle state of a job.
type Status string

const (
	// StatusPending means the job waits for an admission slot
	StatusPending Status = "pending"
	// StatusRunning means the scan is in progress
	StatusRunning Status = "running"
	// StatusCompleted means no assigned block is left
	StatusCompleted Status = "completed"
	// StatusInterrupted means the scan stopped on timeout or signal
	StatusInterrupted Status = "interrupted"
	// StatusFailed means the scan ended with an error
	StatusFailed Status = "failed"
)

// Job is one analysis run.
type Job struct {
	ID    string
	Name  string
	Key   string
	Async bool
	Scan  *scan.Orchestrator

	progress *ProgressReporter

	mu         sync.RWMutex
	status     Status
	startedAt  time.Time
	finishedAt time.Time
	err        error
}

// Info is the JSON view of a job.
type Info struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	Key        string       `json:"key"`
	Async      bool         `json:"async"`
	Status     Status       `json:"status"`
	StartedAt  time.Time    `json:"started_at,omitempty"`
	FinishedAt time.Time    `json:"finished_at,omitempty"`
	Error      string       `json:"error,omitempty"`
	Summary    scan.Summary `json:"summary"`
}

// Status returns the current job status.
func (j *Job) Status() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.status == "" {
		return StatusPending
	}
	return j.status
}

// Err returns the error the job failed with, if any.
func (j *Job) Err() error {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.err
}

// Info returns a snapshot of the job.
func (j *Job) Info() Info {
	j.mu.RLock()
	info := Info{
		ID:         j.ID,
		Name:       j.Name,
		Key:        j.Key,
		Async:      j.Async,
		Status:     j.status,
		StartedAt:  j.startedAt,
		FinishedAt: j.finishedAt,
	}
	if j.err != nil {
		info.Error = j.err.Error()
	}
	j.mu.RUnlock()

	if info.Status == "" {
		info.Status = StatusPending
	}
	info.Summary = j.Scan.Summary()
	return info
}

func (j *Job) start(now time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = StatusRunning
	j.startedAt = now
}

func (j *Job) finish(status Status, err error, now time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = status
	j.err = err
	j.finishedAt = now
}
