package jobmanager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"quercus/engine"
)

// JobID is a unique identifier for a job
type JobID int64

// JobStatus represents the current status of a job
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusCancelled JobStatus = "cancelled"
)

// Done reports whether the status is final
func (s JobStatus) Done() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Task evaluates one request. It must return when ctx is cancelled.
type Task func(ctx context.Context) (*engine.Result, error)

// Job is one evaluation request run by the manager
type Job struct {
	ID        JobID
	Status    JobStatus
	File      string         // Program file the request evaluates
	Result    *engine.Result // Partial when Error is a request-fatal error
	Error     error
	StartTime time.Time
	EndTime   time.Time // Zero while queued or running
	cancel    context.CancelFunc
	done      chan struct{}
	mu        sync.RWMutex
}

// NewJob creates a queued job for file
func NewJob(id JobID, file string) *Job {
	return &Job{
		ID:     id,
		Status: StatusQueued,
		File:   file,
		done:   make(chan struct{}),
	}
}

// GetStatus returns the current status of the job
func (j *Job) GetStatus() JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

func (j *Job) start(cancel context.CancelFunc) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.Status != StatusQueued {
		return false
	}
	j.Status = StatusRunning
	j.StartTime = time.Now()
	j.cancel = cancel
	return true
}

// finish records the outcome. A job cancelled while running keeps its
// cancelled status and the partial result.
func (j *Job) finish(res *engine.Result, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Result = res
	if j.Status == StatusCancelled {
		if j.Error == nil {
			j.Error = err
		}
		return
	}
	j.Error = err
	j.Status = StatusCompleted
	if err != nil {
		j.Status = StatusFailed
	}
	j.EndTime = time.Now()
	close(j.done)
}

// markCancelled reports false when the job had already finished
func (j *Job) markCancelled() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.Status.Done() {
		return false
	}
	queued := j.Status == StatusQueued
	j.Status = StatusCancelled
	j.Error = context.Canceled
	j.EndTime = time.Now()
	if j.cancel != nil {
		j.cancel()
	}
	close(j.done)
	if queued {
		j.StartTime = j.EndTime
	}
	return true
}

// GetResult returns the result of the job
func (j *Job) GetResult() *engine.Result {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Result
}

// GetError returns the error of the job
func (j *Job) GetError() error {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Error
}

// Done is closed once the job reaches a final status
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// SetEndTime sets the end time of the job (for testing purposes)
func (j *Job) SetEndTime(endTime time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.EndTime = endTime
}

// GetDuration returns the duration of the job
func (j *Job) GetDuration() time.Duration {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.duration()
}

func (j *Job) duration() time.Duration {
	switch {
	case j.StartTime.IsZero():
		return 0
	case j.EndTime.IsZero():
		return time.Since(j.StartTime)
	}
	return j.EndTime.Sub(j.StartTime)
}

// ToMap returns a map representation of the job for serialization
func (j *Job) ToMap() map[string]interface{} {
	j.mu.RLock()
	defer j.mu.RUnlock()

	result := map[string]interface{}{
		"id":     j.ID,
		"status": j.Status,
		"file":   j.File,
	}
	if !j.StartTime.IsZero() {
		result["start_time"] = j.StartTime.Format(time.RFC3339)
	}
	if !j.EndTime.IsZero() {
		result["end_time"] = j.EndTime.Format(time.RFC3339)
		result["duration"] = j.duration().String()
	}
	if j.Result != nil {
		if n := j.Result.ConfigurationCount(); n.IsInt64() {
			result["configurations"] = int(n.Int64())
		} else {
			result["configurations"] = n.String()
		}
		if j.Result.Diagnostics != nil {
			result["diagnostics"] = j.Result.Diagnostics.Len()
		}
	}
	if j.Error != nil {
		result["error"] = j.Error.Error()
	}
	return result
}

// String returns a string representation of the job
func (j *Job) String() string {
	j.mu.RLock()
	defer j.mu.RUnlock()

	duration := string(j.Status)
	if !j.EndTime.IsZero() {
		duration = j.duration().String()
	}
	return fmt.Sprintf("Job[%d] %s - %s (%s)", j.ID, j.File, j.Status, duration)
}
