package jobmanager

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"quercus/errors"
	"quercus/logging"
)

// ErrShutdown is returned by Submit once the manager is shutting down
var ErrShutdown = stderrors.New("job manager is shutting down")

// JobManager runs evaluation requests concurrently. Requests share nothing
// but the engine's process-wide runtime caches.
type JobManager struct {
	jobs       map[JobID]*Job
	mu         sync.RWMutex
	semaphore  chan struct{} // Concurrency limit
	nextID     JobID
	closed     bool
	notifyChan chan JobNotification
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	logger     logging.Logger
}

// JobNotification represents a notification about a job status change
type JobNotification struct {
	JobID  JobID
	File   string
	Status JobStatus
	Error  error
}

// NewJobManager creates a new JobManager with the specified concurrency limit
func NewJobManager(concurrencyLimit int, logger logging.Logger) *JobManager {
	if concurrencyLimit < 1 {
		concurrencyLimit = 1
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &JobManager{
		jobs:       make(map[JobID]*Job),
		semaphore:  make(chan struct{}, concurrencyLimit),
		nextID:     1,
		notifyChan: make(chan JobNotification, 100),
		ctx:        ctx,
		cancel:     cancel,
		logger:     logger.WithComponent("jobs"),
	}
}

// Submit queues task for file and returns its ID. The task starts once a
// slot is free.
func (jm *JobManager) Submit(file string, task Task) (JobID, error) {
	jm.mu.Lock()
	if jm.closed {
		jm.mu.Unlock()
		return 0, ErrShutdown
	}
	id := jm.nextID
	jm.nextID++
	job := NewJob(id, file)
	jm.jobs[id] = job
	jm.wg.Add(1)
	jm.mu.Unlock()

	go jm.executeJob(job, task)
	return id, nil
}

func (jm *JobManager) executeJob(job *Job, task Task) {
	defer jm.wg.Done()

	select {
	case jm.semaphore <- struct{}{}:
	case <-job.Done():
		jm.notify(job)
		return
	case <-jm.ctx.Done():
		job.markCancelled()
		jm.notify(job)
		return
	}
	defer func() { <-jm.semaphore }()

	ctx, cancel := context.WithCancel(jm.ctx)
	defer cancel()
	if !job.start(cancel) {
		jm.notify(job)
		return
	}
	requestID := fmt.Sprintf("job-%d", job.ID)
	ctx = context.WithValue(ctx, errors.RequestIDKey, requestID)
	logger := jm.logger.WithRequest(requestID)
	logger.Debug("job started", logging.StringField("file", job.File))

	res, err := task(ctx)
	job.finish(res, err)

	logger.Debug("job finished",
		logging.StringField("status", string(job.GetStatus())),
		logging.DurationField("duration", job.GetDuration()))
	jm.notify(job)
}

// notify drops the notification when nobody drains the channel
func (jm *JobManager) notify(job *Job) {
	select {
	case jm.notifyChan <- JobNotification{JobID: job.ID, File: job.File, Status: job.GetStatus(), Error: job.GetError()}:
	default:
	}
}

// GetJobStatus returns the status of a specific job
func (jm *JobManager) GetJobStatus(id JobID) (JobStatus, error) {
	job, err := jm.GetJob(id)
	if err != nil {
		return "", err
	}
	return job.GetStatus(), nil
}

// GetJob returns a specific job
func (jm *JobManager) GetJob(id JobID) (*Job, error) {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	job, exists := jm.jobs[id]
	if !exists {
		return nil, fmt.Errorf("job with ID %d not found", id)
	}
	return job, nil
}

// ListJobs returns all jobs ordered by ID
func (jm *JobManager) ListJobs() []*Job {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	jobs := make([]*Job, 0, len(jm.jobs))
	for _, job := range jm.jobs {
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(i, k int) bool { return jobs[i].ID < jobs[k].ID })
	return jobs
}

// Wait blocks until every job submitted so far is final or ctx is done
func (jm *JobManager) Wait(ctx context.Context) error {
	for _, job := range jm.ListJobs() {
		select {
		case <-job.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// RunBatch submits one task per file, waits for all of them and returns the
// jobs in the order of files
func (jm *JobManager) RunBatch(ctx context.Context, files []string, task func(file string) Task) ([]*Job, error) {
	jobs := make([]*Job, 0, len(files))
	for _, file := range files {
		id, err := jm.Submit(file, task(file))
		if err != nil {
			return jobs, err
		}
		job, _ := jm.GetJob(id)
		jobs = append(jobs, job)
	}
	for _, job := range jobs {
		select {
		case <-job.Done():
		case <-ctx.Done():
			for _, j := range jobs {
				j.markCancelled()
			}
			return jobs, ctx.Err()
		}
	}
	return jobs, nil
}

// GetNotificationChannel returns the channel for job notifications
func (jm *JobManager) GetNotificationChannel() <-chan JobNotification {
	return jm.notifyChan
}

// Shutdown cancels queued and running jobs and waits for them to return
func (jm *JobManager) Shutdown() {
	jm.mu.Lock()
	if jm.closed {
		jm.mu.Unlock()
		return
	}
	jm.closed = true
	jm.mu.Unlock()

	jm.cancel()
	jm.wg.Wait()
	close(jm.notifyChan)
}

// GetRunningJobsCount returns the number of currently running jobs
func (jm *JobManager) GetRunningJobsCount() int {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	count := 0
	for _, job := range jm.jobs {
		if job.GetStatus() == StatusRunning {
			count++
		}
	}
	return count
}

// GetConcurrencyLimit returns the concurrency limit
func (jm *JobManager) GetConcurrencyLimit() int {
	return cap(jm.semaphore)
}

// CancelJob cancels a queued or running job. A running evaluation stops at
// its next call boundary or loop iteration.
func (jm *JobManager) CancelJob(id JobID) error {
	job, err := jm.GetJob(id)
	if err != nil {
		return err
	}
	if !job.markCancelled() {
		return fmt.Errorf("job %d is not running (status: %s)", id, job.GetStatus())
	}
	jm.logger.Debug("job cancelled", logging.IntField("job", int(id)))
	return nil
}

// CleanCompletedJobs removes final jobs that ended before olderThan ago
func (jm *JobManager) CleanCompletedJobs(olderThan time.Duration) int {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for id, job := range jm.jobs {
		job.mu.RLock()
		stale := job.Status.Done() && job.EndTime.Before(cutoff)
		job.mu.RUnlock()
		if stale {
			delete(jm.jobs, id)
			removed++
		}
	}
	return removed
}
