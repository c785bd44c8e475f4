package scheduler

import (
	"time"

	"github.com/google/uuid"
	applending "github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/application/lending"
)

// JobStatus represents the status of a sweep job
type JobStatus string

const (
	JobStatusPending JobStatus = "PENDING"
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusSuccess JobStatus = "SUCCESS"
	JobStatusFailed  JobStatus = "FAILED"
)

// Job is one run of the daily delinquency sweep for a business date
type Job struct {
	ID          uuid.UUID
	AsOf        time.Time
	Status      JobStatus
	Error       string
	StartedAt   *time.Time
	CompletedAt *time.Time
	RetryCount  int
	MaxRetries  int
	Summary     *applending.SweepSummary
}

// NewJob creates a pending job for asOf
func NewJob(asOf time.Time, maxRetries int) *Job {
	return &Job{
		ID:         uuid.New(),
		AsOf:       asOf,
		Status:     JobStatusPending,
		MaxRetries: maxRetries,
	}
}

// Start marks the job as running
func (j *Job) Start(now time.Time) {
	j.Status = JobStatusRunning
	j.StartedAt = &now
	j.Error = ""
}

// Complete marks the job as successful
func (j *Job) Complete(now time.Time) {
	j.Status = JobStatusSuccess
	j.CompletedAt = &now
}

// Fail marks the job as failed
func (j *Job) Fail(now time.Time, err string) {
	j.Status = JobStatusFailed
	j.CompletedAt = &now
	j.Error = err
}

// ShouldRetry returns true if the job failed and has retries left
func (j *Job) ShouldRetry() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

// ScheduleRetry returns the job to pending for another attempt
func (j *Job) ScheduleRetry() {
	j.RetryCount++
	j.Status = JobStatusPending
	j.Error = ""
}
