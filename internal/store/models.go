// Package store contains the job registry layer for meetscribe.
package store

import (
	"time"

	"meetscribe/pkg/api"
)

// JobState represents the lifecycle state of a job.
type JobState string

const (
	JobStatePending  JobState = "PENDING"
	JobStateRunning  JobState = "RUNNING"
	JobStateComplete JobState = "COMPLETE"
	JobStateError    JobState = "ERROR"
)

// IsTerminal reports whether no further transitions are allowed from s.
func (s JobState) IsTerminal() bool {
	return s == JobStateComplete || s == JobStateError
}

// Result holds the artifacts of a completed job.
type Result struct {
	Transcript string
	Summary    string
	Sentiment  api.SentimentReport
}

// Job is the lifecycle record of one submitted file.
// Result is set only when State is COMPLETE, Error only when State is ERROR.
type Job struct {
	ID        string
	State     JobState
	Progress  int
	Message   string
	CreatedAt time.Time
	UpdatedAt time.Time
	Result    *Result
	Error     string
}

// NewJob returns a PENDING job created at now.
func NewJob(id string, now time.Time) *Job {
	return &Job{
		ID:        id,
		State:     JobStatePending,
		Progress:  0,
		Message:   "Job started",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Report records a progress update and moves a PENDING job to RUNNING.
// Progress never decreases: a lower value keeps the current one but still
// updates the message.
func (j *Job) Report(progress int, message string) error {
	if j.State.IsTerminal() {
		return ErrTerminal
	}

	progress = clampProgress(progress)
	if progress > j.Progress {
		j.Progress = progress
	}
	j.Message = message
	j.State = JobStateRunning
	return nil
}

// Complete moves the job to COMPLETE with the given result.
func (j *Job) Complete(result Result, message string) error {
	if j.State.IsTerminal() {
		return ErrTerminal
	}

	j.State = JobStateComplete
	j.Progress = 100
	j.Message = message
	j.Result = &result
	j.Error = ""
	return nil
}

// Fail moves the job to ERROR. errMsg must be non-empty.
func (j *Job) Fail(errMsg, message string) error {
	if j.State.IsTerminal() {
		return ErrTerminal
	}
	if errMsg == "" {
		errMsg = "unknown error"
	}

	j.State = JobStateError
	j.Message = message
	j.Error = errMsg
	j.Result = nil
	return nil
}

// Clone returns a deep copy that shares no memory with j.
func (j *Job) Clone() Job {
	c := *j
	if j.Result != nil {
		r := *j.Result
		c.Result = &r
	}
	return c
}

func clampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
