package pipeline

import (
	enumspb "go.temporal.io/api/enums/v1"
)

// JobState is the external state of a submitted pipeline job.
type JobState string

const (
	JobPending    JobState = "PENDING"
	JobStarted    JobState = "STARTED"
	JobInProgress JobState = "IN_PROGRESS"
	JobSuccess    JobState = "SUCCESS"
	JobFailure    JobState = "FAILURE"
	JobCanceled   JobState = "CANCELED"
)

// JobStatus is what job status queries return to API clients.
type JobStatus struct {
	State   JobState `json:"state"`
	Stage   Stage    `json:"stage,omitempty"`
	Percent int      `json:"percent,omitempty"`
}

// MapJobStatus translates a workflow execution status plus queried progress
// into the external job status. Progress only applies to running jobs that
// have advanced past the first stage.
func MapJobStatus(status enumspb.WorkflowExecutionStatus, progress *Progress) JobStatus {
	switch status {
	case enumspb.WORKFLOW_EXECUTION_STATUS_RUNNING:
		if progress == nil || progress.Percent == 0 {
			return JobStatus{State: JobStarted}
		}
		return JobStatus{State: JobInProgress, Stage: progress.Stage, Percent: progress.Percent}
	case enumspb.WORKFLOW_EXECUTION_STATUS_COMPLETED:
		return JobStatus{State: JobSuccess, Percent: 100}
	case enumspb.WORKFLOW_EXECUTION_STATUS_CANCELED:
		return JobStatus{State: JobCanceled}
	case enumspb.WORKFLOW_EXECUTION_STATUS_FAILED,
		enumspb.WORKFLOW_EXECUTION_STATUS_TERMINATED,
		enumspb.WORKFLOW_EXECUTION_STATUS_TIMED_OUT:
		return JobStatus{State: JobFailure}
	default:
		return JobStatus{State: JobPending}
	}
}
