package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	enumspb "go.temporal.io/api/enums/v1"
)

func TestMapJobStatus(t *testing.T) {
	tests := []struct {
		name     string
		status   enumspb.WorkflowExecutionStatus
		progress *Progress
		want     JobStatus
	}{
		{
			name:   "running without progress",
			status: enumspb.WORKFLOW_EXECUTION_STATUS_RUNNING,
			want:   JobStatus{State: JobStarted},
		},
		{
			name:     "running with progress",
			status:   enumspb.WORKFLOW_EXECUTION_STATUS_RUNNING,
			progress: &Progress{Stage: StageEmbed, Percent: 70},
			want:     JobStatus{State: JobInProgress, Stage: StageEmbed, Percent: 70},
		},
		{
			name:   "completed",
			status: enumspb.WORKFLOW_EXECUTION_STATUS_COMPLETED,
			want:   JobStatus{State: JobSuccess, Percent: 100},
		},
		{
			name:   "canceled",
			status: enumspb.WORKFLOW_EXECUTION_STATUS_CANCELED,
			want:   JobStatus{State: JobCanceled},
		},
		{
			name:   "failed",
			status: enumspb.WORKFLOW_EXECUTION_STATUS_FAILED,
			want:   JobStatus{State: JobFailure},
		},
		{
			name:   "terminated maps to failure",
			status: enumspb.WORKFLOW_EXECUTION_STATUS_TERMINATED,
			want:   JobStatus{State: JobFailure},
		},
		{
			name:   "unspecified maps to pending",
			status: enumspb.WORKFLOW_EXECUTION_STATUS_UNSPECIFIED,
			want:   JobStatus{State: JobPending},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MapJobStatus(tt.status, tt.progress))
		})
	}
}
