package httpapi

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/opencouncil/docfind/internal/config"
	"github.com/opencouncil/docfind/internal/pipeline"
)

// ErrJobNotFound indicates an unknown job id.
var ErrJobNotFound = errors.New("job not found")

// TemporalJobs submits document pipelines to a Temporal cluster and maps
// their execution state to the external job status.
type TemporalJobs struct {
	client    client.Client
	taskQueue string
	logger    *zap.Logger
}

// NewTemporalJobs wraps a Temporal client for job submission and inspection.
func NewTemporalJobs(c client.Client, cfg config.PipelineConfig, logger *zap.Logger) *TemporalJobs {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TemporalJobs{client: c, taskQueue: cfg.TaskQueue, logger: logger}
}

// SubmitReprocess starts (or restarts) one document's pipeline workflow.
// The workflow id is derived from the document id, so resubmitting a running
// document is rejected by the cluster rather than duplicated.
func (t *TemporalJobs) SubmitReprocess(ctx context.Context, documentID uuid.UUID, sourcePath string, stage pipeline.Stage) (string, error) {
	opts := client.StartWorkflowOptions{
		ID:        fmt.Sprintf("docfind-pipeline-%s", documentID),
		TaskQueue: t.taskQueue,
	}

	run, err := t.client.ExecuteWorkflow(ctx, opts, pipeline.DocumentPipelineWorkflow, pipeline.DocumentParams{
		DocumentID: documentID,
		SourcePath: sourcePath,
		StartStage: stage,
	})
	if err != nil {
		return "", fmt.Errorf("starting pipeline workflow: %w", err)
	}

	t.logger.Info("pipeline job submitted",
		zap.String("document_id", documentID.String()),
		zap.String("workflow_id", run.GetID()),
		zap.String("start_stage", string(stage)))
	return run.GetID(), nil
}

// Status describes the workflow execution and, for running jobs, queries its
// progress handler.
func (t *TemporalJobs) Status(ctx context.Context, jobID string) (pipeline.JobStatus, error) {
	desc, err := t.client.DescribeWorkflowExecution(ctx, jobID, "")
	if err != nil {
		var notFound *serviceerror.NotFound
		if errors.As(err, &notFound) {
			return pipeline.JobStatus{}, ErrJobNotFound
		}
		return pipeline.JobStatus{}, fmt.Errorf("describing workflow: %w", err)
	}

	execStatus := desc.GetWorkflowExecutionInfo().GetStatus()

	var progress *pipeline.Progress
	resp, err := t.client.QueryWorkflow(ctx, jobID, "", pipeline.ProgressQuery)
	if err == nil {
		var p pipeline.Progress
		if err := resp.Get(&p); err == nil {
			progress = &p
		}
	}

	return pipeline.MapJobStatus(execStatus, progress), nil
}
