package pipeline

import (
	"fmt"

	"go.temporal.io/sdk/workflow"
)

// FolderIngestWorkflow fans out one child document pipeline per entry,
// running at most MaxParallel children at a time. A failed document is
// recorded and does not stop the rest of the folder.
func FolderIngestWorkflow(ctx workflow.Context, params FolderParams) (*FolderResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("starting folder ingestion", "documents", len(params.Documents))

	parallel := params.MaxParallel
	if parallel <= 0 {
		parallel = 4
	}

	result := &FolderResult{}

	for start := 0; start < len(params.Documents); start += parallel {
		end := start + parallel
		if end > len(params.Documents) {
			end = len(params.Documents)
		}
		window := params.Documents[start:end]

		futures := make([]workflow.ChildWorkflowFuture, len(window))
		for i, doc := range window {
			opts := workflow.ChildWorkflowOptions{
				WorkflowID: fmt.Sprintf("docfind-pipeline-%s", doc.DocumentID),
			}
			cctx := workflow.WithChildOptions(ctx, opts)
			futures[i] = workflow.ExecuteChildWorkflow(cctx, DocumentPipelineWorkflow, DocumentParams{
				DocumentID: doc.DocumentID,
				SourcePath: doc.SourcePath,
				Hints:      doc.Hints,
				Summarize:  doc.Summarize,
			})
		}

		for i, future := range futures {
			var docResult DocumentResult
			if err := future.Get(ctx, &docResult); err != nil {
				logger.Warn("document pipeline failed",
					"document_id", window[i].DocumentID.String(), "error", err)
				result.Failed = append(result.Failed, window[i].DocumentID)
				continue
			}
			result.Succeeded = append(result.Succeeded, window[i].DocumentID)
		}
	}

	logger.Info("folder ingestion complete",
		"succeeded", len(result.Succeeded), "failed", len(result.Failed))
	return result, nil
}
