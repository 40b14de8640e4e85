package pipeline

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/opencouncil/docfind/internal/store"
)

// ProgressQuery is the query name exposing a running workflow's progress.
const ProgressQuery = "progress"

// Progress is the queryable state of a running document pipeline.
type Progress struct {
	Stage   Stage
	Percent int
}

// stagePercent maps the start of each stage to a coarse completion figure.
var stagePercent = map[Stage]int{
	StageExtract: 10,
	StageSegment: 40,
	StageEmbed:   70,
}

// DocumentPipelineWorkflow processes one document end to end:
// extract, optional transcript summarization, segment+enrich, embed.
//
// The document row tracks every status transition. On any failure the row
// is marked failed through a disconnected context so the mark survives
// workflow cancellation.
func DocumentPipelineWorkflow(ctx workflow.Context, params DocumentParams) (*DocumentResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("starting document pipeline",
		"document_id", params.DocumentID.String(),
		"start_stage", string(params.StartStage))

	progress := Progress{Stage: StageExtract}
	if err := workflow.SetQueryHandler(ctx, ProgressQuery, func() (Progress, error) {
		return progress, nil
	}); err != nil {
		return nil, err
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		HeartbeatTimeout:    time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	var a *Activities
	result := &DocumentResult{DocumentID: params.DocumentID}
	stage := params.StartStage
	if stage == "" {
		stage = StageExtract
	}

	advance := func(s Stage) {
		progress = Progress{Stage: s, Percent: stagePercent[s]}
	}

	if stage != StageEmbed {
		advance(StageExtract)

		var text string
		err := workflow.ExecuteActivity(ctx, a.ExtractText, ExtractInput{
			DocumentID: params.DocumentID,
			SourcePath: params.SourcePath,
		}).Get(ctx, &text)
		if err != nil {
			return result, failDocument(ctx, params.DocumentID, "extract", err)
		}

		hints := params.Hints
		if params.Summarize && len(hints.Decisions) == 0 {
			var summary SummarizeOutput
			err := workflow.ExecuteActivity(ctx, a.SummarizeTranscript, SummarizeInput{
				DocumentID: params.DocumentID,
				Text:       text,
			}).Get(ctx, &summary)
			if err != nil {
				// Summarization is an enhancement; proceed without it.
				logger.Warn("transcript summarization activity failed", "error", err)
			} else {
				hints.Decisions = summary.Decisions
			}
		}

		advance(StageSegment)

		var seg SegmentOutput
		err = workflow.ExecuteActivity(ctx, a.SegmentDocument, SegmentInput{
			DocumentID: params.DocumentID,
			Text:       text,
			Hints:      hints,
		}).Get(ctx, &seg)
		if err != nil {
			return result, failDocument(ctx, params.DocumentID, "segment", err)
		}
		result.Parents = seg.Parents
		result.Children = seg.Children
	}

	advance(StageEmbed)

	var emb EmbedOutput
	err := workflow.ExecuteActivity(ctx, a.EmbedDocument, EmbedInput{
		DocumentID: params.DocumentID,
	}).Get(ctx, &emb)
	if err != nil {
		return result, failDocument(ctx, params.DocumentID, "embed", err)
	}
	result.Embedded = emb.Embedded
	result.FailedChunks = emb.Failed

	if emb.Failed > 0 {
		err := fmt.Errorf("%d chunks failed to embed", emb.Failed)
		return result, failDocument(ctx, params.DocumentID, "embed", err)
	}

	if err := workflow.ExecuteActivity(ctx, a.SetDocumentStatus, params.DocumentID, store.StatusReady).Get(ctx, nil); err != nil {
		return result, failDocument(ctx, params.DocumentID, "finalize", err)
	}

	progress = Progress{Stage: StageEmbed, Percent: 100}
	logger.Info("document pipeline complete",
		"document_id", params.DocumentID.String(),
		"parents", result.Parents,
		"children", result.Children,
		"embedded", result.Embedded)
	return result, nil
}

// failDocument marks the document row failed through a disconnected context
// so the transition lands even when the workflow itself is being canceled.
func failDocument(ctx workflow.Context, documentID uuid.UUID, stage string, cause error) error {
	dctx, cancel := workflow.NewDisconnectedContext(ctx)
	defer cancel()

	var a *Activities
	if err := workflow.ExecuteActivity(dctx, a.SetDocumentStatus, documentID, store.StatusFailed).Get(dctx, nil); err != nil {
		workflow.GetLogger(ctx).Error("failed to mark document failed",
			"document_id", documentID.String(), "error", err)
	}
	return fmt.Errorf("%s stage failed: %w", stage, cause)
}
