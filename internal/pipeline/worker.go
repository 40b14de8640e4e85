package pipeline

import (
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/opencouncil/docfind/internal/config"
)

// NewWorker builds a Temporal worker with the pipeline workflows and
// activities registered.
func NewWorker(c client.Client, cfg config.PipelineConfig, acts *Activities) worker.Worker {
	w := worker.New(c, cfg.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize: cfg.MaxConcurrency,
	})
	Register(w, acts)
	return w
}

// Register registers the pipeline workflows and activities on a worker.
func Register(w worker.Worker, acts *Activities) {
	w.RegisterWorkflow(DocumentPipelineWorkflow)
	w.RegisterWorkflow(FolderIngestWorkflow)
	w.RegisterActivity(acts)
}
