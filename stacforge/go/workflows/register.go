package workflows

import (
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
)

// Register attaches the orchestration and its activities to a worker.
func Register(w worker.Worker, a *Activities) {
	w.RegisterWorkflowWithOptions(GeoTemplateBulkTransform, workflow.RegisterOptions{Name: OrchestrationName})
	w.RegisterActivityWithOptions(a.FileCrawlActivity, activity.RegisterOptions{Name: FileCrawlActivityName})
	w.RegisterActivityWithOptions(a.IndexCrawlActivity, activity.RegisterOptions{Name: IndexCrawlActivityName})
	w.RegisterActivityWithOptions(a.TransformSceneActivity, activity.RegisterOptions{Name: TransformActivityName})
	w.RegisterActivityWithOptions(a.BuildCollectionActivity, activity.RegisterOptions{Name: CreateCollectionActivityName})
}
