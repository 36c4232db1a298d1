package workflows

import (
	"strings"

	"go.temporal.io/sdk/workflow"

	"go.stacforge.org/infra/go/sferr"
	"go.stacforge.org/infra/stacforge/go/crawling"
)

// Orchestration custom status values, readable through the customStatus
// query while the workflow runs.
const (
	StatusInitializing       = "Initializing"
	StatusCrawling           = "Crawling"
	StatusTransforming       = "Transforming"
	StatusCreatingCollection = "CreatingCollection"
	StatusFinished           = "Finished"
	StatusFinishedWithErrors = "FinishedWithErrors"
	StatusFailed             = "Failed"
)

// CustomStatusQuery is the query name exposing the orchestration status.
const CustomStatusQuery = "customStatus"

// GeoTemplateBulkTransform crawls a source container for scenes, transforms
// each one to a STAC item through the template, and builds a temporary
// collection from the surviving items. Failures never fail the workflow run:
// the result map carries either the outcome counts, a warning, or the first
// line of the fatal error.
func GeoTemplateBulkTransform(ctx workflow.Context, input *OrchestrationInput) (map[string]interface{}, error) {
	logger := workflow.GetLogger(ctx)
	status := StatusInitializing
	if err := workflow.SetQueryHandler(ctx, CustomStatusQuery, func() (string, error) {
		return status, nil
	}); err != nil {
		return nil, err
	}

	orchestrationID := workflow.GetInfo(ctx).WorkflowExecution.ID
	logger.Info("Starting orchestration", "orchestrationId", orchestrationID)

	fail := func(err error) (map[string]interface{}, error) {
		logger.Error("Error running orchestration", "orchestrationId", orchestrationID, "error", err)
		status = StatusFailed
		return map[string]interface{}{
			"error": firstLine(err.Error()),
		}, nil
	}

	if input == nil {
		return fail(sferr.Fmt("No input provided"))
	}
	if err := input.CheckCrawlingOptions(); err != nil {
		return fail(err)
	}

	ac := ActivityContext{
		OrchestrationID:   orchestrationID,
		OrchestrationName: OrchestrationName,
	}

	crawlCtx := workflow.WithActivityOptions(ctx, crawlActivityOptions)
	var crawl workflow.Future
	switch input.CrawlingType {
	case CrawlingTypeFile:
		crawl = workflow.ExecuteActivity(crawlCtx, FileCrawlActivityName, &FileCrawlInput{
			ActivityContext:    ac,
			StorageAccountName: input.SourceStorageAccountName,
			ContainerName:      input.SourceContainerName,
			Pattern:            input.Pattern,
		})
	case CrawlingTypeIndex:
		crawl = workflow.ExecuteActivity(crawlCtx, IndexCrawlActivityName, &IndexCrawlInput{
			ActivityContext:         ac,
			StorageAccountName:      input.SourceStorageAccountName,
			ContainerName:           input.SourceContainerName,
			IndexFile:               *input.IndexFilePath,
			IsNDJSON:                input.IndexFileIsNDJSON,
			IgnoreLinesStartingWith: input.IgnorePrefix(),
		})
	default:
		return fail(sferr.Fmt("Crawling type %q is not implemented", input.CrawlingType))
	}

	status = StatusCrawling
	logger.Info("Crawling scenes")
	var scenes []crawling.Scene
	if err := crawl.Get(ctx, &scenes); err != nil {
		return fail(err)
	}
	if len(scenes) == 0 {
		logger.Warn("No scenes found")
		status = StatusFinished
		return map[string]interface{}{}, nil
	}
	logger.Info("Found scenes", "count", len(scenes))

	status = StatusTransforming
	logger.Info("Transforming scenes to STAC items", "count", len(scenes))
	transformCtx := workflow.WithActivityOptions(ctx, transformActivityOptions)
	itemsPath := orchestrationID + "/items"
	futures := make([]workflow.Future, 0, len(scenes))
	for _, scene := range scenes {
		futures = append(futures, workflow.ExecuteActivity(transformCtx, TransformActivityName, &TransformInput{
			ActivityContext: ac,
			Scene:           scene,
			TemplateURL:     input.TemplateURL,
			ItemsPath:       itemsPath,
			Validate:        input.Validate,
		}))
	}

	successCount := 0
	failedCount := 0
	for _, future := range futures {
		var ok bool
		if err := future.Get(ctx, &ok); err != nil {
			return fail(err)
		}
		if ok {
			successCount++
		} else {
			failedCount++
		}
	}
	if failedCount > 0 {
		logger.Warn("Items failed to transform", "count", failedCount)
	}
	if successCount == 0 {
		if failedCount == 0 {
			status = StatusFinished
		} else {
			status = StatusFinishedWithErrors
		}
		return map[string]interface{}{
			"warning": "No scenes transformed",
		}, nil
	}
	logger.Info("Transformed scenes to STAC items", "count", successCount)

	status = StatusCreatingCollection
	logger.Info("Creating a collection", "itemCount", successCount)
	collectionCtx := workflow.WithActivityOptions(ctx, collectionActivityOptions)
	var collectionURL string
	err := workflow.ExecuteActivity(collectionCtx, CreateCollectionActivityName, &CreateCollectionInput{
		ActivityContext: ac,
		BaseDir:         orchestrationID,
	}).Get(ctx, &collectionURL)
	if err != nil {
		return fail(err)
	}
	logger.Info("Collection created", "collectionUrl", collectionURL)

	if failedCount == 0 {
		status = StatusFinished
	} else {
		status = StatusFinishedWithErrors
	}
	return map[string]interface{}{
		"collectionUrl": collectionURL,
		"totalItems":    len(scenes),
		"successCount":  successCount,
		"failedCount":   failedCount,
	}, nil
}

// firstLine trims an error message down to its first line.
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimRight(s, " \t\r")
}
