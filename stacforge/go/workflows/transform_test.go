package workflows

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"
	"go.temporal.io/sdk/workflow"

	"go.stacforge.org/infra/stacforge/go/crawling"
)

func newWorkflowEnv(t *testing.T) *testsuite.TestWorkflowEnvironment {
	ts := &testsuite.WorkflowTestSuite{}
	env := ts.NewTestWorkflowEnvironment()
	a := &Activities{}
	env.RegisterWorkflowWithOptions(GeoTemplateBulkTransform, workflow.RegisterOptions{Name: OrchestrationName})
	env.RegisterActivityWithOptions(a.FileCrawlActivity, activity.RegisterOptions{Name: FileCrawlActivityName})
	env.RegisterActivityWithOptions(a.IndexCrawlActivity, activity.RegisterOptions{Name: IndexCrawlActivityName})
	env.RegisterActivityWithOptions(a.TransformSceneActivity, activity.RegisterOptions{Name: TransformActivityName})
	env.RegisterActivityWithOptions(a.BuildCollectionActivity, activity.RegisterOptions{Name: CreateCollectionActivityName})
	return env
}

func fileInput() *OrchestrationInput {
	return &OrchestrationInput{
		CrawlingType:             CrawlingTypeFile,
		SourceStorageAccountName: "acct",
		SourceContainerName:      "scenes",
		TemplateURL:              "https://acct.blob.core.windows.net/templates/item.json",
		TargetCollectionID:       "my-collection",
	}
}

func workflowResult(t *testing.T, env *testsuite.TestWorkflowEnvironment) map[string]interface{} {
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	var result map[string]interface{}
	require.NoError(t, env.GetWorkflowResult(&result))
	return result
}

func customStatus(t *testing.T, env *testsuite.TestWorkflowEnvironment) string {
	value, err := env.QueryWorkflow(CustomStatusQuery)
	require.NoError(t, err)
	var status string
	require.NoError(t, value.Get(&status))
	return status
}

func TestBulkTransform_AllScenesSucceed(t *testing.T) {
	env := newWorkflowEnv(t)
	env.OnActivity(FileCrawlActivityName, mock.Anything, mock.Anything).
		Return([]crawling.Scene{"s1", "s2", "s3"}, nil).Once()
	env.OnActivity(TransformActivityName, mock.Anything, mock.Anything).
		Return(true, nil).Times(3)
	env.OnActivity(CreateCollectionActivityName, mock.Anything, mock.Anything).
		Return("https://acct.blob.core.windows.net/collections/id/collection.json", nil).Once()

	env.ExecuteWorkflow(OrchestrationName, fileInput())

	result := workflowResult(t, env)
	assert.Equal(t, "https://acct.blob.core.windows.net/collections/id/collection.json", result["collectionUrl"])
	assert.Equal(t, float64(3), result["totalItems"])
	assert.Equal(t, float64(3), result["successCount"])
	assert.Equal(t, float64(0), result["failedCount"])
	assert.Equal(t, StatusFinished, customStatus(t, env))
	env.AssertExpectations(t)
}

func TestBulkTransform_PartialFailures(t *testing.T) {
	env := newWorkflowEnv(t)
	env.OnActivity(FileCrawlActivityName, mock.Anything, mock.Anything).
		Return([]crawling.Scene{"s1", "s2", "s3"}, nil).Once()
	env.OnActivity(TransformActivityName, mock.Anything, mock.Anything).
		Return(true, nil).Once()
	env.OnActivity(TransformActivityName, mock.Anything, mock.Anything).
		Return(false, nil).Once()
	env.OnActivity(TransformActivityName, mock.Anything, mock.Anything).
		Return(true, nil).Once()
	env.OnActivity(CreateCollectionActivityName, mock.Anything, mock.Anything).
		Return("https://example/collection.json", nil).Once()

	env.ExecuteWorkflow(OrchestrationName, fileInput())

	result := workflowResult(t, env)
	assert.Equal(t, float64(3), result["totalItems"])
	assert.Equal(t, float64(2), result["successCount"])
	assert.Equal(t, float64(1), result["failedCount"])
	assert.Equal(t, StatusFinishedWithErrors, customStatus(t, env))
}

func TestBulkTransform_NoScenesFound(t *testing.T) {
	env := newWorkflowEnv(t)
	env.OnActivity(FileCrawlActivityName, mock.Anything, mock.Anything).
		Return([]crawling.Scene{}, nil).Once()

	env.ExecuteWorkflow(OrchestrationName, fileInput())

	result := workflowResult(t, env)
	assert.Empty(t, result)
	assert.Equal(t, StatusFinished, customStatus(t, env))
	env.AssertNotCalled(t, CreateCollectionActivityName, mock.Anything, mock.Anything)
}

func TestBulkTransform_AllTransformsFail(t *testing.T) {
	env := newWorkflowEnv(t)
	env.OnActivity(FileCrawlActivityName, mock.Anything, mock.Anything).
		Return([]crawling.Scene{"s1", "s2"}, nil).Once()
	env.OnActivity(TransformActivityName, mock.Anything, mock.Anything).
		Return(false, nil).Times(2)

	env.ExecuteWorkflow(OrchestrationName, fileInput())

	result := workflowResult(t, env)
	assert.Equal(t, "No scenes transformed", result["warning"])
	assert.Equal(t, StatusFinishedWithErrors, customStatus(t, env))
	env.AssertNotCalled(t, CreateCollectionActivityName, mock.Anything, mock.Anything)
}

func TestBulkTransform_CrawlFailure(t *testing.T) {
	env := newWorkflowEnv(t)
	env.OnActivity(FileCrawlActivityName, mock.Anything, mock.Anything).
		Return(nil, &crawling.Error{Message: "Error crawling files"}).Once()

	env.ExecuteWorkflow(OrchestrationName, fileInput())

	result := workflowResult(t, env)
	assert.Contains(t, result["error"], "Error crawling files")
	assert.Equal(t, StatusFailed, customStatus(t, env))
}

func TestBulkTransform_CollectionFailure(t *testing.T) {
	env := newWorkflowEnv(t)
	env.OnActivity(FileCrawlActivityName, mock.Anything, mock.Anything).
		Return([]crawling.Scene{"s1"}, nil).Once()
	env.OnActivity(TransformActivityName, mock.Anything, mock.Anything).
		Return(true, nil).Once()
	env.OnActivity(CreateCollectionActivityName, mock.Anything, mock.Anything).
		Return("", &TransformationError{Message: "Error creating collection"}).Once()

	env.ExecuteWorkflow(OrchestrationName, fileInput())

	result := workflowResult(t, env)
	assert.Contains(t, result["error"], "Error creating collection")
	assert.Equal(t, StatusFailed, customStatus(t, env))
}

func TestBulkTransform_InvalidInput(t *testing.T) {
	env := newWorkflowEnv(t)

	input := fileInput()
	input.CrawlingType = CrawlingTypeIndex
	env.ExecuteWorkflow(OrchestrationName, input)

	result := workflowResult(t, env)
	assert.Contains(t, result["error"], "index_file must be provided for index crawling")
	assert.Equal(t, StatusFailed, customStatus(t, env))
	env.AssertNotCalled(t, IndexCrawlActivityName, mock.Anything, mock.Anything)
}

func TestBulkTransform_IndexCrawl(t *testing.T) {
	env := newWorkflowEnv(t)
	env.OnActivity(IndexCrawlActivityName, mock.Anything, mock.Anything).
		Return([]crawling.Scene{"s1"}, nil).Once()
	env.OnActivity(TransformActivityName, mock.Anything, mock.Anything).
		Return(true, nil).Once()
	env.OnActivity(CreateCollectionActivityName, mock.Anything, mock.Anything).
		Return("https://example/collection.json", nil).Once()

	input := fileInput()
	input.CrawlingType = CrawlingTypeIndex
	indexFile := "index.txt"
	input.IndexFilePath = &indexFile
	env.ExecuteWorkflow(OrchestrationName, input)

	result := workflowResult(t, env)
	assert.Equal(t, float64(1), result["successCount"])
	env.AssertExpectations(t)
}

func TestCheckCrawlingOptions(t *testing.T) {
	input := fileInput()
	require.NoError(t, input.CheckCrawlingOptions())

	pattern := "*.tif"
	indexFile := "index.txt"

	input = fileInput()
	input.IndexFilePath = &indexFile
	require.Error(t, input.CheckCrawlingOptions())

	input = fileInput()
	input.CrawlingType = CrawlingTypeIndex
	require.Error(t, input.CheckCrawlingOptions())

	input.IndexFilePath = &indexFile
	require.NoError(t, input.CheckCrawlingOptions())

	input.Pattern = &pattern
	require.Error(t, input.CheckCrawlingOptions())
}

func TestIgnorePrefix(t *testing.T) {
	input := fileInput()
	assert.Equal(t, "#", input.IgnorePrefix())

	empty := ""
	input.IndexFileIgnoreLinesStartingWith = &empty
	assert.Equal(t, "", input.IgnorePrefix())
}

func TestFirstLine(t *testing.T) {
	assert.Equal(t, "first", firstLine("first\nsecond"))
	assert.Equal(t, "only", firstLine("only"))
	assert.Equal(t, "trimmed", firstLine("trimmed  \nrest"))
}
