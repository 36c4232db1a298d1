package workflows

import (
	"context"
	"encoding/json"
	"path"

	"go.temporal.io/sdk/activity"

	"go.stacforge.org/infra/go/blob"
	"go.stacforge.org/infra/go/sferr"
	"go.stacforge.org/infra/go/sflog/scopedlogging"
	"go.stacforge.org/infra/go/sflog/sflogimpl"
	"go.stacforge.org/infra/go/timer"
	"go.stacforge.org/infra/stacforge/go/config"
	"go.stacforge.org/infra/stacforge/go/crawling"
	"go.stacforge.org/infra/stacforge/go/engine"
	"go.stacforge.org/infra/stacforge/go/stac"
)

// Activities implements the orchestration's activities. The constructor
// fields are swappable so tests can substitute in-memory blob clients.
type Activities struct {
	// NewSourceClient returns a read-only client for a scene container.
	NewSourceClient func(account, container string) (blob.Client, error)
	// NewDataClient returns a client for the container items and collections
	// are written to.
	NewDataClient func() (blob.Client, error)
	// Env compiles and caches templates.
	Env *engine.Environment
}

// NewActivities wires Activities against the configured environment.
func NewActivities() (*Activities, error) {
	cld, err := config.GetCloud("")
	if err != nil {
		return nil, err
	}
	cred, err := config.Credential()
	if err != nil {
		return nil, err
	}
	return &Activities{
		NewSourceClient: func(account, container string) (blob.Client, error) {
			return blob.New(account, container, cld.StorageSuffix, cred, true)
		},
		NewDataClient: func() (blob.Client, error) {
			account, err := config.DataStorageAccount()
			if err != nil {
				return nil, err
			}
			return blob.New(account, config.DataContainer(), cld.StorageSuffix, cred, false)
		},
		Env: engine.NewEnvironment(nil),
	}, nil
}

// scoped stamps the context with the correlation fields every activity logs
// under.
func scoped(ctx context.Context, ac ActivityContext, activityName string) context.Context {
	return scopedlogging.WithScope(ctx, sflogimpl.Fields{
		"orchestration_id":   ac.OrchestrationID,
		"orchestration_name": ac.OrchestrationName,
		"activity_name":      activityName,
		"activity_id":        activityID(ctx),
	})
}

// activityID returns the Temporal activity id, or "" outside an activity.
func activityID(ctx context.Context) string {
	if !activity.IsActivity(ctx) {
		return ""
	}
	return activity.GetInfo(ctx).ActivityID
}

// FileCrawlActivity lists the source container and returns the matching blob
// URLs as scenes.
func (a *Activities) FileCrawlActivity(ctx context.Context, input *FileCrawlInput) ([]crawling.Scene, error) {
	ctx = scoped(ctx, input.ActivityContext, FileCrawlActivityName)
	scopedlogging.Infof(ctx, "Starting file crawling for container %s at %s", input.ContainerName, input.StorageAccountName)

	client, err := a.NewSourceClient(input.StorageAccountName, input.ContainerName)
	if err != nil {
		scopedlogging.Errorf(ctx, "Error creating source client: %s", err)
		return nil, &crawling.Error{Message: "Error crawling files"}
	}
	pattern := ""
	if input.Pattern != nil {
		pattern = *input.Pattern
	}
	crawler := &crawling.FileCrawler{
		Client:  client,
		Pattern: pattern,
	}
	return crawler.Crawl(ctx)
}

// IndexCrawlActivity reads the index blob and returns its entries as scenes.
func (a *Activities) IndexCrawlActivity(ctx context.Context, input *IndexCrawlInput) ([]crawling.Scene, error) {
	ctx = scoped(ctx, input.ActivityContext, IndexCrawlActivityName)
	scopedlogging.Infof(ctx, "Starting index crawling for file %s in container %s at %s", input.IndexFile, input.ContainerName, input.StorageAccountName)

	client, err := a.NewSourceClient(input.StorageAccountName, input.ContainerName)
	if err != nil {
		scopedlogging.Errorf(ctx, "Error creating source client: %s", err)
		return nil, &crawling.Error{Message: "Error crawling index"}
	}
	crawler := &crawling.IndexCrawler{
		Client:       client,
		IndexFile:    input.IndexFile,
		IgnorePrefix: input.IgnoreLinesStartingWith,
		NDJSON:       input.IsNDJSON,
	}
	return crawler.Crawl(ctx)
}

// TransformSceneActivity renders one scene through the template and uploads
// the resulting item. Failures are reported through the boolean result, never
// as an activity error, so one bad scene does not fail the orchestration.
func (a *Activities) TransformSceneActivity(ctx context.Context, input *TransformInput) (bool, error) {
	ctx = scoped(ctx, input.ActivityContext, TransformActivityName)
	scopedlogging.Infof(ctx, "Received scene %v", input.Scene)

	scopedlogging.Infof(ctx, "Retrieving template from %s", input.TemplateURL)
	template, err := a.Env.GeoTemplateFromStorage(ctx, input.TemplateURL)
	if err != nil {
		scopedlogging.Errorf(ctx, "Error retrieving template from %s: %s", input.TemplateURL, err)
		scopedlogging.Warningf(ctx, "Transformation failed for scene %v", input.Scene)
		return false, nil
	}

	scopedlogging.Infof(ctx, "Converting scene %v to STAC item", input.Scene)
	conversion := timer.New("conversion")
	item, err := template.RenderSTAC(ctx, input.Scene, input.Validate)
	elapsed := conversion.Stop()
	if err != nil {
		scopedlogging.Errorf(ctx, "Error converting scene %v to STAC item: %s", input.Scene, err)
		scopedlogging.Warningf(ctx, "Transformation failed for scene %v", input.Scene)
		return false, nil
	}
	scopedlogging.Infof(ctx, "Conversion took %.6f ms", float64(elapsed.Nanoseconds())/1e6)

	data, err := json.Marshal(item)
	if err != nil {
		scopedlogging.Errorf(ctx, "Error encoding STAC item: %s", err)
		scopedlogging.Warningf(ctx, "Transformation failed for scene %v", input.Scene)
		return false, nil
	}

	itemPath := path.Join(input.ItemsPath, activityID(ctx)+".json")
	client, err := a.NewDataClient()
	if err == nil {
		var blobURL string
		scopedlogging.Debugf(ctx, "Uploading STAC item")
		blobURL, err = client.Upload(ctx, itemPath, data)
		if err == nil {
			scopedlogging.Infof(ctx, "STAC item uploaded to %s", blobURL)
			return true, nil
		}
	}
	scopedlogging.Errorf(ctx, "Error storing STAC item to %s: %s", itemPath, err)
	scopedlogging.Warningf(ctx, "Transformation failed for scene %v", input.Scene)
	return false, nil
}

// BuildCollectionActivity lists the uploaded items and writes the temporary
// collection manifest next to them. Returns the collection blob URL.
func (a *Activities) BuildCollectionActivity(ctx context.Context, input *CreateCollectionInput) (string, error) {
	ctx = scoped(ctx, input.ActivityContext, CreateCollectionActivityName)

	client, err := a.NewDataClient()
	if err != nil {
		scopedlogging.Errorf(ctx, "Error creating data client: %s", err)
		return "", &TransformationError{Message: "Error creating collection", cause: err}
	}

	itemsPrefix := input.BaseDir + "/items"
	items, err := client.List(ctx, itemsPrefix, path.Join(itemsPrefix, "*.json"))
	if err != nil {
		scopedlogging.Errorf(ctx, "Error listing items under %s: %s", itemsPrefix, err)
		return "", &TransformationError{Message: "Error creating collection", cause: err}
	}
	scopedlogging.Infof(ctx, "Creating collection for %d items", len(items))

	collection := stac.NewTemporaryCollection(items)
	data, err := json.Marshal(collection)
	if err != nil {
		return "", &TransformationError{
			Message: "Error creating collection",
			cause:   sferr.Wrapf(err, "encoding collection"),
		}
	}

	collectionPath := input.BaseDir + "/collection.json"
	scopedlogging.Debugf(ctx, "Uploading collection")
	blobURL, err := client.Upload(ctx, collectionPath, data)
	if err != nil {
		scopedlogging.Errorf(ctx, "Error storing collection to %s: %s", collectionPath, err)
		return "", &TransformationError{Message: "Error creating collection", cause: err}
	}
	scopedlogging.Infof(ctx, "Collection uploaded to %s", blobURL)
	return blobURL, nil
}
