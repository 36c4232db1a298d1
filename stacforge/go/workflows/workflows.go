// Package workflows holds the bulk transformation orchestration: a Temporal
// workflow that crawls a source container for scenes, fans out one
// transformation activity per scene and assembles the resulting items into a
// temporary collection ready for catalog ingestion.
package workflows

import (
	"go.stacforge.org/infra/go/sferr"
	"go.stacforge.org/infra/stacforge/go/crawling"
)

// Workflow and activity registration names. Activities are invoked by name so
// tests can mock them individually.
const (
	OrchestrationName = "geotemplate_bulk_transform"

	FileCrawlActivityName        = "file_crawler"
	IndexCrawlActivityName       = "index_crawler"
	TransformActivityName        = "geotemplate_transform"
	CreateCollectionActivityName = "create_collection"
)

// CrawlingType selects how scenes are discovered.
type CrawlingType string

const (
	CrawlingTypeFile  CrawlingType = "file"
	CrawlingTypeIndex CrawlingType = "index"
)

// OrchestrationInput is the client-facing input of the bulk transformation.
type OrchestrationInput struct {
	CrawlingType             CrawlingType `json:"crawlingType"`
	SourceStorageAccountName string       `json:"sourceStorageAccountName"`
	SourceContainerName      string       `json:"sourceContainerName"`
	TemplateURL              string       `json:"templateUrl"`
	TargetCollectionID       string       `json:"targetCollectionId"`
	Pattern                  *string      `json:"pattern,omitempty"`
	IndexFilePath            *string      `json:"indexFilePath,omitempty"`
	IndexFileIsNDJSON        bool         `json:"indexFileIsNdjson,omitempty"`
	// IndexFileIgnoreLinesStartingWith defaults to "#" when absent; an
	// explicit empty string keeps every line.
	IndexFileIgnoreLinesStartingWith *string `json:"indexFileIgnoreLinesStartingWith,omitempty"`
	TargetGeocatalogURL              *string `json:"targetGeocatalogUrl,omitempty"`
	Validate                         bool    `json:"validate,omitempty"`
}

// CheckCrawlingOptions rejects inputs whose optional fields contradict the
// crawling type.
func (i *OrchestrationInput) CheckCrawlingOptions() error {
	if i.CrawlingType == CrawlingTypeIndex {
		if i.IndexFilePath == nil {
			return sferr.Fmt("index_file must be provided for index crawling")
		}
		if i.Pattern != nil {
			return sferr.Fmt("pattern must not be provided for index crawling")
		}
	} else if i.IndexFilePath != nil {
		return sferr.Fmt("index_file must not be provided for non-index crawling")
	}
	return nil
}

// IgnorePrefix resolves the index comment prefix, defaulting to "#".
func (i *OrchestrationInput) IgnorePrefix() string {
	if i.IndexFileIgnoreLinesStartingWith == nil {
		return "#"
	}
	return *i.IndexFileIgnoreLinesStartingWith
}

// ActivityContext carries correlation fields into every activity input.
type ActivityContext struct {
	OrchestrationID   string `json:"orchestrationId"`
	OrchestrationName string `json:"orchestrationName"`
}

// FileCrawlInput is the input of the file crawl activity.
type FileCrawlInput struct {
	ActivityContext
	StorageAccountName string  `json:"storageAccountName"`
	ContainerName      string  `json:"containerName"`
	Pattern            *string `json:"pattern,omitempty"`
}

// IndexCrawlInput is the input of the index crawl activity.
type IndexCrawlInput struct {
	ActivityContext
	StorageAccountName      string `json:"storageAccountName"`
	ContainerName           string `json:"containerName"`
	IndexFile               string `json:"indexFile"`
	IsNDJSON                bool   `json:"isNdjson,omitempty"`
	IgnoreLinesStartingWith string `json:"ignoreLinesStartingWith,omitempty"`
}

// TransformInput is the input of the per-scene transformation activity.
type TransformInput struct {
	ActivityContext
	Scene       crawling.Scene `json:"scene"`
	TemplateURL string         `json:"templateUrl"`
	ItemsPath   string         `json:"itemsPath"`
	Validate    bool           `json:"validate,omitempty"`
}

// CreateCollectionInput is the input of the collection build activity.
type CreateCollectionInput struct {
	ActivityContext
	BaseDir string `json:"baseDir"`
}

// TransformationError is a fatal failure of the transformation pipeline. Its
// message is surfaced verbatim in the orchestration output.
type TransformationError struct {
	Message string
	cause   error
}

func (e *TransformationError) Error() string { return e.Message }

func (e *TransformationError) Unwrap() error { return e.cause }
