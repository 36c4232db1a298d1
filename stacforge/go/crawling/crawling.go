// Package crawling discovers the scenes an orchestration will transform. A
// crawler produces one scene per discovered entry: a blob URL for file
// crawls, a URL or decoded JSON object for index crawls.
package crawling

import (
	"context"
	"encoding/json"
	"strings"

	"go.stacforge.org/infra/go/blob"
	"go.stacforge.org/infra/go/sferr"
	"go.stacforge.org/infra/go/sflog"
	"go.stacforge.org/infra/go/timer"
)

// Scene is one unit of work for the transformation stage. It is either a
// string URL or a map decoded from an NDJSON index line.
type Scene interface{}

// Error wraps any failure during a crawl. The orchestrator surfaces its
// message verbatim, so it stays generic; the cause is logged where it
// happens.
type Error struct {
	Message string
	cause   error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.cause }

// FileCrawler lists a container and yields every blob matching a glob.
type FileCrawler struct {
	Client blob.Client
	// Pattern is a doublestar glob matched against full blob names, empty
	// to match everything.
	Pattern string
}

// Crawl implements the file crawl.
func (c *FileCrawler) Crawl(ctx context.Context) ([]Scene, error) {
	defer timer.New("file crawl").Stop()
	if c.Pattern != "" {
		sflog.Infof("Starting file crawl with pattern %q", c.Pattern)
	} else {
		sflog.Infof("Starting file crawl with no pattern")
	}
	urls, err := c.Client.List(ctx, "", c.Pattern)
	if err != nil {
		sflog.Errorf("Error crawling files: %s", err)
		return nil, &Error{Message: "Error crawling files", cause: err}
	}
	sflog.Infof("Found %d files", len(urls))
	scenes := make([]Scene, len(urls))
	for i, u := range urls {
		scenes[i] = u
	}
	return scenes, nil
}

// IndexCrawler reads an index blob and yields one scene per line. Lines
// starting with IgnorePrefix are dropped when the prefix is non-empty, and
// NDJSON indexes are decoded line by line.
type IndexCrawler struct {
	Client    blob.Client
	IndexFile string
	// IgnorePrefix drops comment lines; typically "#".
	IgnorePrefix string
	NDJSON       bool
}

// Crawl implements the index crawl.
func (c *IndexCrawler) Crawl(ctx context.Context) ([]Scene, error) {
	defer timer.New("index crawl").Stop()
	sflog.Infof("Starting index crawl with file %s", c.IndexFile)

	data, err := c.Client.Download(ctx, c.IndexFile)
	if err != nil {
		sflog.Errorf("Error crawling index file %s: %s", c.IndexFile, err)
		return nil, &Error{Message: "Error crawling index", cause: err}
	}

	lines := splitLines(string(data))
	sflog.Debugf("The index file has %d lines", len(lines))

	if c.IgnorePrefix != "" {
		kept := lines[:0]
		for _, line := range lines {
			if !strings.HasPrefix(line, c.IgnorePrefix) {
				kept = append(kept, line)
			}
		}
		lines = kept
	}
	sflog.Infof("Found %d files", len(lines))

	scenes := make([]Scene, 0, len(lines))
	for _, line := range lines {
		if c.NDJSON {
			var m map[string]interface{}
			if err := json.Unmarshal([]byte(line), &m); err != nil {
				sflog.Errorf("Error parsing NDJSON line %q: %s", line, err)
				return nil, &Error{
					Message: "Error crawling index",
					cause:   sferr.Wrapf(err, "parsing NDJSON line"),
				}
			}
			scenes = append(scenes, m)
		} else {
			scenes = append(scenes, line)
		}
	}
	return scenes, nil
}

// splitLines splits on \n and \r\n without producing a trailing empty line.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
