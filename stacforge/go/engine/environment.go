// Package engine renders GeoTemplates: templates that turn raw scene
// metadata into STAC items. Templates run sandboxed by construction; they
// can only reach the filters, functions and tests installed here.
package engine

import (
	"context"
	"errors"
	"sync"
	"text/template"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Masterminds/sprig"

	"go.stacforge.org/infra/go/blob"
	"go.stacforge.org/infra/go/sferr"
	"go.stacforge.org/infra/go/sflog"
	"go.stacforge.org/infra/stacforge/go/config"
)

// ErrTemplateNotFound is returned when a template URL points at a blob that
// does not exist.
var ErrTemplateNotFound = errors.New("template not found")

// FetchFunc fetches the raw bytes behind a URL. The default implementation
// reads blob storage with the process credential; tests inject their own.
type FetchFunc func(ctx context.Context, url string) ([]byte, error)

// Environment holds the function set templates render with and a cache of
// compiled templates keyed by their storage URL.
type Environment struct {
	fetch     FetchFunc
	baseFuncs template.FuncMap

	mtx   sync.Mutex
	cache map[string]*cacheEntry
}

type cacheEntry struct {
	once sync.Once
	gt   *GeoTemplate
	err  error
}

// NewEnvironment returns an Environment fetching remote content with fetch,
// or from blob storage when fetch is nil.
func NewEnvironment(fetch FetchFunc) *Environment {
	if fetch == nil {
		fetch = fetchFromStorage
	}
	e := &Environment{
		fetch: fetch,
		cache: map[string]*cacheEntry{},
	}
	// Sprig's generic helpers sit underneath; the domain filters and tests
	// shadow any name collision.
	e.baseFuncs = sprig.TxtFuncMap()
	for name, f := range filters() {
		e.baseFuncs[name] = f
	}
	for name, f := range geoTemplateTests {
		e.baseFuncs[name] = f
	}
	for name, value := range geoTemplateGlobals {
		value := value
		e.baseFuncs[name] = func() interface{} { return value }
	}
	return e
}

// GeoTemplateFromStorage loads, compiles and caches the template at a blob
// URL. Concurrent callers for the same URL share one fetch.
func (e *Environment) GeoTemplateFromStorage(ctx context.Context, templateURL string) (*GeoTemplate, error) {
	e.mtx.Lock()
	entry, ok := e.cache[templateURL]
	if !ok {
		entry = &cacheEntry{}
		e.cache[templateURL] = entry
	}
	e.mtx.Unlock()

	entry.once.Do(func() {
		sflog.Debugf("Loading template from %s", templateURL)
		source, err := e.fetch(ctx, templateURL)
		if err != nil {
			entry.err = err
			return
		}
		entry.gt, entry.err = e.compile(templateURL, string(source))
	})
	return entry.gt, entry.err
}

// GeoTemplateFromSource compiles a template from its source text, bypassing
// the cache.
func (e *Environment) GeoTemplateFromSource(source string) (*GeoTemplate, error) {
	return e.compile("source", source)
}

// ClearCache drops all cached compiled templates.
func (e *Environment) ClearCache() {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	sflog.Debugf("Clearing template cache")
	e.cache = map[string]*cacheEntry{}
}

// fetchFromStorage reads a blob with the process credential.
func fetchFromStorage(ctx context.Context, url string) ([]byte, error) {
	cred, err := config.Credential()
	if err != nil {
		return nil, err
	}
	b, err := blob.DownloadFromURL(ctx, cred, url)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			sflog.Warningf("Blob not found at %s", url)
			return nil, sferr.Wrapf(ErrTemplateNotFound, "fetching %s", url)
		}
		return nil, err
	}
	return b, nil
}
