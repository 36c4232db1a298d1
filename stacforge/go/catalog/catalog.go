// Package catalog is the gateway to the GeoCatalog API: ingestion source
// lifecycle and bulk ingestion of static collections.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"go.stacforge.org/infra/go/blob"
	"go.stacforge.org/infra/go/httputils"
	"go.stacforge.org/infra/go/now"
	"go.stacforge.org/infra/go/sferr"
	"go.stacforge.org/infra/go/sflog"
	"go.stacforge.org/infra/stacforge/go/config"
)

// APIVersion is sent with every request.
const APIVersion = "2024-01-31-preview"

// Client talks to one GeoCatalog instance.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient returns a Client for the catalog at baseURL using the given HTTP
// client, which must already carry authentication.
func NewClient(baseURL string, client *http.Client) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
	}
}

// NewDefaultClient returns a Client for the configured catalog,
// authenticating with the process credential. Transient request failures are
// retried by the transport.
func NewDefaultClient() (*Client, error) {
	baseURL, err := config.GeocatalogURL()
	if err != nil {
		return nil, err
	}
	cld, err := config.GetCloud("")
	if err != nil {
		return nil, err
	}
	if cld.GeocatalogScope == "" {
		return nil, sferr.Fmt("no catalog scope in cloud %s", cld.Name)
	}
	cred, err := config.Credential()
	if err != nil {
		return nil, err
	}
	ts := oauth2.ReuseTokenSource(nil, config.NewTokenSource(cred, cld.GeocatalogScope))
	client := httputils.DefaultClientConfig().WithTokenSource(ts).With2xxOnly().Client()
	return NewClient(baseURL, client), nil
}

// endpoint builds an API URL with the version parameter attached.
func (c *Client) endpoint(path string) string {
	return c.baseURL + path + "?api-version=" + APIVersion
}

// do runs one API request and decodes the response into out when non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reqBody *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return sferr.Wrapf(err, "encoding %s %s request", method, path)
		}
		reqBody = bytes.NewReader(b)
	} else {
		reqBody = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), reqBody)
	if err != nil {
		return sferr.Wrapf(err, "creating %s %s request", method, path)
	}
	req.Header.Set("Content-Type", "application/json")
	sflog.Debugf("%s to %s", method, path)
	resp, err := c.client.Do(req)
	if err != nil {
		return sferr.Wrapf(err, "%s %s", method, path)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return sferr.Wrapf(err, "decoding %s %s response", method, path)
		}
	}
	return nil
}

// IngestionSource is one SAS-token ingestion source, keyed elsewhere by its
// container URL.
type IngestionSource struct {
	ID         string
	Expiration time.Time
}

// ingestionSourceDetail is the wire shape of an ingestion source.
type ingestionSourceDetail struct {
	ID             string                 `json:"id"`
	SourceType     string                 `json:"sourceType"`
	ConnectionInfo map[string]interface{} `json:"connectionInfo"`
}

// ListIngestionSources returns the catalog's SAS-token ingestion sources by
// container URL. Sources backed by a stored access policy carry no
// expiration and are skipped: their credentials are not ours to refresh.
func (c *Client) ListIngestionSources(ctx context.Context) (map[string]IngestionSource, error) {
	sflog.Infof("Getting ingestion sources for %s", c.baseURL)
	var listing struct {
		Value []struct {
			ID string `json:"id"`
		} `json:"value"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/ingestion-sources", nil, &listing); err != nil {
		return nil, err
	}

	sources := map[string]IngestionSource{}
	for _, entry := range listing.Value {
		var detail ingestionSourceDetail
		if err := c.do(ctx, http.MethodGet, "/api/ingestion-sources/"+entry.ID, nil, &detail); err != nil {
			return nil, err
		}
		if detail.SourceType != "SasToken" {
			continue
		}
		containerURL, _ := detail.ConnectionInfo["containerUrl"].(string)
		expirationStr, ok := detail.ConnectionInfo["expiration"].(string)
		if !ok {
			sflog.Warningf("The container URL %s has a policy based SAS token", containerURL)
			continue
		}
		expiration, err := parseExpiration(expirationStr)
		if err != nil {
			return nil, err
		}
		sources[containerURL] = IngestionSource{
			ID:         detail.ID,
			Expiration: expiration,
		}
	}
	sflog.Infof("Found %d ingestion sources", len(sources))
	return sources, nil
}

// parseExpiration accepts RFC 3339 with or without an explicit offset.
func parseExpiration(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, sferr.Fmt("unparseable expiration %q", s)
}

// CreateIngestionSource registers a new SAS-token ingestion source for a
// container.
func (c *Client) CreateIngestionSource(ctx context.Context, containerURL, sasToken string) error {
	sflog.Infof("Creating ingestion source for %s at %s", containerURL, c.baseURL)
	body := map[string]interface{}{
		"sourceType": "SasToken",
		"connectionInfo": map[string]interface{}{
			"containerUrl": containerURL,
			"sasToken":     sasToken,
		},
	}
	return c.do(ctx, http.MethodPost, "/api/ingestion-sources", body, nil)
}

// UpdateIngestionSource replaces the credential of an existing ingestion
// source.
func (c *Client) UpdateIngestionSource(ctx context.Context, id, containerURL, sasToken string) error {
	sflog.Infof("Updating ingestion source %s at %s", id, c.baseURL)
	body := map[string]interface{}{
		"id":         id,
		"sourceType": "SasToken",
		"connectionInfo": map[string]interface{}{
			"containerUrl": containerURL,
			"sasToken":     sasToken,
		},
	}
	return c.do(ctx, http.MethodPut, "/api/ingestion-sources/"+id, body, nil)
}

// EnsureIngestionSource guarantees the catalog holds a usable credential for
// the container: missing sources are created, sources expiring within the
// configured minimum lifetime are refreshed, healthy ones are left alone.
func (c *Client) EnsureIngestionSource(ctx context.Context, store blob.Client, containerURL string) error {
	minLifetime := time.Duration(config.MinSASTokenExpirationHours()) * time.Hour
	newLifetime := time.Duration(config.DefaultSASTokenExpirationHours()) * time.Hour

	sources, err := c.ListIngestionSources(ctx)
	if err != nil {
		return err
	}

	if err := store.EnsureContainer(ctx); err != nil {
		return err
	}

	mintSAS := func() (string, error) {
		return store.GenerateContainerSAS(ctx, now.Now(ctx).Add(newLifetime), blob.Permissions{
			Read: true,
			List: true,
		})
	}

	source, ok := sources[containerURL]
	if !ok {
		sflog.Infof("No ingestion source found for %s at %s", containerURL, c.baseURL)
		sas, err := mintSAS()
		if err != nil {
			return err
		}
		return c.CreateIngestionSource(ctx, containerURL, sas)
	}

	sflog.Infof("Found ingestion source for %s at %s with ID %s", containerURL, c.baseURL, source.ID)
	if now.Now(ctx).Add(minLifetime).Before(source.Expiration) {
		return nil
	}
	sflog.Infof("The SAS token with ID %s is expired or about to expire", source.ID)
	sas, err := mintSAS()
	if err != nil {
		return err
	}
	return c.UpdateIngestionSource(ctx, source.ID, containerURL, sas)
}

// ContainerURLOf strips a blob URL down to its container URL.
func ContainerURLOf(blobURL string) (string, error) {
	u, err := url.Parse(blobURL)
	if err != nil {
		return "", sferr.Wrapf(err, "parsing URL %q", blobURL)
	}
	parts := strings.SplitN(strings.TrimPrefix(u.Path, "/"), "/", 2)
	if parts[0] == "" {
		return "", sferr.Fmt("URL %q has no container", blobURL)
	}
	return u.Scheme + "://" + u.Host + "/" + parts[0], nil
}

// BulkIngest points the catalog at a static collection and starts an
// ingestion run. The ingestion source for the collection's container is
// created or refreshed first. Returns the ingestion and run ids.
func (c *Client) BulkIngest(ctx context.Context, store blob.Client, collectionID, collectionURL string) (string, string, error) {
	containerURL, err := ContainerURLOf(collectionURL)
	if err != nil {
		return "", "", err
	}
	sflog.Infof("Container URL: %s", containerURL)
	if err := c.EnsureIngestionSource(ctx, store, containerURL); err != nil {
		return "", "", err
	}

	ingestionsPath := "/api/collections/" + collectionID + "/ingestions"
	sflog.Debugf("Creating ingestion for %s into collection %s at %s", collectionURL, collectionID, c.baseURL)
	var ingestion struct {
		IngestionID string `json:"ingestionId"`
	}
	err = c.do(ctx, http.MethodPost, ingestionsPath, map[string]interface{}{
		"importType":         "StaticCatalog",
		"sourceCatalogUrl":   collectionURL,
		"skipExistingItems":  false,
		"keepOriginalAssets": false,
	}, &ingestion)
	if err != nil {
		return "", "", err
	}
	if ingestion.IngestionID == "" {
		return "", "", sferr.Fmt("ingestion response carried no ingestion id")
	}
	sflog.Debugf("Ingestion created with ID %s", ingestion.IngestionID)

	var run struct {
		Operation struct {
			OperationID string `json:"operationId"`
		} `json:"operation"`
	}
	err = c.do(ctx, http.MethodPost, ingestionsPath+"/"+ingestion.IngestionID+"/runs", map[string]interface{}{}, &run)
	if err != nil {
		return "", "", err
	}
	if run.Operation.OperationID == "" {
		return "", "", sferr.Fmt("run response carried no operation id")
	}
	sflog.Debugf("Ingestion %s running with ID %s", ingestion.IngestionID, run.Operation.OperationID)
	return ingestion.IngestionID, run.Operation.OperationID, nil
}
