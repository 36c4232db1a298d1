// Package blob provides a uniform gateway to Azure Blob Storage: read, write,
// list with glob filtering, and container delegation-SAS minting. Introducing
// the Client interface allows for easier mocking and testing for unit tests;
// memblobclient provides an in-memory implementation.
//
// One intentional thing missing from these method calls is the container
// name. The container is given at creation time, so as to simplify the method
// signatures. Canonical blob URLs have the form
// https://<account>.blob.<suffix>/<container>/<key>.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/service"
	"github.com/bmatcuk/doublestar/v4"

	"go.stacforge.org/infra/go/sferr"
	"go.stacforge.org/infra/go/sflog"
)

const (
	// DefaultStorageSuffix is the blob endpoint suffix of the Azure public
	// cloud. Other clouds are selected through config.Cloud.
	DefaultStorageSuffix = "core.windows.net"

	// Retry policy for transient failures (408, 429, 5xx).
	retries       = 3
	retryInterval = 2 * time.Second

	// SAS start times are backdated to tolerate clock skew between this
	// process, the storage service and the catalog.
	sasClockSkew = 5 * time.Minute
)

// ErrReadOnly is returned by mutating operations on a read-only client.
var ErrReadOnly = errors.New("blob client is read-only")

// Permissions are the container permissions embedded in a delegation SAS.
type Permissions struct {
	Read   bool
	Write  bool
	Delete bool
	List   bool
}

// String returns the canonical permission string, e.g. "rl".
func (p Permissions) String() string {
	cp := sas.ContainerPermissions{
		Read:   p.Read,
		Write:  p.Write,
		Delete: p.Delete,
		List:   p.List,
	}
	return cp.String()
}

// Client is a gateway to one container of one storage account.
type Client interface {
	// Upload stores a blob under name, overwriting any existing blob, and
	// returns its canonical URL. Read-only clients return ErrReadOnly.
	Upload(ctx context.Context, name string, data []byte) (string, error)

	// List enumerates the container and returns canonical URLs. When prefix
	// is non-empty only blobs under it are considered; when pattern is
	// non-empty, blob names must additionally match the glob (doublestar
	// syntax, ** crosses path segments).
	List(ctx context.Context, prefix, pattern string) ([]string, error)

	// Download fetches a blob's full body.
	Download(ctx context.Context, name string) ([]byte, error)

	// EnsureContainer creates the container if missing. Read-only clients
	// return ErrReadOnly.
	EnsureContainer(ctx context.Context) error

	// GenerateContainerSAS mints a user-delegation SAS for the whole
	// container with the given permissions, valid from five minutes ago
	// until expiry.
	GenerateContainerSAS(ctx context.Context, expiry time.Time, perms Permissions) (string, error)

	// URL returns the canonical container URL.
	URL() string
}

type client struct {
	account   string
	container string
	suffix    string
	readOnly  bool
	azc       *azblob.Client
}

// retryOptions returns the azcore retry policy used by every storage-bound
// pipeline in this repo: fixed interval, transient status codes only.
func retryOptions() policy.RetryOptions {
	return policy.RetryOptions{
		MaxRetries:    retries,
		RetryDelay:    retryInterval,
		MaxRetryDelay: retryInterval,
	}
}

// New returns a Client for the given account and container. The suffix is the
// cloud's blob endpoint suffix (DefaultStorageSuffix for the public cloud).
// Read-only clients reject Upload and EnsureContainer.
func New(account, container, suffix string, cred azcore.TokenCredential, readOnly bool) (Client, error) {
	serviceURL := fmt.Sprintf("https://%s.blob.%s/", account, suffix)
	azc, err := azblob.NewClient(serviceURL, cred, &azblob.ClientOptions{
		ClientOptions: policy.ClientOptions{
			Retry: retryOptions(),
		},
	})
	if err != nil {
		return nil, sferr.Wrapf(err, "creating blob client for %s", serviceURL)
	}
	return &client{
		account:   account,
		container: container,
		suffix:    suffix,
		readOnly:  readOnly,
		azc:       azc,
	}, nil
}

// URL implements Client.
func (c *client) URL() string {
	return fmt.Sprintf("https://%s.blob.%s/%s", c.account, c.suffix, c.container)
}

// Upload implements Client.
func (c *client) Upload(ctx context.Context, name string, data []byte) (string, error) {
	if c.readOnly {
		return "", ErrReadOnly
	}
	sflog.Debugf("Uploading blob %s to container %s at %s", name, c.container, c.account)
	if _, err := c.azc.UploadBuffer(ctx, c.container, name, data, nil); err != nil {
		return "", sferr.Wrapf(err, "uploading blob %s", name)
	}
	return c.URL() + "/" + name, nil
}

// List implements Client.
func (c *client) List(ctx context.Context, prefix, pattern string) ([]string, error) {
	opts := &azblob.ListBlobsFlatOptions{}
	if prefix != "" {
		opts.Prefix = to.Ptr(prefix)
	}
	urls := []string{}
	pager := c.azc.NewListBlobsFlatPager(c.container, opts)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, sferr.Wrapf(err, "listing container %s", c.container)
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name == nil {
				continue
			}
			ok, err := MatchName(pattern, *item.Name)
			if err != nil {
				return nil, err
			}
			if ok {
				urls = append(urls, c.URL()+"/"+*item.Name)
			}
		}
	}
	sflog.Debugf("Found %d blobs in container %s", len(urls), c.container)
	return urls, nil
}

// Download implements Client.
func (c *client) Download(ctx context.Context, name string) ([]byte, error) {
	resp, err := c.azc.DownloadStream(ctx, c.container, name, nil)
	if err != nil {
		return nil, sferr.Wrapf(err, "downloading blob %s", name)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, sferr.Wrapf(err, "reading blob %s", name)
	}
	return b, nil
}

// EnsureContainer implements Client.
func (c *client) EnsureContainer(ctx context.Context) error {
	if c.readOnly {
		return ErrReadOnly
	}
	if _, err := c.azc.CreateContainer(ctx, c.container, nil); err != nil {
		if bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
			return nil
		}
		return sferr.Wrapf(err, "creating container %s", c.container)
	}
	sflog.Infof("Created container %s at %s", c.container, c.account)
	return nil
}

// GenerateContainerSAS implements Client.
func (c *client) GenerateContainerSAS(ctx context.Context, expiry time.Time, perms Permissions) (string, error) {
	start := time.Now().UTC().Add(-sasClockSkew)
	svc := c.azc.ServiceClient()
	info := service.KeyInfo{
		Start:  to.Ptr(start.Format(sas.TimeFormat)),
		Expiry: to.Ptr(expiry.UTC().Format(sas.TimeFormat)),
	}
	udc, err := svc.GetUserDelegationCredential(ctx, info, nil)
	if err != nil {
		return "", sferr.Wrapf(err, "getting user delegation key for %s", c.account)
	}
	sflog.Debugf("Generating SAS for container %s at %s with permissions %q expiring %s",
		c.container, c.account, perms.String(), expiry.UTC().Format(time.RFC3339))
	values, err := sas.BlobSignatureValues{
		Protocol:      sas.ProtocolHTTPS,
		StartTime:     start,
		ExpiryTime:    expiry.UTC(),
		Permissions:   perms.String(),
		ContainerName: c.container,
	}.SignWithUserDelegation(udc)
	if err != nil {
		return "", sferr.Wrapf(err, "signing container SAS for %s", c.container)
	}
	return values.Encode(), nil
}

// MatchName applies a glob pattern to a blob name. An empty pattern matches
// everything. The doublestar dialect is used so "**/*.tif" selects .tif blobs
// at any depth.
func MatchName(pattern, name string) (bool, error) {
	if pattern == "" {
		return true, nil
	}
	ok, err := doublestar.Match(pattern, name)
	if err != nil {
		return false, sferr.Wrapf(err, "bad glob pattern %q", pattern)
	}
	return ok, nil
}

// ParseURL splits a canonical blob URL into account, container and blob name.
func ParseURL(blobURL string) (account, container, name string, err error) {
	u, err := url.Parse(blobURL)
	if err != nil {
		return "", "", "", sferr.Wrapf(err, "parsing blob URL %q", blobURL)
	}
	account = strings.Split(u.Host, ".")[0]
	parts := strings.SplitN(strings.TrimPrefix(u.Path, "/"), "/", 2)
	if account == "" || len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", "", sferr.Fmt("not a canonical blob URL: %q", blobURL)
	}
	return account, parts[0], parts[1], nil
}

// StorageSuffixFromURL extracts the endpoint suffix from a canonical blob URL
// host, e.g. "core.windows.net" from "acct.blob.core.windows.net".
func StorageSuffixFromURL(blobURL string) string {
	u, err := url.Parse(blobURL)
	if err != nil {
		return DefaultStorageSuffix
	}
	if i := strings.Index(u.Host, ".blob."); i >= 0 {
		return u.Host[i+len(".blob."):]
	}
	return DefaultStorageSuffix
}
