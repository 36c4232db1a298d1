package blob

import (
	"context"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"

	"go.stacforge.org/infra/go/sferr"
)

// NewFromURL returns a Client scoped to the container a canonical blob URL
// points into.
func NewFromURL(blobURL string, cred azcore.TokenCredential, readOnly bool) (Client, string, error) {
	account, container, name, err := ParseURL(blobURL)
	if err != nil {
		return nil, "", err
	}
	c, err := New(account, container, StorageSuffixFromURL(blobURL), cred, readOnly)
	if err != nil {
		return nil, "", err
	}
	return c, name, nil
}

// DownloadFromURL performs a one-shot read of the blob a canonical URL points
// at.
func DownloadFromURL(ctx context.Context, cred azcore.TokenCredential, blobURL string) ([]byte, error) {
	c, name, err := NewFromURL(blobURL, cred, true)
	if err != nil {
		return nil, err
	}
	b, err := c.Download(ctx, name)
	if err != nil {
		return nil, sferr.Wrapf(err, "downloading %s", blobURL)
	}
	return b, nil
}
