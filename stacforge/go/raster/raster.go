// Package raster opens georeferenced raster files through GDAL and extracts
// the projection, footprint and per-band metadata templates embed in items.
// Remote files are reached through GDAL's virtual filesystems, so blobs and
// plain HTTP URLs open the same way local files do.
package raster

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/airbusgeo/godal"
	"github.com/cenkalti/backoff/v4"

	"go.stacforge.org/infra/go/sferr"
	"go.stacforge.org/infra/go/sflog"
	"go.stacforge.org/infra/go/timer"
	"go.stacforge.org/infra/stacforge/go/config"
)

const (
	openRetries       = 3
	openRetryInterval = 2 * time.Second
)

var registerOnce sync.Once

// URLToVSI maps a file URL to the GDAL path and config options that open it.
// Blob URLs without an embedded credential go through /vsiaz/ with a
// data-plane token; signed blob URLs and any other HTTP URL go through
// /vsicurl/.
func URLToVSI(ctx context.Context, fileURL string) (string, []string, error) {
	u, err := url.Parse(fileURL)
	if err != nil {
		return "", nil, sferr.Wrapf(err, "parsing raster URL %q", fileURL)
	}
	switch u.Scheme {
	case "", "file":
		return u.Path, nil, nil
	case "https":
		cld, err := config.GetCloud("")
		if err != nil {
			return "", nil, err
		}
		if strings.HasSuffix(u.Host, ".blob."+cld.StorageSuffix) {
			if strings.Contains(u.RawQuery, "sig=") {
				return "/vsicurl/" + fileURL, nil, nil
			}
			account := strings.Split(u.Host, ".")[0]
			parts := strings.SplitN(strings.TrimPrefix(u.Path, "/"), "/", 2)
			if len(parts) != 2 {
				return "", nil, sferr.Fmt("blob URL %q has no blob path", fileURL)
			}
			token, err := config.StorageAccessToken(ctx)
			if err != nil {
				return "", nil, err
			}
			opts := []string{
				"AZURE_STORAGE_ACCOUNT=" + account,
				"AZURE_STORAGE_ACCESS_TOKEN=" + token,
			}
			return fmt.Sprintf("/vsiaz/%s/%s", parts[0], parts[1]), opts, nil
		}
		return "/vsicurl/" + fileURL, nil, nil
	default:
		return "", nil, sferr.Fmt("unsupported scheme %q in raster URL %q", u.Scheme, fileURL)
	}
}

// Open opens the raster at the given URL, retrying transient IO failures at a
// fixed interval. The caller owns the returned dataset and must Close it.
func Open(ctx context.Context, fileURL string) (*godal.Dataset, error) {
	registerOnce.Do(godal.RegisterAll)
	defer timer.New(fmt.Sprintf("opening raster %s", fileURL)).Stop()

	vsi, configOpts, err := URLToVSI(ctx, fileURL)
	if err != nil {
		return nil, err
	}
	opts := make([]godal.OpenOption, 0, len(configOpts))
	for _, co := range configOpts {
		opts = append(opts, godal.ConfigOption(co))
	}

	var ds *godal.Dataset
	open := func() error {
		var err error
		ds, err = godal.Open(vsi, opts...)
		return err
	}
	notify := func(err error, wait time.Duration) {
		sflog.Warningf("Retrying open of %s in %v: %s", fileURL, wait, err)
	}
	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(openRetryInterval), openRetries),
		ctx,
	)
	if err := backoff.RetryNotify(open, b, notify); err != nil {
		return nil, sferr.Wrapf(err, "opening raster %s", fileURL)
	}
	return ds, nil
}
