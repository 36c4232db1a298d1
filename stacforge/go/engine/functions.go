package engine

import (
	"encoding/json"

	"github.com/airbusgeo/godal"
	"github.com/clbanning/mxj/v2"

	"go.stacforge.org/infra/go/geo"
	"go.stacforge.org/infra/go/now"
	"go.stacforge.org/infra/go/sferr"
	"go.stacforge.org/infra/stacforge/go/raster"
)

// Functions are callable anywhere in a template, unlike filters they are not
// fed by a pipeline. The blob and raster functions run against the render's
// context, so they are bound to the GeoTemplate instance.
func (gt *GeoTemplate) functions() map[string]interface{} {
	return map[string]interface{}{
		"now":                          gt.funcNow,
		"affine_transform_from_bounds": funcAffineFromBounds,
		"affine_transform_from_origin": funcAffineFromOrigin,
		"get_text":                     gt.funcGetText,
		"get_xml":                      gt.funcGetXML,
		"get_json":                     gt.funcGetJSON,
		"get_rasterio_dataset":         gt.funcGetRasterDataset,
		"get_raster_file_info":         gt.funcGetRasterFileInfo,
	}
}

// funcNow returns the current UTC time in ISO 8601 format with a Z suffix.
func (gt *GeoTemplate) funcNow() string {
	return now.Now(gt.ctx).UTC().Format("2006-01-02T15:04:05.000000") + "Z"
}

func funcAffineFromBounds(west, south, east, north float64, width, height int) []float64 {
	return geo.AffineFromBounds(west, south, east, north, width, height).Slice()
}

func funcAffineFromOrigin(west, north, xsize, ysize float64) []float64 {
	return geo.AffineFromOrigin(west, north, xsize, ysize).Slice()
}

// funcGetText returns the content of the text file at the given URL.
func (gt *GeoTemplate) funcGetText(url string) (string, error) {
	b, err := gt.env.fetch(gt.ctx, url)
	if err != nil {
		return "", sferr.Wrapf(err, "fetching %s", url)
	}
	return string(b), nil
}

// funcGetXML returns the content of the XML file at the given URL as a map.
func (gt *GeoTemplate) funcGetXML(url string) (map[string]interface{}, error) {
	text, err := gt.funcGetText(url)
	if err != nil {
		return nil, err
	}
	m, err := mxj.NewMapXml([]byte(text))
	if err != nil {
		return nil, sferr.Wrapf(err, "parsing XML from %s", url)
	}
	return map[string]interface{}(m), nil
}

// funcGetJSON returns the content of the JSON file at the given URL as a map.
func (gt *GeoTemplate) funcGetJSON(url string) (map[string]interface{}, error) {
	text, err := gt.funcGetText(url)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(text), &m); err != nil {
		return nil, sferr.Wrapf(err, "parsing JSON from %s", url)
	}
	return m, nil
}

// funcGetRasterDataset opens the raster at the given URL. The dataset stays
// open until the render finishes.
func (gt *GeoTemplate) funcGetRasterDataset(url string) (*godal.Dataset, error) {
	ds, err := raster.Open(gt.ctx, url)
	if err != nil {
		return nil, err
	}
	gt.openDatasets = append(gt.openDatasets, ds)
	return ds, nil
}

// funcGetRasterFileInfo aggregates all extractable metadata of the raster at
// the given URL.
func (gt *GeoTemplate) funcGetRasterFileInfo(url string) (map[string]interface{}, error) {
	return raster.FileInfo(gt.ctx, url)
}
