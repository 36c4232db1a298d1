package engine

import (
	"github.com/airbusgeo/godal"

	"go.stacforge.org/infra/go/sferr"
	"go.stacforge.org/infra/stacforge/go/raster"
)

// The raster filters operate on a dataset opened by get_rasterio_dataset.
// Their optional arguments precede the piped dataset:
//
//	{{ $ds := get_rasterio_dataset .scene_info.url }}
//	{{ $ds | geometry_info 10 | tojson }}

func datasetArg(v interface{}) (*godal.Dataset, error) {
	ds, ok := v.(*godal.Dataset)
	if !ok {
		return nil, sferr.Fmt("value of type %T is not a raster dataset", v)
	}
	return ds, nil
}

func intArg(v interface{}, name string) (int, error) {
	switch t := v.(type) {
	case int:
		return t, nil
	case int64:
		return int(t), nil
	case float64:
		return int(t), nil
	default:
		return 0, sferr.Fmt("%s must be a number, got %T", name, v)
	}
}

func filterProjectionInfo(v interface{}) (map[string]interface{}, error) {
	ds, err := datasetArg(v)
	if err != nil {
		return nil, err
	}
	return raster.ProjectionInfo(ds)
}

// filterGeometryInfo accepts (dataset), (densifyPts, dataset) or
// (densifyPts, precision, dataset).
func filterGeometryInfo(args ...interface{}) (map[string]interface{}, error) {
	if len(args) < 1 || len(args) > 3 {
		return nil, sferr.Fmt("geometry_info takes at most two arguments before the dataset")
	}
	ds, err := datasetArg(args[len(args)-1])
	if err != nil {
		return nil, err
	}
	densifyPts, precision := 0, -1
	if len(args) >= 2 {
		if densifyPts, err = intArg(args[0], "densify_pts"); err != nil {
			return nil, err
		}
	}
	if len(args) == 3 {
		if precision, err = intArg(args[1], "precision"); err != nil {
			return nil, err
		}
	}
	return raster.GeometryInfo(ds, densifyPts, precision)
}

// filterRasterInfo accepts (dataset) or (maxSize, dataset).
func filterRasterInfo(args ...interface{}) ([]map[string]interface{}, error) {
	if len(args) < 1 || len(args) > 2 {
		return nil, sferr.Fmt("raster_info takes at most one argument before the dataset")
	}
	ds, err := datasetArg(args[len(args)-1])
	if err != nil {
		return nil, err
	}
	maxSize := raster.DefaultMaxSize
	if len(args) == 2 {
		if maxSize, err = intArg(args[0], "max_size"); err != nil {
			return nil, err
		}
	}
	return raster.RasterInfo(ds, maxSize)
}

func filterEOBandsInfo(v interface{}) ([]map[string]interface{}, error) {
	ds, err := datasetArg(v)
	if err != nil {
		return nil, err
	}
	return raster.EOBandsInfo(ds), nil
}
