package raster

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/airbusgeo/godal"
	"github.com/paulmach/orb"

	"go.stacforge.org/infra/go/geo"
	"go.stacforge.org/infra/go/sferr"
	"go.stacforge.org/infra/go/sflog"
)

// DefaultMaxSize is the largest edge, in pixels, of the downsampled read used
// for band statistics.
const DefaultMaxSize = 1024

var worldBounds = []float64{-180, -90, 180, 90}

// authorityRE matches the EPSG authority clauses of WKT1 and WKT2 strings.
var authorityRE = regexp.MustCompile(`(?:AUTHORITY|ID)\["EPSG",\s*"?(\d+)"?\]`)

// EPSGFromWKT returns the EPSG code declared by the outermost authority
// clause of a WKT string, or 0 when there is none.
func EPSGFromWKT(wkt string) int {
	matches := authorityRE.FindAllStringSubmatch(wkt, -1)
	if len(matches) == 0 {
		return 0
	}
	code, err := strconv.Atoi(matches[len(matches)-1][1])
	if err != nil {
		return 0
	}
	return code
}

// boundsFromTransform returns [west, south, east, north] of a raster by
// pushing its pixel corners through the geotransform.
func boundsFromTransform(gt [6]float64, width, height int) []float64 {
	apply := func(col, row float64) (float64, float64) {
		x := gt[0] + col*gt[1] + row*gt[2]
		y := gt[3] + col*gt[4] + row*gt[5]
		return x, y
	}
	w, h := float64(width), float64(height)
	xs := make([]float64, 0, 4)
	ys := make([]float64, 0, 4)
	for _, c := range [][2]float64{{0, 0}, {w, 0}, {w, h}, {0, h}} {
		x, y := apply(c[0], c[1])
		xs = append(xs, x)
		ys = append(ys, y)
	}
	return []float64{min4(xs), min4(ys), max4(xs), max4(ys)}
}

func min4(vs []float64) float64 {
	m := vs[0]
	for _, v := range vs[1:] {
		m = math.Min(m, v)
	}
	return m
}

func max4(vs []float64) float64 {
	m := vs[0]
	for _, v := range vs[1:] {
		m = math.Max(m, v)
	}
	return m
}

// boundsPolygon returns the GeoJSON polygon of a [west, south, east, north]
// box.
func boundsPolygon(b []float64) orb.Polygon {
	return orb.Polygon{{
		{b[0], b[1]},
		{b[2], b[1]},
		{b[2], b[3]},
		{b[0], b[3]},
		{b[0], b[1]},
	}}
}

// geometryMap renders an orb geometry as a GeoJSON-shaped map. orb types
// marshal as plain coordinate arrays, so the map serializes to valid GeoJSON.
func geometryMap(g orb.Geometry) map[string]interface{} {
	return map[string]interface{}{
		"type":        g.GeoJSONType(),
		"coordinates": g,
	}
}

// ProjectionInfo returns the fields of the STAC projection extension for a
// dataset: EPSG code and WKT2 when available, plus the native-CRS footprint,
// bounds, shape and affine transform.
func ProjectionInfo(ds *godal.Dataset) (map[string]interface{}, error) {
	st := ds.Structure()
	gt, err := ds.GeoTransform()
	if err != nil {
		return nil, sferr.Wrapf(err, "reading geotransform")
	}
	bounds := boundsFromTransform(gt, st.SizeX, st.SizeY)
	meta := map[string]interface{}{
		"epsg":     nil,
		"geometry": geometryMap(boundsPolygon(bounds)),
		"bbox":     bounds,
		"shape":    []int{st.SizeY, st.SizeX},
		// Row-major 3x3 affine matrix.
		"transform": []float64{gt[1], gt[2], gt[0], gt[4], gt[5], gt[3], 0, 0, 1},
	}
	if wkt := ds.Projection(); wkt != "" {
		meta["wkt2"] = wkt
		if epsg := EPSGFromWKT(wkt); epsg != 0 {
			meta["epsg"] = epsg
		}
	}
	return meta, nil
}

// GeometryInfo returns the WGS84 footprint and bounding box of a dataset.
// densifyPts adds that many interpolated points per edge before
// reprojection, so curved projection edges survive the transform. Datasets
// without a CRS fall back to the whole world.
func GeometryInfo(ds *godal.Dataset, densifyPts, precision int) (map[string]interface{}, error) {
	if densifyPts < 0 {
		return nil, sferr.Fmt("densifyPts must be positive, got %d", densifyPts)
	}
	wkt := ds.Projection()
	if wkt == "" {
		sflog.Warningf("Raster has no CRS information, using the whole world as its footprint")
		return map[string]interface{}{
			"bbox":      worldBounds,
			"footprint": geometryMap(boundsPolygon(worldBounds)),
		}, nil
	}
	st := ds.Structure()
	gt, err := ds.GeoTransform()
	if err != nil {
		return nil, sferr.Wrapf(err, "reading geotransform")
	}
	poly := boundsPolygon(boundsFromTransform(gt, st.SizeX, st.SizeY))
	if densifyPts > 0 && EPSGFromWKT(wkt) != 4326 {
		poly = orb.Polygon{densifyRing(poly[0], densifyPts)}
	}
	geom, err := geo.Transform(poly, wkt, "EPSG:4326", precision)
	if err != nil {
		return nil, sferr.Wrapf(err, "reprojecting footprint")
	}
	b := geom.Bound()
	return map[string]interface{}{
		"bbox":      []float64{b.Min[0], b.Min[1], b.Max[0], b.Max[1]},
		"footprint": geometryMap(geom),
	}, nil
}

// densifyRing inserts pts-1 interpolated points on every edge of the ring.
func densifyRing(ring orb.Ring, pts int) orb.Ring {
	out := orb.Ring{}
	for i := 0; i < len(ring)-1; i++ {
		a, b := ring[i], ring[i+1]
		for k := 0; k < pts; k++ {
			t := float64(k) / float64(pts)
			out = append(out, orb.Point{a[0] + t*(b[0]-a[0]), a[1] + t*(b[1]-a[1])})
		}
	}
	out = append(out, ring[len(ring)-1])
	return out
}

// RasterInfo returns one raster-extension band object per band: data type,
// scale and offset, nodata, unit and pixel statistics with a histogram. The
// statistics are computed on a read downsampled to maxSize pixels on the
// longest edge; pass 0 to read at full resolution.
func RasterInfo(ds *godal.Dataset, maxSize int) ([]map[string]interface{}, error) {
	st := ds.Structure()
	width, height := st.SizeX, st.SizeY
	if maxSize > 0 && maxInt(width, height) > maxSize {
		ratio := float64(height) / float64(width)
		if ratio > 1 {
			height = maxSize
			width = int(math.Ceil(float64(height) / ratio))
		} else {
			width = maxSize
			height = int(math.Ceil(float64(width) * ratio))
		}
	}

	sampling := strings.ToLower(ds.Metadata("AREA_OR_POINT"))

	meta := []map[string]interface{}{}
	for i, band := range ds.Bands() {
		bandMeta := map[string]interface{}{
			"data_type": dataTypeName(band.Structure().DataType),
			"scale":     metadataFloat(band.Metadata("SCALE"), 1),
			"offset":    metadataFloat(band.Metadata("OFFSET"), 0),
		}
		if sampling != "" {
			bandMeta["sampling"] = sampling
		}
		var nodata *float64
		if nd, ok := band.NoData(); ok {
			nodata = &nd
			switch {
			case math.IsNaN(nd):
				bandMeta["nodata"] = "nan"
			case math.IsInf(nd, 1):
				bandMeta["nodata"] = "inf"
			case math.IsInf(nd, -1):
				bandMeta["nodata"] = "-inf"
			default:
				bandMeta["nodata"] = nd
			}
		}
		if unit := band.Metadata("UNITTYPE"); unit != "" {
			bandMeta["unit"] = unit
		}

		buf := make([]float64, width*height)
		if err := band.Read(0, 0, buf, width, height, godal.Window(st.SizeX, st.SizeY)); err != nil {
			return nil, sferr.Wrapf(err, "reading band %d", i+1)
		}
		stats := bandStats(buf, nodata)
		bandMeta["statistics"] = stats.statisticsMap()
		bandMeta["histogram"] = stats.histogramMap()
		meta = append(meta, bandMeta)
	}
	return meta, nil
}

// EOBandsInfo returns the eo:bands objects of a dataset: a synthetic name
// plus the band description, falling back to its color interpretation.
func EOBandsInfo(ds *godal.Dataset) []map[string]interface{} {
	eoBands := []map[string]interface{}{}
	for i, band := range ds.Bands() {
		bandMeta := map[string]interface{}{
			"name": fmt.Sprintf("b%d", i+1),
		}
		description := band.Metadata("DESCRIPTION")
		if description == "" {
			description = band.ColorInterp().Name()
		}
		if description != "" {
			bandMeta["description"] = description
		}
		eoBands = append(eoBands, bandMeta)
	}
	return eoBands
}

// FileInfo opens the raster at the given URL and aggregates all of its
// extractable metadata.
func FileInfo(ctx context.Context, fileURL string) (map[string]interface{}, error) {
	ds, err := Open(ctx, fileURL)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = ds.Close()
	}()
	projection, err := ProjectionInfo(ds)
	if err != nil {
		return nil, err
	}
	geometry, err := GeometryInfo(ds, 0, -1)
	if err != nil {
		return nil, err
	}
	rasterBands, err := RasterInfo(ds, DefaultMaxSize)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"projection":   projection,
		"geometry":     geometry,
		"raster_bands": rasterBands,
		"eo_bands":     EOBandsInfo(ds),
		"tags":         ds.Metadatas(),
	}, nil
}

func dataTypeName(dt godal.DataType) string {
	switch dt {
	case godal.Byte:
		return "uint8"
	case godal.UInt16:
		return "uint16"
	case godal.Int16:
		return "int16"
	case godal.UInt32:
		return "uint32"
	case godal.Int32:
		return "int32"
	case godal.Float32:
		return "float32"
	case godal.Float64:
		return "float64"
	case godal.CInt16:
		return "cint16"
	case godal.CInt32:
		return "cint32"
	case godal.CFloat32:
		return "cfloat32"
	case godal.CFloat64:
		return "cfloat64"
	}
	return "unknown"
}

func metadataFloat(s string, fallback float64) float64 {
	if s == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fallback
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
