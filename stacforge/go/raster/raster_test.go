package raster

import (
	"context"
	"testing"

	"github.com/airbusgeo/godal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestURLToVSI(t *testing.T) {
	ctx := context.Background()

	vsi, opts, err := URLToVSI(ctx, "file:///data/scene.tif")
	require.NoError(t, err)
	assert.Equal(t, "/data/scene.tif", vsi)
	assert.Empty(t, opts)

	// A signed blob URL goes through vsicurl, the credential is in the URL.
	signed := "https://acct.blob.core.windows.net/c/scene.tif?sv=2024&sig=abc"
	vsi, opts, err = URLToVSI(ctx, signed)
	require.NoError(t, err)
	assert.Equal(t, "/vsicurl/"+signed, vsi)
	assert.Empty(t, opts)

	vsi, opts, err = URLToVSI(ctx, "https://example.com/scene.tif")
	require.NoError(t, err)
	assert.Equal(t, "/vsicurl/https://example.com/scene.tif", vsi)
	assert.Empty(t, opts)

	_, _, err = URLToVSI(ctx, "ftp://example.com/scene.tif")
	require.Error(t, err)
}

func TestEPSGFromWKT(t *testing.T) {
	wkt1 := `GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563,AUTHORITY["EPSG","7030"]],AUTHORITY["EPSG","6326"]],AUTHORITY["EPSG","4326"]]`
	assert.Equal(t, 4326, EPSGFromWKT(wkt1))

	wkt2 := `PROJCRS["WGS 84 / UTM zone 33N",BASEGEOGCRS["WGS 84",ID["EPSG",4326]],ID["EPSG",32633]]`
	assert.Equal(t, 32633, EPSGFromWKT(wkt2))

	assert.Equal(t, 0, EPSGFromWKT(`LOCAL_CS["arbitrary"]`))
	assert.Equal(t, 0, EPSGFromWKT(""))
}

func TestBoundsFromTransform(t *testing.T) {
	// North-up raster: origin at the upper left, negative pixel height.
	gt := [6]float64{500000, 10, 0, 4000000, 0, -10}
	b := boundsFromTransform(gt, 100, 200)
	assert.Equal(t, []float64{500000, 3998000, 501000, 4000000}, b)
}

func TestBoundsPolygonIsClosed(t *testing.T) {
	p := boundsPolygon([]float64{0, 0, 10, 20})
	require.Len(t, p[0], 5)
	assert.Equal(t, p[0][0], p[0][4])
}

func TestDensifyRing(t *testing.T) {
	p := boundsPolygon([]float64{0, 0, 10, 10})
	dense := densifyRing(p[0], 4)
	// Four edges of four points each, plus the closing vertex.
	require.Len(t, dense, 17)
	assert.Equal(t, dense[0], dense[len(dense)-1])
	// Interpolated points sit on the first edge.
	assert.Equal(t, 2.5, dense[1][0])
	assert.Equal(t, 0.0, dense[1][1])
}

func TestBandStats(t *testing.T) {
	nodata := 0.0
	data := []float64{0, 0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	st := bandStats(data, &nodata)
	assert.Equal(t, 1.0, st.min)
	assert.Equal(t, 10.0, st.max)
	assert.InDelta(t, 5.5, st.mean, 1e-9)
	assert.InDelta(t, 10.0/12.0*100, st.validPercent, 1e-9)
	total := 0
	for _, c := range st.buckets {
		total += c
	}
	assert.Equal(t, 10, total)
}

func TestBandStats_MasksNaN(t *testing.T) {
	data := []float64{1, 2, 3, 4}
	nan := []float64{1, 2, 3, 4}
	nan = append(nan, 0/zero(), 1/zero())
	with := bandStats(nan, nil)
	without := bandStats(data, nil)
	assert.Equal(t, without.mean, with.mean)
	assert.InDelta(t, 4.0/6.0*100, with.validPercent, 1e-9)
}

func TestBandStats_ConstantBand(t *testing.T) {
	st := bandStats([]float64{5, 5, 5}, nil)
	assert.Equal(t, 4.5, st.histMin)
	assert.Equal(t, 5.5, st.histMax)
	assert.Equal(t, 3, st.buckets[5])
}

func TestBandStats_AllMasked(t *testing.T) {
	nodata := 7.0
	st := bandStats([]float64{7, 7}, &nodata)
	assert.Equal(t, 0.0, st.validPercent)
	assert.Len(t, st.buckets, histogramBuckets)
}

func TestDataTypeName(t *testing.T) {
	assert.Equal(t, "uint8", dataTypeName(godal.Byte))
	assert.Equal(t, "float32", dataTypeName(godal.Float32))
	assert.Equal(t, "unknown", dataTypeName(godal.Unknown))
}

func TestMetadataFloat(t *testing.T) {
	assert.Equal(t, 1.0, metadataFloat("", 1))
	assert.Equal(t, 0.5, metadataFloat("0.5", 1))
	assert.Equal(t, 1.0, metadataFloat("junk", 1))
}

func zero() float64 { return 0 }
