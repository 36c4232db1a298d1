package geo

import (
	"fmt"
	"sync"

	"github.com/paulmach/orb"
	"github.com/twpayne/go-proj/v10"

	"go.stacforge.org/infra/go/sferr"
)

var (
	transformationsMtx sync.Mutex
	transformations    = map[string]*proj.PJ{}
)

// CRSString normalizes a CRS given either as an authority string
// ("EPSG:4326", a WKT or a PROJ string) or as a bare EPSG code.
func CRSString(crs interface{}) (string, error) {
	switch v := crs.(type) {
	case string:
		return v, nil
	case int:
		return fmt.Sprintf("EPSG:%d", v), nil
	case int64:
		return fmt.Sprintf("EPSG:%d", v), nil
	case float64:
		// JSON numbers decode as float64.
		return fmt.Sprintf("EPSG:%d", int(v)), nil
	default:
		return "", sferr.Fmt("CRS must be a string or an EPSG code, got %T", crs)
	}
}

// transformation returns a cached lon/lat-ordered transformation between two
// CRSs. PROJ transformation objects are expensive to create and are reused
// across template renders.
func transformation(srcCRS, dstCRS string) (*proj.PJ, error) {
	transformationsMtx.Lock()
	defer transformationsMtx.Unlock()
	key := srcCRS + "->" + dstCRS
	if pj, ok := transformations[key]; ok {
		return pj, nil
	}
	pj, err := proj.NewCRSToCRS(srcCRS, dstCRS, nil)
	if err != nil {
		return nil, sferr.Wrapf(err, "creating transformation %s", key)
	}
	// GeoJSON coordinates are always lon/lat regardless of the authority
	// axis order.
	pj, err = pj.NormalizeForVisualization()
	if err != nil {
		return nil, sferr.Wrapf(err, "normalizing transformation %s", key)
	}
	transformations[key] = pj
	return pj, nil
}

// Transform reprojects g from srcCRS to dstCRS. Coordinates are rounded to
// precision decimals when precision is non-negative, and any antimeridian
// crossing introduced by the reprojection is repaired.
func Transform(g orb.Geometry, srcCRS, dstCRS string, precision int) (orb.Geometry, error) {
	pj, err := transformation(srcCRS, dstCRS)
	if err != nil {
		return nil, err
	}
	var tErr error
	out := mapPoints(g, func(p orb.Point) orb.Point {
		if tErr != nil {
			return p
		}
		c, err := pj.Forward(proj.NewCoord(p[0], p[1], 0, 0))
		if err != nil {
			tErr = sferr.Wrapf(err, "transforming point (%f, %f)", p[0], p[1])
			return p
		}
		return orb.Point{c.X(), c.Y()}
	})
	if tErr != nil {
		return nil, tErr
	}
	out = RoundGeometry(out, precision)
	return FixGeometry(out), nil
}
