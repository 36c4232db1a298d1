package engine

import (
	"encoding/json"
	"regexp"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"go.stacforge.org/infra/go/geo"
	"go.stacforge.org/infra/go/sferr"
)

// Filters transform a piped value. Template pipelines pass the piped value as
// the last argument, so every filter takes its options first and the value
// it operates on last:
//
//	{{ .scene_info.footprint | shape_from_footprint 6 | bbox | tojson }}
func filters() map[string]interface{} {
	return map[string]interface{}{
		"regex_match":     filterRegexMatch,
		"regex_fullmatch": filterRegexFullmatch,
		"regex_search":    filterRegexSearch,
		"regex_sub":       filterRegexSub,
		"regex_subn":      filterRegexSubn,
		"regex_split":     filterRegexSplit,
		"regex_findall":   filterRegexFindall,
		"regex_finditer":  filterRegexFinditer,

		"shape_from_footprint": filterShapeFromFootprint,
		"bbox":                 filterBbox,
		"centroid":             filterCentroid,
		"simplify":             filterSimplify,
		"transform":            filterTransform,
		"tojson":               filterToJSON,

		"projection_info": filterProjectionInfo,
		"geometry_info":   filterGeometryInfo,
		"raster_info":     filterRasterInfo,
		"eo_bands_info":   filterEOBandsInfo,
	}
}

// Match is the result of a successful regex filter. A nil *Match is falsy in
// template conditionals, so `{{ if ... | regex_match "p" }}` works as
// expected.
type Match struct {
	groups []string
	names  []string
}

// Group returns the i-th capture group; group 0 is the whole match.
func (m *Match) Group(i int) string {
	if i < 0 || i >= len(m.groups) {
		return ""
	}
	return m.groups[i]
}

// Groups returns all capture groups after the whole match.
func (m *Match) Groups() []string {
	return m.groups[1:]
}

// Named returns the named capture group.
func (m *Match) Named(name string) string {
	for i, n := range m.names {
		if n == name && i < len(m.groups) {
			return m.groups[i]
		}
	}
	return ""
}

// String returns the whole match, so a Match renders as its text.
func (m *Match) String() string {
	return m.Group(0)
}

func newMatch(re *regexp.Regexp, groups []string) *Match {
	if groups == nil {
		return nil
	}
	return &Match{
		groups: groups,
		names:  re.SubexpNames(),
	}
}

func filterRegexMatch(pattern, s string) (*Match, error) {
	re, err := regexp.Compile(anchorStart(pattern))
	if err != nil {
		return nil, sferr.Wrapf(err, "compiling pattern %q", pattern)
	}
	return newMatch(re, re.FindStringSubmatch(s)), nil
}

func filterRegexFullmatch(pattern, s string) (*Match, error) {
	re, err := regexp.Compile(anchorStart(pattern) + `\z`)
	if err != nil {
		return nil, sferr.Wrapf(err, "compiling pattern %q", pattern)
	}
	return newMatch(re, re.FindStringSubmatch(s)), nil
}

func filterRegexSearch(pattern, s string) (*Match, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, sferr.Wrapf(err, "compiling pattern %q", pattern)
	}
	return newMatch(re, re.FindStringSubmatch(s)), nil
}

func filterRegexSub(pattern, repl, s string) (string, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return "", sferr.Wrapf(err, "compiling pattern %q", pattern)
	}
	return re.ReplaceAllString(s, repl), nil
}

// SubResult is the value of regex_subn: the rewritten string plus the number
// of replacements made.
type SubResult struct {
	Result string
	Count  int
}

func filterRegexSubn(pattern, repl, s string) (SubResult, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return SubResult{}, sferr.Wrapf(err, "compiling pattern %q", pattern)
	}
	count := len(re.FindAllStringIndex(s, -1))
	return SubResult{
		Result: re.ReplaceAllString(s, repl),
		Count:  count,
	}, nil
}

func filterRegexSplit(pattern, s string) ([]string, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, sferr.Wrapf(err, "compiling pattern %q", pattern)
	}
	return re.Split(s, -1), nil
}

func filterRegexFindall(pattern, s string) ([]string, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, sferr.Wrapf(err, "compiling pattern %q", pattern)
	}
	matches := re.FindAllStringSubmatch(s, -1)
	out := []string{}
	for _, m := range matches {
		// With capture groups report the first group, as the group is what
		// the pattern was written to extract.
		if len(m) > 1 {
			out = append(out, m[1])
		} else {
			out = append(out, m[0])
		}
	}
	return out, nil
}

func filterRegexFinditer(pattern, s string) ([]*Match, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, sferr.Wrapf(err, "compiling pattern %q", pattern)
	}
	matches := re.FindAllStringSubmatch(s, -1)
	out := []*Match{}
	for _, m := range matches {
		out = append(out, newMatch(re, m))
	}
	return out, nil
}

// anchorStart anchors a pattern at the start of the string, preserving any
// inline flag prefix.
func anchorStart(pattern string) string {
	flags := ""
	for len(pattern) >= 4 && pattern[0] == '(' && pattern[1] == '?' && pattern[3] == ')' {
		flags += pattern[:4]
		pattern = pattern[4:]
	}
	return flags + `\A(?:` + pattern + `)`
}

// filterShapeFromFootprint builds a polygon from a flat lat/lon coordinate
// list. Rounding defaults to 6 decimal places:
//
//	{{ .scene_info.footprint | shape_from_footprint }}
//	{{ .scene_info.footprint | shape_from_footprint 4 }}
func filterShapeFromFootprint(args ...interface{}) (orb.Geometry, error) {
	rounding := 6
	switch len(args) {
	case 1:
	case 2:
		r, err := roundingArg(args[0])
		if err != nil {
			return nil, err
		}
		rounding = r
	default:
		return nil, sferr.Fmt("shape_from_footprint takes an optional rounding and a footprint, got %d arguments", len(args))
	}
	footprint, err := toFloats(args[len(args)-1])
	if err != nil {
		return nil, err
	}
	return geo.ShapeFromFootprint(footprint, rounding)
}

func roundingArg(v interface{}) (int, error) {
	switch t := v.(type) {
	case int:
		return t, nil
	case float64:
		return int(t), nil
	default:
		return 0, sferr.Fmt("rounding must be a number, got %T", v)
	}
}

// toFloats accepts a []float64 or a []interface{} of numbers, the latter
// being what a JSON-decoded scene produces.
func toFloats(v interface{}) ([]float64, error) {
	switch t := v.(type) {
	case []float64:
		return t, nil
	case []interface{}:
		out := make([]float64, 0, len(t))
		for _, e := range t {
			f, ok := e.(float64)
			if !ok {
				return nil, sferr.Fmt("footprint coordinate of type %T is not a number", e)
			}
			out = append(out, f)
		}
		return out, nil
	default:
		return nil, sferr.Fmt("value of type %T is not a coordinate list", v)
	}
}

// toGeometry accepts either an orb geometry produced by another filter or a
// GeoJSON-shaped map coming straight from decoded scene metadata.
func toGeometry(v interface{}) (orb.Geometry, error) {
	switch t := v.(type) {
	case orb.Geometry:
		return t, nil
	case *geojson.Geometry:
		return t.Geometry(), nil
	case map[string]interface{}:
		b, err := json.Marshal(t)
		if err != nil {
			return nil, sferr.Wrapf(err, "encoding geometry")
		}
		g, err := geojson.UnmarshalGeometry(b)
		if err != nil {
			return nil, sferr.Wrapf(err, "decoding GeoJSON geometry")
		}
		return g.Geometry(), nil
	default:
		return nil, sferr.Fmt("value of type %T is not a geometry", v)
	}
}

func filterBbox(v interface{}) ([]float64, error) {
	g, err := toGeometry(v)
	if err != nil {
		return nil, err
	}
	return geo.Bbox(g), nil
}

func filterCentroid(v interface{}) (orb.Geometry, error) {
	g, err := toGeometry(v)
	if err != nil {
		return nil, err
	}
	return geo.Centroid(g)
}

func filterSimplify(tolerance float64, v interface{}) (orb.Geometry, error) {
	g, err := toGeometry(v)
	if err != nil {
		return nil, err
	}
	return geo.Simplify(g, tolerance), nil
}

// filterTransform reprojects a geometry between two CRSs, optionally rounding
// the output coordinates to the given number of decimal places:
//
//	{{ ... | transform 32633 4326 }}
//	{{ ... | transform 32633 4326 6 }}
func filterTransform(srcCRS, dstCRS interface{}, rest ...interface{}) (orb.Geometry, error) {
	precision := -1
	switch len(rest) {
	case 1:
	case 2:
		p, err := roundingArg(rest[0])
		if err != nil {
			return nil, err
		}
		precision = p
	default:
		return nil, sferr.Fmt("transform takes a source CRS, a target CRS, an optional precision and a geometry, got %d arguments", 2+len(rest))
	}
	g, err := toGeometry(rest[len(rest)-1])
	if err != nil {
		return nil, err
	}
	src, err := geo.CRSString(srcCRS)
	if err != nil {
		return nil, err
	}
	dst, err := geo.CRSString(dstCRS)
	if err != nil {
		return nil, err
	}
	return geo.Transform(g, src, dst, precision)
}

// filterToJSON serializes any value to JSON. Geometries serialize as GeoJSON.
func filterToJSON(v interface{}) (string, error) {
	if g, ok := v.(orb.Geometry); ok {
		v = geojson.NewGeometry(g)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", sferr.Wrapf(err, "encoding value to JSON")
	}
	return string(b), nil
}
