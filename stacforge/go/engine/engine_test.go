package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEnv(blobs map[string]string) (*Environment, *int) {
	fetches := 0
	fetch := func(ctx context.Context, url string) ([]byte, error) {
		fetches++
		content, ok := blobs[url]
		if !ok {
			return nil, ErrTemplateNotFound
		}
		return []byte(content), nil
	}
	return NewEnvironment(fetch), &fetches
}

func TestRenderText(t *testing.T) {
	env, _ := testEnv(nil)
	gt, err := env.GeoTemplateFromSource(`Scene {{ .scene_info.name }}`)
	require.NoError(t, err)
	out, err := gt.RenderText(context.Background(), map[string]interface{}{"name": "LC08"})
	require.NoError(t, err)
	assert.Equal(t, "Scene LC08", out)
}

func TestRenderText_MissingValueIsRuntimeError(t *testing.T) {
	env, _ := testEnv(nil)
	gt, err := env.GeoTemplateFromSource(`{{ .scene_info.missing }}`)
	require.NoError(t, err)
	_, err = gt.RenderText(context.Background(), map[string]interface{}{"name": "x"})
	require.Error(t, err)
	re := &RuntimeError{}
	assert.True(t, errors.As(err, &re))
}

func TestRenderJSON(t *testing.T) {
	env, _ := testEnv(nil)
	gt, err := env.GeoTemplateFromSource(`{"id": "{{ .scene_info.id }}"}`)
	require.NoError(t, err)
	m, err := gt.RenderJSON(context.Background(), map[string]interface{}{"id": "a1"})
	require.NoError(t, err)
	assert.Equal(t, "a1", m["id"])
}

func TestRenderJSON_BadJSONIsJSONError(t *testing.T) {
	env, _ := testEnv(nil)
	gt, err := env.GeoTemplateFromSource(`not json at all`)
	require.NoError(t, err)
	_, err = gt.RenderJSON(context.Background(), nil)
	require.Error(t, err)
	je := &JSONError{}
	assert.True(t, errors.As(err, &je))
}

const itemTemplate = `{
	"type": "Feature",
	"stac_version": "1.0.0",
	"id": "{{ .scene_info.id }}",
	"geometry": {{ .scene_info.footprint | shape_from_footprint 6 | tojson }},
	"bbox": {{ .scene_info.footprint | shape_from_footprint 6 | bbox | tojson }},
	"properties": {"datetime": "2024-05-01T12:00:00Z"},
	"assets": {"data": {"href": "{{ .scene_info.href }}"}},
	"links": []
}`

func sceneInfo() map[string]interface{} {
	return map[string]interface{}{
		"id":   "scene-001",
		"href": "https://acct.blob.core.windows.net/scenes/scene-001.tif",
		"footprint": []float64{
			0, 0,
			0, 10,
			10, 10,
			10, 0,
		},
	}
}

func TestRenderSTAC(t *testing.T) {
	env, _ := testEnv(nil)
	gt, err := env.GeoTemplateFromSource(itemTemplate)
	require.NoError(t, err)
	item, err := gt.RenderSTAC(context.Background(), sceneInfo(), true)
	require.NoError(t, err)
	assert.Equal(t, "scene-001", item.ID)
	assert.Len(t, item.BBox, 4)
}

func TestRenderSTAC_NotAnItemIsStacError(t *testing.T) {
	env, _ := testEnv(nil)
	gt, err := env.GeoTemplateFromSource(`{"type": "FeatureCollection"}`)
	require.NoError(t, err)
	_, err = gt.RenderSTAC(context.Background(), nil, false)
	require.Error(t, err)
	se := &StacError{}
	assert.True(t, errors.As(err, &se))
}

func TestRenderSTAC_ValidationFailureIsStacError(t *testing.T) {
	env, _ := testEnv(nil)
	// Structurally an item, but properties.datetime is missing.
	gt, err := env.GeoTemplateFromSource(`{
		"type": "Feature",
		"stac_version": "1.0.0",
		"id": "x",
		"geometry": null,
		"properties": {},
		"assets": {},
		"links": []
	}`)
	require.NoError(t, err)
	_, err = gt.RenderSTAC(context.Background(), nil, true)
	require.Error(t, err)
	se := &StacError{}
	assert.True(t, errors.As(err, &se))

	// Without validation the same render succeeds.
	item, err := gt.RenderSTAC(context.Background(), nil, false)
	require.NoError(t, err)
	assert.Equal(t, "x", item.ID)
}

func TestRegexFilters(t *testing.T) {
	env, _ := testEnv(nil)
	ctx := context.Background()

	render := func(src string, scene interface{}) string {
		gt, err := env.GeoTemplateFromSource(src)
		require.NoError(t, err)
		out, err := gt.RenderText(ctx, scene)
		require.NoError(t, err)
		return out
	}

	// regex_match anchors at the start and exposes capture groups.
	out := render(`{{ with .scene_info.name | regex_match "LC(\\d+)" }}{{ .Group 1 }}{{ end }}`,
		map[string]interface{}{"name": "LC08_scene"})
	assert.Equal(t, "08", out)

	// No match renders the else branch.
	out = render(`{{ if .scene_info.name | regex_match "^X" }}yes{{ else }}no{{ end }}`,
		map[string]interface{}{"name": "LC08"})
	assert.Equal(t, "no", out)

	// Case folding via the inline flag global.
	out = render(`{{ if .scene_info.name | regex_match (print RE_IGNORECASE "lc") }}yes{{ else }}no{{ end }}`,
		map[string]interface{}{"name": "LC08"})
	assert.Equal(t, "yes", out)

	out = render(`{{ .scene_info.name | regex_sub "_+" "-" }}`,
		map[string]interface{}{"name": "a__b_c"})
	assert.Equal(t, "a-b-c", out)

	out = render(`{{ (.scene_info.name | regex_subn "a" "b").Count }}`,
		map[string]interface{}{"name": "banana"})
	assert.Equal(t, "3", out)

	out = render(`{{ .scene_info.name | regex_split "," | len }}`,
		map[string]interface{}{"name": "a,b,c"})
	assert.Equal(t, "3", out)

	out = render(`{{ .scene_info.name | regex_findall "\\d+" | tojson }}`,
		map[string]interface{}{"name": "a1b22c333"})
	assert.Equal(t, `["1","22","333"]`, out)
}

func TestRegexFullmatch(t *testing.T) {
	m, err := filterRegexFullmatch(`\d+`, "123")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "123", m.Group(0))

	m, err = filterRegexFullmatch(`\d+`, "123x")
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestMatchNamedGroup(t *testing.T) {
	m, err := filterRegexSearch(`(?P<year>\d{4})-(?P<month>\d{2})`, "on 2024-05-01")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "2024", m.Named("year"))
	assert.Equal(t, "05", m.Named("month"))
	assert.Equal(t, "", m.Named("day"))
}

func TestRegexFinditer(t *testing.T) {
	matches, err := filterRegexFinditer(`(\d+)`, "a1b22c333")
	require.NoError(t, err)
	require.Len(t, matches, 3)
	assert.Equal(t, "22", matches[1].Group(0))
	assert.Equal(t, "333", matches[2].Group(1))

	env, _ := testEnv(nil)
	gt, err := env.GeoTemplateFromSource(
		`{{ range .scene_info.name | regex_finditer "\\d+" }}[{{ . }}]{{ end }}`)
	require.NoError(t, err)
	out, err := gt.RenderText(context.Background(), map[string]interface{}{"name": "a1b22c333"})
	require.NoError(t, err)
	assert.Equal(t, "[1][22][333]", out)
}

func TestShapeFromFootprint(t *testing.T) {
	footprint := []float64{0, 0, 0, 10, 10, 10, 10, 0}

	// Rounding defaults to 6 decimal places.
	g, err := filterShapeFromFootprint(footprint)
	require.NoError(t, err)
	explicit, err := filterShapeFromFootprint(6, footprint)
	require.NoError(t, err)
	assert.Equal(t, explicit, g)

	// A JSON-decoded scene produces []interface{}, not []float64.
	decoded := make([]interface{}, len(footprint))
	for i, f := range footprint {
		decoded[i] = f
	}
	g2, err := filterShapeFromFootprint(decoded)
	require.NoError(t, err)
	assert.Equal(t, g, g2)

	_, err = filterShapeFromFootprint()
	assert.Error(t, err)
	_, err = filterShapeFromFootprint(6, 7, footprint)
	assert.Error(t, err)
	_, err = filterShapeFromFootprint([]interface{}{"not", "numbers"})
	assert.Error(t, err)
}

func TestTransformArguments(t *testing.T) {
	// Too many arguments is rejected before any reprojection happens.
	_, err := filterTransform(32633, 4326, 6, 7, map[string]interface{}{})
	assert.Error(t, err)

	// A non-geometry piped value is rejected.
	_, err = filterTransform(32633, 4326, "not a geometry")
	assert.Error(t, err)
	_, err = filterTransform(32633, 4326, 6, "not a geometry")
	assert.Error(t, err)
}

func TestTests(t *testing.T) {
	env, _ := testEnv(nil)
	gt, err := env.GeoTemplateFromSource(
		`{{ if .scene_info.name | starts_with "LC" }}landsat{{ end }}` +
			`{{ if .scene_info.name | ends_with ".tif" }} tif{{ end }}` +
			`{{ if .scene_info.name | contains "08" }} oli{{ end }}`)
	require.NoError(t, err)
	out, err := gt.RenderText(context.Background(), map[string]interface{}{"name": "LC08.tif"})
	require.NoError(t, err)
	assert.Equal(t, "landsat tif oli", out)
}

func TestSprigFuncsAvailable(t *testing.T) {
	env, _ := testEnv(nil)
	gt, err := env.GeoTemplateFromSource(`{{ .scene_info.name | upper }}`)
	require.NoError(t, err)
	out, err := gt.RenderText(context.Background(), map[string]interface{}{"name": "abc"})
	require.NoError(t, err)
	assert.Equal(t, "ABC", out)
}

func TestGetTextGetJSON(t *testing.T) {
	env, _ := testEnv(map[string]string{
		"https://acct.blob.core.windows.net/c/meta.txt":  "hello",
		"https://acct.blob.core.windows.net/c/meta.json": `{"k": "v"}`,
	})
	gt, err := env.GeoTemplateFromSource(
		`{{ get_text "https://acct.blob.core.windows.net/c/meta.txt" }} ` +
			`{{ (get_json "https://acct.blob.core.windows.net/c/meta.json").k }}`)
	require.NoError(t, err)
	out, err := gt.RenderText(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "hello v", out)
}

func TestGetXML(t *testing.T) {
	env, _ := testEnv(map[string]string{
		"https://acct.blob.core.windows.net/c/meta.xml": `<scene><id>abc</id></scene>`,
	})
	gt, err := env.GeoTemplateFromSource(
		`{{ (get_xml "https://acct.blob.core.windows.net/c/meta.xml").scene.id }}`)
	require.NoError(t, err)
	out, err := gt.RenderText(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "abc", out)
}

func TestAffineFunctions(t *testing.T) {
	env, _ := testEnv(nil)
	gt, err := env.GeoTemplateFromSource(`{{ affine_transform_from_origin -180.0 90.0 0.5 0.5 | tojson }}`)
	require.NoError(t, err)
	out, err := gt.RenderText(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, `[0.5,0,-180,0,-0.5,90,0,0,1]`, out)
}

func TestNowFunction(t *testing.T) {
	env, _ := testEnv(nil)
	gt, err := env.GeoTemplateFromSource(`{{ now }}`)
	require.NoError(t, err)
	out, err := gt.RenderText(context.Background(), nil)
	require.NoError(t, err)
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{6}Z$`, out)
}

func TestTemplateCache(t *testing.T) {
	url := "https://acct.blob.core.windows.net/templates/t.json"
	env, fetches := testEnv(map[string]string{url: `ok`})
	ctx := context.Background()

	gt1, err := env.GeoTemplateFromStorage(ctx, url)
	require.NoError(t, err)
	gt2, err := env.GeoTemplateFromStorage(ctx, url)
	require.NoError(t, err)
	assert.Same(t, gt1, gt2)
	assert.Equal(t, 1, *fetches)

	env.ClearCache()
	_, err = env.GeoTemplateFromStorage(ctx, url)
	require.NoError(t, err)
	assert.Equal(t, 2, *fetches)
}

func TestTemplateCache_Concurrent(t *testing.T) {
	url := "https://acct.blob.core.windows.net/templates/t.json"
	env, fetches := testEnv(map[string]string{url: `ok`})
	wg := sync.WaitGroup{}
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.GeoTemplateFromStorage(context.Background(), url)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, *fetches)
}

func TestTemplateNotFound(t *testing.T) {
	env, _ := testEnv(nil)
	_, err := env.GeoTemplateFromStorage(context.Background(), "https://acct.blob.core.windows.net/templates/missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTemplateNotFound))
}

func TestValidate_Valid(t *testing.T) {
	env, _ := testEnv(nil)
	valid, errs := env.Validate(itemTemplate)
	assert.True(t, valid)
	assert.Empty(t, errs)
}

func TestValidate_SyntaxError(t *testing.T) {
	env, _ := testEnv(nil)
	valid, errs := env.Validate("line one\n{{ .scene_info.name }\n")
	assert.False(t, valid)
	require.Len(t, errs, 1)
	assert.Equal(t, SyntaxError, errs[0].Type)
	assert.Equal(t, 2, errs[0].Line)
}

func TestValidate_UndeclaredFunction(t *testing.T) {
	env, _ := testEnv(nil)
	valid, errs := env.Validate(`{{ bogus_function 1 }}`)
	assert.False(t, valid)
	require.Len(t, errs, 1)
	assert.Equal(t, UndeclaredVariable, errs[0].Type)
	assert.Contains(t, errs[0].Message, "bogus_function")
}

func TestValidate_UndeclaredField(t *testing.T) {
	env, _ := testEnv(nil)
	valid, errs := env.Validate("a\nb\n{{ .something_else.id }}")
	assert.False(t, valid)
	require.Len(t, errs, 1)
	assert.Equal(t, UndeclaredVariable, errs[0].Type)
	assert.Equal(t, 3, errs[0].Line)
}

func TestValidate_DeclaredVariableIsFine(t *testing.T) {
	env, _ := testEnv(nil)
	valid, errs := env.Validate(`{{ $x := .scene_info.id }}{{ $x }}`)
	assert.True(t, valid, fmt.Sprint(errs))
}

func TestValidate_TemplateReference(t *testing.T) {
	env, _ := testEnv(nil)
	valid, errs := env.Validate(`{{ template "other" }}`)
	assert.False(t, valid)
	require.Len(t, errs, 1)
	assert.Equal(t, UnsupportedReference, errs[0].Type)
}

func TestValidateWithScene(t *testing.T) {
	env, _ := testEnv(nil)
	valid, errs, err := env.ValidateWithScene(`{{ .scene_info.id }}`, "")
	require.NoError(t, err)
	assert.True(t, valid)
	assert.Empty(t, errs)

	_, _, err = env.ValidateWithScene(`{{ .scene_info.id }}`, `{"id": "a"}`)
	require.ErrorIs(t, err, ErrNotImplemented)
}

func TestRenderOutputIsValidJSON(t *testing.T) {
	env, _ := testEnv(nil)
	gt, err := env.GeoTemplateFromSource(itemTemplate)
	require.NoError(t, err)
	out, err := gt.RenderText(context.Background(), sceneInfo())
	require.NoError(t, err)
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &m))
	geom := m["geometry"].(map[string]interface{})
	assert.Equal(t, "Polygon", geom["type"])
}
