package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"text/template"

	"github.com/airbusgeo/godal"

	"go.stacforge.org/infra/go/sflog"
	"go.stacforge.org/infra/stacforge/go/stac"
)

// RuntimeError is returned when executing the template fails: a missing
// value, a filter called with bad arguments, a failed remote fetch.
type RuntimeError struct {
	err error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("error rendering template: %s", e.err)
}

func (e *RuntimeError) Unwrap() error { return e.err }

// JSONError is returned when the rendered text is not valid JSON.
type JSONError struct {
	err error
}

func (e *JSONError) Error() string {
	return fmt.Sprintf("error decoding rendered JSON: %s", e.err)
}

func (e *JSONError) Unwrap() error { return e.err }

// StacError is returned when the rendered JSON is not a STAC item, or fails
// item validation.
type StacError struct {
	err error
}

func (e *StacError) Error() string {
	return fmt.Sprintf("error creating STAC item: %s", e.err)
}

func (e *StacError) Unwrap() error { return e.err }

// GeoTemplate is a compiled template that renders scene information into
// text, JSON or a STAC item. Renders are serialized: the remote-access
// functions need the render's context, and template funcs cannot receive one
// per call.
type GeoTemplate struct {
	env  *Environment
	tmpl *template.Template

	mtx          sync.Mutex
	ctx          context.Context
	openDatasets []*godal.Dataset
}

// compile parses template source with the full function set installed.
func (e *Environment) compile(name, source string) (*GeoTemplate, error) {
	gt := &GeoTemplate{env: e}
	funcs := template.FuncMap{}
	for n, f := range e.baseFuncs {
		funcs[n] = f
	}
	for n, f := range gt.functions() {
		funcs[n] = f
	}
	tmpl, err := template.New(name).Option("missingkey=error").Funcs(funcs).Parse(source)
	if err != nil {
		return nil, err
	}
	gt.tmpl = tmpl
	return gt, nil
}

// RenderText renders the scene information into text.
func (gt *GeoTemplate) RenderText(ctx context.Context, sceneInfo interface{}) (string, error) {
	gt.mtx.Lock()
	defer gt.mtx.Unlock()
	gt.ctx = ctx
	defer gt.closeDatasets()

	buf := &bytes.Buffer{}
	err := gt.tmpl.Execute(buf, map[string]interface{}{
		"scene_info": sceneInfo,
	})
	if err != nil {
		sflog.Errorf("Runtime error rendering template: %s", err)
		return "", &RuntimeError{err: err}
	}
	return buf.String(), nil
}

// RenderJSON renders the scene information and decodes the result as a JSON
// object.
func (gt *GeoTemplate) RenderJSON(ctx context.Context, sceneInfo interface{}) (map[string]interface{}, error) {
	text, err := gt.RenderText(ctx, sceneInfo)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(text), &m); err != nil {
		sflog.Errorf("Error decoding rendered JSON: %s", err)
		return nil, &JSONError{err: err}
	}
	return m, nil
}

// RenderSTAC renders the scene information into a STAC item. When validate is
// true the item is also checked against the item schema.
func (gt *GeoTemplate) RenderSTAC(ctx context.Context, sceneInfo interface{}, validate bool) (*stac.Item, error) {
	m, err := gt.RenderJSON(ctx, sceneInfo)
	if err != nil {
		return nil, err
	}
	item, err := stac.NewItemFromMap(m)
	if err != nil {
		sflog.Errorf("Rendered entity is not a STAC item: %s", err)
		return nil, &StacError{err: err}
	}
	if validate {
		if err := stac.Validate(m); err != nil {
			sflog.Errorf("Error validating STAC item: %s", err)
			return nil, &StacError{err: err}
		}
	}
	return item, nil
}

func (gt *GeoTemplate) closeDatasets() {
	for _, ds := range gt.openDatasets {
		if err := ds.Close(); err != nil {
			sflog.Warningf("Closing raster dataset: %s", err)
		}
	}
	gt.openDatasets = nil
}
