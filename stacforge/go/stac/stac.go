// Package stac models the STAC entities the transformation pipeline emits:
// items rendered from templates and the temporary collection that binds them
// together for bulk ingestion.
package stac

import (
	"encoding/json"

	"go.stacforge.org/infra/go/sferr"
)

const (
	// Version is the STAC version of everything this pipeline writes.
	Version = "1.0.0"

	ItemType       = "Feature"
	CollectionType = "Collection"
)

// Item is a STAC item, the GeoJSON feature describing one scene.
type Item struct {
	Type        string                 `json:"type"`
	StacVersion string                 `json:"stac_version"`
	ID          string                 `json:"id"`
	Geometry    interface{}            `json:"geometry"`
	BBox        []float64              `json:"bbox,omitempty"`
	Properties  map[string]interface{} `json:"properties"`
	Assets      map[string]Asset       `json:"assets"`
	Links       []Link                 `json:"links"`
	Collection  string                 `json:"collection,omitempty"`
	Extensions  []string               `json:"stac_extensions,omitempty"`
}

// Asset is a file associated with an item.
type Asset struct {
	Href        string   `json:"href"`
	Type        string   `json:"type,omitempty"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Roles       []string `json:"roles,omitempty"`
}

// Link relates an entity to another resource.
type Link struct {
	Rel   string `json:"rel"`
	Href  string `json:"href"`
	Type  string `json:"type,omitempty"`
	Title string `json:"title,omitempty"`
}

// Collection is a STAC collection.
type Collection struct {
	Type        string `json:"type"`
	StacVersion string `json:"stac_version"`
	ID          string `json:"id"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description"`
	License     string `json:"license"`
	Extent      Extent `json:"extent"`
	Links       []Link `json:"links"`
}

// Extent is the spatial and temporal coverage of a collection.
type Extent struct {
	Spatial  SpatialExtent  `json:"spatial"`
	Temporal TemporalExtent `json:"temporal"`
}

type SpatialExtent struct {
	BBox [][]float64 `json:"bbox"`
}

type TemporalExtent struct {
	// Interval endpoints are RFC 3339 timestamps or null when unbounded.
	Interval [][]*string `json:"interval"`
}

// NewItemFromMap builds an Item from a decoded JSON object, checking the
// structural requirements of the item spec. It does not run schema
// validation; see Validate.
func NewItemFromMap(m map[string]interface{}) (*Item, error) {
	typ, _ := m["type"].(string)
	if typ != ItemType {
		return nil, sferr.Fmt("entity is not a STAC item: type is %q, not %q", typ, ItemType)
	}
	if id, _ := m["id"].(string); id == "" {
		return nil, sferr.Fmt("entity is not a STAC item: missing id")
	}
	if _, ok := m["properties"].(map[string]interface{}); !ok {
		return nil, sferr.Fmt("entity is not a STAC item: missing properties")
	}
	if _, ok := m["assets"].(map[string]interface{}); !ok {
		return nil, sferr.Fmt("entity is not a STAC item: missing assets")
	}
	if _, ok := m["geometry"]; !ok {
		return nil, sferr.Fmt("entity is not a STAC item: missing geometry")
	}
	if m["geometry"] != nil {
		if _, ok := m["bbox"]; !ok {
			return nil, sferr.Fmt("entity is not a STAC item: geometry is set but bbox is missing")
		}
	}

	b, err := json.Marshal(m)
	if err != nil {
		return nil, sferr.Wrapf(err, "re-encoding item")
	}
	item := &Item{}
	if err := json.Unmarshal(b, item); err != nil {
		return nil, sferr.Fmt("entity is not a STAC item: %s", err)
	}
	if item.StacVersion == "" {
		item.StacVersion = Version
	}
	return item, nil
}
