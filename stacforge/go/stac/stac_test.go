package stac

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validItemMap() map[string]interface{} {
	return map[string]interface{}{
		"type":         "Feature",
		"stac_version": "1.0.0",
		"id":           "scene-001",
		"geometry": map[string]interface{}{
			"type": "Polygon",
			"coordinates": []interface{}{
				[]interface{}{
					[]interface{}{0.0, 0.0},
					[]interface{}{1.0, 0.0},
					[]interface{}{1.0, 1.0},
					[]interface{}{0.0, 0.0},
				},
			},
		},
		"bbox": []interface{}{0.0, 0.0, 1.0, 1.0},
		"properties": map[string]interface{}{
			"datetime": "2024-05-01T12:00:00Z",
		},
		"assets": map[string]interface{}{
			"data": map[string]interface{}{
				"href": "https://acct.blob.core.windows.net/scenes/scene-001.tif",
			},
		},
		"links": []interface{}{},
	}
}

func TestNewItemFromMap(t *testing.T) {
	item, err := NewItemFromMap(validItemMap())
	require.NoError(t, err)
	assert.Equal(t, "scene-001", item.ID)
	assert.Equal(t, ItemType, item.Type)
	assert.Len(t, item.Assets, 1)
}

func TestNewItemFromMap_WrongType(t *testing.T) {
	m := validItemMap()
	m["type"] = "FeatureCollection"
	_, err := NewItemFromMap(m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a STAC item")
}

func TestNewItemFromMap_MissingPieces(t *testing.T) {
	for _, key := range []string{"id", "properties", "assets", "geometry"} {
		m := validItemMap()
		delete(m, key)
		_, err := NewItemFromMap(m)
		require.Error(t, err, key)
	}
}

func TestNewItemFromMap_GeometryWithoutBbox(t *testing.T) {
	m := validItemMap()
	delete(m, "bbox")
	_, err := NewItemFromMap(m)
	require.Error(t, err)
}

func TestNewItemFromMap_NullGeometryNeedsNoBbox(t *testing.T) {
	m := validItemMap()
	m["geometry"] = nil
	delete(m, "bbox")
	_, err := NewItemFromMap(m)
	require.NoError(t, err)
}

func TestValidate_ValidItem(t *testing.T) {
	require.NoError(t, Validate(validItemMap()))
}

func TestValidate_MissingDatetime(t *testing.T) {
	m := validItemMap()
	m["properties"] = map[string]interface{}{}
	err := Validate(m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "datetime")
}

func TestValidate_NullDatetimeNeedsRange(t *testing.T) {
	m := validItemMap()
	m["properties"] = map[string]interface{}{"datetime": nil}
	require.Error(t, Validate(m))

	m["properties"] = map[string]interface{}{
		"datetime":       nil,
		"start_datetime": "2024-05-01T00:00:00Z",
		"end_datetime":   "2024-05-02T00:00:00Z",
	}
	require.NoError(t, Validate(m))
}

func TestValidate_BadVersion(t *testing.T) {
	m := validItemMap()
	m["stac_version"] = "0.9.0"
	require.Error(t, Validate(m))
}

func TestNewTemporaryCollection(t *testing.T) {
	urls := []string{
		"https://acct.blob.core.windows.net/collections/run/items/a.json",
		"https://acct.blob.core.windows.net/collections/run/items/b.json",
	}
	c := NewTemporaryCollection(urls)
	assert.Equal(t, "temporary_collection", c.ID)
	assert.Equal(t, CollectionType, c.Type)
	require.Len(t, c.Links, 2)
	assert.Equal(t, "item", c.Links[0].Rel)
	assert.Equal(t, urls[0], c.Links[0].Href)

	// The temporal interval serializes as [[null, null]].
	b, err := json.Marshal(c)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"interval":[[null,null]]`)
	assert.Contains(t, string(b), `"bbox":[[-180,-90,180,90]]`)
}

func TestCollectionRoundTrip(t *testing.T) {
	c := NewTemporaryCollection(nil)
	b, err := json.Marshal(c)
	require.NoError(t, err)
	var decoded Collection
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, c.ID, decoded.ID)
	assert.Len(t, decoded.Extent.Temporal.Interval, 1)
}
