package stac

import (
	_ "embed"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"go.stacforge.org/infra/go/sferr"
)

// The item schema ships with the binary so validation never goes to the
// network.
//
//go:embed schemas/item.json
var itemSchemaJSON string

var (
	itemSchemaOnce sync.Once
	itemSchema     *gojsonschema.Schema
	itemSchemaErr  error
)

func loadItemSchema() (*gojsonschema.Schema, error) {
	itemSchemaOnce.Do(func() {
		itemSchema, itemSchemaErr = gojsonschema.NewSchema(
			gojsonschema.NewStringLoader(itemSchemaJSON))
	})
	return itemSchema, itemSchemaErr
}

// Validate checks a decoded item object against the item schema and returns
// an error listing every violation.
func Validate(m map[string]interface{}) error {
	schema, err := loadItemSchema()
	if err != nil {
		return sferr.Wrapf(err, "loading item schema")
	}
	result, err := schema.Validate(gojsonschema.NewGoLoader(m))
	if err != nil {
		return sferr.Wrapf(err, "validating item")
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, desc.String())
	}
	return sferr.Fmt("item failed validation: %s", strings.Join(msgs, "; "))
}
