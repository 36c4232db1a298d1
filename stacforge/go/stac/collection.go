package stac

// Collections built for bulk import are throwaway wrappers: the catalog only
// follows their item links, so the descriptive fields are fixed and the
// extents cover everything.

const (
	temporaryCollectionID    = "temporary_collection"
	temporaryCollectionTitle = "Temporary collection"
	temporaryCollectionDesc  = "Temporary collection for bulk import"
)

// NewTemporaryCollection returns the collection manifest linking the given
// item URLs.
func NewTemporaryCollection(itemURLs []string) *Collection {
	links := make([]Link, 0, len(itemURLs))
	for _, u := range itemURLs {
		links = append(links, Link{
			Rel:  "item",
			Href: u,
			Type: "application/json",
		})
	}
	return &Collection{
		Type:        CollectionType,
		StacVersion: Version,
		ID:          temporaryCollectionID,
		Title:       temporaryCollectionTitle,
		Description: temporaryCollectionDesc,
		License:     "other",
		Extent: Extent{
			Spatial: SpatialExtent{
				BBox: [][]float64{{-180, -90, 180, 90}},
			},
			Temporal: TemporalExtent{
				Interval: [][]*string{{nil, nil}},
			},
		},
		Links: links,
	}
}
