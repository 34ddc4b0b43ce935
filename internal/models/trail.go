package models

import (
	"time"

	"github.com/paulmach/orb"
)

// Trail is one named hiking route within a region
type Trail struct {
	Region string `json:"region"`
	Name   string `json:"name"` // join key within the region

	// Geometry is lon/lat ordered, one line string per part
	Geometry orb.MultiLineString `json:"-"`

	// Source identifiers, carried for external resource linking only
	WayIDs     []int64 `json:"way_ids,omitempty"`
	RelationID *int64  `json:"relation_id,omitempty"`
}

// TrailChunk is one stored slice of a region's trail collection
type TrailChunk struct {
	Region     string    `json:"region" db:"region"`
	ChunkIndex int       `json:"chunk_index" db:"chunk_index"` // stable paging key
	Trails     []Trail   `json:"trails"`
	ImportedAt time.Time `json:"imported_at" db:"imported_at"`
}

// MergeTrailChunks returns the union of all chunks as one trail per name.
// Parts of a trail spread across chunks are concatenated in chunk order and
// the first-seen order of names is preserved.
func MergeTrailChunks(chunks []TrailChunk) []Trail {
	index := make(map[string]int)
	var trails []Trail

	for _, chunk := range chunks {
		for _, t := range chunk.Trails {
			pos, seen := index[t.Name]
			if !seen {
				merged := Trail{
					Region:     t.Region,
					Name:       t.Name,
					Geometry:   append(orb.MultiLineString(nil), t.Geometry...),
					WayIDs:     append([]int64(nil), t.WayIDs...),
					RelationID: t.RelationID,
				}
				if merged.Region == "" {
					merged.Region = chunk.Region
				}
				index[t.Name] = len(trails)
				trails = append(trails, merged)
				continue
			}

			existing := &trails[pos]
			existing.Geometry = append(existing.Geometry, t.Geometry...)
			existing.WayIDs = append(existing.WayIDs, t.WayIDs...)
			if existing.RelationID == nil {
				existing.RelationID = t.RelationID
			}
		}
	}

	return trails
}
