package models

import (
	"sort"
	"time"
)

// SpeciesCount is one entry of a trail's species breakdown
type SpeciesCount struct {
	Species string `json:"species"`
	Count   int    `json:"count"`
	TaxonID *int64 `json:"taxon_id,omitempty"` // enrichment only, not a grouping key
}

// TrailObservationCount is the persisted per-trail summary, keyed by (region, trail name)
type TrailObservationCount struct {
	Region           string         `json:"region" db:"region"`
	TrailName        string         `json:"trail_name" db:"trail_name"`
	ObservationCount int            `json:"observation_count" db:"observation_count"`
	SpeciesBreakdown []SpeciesCount `json:"species_breakdown" db:"species_breakdown"`

	// Set when the trail geometry could not be buffered
	BufferFailed bool   `json:"buffer_failed,omitempty" db:"buffer_failed"`
	Diagnostic   string `json:"diagnostic,omitempty" db:"diagnostic"`

	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// BreakdownTotal sums the species counts
func (c TrailObservationCount) BreakdownTotal() int {
	total := 0
	for _, s := range c.SpeciesBreakdown {
		total += s.Count
	}
	return total
}

// TopSpecies returns up to n species ordered by count desc, then name.
// The stored breakdown is left untouched.
func (c TrailObservationCount) TopSpecies(n int) []SpeciesCount {
	sorted := append([]SpeciesCount(nil), c.SpeciesBreakdown...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Count != sorted[j].Count {
			return sorted[i].Count > sorted[j].Count
		}
		return sorted[i].Species < sorted[j].Species
	})
	if n > 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// TrailCountFilter represents filter parameters for ranked trail count queries
type TrailCountFilter struct {
	Limit    int `form:"limit"`
	MinCount int `form:"minCount"`
}
