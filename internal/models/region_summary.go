package models

import "time"

// RegionSummary rolls up a region's trail summaries
type RegionSummary struct {
	Region           string         `json:"region"`
	Trails           int            `json:"trails"`
	TrailsWithBlooms int            `json:"trails_with_blooms"`
	DegradedTrails   int            `json:"degraded_trails"`
	Observations     int            `json:"observations"` // summed over trails, overlapping buffers count twice
	Species          int            `json:"species"`
	MeanPerTrail     float64        `json:"mean_per_trail"`
	MedianPerTrail   float64        `json:"median_per_trail"`
	P90PerTrail      float64        `json:"p90_per_trail"`
	ShannonDiversity float64        `json:"shannon_diversity"`
	SimpsonDiversity float64        `json:"simpson_diversity"`
	Evenness         float64        `json:"evenness"`
	TopSpecies       []SpeciesCount `json:"top_species"`
	LastUpdated      time.Time      `json:"last_updated,omitempty"`
}
