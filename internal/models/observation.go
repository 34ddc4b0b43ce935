package models

import (
	"time"

	"github.com/paulmach/orb"
)

// UnknownSpecies is the aggregation label for observations without a species
const UnknownSpecies = "Unknown"

// Observation is one wildflower sighting
type Observation struct {
	ID          int64     `json:"id" db:"id"` // unique within a region
	Region      string    `json:"region" db:"region"`
	SpeciesName *string   `json:"species_name,omitempty" db:"species_name"`
	TaxonID     *int64    `json:"taxon_id,omitempty" db:"taxon_id"`
	ObservedOn  Date      `json:"observed_on" db:"observed_on"`
	Location    orb.Point `json:"location"` // lon, lat
	FetchedAt   time.Time `json:"fetched_at,omitempty" db:"fetched_at"`
}

// Species returns the grouping label used by aggregation
func (o Observation) Species() string {
	if o.SpeciesName == nil || *o.SpeciesName == "" {
		return UnknownSpecies
	}
	return *o.SpeciesName
}

// Lat returns the latitude of the observation
func (o Observation) Lat() float64 { return o.Location.Lat() }

// Lon returns the longitude of the observation
func (o Observation) Lon() float64 { return o.Location.Lon() }
