package analysis

import (
	"time"

	"github.com/jengzang/trailbloom-backend/internal/models"
)

// AggregateTrail reduces a trail's matched observations to its summary row.
// Species are grouped by name (nil names become "Unknown") in order of first
// occurrence; each entry keeps the first non-nil taxon id seen for its name.
func AggregateTrail(region, trailName string, matches []models.Observation, updatedAt time.Time) models.TrailObservationCount {
	breakdown := make([]models.SpeciesCount, 0)
	position := make(map[string]int)

	for _, obs := range matches {
		species := obs.Species()
		i, seen := position[species]
		if !seen {
			position[species] = len(breakdown)
			breakdown = append(breakdown, models.SpeciesCount{Species: species})
			i = len(breakdown) - 1
		}
		breakdown[i].Count++
		if breakdown[i].TaxonID == nil && obs.TaxonID != nil {
			id := *obs.TaxonID
			breakdown[i].TaxonID = &id
		}
	}

	return models.TrailObservationCount{
		Region:           region,
		TrailName:        trailName,
		ObservationCount: len(matches),
		SpeciesBreakdown: breakdown,
		UpdatedAt:        updatedAt,
	}
}
