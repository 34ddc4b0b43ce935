package analysis

import (
	"context"

	"github.com/jengzang/trailbloom-backend/internal/models"
)

// TrailSource reads trail geometry chunks, paged by chunk index
type TrailSource interface {
	// ListTrailChunks returns up to limit chunks with chunk_index > afterChunk, ascending
	ListTrailChunks(ctx context.Context, region string, afterChunk, limit int) ([]models.TrailChunk, error)
}

// ObservationSource reads observations inside a date range
type ObservationSource interface {
	// ListObservations returns one page ordered by observed_on DESC, id DESC
	ListObservations(ctx context.Context, region string, dates models.DateRange, offset, limit int) ([]models.Observation, error)
}

// CountStore persists trail summaries
type CountStore interface {
	// UpsertTrailCounts replaces the rows keyed by (region, trail_name)
	UpsertTrailCounts(ctx context.Context, rows []models.TrailObservationCount) error
}

// ObservationEvictor removes observations that left the window
type ObservationEvictor interface {
	// DeleteObservationsOn deletes up to limit observations of the region dated
	// exactly day and returns how many were deleted
	DeleteObservationsOn(ctx context.Context, region string, day models.Date, limit int) (int, error)
}

// Store is everything the refresh controller needs from persistence
type Store interface {
	TrailSource
	ObservationSource
	CountStore
	ObservationEvictor
}
