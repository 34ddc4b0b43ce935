package repository

import (
	"github.com/jengzang/trailbloom-backend/internal/analysis"
	"github.com/jengzang/trailbloom-backend/internal/database"
)

// RefreshStore bundles the repositories the refresh pipeline reads and writes
type RefreshStore struct {
	*TrailChunkRepository
	*ObservationRepository
	*TrailCountRepository
}

var _ analysis.Store = (*RefreshStore)(nil)

// NewRefreshStore creates a store over one database
func NewRefreshStore(db *database.DB) *RefreshStore {
	return &RefreshStore{
		TrailChunkRepository:  NewTrailChunkRepository(db),
		ObservationRepository: NewObservationRepository(db),
		TrailCountRepository:  NewTrailCountRepository(db),
	}
}
