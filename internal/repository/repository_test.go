package repository

import (
	"context"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/trailbloom-backend/internal/database"
	"github.com/jengzang/trailbloom-backend/internal/models"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(ctx, db))
	return db
}

func strp(s string) *string { return &s }

func int64p(v int64) *int64 { return &v }

func observation(region string, id int64, species *string, day string, lon, lat float64) models.Observation {
	return models.Observation{
		ID:          id,
		Region:      region,
		SpeciesName: species,
		ObservedOn:  models.MustParseDate(day),
		Location:    orb.Point{lon, lat},
		FetchedAt:   time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC),
	}
}

func trail(name string, lines ...orb.LineString) models.Trail {
	return models.Trail{Name: name, Geometry: orb.MultiLineString(lines)}
}
