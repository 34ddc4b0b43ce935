package repository

import (
	"context"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/trailbloom-backend/internal/models"
)

func TestTrailChunkRepository_ReplaceAndPage(t *testing.T) {
	repo := NewTrailChunkRepository(newTestDB(t))
	ctx := context.Background()
	imported := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	relation := int64(77)
	withIDs := trail("Ridge", orb.LineString{{-122, 37}, {-121.99, 37}}, orb.LineString{{-121.98, 37}, {-121.97, 37.01}})
	withIDs.WayIDs = []int64{101, 102}
	withIDs.RelationID = &relation

	chunks := [][]models.Trail{
		{withIDs},
		{trail("Creek", orb.LineString{{-121, 36}, {-121.01, 36.01}})},
		{trail("Summit", orb.LineString{{-120, 35}, {-120.01, 35}})},
	}
	require.NoError(t, repo.ReplaceRegionChunks(ctx, "CA", chunks, imported))

	first, err := repo.ListTrailChunks(ctx, "CA", -1, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, 0, first[0].ChunkIndex)
	assert.Equal(t, 1, first[1].ChunkIndex)
	assert.Equal(t, imported, first[0].ImportedAt)

	ridge := first[0].Trails[0]
	assert.Equal(t, "Ridge", ridge.Name)
	assert.Equal(t, "CA", ridge.Region)
	assert.Len(t, ridge.Geometry, 2)
	assert.Equal(t, []int64{101, 102}, ridge.WayIDs)
	require.NotNil(t, ridge.RelationID)
	assert.Equal(t, int64(77), *ridge.RelationID)

	rest, err := repo.ListTrailChunks(ctx, "CA", first[1].ChunkIndex, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "Summit", rest[0].Trails[0].Name)

	// a re-import replaces everything
	require.NoError(t, repo.ReplaceRegionChunks(ctx, "CA", chunks[:1], imported))
	n, err := repo.CountChunks(ctx, "CA")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	other, err := repo.ListTrailChunks(ctx, "OR", -1, 10)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestDecodeTrails_SkipsNonLineFeatures(t *testing.T) {
	data := []byte(`{"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{"name":"Loop"},"geometry":{"type":"LineString","coordinates":[[0,0],[1,1]]}},
		{"type":"Feature","properties":{"name":"Trailhead"},"geometry":{"type":"Point","coordinates":[0,0]}}
	]}`)

	trails, err := DecodeTrails("CA", data)
	require.NoError(t, err)
	require.Len(t, trails, 1)
	assert.Equal(t, "Loop", trails[0].Name)
	assert.Equal(t, orb.MultiLineString{{{0, 0}, {1, 1}}}, trails[0].Geometry)

	_, err = DecodeTrails("CA", []byte("not json"))
	assert.Error(t, err)
}

func TestTrailChunkRepository_ReplaceDropsCountsOfRemovedTrails(t *testing.T) {
	store := NewRefreshStore(newTestDB(t))
	ctx := context.Background()
	imported := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	ridge := trail("Ridge", orb.LineString{{-122, 37}, {-121.99, 37}})
	creek := trail("Creek", orb.LineString{{-121, 36}, {-121.01, 36.01}})
	require.NoError(t, store.ReplaceRegionChunks(ctx, "CA", [][]models.Trail{{ridge, creek}}, imported))

	breakdown := []models.SpeciesCount{{Species: "Lupine", Count: 1}}
	require.NoError(t, store.UpsertTrailCounts(ctx, []models.TrailObservationCount{
		{Region: "CA", TrailName: "Ridge", ObservationCount: 1, SpeciesBreakdown: breakdown, UpdatedAt: imported},
		{Region: "CA", TrailName: "Creek", ObservationCount: 1, SpeciesBreakdown: breakdown, UpdatedAt: imported},
		{Region: "OR", TrailName: "Creek", ObservationCount: 1, SpeciesBreakdown: breakdown, UpdatedAt: imported},
	}))

	require.NoError(t, store.ReplaceRegionChunks(ctx, "CA", [][]models.Trail{{ridge}}, imported))

	rows, err := store.ListTrailCounts(ctx, "CA", models.TrailCountFilter{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Ridge", rows[0].TrailName)

	_, err = store.GetTrailCount(ctx, "OR", "Creek")
	assert.NoError(t, err)
}
