package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/trailbloom-backend/internal/analysis"
	"github.com/jengzang/trailbloom-backend/internal/models"
	"github.com/jengzang/trailbloom-backend/internal/repository"
)

type fakeCountReader struct {
	rows      map[string][]models.TrailObservationCount
	listCalls int
	getCalls  int
}

func (f *fakeCountReader) ListTrailCounts(_ context.Context, region string, _ models.TrailCountFilter) ([]models.TrailObservationCount, error) {
	f.listCalls++
	return f.rows[region], nil
}

func (f *fakeCountReader) GetTrailCount(_ context.Context, region, name string) (*models.TrailObservationCount, error) {
	f.getCalls++
	for _, r := range f.rows[region] {
		if r.TrailName == name {
			row := r
			return &row, nil
		}
	}
	return nil, repository.ErrNotFound
}

func TestTrailCountService_CachesUntilInvalidated(t *testing.T) {
	reader := &fakeCountReader{rows: map[string][]models.TrailObservationCount{
		"CA": {{Region: "CA", TrailName: "Ridge", ObservationCount: 3}},
	}}
	svc := NewTrailCountService(reader, []string{"CA", "OR"}, time.Minute)
	ctx := context.Background()
	filter := models.TrailCountFilter{Limit: 10}

	for i := 0; i < 3; i++ {
		rows, err := svc.ListTrailCounts(ctx, "ca", filter)
		require.NoError(t, err)
		assert.Len(t, rows, 1)
	}
	assert.Equal(t, 1, reader.listCalls)

	_, err := svc.GetTrailCount(ctx, "CA", "Ridge")
	require.NoError(t, err)
	_, err = svc.GetTrailCount(ctx, "CA", "Ridge")
	require.NoError(t, err)
	assert.Equal(t, 1, reader.getCalls)

	_, err = svc.ListTrailCounts(ctx, "OR", filter)
	require.NoError(t, err)

	assert.Equal(t, 2, svc.InvalidateRegion("ca"))
	_, err = svc.ListTrailCounts(ctx, "CA", filter)
	require.NoError(t, err)
	assert.Equal(t, 3, reader.listCalls)
}

func TestTrailCountService_RejectsUnknownRegion(t *testing.T) {
	reader := &fakeCountReader{}
	svc := NewTrailCountService(reader, []string{"CA"}, 0)

	_, err := svc.ListTrailCounts(context.Background(), "ZZ", models.TrailCountFilter{})
	assert.ErrorIs(t, err, analysis.ErrInvalidRegion)
	_, err = svc.GetTrailCount(context.Background(), "ZZ", "Ridge")
	assert.ErrorIs(t, err, analysis.ErrInvalidRegion)
	assert.Zero(t, reader.listCalls+reader.getCalls)
}

func TestTrailCountService_NotFoundIsNotCached(t *testing.T) {
	reader := &fakeCountReader{}
	svc := NewTrailCountService(reader, []string{"CA"}, time.Minute)

	for i := 0; i < 2; i++ {
		_, err := svc.GetTrailCount(context.Background(), "CA", "Missing")
		assert.ErrorIs(t, err, repository.ErrNotFound)
	}
	assert.Equal(t, 2, reader.getCalls)
}

func TestSummarize(t *testing.T) {
	stamp := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	rows := []models.TrailObservationCount{
		{TrailName: "A", ObservationCount: 3, UpdatedAt: stamp, SpeciesBreakdown: []models.SpeciesCount{{Species: "Lupine", Count: 2}, {Species: "Poppy", Count: 1}}},
		{TrailName: "B", ObservationCount: 1, UpdatedAt: stamp.Add(time.Hour), SpeciesBreakdown: []models.SpeciesCount{{Species: "Poppy", Count: 1}}},
		{TrailName: "C", BufferFailed: true, SpeciesBreakdown: []models.SpeciesCount{}},
	}

	s := Summarize("CA", rows)
	assert.Equal(t, 3, s.Trails)
	assert.Equal(t, 2, s.TrailsWithBlooms)
	assert.Equal(t, 1, s.DegradedTrails)
	assert.Equal(t, 4, s.Observations)
	assert.Equal(t, 2, s.Species)
	assert.InDelta(t, 4.0/3, s.MeanPerTrail, 1e-12)
	assert.Equal(t, 1.0, s.MedianPerTrail)
	assert.InDelta(t, 0.5, s.SimpsonDiversity, 1e-12)
	assert.InDelta(t, 1.0, s.Evenness, 1e-12)
	assert.Equal(t, stamp.Add(time.Hour), s.LastUpdated)
	require.Len(t, s.TopSpecies, 2)
	assert.Equal(t, "Lupine", s.TopSpecies[0].Species)

	empty := Summarize("OR", nil)
	assert.Zero(t, empty.Species)
	assert.Empty(t, empty.TopSpecies)
}
