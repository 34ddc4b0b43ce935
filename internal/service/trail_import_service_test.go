package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/trailbloom-backend/internal/analysis"
	"github.com/jengzang/trailbloom-backend/internal/models"
)

type fakeChunkWriter struct {
	region string
	chunks [][]models.Trail
	calls  int
}

func (f *fakeChunkWriter) ReplaceRegionChunks(_ context.Context, region string, chunks [][]models.Trail, _ time.Time) error {
	f.calls++
	f.region = region
	f.chunks = chunks
	return nil
}

func (f *fakeChunkWriter) CountChunks(_ context.Context, region string) (int, error) {
	if region != f.region {
		return 0, nil
	}
	return len(f.chunks), nil
}

const trailFile = `{"type": "FeatureCollection", "features": [
	{"type": "Feature", "properties": {"name": "Ridge", "way_ids": [1, 2]},
	 "geometry": {"type": "LineString", "coordinates": [[-122, 37], [-121.99, 37]]}},
	{"type": "Feature", "properties": {"name": "Creek", "relation_id": 9},
	 "geometry": {"type": "MultiLineString", "coordinates": [[[-121, 36], [-121.01, 36]], [[-121.02, 36], [-121.03, 36]]]}},
	{"type": "Feature", "properties": {"name": "Ridge", "way_ids": [3]},
	 "geometry": {"type": "LineString", "coordinates": [[-121.98, 37], [-121.97, 37]]}},
	{"type": "Feature", "properties": {"name": "Summit"},
	 "geometry": {"type": "LineString", "coordinates": [[-120, 35], [-120.01, 35]]}},
	{"type": "Feature", "properties": {"name": "Trailhead"},
	 "geometry": {"type": "Point", "coordinates": [-120, 35]}},
	{"type": "Feature", "properties": {},
	 "geometry": {"type": "LineString", "coordinates": [[-120, 35], [-120.01, 35]]}}
]}`

func TestTrailImportService_GroupsAndChunks(t *testing.T) {
	writer := &fakeChunkWriter{}
	svc := NewTrailImportService(writer, nil)

	result, err := svc.Import(context.Background(), "ca", strings.NewReader(trailFile), 2)
	require.NoError(t, err)

	assert.Equal(t, "CA", result.Region)
	assert.Equal(t, 3, result.Trails)
	assert.Equal(t, 2, result.Chunks)
	assert.Equal(t, 2, result.Skipped)
	// five 0.01 degree segments along the 37th, 36th and 35th parallels
	assert.InDelta(t, 4.486, result.LengthKm, 0.01)
	assert.Equal(t, "CA", writer.region)
	require.Len(t, writer.chunks, 2)
	require.Len(t, writer.chunks[0], 2)

	ridge := writer.chunks[0][0]
	assert.Equal(t, "Ridge", ridge.Name)
	assert.Len(t, ridge.Geometry, 2)
	assert.Equal(t, []int64{1, 2, 3}, ridge.WayIDs)

	creek := writer.chunks[0][1]
	require.NotNil(t, creek.RelationID)
	assert.Equal(t, int64(9), *creek.RelationID)
	assert.Equal(t, "Summit", writer.chunks[1][0].Name)
}

func TestTrailImportService_RejectsBadInput(t *testing.T) {
	writer := &fakeChunkWriter{}
	svc := NewTrailImportService(writer, nil)

	_, err := svc.Import(context.Background(), "CA", strings.NewReader("{"), 10)
	assert.Error(t, err)

	_, err = svc.Import(context.Background(), " ", strings.NewReader(trailFile), 10)
	assert.ErrorIs(t, err, analysis.ErrInvalidRegion)
	assert.Zero(t, writer.calls)
}
