package analysis

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/paulmach/orb"

	"github.com/jengzang/trailbloom-backend/internal/models"
)

var errBoom = errors.New("boom")

// memStore is an in-memory Store used by the controller tests
type memStore struct {
	mu sync.Mutex

	chunks map[string][]models.TrailChunk
	obs    map[string][]models.Observation
	counts map[string]models.TrailObservationCount

	calls        int
	upsertCalls  int
	deleteCalls  int
	obsPageCalls int

	trailErr      error
	obsErr        error
	deleteErr     error
	failUpsertAt  int // 1-based upsert call that fails, 0 for never
	staleChunkIdx bool
}

func newMemStore() *memStore {
	return &memStore{
		chunks: make(map[string][]models.TrailChunk),
		obs:    make(map[string][]models.Observation),
		counts: make(map[string]models.TrailObservationCount),
	}
}

func (s *memStore) addChunk(region string, index int, trails ...models.Trail) {
	s.chunks[region] = append(s.chunks[region], models.TrailChunk{Region: region, ChunkIndex: index, Trails: trails})
	sort.Slice(s.chunks[region], func(i, j int) bool {
		return s.chunks[region][i].ChunkIndex < s.chunks[region][j].ChunkIndex
	})
}

func (s *memStore) addObservations(region string, obs ...models.Observation) {
	for _, o := range obs {
		o.Region = region
		s.obs[region] = append(s.obs[region], o)
	}
}

func (s *memStore) ListTrailChunks(_ context.Context, region string, afterChunk, limit int) ([]models.TrailChunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.trailErr != nil {
		return nil, s.trailErr
	}
	if s.staleChunkIdx {
		// misbehaving store that ignores the cursor
		afterChunk = -1
	}

	var page []models.TrailChunk
	for _, c := range s.chunks[region] {
		if c.ChunkIndex > afterChunk && len(page) < limit {
			page = append(page, c)
		}
	}
	return page, nil
}

func (s *memStore) ListObservations(_ context.Context, region string, dates models.DateRange, offset, limit int) ([]models.Observation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.obsPageCalls++
	if s.obsErr != nil {
		return nil, s.obsErr
	}

	var matching []models.Observation
	for _, o := range s.obs[region] {
		if dates.Contains(o.ObservedOn) {
			matching = append(matching, o)
		}
	}
	sort.Slice(matching, func(i, j int) bool {
		if !matching[i].ObservedOn.Equal(matching[j].ObservedOn) {
			return matching[i].ObservedOn.After(matching[j].ObservedOn)
		}
		return matching[i].ID > matching[j].ID
	})
	if offset >= len(matching) {
		return nil, nil
	}
	end := offset + limit
	if end > len(matching) {
		end = len(matching)
	}
	return append([]models.Observation(nil), matching[offset:end]...), nil
}

func (s *memStore) UpsertTrailCounts(_ context.Context, rows []models.TrailObservationCount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.upsertCalls++
	if s.failUpsertAt > 0 && s.upsertCalls == s.failUpsertAt {
		return errBoom
	}
	for _, r := range rows {
		s.counts[r.Region+"/"+r.TrailName] = r
	}
	return nil
}

func (s *memStore) DeleteObservationsOn(_ context.Context, region string, day models.Date, limit int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.deleteCalls++
	if s.deleteErr != nil {
		return 0, s.deleteErr
	}

	kept := s.obs[region][:0]
	deleted := 0
	for _, o := range s.obs[region] {
		if o.ObservedOn.Equal(day) && deleted < limit {
			deleted++
			continue
		}
		kept = append(kept, o)
	}
	s.obs[region] = kept
	return deleted, nil
}

func (s *memStore) count(region, trail string) (models.TrailObservationCount, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.counts[region+"/"+trail]
	return row, ok
}

func (s *memStore) remaining(region string) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(s.obs[region]))
	for _, o := range s.obs[region] {
		ids = append(ids, o.ID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func strp(s string) *string { return &s }

func int64p(v int64) *int64 { return &v }

func sighting(id int64, species string, day string, lon, lat float64) models.Observation {
	o := models.Observation{
		ID:         id,
		ObservedOn: models.MustParseDate(day),
		Location:   orb.Point{lon, lat},
	}
	if species != "" {
		o.SpeciesName = strp(species)
	}
	return o
}

// ridge is a ~890m east-west trail at 37N
func ridge(name string) models.Trail {
	return models.Trail{
		Name:     name,
		Geometry: orb.MultiLineString{{{-122.00, 37.00}, {-121.99, 37.00}}},
	}
}
