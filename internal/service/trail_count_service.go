package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/jengzang/trailbloom-backend/internal/analysis"
	"github.com/jengzang/trailbloom-backend/internal/models"
	"github.com/jengzang/trailbloom-backend/internal/stats"
)

// DefaultCacheTTL is how long ranked lists stay cached without a refresh
const DefaultCacheTTL = 10 * time.Minute

// TrailCountReader reads persisted trail summaries
type TrailCountReader interface {
	ListTrailCounts(ctx context.Context, region string, filter models.TrailCountFilter) ([]models.TrailObservationCount, error)
	GetTrailCount(ctx context.Context, region, trailName string) (*models.TrailObservationCount, error)
}

// TrailCountService serves trail summaries with a per-region cache
type TrailCountService struct {
	repo    TrailCountReader
	regions map[string]bool
	cache   *cache.Cache
}

// NewTrailCountService creates a new trail count service
func NewTrailCountService(repo TrailCountReader, regions []string, ttl time.Duration) *TrailCountService {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	known := make(map[string]bool, len(regions))
	for _, r := range regions {
		known[analysis.NormalizeRegion(r)] = true
	}
	return &TrailCountService{
		repo:    repo,
		regions: known,
		cache:   cache.New(ttl, 2*ttl),
	}
}

func (s *TrailCountService) region(code string) (string, error) {
	code = analysis.NormalizeRegion(code)
	if !s.regions[code] {
		return "", fmt.Errorf("%w: %q", analysis.ErrInvalidRegion, code)
	}
	return code, nil
}

func cacheKey(region string, parts ...interface{}) string {
	key := region + "|"
	for _, p := range parts {
		key += fmt.Sprint(p) + "|"
	}
	return key
}

// ListTrailCounts returns a region's trails ranked by observation count
func (s *TrailCountService) ListTrailCounts(ctx context.Context, region string, filter models.TrailCountFilter) ([]models.TrailObservationCount, error) {
	region, err := s.region(region)
	if err != nil {
		return nil, err
	}

	key := cacheKey(region, "list", filter.Limit, filter.MinCount)
	if cached, found := s.cache.Get(key); found {
		if rows, ok := cached.([]models.TrailObservationCount); ok {
			return rows, nil
		}
	}

	rows, err := s.repo.ListTrailCounts(ctx, region, filter)
	if err != nil {
		return nil, err
	}
	s.cache.SetDefault(key, rows)
	return rows, nil
}

// GetTrailCount returns one trail's summary
func (s *TrailCountService) GetTrailCount(ctx context.Context, region, trailName string) (*models.TrailObservationCount, error) {
	region, err := s.region(region)
	if err != nil {
		return nil, err
	}

	key := cacheKey(region, "trail", trailName)
	if cached, found := s.cache.Get(key); found {
		if row, ok := cached.(*models.TrailObservationCount); ok {
			return row, nil
		}
	}

	row, err := s.repo.GetTrailCount(ctx, region, trailName)
	if err != nil {
		return nil, err
	}
	s.cache.SetDefault(key, row)
	return row, nil
}

// InvalidateRegion drops every cached entry of a region
func (s *TrailCountService) InvalidateRegion(region string) int {
	prefix := analysis.NormalizeRegion(region) + "|"
	dropped := 0
	for key := range s.cache.Items() {
		if strings.HasPrefix(key, prefix) {
			s.cache.Delete(key)
			dropped++
		}
	}
	return dropped
}

// Summary rolls up every trail of a region
func (s *TrailCountService) Summary(ctx context.Context, region string) (*models.RegionSummary, error) {
	region, err := s.region(region)
	if err != nil {
		return nil, err
	}

	key := cacheKey(region, "summary")
	if cached, found := s.cache.Get(key); found {
		if summary, ok := cached.(*models.RegionSummary); ok {
			return summary, nil
		}
	}

	rows, err := s.repo.ListTrailCounts(ctx, region, models.TrailCountFilter{})
	if err != nil {
		return nil, err
	}
	summary := Summarize(region, rows)
	s.cache.SetDefault(key, summary)
	return summary, nil
}

// Summarize computes a region summary from its trail rows
func Summarize(region string, rows []models.TrailObservationCount) *models.RegionSummary {
	summary := &models.RegionSummary{Region: region, Trails: len(rows)}

	perTrail := make([]int, 0, len(rows))
	merged := models.TrailObservationCount{}
	position := make(map[string]int)
	for _, row := range rows {
		perTrail = append(perTrail, row.ObservationCount)
		summary.Observations += row.ObservationCount
		if row.ObservationCount > 0 {
			summary.TrailsWithBlooms++
		}
		if row.BufferFailed {
			summary.DegradedTrails++
		}
		if row.UpdatedAt.After(summary.LastUpdated) {
			summary.LastUpdated = row.UpdatedAt
		}
		for _, sc := range row.SpeciesBreakdown {
			i, ok := position[sc.Species]
			if !ok {
				position[sc.Species] = len(merged.SpeciesBreakdown)
				merged.SpeciesBreakdown = append(merged.SpeciesBreakdown, models.SpeciesCount{Species: sc.Species, TaxonID: sc.TaxonID})
				i = len(merged.SpeciesBreakdown) - 1
			}
			merged.SpeciesBreakdown[i].Count += sc.Count
		}
	}

	speciesCounts := make([]int, 0, len(merged.SpeciesBreakdown))
	for _, sc := range merged.SpeciesBreakdown {
		speciesCounts = append(speciesCounts, sc.Count)
	}
	summary.Species = len(speciesCounts)
	summary.MeanPerTrail = stats.Mean(perTrail)
	summary.MedianPerTrail = stats.Percentile(perTrail, 50)
	summary.P90PerTrail = stats.Percentile(perTrail, 90)
	summary.ShannonDiversity = stats.ShannonEntropy(speciesCounts)
	summary.SimpsonDiversity = stats.SimpsonIndex(speciesCounts)
	summary.Evenness = stats.Evenness(speciesCounts)
	summary.TopSpecies = merged.TopSpecies(10)
	return summary
}
