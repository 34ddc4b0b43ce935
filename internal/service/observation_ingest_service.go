package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jengzang/trailbloom-backend/internal/analysis"
	"github.com/jengzang/trailbloom-backend/internal/models"
	"github.com/jengzang/trailbloom-backend/internal/provider/inaturalist"
)

// DefaultIngestBatchSize bounds one upsert transaction
const DefaultIngestBatchSize = 500

// ObservationFetcher pulls observations from the upstream provider
type ObservationFetcher interface {
	FetchObservations(ctx context.Context, q inaturalist.Query) ([]models.Observation, inaturalist.FetchStats, error)
}

// ObservationWriter stores observations
type ObservationWriter interface {
	UpsertObservations(ctx context.Context, observations []models.Observation) (int, error)
}

// IngestResult summarizes one ingest
type IngestResult struct {
	Region    string           `json:"region"`
	Range     models.DateRange `json:"range"`
	Fetched   int              `json:"fetched"`
	Stored    int              `json:"stored"`
	Pages     int              `json:"pages"`
	Truncated bool             `json:"truncated"`
}

// ObservationIngestService copies provider observations into the store
type ObservationIngestService struct {
	fetcher   ObservationFetcher
	repo      ObservationWriter
	places    map[string]int64
	batchSize int
	logger    *slog.Logger
}

// NewObservationIngestService creates a new ingest service. places maps
// region codes to provider place ids.
func NewObservationIngestService(fetcher ObservationFetcher, repo ObservationWriter, places map[string]int64, logger *slog.Logger) *ObservationIngestService {
	if logger == nil {
		logger = slog.Default()
	}
	normalized := make(map[string]int64, len(places))
	for code, id := range places {
		normalized[analysis.NormalizeRegion(code)] = id
	}
	return &ObservationIngestService{
		fetcher:   fetcher,
		repo:      repo,
		places:    normalized,
		batchSize: DefaultIngestBatchSize,
		logger:    logger.With("component", "observation_ingest"),
	}
}

// Ingest fetches a region's observations for dates and upserts them
func (s *ObservationIngestService) Ingest(ctx context.Context, region string, dates models.DateRange) (*IngestResult, error) {
	region = analysis.NormalizeRegion(region)
	placeID, ok := s.places[region]
	if !ok {
		return nil, fmt.Errorf("%w: %q", analysis.ErrInvalidRegion, region)
	}
	if err := dates.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", analysis.ErrInvalidRange, err)
	}

	observations, stats, err := s.fetcher.FetchObservations(ctx, inaturalist.Query{Region: region, PlaceID: placeID, Dates: dates})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch observations for %s: %w", region, err)
	}

	result := &IngestResult{
		Region:    region,
		Range:     dates,
		Fetched:   len(observations),
		Pages:     stats.Pages,
		Truncated: stats.Truncated,
	}
	_, err = analysis.InBatches(observations, s.batchSize, func(batch []models.Observation) error {
		n, err := s.repo.UpsertObservations(ctx, batch)
		result.Stored += n
		return err
	})
	if err != nil {
		return result, fmt.Errorf("failed to store observations for %s: %w", region, err)
	}

	s.logger.Info("Ingested observations",
		"region", region,
		"range", dates.String(),
		"fetched", result.Fetched,
		"stored", result.Stored,
		"truncated", result.Truncated)
	return result, nil
}
