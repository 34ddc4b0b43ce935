package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/jengzang/trailbloom-backend/internal/analysis"
	"github.com/jengzang/trailbloom-backend/internal/models"
	"github.com/jengzang/trailbloom-backend/internal/repository"
	"github.com/jengzang/trailbloom-backend/internal/spatial"
)

// DefaultChunkSize is how many trails are stored per chunk
const DefaultChunkSize = 200

// TrailChunkWriter replaces a region's stored trails
type TrailChunkWriter interface {
	ReplaceRegionChunks(ctx context.Context, region string, chunks [][]models.Trail, importedAt time.Time) error
	CountChunks(ctx context.Context, region string) (int, error)
}

// ImportResult summarizes one import
type ImportResult struct {
	Region   string  `json:"region"`
	Trails   int     `json:"trails"`
	Chunks   int     `json:"chunks"` // as stored after the replace
	Skipped  int     `json:"skipped"`
	LengthKm float64 `json:"length_km"`
}

// TrailImportService loads trail collections from GeoJSON
type TrailImportService struct {
	repo   TrailChunkWriter
	logger *slog.Logger
	now    func() time.Time
}

// NewTrailImportService creates a new trail import service
func NewTrailImportService(repo TrailChunkWriter, logger *slog.Logger) *TrailImportService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TrailImportService{repo: repo, logger: logger.With("component", "trail_import"), now: time.Now}
}

// Import reads a FeatureCollection, merges features sharing a name and
// replaces the region's chunks
func (s *TrailImportService) Import(ctx context.Context, region string, r io.Reader, chunkSize int) (*ImportResult, error) {
	region = analysis.NormalizeRegion(region)
	if region == "" {
		return nil, fmt.Errorf("%w: empty region", analysis.ErrInvalidRegion)
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read trail file: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse trail file: %w", err)
	}

	result := &ImportResult{Region: region}
	var parsed []models.Trail
	for _, f := range fc.Features {
		trail, ok := repository.TrailFromFeature(region, f)
		if !ok || strings.TrimSpace(trail.Name) == "" {
			result.Skipped++
			continue
		}
		parsed = append(parsed, trail)
	}

	trails := models.MergeTrailChunks([]models.TrailChunk{{Region: region, Trails: parsed}})
	var chunks [][]models.Trail
	for start := 0; start < len(trails); start += chunkSize {
		end := start + chunkSize
		if end > len(trails) {
			end = len(trails)
		}
		chunks = append(chunks, trails[start:end])
	}

	if err := s.repo.ReplaceRegionChunks(ctx, region, chunks, s.now()); err != nil {
		return nil, err
	}
	stored, err := s.repo.CountChunks(ctx, region)
	if err != nil {
		return nil, err
	}

	result.Trails = len(trails)
	result.Chunks = stored
	for _, t := range trails {
		result.LengthKm += spatial.MultiPathLength(t.Geometry) / 1000
	}
	s.logger.Info("Imported trails",
		"region", region,
		"features", len(fc.Features),
		"trails", result.Trails,
		"chunks", result.Chunks,
		"length_km", result.LengthKm,
		"skipped", result.Skipped)
	return result, nil
}
