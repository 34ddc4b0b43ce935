package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jengzang/trailbloom-backend/internal/database"
	"github.com/jengzang/trailbloom-backend/internal/models"
)

// TrailCountRepository handles database operations for trail summaries
type TrailCountRepository struct {
	db *database.DB
}

// NewTrailCountRepository creates a new trail count repository
func NewTrailCountRepository(db *database.DB) *TrailCountRepository {
	return &TrailCountRepository{db: db}
}

const trailCountColumns = `region, trail_name, observation_count, species_breakdown,
	buffer_failed, diagnostic, updated_at`

// UpsertTrailCounts writes rows keyed by (region, trail_name) in one
// multi-row statement. Rows in one call must have distinct keys.
func (r *TrailCountRepository) UpsertTrailCounts(ctx context.Context, rows []models.TrailObservationCount) error {
	if len(rows) == 0 {
		return nil
	}

	values := make([]string, 0, len(rows))
	args := make([]interface{}, 0, len(rows)*7)
	for _, row := range rows {
		breakdown := row.SpeciesBreakdown
		if breakdown == nil {
			breakdown = []models.SpeciesCount{}
		}
		data, err := json.Marshal(breakdown)
		if err != nil {
			return fmt.Errorf("failed to encode species breakdown for %s: %w", row.TrailName, err)
		}
		values = append(values, "("+database.Placeholders(7)+")")
		args = append(args, row.Region, row.TrailName, row.ObservationCount, string(data),
			row.BufferFailed, row.Diagnostic, formatTime(row.UpdatedAt))
	}

	query := `INSERT INTO trail_observation_counts (` + trailCountColumns + `)
		VALUES ` + strings.Join(values, ", ") + `
		ON CONFLICT (region, trail_name) DO UPDATE SET
			observation_count = excluded.observation_count,
			species_breakdown = excluded.species_breakdown,
			buffer_failed = excluded.buffer_failed,
			diagnostic = excluded.diagnostic,
			updated_at = excluded.updated_at`

	if _, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("failed to upsert trail counts: %w", err)
	}
	return nil
}

// ListTrailCounts returns a region's trails ranked by observation count
func (r *TrailCountRepository) ListTrailCounts(ctx context.Context, region string, filter models.TrailCountFilter) ([]models.TrailObservationCount, error) {
	query := `SELECT ` + trailCountColumns + ` FROM trail_observation_counts WHERE region = ?`
	args := []interface{}{region}

	if filter.MinCount > 0 {
		query += " AND observation_count >= ?"
		args = append(args, filter.MinCount)
	}
	query += " ORDER BY observation_count DESC, trail_name ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trail counts: %w", err)
	}
	defer rows.Close()

	counts := []models.TrailObservationCount{}
	for rows.Next() {
		row, err := scanTrailCount(rows)
		if err != nil {
			return nil, err
		}
		counts = append(counts, row)
	}
	return counts, rows.Err()
}

// GetTrailCount returns one trail's summary or ErrNotFound
func (r *TrailCountRepository) GetTrailCount(ctx context.Context, region, trailName string) (*models.TrailObservationCount, error) {
	query := `SELECT ` + trailCountColumns + ` FROM trail_observation_counts WHERE region = ? AND trail_name = ?`
	row, err := scanTrailCount(r.db.QueryRowContext(ctx, r.db.Rebind(query), region, trailName))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("trail %q in %s: %w", trailName, region, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTrailCount(s rowScanner) (models.TrailObservationCount, error) {
	var (
		row       models.TrailObservationCount
		breakdown string
		updated   string
	)
	err := s.Scan(&row.Region, &row.TrailName, &row.ObservationCount, &breakdown,
		&row.BufferFailed, &row.Diagnostic, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return row, err
	}
	if err != nil {
		return row, fmt.Errorf("failed to scan trail count: %w", err)
	}

	if err := json.Unmarshal([]byte(breakdown), &row.SpeciesBreakdown); err != nil {
		return row, fmt.Errorf("failed to decode species breakdown for %s: %w", row.TrailName, err)
	}
	if row.SpeciesBreakdown == nil {
		row.SpeciesBreakdown = []models.SpeciesCount{}
	}
	if row.UpdatedAt, err = parseTime(updated); err != nil {
		return row, err
	}
	return row, nil
}
