package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/paulmach/orb"

	"github.com/jengzang/trailbloom-backend/internal/database"
	"github.com/jengzang/trailbloom-backend/internal/models"
)

// ObservationRepository handles database operations for observations
type ObservationRepository struct {
	db *database.DB
}

// NewObservationRepository creates a new observation repository
func NewObservationRepository(db *database.DB) *ObservationRepository {
	return &ObservationRepository{db: db}
}

// ListObservations returns one page of a region's observations inside dates,
// ordered by observed_on DESC, id DESC
func (r *ObservationRepository) ListObservations(ctx context.Context, region string, dates models.DateRange, offset, limit int) ([]models.Observation, error) {
	query := r.db.Rebind(`SELECT id, species_name, taxon_id, observed_on, latitude, longitude, fetched_at
		FROM observations
		WHERE region = ? AND observed_on >= ? AND observed_on <= ?
		ORDER BY observed_on DESC, id DESC
		LIMIT ? OFFSET ?`)

	rows, err := r.db.QueryContext(ctx, query, region, dates.Start, dates.End, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query observations: %w", err)
	}
	defer rows.Close()

	var observations []models.Observation
	for rows.Next() {
		var (
			obs      = models.Observation{Region: region}
			species  sql.NullString
			taxon    sql.NullInt64
			lat, lon float64
			fetched  string
		)
		if err := rows.Scan(&obs.ID, &species, &taxon, &obs.ObservedOn, &lat, &lon, &fetched); err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		if species.Valid {
			obs.SpeciesName = &species.String
		}
		if taxon.Valid {
			obs.TaxonID = &taxon.Int64
		}
		obs.Location = orb.Point{lon, lat}
		if obs.FetchedAt, err = parseTime(fetched); err != nil {
			return nil, fmt.Errorf("observation %d: %w", obs.ID, err)
		}
		observations = append(observations, obs)
	}

	return observations, rows.Err()
}

// DeleteObservationsOn deletes up to limit observations of the region dated
// exactly day
func (r *ObservationRepository) DeleteObservationsOn(ctx context.Context, region string, day models.Date, limit int) (int, error) {
	query := r.db.Rebind(`DELETE FROM observations
		WHERE region = ? AND id IN (
			SELECT id FROM observations
			WHERE region = ? AND observed_on = ?
			ORDER BY id
			LIMIT ?
		)`)

	res, err := r.db.ExecContext(ctx, query, region, region, day, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to delete observations: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read deleted count: %w", err)
	}
	return int(n), nil
}

// UpsertObservations inserts or replaces observations keyed by (region, id)
func (r *ObservationRepository) UpsertObservations(ctx context.Context, observations []models.Observation) (int, error) {
	if len(observations) == 0 {
		return 0, nil
	}

	written := 0
	err := r.db.Transaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, r.db.Rebind(`INSERT INTO observations
			(region, id, species_name, taxon_id, observed_on, latitude, longitude, fetched_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (region, id) DO UPDATE SET
				species_name = excluded.species_name,
				taxon_id = excluded.taxon_id,
				observed_on = excluded.observed_on,
				latitude = excluded.latitude,
				longitude = excluded.longitude,
				fetched_at = excluded.fetched_at`))
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, obs := range observations {
			fetched := obs.FetchedAt
			if fetched.IsZero() {
				fetched = time.Now()
			}
			_, err := stmt.ExecContext(ctx,
				obs.Region, obs.ID, nullString(obs.SpeciesName), nullInt64(obs.TaxonID),
				obs.ObservedOn, obs.Lat(), obs.Lon(), formatTime(fetched))
			if err != nil {
				return fmt.Errorf("failed to upsert observation %d: %w", obs.ID, err)
			}
			written++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}

// CountObservations returns a region's observation count inside dates
func (r *ObservationRepository) CountObservations(ctx context.Context, region string, dates models.DateRange) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		r.db.Rebind("SELECT COUNT(*) FROM observations WHERE region = ? AND observed_on >= ? AND observed_on <= ?"),
		region, dates.Start, dates.End).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count observations: %w", err)
	}
	return n, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
