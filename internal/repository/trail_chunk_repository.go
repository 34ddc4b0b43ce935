package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jengzang/trailbloom-backend/internal/database"
	"github.com/jengzang/trailbloom-backend/internal/models"
)

// TrailChunkRepository handles database operations for trail chunks
type TrailChunkRepository struct {
	db *database.DB
}

// NewTrailChunkRepository creates a new trail chunk repository
func NewTrailChunkRepository(db *database.DB) *TrailChunkRepository {
	return &TrailChunkRepository{db: db}
}

// ListTrailChunks returns up to limit chunks with chunk_index > afterChunk, ascending
func (r *TrailChunkRepository) ListTrailChunks(ctx context.Context, region string, afterChunk, limit int) ([]models.TrailChunk, error) {
	query := r.db.Rebind(`SELECT chunk_index, features_geojson, imported_at
		FROM trail_chunks
		WHERE region = ? AND chunk_index > ?
		ORDER BY chunk_index ASC
		LIMIT ?`)

	rows, err := r.db.QueryContext(ctx, query, region, afterChunk, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query trail chunks: %w", err)
	}
	defer rows.Close()

	var chunks []models.TrailChunk
	for rows.Next() {
		var (
			chunk    = models.TrailChunk{Region: region}
			features string
			imported string
		)
		if err := rows.Scan(&chunk.ChunkIndex, &features, &imported); err != nil {
			return nil, fmt.Errorf("failed to scan trail chunk: %w", err)
		}
		if chunk.Trails, err = DecodeTrails(region, []byte(features)); err != nil {
			return nil, fmt.Errorf("chunk %d: %w", chunk.ChunkIndex, err)
		}
		if chunk.ImportedAt, err = parseTime(imported); err != nil {
			return nil, fmt.Errorf("chunk %d: %w", chunk.ChunkIndex, err)
		}
		chunks = append(chunks, chunk)
	}

	return chunks, rows.Err()
}

// ReplaceRegionChunks swaps a region's trail chunks in one transaction.
// Chunk indexes are reassigned 0..n-1. Count rows of trails missing from
// the new chunks are deleted in the same transaction.
func (r *TrailChunkRepository) ReplaceRegionChunks(ctx context.Context, region string, chunks [][]models.Trail, importedAt time.Time) error {
	encoded := make([]string, len(chunks))
	names := make(map[string]bool)
	for i, trails := range chunks {
		for _, t := range trails {
			names[t.Name] = true
		}
		data, err := EncodeTrails(trails)
		if err != nil {
			return fmt.Errorf("failed to encode chunk %d: %w", i, err)
		}
		encoded[i] = string(data)
	}

	return r.db.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, r.db.Rebind("DELETE FROM trail_chunks WHERE region = ?"), region); err != nil {
			return fmt.Errorf("failed to clear trail chunks: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, r.db.Rebind(`INSERT INTO trail_chunks
			(region, chunk_index, features_geojson, imported_at) VALUES (?, ?, ?, ?)`))
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		stamp := formatTime(importedAt)
		for i, features := range encoded {
			if _, err := stmt.ExecContext(ctx, region, i, features, stamp); err != nil {
				return fmt.Errorf("failed to insert chunk %d: %w", i, err)
			}
		}
		return pruneTrailCounts(ctx, r.db, tx, region, names)
	})
}

// pruneTrailCounts removes count rows whose trail is not in keep
func pruneTrailCounts(ctx context.Context, db *database.DB, tx *sql.Tx, region string, keep map[string]bool) error {
	rows, err := tx.QueryContext(ctx, db.Rebind("SELECT trail_name FROM trail_observation_counts WHERE region = ?"), region)
	if err != nil {
		return fmt.Errorf("failed to query trail counts: %w", err)
	}
	var stale []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan trail name: %w", err)
		}
		if !keep[name] {
			stale = append(stale, name)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, name := range stale {
		if _, err := tx.ExecContext(ctx, db.Rebind("DELETE FROM trail_observation_counts WHERE region = ? AND trail_name = ?"), region, name); err != nil {
			return fmt.Errorf("failed to delete trail count %s: %w", name, err)
		}
	}
	return nil
}

// CountChunks returns the number of stored chunks for a region
func (r *TrailChunkRepository) CountChunks(ctx context.Context, region string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, r.db.Rebind("SELECT COUNT(*) FROM trail_chunks WHERE region = ?"), region).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count trail chunks: %w", err)
	}
	return n, nil
}
