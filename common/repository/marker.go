package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/lyzr/orgsync/common/db"
	"github.com/lyzr/orgsync/common/models"
)

// ErrMarkerNotFound is returned when no marker exists for a migration id
var ErrMarkerNotFound = errors.New("marker not found")

const markerSchema = `
	CREATE TABLE IF NOT EXISTS migration_marker (
		migration_id TEXT PRIMARY KEY,
		status       TEXT NOT NULL,
		message      TEXT NOT NULL DEFAULT '',
		run_id       TEXT NOT NULL DEFAULT '',
		recorded_at  TIMESTAMPTZ NOT NULL
	)
`

const markerStatusIndex = `CREATE INDEX IF NOT EXISTS migration_marker_status_idx ON migration_marker (status)`

// MarkerRepository handles database operations for idempotency markers
type MarkerRepository struct {
	db *db.DB
}

// NewMarkerRepository creates a new marker repository
func NewMarkerRepository(database *db.DB) *MarkerRepository {
	return &MarkerRepository{db: database}
}

// EnsureSchema creates the marker table and its status index when missing
func (r *MarkerRepository) EnsureSchema(ctx context.Context) error {
	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, markerSchema); err != nil {
			return fmt.Errorf("failed to create marker table: %w", err)
		}
		if _, err := tx.Exec(ctx, markerStatusIndex); err != nil {
			return fmt.Errorf("failed to create marker index: %w", err)
		}
		return nil
	})
}

// Upsert records the latest outcome of a migration
func (r *MarkerRepository) Upsert(ctx context.Context, marker *models.Marker) error {
	query := `
		INSERT INTO migration_marker (migration_id, status, message, run_id, recorded_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (migration_id) DO UPDATE
		SET status = EXCLUDED.status,
		    message = EXCLUDED.message,
		    run_id = EXCLUDED.run_id,
		    recorded_at = EXCLUDED.recorded_at
	`

	_, err := r.db.Exec(
		ctx,
		query,
		marker.MigrationID,
		string(marker.Status),
		marker.Message,
		marker.RunID,
		marker.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert marker: %w", err)
	}

	return nil
}

// GetByID retrieves the marker of a migration
func (r *MarkerRepository) GetByID(ctx context.Context, migrationID string) (*models.Marker, error) {
	query := `
		SELECT migration_id, status, message, run_id, recorded_at
		FROM migration_marker
		WHERE migration_id = $1
	`

	marker := &models.Marker{}
	err := r.db.QueryRow(ctx, query, migrationID).Scan(
		&marker.MigrationID,
		&marker.Status,
		&marker.Message,
		&marker.RunID,
		&marker.RecordedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrMarkerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get marker: %w", err)
	}

	return marker, nil
}

// List retrieves all markers ordered by migration id
func (r *MarkerRepository) List(ctx context.Context) ([]*models.Marker, error) {
	query := `
		SELECT migration_id, status, message, run_id, recorded_at
		FROM migration_marker
		ORDER BY migration_id
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list markers: %w", err)
	}
	defer rows.Close()

	var markers []*models.Marker
	for rows.Next() {
		marker := &models.Marker{}
		err := rows.Scan(
			&marker.MigrationID,
			&marker.Status,
			&marker.Message,
			&marker.RunID,
			&marker.RecordedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan marker: %w", err)
		}
		markers = append(markers, marker)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating markers: %w", err)
	}

	return markers, nil
}
