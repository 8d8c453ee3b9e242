package markers

import (
	"context"
	"errors"

	"github.com/lyzr/orgsync/common/db"
	"github.com/lyzr/orgsync/common/models"
	"github.com/lyzr/orgsync/common/repository"
)

// PostgresStore keeps markers in the migration_marker table
type PostgresStore struct {
	repo *repository.MarkerRepository
	db   *db.DB
}

// NewPostgresStore creates the table if needed
func NewPostgresStore(ctx context.Context, database *db.DB) (*PostgresStore, error) {
	repo := repository.NewMarkerRepository(database)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return &PostgresStore{repo: repo, db: database}, nil
}

func (s *PostgresStore) Get(ctx context.Context, migrationID string) (*models.Marker, bool, error) {
	marker, err := s.repo.GetByID(ctx, migrationID)
	if errors.Is(err, repository.ErrMarkerNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return marker, true, nil
}

func (s *PostgresStore) Put(ctx context.Context, marker *models.Marker) error {
	return s.repo.Upsert(ctx, marker)
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.Marker, error) {
	return s.repo.List(ctx)
}

func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}
