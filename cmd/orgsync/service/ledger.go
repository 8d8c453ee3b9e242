package service

import (
	"context"
	"fmt"

	"github.com/lyzr/orgsync/cmd/orgsync/repository"
	"github.com/lyzr/orgsync/common/markers"
	"github.com/lyzr/orgsync/common/models"
)

// LedgerService lists ledger entries together with their recorded outcome
type LedgerService struct {
	migrations *repository.MigrationRepository
	markers    markers.Store
	filter     *FilterEvaluator
}

// NewLedgerService creates a new ledger service
func NewLedgerService(migrations *repository.MigrationRepository, store markers.Store, filter *FilterEvaluator) *LedgerService {
	return &LedgerService{
		migrations: migrations,
		markers:    store,
		filter:     filter,
	}
}

// List returns the migrations of rootID in ledger order whose status and
// fields satisfy the CEL expression expr
func (s *LedgerService) List(ctx context.Context, rootID, expr string) ([]*models.Migration, error) {
	if expr != "" {
		if err := s.filter.Compile(expr); err != nil {
			return nil, err
		}
	}

	list, err := s.migrations.List(ctx, rootID)
	if err != nil {
		return nil, err
	}

	out := make([]*models.Migration, 0, len(list))
	for _, m := range list {
		if err := s.withStatus(ctx, m); err != nil {
			return nil, err
		}
		ok, err := s.filter.Match(expr, m)
		if err != nil {
			return nil, fmt.Errorf("filter %s: %w", m.ID, err)
		}
		if ok {
			out = append(out, m)
		}
	}
	return out, nil
}

// Get returns one migration with its recorded outcome
func (s *LedgerService) Get(ctx context.Context, rootID, id string) (*models.Migration, error) {
	m, err := s.migrations.Get(ctx, rootID, id)
	if err != nil {
		return nil, err
	}
	if err := s.withStatus(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *LedgerService) withStatus(ctx context.Context, m *models.Migration) error {
	marker, found, err := s.markers.Get(ctx, m.ID)
	if err != nil {
		return fmt.Errorf("read marker %s: %w", m.ID, err)
	}
	if found {
		m.Status = marker.Status
		m.Message = marker.Message
	}
	return nil
}
