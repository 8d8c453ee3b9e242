// Package markers persists the outcome of each migration so the executor runs
// it at most once. Check-then-act is not atomic; concurrent invocations against
// the same root must be serialized by the operator.
package markers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lyzr/orgsync/common/models"
)

// Store is a durable migration id -> marker map
type Store interface {
	// Get returns the marker for a migration; found is false when none was recorded
	Get(ctx context.Context, migrationID string) (marker *models.Marker, found bool, err error)

	// Put records the latest outcome, replacing any earlier marker
	Put(ctx context.Context, marker *models.Marker) error

	// List returns every recorded marker ordered by migration id
	List(ctx context.Context) ([]*models.Marker, error)

	Close() error
}

func encode(marker *models.Marker) ([]byte, error) {
	if !marker.Status.IsTerminal() {
		return nil, fmt.Errorf("marker status %s cannot be recorded", marker.Status)
	}
	data, err := json.Marshal(marker)
	if err != nil {
		return nil, fmt.Errorf("encode marker %s: %w", marker.MigrationID, err)
	}
	return data, nil
}

func decode(migrationID string, data []byte) (*models.Marker, error) {
	var marker models.Marker
	if err := json.Unmarshal(data, &marker); err != nil {
		return nil, fmt.Errorf("decode marker %s: %w", migrationID, err)
	}
	if marker.MigrationID == "" {
		marker.MigrationID = migrationID
	}
	return &marker, nil
}
