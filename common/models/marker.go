package models

import "time"

// Marker is the idempotency record written after a migration is attempted.
// Keyed by migration id; the latest write wins.
type Marker struct {
	MigrationID string          `json:"migration_id"`
	Status      MigrationStatus `json:"status"`
	Message     string          `json:"message"`
	RunID       string          `json:"run_id,omitempty"`
	RecordedAt  time.Time       `json:"recorded_at"`
}

// IsApplied reports whether the migration must not run again
func (m *Marker) IsApplied() bool {
	return m != nil && m.Status == StatusApplied
}
