package models

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// migration ids are <19 digit unix nanos>_<TYPE>; fixed width keeps lexical order == time order
const migrationIDStampWidth = 19

// IDGenerator hands out strictly increasing migration ids.
// It must be seeded with the ledger's highest id so new ids sort after existing ones
// even if the wall clock moved backwards.
type IDGenerator struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

// NewIDGenerator creates a generator driven by the wall clock
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{now: time.Now}
}

// NewIDGeneratorWithClock is used by tests to pin the clock
func NewIDGeneratorWithClock(now func() time.Time) *IDGenerator {
	return &IDGenerator{now: now}
}

// Observe raises the floor to an existing id
func (g *IDGenerator) Observe(id string) error {
	stamp, _, err := ParseMigrationID(id)
	if err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if stamp > g.last {
		g.last = stamp
	}
	return nil
}

// Next returns the next id for a migration type
func (g *IDGenerator) Next(t MigrationType) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	stamp := g.now().UnixNano()
	if stamp <= g.last {
		stamp = g.last + 1
	}
	g.last = stamp

	return FormatMigrationID(stamp, t)
}

// FormatMigrationID renders a stamp and type as a migration id
func FormatMigrationID(stamp int64, t MigrationType) string {
	return fmt.Sprintf("%0*d_%s", migrationIDStampWidth, stamp, t)
}

// ParseMigrationID splits an id into its stamp and type
func ParseMigrationID(id string) (int64, MigrationType, error) {
	stampPart, typePart, ok := strings.Cut(id, "_")
	if !ok || len(stampPart) != migrationIDStampWidth {
		return 0, "", fmt.Errorf("malformed migration id: %q", id)
	}
	stamp, err := strconv.ParseInt(stampPart, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("malformed migration id %q: %w", id, err)
	}
	t := MigrationType(typePart)
	if _, err := t.Extension(); err != nil {
		return 0, "", fmt.Errorf("malformed migration id %q: %w", id, err)
	}
	return stamp, t, nil
}
