package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/viant/afs"

	"github.com/lyzr/orgsync/common/hierarchy"
	"github.com/lyzr/orgsync/common/logger"
	"github.com/lyzr/orgsync/common/models"
)

const migrationFileExt = ".yaml"

// ErrMigrationNotFound is returned when a ledger has no migration with the requested id
var ErrMigrationNotFound = errors.New("migration not found")

// MigrationRepository is the append-only ledger of a root: one YAML file per
// migration under <root>/_migrations, never rewritten once written.
type MigrationRepository struct {
	store *envStore
	ids   *models.IDGenerator
	log   *logger.Logger

	mu     sync.Mutex
	seeded map[string]bool
}

// NewMigrationRepository creates a ledger over the environment at baseURL
func NewMigrationRepository(fs afs.Service, baseURL string, ids *models.IDGenerator, log *logger.Logger) *MigrationRepository {
	return &MigrationRepository{
		store:  &envStore{fs: fs, baseURL: baseURL},
		ids:    ids,
		log:    log,
		seeded: make(map[string]bool),
	}
}

func (r *MigrationRepository) dir(rootID string) string {
	return join(rootID, hierarchy.MigrationsDir)
}

// Append writes a new migration and returns it with its assigned id
func (r *MigrationRepository) Append(ctx context.Context, rootID string, change models.Change) (*models.Migration, error) {
	if err := r.seed(ctx, rootID); err != nil {
		return nil, err
	}

	m, err := models.NewMigration(r.ids.Next(change.MigrationType()), rootID, change)
	if err != nil {
		return nil, err
	}
	data, err := models.EncodeMigration(m)
	if err != nil {
		return nil, err
	}

	rel := join(r.dir(rootID), m.ID+migrationFileExt)
	exists, err := r.store.exists(ctx, rel)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("migration %s already exists", m.ID)
	}
	if err := r.store.write(ctx, rel, data); err != nil {
		return nil, err
	}

	r.log.Info("migration recorded",
		"root_id", rootID,
		"migration_id", m.ID,
		"type", m.Type,
	)
	return m, nil
}

// AppendAll appends changes in order
func (r *MigrationRepository) AppendAll(ctx context.Context, rootID string, changes []models.Change) ([]*models.Migration, error) {
	out := make([]*models.Migration, 0, len(changes))
	for _, change := range changes {
		m, err := r.Append(ctx, rootID, change)
		if err != nil {
			return out, err
		}
		out = append(out, m)
	}
	return out, nil
}

// List returns every migration of a root in ledger order
func (r *MigrationRepository) List(ctx context.Context, rootID string) ([]*models.Migration, error) {
	ok, err := r.store.exists(ctx, r.dir(rootID))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	t, err := r.store.list(ctx, r.dir(rootID))
	if err != nil {
		return nil, err
	}

	prefix := r.dir(rootID) + "/"
	var names []string
	for p := range t.files {
		name, ok := strings.CutPrefix(p, prefix)
		if !ok || strings.Contains(name, "/") || !strings.HasSuffix(name, migrationFileExt) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	migrations := make([]*models.Migration, 0, len(names))
	for _, name := range names {
		data, err := r.store.read(ctx, t.files[prefix+name])
		if err != nil {
			return nil, err
		}
		m, err := models.DecodeMigration(strings.TrimSuffix(name, migrationFileExt), rootID, data)
		if err != nil {
			return nil, err
		}
		migrations = append(migrations, m)
	}
	return migrations, nil
}

// Get returns a single migration
func (r *MigrationRepository) Get(ctx context.Context, rootID, id string) (*models.Migration, error) {
	rel := join(r.dir(rootID), id+migrationFileExt)
	ok, err := r.store.exists(ctx, rel)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMigrationNotFound, id)
	}
	data, err := r.store.readURL(ctx, rel)
	if err != nil {
		return nil, err
	}
	return models.DecodeMigration(id, rootID, data)
}

// seed raises the id generator above every id already in the ledger, once per root
func (r *MigrationRepository) seed(ctx context.Context, rootID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seeded[rootID] {
		return nil
	}

	existing, err := r.List(ctx, rootID)
	if err != nil {
		return fmt.Errorf("seed migration ids: %w", err)
	}
	for _, m := range existing {
		if err := r.ids.Observe(m.ID); err != nil {
			// ids written by earlier tooling use fractional seconds and already sort first
			r.log.Debug("ignoring legacy migration id", "migration_id", m.ID)
		}
	}
	r.seeded[rootID] = true
	return nil
}
