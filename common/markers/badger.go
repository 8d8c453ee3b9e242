package markers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/dgraph-io/badger/v4"

	"github.com/lyzr/orgsync/common/models"
)

const badgerKeyPrefix = "marker:"

// BadgerConfig configures the local marker store
type BadgerConfig struct {
	// Directory for database files; ignored when InMemory is set
	Path     string
	InMemory bool
}

// BadgerStore keeps markers in an embedded badger database on the operator's machine
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens or creates the local marker database
func OpenBadger(cfg BadgerConfig) (*BadgerStore, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.New("path is required for persistent marker store")
		}
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create marker directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path).WithSyncWrites(true)
	}
	opts = opts.WithNumVersionsToKeep(1).WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open marker database: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Get(ctx context.Context, migrationID string) (*models.Marker, bool, error) {
	var marker *models.Marker
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(badgerKeyPrefix + migrationID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			m, err := decode(migrationID, val)
			marker = m
			return err
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get marker %s: %w", migrationID, err)
	}
	return marker, true, nil
}

func (s *BadgerStore) Put(ctx context.Context, marker *models.Marker) error {
	data, err := encode(marker)
	if err != nil {
		return err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(badgerKeyPrefix+marker.MigrationID), data)
	})
	if err != nil {
		return fmt.Errorf("put marker %s: %w", marker.MigrationID, err)
	}
	return nil
}

func (s *BadgerStore) List(ctx context.Context) ([]*models.Marker, error) {
	var markers []*models.Marker
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(badgerKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			id := string(item.Key()[len(prefix):])
			err := item.Value(func(val []byte) error {
				m, err := decode(id, val)
				if err != nil {
					return err
				}
				markers = append(markers, m)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list markers: %w", err)
	}
	sort.Slice(markers, func(i, j int) bool { return markers[i].MigrationID < markers[j].MigrationID })
	return markers, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}
