package markers

import (
	"context"
	"errors"
	"sort"

	"github.com/lyzr/orgsync/common/models"
	"github.com/lyzr/orgsync/common/redis"
)

// RedisStore keeps all markers in one hash, field = migration id
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore stores markers under the hash <prefix>
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, key: prefix}
}

func (s *RedisStore) Get(ctx context.Context, migrationID string) (*models.Marker, bool, error) {
	raw, err := s.client.GetHash(ctx, s.key, migrationID)
	if errors.Is(err, redis.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	marker, err := decode(migrationID, []byte(raw))
	if err != nil {
		return nil, false, err
	}
	return marker, true, nil
}

func (s *RedisStore) Put(ctx context.Context, marker *models.Marker) error {
	data, err := encode(marker)
	if err != nil {
		return err
	}
	return s.client.SetHash(ctx, s.key, marker.MigrationID, string(data))
}

func (s *RedisStore) List(ctx context.Context) ([]*models.Marker, error) {
	all, err := s.client.GetAllHash(ctx, s.key)
	if err != nil {
		return nil, err
	}
	markers := make([]*models.Marker, 0, len(all))
	for id, raw := range all {
		marker, err := decode(id, []byte(raw))
		if err != nil {
			return nil, err
		}
		markers = append(markers, marker)
	}
	sort.Slice(markers, func(i, j int) bool { return markers[i].MigrationID < markers[j].MigrationID })
	return markers, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
