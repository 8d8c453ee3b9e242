package markers

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws/session"

	"github.com/lyzr/orgsync/common/config"
	"github.com/lyzr/orgsync/common/db"
	"github.com/lyzr/orgsync/common/logger"
	"github.com/lyzr/orgsync/common/redis"
)

// Open builds the store selected by cfg.Markers.Backend.
// sess and roleARN are only used by the ssm backend.
func Open(ctx context.Context, cfg *config.Config, log *logger.Logger, sess *session.Session, roleARN string) (Store, error) {
	switch cfg.Markers.Backend {
	case config.MarkerBackendLocal:
		return OpenBadger(BadgerConfig{Path: cfg.Markers.Path})
	case config.MarkerBackendMemory:
		return OpenBadger(BadgerConfig{InMemory: true})
	case config.MarkerBackendRedis:
		client, err := redis.Dial(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
		if err != nil {
			return nil, err
		}
		return NewRedisStore(client, cfg.Markers.Prefix), nil
	case config.MarkerBackendPostgres:
		database, err := db.New(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		store, err := NewPostgresStore(ctx, database)
		if err != nil {
			database.Close()
			return nil, err
		}
		return store, nil
	case config.MarkerBackendSSM:
		if sess == nil {
			return nil, fmt.Errorf("ssm marker backend needs an aws session")
		}
		return NewSSMStore(sess, roleARN, cfg.Markers.Prefix), nil
	default:
		return nil, fmt.Errorf("unknown marker backend: %s", cfg.Markers.Backend)
	}
}
