package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lyzr/orgsync/common/config"
	"github.com/lyzr/orgsync/common/logger"
)

const (
	connectTimeout = 5 * time.Second
	healthTimeout  = 3 * time.Second
)

// DB wraps pgxpool for the postgres marker backend
type DB struct {
	*pgxpool.Pool
	log *logger.Logger
}

// New connects using the database section of cfg
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	applyPoolSettings(poolConfig, cfg.Database)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database %s: %w", cfg.Database.Host, err)
	}

	log.Info("marker database connected", "host", cfg.Database.Host, "db", cfg.Database.Database)
	return &DB{Pool: pool, log: log}, nil
}

func applyPoolSettings(pc *pgxpool.Config, dc config.DatabaseConfig) {
	if dc.MaxConns > 0 {
		pc.MaxConns = int32(dc.MaxConns)
	}
	if dc.MinConns > 0 {
		pc.MinConns = int32(dc.MinConns)
	}
	if dc.MaxLifetime > 0 {
		pc.MaxConnLifetime = dc.MaxLifetime
	}
	if dc.MaxIdleTime > 0 {
		pc.MaxConnIdleTime = dc.MaxIdleTime
	}
}

// WithTx runs fn in a transaction, committing when it returns nil
func (db *DB) WithTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Close closes the pool
func (db *DB) Close() {
	db.log.Debug("closing marker database pool")
	db.Pool.Close()
}

// Health pings the database
func (db *DB) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	return db.Pool.Ping(ctx)
}
