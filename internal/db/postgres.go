// internal/db/postgres.go
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Marga-Ghale/teamfund-backend/internal/config"
)

type PostgresDB struct {
	Pool *pgxpool.Pool
	log  *zap.Logger
}

// poolConfig applies the configured limits on top of the URL. Zero values
// keep the URL's (or pgx's) defaults.
func poolConfig(databaseURL string, s config.PoolSettings) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	if s.MaxConns > 0 {
		cfg.MaxConns = s.MaxConns
	}
	if s.MinConns > 0 && s.MinConns <= cfg.MaxConns {
		cfg.MinConns = s.MinConns
	}
	if s.MaxConnLifetime > 0 {
		cfg.MaxConnLifetime = s.MaxConnLifetime
		cfg.MaxConnIdleTime = s.MaxConnLifetime / 2
	}
	cfg.HealthCheckPeriod = time.Minute
	return cfg, nil
}

func NewPostgresDB(ctx context.Context, databaseURL string, settings config.PoolSettings, log *zap.Logger) (*PostgresDB, error) {
	cfg, err := poolConfig(databaseURL, settings)
	if err != nil {
		return nil, err
	}

	if settings.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, settings.ConnectTimeout)
		defer cancel()
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	log.Info("connected to PostgreSQL",
		zap.String("host", cfg.ConnConfig.Host),
		zap.String("database", cfg.ConnConfig.Database),
		zap.Int32("max_conns", cfg.MaxConns),
		zap.Int32("min_conns", cfg.MinConns),
	)
	return &PostgresDB{Pool: pool, log: log}, nil
}

func (db *PostgresDB) Close() {
	if db.Pool == nil {
		return
	}
	stat := db.Pool.Stat()
	db.Pool.Close()
	db.log.Info("PostgreSQL connection closed", zap.Int64("acquired_total", stat.AcquireCount()))
}
