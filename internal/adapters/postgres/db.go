package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const (
	// One relay process, one flushing goroutine. The pool stays small.
	maxPoolConns = 4

	pingTimeout = 10 * time.Second
)

// DB wraps the pgx pool the event log reads and writes through.
type DB struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// NewDB opens the pool and pings it. A bad DATABASE_URL fails here, at
// boot, not at the first batch flush.
func NewDB(ctx context.Context, connString string, baseLogger *zerolog.Logger) (*DB, error) {
	log := baseLogger.With().Str("component", "postgres").Logger()

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		log.Error().Err(err).Msg("Failed to parse DATABASE_URL")
		return nil, err
	}
	poolConfig.MaxConns = maxPoolConns

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create connection pool")
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		log.Error().Err(err).Msg("Database did not answer the startup ping")
		pool.Close()
		return nil, err
	}

	log.Info().Int32("max_conns", maxPoolConns).Msg("Database connection pool established")
	return &DB{pool: pool, log: log}, nil
}

// Close closes the connection pool.
func (db *DB) Close() {
	db.log.Info().Msg("Closing database connection pool")
	db.pool.Close()
}
