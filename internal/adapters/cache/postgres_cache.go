package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mikey/trustmail/internal/core"
	"go.uber.org/zap"
)

// PostgresCache is a PostgreSQL implementation of the CacheRepository interface
type PostgresCache struct {
	pool     *pgxpool.Pool
	logger   *zap.Logger
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewPostgresCache opens a connection pool and prepares the cache table
func NewPostgresCache(ctx context.Context, dsn string, logger *zap.Logger, cleanupFreq time.Duration) (*PostgresCache, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	_, err = pool.Exec(connectCtx, `
		CREATE TABLE IF NOT EXISTS analysis_cache (
			content_key TEXT PRIMARY KEY,
			risk_score INTEGER NOT NULL,
			threat_level TEXT NOT NULL,
			payload BYTEA NOT NULL,
			last_seen TIMESTAMPTZ NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_analysis_expires_at ON analysis_cache(expires_at);
	`)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	logger.Info("Connected to PostgreSQL cache")

	cache := &PostgresCache{
		pool:   pool,
		logger: logger,
		stopCh: make(chan struct{}),
	}

	// Start background cleanup
	go startCleanupTask(cache, cleanupFreq, cache.stopCh, logger)

	return cache, nil
}

// Get retrieves a cached entry by key
func (c *PostgresCache) Get(ctx context.Context, key string) (*core.CacheEntry, error) {
	var entry core.CacheEntry
	var level string

	err := c.pool.QueryRow(ctx, `
		SELECT content_key, risk_score, threat_level, payload, last_seen, expires_at
		FROM analysis_cache
		WHERE content_key = $1 AND expires_at > NOW()
	`, key).Scan(&entry.Key, &entry.RiskScore, &level, &entry.Payload, &entry.LastSeen, &entry.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query cache: %w", err)
	}

	entry.ThreatLevel = core.ThreatLevel(level)
	return &entry, nil
}

// Set stores a cache entry
func (c *PostgresCache) Set(ctx context.Context, entry *core.CacheEntry) error {
	_, err := c.pool.Exec(ctx, `
		INSERT INTO analysis_cache (content_key, risk_score, threat_level, payload, last_seen, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (content_key) DO UPDATE SET
			risk_score = EXCLUDED.risk_score,
			threat_level = EXCLUDED.threat_level,
			payload = EXCLUDED.payload,
			last_seen = EXCLUDED.last_seen,
			expires_at = EXCLUDED.expires_at
	`, entry.Key, entry.RiskScore, string(entry.ThreatLevel), entry.Payload, entry.LastSeen, entry.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to insert cache entry: %w", err)
	}
	return nil
}

// Delete removes a cache entry
func (c *PostgresCache) Delete(ctx context.Context, key string) error {
	if _, err := c.pool.Exec(ctx, `DELETE FROM analysis_cache WHERE content_key = $1`, key); err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// Cleanup removes expired entries
func (c *PostgresCache) Cleanup(ctx context.Context) error {
	tag, err := c.pool.Exec(ctx, `DELETE FROM analysis_cache WHERE expires_at <= NOW()`)
	if err != nil {
		return fmt.Errorf("failed to clean up expired entries: %w", err)
	}

	c.logger.Debug("Cleaned up expired cache entries", zap.Int64("expired_count", tag.RowsAffected()))
	return nil
}

// Stop stops the background cleanup task and closes the pool
func (c *PostgresCache) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
		c.pool.Close()
	})
}
