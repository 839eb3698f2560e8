package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const snapshotTableDDL = `
CREATE TABLE IF NOT EXISTS memory_snapshots (
	memory_type TEXT PRIMARY KEY,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	doc         BYTEA NOT NULL
)`

// PostgresPool wraps a pgx connection pool shared by the per-module backends.
type PostgresPool struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresPool connects, pings, and ensures the snapshot table exists.
func NewPostgresPool(ctx context.Context, dsn string, logger *zap.Logger) (*PostgresPool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, snapshotTableDDL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create snapshot table: %w", err)
	}
	logger.Info("PostgreSQL connected")
	return &PostgresPool{db: pool, logger: logger}, nil
}

// Close shuts down the connection pool.
func (p *PostgresPool) Close() { p.db.Close() }

// Backend returns a per-module backend over the shared pool.
func (p *PostgresPool) Backend(memoryType string) *PostgresBackend {
	return &PostgresBackend{pool: p, memoryType: memoryType}
}

// PostgresBackend stores one module's snapshot in a single upserted row.
type PostgresBackend struct {
	pool       *PostgresPool
	memoryType string
}

func (b *PostgresBackend) Load(ctx context.Context) (*Snapshot, error) {
	var doc []byte
	err := b.pool.db.QueryRow(ctx,
		`SELECT doc FROM memory_snapshots WHERE memory_type = $1`,
		b.memoryType).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return emptySnapshot(b.memoryType), nil
		}
		b.pool.logger.Warn("postgres snapshot unreadable, starting fresh",
			zap.String("module", b.memoryType), zap.Error(err))
		return emptySnapshot(b.memoryType), nil
	}

	snap, err := decodeSnapshot(doc)
	if err != nil {
		b.pool.logger.Warn("postgres snapshot corrupt, starting fresh",
			zap.String("module", b.memoryType), zap.Error(err))
		return emptySnapshot(b.memoryType), nil
	}
	if snap.MemoryType == "" {
		snap.MemoryType = b.memoryType
	}
	return snap, nil
}

func (b *PostgresBackend) Save(ctx context.Context, snap *Snapshot) error {
	doc, err := encodeSnapshot(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	_, err = b.pool.db.Exec(ctx,
		`INSERT INTO memory_snapshots (memory_type, updated_at, doc)
		 VALUES ($1, now(), $2)
		 ON CONFLICT (memory_type) DO UPDATE
		 SET updated_at = now(), doc = EXCLUDED.doc`,
		b.memoryType, doc)
	if err != nil {
		return fmt.Errorf("upsert snapshot %s: %w", b.memoryType, err)
	}
	return nil
}
