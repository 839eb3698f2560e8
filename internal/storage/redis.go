package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBackend stores each module's snapshot under a single key,
// overwritten wholesale on every save.
type RedisBackend struct {
	client     *redis.Client
	key        string
	memoryType string
	logger     *zap.Logger
}

// NewRedisBackend connects to Redis via URL and namespaces the snapshot
// key as skywatch:memory:<module>.
func NewRedisBackend(redisURL, memoryType string, logger *zap.Logger) (*RedisBackend, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &RedisBackend{
		client:     redis.NewClient(opts),
		key:        "skywatch:memory:" + memoryType,
		memoryType: memoryType,
		logger:     logger,
	}, nil
}

// NewRedisBackendWithClient wraps an existing client (shared across modules).
func NewRedisBackendWithClient(client *redis.Client, memoryType string, logger *zap.Logger) *RedisBackend {
	return &RedisBackend{
		client:     client,
		key:        "skywatch:memory:" + memoryType,
		memoryType: memoryType,
		logger:     logger,
	}
}

// Close releases the underlying connection.
func (b *RedisBackend) Close() error { return b.client.Close() }

func (b *RedisBackend) Load(ctx context.Context) (*Snapshot, error) {
	data, err := b.client.Get(ctx, b.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return emptySnapshot(b.memoryType), nil
		}
		b.logger.Warn("redis snapshot unreadable, starting fresh",
			zap.String("key", b.key), zap.Error(err))
		return emptySnapshot(b.memoryType), nil
	}

	snap, err := decodeSnapshot(data)
	if err != nil {
		b.logger.Warn("redis snapshot corrupt, starting fresh",
			zap.String("key", b.key), zap.Error(err))
		return emptySnapshot(b.memoryType), nil
	}
	if snap.MemoryType == "" {
		snap.MemoryType = b.memoryType
	}
	return snap, nil
}

func (b *RedisBackend) Save(ctx context.Context, snap *Snapshot) error {
	data, err := encodeSnapshot(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := b.client.Set(ctx, b.key, data, 0).Err(); err != nil {
		return fmt.Errorf("write %s: %w", b.key, err)
	}
	return nil
}
