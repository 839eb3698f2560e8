package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// FileBackend persists snapshots as YAML documents on local disk.
// Writes are synchronous and whole-file; a crash mid-write may leave a
// corrupt file, which Load treats as an empty store.
type FileBackend struct {
	path       string
	memoryType string
	logger     *zap.Logger
}

// NewFileBackend creates a file backend rooted at dir, one file per module.
func NewFileBackend(dir, memoryType string, logger *zap.Logger) *FileBackend {
	return &FileBackend{
		path:       filepath.Join(dir, memoryType+"_memory.yaml"),
		memoryType: memoryType,
		logger:     logger,
	}
}

// Path returns the backing file path.
func (b *FileBackend) Path() string { return b.path }

func (b *FileBackend) Load(ctx context.Context) (*Snapshot, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if os.IsNotExist(err) {
			return emptySnapshot(b.memoryType), nil
		}
		b.logger.Warn("memory file unreadable, starting fresh",
			zap.String("path", b.path), zap.Error(err))
		return emptySnapshot(b.memoryType), nil
	}

	snap, err := decodeSnapshot(data)
	if err != nil {
		b.logger.Warn("memory file corrupt, starting fresh",
			zap.String("path", b.path), zap.Error(err))
		return emptySnapshot(b.memoryType), nil
	}
	if snap.MemoryType == "" {
		snap.MemoryType = b.memoryType
	}
	return snap, nil
}

func (b *FileBackend) Save(ctx context.Context, snap *Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(b.path), 0o755); err != nil {
		return fmt.Errorf("create memory dir: %w", err)
	}
	data, err := encodeSnapshot(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := os.WriteFile(b.path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", b.path, err)
	}
	return nil
}
