// Package storage provides durable snapshot backends for the memory modules.
// A snapshot is the whole collection of one memory module, rewritten on every
// mutation. A missing or unreadable backing resource yields an empty snapshot,
// never a startup error.
package storage

import (
	"context"
	"time"

	"gopkg.in/yaml.v3"
)

// Snapshot is the on-disk (or on-wire) shape of one memory module.
type Snapshot struct {
	MemoryType  string           `yaml:"memory_type" json:"memory_type"`
	LastUpdated time.Time        `yaml:"last_updated" json:"last_updated"`
	Entries     []map[string]any `yaml:"entries" json:"entries"`
}

// Backend persists memory snapshots wholesale.
type Backend interface {
	// Load reads the current snapshot. Absent data returns an empty
	// snapshot with no error.
	Load(ctx context.Context) (*Snapshot, error)
	// Save overwrites the stored snapshot.
	Save(ctx context.Context, snap *Snapshot) error
}

func encodeSnapshot(snap *Snapshot) ([]byte, error) {
	return yaml.Marshal(snap)
}

func decodeSnapshot(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func emptySnapshot(memoryType string) *Snapshot {
	return &Snapshot{MemoryType: memoryType, Entries: nil}
}
