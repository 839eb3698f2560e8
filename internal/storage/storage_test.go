package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"go.uber.org/zap"
)

func testSnapshot() *Snapshot {
	return &Snapshot{
		MemoryType:  "episodic",
		LastUpdated: time.Now().UTC(),
		Entries: []map[string]any{
			{
				"id":   "episodic_abc123def456",
				"task": "Detect vehicles in Munich",
				"data": map[string]any{
					"bbox":  []any{11.3, 48.0, 11.8, 48.3},
					"count": 42,
				},
			},
			{"id": "episodic_000000000001", "task": "Map Bayern"},
		},
	}
}

func TestFileBackendRoundTrip(t *testing.T) {
	dir := t.TempDir()
	b := NewFileBackend(dir, "episodic", zap.NewNop())
	ctx := context.Background()

	if err := b.Save(ctx, testSnapshot()); err != nil {
		t.Fatalf("save: %v", err)
	}

	snap, err := b.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if snap.MemoryType != "episodic" {
		t.Errorf("memory_type = %q, want episodic", snap.MemoryType)
	}
	if len(snap.Entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(snap.Entries))
	}
	if snap.Entries[0]["task"] != "Detect vehicles in Munich" {
		t.Errorf("task = %v", snap.Entries[0]["task"])
	}
	nested, ok := snap.Entries[0]["data"].(map[string]any)
	if !ok {
		t.Fatalf("nested data did not round-trip: %T", snap.Entries[0]["data"])
	}
	if nested["count"] != 42 {
		t.Errorf("count = %v, want 42", nested["count"])
	}
}

func TestFileBackendAbsentFile(t *testing.T) {
	b := NewFileBackend(t.TempDir(), "semantic", zap.NewNop())
	snap, err := b.Load(context.Background())
	if err != nil {
		t.Fatalf("load of absent file must not fail: %v", err)
	}
	if snap.MemoryType != "semantic" || len(snap.Entries) != 0 {
		t.Errorf("expected empty semantic snapshot, got %+v", snap)
	}
}

func TestFileBackendCorruptFile(t *testing.T) {
	dir := t.TempDir()
	b := NewFileBackend(dir, "procedural", zap.NewNop())
	path := filepath.Join(dir, "procedural_memory.yaml")
	if err := os.WriteFile(path, []byte("{{{not yaml"), 0o644); err != nil {
		t.Fatal(err)
	}

	snap, err := b.Load(context.Background())
	if err != nil {
		t.Fatalf("load of corrupt file must not fail: %v", err)
	}
	if len(snap.Entries) != 0 {
		t.Errorf("corrupt file should yield empty snapshot, got %d entries", len(snap.Entries))
	}
}

func TestRedisBackendRoundTrip(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatal(err)
	}
	defer mr.Close()

	b, err := NewRedisBackend("redis://"+mr.Addr(), "episodic", zap.NewNop())
	if err != nil {
		t.Fatalf("new backend: %v", err)
	}
	defer b.Close()
	ctx := context.Background()

	// Empty key loads as an empty snapshot.
	snap, err := b.Load(ctx)
	if err != nil {
		t.Fatalf("load empty: %v", err)
	}
	if len(snap.Entries) != 0 {
		t.Fatalf("expected empty snapshot, got %d entries", len(snap.Entries))
	}

	if err := b.Save(ctx, testSnapshot()); err != nil {
		t.Fatalf("save: %v", err)
	}
	snap, err = b.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(snap.Entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(snap.Entries))
	}
	if snap.Entries[1]["id"] != "episodic_000000000001" {
		t.Errorf("entry order not preserved: %v", snap.Entries[1]["id"])
	}
}

func TestRedisBackendCorruptValue(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatal(err)
	}
	defer mr.Close()
	mr.Set("skywatch:memory:working", "\tnot: [valid")

	b, err := NewRedisBackend("redis://"+mr.Addr(), "working", zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	snap, err := b.Load(context.Background())
	if err != nil {
		t.Fatalf("load of corrupt value must not fail: %v", err)
	}
	if len(snap.Entries) != 0 {
		t.Errorf("corrupt value should yield empty snapshot, got %d entries", len(snap.Entries))
	}
}
