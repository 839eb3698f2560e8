package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/helios-eo/skywatch/internal/storage"
)

// ErrMissingField is returned when a record lacks a required field for its
// module.
var ErrMissingField = errors.New("missing required field")

// RecordStore is the generic persistence primitive shared by all memory
// modules: an ordered collection of records, optionally written wholesale
// to a storage backend on every mutation.
type RecordStore struct {
	memoryType string
	backend    storage.Backend

	mu      sync.RWMutex
	entries []Record

	logger *zap.Logger
}

func newRecordStore(memoryType string, backend storage.Backend, logger *zap.Logger) *RecordStore {
	s := &RecordStore{
		memoryType: memoryType,
		backend:    backend,
		logger:     logger,
	}
	s.load()
	return s
}

// MemoryType returns the module name (working/episodic/semantic/procedural).
func (s *RecordStore) MemoryType() string { return s.memoryType }

// Persistent reports whether mutations are written to durable storage.
func (s *RecordStore) Persistent() bool { return s.backend != nil }

// insert validates required fields, stamps id and timestamps, appends the
// record and persists. Returns the new record id.
func (s *RecordStore) insert(entry Record, required ...string) (string, error) {
	for _, field := range required {
		if _, ok := entry[field]; !ok {
			return "", fmt.Errorf("%s entry: %w: %s", s.memoryType, ErrMissingField, field)
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	entry["created_at"] = now
	entry["updated_at"] = now
	if entry.ID() == "" {
		entry["id"] = s.generateID()
	}

	s.mu.Lock()
	s.entries = append(s.entries, entry)
	s.mu.Unlock()

	s.save()
	return entry.ID(), nil
}

// Update merges patch into the record with the given id and refreshes its
// update timestamp. The id itself is never changed. Returns false when no
// record matches.
func (s *RecordStore) Update(id string, patch Record) bool {
	s.mu.Lock()
	var found Record
	for _, entry := range s.entries {
		if entry.ID() == id {
			found = entry
			break
		}
	}
	if found == nil {
		s.mu.Unlock()
		return false
	}
	for k, v := range patch {
		if k == "id" {
			continue
		}
		found[k] = v
	}
	found["updated_at"] = time.Now().UTC().Format(time.RFC3339)
	s.mu.Unlock()

	s.save()
	return true
}

// Clear removes all records.
func (s *RecordStore) Clear() {
	s.mu.Lock()
	s.entries = nil
	s.mu.Unlock()
	s.save()
}

// GetAll returns a copy of all records in insertion order.
func (s *RecordStore) GetAll() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, len(s.entries))
	for i, entry := range s.entries {
		out[i] = entry.Clone()
	}
	return out
}

// GetByID returns a copy of the record with the given id.
func (s *RecordStore) GetByID(id string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, entry := range s.entries {
		if entry.ID() == id {
			return entry.Clone(), true
		}
	}
	return nil, false
}

// Size returns the number of stored records.
func (s *RecordStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// save serializes the whole collection to the backend. A save failure is
// logged and swallowed: the in-memory state stays authoritative.
func (s *RecordStore) save() {
	if s.backend == nil {
		return
	}
	s.mu.RLock()
	snap := &storage.Snapshot{
		MemoryType:  s.memoryType,
		LastUpdated: time.Now().UTC(),
		Entries:     make([]map[string]any, len(s.entries)),
	}
	for i, entry := range s.entries {
		snap.Entries[i] = entry
	}
	s.mu.RUnlock()

	if err := s.backend.Save(context.Background(), snap); err != nil {
		s.logger.Error("memory save failed",
			zap.String("module", s.memoryType), zap.Error(err))
	}
}

func (s *RecordStore) load() {
	if s.backend == nil {
		return
	}
	snap, err := s.backend.Load(context.Background())
	if err != nil {
		s.logger.Warn("memory load failed, starting fresh",
			zap.String("module", s.memoryType), zap.Error(err))
		return
	}
	s.mu.Lock()
	s.entries = make([]Record, len(snap.Entries))
	for i, entry := range snap.Entries {
		s.entries[i] = Record(entry)
	}
	s.mu.Unlock()

	if len(snap.Entries) > 0 {
		s.logger.Info("memory loaded",
			zap.String("module", s.memoryType),
			zap.Int("entries", len(snap.Entries)))
	}
}

func (s *RecordStore) generateID() string {
	hex := strings.ReplaceAll(uuid.New().String(), "-", "")
	return s.memoryType + "_" + hex[:12]
}
