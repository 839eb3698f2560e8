package memory

import (
	"testing"

	"go.uber.org/zap"

	"github.com/helios-eo/skywatch/internal/storage"
)

func TestWorkingStateLifecycle(t *testing.T) {
	m := NewWorkingMemory(nil, zap.NewNop())

	m.SetTask("Detect vehicles in Munich")
	m.SetAvailableTools([]string{"region_mapper", "object_detector"})
	m.AddIntermediateResult("selected_action", "region_mapper")
	m.AddIntermediateResult("selected_action", "object_detector") // last write wins
	m.UpdateConfidence(0.8)

	state := m.State()
	if state.Task != "Detect vehicles in Munich" {
		t.Errorf("task = %q", state.Task)
	}
	if state.TaskStartTime.IsZero() {
		t.Error("task start time not stamped")
	}
	if state.IntermediateResults["selected_action"] != "object_detector" {
		t.Errorf("intermediate result = %v", state.IntermediateResults["selected_action"])
	}
	if state.Confidence != 0.8 {
		t.Errorf("confidence = %v", state.Confidence)
	}

	// State() returns a copy; mutating it must not leak back.
	state.IntermediateResults["selected_action"] = "tampered"
	if v, _ := m.IntermediateResult("selected_action"); v != "object_detector" {
		t.Error("State() leaked internal map")
	}
}

func TestWorkingResetArchivesState(t *testing.T) {
	m := NewWorkingMemory(nil, zap.NewNop())

	// Resetting an empty state archives nothing.
	m.Reset()
	if m.Size() != 0 {
		t.Fatalf("empty reset archived %d records", m.Size())
	}

	m.SetTask("first task")
	m.AddIntermediateResult("k", "v")
	m.Reset()

	if m.Size() != 1 {
		t.Fatalf("reset archived %d records, want 1", m.Size())
	}
	state := m.State()
	if state.Task != "" || len(state.IntermediateResults) != 0 {
		t.Errorf("state not cleared: %+v", state)
	}

	archived := m.Retrieve(map[string]any{"type": "completed_state"}, 5)
	if len(archived) != 1 {
		t.Fatalf("archived state not retrievable: %v", archived)
	}
	inner, ok := archived[0]["state"].(map[string]any)
	if !ok || inner["task"] != "first task" {
		t.Errorf("archived state = %v", archived[0]["state"])
	}
}

func TestWorkingRetrieveNewestFirst(t *testing.T) {
	m := NewWorkingMemory(nil, zap.NewNop())
	for _, name := range []string{"a", "b", "c"} {
		if _, err := m.Store(Record{"type": "note", "name": name}); err != nil {
			t.Fatal(err)
		}
	}
	got := m.Retrieve(map[string]any{"type": "note"}, 2)
	if len(got) != 2 || stringField(got[0], "name") != "c" || stringField(got[1], "name") != "b" {
		t.Errorf("retrieve order wrong: %v", got)
	}
}

func TestWorkingRetrieveNonComparableQueryValues(t *testing.T) {
	m := NewWorkingMemory(nil, zap.NewNop())
	if _, err := m.Store(Record{"type": "note", "tags": []string{"a", "b"}}); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Store(Record{"type": "note", "tags": []string{"c"}}); err != nil {
		t.Fatal(err)
	}

	got := m.Retrieve(map[string]any{"tags": []string{"a", "b"}}, 5)
	if len(got) != 1 || stringField(got[0], "type") != "note" {
		t.Errorf("slice-valued query = %v", got)
	}
	if got := m.Retrieve(map[string]any{"meta": map[string]any{"k": "v"}}, 5); len(got) != 0 {
		t.Errorf("map-valued query matched unexpectedly: %v", got)
	}
}

func TestWorkingPersistentHistoryRoundTrip(t *testing.T) {
	dir := t.TempDir()
	logger := zap.NewNop()

	m := NewWorkingMemory(storage.NewFileBackend(dir, "working", logger), logger)
	m.SetTask("persisted task")
	m.Reset()

	// A fresh instance over the same backend sees the archived state.
	reloaded := NewWorkingMemory(storage.NewFileBackend(dir, "working", logger), logger)
	if reloaded.Size() != 1 {
		t.Fatalf("reloaded %d records, want 1", reloaded.Size())
	}
	if !reloaded.Persistent() {
		t.Error("backend-configured store must report persistent")
	}
}
