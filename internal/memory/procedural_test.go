package memory

import (
	"errors"
	"testing"

	"go.uber.org/zap"
)

func newTestProcedural(t *testing.T) *ProceduralMemory {
	t.Helper()
	return NewProceduralMemory(nil, zap.NewNop())
}

func findProcedure(m *ProceduralMemory, name string) Record {
	for _, proc := range m.GetAll() {
		if stringField(proc, "name") == name {
			return proc
		}
	}
	return nil
}

func TestProceduralSeedsDefaults(t *testing.T) {
	m := newTestProcedural(t)
	if m.Size() != 4 {
		t.Fatalf("seeded %d procedures, want 4", m.Size())
	}
	for _, name := range []string{"region_to_detection", "image_to_detection", "region_expansion", "region_query_extraction"} {
		if findProcedure(m, name) == nil {
			t.Errorf("default procedure %q missing", name)
		}
	}
}

func TestProceduralStoreDefaults(t *testing.T) {
	m := newTestProcedural(t)
	id, err := m.Store(Record{"procedure_type": "strategy", "name": "night_pass"})
	if err != nil {
		t.Fatal(err)
	}
	proc, _ := m.GetByID(id)
	if floatField(proc, "success_rate", -1) != 0.5 {
		t.Errorf("success_rate default = %v, want 0.5", proc["success_rate"])
	}
	if intField(proc, "usage_count", -1) != 0 {
		t.Errorf("usage_count default = %v, want 0", proc["usage_count"])
	}

	_, err = m.Store(Record{"name": "missing type"})
	if !errors.Is(err, ErrMissingField) {
		t.Fatalf("expected ErrMissingField, got %v", err)
	}
}

// Default region_to_detection must outrank an unrelated procedure with a
// lower success rate for a region/object query.
func TestProceduralRetrieveRanking(t *testing.T) {
	m := newTestProcedural(t)
	if _, err := m.Store(Record{
		"procedure_type": "tool_sequence",
		"name":           "unrelated_sequence",
		"description":    "Fuse multi-band data",
		"pattern":        []string{"data_fusion"},
		"context":        "Combining spectral bands",
		"success_rate":   0.4,
	}); err != nil {
		t.Fatal(err)
	}

	got := m.Retrieve(ProcedureQuery{
		ProcedureType:   "tool_sequence",
		ContextKeywords: []string{"region", "object"},
	}, 5)
	if len(got) == 0 {
		t.Fatal("no procedures retrieved")
	}
	if stringField(got[0], "name") != "region_to_detection" {
		t.Errorf("top procedure = %q, want region_to_detection", stringField(got[0], "name"))
	}
}

func TestProceduralMinSuccessRateFilters(t *testing.T) {
	m := newTestProcedural(t)
	if _, err := m.Store(Record{
		"procedure_type": "tool_sequence",
		"name":           "flaky",
		"pattern":        []string{"object_detector"},
		"context":        "detecting objects",
		"success_rate":   0.2,
	}); err != nil {
		t.Fatal(err)
	}

	got := m.Retrieve(ProcedureQuery{ProcedureType: "tool_sequence", MinSuccessRate: 0.5}, 10)
	for _, proc := range got {
		if stringField(proc, "name") == "flaky" {
			t.Error("procedure below min_success_rate must be filtered out")
		}
	}
}

func TestProceduralPatternToolOverlap(t *testing.T) {
	m := newTestProcedural(t)
	// region_expansion has a map-shaped pattern; tool overlap must not apply.
	got := m.Retrieve(ProcedureQuery{Tools: []string{"region_mapper"}}, 10)
	if len(got) == 0 {
		t.Fatal("no procedures retrieved")
	}
	if stringField(got[0], "name") != "region_to_detection" {
		t.Errorf("top procedure = %q, want region_to_detection (list pattern with overlap)", stringField(got[0], "name"))
	}
}

func TestUpdateSuccessRateEMA(t *testing.T) {
	m := newTestProcedural(t)
	id, err := m.Store(Record{"procedure_type": "strategy", "name": "ema", "success_rate": 0.5})
	if err != nil {
		t.Fatal(err)
	}

	previous := 0.5
	for i := 0; i < 50; i++ {
		if !m.UpdateSuccessRate(id, true) {
			t.Fatal("update failed")
		}
		proc, _ := m.GetByID(id)
		rate := floatField(proc, "success_rate", -1)
		if rate <= previous {
			t.Fatalf("iteration %d: rate %v did not increase from %v", i, rate, previous)
		}
		if rate >= 1.0 {
			t.Fatalf("iteration %d: rate %v reached 1.0, EMA must stay below", i, rate)
		}
		previous = rate
	}

	// One failure pulls the rate back down, still inside [0,1].
	m.UpdateSuccessRate(id, false)
	proc, _ := m.GetByID(id)
	rate := floatField(proc, "success_rate", -1)
	if rate >= previous || rate < 0 {
		t.Errorf("rate after failure = %v (was %v)", rate, previous)
	}
}

func TestIncrementUsage(t *testing.T) {
	m := newTestProcedural(t)
	id, _ := m.Store(Record{"procedure_type": "strategy", "name": "count me"})
	m.IncrementUsage(id)
	m.IncrementUsage(id)
	proc, _ := m.GetByID(id)
	if intField(proc, "usage_count", -1) != 2 {
		t.Errorf("usage_count = %v, want 2", proc["usage_count"])
	}
	if m.IncrementUsage("procedural_missing") {
		t.Error("incrementing unknown id must return false")
	}
}

func TestSuggestToolSequence(t *testing.T) {
	m := newTestProcedural(t)
	seq := m.SuggestToolSequence("detect objects in a named region")
	if len(seq) != 2 || seq[0] != "region_mapper" || seq[1] != "object_detector" {
		t.Errorf("suggested sequence = %v", seq)
	}
}

func TestStoreSuccessfulSequenceGating(t *testing.T) {
	m := newTestProcedural(t)

	id, err := m.StoreSuccessfulSequence([]string{"region_mapper"}, "single tool", "completed")
	if err != nil || id != "" {
		t.Errorf("single-tool run must not be stored (id=%q err=%v)", id, err)
	}
	id, err = m.StoreSuccessfulSequence([]string{"a", "b"}, "failed run", "failed")
	if err != nil || id != "" {
		t.Errorf("failed run must not be stored (id=%q err=%v)", id, err)
	}

	id, err = m.StoreSuccessfulSequence([]string{"region_mapper", "object_detector"}, "detect vehicles in Munich", "completed")
	if err != nil {
		t.Fatal(err)
	}
	proc, ok := m.GetByID(id)
	if !ok {
		t.Fatal("learned sequence not stored")
	}
	if floatField(proc, "success_rate", 0) != 0.7 || intField(proc, "usage_count", 0) != 1 {
		t.Errorf("learned sequence defaults wrong: rate=%v usage=%v", proc["success_rate"], proc["usage_count"])
	}
}

func TestProceduralStatistics(t *testing.T) {
	m := newTestProcedural(t)
	stats := m.Statistics()
	if stats.TotalProcedures != 4 {
		t.Errorf("total = %d", stats.TotalProcedures)
	}
	if stats.ByType["tool_sequence"] != 2 || stats.ByType["strategy"] != 1 {
		t.Errorf("by_type = %v", stats.ByType)
	}
	if stats.AvgSuccessRate != 1.0 {
		t.Errorf("avg success rate = %v, want 1.0 for default seeds", stats.AvgSuccessRate)
	}
}
