package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/helios-eo/skywatch/internal/action"
	"github.com/helios-eo/skywatch/internal/engine"
	"github.com/helios-eo/skywatch/internal/memory"
	"github.com/helios-eo/skywatch/internal/tools"
)

// completingModel immediately marks any task complete, so handler tests run
// a full (but trivial) reasoning cycle.
type completingModel struct{}

func (completingModel) Reason(ctx context.Context, prompt string, showThinking bool) (string, error) {
	return `{"next_action": null, "task_complete": true, "confidence": 0.9,
		"situation_summary": "done", "analysis": "ok", "recommendations": ["none"], "task_status": "completed",
		"keywords": ["test"]}`, nil
}

// newTestHandler creates a Handler wired with in-memory deps only.
func newTestHandler(t *testing.T) (*Handler, http.Handler) {
	t.Helper()
	logger := zap.NewNop()

	working := memory.NewWorkingMemory(nil, logger)
	episodic := memory.NewEpisodicMemory(nil, logger)
	semantic := memory.NewSemanticMemory(nil, logger)
	procedural := memory.NewProceduralMemory(nil, logger)

	catalog := tools.NewCatalog()
	catalog.Register(tools.Definition{Name: "region_mapper", Description: "geocode a named region"}, tools.NotImplemented("region_mapper"))
	registry := action.NewRegistry(catalog, episodic, semantic, procedural, logger)

	eng := engine.NewEngine(engine.Deps{
		Reasoning:  completingModel{},
		General:    completingModel{},
		Catalog:    catalog,
		Registry:   registry,
		Working:    working,
		Episodic:   episodic,
		Semantic:   semantic,
		Procedural: procedural,
		MaxCycles:  5,
		Logger:     logger,
	})

	h := NewHandler(eng, registry, catalog, working, episodic, semantic, procedural, logger)
	return h, h.Router()
}

func postJSON(t *testing.T, ts *httptest.Server, path string, body interface{}) *http.Response {
	t.Helper()
	b, _ := json.Marshal(body)
	resp, err := http.Post(ts.URL+path, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func getJSON(t *testing.T, ts *httptest.Server, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func deleteReq(t *testing.T, ts *httptest.Server, path string) *http.Response {
	t.Helper()
	req, _ := http.NewRequest("DELETE", ts.URL+path, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE %s: %v", path, err)
	}
	return resp
}

// --- Tests ---

func TestHealthCheck(t *testing.T) {
	_, router := newTestHandler(t)
	ts := httptest.NewServer(router)
	defer ts.Close()

	resp := getJSON(t, ts, "/api/health")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body map[string]string
	decodeJSON(t, resp, &body)
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestReasonEndpoint(t *testing.T) {
	_, router := newTestHandler(t)
	ts := httptest.NewServer(router)
	defer ts.Close()

	resp := postJSON(t, ts, "/api/reason", map[string]string{"task_description": "Check Munich coverage"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var result map[string]any
	decodeJSON(t, resp, &result)
	for _, field := range []string{"situation_summary", "analysis", "recommendations", "confidence", "task_status", "reasoning_trace", "tool_results", "total_cycles", "actions_executed"} {
		if _, ok := result[field]; !ok {
			t.Errorf("result missing field %q", field)
		}
	}
	if result["task_status"] != "completed" {
		t.Errorf("task_status = %v", result["task_status"])
	}
}

func TestReasonRequiresTask(t *testing.T) {
	_, router := newTestHandler(t)
	ts := httptest.NewServer(router)
	defer ts.Close()

	resp := postJSON(t, ts, "/api/reason", map[string]string{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestListActionsAndTools(t *testing.T) {
	_, router := newTestHandler(t)
	ts := httptest.NewServer(router)
	defer ts.Close()

	resp := getJSON(t, ts, "/api/actions")
	var summary map[string]any
	decodeJSON(t, resp, &summary)
	if summary["internal_actions"] != float64(7) || summary["external_actions"] != float64(1) {
		t.Errorf("summary = %v", summary)
	}

	resp = getJSON(t, ts, "/api/tools")
	var defs []map[string]any
	decodeJSON(t, resp, &defs)
	if len(defs) != 1 || defs[0]["name"] != "region_mapper" {
		t.Errorf("tools = %v", defs)
	}
}

func TestMemoryStatsAndInspection(t *testing.T) {
	h, router := newTestHandler(t)
	ts := httptest.NewServer(router)
	defer ts.Close()

	if _, err := h.episodic.Store(memory.Record{"task": "seed episode"}); err != nil {
		t.Fatal(err)
	}

	resp := getJSON(t, ts, "/api/memory/stats")
	var stats map[string]any
	decodeJSON(t, resp, &stats)
	for _, key := range []string{"working", "episodic", "semantic", "procedural"} {
		if _, ok := stats[key]; !ok {
			t.Errorf("stats missing %q", key)
		}
	}

	resp = getJSON(t, ts, "/api/memory/episodic?limit=1")
	var episodes []map[string]any
	decodeJSON(t, resp, &episodes)
	if len(episodes) != 1 || episodes[0]["task"] != "seed episode" {
		t.Errorf("episodes = %v", episodes)
	}

	resp = getJSON(t, ts, "/api/memory/semantic?concept=region")
	var facts []map[string]any
	decodeJSON(t, resp, &facts)
	if len(facts) == 0 {
		t.Error("expected seeded region facts")
	}
}

func TestClearMemory(t *testing.T) {
	h, router := newTestHandler(t)
	ts := httptest.NewServer(router)
	defer ts.Close()

	if _, err := h.episodic.Store(memory.Record{"task": "to be cleared"}); err != nil {
		t.Fatal(err)
	}

	resp := deleteReq(t, ts, "/api/memory")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	if h.episodic.Size() != 0 || h.semantic.Size() != 0 || h.procedural.Size() != 0 {
		t.Errorf("memories not cleared: episodic=%d semantic=%d procedural=%d",
			h.episodic.Size(), h.semantic.Size(), h.procedural.Size())
	}
}
