package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/helios-eo/skywatch/internal/action"
	"github.com/helios-eo/skywatch/internal/api"
	"github.com/helios-eo/skywatch/internal/engine"
	"github.com/helios-eo/skywatch/internal/memory"
	"github.com/helios-eo/skywatch/internal/provider"
	"github.com/helios-eo/skywatch/internal/storage"
	"github.com/helios-eo/skywatch/internal/tools"
)

// modelStub serves OpenAI-compatible chat completions with scripted
// planning answers: first map the region, then declare completion.
func modelStub(t *testing.T) *httptest.Server {
	t.Helper()
	var planningCalls int
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		prompt := req.Messages[len(req.Messages)-1].Content

		var content string
		switch {
		case bytes.Contains([]byte(prompt), []byte("extract relevant keywords")):
			content = `{"keywords": ["bavaria", "region", "map"], "task_category": "mapping", "entities": {}}`
		case bytes.Contains([]byte(prompt), []byte("Synthesize the final result")):
			content = `{"situation_summary": "Bavaria mapped", "analysis": "bounding box resolved", "recommendations": ["query imagery next"], "confidence": 0.9, "task_status": "completed"}`
		default:
			planningCalls++
			if planningCalls == 1 {
				content = `{"analysis": "need coordinates", "next_action": "region_mapper", "parameters": {"region_name": "Bavaria"}, "reasoning": "resolve region first", "confidence": 0.8, "task_complete": false}`
			} else {
				content = `{"analysis": "region resolved", "next_action": null, "parameters": {}, "reasoning": "done", "confidence": 0.9, "task_complete": true}`
			}
		}

		json.NewEncoder(w).Encode(map[string]any{
			"id":    fmt.Sprintf("resp-%d", planningCalls),
			"model": "stub",
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": content}, "finish_reason": "stop"},
			},
		})
	}))
}

func geocoderStub(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]any{{
			"lat":          "48.95",
			"lon":          "11.42",
			"display_name": "Bavaria, Germany",
			"boundingbox":  []string{"47.27", "50.56", "8.97", "13.84"},
		}})
	}))
}

// startServer wires the full stack over file-backed memory.
func startServer(t *testing.T, dir, modelURL, geocoderURL string) (*httptest.Server, *memory.SemanticMemory) {
	t.Helper()
	logger := zap.NewNop()

	working := memory.NewWorkingMemory(storage.NewFileBackend(dir, "working", logger), logger)
	episodic := memory.NewEpisodicMemory(storage.NewFileBackend(dir, "episodic", logger), logger)
	semantic := memory.NewSemanticMemory(storage.NewFileBackend(dir, "semantic", logger), logger)
	procedural := memory.NewProceduralMemory(storage.NewFileBackend(dir, "procedural", logger), logger)

	prov := provider.NewOpenAIProvider(provider.Config{ID: "stub", Endpoint: modelURL, Model: "stub"}, logger)
	reasoning := provider.NewClient(provider.RoleReasoning, prov, nil, logger)
	general := provider.NewClient(provider.RoleGeneral, prov, nil, logger)

	catalog := tools.NewCatalog()
	tools.RegisterDefaults(catalog, tools.NewRegionMapper(geocoderURL, logger))
	registry := action.NewRegistry(catalog, episodic, semantic, procedural, logger)

	eng := engine.NewEngine(engine.Deps{
		Reasoning:  reasoning,
		General:    general,
		Catalog:    catalog,
		Registry:   registry,
		Working:    working,
		Episodic:   episodic,
		Semantic:   semantic,
		Procedural: procedural,
		MaxCycles:  10,
		Logger:     logger,
	})

	handler := api.NewHandler(eng, registry, catalog, working, episodic, semantic, procedural, logger)
	return httptest.NewServer(handler.Router()), semantic
}

func TestFullReasoningRunWithPersistence(t *testing.T) {
	model := modelStub(t)
	defer model.Close()
	geocoder := geocoderStub(t)
	defer geocoder.Close()

	dir := t.TempDir()
	srv, _ := startServer(t, dir, model.URL, geocoder.URL)

	body, _ := json.Marshal(map[string]string{"task_description": "Map the Bavaria region"})
	resp, err := http.Post(srv.URL+"/api/reason", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if result["task_status"] != "completed" {
		t.Fatalf("task_status = %v", result["task_status"])
	}
	if result["total_cycles"] != float64(2) {
		t.Errorf("total_cycles = %v, want 2", result["total_cycles"])
	}
	actions, _ := result["actions_executed"].([]any)
	if len(actions) != 1 || actions[0] != "region_mapper" {
		t.Errorf("actions_executed = %v", actions)
	}
	toolResults, _ := result["tool_results"].(map[string]any)
	mapped, _ := toolResults["region_mapper"].(map[string]any)
	if mapped["status"] != "success" {
		t.Errorf("region_mapper result = %v", mapped)
	}
	srv.Close()

	// A fresh stack over the same directory sees the persisted memories:
	// the stored episode and the region fact written during execution.
	srv2, semantic := startServer(t, dir, model.URL, geocoder.URL)
	defer srv2.Close()

	facts := semantic.GetByEntity("Bavaria", 5)
	if len(facts) != 1 {
		t.Fatalf("persisted region fact not reloaded, got %d", len(facts))
	}

	resp, err = http.Get(srv2.URL + "/api/memory/episodic?limit=5")
	if err != nil {
		t.Fatal(err)
	}
	var episodes []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&episodes); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if len(episodes) != 1 || episodes[0]["task"] != "Map the Bavaria region" {
		t.Errorf("persisted episodes = %v", episodes)
	}
}
