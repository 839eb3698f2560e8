package memory

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/helios-eo/skywatch/internal/storage"
)

// ProceduralMemory stores learned strategies: tool sequences, parameter
// strategies and prompt templates, each with a success rate maintained as an
// exponential moving average.
type ProceduralMemory struct {
	*RecordStore
}

// successRateAlpha is the EMA weight applied to each new outcome.
const successRateAlpha = 0.2

// NewProceduralMemory creates the procedural store and seeds the default
// procedure set when the store starts empty, so planning never queries an
// empty procedural memory on a cold start.
func NewProceduralMemory(backend storage.Backend, logger *zap.Logger) *ProceduralMemory {
	m := &ProceduralMemory{RecordStore: newRecordStore("procedural", backend, logger)}
	m.seedDefaults()
	return m
}

// Store appends a procedure. "procedure_type" and "name" are required;
// success_rate defaults to 0.5 and usage_count to 0.
func (m *ProceduralMemory) Store(entry Record) (string, error) {
	if _, ok := entry["success_rate"]; !ok {
		entry["success_rate"] = 0.5
	}
	if _, ok := entry["usage_count"]; !ok {
		entry["usage_count"] = 0
	}
	return m.insert(entry, "procedure_type", "name")
}

// ProcedureQuery selects procedures by type, context keywords, pattern/tool
// overlap and a success-rate floor.
type ProcedureQuery struct {
	ProcedureType   string
	ContextKeywords []string
	MinSuccessRate  float64
	Tools           []string
}

func (q ProcedureQuery) open() bool {
	return q.ProcedureType == "" && len(q.ContextKeywords) == 0 && len(q.Tools) == 0
}

// Retrieve filters out procedures below MinSuccessRate, then scores:
// +3 type match, +2 per context/description keyword hit, +2 per tool found
// in a list-shaped pattern, plus 2x success_rate as a continuous bonus so a
// historically reliable procedure can surface even when topically distant.
func (m *ProceduralMemory) Retrieve(q ProcedureQuery, limit int) []Record {
	type scored struct {
		proc  Record
		score float64
	}
	procType := strings.ToLower(q.ProcedureType)
	keywords := lowerAll(q.ContextKeywords)

	m.mu.RLock()
	var results []scored
	for _, proc := range m.entries {
		if q.MinSuccessRate > 0 && floatField(proc, "success_rate", 0) < q.MinSuccessRate {
			continue
		}

		var score float64
		if procType != "" && procType == strings.ToLower(stringField(proc, "procedure_type")) {
			score += 3
		}

		context := strings.ToLower(stringField(proc, "context"))
		description := strings.ToLower(stringField(proc, "description"))
		for _, kw := range keywords {
			if strings.Contains(context, kw) || strings.Contains(description, kw) {
				score += 2
			}
		}

		// Tool overlap only applies to sequence-shaped patterns.
		if pattern := stringList(proc["pattern"]); pattern != nil {
			for _, tool := range q.Tools {
				if containsString(pattern, tool) {
					score += 2
				}
			}
		}

		score += floatField(proc, "success_rate", 0.5) * 2

		if score > 0 || q.open() {
			results = append(results, scored{proc: proc.Clone(), score: score})
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(results, func(i, j int) bool { return results[i].score > results[j].score })
	if len(results) > limit {
		results = results[:limit]
	}
	out := make([]Record, len(results))
	for i, r := range results {
		out[i] = r.proc
	}
	return out
}

// ToolSequences returns stored tool-sequence procedures.
func (m *ProceduralMemory) ToolSequences(limit int) []Record {
	return m.Retrieve(ProcedureQuery{ProcedureType: "tool_sequence"}, limit)
}

// Strategies returns stored strategy procedures.
func (m *ProceduralMemory) Strategies(limit int) []Record {
	return m.Retrieve(ProcedureQuery{ProcedureType: "strategy"}, limit)
}

// PromptTemplates returns stored prompt-template procedures.
func (m *ProceduralMemory) PromptTemplates(limit int) []Record {
	return m.Retrieve(ProcedureQuery{ProcedureType: "prompt_template"}, limit)
}

// IncrementUsage bumps a procedure's usage counter.
func (m *ProceduralMemory) IncrementUsage(id string) bool {
	proc, ok := m.GetByID(id)
	if !ok {
		return false
	}
	return m.Update(id, Record{"usage_count": intField(proc, "usage_count", 0) + 1})
}

// UpdateSuccessRate folds one outcome into the procedure's success rate via
// an exponential moving average: new = α·outcome + (1-α)·old. The rate stays
// inside [0,1] and approaches but never reaches the extremes.
func (m *ProceduralMemory) UpdateSuccessRate(id string, success bool) bool {
	proc, ok := m.GetByID(id)
	if !ok {
		return false
	}
	outcome := 0.0
	if success {
		outcome = 1.0
	}
	current := floatField(proc, "success_rate", 0.5)
	updated := successRateAlpha*outcome + (1-successRateAlpha)*current
	return m.Update(id, Record{"success_rate": updated})
}

// SuggestToolSequence returns the best-matching tool sequence for a context
// description, or nil when nothing qualifies.
func (m *ProceduralMemory) SuggestToolSequence(context string) []string {
	sequences := m.Retrieve(ProcedureQuery{
		ProcedureType:   "tool_sequence",
		ContextKeywords: strings.Fields(strings.ToLower(context)),
		MinSuccessRate:  0.5,
	}, 1)
	if len(sequences) == 0 {
		return nil
	}
	return stringList(sequences[0]["pattern"])
}

// StoreSuccessfulSequence records a completed run's tool ordering as a new
// learned sequence. Only multi-tool runs with a successful outcome qualify;
// the learned sequence starts at rate 0.7 with one recorded use.
func (m *ProceduralMemory) StoreSuccessfulSequence(toolsUsed []string, taskDescription, outcome string) (string, error) {
	if (outcome != "completed" && outcome != "success") || len(toolsUsed) < 2 {
		return "", nil
	}
	return m.Store(Record{
		"procedure_type": "tool_sequence",
		"name":           fmt.Sprintf("learned_sequence_%d", m.Size()),
		"description":    "Learned from successful task: " + truncate(taskDescription, 100),
		"pattern":        toolsUsed,
		"context":        taskDescription,
		"success_rate":   0.7,
		"usage_count":    1,
		"source":         "automatic_learning",
	})
}

// ProceduralStats summarizes the stored procedures.
type ProceduralStats struct {
	TotalProcedures int                 `json:"total_procedures"`
	ByType          map[string]int      `json:"by_type"`
	AvgSuccessRate  float64             `json:"avg_success_rate"`
	MostUsed        []ProcedureUsageRef `json:"most_used"`
}

// ProcedureUsageRef identifies a procedure and its usage statistics.
type ProcedureUsageRef struct {
	Name        string  `json:"name"`
	UsageCount  int     `json:"usage_count"`
	SuccessRate float64 `json:"success_rate"`
}

// Statistics aggregates procedure counts by type, the average success rate
// and the five most used procedures.
func (m *ProceduralMemory) Statistics() ProceduralStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := ProceduralStats{
		TotalProcedures: len(m.entries),
		ByType:          map[string]int{},
		MostUsed:        []ProcedureUsageRef{},
	}
	if len(m.entries) == 0 {
		return stats
	}

	var rateSum float64
	refs := make([]ProcedureUsageRef, 0, len(m.entries))
	for _, proc := range m.entries {
		procType := stringField(proc, "procedure_type")
		if procType == "" {
			procType = "unknown"
		}
		stats.ByType[procType]++
		rateSum += floatField(proc, "success_rate", 0)
		refs = append(refs, ProcedureUsageRef{
			Name:        stringField(proc, "name"),
			UsageCount:  intField(proc, "usage_count", 0),
			SuccessRate: floatField(proc, "success_rate", 0),
		})
	}
	stats.AvgSuccessRate = rateSum / float64(len(m.entries))

	sort.SliceStable(refs, func(i, j int) bool { return refs[i].UsageCount > refs[j].UsageCount })
	if len(refs) > 5 {
		refs = refs[:5]
	}
	stats.MostUsed = refs
	return stats
}

func (m *ProceduralMemory) seedDefaults() {
	if m.Size() > 0 {
		return
	}
	defaults := []Record{
		{
			"procedure_type": "tool_sequence",
			"name":           "region_to_detection",
			"description":    "Standard workflow: Map region first, then detect objects",
			"pattern":        []string{"region_mapper", "object_detector"},
			"context":        "When task involves detecting objects in a named region",
			"success_rate":   1.0,
			"usage_count":    0,
			"examples":       []string{"Detect vehicles in München", "Find ships near Starnberger See"},
		},
		{
			"procedure_type": "tool_sequence",
			"name":           "image_to_detection",
			"description":    "Process image before running detection",
			"pattern":        []string{"image_processor", "object_detector"},
			"context":        "When working with raw satellite imagery",
			"success_rate":   1.0,
			"usage_count":    0,
			"examples":       []string{"Analyze raw satellite image", "Process and detect objects"},
		},
		{
			"procedure_type": "strategy",
			"name":           "region_expansion",
			"description":    "For large regions like Bayern, use moderate bbox expansion (0.3-0.5)",
			"pattern": map[string]any{
				"tool":        "region_mapper",
				"parameter":   "expand_bbox",
				"value_range": []float64{0.3, 0.5},
			},
			"context":      "Querying large geographic areas",
			"success_rate": 1.0,
			"usage_count":  0,
		},
		{
			"procedure_type": "prompt_template",
			"name":           "region_query_extraction",
			"description":    "Effective prompt for extracting region names from user queries",
			"template":       "Extract the geographic location from: {query}. Return region name or null if not found.",
			"context":        "When user query mentions a location",
			"success_rate":   1.0,
			"usage_count":    0,
		},
	}
	for _, proc := range defaults {
		if _, err := m.Store(proc); err != nil {
			m.logger.Warn("seeding default procedure failed", zap.Error(err))
		}
	}
}
