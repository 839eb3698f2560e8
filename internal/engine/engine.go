// Package engine runs the planning/execution cycle that drives a task to
// completion. Each cycle plans one action against the four memories and the
// tool catalog, executes it, and feeds the outcome back into working memory.
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/helios-eo/skywatch/internal/action"
	"github.com/helios-eo/skywatch/internal/memory"
	"github.com/helios-eo/skywatch/internal/parser"
	"github.com/helios-eo/skywatch/internal/tools"
)

// Reasoner is the model capability the engine consumes.
type Reasoner interface {
	Reason(ctx context.Context, prompt string, showThinking bool) (string, error)
}

// Retrieval limits per planning cycle.
const (
	planEpisodeLimit   = 3
	planFactLimit      = 5
	planProcedureLimit = 3
)

// Situation is one task handed to the engine.
type Situation struct {
	TaskDescription string         `json:"task_description"`
	Context         map[string]any `json:"context,omitempty"`
}

// Result is the fixed shape every run produces, whether it completed,
// blocked or faulted. Callers inspect TaskStatus rather than errors.
type Result struct {
	SituationSummary string           `json:"situation_summary"`
	Analysis         string           `json:"analysis"`
	Recommendations  []string         `json:"recommendations"`
	Confidence       float64          `json:"confidence"`
	TaskStatus       string           `json:"task_status"`
	ReasoningTrace   []map[string]any `json:"reasoning_trace"`
	ToolResults      map[string]any   `json:"tool_results"`
	TotalCycles      int              `json:"total_cycles"`
	ActionsExecuted  []string         `json:"actions_executed"`
}

// Deps collects everything an Engine needs.
type Deps struct {
	Reasoning    Reasoner
	General      Reasoner
	Catalog      *tools.Catalog
	Registry     *action.Registry
	Working      *memory.WorkingMemory
	Episodic     *memory.EpisodicMemory
	Semantic     *memory.SemanticMemory
	Procedural   *memory.ProceduralMemory
	MaxCycles    int
	ParseRetries int
	Logger       *zap.Logger
}

// Engine is the cycle controller. It serves one run at a time; the memories
// it holds may outlive many runs.
type Engine struct {
	reasoning  Reasoner
	general    Reasoner
	catalog    *tools.Catalog
	registry   *action.Registry
	working    *memory.WorkingMemory
	episodic   *memory.EpisodicMemory
	semantic   *memory.SemanticMemory
	procedural *memory.ProceduralMemory
	retrier    *parser.Retrier
	maxCycles  int
	logger     *zap.Logger
}

// NewEngine builds an engine. MaxCycles defaults to 15 and ParseRetries to 2.
func NewEngine(d Deps) *Engine {
	if d.MaxCycles <= 0 {
		d.MaxCycles = 15
	}
	if d.ParseRetries <= 0 {
		d.ParseRetries = 2
	}
	return &Engine{
		reasoning:  d.Reasoning,
		general:    d.General,
		catalog:    d.Catalog,
		registry:   d.Registry,
		working:    d.Working,
		episodic:   d.Episodic,
		semantic:   d.Semantic,
		procedural: d.Procedural,
		retrier:    parser.NewRetrier(d.Reasoning, d.General, d.ParseRetries, d.Logger),
		maxCycles:  d.MaxCycles,
		logger:     d.Logger,
	}
}

// run owns the per-task mutable state. The engine itself stays reusable.
type run struct {
	engine   *Engine
	task     string
	keywords []string
	cycle    int
	history  []CycleStep
	faulted  bool
}

// Reason drives one task through planning/execution cycles until the model
// reports completion, the cycle budget runs out, or an unrecoverable fault
// occurs. The returned result always carries the full trace.
func (e *Engine) Reason(ctx context.Context, situation Situation) *Result {
	r := &run{engine: e, task: situation.TaskDescription}

	e.working.Reset()
	e.working.SetTask(r.task)
	e.working.SetAvailableTools(e.catalog.Names())

	r.preprocess(ctx)

	e.logger.Info("starting task",
		zap.String("task", r.task),
		zap.Strings("keywords", r.keywords),
		zap.Int("max_cycles", e.maxCycles))

	state := StateInitial
	for r.cycle < e.maxCycles {
		if state == StateInitial {
			state = StatePlanning
			r.cycle = 1
			continue
		}
		if state == StatePlanning {
			_, done, err := r.planning(ctx)
			if err != nil {
				e.logger.Error("planning fault", zap.Int("cycle", r.cycle), zap.Error(err))
				r.faulted = true
				state = StateError
				break
			}
			if done {
				state = StateCompleted
				break
			}
			state = StateExecution
			continue
		}
		if state == StateExecution {
			if r.execution(ctx) && r.cycle < e.maxCycles {
				r.cycle++
				state = StatePlanning
				continue
			}
			state = StateCompleted
			break
		}
		break
	}

	result := r.synthesize(ctx)
	r.storeEpisode(result)

	e.logger.Info("task finished",
		zap.Int("cycles", result.TotalCycles),
		zap.String("status", result.TaskStatus))
	return result
}

// preprocess asks the general model for retrieval keywords, falling back to
// a lowercase split of the task text.
func (r *run) preprocess(ctx context.Context) {
	e := r.engine
	if r.task == "" {
		return
	}

	prompt := fmt.Sprintf(preprocessPrompt, r.task)
	response, err := e.general.Reason(ctx, prompt, false)
	if err != nil {
		e.logger.Warn("task preprocessing failed, using simple keywords", zap.Error(err))
		r.keywords = strings.Fields(strings.ToLower(r.task))
		return
	}

	doc := parser.Parse(response)
	if parser.IsError(doc) || doc["keywords"] == nil {
		r.keywords = strings.Fields(strings.ToLower(r.task))
		return
	}

	r.keywords = stringSlice(doc["keywords"])
	if category, ok := doc["task_category"].(string); ok {
		e.working.AddIntermediateResult("task_category", category)
	}
	if entities, ok := doc["entities"].(map[string]any); ok {
		e.working.AddIntermediateResult("extracted_entities", entities)
	}
}

// planning retrieves context from the three long-term memories and asks the
// reasoning model for the next action. It returns done=true when the model
// marks the task complete or selects no action.
func (r *run) planning(ctx context.Context) (string, bool, error) {
	e := r.engine

	keywords := r.keywords
	if len(keywords) == 0 {
		keywords = strings.Fields(strings.ToLower(r.task))
	}

	episodes := e.episodic.Retrieve(memory.EpisodeQuery{TaskKeywords: keywords}, planEpisodeLimit)
	facts := e.semantic.Retrieve(memory.FactQuery{Keywords: keywords}, planFactLimit)
	procedures := e.procedural.Retrieve(memory.ProcedureQuery{ContextKeywords: keywords}, planProcedureLimit)

	e.working.AddIntermediateResult("retrieved_episodes", len(episodes))
	e.working.AddIntermediateResult("retrieved_facts", len(facts))
	e.working.AddIntermediateResult("retrieved_procedures", len(procedures))

	memoryContext := formatYAML(map[string]any{
		"past_episodes":    episodes,
		"relevant_facts":   facts,
		"known_strategies": procedures,
	})

	prompt := fmt.Sprintf(planningPrompt,
		r.task,
		r.cycle, e.maxCycles,
		formatYAML(e.working.State().Map()),
		memoryContext,
		formatYAML(e.catalog.Definitions()))

	response, err := e.reasoning.Reason(ctx, prompt, true)
	if err != nil {
		return "", false, fmt.Errorf("planning model: %w", err)
	}

	plan := parser.Parse(response)
	if parser.IsError(plan) {
		plan = e.retrier.Parse(ctx, response, 1)
	}

	nextAction, _ := plan["next_action"].(string)
	taskComplete, _ := plan["task_complete"].(bool)
	confidence := parser.ParseConfidence(plan["confidence"])
	reasoning, _ := plan["reasoning"].(string)

	e.working.UpdateConfidence(confidence)

	actionType := "none"
	if nextAction != "" {
		actionType = "grounding"
	}
	r.history = append(r.history, CycleStep{
		Cycle:          r.cycle,
		State:          StatePlanning,
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
		ActionSelected: nextAction,
		ActionType:     actionType,
		Reasoning:      reasoning,
		Results:        map[string]any{"plan": plan},
		Confidence:     confidence,
	})

	if taskComplete || nextAction == "" {
		return "", true, nil
	}

	params, _ := plan["parameters"].(map[string]any)
	e.working.AddIntermediateResult("selected_action", nextAction)
	e.working.AddIntermediateResult("action_parameters", params)
	e.logger.Info("action selected", zap.Int("cycle", r.cycle), zap.String("action", nextAction))
	return nextAction, false, nil
}

// execution resolves and runs the action chosen during planning. A failing
// action is recorded as a failed step and the run continues; only an absent
// or unknown action ends it.
func (r *run) execution(ctx context.Context) bool {
	e := r.engine

	actionValue, _ := e.working.IntermediateResult("selected_action")
	actionName, _ := actionValue.(string)
	if actionName == "" {
		return false
	}
	paramsValue, _ := e.working.IntermediateResult("action_parameters")
	params, _ := paramsValue.(map[string]any)

	act, ok := e.registry.Get(actionName)
	if !ok {
		e.logger.Error("selected action not in registry", zap.String("action", actionName))
		r.recordExecution(actionName, "unknown", map[string]any{
			"status": "failed",
			"error":  "unknown action",
		}, 0.1)
		return false
	}

	var result any
	switch {
	case act.IsExternal():
		var err error
		result, err = e.registry.Execute(ctx, actionName, params)
		if err != nil {
			e.logger.Warn("tool execution failed",
				zap.String("tool", actionName), zap.Error(err))
			r.recordExecution(actionName, string(act.Kind), map[string]any{
				"status": "failed",
				"error":  err.Error(),
			}, 0.3)
			return r.cycle < e.maxCycles
		}
		e.working.AddIntermediateResult("tool_result_"+actionName, result)
		r.maybeStoreRegion(actionName, params, result)

	case act.Kind == action.KindLearning:
		var err error
		result, err = e.registry.Execute(ctx, actionName, params)
		if err != nil {
			e.logger.Warn("learning action failed",
				zap.String("action", actionName), zap.Error(err))
			r.recordExecution(actionName, string(act.Kind), map[string]any{
				"status": "failed",
				"error":  err.Error(),
			}, 0.3)
			return r.cycle < e.maxCycles
		}

	default:
		result = map[string]any{"status": "unsupported_action_type"}
	}

	r.recordExecution(actionName, string(act.Kind), result, 0.8)
	return r.cycle < e.maxCycles
}

func (r *run) recordExecution(name, actionType string, result any, confidence float64) {
	r.history = append(r.history, CycleStep{
		Cycle:          r.cycle,
		State:          StateExecution,
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
		ActionSelected: name,
		ActionType:     actionType,
		Reasoning:      "Executed " + name,
		Results:        map[string]any{"action_result": result},
		Confidence:     confidence,
	})
}

// maybeStoreRegion promotes a successful region mapping into semantic
// memory. This is the single place execution writes across memories
// unsolicited.
func (r *run) maybeStoreRegion(actionName string, params map[string]any, result any) {
	if actionName != "region_mapper" {
		return
	}
	m, ok := result.(map[string]any)
	if !ok {
		return
	}
	if _, hasBBox := m["bbox"]; !hasBBox {
		return
	}
	regionName, _ := params["region_name"].(string)
	if regionName == "" {
		regionName = "unknown"
	}
	if _, err := r.engine.semantic.StoreRegionInfo(regionName, floatSlice(m["bbox"]), floatSlice(m["center"]), m); err != nil {
		r.engine.logger.Warn("storing region info failed", zap.Error(err))
		return
	}
	r.engine.logger.Info("stored region info", zap.String("region", regionName))
}

// synthesize builds the final result from the step trace, asking the
// reasoning model for a summary and falling back to a templated one when
// the model or the parse fails.
func (r *run) synthesize(ctx context.Context) *Result {
	e := r.engine

	toolResults := make(map[string]any)
	var actionsExecuted []string
	for _, step := range r.history {
		if step.State != StateExecution || step.ActionSelected == "" {
			continue
		}
		actionsExecuted = append(actionsExecuted, step.ActionSelected)
		if res, ok := step.Results["action_result"]; ok {
			toolResults[step.ActionSelected] = res
		}
	}

	confidence := e.working.State().Confidence
	if confidence == 0 {
		confidence = 0.5
	}

	status := "completed"
	if r.faulted {
		status = "error"
	}

	result := &Result{
		SituationSummary: fmt.Sprintf("Completed task: %s", r.task),
		Analysis:         fmt.Sprintf("Executed %d actions", len(actionsExecuted)),
		Recommendations:  []string{"Review results"},
		Confidence:       confidence,
		TaskStatus:       status,
	}

	prompt := fmt.Sprintf(synthesisPrompt,
		r.task,
		strings.Join(actionsExecuted, ", "),
		formatYAML(toolResults),
		r.cycle, e.maxCycles,
		confidence)

	response, err := e.reasoning.Reason(ctx, prompt, false)
	if err != nil {
		e.logger.Warn("synthesis model failed, using templated summary", zap.Error(err))
	} else {
		doc := parser.Parse(response)
		if parser.IsError(doc) {
			doc = e.retrier.Parse(ctx, response, 1)
		}
		if !parser.IsError(doc) {
			if s, ok := doc["situation_summary"].(string); ok {
				result.SituationSummary = s
			}
			if s, ok := doc["analysis"].(string); ok {
				result.Analysis = s
			}
			if recs := stringSlice(doc["recommendations"]); len(recs) > 0 {
				result.Recommendations = recs
			}
			if doc["confidence"] != nil {
				result.Confidence = parser.ParseConfidence(doc["confidence"])
			}
			if s, ok := doc["task_status"].(string); ok && !r.faulted {
				result.TaskStatus = s
			}
		}
	}

	result.ReasoningTrace = make([]map[string]any, 0, len(r.history))
	for _, step := range r.history {
		result.ReasoningTrace = append(result.ReasoningTrace, step.ToMap())
	}
	result.ToolResults = toolResults
	result.TotalCycles = r.cycle
	result.ActionsExecuted = actionsExecuted
	return result
}

// storeEpisode commits the finished run to episodic memory and offers the
// executed tool sequence to procedural memory, which keeps it only for
// successful multi-tool runs.
func (r *run) storeEpisode(result *Result) {
	e := r.engine

	var actionsTaken []map[string]any
	for _, step := range r.history {
		if step.ActionSelected == "" {
			continue
		}
		actionsTaken = append(actionsTaken, map[string]any{
			"action": step.ActionSelected,
			"type":   step.ActionType,
			"cycle":  step.Cycle,
		})
	}

	episode := memory.Record{
		"task":            r.task,
		"actions":         actionsTaken,
		"results":         result.ToolResults,
		"outcome":         result.TaskStatus,
		"confidence":      result.Confidence,
		"reasoning_trace": result.ReasoningTrace,
		"cycles":          result.TotalCycles,
	}
	if _, err := e.episodic.Store(episode); err != nil {
		e.logger.Warn("storing episode failed", zap.Error(err))
	}

	if _, err := e.procedural.StoreSuccessfulSequence(result.ActionsExecuted, r.task, result.TaskStatus); err != nil {
		e.logger.Warn("storing tool sequence failed", zap.Error(err))
	}
}

func formatYAML(v any) string {
	out, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(out)
}

func stringSlice(v any) []string {
	switch items := v.(type) {
	case []string:
		return items
	case []any:
		out := make([]string, 0, len(items))
		for _, item := range items {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func floatSlice(v any) []float64 {
	switch items := v.(type) {
	case []float64:
		return items
	case []any:
		out := make([]float64, 0, len(items))
		for _, item := range items {
			switch n := item.(type) {
			case float64:
				out = append(out, n)
			case int:
				out = append(out, float64(n))
			}
		}
		return out
	default:
		return nil
	}
}
