package action

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/helios-eo/skywatch/internal/memory"
	"github.com/helios-eo/skywatch/internal/tools"
)

// Registry holds the complete action space, built once at construction.
type Registry struct {
	actions map[string]*Action
	order   []string
	logger  *zap.Logger
}

// NewRegistry registers the seven fixed internal actions plus one external
// action per catalog tool.
func NewRegistry(
	catalog *tools.Catalog,
	episodic *memory.EpisodicMemory,
	semantic *memory.SemanticMemory,
	procedural *memory.ProceduralMemory,
	logger *zap.Logger,
) *Registry {
	r := &Registry{actions: make(map[string]*Action), logger: logger}

	r.add(&Action{
		Name:        "reasoning",
		Kind:        KindReasoning,
		Description: "Use the language model to analyze the task and update working memory",
	})

	r.add(&Action{
		Name:        "retrieve_episodic",
		Kind:        KindRetrieval,
		Description: "Retrieve similar past episodes from episodic memory",
		Parameters:  retrievalParams(),
		invoke: func(ctx context.Context, params map[string]any) (any, error) {
			return episodic.Retrieve(episodeQueryFrom(queryOf(params)), limitOf(params)), nil
		},
	})
	r.add(&Action{
		Name:        "retrieve_semantic",
		Kind:        KindRetrieval,
		Description: "Retrieve facts from semantic memory",
		Parameters:  retrievalParams(),
		invoke: func(ctx context.Context, params map[string]any) (any, error) {
			return semantic.Retrieve(factQueryFrom(queryOf(params)), limitOf(params)), nil
		},
	})
	r.add(&Action{
		Name:        "retrieve_procedural",
		Kind:        KindRetrieval,
		Description: "Retrieve learned strategies from procedural memory",
		Parameters:  retrievalParams(),
		invoke: func(ctx context.Context, params map[string]any) (any, error) {
			return procedural.Retrieve(procedureQueryFrom(queryOf(params)), limitOf(params)), nil
		},
	})

	r.add(&Action{
		Name:        "store_episode",
		Kind:        KindLearning,
		Description: "Store a complete episode in episodic memory",
		Parameters:  map[string]any{"episode": map[string]any{}},
		invoke: func(ctx context.Context, params map[string]any) (any, error) {
			return episodic.Store(recordParam(params, "episode"))
		},
	})
	r.add(&Action{
		Name:        "store_fact",
		Kind:        KindLearning,
		Description: "Store a new fact in semantic memory",
		Parameters:  map[string]any{"fact": map[string]any{}},
		invoke: func(ctx context.Context, params map[string]any) (any, error) {
			return semantic.Store(recordParam(params, "fact"))
		},
	})
	r.add(&Action{
		Name:        "store_procedure",
		Kind:        KindLearning,
		Description: "Store a learned strategy in procedural memory",
		Parameters:  map[string]any{"procedure": map[string]any{}},
		invoke: func(ctx context.Context, params map[string]any) (any, error) {
			return procedural.Store(recordParam(params, "procedure"))
		},
	})

	for _, def := range catalog.Definitions() {
		tool, _ := catalog.Get(def.Name)
		invoke := tool.Invoke
		r.add(&Action{
			Name:        def.Name,
			Kind:        KindGrounding,
			Description: def.Description,
			Parameters:  def.Parameters,
			invoke: func(ctx context.Context, params map[string]any) (any, error) {
				return invoke(ctx, params)
			},
		})
	}

	logger.Info("action space built",
		zap.Int("internal", len(r.InternalActions())),
		zap.Int("external", len(r.ExternalActions())))
	return r
}

func (r *Registry) add(a *Action) {
	if _, exists := r.actions[a.Name]; !exists {
		r.order = append(r.order, a.Name)
	}
	r.actions[a.Name] = a
}

// Get returns an action by name.
func (r *Registry) Get(name string) (*Action, bool) {
	a, ok := r.actions[name]
	return a, ok
}

// Execute invokes an action synchronously and returns its result unmodified.
func (r *Registry) Execute(ctx context.Context, name string, params map[string]any) (any, error) {
	a, ok := r.actions[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAction, name)
	}
	if !a.Executable() {
		return nil, fmt.Errorf("%w: %s", ErrNotExecutable, name)
	}
	return a.invoke(ctx, params)
}

// List returns all action names, optionally filtered by kind.
func (r *Registry) List(kinds ...Kind) []string {
	if len(kinds) == 0 {
		return append([]string(nil), r.order...)
	}
	var names []string
	for _, name := range r.order {
		a := r.actions[name]
		for _, kind := range kinds {
			if a.Kind == kind {
				names = append(names, name)
				break
			}
		}
	}
	return names
}

// InternalActions returns all reasoning, retrieval and learning actions.
func (r *Registry) InternalActions() []*Action {
	return r.filter(func(a *Action) bool { return a.IsInternal() })
}

// ExternalActions returns all grounding actions.
func (r *Registry) ExternalActions() []*Action {
	return r.filter(func(a *Action) bool { return a.IsExternal() })
}

func (r *Registry) filter(keep func(*Action) bool) []*Action {
	var out []*Action
	for _, name := range r.order {
		if a := r.actions[name]; keep(a) {
			out = append(out, a)
		}
	}
	return out
}

// Summary describes the action space for diagnostics.
type Summary struct {
	TotalActions    int                 `json:"total_actions"`
	InternalActions int                 `json:"internal_actions"`
	ExternalActions int                 `json:"external_actions"`
	ActionList      map[string][]string `json:"action_list"`
}

// Summarize counts and lists the action space by kind.
func (r *Registry) Summarize() Summary {
	return Summary{
		TotalActions:    len(r.order),
		InternalActions: len(r.InternalActions()),
		ExternalActions: len(r.ExternalActions()),
		ActionList: map[string][]string{
			"reasoning": r.List(KindReasoning),
			"retrieval": r.List(KindRetrieval),
			"learning":  r.List(KindLearning),
			"grounding": r.List(KindGrounding),
		},
	}
}

func retrievalParams() map[string]any {
	return map[string]any{"query": map[string]any{}, "limit": 5}
}

func queryOf(params map[string]any) map[string]any {
	if q, ok := params["query"].(map[string]any); ok {
		return q
	}
	return nil
}

func limitOf(params map[string]any) int {
	switch v := params["limit"].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 5
	}
}

func recordParam(params map[string]any, key string) memory.Record {
	if m, ok := params[key].(map[string]any); ok {
		return memory.Record(m)
	}
	return memory.Record{}
}

func stringsOf(q map[string]any, key string) []string {
	switch v := q[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func stringOf(q map[string]any, key string) string {
	s, _ := q[key].(string)
	return s
}

func floatOf(q map[string]any, key string) float64 {
	switch v := q[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}

func episodeQueryFrom(q map[string]any) memory.EpisodeQuery {
	return memory.EpisodeQuery{
		TaskKeywords:  stringsOf(q, "task_keywords"),
		ToolsUsed:     stringsOf(q, "tools_used"),
		MinConfidence: floatOf(q, "min_confidence"),
	}
}

func factQueryFrom(q map[string]any) memory.FactQuery {
	return memory.FactQuery{
		Concept:  stringOf(q, "concept"),
		Entity:   stringOf(q, "entity"),
		Tags:     stringsOf(q, "tags"),
		FactType: stringOf(q, "fact_type"),
		Keywords: stringsOf(q, "keywords"),
	}
}

func procedureQueryFrom(q map[string]any) memory.ProcedureQuery {
	return memory.ProcedureQuery{
		ProcedureType:   stringOf(q, "procedure_type"),
		ContextKeywords: stringsOf(q, "context_keywords"),
		MinSuccessRate:  floatOf(q, "min_success_rate"),
		Tools:           stringsOf(q, "tools"),
	}
}
