// Package action defines the agent's action space: a closed set of internal
// actions operating on the long-term memories plus one external grounding
// action per registered tool.
package action

import (
	"context"
	"errors"
)

// Kind partitions the action space. The set is closed: dispatch switches on
// it rather than inspecting action values at runtime.
type Kind string

const (
	KindReasoning Kind = "internal_reasoning"
	KindRetrieval Kind = "internal_retrieval"
	KindLearning  Kind = "internal_learning"
	KindGrounding Kind = "external_grounding"
)

// Errors raised by Registry.Execute.
var (
	ErrUnknownAction = errors.New("unknown action")
	ErrNotExecutable = errors.New("action has no invocation target")
)

// Invoker executes one action with its parameters.
type Invoker func(ctx context.Context, params map[string]any) (any, error)

// Action is one entry in the action space. Internal actions are statically
// registered; external actions mirror the tool catalog 1:1 and are immutable
// for the registry's lifetime.
type Action struct {
	Name        string         `json:"name"`
	Kind        Kind           `json:"kind"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`

	invoke Invoker
}

// IsInternal reports whether the action operates on memory or reasoning.
func (a *Action) IsInternal() bool {
	switch a.Kind {
	case KindReasoning, KindRetrieval, KindLearning:
		return true
	default:
		return false
	}
}

// IsExternal reports whether the action grounds via a tool.
func (a *Action) IsExternal() bool { return a.Kind == KindGrounding }

// Executable reports whether the action has an invocation target. The
// reasoning action is driven by the cycle controller itself and has none.
func (a *Action) Executable() bool { return a.invoke != nil }
