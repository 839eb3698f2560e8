package engine

// State is the controller's position in the planning/execution cycle.
type State string

const (
	StateInitial   State = "initial"
	StatePlanning  State = "planning"
	StateExecution State = "execution"
	StateCompleted State = "completed"
	StateError     State = "error"
)

// CycleStep records one planning or execution step of a run. Steps are
// appended in cycle order and never reordered.
type CycleStep struct {
	Cycle          int
	State          State
	Timestamp      string
	ActionSelected string
	ActionType     string
	Reasoning      string
	Results        map[string]any
	Confidence     float64
}

// ToMap renders the step for traces and stored episodes.
func (s CycleStep) ToMap() map[string]any {
	var selected any
	if s.ActionSelected != "" {
		selected = s.ActionSelected
	}
	return map[string]any{
		"cycle":           s.Cycle,
		"state":           string(s.State),
		"timestamp":       s.Timestamp,
		"action_selected": selected,
		"action_type":     s.ActionType,
		"reasoning":       s.Reasoning,
		"results":         s.Results,
		"confidence":      s.Confidence,
	}
}
