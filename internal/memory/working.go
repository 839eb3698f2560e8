package memory

import (
	"reflect"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/helios-eo/skywatch/internal/storage"
)

// WorkingState is the mutable per-run context. Named fields cover the state
// the cycle controller always maintains; IntermediateResults is the open
// extension point, last-write-wins per key.
type WorkingState struct {
	Task                string         `json:"task,omitempty"`
	TaskStartTime       time.Time      `json:"task_start_time,omitzero"`
	AvailableTools      []string       `json:"available_tools,omitempty"`
	IntermediateResults map[string]any `json:"intermediate_results,omitempty"`
	Confidence          float64        `json:"confidence"`
}

// Map renders the state as a plain mapping, for prompts and for archival.
func (s WorkingState) Map() map[string]any {
	out := map[string]any{
		"confidence": s.Confidence,
	}
	if s.Task != "" {
		out["task"] = s.Task
	}
	if !s.TaskStartTime.IsZero() {
		out["task_start_time"] = s.TaskStartTime.Format(time.RFC3339)
	}
	if len(s.AvailableTools) > 0 {
		out["available_tools"] = append([]string(nil), s.AvailableTools...)
	}
	if len(s.IntermediateResults) > 0 {
		results := make(map[string]any, len(s.IntermediateResults))
		for k, v := range s.IntermediateResults {
			results[k] = v
		}
		out["intermediate_results"] = results
	}
	return out
}

func (s WorkingState) empty() bool {
	return s.Task == "" && s.TaskStartTime.IsZero() && len(s.AvailableTools) == 0 &&
		len(s.IntermediateResults) == 0 && s.Confidence == 0
}

// WorkingMemory holds the current run's state plus a history of archived
// states. History is usually session-only; pass a backend to persist it for
// debugging.
type WorkingMemory struct {
	*RecordStore

	stateMu sync.Mutex
	state   WorkingState
}

// NewWorkingMemory creates the working store. A nil backend keeps state
// process-lifetime only, which is the normal configuration.
func NewWorkingMemory(backend storage.Backend, logger *zap.Logger) *WorkingMemory {
	return &WorkingMemory{RecordStore: newRecordStore("working", backend, logger)}
}

// Store archives an arbitrary record into working history.
func (m *WorkingMemory) Store(entry Record) (string, error) {
	return m.insert(entry)
}

// Retrieve returns history records whose fields all equal the query values,
// newest first. Values are compared with DeepEqual so map or slice query
// values are legal.
func (m *WorkingMemory) Retrieve(query map[string]any, limit int) []Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Record
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		entry := m.entries[i]
		match := true
		for k, want := range query {
			if got, ok := entry[k]; !ok || !reflect.DeepEqual(got, want) {
				match = false
				break
			}
		}
		if match {
			out = append(out, entry.Clone())
		}
	}
	return out
}

// SetTask starts a new task, stamping the start time.
func (m *WorkingMemory) SetTask(task string) {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	m.state.Task = task
	m.state.TaskStartTime = time.Now().UTC()
}

// SetAvailableTools records the discovered tool names.
func (m *WorkingMemory) SetAvailableTools(tools []string) {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	m.state.AvailableTools = append([]string(nil), tools...)
}

// AddIntermediateResult sets one intermediate result, replacing any previous
// value under the same key.
func (m *WorkingMemory) AddIntermediateResult(key string, value any) {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	if m.state.IntermediateResults == nil {
		m.state.IntermediateResults = make(map[string]any)
	}
	m.state.IntermediateResults[key] = value
}

// IntermediateResult reads one intermediate result.
func (m *WorkingMemory) IntermediateResult(key string) (any, bool) {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	v, ok := m.state.IntermediateResults[key]
	return v, ok
}

// UpdateConfidence sets the run's current confidence.
func (m *WorkingMemory) UpdateConfidence(confidence float64) {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	m.state.Confidence = confidence
}

// State returns a copy of the current state.
func (m *WorkingMemory) State() WorkingState {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	state := m.state
	if state.IntermediateResults != nil {
		results := make(map[string]any, len(state.IntermediateResults))
		for k, v := range state.IntermediateResults {
			results[k] = v
		}
		state.IntermediateResults = results
	}
	state.AvailableTools = append([]string(nil), state.AvailableTools...)
	return state
}

// Reset archives the current state into history (persisted only when a
// backend is configured) and clears it for the next task. This is the single
// point where the live state and the record history interact.
func (m *WorkingMemory) Reset() {
	m.stateMu.Lock()
	state := m.state
	m.state = WorkingState{}
	m.stateMu.Unlock()

	if state.empty() {
		return
	}
	if _, err := m.Store(Record{
		"type":  "completed_state",
		"state": state.Map(),
	}); err != nil {
		m.logger.Warn("archiving working state failed", zap.Error(err))
	}
}

// ClearAll wipes both the live state and the archived history.
func (m *WorkingMemory) ClearAll() {
	m.stateMu.Lock()
	m.state = WorkingState{}
	m.stateMu.Unlock()
	m.Clear()
}
