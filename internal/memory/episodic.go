package memory

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/helios-eo/skywatch/internal/storage"
)

// EpisodicMemory stores complete past runs: task, actions taken, results,
// outcome and the full reasoning trace.
type EpisodicMemory struct {
	*RecordStore
}

// NewEpisodicMemory creates the episodic store. Pass a nil backend for a
// process-lifetime store.
func NewEpisodicMemory(backend storage.Backend, logger *zap.Logger) *EpisodicMemory {
	return &EpisodicMemory{RecordStore: newRecordStore("episodic", backend, logger)}
}

// Store appends an episode. The "task" field is required.
func (m *EpisodicMemory) Store(entry Record) (string, error) {
	id, err := m.insert(entry, "task")
	if err != nil {
		return "", err
	}
	m.logger.Info("stored episode",
		zap.String("id", id),
		zap.String("task", truncate(stringField(entry, "task"), 80)))
	return id, nil
}

// EpisodeQuery selects past episodes by task keywords, tools used and a
// confidence floor. A zero query matches everything.
type EpisodeQuery struct {
	TaskKeywords  []string
	ToolsUsed     []string
	MinConfidence float64
}

func (q EpisodeQuery) open() bool {
	return len(q.TaskKeywords) == 0 && len(q.ToolsUsed) == 0
}

// Retrieve scans episodes newest-first, scoring +1 per keyword found in the
// task text and +2 per matching tool name in the action list. The scan stops
// once limit candidates have accumulated, then sorts those candidates by
// score. This deliberately favors recent episodes over higher-scoring older
// ones that were never examined.
func (m *EpisodicMemory) Retrieve(q EpisodeQuery, limit int) []Record {
	type scored struct {
		episode Record
		score   int
	}

	m.mu.RLock()
	var candidates []scored
	for i := len(m.entries) - 1; i >= 0; i-- {
		episode := m.entries[i]

		if q.MinConfidence > 0 && floatField(episode, "confidence", 0) < q.MinConfidence {
			continue
		}

		score := 0
		task := strings.ToLower(stringField(episode, "task"))
		for _, kw := range q.TaskKeywords {
			if strings.Contains(task, strings.ToLower(kw)) {
				score++
			}
		}

		names := episodeToolNames(episode)
		for _, tool := range q.ToolsUsed {
			if containsString(names, tool) {
				score += 2
			}
		}

		if score > 0 || q.open() {
			candidates = append(candidates, scored{episode: episode.Clone(), score: score})
			if len(candidates) >= limit {
				break
			}
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	out := make([]Record, len(candidates))
	for i, c := range candidates {
		out[i] = c.episode
	}
	return out
}

// RecentEpisodes returns the newest episodes, most recent first.
func (m *EpisodicMemory) RecentEpisodes(limit int) []Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Record
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.entries[i].Clone())
	}
	return out
}

// SuccessfulEpisodes returns recent episodes at or above minConfidence whose
// outcome is not "failed".
func (m *EpisodicMemory) SuccessfulEpisodes(minConfidence float64, limit int) []Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Record
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		episode := m.entries[i]
		if floatField(episode, "confidence", 0) >= minConfidence &&
			stringField(episode, "outcome") != "failed" {
			out = append(out, episode.Clone())
		}
	}
	return out
}

// EpisodesByTools returns recent episodes that used any of the given tools.
func (m *EpisodicMemory) EpisodesByTools(tools []string, limit int) []Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Record
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		names := episodeToolNames(m.entries[i])
		for _, tool := range tools {
			if containsString(names, tool) {
				out = append(out, m.entries[i].Clone())
				break
			}
		}
	}
	return out
}

// EpisodicStats summarizes the stored episodes.
type EpisodicStats struct {
	TotalEpisodes int             `json:"total_episodes"`
	AvgConfidence float64         `json:"avg_confidence"`
	MostUsedTools []ToolUsageStat `json:"most_used_tools"`
}

// ToolUsageStat counts how often one tool appears across episodes.
type ToolUsageStat struct {
	Tool  string `json:"tool"`
	Count int    `json:"count"`
}

// Statistics aggregates episode count, average confidence and the five most
// used tools.
func (m *EpisodicMemory) Statistics() EpisodicStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := EpisodicStats{TotalEpisodes: len(m.entries), MostUsedTools: []ToolUsageStat{}}
	if len(m.entries) == 0 {
		return stats
	}

	var confidenceSum float64
	toolCounts := make(map[string]int)
	for _, episode := range m.entries {
		confidenceSum += floatField(episode, "confidence", 0)
		for _, name := range episodeToolNames(episode) {
			if name != "" {
				toolCounts[name]++
			}
		}
	}
	stats.AvgConfidence = confidenceSum / float64(len(m.entries))

	for tool, count := range toolCounts {
		stats.MostUsedTools = append(stats.MostUsedTools, ToolUsageStat{Tool: tool, Count: count})
	}
	sort.Slice(stats.MostUsedTools, func(i, j int) bool {
		if stats.MostUsedTools[i].Count != stats.MostUsedTools[j].Count {
			return stats.MostUsedTools[i].Count > stats.MostUsedTools[j].Count
		}
		return stats.MostUsedTools[i].Tool < stats.MostUsedTools[j].Tool
	})
	if len(stats.MostUsedTools) > 5 {
		stats.MostUsedTools = stats.MostUsedTools[:5]
	}
	return stats
}

// episodeToolNames extracts tool/action names from an episode's action list.
// Each action entry may carry the name under "tool" or "action".
func episodeToolNames(episode Record) []string {
	actions, ok := episode["actions"].([]any)
	if !ok {
		// In-process episodes carry typed action lists.
		if typed, ok := episode["actions"].([]map[string]any); ok {
			var names []string
			for _, action := range typed {
				names = append(names, actionName(action))
			}
			return names
		}
		return nil
	}
	var names []string
	for _, item := range actions {
		if action, ok := item.(map[string]any); ok {
			names = append(names, actionName(action))
		}
	}
	return names
}

func actionName(action map[string]any) string {
	if tool, ok := action["tool"].(string); ok && tool != "" {
		return tool
	}
	name, _ := action["action"].(string)
	return name
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
