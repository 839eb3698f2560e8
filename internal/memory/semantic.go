package memory

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/helios-eo/skywatch/internal/storage"
)

// SemanticMemory stores long-term factual knowledge: geographic facts,
// detection results, operational constraints. Facts are organized by
// concept/entity and retrieved by tag and keyword scoring.
type SemanticMemory struct {
	*RecordStore
}

// NewSemanticMemory creates the semantic store and seeds default domain
// knowledge when the store starts empty.
func NewSemanticMemory(backend storage.Backend, logger *zap.Logger) *SemanticMemory {
	m := &SemanticMemory{RecordStore: newRecordStore("semantic", backend, logger)}
	m.seedDefaults()
	return m
}

// Store appends a fact. "concept" and "content" are required; "tags" is
// always present afterwards, defaulting to empty.
func (m *SemanticMemory) Store(entry Record) (string, error) {
	if _, ok := entry["tags"]; !ok {
		entry["tags"] = []string{}
	}
	return m.insert(entry, "concept", "content")
}

// FactQuery selects facts by exact concept/entity/fact-type match, tag
// intersection and content keywords. A zero query matches everything.
type FactQuery struct {
	Concept  string
	Entity   string
	Tags     []string
	FactType string
	Keywords []string
}

func (q FactQuery) open() bool {
	return q.Concept == "" && q.Entity == "" && len(q.Tags) == 0 &&
		q.FactType == "" && len(q.Keywords) == 0
}

// Retrieve scores every fact: +3 concept match, +3 entity match, +1 fact-type
// match, +2 per intersecting tag, +1 per keyword found in content. Facts with
// zero score are returned only for an open query. Results are sorted by score
// descending and truncated to limit.
func (m *SemanticMemory) Retrieve(q FactQuery, limit int) []Record {
	type scored struct {
		fact  Record
		score int
	}
	concept := strings.ToLower(q.Concept)
	entity := strings.ToLower(q.Entity)
	factType := strings.ToLower(q.FactType)
	tags := lowerAll(q.Tags)
	keywords := lowerAll(q.Keywords)

	m.mu.RLock()
	var results []scored
	for _, fact := range m.entries {
		score := 0

		if concept != "" && concept == strings.ToLower(stringField(fact, "concept")) {
			score += 3
		}
		if entity != "" && entity == strings.ToLower(stringField(fact, "entity")) {
			score += 3
		}
		if factType != "" && factType == strings.ToLower(stringField(fact, "fact_type")) {
			score++
		}

		factTags := lowerAll(stringList(fact["tags"]))
		for _, tag := range tags {
			if containsString(factTags, tag) {
				score += 2
			}
		}

		content := strings.ToLower(stringField(fact, "content"))
		for _, kw := range keywords {
			if strings.Contains(content, kw) {
				score++
			}
		}

		if score > 0 || q.open() {
			results = append(results, scored{fact: fact.Clone(), score: score})
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(results, func(i, j int) bool { return results[i].score > results[j].score })
	if len(results) > limit {
		results = results[:limit]
	}
	out := make([]Record, len(results))
	for i, r := range results {
		out[i] = r.fact
	}
	return out
}

// GetByConcept returns facts for one concept.
func (m *SemanticMemory) GetByConcept(concept string, limit int) []Record {
	return m.Retrieve(FactQuery{Concept: concept}, limit)
}

// GetByEntity returns facts about one entity.
func (m *SemanticMemory) GetByEntity(entity string, limit int) []Record {
	return m.Retrieve(FactQuery{Entity: entity}, limit)
}

// GetByTags returns facts matching any of the tags.
func (m *SemanticMemory) GetByTags(tags []string, limit int) []Record {
	return m.Retrieve(FactQuery{Tags: tags}, limit)
}

// StoreRegionInfo records a geocoded region as a fact. The tag convention
// ["region","geography",<name>] is load-bearing: planning-phase keyword
// queries rely on it.
func (m *SemanticMemory) StoreRegionInfo(regionName string, bbox, center []float64, metadata map[string]any) (string, error) {
	tags := []string{"region", "geography", strings.ToLower(regionName)}
	if metadata != nil {
		tags = append(tags, stringList(metadata["tags"])...)
	}
	if metadata == nil {
		metadata = map[string]any{}
	}
	return m.Store(Record{
		"concept":   "region",
		"entity":    regionName,
		"fact_type": "bounding_box",
		"content":   fmt.Sprintf("%s bounding box: %v, center: %v", regionName, bbox, center),
		"data": map[string]any{
			"bbox":     bbox,
			"center":   center,
			"metadata": metadata,
		},
		"tags":   tags,
		"source": "region_mapper_tool",
	})
}

// StoreDetectionResult records an object-detection outcome as a fact, tagged
// ["detection",<object_type>,<region>] per the retrieval convention.
func (m *SemanticMemory) StoreDetectionResult(region, objectType string, count int, confidence float64, metadata map[string]any) (string, error) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	return m.Store(Record{
		"concept":   "detection",
		"entity":    fmt.Sprintf("%s_in_%s", objectType, region),
		"fact_type": "count",
		"content":   fmt.Sprintf("Detected %d %s in %s with confidence %g", count, objectType, region, confidence),
		"data": map[string]any{
			"region":      region,
			"object_type": objectType,
			"count":       count,
			"confidence":  confidence,
			"metadata":    metadata,
		},
		"tags":       []string{"detection", objectType, strings.ToLower(region)},
		"source":     "object_detector_tool",
		"confidence": confidence,
	})
}

// AllConcepts returns the sorted set of distinct concepts.
func (m *SemanticMemory) AllConcepts() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]bool)
	var concepts []string
	for _, fact := range m.entries {
		concept := stringField(fact, "concept")
		if concept != "" && !seen[concept] {
			seen[concept] = true
			concepts = append(concepts, concept)
		}
	}
	sort.Strings(concepts)
	return concepts
}

// SemanticStats summarizes the stored facts.
type SemanticStats struct {
	TotalFacts     int            `json:"total_facts"`
	Concepts       []string       `json:"concepts"`
	MostCommonTags []TagCountStat `json:"most_common_tags"`
}

// TagCountStat counts one tag's occurrences.
type TagCountStat struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// Statistics aggregates fact count, distinct concepts and the ten most
// common tags.
func (m *SemanticMemory) Statistics() SemanticStats {
	concepts := m.AllConcepts()

	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := SemanticStats{
		TotalFacts:     len(m.entries),
		Concepts:       concepts,
		MostCommonTags: []TagCountStat{},
	}
	if len(m.entries) == 0 {
		stats.Concepts = []string{}
		return stats
	}

	tagCounts := make(map[string]int)
	for _, fact := range m.entries {
		for _, tag := range stringList(fact["tags"]) {
			tagCounts[tag]++
		}
	}
	for tag, count := range tagCounts {
		stats.MostCommonTags = append(stats.MostCommonTags, TagCountStat{Tag: tag, Count: count})
	}
	sort.Slice(stats.MostCommonTags, func(i, j int) bool {
		if stats.MostCommonTags[i].Count != stats.MostCommonTags[j].Count {
			return stats.MostCommonTags[i].Count > stats.MostCommonTags[j].Count
		}
		return stats.MostCommonTags[i].Tag < stats.MostCommonTags[j].Tag
	})
	if len(stats.MostCommonTags) > 10 {
		stats.MostCommonTags = stats.MostCommonTags[:10]
	}
	return stats
}

// seedDefaults loads a baseline of domain facts so cold-start planning has
// geographic context to retrieve against.
func (m *SemanticMemory) seedDefaults() {
	if m.Size() > 0 {
		return
	}
	defaults := []Record{
		{
			"concept":   "region",
			"entity":    "Bayern",
			"fact_type": "location",
			"content":   "Bayern (Bavaria) is the largest state in Germany, located in the southeast",
			"tags":      []string{"germany", "europe", "bayern", "bavaria"},
			"source":    "default_initialization",
		},
		{
			"concept":   "region",
			"entity":    "Munich",
			"fact_type": "location",
			"content":   "Munich (München) is the capital of Bayern, coordinates approximately [48.1351, 11.5820]",
			"tags":      []string{"munich", "münchen", "bayern", "city", "capital"},
			"source":    "default_initialization",
		},
		{
			"concept":   "region",
			"entity":    "Alps",
			"fact_type": "geography",
			"content":   "The Alps mountain range forms the southern border of Bayern",
			"tags":      []string{"alps", "mountains", "bayern", "geography"},
			"source":    "default_initialization",
		},
		{
			"concept":   "region",
			"entity":    "Isar",
			"fact_type": "geography",
			"content":   "The Isar river flows through Munich from south to north",
			"tags":      []string{"isar", "river", "munich", "water"},
			"source":    "default_initialization",
		},
		{
			"concept":   "constraint",
			"entity":    "cloud_cover",
			"fact_type": "weather",
			"content":   "Bayern typically has moderate cloud cover; Alps region often has higher cloud coverage",
			"tags":      []string{"weather", "clouds", "alps", "bayern"},
			"source":    "default_initialization",
		},
	}
	for _, fact := range defaults {
		if _, err := m.Store(fact); err != nil {
			m.logger.Warn("seeding default fact failed", zap.Error(err))
		}
	}
}
