// Package resolution implements the data-resolution core: entity clustering,
// relationship consolidation, and connection discovery over an in-memory
// knowledge graph of data-engineering concepts.
package resolution

import "time"

// EntityType is a closed set of concept kinds extracted from text.
type EntityType string

const (
	EntityKPI        EntityType = "KPI"
	EntityTable      EntityType = "Table"
	EntityColumn     EntityType = "Column"
	EntityMetric     EntityType = "Metric"
	EntityDataSource EntityType = "DataSource"
	EntityDomain     EntityType = "Domain"
	EntityFormula    EntityType = "Formula"
	EntityDefinition EntityType = "Definition"
)

// IsValid reports whether t is one of the closed set of entity types.
func (t EntityType) IsValid() bool {
	switch t {
	case EntityKPI, EntityTable, EntityColumn, EntityMetric, EntityDataSource, EntityDomain, EntityFormula, EntityDefinition:
		return true
	default:
		return false
	}
}

// PredicateType is a closed set of relationship predicates.
type PredicateType string

const (
	PredicateHasDefinition PredicateType = "hasDefinition"
	PredicateCalculatedBy  PredicateType = "calculatedBy"
	PredicateBelongsTo     PredicateType = "belongsTo"
	PredicateContains      PredicateType = "contains"
	PredicateHasType       PredicateType = "hasType"
	PredicateDependsOn     PredicateType = "dependsOn"
	PredicateDerivedFrom   PredicateType = "derivedFrom"
	PredicateMeasures      PredicateType = "measures"
	PredicateLocatedIn     PredicateType = "locatedIn"
)

// IsValid reports whether p is one of the closed set of predicates.
func (p PredicateType) IsValid() bool {
	switch p {
	case PredicateHasDefinition, PredicateCalculatedBy, PredicateBelongsTo, PredicateContains,
		PredicateHasType, PredicateDependsOn, PredicateDerivedFrom, PredicateMeasures, PredicateLocatedIn:
		return true
	default:
		return false
	}
}

// Entity is an identified concept as extracted from source text.
type Entity struct {
	ID            string                 `json:"id"`
	Type          EntityType             `json:"type"`
	Name          string                 `json:"name"`
	Description   string                 `json:"description,omitempty"`
	Confidence    float64                `json:"confidence"`
	Attributes    map[string]interface{} `json:"attributes,omitempty"`
	SourceChunkID string                 `json:"source_chunk_id,omitempty"`
}

// Relationship is a directed, typed edge between two entities.
type Relationship struct {
	ID            string        `json:"id"`
	SubjectID     string        `json:"subject_id"`
	ObjectID      string        `json:"object_id"`
	Predicate     PredicateType `json:"predicate"`
	Confidence    float64       `json:"confidence"`
	Context       string        `json:"context,omitempty"`
	SourceChunkID string        `json:"source_chunk_id,omitempty"`
}

// CanonicalEntity is the surviving representative of a resolved cluster.
type CanonicalEntity struct {
	Entity
}

// ConsolidatedRelationship is a relationship rewritten onto canonical
// endpoints with fused confidence and merged context.
type ConsolidatedRelationship struct {
	Relationship
}

// ResolutionActionType enumerates the action recorded by a decision.
type ResolutionActionType string

const (
	ActionMerge                     ResolutionActionType = "merge"
	ActionKeepCanonical              ResolutionActionType = "keep_canonical"
	ActionMarkDuplicate              ResolutionActionType = "mark_duplicate"
	ActionCreateNewRelationship      ResolutionActionType = "create_new_relationship"
	ActionConsolidateRelationships   ResolutionActionType = "consolidate_relationships"
)

// EntityResolutionMethod enumerates how an entity merge decision was made.
type EntityResolutionMethod string

const (
	MethodFuzzyMatchMedoid EntityResolutionMethod = "fuzzy_match_medoid"
	MethodAcronymMatch     EntityResolutionMethod = "acronym_match"
)

// EntityResolutionDecision records a non-trivial entity merge.
type EntityResolutionDecision struct {
	CanonicalID      string                  `json:"canonical_id"`
	DuplicateIDs     []string                `json:"duplicate_ids"`
	ClusterSimilarity float64                `json:"cluster_similarity"`
	Method           EntityResolutionMethod  `json:"method"`
	Confidence       float64                 `json:"confidence"`
	Metadata         map[string]interface{}  `json:"metadata,omitempty"`
}

// RelationshipResolutionDecision records a relationship dedup/consolidation.
type RelationshipResolutionDecision struct {
	Action                ResolutionActionType   `json:"action"`
	CanonicalRelID        string                 `json:"canonical_rel_id"`
	MergedRelIDs          []string               `json:"merged_rel_ids"`
	ConsolidatedConfidence float64                `json:"consolidated_confidence"`
	Method                string                 `json:"method"`
	Metadata              map[string]interface{} `json:"metadata,omitempty"`
}

// DiscoveryMethod enumerates the evidence channel that proposed a connection.
type DiscoveryMethod string

const (
	DiscoverySimilarityAnalysis  DiscoveryMethod = "similarity_analysis"
	DiscoveryTransitiveInference DiscoveryMethod = "transitive_inference"
	DiscoveryDomainRuleKPIMetric DiscoveryMethod = "domain_rule_kpi_metric"
	DiscoveryDomainRuleMetricTable DiscoveryMethod = "domain_rule_metric_table"
	DiscoveryDomainRuleMetricColumn DiscoveryMethod = "domain_rule_metric_column"
	DiscoveryDomainRuleFormula    DiscoveryMethod = "domain_rule_formula"
	DiscoveryPatternMatching      DiscoveryMethod = "pattern_matching"
)

// ConnectionDiscovery is a proposed, not-yet-accepted new relationship.
type ConnectionDiscovery struct {
	ID                 string                 `json:"id"`
	SubjectEntityID    string                 `json:"subject_entity_id"`
	ObjectEntityID     string                 `json:"object_entity_id"`
	SuggestedPredicate PredicateType          `json:"suggested_predicate"`
	Confidence         float64                `json:"confidence"`
	Method             DiscoveryMethod        `json:"method"`
	SupportingEvidence []string               `json:"supporting_evidence,omitempty"`
	SimilarityFeatures map[string]float64     `json:"similarity_features,omitempty"`
	Metadata           map[string]interface{} `json:"metadata,omitempty"`
}

// ResolutionStats summarizes a single resolution run.
type ResolutionStats struct {
	EntitiesProcessed         int     `json:"entities_processed"`
	EntitiesMerged            int     `json:"entities_merged"`
	DuplicateEntitiesRemoved  int     `json:"duplicate_entities_removed"`
	RelationshipsProcessed    int     `json:"relationships_processed"`
	RelationshipsConsolidated int     `json:"relationships_consolidated"`
	NewConnectionsDiscovered  int     `json:"new_connections_discovered"`
	ResolutionDurationSeconds float64 `json:"resolution_duration_seconds"`
}

// EntityMergeRate is the fraction of processed entities that were merged away.
func (s ResolutionStats) EntityMergeRate() float64 {
	if s.EntitiesProcessed == 0 {
		return 0
	}
	return float64(s.EntitiesMerged) / float64(s.EntitiesProcessed)
}

// RelationshipConsolidationRate is the number of relationship decisions
// (exact-duplicate groups plus consolidated groups) divided by the number of
// processed relationships.
func (s ResolutionStats) RelationshipConsolidationRate() float64 {
	if s.RelationshipsProcessed == 0 {
		return 0
	}
	return float64(s.RelationshipsConsolidated) / float64(s.RelationshipsProcessed)
}

// ResolutionResult is the complete output of one resolve() run.
type ResolutionResult struct {
	RunID                     string                            `json:"run_id"`
	Timestamp                 time.Time                         `json:"timestamp"`
	CanonicalEntities         []CanonicalEntity                 `json:"canonical_entities"`
	ConsolidatedRelationships []ConsolidatedRelationship         `json:"consolidated_relationships"`
	Discoveries               []ConnectionDiscovery             `json:"discoveries"`
	EntityDecisions           []EntityResolutionDecision        `json:"entity_decisions"`
	RelationshipDecisions     []RelationshipResolutionDecision  `json:"relationship_decisions"`
	Stats                     ResolutionStats                   `json:"stats"`
	ConfigUsed                Config                             `json:"config_used"`
	SourceRunIDs              []string                           `json:"source_run_ids,omitempty"`
}

// GetMergedEntityMapping returns the id-remap table implied by the entity
// decisions: retired id -> canonical id.
func (r *ResolutionResult) GetMergedEntityMapping() map[string]string {
	mapping := make(map[string]string)
	for _, d := range r.EntityDecisions {
		for _, dup := range d.DuplicateIDs {
			mapping[dup] = d.CanonicalID
		}
	}
	return mapping
}

// GetDiscoveryByMethod filters discoveries to a single evidence channel.
func (r *ResolutionResult) GetDiscoveryByMethod(method DiscoveryMethod) []ConnectionDiscovery {
	var out []ConnectionDiscovery
	for _, d := range r.Discoveries {
		if d.Method == method {
			out = append(out, d)
		}
	}
	return out
}

// GetHighConfidenceDiscoveries filters discoveries at or above a threshold.
func (r *ResolutionResult) GetHighConfidenceDiscoveries(minConfidence float64) []ConnectionDiscovery {
	var out []ConnectionDiscovery
	for _, d := range r.Discoveries {
		if d.Confidence >= minConfidence {
			out = append(out, d)
		}
	}
	return out
}
