package resolution

import "testing"

func mustEntity(id string, typ EntityType, name string, confidence float64) Entity {
	return Entity{ID: id, Type: typ, Name: name, Confidence: confidence}
}

func TestResolveEntitiesMergesNearDuplicates(t *testing.T) {
	cfg := DefaultConfig()
	entities := []Entity{
		mustEntity("e1", EntityMetric, "Customer Acquisition Cost", 0.9),
		mustEntity("e2", EntityMetric, "Customer Acquisition Cost ", 0.8),
		mustEntity("e3", EntityMetric, "Monthly Recurring Revenue", 0.95),
	}

	canonical, decisions, remap, err := ResolveEntities(entities, cfg)
	if err != nil {
		t.Fatalf("ResolveEntities() error = %v", err)
	}
	if len(canonical) != 2 {
		t.Fatalf("expected 2 canonical entities, got %d", len(canonical))
	}
	if len(decisions) != 1 {
		t.Fatalf("expected 1 merge decision, got %d", len(decisions))
	}

	// every input id must resolve through the remap to a surviving
	// canonical entity (§8 totality + closure invariants).
	canonicalIDs := make(map[string]bool, len(canonical))
	for _, c := range canonical {
		canonicalIDs[c.ID] = true
	}
	for _, e := range entities {
		target, ok := remap[e.ID]
		if !ok {
			t.Fatalf("remap missing entry for input id %q", e.ID)
		}
		if !canonicalIDs[target] {
			t.Fatalf("remap[%q] = %q is not a canonical entity", e.ID, target)
		}
	}
}

func TestResolveEntitiesRemapIdempotentOnCanonicalIDs(t *testing.T) {
	cfg := DefaultConfig()
	entities := []Entity{
		mustEntity("e1", EntityTable, "orders_fact", 0.9),
		mustEntity("e2", EntityTable, "orders_fact_table", 0.7),
	}
	_, _, remap, err := ResolveEntities(entities, cfg)
	if err != nil {
		t.Fatalf("ResolveEntities() error = %v", err)
	}
	for id, target := range remap {
		if target2, ok := remap[target]; ok && target2 != target {
			t.Fatalf("remap not idempotent: remap[%q]=%q but remap[%q]=%q", id, target, target, target2)
		}
	}
}

func TestResolveEntitiesDistinctTypesNeverMerge(t *testing.T) {
	cfg := DefaultConfig()
	entities := []Entity{
		mustEntity("e1", EntityMetric, "Revenue", 0.9),
		mustEntity("e2", EntityTable, "Revenue", 0.9),
	}
	canonical, decisions, _, err := ResolveEntities(entities, cfg)
	if err != nil {
		t.Fatalf("ResolveEntities() error = %v", err)
	}
	if len(canonical) != 2 {
		t.Fatalf("entities of different types must never merge, got %d canonical", len(canonical))
	}
	if len(decisions) != 0 {
		t.Fatalf("expected no merge decisions across types, got %d", len(decisions))
	}
}

func TestResolveEntitiesAcronymMerge(t *testing.T) {
	cfg := DefaultConfig()
	entities := []Entity{
		mustEntity("e1", EntityMetric, "Customer Acquisition Cost", 0.9),
		mustEntity("e2", EntityMetric, "CAC", 0.85),
	}
	canonical, decisions, remap, err := ResolveEntities(entities, cfg)
	if err != nil {
		t.Fatalf("ResolveEntities() error = %v", err)
	}
	if len(canonical) != 1 {
		t.Fatalf("expected acronym merge down to 1 canonical entity, got %d", len(canonical))
	}
	foundAcronym := false
	for _, d := range decisions {
		if d.Method == MethodAcronymMatch {
			foundAcronym = true
		}
	}
	if !foundAcronym {
		t.Fatal("expected a decision recorded with MethodAcronymMatch")
	}
	if remap["e2"] != canonical[0].ID {
		t.Fatalf("remap[e2] = %q, want %q", remap["e2"], canonical[0].ID)
	}
}

func TestResolveEntitiesRejectsUnknownType(t *testing.T) {
	cfg := DefaultConfig()
	entities := []Entity{mustEntity("e1", EntityType("NotAType"), "x", 0.5)}
	if _, _, _, err := ResolveEntities(entities, cfg); err == nil {
		t.Fatal("expected a validation error for unknown entity type")
	}
}

func TestResolveEntitiesRejectsDuplicateIDs(t *testing.T) {
	cfg := DefaultConfig()
	entities := []Entity{
		mustEntity("dup", EntityMetric, "a", 0.5),
		mustEntity("dup", EntityMetric, "b", 0.5),
	}
	if _, _, _, err := ResolveEntities(entities, cfg); err == nil {
		t.Fatal("expected a validation error for duplicate entity ids")
	}
}

func TestResolveEntitiesEmptyInput(t *testing.T) {
	cfg := DefaultConfig()
	canonical, decisions, remap, err := ResolveEntities(nil, cfg)
	if err != nil {
		t.Fatalf("ResolveEntities(nil) error = %v", err)
	}
	if len(canonical) != 0 || len(decisions) != 0 || len(remap) != 0 {
		t.Fatalf("expected all-empty output for empty input, got %d/%d/%d", len(canonical), len(decisions), len(remap))
	}
}

func TestSelectMedoidEntityTieBreaksByConfidenceThenID(t *testing.T) {
	cluster := []Entity{
		mustEntity("b", EntityMetric, "Revenue Growth", 0.5),
		mustEntity("a", EntityMetric, "Revenue Growth", 0.5),
	}
	medoid := selectMedoidEntity(cluster)
	if medoid.ID != "a" {
		t.Fatalf("expected lexicographically smallest id to win an exact tie, got %q", medoid.ID)
	}
}

func TestCalculateClusterSimilaritySingleton(t *testing.T) {
	if got := calculateClusterSimilarity([]Entity{mustEntity("a", EntityMetric, "x", 1)}); got != 1.0 {
		t.Fatalf("singleton cluster similarity = %v, want 1.0", got)
	}
}
