package resolution

import (
	"math"
	"testing"
)

func consolidatedRel(id, subj, obj string, pred PredicateType, confidence float64) ConsolidatedRelationship {
	return ConsolidatedRelationship{Relationship: Relationship{ID: id, SubjectID: subj, ObjectID: obj, Predicate: pred, Confidence: confidence}}
}

func TestDiscoverConnectionsSkipsExistingPairs(t *testing.T) {
	entities := []Entity{
		mustEntity("kpi1", EntityKPI, "Customer Churn Rate", 0.9),
		mustEntity("metric1", EntityMetric, "Customer Churn Rate", 0.9),
	}
	rels := []ConsolidatedRelationship{consolidatedRel("r1", "kpi1", "metric1", PredicateDependsOn, 0.8)}

	discoveries := DiscoverConnections(entities, rels, DefaultConfig())
	for _, d := range discoveries {
		if (d.SubjectEntityID == "kpi1" && d.ObjectEntityID == "metric1") ||
			(d.SubjectEntityID == "metric1" && d.ObjectEntityID == "kpi1") {
			t.Fatalf("discovery proposed for an already-connected pair: %+v", d)
		}
	}
}

func TestDiscoverConnectionsSortOrderAndBounds(t *testing.T) {
	entities := []Entity{
		mustEntity("kpi1", EntityKPI, "Gross Margin", 0.9),
		mustEntity("metric1", EntityMetric, "Gross Margin", 0.9),
		mustEntity("metric2", EntityMetric, "Gross Margin Pct", 0.9),
		mustEntity("table1", EntityTable, "finance_fact", 0.9),
	}
	cfg := DefaultConfig()
	cfg.MinDiscoveryConfidence = 0
	discoveries := DiscoverConnections(entities, nil, cfg)

	for i := 1; i < len(discoveries); i++ {
		a, b := discoveries[i-1], discoveries[i]
		if a.Confidence < b.Confidence {
			t.Fatalf("discoveries not sorted by confidence desc at %d: %v < %v", i, a.Confidence, b.Confidence)
		}
		if a.Confidence == b.Confidence && a.SubjectEntityID > b.SubjectEntityID {
			t.Fatalf("discoveries not tie-broken by subject id at %d", i)
		}
	}
	for _, d := range discoveries {
		if d.Confidence < 0 || d.Confidence > 1 {
			t.Fatalf("discovery confidence out of [0,1]: %v", d.Confidence)
		}
		if d.ID == "" {
			t.Fatal("discovery missing an id")
		}
	}
}

func TestDiscoverConnectionsMaxDiscoveriesPerRun(t *testing.T) {
	var entities []Entity
	for i := 0; i < 8; i++ {
		entities = append(entities, mustEntity(
			string(rune('a'+i)), EntityMetric, "Gross Margin Variant", 0.9))
	}
	cfg := DefaultConfig()
	cfg.MinDiscoveryConfidence = 0
	cfg.MaxDiscoveriesPerRun = 3
	discoveries := DiscoverConnections(entities, nil, cfg)
	if len(discoveries) > 3 {
		t.Fatalf("expected at most 3 discoveries, got %d", len(discoveries))
	}
}

func TestDiscoverConnectionsDisablingMethodsBCDoesNotAffectA(t *testing.T) {
	entities := []Entity{
		mustEntity("m1", EntityMetric, "Gross Margin", 0.9),
		mustEntity("m2", EntityMetric, "Gross Margin Ratio", 0.9),
	}
	cfgEnabled := DefaultConfig()
	cfgEnabled.MinDiscoveryConfidence = 0
	withBC := DiscoverConnections(entities, nil, cfgEnabled)

	cfgDisabled := cfgEnabled
	cfgDisabled.EnableTransitiveDiscovery = false
	cfgDisabled.EnableDomainRules = false
	withoutBC := DiscoverConnections(entities, nil, cfgDisabled)

	similarityOnly := func(ds []ConnectionDiscovery) int {
		n := 0
		for _, d := range ds {
			if d.Method == DiscoverySimilarityAnalysis {
				n++
			}
		}
		return n
	}
	if similarityOnly(withBC) != similarityOnly(withoutBC) {
		t.Fatalf("disabling transitive/domain-rule discovery changed method-A output: %d vs %d",
			similarityOnly(withBC), similarityOnly(withoutBC))
	}
}

func TestFormulaDomainRuleDirectionReversed(t *testing.T) {
	entities := []Entity{
		mustEntity("formula1", EntityFormula, "Net Revenue Formula", 0.9),
		mustEntity("kpi1", EntityKPI, "Net Revenue Formula", 0.9),
	}
	ctx := buildDiscoveryContext(entities, nil, DefaultConfig())

	var rule domainRule
	for _, r := range domainRules {
		if r.name == "target_calculated_by_formula" {
			rule = r
		}
	}
	out := applyDomainRule(ctx, rule, []Entity{entities[0]}, []Entity{entities[1]})
	if len(out) != 1 {
		t.Fatalf("expected 1 proposal, got %d", len(out))
	}
	if out[0].SubjectEntityID != "kpi1" || out[0].ObjectEntityID != "formula1" {
		t.Fatalf("expected target --[calculatedBy]--> formula direction, got %s -> %s",
			out[0].SubjectEntityID, out[0].ObjectEntityID)
	}
}

func TestTransitiveInferenceConfidenceFormula(t *testing.T) {
	entities := []Entity{
		mustEntity("a", EntityKPI, "Churn", 0.9),
		mustEntity("b", EntityMetric, "Active Users", 0.9),
		mustEntity("c", EntityTable, "users_fact", 0.9),
	}
	rels := []ConsolidatedRelationship{
		consolidatedRel("r1", "a", "b", PredicateDependsOn, 0.9),
		consolidatedRel("r2", "b", "c", PredicateDependsOn, 0.8),
	}
	cfg := DefaultConfig()
	cfg.MinDiscoveryConfidence = 0
	discoveries := DiscoverConnections(entities, rels, cfg)

	want := math.Sqrt(0.9*0.8) * 0.8
	found := false
	for _, d := range discoveries {
		if d.Method == DiscoveryTransitiveInference && d.SubjectEntityID == "a" && d.ObjectEntityID == "c" {
			found = true
			if math.Abs(d.Confidence-want) > 1e-9 {
				t.Fatalf("transitive confidence = %v, want %v", d.Confidence, want)
			}
		}
	}
	if !found {
		t.Fatal("expected a transitive discovery a -> c")
	}
}

func TestDeduplicateDiscoveriesKeepsHighestConfidence(t *testing.T) {
	discoveries := []ConnectionDiscovery{
		{ID: "1", SubjectEntityID: "a", ObjectEntityID: "b", SuggestedPredicate: PredicateDependsOn, Confidence: 0.5, Method: DiscoverySimilarityAnalysis, SupportingEvidence: []string{"ev1"}},
		{ID: "2", SubjectEntityID: "a", ObjectEntityID: "b", SuggestedPredicate: PredicateDependsOn, Confidence: 0.9, Method: DiscoveryPatternMatching, SupportingEvidence: []string{"ev2"}},
	}
	out := deduplicateDiscoveries(discoveries)
	if len(out) != 1 {
		t.Fatalf("expected discoveries for the same (subject,object,predicate) to dedupe, got %d", len(out))
	}
	if out[0].Confidence != 0.9 {
		t.Fatalf("expected highest-confidence member to survive, got %v", out[0].Confidence)
	}
	if len(out[0].SupportingEvidence) != 2 {
		t.Fatalf("expected evidence to be unioned across duplicates, got %v", out[0].SupportingEvidence)
	}
}
