package resolution

import "testing"

func identityRemap(ids ...string) map[string]string {
	m := make(map[string]string, len(ids))
	for _, id := range ids {
		m[id] = id
	}
	return m
}

func TestResolveRelationshipsRewritesEndpoints(t *testing.T) {
	remap := map[string]string{"old-subj": "canon-subj", "obj": "obj"}
	rels := []Relationship{
		{ID: "r1", SubjectID: "old-subj", ObjectID: "obj", Predicate: PredicateDependsOn, Confidence: 0.8},
	}
	out, _, err := ResolveRelationships(rels, remap, DefaultConfig())
	if err != nil {
		t.Fatalf("ResolveRelationships() error = %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 relationship, got %d", len(out))
	}
	if out[0].SubjectID != "canon-subj" {
		t.Fatalf("SubjectID = %q, want canon-subj", out[0].SubjectID)
	}
}

func TestResolveRelationshipsRemovesExactDuplicates(t *testing.T) {
	remap := identityRemap("a", "b")
	rels := []Relationship{
		{ID: "r1", SubjectID: "a", ObjectID: "b", Predicate: PredicateDependsOn, Confidence: 0.6},
		{ID: "r2", SubjectID: "a", ObjectID: "b", Predicate: PredicateDependsOn, Confidence: 0.9},
	}
	out, decisions, err := ResolveRelationships(rels, remap, DefaultConfig())
	if err != nil {
		t.Fatalf("ResolveRelationships() error = %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("exact duplicates must collapse to 1, got %d", len(out))
	}
	if out[0].ID != "r2" || out[0].Confidence != 0.9 {
		t.Fatalf("expected higher-confidence member r2 to survive, got %+v", out[0])
	}
	stats := GetConsolidationStats(decisions)
	if stats[string(ActionKeepCanonical)] != 1 {
		t.Fatalf("expected 1 keep_canonical decision, got %d", stats[string(ActionKeepCanonical)])
	}
}

func TestResolveRelationshipsConsolidatesSamePairDifferentPredicateSurvives(t *testing.T) {
	remap := identityRemap("a", "b")
	rels := []Relationship{
		{ID: "r1", SubjectID: "a", ObjectID: "b", Predicate: PredicateDependsOn, Confidence: 0.6},
		{ID: "r2", SubjectID: "a", ObjectID: "b", Predicate: PredicateDerivedFrom, Confidence: 0.7},
	}
	out, _, err := ResolveRelationships(rels, remap, DefaultConfig())
	if err != nil {
		t.Fatalf("ResolveRelationships() error = %v", err)
	}
	// different predicates over the same pair are independent edges, not
	// fused together.
	if len(out) != 2 {
		t.Fatalf("expected 2 relationships (different predicates), got %d", len(out))
	}
}

func TestConsolidateConfidenceScoresMax(t *testing.T) {
	members := []Relationship{{Confidence: 0.3}, {Confidence: 0.9}, {Confidence: 0.5}}
	got, err := consolidateConfidenceScores(members, ConsolidationMax)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 0.9 {
		t.Fatalf("max consolidation = %v, want 0.9", got)
	}
}

func TestConsolidateConfidenceScoresAverage(t *testing.T) {
	members := []Relationship{{Confidence: 0.2}, {Confidence: 0.8}}
	got, err := consolidateConfidenceScores(members, ConsolidationAverage)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 0.5 {
		t.Fatalf("average consolidation = %v, want 0.5", got)
	}
}

func TestConsolidateConfidenceScoresWeighted(t *testing.T) {
	members := []Relationship{
		{Confidence: 1.0, Context: "a long detailed context string"},
		{Confidence: 0.0, Context: "x"},
	}
	got, err := consolidateConfidenceScores(members, ConsolidationWeighted)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got <= 0.5 {
		t.Fatalf("weighted consolidation should favor the longer-context member, got %v", got)
	}
}

func TestConsolidateConfidenceScoresUnknownMethod(t *testing.T) {
	if _, err := consolidateConfidenceScores([]Relationship{{Confidence: 0.5}}, ConsolidationMethod("bogus")); err == nil {
		t.Fatal("expected a config error for an unknown consolidation method")
	}
}

func TestMergeContextsDedupesCaseInsensitive(t *testing.T) {
	members := []Relationship{
		{Context: "Derived from sales data"},
		{Context: "derived from sales data"},
		{Context: "Cross-checked against finance"},
	}
	got := mergeContexts(members)
	want := "Derived from sales data | Cross-checked against finance"
	if got != want {
		t.Fatalf("mergeContexts() = %q, want %q", got, want)
	}
}

func TestResolveRelationshipsRejectsUnknownSubject(t *testing.T) {
	remap := identityRemap("b")
	rels := []Relationship{{ID: "r1", SubjectID: "missing", ObjectID: "b", Predicate: PredicateDependsOn, Confidence: 0.5}}
	if _, _, err := ResolveRelationships(rels, remap, DefaultConfig()); err == nil {
		t.Fatal("expected a validation error for an unresolvable subject id")
	}
}

func TestResolveRelationshipsRejectsUnknownPredicate(t *testing.T) {
	remap := identityRemap("a", "b")
	rels := []Relationship{{ID: "r1", SubjectID: "a", ObjectID: "b", Predicate: PredicateType("bogus"), Confidence: 0.5}}
	if _, _, err := ResolveRelationships(rels, remap, DefaultConfig()); err == nil {
		t.Fatal("expected a validation error for an unknown predicate")
	}
}

func TestSortedPredicateKeysDeterministic(t *testing.T) {
	groups := map[PredicateType][]Relationship{
		PredicateDependsOn:   {{}},
		PredicateBelongsTo:   {{}},
		PredicateDerivedFrom: {{}},
	}
	keys := sortedPredicateKeys(groups)
	for i := 1; i < len(keys); i++ {
		if keys[i-1] >= keys[i] {
			t.Fatalf("sortedPredicateKeys() not sorted: %v", keys)
		}
	}
}
