package resolution

import (
	"sort"
	"strings"
)

// ResolveRelationships implements SPEC_FULL.md §4.2: rewrite relationship
// endpoints through the entity id-remap, remove exact duplicates, and fuse
// same-unordered-pair/same-predicate edges per the configured consolidation
// policy.
func ResolveRelationships(relationships []Relationship, remap map[string]string, cfg Config) ([]ConsolidatedRelationship, []RelationshipResolutionDecision, error) {
	for _, r := range relationships {
		if !r.Predicate.IsValid() {
			return nil, nil, NewValidationError("unknown predicate: " + string(r.Predicate))
		}
		if r.Confidence < 0 || r.Confidence > 1 {
			return nil, nil, NewValidationError("relationship confidence out of range: " + r.ID)
		}
		if _, ok := remap[r.SubjectID]; !ok {
			return nil, nil, NewValidationError("relationship references unknown subject id: " + r.SubjectID)
		}
		if _, ok := remap[r.ObjectID]; !ok {
			return nil, nil, NewValidationError("relationship references unknown object id: " + r.ObjectID)
		}
	}

	rewritten := make([]Relationship, len(relationships))
	for i, r := range relationships {
		rw := r
		rw.SubjectID = remap[r.SubjectID]
		rw.ObjectID = remap[r.ObjectID]
		rewritten[i] = rw
	}

	deduped, dupDecisions := removeExactDuplicates(rewritten)
	consolidated, consDecisions, err := consolidateSimilarRelationships(deduped, cfg)
	if err != nil {
		return nil, nil, err
	}

	decisions := append(dupDecisions, consDecisions...)

	out := make([]ConsolidatedRelationship, len(consolidated))
	for i, r := range consolidated {
		out[i] = ConsolidatedRelationship{Relationship: r}
	}
	return out, decisions, nil
}

type exactKey struct {
	subject   string
	predicate PredicateType
	object    string
}

// removeExactDuplicates groups by (subject, predicate, object) and elects a
// best member per §4.2 step 2.
func removeExactDuplicates(relationships []Relationship) ([]Relationship, []RelationshipResolutionDecision) {
	groups := make(map[exactKey][]Relationship)
	var order []exactKey
	for _, r := range relationships {
		k := exactKey{r.SubjectID, r.Predicate, r.ObjectID}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], r)
	}

	var out []Relationship
	var decisions []RelationshipResolutionDecision

	for _, k := range order {
		members := groups[k]
		if len(members) == 1 {
			out = append(out, members[0])
			continue
		}
		best := selectBestRelationship(members)
		out = append(out, best)

		var merged []string
		for _, m := range members {
			if m.ID != best.ID {
				merged = append(merged, m.ID)
			}
		}
		decisions = append(decisions, RelationshipResolutionDecision{
			Action:                 ActionKeepCanonical,
			CanonicalRelID:         best.ID,
			MergedRelIDs:           merged,
			ConsolidatedConfidence: best.Confidence,
			Method:                 "exact_duplicate_removal",
		})
	}

	return out, decisions
}

// selectBestRelationship elects by (confidence desc, context length desc, id
// desc) — the §4.2 "best member" rule, shared by exact-duplicate removal and
// same-pair consolidation.
func selectBestRelationship(members []Relationship) Relationship {
	best := members[0]
	for _, m := range members[1:] {
		if better(m, best) {
			best = m
		}
	}
	return best
}

func better(a, b Relationship) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	if len(a.Context) != len(b.Context) {
		return len(a.Context) > len(b.Context)
	}
	return a.ID > b.ID
}

type pairKey struct {
	a, b string
}

func unorderedPairKey(subject, object string) pairKey {
	if subject <= object {
		return pairKey{subject, object}
	}
	return pairKey{object, subject}
}

// consolidateSimilarRelationships groups the post-dedup edges by unordered
// endpoint pair, sub-groups by predicate, and fuses each multi-member
// subgroup per §4.2 step 3.
func consolidateSimilarRelationships(relationships []Relationship, cfg Config) ([]Relationship, []RelationshipResolutionDecision, error) {
	pairGroups := make(map[pairKey][]Relationship)
	var pairOrder []pairKey
	for _, r := range relationships {
		k := unorderedPairKey(r.SubjectID, r.ObjectID)
		if _, ok := pairGroups[k]; !ok {
			pairOrder = append(pairOrder, k)
		}
		pairGroups[k] = append(pairGroups[k], r)
	}

	var out []Relationship
	var decisions []RelationshipResolutionDecision

	for _, pk := range pairOrder {
		members := pairGroups[pk]

		predGroups := make(map[PredicateType][]Relationship)
		var predOrder []PredicateType
		for _, r := range members {
			if _, ok := predGroups[r.Predicate]; !ok {
				predOrder = append(predOrder, r.Predicate)
			}
			predGroups[r.Predicate] = append(predGroups[r.Predicate], r)
		}

		for _, p := range predOrder {
			group := predGroups[p]
			if len(group) == 1 {
				out = append(out, group[0])
				continue
			}

			base := selectBestRelationship(group)
			confidence, err := consolidateConfidenceScores(group, cfg.ConfidenceConsolidationMethod)
			if err != nil {
				return nil, nil, err
			}
			context := mergeContexts(group)

			fused := base
			fused.Confidence = confidence
			fused.Context = context
			out = append(out, fused)

			var merged []string
			for _, m := range group {
				if m.ID != base.ID {
					merged = append(merged, m.ID)
				}
			}
			decisions = append(decisions, RelationshipResolutionDecision{
				Action:                 ActionConsolidateRelationships,
				CanonicalRelID:         base.ID,
				MergedRelIDs:           merged,
				ConsolidatedConfidence: confidence,
				Method:                 string(cfg.ConfidenceConsolidationMethod),
				Metadata: map[string]interface{}{
					"group_size": len(group),
				},
			})
		}
	}

	return out, decisions, nil
}

// consolidateConfidenceScores implements the §4.2 fusion policies.
func consolidateConfidenceScores(members []Relationship, method ConsolidationMethod) (float64, error) {
	switch method {
	case ConsolidationMax:
		max := members[0].Confidence
		for _, m := range members[1:] {
			if m.Confidence > max {
				max = m.Confidence
			}
		}
		return max, nil
	case ConsolidationAverage:
		return averageConfidence(members), nil
	case ConsolidationWeighted:
		var weightedSum, totalWeight float64
		for _, m := range members {
			weight := float64(len(m.Context))
			if weight < 1 {
				weight = 1
			}
			weightedSum += m.Confidence * weight
			totalWeight += weight
		}
		if totalWeight == 0 {
			return averageConfidence(members), nil
		}
		return weightedSum / totalWeight, nil
	default:
		return 0, NewConfigError("unknown confidence_consolidation_method: " + string(method))
	}
}

func averageConfidence(members []Relationship) float64 {
	var sum float64
	for _, m := range members {
		sum += m.Confidence
	}
	return sum / float64(len(members))
}

// mergeContexts concatenates distinct non-empty contexts, case-insensitive
// for dedup, original casing and input order preserved, joined by " | ".
func mergeContexts(members []Relationship) string {
	seen := make(map[string]bool)
	var parts []string
	for _, m := range members {
		if m.Context == "" {
			continue
		}
		key := strings.ToLower(m.Context)
		if seen[key] {
			continue
		}
		seen[key] = true
		parts = append(parts, m.Context)
	}
	return strings.Join(parts, " | ")
}

// GetConsolidationStats summarizes the relationship-resolution decisions,
// supplementing the core output with the same shape of report the original
// implementation's get_consolidation_stats produced.
func GetConsolidationStats(decisions []RelationshipResolutionDecision) map[string]int {
	stats := make(map[string]int)
	for _, d := range decisions {
		stats[string(d.Action)]++
	}
	return stats
}

// sortedPredicateKeys is a small helper kept for deterministic iteration in tests.
func sortedPredicateKeys(m map[PredicateType][]Relationship) []PredicateType {
	keys := make([]PredicateType, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
