package resolution

import (
	"math"
	"sort"
	"strconv"

	"github.com/google/uuid"
)

// typePair is an ordered (subject type, object type) key into the learned
// predicate patterns.
type typePair struct {
	subject EntityType
	object  EntityType
}

// discoveryContext holds the read-only structures built once at the start of
// §4.3 (existing_pairs, patterns) and shared across all four methods.
type discoveryContext struct {
	cfg           Config
	entities      []Entity
	entityByID    map[string]Entity
	existingPairs map[pairKey]bool
	patterns      map[typePair][]PredicateType
	outgoing      map[string][]outgoingEdge
}

type outgoingEdge struct {
	object    string
	predicate PredicateType
	confidence float64
}

// similarityFallback is Method A's fixed fallback predicate table, keyed by
// ordered type pair.
var similarityFallback = map[typePair]PredicateType{
	{EntityKPI, EntityMetric}:        PredicateDependsOn,
	{EntityMetric, EntityFormula}:    PredicateCalculatedBy,
	{EntityMetric, EntityTable}:      PredicateDerivedFrom,
	{EntityColumn, EntityTable}:      PredicateBelongsTo,
	{EntityDefinition, EntityKPI}:    PredicateHasDefinition,
}

// transitiveRules is the fixed two-hop predicate-chain table of Method B.
var transitiveRules = map[[2]PredicateType]PredicateType{
	{PredicateBelongsTo, PredicateBelongsTo}:     PredicateBelongsTo,
	{PredicateDependsOn, PredicateDependsOn}:     PredicateDependsOn,
	{PredicateDerivedFrom, PredicateDerivedFrom}: PredicateDerivedFrom,
	{PredicateContains, PredicateBelongsTo}:      PredicateContains,
	{PredicateHasDefinition, PredicateDependsOn}: PredicateHasDefinition,
}

// transitivityCompatiblePairs is the unordered type-pair set eligible for the
// Method B confidence boost.
var transitivityCompatiblePairs = map[[2]EntityType]bool{
	{EntityKPI, EntityMetric}:     true,
	{EntityMetric, EntityTable}:   true,
	{EntityColumn, EntityTable}:   true,
	{EntityFormula, EntityKPI}:    true,
}

func unorderedTypeKey(a, b EntityType) [2]EntityType {
	if a <= b {
		return [2]EntityType{a, b}
	}
	return [2]EntityType{b, a}
}

// domainRule describes one of Method C's four fixed rules.
type domainRule struct {
	name               string
	subjectType        EntityType
	objectTypes        []EntityType
	predicate          PredicateType
	thresholdMultiplier float64
	confidenceMultiplier float64
	confidenceCap      float64
	method             DiscoveryMethod
	// reversed swaps the emitted edge direction: iteration still runs
	// subjectType x objectTypes, but the discovery's subject/object are
	// the target (objectTypes member) and the formula (subjectType
	// member) respectively — matches "target calculated_by formula".
	reversed bool
}

var domainRules = []domainRule{
	{
		name: "kpi_depends_on_metric", subjectType: EntityKPI, objectTypes: []EntityType{EntityMetric},
		predicate: PredicateDependsOn, thresholdMultiplier: 0.7, confidenceMultiplier: 1.1, confidenceCap: 0.9,
		method: DiscoveryDomainRuleKPIMetric,
	},
	{
		name: "metric_derived_from_table", subjectType: EntityMetric, objectTypes: []EntityType{EntityTable},
		predicate: PredicateDerivedFrom, thresholdMultiplier: 0.6, confidenceMultiplier: 1.0, confidenceCap: 0.85,
		method: DiscoveryDomainRuleMetricTable,
	},
	{
		name: "metric_measures_column", subjectType: EntityMetric, objectTypes: []EntityType{EntityColumn},
		predicate: PredicateMeasures, thresholdMultiplier: 0.7, confidenceMultiplier: 1.0, confidenceCap: 0.8,
		method: DiscoveryDomainRuleMetricColumn,
	},
	{
		name: "target_calculated_by_formula", subjectType: EntityFormula, objectTypes: []EntityType{EntityKPI, EntityMetric},
		predicate: PredicateCalculatedBy, thresholdMultiplier: 0.6, confidenceMultiplier: 1.0, confidenceCap: 0.8,
		method: DiscoveryDomainRuleFormula, reversed: true,
	},
}

// DiscoverConnections implements SPEC_FULL.md §4.3 in full: build the shared
// existing_pairs/patterns structures, run the four discovery methods,
// deduplicate proposals, sort deterministically, and apply the
// min-confidence filter and max-discoveries cap.
func DiscoverConnections(entities []Entity, relationships []ConsolidatedRelationship, cfg Config) []ConnectionDiscovery {
	ctx := buildDiscoveryContext(entities, relationships, cfg)

	var all []ConnectionDiscovery
	all = append(all, discoverBySimilarity(ctx)...)
	if cfg.EnableTransitiveDiscovery {
		all = append(all, discoverTransitive(ctx)...)
	}
	if cfg.EnableDomainRules {
		all = append(all, discoverByDomainRules(ctx)...)
	}
	all = append(all, discoverByPatterns(ctx)...)

	unique := deduplicateDiscoveries(all)

	sort.Slice(unique, func(i, j int) bool {
		a, b := unique[i], unique[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.SubjectEntityID != b.SubjectEntityID {
			return a.SubjectEntityID < b.SubjectEntityID
		}
		if a.ObjectEntityID != b.ObjectEntityID {
			return a.ObjectEntityID < b.ObjectEntityID
		}
		return a.SuggestedPredicate < b.SuggestedPredicate
	})

	if cfg.MinDiscoveryConfidence > 0 {
		filtered := unique[:0]
		for _, d := range unique {
			if d.Confidence >= cfg.MinDiscoveryConfidence {
				filtered = append(filtered, d)
			}
		}
		unique = filtered
	}

	if cfg.MaxDiscoveriesPerRun > 0 && len(unique) > cfg.MaxDiscoveriesPerRun {
		unique = unique[:cfg.MaxDiscoveriesPerRun]
	}

	return unique
}

func buildDiscoveryContext(entities []Entity, relationships []ConsolidatedRelationship, cfg Config) *discoveryContext {
	entityByID := make(map[string]Entity, len(entities))
	for _, e := range entities {
		entityByID[e.ID] = e
	}

	existingPairs := make(map[pairKey]bool)
	outgoing := make(map[string][]outgoingEdge)
	patternCounts := make(map[typePair]map[PredicateType]int)
	var patternOrder = make(map[typePair][]PredicateType)

	for _, cr := range relationships {
		r := cr.Relationship
		existingPairs[unorderedPairKey(r.SubjectID, r.ObjectID)] = true
		outgoing[r.SubjectID] = append(outgoing[r.SubjectID], outgoingEdge{object: r.ObjectID, predicate: r.Predicate, confidence: r.Confidence})

		subj, okS := entityByID[r.SubjectID]
		obj, okO := entityByID[r.ObjectID]
		if !okS || !okO {
			continue
		}
		tp := typePair{subj.Type, obj.Type}
		if patternCounts[tp] == nil {
			patternCounts[tp] = make(map[PredicateType]int)
		}
		if patternCounts[tp][r.Predicate] == 0 {
			patternOrder[tp] = append(patternOrder[tp], r.Predicate)
		}
		patternCounts[tp][r.Predicate]++
	}

	patterns := make(map[typePair][]PredicateType, len(patternCounts))
	for tp, counts := range patternCounts {
		preds := append([]PredicateType(nil), patternOrder[tp]...)
		sort.SliceStable(preds, func(i, j int) bool { return counts[preds[i]] > counts[preds[j]] })
		if len(preds) > 3 {
			preds = preds[:3]
		}
		patterns[tp] = preds
	}

	return &discoveryContext{
		cfg:           cfg,
		entities:      entities,
		entityByID:    entityByID,
		existingPairs: existingPairs,
		patterns:      patterns,
		outgoing:      outgoing,
	}
}

func (ctx *discoveryContext) connected(a, b string) bool {
	return ctx.existingPairs[unorderedPairKey(a, b)]
}

// similarityComposite implements the §4.3 Method A composite scoring formula,
// shared by Methods A, C, and D.
func similarityComposite(e1, e2 Entity, cfg Config) (float64, map[string]float64) {
	features := make(map[string]float64, 4)

	nameSim := partialRatio(lowerASCII(e1.Name), lowerASCII(e2.Name)) / 100.0
	features["name_similarity"] = nameSim

	descSim := 0.0
	if e1.Description != "" && e2.Description != "" {
		descSim = partialRatio(lowerASCII(e1.Description), lowerASCII(e2.Description)) / 100.0
	}
	features["description_similarity"] = descSim

	attrSim := attributeOverlap(e1.Attributes, e2.Attributes)
	features["attribute_overlap"] = attrSim

	typeBoost := 0.8
	if e1.Type == e2.Type {
		typeBoost = 1.0
	}
	features["type_compatibility"] = typeBoost

	composite := (nameSim*cfg.NameWeight + descSim*cfg.DescriptionWeight + attrSim*0.2) * typeBoost
	return composite, features
}

func lowerASCII(s string) string {
	return lowerASCIIRaw(s)
}

func attributeOverlap(a, b map[string]interface{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var total float64
	var count int
	for k, av := range a {
		bv, ok := b[k]
		if !ok {
			continue
		}
		count++
		as := toLowerString(av)
		bs := toLowerString(bv)
		if as == bs {
			total += 1.0
		} else {
			total += ratio(as, bs) / 100.0
		}
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}

func toLowerString(v interface{}) string {
	return lowerASCIIRaw(toComparableString(v))
}

func lowerASCIIRaw(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

func discoverBySimilarity(ctx *discoveryContext) []ConnectionDiscovery {
	var out []ConnectionDiscovery
	entities := ctx.entities
	for i := 0; i < len(entities); i++ {
		for j := i + 1; j < len(entities); j++ {
			e1, e2 := entities[i], entities[j]
			if ctx.connected(e1.ID, e2.ID) {
				continue
			}
			composite, features := similarityComposite(e1, e2, ctx.cfg)
			if composite < ctx.cfg.ConnectionSimilarityThreshold {
				continue
			}
			predicate := suggestPredicateFromSimilarity(ctx, e1, e2)

			out = append(out, ConnectionDiscovery{
				ID:                 uuid.New().String(),
				SubjectEntityID:    e1.ID,
				ObjectEntityID:     e2.ID,
				SuggestedPredicate: predicate,
				Confidence:         composite,
				Method:             DiscoverySimilarityAnalysis,
				SupportingEvidence: []string{
					"name similarity: " + formatScore(features["name_similarity"]),
					"description similarity: " + formatScore(features["description_similarity"]),
					"attribute overlap: " + formatScore(features["attribute_overlap"]),
				},
				SimilarityFeatures: features,
				Metadata: map[string]interface{}{
					"entity1_name": e1.Name,
					"entity2_name": e2.Name,
					"entity1_type": string(e1.Type),
					"entity2_type": string(e2.Type),
				},
			})
		}
	}
	return out
}

func suggestPredicateFromSimilarity(ctx *discoveryContext, e1, e2 Entity) PredicateType {
	tp := typePair{e1.Type, e2.Type}
	if preds, ok := ctx.patterns[tp]; ok && len(preds) > 0 {
		return preds[0]
	}
	if pred, ok := similarityFallback[tp]; ok {
		return pred
	}
	return PredicateDependsOn
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func discoverTransitive(ctx *discoveryContext) []ConnectionDiscovery {
	var out []ConnectionDiscovery
	for _, a := range ctx.entities {
		for _, hop1 := range ctx.outgoing[a.ID] {
			intermediate, ok := ctx.entityByID[hop1.object]
			if !ok {
				continue
			}
			for _, hop2 := range ctx.outgoing[intermediate.ID] {
				if hop2.object == a.ID {
					continue
				}
				if ctx.connected(a.ID, hop2.object) {
					continue
				}
				target, ok := ctx.entityByID[hop2.object]
				if !ok {
					continue
				}
				p3, ok := transitiveRules[[2]PredicateType{hop1.predicate, hop2.predicate}]
				if !ok {
					continue
				}

				confidence := math.Sqrt(hop1.confidence*hop2.confidence) * 0.8
				if transitivityCompatiblePairs[unorderedTypeKey(a.Type, target.Type)] {
					confidence = math.Min(1.0, confidence*1.1)
				}

				out = append(out, ConnectionDiscovery{
					ID:                 uuid.New().String(),
					SubjectEntityID:    a.ID,
					ObjectEntityID:     target.ID,
					SuggestedPredicate: p3,
					Confidence:         confidence,
					Method:             DiscoveryTransitiveInference,
					SupportingEvidence: []string{
						a.Name + " --[" + string(hop1.predicate) + "]--> " + intermediate.Name,
						intermediate.Name + " --[" + string(hop2.predicate) + "]--> " + target.Name,
						"inferred: " + a.Name + " --[" + string(p3) + "]--> " + target.Name,
					},
					SimilarityFeatures: map[string]float64{"transitive_strength": confidence},
					Metadata: map[string]interface{}{
						"intermediate_entity_id":   intermediate.ID,
						"intermediate_entity_name": intermediate.Name,
						"path_predicates":          []string{string(hop1.predicate), string(hop2.predicate)},
					},
				})
			}
		}
	}
	return out
}

func discoverByDomainRules(ctx *discoveryContext) []ConnectionDiscovery {
	byType := make(map[EntityType][]Entity)
	for _, e := range ctx.entities {
		byType[e.Type] = append(byType[e.Type], e)
	}

	var out []ConnectionDiscovery
	for _, rule := range domainRules {
		subjects := byType[rule.subjectType]
		if len(subjects) == 0 {
			continue
		}
		for _, objType := range rule.objectTypes {
			objects := byType[objType]
			if len(objects) == 0 {
				continue
			}
			out = append(out, applyDomainRule(ctx, rule, subjects, objects)...)
		}
	}
	return out
}

func applyDomainRule(ctx *discoveryContext, rule domainRule, subjects, objects []Entity) []ConnectionDiscovery {
	var out []ConnectionDiscovery
	threshold := ctx.cfg.ConnectionSimilarityThreshold * rule.thresholdMultiplier

	for _, s := range subjects {
		for _, o := range objects {
			if ctx.connected(s.ID, o.ID) {
				continue
			}
			composite, features := similarityComposite(s, o, ctx.cfg)
			if composite < threshold {
				continue
			}

			confidence := composite * rule.confidenceMultiplier
			if confidence > rule.confidenceCap {
				confidence = rule.confidenceCap
			}

			subjectEntity, objectEntity := s, o
			if rule.reversed {
				subjectEntity, objectEntity = o, s
			}

			out = append(out, ConnectionDiscovery{
				ID:                 uuid.New().String(),
				SubjectEntityID:    subjectEntity.ID,
				ObjectEntityID:     objectEntity.ID,
				SuggestedPredicate: rule.predicate,
				Confidence:         confidence,
				Method:             rule.method,
				SupportingEvidence: []string{
					"domain rule: " + rule.name,
					"similarity score: " + formatScore(composite),
				},
				SimilarityFeatures: features,
				Metadata: map[string]interface{}{
					"rule_type":    rule.name,
					"subject_name": subjectEntity.Name,
					"object_name":  objectEntity.Name,
				},
			})
		}
	}
	return out
}

func discoverByPatterns(ctx *discoveryContext) []ConnectionDiscovery {
	var out []ConnectionDiscovery
	for _, e1 := range ctx.entities {
		for _, e2 := range ctx.entities {
			if e1.ID == e2.ID {
				continue
			}
			if ctx.connected(e1.ID, e2.ID) {
				continue
			}
			tp := typePair{e1.Type, e2.Type}
			preds, ok := ctx.patterns[tp]
			if !ok || len(preds) == 0 {
				continue
			}

			composite, _ := similarityComposite(e1, e2, ctx.cfg)
			patternStrength := math.Min(1.0, float64(len(preds))/10.0)
			confidence := 0.6*patternStrength + 0.4*composite
			if confidence < ctx.cfg.ConnectionSimilarityThreshold {
				continue
			}

			predStrs := make([]string, len(preds))
			for i, p := range preds {
				predStrs[i] = string(p)
			}

			out = append(out, ConnectionDiscovery{
				ID:                 uuid.New().String(),
				SubjectEntityID:    e1.ID,
				ObjectEntityID:     e2.ID,
				SuggestedPredicate: preds[0],
				Confidence:         confidence,
				Method:             DiscoveryPatternMatching,
				SupportingEvidence: []string{
					"common pattern: " + string(e1.Type) + " --[" + string(preds[0]) + "]--> " + string(e2.Type),
					"pattern frequency: " + strconv.Itoa(len(preds)),
				},
				SimilarityFeatures: map[string]float64{
					"pattern_strength": patternStrength,
					"pattern_frequency": float64(len(preds)),
				},
				Metadata: map[string]interface{}{
					"entity_type_pair":   []string{string(e1.Type), string(e2.Type)},
					"available_patterns": predStrs,
				},
			})
		}
	}
	return out
}

type discoveryKey struct {
	subject   string
	object    string
	predicate PredicateType
}

// deduplicateDiscoveries groups proposals by (subject, object, predicate)
// across all methods, keeping the highest-confidence member and unioning
// evidence/methods into its metadata.
func deduplicateDiscoveries(discoveries []ConnectionDiscovery) []ConnectionDiscovery {
	groups := make(map[discoveryKey][]ConnectionDiscovery)
	var order []discoveryKey
	for _, d := range discoveries {
		k := discoveryKey{d.SubjectEntityID, d.ObjectEntityID, d.SuggestedPredicate}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], d)
	}

	out := make([]ConnectionDiscovery, 0, len(order))
	for _, k := range order {
		group := groups[k]
		if len(group) == 1 {
			out = append(out, group[0])
			continue
		}

		best := group[0]
		for _, d := range group[1:] {
			if d.Confidence > best.Confidence {
				best = d
			}
		}

		evidenceSeen := make(map[string]bool)
		var evidence []string
		methodSeen := make(map[DiscoveryMethod]bool)
		var methods []string
		for _, d := range group {
			for _, ev := range d.SupportingEvidence {
				if !evidenceSeen[ev] {
					evidenceSeen[ev] = true
					evidence = append(evidence, ev)
				}
			}
			if !methodSeen[d.Method] {
				methodSeen[d.Method] = true
				methods = append(methods, string(d.Method))
			}
		}

		best.SupportingEvidence = evidence
		if best.Metadata == nil {
			best.Metadata = make(map[string]interface{})
		}
		best.Metadata["discovery_methods"] = methods
		out = append(out, best)
	}

	return out
}
