package resolution

import (
	"math"
	"sort"
	"strings"
)

// entityClusterer holds the state threaded through a single ResolveEntities
// call: the canonical set built so far (keyed by id, insertion order tracked
// separately for deterministic output) and the decisions recorded.
type entityClusterer struct {
	cfg               Config
	canonical         map[string]Entity
	canonicalOrder    []string
	decisions         []EntityResolutionDecision
}

// ResolveEntities implements SPEC_FULL.md §4.1 in full: per-type greedy
// clustering, medoid election, cross-cluster canonical folding, and the
// acronym merge pass. It returns the canonical entity set, the decisions
// that produced it, and the derived id-remap table (retired id -> canonical
// id), which is total over input ids, idempotent on canonical ids, and
// closed (§8 invariants).
func ResolveEntities(entities []Entity, cfg Config) ([]CanonicalEntity, []EntityResolutionDecision, map[string]string, error) {
	for _, e := range entities {
		if !e.Type.IsValid() {
			return nil, nil, nil, NewValidationError("unknown entity type: " + string(e.Type))
		}
		if e.Confidence < 0 || e.Confidence > 1 {
			return nil, nil, nil, NewValidationError("entity confidence out of range: " + e.ID)
		}
	}
	if err := requireUniqueEntityIDs(entities); err != nil {
		return nil, nil, nil, err
	}

	c := &entityClusterer{cfg: cfg, canonical: make(map[string]Entity)}

	byType := groupEntitiesByType(entities)
	types := make([]EntityType, 0, len(byType))
	for t := range byType {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	for _, t := range types {
		c.resolveEntitiesByType(byType[t])
	}

	if cfg.EnableAcronymMatching {
		c.mergeAcronymEntities()
	}

	canonical := make([]CanonicalEntity, 0, len(c.canonicalOrder))
	for _, id := range c.canonicalOrder {
		if e, ok := c.canonical[id]; ok {
			canonical = append(canonical, CanonicalEntity{Entity: e})
		}
	}

	remap := buildRemap(entities, c.decisions)

	if err := verifyRemapClosed(remap, c.canonical); err != nil {
		return nil, nil, nil, err
	}

	return canonical, c.decisions, remap, nil
}

func requireUniqueEntityIDs(entities []Entity) error {
	seen := make(map[string]bool, len(entities))
	for _, e := range entities {
		if seen[e.ID] {
			return NewValidationError("duplicate entity id: " + e.ID)
		}
		seen[e.ID] = true
	}
	return nil
}

func groupEntitiesByType(entities []Entity) map[EntityType][]Entity {
	groups := make(map[EntityType][]Entity)
	for _, e := range entities {
		groups[e.Type] = append(groups[e.Type], e)
	}
	return groups
}

func (c *entityClusterer) resolveEntitiesByType(entities []Entity) {
	if len(entities) == 0 {
		return
	}
	clusters := groupEntitiesByFuzzyMatch(entities, c.cfg.EntitySimilarityThreshold)
	for _, cluster := range clusters {
		c.resolveCluster(cluster)
	}
}

// blockingKeySize is the stemmed-key length used to pre-filter clustering
// candidates, the same role as the reference matching engine's
// config.BlockingKeySize ahead of its applyBlocking pass.
const blockingKeySize = 8

// groupEntitiesByFuzzyMatch is the greedy single-pass grouper of §4.1 step 2:
// bucket by raw name, then scan distinct names in input order, absorbing any
// unvisited name whose cleaned partial-ratio similarity clears the
// threshold. Deliberately not transitive closure (§9 design note).
//
// Comparisons are pre-filtered through a BlockingKey bucket, the same
// escape-hatch design as the reference matching engine's applyBlocking: if a
// name's bucket retains less than 10% of the candidate pool, blocking is
// discarded for that name and the full candidate set is scanned instead, so
// a bad blocking key can never hide a true match.
func groupEntitiesByFuzzyMatch(entities []Entity, threshold float64) [][]Entity {
	buckets := newNameBuckets()
	for i, e := range entities {
		buckets.add(e.Name, i)
	}
	names := buckets.names()

	cleaned := make(map[string]string, len(names))
	blockingKeyOf := make(map[string]string, len(names))
	byBlockingKey := make(map[string][]string)
	for _, n := range names {
		cleaned[n] = CleanName(n)
		key := BlockingKey(n, blockingKeySize)
		blockingKeyOf[n] = key
		byBlockingKey[key] = append(byBlockingKey[key], n)
	}

	used := make(map[string]bool, len(names))
	clusters := make([][]Entity, 0, len(names))

	for _, n := range names {
		if used[n] {
			continue
		}
		used[n] = true

		indices := append([]int(nil), buckets.indicesFor(n)...)
		for _, m := range blockingCandidates(n, names, blockingKeyOf, byBlockingKey) {
			if used[m] {
				continue
			}
			if partialRatio(cleaned[n], cleaned[m]) >= threshold {
				used[m] = true
				indices = append(indices, buckets.indicesFor(m)...)
			}
		}

		cluster := make([]Entity, len(indices))
		for i, idx := range indices {
			cluster[i] = entities[idx]
		}
		clusters = append(clusters, cluster)
	}

	return clusters
}

// blockingCandidates returns the names to scan against n: its blocking-key
// bucket, or the full candidate pool when that bucket retains fewer than
// 10% of all distinct names.
func blockingCandidates(n string, names []string, blockingKeyOf map[string]string, byBlockingKey map[string][]string) []string {
	key := blockingKeyOf[n]
	if key == "" {
		return names
	}
	bucket := byBlockingKey[key]
	if len(bucket)*10 < len(names) {
		return names
	}
	return bucket
}

// resolveCluster elects the medoid, tests it for a cross-cluster canonical
// fold, and records a decision when the cluster produced any duplicates.
func (c *entityClusterer) resolveCluster(cluster []Entity) {
	if len(cluster) == 0 {
		return
	}

	medoid := selectMedoidEntity(cluster)

	var finalCanonicalID string
	var duplicateIDs []string

	if existing, ok := c.findMatchingCanonicalEntity(medoid); ok {
		finalCanonicalID = existing.ID
		for _, e := range cluster {
			duplicateIDs = append(duplicateIDs, e.ID)
		}
	} else {
		finalCanonicalID = medoid.ID
		c.addCanonical(medoid)
		for _, e := range cluster {
			if e.ID != medoid.ID {
				duplicateIDs = append(duplicateIDs, e.ID)
			}
		}
	}

	if len(duplicateIDs) == 0 {
		return
	}

	clusterSimilarity := calculateClusterSimilarity(cluster)
	c.decisions = append(c.decisions, EntityResolutionDecision{
		CanonicalID:       finalCanonicalID,
		DuplicateIDs:      duplicateIDs,
		ClusterSimilarity: clusterSimilarity,
		Method:            MethodFuzzyMatchMedoid,
		Confidence:        calculateResolutionConfidence(cluster, clusterSimilarity),
		Metadata: map[string]interface{}{
			"cluster_size":   len(cluster),
			"canonical_name": medoid.Name,
		},
	})
}

func (c *entityClusterer) addCanonical(e Entity) {
	if _, exists := c.canonical[e.ID]; !exists {
		c.canonicalOrder = append(c.canonicalOrder, e.ID)
	}
	c.canonical[e.ID] = e
}

// selectMedoidEntity implements the §4.1 medoid election rule: argmax summed
// pairwise partial-ratio, tie-broken within 10 points by confidence, then by
// id for full determinism.
func selectMedoidEntity(entities []Entity) Entity {
	if len(entities) == 1 {
		return entities[0]
	}

	n := len(entities)
	cleaned := make([]string, n)
	for i, e := range entities {
		cleaned[i] = CleanName(e.Name)
	}

	scores := make([]float64, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			scores[i] += partialRatio(cleaned[i], cleaned[j])
		}
	}

	maxScore := scores[0]
	for _, s := range scores[1:] {
		if s > maxScore {
			maxScore = s
		}
	}

	var candidates []int
	for i, s := range scores {
		if math.Abs(s-maxScore) < 10.0 {
			candidates = append(candidates, i)
		}
	}

	best := candidates[0]
	for _, i := range candidates[1:] {
		if entities[i].Confidence > entities[best].Confidence ||
			(entities[i].Confidence == entities[best].Confidence && entities[i].ID < entities[best].ID) {
			best = i
		}
	}
	return entities[best]
}

// findMatchingCanonicalEntity implements §4.1's cross-cluster canonical
// matching: test a candidate medoid against every already-committed
// canonical entity of the same type, folding into the best-scoring match at
// or above the similarity threshold.
func (c *entityClusterer) findMatchingCanonicalEntity(candidate Entity) (Entity, bool) {
	cleanedCandidate := CleanName(candidate.Name)
	bestScore := 0.0
	var best Entity
	found := false

	for _, id := range c.canonicalOrder {
		canonical, ok := c.canonical[id]
		if !ok || canonical.Type != candidate.Type {
			continue
		}
		score := partialRatio(cleanedCandidate, CleanName(canonical.Name))
		if score > bestScore && score >= c.cfg.EntitySimilarityThreshold {
			bestScore = score
			best = canonical
			found = true
		}
	}
	return best, found
}

// mergeAcronymEntities implements the §4.1 acronym merge pass across the
// full committed canonical set.
func (c *entityClusterer) mergeAcronymEntities() {
	var multiWord, singleWord []string
	for _, id := range c.canonicalOrder {
		e, ok := c.canonical[id]
		if !ok {
			continue
		}
		if IsMultiWord(e.Name) {
			multiWord = append(multiWord, id)
		} else {
			singleWord = append(singleWord, id)
		}
	}

	toRemove := make(map[string]bool)

	for _, multiID := range multiWord {
		multi := c.canonical[multiID]
		acronym := Acronym(multi.Name)

		for _, singleID := range singleWord {
			if toRemove[singleID] {
				continue
			}
			single := c.canonical[singleID]
			if single.Type != multi.Type {
				continue
			}
			score := ratio(acronym, strings.ToUpper(single.Name))
			if score >= c.cfg.EntityAcronymThreshold {
				c.decisions = append(c.decisions, EntityResolutionDecision{
					CanonicalID:       multi.ID,
					DuplicateIDs:      []string{single.ID},
					ClusterSimilarity: score / 100.0,
					Method:            MethodAcronymMatch,
					Confidence:        0.9,
					Metadata: map[string]interface{}{
						"acronym":      acronym,
						"full_form":    multi.Name,
						"acronym_form": single.Name,
					},
				})
				toRemove[singleID] = true
				break
			}
		}
	}

	if len(toRemove) == 0 {
		return
	}

	newOrder := make([]string, 0, len(c.canonicalOrder))
	for _, id := range c.canonicalOrder {
		if toRemove[id] {
			delete(c.canonical, id)
			continue
		}
		newOrder = append(newOrder, id)
	}
	c.canonicalOrder = newOrder
}

// calculateClusterSimilarity is the average pairwise partial-ratio across a
// cluster, in [0,1]; singletons score 1.0.
func calculateClusterSimilarity(entities []Entity) float64 {
	if len(entities) < 2 {
		return 1.0
	}
	var total float64
	var comparisons int
	for i := 0; i < len(entities); i++ {
		for j := i + 1; j < len(entities); j++ {
			total += partialRatio(CleanName(entities[i].Name), CleanName(entities[j].Name))
			comparisons++
		}
	}
	if comparisons == 0 {
		return 1.0
	}
	return (total / float64(comparisons)) / 100.0
}

// calculateResolutionConfidence blends average member confidence with
// cluster similarity, boosted when the cluster is very tight (§4.1 Outputs).
func calculateResolutionConfidence(entities []Entity, clusterSimilarity float64) float64 {
	if len(entities) < 2 {
		return 1.0
	}
	var sum float64
	for _, e := range entities {
		sum += e.Confidence
	}
	avgConfidence := sum / float64(len(entities))

	confidence := (avgConfidence + clusterSimilarity) / 2.0
	if clusterSimilarity > 0.9 {
		confidence = math.Min(1.0, confidence+0.1)
	}
	return confidence
}

// buildRemap derives the total, closed id-remap table from the recorded
// decisions: every retired id maps to its canonical id, resolved through
// chained folds (e.g. a duplicate of a cluster whose medoid was itself later
// folded into another canonical).
func buildRemap(entities []Entity, decisions []EntityResolutionDecision) map[string]string {
	direct := make(map[string]string)
	for _, d := range decisions {
		for _, dup := range d.DuplicateIDs {
			direct[dup] = d.CanonicalID
		}
	}

	remap := make(map[string]string, len(entities))
	for _, e := range entities {
		remap[e.ID] = resolveChain(e.ID, direct)
	}
	return remap
}

func resolveChain(id string, direct map[string]string) string {
	seen := make(map[string]bool)
	current := id
	for {
		next, ok := direct[current]
		if !ok || next == current || seen[current] {
			return current
		}
		seen[current] = true
		current = next
	}
}

func verifyRemapClosed(remap map[string]string, canonical map[string]Entity) error {
	for _, target := range remap {
		if _, ok := canonical[target]; !ok {
			return NewInvariantError("id-remap target is not a canonical entity: " + target)
		}
	}
	return nil
}
