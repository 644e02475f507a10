package resolution

import (
	radix "github.com/armon/go-radix"
)

// nameBuckets groups entity indices by their exact raw name, preserving the
// first-seen order of distinct names. This is step 1 of the clustering
// algorithm (SPEC_FULL.md §4.1: "Group input entities by raw name"),
// implemented with a radix tree the same way the reference matching engine
// indexes candidates ahead of its O(n) blocking pass (internal/matching/engine.go,
// applyBlocking/generateBlockingKey) rather than a plain map, so that prefix
// lookups (candidatesSharingPrefix) run on the same structure. The
// BlockingKey pre-filter in groupEntitiesByFuzzyMatch keeps its own map and
// does not use this tree.
type nameBuckets struct {
	tree  *radix.Tree
	order []string
}

func newNameBuckets() *nameBuckets {
	return &nameBuckets{tree: radix.New()}
}

func (b *nameBuckets) add(name string, index int) {
	if existing, ok := b.tree.Get(name); ok {
		indices := existing.([]int)
		b.tree.Insert(name, append(indices, index))
		return
	}
	b.tree.Insert(name, []int{index})
	b.order = append(b.order, name)
}

// names returns distinct raw names in first-seen (input) order, the
// iteration order the clustering contract requires to stay deterministic.
func (b *nameBuckets) names() []string {
	return b.order
}

func (b *nameBuckets) indicesFor(name string) []int {
	v, ok := b.tree.Get(name)
	if !ok {
		return nil
	}
	return v.([]int)
}

// candidatesSharingPrefix returns the distinct names that start with key, a cheap pre-filter available to callers willing to trade
// strict O(n^2) clustering for a blocked approximation when the similarity
// threshold is high enough that distant prefixes cannot plausibly match. The
// entity resolver does not use this for correctness-critical comparisons; it
// is exposed for callers (e.g. a future batch CLI) operating over very large
// inputs where an approximate blocked pass is an accepted tradeoff.
func (b *nameBuckets) candidatesSharingPrefix(key string) []string {
	var matches []string
	b.tree.WalkPrefix(key, func(k string, v interface{}) bool {
		matches = append(matches, k)
		return false
	})
	return matches
}
