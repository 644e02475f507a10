package resolution

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/bbalet/stopwords"
	"github.com/kljensen/snowball"
)

// asciiPunctuation mirrors Python's string.punctuation, the set the
// reference algorithm strips during clean_entity_name.
const asciiPunctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

// CleanName normalizes an entity name for fuzzy comparison: lowercase, trim,
// strip ASCII punctuation. This is a fixed literal rule (SPEC_FULL.md §4.1)
// and must not be confused with the learned stemming/stopword pass used only
// for blocking keys below.
func CleanName(name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))
	var b strings.Builder
	b.Grow(len(lower))
	for _, r := range lower {
		if strings.ContainsRune(asciiPunctuation, r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

// Acronym forms the uppercase-initials acronym of a whitespace-tokenized name,
// e.g. "Customer Acquisition Cost" -> "CAC".
func Acronym(name string) string {
	tokens := strings.Fields(name)
	var b strings.Builder
	for _, t := range tokens {
		for _, r := range t {
			b.WriteRune(unicode.ToUpper(r))
			break
		}
	}
	return b.String()
}

// IsMultiWord reports whether a cleaned name contains whitespace, the
// partition criterion for the acronym merge pass (SPEC_FULL.md §4.1).
func IsMultiWord(name string) bool {
	return strings.ContainsAny(strings.TrimSpace(name), " \t\n")
}

// BlockingKey derives a coarse stemmed/stopword-filtered key used only to
// bucket candidates ahead of the O(n^2) clustering pass (see
// groupEntitiesByFuzzyMatch in entity_resolver.go);
// it never substitutes for CleanName in a scored comparison.
func BlockingKey(name string, keySize int) string {
	cleaned := CleanName(name)
	filtered := stopwords.CleanString(cleaned, "en", false)
	tokens := strings.Fields(filtered)
	if len(tokens) == 0 {
		tokens = strings.Fields(cleaned)
	}
	var stems []string
	for _, t := range tokens {
		if stem, err := snowball.Stem(t, "english", true); err == nil && stem != "" {
			stems = append(stems, stem)
		} else {
			stems = append(stems, t)
		}
	}
	key := strings.Join(stems, "")
	if len(key) > keySize {
		return key[:keySize]
	}
	return key
}

func stringify(v interface{}) string {
	return fmt.Sprintf("%v", v)
}
