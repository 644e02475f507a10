package resolution

import "testing"

func TestBlockingKeyStable(t *testing.T) {
	a := BlockingKey("Customer Acquisition Cost", 8)
	b := BlockingKey("customer acquisition cost", 8)
	if a != b {
		t.Fatalf("BlockingKey should be case-insensitive: %q vs %q", a, b)
	}
	if len(a) > 8 {
		t.Fatalf("BlockingKey exceeded requested keySize: %q", a)
	}
}

func TestBlockingKeyFallsBackWhenStopwordsEmptyResult(t *testing.T) {
	// an all-stopword name must not collapse to an empty key.
	got := BlockingKey("the of", 8)
	if got == "" {
		t.Fatal("BlockingKey unexpectedly empty for an all-stopword input")
	}
}
