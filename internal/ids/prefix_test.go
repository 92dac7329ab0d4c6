package ids

import "testing"

func TestUniquePrefixLengths(t *testing.T) {
	ids := []string{"2u3iutfd", "2a9k1111", "abc12345"}
	lengths := UniquePrefixLengths(ids)

	if got := lengths["2u3iutfd"]; got != 2 {
		t.Fatalf("expected 2u3iutfd prefix length 2, got %d", got)
	}
	if got := lengths["2a9k1111"]; got != 2 {
		t.Fatalf("expected 2a9k1111 prefix length 2, got %d", got)
	}
	if got := lengths["abc12345"]; got != 1 {
		t.Fatalf("expected abc12345 prefix length 1, got %d", got)
	}
}

func TestUniquePrefixLengthsIsCaseInsensitive(t *testing.T) {
	ids := []string{"Abc", "aBD"}
	lengths := UniquePrefixLengths(ids)

	if got := lengths["abc"]; got != 3 {
		t.Fatalf("expected abc prefix length 3, got %d", got)
	}
	if got := lengths["abd"]; got != 3 {
		t.Fatalf("expected abd prefix length 3, got %d", got)
	}
}

func TestUniquePrefixLengthsSkipsDuplicatesAndEmpty(t *testing.T) {
	ids := []string{"abc", "", "ABC"}
	lengths := UniquePrefixLengths(ids)

	if len(lengths) != 1 {
		t.Fatalf("expected 1 unique ID, got %d", len(lengths))
	}
	if got := lengths["abc"]; got != 1 {
		t.Fatalf("expected abc prefix length 1, got %d", got)
	}
}

func TestMatchPrefix(t *testing.T) {
	ids := []string{"9f1c2d3e-aaaa", "9f7b0000-bbbb", "c0ffee00-cccc"}

	match, found, ambiguous := MatchPrefix(ids, "C0F")
	if !found || ambiguous || match != "c0ffee00-cccc" {
		t.Fatalf("expected unique match c0ffee00-cccc, got %q found=%v ambiguous=%v", match, found, ambiguous)
	}

	_, found, ambiguous = MatchPrefix(ids, "9f")
	if !found || !ambiguous {
		t.Fatalf("expected ambiguous match for 9f, got found=%v ambiguous=%v", found, ambiguous)
	}

	_, found, _ = MatchPrefix(ids, "zz")
	if found {
		t.Fatal("expected no match for zz")
	}

	_, found, _ = MatchPrefix(ids, "")
	if found {
		t.Fatal("expected no match for empty prefix")
	}
}

func TestMatchPrefixPrefersExactMatch(t *testing.T) {
	ids := []string{"abc", "abcd"}

	match, found, ambiguous := MatchPrefix(ids, "ABC")
	if !found || ambiguous || match != "abc" {
		t.Fatalf("expected exact match abc, got %q found=%v ambiguous=%v", match, found, ambiguous)
	}
}
