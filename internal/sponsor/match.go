package sponsor

import (
	"sort"

	"github.com/adrg/strutil/metrics"
)

// DefaultFuzzyThreshold is the similarity (0–100) a candidate needs before it
// counts as the same employer.
const DefaultFuzzyThreshold = 90

// ReferenceSet is the immutable set of normalized strong-sponsor employer
// names for one run. Safe for concurrent readers once built.
type ReferenceSet struct {
	employers map[string]struct{}
	names     []string // sorted view of employers, for scans and the cache
}

// NewSet builds a reference set from raw employer names, normalizing each.
// Mostly useful for tests and callers with an out-of-band employer list.
func NewSet(names ...string) *ReferenceSet {
	employers := make(map[string]struct{}, len(names))
	for _, name := range names {
		if n := NormalizeName(name); n != "" {
			employers[n] = struct{}{}
		}
	}
	return newReferenceSet(employers)
}

func newReferenceSet(employers map[string]struct{}) *ReferenceSet {
	names := make([]string, 0, len(employers))
	for name := range employers {
		names = append(names, name)
	}
	sort.Strings(names)
	return &ReferenceSet{employers: employers, names: names}
}

// Len returns the number of employers in the set.
func (s *ReferenceSet) Len() int { return len(s.employers) }

// Names returns the sorted employer names.
func (s *ReferenceSet) Names() []string { return s.names }

// HasExact reports normalized-string membership.
func (s *ReferenceSet) HasExact(name string) bool {
	_, ok := s.employers[NormalizeName(name)]
	return ok
}

// MatchesApprox reports whether the best similarity between the normalized
// input and any member of the set reaches threshold. Exact membership
// short-circuits the scan. Empty input or an empty set never matches.
func (s *ReferenceSet) MatchesApprox(name string, threshold int) bool {
	if name == "" || s.Len() == 0 {
		return false
	}

	normalized := NormalizeName(name)
	if normalized == "" {
		return false
	}
	if _, ok := s.employers[normalized]; ok {
		return true
	}

	inLen := len([]rune(normalized))
	best := 0
	for _, candidate := range s.names {
		// An indel ratio can never beat threshold when the lengths alone
		// cost too many edits; skip those candidates outright.
		if ceilingRatio(inLen, len([]rune(candidate))) < threshold {
			continue
		}
		if r := ratio(normalized, candidate); r > best {
			best = r
			if best == 100 {
				break
			}
		}
	}
	return best >= threshold
}

// indel scores Levenshtein with substitutions costing two, which makes the
// derived ratio symmetric in insertions and deletions.
var indel = func() *metrics.Levenshtein {
	m := metrics.NewLevenshtein()
	m.ReplaceCost = 2
	return m
}()

// ratio is the similarity of two strings on a 0–100 scale.
func ratio(a, b string) int {
	lensum := len([]rune(a)) + len([]rune(b))
	if lensum == 0 {
		return 100
	}
	dist := indel.Distance(a, b)
	return (lensum - dist) * 100 / lensum
}

// ceilingRatio is the highest ratio two strings of the given lengths could
// possibly score.
func ceilingRatio(la, lb int) int {
	lensum := la + lb
	if lensum == 0 {
		return 100
	}
	diff := la - lb
	if diff < 0 {
		diff = -diff
	}
	return (lensum - diff) * 100 / lensum
}
