package sponsor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func setOf(names ...string) *ReferenceSet {
	return NewSet(names...)
}

func TestHasExact(t *testing.T) {
	set := setOf("Google LLC", "Meta Platforms Inc")

	assert.True(t, set.HasExact("google"))
	assert.True(t, set.HasExact("Google, Inc."))
	assert.True(t, set.HasExact("META PLATFORMS"))
	assert.False(t, set.HasExact("Googol"))
	assert.False(t, set.HasExact(""))
}

func TestMatchesApprox_NearMisses(t *testing.T) {
	set := setOf("Google LLC")

	// One missing letter: ratio (5+6-1)*100/11 = 90.
	assert.True(t, set.MatchesApprox("Googl Inc", 90))
	// A substitution costs two edits: ratio (6+6-2)*100/12 = 83.
	assert.False(t, set.MatchesApprox("Goggle", 90))
	assert.True(t, set.MatchesApprox("Goggle", 80))
}

func TestMatchesApprox_ExactShortCircuit(t *testing.T) {
	set := setOf("Google LLC")
	assert.True(t, set.MatchesApprox("Google", 100))
}

func TestMatchesApprox_ThresholdMonotonic(t *testing.T) {
	set := setOf("Databricks")
	name := "Databrick"

	matchedAt := -1
	for threshold := 100; threshold >= 50; threshold-- {
		if set.MatchesApprox(name, threshold) {
			matchedAt = threshold
		} else if matchedAt != -1 {
			t.Fatalf("matched at %d but not at looser threshold %d", matchedAt, threshold)
		}
	}
	assert.NotEqual(t, -1, matchedAt, "near-identical name should match at some threshold")
}

func TestMatchesApprox_EmptyCases(t *testing.T) {
	assert.False(t, setOf().MatchesApprox("Google", 90))
	assert.False(t, setOf("Google").MatchesApprox("", 90))
	assert.False(t, setOf("Google").MatchesApprox("Inc", 90), "input that normalizes away never matches")
}

func TestRatio(t *testing.T) {
	assert.Equal(t, 100, ratio("google", "google"))
	assert.Equal(t, 0, ratio("abc", "xyz"))
	assert.Equal(t, 100, ratio("", ""))
	// Pure insertion of 2 runes: (6+8-2)*100/14 = 85.
	assert.Equal(t, 85, ratio("google", "googlexx"))
}

func TestCeilingRatio_BoundsRatio(t *testing.T) {
	pairs := [][2]string{
		{"google", "googl"},
		{"a", "abcdef"},
		{"databricks", "datadog"},
	}
	for _, p := range pairs {
		la, lb := len([]rune(p[0])), len([]rune(p[1]))
		assert.GreaterOrEqual(t, ceilingRatio(la, lb), ratio(p[0], p[1]),
			"ceiling must never exclude an attainable ratio for %q/%q", p[0], p[1])
	}
}
