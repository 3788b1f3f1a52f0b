package extract

import (
	"sort"
	"strings"
)

// NormalizeEmotion canonicalizes an expression label for comparison.
// Labels are matched case-insensitively; blank labels collapse to "".
func NormalizeEmotion(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}

// ExpressionCoverage counts occurrences of each expression label, keyed by
// normalized label. Blank labels are dropped.
func ExpressionCoverage(labels []string) map[string]int {
	coverage := make(map[string]int)
	for _, label := range labels {
		normalized := NormalizeEmotion(label)
		if normalized == "" {
			continue
		}
		coverage[normalized]++
	}
	return coverage
}

// NewExpressions returns the expression labels present in test but never
// observed in profile, sorted for stable reporting. An empty result means
// the test content stayed within the enrolled expression range.
func NewExpressions(test, profile []string) []string {
	seen := make(map[string]struct{}, len(profile))
	for _, label := range profile {
		if normalized := NormalizeEmotion(label); normalized != "" {
			seen[normalized] = struct{}{}
		}
	}

	var novel []string
	reported := make(map[string]struct{})
	for _, label := range test {
		normalized := NormalizeEmotion(label)
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		if _, ok := reported[normalized]; ok {
			continue
		}
		reported[normalized] = struct{}{}
		novel = append(novel, normalized)
	}
	sort.Strings(novel)
	return novel
}
