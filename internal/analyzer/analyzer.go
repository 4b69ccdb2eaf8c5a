package analyzer

import (
	"regexp"
	"strings"
)

var wordPattern = regexp.MustCompile(`\b\w+\b`)

// stopWords are filtered out during keyword extraction
var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {},
	"in": {}, "on": {}, "at": {}, "to": {}, "for": {}, "of": {},
	"with": {}, "by": {}, "is": {}, "are": {}, "was": {}, "were": {},
}

// complexity indicator tiers; the highest matching tier wins
var complexityTiers = []struct {
	level      int
	indicators []string
}{
	{2, []string{"fix", "update", "change", "modify", "add"}},
	{4, []string{"create", "build", "implement", "develop", "design"}},
	{7, []string{"architecture", "system", "integrate", "optimize", "refactor"}},
	{9, []string{"migration", "security audit", "performance", "scale"}},
}

// ExtractKeywords tokenizes text into lowercase keywords, dropping stop words
// and tokens of length <= 2. Duplicates are removed, first occurrence order kept.
func ExtractKeywords(text string) []string {
	words := wordPattern.FindAllString(strings.ToLower(text), -1)

	seen := make(map[string]struct{}, len(words))
	keywords := make([]string, 0, len(words))
	for _, word := range words {
		if len(word) <= 2 {
			continue
		}
		if _, stop := stopWords[word]; stop {
			continue
		}
		if _, dup := seen[word]; dup {
			continue
		}
		seen[word] = struct{}{}
		keywords = append(keywords, word)
	}
	return keywords
}

// EstimateComplexity scores task complexity on a 1-10 scale from lexical cues.
// The highest matching indicator tier sets the base; long descriptions and
// heavily conjoined ones bump it by one each. Deterministic.
func EstimateComplexity(text string) int {
	lower := strings.ToLower(text)
	complexity := 1

	for _, tier := range complexityTiers {
		for _, indicator := range tier.indicators {
			if strings.Contains(lower, indicator) {
				if tier.level > complexity {
					complexity = tier.level
				}
				break
			}
		}
	}

	if len(strings.Fields(text)) > 50 {
		complexity++
	}
	if strings.Count(lower, "and") > 2 {
		complexity++
	}

	if complexity > 10 {
		complexity = 10
	}
	return complexity
}
