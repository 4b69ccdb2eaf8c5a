package analyzer

import (
	"strings"
	"testing"
)

func TestExtractKeywords(t *testing.T) {
	keywords := ExtractKeywords("Create a secure authentication system with database integration")

	want := []string{"create", "secure", "authentication", "system", "database", "integration"}
	if len(keywords) != len(want) {
		t.Fatalf("Expected %d keywords, got %d: %v", len(want), len(keywords), keywords)
	}
	for i, kw := range want {
		if keywords[i] != kw {
			t.Errorf("Expected keyword %q at position %d, got %q", kw, i, keywords[i])
		}
	}
}

func TestExtractKeywordsFiltersStopWordsAndShortTokens(t *testing.T) {
	keywords := ExtractKeywords("to do or not to do it is up to me")
	for _, kw := range keywords {
		if len(kw) <= 2 {
			t.Errorf("Short token %q should have been dropped", kw)
		}
		if kw == "the" || kw == "is" || kw == "to" || kw == "or" {
			t.Errorf("Stop word %q should have been dropped", kw)
		}
	}
}

func TestExtractKeywordsEmptyInput(t *testing.T) {
	if keywords := ExtractKeywords(""); len(keywords) != 0 {
		t.Errorf("Expected no keywords for empty input, got %v", keywords)
	}
}

func TestExtractKeywordsDeduplicates(t *testing.T) {
	keywords := ExtractKeywords("debug debug debug the debugger")
	counts := make(map[string]int)
	for _, kw := range keywords {
		counts[kw]++
	}
	if counts["debug"] != 1 {
		t.Errorf("Expected one occurrence of 'debug', got %d", counts["debug"])
	}
}

func TestEstimateComplexityTiers(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"hello there", 1},
		{"fix the typo", 2},
		{"create a login page", 4},
		{"refactor the module", 7},
		{"plan the data migration", 9},
		{"fix then refactor everything", 7}, // max tier wins, not cumulative
	}

	for _, tt := range tests {
		if got := EstimateComplexity(tt.text); got != tt.want {
			t.Errorf("EstimateComplexity(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestEstimateComplexityBumps(t *testing.T) {
	// 51+ words adds one
	long := strings.Repeat("word ", 60) + "fix"
	if got := EstimateComplexity(long); got != 3 {
		t.Errorf("Expected complexity 3 for long simple task, got %d", got)
	}

	// more than two "and" occurrences adds one
	conjoined := "fix this and that and those and these"
	if got := EstimateComplexity(conjoined); got != 3 {
		t.Errorf("Expected complexity 3 for conjoined task, got %d", got)
	}
}

func TestEstimateComplexityClampedAtTen(t *testing.T) {
	// very-complex base plus both bumps would be 11 without the clamp
	text := strings.Repeat("performance ", 2000) + strings.Repeat("and ", 10)
	if got := EstimateComplexity(text); got != 10 {
		t.Errorf("Expected complexity clamped to 10, got %d", got)
	}
}

func TestEstimateComplexityDeterministic(t *testing.T) {
	text := "design and build a scalable system architecture"
	first := EstimateComplexity(text)
	for i := 0; i < 5; i++ {
		if got := EstimateComplexity(text); got != first {
			t.Fatalf("Complexity not deterministic: %d vs %d", got, first)
		}
	}
}
