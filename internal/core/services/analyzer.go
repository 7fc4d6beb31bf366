package services

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/custodia-labs/quarry-cli/internal/core/domain"
	"github.com/custodia-labs/quarry-cli/internal/logger"
)

// Intent pattern groups, checked in priority order. Enumeration comes
// first: missing a member of a "list all" answer is worse than a slightly
// off classification elsewhere.
var (
	enumerationPatterns = compilePatterns(
		`\blist\s+all\b`,
		`\bhow\s+many\b`,
		`\bwhat\s+are\s+all\b`,
		`\benumerate\b`,
		`\bshow\s+me\s+all\b`,
		`\bcomplete\s+list\b`,
		`\ball\s+of\s+the\b`,
		`\bgive\s+me\s+all\b`,
	)

	codeSearchPatterns = compilePatterns(
		`\bshow\s+me.*code\b`,
		`\bfind.*function\b`,
		`\bwhere\s+is.*implementation\b`,
		`\bcode\s+for\b`,
		`\bfind.*method\b`,
		`\bimplementation\s+of\b`,
		`\bhow\s+.*is.*implemented\b`,
		`\bclass.*definition\b`,
		`\bfunction.*signature\b`,
	)

	comparisonPatterns = compilePatterns(
		`\bdifference\s+between\b`,
		`\bcompare\b`,
		`\bvs\.`,
		`\bversus\b`,
		`\bvs\b`,
		`\bwhat\s+is\s+different\b`,
		`\bsimilarities\s+and\s+differences\b`,
	)

	explanationPatterns = compilePatterns(
		`\bwhat\s+is\b`,
		`\bexplain\b`,
		`\bhow\s+does\b`,
		`\bwhy\b`,
		`\bdescribe\b`,
		`\bwhat\s+does\b`,
		`\btell\s+me\s+about\b`,
		`\bwhat\s+are\s+the\b`,
	)
)

func compilePatterns(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, e := range exprs {
		out = append(out, regexp.MustCompile(e))
	}
	return out
}

// QueryAnalyzer classifies a query's intent so the retrieval pipeline can
// pick expansion, content-type and synthesis strategies per query shape.
type QueryAnalyzer struct{}

// NewQueryAnalyzer creates a query analyzer.
func NewQueryAnalyzer() *QueryAnalyzer {
	return &QueryAnalyzer{}
}

// Analyze classifies the query. Rules run in priority order, enumeration
// first; a query matching no group is factual with low confidence.
func (a *QueryAnalyzer) Analyze(query string) (*domain.QueryAnalysis, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("analyze query: %w", domain.ErrInvalidInput)
	}

	q := strings.ToLower(query)

	if n := countMatches(q, enumerationPatterns); n > 0 {
		return newAnalysis(domain.IntentEnumeration, 0.90, n,
			extractKeywords(q, enumerationPatterns),
			[]string{"doc"}, true, true), nil
	}
	if n := countMatches(q, codeSearchPatterns); n > 0 {
		return newAnalysis(domain.IntentCodeSearch, 0.90, n,
			extractKeywords(q, codeSearchPatterns),
			[]string{"code", "doc"}, false, true), nil
	}
	if n := countMatches(q, comparisonPatterns); n > 0 {
		return newAnalysis(domain.IntentComparison, 0.85, n,
			extractKeywords(q, comparisonPatterns),
			[]string{"doc", "code"}, true, true), nil
	}
	if n := countMatches(q, explanationPatterns); n > 0 {
		return newAnalysis(domain.IntentExplanation, 0.80, n,
			extractKeywords(q, explanationPatterns),
			[]string{"doc"}, true, true), nil
	}

	return newAnalysis(domain.IntentFactual, 0.50, 0,
		extractKeywords(q, explanationPatterns),
		[]string{"doc", "code"}, false, true), nil
}

// newAnalysis builds the result. Each distinct matching pattern adds 0.05
// confidence on top of the intent's base, capped at 1.0.
func newAnalysis(intent domain.QueryIntent, base float64, matches int, keywords []string, contentTypes []string, expand, rerank bool) *domain.QueryAnalysis {
	conf := base
	if matches > 0 {
		conf = base + float64(matches)*0.05
	}
	if conf > 1.0 {
		conf = 1.0
	}
	analysis := &domain.QueryAnalysis{
		Intent:         intent,
		Confidence:     conf,
		Keywords:       keywords,
		ContentTypes:   contentTypes,
		NeedsExpansion: expand,
		NeedsReranking: rerank,
	}
	logger.Debug("query intent: %s (confidence %.2f, keywords %v)", intent, conf, keywords)
	return analysis
}

// countMatches counts how many distinct patterns match the text.
func countMatches(text string, patterns []*regexp.Regexp) int {
	n := 0
	for _, p := range patterns {
		if p.MatchString(text) {
			n++
		}
	}
	return n
}

// extractKeywords collects the matched phrases, deduplicated in order.
func extractKeywords(text string, patterns []*regexp.Regexp) []string {
	var keywords []string
	seen := make(map[string]bool)
	for _, p := range patterns {
		for _, m := range p.FindAllString(text, -1) {
			if !seen[m] {
				seen[m] = true
				keywords = append(keywords, m)
			}
		}
	}
	return keywords
}
