package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/quarry-cli/internal/core/domain"
)

func TestQueryAnalyzer_Enumeration(t *testing.T) {
	a := NewQueryAnalyzer()

	analysis, err := a.Analyze("list all supported databases")
	require.NoError(t, err)

	assert.Equal(t, domain.IntentEnumeration, analysis.Intent)
	assert.InDelta(t, 0.95, analysis.Confidence, 0.001)
	assert.Equal(t, []string{"doc"}, analysis.ContentTypes)
	assert.True(t, analysis.NeedsExpansion)
	assert.True(t, analysis.NeedsReranking)
	assert.Contains(t, analysis.Keywords, "list all")
}

func TestQueryAnalyzer_CodeSearch(t *testing.T) {
	a := NewQueryAnalyzer()

	analysis, err := a.Analyze("show me the code for the retry loop")
	require.NoError(t, err)

	assert.Equal(t, domain.IntentCodeSearch, analysis.Intent)
	assert.Equal(t, []string{"code", "doc"}, analysis.ContentTypes)
	assert.False(t, analysis.NeedsExpansion)
}

func TestQueryAnalyzer_Comparison(t *testing.T) {
	a := NewQueryAnalyzer()

	analysis, err := a.Analyze("what is the difference between soft and hard delete")
	require.NoError(t, err)

	assert.Equal(t, domain.IntentComparison, analysis.Intent)
	assert.True(t, analysis.NeedsExpansion)
}

func TestQueryAnalyzer_Explanation(t *testing.T) {
	a := NewQueryAnalyzer()

	analysis, err := a.Analyze("explain how the indexing pipeline works")
	require.NoError(t, err)

	assert.Equal(t, domain.IntentExplanation, analysis.Intent)
	assert.Equal(t, []string{"doc"}, analysis.ContentTypes)
}

func TestQueryAnalyzer_FactualDefault(t *testing.T) {
	a := NewQueryAnalyzer()

	analysis, err := a.Analyze("default batch size")
	require.NoError(t, err)

	assert.Equal(t, domain.IntentFactual, analysis.Intent)
	assert.InDelta(t, 0.5, analysis.Confidence, 0.001)
	assert.False(t, analysis.NeedsExpansion)
	assert.True(t, analysis.NeedsReranking)
}

func TestQueryAnalyzer_PriorityOrder(t *testing.T) {
	a := NewQueryAnalyzer()

	// Matches both enumeration ("list all") and explanation ("what are
	// the"); enumeration wins.
	analysis, err := a.Analyze("what are the options? list all of them")
	require.NoError(t, err)
	assert.Equal(t, domain.IntentEnumeration, analysis.Intent)
}

func TestQueryAnalyzer_ConfidenceStacksPerPattern(t *testing.T) {
	a := NewQueryAnalyzer()

	// Two distinct enumeration patterns: "list all" and "how many".
	analysis, err := a.Analyze("list all commands and how many flags each has")
	require.NoError(t, err)
	assert.Equal(t, domain.IntentEnumeration, analysis.Intent)
	assert.InDelta(t, 1.0, analysis.Confidence, 0.001)
}

func TestQueryAnalyzer_EmptyQuery(t *testing.T) {
	a := NewQueryAnalyzer()

	_, err := a.Analyze("")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = a.Analyze("   \t\n")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestQueryAnalyzer_CaseInsensitive(t *testing.T) {
	a := NewQueryAnalyzer()

	analysis, err := a.Analyze("LIST ALL the endpoints")
	require.NoError(t, err)
	assert.Equal(t, domain.IntentEnumeration, analysis.Intent)
}
