package domain

// QueryIntent is the classified purpose of a query. It drives which
// retrieval and synthesis strategy the pipeline uses.
type QueryIntent string

// Intents in classification precedence order. ENUMERATION outranks
// CODE_SEARCH outranks COMPARISON outranks EXPLANATION; FACTUAL is the
// always-matching default.
const (
	IntentEnumeration QueryIntent = "enumeration"
	IntentCodeSearch  QueryIntent = "code_search"
	IntentComparison  QueryIntent = "comparison"
	IntentExplanation QueryIntent = "explanation"
	IntentFactual     QueryIntent = "factual"
)

// QueryAnalysis is the ephemeral result of classifying one query.
type QueryAnalysis struct {
	// Intent is the classified purpose of the query.
	Intent QueryIntent

	// Confidence is the classification confidence in [0, 1].
	Confidence float64

	// Keywords are the pattern phrases that matched in the query.
	Keywords []string

	// ContentTypes are the content categories worth searching for this
	// intent ("doc", "code").
	ContentTypes []string

	// NeedsExpansion suggests section-aware expansion downstream.
	NeedsExpansion bool

	// NeedsReranking suggests cross-encoder reranking downstream.
	NeedsReranking bool
}
