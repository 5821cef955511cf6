package models

import "time"

// Context lookup outcome constants. Matched orders are reported as "order_<k>".
const (
	OutcomeUnigram = "unigram"
	OutcomeEmpty   = "empty"
)

// UnknownKeyword stands in for context keywords outside the model's
// vocabulary when lookups are recorded.
const UnknownKeyword = "(unknown)"

// ContextLookup is a per-keyword count of recommend queries by outcome.
// Keyword is the last element of the query context, or UnknownKeyword.
type ContextLookup struct {
	Keyword    string
	Outcome    string
	Count      int64
	LastSeenAt time.Time
}
