package query

import (
	"sort"
	"strings"

	"github.com/agext/levenshtein"
)

// filterKeywords are the words a filter line may start with.
var filterKeywords = []string{
	"done", "status.type", "priority", "due", "scheduled", "start", "starts",
	"has", "no", "tag", "tags", "heading", "is", "urgency", "description",
	"path", "regex",
}

// maxSuggestionDistance bounds how far a typo may be from a keyword for a
// suggestion to be offered.
const maxSuggestionDistance = 2

// suggest returns the candidate closest to word, or "" when none is close.
func suggest(word string, candidates []string) string {
	word = strings.ToLower(word)
	best, bestDist := "", maxSuggestionDistance+1
	for _, c := range candidates {
		if d := levenshtein.Distance(word, c, nil); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

// GetHint returns a single consolidated hint for a parse error.
func GetHint(err *ParseError) string {
	switch err.Code {
	case ErrorCodeUnknownFilter:
		if err.Suggestion != "" {
			return "Did you mean '" + err.Suggestion + "'?"
		}
		return "Filter lines start with one of: " + strings.Join(filterKeywords, ", ")
	case ErrorCodeBadSortKey:
		if err.Suggestion != "" {
			return "Did you mean 'sort by " + err.Suggestion + "'?"
		}
		return "Sort keys: " + strings.Join(sortedKeys(SortKeys), ", ")
	case ErrorCodeBadGroupKey:
		if err.Suggestion != "" {
			return "Did you mean 'group by " + err.Suggestion + "'?"
		}
		return "Group keys: " + strings.Join(sortedKeys(GroupKeys), ", ")
	case ErrorCodeUnbalancedParen:
		return "Every '(' needs a matching ')' on the same line."
	case ErrorCodeUnterminatedString:
		return "Close the quoted value with the same quote character it starts with."
	case ErrorCodeMissingOperand:
		return "AND, OR, and NOT need a filter on each side, e.g. 'done OR priority is high'."
	case ErrorCodeBadLimit:
		return "Write 'limit 10' or 'limit to 10 tasks'."
	case ErrorCodeConflictingDirective:
		return "Keep a single sort by and group by line per query."
	case ErrorCodeBadValue:
		if strings.Contains(strings.ToLower(err.Message), "and") || strings.Contains(strings.ToLower(err.Message), "or") {
			return "Quote values that contain AND, OR, NOT, or parentheses."
		}
		return ""

	// These have messages that are specific enough on their own.
	case ErrorCodeBadOperator, ErrorCodeUnexpectedToken, ErrorCodeUnknown:
		return ""
	}

	return ""
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
