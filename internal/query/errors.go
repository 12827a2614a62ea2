package query

import (
	"fmt"
	"strings"
)

// ErrorCode categorizes parse errors for hint lookup.
type ErrorCode int

const (
	ErrorCodeUnknown ErrorCode = iota
	ErrorCodeUnknownFilter
	ErrorCodeBadOperator
	ErrorCodeBadValue
	ErrorCodeMissingOperand
	ErrorCodeUnbalancedParen
	ErrorCodeUnterminatedString
	ErrorCodeUnexpectedToken
	ErrorCodeBadSortKey
	ErrorCodeBadGroupKey
	ErrorCodeConflictingDirective
	ErrorCodeBadLimit
)

// ParseError describes malformed query text. Line is 1-based; Position is
// the byte offset of the offending token within that line.
type ParseError struct {
	Message  string
	Line     int
	Position int
	Query    string // text of the offending line
	Token    string // offending token, if any
	Code     ErrorCode
	// Suggestion is a known keyword close to Token, when one exists.
	Suggestion string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at line %d, position %d: %s", e.Line, e.Position, e.Message)
}

// Hint returns a one-line suggestion for fixing the error, or "".
func (e *ParseError) Hint() string {
	return GetHint(e)
}

// Diagnostic renders the error with the offending line and a caret under
// the problem, followed by the hint when there is one.
func (e *ParseError) Diagnostic() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Query error: %s\n", e.Message)
	fmt.Fprintf(&sb, " --> line %d\n\n", e.Line)
	fmt.Fprintf(&sb, "     %s\n", e.Query)

	caretLen := len(e.Token)
	if caretLen == 0 {
		caretLen = 1
	}
	fmt.Fprintf(&sb, "     %s%s\n", strings.Repeat(" ", e.Position), strings.Repeat("^", caretLen))

	if hint := e.Hint(); hint != "" {
		fmt.Fprintf(&sb, "\n  hint: %s\n", hint)
	}

	return sb.String()
}

func newParseError(code ErrorCode, line int, query string, tok Token, format string, args ...any) *ParseError {
	return &ParseError{
		Message:  fmt.Sprintf(format, args...),
		Line:     line,
		Position: tok.Position,
		Query:    query,
		Token:    tok.Raw,
		Code:     code,
	}
}
