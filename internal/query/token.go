package query

// TokenType identifies the lexical class of a token.
type TokenType int

const (
	ILLEGAL TokenType = iota
	EOF
	WORD   // bare word: priority, is, 2024-01-01, #tag
	STRING // quoted literal, Literal holds the unquoted text
	REGEX  // /pattern/flags, Literal holds the raw text
	LPAREN
	RPAREN
	AND
	OR
	NOT
)

var tokenNames = map[TokenType]string{
	ILLEGAL: "ILLEGAL",
	EOF:     "EOF",
	WORD:    "WORD",
	STRING:  "STRING",
	REGEX:   "REGEX",
	LPAREN:  "(",
	RPAREN:  ")",
	AND:     "AND",
	OR:      "OR",
	NOT:     "NOT",
}

// String returns a human-readable name for the token type.
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return "UNKNOWN"
}

// Token is a lexical token of a filter expression.
type Token struct {
	Type     TokenType
	Literal  string // token text; quotes removed for STRING
	Raw      string // exact source text, including quotes
	Position int    // byte offset of the token within its line
}

// keywords are the boolean operators, matched case-insensitively.
var keywords = map[string]TokenType{
	"and": AND,
	"or":  OR,
	"not": NOT,
}
