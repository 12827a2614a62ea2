package query

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Lexer tokenizes a single filter expression line.
type Lexer struct {
	input string
	pos   int
}

// NewLexer creates a Lexer for one line of query text.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input}
}

// Tokenize returns every token of the input, terminated by EOF.
func (l *Lexer) Tokenize() []Token {
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == EOF {
			return tokens
		}
	}
}

// NextToken reads and returns the next token from the input.
func (l *Lexer) NextToken() Token {
	l.skipWhitespace()

	start := l.pos
	if l.pos >= len(l.input) {
		return Token{Type: EOF, Position: start}
	}

	switch ch := l.input[l.pos]; ch {
	case '(':
		l.pos++
		return Token{Type: LPAREN, Literal: "(", Raw: "(", Position: start}
	case ')':
		l.pos++
		return Token{Type: RPAREN, Literal: ")", Raw: ")", Position: start}
	case '"', '\'':
		return l.readString(ch)
	case '/':
		if tok, ok := l.readRegex(); ok {
			return tok
		}
	}

	word := l.readWord()
	if typ, ok := keywords[strings.ToLower(word)]; ok {
		return Token{Type: typ, Literal: word, Raw: word, Position: start}
	}
	return Token{Type: WORD, Literal: word, Raw: word, Position: start}
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.input) {
		r, size := utf8.DecodeRuneInString(l.input[l.pos:])
		if !unicode.IsSpace(r) {
			return
		}
		l.pos += size
	}
}

// readWord reads up to the next whitespace or parenthesis.
func (l *Lexer) readWord() string {
	start := l.pos
	for l.pos < len(l.input) {
		r, size := utf8.DecodeRuneInString(l.input[l.pos:])
		if unicode.IsSpace(r) || r == '(' || r == ')' {
			break
		}
		l.pos += size
	}
	return l.input[start:l.pos]
}

// readString reads a quoted literal. Backslash escapes the quote character
// and itself. An unterminated literal yields ILLEGAL.
func (l *Lexer) readString(quote byte) Token {
	start := l.pos
	l.pos++ // opening quote

	var sb strings.Builder
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		switch {
		case ch == '\\' && l.pos+1 < len(l.input) && (l.input[l.pos+1] == quote || l.input[l.pos+1] == '\\'):
			sb.WriteByte(l.input[l.pos+1])
			l.pos += 2
		case ch == quote:
			l.pos++
			return Token{Type: STRING, Literal: sb.String(), Raw: l.input[start:l.pos], Position: start}
		default:
			sb.WriteByte(ch)
			l.pos++
		}
	}

	return Token{Type: ILLEGAL, Literal: l.input[start:], Raw: l.input[start:], Position: start}
}

// readRegex reads /pattern/ and any trailing characters up to whitespace
// or a parenthesis (flags, or the rest of a slash-separated path). The
// pattern itself may contain spaces and parentheses. Without a closing
// slash the input is not a regex and ok is false.
func (l *Lexer) readRegex() (Token, bool) {
	start := l.pos
	i := l.pos + 1
	for i < len(l.input) {
		switch l.input[i] {
		case '\\':
			i += 2
			continue
		case '/':
			l.pos = i + 1
			l.readWord()
			raw := l.input[start:l.pos]
			return Token{Type: REGEX, Literal: raw, Raw: raw, Position: start}, true
		}
		i++
	}
	return Token{}, false
}
