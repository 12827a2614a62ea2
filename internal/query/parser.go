package query

import (
	"strconv"
	"strings"

	"github.com/steveyegge/taskql/internal/predicate"
	"github.com/steveyegge/taskql/internal/task"
)

// SortKeys are the keys accepted by "sort by".
var SortKeys = map[string]bool{
	"due":         true,
	"scheduled":   true,
	"start":       true,
	"priority":    true,
	"urgency":     true,
	"heading":     true,
	"description": true,
	"status":      true,
	"path":        true,
	"id":          true,
}

// GroupKeys are the keys accepted by "group by".
var GroupKeys = map[string]bool{
	"priority":  true,
	"status":    true,
	"heading":   true,
	"path":      true,
	"folder":    true,
	"filename":  true,
	"due":       true,
	"scheduled": true,
	"start":     true,
	"tags":      true,
	"recurring": true,
}

// Binding power of the infix operators. NOT is a prefix operator and binds
// tighter than both.
var precedences = map[TokenType]int{
	OR:  1,
	AND: 2,
}

// Parse parses query text into an AST. Lines are independent instructions:
// sort, group, limit, and explain directives, comments, or filter
// expressions. The first malformed line stops parsing with a *ParseError.
func Parse(text string) (*AST, error) {
	ast := &AST{Source: text}

	for i, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(strings.TrimSuffix(raw, "\r"))
		if line == "" || line == "#" || strings.HasPrefix(line, "# ") {
			continue
		}

		p := &parser{
			tokens: NewLexer(line).Tokenize(),
			line:   i + 1,
			query:  line,
		}

		var err error
		switch p.keyword(0) {
		case "sort":
			err = p.parseSort(ast)
		case "group":
			err = p.parseGroup(ast)
		case "limit":
			err = p.parseLimit(ast)
		case "explain":
			if len(p.tokens) == 2 {
				ast.Explain = true
				continue
			}
			err = p.errorf(ErrorCodeUnexpectedToken, p.tokens[1], "unexpected %q after explain", p.tokens[1].Raw)
		default:
			var node Node
			node, err = p.parseFilter()
			if err == nil {
				ast.Filters = append(ast.Filters, node)
			}
		}
		if err != nil {
			return nil, err
		}
	}

	return ast, nil
}

// parser holds the tokens of a single line.
type parser struct {
	tokens []Token
	pos    int
	line   int
	query  string
}

func (p *parser) peek() Token {
	return p.tokens[p.pos]
}

func (p *parser) advance() Token {
	tok := p.tokens[p.pos]
	if tok.Type != EOF {
		p.pos++
	}
	return tok
}

// keyword returns the lowercased text of tokens[i] when it is a bare word
// (including the word "not"), else "".
func (p *parser) keyword(i int) string {
	if i >= len(p.tokens) {
		return ""
	}
	switch tok := p.tokens[i]; tok.Type {
	case WORD, NOT:
		return strings.ToLower(tok.Literal)
	default:
		return ""
	}
}

func (p *parser) errorf(code ErrorCode, tok Token, format string, args ...any) *ParseError {
	return newParseError(code, p.line, p.query, tok, format, args...)
}

func (p *parser) parseFilter() (Node, error) {
	node, err := p.parseExpression(1)
	if err != nil {
		return nil, err
	}

	switch tok := p.peek(); tok.Type {
	case EOF:
		return node, nil
	case RPAREN:
		return nil, p.errorf(ErrorCodeUnbalancedParen, tok, "unexpected ')' without matching '('")
	default:
		return nil, p.errorf(ErrorCodeUnexpectedToken, tok, "unexpected %q", tok.Raw)
	}
}

// parseExpression implements precedence climbing. The right operand of an
// operator is parsed at one level tighter so equal-precedence chains fold
// to the left.
func (p *parser) parseExpression(minPrec int) (Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	for {
		op := p.peek()
		prec, ok := precedences[op.Type]
		if !ok || prec < minPrec {
			return left, nil
		}
		p.advance()

		right, err := p.parseExpression(prec + 1)
		if err != nil {
			return nil, err
		}

		if op.Type == AND {
			left = &And{Left: left, Right: right}
		} else {
			left = &Or{Left: left, Right: right}
		}
	}
}

func (p *parser) parseUnary() (Node, error) {
	tok := p.peek()

	switch tok.Type {
	case NOT:
		p.advance()
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Not{Inner: inner}, nil
	case LPAREN:
		p.advance()
		node, err := p.parseExpression(1)
		if err != nil {
			return nil, err
		}
		if p.peek().Type != RPAREN {
			return nil, p.errorf(ErrorCodeUnbalancedParen, tok, "missing ')' for '(' at position %d", tok.Position)
		}
		p.advance()
		return node, nil
	case RPAREN:
		return nil, p.errorf(ErrorCodeUnbalancedParen, tok, "unexpected ')' without matching '('")
	case AND, OR:
		return nil, p.errorf(ErrorCodeMissingOperand, tok, "missing filter before %s", strings.ToUpper(tok.Literal))
	case EOF:
		return nil, p.errorf(ErrorCodeMissingOperand, tok, "missing filter at end of expression")
	case ILLEGAL:
		return nil, p.errorf(ErrorCodeUnterminatedString, tok, "unterminated string %s", tok.Raw)
	default:
		return p.parseAtom()
	}
}

// parseAtom collects the words of one filter condition and classifies it
// by its first word. Inside an atom "not" is an ordinary word.
func (p *parser) parseAtom() (Node, error) {
	a := &atom{parser: p}
	for {
		tok := p.peek()
		if tok.Type == WORD || tok.Type == STRING || tok.Type == REGEX || (tok.Type == NOT && len(a.toks) > 0) {
			a.toks = append(a.toks, p.advance())
			continue
		}
		if tok.Type == ILLEGAL {
			return nil, p.errorf(ErrorCodeUnterminatedString, tok, "unterminated string %s", tok.Raw)
		}
		a.end = tok
		break
	}
	return a.parse()
}

// atom is the token run of a single filter condition.
type atom struct {
	parser *parser
	toks   []Token
	end    Token // token following the atom, for errors at its end
}

func (a *atom) word(i int) string {
	if i >= len(a.toks) {
		return ""
	}
	switch tok := a.toks[i]; tok.Type {
	case WORD, NOT:
		return strings.ToLower(tok.Literal)
	default:
		return ""
	}
}

func (a *atom) tok(i int) Token {
	if i >= len(a.toks) {
		return a.end
	}
	return a.toks[i]
}

// rest joins the literals from index i onward.
func (a *atom) rest(i int) string {
	if i >= len(a.toks) {
		return ""
	}
	parts := make([]string, 0, len(a.toks)-i)
	for _, tok := range a.toks[i:] {
		parts = append(parts, tok.Literal)
	}
	return strings.Join(parts, " ")
}

func (a *atom) errorf(code ErrorCode, i int, format string, args ...any) *ParseError {
	return a.parser.errorf(code, a.tok(i), format, args...)
}

// single returns the value at index i and requires it to be the last token.
func (a *atom) single(i int, what string) (string, error) {
	if i >= len(a.toks) {
		return "", a.errorf(ErrorCodeBadValue, i, "missing %s", what)
	}
	if i+1 < len(a.toks) {
		return "", a.errorf(ErrorCodeUnexpectedToken, i+1, "unexpected %q after %s", a.toks[i+1].Raw, what)
	}
	return a.toks[i].Literal, nil
}

func (a *atom) parse() (Node, error) {
	first := a.word(0)
	switch first {
	case "done":
		if len(a.toks) > 1 {
			return nil, a.errorf(ErrorCodeUnexpectedToken, 1, "unexpected %q after done", a.toks[1].Raw)
		}
		return &Leaf{Kind: KindDone}, nil
	case "status.type", "status":
		return a.parseStatus()
	case "priority":
		return a.parsePriority()
	case "due", "scheduled", "start", "starts":
		return a.parseDate()
	case "has", "no":
		return a.parsePresence()
	case "tag", "tags":
		return a.parseText(KindTag, 1)
	case "heading":
		return a.parseText(KindHeading, 1)
	case "description":
		return a.parseText(KindDescription, 1)
	case "path":
		return a.parseText(KindPath, 1)
	case "is":
		return a.parseIs()
	case "urgency":
		return a.parseUrgency()
	case "regex":
		return a.parseRegex(string(predicate.TargetDescription), 0)
	}

	tok := a.tok(0)
	err := a.errorf(ErrorCodeUnknownFilter, 0, "unknown filter %q", tok.Raw)
	if first != "" {
		err.Suggestion = suggest(first, filterKeywords)
	}
	return nil, err
}

// status.type is [not] <type>
func (a *atom) parseStatus() (Node, error) {
	if a.word(1) != "is" {
		return nil, a.errorf(ErrorCodeBadOperator, 1, "expected 'is' after %s", a.toks[0].Raw)
	}

	op, i := OpIs, 2
	if a.word(2) == "not" {
		op, i = OpIsNot, 3
	}

	value, err := a.single(i, "status type")
	if err != nil {
		return nil, err
	}
	st, perr := task.ParseStatusType(value)
	if perr != nil {
		return nil, a.errorf(ErrorCodeBadValue, i, "%v", perr)
	}
	return &Leaf{Kind: KindStatus, Operator: op, Value: string(st)}, nil
}

// priority is [above|below] <name>, with "is" optional before above/below.
func (a *atom) parsePriority() (Node, error) {
	i := 1
	if a.word(i) == "is" {
		i++
	}

	op := OpIs
	switch a.word(i) {
	case "above":
		op = OpAbove
		i++
	case "below":
		op = OpBelow
		i++
	default:
		if i == 1 {
			return nil, a.errorf(ErrorCodeBadOperator, 1, "expected 'is', 'above', or 'below' after priority")
		}
	}

	value, err := a.single(i, "priority")
	if err != nil {
		return nil, err
	}
	if _, perr := task.ParsePriority(value); perr != nil {
		return nil, a.errorf(ErrorCodeBadValue, i, "%v", perr)
	}
	return &Leaf{Kind: KindPriority, Operator: op, Value: strings.ToLower(value)}, nil
}

// <field> [before|after|on] <date>
func (a *atom) parseDate() (Node, error) {
	field, _ := task.ParseDateField(a.word(0))

	op, i := OpOn, 1
	switch a.word(1) {
	case "before":
		op, i = OpBefore, 2
	case "after":
		op, i = OpAfter, 2
	case "on":
		op, i = OpOn, 2
	}

	value, err := a.single(i, "date")
	if err != nil {
		return nil, err
	}
	if _, derr := predicate.ParseDateValue(value); derr != nil {
		code := ErrorCodeBadValue
		if i == 1 {
			code = ErrorCodeBadOperator
		}
		return nil, a.errorf(code, i, "%v", derr)
	}
	return &Leaf{Kind: KindDate, Operator: op, Field: string(field), Value: strings.ToLower(value)}, nil
}

// has tags | no tags | has <field> date | no <field> date
func (a *atom) parsePresence() (Node, error) {
	op := OpHas
	if a.word(0) == "no" {
		op = OpNo
	}

	switch a.word(1) {
	case "tag", "tags":
		if len(a.toks) > 2 {
			return nil, a.errorf(ErrorCodeUnexpectedToken, 2, "unexpected %q after %s", a.toks[2].Raw, a.toks[1].Raw)
		}
		return &Leaf{Kind: KindTag, Operator: op}, nil
	}

	field, ok := task.ParseDateField(a.word(1))
	if !ok {
		return nil, a.errorf(ErrorCodeBadValue, 1, "expected tags, due, scheduled, or start after %s", a.toks[0].Raw)
	}
	if a.word(2) != "date" {
		return nil, a.errorf(ErrorCodeBadValue, 2, "expected 'date' after %s", a.tok(1).Raw)
	}
	if len(a.toks) > 3 {
		return nil, a.errorf(ErrorCodeUnexpectedToken, 3, "unexpected %q after date", a.toks[3].Raw)
	}
	return &Leaf{Kind: KindDate, Operator: op, Field: string(field)}, nil
}

// <field> include[s] <text> | <field> do[es] not include[s] <text> |
// <field> regex ...
func (a *atom) parseText(kind Kind, i int) (Node, error) {
	op := OpIncludes
	switch w := a.word(i); {
	case w == "include" || w == "includes":
		i++
	case (w == "does" || w == "do") && a.word(i+1) == "not" && (a.word(i+2) == "include" || a.word(i+2) == "includes"):
		op = OpNotIncludes
		i += 3
	case w == "regex":
		return a.parseRegex(a.word(0), i)
	default:
		return nil, a.errorf(ErrorCodeBadOperator, i, "expected 'includes', 'does not include', or 'regex' after %s", a.toks[0].Raw)
	}

	value := a.rest(i)
	if value == "" {
		return nil, a.errorf(ErrorCodeBadValue, i, "missing value after %s", a.toks[i-1].Raw)
	}
	return &Leaf{Kind: kind, Operator: op, Value: value}, nil
}

// [<target>] regex matches /p/ | [<target>] regex does not match /p/.
// a.toks[i] is the word "regex".
func (a *atom) parseRegex(field string, i int) (Node, error) {
	target, ok := predicate.ParseRegexTarget(field)
	if !ok {
		return nil, a.errorf(ErrorCodeBadValue, 0, "regex cannot be applied to %q", field)
	}

	op := OpMatches
	switch w := a.word(i + 1); {
	case w == "matches" || w == "match":
		i += 2
	case (w == "does" || w == "do") && a.word(i+2) == "not" && (a.word(i+3) == "match" || a.word(i+3) == "matches"):
		op = OpNotMatches
		i += 4
	default:
		return nil, a.errorf(ErrorCodeBadOperator, i+1, "expected 'matches' or 'does not match' after regex")
	}

	value, err := a.single(i, "pattern")
	if err != nil {
		return nil, err
	}
	return &Leaf{Kind: KindRegex, Operator: op, Field: string(target), Value: value}, nil
}

// is [not] blocked|blocking|recurring
func (a *atom) parseIs() (Node, error) {
	op, i := OpIs, 1
	if a.word(1) == "not" {
		op, i = OpIsNot, 2
	}

	w := a.word(i)
	var kind Kind
	switch w {
	case "blocked", "blocking":
		kind = KindDependency
	case "recurring":
		kind = KindRecurrence
	default:
		return nil, a.errorf(ErrorCodeBadValue, i, "expected blocked, blocking, or recurring after %s", a.tok(i-1).Raw)
	}
	if len(a.toks) > i+1 {
		return nil, a.errorf(ErrorCodeUnexpectedToken, i+1, "unexpected %q after %s", a.toks[i+1].Raw, w)
	}
	return &Leaf{Kind: kind, Operator: op, Value: w}, nil
}

// urgency [is] above|below <number>
func (a *atom) parseUrgency() (Node, error) {
	i := 1
	if a.word(i) == "is" {
		i++
	}

	var op Operator
	switch a.word(i) {
	case "above":
		op = OpAbove
	case "below":
		op = OpBelow
	default:
		return nil, a.errorf(ErrorCodeBadOperator, i, "expected 'above' or 'below' after urgency")
	}

	value, err := a.single(i+1, "urgency threshold")
	if err != nil {
		return nil, err
	}
	if _, perr := strconv.ParseFloat(value, 64); perr != nil {
		return nil, a.errorf(ErrorCodeBadValue, i+1, "invalid urgency threshold %q", value)
	}
	return &Leaf{Kind: KindUrgency, Operator: op, Value: value}, nil
}

// sort by <key> [reverse]
func (p *parser) parseSort(ast *AST) error {
	if p.keyword(1) != "by" {
		return p.errorf(ErrorCodeBadSortKey, p.tokens[1], "expected 'by' after sort")
	}

	keyTok := p.tokens[2]
	key := p.keyword(2)
	if !SortKeys[key] {
		err := p.errorf(ErrorCodeBadSortKey, keyTok, "unknown sort key %q", keyTok.Raw)
		if key != "" {
			err.Suggestion = suggest(key, sortedKeys(SortKeys))
		}
		return err
	}

	spec := &SortSpec{Key: key}
	next := 3
	if p.keyword(next) == "reverse" {
		spec.Reverse = true
		next++
	}
	if tok := p.tokens[next]; tok.Type != EOF {
		return p.errorf(ErrorCodeUnexpectedToken, tok, "unexpected %q in sort directive", tok.Raw)
	}

	if ast.Sort != nil && *ast.Sort != *spec {
		return p.errorf(ErrorCodeConflictingDirective, keyTok, "conflicting sort directive: already sorting by %s", ast.Sort.Key)
	}
	ast.Sort = spec
	return nil
}

// group by <key>
func (p *parser) parseGroup(ast *AST) error {
	if p.keyword(1) != "by" {
		return p.errorf(ErrorCodeBadGroupKey, p.tokens[1], "expected 'by' after group")
	}

	keyTok := p.tokens[2]
	key := p.keyword(2)
	if !GroupKeys[key] {
		err := p.errorf(ErrorCodeBadGroupKey, keyTok, "unknown group key %q", keyTok.Raw)
		if key != "" {
			err.Suggestion = suggest(key, sortedKeys(GroupKeys))
		}
		return err
	}
	if tok := p.tokens[3]; tok.Type != EOF {
		return p.errorf(ErrorCodeUnexpectedToken, tok, "unexpected %q in group directive", tok.Raw)
	}

	if ast.Group != nil && ast.Group.Key != key {
		return p.errorf(ErrorCodeConflictingDirective, keyTok, "conflicting group directive: already grouping by %s", ast.Group.Key)
	}
	ast.Group = &GroupSpec{Key: key}
	return nil
}

// limit <n> | limit to <n> tasks
func (p *parser) parseLimit(ast *AST) error {
	i := 1
	if p.keyword(i) == "to" {
		i++
	}

	numTok := p.tokens[i]
	if numTok.Type != WORD {
		return p.errorf(ErrorCodeBadLimit, numTok, "missing limit count")
	}
	n, err := strconv.Atoi(numTok.Literal)
	if err != nil || n <= 0 {
		return p.errorf(ErrorCodeBadLimit, numTok, "limit must be a positive integer, got %q", numTok.Raw)
	}

	i++
	if w := p.keyword(i); w == "task" || w == "tasks" {
		i++
	}
	if tok := p.tokens[i]; tok.Type != EOF {
		return p.errorf(ErrorCodeUnexpectedToken, tok, "unexpected %q in limit directive", tok.Raw)
	}

	if ast.Limit != nil && *ast.Limit != n {
		return p.errorf(ErrorCodeConflictingDirective, numTok, "conflicting limit directive: already limited to %d", *ast.Limit)
	}
	ast.Limit = &n
	return nil
}
