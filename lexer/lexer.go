// Package lexer tokenizes Jinja-style template source for the parser. It
// owns no grammar knowledge beyond the shape of the three marker pairs
// ({{ }}, {% %}, {# #}) and the token vocabulary inside them; everything
// else (whitespace-control bookkeeping, raw/verbatim scanning, tag
// dispatch) is the parser's job, reached through the escape hatches below.
package lexer

import (
	"strconv"
	"strings"

	"github.com/dlclark/regexp2"
	"github.com/pkg/errors"

	"github.com/birchmark/jinparse/config"
	"github.com/birchmark/jinparse/token"
)

type state int

const (
	stateText state = iota
	stateBlock
	stateVariable
)

// Lexer tokenizes a template source string one Token at a time.
type Lexer struct {
	source string
	pos    int
	line   int
	col    int

	tags config.Tags

	stack []state
	// lastSignificant is the type of the last non-WHITESPACE token emitted
	// inside the current block/variable, used to disambiguate `/` between
	// division and the start of a regex literal.
	lastSignificant token.Type
	haveLast        bool
}

// New creates a Lexer over source using the given syntax configuration.
func New(source string, syntax config.Syntax) *Lexer {
	if !syntax.Whitespace.KeepTrailingNewline {
		source = strings.TrimSuffix(source, "\n")
		source = strings.TrimSuffix(source, "\r")
	}
	return &Lexer{
		source: source,
		tags:   syntax.Tags,
		stack:  []state{stateText},
	}
}

// Tags returns the delimiter configuration the lexer was constructed with.
func (l *Lexer) Tags() config.Tags { return l.tags }

func (l *Lexer) top() state {
	if len(l.stack) == 0 {
		return stateText
	}
	return l.stack[len(l.stack)-1]
}

func (l *Lexer) push(s state) { l.stack = append(l.stack, s) }

func (l *Lexer) pop() {
	if len(l.stack) > 1 {
		l.stack = l.stack[:len(l.stack)-1]
	}
}

func (l *Lexer) atEnd() bool { return l.pos >= len(l.source) }

func (l *Lexer) rest() string {
	if l.pos >= len(l.source) {
		return ""
	}
	return l.source[l.pos:]
}

func (l *Lexer) pos0() token.Position { return token.Position{Line: l.line, Col: l.col} }

func (l *Lexer) advance(n int) string {
	if n <= 0 {
		return ""
	}
	end := l.pos + n
	if end > len(l.source) {
		end = len(l.source)
	}
	chunk := l.source[l.pos:end]
	for _, c := range chunk {
		if c == '\n' {
			l.line++
			l.col = 0
		} else {
			l.col++
		}
	}
	l.pos = end
	return chunk
}

// BackN rewinds the lexer by count bytes, recomputing line/column from the
// start of the source. It is the lexer escape hatch the parser uses to
// rewind past a raw/verbatim terminator it discovered with ExtractRegex.
func (l *Lexer) BackN(count int) {
	if count <= 0 {
		return
	}
	newPos := l.pos - count
	if newPos < 0 {
		newPos = 0
	}
	l.pos = newPos
	l.line, l.col = 0, 0
	for _, c := range l.source[:l.pos] {
		if c == '\n' {
			l.line++
			l.col = 0
		} else {
			l.col++
		}
	}
}

// RegexMatch is the result of a successful ExtractRegex call. Groups[0] is
// the full match; Groups[1:] are the capture groups in order.
type RegexMatch struct {
	Groups []string
}

// ExtractRegex runs pattern (a .NET/ECMA-flavored regex, compiled with
// regexp2, a backtracking engine, rather than the stdlib's RE2 engine)
// against the remaining input, anchored at the current position.
// On a match it advances the lexer past the matched text and returns the
// captured groups; otherwise it returns (nil, nil) having consumed nothing.
func (l *Lexer) ExtractRegex(pattern string) (*RegexMatch, error) {
	re, err := regexp2.Compile(pattern, regexp2.None)
	if err != nil {
		return nil, errors.Wrapf(err, "compiling regex %q", pattern)
	}
	re.MatchTimeout = 0
	m, err := re.FindStringMatchStartingAt(l.rest(), 0)
	if err != nil {
		return nil, errors.Wrapf(err, "matching regex %q", pattern)
	}
	if m == nil || m.Index != 0 {
		return nil, nil
	}
	groups := make([]string, 0, m.GroupCount())
	for _, g := range m.Groups() {
		groups = append(groups, g.String())
	}
	// m.Length counts runes, but advance/BackN work in bytes; use the byte
	// length of the matched text itself so multi-byte content is handled
	// correctly.
	l.advance(len(m.String()))
	return &RegexMatch{Groups: groups}, nil
}

// NextToken returns the next token, or (nil, nil) at end of input.
func (l *Lexer) NextToken() (*token.Token, error) {
	if l.atEnd() {
		return nil, nil
	}
	switch l.top() {
	case stateBlock:
		return l.lexInDelims(token.BLOCK_END, l.tags.BlockEnd)
	case stateVariable:
		return l.lexInDelims(token.VARIABLE_END, l.tags.VariableEnd)
	default:
		return l.lexText()
	}
}

func (l *Lexer) lexText() (*token.Token, error) {
	rest := l.rest()
	idx, which := findEarliestMarker(rest, l.tags)

	if idx < 0 {
		if rest == "" {
			return nil, nil
		}
		start := l.pos0()
		text := l.advance(len(rest))
		return &token.Token{Type: token.DATA, Value: text, Pos: start}, nil
	}

	if idx > 0 {
		start := l.pos0()
		text := l.advance(idx)
		return &token.Token{Type: token.DATA, Value: text, Pos: start}, nil
	}

	switch which {
	case markerComment:
		return l.lexComment()
	case markerBlock:
		return l.lexOpenMarker(token.BLOCK_START, l.tags.BlockStart, stateBlock)
	default:
		return l.lexOpenMarker(token.VARIABLE_START, l.tags.VariableStart, stateVariable)
	}
}

type marker int

const (
	markerBlock marker = iota
	markerVariable
	markerComment
)

// findEarliestMarker finds the earliest occurrence of any of the three
// opening markers in s, returning its offset (or -1) and which marker it is.
func findEarliestMarker(s string, tags config.Tags) (int, marker) {
	best := -1
	bestMarker := markerBlock
	consider := func(needle string, m marker) {
		if needle == "" {
			return
		}
		if i := strings.Index(s, needle); i >= 0 && (best < 0 || i < best) {
			best = i
			bestMarker = m
		}
	}
	consider(tags.BlockStart, markerBlock)
	consider(tags.VariableStart, markerVariable)
	consider(tags.CommentStart, markerComment)
	return best, bestMarker
}

func (l *Lexer) lexOpenMarker(typ token.Type, marker string, next state) (*token.Token, error) {
	start := l.pos0()
	lexeme := l.advance(len(marker))
	if rest := l.rest(); len(rest) > 0 && (rest[0] == '-' || rest[0] == '+') {
		lexeme += l.advance(1)
	}
	l.push(next)
	l.haveLast = false
	return &token.Token{Type: typ, Value: lexeme, Pos: start}, nil
}

func (l *Lexer) lexComment() (*token.Token, error) {
	start := l.pos0()
	rest := l.rest()
	endIdx := strings.Index(rest, l.tags.CommentEnd)
	if endIdx < 0 {
		return nil, l.errorf("unexpected end of comment")
	}
	raw := l.advance(endIdx + len(l.tags.CommentEnd))
	return &token.Token{Type: token.COMMENT, Value: raw, Pos: start}, nil
}

func (l *Lexer) lexInDelims(closeType token.Type, closeMarker string) (*token.Token, error) {
	rest := l.rest()

	if len(rest) > 0 && (rest[0] == '-' || rest[0] == '+') && strings.HasPrefix(rest[1:], closeMarker) {
		start := l.pos0()
		lexeme := l.advance(1 + len(closeMarker))
		l.pop()
		l.haveLast = false
		return &token.Token{Type: closeType, Value: lexeme, Pos: start}, nil
	}
	if strings.HasPrefix(rest, closeMarker) {
		start := l.pos0()
		lexeme := l.advance(len(closeMarker))
		l.pop()
		l.haveLast = false
		return &token.Token{Type: closeType, Value: lexeme, Pos: start}, nil
	}

	if len(rest) > 0 && isSpace(rest[0]) {
		start := l.pos0()
		n := 0
		for n < len(rest) && isSpace(rest[n]) {
			n++
		}
		ws := l.advance(n)
		return &token.Token{Type: token.WHITESPACE, Value: ws, Pos: start}, nil
	}

	tok, err := l.lexValueToken()
	if err != nil {
		return nil, err
	}
	if tok != nil {
		l.lastSignificant = tok.Type
		l.haveLast = true
	}
	return tok, nil
}

func (l *Lexer) lexValueToken() (*token.Token, error) {
	rest := l.rest()
	start := l.pos0()
	ch := rest[0]

	switch {
	case ch == '"' || ch == '\'':
		return l.lexString(ch)
	case isDigit(ch):
		return l.lexNumber()
	case isIdentStart(ch):
		return l.lexIdentOrKeyword()
	}

	if ch == '/' && !l.expectingOperand() {
		// fall through to division below
	} else if ch == '/' {
		if tok, ok, err := l.tryLexRegex(); err != nil {
			return nil, err
		} else if ok {
			return tok, nil
		}
	}

	if tok := l.lexOperator(); tok != nil {
		return tok, nil
	}
	_ = start
	return nil, l.errorf("unexpected character %q", string(ch))
}

// expectingOperand reports whether the parser position is one where an
// operand (rather than a trailing operator) is grammatically expected,
// which is exactly when `/` should be tried as a regex literal instead of
// division.
func (l *Lexer) expectingOperand() bool {
	if !l.haveLast {
		return true
	}
	return !tokenEndsValue(l.lastSignificant)
}

func tokenEndsValue(t token.Type) bool {
	switch t {
	case token.SYMBOL, token.STRING, token.INT, token.FLOAT, token.BOOLEAN, token.NONE, token.REGEX,
		token.RIGHT_PAREN, token.RIGHT_BRACKET, token.RIGHT_CURLY:
		return true
	default:
		return false
	}
}

func (l *Lexer) tryLexRegex() (*token.Token, bool, error) {
	save := *l
	start := l.pos0()
	l.advance(1) // opening '/'

	var body strings.Builder
	for {
		r := l.rest()
		if r == "" || r[0] == '\n' {
			*l = save
			return nil, false, nil
		}
		if r[0] == '\\' && len(r) > 1 {
			body.WriteByte(r[0])
			body.WriteByte(r[1])
			l.advance(2)
			continue
		}
		if r[0] == '/' {
			l.advance(1)
			break
		}
		body.WriteByte(r[0])
		l.advance(1)
	}

	flagsStart := l.pos
	for {
		r := l.rest()
		if r == "" || !isIdentPart(r[0]) {
			break
		}
		l.advance(1)
	}
	flags := l.source[flagsStart:l.pos]

	return &token.Token{
		Type:  token.REGEX,
		Regex: &token.Regex{Body: body.String(), Flags: flags},
		Pos:   start,
	}, true, nil
}

func (l *Lexer) lexOperator() *token.Token {
	start := l.pos0()
	rest := l.rest()

	three := map[string]string{"===": "===", "!==": "!=="}
	for lex := range three {
		if strings.HasPrefix(rest, lex) {
			l.advance(3)
			return &token.Token{Type: token.OPERATOR, Value: lex, Pos: start}
		}
	}

	two := map[string]token.Type{
		"==": token.OPERATOR, "!=": token.OPERATOR, "<=": token.OPERATOR, ">=": token.OPERATOR,
		"//": token.OPERATOR, "**": token.OPERATOR,
	}
	if len(rest) >= 2 {
		if _, ok := two[rest[:2]]; ok {
			l.advance(2)
			return &token.Token{Type: token.OPERATOR, Value: rest[:2], Pos: start}
		}
	}

	single := map[byte]token.Type{
		'+': token.OPERATOR, '-': token.OPERATOR, '*': token.OPERATOR, '/': token.OPERATOR,
		'%': token.OPERATOR, '=': token.OPERATOR, '<': token.OPERATOR, '>': token.OPERATOR,
		'.': token.OPERATOR,
		'~': token.TILDE, '|': token.PIPE, ',': token.COMMA, ':': token.COLON,
		'(': token.LEFT_PAREN, ')': token.RIGHT_PAREN,
		'[': token.LEFT_BRACKET, ']': token.RIGHT_BRACKET,
		'{': token.LEFT_CURLY, '}': token.RIGHT_CURLY,
	}
	ch := rest[0]
	if typ, ok := single[ch]; ok {
		l.advance(1)
		return &token.Token{Type: typ, Value: string(ch), Pos: start}
	}
	return nil
}

func (l *Lexer) lexIdentOrKeyword() (*token.Token, error) {
	start := l.pos0()
	rest := l.rest()
	n := 0
	for n < len(rest) && isIdentPart(rest[n]) {
		n++
	}
	name := l.advance(n)

	switch name {
	case "true", "True":
		return &token.Token{Type: token.BOOLEAN, Value: "true", Pos: start}, nil
	case "false", "False":
		return &token.Token{Type: token.BOOLEAN, Value: "false", Pos: start}, nil
	case "none", "None", "null":
		return &token.Token{Type: token.NONE, Value: name, Pos: start}, nil
	default:
		return &token.Token{Type: token.SYMBOL, Value: name, Pos: start}, nil
	}
}

func (l *Lexer) lexNumber() (*token.Token, error) {
	start := l.pos0()
	rest := l.rest()
	n := 0
	for n < len(rest) && isDigit(rest[n]) {
		n++
	}
	isFloat := false
	if n < len(rest) && rest[n] == '.' && n+1 < len(rest) && isDigit(rest[n+1]) {
		isFloat = true
		n++
		for n < len(rest) && isDigit(rest[n]) {
			n++
		}
	}
	if n < len(rest) && (rest[n] == 'e' || rest[n] == 'E') {
		look := n + 1
		if look < len(rest) && (rest[look] == '+' || rest[look] == '-') {
			look++
		}
		if look < len(rest) && isDigit(rest[look]) {
			isFloat = true
			n = look
			for n < len(rest) && isDigit(rest[n]) {
				n++
			}
		}
	}

	text := l.advance(n)
	if isFloat {
		if _, err := strconv.ParseFloat(text, 64); err != nil {
			return nil, l.errorf("invalid float %q", text)
		}
		return &token.Token{Type: token.FLOAT, Value: text, Pos: start}, nil
	}
	if _, err := strconv.ParseInt(text, 10, 64); err != nil {
		return nil, l.errorf("invalid integer %q", text)
	}
	return &token.Token{Type: token.INT, Value: text, Pos: start}, nil
}

func (l *Lexer) lexString(quote byte) (*token.Token, error) {
	start := l.pos0()
	l.advance(1)
	var sb strings.Builder
	for {
		rest := l.rest()
		if rest == "" {
			return nil, l.errorf("unexpected end of string")
		}
		ch := rest[0]
		if ch == quote {
			l.advance(1)
			return &token.Token{Type: token.STRING, Value: sb.String(), Pos: start}, nil
		}
		if ch == '\\' {
			l.advance(1)
			if l.rest() == "" {
				return nil, l.errorf("unexpected end of string")
			}
			esc := l.rest()[0]
			l.advance(1)
			switch esc {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			case '\\':
				sb.WriteByte('\\')
			case '\'':
				sb.WriteByte('\'')
			case '"':
				sb.WriteByte('"')
			default:
				sb.WriteByte('\\')
				sb.WriteByte(esc)
			}
			continue
		}
		sb.WriteByte(ch)
		l.advance(1)
	}
}

func (l *Lexer) errorf(format string, args ...interface{}) error {
	return errors.Errorf(format+" at line %d, col %d", append(args, l.line+1, l.col+1)...)
}

func isSpace(b byte) bool  { return b == ' ' || b == '\t' || b == '\n' || b == '\r' }
func isDigit(b byte) bool  { return b >= '0' && b <= '9' }
func isIdentStart(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || b == '_'
}
func isIdentPart(b byte) bool { return isIdentStart(b) || isDigit(b) }
