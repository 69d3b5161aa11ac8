package lexer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/birchmark/jinparse/config"
	"github.com/birchmark/jinparse/token"
)

// tokenize drains the lexer and drops WHITESPACE tokens, matching what
// every consumer above the lexer (parser.cursor) actually sees; the lexer
// itself still emits them, by design, for other_examples-style consumers
// that might want raw spacing.
func tokenize(t *testing.T, src string) []token.Token {
	t.Helper()
	lx := New(src, config.Default())
	var out []token.Token
	for {
		tok, err := lx.NextToken()
		require.NoError(t, err)
		if tok == nil {
			return out
		}
		if tok.Type == token.WHITESPACE {
			continue
		}
		out = append(out, *tok)
	}
}

func types(toks []token.Token) []token.Type {
	out := make([]token.Type, len(toks))
	for i, tok := range toks {
		out[i] = tok.Type
	}
	return out
}

func TestLexPlainText(t *testing.T) {
	toks := tokenize(t, "hello world")
	require.Len(t, toks, 1)
	require.Equal(t, token.DATA, toks[0].Type)
	require.Equal(t, "hello world", toks[0].Value)
}

func TestLexVariable(t *testing.T) {
	toks := tokenize(t, "hi {{ name }}!")
	require.Equal(t, []token.Type{
		token.DATA, token.VARIABLE_START, token.SYMBOL, token.VARIABLE_END, token.DATA,
	}, types(toks))
	require.Equal(t, "name", toks[2].Value)
}

func TestLexBlockWithDashes(t *testing.T) {
	toks := tokenize(t, "{%- if x -%}")
	require.Equal(t, token.BLOCK_START, toks[0].Type)
	require.Equal(t, "{%-", toks[0].Value)
	last := toks[len(toks)-1]
	require.Equal(t, token.BLOCK_END, last.Type)
	require.Equal(t, "-%}", last.Value)
}

func TestLexComment(t *testing.T) {
	toks := tokenize(t, "{#- note -#}")
	require.Len(t, toks, 1)
	require.Equal(t, token.COMMENT, toks[0].Type)
	require.Equal(t, "{#- note -#}", toks[0].Value)
}

func TestLexNumbers(t *testing.T) {
	toks := tokenize(t, "{{ 1 + 2.5e1 }}")
	require.Equal(t, token.INT, toks[1].Type)
	require.Equal(t, "1", toks[1].Value)
	require.Equal(t, token.FLOAT, toks[3].Type)
	require.Equal(t, "2.5e1", toks[3].Value)
}

func TestLexString(t *testing.T) {
	toks := tokenize(t, `{{ "a\nb" }}`)
	require.Equal(t, token.STRING, toks[1].Type)
	require.Equal(t, "a\nb", toks[1].Value)
}

func TestLexDivisionVsRegex(t *testing.T) {
	// After a SYMBOL, '/' is division.
	toks := tokenize(t, "{{ a / b }}")
	require.Equal(t, token.OPERATOR, toks[2].Type)
	require.Equal(t, "/", toks[2].Value)

	// At the start of an operand, '/' opens a regex literal.
	toks = tokenize(t, "{{ /ab+/i }}")
	require.Equal(t, token.REGEX, toks[1].Type)
	require.Equal(t, "ab+", toks[1].Regex.Body)
	require.Equal(t, "i", toks[1].Regex.Flags)
}

func TestLexOperators(t *testing.T) {
	toks := tokenize(t, "{{ a === b and a !== c }}")
	require.Equal(t, "===", toks[2].Value)
	require.Equal(t, "!==", toks[6].Value)
}

func TestKeepTrailingNewline(t *testing.T) {
	lx := New("hi\n", config.Syntax{Tags: config.Default().Tags, Whitespace: config.Whitespace{KeepTrailingNewline: false}})
	tok, err := lx.NextToken()
	require.NoError(t, err)
	require.Equal(t, "hi", tok.Value)

	lx2 := New("hi\n", config.Syntax{Tags: config.Default().Tags, Whitespace: config.Whitespace{KeepTrailingNewline: true}})
	tok2, err := lx2.NextToken()
	require.NoError(t, err)
	require.Equal(t, "hi\n", tok2.Value)
}

func TestExtractRegexAndBackN(t *testing.T) {
	lx := New("abc123def", config.Default())
	m, err := lx.ExtractRegex(`[a-z]+`)
	require.NoError(t, err)
	require.NotNil(t, m)
	require.Equal(t, "abc", m.Groups[0])

	lx.BackN(1)
	tok, err := lx.NextToken()
	require.NoError(t, err)
	require.Equal(t, "c123def", tok.Value)
}

func TestUnterminatedComment(t *testing.T) {
	lx := New("{# oops", config.Default())
	_, err := lx.NextToken()
	require.Error(t, err)
}
