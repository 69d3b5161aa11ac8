package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeString(t *testing.T) {
	assert.Equal(t, "SYMBOL", SYMBOL.String())
	assert.Equal(t, "Type(99)", Type(99).String())
}

func TestTokenStringRegex(t *testing.T) {
	tok := Token{Type: REGEX, Regex: &Regex{Body: "a+", Flags: "i"}}
	require.Equal(t, "REGEX(/a+/i)", tok.String())
}

func TestIsValueEnd(t *testing.T) {
	cases := []struct {
		typ  Type
		want bool
	}{
		{SYMBOL, true},
		{STRING, true},
		{RIGHT_PAREN, true},
		{OPERATOR, false},
		{COMMA, false},
		{LEFT_PAREN, false},
	}
	for _, c := range cases {
		tok := Token{Type: c.typ}
		assert.Equal(t, c.want, tok.IsValueEnd(), "type %s", c.typ)
	}
}
