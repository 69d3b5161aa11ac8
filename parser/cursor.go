package parser

import (
	"github.com/birchmark/jinparse/lexer"
	"github.com/birchmark/jinparse/token"
)

// cursor wraps a lexer with the single-slot pushback the grammar relies on,
// plus a small internal lookahead buffer used only by the two or three
// call sites that need to peek past the immediate next token (matching a
// tag name before deciding whether to stop a statement list). WHITESPACE
// tokens are filtered out here; nothing above this layer ever sees one.
type cursor struct {
	lx  *lexer.Lexer
	buf []token.Token

	// pushedSinceRead guards the one-slot pushback invariant: push may not
	// be called again until an intervening next() has run.
	pushedSinceRead bool
}

func newCursor(lx *lexer.Lexer) *cursor {
	return &cursor{lx: lx}
}

func (c *cursor) lexer() *lexer.Lexer { return c.lx }

func (c *cursor) fill(n int) error {
	for len(c.buf) < n {
		tok, err := c.lx.NextToken()
		if err != nil {
			return err
		}
		if tok == nil {
			c.buf = append(c.buf, token.Token{Type: token.EOF})
			continue
		}
		if tok.Type == token.WHITESPACE {
			continue
		}
		c.buf = append(c.buf, *tok)
	}
	return nil
}

// next consumes and returns the next token.
func (c *cursor) next() (token.Token, error) {
	c.pushedSinceRead = false
	if err := c.fill(1); err != nil {
		return token.Token{}, err
	}
	t := c.buf[0]
	c.buf = c.buf[1:]
	return t, nil
}

// peek returns the next token without consuming it.
func (c *cursor) peek() (token.Token, error) {
	if err := c.fill(1); err != nil {
		return token.Token{}, err
	}
	return c.buf[0], nil
}

// peekAt returns the token n positions ahead (0 == peek()) without
// consuming anything.
func (c *cursor) peekAt(n int) (token.Token, error) {
	if err := c.fill(n + 1); err != nil {
		return token.Token{}, err
	}
	return c.buf[n], nil
}

// push returns t to the front of the stream. Only one token may be pushed
// between calls to next(); pushing twice without an intervening read is a
// programmer error and panics.
func (c *cursor) push(t token.Token) {
	if c.pushedSinceRead {
		panic("cursor.push: can only push one token between reads")
	}
	c.buf = append([]token.Token{t}, c.buf...)
	c.pushedSinceRead = true
}
