package parser

import (
	"fmt"
	"strings"

	"github.com/birchmark/jinparse/token"
)

func posOf(t token.Token) token.Position { return t.Pos }

// fail builds a TemplateError positioned at the next unconsumed token.
func (p *Parser) fail(format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	tok, err := p.cur.peek()
	if err != nil {
		return newTemplateError(msg, 0, 0)
	}
	return newTemplateError(msg, tok.Pos.Line, tok.Pos.Col)
}

func (p *Parser) failAt(tok token.Token, format string, args ...interface{}) error {
	return newTemplateError(fmt.Sprintf(format, args...), tok.Pos.Line, tok.Pos.Col)
}

// expect consumes the next token and fails unless it has type t.
func (p *Parser) expect(t token.Type) (token.Token, error) {
	tok, err := p.cur.next()
	if err != nil {
		return token.Token{}, err
	}
	if tok.Type != t {
		return token.Token{}, p.failAt(tok, "expected token %s, got %s", t, tok.Type)
	}
	return tok, nil
}

// expectValue consumes the next token and fails unless it has type t and
// the given literal Value.
func (p *Parser) expectValue(t token.Type, value string) (token.Token, error) {
	tok, err := p.cur.next()
	if err != nil {
		return token.Token{}, err
	}
	if tok.Type != t || tok.Value != value {
		return token.Token{}, p.failAt(tok, "expected %q, got %q", value, tok.Value)
	}
	return tok, nil
}

// expectSymbol consumes the next token and fails unless it is a SYMBOL
// with the given name.
func (p *Parser) expectSymbol(name string) (token.Token, error) {
	tok, err := p.cur.next()
	if err != nil {
		return token.Token{}, err
	}
	if tok.Type != token.SYMBOL || tok.Value != name {
		return token.Token{}, p.failAt(tok, "expected %q, got %q", name, tok.Value)
	}
	return tok, nil
}

// skip consumes and returns true if the next token has type t, otherwise
// leaves the stream untouched.
func (p *Parser) skip(t token.Type) (bool, error) {
	tok, err := p.cur.peek()
	if err != nil {
		return false, err
	}
	if tok.Type != t {
		return false, nil
	}
	if _, err := p.cur.next(); err != nil {
		return false, err
	}
	return true, nil
}

// skipValue consumes and returns true if the next token has type t and
// literal Value value.
func (p *Parser) skipValue(t token.Type, value string) (bool, error) {
	tok, err := p.cur.peek()
	if err != nil {
		return false, err
	}
	if tok.Type != t || tok.Value != value {
		return false, nil
	}
	if _, err := p.cur.next(); err != nil {
		return false, err
	}
	return true, nil
}

// skipSymbol consumes and returns true if the next token is the SYMBOL
// name.
func (p *Parser) skipSymbol(name string) (bool, error) {
	return p.skipValue(token.SYMBOL, name)
}

// isSymbol reports whether the next token (without consuming it) is the
// SYMBOL name.
func (p *Parser) isSymbol(name string) (bool, error) {
	tok, err := p.cur.peek()
	if err != nil {
		return false, err
	}
	return tok.Type == token.SYMBOL && tok.Value == name, nil
}

func trimLeadingSpace(s string) string  { return strings.TrimLeft(s, " \t\r\n") }
func trimTrailingSpace(s string) string { return strings.TrimRight(s, " \t\r\n") }

func openHasDash(marker string) bool  { return strings.HasSuffix(marker, "-") }
func closeHasDash(marker string) bool { return strings.HasPrefix(marker, "-") }

// setLatch arms the whitespace-control latch from a just-consumed
// BLOCK_END/VARIABLE_END token, so the next TemplateData's leading
// whitespace is trimmed when that token's marker carried a trailing dash.
// Every tag parser whose body is parsed into nodes calls this right after
// consuming the close marker that precedes that body, not just once at the
// very end of the construct. raw/verbatim bodies are scanned as literal
// text and are not trimmed by it.
func (p *Parser) setLatch(tok token.Token) {
	p.dropLeadingWhitespace = closeHasDash(tok.Value)
}
