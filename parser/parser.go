// Package parser turns a token stream into the ast.Node tree described in
// the Jinja-style grammar: expressions with twelve precedence levels,
// statement tags, aggregate/signature parsing and extension dispatch.
package parser

import (
	"github.com/birchmark/jinparse/ast"
	"github.com/birchmark/jinparse/config"
	"github.com/birchmark/jinparse/lexer"
	"github.com/birchmark/jinparse/token"
)

// Extension lets a third party claim a block tag name and take over parsing
// of its body, per spec.md's plugin dispatch contract.
type Extension interface {
	// Tags returns the block tag names (e.g. "cache") this extension
	// handles.
	Tags() []string
	// Parse is invoked with the BLOCK_START token already consumed and the
	// tag name token (a SYMBOL) already consumed too. It must leave the
	// cursor positioned just after the tag's closing endX token.
	Parse(p *Parser) (ast.Node, error)
}

// Parser drives token-by-token construction of the AST. It is not
// reentrant across goroutines.
type Parser struct {
	cur        *cursor
	name       string
	extensions map[string]Extension

	// breakOnBlocks is the current set of block-tag names that should end
	// the statement list being parsed, used by parseUntilBlocks for
	// if/for/block nesting.
	breakOnBlocks []string

	// dropLeadingWhitespace is the whitespace-control latch: true means the
	// next TemplateData token's leading run of whitespace must be trimmed.
	dropLeadingWhitespace bool
}

// New constructs a Parser over src using syntax for delimiter
// configuration. name is used only for diagnostics.
func New(src string, syntax config.Syntax, name string, extensions ...Extension) *Parser {
	lx := lexer.New(src, syntax)
	return NewFromLexer(lx, name, extensions...)
}

// NewFromLexer constructs a Parser directly over an already-built Lexer,
// for callers that need non-default lexer state.
func NewFromLexer(lx *lexer.Lexer, name string, extensions ...Extension) *Parser {
	extMap := make(map[string]Extension, len(extensions))
	for _, ext := range extensions {
		for _, tag := range ext.Tags() {
			extMap[tag] = ext
		}
	}
	return &Parser{
		cur:        newCursor(lx),
		name:       name,
		extensions: extMap,
	}
}

// Parse tokenizes and parses src in one call, returning the Root node.
func Parse(src string, syntax config.Syntax, name string, extensions ...Extension) (*ast.Root, error) {
	p := New(src, syntax, name, extensions...)
	return p.ParseAsRoot()
}

// ParseAsRoot parses the entire token stream as a template and wraps it in
// a Root node.
func (p *Parser) ParseAsRoot() (*ast.Root, error) {
	list := ast.NewNodeList(token.Position{})
	if err := p.parseNodes(list); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.EOF); err != nil {
		return nil, err
	}
	return ast.NewRoot(list), nil
}

// parseUntilBlocks parses statements until one of blockNames is seen as an
// upcoming block tag name (without consuming it), temporarily pushing
// blockNames onto the ambient break set that parseNodes consults. The
// previous break set is restored even if parsing fails partway through,
// matching the save/restore discipline extensions rely on.
func (p *Parser) parseUntilBlocks(list *ast.NodeList, blockNames ...string) error {
	saved := p.breakOnBlocks
	p.breakOnBlocks = blockNames
	err := p.parseNodes(list)
	p.breakOnBlocks = saved
	return err
}

// parseNodes is the reentrant statement-list driver: it consumes tokens
// into list until EOF or until a BLOCK_START is seen whose tag name is in
// p.breakOnBlocks, applying the whitespace-control latch across DATA/tag
// boundaries as it goes.
func (p *Parser) parseNodes(list *ast.NodeList) error {
	var pending *ast.TemplateData

	flush := func() {
		if pending != nil {
			list.AddChild(pending)
			pending = nil
		}
	}

	for {
		tok, err := p.cur.peek()
		if err != nil {
			return err
		}

		switch tok.Type {
		case token.EOF:
			flush()
			return nil

		case token.DATA:
			if _, err := p.cur.next(); err != nil {
				return err
			}
			value := tok.Value
			if p.dropLeadingWhitespace {
				value = trimLeadingSpace(value)
				p.dropLeadingWhitespace = false
			}
			flush()
			pending = ast.NewTemplateData(posOf(tok), value)

		case token.COMMENT:
			if _, err := p.cur.next(); err != nil {
				return err
			}
			lead, trail := p.commentDashes(tok.Value)
			if lead && pending != nil {
				pending.Value = trimTrailingSpace(pending.Value)
			}
			flush()
			p.dropLeadingWhitespace = trail

		case token.VARIABLE_START:
			if openHasDash(tok.Value) && pending != nil {
				pending.Value = trimTrailingSpace(pending.Value)
			}
			flush()
			node, endTok, err := p.parseOutputTag()
			if err != nil {
				return err
			}
			list.AddChild(node)
			p.dropLeadingWhitespace = closeHasDash(endTok.Value)

		case token.BLOCK_START:
			name, stop, err := p.peekBlockName()
			if err != nil {
				return err
			}
			if openHasDash(tok.Value) && pending != nil {
				pending.Value = trimTrailingSpace(pending.Value)
			}
			if stop {
				flush()
				return nil
			}
			flush()
			node, endTok, err := p.dispatchBlock(name)
			if err != nil {
				return err
			}
			if node != nil {
				list.AddChild(node)
			}
			if endTok != nil {
				p.dropLeadingWhitespace = closeHasDash(endTok.Value)
			}

		default:
			return p.fail("unexpected token %s", tok.Type)
		}
	}
}

// peekBlockName looks two tokens ahead (the BLOCK_START marker already
// peeked by the caller, and the tag name symbol following it) and reports
// whether that name is one of p.breakOnBlocks. When it is, nothing is
// consumed, so the caller's loop can return with the tag still unread.
// Otherwise both tokens are consumed and the name is returned.
func (p *Parser) peekBlockName() (string, bool, error) {
	nameTok, err := p.cur.peekAt(1)
	if err != nil {
		return "", false, err
	}
	if nameTok.Type != token.SYMBOL {
		return "", false, p.fail("expected tag name, got %s", nameTok.Type)
	}
	for _, b := range p.breakOnBlocks {
		if nameTok.Value == b {
			return nameTok.Value, true, nil
		}
	}
	if _, err := p.cur.next(); err != nil { // consume BLOCK_START
		return "", false, err
	}
	if _, err := p.cur.next(); err != nil { // consume tag name
		return "", false, err
	}
	return nameTok.Value, false, nil
}
