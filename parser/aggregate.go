package parser

import (
	"github.com/birchmark/jinparse/ast"
	"github.com/birchmark/jinparse/token"
)

// parseGroup parses a parenthesized expression or tuple: `(a)` or
// `(a, b, c)`. The LEFT_PAREN has not yet been consumed.
func (p *Parser) parseGroup() (ast.Node, error) {
	open, err := p.expect(token.LEFT_PAREN)
	if err != nil {
		return nil, err
	}
	var items []ast.Node
	for {
		tok, err := p.cur.peek()
		if err != nil {
			return nil, err
		}
		if tok.Type == token.RIGHT_PAREN {
			break
		}
		item, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if ok, err := p.skip(token.COMMA); err != nil {
			return nil, err
		} else if !ok {
			break
		}
	}
	if _, err := p.expect(token.RIGHT_PAREN); err != nil {
		return nil, err
	}
	return ast.NewGroup(open.Pos, items), nil
}

// parseArray parses a `[...]` literal. LEFT_BRACKET has not yet been
// consumed.
func (p *Parser) parseArray() (ast.Node, error) {
	open, err := p.expect(token.LEFT_BRACKET)
	if err != nil {
		return nil, err
	}
	arr := ast.NewArray(open.Pos)
	for {
		tok, err := p.cur.peek()
		if err != nil {
			return nil, err
		}
		if tok.Type == token.RIGHT_BRACKET {
			break
		}
		item, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		arr.AddChild(item)
		if ok, err := p.skip(token.COMMA); err != nil {
			return nil, err
		} else if !ok {
			break
		}
	}
	if _, err := p.expect(token.RIGHT_BRACKET); err != nil {
		return nil, err
	}
	return arr, nil
}

// parseDict parses a `{key: value, ...}` literal. LEFT_CURLY has not yet
// been consumed. Keys may be any expression (usually a string or symbol).
func (p *Parser) parseDict() (ast.Node, error) {
	open, err := p.expect(token.LEFT_CURLY)
	if err != nil {
		return nil, err
	}
	d := ast.NewDict(open.Pos)
	for {
		tok, err := p.cur.peek()
		if err != nil {
			return nil, err
		}
		if tok.Type == token.RIGHT_CURLY {
			break
		}
		key, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.COLON); err != nil {
			return nil, err
		}
		value, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		d.AddChild(ast.NewPair(key.Pos(), key, value))
		if ok, err := p.skip(token.COMMA); err != nil {
			return nil, err
		} else if !ok {
			break
		}
	}
	if _, err := p.expect(token.RIGHT_CURLY); err != nil {
		return nil, err
	}
	return d, nil
}

// parseSignature parses a call/macro argument list: positional expressions
// followed by zero or more `name=value` keyword arguments, which are
// collected into a trailing *ast.KeywordArgs child. When withParens is
// true the list is delimited by ( ); macro definitions always use this
// form.
func (p *Parser) parseSignature(withParens bool) (*ast.NodeList, error) {
	start, err := p.cur.peek()
	if err != nil {
		return nil, err
	}
	if withParens {
		if _, err := p.expect(token.LEFT_PAREN); err != nil {
			return nil, err
		}
	}

	args := ast.NewNodeList(start.Pos)
	var kwargs *ast.KeywordArgs

	for {
		tok, err := p.cur.peek()
		if err != nil {
			return nil, err
		}
		if withParens && tok.Type == token.RIGHT_PAREN {
			break
		}

		if tok.Type == token.SYMBOL {
			next, err := p.cur.peekAt(1)
			if err != nil {
				return nil, err
			}
			if next.Type == token.OPERATOR && next.Value == "=" {
				if _, err := p.cur.next(); err != nil { // name
					return nil, err
				}
				if _, err := p.cur.next(); err != nil { // '='
					return nil, err
				}
				value, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				if kwargs == nil {
					kwargs = ast.NewKeywordArgs(tok.Pos)
				}
				kwargs.AddChild(ast.NewPair(tok.Pos, ast.NewSymbol(tok.Pos, tok.Value), value))
				if ok, err := p.skip(token.COMMA); err != nil {
					return nil, err
				} else if ok {
					continue
				}
				break
			}
		}

		value, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args.AddChild(value)
		if ok, err := p.skip(token.COMMA); err != nil {
			return nil, err
		} else if ok {
			continue
		}
		break
	}

	if withParens {
		if _, err := p.expect(token.RIGHT_PAREN); err != nil {
			return nil, err
		}
	}
	if kwargs != nil {
		args.AddChild(kwargs)
	}
	return args, nil
}
