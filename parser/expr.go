package parser

import (
	"strconv"

	"github.com/birchmark/jinparse/ast"
	"github.com/birchmark/jinparse/token"
)

// parseExpr parses a full expression at the top precedence level
// (inline-if), the entry point used by output tags, signature items and
// every statement that embeds a single expression.
func (p *Parser) parseExpr() (ast.Node, error) {
	return p.parseInlineIf()
}

func (p *Parser) parseInlineIf() (ast.Node, error) {
	body, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	ok, err := p.skipSymbol("if")
	if err != nil {
		return nil, err
	}
	if !ok {
		return body, nil
	}
	cond, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	var elseBody ast.Node
	if ok, err := p.skipSymbol("else"); err != nil {
		return nil, err
	} else if ok {
		elseBody, err = p.parseInlineIf()
		if err != nil {
			return nil, err
		}
	}
	return ast.NewInlineIf(body.Pos(), cond, body, elseBody), nil
}

func (p *Parser) parseOr() (ast.Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for {
		ok, err := p.skipSymbol("or")
		if err != nil {
			return nil, err
		}
		if !ok {
			return left, nil
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = ast.NewOr(left.Pos(), left, right)
	}
}

func (p *Parser) parseAnd() (ast.Node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for {
		ok, err := p.skipSymbol("and")
		if err != nil {
			return nil, err
		}
		if !ok {
			return left, nil
		}
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = ast.NewAnd(left.Pos(), left, right)
	}
}

func (p *Parser) parseNot() (ast.Node, error) {
	ok, err := p.skipSymbol("not")
	if err != nil {
		return nil, err
	}
	if !ok {
		return p.parseIn()
	}
	operand, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	return ast.NewNot(operand.Pos(), operand), nil
}

func (p *Parser) parseIn() (ast.Node, error) {
	left, err := p.parseCompare()
	if err != nil {
		return nil, err
	}

	negate, err := p.skipSymbol("not")
	if err != nil {
		return nil, err
	}
	isIn, err := p.isSymbol("in")
	if err != nil {
		return nil, err
	}
	if negate && !isIn {
		return nil, p.fail("expected 'in' after 'not'")
	}
	if !isIn {
		return left, nil
	}
	if _, err := p.cur.next(); err != nil { // consume "in"
		return nil, err
	}
	right, err := p.parseCompare()
	if err != nil {
		return nil, err
	}
	node := ast.Node(ast.NewIn(left.Pos(), left, right))
	if negate {
		node = ast.NewNot(left.Pos(), node)
	}
	return node, nil
}

var compareOps = map[string]bool{
	"==": true, "!=": true, "<": true, ">": true, "<=": true, ">=": true,
	"===": true, "!==": true,
}

func (p *Parser) parseCompare() (ast.Node, error) {
	expr, err := p.parseConcat()
	if err != nil {
		return nil, err
	}
	cmp := ast.NewCompare(expr.Pos(), expr)
	any := false
	for {
		tok, err := p.cur.peek()
		if err != nil {
			return nil, err
		}
		if tok.Type != token.OPERATOR || !compareOps[tok.Value] {
			break
		}
		if _, err := p.cur.next(); err != nil {
			return nil, err
		}
		rhs, err := p.parseConcat()
		if err != nil {
			return nil, err
		}
		cmp.AddOperand(ast.NewCompareOperand(tok.Pos, tok.Value, rhs))
		any = true
	}
	if !any {
		return expr, nil
	}
	return cmp, nil
}

func (p *Parser) parseConcat() (ast.Node, error) {
	left, err := p.parseAdd()
	if err != nil {
		return nil, err
	}
	for {
		ok, err := p.skip(token.TILDE)
		if err != nil {
			return nil, err
		}
		if !ok {
			return left, nil
		}
		right, err := p.parseAdd()
		if err != nil {
			return nil, err
		}
		left = ast.NewConcat(left.Pos(), left, right)
	}
}

func (p *Parser) parseAdd() (ast.Node, error) {
	left, err := p.parseMul()
	if err != nil {
		return nil, err
	}
	for {
		tok, err := p.cur.peek()
		if err != nil {
			return nil, err
		}
		if tok.Type != token.OPERATOR || (tok.Value != "+" && tok.Value != "-") {
			return left, nil
		}
		if _, err := p.cur.next(); err != nil {
			return nil, err
		}
		right, err := p.parseMul()
		if err != nil {
			return nil, err
		}
		if tok.Value == "+" {
			left = ast.NewAdd(left.Pos(), left, right)
		} else {
			left = ast.NewSub(left.Pos(), left, right)
		}
	}
}

func (p *Parser) parseMul() (ast.Node, error) {
	left, err := p.parseFloorDiv()
	if err != nil {
		return nil, err
	}
	for {
		tok, err := p.cur.peek()
		if err != nil {
			return nil, err
		}
		if tok.Type != token.OPERATOR || (tok.Value != "*" && tok.Value != "/") {
			return left, nil
		}
		if _, err := p.cur.next(); err != nil {
			return nil, err
		}
		right, err := p.parseFloorDiv()
		if err != nil {
			return nil, err
		}
		if tok.Value == "*" {
			left = ast.NewMul(left.Pos(), left, right)
		} else {
			left = ast.NewDiv(left.Pos(), left, right)
		}
	}
}

func (p *Parser) parseFloorDiv() (ast.Node, error) {
	left, err := p.parseMod()
	if err != nil {
		return nil, err
	}
	for {
		ok, err := p.skipValue(token.OPERATOR, "//")
		if err != nil {
			return nil, err
		}
		if !ok {
			return left, nil
		}
		right, err := p.parseMod()
		if err != nil {
			return nil, err
		}
		left = ast.NewFloorDiv(left.Pos(), left, right)
	}
}

func (p *Parser) parseMod() (ast.Node, error) {
	left, err := p.parsePow()
	if err != nil {
		return nil, err
	}
	for {
		ok, err := p.skipValue(token.OPERATOR, "%")
		if err != nil {
			return nil, err
		}
		if !ok {
			return left, nil
		}
		right, err := p.parsePow()
		if err != nil {
			return nil, err
		}
		left = ast.NewMod(left.Pos(), left, right)
	}
}

// parsePow is left-associative: `2 ** 3 ** 2` parses as `(2 ** 3) ** 2`.
// See DESIGN.md for the Open Question this resolves.
func (p *Parser) parsePow() (ast.Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		ok, err := p.skipValue(token.OPERATOR, "**")
		if err != nil {
			return nil, err
		}
		if !ok {
			return left, nil
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = ast.NewPow(left.Pos(), left, right)
	}
}

// parseUnary is the entry point used by parsePow: it parses the full
// prefix-operator chain and then, once, the filter chain that follows it.
func (p *Parser) parseUnary() (ast.Node, error) {
	return p.parseUnaryLevel(true)
}

// parseUnaryLevel parses a (possibly empty) chain of unary +/- operators
// around a postfix expression. withFilter is carried down the recursion so
// that nested prefix operators never swallow a trailing filter chain
// themselves - only the outermost call, once the whole prefix chain is
// built, consumes it. This is what makes "-x | upper" parse as
// Filter(upper, Neg(x)) rather than Neg(Filter(upper, x)).
func (p *Parser) parseUnaryLevel(withFilter bool) (ast.Node, error) {
	tok, err := p.cur.peek()
	if err != nil {
		return nil, err
	}

	var node ast.Node
	switch {
	case tok.Type == token.OPERATOR && tok.Value == "-":
		if _, err := p.cur.next(); err != nil {
			return nil, err
		}
		operand, err := p.parseUnaryLevel(false)
		if err != nil {
			return nil, err
		}
		node = ast.NewNeg(tok.Pos, operand)

	case tok.Type == token.OPERATOR && tok.Value == "+":
		if _, err := p.cur.next(); err != nil {
			return nil, err
		}
		operand, err := p.parseUnaryLevel(false)
		if err != nil {
			return nil, err
		}
		node = ast.NewPos(tok.Pos, operand)

	default:
		node, err = p.parsePostfix()
		if err != nil {
			return nil, err
		}
	}

	if !withFilter {
		return node, nil
	}
	return p.parseFilterChain(node)
}

// parsePostfix handles member/subscript access and calls, which can be
// mixed freely: `a.b[c](d)`.
func (p *Parser) parsePostfix() (ast.Node, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		tok, err := p.cur.peek()
		if err != nil {
			return nil, err
		}
		switch {
		case tok.Type == token.OPERATOR && tok.Value == ".":
			if _, err := p.cur.next(); err != nil {
				return nil, err
			}
			nameTok, err := p.expect(token.SYMBOL)
			if err != nil {
				return nil, err
			}
			idx := ast.NewLiteral(nameTok.Pos, nameTok.Value)
			expr = ast.NewLookupVal(expr.Pos(), expr, idx)

		case tok.Type == token.LEFT_BRACKET:
			if _, err := p.cur.next(); err != nil {
				return nil, err
			}
			idx, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.RIGHT_BRACKET); err != nil {
				return nil, err
			}
			expr = ast.NewLookupVal(expr.Pos(), expr, idx)

		case tok.Type == token.LEFT_PAREN:
			args, err := p.parseSignature(true)
			if err != nil {
				return nil, err
			}
			expr = ast.NewFunCall(expr.Pos(), expr, args)

		default:
			return expr, nil
		}
	}
}

// parseFilterChain consumes a chain of `| name` / `| name(args)` filters
// applied to expr. It is called once per parseUnaryLevel entry, never from
// within the prefix-operator recursion.
func (p *Parser) parseFilterChain(expr ast.Node) (ast.Node, error) {
	for {
		tok, err := p.cur.peek()
		if err != nil {
			return nil, err
		}
		if tok.Type != token.PIPE {
			return expr, nil
		}
		if _, err := p.cur.next(); err != nil {
			return nil, err
		}
		nameTok, err := p.expect(token.SYMBOL)
		if err != nil {
			return nil, err
		}
		args := ast.NewNodeList(expr.Pos())
		args.AddChild(expr)
		if peeked, err := p.cur.peek(); err != nil {
			return nil, err
		} else if peeked.Type == token.LEFT_PAREN {
			sigArgs, err := p.parseSignature(true)
			if err != nil {
				return nil, err
			}
			for _, c := range sigArgs.Children() {
				args.AddChild(c)
			}
		}
		expr = ast.NewFilter(nameTok.Pos, nameTok.Value, args)
	}
}

func (p *Parser) parsePrimary() (ast.Node, error) {
	tok, err := p.cur.next()
	if err != nil {
		return nil, err
	}
	switch tok.Type {
	case token.STRING:
		return ast.NewLiteral(tok.Pos, tok.Value), nil
	case token.INT:
		n, err := strconv.ParseInt(tok.Value, 10, 64)
		if err != nil {
			return nil, p.failAt(tok, "invalid integer literal %q", tok.Value)
		}
		return ast.NewLiteral(tok.Pos, n), nil
	case token.FLOAT:
		f, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			return nil, p.failAt(tok, "invalid float literal %q", tok.Value)
		}
		return ast.NewLiteral(tok.Pos, f), nil
	case token.BOOLEAN:
		return ast.NewLiteral(tok.Pos, tok.Value == "true"), nil
	case token.NONE:
		return ast.NewLiteral(tok.Pos, nil), nil
	case token.REGEX:
		return ast.NewLiteral(tok.Pos, *tok.Regex), nil
	case token.SYMBOL:
		return ast.NewSymbol(tok.Pos, tok.Value), nil
	case token.LEFT_PAREN:
		p.cur.push(tok)
		return p.parseGroup()
	case token.LEFT_BRACKET:
		p.cur.push(tok)
		return p.parseArray()
	case token.LEFT_CURLY:
		p.cur.push(tok)
		return p.parseDict()
	default:
		return nil, p.failAt(tok, "unexpected token %s while parsing expression", tok.Type)
	}
}
