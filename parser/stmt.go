package parser

import (
	"strings"

	"github.com/birchmark/jinparse/ast"
	"github.com/birchmark/jinparse/token"
)

// dispatchBlock parses the body of a block tag whose BLOCK_START and tag
// name SYMBOL have already been consumed by the caller's lookahead. It
// returns the constructed node and the final BLOCK_END token consumed (nil
// for extensions, which own their own whitespace bookkeeping).
func (p *Parser) dispatchBlock(name string) (ast.Node, *token.Token, error) {
	switch name {
	case "if":
		return wrapTag(p.parseIf())
	case "for":
		return wrapTag(p.parseFor("for"))
	case "asyncEach":
		return wrapTag(p.parseFor("asyncEach"))
	case "asyncAll":
		return wrapTag(p.parseFor("asyncAll"))
	case "block":
		return wrapTag(p.parseBlockTag())
	case "extends":
		return wrapTag(p.parseExtends())
	case "include":
		return wrapTag(p.parseInclude())
	case "set":
		return wrapTag(p.parseSet())
	case "macro":
		return wrapTag(p.parseMacro())
	case "call":
		return wrapTag(p.parseCall())
	case "import":
		return wrapTag(p.parseImport())
	case "from":
		return wrapTag(p.parseFromImport())
	case "filter":
		return wrapTag(p.parseFilterBlock())
	case "raw":
		return wrapTag(p.parseRawOrVerbatim("raw"))
	case "verbatim":
		return wrapTag(p.parseRawOrVerbatim("verbatim"))
	default:
		if ext, ok := p.extensions[name]; ok {
			node, err := ext.Parse(p)
			if err != nil {
				return nil, nil, err
			}
			return node, nil, nil
		}
		return nil, nil, p.fail("unknown tag %q", name)
	}
}

func wrapTag(node ast.Node, end token.Token, err error) (ast.Node, *token.Token, error) {
	if err != nil {
		return nil, nil, err
	}
	return node, &end, nil
}

// parseBody consumes statements into a fresh NodeList until a BLOCK_START
// is seen whose tag name is one of stopNames, then consumes that
// BLOCK_START and tag-name SYMBOL (but not its BLOCK_END, which the caller
// is responsible for) and reports which name matched.
func (p *Parser) parseBody(stopNames ...string) (*ast.NodeList, string, error) {
	tok, err := p.cur.peek()
	if err != nil {
		return nil, "", err
	}
	list := ast.NewNodeList(tok.Pos)
	if err := p.parseUntilBlocks(list, stopNames...); err != nil {
		return nil, "", err
	}
	if _, err := p.expect(token.BLOCK_START); err != nil {
		return nil, "", err
	}
	nameTok, err := p.expect(token.SYMBOL)
	if err != nil {
		return nil, "", err
	}
	return list, nameTok.Value, nil
}

func (p *Parser) parseOptionalContext() (*bool, error) {
	if ok, err := p.skipSymbol("with"); err != nil {
		return nil, err
	} else if ok {
		if _, err := p.expectSymbol("context"); err != nil {
			return nil, err
		}
		v := true
		return &v, nil
	}
	if ok, err := p.skipSymbol("without"); err != nil {
		return nil, err
	} else if ok {
		if _, err := p.expectSymbol("context"); err != nil {
			return nil, err
		}
		v := false
		return &v, nil
	}
	return nil, nil
}

// --- output tag ---

func (p *Parser) parseOutputTag() (ast.Node, token.Token, error) {
	startTok, err := p.expect(token.VARIABLE_START)
	if err != nil {
		return nil, token.Token{}, err
	}
	expr, err := p.parseExpr()
	if err != nil {
		return nil, token.Token{}, err
	}
	endTok, err := p.expect(token.VARIABLE_END)
	if err != nil {
		return nil, token.Token{}, err
	}
	return ast.NewOutput(startTok.Pos, expr), endTok, nil
}

// --- if / elif / else / endif ---

func (p *Parser) parseIf() (ast.Node, token.Token, error) {
	cond, err := p.parseExpr()
	if err != nil {
		return nil, token.Token{}, err
	}
	openEnd, err := p.expect(token.BLOCK_END)
	if err != nil {
		return nil, token.Token{}, err
	}
	p.setLatch(openEnd)
	body, which, err := p.parseBody("elif", "else", "endif")
	if err != nil {
		return nil, token.Token{}, err
	}

	switch which {
	case "elif":
		elseNode, endTok, err := p.parseIf()
		if err != nil {
			return nil, token.Token{}, err
		}
		elseList := ast.NewNodeList(elseNode.Pos())
		elseList.AddChild(elseNode)
		return ast.NewIf(cond.Pos(), cond, body, elseList), endTok, nil

	case "else":
		elseOpenEnd, err := p.expect(token.BLOCK_END)
		if err != nil {
			return nil, token.Token{}, err
		}
		p.setLatch(elseOpenEnd)
		elseBody, _, err := p.parseBody("endif")
		if err != nil {
			return nil, token.Token{}, err
		}
		endTok, err := p.expect(token.BLOCK_END)
		if err != nil {
			return nil, token.Token{}, err
		}
		return ast.NewIf(cond.Pos(), cond, body, elseBody), endTok, nil

	default: // endif
		endTok, err := p.expect(token.BLOCK_END)
		if err != nil {
			return nil, token.Token{}, err
		}
		return ast.NewIf(cond.Pos(), cond, body, nil), endTok, nil
	}
}

// --- for / asyncEach / asyncAll ---

func (p *Parser) parseForTargets() (*ast.NodeList, error) {
	tok, err := p.cur.peek()
	if err != nil {
		return nil, err
	}
	list := ast.NewNodeList(tok.Pos)
	for {
		nameTok, err := p.expect(token.SYMBOL)
		if err != nil {
			return nil, err
		}
		list.AddChild(ast.NewSymbol(nameTok.Pos, nameTok.Value))
		if ok, err := p.skip(token.COMMA); err != nil {
			return nil, err
		} else if !ok {
			break
		}
	}
	return list, nil
}

func (p *Parser) parseFor(tagName string) (ast.Node, token.Token, error) {
	names, err := p.parseForTargets()
	if err != nil {
		return nil, token.Token{}, err
	}
	if _, err := p.expectSymbol("in"); err != nil {
		return nil, token.Token{}, err
	}
	arr, err := p.parseExpr()
	if err != nil {
		return nil, token.Token{}, err
	}
	openEnd, err := p.expect(token.BLOCK_END)
	if err != nil {
		return nil, token.Token{}, err
	}
	p.setLatch(openEnd)

	body, which, err := p.parseBody("else", "endfor")
	if err != nil {
		return nil, token.Token{}, err
	}

	var elseBody *ast.NodeList
	if which == "else" {
		elseOpenEnd, err := p.expect(token.BLOCK_END)
		if err != nil {
			return nil, token.Token{}, err
		}
		p.setLatch(elseOpenEnd)
		elseBody, _, err = p.parseBody("endfor")
		if err != nil {
			return nil, token.Token{}, err
		}
	}
	endTok, err := p.expect(token.BLOCK_END)
	if err != nil {
		return nil, token.Token{}, err
	}
	return newForVariant(tagName, names.Pos(), names, arr, body, elseBody), endTok, nil
}

func newForVariant(tagName string, pos token.Position, names *ast.NodeList, arr ast.Node, body, elseBody *ast.NodeList) ast.Node {
	base := ast.NewFor(pos, names, arr, body, elseBody)
	switch tagName {
	case "asyncEach":
		return &ast.AsyncEach{For: *base}
	case "asyncAll":
		return &ast.AsyncAll{For: *base}
	default:
		return base
	}
}

// --- block ---

func (p *Parser) parseBlockTag() (ast.Node, token.Token, error) {
	nameTok, err := p.expect(token.SYMBOL)
	if err != nil {
		return nil, token.Token{}, err
	}
	openEnd, err := p.expect(token.BLOCK_END)
	if err != nil {
		return nil, token.Token{}, err
	}
	p.setLatch(openEnd)
	body, _, err := p.parseBody("endblock")
	if err != nil {
		return nil, token.Token{}, err
	}
	// allow (and discard) a repeated block name after endblock.
	if tok, err := p.cur.peek(); err != nil {
		return nil, token.Token{}, err
	} else if tok.Type == token.SYMBOL {
		if _, err := p.cur.next(); err != nil {
			return nil, token.Token{}, err
		}
	}
	endTok, err := p.expect(token.BLOCK_END)
	if err != nil {
		return nil, token.Token{}, err
	}
	return ast.NewBlock(nameTok.Pos, nameTok.Value, body), endTok, nil
}

// --- extends / include ---

func (p *Parser) parseExtends() (ast.Node, token.Token, error) {
	tmpl, err := p.parseExpr()
	if err != nil {
		return nil, token.Token{}, err
	}
	endTok, err := p.expect(token.BLOCK_END)
	if err != nil {
		return nil, token.Token{}, err
	}
	return ast.NewExtends(tmpl.Pos(), tmpl), endTok, nil
}

func (p *Parser) parseInclude() (ast.Node, token.Token, error) {
	tmpl, err := p.parseExpr()
	if err != nil {
		return nil, token.Token{}, err
	}
	ignoreMissing := false
	if ok, err := p.skipSymbol("ignore"); err != nil {
		return nil, token.Token{}, err
	} else if ok {
		if _, err := p.expectSymbol("missing"); err != nil {
			return nil, token.Token{}, err
		}
		ignoreMissing = true
	}
	endTok, err := p.expect(token.BLOCK_END)
	if err != nil {
		return nil, token.Token{}, err
	}
	return ast.NewInclude(tmpl.Pos(), tmpl, ignoreMissing), endTok, nil
}

// --- set / capture ---

func (p *Parser) parseSet() (ast.Node, token.Token, error) {
	tok, err := p.cur.peek()
	if err != nil {
		return nil, token.Token{}, err
	}
	pos := tok.Pos
	targets := ast.NewNodeList(pos)
	for {
		nameTok, err := p.expect(token.SYMBOL)
		if err != nil {
			return nil, token.Token{}, err
		}
		targets.AddChild(ast.NewSymbol(nameTok.Pos, nameTok.Value))
		if ok, err := p.skip(token.COMMA); err != nil {
			return nil, token.Token{}, err
		} else if !ok {
			break
		}
	}

	if ok, err := p.skipValue(token.OPERATOR, "="); err != nil {
		return nil, token.Token{}, err
	} else if ok {
		value, err := p.parseExpr()
		if err != nil {
			return nil, token.Token{}, err
		}
		endTok, err := p.expect(token.BLOCK_END)
		if err != nil {
			return nil, token.Token{}, err
		}
		return ast.NewSet(pos, targets, value), endTok, nil
	}

	captureOpenEnd, err := p.expect(token.BLOCK_END)
	if err != nil {
		return nil, token.Token{}, err
	}
	p.setLatch(captureOpenEnd)
	body, _, err := p.parseBody("endset")
	if err != nil {
		return nil, token.Token{}, err
	}
	endTok, err := p.expect(token.BLOCK_END)
	if err != nil {
		return nil, token.Token{}, err
	}
	return ast.NewSet(pos, targets, ast.NewCapture(pos, body)), endTok, nil
}

// --- macro / call ---

func (p *Parser) parseMacro() (ast.Node, token.Token, error) {
	nameTok, err := p.expect(token.SYMBOL)
	if err != nil {
		return nil, token.Token{}, err
	}
	args, err := p.parseSignature(true)
	if err != nil {
		return nil, token.Token{}, err
	}
	macroOpenEnd, err := p.expect(token.BLOCK_END)
	if err != nil {
		return nil, token.Token{}, err
	}
	p.setLatch(macroOpenEnd)
	body, _, err := p.parseBody("endmacro")
	if err != nil {
		return nil, token.Token{}, err
	}
	if tok, err := p.cur.peek(); err != nil {
		return nil, token.Token{}, err
	} else if tok.Type == token.SYMBOL {
		if _, err := p.cur.next(); err != nil {
			return nil, token.Token{}, err
		}
	}
	endTok, err := p.expect(token.BLOCK_END)
	if err != nil {
		return nil, token.Token{}, err
	}
	return ast.NewMacro(nameTok.Pos, nameTok.Value, args, body), endTok, nil
}

func (p *Parser) parseCall() (ast.Node, token.Token, error) {
	tok, err := p.cur.peek()
	if err != nil {
		return nil, token.Token{}, err
	}
	pos := tok.Pos

	callerArgs := ast.NewNodeList(pos)
	if tok.Type == token.LEFT_PAREN {
		callerArgs, err = p.parseSignature(true)
		if err != nil {
			return nil, token.Token{}, err
		}
	}

	callExpr, err := p.parseExpr()
	if err != nil {
		return nil, token.Token{}, err
	}
	callOpenEnd, err := p.expect(token.BLOCK_END)
	if err != nil {
		return nil, token.Token{}, err
	}
	p.setLatch(callOpenEnd)
	body, _, err := p.parseBody("endcall")
	if err != nil {
		return nil, token.Token{}, err
	}
	endTok, err := p.expect(token.BLOCK_END)
	if err != nil {
		return nil, token.Token{}, err
	}

	caller := ast.NewCaller(pos, callerArgs, body)
	fc, ok := callExpr.(*ast.FunCall)
	if !ok {
		return nil, token.Token{}, p.failAt(tok, "call target must be a macro invocation")
	}
	kwargs, _ := fc.Args.Last().(*ast.KeywordArgs)
	if kwargs == nil {
		kwargs = ast.NewKeywordArgs(pos)
		fc.Args.AddChild(kwargs)
	}
	kwargs.AddChild(ast.NewPair(pos, ast.NewSymbol(pos, "caller"), caller))
	return fc, endTok, nil
}

// --- import / from ---

func (p *Parser) parseImport() (ast.Node, token.Token, error) {
	tmpl, err := p.parseExpr()
	if err != nil {
		return nil, token.Token{}, err
	}
	if _, err := p.expectSymbol("as"); err != nil {
		return nil, token.Token{}, err
	}
	nameTok, err := p.expect(token.SYMBOL)
	if err != nil {
		return nil, token.Token{}, err
	}
	withContext, err := p.parseOptionalContext()
	if err != nil {
		return nil, token.Token{}, err
	}
	endTok, err := p.expect(token.BLOCK_END)
	if err != nil {
		return nil, token.Token{}, err
	}
	target := ast.NewSymbol(nameTok.Pos, nameTok.Value)
	return ast.NewImport(tmpl.Pos(), tmpl, target, withContext), endTok, nil
}

func (p *Parser) parseFromImport() (ast.Node, token.Token, error) {
	tmpl, err := p.parseExpr()
	if err != nil {
		return nil, token.Token{}, err
	}
	if _, err := p.expectSymbol("import"); err != nil {
		return nil, token.Token{}, err
	}
	names := ast.NewNodeList(tmpl.Pos())
	for {
		nameTok, err := p.expect(token.SYMBOL)
		if err != nil {
			return nil, token.Token{}, err
		}
		if strings.HasPrefix(nameTok.Value, "_") {
			return nil, token.Token{}, p.failAt(nameTok, "names starting with an underscore cannot be imported")
		}
		var item ast.Node = ast.NewSymbol(nameTok.Pos, nameTok.Value)
		if ok, err := p.skipSymbol("as"); err != nil {
			return nil, token.Token{}, err
		} else if ok {
			aliasTok, err := p.expect(token.SYMBOL)
			if err != nil {
				return nil, token.Token{}, err
			}
			item = ast.NewPair(nameTok.Pos, ast.NewSymbol(nameTok.Pos, nameTok.Value), ast.NewSymbol(aliasTok.Pos, aliasTok.Value))
		}
		names.AddChild(item)
		if ok, err := p.skip(token.COMMA); err != nil {
			return nil, token.Token{}, err
		} else if !ok {
			break
		}
	}
	withContext, err := p.parseOptionalContext()
	if err != nil {
		return nil, token.Token{}, err
	}
	endTok, err := p.expect(token.BLOCK_END)
	if err != nil {
		return nil, token.Token{}, err
	}
	return ast.NewFromImport(tmpl.Pos(), tmpl, names, withContext), endTok, nil
}

// --- filter block ---

func (p *Parser) parseFilterBlock() (ast.Node, token.Token, error) {
	nameTok, err := p.expect(token.SYMBOL)
	if err != nil {
		return nil, token.Token{}, err
	}
	var extraArgs *ast.NodeList
	if tok, err := p.cur.peek(); err != nil {
		return nil, token.Token{}, err
	} else if tok.Type == token.LEFT_PAREN {
		extraArgs, err = p.parseSignature(true)
		if err != nil {
			return nil, token.Token{}, err
		}
	}
	filterOpenEnd, err := p.expect(token.BLOCK_END)
	if err != nil {
		return nil, token.Token{}, err
	}
	p.setLatch(filterOpenEnd)
	body, _, err := p.parseBody("endfilter")
	if err != nil {
		return nil, token.Token{}, err
	}
	endTok, err := p.expect(token.BLOCK_END)
	if err != nil {
		return nil, token.Token{}, err
	}

	args := ast.NewNodeList(nameTok.Pos)
	args.AddChild(ast.NewCapture(nameTok.Pos, body))
	if extraArgs != nil {
		for _, c := range extraArgs.Children() {
			args.AddChild(c)
		}
	}
	return ast.NewFilter(nameTok.Pos, nameTok.Value, args), endTok, nil
}

// --- raw / verbatim ---

// parseRawOrVerbatim scans the literal body of a {% raw %}...{% endraw %}
// or {% verbatim %}...{% endverbatim %} block without handing it to the
// normal lexer/parser token flow, since its content must not be tokenized
// as tags or expressions. It tracks nesting depth so an inner open tag of
// the same kind doesn't end the block early, then rewinds the lexer past
// the real terminator with BackN so the BLOCK_START/SYMBOL/BLOCK_END
// tokens of that terminator are produced and consumed the normal way,
// giving it the same whitespace-control treatment as any other tag close.
func (p *Parser) parseRawOrVerbatim(tagName string) (ast.Node, token.Token, error) {
	openEnd, err := p.expect(token.BLOCK_END)
	if err != nil {
		return nil, token.Token{}, err
	}

	endName := "end" + tagName
	tags := p.cur.lexer().Tags()
	pattern := `([\s\S]*?)` + quoteRegex(tags.BlockStart) +
		`-?\s*(` + tagName + `|` + endName + `)\s*-?` + quoteRegex(tags.BlockEnd)

	var out strings.Builder
	depth := 1
	for {
		m, err := p.cur.lexer().ExtractRegex(pattern)
		if err != nil {
			return nil, token.Token{}, err
		}
		if m == nil {
			return nil, token.Token{}, p.fail("missing %s for %s block", endName, tagName)
		}
		body := m.Groups[1]
		matchedTag := m.Groups[2]
		if matchedTag == tagName {
			depth++
			out.WriteString(m.Groups[0])
			continue
		}
		depth--
		out.WriteString(body)
		if depth == 0 {
			p.cur.lexer().BackN(len(m.Groups[0]) - len(body))
			break
		}
		out.WriteString(m.Groups[0][len(body):])
	}

	data := ast.NewTemplateData(openEnd.Pos, out.String())

	if _, err := p.expect(token.BLOCK_START); err != nil {
		return nil, token.Token{}, err
	}
	if _, err := p.expectSymbol(endName); err != nil {
		return nil, token.Token{}, err
	}
	endTok, err := p.expect(token.BLOCK_END)
	if err != nil {
		return nil, token.Token{}, err
	}
	return data, endTok, nil
}

func quoteRegex(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch r {
		case '\\', '.', '+', '*', '?', '(', ')', '|', '[', ']', '{', '}', '^', '$':
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
