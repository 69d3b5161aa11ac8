package parser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/birchmark/jinparse/ast"
	"github.com/birchmark/jinparse/config"
	"github.com/birchmark/jinparse/lexer"
)

func parseSrc(t *testing.T, src string) *ast.Root {
	t.Helper()
	root, err := Parse(src, config.Default(), "test")
	require.NoError(t, err)
	return root
}

func TestParseHelloOutput(t *testing.T) {
	root := parseSrc(t, "hello {{ name }}")
	require.Len(t, root.List.Children(), 2)
	data, ok := root.List.At(0).(*ast.TemplateData)
	require.True(t, ok)
	require.Equal(t, "hello ", data.Value)

	out, ok := root.List.At(1).(*ast.Output)
	require.True(t, ok)
	sym, ok := out.Expr.(*ast.Symbol)
	require.True(t, ok)
	require.Equal(t, "name", sym.Name)
}

func TestParseIfElse(t *testing.T) {
	root := parseSrc(t, "{% if x %}a{% else %}b{% endif %}")
	require.Len(t, root.List.Children(), 1)
	ifNode, ok := root.List.At(0).(*ast.If)
	require.True(t, ok)
	require.NotNil(t, ifNode.Else)
	body := ifNode.Body.At(0).(*ast.TemplateData)
	require.Equal(t, "a", body.Value)
	elseBody := ifNode.Else.At(0).(*ast.TemplateData)
	require.Equal(t, "b", elseBody.Value)
}

func TestParseForLoop(t *testing.T) {
	root := parseSrc(t, "{% for k, v in d %}{{ k }}{% endfor %}")
	forNode, ok := root.List.At(0).(*ast.For)
	require.True(t, ok)
	require.Equal(t, 2, forNode.Name.Len())
	require.Equal(t, "k", forNode.Name.At(0).(*ast.Symbol).Name)
	require.Equal(t, "v", forNode.Name.At(1).(*ast.Symbol).Name)
	arr, ok := forNode.Arr.(*ast.Symbol)
	require.True(t, ok)
	require.Equal(t, "d", arr.Name)
}

func TestParseFilterChain(t *testing.T) {
	root := parseSrc(t, "{{ a | upper(2) }}")
	out := root.List.At(0).(*ast.Output)
	filter, ok := out.Expr.(*ast.Filter)
	require.True(t, ok)
	require.Equal(t, "upper", filter.Name)
	require.Equal(t, 2, filter.Args.Len())
	_, ok = filter.Args.At(0).(*ast.Symbol)
	require.True(t, ok)
	lit, ok := filter.Args.At(1).(*ast.Literal)
	require.True(t, ok)
	require.Equal(t, int64(2), lit.Value)
}

func TestParsePrecedence(t *testing.T) {
	root := parseSrc(t, "{{ 1 + 2 * 3 ** 2 }}")
	out := root.List.At(0).(*ast.Output)
	add, ok := out.Expr.(*ast.Add)
	require.True(t, ok)
	lit, ok := add.Left.(*ast.Literal)
	require.True(t, ok)
	require.Equal(t, int64(1), lit.Value)
	mul, ok := add.Right.(*ast.Mul)
	require.True(t, ok)
	pow, ok := mul.Right.(*ast.Pow)
	require.True(t, ok)
	base := pow.Left.(*ast.Literal)
	exp := pow.Right.(*ast.Literal)
	require.Equal(t, int64(3), base.Value)
	require.Equal(t, int64(2), exp.Value)
}

func TestFilterBindsLooserThanUnary(t *testing.T) {
	root := parseSrc(t, "{{ -x | upper }}")
	out := root.List.At(0).(*ast.Output)
	filter, ok := out.Expr.(*ast.Filter)
	require.True(t, ok, "top-level node should be the filter, not the negation")
	neg, ok := filter.Args.At(0).(*ast.Neg)
	require.True(t, ok)
	_, ok = neg.Expr.(*ast.Symbol)
	require.True(t, ok)
}

func TestWhitespaceControlLatch(t *testing.T) {
	root := parseSrc(t, "a \n{%- if x -%}\n  b\n{%- endif -%}\n c")
	require.Len(t, root.List.Children(), 3)
	before := root.List.At(0).(*ast.TemplateData)
	require.Equal(t, "a", before.Value)

	ifNode := root.List.At(1).(*ast.If)
	body := ifNode.Body.At(0).(*ast.TemplateData)
	require.Equal(t, "b", body.Value)

	after := root.List.At(2).(*ast.TemplateData)
	require.Equal(t, "c", after.Value)
}

func TestParseRawBlock(t *testing.T) {
	root := parseSrc(t, "{%- raw -%}{{ x }}{%- endraw -%}")
	require.Len(t, root.List.Children(), 1)
	data, ok := root.List.At(0).(*ast.TemplateData)
	require.True(t, ok)
	require.Equal(t, "{{ x }}", data.Value)
}

func TestParseVerbatimBlock(t *testing.T) {
	root := parseSrc(t, "{%- verbatim -%}{{ x }}{%- endverbatim -%}")
	require.Len(t, root.List.Children(), 1)
	data, ok := root.List.At(0).(*ast.TemplateData)
	require.True(t, ok)
	require.Equal(t, "{{ x }}", data.Value)
}

func TestParseNestedRawBlock(t *testing.T) {
	root := parseSrc(t, "{% raw %}a{% raw %}b{% endraw %}c{% endraw %}")
	data := root.List.At(0).(*ast.TemplateData)
	require.Equal(t, "a{% raw %}b{% endraw %}c", data.Value)
}

func TestParseRawBlockWithMultibyteContent(t *testing.T) {
	root := parseSrc(t, "{% raw %}café{% endraw %}tail")
	require.Len(t, root.List.Children(), 2)
	data := root.List.At(0).(*ast.TemplateData)
	require.Equal(t, "café", data.Value)
	tail := root.List.At(1).(*ast.TemplateData)
	require.Equal(t, "tail", tail.Value)
}

func TestParseRawBlockTerminatorUsesLatch(t *testing.T) {
	root := parseSrc(t, "{% raw %}x{%- endraw -%}\n  y")
	require.Len(t, root.List.Children(), 2)
	data := root.List.At(0).(*ast.TemplateData)
	require.Equal(t, "x", data.Value)
	after := root.List.At(1).(*ast.TemplateData)
	require.Equal(t, "y", after.Value)
}

func TestParseFromImport(t *testing.T) {
	root := parseSrc(t, `{% from "t" import a, b as c %}`)
	fi, ok := root.List.At(0).(*ast.FromImport)
	require.True(t, ok)
	require.Equal(t, 2, fi.Names.Len())
	_, ok = fi.Names.At(0).(*ast.Symbol)
	require.True(t, ok)
	pair, ok := fi.Names.At(1).(*ast.Pair)
	require.True(t, ok)
	require.Equal(t, "b", pair.Key.(*ast.Symbol).Name)
	require.Equal(t, "c", pair.Value.(*ast.Symbol).Name)
}

func TestParseFromImportRejectsUnderscoreNames(t *testing.T) {
	_, err := Parse(`{% from "t" import _x %}`, config.Default(), "test")
	require.Error(t, err)
	var terr *TemplateError
	require.ErrorAs(t, err, &terr)
}

func TestParseSetAssignment(t *testing.T) {
	root := parseSrc(t, "{% set x = 1 + 1 %}")
	setNode, ok := root.List.At(0).(*ast.Set)
	require.True(t, ok)
	require.Equal(t, "x", setNode.Target.At(0).(*ast.Symbol).Name)
	_, ok = setNode.Value.(*ast.Add)
	require.True(t, ok)
}

func TestParseMacroDefinition(t *testing.T) {
	root := parseSrc(t, "{% macro greet(name) %}hi {{ name }}{% endmacro %}")
	macro, ok := root.List.At(0).(*ast.Macro)
	require.True(t, ok)
	require.Equal(t, "greet", macro.Name)
	require.Equal(t, 1, macro.Args.Len())
}

func TestCursorPushInvariant(t *testing.T) {
	lx := lexer.New("{{ a }}", config.Default())
	c := newCursor(lx)
	tok, err := c.next()
	require.NoError(t, err)
	c.push(tok)
	require.Panics(t, func() { c.push(tok) })
}
