// Command jinparse-dump tokenizes and parses a template file and prints
// its AST as an indented tree, one node per line giving its Go type and
// 1-based line:column (e.g. "*ast.Symbol @1:4"), mainly useful for eyeballing parser
// output while developing a new tag or grammar rule.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/pkg/errors"

	"github.com/birchmark/jinparse/ast"
	"github.com/birchmark/jinparse/config"
	"github.com/birchmark/jinparse/parser"
)

func main() {
	syntaxPath := flag.String("syntax", "", "path to a YAML syntax config overriding the default delimiters")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: jinparse-dump [--syntax file.yaml] <template>")
		os.Exit(2)
	}

	if err := run(flag.Arg(0), *syntaxPath); err != nil {
		fmt.Fprintln(os.Stderr, "jinparse-dump:", err)
		os.Exit(1)
	}
}

func run(templatePath, syntaxPath string) error {
	src, err := os.ReadFile(templatePath)
	if err != nil {
		return errors.Wrapf(err, "reading template %q", templatePath)
	}

	syntax := config.Default()
	if syntaxPath != "" {
		syntax, err = config.Load(syntaxPath)
		if err != nil {
			return err
		}
	}

	root, err := parser.Parse(string(src), syntax, templatePath)
	if err != nil {
		return err
	}

	dump(os.Stdout, root, 0)
	return nil
}

func dump(w *os.File, n ast.Node, depth int) {
	if n == nil {
		return
	}
	for i := 0; i < depth; i++ {
		fmt.Fprint(w, "  ")
	}
	pos := n.Pos()
	fmt.Fprintf(w, "%T @%d:%d\n", n, pos.Line+1, pos.Col+1)
	for _, c := range n.Children() {
		dump(w, c, depth+1)
	}
}
