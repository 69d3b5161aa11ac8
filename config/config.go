// Package config holds the delimiter and whitespace settings the lexer and
// parser are driven by, and a YAML loader for shipping them outside of Go
// source.
package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Tags carries the literal delimiter strings the lexer recognizes, mirroring
// the lexer contract's `tags` record (spec.md §6).
type Tags struct {
	VariableStart string `yaml:"variable_start"`
	VariableEnd   string `yaml:"variable_end"`
	BlockStart    string `yaml:"block_start"`
	BlockEnd      string `yaml:"block_end"`
	CommentStart  string `yaml:"comment_start"`
	CommentEnd    string `yaml:"comment_end"`
}

// Whitespace controls ambient (non-marker-driven) whitespace behavior.
type Whitespace struct {
	// KeepTrailingNewline, when false, drops a single trailing newline from
	// the source before lexing begins.
	KeepTrailingNewline bool `yaml:"keep_trailing_newline"`
}

// Syntax bundles Tags and Whitespace, the unit a template environment would
// configure as a whole.
type Syntax struct {
	Tags       Tags       `yaml:"tags"`
	Whitespace Whitespace `yaml:"whitespace"`
}

// Default returns the standard Jinja-style delimiter set.
func Default() Syntax {
	return Syntax{
		Tags: Tags{
			VariableStart: "{{",
			VariableEnd:   "}}",
			BlockStart:    "{%",
			BlockEnd:      "%}",
			CommentStart:  "{#",
			CommentEnd:    "#}",
		},
	}
}

// Load reads a Syntax document from a YAML file, falling back to Default
// for any field left unset. This is the embedder-facing escape hatch for
// shipping custom delimiters without recompiling.
func Load(path string) (Syntax, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Syntax{}, errors.Wrapf(err, "reading syntax config %q", path)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Syntax{}, errors.Wrapf(err, "parsing syntax config %q", path)
	}
	if err := cfg.validate(); err != nil {
		return Syntax{}, errors.Wrapf(err, "validating syntax config %q", path)
	}
	return cfg, nil
}

func (s Syntax) validate() error {
	t := s.Tags
	if t.VariableStart == t.BlockStart || t.VariableStart == t.CommentStart || t.BlockStart == t.CommentStart {
		return errors.New("tag markers must be distinct")
	}
	return nil
}
