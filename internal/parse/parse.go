// Package parse turns C++ headers into raw IR using the tree-sitter C++
// grammar.
//
// The raw tree mirrors the declarations as written: one TranslationUnit per
// header, namespaces, classes, templates, typedefs, public methods and
// fields. Type spellings are kept verbatim (whitespace-normalized); nothing
// is qualified or lowered here. Non-public members are dropped, but the facts
// the resolver needs about them (a private constructor, a hidden operator
// new) are recorded in the class metadata.
package parse

import (
	"context"
	"fmt"
	"os"
	"runtime"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_cpp "github.com/tree-sitter/tree-sitter-cpp/bindings/go"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/cbind/internal/ir"
)

// Diagnostic is a syntax problem tree-sitter recovered from.
type Diagnostic struct {
	File    string
	Line    int
	Column  int
	Message string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s:%d:%d: %s", d.File, d.Line, d.Column, d.Message)
}

// Unit is one parsed header.
type Unit struct {
	Path        string
	TU          *ir.TranslationUnit
	Diagnostics []Diagnostic
}

// Parser wraps a tree-sitter parser loaded with the C++ grammar.
// A Parser is not safe for concurrent use.
type Parser struct {
	ts *tree_sitter.Parser
}

// NewParser creates a Parser. Call Close when done.
func NewParser() (*Parser, error) {
	p := tree_sitter.NewParser()
	if err := p.SetLanguage(tree_sitter.NewLanguage(tree_sitter_cpp.Language())); err != nil {
		p.Close()
		return nil, fmt.Errorf("load C++ grammar: %w", err)
	}
	return &Parser{ts: p}, nil
}

// Close releases the underlying parser.
func (p *Parser) Close() {
	if p.ts != nil {
		p.ts.Close()
		p.ts = nil
	}
}

// ParseFile reads and parses one header.
func (p *Parser) ParseFile(path string) (*Unit, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	return p.Parse(path, src)
}

// Parse parses src as a header named path.
func (p *Parser) Parse(path string, src []byte) (*Unit, error) {
	tree := p.ts.Parse(src, nil)
	if tree == nil {
		return nil, fmt.Errorf("parse %s: no syntax tree", path)
	}
	defer tree.Close()

	w := &walker{src: src, file: path}
	tu := &ir.TranslationUnit{Name: path}
	root := tree.RootNode()
	w.scope(tu, nil, root)
	if root.HasError() {
		w.collect(root)
	}
	return &Unit{Path: path, TU: tu, Diagnostics: w.diags}, nil
}

// ParseAll parses headers concurrently with at most workers parsers
// (GOMAXPROCS when workers <= 0). Units come back in input order. The first
// read failure cancels the rest.
func ParseAll(ctx context.Context, paths []string, workers int) ([]*Unit, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(paths) {
		workers = len(paths)
	}

	units := make([]*Unit, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			p, err := NewParser()
			if err != nil {
				return err
			}
			defer p.Close()
			u, err := p.ParseFile(path)
			if err != nil {
				return err
			}
			units[i] = u
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return units, nil
}
