// Package syntax parses code snippets with Tree-sitter and renders their
// top-level items as S-expressions.
package syntax

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
)

// ErrParse is matched by every ParseError.
var ErrParse = errors.New("parse error")

// ParseError locates the first syntax error in a snippet. Row and Column are 1-based.
type ParseError struct {
	Row    int
	Column int
	Kind   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("syntax error at %d:%d (%s)", e.Row, e.Column, e.Kind)
}

func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

var grammars = map[string]func() *sitter.Language{
	"rust":       rust.GetLanguage,
	"go":         golang.GetLanguage,
	"python":     python.GetLanguage,
	"javascript": javascript.GetLanguage,
}

// Languages lists the grammar names accepted by New.
func Languages() []string {
	out := make([]string, 0, len(grammars))
	for name := range grammars {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Item is one top-level node of a parsed snippet.
type Item struct {
	Kind string
	Text string
}

func (i Item) String() string {
	return i.Text
}

// Parser is safe for concurrent use; each call gets its own Tree-sitter parser.
type Parser struct {
	name string
	lang *sitter.Language
}

func New(language string) (*Parser, error) {
	get, ok := grammars[strings.ToLower(language)]
	if !ok {
		return nil, fmt.Errorf("unsupported parse language %q (want one of %s)", language, strings.Join(Languages(), ", "))
	}
	return &Parser{name: strings.ToLower(language), lang: get()}, nil
}

// Language returns the grammar name.
func (p *Parser) Language() string {
	return p.name
}

// Parse returns the top-level items of code, or a *ParseError when the
// tree contains an error or missing node.
func (p *Parser) Parse(ctx context.Context, code string) ([]Item, error) {
	sp := sitter.NewParser()
	defer sp.Close()
	sp.SetLanguage(p.lang)

	content := []byte(code)
	tree, err := sp.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if bad := firstError(root); bad != nil {
		return nil, newParseError(bad, content)
	}
	items := make([]Item, 0, root.NamedChildCount())
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		items = append(items, Item{Kind: child.Type(), Text: child.String()})
	}
	return items, nil
}

func firstError(n *sitter.Node) *sitter.Node {
	if n.IsError() || n.IsMissing() {
		return n
	}
	if !n.HasError() {
		return nil
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if bad := firstError(n.Child(i)); bad != nil {
			return bad
		}
	}
	return nil
}

func newParseError(n *sitter.Node, content []byte) *ParseError {
	pos := n.StartPoint()
	perr := &ParseError{Row: int(pos.Row) + 1, Column: int(pos.Column) + 1}
	if n.IsMissing() {
		perr.Kind = "missing " + n.Type()
		return perr
	}
	snippet := strings.TrimSpace(string(content[n.StartByte():n.EndByte()]))
	if len(snippet) > 20 {
		snippet = snippet[:20] + "..."
	}
	perr.Kind = fmt.Sprintf("unexpected %q", snippet)
	return perr
}
