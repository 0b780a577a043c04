package relocate

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"
)

// Occurrence is a source span that may spell a namespace-qualified name.
// Start and End are byte offsets into the UTF-8 text.
type Occurrence struct {
	Start int
	End   int
	Text  string
}

// Occurrences parses UTF-8 Java source and returns the name occurrences a
// relocation may rewrite, in source order.
//
// Qualified names (package and import names, dotted expressions, qualified
// type uses) and simple identifiers are collected whole, without their
// parts. A type use spelled with a single identifier carries no namespace
// and is never collected.
func Occurrences(src []byte) ([]Occurrence, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(java.GetLanguage())

	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse source: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		if node := firstError(root); node != nil {
			return nil, syntaxError(node, src)
		}
	}

	var out []Occurrence
	collect(root, src, &out)
	return out, nil
}

// firstError returns the first ERROR node in document order. Tokens the
// parser inserted as MISSING are not errors here.
func firstError(n *sitter.Node) *sitter.Node {
	if n.IsError() {
		return n
	}
	if !n.HasError() {
		return nil
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if e := firstError(n.Child(i)); e != nil {
			return e
		}
	}
	return nil
}

func syntaxError(n *sitter.Node, src []byte) *SyntaxError {
	snippet := n.Content(src)
	if len(snippet) > 40 {
		snippet = snippet[:40]
	}
	p := n.StartPoint()
	return &SyntaxError{
		Line:    int(p.Row) + 1,
		Column:  int(p.Column) + 1,
		Snippet: snippet,
	}
}

func collect(n *sitter.Node, src []byte, out *[]Occurrence) {
	switch n.Type() {
	case "identifier", "scoped_identifier":
		add(n, src, out)
		return
	case "field_access":
		if dotted(n) {
			add(n, src, out)
			return
		}
	case "scoped_type_identifier":
		if qualifiedType(n) {
			add(n, src, out)
			return
		}
		if prefix := annotatedPrefix(n); prefix != nil {
			add(prefix, src, out)
			for i := 1; i < int(n.NamedChildCount()); i++ {
				collect(n.NamedChild(i), src, out)
			}
			return
		}
	case "type_identifier":
		return
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		collect(n.NamedChild(i), src, out)
	}
}

func add(n *sitter.Node, src []byte, out *[]Occurrence) {
	if n.IsMissing() || n.StartByte() == n.EndByte() {
		return
	}
	*out = append(*out, Occurrence{
		Start: int(n.StartByte()),
		End:   int(n.EndByte()),
		Text:  n.Content(src),
	})
}

// dotted reports whether a field access is a plain a.b.c chain.
func dotted(n *sitter.Node) bool {
	object := n.ChildByFieldName("object")
	field := n.ChildByFieldName("field")
	if object == nil || field == nil || field.Type() != "identifier" {
		return false
	}
	switch object.Type() {
	case "identifier":
		return true
	case "field_access":
		return dotted(object)
	}
	return false
}

// qualifiedType reports whether a scoped type is a plain a.b.C name,
// without annotations or type arguments.
func qualifiedType(n *sitter.Node) bool {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "type_identifier":
		case "scoped_type_identifier":
			if !qualifiedType(c) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// annotatedPrefix returns the qualifier of a type-annotated name such as
// "a.b.@Ann C", or nil when n is not one.
func annotatedPrefix(n *sitter.Node) *sitter.Node {
	if n.NamedChildCount() < 3 {
		return nil
	}
	prefix := n.NamedChild(0)
	switch prefix.Type() {
	case "type_identifier":
	case "scoped_type_identifier":
		if !qualifiedType(prefix) {
			return nil
		}
	default:
		return nil
	}
	for i := 1; i < int(n.NamedChildCount())-1; i++ {
		switch n.NamedChild(i).Type() {
		case "marker_annotation", "annotation":
		default:
			return nil
		}
	}
	if n.NamedChild(int(n.NamedChildCount())-1).Type() != "type_identifier" {
		return nil
	}
	return prefix
}
