package inline

import "github.com/parsehook/mdstream/pkg/mdoc"

// Node is a local alias for mdoc.InlineNode, kept so plugin signatures in
// this package read naturally without a package-qualified name on every
// line; it is the same underlying type used everywhere else in the
// engine, not a parallel representation.
type Node = mdoc.InlineNode

func text(s string) *Node { return mdoc.NewText(s) }

func container(kind mdoc.InlineKind, children []*Node) *Node {
	return &Node{Kind: kind, Children: children}
}
