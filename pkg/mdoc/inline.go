package mdoc

// InlineKind tags the variant of an InlineNode.
type InlineKind string

const (
	InlineText         InlineKind = "text"
	InlineStrong       InlineKind = "strong"
	InlineEm           InlineKind = "em"
	InlineStrike       InlineKind = "strike"
	InlineCode         InlineKind = "code"
	InlineLink         InlineKind = "link"
	InlineImage        InlineKind = "image"
	InlineBreak        InlineKind = "br"
	InlineMention      InlineKind = "mention"
	InlineCitation     InlineKind = "citation"
	InlineMathInline   InlineKind = "math-inline"
	InlineMathDisplay  InlineKind = "math-display"
	InlineFootnoteRef  InlineKind = "footnote-ref"
)

// InlineNode is a tagged-union node in an inline content tree. Container
// variants (strong, em, strike, link) own an ordered list of Children;
// leaf variants (text, code, math, br, mention, citation, image,
// footnote-ref) carry their content in Text/Tex/Href/Alt/Label.
type InlineNode struct {
	Kind InlineKind

	// Text holds literal content for text/code nodes.
	Text string

	// Tex holds the raw (unrendered) TeX source for math nodes.
	Tex string

	// Href/Title/Alt are populated for link and image nodes.
	Href  string
	Title string
	Alt   string

	// Label holds the mention handle, citation key, or footnote label.
	Label string

	Children []*InlineNode
}

// NewText builds a leaf text node. Adjacent plugin output frequently
// needs to splice plain-text runs back in, so this is the single most
// common constructor.
func NewText(s string) *InlineNode {
	return &InlineNode{Kind: InlineText, Text: s}
}

// Clone returns a deep copy of the inline node tree.
func (n *InlineNode) Clone() *InlineNode {
	if n == nil {
		return nil
	}
	cp := *n
	if n.Children != nil {
		cp.Children = make([]*InlineNode, len(n.Children))
		for i, c := range n.Children {
			cp.Children[i] = c.Clone()
		}
	}
	return &cp
}

// CloneInlineList deep-copies a slice of inline nodes.
func CloneInlineList(nodes []*InlineNode) []*InlineNode {
	if nodes == nil {
		return nil
	}
	out := make([]*InlineNode, len(nodes))
	for i, n := range nodes {
		out[i] = n.Clone()
	}
	return out
}

// PlainText concatenates the textual content of an inline tree, ignoring
// structural markup; math nodes contribute their raw TeX.
func PlainText(nodes []*InlineNode) string {
	var sb []byte
	var walk func([]*InlineNode)
	walk = func(ns []*InlineNode) {
		for _, n := range ns {
			switch n.Kind {
			case InlineText, InlineCode:
				sb = append(sb, n.Text...)
			case InlineMathInline, InlineMathDisplay:
				sb = append(sb, n.Tex...)
			case InlineBreak:
				sb = append(sb, '\n')
			default:
				walk(n.Children)
			}
		}
	}
	walk(nodes)
	return string(sb)
}
