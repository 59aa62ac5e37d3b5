// Package blockextract implements the block extractor (BE): it walks a
// grammar parse of the whole current document and slices it into the
// top-level Block list the rest of the engine operates on.
package blockextract

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	astext "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"

	"github.com/parsehook/mdstream/pkg/mdoc"
)

// Extractor owns the goldmark instance used to grammar-parse content on
// every APPEND/FINALIZE.
type Extractor struct {
	md goldmark.Markdown
}

// New builds an Extractor with GFM table support enabled, since DP's
// tables plugin expects goldmark's table AST nodes.
func New() *Extractor {
	return &Extractor{md: newGoldmark()}
}

func newGoldmark() goldmark.Markdown {
	return goldmark.New(goldmark.WithExtensions(extension.GFM))
}

// Extract walks content and returns the top-level Block list. forceFinalize
// marks every block finalized regardless of its position relative to the
// stream tail, used during the FINALIZE transition (§4.10).
func (e *Extractor) Extract(content []byte, forceFinalize bool) []*mdoc.Block {
	reader := text.NewReader(content)
	doc := e.md.Parser().Parse(reader, parser.WithContext(parser.NewContext()))

	var blocks []*mdoc.Block
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		bt, ok := blockType(n)
		if !ok {
			continue
		}
		from, to := nodeRange(n, content)
		if from >= to {
			continue
		}
		raw := string(content[from:to])
		if strings.TrimSpace(raw) == "" {
			continue
		}
		b := &mdoc.Block{
			ID:    mdoc.BlockID(bt, from),
			Type:  bt,
			Range: mdoc.Range{From: from, To: to},
			Raw:   raw,
			Meta:  map[string]any{},
		}
		b.IsFinalized = forceFinalize || to < len(content)-1
		blocks = append(blocks, b)
	}

	if len(blocks) == 0 {
		return lineScanFallback(content, forceFinalize)
	}
	return blocks
}

// ParseFragment parses an isolated fragment of source (e.g. a single
// list block's raw text) and returns its document root, for callers
// that need to walk substructure the Block/Range model doesn't expose
// directly (list items, table rows).
func (e *Extractor) ParseFragment(raw []byte) ast.Node {
	reader := text.NewReader(raw)
	return e.md.Parser().Parse(reader, parser.WithContext(parser.NewContext()))
}

func blockType(n ast.Node) (mdoc.BlockType, bool) {
	switch v := n.(type) {
	case *ast.Heading:
		return mdoc.BlockHeading, true
	case *ast.Paragraph:
		return mdoc.BlockParagraph, true
	case *ast.FencedCodeBlock:
		return mdoc.BlockCode, true
	case *ast.CodeBlock:
		return mdoc.BlockCode, true
	case *ast.List:
		return mdoc.BlockList, true
	case *ast.Blockquote:
		return mdoc.BlockBlockquote, true
	case *ast.HTMLBlock:
		return mdoc.BlockHTML, true
	case *ast.ThematicBreak:
		return mdoc.BlockHR, true
	case *astext.Table:
		return mdoc.BlockTable, true
	default:
		_ = v
		return "", false
	}
}

// nodeRange computes the byte range covered by n and every descendant's
// source lines, since compound blocks (lists, tables) don't carry a
// single contiguous Lines() segment on the node itself.
func nodeRange(n ast.Node, source []byte) (from, to int) {
	from, to = -1, -1
	var walk func(ast.Node)
	walk = func(cur ast.Node) {
		if cur == nil {
			return
		}
		if lines := cur.Lines(); lines != nil {
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				if from == -1 || seg.Start < from {
					from = seg.Start
				}
				if seg.Stop > to {
					to = seg.Stop
				}
			}
		}
		for c := cur.FirstChild(); c != nil; c = c.NextSibling() {
			walk(c)
		}
	}
	walk(n)
	if from == -1 {
		from, to = 0, 0
	}
	return from, to
}

// lineScanFallback splits on blank lines and classifies each chunk by a
// prefix heuristic, used when the grammar parse yields zero top-level
// blocks (§4.5).
func lineScanFallback(content []byte, forceFinalize bool) []*mdoc.Block {
	src := string(content)
	var blocks []*mdoc.Block
	lines := strings.SplitAfter(src, "\n")
	offset := 0
	chunkStart := -1
	flush := func(end int) {
		if chunkStart == -1 {
			return
		}
		raw := src[chunkStart:end]
		if strings.TrimSpace(raw) == "" {
			chunkStart = -1
			return
		}
		bt := classify(raw)
		b := &mdoc.Block{
			ID:    mdoc.BlockID(bt, chunkStart),
			Type:  bt,
			Range: mdoc.Range{From: chunkStart, To: end},
			Raw:   raw,
			Meta:  map[string]any{},
		}
		b.IsFinalized = forceFinalize || end < len(content)-1
		blocks = append(blocks, b)
		chunkStart = -1
	}
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			flush(offset)
		} else if chunkStart == -1 {
			chunkStart = offset
		}
		offset += len(line)
	}
	flush(offset)
	return blocks
}

func classify(raw string) mdoc.BlockType {
	trimmed := strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(trimmed, "#"):
		return mdoc.BlockHeading
	case strings.HasPrefix(trimmed, "```"):
		return mdoc.BlockCode
	case strings.HasPrefix(trimmed, ">"):
		return mdoc.BlockBlockquote
	case strings.HasPrefix(trimmed, "-"), strings.HasPrefix(trimmed, "*"), strings.HasPrefix(trimmed, "+"):
		return mdoc.BlockList
	case isOrderedListPrefix(trimmed):
		return mdoc.BlockList
	case trimmed == "---" || trimmed == "***" || trimmed == "___":
		return mdoc.BlockHR
	default:
		return mdoc.BlockParagraph
	}
}

func isOrderedListPrefix(s string) bool {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 || i >= len(s) {
		return false
	}
	return s[i] == '.' || s[i] == ')'
}
