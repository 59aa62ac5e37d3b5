// Package snapshot implements the snapshot builder (SB): it lowers a
// Block list into the NodeSnapshot forest the tree differ consumes,
// including list structural lowering (§4.8), which re-parses a list
// block's raw source on every lowering rather than caching structure on
// the Block itself.
package snapshot

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/yuin/goldmark/ast"

	"github.com/parsehook/mdstream/pkg/blockextract"
	"github.com/parsehook/mdstream/pkg/inline"
	"github.com/parsehook/mdstream/pkg/mdoc"
	"github.com/parsehook/mdstream/pkg/mixed"
)

// DefaultListInlineCacheEntries bounds the list inline parser's own
// cache, kept separate from the primary IP cache per §4.8's mitigation
// note.
const DefaultListInlineCacheEntries = 500

// Builder owns the dedicated list inline parser and the extractor used
// to re-parse list source fragments.
type Builder struct {
	extractor   *blockextract.Extractor
	listInline  *inline.Parser
	sanitizer   mixed.Sanitizer
	mixedConfig mixed.Config
}

// NewBuilder constructs a Builder. extractor is shared with the block
// extractor so list fragment re-parses use the same grammar
// configuration (GFM extensions) as top-level extraction.
func NewBuilder(extractor *blockextract.Extractor, sanitizer mixed.Sanitizer) *Builder {
	return &Builder{
		extractor:   extractor,
		listInline:  inline.New(DefaultListInlineCacheEntries),
		sanitizer:   sanitizer,
		mixedConfig: mixed.DefaultConfig(),
	}
}

// BuildRoot lowers blocks into a forest rooted at a synthetic "root" node.
func (b *Builder) BuildRoot(blocks []*mdoc.Block) *mdoc.NodeSnapshot {
	root := mdoc.NewSnapshot("root", "root")
	for _, blk := range blocks {
		mdoc.AppendChild(root, b.lowerBlock(blk))
	}
	return root
}

func (b *Builder) lowerBlock(blk *mdoc.Block) *mdoc.NodeSnapshot {
	n := mdoc.NewSnapshot(blk.ID, string(blk.Type))
	rng := blk.Range
	n.Range = &rng
	n.Props = map[string]any{"block": blk.Clone()}

	switch blk.Type {
	case mdoc.BlockCode:
		n.Props["inline"] = nil
		b.lowerCodeLines(n, blk)
	case mdoc.BlockList:
		b.lowerList(n, blk)
	case mdoc.BlockTable:
		n.Props["inline"] = nil
		b.lowerTable(n, blk)
	default:
		n.Props["inline"] = cloneInline(blk.Inline)
		if segs, ok := blk.Meta["segments"].([]mdoc.MixedContentSegment); ok {
			n.Props["segments"] = segs
		}
	}
	if blk.IsFinalized {
		n.Props["finalized"] = true
	}
	return n
}

func cloneInline(nodes []*mdoc.InlineNode) []*mdoc.InlineNode {
	return mdoc.CloneInlineList(nodes)
}

var reLineSpanValue = regexp.MustCompile(`(?s)<span class="line"[^>]*>(.*?)</span>`)

// lowerCodeLines builds one "code-line" child per source line, pairing
// each with its corresponding highlighted HTML span when available so
// the differ's appendLines fast path can diff by line.
func (b *Builder) lowerCodeLines(n *mdoc.NodeSnapshot, blk *mdoc.Block) {
	code, _ := blk.Meta["code"].(string)
	var lines []string
	if code != "" || blk.Raw != "" {
		lines = strings.Split(code, "\n")
	}

	var htmlLines []string
	if blk.HighlightedHTML != "" {
		for _, m := range reLineSpanValue.FindAllStringSubmatch(blk.HighlightedHTML, -1) {
			htmlLines = append(htmlLines, m[1])
		}
	}

	for i, line := range lines {
		lineID := fmt.Sprintf("%s::line:%d", blk.ID, i)
		ls := mdoc.NewSnapshot(lineID, "code-line")
		props := map[string]any{"text": line}
		if i < len(htmlLines) {
			props["html"] = htmlLines[i]
		}
		ls.Props = props
		mdoc.AppendChild(n, ls)
	}
}

func (b *Builder) lowerTable(n *mdoc.NodeSnapshot, blk *mdoc.Block) {
	rows, _ := blk.Meta["rows"].([][]string)
	header, _ := blk.Meta["header"].([]string)
	align, _ := blk.Meta["align"].([]string)
	n.Props["align"] = align

	if len(header) > 0 {
		headRow := mdoc.NewSnapshot(blk.ID+"::header", "table-row")
		for ci, cell := range header {
			cellSnap := mdoc.NewSnapshot(fmt.Sprintf("%s::header::cell:%d", blk.ID, ci), "table-cell")
			cellSnap.Props = map[string]any{"text": cell, "header": true}
			mdoc.AppendChild(headRow, cellSnap)
		}
		mdoc.AppendChild(n, headRow)
	}
	for ri, row := range rows {
		rowSnap := mdoc.NewSnapshot(fmt.Sprintf("%s::row:%d", blk.ID, ri), "table-row")
		for ci, cell := range row {
			cellSnap := mdoc.NewSnapshot(fmt.Sprintf("%s::row:%d::cell:%d", blk.ID, ri, ci), "table-cell")
			cellSnap.Props = map[string]any{"text": cell}
			mdoc.AppendChild(rowSnap, cellSnap)
		}
		mdoc.AppendChild(n, rowSnap)
	}
}

var reTaskMarker = regexp.MustCompile(`^\[([ xX\-])\]\s*`)

func stripTaskMarker(s string) (task bool, checked bool, rest string) {
	loc := reTaskMarker.FindStringSubmatchIndex(s)
	if loc == nil {
		return false, false, s
	}
	marker := s[loc[2]:loc[3]]
	return true, marker == "x" || marker == "X", s[loc[1]:]
}

// lowerList re-parses blk.Raw with the shared grammar and builds the
// list's item/nested-list substructure (§4.8). Parsing happens on every
// call; the list inline parser's cache absorbs the repeated cost.
func (b *Builder) lowerList(parent *mdoc.NodeSnapshot, blk *mdoc.Block) {
	raw := []byte(blk.Raw)
	doc := b.extractor.ParseFragment(raw)
	var listNode *ast.List
	for c := doc.FirstChild(); c != nil; c = c.NextSibling() {
		if l, ok := c.(*ast.List); ok {
			listNode = l
			break
		}
	}
	if listNode == nil {
		return
	}
	var override *bool
	if v, ok := blk.Meta["ordered"].(bool); ok {
		override = &v
	}
	b.populateListItems(parent, listNode, raw, blk.ID, override)
}

func (b *Builder) populateListItems(listSnap *mdoc.NodeSnapshot, listNode *ast.List, raw []byte, baseID string, orderedOverride *bool) {
	ordered := listNode.Marker == '.' || listNode.Marker == ')'
	if orderedOverride != nil {
		ordered = *orderedOverride
	}
	if listSnap.Props == nil {
		listSnap.Props = map[string]any{}
	}
	listSnap.Props["ordered"] = ordered

	idx := 0
	for item := listNode.FirstChild(); item != nil; item = item.NextSibling() {
		li, ok := item.(*ast.ListItem)
		if !ok {
			continue
		}
		itemID := fmt.Sprintf("%s::item:%d", baseID, idx)
		idx++
		itemSnap := mdoc.NewSnapshot(itemID, "list-item")
		b.lowerListItem(itemSnap, li, raw, itemID)
		mdoc.AppendChild(listSnap, itemSnap)
	}
}

func (b *Builder) lowerListItem(itemSnap *mdoc.NodeSnapshot, li ast.Node, raw []byte, itemID string) {
	first := true
	counts := map[string]int{}

	for c := li.FirstChild(); c != nil; c = c.NextSibling() {
		switch v := c.(type) {
		case *ast.List:
			n := counts["list"]
			counts["list"]++
			nestedID := fmt.Sprintf("%s::list:%d", itemID, n)
			nestedSnap := mdoc.NewSnapshot(nestedID, "list")
			b.populateListItems(nestedSnap, v, raw, nestedID, nil)
			if nestedSnap.ChildCount() > 0 {
				mdoc.AppendChild(itemSnap, nestedSnap)
			}

		case *ast.Paragraph, *ast.TextBlock:
			content := nodeText(c, raw)
			if first {
				first = false
				task, checked, stripped := stripTaskMarker(content)
				if itemSnap.Props == nil {
					itemSnap.Props = map[string]any{}
				}
				if task {
					itemSnap.Props["task"] = true
					itemSnap.Props["checked"] = checked
				}
				itemSnap.Props["inline"] = b.listInline.Parse(stripped, inline.Options{Cache: true})
				if strings.ContainsAny(stripped, "<{") {
					itemSnap.Props["segments"] = mixed.Split(stripped, 0, b.mixedConfig, b.sanitizer)
				}
			} else {
				n := counts["paragraph"]
				counts["paragraph"]++
				pSnap := mdoc.NewSnapshot(fmt.Sprintf("%s::paragraph:%d", itemID, n), "paragraph")
				pSnap.Props = map[string]any{"inline": b.listInline.Parse(content, inline.Options{Cache: true})}
				mdoc.AppendChild(itemSnap, pSnap)
			}

		case *ast.Blockquote:
			n := counts["blockquote"]
			counts["blockquote"]++
			qSnap := mdoc.NewSnapshot(fmt.Sprintf("%s::blockquote:%d", itemID, n), "blockquote")
			qSnap.Props = map[string]any{"inline": b.listInline.Parse(nodeText(c, raw), inline.Options{Cache: true})}
			mdoc.AppendChild(itemSnap, qSnap)

		case *ast.FencedCodeBlock, *ast.CodeBlock:
			n := counts["code"]
			counts["code"]++
			cSnap := mdoc.NewSnapshot(fmt.Sprintf("%s::code:%d", itemID, n), "code")
			cSnap.Props = map[string]any{"text": nodeText(c, raw)}
			mdoc.AppendChild(itemSnap, cSnap)

		case *ast.HTMLBlock:
			n := counts["html"]
			counts["html"]++
			hSnap := mdoc.NewSnapshot(fmt.Sprintf("%s::html:%d", itemID, n), "html")
			hSnap.Props = map[string]any{"html": nodeText(c, raw)}
			mdoc.AppendChild(itemSnap, hSnap)

		case *ast.Heading:
			n := counts["heading"]
			counts["heading"]++
			hdSnap := mdoc.NewSnapshot(fmt.Sprintf("%s::heading:%d", itemID, n), "heading")
			hdSnap.Props = map[string]any{
				"inline": b.listInline.Parse(nodeText(c, raw), inline.Options{Cache: true}),
				"level":  strconv.Itoa(v.Level),
			}
			mdoc.AppendChild(itemSnap, hdSnap)
		}
	}
}

// nodeText concatenates the source text spanned by n's lines.
func nodeText(n ast.Node, source []byte) string {
	lines := n.Lines()
	if lines == nil || lines.Len() == 0 {
		return ""
	}
	var sb strings.Builder
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(source))
	}
	return strings.TrimRight(sb.String(), "\n")
}
