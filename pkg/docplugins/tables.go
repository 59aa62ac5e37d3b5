package docplugins

import (
	"strings"

	"github.com/yuin/goldmark/ast"
	astext "github.com/yuin/goldmark/extension/ast"

	"github.com/parsehook/mdstream/pkg/mdoc"
)

// TablesPluginID is the registered id of the built-in tables plugin.
const TablesPluginID = "tables"

// FragmentParser is the subset of blockextract.Extractor tables needs to
// re-walk a table block's own grammar node tree for header/row/align
// detail the top-level Block model doesn't carry.
type FragmentParser interface {
	ParseFragment(raw []byte) ast.Node
}

// tablesPlugin populates meta.header/meta.rows/meta.align for every
// table block, read by pkg/snapshot's table lowering.
type tablesPlugin struct {
	parser FragmentParser
}

// NewTablesPlugin builds the tables plugin against the given fragment
// parser (normally the same *blockextract.Extractor used for block
// extraction, so table grammar stays consistent).
func NewTablesPlugin(parser FragmentParser) Plugin {
	return tablesPlugin{parser: parser}
}

func (tablesPlugin) ID() string { return TablesPluginID }

func (p tablesPlugin) Run(ctx *Context) ([]*mdoc.Block, error) {
	for _, blk := range ctx.Blocks {
		if blk.Type != mdoc.BlockTable {
			continue
		}
		p.populate(blk)
	}
	return nil, nil
}

func (p tablesPlugin) populate(blk *mdoc.Block) {
	source := []byte(blk.Raw)
	doc := p.parser.ParseFragment(source)

	var table *astext.Table
	for c := doc.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*astext.Table); ok {
			table = t
			break
		}
	}
	if table == nil {
		return
	}

	align := make([]string, len(table.Alignments))
	for i, a := range table.Alignments {
		align[i] = alignmentString(a)
	}

	var header []string
	var rows [][]string
	for c := table.FirstChild(); c != nil; c = c.NextSibling() {
		switch row := c.(type) {
		case *astext.TableHeader:
			header = cellTexts(&row.TableRow, source)
		case *astext.TableRow:
			rows = append(rows, cellTexts(row, source))
		}
	}

	if blk.Meta == nil {
		blk.Meta = map[string]any{}
	}
	blk.Meta["header"] = header
	blk.Meta["rows"] = rows
	blk.Meta["align"] = align
}

func cellTexts(row *astext.TableRow, source []byte) []string {
	var cells []string
	for c := row.FirstChild(); c != nil; c = c.NextSibling() {
		if cell, ok := c.(*astext.TableCell); ok {
			cells = append(cells, strings.TrimSpace(inlineText(cell, source)))
		}
	}
	return cells
}

// inlineText concatenates the literal text of every ast.Text descendant,
// since table cells carry their content as inline children rather than a
// contiguous Lines() segment.
func inlineText(n ast.Node, source []byte) string {
	var sb strings.Builder
	var walk func(ast.Node)
	walk = func(cur ast.Node) {
		if t, ok := cur.(*ast.Text); ok {
			sb.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				sb.WriteByte(' ')
			}
			return
		}
		for c := cur.FirstChild(); c != nil; c = c.NextSibling() {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func alignmentString(a astext.Alignment) string {
	switch a {
	case astext.AlignLeft:
		return "left"
	case astext.AlignRight:
		return "right"
	case astext.AlignCenter:
		return "center"
	default:
		return "none"
	}
}
