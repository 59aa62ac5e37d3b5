package docplugins

import (
	"regexp"

	"github.com/parsehook/mdstream/pkg/mdoc"
)

// FootnotesPluginID is the registered id of the built-in footnotes plugin.
const FootnotesPluginID = "footnotes"

var reFootnoteDef = regexp.MustCompile(`(?s)^\[\^([^\]]+)\]:\s*(.*)$`)

// FootnoteEntry is one resolved definition in the synthetic footnotes
// block's meta.
type FootnoteEntry struct {
	Label   string `json:"label"`
	Content string `json:"content"`
}

// footnotesPlugin retypes paragraph blocks matching `[^label]: text` to
// footnote-def, then (once the tail is finalized) appends one synthetic
// footnotes block listing every definition that is actually referenced,
// in order of first reference.
type footnotesPlugin struct{}

// NewFootnotesPlugin builds the footnotes plugin.
func NewFootnotesPlugin() Plugin { return footnotesPlugin{} }

func (footnotesPlugin) ID() string { return FootnotesPluginID }

func (p footnotesPlugin) Run(ctx *Context) ([]*mdoc.Block, error) {
	defs := map[string]string{}
	for _, blk := range ctx.Blocks {
		if blk.Type != mdoc.BlockParagraph {
			continue
		}
		m := reFootnoteDef.FindStringSubmatch(blk.Raw)
		if m == nil {
			continue
		}
		blk.Type = mdoc.BlockFootnoteDef
		if blk.Meta == nil {
			blk.Meta = map[string]any{}
		}
		blk.Meta["label"] = m[1]
		defs[m[1]] = m[2]
	}

	if !ctx.TailFinalized {
		return nil, nil
	}

	var refs []string
	seen := map[string]bool{}
	for _, blk := range ctx.Blocks {
		collectFootnoteRefs(blk.Inline, &refs, seen)
	}
	if len(refs) == 0 {
		return nil, nil
	}

	var entries []FootnoteEntry
	for _, label := range refs {
		content, ok := defs[label]
		if !ok {
			continue
		}
		entries = append(entries, FootnoteEntry{Label: label, Content: content})
	}
	if len(entries) == 0 {
		return nil, nil
	}

	block := &mdoc.Block{
		ID:          mdoc.BlockID(mdoc.BlockFootnotes, -1),
		Type:        mdoc.BlockFootnotes,
		IsFinalized: true,
		Meta:        map[string]any{"defs": entries},
	}
	return []*mdoc.Block{block}, nil
}

func collectFootnoteRefs(nodes []*mdoc.InlineNode, refs *[]string, seen map[string]bool) {
	for _, n := range nodes {
		if n.Kind == mdoc.InlineFootnoteRef {
			if !seen[n.Label] {
				seen[n.Label] = true
				*refs = append(*refs, n.Label)
			}
		}
		collectFootnoteRefs(n.Children, refs, seen)
	}
}
