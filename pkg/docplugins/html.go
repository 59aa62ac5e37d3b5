package docplugins

import "github.com/parsehook/mdstream/pkg/mdoc"

// HTMLPluginID is the registered id of the built-in html plugin.
const HTMLPluginID = "html"

// htmlPlugin is the config-driven feature gate behind doc_plugins.html:
// per §4.5, raw HTML blocks are sanitized unconditionally during
// per-block enrichment (pkg/pipeline), before DP ever runs. This plugin
// instead decides whether raw HTML is *allowed* in the document at all;
// when disabled it retypes HTML blocks to paragraph so their markup
// renders as literal escaped text rather than being dropped silently.
type htmlPlugin struct {
	enabled bool
}

// NewHTMLPlugin builds the html plugin. enabled mirrors
// doc_plugins.html from INIT; when false, HTML blocks are demoted to
// plain paragraphs.
func NewHTMLPlugin(enabled bool) Plugin {
	return htmlPlugin{enabled: enabled}
}

func (htmlPlugin) ID() string { return HTMLPluginID }

func (p htmlPlugin) Run(ctx *Context) ([]*mdoc.Block, error) {
	if p.enabled {
		return nil, nil
	}
	for _, blk := range ctx.Blocks {
		if blk.Type != mdoc.BlockHTML {
			continue
		}
		blk.Type = mdoc.BlockParagraph
		if blk.Meta == nil {
			blk.Meta = map[string]any{}
		}
		blk.Meta["original_type"] = "html"
		blk.SanitizedHTML = ""
		blk.Inline = []*mdoc.InlineNode{mdoc.NewText(blk.Raw)}
	}
	return nil, nil
}
