package docplugins

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/parsehook/mdstream/pkg/blockextract"
	"github.com/parsehook/mdstream/pkg/mdoc"
)

func TestProtectedRangesExcludesInlineCode(t *testing.T) {
	raw := "a `$not math$` b"
	ranges := ProtectedRanges(raw)
	require.Len(t, ranges, 1)
	require.True(t, InProtectedRange(ranges, 3))
}

func TestMDXDetectRetypesUppercaseComponent(t *testing.T) {
	blocks := []*mdoc.Block{
		{ID: "paragraph:0", Type: mdoc.BlockParagraph, Raw: "<Widget foo=\"bar\" />", IsFinalized: true, Meta: map[string]any{}},
	}
	reg := NewRegistry()
	reg.Register(NewMDXDetectPlugin())
	eng := NewEngine(reg)
	out, err := eng.Apply([]byte(blocks[0].Raw), blocks)
	require.NoError(t, err)
	require.Equal(t, mdoc.BlockMDX, out[0].Type)
	require.Equal(t, "paragraph", out[0].Meta["original_type"])
}

func TestMDXDetectIgnoresMathBraceExpression(t *testing.T) {
	blocks := []*mdoc.Block{
		{ID: "paragraph:0", Type: mdoc.BlockParagraph, Raw: "energy is ${E = mc^2}$ here", IsFinalized: true, Meta: map[string]any{}},
	}
	reg := NewRegistry()
	reg.Register(NewMDXDetectPlugin())
	eng := NewEngine(reg)
	out, _ := eng.Apply([]byte(blocks[0].Raw), blocks)
	require.Equal(t, mdoc.BlockParagraph, out[0].Type)
}

func TestFootnotesCollectsOnlyReferencedDefs(t *testing.T) {
	def := &mdoc.Block{ID: "paragraph:0", Type: mdoc.BlockParagraph, Raw: "[^a]: the definition", IsFinalized: true, Meta: map[string]any{}}
	body := &mdoc.Block{
		ID: "paragraph:10", Type: mdoc.BlockParagraph, Raw: "see[^a]", IsFinalized: true, Meta: map[string]any{},
		Inline: []*mdoc.InlineNode{{Kind: mdoc.InlineFootnoteRef, Label: "a"}},
	}
	blocks := []*mdoc.Block{def, body}

	reg := NewRegistry()
	reg.Register(NewFootnotesPlugin())
	eng := NewEngine(reg)
	out, err := eng.Apply([]byte("doc"), blocks)
	require.NoError(t, err)
	require.Equal(t, mdoc.BlockFootnoteDef, out[0].Type)

	var footnotes *mdoc.Block
	for _, b := range out {
		if b.Type == mdoc.BlockFootnotes {
			footnotes = b
		}
	}
	require.NotNilf(t, footnotes, "expected a synthetic footnotes block, got %+v", out)
	entries := footnotes.Meta["defs"].([]FootnoteEntry)
	require.Len(t, entries, 1)
	require.Equal(t, "a", entries[0].Label)
}

func TestFootnotesWithheldWhileTailDirty(t *testing.T) {
	def := &mdoc.Block{ID: "paragraph:0", Type: mdoc.BlockParagraph, Raw: "[^a]: the definition", IsFinalized: true, Meta: map[string]any{}}
	body := &mdoc.Block{
		ID: "paragraph:10", Type: mdoc.BlockParagraph, Raw: "see[^a]", IsFinalized: false, Meta: map[string]any{},
		Inline: []*mdoc.InlineNode{{Kind: mdoc.InlineFootnoteRef, Label: "a"}},
	}
	blocks := []*mdoc.Block{def, body}

	reg := NewRegistry()
	reg.Register(NewFootnotesPlugin())
	eng := NewEngine(reg)
	out, _ := eng.Apply([]byte("doc"), blocks)
	for _, b := range out {
		require.NotEqualf(t, mdoc.BlockFootnotes, b.Type, "footnotes must not be appended while the tail is dirty")
	}
}

func TestTablesPluginPopulatesRowsHeaderAlign(t *testing.T) {
	extractor := blockextract.New()
	raw := "| a | b |\n| --- | ---: |\n| 1 | 2 |\n"
	blk := &mdoc.Block{ID: "table:0", Type: mdoc.BlockTable, Raw: raw, IsFinalized: true, Meta: map[string]any{}}

	reg := NewRegistry()
	reg.Register(NewTablesPlugin(extractor))
	eng := NewEngine(reg)
	out, err := eng.Apply([]byte(raw), []*mdoc.Block{blk})
	require.NoError(t, err)
	header, _ := out[0].Meta["header"].([]string)
	rows, _ := out[0].Meta["rows"].([][]string)
	align, _ := out[0].Meta["align"].([]string)
	require.Equal(t, []string{"a", "b"}, header)
	require.Len(t, rows, 1)
	require.Equal(t, "1", rows[0][0])
	require.Equal(t, "2", rows[0][1])
	require.Len(t, align, 2)
	require.Equal(t, "right", align[1])
}

func TestCalloutsAnnotatesBlockquote(t *testing.T) {
	raw := "> [!WARNING] Careful\n> rest of the note\n"
	blk := &mdoc.Block{ID: "blockquote:0", Type: mdoc.BlockBlockquote, Raw: raw, IsFinalized: true, Meta: map[string]any{}}

	reg := NewRegistry()
	reg.Register(NewCalloutsPlugin())
	eng := NewEngine(reg)
	out, _ := eng.Apply([]byte(raw), []*mdoc.Block{blk})
	require.Equal(t, "warning", out[0].Meta["callout"])
	require.Equal(t, "Careful", out[0].Meta["calloutTitle"])
}

func TestHTMLPluginDisabledDemotesToParagraph(t *testing.T) {
	blk := &mdoc.Block{ID: "html:0", Type: mdoc.BlockHTML, Raw: "<div>x</div>", IsFinalized: true, Meta: map[string]any{}}

	reg := NewRegistry()
	reg.Register(NewHTMLPlugin(false))
	eng := NewEngine(reg)
	out, _ := eng.Apply([]byte("doc"), []*mdoc.Block{blk})
	require.Equal(t, mdoc.BlockParagraph, out[0].Type)
	require.Equal(t, "html", out[0].Meta["original_type"])
}

func TestHTMLPluginEnabledLeavesBlockAlone(t *testing.T) {
	blk := &mdoc.Block{ID: "html:0", Type: mdoc.BlockHTML, Raw: "<div>x</div>", IsFinalized: true, Meta: map[string]any{}}

	reg := NewRegistry()
	reg.Register(NewHTMLPlugin(true))
	eng := NewEngine(reg)
	out, _ := eng.Apply([]byte("doc"), []*mdoc.Block{blk})
	require.Equal(t, mdoc.BlockHTML, out[0].Type)
}

func TestRegistryPreservesRegistrationOrder(t *testing.T) {
	reg := NewRegistry()
	reg.Register(NewTablesPlugin(blockextract.New()))
	reg.Register(NewFootnotesPlugin())
	reg.Register(NewMDXDetectPlugin())
	ids := make([]string, 0, 3)
	for _, p := range reg.Plugins() {
		ids = append(ids, p.ID())
	}
	want := []string{TablesPluginID, FootnotesPluginID, MDXDetectPluginID}
	require.Equal(t, want, ids)
}
