package treediff

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/parsehook/mdstream/pkg/mdoc"
)

func snap(id, typ string, props map[string]any) *mdoc.NodeSnapshot {
	n := mdoc.NewSnapshot(id, typ)
	n.Props = props
	return n
}

func rootWith(children ...*mdoc.NodeSnapshot) *mdoc.NodeSnapshot {
	r := mdoc.NewSnapshot("root", "root")
	for _, c := range children {
		mdoc.AppendChild(r, c)
	}
	return r
}

func TestInsertNewTrailingBlock(t *testing.T) {
	old := rootWith(snap("paragraph:0", "paragraph", map[string]any{"inline": "a"}))
	new := rootWith(
		snap("paragraph:0", "paragraph", map[string]any{"inline": "a"}),
		snap("paragraph:10", "paragraph", map[string]any{"inline": "b"}),
	)
	patches := Diff(old, new)
	require.Len(t, patches, 1)
	require.Equal(t, mdoc.PatchInsertChild, patches[0].Kind)
	require.Equal(t, 1, patches[0].Index)
}

func TestSetPropsOnChangedBlock(t *testing.T) {
	old := rootWith(snap("paragraph:0", "paragraph", map[string]any{"inline": "a"}))
	new := rootWith(snap("paragraph:0", "paragraph", map[string]any{"inline": "b"}))
	patches := Diff(old, new)
	require.Len(t, patches, 1)
	require.Equal(t, mdoc.PatchSetProps, patches[0].Kind)
}

func TestNoChangeEmitsNoPatches(t *testing.T) {
	old := rootWith(snap("paragraph:0", "paragraph", map[string]any{"inline": "a"}))
	new := rootWith(snap("paragraph:0", "paragraph", map[string]any{"inline": "a"}))
	patches := Diff(old, new)
	require.Empty(t, patches)
}

func TestCodeBlockTailAppendEmitsAppendLines(t *testing.T) {
	codeOld := snap("code:0", "code", map[string]any{"code": "a"})
	mdoc.AppendChild(codeOld, snap("code:0::line:0", "code-line", map[string]any{"text": "a"}))

	codeNew := snap("code:0", "code", map[string]any{"code": "a\nb"})
	mdoc.AppendChild(codeNew, snap("code:0::line:0", "code-line", map[string]any{"text": "a"}))
	mdoc.AppendChild(codeNew, snap("code:0::line:1", "code-line", map[string]any{"text": "b"}))

	old := rootWith(codeOld)
	new := rootWith(codeNew)

	patches := Diff(old, new)
	var sawAppend bool
	for _, p := range patches {
		if p.Kind == mdoc.PatchAppendLines {
			sawAppend = true
			require.Equal(t, 1, p.StartIndex)
			require.Len(t, p.Lines, 1)
			require.Equal(t, "b", p.Lines[0])
		}
	}
	require.Truef(t, sawAppend, "expected an appendLines patch, got %+v", patches)
}

func TestListMiddleDeleteInsertNeverReorders(t *testing.T) {
	listOld := snap("list:0", "list", map[string]any{"ordered": false})
	mdoc.AppendChild(listOld, snap("list:0::item:0", "list-item", map[string]any{"inline": "x"}))
	mdoc.AppendChild(listOld, snap("list:0::item:1", "list-item", map[string]any{"inline": "y"}))

	listNew := snap("list:0", "list", map[string]any{"ordered": false})
	mdoc.AppendChild(listNew, snap("list:0::item:0", "list-item", map[string]any{"inline": "x"}))
	mdoc.AppendChild(listNew, snap("list:0::item:2", "list-item", map[string]any{"inline": "z"}))

	patches := Diff(rootWith(listOld), rootWith(listNew))
	for _, p := range patches {
		require.NotEqualf(t, mdoc.PatchReorder, p.Kind, "list diffs must never emit reorder, got %+v", patches)
	}
}

// TestFinalizeTransitionEmitsFinalizePatch covers the S2 scenario (spec
// §4.11/§8): a block that becomes finalized on a matched node gets a
// dedicated finalize patch, never folded into its setProps.
func TestFinalizeTransitionEmitsFinalizePatch(t *testing.T) {
	old := rootWith(snap("paragraph:0", "paragraph", map[string]any{"inline": "a", "finalized": false}))
	new := rootWith(snap("paragraph:0", "paragraph", map[string]any{"inline": "a", "finalized": true}))

	patches := Diff(old, new)
	require.Len(t, patches, 1)
	require.Equal(t, mdoc.PatchFinalize, patches[0].Kind)
}

func TestFinalizeTransitionWithContentChangeEmitsBoth(t *testing.T) {
	old := rootWith(snap("code:0", "code", map[string]any{"highlighted_html": "", "finalized": false}))
	new := rootWith(snap("code:0", "code", map[string]any{"highlighted_html": "<pre/>", "finalized": true}))

	patches := Diff(old, new)
	require.Len(t, patches, 2)
	require.Equal(t, mdoc.PatchSetProps, patches[0].Kind)
	require.Equal(t, mdoc.PatchFinalize, patches[1].Kind)
}

func TestFinalizedStaysFinalizedEmitsNoFinalizePatch(t *testing.T) {
	old := rootWith(snap("paragraph:0", "paragraph", map[string]any{"inline": "a", "finalized": true}))
	new := rootWith(snap("paragraph:0", "paragraph", map[string]any{"inline": "b", "finalized": true}))

	patches := Diff(old, new)
	require.Len(t, patches, 1)
	require.Equal(t, mdoc.PatchSetProps, patches[0].Kind)
}
