package snapshot

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/parsehook/mdstream/pkg/blockextract"
	"github.com/parsehook/mdstream/pkg/mdoc"
)

func TestBuildRootOneChildPerBlock(t *testing.T) {
	b := NewBuilder(blockextract.New(), nil)
	blocks := []*mdoc.Block{
		{ID: "paragraph:0", Type: mdoc.BlockParagraph, Raw: "hello", IsFinalized: true, Meta: map[string]any{}},
	}
	root := b.BuildRoot(blocks)
	require.Equal(t, 1, root.ChildCount())
	require.Equal(t, "paragraph:0", root.FirstChild.ID)
}

func TestListLoweringProducesItemSnapshots(t *testing.T) {
	b := NewBuilder(blockextract.New(), nil)
	raw := "- first\n- second\n"
	blk := &mdoc.Block{ID: "list:0", Type: mdoc.BlockList, Raw: raw, IsFinalized: true, Meta: map[string]any{}}
	root := b.BuildRoot([]*mdoc.Block{blk})
	listSnap := root.FirstChild
	require.Equal(t, 2, listSnap.ChildCount())
	require.Equal(t, false, listSnap.Props["ordered"])
}

func TestTaskListItemMarksProps(t *testing.T) {
	b := NewBuilder(blockextract.New(), nil)
	raw := "- [x] done\n- [ ] todo\n"
	blk := &mdoc.Block{ID: "list:0", Type: mdoc.BlockList, Raw: raw, IsFinalized: true, Meta: map[string]any{}}
	root := b.BuildRoot([]*mdoc.Block{blk})
	listSnap := root.FirstChild
	first := listSnap.FirstChild
	require.Equal(t, true, first.Props["task"])
	require.Equal(t, true, first.Props["checked"])

	second := first.Next
	require.Equal(t, true, second.Props["task"])
	require.Equal(t, false, second.Props["checked"])
}

func TestCodeBlockLinesMatchSourceLines(t *testing.T) {
	b := NewBuilder(blockextract.New(), nil)
	blk := &mdoc.Block{
		ID: "code:0", Type: mdoc.BlockCode, Raw: "```go\na\nb\n```", IsFinalized: true,
		Meta: map[string]any{"code": "a\nb"},
	}
	root := b.BuildRoot([]*mdoc.Block{blk})
	codeSnap := root.FirstChild
	require.Equal(t, 2, codeSnap.ChildCount())
}
