package blockextract

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/parsehook/mdstream/pkg/mdoc"
)

func TestExtractSplitsTopLevelBlocks(t *testing.T) {
	e := New()
	content := []byte("# Title\n\nSome paragraph text.\n\n```go\npackage main\n```\n")
	blocks := e.Extract(content, false)
	require.Len(t, blocks, 3)
	require.Equal(t, mdoc.BlockHeading, blocks[0].Type)
	require.Equal(t, mdoc.BlockCode, blocks[2].Type)
}

func TestOnlyLastBlockIsDirty(t *testing.T) {
	e := New()
	content := []byte("finished paragraph\n\nstill typ")
	blocks := e.Extract(content, false)
	require.NotEmpty(t, blocks)
	for i, b := range blocks {
		if i < len(blocks)-1 {
			require.Truef(t, b.IsFinalized, "block %d should be finalized", i)
		}
	}
}

func TestForceFinalizeMarksEverythingFinalized(t *testing.T) {
	e := New()
	content := []byte("still typ")
	blocks := e.Extract(content, true)
	for _, b := range blocks {
		require.Truef(t, b.IsFinalized, "expected force_finalize to finalize every block, got %+v", b)
	}
}

func TestBlockIDsStableAcrossReparse(t *testing.T) {
	e := New()
	first := e.Extract([]byte("# Title\n\npara one\n"), false)
	second := e.Extract([]byte("# Title\n\npara one\n\npara two"), false)
	require.NotEmpty(t, first)
	require.GreaterOrEqual(t, len(second), len(first))
	for i := range first {
		require.Equalf(t, first[i].ID, second[i].ID, "expected stable id at index %d", i)
	}
}
