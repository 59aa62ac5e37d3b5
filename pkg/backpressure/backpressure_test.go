package backpressure

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/parsehook/mdstream/pkg/mdoc"
)

func TestCreditDropsAsQueueDepthGrows(t *testing.T) {
	c := New()
	for i := 0; i < 20; i++ {
		c.UpdateQueueDepth(100)
	}
	require.LessOrEqual(t, c.Credit(), 0.1)
}

func TestCreditStaysFullUnderTarget(t *testing.T) {
	c := New()
	c.UpdateQueueDepth(1)
	require.GreaterOrEqual(t, c.Credit(), 0.99)
}

func TestSetCreditOverridesEMA(t *testing.T) {
	c := New()
	for i := 0; i < 20; i++ {
		c.UpdateQueueDepth(1000)
	}
	require.Less(t, c.Credit(), 0.1)

	c.SetCredit(1.5)
	require.Equal(t, 1.0, c.Credit())

	c.SetCredit(-1)
	require.Equal(t, 0.0, c.Credit())

	c.SetCredit(0.7)
	require.Equal(t, 0.7, c.Credit())
}

func TestSetHTMLIsAlwaysHeavy(t *testing.T) {
	p := mdoc.SetHTML(mdoc.NodePath{BlockID: "html:0"}, "<div/>", "", nil, true)
	require.True(t, IsHeavy(p))
}

func TestAppendLinesHeavyOnlyAboveFour(t *testing.T) {
	at := mdoc.NodePath{BlockID: "code:0"}
	small := mdoc.AppendLines(at, 0, []string{"a", "b"}, nil)
	big := mdoc.AppendLines(at, 0, []string{"a", "b", "c", "d", "e"}, nil)
	require.False(t, IsHeavy(small))
	require.True(t, IsHeavy(big))
}

func TestInsertParagraphIsLightweightInsertCodeIsHeavy(t *testing.T) {
	para := mdoc.InsertChild(mdoc.RootPath(), 0, mdoc.NewSnapshot("paragraph:0", "paragraph"))
	code := mdoc.InsertChild(mdoc.RootPath(), 0, mdoc.NewSnapshot("code:0", "code"))
	require.False(t, IsHeavy(para))
	require.True(t, IsHeavy(code))
}

func TestZeroCreditDefersAllHeavyPatches(t *testing.T) {
	c := New()
	for i := 0; i < 20; i++ {
		c.UpdateQueueDepth(1000)
	}
	patches := []mdoc.Patch{mdoc.SetHTML(mdoc.NodePath{BlockID: "html:0"}, "<div/>", "", nil, true)}
	emitted := c.Partition(patches)
	require.Empty(t, emitted)
	require.True(t, c.HasDeferred())
}

func TestFlushEmitsDeferredPatchesOnceCreditReturns(t *testing.T) {
	c := New()
	for i := 0; i < 20; i++ {
		c.UpdateQueueDepth(1000)
	}
	patches := []mdoc.Patch{mdoc.SetHTML(mdoc.NodePath{BlockID: "html:0"}, "<div/>", "", nil, true)}
	c.Partition(patches)

	for i := 0; i < 20; i++ {
		c.UpdateQueueDepth(0)
	}
	flushed := c.Flush()
	require.Len(t, flushed, 1)
}

func TestLightPatchesAlwaysEmittedEvenAtZeroCredit(t *testing.T) {
	c := New()
	for i := 0; i < 20; i++ {
		c.UpdateQueueDepth(1000)
	}
	patches := []mdoc.Patch{mdoc.InsertChild(mdoc.RootPath(), 0, mdoc.NewSnapshot("paragraph:0", "paragraph"))}
	emitted := c.Partition(patches)
	require.Len(t, emitted, 1)
}
