package mixed

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/parsehook/mdstream/pkg/mdoc"
)

func TestSplitPlainTextIsSingleSegment(t *testing.T) {
	segs := Split("just words here", 0, DefaultConfig(), nil)
	require.Len(t, segs, 1)
	require.Equal(t, mdoc.SegmentText, segs[0].Kind)
}

func TestSplitVoidHTMLElement(t *testing.T) {
	segs := Split("before <br/> after", 0, DefaultConfig(), nil)
	var sawHTML bool
	for _, s := range segs {
		if s.Kind == mdoc.SegmentHTML {
			sawHTML = true
		}
	}
	require.Truef(t, sawHTML, "expected a void html segment, got %+v", segs)
}

func TestSplitMDXComponentTag(t *testing.T) {
	segs := Split("text <Widget foo=\"bar\"/> more", 0, DefaultConfig(), nil)
	var sawMDX bool
	for _, s := range segs {
		if s.Kind == mdoc.SegmentMDX {
			sawMDX = true
		}
	}
	require.Truef(t, sawMDX, "expected an mdx segment for uppercase-tagged component, got %+v", segs)
}

func TestSplitNestedHTMLWithClosingTag(t *testing.T) {
	segs := Split("<div>inner</div> tail", 0, DefaultConfig(), nil)
	require.GreaterOrEqualf(t, len(segs), 2, "expected at least html+text segments, got %+v", segs)
	require.Equal(t, mdoc.SegmentHTML, segs[0].Kind)
	require.Equal(t, "<div>inner</div>", segs[0].Value)
}

func TestExpressionPassSplitsBraces(t *testing.T) {
	segs := Split("value is {x + 1} here", 0, DefaultConfig(), nil)
	var sawExpr bool
	for _, s := range segs {
		if s.Kind == mdoc.SegmentMDX && s.Value == "{x + 1}" {
			sawExpr = true
		}
	}
	require.Truef(t, sawExpr, "expected a {x + 1} mdx expression segment, got %+v", segs)
}

func TestExpressionPassSkipsMath(t *testing.T) {
	segs := Split(`the set $\{1,2\}$ is finite`, 0, DefaultConfig(), nil)
	for _, s := range segs {
		require.NotEqualf(t, mdoc.SegmentMDX, s.Kind, "expected math-looking braces to not split as mdx, got %+v", segs)
	}
}
