package inline

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/parsehook/mdstream/pkg/mdoc"
)

func TestHardBreakBackslash(t *testing.T) {
	p := New(0)
	nodes := p.Parse("line one\\\nline two", Options{})
	found := false
	for _, n := range nodes {
		if n.Kind == mdoc.InlineBreak {
			found = true
		}
	}
	require.Truef(t, found, "expected a hard break node, got %+v", nodes)
}

func TestIntrawordUnderscoreStaysText(t *testing.T) {
	p := New(0)
	nodes := p.Parse("snake_case_value", Options{})
	require.Len(t, nodes, 1)
	require.Equal(t, mdoc.InlineText, nodes[0].Kind)
	require.Equal(t, "snake_case_value", nodes[0].Text)
}

func TestUnderscoreEmphasisAtWordBoundary(t *testing.T) {
	p := New(0)
	nodes := p.Parse("_word_ after", Options{})
	require.NotEmptyf(t, nodes, "expected leading _word_ to parse as emphasis")
	require.Equal(t, mdoc.InlineEm, nodes[0].Kind)
}

func TestMathDisplayMultiline(t *testing.T) {
	p := New(0)
	nodes := p.Parse("$$\nx = y\n$$", Options{})
	require.Len(t, nodes, 1)
	require.Equal(t, mdoc.InlineMathDisplay, nodes[0].Kind)
}

func TestMathRunsBeforeEscapeSoBackslashIsPreserved(t *testing.T) {
	p := New(0)
	nodes := p.Parse(`$$\\$$`, Options{})
	require.Len(t, nodes, 1)
	require.Equal(t, mdoc.InlineMathDisplay, nodes[0].Kind)
	require.Equal(t, `\\`, nodes[0].Tex)
}

func TestCacheReturnsSameSliceOnHit(t *testing.T) {
	p := New(10)
	a := p.Parse("hello *world*", Options{Cache: true})
	b := p.Parse("hello *world*", Options{Cache: true})
	require.Len(t, b, len(a))
	require.Same(t, a[0], b[0])
	require.Equal(t, 1, p.CacheLen())
}

func TestCacheFalseNeitherReadsNorWrites(t *testing.T) {
	p := New(10)
	p.Parse("hello", Options{Cache: false})
	require.Equal(t, 0, p.CacheLen())
}

func TestRegexAnticipationAsteriskOpenYieldsAppend(t *testing.T) {
	p := New(0)
	suffix, ok := p.RegexAnticipationAppend("hello *world")
	require.True(t, ok)
	require.Equal(t, "*", suffix)
}

func TestRegexAnticipationClosedPairYieldsNothing(t *testing.T) {
	p := New(0)
	_, ok := p.RegexAnticipationAppend("hello *world*")
	require.False(t, ok)
}

func TestLinksAndImages(t *testing.T) {
	p := New(0)
	nodes := p.Parse("see [go](https://go.dev) and ![alt](img.png)", Options{})
	var sawLink, sawImage bool
	for _, n := range nodes {
		if n.Kind == mdoc.InlineLink {
			sawLink = true
		}
		if n.Kind == mdoc.InlineImage {
			sawImage = true
		}
	}
	require.True(t, sawLink)
	require.True(t, sawImage)
}

func TestStrongEmphasisTripleNesting(t *testing.T) {
	p := New(0)
	nodes := p.Parse("***both***", Options{})
	require.Len(t, nodes, 1)
	require.Equal(t, mdoc.InlineStrong, nodes[0].Kind)
	require.Len(t, nodes[0].Children, 1)
	require.Equal(t, mdoc.InlineEm, nodes[0].Children[0].Kind)
}
