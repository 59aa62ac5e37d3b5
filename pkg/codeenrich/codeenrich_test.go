package codeenrich

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/parsehook/mdstream/pkg/mdoc"
)

type fakeHighlighter struct {
	calls int
}

func (f *fakeHighlighter) Load(lang string) bool { return lang != "go" }

func (f *fakeHighlighter) Highlight(ctx context.Context, lang, code string) (string, error) {
	f.calls++
	return `<pre style="background-color:#fff;"><code><span class="line">` + code + `</span></code></pre>`, nil
}

func TestStripFenceBasic(t *testing.T) {
	r := StripFence("```go\npackage main\n```")
	require.Equal(t, "go", r.Info)
	require.Equal(t, "package main", r.Code)
	require.True(t, r.HadFence)
}

func TestStripIndentedCode(t *testing.T) {
	r := StripFence("    line one\n    line two")
	require.False(t, r.HadFence)
	require.Equal(t, "line one\nline two", r.Code)
}

func TestParseInfoStringMeta(t *testing.T) {
	lang, meta := ParseInfoString("js title=\"demo\" highlight-lines=1,2")
	require.Equal(t, "javascript", lang)
	require.Equal(t, `"demo"`, meta["title"])
}

func TestDirtyCodeBlockSkipsHighlighter(t *testing.T) {
	h := &fakeHighlighter{}
	e := New(h, 10)
	b := &mdoc.Block{Raw: "```go\npackage ma", IsFinalized: false, Meta: map[string]any{}}
	e.Enrich(context.Background(), b, false)
	require.Zero(t, h.calls)
	require.Empty(t, b.HighlightedHTML)
}

func TestFinalizedCodeBlockHighlightsAndCaches(t *testing.T) {
	h := &fakeHighlighter{}
	e := New(h, 10)
	b := &mdoc.Block{Raw: "```go\npackage main\n```", IsFinalized: true, Meta: map[string]any{}}
	e.Enrich(context.Background(), b, false)
	require.Equal(t, 1, h.calls)
	require.NotEmpty(t, b.HighlightedHTML)

	b2 := &mdoc.Block{Raw: "```go\npackage main\n```", IsFinalized: true, Meta: map[string]any{}}
	e.Enrich(context.Background(), b2, false)
	require.Equal(t, 1, h.calls)
}

func TestUnloadableLanguageFallsBackToText(t *testing.T) {
	h := &fakeHighlighter{}
	e := New(h, 10)
	b := &mdoc.Block{Raw: "```go\ncode\n```", IsFinalized: true, Meta: map[string]any{}}
	e.Enrich(context.Background(), b, false)
	require.NotEmpty(t, b.HighlightedHTML)
}
