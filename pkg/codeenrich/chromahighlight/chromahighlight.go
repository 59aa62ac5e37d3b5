// Package chromahighlight adapts alecthomas/chroma into the
// pkg/codeenrich.Highlighter contract.
package chromahighlight

import (
	"context"
	"fmt"
	"strings"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// Highlighter renders code with chroma's HTML formatter, one <span
// class="line"> per source line so codeenrich's post-processing pass
// can stamp data-line attributes.
type Highlighter struct {
	style     *chroma.Style
	formatter *chromahtml.Formatter
}

// New builds a Highlighter using the named chroma style (an unknown name
// resolves to chroma's styles.Fallback).
func New(styleName string) *Highlighter {
	style := styles.Get(styleName)
	if style == nil {
		style = styles.Fallback
	}
	formatter := chromahtml.New(
		chromahtml.WithClasses(true),
		chromahtml.WithLineNumbers(false),
		chromahtml.Standalone(false),
	)
	return &Highlighter{style: style, formatter: formatter}
}

// Load reports whether chroma has a lexer for lang.
func (h *Highlighter) Load(lang string) bool {
	return lexers.Get(lang) != nil
}

// Highlight renders code in lang to HTML. Each output line is wrapped
// in its own <span class="line">...</span> so the enricher can stamp
// data-line attributes without re-parsing chroma's output.
func (h *Highlighter) Highlight(ctx context.Context, lang, code string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	lexer := lexers.Get(lang)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	var out strings.Builder
	out.WriteString(`<pre style="background-color:#ffffff;">`)
	out.WriteString(`<code>`)
	for _, ln := range strings.Split(code, "\n") {
		iterator, err := lexer.Tokenise(nil, ln)
		if err != nil {
			return "", fmt.Errorf("chromahighlight: tokenise: %w", err)
		}
		out.WriteString(`<span class="line">`)
		if err := h.formatter.Format(&out, h.style, iterator); err != nil {
			return "", fmt.Errorf("chromahighlight: format: %w", err)
		}
		out.WriteString("</span>\n")
	}
	out.WriteString("</code></pre>")
	return out.String(), nil
}
