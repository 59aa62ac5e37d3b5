// Package codeenrich implements the code enricher (CE): fence
// stripping, info-string parsing, language alias normalization, and
// (once a code block is finalized) syntax highlighting with a
// post-processing pass over the resulting HTML.
package codeenrich

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/parsehook/mdstream/internal/lru"
	"github.com/parsehook/mdstream/pkg/langdetect"
	"github.com/parsehook/mdstream/pkg/mdoc"
)

// Highlighter renders code to HTML for a given language. Implementations
// may need to lazily load grammar data; Load reports whether lang is
// available without rendering anything.
type Highlighter interface {
	Load(lang string) bool
	Highlight(ctx context.Context, lang, code string) (html string, err error)
}

// DefaultHighlightCacheSize is the default highlight cache capacity
// (keyed by "lang::body").
const DefaultHighlightCacheSize = 200

// Enricher runs code-block enrichment with a shared highlight cache.
type Enricher struct {
	highlighter Highlighter
	cache       *lru.Cache[string, string]
}

// New builds an Enricher. A nil highlighter disables highlighting;
// finalized code blocks then simply carry their parsed lines with no
// highlighted_html.
func New(highlighter Highlighter, cacheSize int) *Enricher {
	return &Enricher{highlighter: highlighter, cache: lru.New[string, string](cacheSize)}
}

// StripResult is the outcome of fence/indent stripping.
type StripResult struct {
	Code     string
	Info     string
	HadFence bool
}

var reFenceOpen = regexp.MustCompile("^```.*")

// StripFence implements §4.4's fence-detection rule.
func StripFence(raw string) StripResult {
	lines := strings.Split(raw, "\n")
	if len(lines) > 0 && reFenceOpen.MatchString(lines[0]) {
		info := strings.TrimSpace(strings.TrimPrefix(lines[0], "```"))
		body := lines[1:]
		if len(body) > 0 && strings.TrimSpace(body[len(body)-1]) == "```" {
			body = body[:len(body)-1]
		}
		return StripResult{Code: strings.Join(body, "\n"), Info: info, HadFence: true}
	}

	indent := minIndent(lines)
	if indent >= 4 {
		for i, l := range lines {
			if len(l) >= indent {
				lines[i] = l[indent:]
			}
		}
	}
	return StripResult{Code: strings.Join(lines, "\n"), Info: "", HadFence: false}
}

func minIndent(lines []string) int {
	min := -1
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		n := 0
		for n < len(l) && l[n] == ' ' {
			n++
		}
		if min == -1 || n < min {
			min = n
		}
	}
	if min == -1 {
		return 0
	}
	return min
}

// ParseInfoString splits the fence info string into a normalized
// language and a meta bag of key=value/bare-flag entries.
func ParseInfoString(info string) (lang string, meta map[string]any) {
	fields := strings.Fields(info)
	meta = map[string]any{}
	if len(fields) == 0 {
		return NormalizeLanguage(""), meta
	}
	lang = NormalizeLanguage(fields[0])
	for _, f := range fields[1:] {
		if k, v, ok := strings.Cut(f, "="); ok {
			meta[k] = v
		} else {
			meta[f] = true
		}
	}
	return lang, meta
}

// Enrich mutates block in place per §4.4. force makes the block behave
// as finalized regardless of b.IsFinalized, used during FINALIZE.
func (e *Enricher) Enrich(ctx context.Context, b *mdoc.Block, force bool) {
	stripped := StripFence(b.Raw)
	lang, meta := ParseInfoString(stripped.Info)
	meta["lang"] = lang
	b.Meta = mergeMeta(b.Meta, meta)
	b.Meta["code"] = stripped.Code
	b.Meta["had_fence"] = stripped.HadFence

	finalized := force || b.IsFinalized
	if !finalized {
		b.HighlightedHTML = ""
		return
	}
	if e.highlighter == nil {
		return
	}

	cacheKey := lang + "::" + stripped.Code
	if cached, ok := e.cache.Get(cacheKey); ok {
		b.HighlightedHTML = cached
		return
	}

	resolvedLang := lang
	if !e.highlighter.Load(resolvedLang) {
		resolvedLang = "text"
	}
	html, err := e.highlighter.Highlight(ctx, resolvedLang, stripped.Code)
	if err != nil {
		b.Meta["lang"] = "text"
		return
	}
	html = postProcess(html, resolvedLang)
	e.cache.Put(cacheKey, html)
	if resolvedLang != lang {
		e.cache.Put(resolvedLang+"::"+stripped.Code, html)
	}
	b.HighlightedHTML = html
}

func mergeMeta(existing, update map[string]any) map[string]any {
	if existing == nil {
		existing = map[string]any{}
	}
	for k, v := range update {
		existing[k] = v
	}
	return existing
}

var (
	reLineSpan  = regexp.MustCompile(`<span class="line">`)
	rePreStyle  = regexp.MustCompile(`style="([^"]*)"`)
	reBgDecl    = regexp.MustCompile(`(?:background(?:-color)?|--shiki-[a-z-]*-bg)\s*:[^;"]*;?`)
	reCodeOpen  = regexp.MustCompile(`<code(\s[^>]*)?>`)
)

// postProcess implements §4.4's HTML post-processing: number each
// line, stamp data-language/data-theme on <code>, and strip any
// highlighter-supplied background so the surrounding theme shows
// through.
func postProcess(html, lang string) string {
	line := 0
	html = reLineSpan.ReplaceAllStringFunc(html, func(m string) string {
		line++
		return `<span class="line" data-line="` + strconv.Itoa(line) + `">`
	})

	html = rePreStyle.ReplaceAllStringFunc(html, func(m string) string {
		sub := reBgDecl.ReplaceAllString(m, "")
		if !strings.Contains(sub, "--mdstream-bg") {
			sub = strings.TrimSuffix(sub, `"`) + ` --mdstream-bg: transparent;"`
		}
		return sub
	})

	if reCodeOpen.MatchString(html) {
		html = reCodeOpen.ReplaceAllStringFunc(html, func(m string) string {
			return strings.TrimSuffix(m, ">") + ` data-language="` + lang + `" data-theme="__pending__">`
		})
	}
	return html
}

// DetectFallback runs content-sniffing language detection for code
// blocks whose info string carried no language token at all.
func DetectFallback(code string) string {
	return langdetect.Detect([]byte(code))
}
