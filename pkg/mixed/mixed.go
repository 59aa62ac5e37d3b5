// Package mixed implements the mixed-content splitter (MS): it slices a
// block's raw text into an ordered list of text/html/mdx segments,
// handling unterminated tags (auto-close or fall back to text) and a
// second expression pass over `{ ... }` braces for MDX-looking runs.
package mixed

import (
	"regexp"
	"strings"

	"github.com/parsehook/mdstream/pkg/mdoc"
)

// Sanitizer sanitizes raw HTML; pkg/sanitize/bluemondaysanitize provides
// the bluemonday-backed implementation used in production.
type Sanitizer interface {
	Sanitize(html string) string
}

// Config controls tag auto-close and allowlisting behavior.
type Config struct {
	HTMLAutoClose   bool
	HTMLMaxNewlines int
	HTMLAllowlist   map[string]bool

	MDXAutoClose      bool
	MDXMaxNewlines    int
	MDXComponentNames map[string]bool // nil means unrestricted
}

// DefaultConfig matches the conservative defaults implied by §4.3.
func DefaultConfig() Config {
	return Config{
		HTMLAutoClose:   true,
		HTMLMaxNewlines: 2,
		HTMLAllowlist: map[string]bool{
			"div": true, "span": true, "p": true, "section": true,
			"details": true, "summary": true, "em": true, "strong": true,
			"ul": true, "ol": true, "li": true, "blockquote": true,
		},
		MDXAutoClose:   true,
		MDXMaxNewlines: 2,
	}
}

var voidElements = map[string]bool{
	"br": true, "hr": true, "img": true, "meta": true, "input": true,
	"link": true, "source": true, "track": true, "area": true,
	"base": true, "col": true, "embed": true,
}

var reOpenTag = regexp.MustCompile(`<([A-Za-z][A-Za-z0-9]*)((?:\s+[^<>]*)?)(/?)>`)

// Split produces the ordered segment list for raw, with Range fields
// offset by base (pass 0 for a block-relative split).
func Split(raw string, base int, cfg Config, sanitizer Sanitizer) []mdoc.MixedContentSegment {
	segs := tagPass(raw, base, cfg, sanitizer)
	segs = expressionPass(segs, base)
	return mergeAdjacentText(segs)
}

func tagPass(raw string, base int, cfg Config, sanitizer Sanitizer) []mdoc.MixedContentSegment {
	var out []mdoc.MixedContentSegment
	cursor := 0
	textStart := 0

	flushText := func(end int) {
		if end > textStart {
			out = append(out, mdoc.MixedContentSegment{
				Kind:  mdoc.SegmentText,
				Value: raw[textStart:end],
				Range: &mdoc.Range{From: base + textStart, To: base + end},
			})
		}
	}

	for cursor < len(raw) {
		idx := strings.IndexByte(raw[cursor:], '<')
		if idx < 0 {
			break
		}
		start := cursor + idx
		loc := reOpenTag.FindStringSubmatchIndex(raw[start:])
		if loc == nil || loc[0] != 0 {
			cursor = start + 1
			continue
		}
		name := raw[start+loc[2] : start+loc[3]]
		selfClosing := loc[7] > loc[6] && raw[start+loc[6]:start+loc[7]] == "/"
		tagEnd := start + loc[1]
		isMDX := name != "" && name[0] >= 'A' && name[0] <= 'Z'
		isVoid := voidElements[strings.ToLower(name)]

		if selfClosing || isVoid {
			flushText(start)
			out = append(out, makeTagSegment(raw[start:tagEnd], base, start, tagEnd, isMDX, sanitizer))
			cursor = tagEnd
			textStart = cursor
			continue
		}

		if isMDX {
			seg, consumedTo, ok := splitMDXTag(raw, start, tagEnd, name, cfg, sanitizer)
			if !ok {
				// Not an allowlisted component / can't safely anticipate: leave as text.
				cursor = start + 1
				continue
			}
			flushText(start)
			seg.Range = &mdoc.Range{From: base + start, To: base + consumedTo}
			out = append(out, seg)
			cursor = consumedTo
			textStart = cursor
			continue
		}

		seg, consumedTo, ok := splitHTMLTag(raw, start, tagEnd, name, cfg, sanitizer)
		if !ok {
			cursor = start + 1
			continue
		}
		flushText(start)
		seg.Range = &mdoc.Range{From: base + start, To: base + consumedTo}
		out = append(out, seg)
		cursor = consumedTo
		textStart = cursor
	}

	flushText(len(raw))
	return out
}

func makeTagSegment(value string, base, from, to int, isMDX bool, sanitizer Sanitizer) mdoc.MixedContentSegment {
	if isMDX {
		return mdoc.MixedContentSegment{
			Kind:   mdoc.SegmentMDX,
			Value:  value,
			Range:  &mdoc.Range{From: base + from, To: base + to},
			Status: mdoc.CompilePending,
		}
	}
	return mdoc.MixedContentSegment{
		Kind:      mdoc.SegmentHTML,
		Value:     value,
		Range:     &mdoc.Range{From: base + from, To: base + to},
		Sanitized: sanitizeOrEmpty(sanitizer, value),
	}
}

func sanitizeOrEmpty(s Sanitizer, html string) string {
	if s == nil {
		return html
	}
	return s.Sanitize(html)
}

// splitHTMLTag finds the matching closing tag for an HTML element with
// nesting, synthesizing a close tag when autoClose is enabled and no
// match is found within the configured newline budget.
func splitHTMLTag(raw string, start, tagEnd int, name string, cfg Config, sanitizer Sanitizer) (mdoc.MixedContentSegment, int, bool) {
	closeIdx, found := findMatchingClose(raw, tagEnd, name)
	if found {
		value := raw[start:closeIdx]
		return mdoc.MixedContentSegment{
			Kind:      mdoc.SegmentHTML,
			Value:     value,
			Sanitized: sanitizeOrEmpty(sanitizer, value),
		}, closeIdx, true
	}

	tail := raw[tagEnd:]
	if cfg.HTMLAutoClose && cfg.HTMLAllowlist[strings.ToLower(name)] && countNewlines(tail) <= cfg.HTMLMaxNewlines {
		value := raw[start:] + "</" + name + ">"
		return mdoc.MixedContentSegment{
			Kind:      mdoc.SegmentHTML,
			Value:     value,
			Sanitized: sanitizeOrEmpty(sanitizer, value),
		}, len(raw), true
	}
	return mdoc.MixedContentSegment{}, 0, false
}

func splitMDXTag(raw string, start, tagEnd int, name string, cfg Config, sanitizer Sanitizer) (mdoc.MixedContentSegment, int, bool) {
	if cfg.MDXComponentNames != nil && !cfg.MDXComponentNames[name] {
		return mdoc.MixedContentSegment{}, 0, false
	}

	closeIdx, found := findMatchingClose(raw, tagEnd, name)
	if found {
		value := raw[start:closeIdx]
		return mdoc.MixedContentSegment{Kind: mdoc.SegmentMDX, Value: value, Status: mdoc.CompilePending}, closeIdx, true
	}

	tail := raw[tagEnd:]
	if cfg.MDXAutoClose && countNewlines(tail) <= cfg.MDXMaxNewlines {
		rewritten := strings.TrimSuffix(raw[start:tagEnd], ">") + " />"
		return mdoc.MixedContentSegment{Kind: mdoc.SegmentMDX, Value: rewritten, Status: mdoc.CompilePending}, tagEnd, true
	}
	return mdoc.MixedContentSegment{}, 0, false
}

var reAnyTag = regexp.MustCompile(`</?([A-Za-z][A-Za-z0-9]*)[^<>]*>`)

func findMatchingClose(raw string, from int, name string) (int, bool) {
	depth := 1
	pos := from
	for pos < len(raw) {
		loc := reAnyTag.FindStringSubmatchIndex(raw[pos:])
		if loc == nil {
			return 0, false
		}
		tagName := raw[pos+loc[2] : pos+loc[3]]
		isClose := raw[pos+loc[0]+1] == '/'
		end := pos + loc[1]
		if !strings.EqualFold(tagName, name) {
			pos = end
			continue
		}
		if isClose {
			depth--
			if depth == 0 {
				return end, true
			}
		} else if !strings.HasSuffix(raw[pos+loc[0]:end], "/>") {
			depth++
		}
		pos = end
	}
	return 0, false
}

func countNewlines(s string) int {
	return strings.Count(s, "\n")
}

// looksLikeMath is the heuristic §4.3 uses to skip the expression pass
// over text that is actually TeX.
func looksLikeMath(s string) bool {
	if strings.Contains(s, "$$") || strings.Contains(s, `\begin{`) || strings.Contains(s, `\end{`) {
		return true
	}
	if strings.ContainsAny(s, "([") && strings.ContainsAny(s, `\`) {
		if strings.Contains(s, `\(`) || strings.Contains(s, `\)`) || strings.Contains(s, `\[`) || strings.Contains(s, `\]`) {
			return true
		}
	}
	if reSingleDollarMath.MatchString(s) {
		return true
	}
	if reLatexCmd.MatchString(s) {
		return true
	}
	return false
}

var reSingleDollarMath = regexp.MustCompile(`\$[^$\n]+\$`)
var reLatexCmd = regexp.MustCompile(`\\[A-Za-z]+\{`)

// reTopLevelBrace finds single-level {...} runs (no nested braces),
// matching the expression pass's "no nested braces" rule.
var reTopLevelBrace = regexp.MustCompile(`\{[^{}]*\}`)

func expressionPass(segs []mdoc.MixedContentSegment, base int) []mdoc.MixedContentSegment {
	var out []mdoc.MixedContentSegment
	for _, seg := range segs {
		if seg.Kind != mdoc.SegmentText || looksLikeMath(seg.Value) {
			out = append(out, seg)
			continue
		}
		locs := reTopLevelBrace.FindAllStringIndex(seg.Value, -1)
		if len(locs) == 0 {
			out = append(out, seg)
			continue
		}
		cursor := 0
		var rangeFrom int
		if seg.Range != nil {
			rangeFrom = seg.Range.From
		}
		for _, loc := range locs {
			if loc[0] > cursor {
				out = append(out, mdoc.MixedContentSegment{
					Kind:  mdoc.SegmentText,
					Value: seg.Value[cursor:loc[0]],
					Range: &mdoc.Range{From: rangeFrom + cursor, To: rangeFrom + loc[0]},
				})
			}
			out = append(out, mdoc.MixedContentSegment{
				Kind:   mdoc.SegmentMDX,
				Value:  seg.Value[loc[0]:loc[1]],
				Range:  &mdoc.Range{From: rangeFrom + loc[0], To: rangeFrom + loc[1]},
				Status: mdoc.CompilePending,
			})
			cursor = loc[1]
		}
		if cursor < len(seg.Value) {
			out = append(out, mdoc.MixedContentSegment{
				Kind:  mdoc.SegmentText,
				Value: seg.Value[cursor:],
				Range: &mdoc.Range{From: rangeFrom + cursor, To: rangeFrom + len(seg.Value)},
			})
		}
	}
	return out
}

func mergeAdjacentText(segs []mdoc.MixedContentSegment) []mdoc.MixedContentSegment {
	var out []mdoc.MixedContentSegment
	for _, seg := range segs {
		if seg.Kind == mdoc.SegmentText && seg.Value == "" {
			continue
		}
		if len(out) > 0 {
			prev := &out[len(out)-1]
			if prev.Kind == mdoc.SegmentText && seg.Kind == mdoc.SegmentText &&
				prev.Range != nil && seg.Range != nil && prev.Range.To == seg.Range.From {
				prev.Value += seg.Value
				prev.Range.To = seg.Range.To
				continue
			}
		}
		out = append(out, seg)
	}
	return out
}
