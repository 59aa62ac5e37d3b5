package inline

import (
	"regexp"
	"strings"

	"github.com/parsehook/mdstream/pkg/mdoc"
)

// DefaultPlugins returns the 13 built-in plugins in their fixed
// precedence order. Math must run before escaped-character so that a
// literal backslash inside `$$...$$` survives; emphasis variants reject
// intraword underscores via Validate since RE2 has no lookbehind.
func DefaultPlugins() []Plugin {
	return []Plugin{
		mathDisplayPlugin(),
		mathInlinePlugin(),
		escapedCharacterPlugin(),
		hardBreakPlugin(),
		codeSpansPlugin(),
		linksPlugin(),
		imagesPlugin(),
		footnoteRefsPlugin(),
		strongEmphasisPlugin(),
		strikethroughPlugin(),
		emphasisPlugin(),
		citationsPlugin(),
		mentionsPlugin(),
	}
}

var reMathDisplay = regexp.MustCompile(`(?s)\$\$(.+?)\$\$`)

func mathDisplayPlugin() Plugin {
	return Plugin{
		Name:     "math-display",
		Priority: 10,
		Kind:     KindRegex,
		Regex: &RegexPlugin{
			Re: reMathDisplay,
			FastCheck: func(text string) bool {
				return strings.Contains(text, "$$")
			},
			ToNode: func(m []string) *Node {
				return &Node{Kind: mdoc.InlineMathDisplay, Tex: m[1]}
			},
			Anticipation: &Anticipation{
				Start:  regexp.MustCompile(`\$\$`),
				End:    regexp.MustCompile(`\$\$`),
				Full:   "$$",
				Append: "$$",
			},
		},
	}
}

var reMathInline = regexp.MustCompile(`\$([^\$\n]+)\$`)

func mathInlinePlugin() Plugin {
	return Plugin{
		Name:     "math-inline",
		Priority: 20,
		Kind:     KindRegex,
		Regex: &RegexPlugin{
			Re: reMathInline,
			FastCheck: func(text string) bool {
				return strings.Contains(text, "$")
			},
			ToNode: func(m []string) *Node {
				return &Node{Kind: mdoc.InlineMathInline, Tex: m[1]}
			},
			Anticipation: &Anticipation{
				Start:  regexp.MustCompile(`\$`),
				End:    regexp.MustCompile(`\$`),
				Full:   "$",
				Append: "$",
			},
		},
	}
}

var reEscaped = regexp.MustCompile(`\\([[:punct:]])`)

func escapedCharacterPlugin() Plugin {
	return Plugin{
		Name:     "escaped-character",
		Priority: 30,
		Kind:     KindRegex,
		Regex: &RegexPlugin{
			Re: reEscaped,
			FastCheck: func(text string) bool {
				return strings.Contains(text, `\`)
			},
			ToNode: func(m []string) *Node {
				return text(m[1])
			},
		},
	}
}

var reHardBreak = regexp.MustCompile(`\\\n| {2,}\n`)

func hardBreakPlugin() Plugin {
	return Plugin{
		Name:     "hard-break",
		Priority: 40,
		Kind:     KindRegex,
		Regex: &RegexPlugin{
			Re: reHardBreak,
			FastCheck: func(t string) bool {
				return strings.Contains(t, "\n")
			},
			ToNode: func(m []string) *Node {
				return &Node{Kind: mdoc.InlineBreak}
			},
		},
	}
}

// reCodeSpans tries the longest fence first so "```x```" is not
// misread as two one-backtick spans either side of "``x``".
var reCodeSpans = regexp.MustCompile("```(.+?)```|``(.+?)``|`(.+?)`")

func codeSpansPlugin() Plugin {
	return Plugin{
		Name:     "code-spans",
		Priority: 50,
		Kind:     KindRegex,
		Regex: &RegexPlugin{
			Re: reCodeSpans,
			FastCheck: func(t string) bool {
				return strings.Contains(t, "`")
			},
			ToNode: func(m []string) *Node {
				for _, g := range m[1:] {
					if g != "" {
						return &Node{Kind: mdoc.InlineCode, Text: g}
					}
				}
				return &Node{Kind: mdoc.InlineCode, Text: ""}
			},
		},
	}
}

var reLink = regexp.MustCompile(`\[([^\]]*)\]\(([^()\s]+)(?:\s+"([^"]*)")?\)`)

func linksPlugin() Plugin {
	return Plugin{
		Name:     "links",
		Priority: 60,
		Kind:     KindRegex,
		Regex: &RegexPlugin{
			Re: reLink,
			FastCheck: func(t string) bool {
				return strings.Contains(t, "](")
			},
			ToNode: func(m []string) *Node {
				return &Node{
					Kind:     mdoc.InlineLink,
					Href:     m[2],
					Title:    m[3],
					Children: []*Node{text(m[1])},
				}
			},
			// A match preceded by "!" is an image; leave it for the
			// images plugin, which runs after this one.
			Validate: func(t string, start, end int) bool {
				return start == 0 || t[start-1] != '!'
			},
		},
	}
}

var reImage = regexp.MustCompile(`!\[([^\]]*)\]\(([^()\s]+)(?:\s+"([^"]*)")?\)`)

func imagesPlugin() Plugin {
	return Plugin{
		Name:     "images",
		Priority: 70,
		Kind:     KindRegex,
		Regex: &RegexPlugin{
			Re: reImage,
			FastCheck: func(t string) bool {
				return strings.Contains(t, "](")
			},
			ToNode: func(m []string) *Node {
				return &Node{Kind: mdoc.InlineImage, Href: m[2], Title: m[3], Alt: m[1]}
			},
		},
	}
}

var reFootnoteRef = regexp.MustCompile(`\[\^([^\]]+)\]`)

func footnoteRefsPlugin() Plugin {
	return Plugin{
		Name:     "footnote-refs",
		Priority: 80,
		Kind:     KindRegex,
		Regex: &RegexPlugin{
			Re: reFootnoteRef,
			FastCheck: func(t string) bool {
				return strings.Contains(t, "[^")
			},
			ToNode: func(m []string) *Node {
				return &Node{Kind: mdoc.InlineFootnoteRef, Label: m[1]}
			},
		},
	}
}

var reStrongEmphasis = regexp.MustCompile(`\*\*\*(.+?)\*\*\*|\*\*(.+?)\*\*|__(.+?)__`)

func strongEmphasisPlugin() Plugin {
	return Plugin{
		Name:     "strong-emphasis",
		Priority: 90,
		Kind:     KindRegex,
		Regex: &RegexPlugin{
			Re: reStrongEmphasis,
			FastCheck: func(t string) bool {
				return strings.Contains(t, "**") || strings.Contains(t, "__")
			},
			ToNode: func(m []string) *Node {
				if m[1] != "" {
					// `***x***` nests em inside strong.
					return &Node{Kind: mdoc.InlineStrong, Children: []*Node{
						{Kind: mdoc.InlineEm, Children: []*Node{text(m[1])}},
					}}
				}
				for _, g := range m[2:] {
					if g != "" {
						return &Node{Kind: mdoc.InlineStrong, Children: []*Node{text(g)}}
					}
				}
				return &Node{Kind: mdoc.InlineStrong}
			},
			Validate: rejectIntrawordUnderscore,
		},
	}
}

var reStrikethrough = regexp.MustCompile(`~~(.+?)~~`)

func strikethroughPlugin() Plugin {
	return Plugin{
		Name:     "strikethrough",
		Priority: 100,
		Kind:     KindRegex,
		Regex: &RegexPlugin{
			Re: reStrikethrough,
			FastCheck: func(t string) bool {
				return strings.Contains(t, "~~")
			},
			ToNode: func(m []string) *Node {
				return &Node{Kind: mdoc.InlineStrike, Children: []*Node{text(m[1])}}
			},
			Anticipation: &Anticipation{
				Start:  regexp.MustCompile(`~~`),
				End:    regexp.MustCompile(`~~`),
				Full:   "~~",
				Append: "~~",
			},
		},
	}
}

var reEmphasis = regexp.MustCompile(`\*([^*\s](?:[^*]*[^*\s])?)\*|_([^_\s](?:[^_]*[^_\s])?)_`)

func emphasisPlugin() Plugin {
	return Plugin{
		Name:     "emphasis",
		Priority: 110,
		Kind:     KindRegex,
		Regex: &RegexPlugin{
			Re: reEmphasis,
			FastCheck: func(t string) bool {
				return strings.ContainsAny(t, "*_")
			},
			ToNode: func(m []string) *Node {
				if m[1] != "" {
					return &Node{Kind: mdoc.InlineEm, Children: []*Node{text(m[1])}}
				}
				return &Node{Kind: mdoc.InlineEm, Children: []*Node{text(m[2])}}
			},
			Validate: rejectIntrawordUnderscore,
			Anticipation: &Anticipation{
				Start:  regexp.MustCompile(`\*`),
				End:    regexp.MustCompile(`\*`),
				Full:   "*",
				Append: "*",
			},
		},
	}
}

var reCitation = regexp.MustCompile(`@cite\{([^}]*)\}|\{cite:([^}]*)\}`)

func citationsPlugin() Plugin {
	return Plugin{
		Name:     "citations",
		Priority: 120,
		Kind:     KindRegex,
		Regex: &RegexPlugin{
			Re: reCitation,
			FastCheck: func(t string) bool {
				return strings.Contains(t, "cite")
			},
			ToNode: func(m []string) *Node {
				key := m[1]
				if key == "" {
					key = m[2]
				}
				return &Node{Kind: mdoc.InlineCitation, Label: key}
			},
		},
	}
}

var reMention = regexp.MustCompile(`@([A-Za-z0-9_]+)`)

func mentionsPlugin() Plugin {
	return Plugin{
		Name:     "mentions",
		Priority: 130,
		Kind:     KindRegex,
		Regex: &RegexPlugin{
			Re: reMention,
			FastCheck: func(t string) bool {
				return strings.Contains(t, "@")
			},
			ToNode: func(m []string) *Node {
				return &Node{Kind: mdoc.InlineMention, Label: m[1]}
			},
		},
	}
}

// rejectIntrawordUnderscore implements the intraword-underscore rule
// that RE2's lack of lookbehind can't express directly: an underscore
// delimiter immediately preceded or followed (outside the match) by an
// alphanumeric is not a delimiter at all, so `snake_case_value` stays
// plain text. Asterisk delimiters have no such restriction.
func rejectIntrawordUnderscore(src string, start, end int) bool {
	if start >= len(src) || src[start] != '_' {
		return true
	}
	if start > 0 && isWordByte(src[start-1]) {
		return false
	}
	if end < len(src) && isWordByte(src[end]) {
		return false
	}
	return true
}

func isWordByte(b byte) bool {
	return b == '_' ||
		(b >= '0' && b <= '9') ||
		(b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z')
}
