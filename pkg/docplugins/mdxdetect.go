package docplugins

import (
	"regexp"
	"strings"

	"github.com/parsehook/mdstream/pkg/mdoc"
)

// MDXDetectPluginID is the registered id of the built-in MDX detection
// plugin.
const MDXDetectPluginID = "mdxdetect"

var (
	reUpperTag    = regexp.MustCompile(`<([A-Z][A-Za-z0-9]*)(\s|/?>)`)
	reImportExport = regexp.MustCompile(`(?m)^\s*(import|export)\b`)
	reBraceExpr   = regexp.MustCompile(`\{([^{}]*)\}`)
	reMathPunct   = regexp.MustCompile(`^[\s0-9+\-*/^_.,=<>()\\]*$`)
	reLatexOpener = regexp.MustCompile(`^\\[A-Za-z]+\{[^{}]*$`)
)

// mdxDetectPlugin retypes eligible paragraph/html blocks to mdx per
// §4.7: an uppercase-leading JSX tag, a line-start import/export
// statement, or a brace expression that doesn't read as math, ignoring
// matches inside protected ranges.
type mdxDetectPlugin struct{}

// NewMDXDetectPlugin builds the mdx-detection plugin.
func NewMDXDetectPlugin() Plugin { return mdxDetectPlugin{} }

func (mdxDetectPlugin) ID() string { return MDXDetectPluginID }

func (p mdxDetectPlugin) Run(ctx *Context) ([]*mdoc.Block, error) {
	for _, blk := range ctx.Blocks {
		if blk.Type != mdoc.BlockParagraph && blk.Type != mdoc.BlockHTML {
			continue
		}
		if detectMDX(blk.Raw) {
			originalType := blk.Type
			blk.Type = mdoc.BlockMDX
			if blk.Meta == nil {
				blk.Meta = map[string]any{}
			}
			blk.Meta["original_type"] = string(originalType)
			blk.Meta["mdxStatus"] = "pending"
		}
	}
	return nil, nil
}

func detectMDX(raw string) bool {
	protected := ProtectedRanges(raw)

	for _, m := range reUpperTag.FindAllStringIndex(raw, -1) {
		if !InProtectedRange(protected, m[0]) {
			return true
		}
	}
	if loc := reImportExport.FindStringIndex(raw); loc != nil && !InProtectedRange(protected, loc[0]) {
		return true
	}

	for _, m := range reBraceExpr.FindAllStringSubmatchIndex(raw, -1) {
		start, end := m[0], m[1]
		if InProtectedRange(protected, start) {
			continue
		}
		inner := raw[m[2]:m[3]]
		if reMathPunct.MatchString(inner) {
			continue
		}
		preceding := precedingNonSpace(raw, start)
		if preceding == '\\' || preceding == '$' || preceding == '^' || preceding == '_' {
			continue
		}
		if insideLatexCommand(raw, start) {
			continue
		}
		_ = end
		return true
	}
	return false
}

func precedingNonSpace(s string, pos int) byte {
	for i := pos - 1; i >= 0; i-- {
		if s[i] == ' ' || s[i] == '\t' {
			continue
		}
		return s[i]
	}
	return 0
}

// insideLatexCommand reports whether pos sits right after a `\cmd{`
// opener still awaiting its matching close brace.
func insideLatexCommand(s string, pos int) bool {
	idx := strings.LastIndexByte(s[:pos], '\\')
	if idx == -1 {
		return false
	}
	between := s[idx:pos]
	return reLatexOpener.MatchString(between)
}
