package pipeline

import (
	"context"
	"regexp"
	"strings"

	"github.com/parsehook/mdstream/pkg/anticipate"
	"github.com/parsehook/mdstream/pkg/codeenrich"
	"github.com/parsehook/mdstream/pkg/inline"
	"github.com/parsehook/mdstream/pkg/mdoc"
	"github.com/parsehook/mdstream/pkg/mixed"
)

var (
	reATXHeading     = regexp.MustCompile(`^(#{1,6})\s*(.*?)\s*#*\s*$`)
	reSetextUnderline = regexp.MustCompile(`(?m)^(=+|-+)\s*$`)
	reBlockquoteLine = regexp.MustCompile(`(?m)^>\s?`)
)

// stripHeading implements §4.5's ATX/Setext marker stripping, returning
// the heading level and the normalized text IP parses inline over.
func stripHeading(raw string) (level int, text string) {
	lines := strings.SplitN(raw, "\n", 2)
	first := strings.TrimRight(lines[0], "\r")
	if m := reATXHeading.FindStringSubmatch(first); m != nil {
		return len(m[1]), m[2]
	}
	// Setext: a text line followed by an underline of = or -.
	if len(lines) > 1 && reSetextUnderline.MatchString(strings.TrimSpace(lines[1])) {
		if strings.HasPrefix(strings.TrimSpace(lines[1]), "=") {
			return 1, strings.TrimSpace(first)
		}
		return 2, strings.TrimSpace(first)
	}
	return 1, strings.TrimSpace(first)
}

// normalizeBlockquote strips the leading "> " (or ">") marker from every
// line, per §4.5.
func normalizeBlockquote(raw string) string {
	return reBlockquoteLine.ReplaceAllString(raw, "")
}

// enricher bundles every per-block enrichment collaborator (IP/SA/MS/CE
// plus HTML sanitization) the controller dispatches across BE's output,
// per §4.5's per-type rules.
type enricher struct {
	inlineParser *inline.Parser
	anticipation anticipate.Config
	mixedCfg     mixed.Config
	sanitizer    mixed.Sanitizer
	code         *codeenrich.Enricher
}

func newEnricher(ip *inline.Parser, anticipation anticipate.Config, mixedCfg mixed.Config, sanitizer mixed.Sanitizer, code *codeenrich.Enricher) *enricher {
	return &enricher{inlineParser: ip, anticipation: anticipation, mixedCfg: mixedCfg, sanitizer: sanitizer, code: code}
}

// EnrichBlock mutates blk in place per §4.5, dispatching on its current
// type. force treats blk as finalized regardless of blk.IsFinalized,
// used during the FINALIZE transition.
func (e *enricher) EnrichBlock(ctx context.Context, blk *mdoc.Block, force bool) {
	finalized := force || blk.IsFinalized

	switch blk.Type {
	case mdoc.BlockParagraph:
		e.enrichTextLike(blk, blk.Raw, finalized)
	case mdoc.BlockHeading:
		level, text := stripHeading(blk.Raw)
		blk.Meta["heading_level"] = level
		blk.Meta["heading_text"] = text
		blk.Inline = e.parseInline(text, finalized)
	case mdoc.BlockBlockquote:
		normalized := normalizeBlockquote(blk.Raw)
		e.enrichTextLike(blk, normalized, finalized)
	case mdoc.BlockCode:
		e.code.Enrich(ctx, blk, force)
	case mdoc.BlockHTML:
		blk.SanitizedHTML = sanitizeOrEcho(e.sanitizer, blk.Raw)
	case mdoc.BlockList, mdoc.BlockTable, mdoc.BlockHR,
		mdoc.BlockFootnoteDef, mdoc.BlockFootnotes, mdoc.BlockMDX:
		// List/table substructure is lowered at snapshot time (§4.8);
		// hr carries no content; footnote-def/footnotes/mdx blocks are
		// handled by DP and MDX detection respectively.
	}
}

func (e *enricher) enrichTextLike(blk *mdoc.Block, text string, finalized bool) {
	blk.Inline = e.parseInline(text, finalized)
	if strings.ContainsAny(text, "<{") {
		blk.Meta["segments"] = mixed.Split(text, 0, e.mixedCfg, e.sanitizer)
	}
}

func (e *enricher) parseInline(text string, finalized bool) []*mdoc.InlineNode {
	if finalized {
		return e.inlineParser.Parse(text, inline.Options{Cache: true})
	}
	result := anticipate.Prepare(text, e.anticipation)
	if result.Kind == anticipate.StatusRaw {
		return []*mdoc.InlineNode{mdoc.NewText(text)}
	}
	return e.inlineParser.Parse(result.Content, inline.Options{Cache: true})
}

func sanitizeOrEcho(s mixed.Sanitizer, html string) string {
	if s == nil {
		return html
	}
	return s.Sanitize(html)
}
