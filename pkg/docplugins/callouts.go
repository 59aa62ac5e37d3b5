package docplugins

import (
	"regexp"
	"strings"

	"github.com/parsehook/mdstream/pkg/mdoc"
)

// CalloutsPluginID is the registered id of the built-in callouts plugin.
const CalloutsPluginID = "callouts"

var reBlockquoteLine = regexp.MustCompile(`(?m)^>\s?`)
var reCalloutMarker = regexp.MustCompile(`^\[!([A-Za-z]+)\]\s*(.*)$`)

// calloutsPlugin detects GitHub-style blockquote callouts
// (`> [!NOTE]`) and annotates the blockquote block's meta rather than
// retyping it, since a callout is a blockquote with a marker, not a
// distinct block kind.
type calloutsPlugin struct{}

// NewCalloutsPlugin builds the callouts plugin.
func NewCalloutsPlugin() Plugin { return calloutsPlugin{} }

func (calloutsPlugin) ID() string { return CalloutsPluginID }

func (p calloutsPlugin) Run(ctx *Context) ([]*mdoc.Block, error) {
	for _, blk := range ctx.Blocks {
		if blk.Type != mdoc.BlockBlockquote {
			continue
		}
		stripped := reBlockquoteLine.ReplaceAllString(blk.Raw, "")
		firstLine, _, _ := strings.Cut(strings.TrimLeft(stripped, "\n"), "\n")
		m := reCalloutMarker.FindStringSubmatch(strings.TrimSpace(firstLine))
		if m == nil {
			continue
		}
		if blk.Meta == nil {
			blk.Meta = map[string]any{}
		}
		blk.Meta["callout"] = strings.ToLower(m[1])
		if title := strings.TrimSpace(m[2]); title != "" {
			blk.Meta["calloutTitle"] = title
		}
	}
	return nil, nil
}
