// Package inline implements the streaming inline parser (IP): an ordered
// fold of regex and AST plugins over a text run, producing a tree of
// mdoc.InlineNode values. Plugin precedence is fixed by Priority (lower
// runs first; registration order breaks ties), matching the grounding in
// the specification's default plugin table.
package inline

import "regexp"

// PluginKind tags whether a Plugin matches via compiled regexp or walks
// the already-built node tree.
type PluginKind int

const (
	KindRegex PluginKind = iota
	KindAST
)

// RegexPlugin tokenizes text nodes by running a global regexp match and
// replacing each match with the node ToNode produces. FastCheck is an
// optional cheap pre-filter (e.g. bytes.IndexByte) run before the regexp
// engine is invoked at all, letting the fold skip plugins that plainly
// cannot match a given text node.
type RegexPlugin struct {
	Re        *regexp.Regexp
	ToNode    func(match []string) *Node
	FastCheck func(text string) bool

	// Anticipation describes how to speculatively close an unterminated
	// occurrence of this plugin's markers during streaming; nil if this
	// plugin has no anticipation behavior.
	Anticipation *Anticipation

	// Validate is an optional post-match filter over the full text and
	// absolute match bounds. It exists because RE2 has neither
	// lookaround nor backreferences: intraword-underscore rejection and
	// similar context-sensitive rules are expressed here instead of in
	// the regexp itself.
	Validate func(text string, start, end int) bool
}

// Anticipation configures format-anticipation scanning for a single
// regex plugin (§4.1 regex_anticipation_append).
type Anticipation struct {
	// Start and End bound the marker pair this plugin anticipates. If
	// End == Start the marker is symmetric (e.g. "**"); unterminated-ness
	// is then decided by parity of occurrence count in the scanned tail.
	Start *regexp.Regexp
	End   *regexp.Regexp

	// Full is the fully-closed form (used by callers that want to
	// re-attempt a full parse of content+append).
	Full string

	// Append is the string to append to speculatively close the marker.
	Append string

	// MaxScanChars overrides the default scan window for this plugin.
	MaxScanChars int
}

// ASTPlugin walks the already-tokenized node tree and may replace nodes
// wholesale (used for plugins whose grammar isn't expressible as a single
// regexp pass, e.g. context-sensitive citation forms).
type ASTPlugin struct {
	Visit func(n *Node, ctx *VisitContext) *Node
}

// VisitContext carries the minimal state an ASTPlugin needs: the parent
// chain is not tracked since no default plugin requires it.
type VisitContext struct{}

// Plugin is a single entry in the inline parser's ordered plugin list.
type Plugin struct {
	Name     string
	Priority int
	Kind     PluginKind
	Regex    *RegexPlugin
	AST      *ASTPlugin
}
