// Package docplugins implements the document plugins component (DP): a
// registry of aggregate-across-blocks passes that run after block
// extraction and per-block enrichment, generalized from the teacher's
// pkg/lint Registry/Rule pattern.
package docplugins

import "github.com/parsehook/mdstream/pkg/mdoc"

// Context is the argument passed to every plugin's Run. Blocks may be
// mutated in place; synthetic blocks a plugin wants appended are
// returned from Run instead.
type Context struct {
	// Content is the full current document source.
	Content []byte

	// Blocks is the live block list, already enriched by IP/SA/MS/CE.
	Blocks []*mdoc.Block

	// ProtectedRanges maps each block's id to its protected byte ranges
	// (code spans, math spans), rebased to absolute document offsets.
	ProtectedRanges map[string][]mdoc.Range

	// TailFinalized reports whether the last block in Blocks is
	// finalized, per the "never append synthetic blocks while the tail
	// is dirty" rule.
	TailFinalized bool

	// State is this plugin's own persistent scratch space, kept across
	// calls for the lifetime of the current document (reset on INIT).
	State map[string]any
}

// Plugin is one document-aggregate pass. ID must be stable and unique;
// the engine registers at most one instance per known ID.
type Plugin interface {
	ID() string
	Run(ctx *Context) ([]*mdoc.Block, error)
}
