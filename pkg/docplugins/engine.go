package docplugins

import "github.com/parsehook/mdstream/pkg/mdoc"

// Engine runs a fixed Registry of plugins against a document's block
// list on every APPEND/FINALIZE, per §4.6's three-step rule.
type Engine struct {
	registry *Registry
	state    map[string]map[string]any
}

// NewEngine builds an Engine bound to registry. One Engine instance is
// created per INIT.
func NewEngine(registry *Registry) *Engine {
	return &Engine{registry: registry, state: map[string]map[string]any{}}
}

// Apply runs every registered plugin in registration order against
// content/blocks, then reconciles synthetic blocks: any prior
// "footnotes" block is dropped, and plugin-returned synthetic blocks are
// appended only when tailFinalized is true (§4.6 step 3). It returns the
// resulting block list.
func (e *Engine) Apply(content []byte, blocks []*mdoc.Block) ([]*mdoc.Block, error) {
	tailFinalized := len(blocks) == 0 || blocks[len(blocks)-1].IsFinalized

	protected := map[string][]mdoc.Range{}
	for _, blk := range blocks {
		protected[blk.ID] = RebaseRanges(ProtectedRanges(blk.Raw), blk.Range.From)
	}

	var synthetic []*mdoc.Block
	for _, p := range e.registry.Plugins() {
		if e.state[p.ID()] == nil {
			e.state[p.ID()] = map[string]any{}
		}
		ctx := &Context{
			Content:         content,
			Blocks:          blocks,
			ProtectedRanges: protected,
			TailFinalized:   tailFinalized,
			State:           e.state[p.ID()],
		}
		added, err := p.Run(ctx)
		if err != nil {
			return blocks, err
		}
		synthetic = append(synthetic, added...)
	}

	out := make([]*mdoc.Block, 0, len(blocks))
	for _, blk := range blocks {
		if blk.Type == mdoc.BlockFootnotes {
			continue
		}
		out = append(out, blk)
	}
	if tailFinalized {
		out = append(out, synthetic...)
	}
	return out, nil
}
