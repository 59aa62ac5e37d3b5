package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/parsehook/mdstream/pkg/backpressure"
	"github.com/parsehook/mdstream/pkg/blockextract"
	"github.com/parsehook/mdstream/pkg/coalesce"
	"github.com/parsehook/mdstream/pkg/codeenrich"
	"github.com/parsehook/mdstream/pkg/docplugins"
	"github.com/parsehook/mdstream/pkg/inline"
	"github.com/parsehook/mdstream/pkg/mdoc"
	"github.com/parsehook/mdstream/pkg/mdxlifecycle"
	"github.com/parsehook/mdstream/pkg/metrics"
	"github.com/parsehook/mdstream/pkg/mixed"
	"github.com/parsehook/mdstream/pkg/snapshot"
	"github.com/parsehook/mdstream/pkg/treediff"
	"github.com/parsehook/mdstream/pkg/wire"
)

// buildRegistry installs at most one instance of each known DP plugin,
// driven by cfg, per §4.6's "register at most one instance of each
// known plugin" rule.
func buildRegistry(cfg wire.DocPluginsConfig, extractor *blockextract.Extractor) *docplugins.Registry {
	reg := docplugins.NewRegistry()
	if cfg.Tables {
		reg.Register(docplugins.NewTablesPlugin(extractor))
	}
	if cfg.Footnotes {
		reg.Register(docplugins.NewFootnotesPlugin())
	}
	if cfg.Callouts {
		reg.Register(docplugins.NewCalloutsPlugin())
	}
	// The html plugin always runs: it is the feature gate deciding
	// whether raw HTML survives as "html" or is demoted to escaped
	// paragraph text, independent of whether other plugins are active.
	reg.Register(docplugins.NewHTMLPlugin(cfg.HTML))
	if cfg.MDX {
		reg.Register(docplugins.NewMDXDetectPlugin())
	}
	return reg
}

// HandleInit resets all controller state per §4.10's INIT transition.
func (c *Controller) HandleInit(payload wire.InitPayload) []wire.WorkerOut {
	c.extractor = blockextract.New()
	c.inlineParser = inline.New(inline.DefaultMaxCacheEntries)
	anticipation := anticipationConfig(payload.DocPlugins.FormatAnticipation)
	sanitizerSlot := currentSanitizer(c)
	c.enr = newEnricher(c.inlineParser, anticipation, mixed.DefaultConfig(), sanitizerSlot, c.codeEnricher(payload.PrewarmLangs))
	c.dpEngine = docplugins.NewEngine(buildRegistry(payload.DocPlugins, c.extractor))
	c.snapBuilder = snapshot.NewBuilder(c.extractor, sanitizerSlot)
	c.bp = backpressure.New()
	c.mdx.Reset()
	c.mdxMode = mdxlifecycleMode(payload.MDX.CompileMode)

	c.content = nil
	c.blocks = nil
	c.prevRoot = mdoc.NewSnapshot("root", "root")
	c.tx = 0

	out := []wire.WorkerOut{{Type: wire.OutInitialized, Blocks: nil}}

	if payload.InitialContent == "" {
		return out
	}

	c.content = []byte(payload.InitialContent)
	blocks, err := c.extractAndEnrich(context.Background(), c.content, false)
	if err != nil {
		var iv *invariantViolationError
		if errors.As(err, &iv) {
			return append(out, c.resetState(err.Error()))
		}
		return append(out, wire.NewErrorMessage(string(wire.InInit), err, nil, time.Now().UnixMilli()))
	}
	c.blocks = blocks
	out[0].Blocks = blocks

	newRoot := c.snapBuilder.BuildRoot(blocks)
	patches := treediff.Diff(c.prevRoot, newRoot)
	c.prevRoot = newRoot
	if len(patches) > 0 {
		c.tx++
		out = append(out, wire.WorkerOut{Type: wire.OutPatch, Tx: c.tx, Patches: patches})
	}
	return out
}

// HandleAppend implements §4.10's APPEND transition.
func (c *Controller) HandleAppend(ctx context.Context, text string, results chan<- mdxWorkerResult) []wire.WorkerOut {
	mb := metrics.NewBuilder(GrammarEngine)

	t0 := time.Now()
	c.content = append(c.content, []byte(text)...)
	prevBlocks := c.blocks
	blocks, err := c.extractAndEnrich(ctx, c.content, false)
	mb.SetParseMS(msSince(t0))
	if err != nil {
		var iv *invariantViolationError
		if errors.As(err, &iv) {
			return []wire.WorkerOut{c.resetState(err.Error())}
		}
		return []wire.WorkerOut{wire.NewErrorMessage(string(wire.InAppend), err, nil, time.Now().UnixMilli())}
	}
	c.blocks = blocks
	c.carryForwardMDX(prevBlocks, blocks)
	c.dispatchPendingMDX(ctx, blocks, results)

	tDiff := time.Now()
	newRoot := c.snapBuilder.BuildRoot(blocks)
	patches := treediff.Diff(c.prevRoot, newRoot)
	c.prevRoot = newRoot
	mb.SetDiffMS(msSince(tDiff))

	tCoalesce := time.Now()
	coalesced, coalesceMetrics := coalesce.Coalesce(patches, 0)
	mb.SetCoalesceMS(msSince(tCoalesce))
	mb.SetCoalescing(coalesceMetrics.MergedAppend, coalesceMetrics.MergedProps, coalesceMetrics.BatchedProps)

	emitted := c.bp.Partition(coalesced)
	mb.SetPatchStats(len(emitted), patchBytes(emitted), metrics.AppendBatchStat{})

	// §4.10/§4.14: at most one PATCH carrying its metrics inline, plus the
	// same transaction surfaced independently as a standalone METRICS
	// message, emitted even when the transaction produced zero patches.
	tx := mb.Build()
	var out []wire.WorkerOut
	if len(emitted) > 0 {
		c.tx++
		msg := wire.WorkerOut{Type: wire.OutPatch, Tx: c.tx, Patches: emitted}
		msg, _ = wire.WithMetrics(msg, tx)
		out = append(out, msg)
	}
	metricsMsg, _ := wire.WithMetrics(wire.WorkerOut{Type: wire.OutMetrics}, tx)
	out = append(out, metricsMsg)
	return out
}

// HandleFinalize implements §4.10's FINALIZE transition: one PATCH of
// finalize(at) operations for every dirty block, then a re-enrichment
// pass with force_finalize, then the resulting content + block-replace
// patches.
func (c *Controller) HandleFinalize(ctx context.Context) []wire.WorkerOut {
	var out []wire.WorkerOut

	var finalizePatches []mdoc.Patch
	for _, b := range c.blocks {
		if !b.IsFinalized {
			finalizePatches = append(finalizePatches, mdoc.Finalize(mdoc.NodePath{BlockID: b.ID}))
		}
	}
	if len(finalizePatches) > 0 {
		c.tx++
		out = append(out, wire.WorkerOut{Type: wire.OutPatch, Tx: c.tx, Patches: finalizePatches})
	}

	preFinalizeRoot := c.prevRoot
	wasFinalized := make(map[string]bool, len(c.blocks))
	for _, b := range c.blocks {
		wasFinalized[b.ID] = b.IsFinalized
	}

	blocks, err := c.extractAndEnrich(ctx, c.content, true)
	if err != nil {
		var iv *invariantViolationError
		if errors.As(err, &iv) {
			return append(out, c.resetState(err.Error()))
		}
		return append(out, wire.NewErrorMessage(string(wire.InFinalize), err, nil, time.Now().UnixMilli()))
	}
	c.blocks = blocks

	newRoot := c.snapBuilder.BuildRoot(blocks)
	patches := treediff.Diff(preFinalizeRoot, newRoot)
	c.prevRoot = newRoot
	if len(patches) > 0 {
		c.tx++
		out = append(out, wire.WorkerOut{Type: wire.OutPatch, Tx: c.tx, Patches: patches})
	}

	var propPatches []mdoc.Patch
	for _, b := range blocks {
		if wasFinalized[b.ID] {
			continue
		}
		propPatches = append(propPatches, mdoc.SetProps(mdoc.NodePath{BlockID: b.ID}, map[string]any{"block": b.Clone()}))
	}
	if len(propPatches) > 0 {
		c.tx++
		out = append(out, wire.WorkerOut{Type: wire.OutPatch, Tx: c.tx, Patches: propPatches})
	}
	return out
}

// HandleSetCredits implements §4.10's SET_CREDITS transition: the
// explicit credit overrides the queue-depth EMA, and any deferred
// patches it newly affords get flushed immediately.
func (c *Controller) HandleSetCredits(credits float64) []wire.WorkerOut {
	c.bp.SetCredit(credits)
	if !c.bp.HasDeferred() {
		return nil
	}
	flushed := c.bp.Flush()
	if len(flushed) == 0 {
		return nil
	}
	c.tx++
	return []wire.WorkerOut{{Type: wire.OutPatch, Tx: c.tx, Patches: flushed}}
}

// HandleMDXCompiled implements the server-mode compile success path
// (§4.9).
func (c *Controller) HandleMDXCompiled(blockID, compiledID string) []wire.WorkerOut {
	if !c.mdx.IsPending(blockID) {
		return nil
	}
	c.mdx.Resolve(blockID)
	blk := c.findBlock(blockID)
	if blk == nil {
		return nil
	}
	blk.Meta["mdxStatus"] = "compiled"
	blk.CompiledMDXRef = &mdoc.MDXRef{ID: compiledID}
	return c.mdxServerPatch(blk)
}

// HandleMDXError implements the server-mode compile failure path (§4.9).
func (c *Controller) HandleMDXError(blockID, errMsg string) []wire.WorkerOut {
	if !c.mdx.IsPending(blockID) {
		return nil
	}
	c.mdx.Resolve(blockID)
	blk := c.findBlock(blockID)
	if blk == nil {
		return nil
	}
	blk.Meta["mdxStatus"] = "error"
	if errMsg != "" {
		blk.Meta["mdxError"] = errMsg
	}
	return c.mdxServerPatch(blk)
}

func (c *Controller) mdxServerPatch(blk *mdoc.Block) []wire.WorkerOut {
	newRoot := c.snapBuilder.BuildRoot(c.blocks)
	patches := treediff.Diff(c.prevRoot, newRoot)
	c.prevRoot = newRoot
	if len(patches) == 0 {
		return nil
	}
	c.tx++
	return []wire.WorkerOut{{Type: wire.OutPatch, Tx: c.tx, Patches: patches}}
}

// extractAndEnrich runs BE, per-block enrichment, and DP aggregation in
// order, per §2's data-flow line, and validates the resulting invariant
// set before returning.
func (c *Controller) extractAndEnrich(ctx context.Context, content []byte, forceFinalize bool) ([]*mdoc.Block, error) {
	blocks := c.extractor.Extract(content, forceFinalize)
	for _, b := range blocks {
		c.enr.EnrichBlock(ctx, b, forceFinalize)
	}
	// MDX detection (§4.7) runs inside dpEngine.Apply below, retyping
	// eligible paragraph/html blocks to mdx before mdxStatus is stamped.
	enriched, err := c.dpEngine.Apply(content, blocks)
	if err != nil {
		return nil, fmt.Errorf("pipeline: document plugins: %w", err)
	}
	for _, b := range enriched {
		if b.Type == mdoc.BlockMDX && b.Meta["mdxStatus"] == nil {
			b.Meta["mdxStatus"] = "pending"
			c.mdx.MarkPending(b.ID)
		}
	}
	if err := mdoc.ValidateBlockList(enriched); err != nil {
		return nil, &invariantViolationError{err: fmt.Errorf("pipeline: invariant violation: %w", err)}
	}
	return enriched, nil
}

// invariantViolationError marks an extractAndEnrich failure as the fatal
// class of §7's taxonomy: one that discards all controller state and
// emits RESET rather than a recoverable ERROR.
type invariantViolationError struct{ err error }

func (e *invariantViolationError) Error() string { return e.err.Error() }
func (e *invariantViolationError) Unwrap() error { return e.err }

// resetState discards all per-document state and reports RESET{reason},
// per §7: "raise a fatal internal error, emit RESET{reason}, discard
// state, await next INIT". The controller is left unusable until the
// next HandleInit call rebuilds every subsystem.
func (c *Controller) resetState(reason string) wire.WorkerOut {
	c.content = nil
	c.blocks = nil
	c.prevRoot = mdoc.NewSnapshot("root", "root")
	c.tx = 0
	c.mdx.Reset()
	return wire.NewResetMessage(reason)
}

// carryForwardMDX implements §4.9's "unchanged raw, lost compiled
// fields" copy-forward rule.
func (c *Controller) carryForwardMDX(prev, next []*mdoc.Block) {
	prevByID := make(map[string]*mdoc.Block, len(prev))
	for _, b := range prev {
		prevByID[b.ID] = b
	}
	for _, b := range next {
		old, ok := prevByID[b.ID]
		if !ok || old.Raw != b.Raw {
			continue
		}
		if b.CompiledMDXModule == nil && old.CompiledMDXModule != nil {
			b.CompiledMDXModule = old.CompiledMDXModule
		}
		if b.CompiledMDXRef == nil && old.CompiledMDXRef != nil {
			b.CompiledMDXRef = old.CompiledMDXRef
		}
		if b.Meta["mdxStatus"] == nil && old.Meta["mdxStatus"] != nil {
			b.Meta["mdxStatus"] = old.Meta["mdxStatus"]
		}
	}
}

// dispatchPendingMDX spawns a worker-mode compile goroutine for every
// newly finalized mdx block still pending, per §4.9's worker-mode path
// ("on finalization, the core invokes the compile service").
func (c *Controller) dispatchPendingMDX(ctx context.Context, blocks []*mdoc.Block, results chan<- mdxWorkerResult) {
	if c.mdxMode != mdxlifecycle.ModeWorker || results == nil {
		return
	}
	for _, b := range blocks {
		if b.Type != mdoc.BlockMDX || !b.IsFinalized {
			continue
		}
		if !c.mdx.IsPending(b.ID) {
			continue
		}
		blockID, source := b.ID, b.Raw
		go func() {
			res := c.mdx.CompileWorker(ctx, blockID, source)
			select {
			case results <- mdxWorkerResult{blockID: blockID, result: res}:
			case <-ctx.Done():
			}
		}()
	}
}

func (c *Controller) codeEnricher(prewarmLangs []string) *codeenrich.Enricher {
	hl := c.highlighter()
	if hl != nil {
		for _, lang := range prewarmLangs {
			hl.Load(lang)
		}
	}
	return codeenrich.New(hl, codeenrich.DefaultHighlightCacheSize)
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}

func patchBytes(patches []mdoc.Patch) int {
	total := 0
	for _, p := range patches {
		for _, l := range p.Lines {
			total += len(l)
		}
		total += len(p.HTML)
	}
	return total
}

func mdxlifecycleMode(raw string) mdxlifecycle.CompileMode {
	if mdxlifecycle.CompileMode(raw) == mdxlifecycle.ModeWorker {
		return mdxlifecycle.ModeWorker
	}
	return mdxlifecycle.ModeServer
}
