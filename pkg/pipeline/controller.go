// Package pipeline implements the pipeline controller (PL, §4.10): the
// single cooperative FIFO loop that owns every other subsystem instance
// and turns INIT/APPEND/FINALIZE/MDX_*/SET_CREDITS messages into
// INITIALIZED/PATCH/RESET/METRICS/ERROR messages, mirroring the
// teacher's single-process execution model (no worker pools) with one
// explicit channel standing in for the "FIFO inbound queue" from §5.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/parsehook/mdstream/internal/logging"
	"github.com/parsehook/mdstream/pkg/anticipate"
	"github.com/parsehook/mdstream/pkg/backpressure"
	"github.com/parsehook/mdstream/pkg/blockextract"
	"github.com/parsehook/mdstream/pkg/coalesce"
	"github.com/parsehook/mdstream/pkg/codeenrich"
	"github.com/parsehook/mdstream/pkg/docplugins"
	"github.com/parsehook/mdstream/pkg/inline"
	"github.com/parsehook/mdstream/pkg/mdoc"
	"github.com/parsehook/mdstream/pkg/mdxlifecycle"
	"github.com/parsehook/mdstream/pkg/mixed"
	"github.com/parsehook/mdstream/pkg/snapshot"
	"github.com/parsehook/mdstream/pkg/treediff"
	"github.com/parsehook/mdstream/pkg/wire"
)

// GrammarEngine identifies the parser behind pkg/blockextract for MC's
// grammar_engine tag.
const GrammarEngine = "goldmark"

// Deps bundles the external collaborators (§1's out-of-scope list) a
// Controller is built with. Every field may be nil; a nil Highlighter
// disables syntax highlighting, a nil Sanitizer passes HTML through
// unsanitized (never hit in production wiring, only in tests), and a
// nil MdxCompiler makes worker-mode compiles fail.
type Deps struct {
	Highlighter codeenrich.Highlighter
	Sanitizer   mixed.Sanitizer
	MdxCompiler wire.MdxCompiler
	Logger      *log.Logger
}

// Controller owns every subsystem instance for one document's lifetime
// (one INIT..next INIT span) and processes messages one at a time.
type Controller struct {
	logger *log.Logger

	highlighterDep codeenrich.Highlighter
	sanitizerDep   mixed.Sanitizer

	extractor    *blockextract.Extractor
	inlineParser *inline.Parser
	enr          *enricher
	dpEngine     *docplugins.Engine
	snapBuilder  *snapshot.Builder
	bp           *backpressure.Controller
	mdx          *mdxlifecycle.Manager
	mdxMode      mdxlifecycle.CompileMode

	content  []byte
	blocks   []*mdoc.Block
	prevRoot *mdoc.NodeSnapshot
	tx       int
}

// New builds a Controller. Call HandleInit before any other message.
func New(deps Deps) *Controller {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Controller{
		logger:         logger,
		highlighterDep: deps.Highlighter,
		sanitizerDep:   deps.Sanitizer,
		mdx:            mdxlifecycle.New(deps.MdxCompiler),
		bp:             backpressure.New(),
	}
}

// highlighter returns the configured code highlighter, or nil.
func (c *Controller) highlighter() codeenrich.Highlighter { return c.highlighterDep }

// currentSanitizer returns the configured HTML/mixed-content sanitizer,
// or nil to pass content through unsanitized.
func currentSanitizer(c *Controller) mixed.Sanitizer { return c.sanitizerDep }

// mdxWorkerResult is the internal message a worker-mode compile
// goroutine posts back once it finishes, reintegrated by Run through
// the same single-threaded loop rather than a callback (§5, §9).
type mdxWorkerResult struct {
	blockID string
	result  mdxlifecycle.Result
}

// Run drains in to completion, emitting every WorkerOut onto out, until
// in is closed or ctx is done. It is the literal FIFO loop called for
// by §5; HandleX methods remain directly callable (and are, from tests)
// for synchronous single-message exercising.
func (c *Controller) Run(ctx context.Context, in <-chan wire.WorkerIn, out chan<- wire.WorkerOut) {
	results := make(chan mdxWorkerResult, 16)
	for {
		select {
		case <-ctx.Done():
			return
		case res, ok := <-results:
			if !ok {
				continue
			}
			c.applyMDXWorkerResult(res, out)
		case msg, ok := <-in:
			if !ok {
				return
			}
			c.dispatch(ctx, msg, out, results)
		}
	}
}

func (c *Controller) dispatch(ctx context.Context, msg wire.WorkerIn, out chan<- wire.WorkerOut, results chan<- mdxWorkerResult) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("message dispatch failed", "phase", msg.Type, "panic", r)
			out <- wire.NewErrorMessage(string(msg.Type), fmt.Errorf("panic: %v", r), map[string]any{"phase": msg.Type}, time.Now().UnixMilli())
		}
	}()

	switch msg.Type {
	case wire.InInit:
		if msg.Init == nil {
			msg.Init = &wire.InitPayload{}
		}
		for _, m := range c.HandleInit(*msg.Init) {
			out <- m
		}
	case wire.InAppend:
		if msg.Append == nil {
			return
		}
		for _, m := range c.HandleAppend(ctx, msg.Append.Text, results) {
			out <- m
		}
	case wire.InFinalize:
		for _, m := range c.HandleFinalize(ctx) {
			out <- m
		}
	case wire.InMDXCompiled:
		if msg.MDXCompiled == nil {
			return
		}
		for _, m := range c.HandleMDXCompiled(msg.MDXCompiled.BlockID, msg.MDXCompiled.CompiledID) {
			out <- m
		}
	case wire.InMDXError:
		if msg.MDXError == nil {
			return
		}
		for _, m := range c.HandleMDXError(msg.MDXError.BlockID, msg.MDXError.Error) {
			out <- m
		}
	case wire.InSetCredits:
		if msg.SetCredits == nil {
			return
		}
		for _, m := range c.HandleSetCredits(msg.SetCredits.Credits) {
			out <- m
		}
	default:
		out <- wire.NewErrorMessage("UNKNOWN", fmt.Errorf("unrecognized message type %q", msg.Type), nil, time.Now().UnixMilli())
	}
}

func (c *Controller) applyMDXWorkerResult(res mdxWorkerResult, out chan<- wire.WorkerOut) {
	if !c.mdx.IsPending(res.blockID) {
		return // stale result from before an INIT/RESET; discard per §4.10
	}
	c.mdx.Resolve(res.blockID)

	blk := c.findBlock(res.blockID)
	if blk == nil {
		return
	}
	oldRoot := c.prevRoot
	if res.result.Err != nil {
		blk.Meta["mdxStatus"] = "error"
		blk.Meta["mdxError"] = res.result.Err.Error()
	} else {
		blk.Meta["mdxStatus"] = "compiled"
		blk.CompiledMDXModule = res.result.Module
		blk.CompiledMDXRef = &mdoc.MDXRef{ID: res.result.Module.ID}
	}
	newRoot := c.snapBuilder.BuildRoot(c.blocks)
	patches := treediff.Diff(oldRoot, newRoot)
	c.prevRoot = newRoot
	if len(patches) == 0 {
		return
	}
	c.tx++
	out <- wire.WorkerOut{Type: wire.OutPatch, Tx: c.tx, Patches: patches}
}

func (c *Controller) findBlock(id string) *mdoc.Block {
	for _, b := range c.blocks {
		if b.ID == id {
			return b
		}
	}
	return nil
}

// anticipationConfig normalizes INIT's format_anticipation field, which
// per §4.2 may be a bare bool or a map of named flags.
func anticipationConfig(v any) anticipate.Config {
	switch t := v.(type) {
	case nil:
		return anticipate.NewConfig(true)
	case bool:
		return anticipate.NewConfig(t)
	case map[string]any:
		cfg := anticipate.Config{}
		if b, ok := t["inline"].(bool); ok {
			cfg.Inline = b
		}
		if b, ok := t["mathInline"].(bool); ok {
			cfg.MathInline = b
		}
		if b, ok := t["mathBlock"].(bool); ok {
			cfg.MathBlock = b
		}
		if b, ok := t["html"].(bool); ok {
			cfg.HTML = b
		}
		if b, ok := t["mdx"].(bool); ok {
			cfg.MDX = b
		}
		if b, ok := t["regex"].(bool); ok {
			cfg.Regex = b
		}
		return cfg
	default:
		return anticipate.NewConfig(true)
	}
}
