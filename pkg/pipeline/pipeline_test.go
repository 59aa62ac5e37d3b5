package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/parsehook/mdstream/pkg/mdoc"
	"github.com/parsehook/mdstream/pkg/treediff"
	"github.com/parsehook/mdstream/pkg/wire"
)

type fakeHighlighter struct{}

func (fakeHighlighter) Load(lang string) bool { return lang == "go" }
func (fakeHighlighter) Highlight(ctx context.Context, lang, code string) (string, error) {
	return "<span>" + code + "</span>", nil
}

type echoSanitizer struct{}

func (echoSanitizer) Sanitize(html string) string { return html }

type fakeCompiler struct {
	code string
	err  error
}

func (f fakeCompiler) Compile(ctx context.Context, source string) (wire.MdxCompileResult, error) {
	if f.err != nil {
		return wire.MdxCompileResult{}, f.err
	}
	return wire.MdxCompileResult{Code: f.code}, nil
}

func newTestController() *Controller {
	return New(Deps{Highlighter: fakeHighlighter{}, Sanitizer: echoSanitizer{}, MdxCompiler: fakeCompiler{code: "x"}})
}

func newTestControllerWithPlugins(cfg wire.DocPluginsConfig) *Controller {
	c := newTestController()
	c.HandleInit(wire.InitPayload{DocPlugins: cfg})
	return c
}

func TestHandleInitWithoutContentEmitsBareInitialized(t *testing.T) {
	c := newTestController()
	out := c.HandleInit(wire.InitPayload{})
	require.Len(t, out, 1)
	require.Equal(t, wire.OutInitialized, out[0].Type)
	require.Empty(t, out[0].Blocks)
}

func TestHandleInitWithInitialContentParsesBlocks(t *testing.T) {
	c := newTestController()
	out := c.HandleInit(wire.InitPayload{InitialContent: "# Hello\n\nworld\n"})
	require.Equal(t, wire.OutInitialized, out[0].Type)
	require.NotEmpty(t, out[0].Blocks)
	require.Equal(t, mdoc.BlockHeading, out[0].Blocks[0].Type)
}

func TestHandleAppendEmitsPatchAndMetrics(t *testing.T) {
	c := newTestController()
	c.HandleInit(wire.InitPayload{})
	out := c.HandleAppend(context.Background(), "hello world\n", nil)
	require.Len(t, out, 2)
	require.Equal(t, wire.OutPatch, out[0].Type)
	require.NotEmpty(t, out[0].Patches)
	require.NotNilf(t, out[0].Metrics, "expected metrics to be attached to the append patch")
	require.Equal(t, wire.OutMetrics, out[1].Type)
	require.NotNil(t, out[1].Metrics)
}

func TestHandleAppendEmitsMetricsEvenWithoutPatches(t *testing.T) {
	c := newTestController()
	c.HandleInit(wire.InitPayload{InitialContent: "hello"})
	out := c.HandleAppend(context.Background(), "", nil)
	require.Len(t, out, 1)
	require.Equal(t, wire.OutMetrics, out[0].Type)
	require.NotNil(t, out[0].Metrics)
}

func TestHandleFinalizeMarksLastBlockFinalized(t *testing.T) {
	c := newTestController()
	c.HandleInit(wire.InitPayload{})
	c.HandleAppend(context.Background(), "hello world", nil)
	c.HandleFinalize(context.Background())
	require.NotEmpty(t, c.blocks)
	last := c.blocks[len(c.blocks)-1]
	require.True(t, last.IsFinalized)
}

func TestHandleSetCreditsFlushesDeferredPatches(t *testing.T) {
	c := newTestController()
	c.HandleInit(wire.InitPayload{})
	c.bp.UpdateQueueDepth(1000)
	for i := 0; i < 5; i++ {
		c.bp.UpdateQueueDepth(1000)
	}
	deferred := c.bp.Partition([]mdoc.Patch{
		mdoc.SetHTML(mdoc.NodePath{BlockID: "html:0"}, "<div/>", "", nil, true),
	})
	require.Empty(t, deferred)
	require.True(t, c.bp.HasDeferred())

	out := c.HandleSetCredits(1.0)
	require.Len(t, out, 1)
	require.Equal(t, wire.OutPatch, out[0].Type)
}

func TestDispatchRecoversFromPanic(t *testing.T) {
	c := newTestController()
	in := make(chan wire.WorkerIn, 1)
	out := make(chan wire.WorkerOut, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// APPEND before INIT: extractAndEnrich will nil-deref through
	// c.enr, which dispatch's recover must turn into an ERROR message
	// rather than crashing the controller loop.
	in <- wire.WorkerIn{Type: wire.InAppend, Append: &wire.AppendPayload{Text: "x"}}
	close(in)
	c.Run(ctx, in, out)

	select {
	case msg := <-out:
		require.Equal(t, wire.OutError, msg.Type)
	default:
		t.Fatalf("expected dispatch to emit an ERROR message on panic")
	}
}

func TestHandleMDXCompiledIgnoresStaleBlock(t *testing.T) {
	c := newTestController()
	c.HandleInit(wire.InitPayload{})
	out := c.HandleMDXCompiled("mdx:0", "compiled-1")
	require.Nil(t, out)
}

func TestResetStateClearsControllerAndReportsReset(t *testing.T) {
	c := newTestController()
	c.HandleInit(wire.InitPayload{InitialContent: "hello world\n"})
	require.NotEmpty(t, c.blocks)
	c.tx = 3

	msg := c.resetState("invariant violation (test)")
	require.Equal(t, wire.OutReset, msg.Type)
	require.Equal(t, "invariant violation (test)", msg.Reason)
	require.Nil(t, c.blocks)
	require.Nil(t, c.content)
	require.Equal(t, 0, c.tx)
}

// TestInvariantViolationErrorUnwrapsForErrorsAs covers §7's fatal-error
// taxonomy: extractAndEnrich's ValidateBlockList failure must be
// recognizable via errors.As so HandleAppend/HandleInit/HandleFinalize
// route it to RESET instead of ERROR.
func TestInvariantViolationErrorUnwrapsForErrorsAs(t *testing.T) {
	base := errors.New("duplicate block id")
	wrapped := &invariantViolationError{err: fmt.Errorf("pipeline: invariant violation: %w", base)}

	var iv *invariantViolationError
	require.True(t, errors.As(error(wrapped), &iv))
	require.ErrorIs(t, error(wrapped), base)
}

// TestScenarioS1StreamingEmphasis covers spec §8 S1: streaming emphasis
// anticipates the open "*" on the first chunk, then only a setProps
// follows the closing "*" with no structural change.
func TestScenarioS1StreamingEmphasis(t *testing.T) {
	c := newTestControllerWithPlugins(wire.DocPluginsConfig{})
	first := c.HandleAppend(context.Background(), "hello *world", nil)
	require.Len(t, first, 2)
	require.Equal(t, wire.OutPatch, first[0].Type)
	require.NotEmpty(t, first[0].Patches)

	second := c.HandleAppend(context.Background(), "*", nil)
	for _, msg := range second {
		if msg.Type != wire.OutPatch {
			continue
		}
		for _, p := range msg.Patches {
			require.NotEqualf(t, mdoc.PatchInsertChild, p.Kind, "expected no structural change on the closing chunk, got %+v", msg.Patches)
			require.NotEqualf(t, mdoc.PatchDeleteChild, p.Kind, "expected no structural change on the closing chunk, got %+v", msg.Patches)
		}
	}
}

// TestScenarioS2CodeAppendFinalizesOnClosingFence covers spec §8 S2:
// appendLines while the code block is open, then a single setProps plus
// finalize on the chunk carrying the closing fence.
func TestScenarioS2CodeAppendFinalizesOnClosingFence(t *testing.T) {
	c := newTestControllerWithPlugins(wire.DocPluginsConfig{})
	c.HandleAppend(context.Background(), "```js\nconst x = 1;\n", nil)
	mid := c.HandleAppend(context.Background(), "const y = 2;\n", nil)

	var sawAppendLines int
	for _, msg := range mid {
		if msg.Type != wire.OutPatch {
			continue
		}
		for _, p := range msg.Patches {
			if p.Kind == mdoc.PatchAppendLines {
				sawAppendLines++
			}
			require.NotEqualf(t, mdoc.PatchFinalize, p.Kind, "expected no finalize before the closing fence")
		}
	}
	require.Equalf(t, 1, sawAppendLines, "expected an appendLines patch for the mid-block chunk")

	final := c.HandleAppend(context.Background(), "```\n", nil)
	var sawSetProps, sawFinalize bool
	for _, msg := range final {
		if msg.Type != wire.OutPatch {
			continue
		}
		for _, p := range msg.Patches {
			if p.Kind == mdoc.PatchSetProps {
				sawSetProps = true
			}
			if p.Kind == mdoc.PatchFinalize {
				sawFinalize = true
			}
		}
	}
	require.True(t, sawSetProps)
	require.True(t, sawFinalize)
}

// TestScenarioS3ListGrowthInsertsSingleItem covers spec §8 S3: a new
// list item appended to a streamed list produces exactly one
// insertChild under the list node, never re-inserting earlier items.
func TestScenarioS3ListGrowthInsertsSingleItem(t *testing.T) {
	c := newTestControllerWithPlugins(wire.DocPluginsConfig{})
	c.HandleAppend(context.Background(), "- a\n- b\n", nil)
	out := c.HandleAppend(context.Background(), "- c\n", nil)

	var inserts []mdoc.Patch
	for _, msg := range out {
		if msg.Type != wire.OutPatch {
			continue
		}
		for _, p := range msg.Patches {
			if p.Kind == mdoc.PatchInsertChild {
				inserts = append(inserts, p)
			}
			require.NotEqualf(t, mdoc.PatchDeleteChild, p.Kind, "expected no deletes of existing list items, got %+v", msg.Patches)
		}
	}
	require.Len(t, inserts, 1)
}

// TestScenarioS4TableCellEditEmitsSingleSetProps covers spec §8 S4:
// editing one cell's text in an already-streamed table produces a
// single setProps on that cell's snapshot, not a row-level replace.
func TestScenarioS4TableCellEditEmitsSingleSetProps(t *testing.T) {
	c := newTestControllerWithPlugins(wire.DocPluginsConfig{Tables: true})
	table := "| a | b |\n| --- | --- |\n| 1 | 2 |\n| 3 | 4 |\n\n"
	c.HandleAppend(context.Background(), table, nil)

	// Rewrite row 2's first cell in place, mirroring an edit to
	// already-streamed content rather than a pure tail append.
	c.content = []byte("| a | b |\n| --- | --- |\n| 1 | 2 |\n| 9 | 4 |\n\n")
	blocks, err := c.extractAndEnrich(context.Background(), c.content, false)
	require.NoError(t, err)
	c.blocks = blocks
	newRoot := c.snapBuilder.BuildRoot(blocks)
	patches := treediff.Diff(c.prevRoot, newRoot)
	c.prevRoot = newRoot

	var setProps []mdoc.Patch
	for _, p := range patches {
		if p.Kind == mdoc.PatchSetProps {
			setProps = append(setProps, p)
		}
		require.NotEqualf(t, mdoc.PatchReplaceChild, p.Kind, "expected no row-level replace, got %+v", patches)
	}
	require.Lenf(t, setProps, 1, "expected a single setProps patch for the cell edit, got %+v", patches)
}

// TestScenarioS5MixedContentSegments covers spec §8 S5: a paragraph
// mixing text and an HTML span splits into a text segment followed by
// an HTML segment, and the next paragraph begins after the blank line.
func TestScenarioS5MixedContentSegments(t *testing.T) {
	c := newTestControllerWithPlugins(wire.DocPluginsConfig{HTML: true})
	out := c.HandleAppend(context.Background(), "Text <kbd>`code`</kbd>\n\nnext\n", nil)
	require.NotEmpty(t, c.blocks)
	require.GreaterOrEqual(t, len(c.blocks), 2)

	first := c.blocks[0]
	segments, _ := first.Meta["segments"].([]mdoc.MixedContentSegment)
	require.NotEmpty(t, segments)
	var sawText, sawHTML bool
	for _, seg := range segments {
		if seg.Kind == mdoc.SegmentText {
			sawText = true
		}
		if seg.Kind == mdoc.SegmentHTML {
			sawHTML = true
		}
	}
	require.True(t, sawText)
	require.True(t, sawHTML)
	_ = out
}

// TestScenarioS6FinalizeReparsesTailWithoutAnticipation covers spec §8
// S6: FINALIZE on a dirty tail paragraph with unterminated "**bold" emits
// finalize, then setProps replacing inline, then a final setProps
// carrying the full finalized block payload.
func TestScenarioS6FinalizeReparsesTailWithoutAnticipation(t *testing.T) {
	c := newTestControllerWithPlugins(wire.DocPluginsConfig{})
	c.HandleAppend(context.Background(), "intro\n\n**bold", nil)
	require.False(t, c.blocks[len(c.blocks)-1].IsFinalized)

	out := c.HandleFinalize(context.Background())
	require.NotEmpty(t, out)

	var kinds []mdoc.PatchKind
	for _, msg := range out {
		if msg.Type != wire.OutPatch {
			continue
		}
		for _, p := range msg.Patches {
			kinds = append(kinds, p.Kind)
		}
	}
	require.Contains(t, kinds, mdoc.PatchFinalize)
	require.Contains(t, kinds, mdoc.PatchSetProps)

	last := c.blocks[len(c.blocks)-1]
	require.True(t, last.IsFinalized)
	var sawBold bool
	for _, seg := range last.Inline {
		if seg.Kind == mdoc.InlineText && seg.Text == "**bold" {
			sawBold = true
		}
	}
	require.Truef(t, sawBold, "expected the unterminated ** to stay plain text after finalize, got %+v", last.Inline)
}
