// Package mdoc defines the core document model shared by every streammd
// subsystem: the finalized/dirty Block list produced by the block
// extractor, the InlineNode tree produced by the inline parser, the
// MixedContentSegment list produced by the mixed-content splitter, the
// NodeSnapshot forest consumed by the tree differ, and the Patch union
// emitted to consumers.
package mdoc

import "fmt"

// BlockType classifies a top-level document block.
type BlockType string

// Block type constants. These map 1:1 onto the block kinds named in the
// specification; new block types should never be added without updating
// the snapshot builder and tree differ switch statements.
const (
	BlockParagraph    BlockType = "paragraph"
	BlockHeading      BlockType = "heading"
	BlockCode         BlockType = "code"
	BlockList         BlockType = "list"
	BlockBlockquote   BlockType = "blockquote"
	BlockHTML         BlockType = "html"
	BlockMDX          BlockType = "mdx"
	BlockTable        BlockType = "table"
	BlockFootnoteDef  BlockType = "footnote-def"
	BlockFootnotes    BlockType = "footnotes"
	BlockHR           BlockType = "hr"
)

// Range is a half-open byte range [From, To) into the document's source text.
type Range struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// Len reports the number of bytes covered by the range.
func (r Range) Len() int { return r.To - r.From }

// Block is a finalized or dirty unit of the document. Only the last block
// in a document's block list may be non-finalized at any point in time.
type Block struct {
	ID          string
	Type        BlockType
	IsFinalized bool
	Range       Range
	Raw         string

	Inline []*InlineNode

	HighlightedHTML string
	SanitizedHTML   string

	CompiledMDXRef    *MDXRef
	CompiledMDXModule *MDXModule

	// Meta is a sparse, type-specific bag of fields (heading level, code
	// language/fence info, list ordered flag, table rows, mixed-content
	// segments, protected ranges, mdx status, ...). Keys are documented
	// per block type in the component packages that populate them.
	Meta map[string]any
}

// MDXRef identifies a compiled MDX module handed back by a consumer
// (server compile mode) or produced in-process (worker compile mode).
type MDXRef struct {
	ID string `json:"id"`
}

// MDXModule is the result of a worker-mode MDX compile.
type MDXModule struct {
	ID     string   `json:"id"`
	Code   string   `json:"code"`
	Deps   []string `json:"deps"`
	Source string   `json:"source"`
}

// BlockID derives the stable identifier for a block from its type and
// source start offset, per invariant 3: two re-parses that agree on the
// prefix of the document must produce identical ids for prefix blocks.
func BlockID(t BlockType, from int) string {
	return fmt.Sprintf("%s:%d", t, from)
}

// Clone returns a deep-enough copy of the block suitable for embedding in
// a NodeSnapshot's props without aliasing mutable slices/maps with the
// live block list.
func (b *Block) Clone() *Block {
	if b == nil {
		return nil
	}
	cp := *b
	if b.Inline != nil {
		cp.Inline = make([]*InlineNode, len(b.Inline))
		copy(cp.Inline, b.Inline)
	}
	if b.Meta != nil {
		cp.Meta = make(map[string]any, len(b.Meta))
		for k, v := range b.Meta {
			cp.Meta[k] = v
		}
	}
	return &cp
}

// MetaString reads a string field from Meta, returning "" if absent or
// of the wrong type.
func (b *Block) MetaString(key string) string {
	if b == nil || b.Meta == nil {
		return ""
	}
	s, _ := b.Meta[key].(string)
	return s
}

// MetaInt reads an int field from Meta, returning 0 if absent or of the
// wrong type.
func (b *Block) MetaInt(key string) int {
	if b == nil || b.Meta == nil {
		return 0
	}
	i, _ := b.Meta[key].(int)
	return i
}

// MetaBool reads a bool field from Meta, returning false if absent.
func (b *Block) MetaBool(key string) bool {
	if b == nil || b.Meta == nil {
		return false
	}
	v, _ := b.Meta[key].(bool)
	return v
}

// ValidateBlockList checks invariants 1 and 4 from the data model: at
// most one dirty (non-finalized) block exists and it is the last one in
// the list, and source ranges are monotonically increasing. A violation
// here is a programmer-error invariant violation (see error taxonomy) and
// should trigger a fatal reset, never silent recovery.
func ValidateBlockList(blocks []*Block) error {
	for i, b := range blocks {
		if !b.IsFinalized && i != len(blocks)-1 {
			return fmt.Errorf("mdoc: non-finalized block %q at index %d is not the last block", b.ID, i)
		}
		if b.Range.From >= b.Range.To {
			return fmt.Errorf("mdoc: block %q has non-monotonic range [%d,%d)", b.ID, b.Range.From, b.Range.To)
		}
		if i > 0 {
			prev := blocks[i-1]
			if b.Range.From < prev.Range.To {
				return fmt.Errorf("mdoc: block %q range starts before previous block %q ends", b.ID, prev.ID)
			}
		}
	}
	return nil
}
