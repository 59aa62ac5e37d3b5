package mdoc

// SegmentKind classifies a MixedContentSegment.
type SegmentKind string

const (
	SegmentText SegmentKind = "text"
	SegmentHTML SegmentKind = "html"
	SegmentMDX  SegmentKind = "mdx"
)

// CompileStatus tracks the lifecycle of an async-compiled MDX segment or
// block.
type CompileStatus string

const (
	CompilePending  CompileStatus = "pending"
	CompileCompiled CompileStatus = "compiled"
	CompileError    CompileStatus = "error"
)

// MixedContentSegment is one ordered slice of a block's raw text, as
// produced by the mixed-content splitter (pkg/mixed).
type MixedContentSegment struct {
	Kind  SegmentKind
	Value string

	// Range is relative to the owning block's raw text unless a base
	// offset was supplied to the splitter, in which case it is absolute.
	Range *Range

	Inline []*InlineNode

	Sanitized string

	Status CompileStatus
	Error  string
}
