package mdoc

import "reflect"

// PatchKind tags the variant of a Patch.
type PatchKind string

const (
	PatchInsertChild    PatchKind = "insertChild"
	PatchDeleteChild    PatchKind = "deleteChild"
	PatchReplaceChild   PatchKind = "replaceChild"
	PatchSetProps       PatchKind = "setProps"
	PatchSetPropsBatch  PatchKind = "setPropsBatch"
	PatchFinalize       PatchKind = "finalize"
	PatchReorder        PatchKind = "reorder"
	PatchAppendLines    PatchKind = "appendLines"
	PatchSetHTML        PatchKind = "setHTML"
)

// NodePath addresses a target node for a patch: a block, optionally a
// specific node within that block's snapshot, optionally further refined
// by a structural index path (e.g. a table cell inside a row).
type NodePath struct {
	BlockID   string `json:"block_id"`
	NodeID    string `json:"node_id,omitempty"`
	IndexPath []int  `json:"index_path,omitempty"`
}

// RootPath is the synthetic document-root target used for top-level
// block insert/delete/replace operations.
func RootPath() NodePath { return NodePath{BlockID: "__root__"} }

// SetPropsEntry is one element of a setPropsBatch patch.
type SetPropsEntry struct {
	At    NodePath       `json:"at"`
	Props map[string]any `json:"props"`
}

// Patch is a tagged union over the structural edit operations the tree
// differ (and its coalescer) can emit. Exactly one of the typed payload
// fields is populated, selected by Kind; this mirrors the teacher's
// convention of a discriminated struct rather than an interface, to keep
// coalescing's in-place rewrites allocation-free.
type Patch struct {
	Kind PatchKind `json:"kind"`
	At   NodePath  `json:"at"`

	// insertChild / deleteChild / replaceChild
	Index int           `json:"index,omitempty"`
	Node  *NodeSnapshot `json:"node,omitempty"`

	// setProps
	Props map[string]any `json:"props,omitempty"`

	// setPropsBatch
	Entries []SetPropsEntry `json:"entries,omitempty"`

	// reorder
	From  int `json:"from,omitempty"`
	To    int `json:"to,omitempty"`
	Count int `json:"count,omitempty"`

	// appendLines
	StartIndex int      `json:"start_index,omitempty"`
	Lines      []string `json:"lines,omitempty"`
	Highlight  []string `json:"highlight,omitempty"`

	// setHTML
	HTML      string `json:"html,omitempty"`
	Policy    string `json:"policy,omitempty"`
	Block     *Block `json:"block,omitempty"`
	Sanitized bool   `json:"sanitized,omitempty"`
}

// InsertChild builds an insertChild patch.
func InsertChild(at NodePath, index int, node *NodeSnapshot) Patch {
	return Patch{Kind: PatchInsertChild, At: at, Index: index, Node: node}
}

// DeleteChild builds a deleteChild patch.
func DeleteChild(at NodePath, index int) Patch {
	return Patch{Kind: PatchDeleteChild, At: at, Index: index}
}

// ReplaceChild builds a replaceChild patch.
func ReplaceChild(at NodePath, index int, node *NodeSnapshot) Patch {
	return Patch{Kind: PatchReplaceChild, At: at, Index: index, Node: node}
}

// SetProps builds a setProps patch.
func SetProps(at NodePath, props map[string]any) Patch {
	return Patch{Kind: PatchSetProps, At: at, Props: props}
}

// SetPropsBatch builds a setPropsBatch patch.
func SetPropsBatch(entries []SetPropsEntry) Patch {
	return Patch{Kind: PatchSetPropsBatch, Entries: entries}
}

// Finalize builds a finalize patch.
func Finalize(at NodePath) Patch {
	return Patch{Kind: PatchFinalize, At: at}
}

// Reorder builds a reorder patch.
func Reorder(at NodePath, from, to, count int) Patch {
	return Patch{Kind: PatchReorder, At: at, From: from, To: to, Count: count}
}

// AppendLines builds an appendLines patch.
func AppendLines(at NodePath, startIndex int, lines, highlight []string) Patch {
	return Patch{Kind: PatchAppendLines, At: at, StartIndex: startIndex, Lines: lines, Highlight: highlight}
}

// SetHTML builds a setHTML patch.
func SetHTML(at NodePath, html, policy string, block *Block, sanitized bool) Patch {
	return Patch{Kind: PatchSetHTML, At: at, HTML: html, Policy: policy, Block: block, Sanitized: sanitized}
}

// PropsEqual deep-compares two props maps by value, per the differ's
// "deep-compare for object/array values" rule for deciding whether to
// emit a setProps patch.
func PropsEqual(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok {
			return false
		}
		if !reflect.DeepEqual(av, bv) {
			return false
		}
	}
	return true
}
