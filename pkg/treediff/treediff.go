// Package treediff implements the tree differ (TD): given the old and
// new NodeSnapshot forests for a transaction, it produces the patch
// sequence that transforms one into the other, with specialized fast
// paths for the top-level block list, code-block lines, and list items.
package treediff

import (
	"reflect"

	"github.com/parsehook/mdstream/pkg/mdoc"
)

// Diff compares oldRoot and newRoot (both synthetic "root" snapshots)
// and returns the patch sequence, per §4.11.
func Diff(oldRoot, newRoot *mdoc.NodeSnapshot) []mdoc.Patch {
	if oldRoot == nil {
		oldRoot = mdoc.NewSnapshot("root", "root")
	}
	if newRoot == nil {
		newRoot = mdoc.NewSnapshot("root", "root")
	}
	return diffRoot(oldRoot, newRoot)
}

func childIDs(n *mdoc.NodeSnapshot) []string {
	var ids []string
	for c := n.FirstChild; c != nil; c = c.Next {
		ids = append(ids, c.ID)
	}
	return ids
}

// sharedPrefixSuffix returns the length of the shared id prefix and
// (non-overlapping) shared id suffix between a and b.
func sharedPrefixSuffix(a, b []string) (prefix, suffix int) {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for prefix < n && a[prefix] == b[prefix] {
		prefix++
	}
	maxSuffix := n - prefix
	for suffix < maxSuffix && a[len(a)-1-suffix] == b[len(b)-1-suffix] {
		suffix++
	}
	return prefix, suffix
}

// diffRoot implements the top-level algorithm on the block list.
func diffRoot(oldRoot, newRoot *mdoc.NodeSnapshot) []mdoc.Patch {
	oldChildren := oldRoot.Children()
	newChildren := newRoot.Children()
	oldIDs := childIDs(oldRoot)
	newIDs := childIDs(newRoot)

	prefix, suffix := sharedPrefixSuffix(oldIDs, newIDs)
	removeCount := len(oldChildren) - prefix - suffix
	addCount := len(newChildren) - prefix - suffix

	var patches []mdoc.Patch
	at := mdoc.RootPath()

	if removeCount == addCount {
		for i := 0; i < removeCount; i++ {
			idx := prefix + i
			patches = append(patches, replaceOrHTML(at, idx, oldChildren[idx], newChildren[idx])...)
		}
	} else {
		for i := removeCount - 1; i >= 0; i-- {
			patches = append(patches, mdoc.DeleteChild(at, prefix+i))
		}
		for i := 0; i < addCount; i++ {
			patches = append(patches, mdoc.InsertChild(at, prefix+i, newChildren[prefix+i]))
		}
	}

	// Recurse into every id common to both forests: prefix, suffix, and
	// (when counts matched) the replaced middle pairs.
	for i := 0; i < prefix; i++ {
		patches = append(patches, diffMatched(oldChildren[i], newChildren[i], newChildren[i].ID)...)
	}
	for i := 0; i < suffix; i++ {
		oi := len(oldChildren) - suffix + i
		ni := len(newChildren) - suffix + i
		patches = append(patches, diffMatched(oldChildren[oi], newChildren[ni], newChildren[ni].ID)...)
	}
	if removeCount == addCount {
		for i := 0; i < removeCount; i++ {
			idx := prefix + i
			if oldChildren[idx].ID == newChildren[idx].ID {
				patches = append(patches, diffMatched(oldChildren[idx], newChildren[idx], newChildren[idx].ID)...)
			}
		}
	}
	return patches
}

// replaceOrHTML applies the html-sanitized-only specialization: if old
// and new are both html blocks whose only difference is the sanitized
// field, emit setHTML instead of a full replaceChild.
func replaceOrHTML(at mdoc.NodePath, idx int, oldNode, newNode *mdoc.NodeSnapshot) []mdoc.Patch {
	if oldNode.Type == "html" && newNode.Type == "html" && oldNode.ID == newNode.ID {
		if onlySanitizedDiffers(oldNode.Props, newNode.Props) {
			html, _ := newNode.Props["html"].(string)
			blk, _ := newNode.Props["block"].(*mdoc.Block)
			return []mdoc.Patch{mdoc.SetHTML(mdoc.NodePath{BlockID: newNode.ID}, html, "", blk, true)}
		}
	}
	return []mdoc.Patch{mdoc.ReplaceChild(at, idx, newNode)}
}

func onlySanitizedDiffers(old, new map[string]any) bool {
	if old == nil || new == nil || len(old) != len(new) {
		return false
	}
	for k, ov := range old {
		if k == "sanitized" {
			continue
		}
		nv, ok := new[k]
		if !ok || !reflect.DeepEqual(ov, nv) {
			return false
		}
	}
	sOld, _ := old["sanitized"].(string)
	sNew, _ := new["sanitized"].(string)
	return sOld != sNew
}

// diffMatched diffs two snapshots known to share an id, emitting a
// setProps patch if their own props differ and recursing into children
// via the fast path appropriate to their type.
func diffMatched(oldNode, newNode *mdoc.NodeSnapshot, topBlockID string) []mdoc.Patch {
	at := selfPath(topBlockID, oldNode.ID)

	becameFinalized := !isFinalizedProp(oldNode.Props) && isFinalizedProp(newNode.Props)

	var patches []mdoc.Patch
	if !propsEqualIgnoringFinalized(oldNode.Props, newNode.Props, becameFinalized) {
		if newNode.Type == "html" && onlySanitizedDiffers(oldNode.Props, newNode.Props) {
			html, _ := newNode.Props["html"].(string)
			blk, _ := newNode.Props["block"].(*mdoc.Block)
			patches = append(patches, mdoc.SetHTML(at, html, "", blk, true))
		} else {
			patches = append(patches, mdoc.SetProps(at, newNode.Props))
		}
	}
	if becameFinalized {
		// §4.11: finalizing a block emits finalize(at) separately from
		// any content updates, never folded into the setProps above.
		patches = append(patches, mdoc.Finalize(at))
	}

	switch newNode.Type {
	case "code":
		patches = append(patches, diffCodeChildren(at, oldNode, newNode, topBlockID)...)
	case "list":
		patches = append(patches, diffListChildren(at, oldNode, newNode, topBlockID)...)
	default:
		patches = append(patches, diffGenericChildren(at, oldNode, newNode, topBlockID)...)
	}
	return patches
}

func isFinalizedProp(props map[string]any) bool {
	v, _ := props["finalized"].(bool)
	return v
}

// propsEqualIgnoringFinalized compares props as PropsEqual does, except
// that when the node just became finalized the "finalized" key itself is
// excluded from the comparison: its transition is reported via a
// dedicated finalize patch, not folded into setProps.
func propsEqualIgnoringFinalized(old, new map[string]any, becameFinalized bool) bool {
	if !becameFinalized {
		return mdoc.PropsEqual(old, new)
	}
	return mdoc.PropsEqual(withoutFinalized(old), withoutFinalized(new))
}

func withoutFinalized(props map[string]any) map[string]any {
	if _, ok := props["finalized"]; !ok {
		return props
	}
	out := make(map[string]any, len(props))
	for k, v := range props {
		if k == "finalized" {
			continue
		}
		out[k] = v
	}
	return out
}

func selfPath(topBlockID, nodeID string) mdoc.NodePath {
	if nodeID == topBlockID {
		return mdoc.NodePath{BlockID: topBlockID}
	}
	return mdoc.NodePath{BlockID: topBlockID, NodeID: nodeID}
}

// diffCodeChildren implements the code-block fast path: a pure tail
// append of code-line children becomes a single appendLines patch.
func diffCodeChildren(at mdoc.NodePath, oldNode, newNode *mdoc.NodeSnapshot, topBlockID string) []mdoc.Patch {
	oldChildren := oldNode.Children()
	newChildren := newNode.Children()
	if isStrictPrefix(oldChildren, newChildren) {
		if len(newChildren) == len(oldChildren) {
			return nil
		}
		var lines, highlight []string
		for _, c := range newChildren[len(oldChildren):] {
			text, _ := c.Props["text"].(string)
			lines = append(lines, text)
			html, _ := c.Props["html"].(string)
			highlight = append(highlight, html)
		}
		return []mdoc.Patch{mdoc.AppendLines(at, len(oldChildren), lines, highlight)}
	}
	return diffGenericChildren(at, oldNode, newNode, topBlockID)
}

func isStrictPrefix(oldChildren, newChildren []*mdoc.NodeSnapshot) bool {
	if len(newChildren) < len(oldChildren) {
		return false
	}
	for i, c := range oldChildren {
		if c.ID != newChildren[i].ID {
			return false
		}
	}
	return true
}

// diffListChildren implements the list fast path: shared prefix+suffix
// trim, then delete/insert on the remaining middle. reorder is never
// emitted inside a list.
func diffListChildren(at mdoc.NodePath, oldNode, newNode *mdoc.NodeSnapshot, topBlockID string) []mdoc.Patch {
	oldChildren := oldNode.Children()
	newChildren := newNode.Children()
	oldIDs := idsOf(oldChildren)
	newIDs := idsOf(newChildren)
	prefix, suffix := sharedPrefixSuffix(oldIDs, newIDs)

	var patches []mdoc.Patch
	oldMiddle := oldChildren[prefix : len(oldChildren)-suffix]
	newMiddle := newChildren[prefix : len(newChildren)-suffix]

	switch {
	case len(oldMiddle) == 0:
		for i, n := range newMiddle {
			patches = append(patches, mdoc.InsertChild(at, prefix+i, n))
		}
	case len(newMiddle) == 0:
		for i := len(oldMiddle) - 1; i >= 0; i-- {
			patches = append(patches, mdoc.DeleteChild(at, prefix+i))
		}
	default:
		for i := len(oldMiddle) - 1; i >= 0; i-- {
			patches = append(patches, mdoc.DeleteChild(at, prefix+i))
		}
		for i, n := range newMiddle {
			patches = append(patches, mdoc.InsertChild(at, prefix+i, n))
		}
	}

	for i := 0; i < prefix; i++ {
		patches = append(patches, diffMatched(oldChildren[i], newChildren[i], topBlockID)...)
	}
	for i := 0; i < suffix; i++ {
		oi := len(oldChildren) - suffix + i
		ni := len(newChildren) - suffix + i
		patches = append(patches, diffMatched(oldChildren[oi], newChildren[ni], topBlockID)...)
	}
	return patches
}

// diffGenericChildren implements the generic children fast path: prefix
// and suffix trim by id, then single-element moves via reorder when the
// remaining middle is a same-length id multiset match, else delete/insert.
func diffGenericChildren(at mdoc.NodePath, oldNode, newNode *mdoc.NodeSnapshot, topBlockID string) []mdoc.Patch {
	oldChildren := oldNode.Children()
	newChildren := newNode.Children()
	oldIDs := idsOf(oldChildren)
	newIDs := idsOf(newChildren)
	prefix, suffix := sharedPrefixSuffix(oldIDs, newIDs)

	oldMiddle := oldChildren[prefix : len(oldChildren)-suffix]
	newMiddle := newChildren[prefix : len(newChildren)-suffix]

	var patches []mdoc.Patch

	if len(oldMiddle) == len(newMiddle) && sameMultiset(oldMiddle, newMiddle) {
		patches = append(patches, movesFor(at, prefix, oldMiddle, newMiddle)...)
		for i := range newMiddle {
			oldMatch := findByID(oldMiddle, newMiddle[i].ID)
			patches = append(patches, diffMatched(oldMatch, newMiddle[i], topBlockID)...)
		}
	} else {
		for i := len(oldMiddle) - 1; i >= 0; i-- {
			patches = append(patches, mdoc.DeleteChild(at, prefix+i))
		}
		for i, n := range newMiddle {
			patches = append(patches, mdoc.InsertChild(at, prefix+i, n))
		}
	}

	for i := 0; i < prefix; i++ {
		patches = append(patches, diffMatched(oldChildren[i], newChildren[i], topBlockID)...)
	}
	for i := 0; i < suffix; i++ {
		oi := len(oldChildren) - suffix + i
		ni := len(newChildren) - suffix + i
		patches = append(patches, diffMatched(oldChildren[oi], newChildren[ni], topBlockID)...)
	}
	return patches
}

func idsOf(nodes []*mdoc.NodeSnapshot) []string {
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	return ids
}

func sameMultiset(a, b []*mdoc.NodeSnapshot) bool {
	counts := map[string]int{}
	for _, n := range a {
		counts[n.ID]++
	}
	for _, n := range b {
		counts[n.ID]--
	}
	for _, v := range counts {
		if v != 0 {
			return false
		}
	}
	return true
}

func findByID(nodes []*mdoc.NodeSnapshot, id string) *mdoc.NodeSnapshot {
	for _, n := range nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}

// movesFor computes a minimal set of single-element moves transforming
// oldMiddle's order into newMiddle's, scanning left to right.
func movesFor(at mdoc.NodePath, base int, oldMiddle, newMiddle []*mdoc.NodeSnapshot) []mdoc.Patch {
	working := make([]*mdoc.NodeSnapshot, len(oldMiddle))
	copy(working, oldMiddle)

	var patches []mdoc.Patch
	for target, want := range newMiddle {
		cur := indexOf(working, want.ID)
		if cur == target {
			continue
		}
		patches = append(patches, mdoc.Reorder(at, base+cur, base+target, 1))
		moved := working[cur]
		working = append(working[:cur], working[cur+1:]...)
		working = append(working[:target], append([]*mdoc.NodeSnapshot{moved}, working[target:]...)...)
	}
	return patches
}

func indexOf(nodes []*mdoc.NodeSnapshot, id string) int {
	for i, n := range nodes {
		if n.ID == id {
			return i
		}
	}
	return -1
}
