// Package coalesce implements the patch coalescer (PC): it merges
// adjacent patches targeting the same node within a bounded window,
// never changing observable post-state and never increasing patch
// count, per §4.12.
package coalesce

import (
	"fmt"
	"reflect"

	"github.com/parsehook/mdstream/pkg/mdoc"
)

// pathKey renders a NodePath as a comparable map key. NodePath carries an
// IndexPath slice, so it can't be compared with == or used as a map key
// directly.
func pathKey(p mdoc.NodePath) string {
	return fmt.Sprintf("%s\x00%s\x00%v", p.BlockID, p.NodeID, p.IndexPath)
}

func samePath(a, b mdoc.NodePath) bool {
	return pathKey(a) == pathKey(b)
}

// DefaultWindow is maxCoalesceWindow.
const DefaultWindow = 50

// DefaultMaxAppendMerge bounds how many consecutive appendLines patches
// may be merged into one.
const DefaultMaxAppendMerge = 10

// DefaultMaxSetPropsMerge bounds how many consecutive setProps patches
// targeting the same node may be merged into one.
const DefaultMaxSetPropsMerge = 10

// DefaultMaxBatchTargets bounds how many distinct setProps targets may
// be combined into a single setPropsBatch.
const DefaultMaxBatchTargets = 24

// Metrics summarizes one coalescing invocation.
type Metrics struct {
	InputCount   int
	OutputCount  int
	MergedAppend int
	MergedProps  int
	BatchedProps int
	ElapsedMS    float64
}

// Coalesce merges patches within windows of size DefaultWindow,
// returning the merged sequence and summary metrics. elapsedMS is
// supplied by the caller (measured around the call) rather than
// measured internally, keeping this function a pure transform.
func Coalesce(patches []mdoc.Patch, elapsedMS float64) ([]mdoc.Patch, Metrics) {
	metrics := Metrics{InputCount: len(patches), ElapsedMS: elapsedMS}
	if len(patches) == 0 {
		return patches, metrics
	}

	var out []mdoc.Patch
	for start := 0; start < len(patches); start += DefaultWindow {
		end := start + DefaultWindow
		if end > len(patches) {
			end = len(patches)
		}
		window, wm := coalesceWindow(patches[start:end])
		window = dedupSetPropsRightToLeft(window)
		out = append(out, window...)
		metrics.MergedAppend += wm.MergedAppend
		metrics.MergedProps += wm.MergedProps
		metrics.BatchedProps += wm.BatchedProps
	}
	metrics.OutputCount = len(out)
	return out, metrics
}

func coalesceWindow(window []mdoc.Patch) ([]mdoc.Patch, Metrics) {
	var out []mdoc.Patch
	var m Metrics

	i := 0
	for i < len(window) {
		p := window[i]
		switch p.Kind {
		case mdoc.PatchAppendLines:
			merged, consumed := mergeAppendRun(window[i:])
			if consumed > 1 {
				m.MergedAppend += consumed - 1
			}
			out = append(out, merged)
			i += consumed

		case mdoc.PatchSetProps:
			merged, consumed := mergeSetPropsRun(window[i:])
			if consumed > 1 {
				m.MergedProps += consumed - 1
			}
			out = append(out, merged)
			i += consumed

		default:
			out = append(out, p)
			i++
		}
	}

	batched, batchCount := batchSetProps(out)
	m.BatchedProps = batchCount
	return batched, m
}

// mergeAppendRun merges up to DefaultMaxAppendMerge consecutive
// appendLines patches targeting the same node whose start_index chains
// onto the previous patch's tail.
func mergeAppendRun(window []mdoc.Patch) (mdoc.Patch, int) {
	merged := window[0]
	count := 1
	for count < len(window) && count < DefaultMaxAppendMerge {
		next := window[count]
		if next.Kind != mdoc.PatchAppendLines || !samePath(next.At, merged.At) {
			break
		}
		if next.StartIndex != merged.StartIndex+len(merged.Lines) {
			break
		}
		merged.Lines = append(append([]string{}, merged.Lines...), next.Lines...)
		merged.Highlight = append(padHighlight(merged.Highlight, len(merged.Lines)-len(next.Lines)), padHighlight(next.Highlight, len(next.Lines))...)
		count++
	}
	return merged, count
}

func padHighlight(highlight []string, want int) []string {
	if len(highlight) >= want {
		return highlight
	}
	out := make([]string, want)
	copy(out, highlight)
	return out
}

// mergeSetPropsRun merges up to DefaultMaxSetPropsMerge consecutive
// setProps patches for the same target, right-wins on conflicting keys.
func mergeSetPropsRun(window []mdoc.Patch) (mdoc.Patch, int) {
	merged := window[0]
	props := cloneProps(merged.Props)
	count := 1
	for count < len(window) && count < DefaultMaxSetPropsMerge {
		next := window[count]
		if next.Kind != mdoc.PatchSetProps || !samePath(next.At, merged.At) {
			break
		}
		for k, v := range next.Props {
			props[k] = v
		}
		count++
	}
	merged.Props = props
	return merged, count
}

func cloneProps(props map[string]any) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = v
	}
	return out
}

// batchSetProps combines up to DefaultMaxBatchTargets distinct setProps
// targets remaining after run-merging into a single setPropsBatch,
// provided there are at least two candidates left to combine.
func batchSetProps(patches []mdoc.Patch) ([]mdoc.Patch, int) {
	var candidateIdx []int
	for i, p := range patches {
		if p.Kind == mdoc.PatchSetProps {
			candidateIdx = append(candidateIdx, i)
			if len(candidateIdx) >= DefaultMaxBatchTargets {
				break
			}
		}
	}
	if len(candidateIdx) < 2 {
		return patches, 0
	}

	entries := make([]mdoc.SetPropsEntry, 0, len(candidateIdx))
	for _, idx := range candidateIdx {
		entries = append(entries, mdoc.SetPropsEntry{At: patches[idx].At, Props: patches[idx].Props})
	}
	batch := mdoc.SetPropsBatch(entries)

	out := make([]mdoc.Patch, 0, len(patches)-len(candidateIdx)+1)
	inserted := false
	skip := make(map[int]bool, len(candidateIdx))
	for _, idx := range candidateIdx {
		skip[idx] = true
	}
	for i, p := range patches {
		if skip[i] {
			if !inserted {
				out = append(out, batch)
				inserted = true
			}
			continue
		}
		out = append(out, p)
	}
	return out, len(entries)
}

// dedupSetPropsRightToLeft keeps only the last setProps patch per target
// within the window, scanning right to left per §4.12's final pass.
func dedupSetPropsRightToLeft(window []mdoc.Patch) []mdoc.Patch {
	lastFor := map[string]int{}
	for i, p := range window {
		if p.Kind == mdoc.PatchSetProps {
			lastFor[pathKey(p.At)] = i
		}
	}
	out := make([]mdoc.Patch, 0, len(window))
	for i, p := range window {
		if p.Kind == mdoc.PatchSetProps && lastFor[pathKey(p.At)] != i {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Equivalent reports whether two patches are field-for-field identical
// (reflect.DeepEqual).
func Equivalent(a, b mdoc.Patch) bool {
	return reflect.DeepEqual(a, b)
}
