package docplugins

import (
	"strings"

	"github.com/parsehook/mdstream/pkg/mdoc"
)

// ProtectedRanges scans raw left-to-right for closed code spans and math
// spans, returning their byte ranges relative to raw. Only closed pairs
// are reported; an unterminated marker contributes nothing, matching
// pkg/anticipate's rule that an open marker with no matching close is
// not a completed span. This is the single-pass alphabet pkg/mixed and
// pkg/anticipate both scan for, here narrowed to ranges a caller wants
// to exclude from some other scan (MDX detection, §4.7).
func ProtectedRanges(raw string) []mdoc.Range {
	var ranges []mdoc.Range
	n := len(raw)
	i := 0
	for i < n {
		c := raw[i]
		switch {
		case c == '`':
			j := i
			for j < n && raw[j] == '`' {
				j++
			}
			fence := raw[i:j]
			rest := raw[j:]
			if idx := strings.Index(rest, fence); idx != -1 {
				end := j + idx + len(fence)
				ranges = append(ranges, mdoc.Range{From: i, To: end})
				i = end
				continue
			}
			i = j
		case c == '$' && i+1 < n && raw[i+1] == '$':
			if idx := strings.Index(raw[i+2:], "$$"); idx != -1 {
				end := i + 2 + idx + 2
				ranges = append(ranges, mdoc.Range{From: i, To: end})
				i = end
				continue
			}
			i += 2
		case c == '$':
			if idx := strings.IndexByte(raw[i+1:], '$'); idx != -1 {
				end := i + 1 + idx + 1
				ranges = append(ranges, mdoc.Range{From: i, To: end})
				i = end
				continue
			}
			i++
		default:
			i++
		}
	}
	return ranges
}

// InProtectedRange reports whether pos falls inside one of ranges.
func InProtectedRange(ranges []mdoc.Range, pos int) bool {
	for _, r := range ranges {
		if pos >= r.From && pos < r.To {
			return true
		}
	}
	return false
}

// RebaseRanges shifts every range by base, used to turn a block-relative
// protected-range list into document-absolute offsets for aggregation
// into Context.ProtectedRanges.
func RebaseRanges(ranges []mdoc.Range, base int) []mdoc.Range {
	out := make([]mdoc.Range, len(ranges))
	for i, r := range ranges {
		out[i] = mdoc.Range{From: r.From + base, To: r.To + base}
	}
	return out
}
