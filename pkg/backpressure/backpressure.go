// Package backpressure implements the backpressure credit controller
// (BP): a smoothed credit signal derived from consumer queue depth that
// bounds how many patches, and how much heavy work, a transaction may
// emit per flush, per §4.13.
package backpressure

import "github.com/parsehook/mdstream/pkg/mdoc"

// DefaultTargetQueueDepth and DefaultMaxQueueDepth bound the linear raw
// credit ramp.
const (
	DefaultTargetQueueDepth = 8
	DefaultMaxQueueDepth    = 64
)

// DefaultSmoothingFactor is a responsive but non-oscillating gain for
// the exponential moving average of credit.
const DefaultSmoothingFactor = 0.3

// DefaultLowCreditCutoff gates the heavy-patch budget to zero below it.
const DefaultLowCreditCutoff = 0.5

// DefaultMinHeavyPatchBudget and DefaultMaxHeavyPatchBudget bound the
// per-flush heavy-patch allowance once credit clears the cutoff.
const (
	DefaultMinHeavyPatchBudget = 1
	DefaultMaxHeavyPatchBudget = 12
)

// DefaultDeferredCap bounds how many deferred patches may accumulate;
// once it is reached, further patches that would be deferred are dropped.
const DefaultDeferredCap = 400

// DefaultFlushCap bounds how many deferred patches one flush may emit.
const DefaultFlushCap = 120

var lightweightTypes = map[string]bool{
	"paragraph":    true,
	"blockquote":   true,
	"heading":      true,
	"list":         true,
	"list-item":    true,
	"footnote-def": true,
	"footnotes":    true,
}

// Controller holds the smoothed credit and deferred-patch backlog across
// transactions.
type Controller struct {
	credit   float64
	deferred []mdoc.Patch

	TargetQueueDepth    int
	MaxQueueDepth       int
	SmoothingFactor     float64
	LowCreditCutoff     float64
	MinHeavyPatchBudget int
	MaxHeavyPatchBudget int
}

// New builds a Controller seeded at full credit (an idle consumer starts
// with no backpressure).
func New() *Controller {
	return &Controller{
		credit:              1,
		TargetQueueDepth:    DefaultTargetQueueDepth,
		MaxQueueDepth:       DefaultMaxQueueDepth,
		SmoothingFactor:     DefaultSmoothingFactor,
		LowCreditCutoff:     DefaultLowCreditCutoff,
		MinHeavyPatchBudget: DefaultMinHeavyPatchBudget,
		MaxHeavyPatchBudget: DefaultMaxHeavyPatchBudget,
	}
}

// Credit returns the current smoothed credit value.
func (c *Controller) Credit() float64 { return c.credit }

// SetCredit overrides the smoothed credit signal directly, bypassing the
// queue-depth EMA. This backs the SET_CREDITS inbound message (§4.10/§6),
// which lets a consumer hand the controller an explicit credit value
// instead of waiting for the next queue-depth observation to converge.
func (c *Controller) SetCredit(v float64) {
	switch {
	case v < 0:
		v = 0
	case v > 1:
		v = 1
	}
	c.credit = v
}

// UpdateQueueDepth folds a new queue-depth observation into the
// smoothed credit signal.
func (c *Controller) UpdateQueueDepth(q int) {
	raw := rawCredit(q, c.TargetQueueDepth, c.MaxQueueDepth)
	c.credit = (1-c.SmoothingFactor)*c.credit + c.SmoothingFactor*raw
}

func rawCredit(q, target, max int) float64 {
	switch {
	case q <= target:
		return 1
	case q >= max:
		return 0
	default:
		return 1 - float64(q-target)/float64(max-target)
	}
}

// heavyBudget computes the per-flush heavy-patch allowance for the
// current credit level.
func (c *Controller) heavyBudget() int {
	if c.credit <= c.LowCreditCutoff {
		return 0
	}
	span := 1 - c.LowCreditCutoff
	frac := (c.credit - c.LowCreditCutoff) / span
	budget := float64(c.MinHeavyPatchBudget) + frac*float64(c.MaxHeavyPatchBudget-c.MinHeavyPatchBudget)
	return int(budget)
}

// IsHeavy classifies a patch per §4.13's heavy-patch rule.
func IsHeavy(p mdoc.Patch) bool {
	switch p.Kind {
	case mdoc.PatchSetHTML:
		return true
	case mdoc.PatchAppendLines:
		return len(p.Lines) > 4
	case mdoc.PatchInsertChild, mdoc.PatchReplaceChild:
		return heavyNode(p.Node)
	case mdoc.PatchSetProps:
		return heavyProps(p.Props)
	case mdoc.PatchSetPropsBatch:
		for _, e := range p.Entries {
			if heavyProps(e.Props) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func heavyNode(n *mdoc.NodeSnapshot) bool {
	if n == nil {
		return false
	}
	if lightweightTypes[n.Type] {
		return false
	}
	blk, _ := n.Props["block"].(*mdoc.Block)
	if blk != nil && simpleBlockType(string(blk.Type)) {
		return false
	}
	return true
}

func simpleBlockType(t string) bool {
	switch t {
	case "paragraph", "heading", "blockquote", "list":
		return true
	default:
		return false
	}
}

func heavyProps(props map[string]any) bool {
	if props == nil {
		return false
	}
	if _, ok := props["html"]; ok {
		return true
	}
	blk, _ := props["block"].(*mdoc.Block)
	if blk == nil {
		return false
	}
	if blk.HighlightedHTML != "" || blk.SanitizedHTML != "" {
		return true
	}
	return blk.Type == mdoc.BlockCode || blk.Type == mdoc.BlockHTML
}

// isParagraphBoundary reports whether p is a paragraph insert/replace,
// finalize, or setProps targeting a paragraph node id, per the
// paragraph-burst cap rule.
func isParagraphBoundary(p mdoc.Patch) bool {
	switch p.Kind {
	case mdoc.PatchInsertChild, mdoc.PatchReplaceChild:
		return p.Node != nil && p.Node.Type == "paragraph"
	case mdoc.PatchFinalize:
		return true
	case mdoc.PatchSetProps:
		blk, _ := p.Props["block"].(*mdoc.Block)
		return blk != nil && blk.Type == mdoc.BlockParagraph
	default:
		return false
	}
}

// Partition applies §4.13's per-transaction partitioning to newPatches,
// prepending any previously deferred patches, and returns the patches to
// emit this transaction. Newly-deferred patches are retained on the
// Controller for a future flush.
func (c *Controller) Partition(newPatches []mdoc.Patch) []mdoc.Patch {
	combined := append(append([]mdoc.Patch{}, c.deferred...), newPatches...)
	c.deferred = nil

	budget := c.heavyBudget()

	paragraphBoundaries := 0
	hasFinalize := false
	for _, p := range combined {
		if isParagraphBoundary(p) {
			paragraphBoundaries++
		}
		if p.Kind == mdoc.PatchFinalize {
			hasFinalize = true
		}
	}

	burstCap := -1
	if len(combined) >= 80 && paragraphBoundaries > 0 {
		base := 64
		if hasFinalize {
			base = 48
		}
		burstCap = base
		for i := 1; i < paragraphBoundaries; i++ {
			burstCap -= burstCap / 8
			if burstCap < 1 {
				burstCap = 1
				break
			}
		}
	}

	var emit []mdoc.Patch
	heavyUsed := 0
	for _, p := range combined {
		if burstCap >= 0 && len(emit) >= burstCap {
			c.deferPatch(p)
			continue
		}
		if IsHeavy(p) {
			if heavyUsed >= budget {
				c.deferPatch(p)
				continue
			}
			heavyUsed++
		}
		emit = append(emit, p)
	}
	return emit
}

func (c *Controller) deferPatch(p mdoc.Patch) {
	if len(c.deferred) >= DefaultDeferredCap {
		return
	}
	c.deferred = append(c.deferred, p)
}

// HasDeferred reports whether the controller is holding back patches
// from a previous transaction.
func (c *Controller) HasDeferred() bool { return len(c.deferred) > 0 }

// Flush attempts to emit deferred patches as a fresh transaction,
// bounded by DefaultFlushCap, when new credit has arrived.
func (c *Controller) Flush() []mdoc.Patch {
	if len(c.deferred) == 0 {
		return nil
	}
	n := len(c.deferred)
	if n > DefaultFlushCap {
		n = DefaultFlushCap
	}
	batch := c.deferred[:n]
	rest := c.deferred[n:]
	c.deferred = nil
	emit := c.Partition(batch)
	// Patches of the batch that were deferred again stay ahead of those
	// beyond this flush's cap, keeping the original order.
	c.deferred = append(c.deferred, rest...)
	return emit
}
