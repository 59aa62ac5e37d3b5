// Package metrics implements the metrics collector (MC): per-transaction
// timing and counters exported alongside every PATCH and independently as
// a METRICS message, per §4.14.
package metrics

import "math"

// round3 rounds to 0.001 precision, per §4.14's numeric-field rule.
func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// BlockStat carries per-block-type counters.
type BlockStat struct {
	Type       string  `json:"type"`
	Count      int     `json:"count"`
	TotalBytes int     `json:"total_bytes"`
	EnrichMS   float64 `json:"enrich_ms"`
}

// AppendBatchStat summarizes one appendLines coalescing decision.
type AppendBatchStat struct {
	Count    int `json:"count"`
	LinesSum int `json:"lines_sum"`
	LinesMax int `json:"lines_max"`
}

// CoalescingStat mirrors pkg/coalesce.Metrics' merge counters, surfaced
// per §4.12's "emit a CoalescingMetrics summary per invocation".
type CoalescingStat struct {
	MergedAppend int `json:"merged_append"`
	MergedProps  int `json:"merged_props"`
	BatchedProps int `json:"batched_props"`
}

// Transaction is the per-APPEND/FINALIZE metrics payload.
type Transaction struct {
	ParseMS       float64            `json:"parse_ms"`
	EnrichMS      float64            `json:"enrich_ms"`
	DiffMS        float64            `json:"diff_ms"`
	SerializeMS   float64            `json:"serialize_ms"`
	CoalesceMS    float64            `json:"coalesce_ms"`
	HighlighterMS map[string]float64 `json:"highlighter_ms"`
	MDXDetectMS   float64            `json:"mdx_detect_ms"`

	PatchCount int `json:"patch_count"`
	PatchBytes int `json:"patch_bytes"`
	QueueDepth int `json:"queue_depth"`

	AppendBatch AppendBatchStat `json:"append_batch"`
	Coalescing  CoalescingStat  `json:"coalescing"`
	Blocks      []BlockStat     `json:"blocks"`

	GrammarEngine string `json:"grammar_engine"`
}

// Builder accumulates a Transaction across a single APPEND/FINALIZE
// pipeline run.
type Builder struct {
	tx Transaction
}

// NewBuilder starts a fresh Transaction for grammarEngine (e.g. "goldmark").
func NewBuilder(grammarEngine string) *Builder {
	return &Builder{tx: Transaction{
		GrammarEngine: grammarEngine,
		HighlighterMS: map[string]float64{},
	}}
}

func (b *Builder) SetParseMS(ms float64)     { b.tx.ParseMS = round3(ms) }
func (b *Builder) SetEnrichMS(ms float64)    { b.tx.EnrichMS = round3(ms) }
func (b *Builder) SetDiffMS(ms float64)      { b.tx.DiffMS = round3(ms) }
func (b *Builder) SetSerializeMS(ms float64) { b.tx.SerializeMS = round3(ms) }
func (b *Builder) SetCoalesceMS(ms float64)  { b.tx.CoalesceMS = round3(ms) }
func (b *Builder) SetMDXDetectMS(ms float64) { b.tx.MDXDetectMS = round3(ms) }
func (b *Builder) SetQueueDepth(q int)       { b.tx.QueueDepth = q }

// AddHighlighterMS accumulates highlighter time for lang across multiple
// blocks in the same transaction.
func (b *Builder) AddHighlighterMS(lang string, ms float64) {
	b.tx.HighlighterMS[lang] = round3(b.tx.HighlighterMS[lang] + ms)
}

// AddBlockStat folds one block's size/enrich-time contribution into its
// type's running BlockStat.
func (b *Builder) AddBlockStat(blockType string, bytes int, enrichMS float64) {
	for i := range b.tx.Blocks {
		if b.tx.Blocks[i].Type == blockType {
			b.tx.Blocks[i].Count++
			b.tx.Blocks[i].TotalBytes += bytes
			b.tx.Blocks[i].EnrichMS = round3(b.tx.Blocks[i].EnrichMS + enrichMS)
			return
		}
	}
	b.tx.Blocks = append(b.tx.Blocks, BlockStat{
		Type: blockType, Count: 1, TotalBytes: bytes, EnrichMS: round3(enrichMS),
	})
}

// SetPatchStats records the final patch count/bytes and the appendLines
// batch statistics observed in this transaction's patch set.
func (b *Builder) SetPatchStats(count, bytes int, batch AppendBatchStat) {
	b.tx.PatchCount = count
	b.tx.PatchBytes = bytes
	b.tx.AppendBatch = batch
}

// SetCoalescing records the patch coalescer's per-invocation summary
// (§4.12) so it is surfaced in MC's transaction rather than discarded.
func (b *Builder) SetCoalescing(mergedAppend, mergedProps, batchedProps int) {
	b.tx.Coalescing = CoalescingStat{
		MergedAppend: mergedAppend,
		MergedProps:  mergedProps,
		BatchedProps: batchedProps,
	}
}

// Build returns the finished Transaction.
func (b *Builder) Build() Transaction {
	return b.tx
}
