// Package logging provides a structured logging wrapper around charmbracelet/log.
package logging

// Field name constants for structured logging.
// Using constants prevents typos and enables IDE autocomplete.
const (
	// Common fields.
	FieldError = "error"
	FieldPhase = "phase"
	FieldBlockID = "block_id"
	FieldNodeID  = "node_id"

	// Pipeline fields.
	FieldTx          = "tx"
	FieldMessageType = "message_type"
	FieldQueueDepth  = "queue_depth"
	FieldCredits     = "credits"

	// Block/enrichment fields.
	FieldBlockType = "block_type"
	FieldLanguage  = "language"
	FieldCacheHit  = "cache_hit"

	// Patch fields.
	FieldPatchCount     = "patch_count"
	FieldPatchKind      = "patch_kind"
	FieldDeferredCount  = "deferred_count"
	FieldHeavyBudget    = "heavy_budget"

	// Version fields.
	FieldVersion = "version"
	FieldCommit  = "commit"
	FieldBuilt   = "built"
)
