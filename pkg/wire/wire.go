// Package wire defines the worker message schema (§6) and the plugin
// contract interfaces external collaborators implement: Highlighter,
// HtmlSanitizer, MdxCompiler, DocumentPlugin. Message structs follow the
// teacher's pkg/reporter/json.go convention of explicit json tags on
// every exported field, with a "type" discriminator used to select the
// concrete payload at decode time.
package wire

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/parsehook/mdstream/pkg/mdoc"
)

// InboundType tags a WorkerIn message's concrete payload.
type InboundType string

const (
	InInit        InboundType = "INIT"
	InAppend      InboundType = "APPEND"
	InFinalize    InboundType = "FINALIZE"
	InMDXCompiled InboundType = "MDX_COMPILED"
	InMDXError    InboundType = "MDX_ERROR"
	InSetCredits  InboundType = "SET_CREDITS"
)

// OutboundType tags a WorkerOut message's concrete payload.
type OutboundType string

const (
	OutInitialized OutboundType = "INITIALIZED"
	OutPatch       OutboundType = "PATCH"
	OutReset       OutboundType = "RESET"
	OutMetrics     OutboundType = "METRICS"
	OutError       OutboundType = "ERROR"
)

// DocPluginsConfig mirrors INIT's doc_plugins payload.
type DocPluginsConfig struct {
	Footnotes            bool     `json:"footnotes" yaml:"footnotes"`
	HTML                 bool     `json:"html" yaml:"html"`
	MDX                  bool     `json:"mdx" yaml:"mdx"`
	Tables               bool     `json:"tables" yaml:"tables"`
	Callouts             bool     `json:"callouts" yaml:"callouts"`
	Math                 bool     `json:"math" yaml:"math"`
	FormatAnticipation   any      `json:"format_anticipation,omitempty" yaml:"format_anticipation,omitempty"`
	LiveCodeHighlighting bool     `json:"live_code_highlighting" yaml:"live_code_highlighting"`
	MDXComponentNames    []string `json:"mdx_component_names,omitempty" yaml:"mdx_component_names,omitempty"`
}

// MDXConfig mirrors INIT's mdx payload.
type MDXConfig struct {
	CompileMode string `json:"compile_mode" yaml:"compile_mode"`
}

// InitPayload is WorkerIn{type:"INIT"}'s body.
type InitPayload struct {
	InitialContent string           `json:"initial_content,omitempty"`
	PrewarmLangs   []string         `json:"prewarm_langs,omitempty"`
	DocPlugins     DocPluginsConfig `json:"doc_plugins,omitempty"`
	MDX            MDXConfig        `json:"mdx,omitempty"`
}

// AppendPayload is WorkerIn{type:"APPEND"}'s body.
type AppendPayload struct {
	Text string `json:"text"`
}

// MDXCompiledPayload is WorkerIn{type:"MDX_COMPILED"}'s body (server mode).
type MDXCompiledPayload struct {
	BlockID    string `json:"block_id"`
	CompiledID string `json:"compiled_id"`
}

// MDXErrorPayload is WorkerIn{type:"MDX_ERROR"}'s body (server mode).
type MDXErrorPayload struct {
	BlockID string `json:"block_id"`
	Error   string `json:"error,omitempty"`
}

// SetCreditsPayload is WorkerIn{type:"SET_CREDITS"}'s body.
type SetCreditsPayload struct {
	Credits float64 `json:"credits"`
}

// WorkerIn is the inbound tagged union. Exactly one payload field is
// populated, selected by Type.
type WorkerIn struct {
	Type InboundType `json:"type"`

	Init        *InitPayload        `json:"init,omitempty"`
	Append      *AppendPayload      `json:"append,omitempty"`
	MDXCompiled *MDXCompiledPayload `json:"mdx_compiled,omitempty"`
	MDXError    *MDXErrorPayload    `json:"mdx_error,omitempty"`
	SetCredits  *SetCreditsPayload  `json:"set_credits,omitempty"`
}

// ErrorDetail carries the message/name/stack triple of an ERROR payload.
type ErrorDetail struct {
	Message string `json:"message"`
	Name    string `json:"name,omitempty"`
	Stack   string `json:"stack,omitempty"`
}

// WorkerOut is the outbound tagged union emitted by the pipeline
// controller.
type WorkerOut struct {
	Type OutboundType `json:"type"`

	// INITIALIZED
	Blocks []*mdoc.Block `json:"blocks,omitempty"`

	// PATCH
	Tx      int              `json:"tx,omitempty"`
	Patches []mdoc.Patch     `json:"patches,omitempty"`
	Metrics *json.RawMessage `json:"metrics,omitempty"`

	// RESET
	Reason string `json:"reason,omitempty"`

	// ERROR
	Phase     string         `json:"phase,omitempty"`
	Error     *ErrorDetail   `json:"error,omitempty"`
	BlockID   string         `json:"block_id,omitempty"`
	Meta      map[string]any `json:"meta,omitempty"`
	Timestamp int64          `json:"timestamp,omitempty"`
}

// NewErrorMessage builds an ERROR WorkerOut for phase, wrapping err.
func NewErrorMessage(phase string, err error, meta map[string]any, timestamp int64) WorkerOut {
	return WorkerOut{
		Type:      OutError,
		Phase:     phase,
		Error:     &ErrorDetail{Message: err.Error()},
		Meta:      meta,
		Timestamp: timestamp,
	}
}

// NewResetMessage builds a RESET WorkerOut.
func NewResetMessage(reason string) WorkerOut {
	return WorkerOut{Type: OutReset, Reason: reason}
}

// WithMetrics attaches a marshaled metrics payload to a PATCH message.
func WithMetrics(msg WorkerOut, metrics any) (WorkerOut, error) {
	raw, err := json.Marshal(metrics)
	if err != nil {
		return msg, fmt.Errorf("wire: marshal metrics: %w", err)
	}
	rm := json.RawMessage(raw)
	msg.Metrics = &rm
	return msg, nil
}

// Highlighter renders code to HTML for a language, per §4.4/§4.15. An
// implementation must report whether a language can be loaded before
// Highlight is ever called with it.
type Highlighter interface {
	Load(lang string) bool
	Highlight(ctx context.Context, lang, code string) (html string, err error)
}

// HtmlSanitizer sanitizes raw HTML, per §4.3/§4.5.
type HtmlSanitizer interface {
	Sanitize(html string) string
}

// MdxCompileResult is the async compile outcome in worker mode (§4.9).
type MdxCompileResult struct {
	Code string
	Deps []string
}

// MdxCompiler is the pluggable async MDX compile service used in worker
// mode.
type MdxCompiler interface {
	Compile(ctx context.Context, source string) (MdxCompileResult, error)
}

// DocumentPlugin is the document-plugin contract (§4.6), re-exported
// here so external callers composing a custom plugin don't need to
// import pkg/docplugins directly for the interface shape alone.
type DocumentPlugin interface {
	ID() string
}
