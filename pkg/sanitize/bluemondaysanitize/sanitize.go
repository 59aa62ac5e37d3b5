// Package bluemondaysanitize adapts microcosm-cc/bluemonday into the
// pkg/mixed.Sanitizer and pkg/docplugins HTML-sanitization contracts.
package bluemondaysanitize

import "github.com/microcosm-cc/bluemonday"

// Sanitizer wraps a bluemonday policy.
type Sanitizer struct {
	policy *bluemonday.Policy
}

// New builds a Sanitizer using bluemonday's UGC policy, which allows the
// common formatting/structural elements embedded documents rely on
// (headings, lists, tables, links, images) while stripping scripts and
// event-handler attributes.
func New() *Sanitizer {
	return &Sanitizer{policy: bluemonday.UGCPolicy()}
}

// Sanitize returns the sanitized form of html.
func (s *Sanitizer) Sanitize(html string) string {
	return s.policy.Sanitize(html)
}
