package codeenrich

import "strings"

// commonAliases covers the fence tags used in practice that don't
// round-trip cleanly through go-enry's canonical linguist names.
var commonAliases = map[string]string{
	"js":    "javascript",
	"jsx":   "javascript",
	"ts":    "typescript",
	"tsx":   "typescript",
	"py":    "python",
	"rb":    "ruby",
	"sh":    "bash",
	"shell": "bash",
	"zsh":   "bash",
	"yml":   "yaml",
	"md":    "markdown",
	"golang": "go",
	"c++":   "cpp",
	"cs":    "csharp",
	"rs":    "rust",
	"kt":    "kotlin",
	"":      "text",
	"text":  "text",
	"plain": "text",
	"plaintext": "text",
}

// NormalizeLanguage resolves a fence info-string language token to the
// canonical name the highlighter registry expects, falling back to
// "text" when nothing recognizes it.
func NormalizeLanguage(token string) string {
	key := strings.ToLower(strings.TrimSpace(token))
	if canonical, ok := commonAliases[key]; ok {
		return canonical
	}
	if canonical, ok := aliasLookup(key); ok {
		return canonical
	}
	return "text"
}

// aliasLookup defers to go-enry's linguist-derived alias table.
func aliasLookup(key string) (string, bool) {
	lang, ok := lookupEnryAlias(key)
	if !ok {
		return "", false
	}
	return strings.ToLower(lang), true
}
