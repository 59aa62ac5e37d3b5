package codeenrich

import "github.com/go-enry/go-enry/v2"

// lookupEnryAlias resolves a language alias through go-enry's
// linguist-derived table (e.g. "golang" -> "Go", "c++" -> "C++").
func lookupEnryAlias(alias string) (string, bool) {
	return enry.GetLanguageByAlias(alias)
}
