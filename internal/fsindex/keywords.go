package fsindex

import (
	"regexp"
	"strings"
)

// keywordSplit is the fixed, documented regex used to derive keywords
// from an entry name (spec §3.2): lower-case the name, then split on any
// run of characters that isn't a letter or digit.
var keywordSplit = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// keywordsOf returns the deduplicated set of keywords for name, in the
// order they first appear.
func keywordsOf(name string) []string {
	lower := strings.ToLower(name)
	parts := keywordSplit.Split(lower, -1)
	seen := make(map[string]struct{}, len(parts))
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// keywordsOfQuery splits a raw search query into keywords using the same
// rule as keywordsOf, so "Bar Baz" and "bar-baz" search identically to
// how "bar baz.txt" was indexed.
func keywordsOfQuery(query string) []string {
	return keywordsOf(query)
}
