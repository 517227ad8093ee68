package model

import (
	"strings"
)

const (
	mergeSep = "||"
	relSep   = "->"
	kindSep  = "::"
)

// MergeKey is order independent: MergeKey(a, b) == MergeKey(b, a).
func MergeKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + mergeSep + b
}

// RelationshipKey is order dependent and qualified by kind.
func RelationshipKey(source, target string, kind RelationKind) string {
	return source + relSep + target + kindSep + string(kind)
}

// SplitMergeKey reverses MergeKey.
func SplitMergeKey(key string) (string, string, bool) {
	a, b, ok := strings.Cut(key, mergeSep)
	return a, b, ok
}
