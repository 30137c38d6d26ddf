// Package pathmap translates file paths between the source and destination
// server's filesystem conventions.
//
// Translation is the only identity bridge between the two catalogs: the
// destination catalog is looked up by the translated path, byte for byte.
// Rules are evaluated in order and the first matching prefix wins; the
// backslash fix-up is applied unconditionally afterward so an unmatched
// path still degrades to separator-only normalization instead of failing.
package pathmap

import "strings"

// Rule rewrites one source path prefix to its destination equivalent.
type Rule struct {
	SourcePrefix      string
	DestinationPrefix string
}

// Rules is an ordered, first-match-wins rule list.
type Rules []Rule

// Translate maps a source-convention path to the destination convention.
// It never fails: when no prefix matches, only the separator normalization
// is applied and the caller decides whether to count the degradation.
func (r Rules) Translate(path string) (translated string, matched bool) {
	for _, rule := range r {
		if rule.SourcePrefix == "" {
			continue
		}
		if strings.HasPrefix(path, rule.SourcePrefix) {
			path = rule.DestinationPrefix + path[len(rule.SourcePrefix):]
			matched = true
			break
		}
	}
	return strings.ReplaceAll(path, `\`, "/"), matched
}
