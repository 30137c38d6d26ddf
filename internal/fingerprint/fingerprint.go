// Package fingerprint canonicalizes and formats content fingerprints.
//
// A fingerprint is the store-local hexadecimal token that correlates a
// catalog entry with its per-user state rows. The catalog records it without
// separators while the state table renders the same value in dashed
// 8-4-4-4-12 groups, so every comparison must go through Canonicalize and
// every state write must go through Format. Fingerprints are never portable
// between server instances; only the comparison rules are.
package fingerprint

import "strings"

// UndashedLength is the number of hex characters in a canonical fingerprint.
const UndashedLength = 32

// Canonicalize strips separator characters so that the dashed and undashed
// renderings of the same fingerprint compare equal. Hex case is preserved:
// the stores treat the token as an opaque string and so do we.
func Canonicalize(value string) string {
	return strings.Map(func(r rune) rune {
		if r == '-' {
			return -1
		}
		return r
	}, strings.TrimSpace(value))
}

// Valid reports whether value canonicalizes to exactly 32 hex characters.
func Valid(value string) bool {
	canon := Canonicalize(value)
	if len(canon) != UndashedLength {
		return false
	}
	for _, r := range canon {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

// Format renders a canonical (undashed) fingerprint in the dashed
// 8-4-4-4-12 grouping the state table expects. The grouping is recomputed
// from the undashed form; it must never be copied from another store's
// rendering. Inputs that are not 32 characters long are returned unchanged
// so a malformed value stays visible instead of being silently reshaped.
func Format(canonical string) string {
	if len(canonical) != UndashedLength {
		return canonical
	}
	var b strings.Builder
	b.Grow(UndashedLength + 4)
	b.WriteString(canonical[:8])
	b.WriteByte('-')
	b.WriteString(canonical[8:12])
	b.WriteByte('-')
	b.WriteString(canonical[12:16])
	b.WriteByte('-')
	b.WriteString(canonical[16:20])
	b.WriteByte('-')
	b.WriteString(canonical[20:])
	return b.String()
}
