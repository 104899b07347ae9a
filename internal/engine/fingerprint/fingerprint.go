// Package fingerprint computes the stable content identity used to
// deduplicate questions across admission and generation.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// sep (the ASCII unit separator) delimits fields in the hashed input.
// collapse rewrites only whitespace and does not remove it, so text that
// itself contains \x1f is hashed as-is.
const sep = "\x1f"

// Compute produces the fingerprint for (stem, options, correctAnswer).
// Each string is trimmed and internal whitespace runs collapsed to a
// single space; options are sorted lexicographically before hashing so
// that reordered-but-identical candidates collide. Case is preserved:
// body text is never folded.
func Compute(stem string, options []string, correctAnswer string) string {
	normStem := collapse(stem)
	normAnswer := collapse(correctAnswer)

	normOptions := make([]string, len(options))
	for i, o := range options {
		normOptions[i] = collapse(o)
	}
	sort.Strings(normOptions)

	h := sha256.New()
	h.Write([]byte(normStem))
	h.Write([]byte(sep))
	h.Write([]byte(strings.Join(normOptions, sep)))
	h.Write([]byte(sep))
	h.Write([]byte(normAnswer))

	return hex.EncodeToString(h.Sum(nil))
}

func collapse(s string) string {
	s = strings.TrimSpace(s)
	return strings.Join(strings.Fields(s), " ")
}
