// Package strings holds small string helpers shared by output formatting.
package strings

import (
	"strings"
)

// MinTruncateLen is the smallest usable maxLen for TruncateDescription.
// Anything shorter would not leave room for content plus "...".
const MinTruncateLen = 4

// TruncateDescription flattens s to a single line (newlines and runs of
// whitespace become one space) and truncates it to maxLen characters,
// appending "..." when content was dropped. Truncation is rune-based so
// multi-byte characters are never split. maxLen values below MinTruncateLen
// are clamped.
func TruncateDescription(s string, maxLen int) string {
	if maxLen < MinTruncateLen {
		maxLen = MinTruncateLen
	}

	s = strings.Join(strings.Fields(s), " ")

	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen-3]) + "..."
	}
	return s
}
